package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/velocity/internal/notebook"
	"github.com/starford/velocity/internal/storage"
	pkgconfig "github.com/starford/velocity/pkg/config"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Notebook NotebookConfig    `yaml:"notebook"`
	Auth     AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Notebook.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	// LogFile, when set, receives the log instead of the standard streams.
	LogFile string     `yaml:"log_file"`
	HTTP    HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	c.LogFile = pkgconfig.ExpandHome(c.LogFile)
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// NotebookConfig describes the notes directory and which files in it count
// as notes.
type NotebookConfig struct {
	Path       string   `yaml:"path"`
	Extension  string   `yaml:"extension"`
	Extensions []string `yaml:"extensions"`
	Exclude    []string `yaml:"exclude"`
	// SearchMaxContentBytes skips content matching for larger files; 0 means
	// no limit.
	SearchMaxContentBytes int64 `yaml:"search_max_content_bytes"`
}

// Validate expands the path and normalizes extensions to a leading dot.
func (c *NotebookConfig) Validate() error {
	c.Path = pkgconfig.ExpandHome(c.Path)
	c.Extension = storage.NormalizeExtension(c.Extension)
	for i, ext := range c.Extensions {
		c.Extensions[i] = storage.NormalizeExtension(ext)
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Extension, validation.Required, validation.Length(2, 0)),
		validation.Field(&c.Extensions, validation.Each(validation.Length(2, 0))),
		validation.Field(&c.SearchMaxContentBytes, validation.Min(int64(0))),
	)
}

// Options converts the section into notebook options.
func (c *NotebookConfig) Options() notebook.Config {
	return notebook.Config{
		Path:                  c.Path,
		Extension:             c.Extension,
		Extensions:            c.Extensions,
		Exclude:               c.Exclude,
		SearchMaxContentBytes: c.SearchMaxContentBytes,
	}
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Notebook: NotebookConfig{
			Path:       "~/Notes",
			Extension:  "txt",
			Extensions: []string{".txt", ".md", ".markdown", ".rst"},
			Exclude:    []string{"src", "backup", "ignore", "tmp", "old"},
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
