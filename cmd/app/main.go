package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/starford/velocity/internal"
	pkgconfig "github.com/starford/velocity/pkg/config"
)

var version = "dev"

// loadConfig reads the config file (if any) and applies command-line
// overrides on top of it.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cmd.IsSet("notes-dir") {
		cfg.Notebook.Path = cmd.String("notes-dir")
	}
	if cmd.IsSet("extension") {
		cfg.Notebook.Extension = cmd.String("extension")
	}
	if cmd.IsSet("extensions") {
		cfg.Notebook.Extensions = splitList(cmd.String("extensions"))
	}
	if cmd.IsSet("exclude") {
		cfg.Notebook.Exclude = splitList(cmd.String("exclude"))
	}
	if cmd.IsSet("log-file") {
		cfg.App.LogFile = cmd.String("log-file")
	}
	if cmd.IsSet("port") {
		cfg.App.HTTP.Port = int(cmd.Int("port"))
	}
	if cmd.Bool("debug") {
		cfg.App.LogLevel = slog.LevelDebug
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// splitList parses a comma separated flag value.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func options(cfg *internal.Config) []internal.Option {
	return []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if cmd.Bool("print-config") {
		return yaml.NewEncoder(os.Stdout).Encode(cfg)
	}

	if err := internal.Run(ctx, options(cfg)...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, options(cfg)...)
}

func runSearch(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	query := strings.Join(cmd.Args().Slice(), " ")
	return internal.List(ctx, os.Stdout, query, options(cfg)...)
}

func main() {
	cmd := &cli.Command{
		Name:    "velocity",
		Usage:   "Index, search and manage a directory of plain-text notes",
		Version: version,
		Action:  run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "notes-dir",
				Aliases: []string{"d"},
				Usage:   "The notes directory to use",
				Sources: cli.EnvVars("VELOCITY_NOTES_DIR"),
			},
			&cli.StringFlag{
				Name:    "extension",
				Aliases: []string{"x"},
				Usage:   "The filename extension for new notes",
			},
			&cli.StringFlag{
				Name:  "extensions",
				Usage: "Comma-separated list of filename extensions to treat as notes",
			},
			&cli.StringFlag{
				Name:  "exclude",
				Usage: "Comma-separated list of file and directory names to ignore",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "The file to log to",
			},
			&cli.IntFlag{
				Name:    "port",
				Usage:   "HTTP port",
				Sources: cli.EnvVars("VELOCITY_PORT"),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Debug logging",
			},
			&cli.BoolFlag{
				Name:    "print-config",
				Aliases: []string{"p"},
				Usage:   "Print the effective configuration and exit",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "mcp",
				Usage:  "Serve the notebook to MCP clients over stdio",
				Action: runMCP,
			},
			{
				Name:      "search",
				Usage:     "Print titles of notes containing every given word",
				ArgsUsage: "<words...>",
				Action:    runSearch,
			},
			{
				Name:   "list",
				Usage:  "Print every note title, most recently modified first",
				Action: runSearch,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
