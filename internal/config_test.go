package internal

import (
	"strings"
	"testing"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if strings.HasPrefix(cfg.Notebook.Path, "~") {
		t.Errorf("notes path not expanded: %q", cfg.Notebook.Path)
	}
	if cfg.Notebook.Extension != ".txt" {
		t.Errorf("extension = %q, want .txt", cfg.Notebook.Extension)
	}
}

func TestNotebookConfig_NormalizesExtensions(t *testing.T) {
	cfg := NotebookConfig{Path: "/notes", Extension: " md ", Extensions: []string{"txt", ".rst"}}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Extension != ".md" {
		t.Errorf("extension = %q", cfg.Extension)
	}
	if cfg.Extensions[0] != ".txt" || cfg.Extensions[1] != ".rst" {
		t.Errorf("extensions = %v", cfg.Extensions)
	}
	opts := cfg.Options()
	if opts.Path != "/notes" || opts.Extension != ".md" {
		t.Errorf("options = %+v", opts)
	}
}

func TestNotebookConfig_Invalid(t *testing.T) {
	for name, cfg := range map[string]NotebookConfig{
		"no path":        {Extension: "txt"},
		"no extension":   {Path: "/notes"},
		"bare dot":       {Path: "/notes", Extension: "."},
		"negative limit": {Path: "/notes", Extension: "txt", SearchMaxContentBytes: -1},
	} {
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestHTTPConfig_PortRange(t *testing.T) {
	cfg := HTTPConfig{Port: 70000}
	if err := cfg.Validate(); err == nil {
		t.Error("out of range port should fail")
	}
	cfg.Port = 9090
	if cfg.Address() != ":9090" {
		t.Errorf("address = %q", cfg.Address())
	}
}
