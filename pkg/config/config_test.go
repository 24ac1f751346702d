package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type sample struct {
	Name  string `yaml:"name"`
	Count int    `yaml:"count"`
}

func (s *sample) Validate() error {
	if s.Count < 0 {
		return errors.New("count must not be negative")
	}
	return nil
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "velocity")
	path := writeConfig(t, "name: ${SAMPLE_NAME}\ncount: 3\n")

	var s sample
	if err := Load(path, &s); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "velocity" || s.Count != 3 {
		t.Errorf("loaded %+v", s)
	}
}

func TestLoad_RunsValidator(t *testing.T) {
	path := writeConfig(t, "count: -1\n")
	var s sample
	if err := Load(path, &s); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadOptional_MissingFileKeepsDefaults(t *testing.T) {
	s := sample{Name: "default", Count: 1}
	found, err := LoadOptional(filepath.Join(t.TempDir(), "absent.yaml"), &s)
	if err != nil || found {
		t.Fatalf("LoadOptional = (%v, %v), want (false, nil)", found, err)
	}
	if s.Name != "default" {
		t.Errorf("defaults overwritten: %+v", s)
	}
}

func TestLoadOptional_OverridesDefaults(t *testing.T) {
	s := sample{Name: "default", Count: 1}
	found, err := LoadOptional(writeConfig(t, "count: 7\n"), &s)
	if err != nil || !found {
		t.Fatalf("LoadOptional = (%v, %v), want (true, nil)", found, err)
	}
	if s.Name != "default" || s.Count != 7 {
		t.Errorf("merged config = %+v", s)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	cases := map[string]string{
		"~":         home,
		"~/Notes":   filepath.Join(home, "Notes"),
		"/abs/path": "/abs/path",
		"rel/~x":    "rel/~x",
		"~other":    "~other",
	}
	for in, want := range cases {
		if got := ExpandHome(in); got != want {
			t.Errorf("ExpandHome(%q) = %q, want %q", in, got, want)
		}
	}
}
