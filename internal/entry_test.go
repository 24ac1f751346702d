package internal

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg := NewDefaultConfig()
	cfg.Notebook.Path = t.TempDir()
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestRun_RequiresConfig(t *testing.T) {
	if err := Run(context.Background()); err == nil {
		t.Fatal("Run without config should fail")
	}
}

func TestList(t *testing.T) {
	cfg := testConfig(t)
	older := filepath.Join(cfg.Notebook.Path, "older.txt")
	for name, body := range map[string]string{"older.txt": "apple pie", "newer.md": "apple tart", "skip.log": "apple"} {
		if err := os.WriteFile(filepath.Join(cfg.Notebook.Path, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(older, past, past); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := List(context.Background(), &out, "apple", WithConfig(cfg)); err != nil {
		t.Fatalf("List: %v", err)
	}
	if got := strings.Fields(out.String()); len(got) != 2 || got[0] != "newer" || got[1] != "older" {
		t.Errorf("output = %q", out.String())
	}

	out.Reset()
	if err := List(context.Background(), &out, "pie", WithConfig(cfg)); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out.String()) != "older" {
		t.Errorf("output = %q", out.String())
	}
}

func TestLogFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.App.LogFile = filepath.Join(t.TempDir(), "velocity.log")

	if err := List(context.Background(), &bytes.Buffer{}, "", WithConfig(cfg)); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(cfg.App.LogFile)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), "notebook: opened") {
		t.Errorf("log = %s", data)
	}
}
