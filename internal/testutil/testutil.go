// Package testutil provides shared test helpers for setting up notebooks.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/velocity/internal/notebook"
)

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Config returns a notebook config rooted in a fresh temp dir: ".txt" is the
// default extension, ".md" is also recognized and "tmp" is excluded.
func Config(t *testing.T) notebook.Config {
	t.Helper()
	return notebook.Config{
		Path:       t.TempDir(),
		Extension:  "txt",
		Extensions: []string{".txt", ".md"},
		Exclude:    []string{"tmp"},
	}
}

// TestNotebook opens a notebook over a temp dir that is closed on cleanup.
// It returns the notebook and its canonical root.
func TestNotebook(t *testing.T, opts ...notebook.Option) (*notebook.NoteBook, string) {
	t.Helper()
	return OpenNotebook(t, Config(t), opts...)
}

// OpenNotebook opens a notebook for cfg that is closed on cleanup.
func OpenNotebook(t *testing.T, cfg notebook.Config, opts ...notebook.Option) (*notebook.NoteBook, string) {
	t.Helper()
	opts = append([]notebook.Option{notebook.WithLogger(Logger())}, opts...)
	nb, err := notebook.Open(cfg, opts...)
	if err != nil {
		t.Fatalf("notebook.Open: %v", err)
	}
	t.Cleanup(func() { nb.Close() })
	return nb, nb.Root()
}

// WriteFile writes content under root, creating parent directories.
func WriteFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// Eventually polls fn until it returns true or the timeout elapses.
func Eventually(t *testing.T, timeout time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v: %s", timeout, msg)
}
