package models

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNotePaths(t *testing.T) {
	n := NewNote("/notes", filepath.Join("work", "todo"), ".md", time.Time{})
	if n.Path() != filepath.Join("/notes", "work", "todo.md") {
		t.Errorf("Path = %q", n.Path())
	}
	if n.Filename() != filepath.Join("work", "todo.md") {
		t.Errorf("Filename = %q", n.Filename())
	}
	if !n.Same(NewNote("/notes", filepath.Join("work", "todo"), ".md", time.Now())) {
		t.Error("notes with the same file should be Same")
	}
	if n.Same(NewNote("/notes", filepath.Join("work", "todo"), ".txt", time.Time{})) {
		t.Error("different extensions are different files")
	}
}

func TestNoteRead(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("ok\xffend"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := NewNote(root, "a", ".txt", time.Time{}).Read()
	if err != nil {
		t.Fatal(err)
	}
	if got != "ok�end" {
		t.Errorf("Read = %q", got)
	}

	got, err = NewNote(root, "missing", ".txt", time.Time{}).Read()
	if err == nil || got != "" {
		t.Errorf("Read of missing file = (%q, %v), want empty content and an error", got, err)
	}
}
