package index

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/velocity/internal/models"
)

func TestSync_IndexesAndRemovesStale(t *testing.T) {
	root, store, idx := watcherTestEnv(t)
	write(t, filepath.Join(root, "a.txt"), "a")
	write(t, filepath.Join(root, "sub", "b.md"), "b")
	idx.Upsert(models.NewNote(root, "ghost", ".txt", base))

	changes, err := Sync(idx, store, testLogger())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if !idx.Has("a") || !idx.Has(filepath.Join("sub", "b")) {
		t.Errorf("titles = %v", idx.Titles())
	}
	if idx.Has("ghost") {
		t.Error("stale entry not removed")
	}
	if len(changes) != 3 {
		t.Errorf("changes = %+v, want 3", changes)
	}

	// A second pass over an unchanged tree is a no-op.
	changes, err = Sync(idx, store, testLogger())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(changes) != 0 {
		t.Errorf("second sync changes = %+v, want none", changes)
	}
}

func TestSync_SharedTitlePrefersIndexedFile(t *testing.T) {
	root, store, idx := watcherTestEnv(t)
	write(t, filepath.Join(root, "dup.md"), "md")
	write(t, filepath.Join(root, "dup.txt"), "txt")
	idx.Upsert(models.NewNote(root, "dup", ".txt", base))

	if _, err := Sync(idx, store, testLogger()); err != nil {
		t.Fatal(err)
	}
	n, _ := idx.Get("dup")
	if n.Extension != ".txt" {
		t.Errorf("extension = %q, want .txt", n.Extension)
	}
	info, _ := os.Stat(filepath.Join(root, "dup.txt"))
	if !n.ModifiedAt.Equal(info.ModTime()) {
		t.Error("indexed file's mtime was not refreshed")
	}
}
