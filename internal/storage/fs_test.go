package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/velocity/internal/apperr"
)

func tempNotebook(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir, Options{
		Extension:  "txt",
		Extensions: []string{".txt", "md"},
		Exclude:    []string{"tmp", "backup"},
	})
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestNewFS_NormalizesExtensions(t *testing.T) {
	fs, err := NewFS(t.TempDir(), Options{Extension: "rst", Extensions: []string{"txt", ".md", "txt"}})
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	if fs.DefaultExtension() != ".rst" {
		t.Errorf("default = %q, want .rst", fs.DefaultExtension())
	}
	got := fs.Extensions()
	want := []string{".txt", ".md", ".rst"}
	if len(got) != len(want) {
		t.Fatalf("extensions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("extensions[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS("/tmp/velocity-does-not-exist-"+t.Name(), Options{Extension: "txt"})
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "velocity-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name(), Options{Extension: "txt"})
	if err == nil {
		t.Error("expected error when root is a file")
	}
}

func TestResolve(t *testing.T) {
	fs := tempNotebook(t)
	root := fs.Root()

	cases := []struct {
		path  string
		title string
		ext   string
		ok    bool
	}{
		{filepath.Join(root, "note.txt"), "note", ".txt", true},
		{filepath.Join(root, "sub", "deep.md"), filepath.Join("sub", "deep"), ".md", true},
		{filepath.Join(root, "v1.2.txt"), "v1.2", ".txt", true},
		{filepath.Join(root, "image.png"), "", "", false},
		{filepath.Join(root, ".hidden.txt"), "", "", false},
		{filepath.Join(root, ".git", "config.txt"), "", "", false},
		{filepath.Join(root, "note.txt~"), "", "", false},
		{filepath.Join(root, "tmp", "scratch.txt"), "", "", false},
		{filepath.Join(root, "a", "backup", "old.txt"), "", "", false},
		{filepath.Join(root, "backup"), "", "", false},
		{filepath.Join(filepath.Dir(root), "outside.txt"), "", "", false},
		{root, "", "", false},
	}
	for _, c := range cases {
		title, ext, ok := fs.Resolve(c.path)
		if ok != c.ok || title != c.title || ext != c.ext {
			t.Errorf("Resolve(%q) = (%q, %q, %v), want (%q, %q, %v)",
				c.path, title, ext, ok, c.title, c.ext, c.ok)
		}
	}
}

func TestParseTitle(t *testing.T) {
	fs := tempNotebook(t)

	cases := []struct {
		raw   string
		title string
		ext   string
	}{
		{"foo", "foo", ".txt"},
		{"  padded  ", "padded", ".txt"},
		{"foo.md", "foo", ".md"},
		{"v1.2", "v1.2", ".txt"},
		{"sub/dir/note", filepath.Join("sub", "dir", "note"), ".txt"},
		{"a/../b", "b", ".txt"},
	}
	for _, c := range cases {
		title, ext, err := fs.ParseTitle(c.raw, "")
		if err != nil {
			t.Errorf("ParseTitle(%q): %v", c.raw, err)
			continue
		}
		if title != c.title || ext != c.ext {
			t.Errorf("ParseTitle(%q) = (%q, %q), want (%q, %q)", c.raw, title, ext, c.title, c.ext)
		}
	}

	title, ext, err := fs.ParseTitle("renamed", ".md")
	if err != nil || title != "renamed" || ext != ".md" {
		t.Errorf("fallback extension: (%q, %q, %v)", title, ext, err)
	}
}

func TestParseTitle_Invalid(t *testing.T) {
	fs := tempNotebook(t)

	cases := []string{
		"",
		"   ",
		"../escape",
		"a/../../escape",
		"/etc/passwd",
		".hidden",
		"dir/",
		"tmp/scratch",
		".txt",
	}
	for _, raw := range cases {
		if _, _, err := fs.ParseTitle(raw, ""); !errors.Is(err, apperr.ErrInvalidTitle) {
			t.Errorf("ParseTitle(%q) err = %v, want ErrInvalidTitle", raw, err)
		}
	}
}

func TestParseTitle_SymlinkEscape(t *testing.T) {
	fs := tempNotebook(t)
	outside := t.TempDir()
	if err := os.Symlink(outside, filepath.Join(fs.Root(), "link")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	if _, _, err := fs.ParseTitle("link/evil", ""); !errors.Is(err, apperr.ErrInvalidTitle) {
		t.Errorf("err = %v, want ErrInvalidTitle", err)
	}
}

func TestCreateKeepsExistingContent(t *testing.T) {
	s := tempNotebook(t)
	touch(t, filepath.Join(s.Root(), "keep.txt"))
	if err := s.Create("keep", ".txt"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := s.Read("keep", ".txt")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "x" {
		t.Errorf("content = %q, want x", got)
	}
}

func TestCreateMakesSubdirs(t *testing.T) {
	s := tempNotebook(t)
	if err := s.Create(filepath.Join("a", "b", "c"), ".txt"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), "a", "b", "c.txt")); err != nil {
		t.Errorf("file not created: %v", err)
	}
}

func TestWriteAndRead(t *testing.T) {
	s := tempNotebook(t)
	content := []byte("Hello\nWorld\n")
	if err := s.Write("note", ".txt", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("note", ".txt")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
	matches, _ := filepath.Glob(filepath.Join(s.Root(), ".velocity-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestDelete(t *testing.T) {
	s := tempNotebook(t)
	_ = s.Write("del", ".txt", []byte("bye"))
	if err := s.Delete("del", ".txt"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("del", ".txt"); err == nil {
		t.Error("expected error reading deleted file")
	}
}

func TestMove(t *testing.T) {
	s := tempNotebook(t)
	_ = s.Write("old", ".txt", []byte("data"))
	if err := s.Move("old", ".txt", filepath.Join("sub", "new"), ".md"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	got, err := s.Read(filepath.Join("sub", "new"), ".md")
	if err != nil {
		t.Fatalf("Read after move: %v", err)
	}
	if string(got) != "data" {
		t.Errorf("content = %q", got)
	}
	if _, err := s.Read("old", ".txt"); err == nil {
		t.Error("old path should not exist")
	}
}

func TestMoveRefusesOverwrite(t *testing.T) {
	s := tempNotebook(t)
	_ = s.Write("a", ".txt", []byte("a"))
	_ = s.Write("b", ".txt", []byte("b"))
	err := s.Move("a", ".txt", "b", ".txt")
	if !errors.Is(err, apperr.ErrDuplicateTitle) {
		t.Fatalf("err = %v, want ErrDuplicateTitle", err)
	}
	got, _ := s.Read("b", ".txt")
	if string(got) != "b" {
		t.Errorf("target overwritten: %q", got)
	}
}

func TestList(t *testing.T) {
	s := tempNotebook(t)
	root := s.Root()
	touch(t, filepath.Join(root, "a.txt"))
	touch(t, filepath.Join(root, "sub", "b.md"))
	touch(t, filepath.Join(root, "readme.rst"))
	touch(t, filepath.Join(root, "tmp", "skip.txt"))
	touch(t, filepath.Join(root, ".hidden.txt"))
	touch(t, filepath.Join(root, "a.txt~"))

	items, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2 (%+v)", len(items), items)
	}
	seen := map[string]bool{}
	for _, it := range items {
		seen[it.Title+it.Extension] = true
		if it.ModifiedAt.IsZero() {
			t.Errorf("%s: zero mtime", it.Title)
		}
	}
	if !seen["a.txt"] || !seen[filepath.Join("sub", "b")+".md"] {
		t.Errorf("unexpected items: %+v", items)
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempNotebook(t)

	cases := []string{
		"../../etc/passwd",
		"../outside",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p, ".txt"); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, ".txt", []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}
