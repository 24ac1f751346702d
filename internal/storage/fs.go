package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/starford/velocity/internal/apperr"
	"github.com/starford/velocity/internal/models"
)

// Options describes which files in the notebook directory are notes.
type Options struct {
	// Extension is applied to new titles that carry no recognized extension.
	Extension string
	// Extensions is the recognized extension set.
	Extensions []string
	// Exclude lists file and directory names skipped anywhere in the tree.
	Exclude []string
}

// FS implements Provider backed by the local file system.
type FS struct {
	root       string // canonical absolute path to the notebook directory
	defaultExt string
	extensions []string
	exclude    map[string]struct{}
}

// NewFS creates a new FS rooted at the given directory.
// The directory must already exist.
func NewFS(root string, opts Options) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	canon, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: canonical root: %w", err)
	}

	f := &FS{
		root:       canon,
		defaultExt: NormalizeExtension(opts.Extension),
		exclude:    make(map[string]struct{}, len(opts.Exclude)),
	}
	for _, ext := range opts.Extensions {
		ext = NormalizeExtension(ext)
		if ext != "" && !slices.Contains(f.extensions, ext) {
			f.extensions = append(f.extensions, ext)
		}
	}
	if f.defaultExt == "" {
		if len(f.extensions) == 0 {
			return nil, errors.New("storage: no note extension configured")
		}
		f.defaultExt = f.extensions[0]
	}
	if !slices.Contains(f.extensions, f.defaultExt) {
		f.extensions = append(f.extensions, f.defaultExt)
	}
	for _, name := range opts.Exclude {
		if name = strings.TrimSpace(name); name != "" {
			f.exclude[name] = struct{}{}
		}
	}
	return f, nil
}

// NormalizeExtension trims ext and gives it a leading dot.
func NormalizeExtension(ext string) string {
	ext = strings.TrimSpace(ext)
	if ext == "" || strings.HasPrefix(ext, ".") {
		return ext
	}
	return "." + ext
}

// Root returns the canonical notebook directory.
func (f *FS) Root() string { return f.root }

// DefaultExtension returns the extension given to new notes.
func (f *FS) DefaultExtension() string { return f.defaultExt }

// Extensions returns a copy of the recognized extensions.
func (f *FS) Extensions() []string { return slices.Clone(f.extensions) }

// Excluded returns the excluded names, sorted.
func (f *FS) Excluded() []string {
	out := make([]string, 0, len(f.exclude))
	for name := range f.exclude {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

func (f *FS) recognized(ext string) bool {
	return ext != "" && slices.Contains(f.extensions, ext)
}

// skipName reports whether a single path component hides everything below it.
func (f *FS) skipName(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	_, ok := f.exclude[name]
	return ok
}

// Resolve maps an absolute path inside the notebook to (title, extension).
// Both the initial scan and the watcher go through here so they can never
// disagree about what counts as a note.
func (f *FS) Resolve(abs string) (string, string, bool) {
	rel, err := filepath.Rel(f.root, abs)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", "", false
	}
	for _, part := range strings.Split(rel, string(os.PathSeparator)) {
		if f.skipName(part) {
			return "", "", false
		}
	}
	name := filepath.Base(rel)
	if strings.HasSuffix(name, "~") {
		return "", "", false
	}
	ext := filepath.Ext(name)
	if !f.recognized(ext) || len(name) == len(ext) {
		return "", "", false
	}
	return strings.TrimSuffix(rel, ext), ext, true
}

// SkipDir reports whether the directory abs is outside the tracked tree.
func (f *FS) SkipDir(abs string) bool {
	rel, err := filepath.Rel(f.root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return true
	}
	if rel == "." {
		return false
	}
	for _, part := range strings.Split(rel, string(os.PathSeparator)) {
		if f.skipName(part) {
			return true
		}
	}
	return false
}

// ParseTitle validates a user supplied title and splits off a recognized
// extension, falling back to fallbackExt (or the default extension when
// empty). The returned title is canonical: relative to the root, cleaned,
// without extension. Any title that would land outside the notebook
// directory, in an excluded subtree, or on a hidden file fails with
// apperr.ErrInvalidTitle.
func (f *FS) ParseTitle(raw, fallbackExt string) (string, string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", fmt.Errorf("%w: title is empty", apperr.ErrInvalidTitle)
	}
	if filepath.IsAbs(raw) || strings.HasPrefix(raw, "/") {
		return "", "", fmt.Errorf("%w: %q is absolute", apperr.ErrInvalidTitle, raw)
	}
	if strings.HasSuffix(raw, "/") || strings.HasSuffix(raw, string(os.PathSeparator)) {
		return "", "", fmt.Errorf("%w: %q has no name", apperr.ErrInvalidTitle, raw)
	}

	stem, ext := raw, filepath.Ext(raw)
	if f.recognized(ext) && len(filepath.Base(raw)) > len(ext) {
		stem = strings.TrimSuffix(raw, ext)
	} else {
		ext = fallbackExt
		if ext == "" {
			ext = f.defaultExt
		}
	}
	if strings.HasPrefix(filepath.Base(stem), ".") {
		return "", "", fmt.Errorf("%w: %q is a hidden file", apperr.ErrInvalidTitle, raw)
	}

	abs, err := f.safePath(stem + ext)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", apperr.ErrInvalidTitle, err)
	}
	title, resolvedExt, ok := f.Resolve(abs)
	if !ok || resolvedExt != ext {
		return "", "", fmt.Errorf("%w: %q is not a trackable note", apperr.ErrInvalidTitle, raw)
	}
	return title, ext, nil
}

// safePath resolves a relative path against the notebook root and rejects
// any result that escapes it, including through symlinked directories.
func (f *FS) safePath(rel string) (string, error) {
	cleaned := filepath.Clean(rel)
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", rel)
	}
	abs := filepath.Join(f.root, cleaned)
	if !f.inside(abs) {
		return "", fmt.Errorf("storage: path escapes notebook root: %s", rel)
	}
	canon, err := canonical(abs)
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	if !f.inside(canon) {
		return "", fmt.Errorf("storage: path escapes notebook root: %s", rel)
	}
	return abs, nil
}

// inside reports whether abs lies strictly below the root.
func (f *FS) inside(abs string) bool {
	return strings.HasPrefix(abs, f.root+string(os.PathSeparator))
}

// canonical resolves symlinks in the deepest existing ancestor of p and
// re-appends the part that does not exist yet.
func canonical(p string) (string, error) {
	existing, rest := p, ""
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			break
		}
		rest = filepath.Join(filepath.Base(existing), rest)
		existing = parent
	}
	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return "", err
	}
	if rest == "" {
		return resolved, nil
	}
	return filepath.Join(resolved, rest), nil
}

// NotePath returns the absolute path for a note, enforcing the traversal guard.
func (f *FS) NotePath(title, ext string) (string, error) {
	return f.safePath(title + ext)
}

// List walks the whole notebook and returns metadata for every note.
func (f *FS) List() ([]models.NoteMetadata, error) {
	return f.ListDir(f.root)
}

// ListDir walks dir (absolute, inside the root) and returns metadata for
// every note below it. Unreadable entries are skipped.
func (f *FS) ListDir(dir string) ([]models.NoteMetadata, error) {
	if f.SkipDir(dir) {
		return nil, nil
	}
	var out []models.NoteMetadata
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if p == dir {
				return walkErr
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if p != dir && f.SkipDir(p) {
				return filepath.SkipDir
			}
			return nil
		}
		title, ext, ok := f.Resolve(p)
		if !ok {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		out = append(out, models.NoteMetadata{
			Title:      title,
			Extension:  ext,
			ModifiedAt: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	return out, nil
}

// ModTime returns the modification time of a note file.
func (f *FS) ModTime(title, ext string) (time.Time, error) {
	abs, err := f.NotePath(title, ext)
	if err != nil {
		return time.Time{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return time.Time{}, fmt.Errorf("storage: stat %s: %w", title+ext, err)
	}
	if info.IsDir() {
		return time.Time{}, fmt.Errorf("storage: %s is a directory", title+ext)
	}
	return info.ModTime(), nil
}

// Create makes an empty note file, creating parent directories as needed.
// An existing file is left untouched.
func (f *FS) Create(title, ext string) error {
	abs, err := f.NotePath(title, ext)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}
	fh, err := os.OpenFile(abs, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("storage: create %s: %w", title+ext, err)
	}
	if err := fh.Close(); err != nil {
		return fmt.Errorf("storage: close %s: %w", title+ext, err)
	}
	return nil
}

// Write atomically replaces a note's content: tmp file → fsync → rename.
// The temp file is hidden so the watcher never mistakes it for a note.
func (f *FS) Write(title, ext string, content []byte) error {
	abs, err := f.NotePath(title, ext)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".velocity-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// Read returns the raw bytes of a note file.
func (f *FS) Read(title, ext string) ([]byte, error) {
	abs, err := f.NotePath(title, ext)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", title+ext, err)
	}
	return data, nil
}

// Delete removes a note file.
func (f *FS) Delete(title, ext string) error {
	abs, err := f.NotePath(title, ext)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("storage: delete %s: %w", title+ext, err)
	}
	return nil
}

// Move renames a note file within the notebook. It refuses to overwrite an
// existing file.
func (f *FS) Move(oldTitle, oldExt, newTitle, newExt string) error {
	absOld, err := f.NotePath(oldTitle, oldExt)
	if err != nil {
		return err
	}
	absNew, err := f.NotePath(newTitle, newExt)
	if err != nil {
		return err
	}
	if _, err := os.Lstat(absNew); err == nil {
		return fmt.Errorf("storage: move: %s: %w", newTitle+newExt, apperr.ErrDuplicateTitle)
	}
	if err := os.MkdirAll(filepath.Dir(absNew), 0o755); err != nil {
		return fmt.Errorf("storage: mkdir for move: %w", err)
	}
	if err := os.Rename(absOld, absNew); err != nil {
		return fmt.Errorf("storage: move: %w", err)
	}
	return nil
}
