// Package storage maps note titles to files under the notebook directory and
// performs the file operations behind them.
package storage

import (
	"time"

	"github.com/starford/velocity/internal/models"
)

// Provider is the read side of the notebook directory used by scans and the
// watcher.
type Provider interface {
	// Root returns the canonical absolute notebook directory.
	Root() string
	// Resolve maps an absolute path to a note identity. ok is false for
	// anything that is not an eligible note.
	Resolve(abs string) (title, ext string, ok bool)
	// SkipDir reports whether a directory (absolute path) is excluded.
	SkipDir(abs string) bool
	// List returns every eligible note under the notebook directory.
	List() ([]models.NoteMetadata, error)
	// ListDir returns every eligible note under the absolute directory dir.
	ListDir(dir string) ([]models.NoteMetadata, error)
	// ModTime stats the note file.
	ModTime(title, ext string) (time.Time, error)
}

// Verify *FS satisfies Provider at compile time.
var _ Provider = (*FS)(nil)
