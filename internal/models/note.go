// Package models defines the domain types for Velocity.
package models

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Note is a plain-text file tracked by a notebook. Title and Extension are
// its identity; changing either means replacing the Note.
type Note struct {
	Title      string    `json:"title"`
	Extension  string    `json:"extension"`
	ModifiedAt time.Time `json:"modified_at"`

	root string
}

// NewNote returns a note rooted at the notebook directory root.
func NewNote(root, title, ext string, modifiedAt time.Time) Note {
	return Note{Title: title, Extension: ext, ModifiedAt: modifiedAt, root: root}
}

// Path returns the absolute path of the note file. It is derived on every
// call so it can never drift from Title and Extension.
func (n Note) Path() string {
	return filepath.Join(n.root, n.Title+n.Extension)
}

// Filename returns the note path relative to the notebook root.
func (n Note) Filename() string {
	return n.Title + n.Extension
}

// Read returns the decoded note content. Invalid UTF-8 sequences are
// replaced rather than rejected. On I/O failure it returns an empty string
// together with the error; callers are expected to carry on with "".
func (n Note) Read() (string, error) {
	data, err := os.ReadFile(n.Path())
	if err != nil {
		return "", fmt.Errorf("note: read %s: %w", n.Filename(), err)
	}
	return DecodeContent(data), nil
}

// DecodeContent turns raw file bytes into note text, replacing invalid UTF-8.
func DecodeContent(data []byte) string {
	return strings.ToValidUTF8(string(data), "\uFFFD")
}

// Same reports whether both notes refer to the same file.
func (n Note) Same(other Note) bool {
	return n.Path() == other.Path()
}

// NoteMetadata is what a directory walk yields for one eligible file.
type NoteMetadata struct {
	Title      string
	Extension  string
	ModifiedAt time.Time
}

// Change kinds delivered to notebook subscribers.
const (
	ChangeCreated  = "created"
	ChangeUpdated  = "updated"
	ChangeDeleted  = "deleted"
	ChangeRenamed  = "renamed"
	ChangeDegraded = "degraded"
)

// Change describes one visible index mutation.
type Change struct {
	Kind     string `json:"kind"`
	Title    string `json:"title,omitempty"`
	OldTitle string `json:"old_title,omitempty"`
}
