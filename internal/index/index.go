// Package index keeps the in-memory note catalog, the watcher that keeps it in
// step with the notebook directory, and the search over it.
package index

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/starford/velocity/internal/apperr"
	"github.com/starford/velocity/internal/models"
)

// Index is the ordered catalog of notes keyed by title, most recently
// modified first. It is the only shared mutable state between the
// foreground consumer and the watcher goroutine; every method holds the
// lock for its whole (in-memory only) duration.
type Index struct {
	mu      sync.Mutex
	byTitle map[string]models.Note
	ordered []string
}

// New returns an empty index.
func New() *Index {
	return &Index{byTitle: make(map[string]models.Note)}
}

// before reports whether a sorts ahead of b: newer first, then by title.
func before(a, b models.Note) bool {
	if !a.ModifiedAt.Equal(b.ModifiedAt) {
		return a.ModifiedAt.After(b.ModifiedAt)
	}
	return a.Title < b.Title
}

// Upsert inserts n or replaces the note with the same title and moves it to
// its recency position. It reports whether anything changed; re-applying
// identical data is a no-op.
func (idx *Index) Upsert(n models.Note) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.upsertLocked(n)
}

func (idx *Index) upsertLocked(n models.Note) bool {
	if old, ok := idx.byTitle[n.Title]; ok {
		if old.Extension == n.Extension && old.ModifiedAt.Equal(n.ModifiedAt) && old.Same(n) {
			return false
		}
		idx.dropLocked(n.Title)
	}
	idx.byTitle[n.Title] = n
	pos, _ := slices.BinarySearchFunc(idx.ordered, n, func(title string, target models.Note) int {
		switch cur := idx.byTitle[title]; {
		case before(cur, target):
			return -1
		case before(target, cur):
			return 1
		default:
			return 0
		}
	})
	idx.ordered = slices.Insert(idx.ordered, pos, n.Title)
	return true
}

// dropLocked removes title from both structures; the caller holds the lock
// and knows the title is present.
func (idx *Index) dropLocked(title string) {
	delete(idx.byTitle, title)
	if i := slices.Index(idx.ordered, title); i >= 0 {
		idx.ordered = slices.Delete(idx.ordered, i, i+1)
	}
}

// Remove deletes title. Removing an absent title is not an error: the
// watcher and the façade may both try to remove the same note.
func (idx *Index) Remove(title string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, ok := idx.byTitle[title]; !ok {
		return false
	}
	idx.dropLocked(title)
	return true
}

// Rename atomically replaces oldTitle with n. It fails with
// apperr.ErrDuplicateTitle when n.Title is already taken by a different
// file. A missing oldTitle makes this a plain upsert, so replaying a rename
// that has already been applied leaves the index unchanged.
func (idx *Index) Rename(oldTitle string, n models.Note) (bool, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if existing, ok := idx.byTitle[n.Title]; ok && n.Title != oldTitle && !existing.Same(n) {
		return false, fmt.Errorf("index: rename %q to %q: %w", oldTitle, n.Title, apperr.ErrDuplicateTitle)
	}
	changed := false
	if _, ok := idx.byTitle[oldTitle]; ok && oldTitle != n.Title {
		idx.dropLocked(oldTitle)
		changed = true
	}
	if idx.upsertLocked(n) {
		changed = true
	}
	return changed, nil
}

// Snapshot returns a copy of the notes in recency order. Readers iterate
// the copy while writers keep mutating the live index.
func (idx *Index) Snapshot() []models.Note {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	out := make([]models.Note, len(idx.ordered))
	for i, title := range idx.ordered {
		out[i] = idx.byTitle[title]
	}
	return out
}

// Has reports whether title is indexed.
func (idx *Index) Has(title string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	_, ok := idx.byTitle[title]
	return ok
}

// Get returns the note stored under title.
func (idx *Index) Get(title string) (models.Note, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	n, ok := idx.byTitle[title]
	return n, ok
}

// Len returns the number of indexed notes.
func (idx *Index) Len() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return len(idx.byTitle)
}

// Titles returns the indexed titles in recency order.
func (idx *Index) Titles() []string {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return slices.Clone(idx.ordered)
}

// Under returns the notes whose title lies below the directory prefix dir
// (relative, OS separators).
func (idx *Index) Under(dir string) []models.Note {
	prefix := strings.TrimSuffix(dir, string(os.PathSeparator)) + string(os.PathSeparator)
	idx.mu.Lock()
	defer idx.mu.Unlock()
	var out []models.Note
	for _, title := range idx.ordered {
		if strings.HasPrefix(title, prefix) {
			out = append(out, idx.byTitle[title])
		}
	}
	return out
}
