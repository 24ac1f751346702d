package index

import (
	"log/slog"

	"github.com/starford/velocity/internal/models"
	"github.com/starford/velocity/internal/storage"
)

// Sync walks the notebook and brings the index up to date:
//   - new/changed files are upserted
//   - notes whose files are gone are removed
//
// It returns the changes it applied so callers can forward them to
// subscribers.
func Sync(idx *Index, store storage.Provider, logger *slog.Logger) ([]models.Change, error) {
	metas, err := store.List()
	if err != nil {
		return nil, err
	}

	// Two files may share a title (a.txt and a.md); the one already indexed
	// wins, otherwise the first one walked.
	chosen := make(map[string]string, len(metas))
	for _, m := range metas {
		if prev, dup := chosen[m.Title]; dup {
			if cur, ok := idx.Get(m.Title); ok && cur.Extension == m.Extension {
				chosen[m.Title] = m.Extension
			}
			logger.Debug("sync: duplicate title",
				slog.String("title", m.Title),
				slog.String("extension", m.Extension),
				slog.String("other", prev))
			continue
		}
		chosen[m.Title] = m.Extension
	}

	var changes []models.Change
	for _, m := range metas {
		if chosen[m.Title] != m.Extension {
			continue
		}
		kind := models.ChangeUpdated
		if !idx.Has(m.Title) {
			kind = models.ChangeCreated
		}
		if idx.Upsert(models.NewNote(store.Root(), m.Title, m.Extension, m.ModifiedAt)) {
			logger.Debug("sync: indexed", slog.String("title", m.Title))
			changes = append(changes, models.Change{Kind: kind, Title: m.Title})
		}
	}

	// Remove stale entries.
	for _, title := range idx.Titles() {
		if _, ok := chosen[title]; ok {
			continue
		}
		if idx.Remove(title) {
			logger.Debug("sync: removed stale", slog.String("title", title))
			changes = append(changes, models.Change{Kind: models.ChangeDeleted, Title: title})
		}
	}

	return changes, nil
}
