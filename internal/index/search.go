package index

import (
	"log/slog"
	"os"
	"strings"
	"unicode"

	"github.com/starford/velocity/internal/models"
)

// Search returns the notes that contain every whitespace-separated word of
// query in their title or content, in the order given. A query without any
// uppercase letter matches case-insensitively; otherwise matching is exact.
// An empty query matches every note.
//
// When maxContentBytes is positive, files larger than that are matched on
// their title only. Unreadable notes count as empty; the error is logged.
func Search(notes []models.Note, query string, maxContentBytes int64, logger *slog.Logger) []models.Note {
	words := strings.Fields(query)
	if len(words) == 0 {
		return append([]models.Note(nil), notes...)
	}

	fold := !strings.ContainsFunc(query, unicode.IsUpper)
	if fold {
		for i, w := range words {
			words[i] = strings.ToLower(w)
		}
	}
	norm := func(s string) string {
		if fold {
			return strings.ToLower(s)
		}
		return s
	}

	var out []models.Note
	for _, n := range notes {
		title := norm(n.Title)
		var missing []string
		for _, w := range words {
			if !strings.Contains(title, w) {
				missing = append(missing, w)
			}
		}
		if len(missing) > 0 {
			content := norm(searchableContent(n, maxContentBytes, logger))
			if !containsAll(content, missing) {
				continue
			}
		}
		out = append(out, n)
	}
	return out
}

func containsAll(s string, words []string) bool {
	for _, w := range words {
		if !strings.Contains(s, w) {
			return false
		}
	}
	return true
}

func searchableContent(n models.Note, maxContentBytes int64, logger *slog.Logger) string {
	if maxContentBytes > 0 {
		info, err := os.Stat(n.Path())
		if err != nil {
			logger.Debug("search: stat failed", slog.String("title", n.Title), slog.String("error", err.Error()))
			return ""
		}
		if info.Size() > maxContentBytes {
			return ""
		}
	}
	content, err := n.Read()
	if err != nil {
		logger.Debug("search: read failed", slog.String("title", n.Title), slog.String("error", err.Error()))
		return ""
	}
	return content
}
