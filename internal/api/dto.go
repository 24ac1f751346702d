package api

import (
	"time"

	"github.com/starford/velocity/internal/models"
)

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Title string `json:"title" example:"Shopping list" validate:"required"`
}

// RenameNoteRequest is the request body for renaming a note.
type RenameNoteRequest struct {
	Title string `json:"title" example:"archive/Shopping list" validate:"required"`
}

// WriteNoteRequest is the request body for replacing a note's content.
type WriteNoteRequest struct {
	Content string `json:"content" example:"milk\neggs"`
}

// NoteItem is one note in list and search responses.
type NoteItem struct {
	Title      string    `json:"title" example:"Shopping list" validate:"required"`
	Filename   string    `json:"filename" example:"Shopping list.txt" validate:"required"`
	Extension  string    `json:"extension" example:".txt" validate:"required"`
	ModifiedAt time.Time `json:"modified_at" validate:"required"`
}

// NoteDetail is a note together with its content.
type NoteDetail struct {
	NoteItem
	Content  string `json:"content" example:"milk\neggs"`
	Checksum string `json:"checksum" example:"abc123..." validate:"required"`
}

// NoteListResponse wraps note listings, most recently modified first.
type NoteListResponse struct {
	Notes []NoteItem `json:"notes" validate:"required"`
	Total int        `json:"total" example:"42" validate:"required"`
}

func toItem(n models.Note) NoteItem {
	return NoteItem{
		Title:      n.Title,
		Filename:   n.Filename(),
		Extension:  n.Extension,
		ModifiedAt: n.ModifiedAt,
	}
}

func toList(notes []models.Note) NoteListResponse {
	items := make([]NoteItem, len(notes))
	for i, n := range notes {
		items[i] = toItem(n)
	}
	return NoteListResponse{Notes: items, Total: len(items)}
}
