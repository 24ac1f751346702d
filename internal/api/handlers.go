package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/starford/velocity/internal/apperr"
	"github.com/starford/velocity/internal/checksum"
	"github.com/starford/velocity/internal/notebook"
)

const maxBodyBytes = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	nb *notebook.NoteBook
}

// NewHandler creates a new Handler.
func NewHandler(nb *notebook.NoteBook) *Handler {
	return &Handler{nb: nb}
}

// noteTitle extracts the note title from the URL (everything after /notes/).
// Supports encoded slashes (e.g. work%2Ftodo).
func noteTitle(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List notes, most recently modified first
//	@Tags			notes
//	@Produce		json
//	@Success		200	{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toList(h.nb.List()))
}

// Search handles GET /api/search.
//
//	@Summary		Notes whose title or content contains every word of q
//	@Tags			search
//	@Produce		json
//	@Param			q	query		string	false	"Search words; empty matches everything"
//	@Success		200	{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toList(h.nb.Search(r.URL.Query().Get("q"))))
}

// GetNote handles GET /api/notes/*.
//
//	@Summary		Get a single note with its content
//	@Tags			notes
//	@Produce		json
//	@Param			title	path		string	true	"Note title"
//	@Success		200		{object}	NoteDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{title} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	title := noteTitle(r)
	if title == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("title is required"))
		return
	}
	n, content, err := h.nb.Read(title)
	if err != nil {
		writeError(w, "get note", err)
		return
	}
	sum := checksum.Sum([]byte(content))
	w.Header().Set("ETag", `"`+sum+`"`)
	writeJSON(w, http.StatusOK, NoteDetail{NoteItem: toItem(n), Content: content, Checksum: sum})
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Create an empty note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNoteRequest	true	"Note to create"
//	@Success		201		{object}	NoteItem
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	n, err := h.nb.Create(req.Title)
	if err != nil {
		writeError(w, "create note", err)
		return
	}
	writeJSON(w, http.StatusCreated, toItem(n))
}

// RenameNote handles PATCH /api/notes/*.
//
//	@Summary		Rename a note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			title	path		string				true	"Current title"
//	@Param			body	body		RenameNoteRequest	true	"New title"
//	@Success		200		{object}	NoteItem
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{title} [patch]
func (h *Handler) RenameNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	title := noteTitle(r)
	if title == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("title is required"))
		return
	}
	var req RenameNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	n, err := h.nb.Rename(title, req.Title)
	if err != nil {
		writeError(w, "rename note", err)
		return
	}
	writeJSON(w, http.StatusOK, toItem(n))
}

// WriteNote handles PUT /api/notes/*.
//
//	@Summary		Replace note content with optimistic concurrency
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			title		path	string				true	"Note title"
//	@Param			If-Match	header	string				false	"SHA-256 checksum of the content being replaced"
//	@Param			body		body	WriteNoteRequest	true	"New content"
//	@Success		200		{object}	NoteDetail
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{title} [put]
func (h *Handler) WriteNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	title := noteTitle(r)
	if title == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("title is required"))
		return
	}
	var req WriteNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	n, err := h.nb.Write(title, []byte(req.Content), r.Header.Get("If-Match"))
	if err != nil {
		writeError(w, "write note", err)
		return
	}
	sum := checksum.Sum([]byte(req.Content))
	w.Header().Set("ETag", `"`+sum+`"`)
	writeJSON(w, http.StatusOK, NoteDetail{NoteItem: toItem(n), Content: req.Content, Checksum: sum})
}

// DeleteNote handles DELETE /api/notes/*.
//
//	@Summary		Delete a note
//	@Tags			notes
//	@Param			title	path	string	true	"Note title"
//	@Success		204		"Note deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{title} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	title := noteTitle(r)
	if title == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("title is required"))
		return
	}
	if err := h.nb.Delete(title); err != nil {
		writeError(w, "delete note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Rescan handles POST /api/rescan.
//
//	@Summary		Reconcile the index with the notes directory
//	@Tags			notes
//	@Success		204	"Rescan complete"
//	@Security		BearerAuth
//	@Router			/rescan [post]
func (h *Handler) Rescan(w http.ResponseWriter, _ *http.Request) {
	if err := h.nb.Rescan(); err != nil {
		writeError(w, "rescan", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthChecker reports whether the index still follows the notes directory.
type HealthChecker interface {
	Health() error
}

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	hc HealthChecker
}

// Live handles GET /health/live.
func (h *HealthHandler) Live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /health/ready. It reports degraded once the watcher has
// stopped following the notes directory.
func (h *HealthHandler) Ready(w http.ResponseWriter, _ *http.Request) {
	if err := h.hc.Health(); err != nil {
		status := "degraded"
		if !errors.Is(err, apperr.ErrWatchFailure) {
			status = "unavailable"
		}
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": status, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
