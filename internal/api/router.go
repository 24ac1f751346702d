package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starford/velocity/internal/notebook"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(nb *notebook.NoteBook, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(nb)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Get("/notes/*", h.GetNote)
	r.Patch("/notes/*", h.RenameNote)
	r.Put("/notes/*", h.WriteNote)
	r.Delete("/notes/*", h.DeleteNote)

	r.Get("/search", h.Search)
	r.Post("/rescan", h.Rescan)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}

// NewHealthRouter serves the unauthenticated liveness and readiness probes.
func NewHealthRouter(hc HealthChecker) chi.Router {
	h := &HealthHandler{hc: hc}
	r := chi.NewRouter()
	r.Get("/live", h.Live)
	r.Get("/ready", h.Ready)
	return r
}
