package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starford/quire/internal/noteservice"
	"github.com/starford/quire/internal/workspace"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(notes *noteservice.Service, ws *workspace.Workspace, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(notes, ws)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Vault.
	r.Get("/tree", h.Tree)
	r.Post("/notes", h.CreateNote)
	r.Get("/notes/*", h.GetNote)
	r.Post("/dirs", h.CreateDir)
	r.Delete("/dirs/*", h.DeleteDir)
	r.Post("/rename", h.Rename)
	r.Post("/move", h.Move)
	r.Post("/trash", h.Trash)

	// Links and lookup.
	r.Get("/search", h.Search)
	r.Get("/quick-open", h.QuickOpen)
	r.Get("/backlinks/*", h.Backlinks)
	r.Post("/links/resolve", h.ResolveLink)
	r.Post("/journal", h.Journal)
	r.Get("/prompts", h.Prompts)

	// Editor session.
	r.Route("/session", func(r chi.Router) {
		r.Get("/", h.Session)
		r.Post("/open", h.Open)
		r.Post("/today", h.OpenToday)
		r.Post("/close", h.CloseSession)
		r.Post("/save", h.Save)
		r.Post("/readonly", h.SetReadOnly)
		r.Post("/cursor", h.SetCursor)
		r.Post("/insert", h.Insert)
		r.Post("/delete", h.DeleteText)
		r.Post("/key", h.Key)
		r.Post("/undo", h.Undo)
		r.Post("/redo", h.Redo)
		r.Post("/fold", h.Fold)
		r.Get("/hover", h.Hover)
		r.Post("/click", h.Click)
		r.Post("/link", h.ActivateLink)
		r.Post("/prompts", h.RunPrompt)
		r.Delete("/prompts/{id}", h.CancelPrompt)
	})

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
