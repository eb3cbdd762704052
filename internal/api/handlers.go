package api

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/starford/quire/internal/noteservice"
	"github.com/starford/quire/internal/workspace"
)

// Handler holds API route handlers.
type Handler struct {
	notes *noteservice.Service
	ws    *workspace.Workspace
}

// NewHandler creates a new Handler.
func NewHandler(notes *noteservice.Service, ws *workspace.Workspace) *Handler {
	return &Handler{notes: notes, ws: ws}
}

// wildcardPath extracts the vault path from the URL wildcard.
// Supports encoded slashes from OpenAPI clients (e.g. topics%2Fnote.md).
func wildcardPath(r *http.Request) string {
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

// Tree handles GET /api/tree.
//
//	@Summary		List the vault tree in display order
//	@Tags			notes
//	@Produce		json
//	@Success		200	{object}	TreeResponse
//	@Security		BearerAuth
//	@Router			/tree [get]
func (h *Handler) Tree(w http.ResponseWriter, r *http.Request) {
	items, err := h.notes.List(r.Context())
	if err != nil {
		writeError(w, "list tree", err)
		return
	}
	writeJSON(w, http.StatusOK, TreeResponse{Items: items})
}

// GetNote handles GET /api/notes/*.
//
//	@Summary		Get a note with its backlinks and outgoing links
//	@Tags			notes
//	@Produce		json
//	@Param			path	path		string	true	"Note path"
//	@Success		200		{object}	NoteResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{path} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	p := wildcardPath(r)
	if p == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	content, err := h.notes.Read(r.Context(), p)
	if err != nil {
		writeError(w, "get note", err)
		return
	}
	bl, err := h.notes.Backlinks(r.Context(), p)
	if err != nil {
		writeError(w, "backlinks", err)
		return
	}
	out, err := h.notes.Outgoing(r.Context(), p)
	if err != nil {
		writeError(w, "outgoing links", err)
		return
	}
	writeJSON(w, http.StatusOK, NoteResponse{Path: p, Content: content, Backlinks: bl, Outgoing: out})
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Create an empty note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNoteRequest	true	"Where and what"
//	@Success		201		{object}	PathResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.notes.CreateNote(r.Context(), req.Dir, req.Name)
	if err != nil {
		writeError(w, "create note", err)
		return
	}
	writeJSON(w, http.StatusCreated, PathResponse{Path: p})
}

// CreateDir handles POST /api/dirs.
func (h *Handler) CreateDir(w http.ResponseWriter, r *http.Request) {
	var req CreateDirRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.notes.CreateDirectory(r.Context(), req.Parent, req.Name)
	if err != nil {
		writeError(w, "create directory", err)
		return
	}
	writeJSON(w, http.StatusCreated, PathResponse{Path: p})
}

// DeleteDir handles DELETE /api/dirs/*. Only empty directories are removed.
func (h *Handler) DeleteDir(w http.ResponseWriter, r *http.Request) {
	p := wildcardPath(r)
	if p == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.notes.DeleteDirectory(r.Context(), p); err != nil {
		writeError(w, "delete directory", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Rename handles POST /api/rename. Links to the renamed item are rewritten
// across the vault.
//
//	@Summary		Rename a note or directory
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		RenameRequest	true	"Item and new name"
//	@Success		200		{object}	RelocateResponse
//	@Failure		403		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/rename [post]
func (h *Handler) Rename(w http.ResponseWriter, r *http.Request) {
	var req RenameRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.ws.Flush(r.Context()); err != nil {
		writeError(w, "save open note", err)
		return
	}
	dst, changed, err := h.notes.Rename(r.Context(), req.Path, req.Name)
	if dst == "" {
		writeError(w, "rename", err)
		return
	}
	if err != nil {
		slog.Warn("rename: link rewrite incomplete", slog.String("path", dst), slog.String("error", err.Error()))
	}
	h.relocated(r, req.Path, dst, changed)
	writeJSON(w, http.StatusOK, RelocateResponse{Path: dst, Changed: changed})
}

// Move handles POST /api/move.
func (h *Handler) Move(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.ws.Flush(r.Context()); err != nil {
		writeError(w, "save open note", err)
		return
	}
	dst, changed, err := h.notes.Move(r.Context(), req.Path, req.Target)
	if dst == "" {
		writeError(w, "move", err)
		return
	}
	if err != nil {
		slog.Warn("move: link rewrite incomplete", slog.String("path", dst), slog.String("error", err.Error()))
	}
	h.relocated(r, req.Path, dst, changed)
	writeJSON(w, http.StatusOK, RelocateResponse{Path: dst, Changed: changed})
}

// Trash handles POST /api/trash. The open note is saved first and closed if
// it was trashed.
func (h *Handler) Trash(w http.ResponseWriter, r *http.Request) {
	var req PathRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.ws.Flush(r.Context()); err != nil {
		writeError(w, "save open note", err)
		return
	}
	dst, err := h.notes.Trash(r.Context(), req.Path)
	if err != nil {
		writeError(w, "trash", err)
		return
	}
	h.relocated(r, req.Path, "", nil)
	writeJSON(w, http.StatusOK, PathResponse{Path: dst})
}

// relocated keeps the session in step with a tree change.
func (h *Handler) relocated(r *http.Request, from, to string, changed []string) {
	if err := h.ws.Relocate(from, to); err != nil {
		slog.Warn("session relocate failed", slog.String("path", from), slog.String("error", err.Error()))
		return
	}
	if len(changed) == 0 {
		return
	}
	if err := h.ws.Reload(r.Context(), changed); err != nil {
		slog.Warn("session reload failed", slog.String("error", err.Error()))
	}
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across notes
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.notes.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// QuickOpen handles GET /api/quick-open.
func (h *Handler) QuickOpen(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	matches, err := h.notes.QuickOpen(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		writeError(w, "quick open", err)
		return
	}
	writeJSON(w, http.StatusOK, QuickOpenResponse{Matches: matches})
}

// Backlinks handles GET /api/backlinks/*.
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	p := wildcardPath(r)
	if p == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	bl, err := h.notes.Backlinks(r.Context(), p)
	if err != nil {
		writeError(w, "backlinks", err)
		return
	}
	writeJSON(w, http.StatusOK, BacklinksResponse{Path: p, Backlinks: bl})
}

// ResolveLink handles POST /api/links/resolve. A missing target note is
// created.
func (h *Handler) ResolveLink(w http.ResponseWriter, r *http.Request) {
	var req LinkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, created, err := h.notes.ResolveLinkTarget(r.Context(), req.Text)
	if err != nil {
		writeError(w, "resolve link", err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, ResolveResponse{Path: p, Created: created})
}

// Journal handles POST /api/journal. The entry for the requested day is
// created with a dated heading when missing.
func (h *Handler) Journal(w http.ResponseWriter, r *http.Request) {
	var req JournalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var (
		p       string
		created bool
		err     error
	)
	if req.Date == "" {
		p, created, err = h.notes.Today(r.Context())
	} else {
		day, perr := time.ParseInLocation(time.DateOnly, req.Date, time.Local)
		if perr != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("date must be YYYY-MM-DD"))
			return
		}
		p, created, err = h.notes.ResolveJournalEntry(r.Context(), day)
	}
	if err != nil {
		writeError(w, "journal", err)
		return
	}
	writeJSON(w, http.StatusOK, ResolveResponse{Path: p, Created: created})
}
