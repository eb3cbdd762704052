package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/starford/quire/internal/editor"
	"github.com/starford/quire/internal/workspace"
)

var keys = map[string]editor.Key{
	"enter":     editor.KeyEnter,
	"tab":       editor.KeyTab,
	"backspace": editor.KeyBackspace,
	"delete":    editor.KeyDelete,
}

// snapshotResult writes the session state, or the error that came with it.
func snapshotResult(w http.ResponseWriter, op string, snap workspace.Snapshot, err error) {
	if err != nil {
		writeError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Session handles GET /api/session.
//
//	@Summary		Current editor state
//	@Tags			session
//	@Produce		json
//	@Success		200	{object}	workspace.Snapshot
//	@Security		BearerAuth
//	@Router			/session [get]
func (h *Handler) Session(w http.ResponseWriter, _ *http.Request) {
	snap, err := h.ws.Snapshot()
	snapshotResult(w, "snapshot", snap, err)
}

// Open handles POST /api/session/open.
//
//	@Summary		Save the current note and open another
//	@Tags			session
//	@Accept			json
//	@Produce		json
//	@Param			body	body		OpenRequest	true	"Note to open"
//	@Success		200		{object}	workspace.Snapshot
//	@Failure		403		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/session/open [post]
func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	var req OpenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	snap, err := h.ws.Open(r.Context(), req.Path)
	snapshotResult(w, "open", snap, err)
}

// OpenToday handles POST /api/session/today.
func (h *Handler) OpenToday(w http.ResponseWriter, r *http.Request) {
	snap, err := h.ws.OpenToday(r.Context())
	snapshotResult(w, "open today", snap, err)
}

// CloseSession handles POST /api/session/close.
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.ws.Close(r.Context()); err != nil {
		writeError(w, "close", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Save handles POST /api/session/save.
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	snap, err := h.ws.Save(r.Context())
	snapshotResult(w, "save", snap, err)
}

// SetReadOnly handles POST /api/session/readonly.
func (h *Handler) SetReadOnly(w http.ResponseWriter, r *http.Request) {
	var req ReadOnlyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	snap, err := h.ws.SetReadOnly(req.Enabled)
	snapshotResult(w, "read-only", snap, err)
}

// SetCursor handles POST /api/session/cursor. In read-only mode the
// position is a display offset.
func (h *Handler) SetCursor(w http.ResponseWriter, r *http.Request) {
	var req PosRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	snap, err := h.ws.SetCursor(req.Pos)
	snapshotResult(w, "cursor", snap, err)
}

// Insert handles POST /api/session/insert.
//
//	@Summary		Insert text at a raw offset
//	@Tags			session
//	@Accept			json
//	@Produce		json
//	@Param			body	body		InsertRequest	true	"Text and position"
//	@Success		200		{object}	workspace.Snapshot
//	@Failure		409		{object}	errResponse
//	@Failure		423		{object}	errResponse	"Read-only mode or locked text"
//	@Security		BearerAuth
//	@Router			/session/insert [post]
func (h *Handler) Insert(w http.ResponseWriter, r *http.Request) {
	var req InsertRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	snap, err := h.ws.Insert(req.Pos, req.Text)
	snapshotResult(w, "insert", snap, err)
}

// DeleteText handles POST /api/session/delete.
func (h *Handler) DeleteText(w http.ResponseWriter, r *http.Request) {
	var req DeleteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	snap, err := h.ws.Delete(req.Start, req.End)
	snapshotResult(w, "delete", snap, err)
}

// Key handles POST /api/session/key.
func (h *Handler) Key(w http.ResponseWriter, r *http.Request) {
	var req KeyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	k, ok := keys[strings.ToLower(req.Key)]
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("unknown key "+strconv.Quote(req.Key)))
		return
	}
	snap, err := h.ws.Key(k)
	snapshotResult(w, "key", snap, err)
}

// Undo handles POST /api/session/undo.
func (h *Handler) Undo(w http.ResponseWriter, _ *http.Request) {
	snap, err := h.ws.Undo()
	snapshotResult(w, "undo", snap, err)
}

// Redo handles POST /api/session/redo.
func (h *Handler) Redo(w http.ResponseWriter, _ *http.Request) {
	snap, err := h.ws.Redo()
	snapshotResult(w, "redo", snap, err)
}

// Fold handles POST /api/session/fold.
func (h *Handler) Fold(w http.ResponseWriter, r *http.Request) {
	var req FoldRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	snap, err := h.ws.ToggleFold(req.Line)
	snapshotResult(w, "fold", snap, err)
}

// Hover handles GET /api/session/hover?pos=N.
func (h *Handler) Hover(w http.ResponseWriter, r *http.Request) {
	pos, err := strconv.Atoi(r.URL.Query().Get("pos"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'pos' must be an integer"))
		return
	}
	text, ok, err := h.ws.Hover(pos)
	if err != nil {
		writeError(w, "hover", err)
		return
	}
	writeJSON(w, http.StatusOK, HoverResponse{Link: text, Hit: ok})
}

// Click handles POST /api/session/click. A click on a link saves the
// current note and opens the target, creating it when missing.
func (h *Handler) Click(w http.ResponseWriter, r *http.Request) {
	var req PosRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	snap, hit, err := h.ws.Click(r.Context(), req.Pos)
	if err != nil {
		writeError(w, "click", err)
		return
	}
	writeJSON(w, http.StatusOK, ClickResponse{Hit: hit, Snapshot: snap})
}

// ActivateLink handles POST /api/session/link.
func (h *Handler) ActivateLink(w http.ResponseWriter, r *http.Request) {
	var req LinkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	snap, err := h.ws.ActivateLink(r.Context(), req.Text)
	snapshotResult(w, "activate link", snap, err)
}

// Prompts handles GET /api/prompts.
func (h *Handler) Prompts(w http.ResponseWriter, _ *http.Request) {
	names, err := h.ws.Prompts()
	if err != nil {
		writeError(w, "list prompts", err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, PromptsResponse{Prompts: names})
}

// RunPrompt handles POST /api/session/prompts. The reply arrives later as
// a prompt.done event.
//
//	@Summary		Run the @#prompt trigger under a position
//	@Tags			session
//	@Accept			json
//	@Produce		json
//	@Param			body	body		PosRequest	true	"Trigger position"
//	@Success		202		{object}	PromptRunResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/session/prompts [post]
func (h *Handler) RunPrompt(w http.ResponseWriter, r *http.Request) {
	var req PosRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id, snap, err := h.ws.RunPrompt(req.Pos)
	if err != nil {
		writeError(w, "run prompt", err)
		return
	}
	writeJSON(w, http.StatusAccepted, PromptRunResponse{ID: id, Snapshot: snap})
}

// CancelPrompt handles DELETE /api/session/prompts/{id}.
func (h *Handler) CancelPrompt(w http.ResponseWriter, r *http.Request) {
	snap, err := h.ws.CancelPrompt(chi.URLParam(r, "id"))
	snapshotResult(w, "cancel prompt", snap, err)
}
