package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/quire/internal/index"
	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/noteservice"
	"github.com/starford/quire/internal/workspace"
)

// CreateNoteRequest creates an empty note called Name inside Dir.
type CreateNoteRequest struct {
	Dir  string `json:"dir" example:"projects"`
	Name string `json:"name" example:"Weekly review" validate:"required"`
}

func (r *CreateNoteRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.Required),
	)
}

// CreateDirRequest creates directory Name inside Parent.
type CreateDirRequest struct {
	Parent string `json:"parent" example:"."`
	Name   string `json:"name" example:"projects" validate:"required"`
}

func (r *CreateDirRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.Required),
	)
}

// RenameRequest gives the item at Path a new name in place.
type RenameRequest struct {
	Path string `json:"path" example:"projects/old.md" validate:"required"`
	Name string `json:"name" example:"new" validate:"required"`
}

func (r *RenameRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Path, validation.Required),
		validation.Field(&r.Name, validation.Required),
	)
}

// MoveRequest moves the item at Path into Target.
type MoveRequest struct {
	Path   string `json:"path" example:"inbox/idea.md" validate:"required"`
	Target string `json:"target" example:"projects" validate:"required"`
}

func (r *MoveRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Path, validation.Required),
		validation.Field(&r.Target, validation.Required),
	)
}

// PathRequest names a single vault item.
type PathRequest struct {
	Path string `json:"path" example:"inbox/idea.md" validate:"required"`
}

func (r *PathRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Path, validation.Required),
	)
}

// LinkRequest carries link text, with or without brackets.
type LinkRequest struct {
	Text string `json:"text" example:"Weekly review" validate:"required"`
}

func (r *LinkRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Text, validation.Required),
	)
}

// JournalRequest selects a journal day. An empty Date means today.
type JournalRequest struct {
	Date string `json:"date" example:"2025-05-29"`
}

func (r *JournalRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Date, validation.Date("2006-01-02")),
	)
}

// PathResponse returns the path an operation produced.
type PathResponse struct {
	Path string `json:"path" example:"projects/new.md" validate:"required"`
}

// RelocateResponse is returned by rename and move.
type RelocateResponse struct {
	Path    string   `json:"path" validate:"required"`
	Changed []string `json:"changed" validate:"required"`
}

// ResolveResponse is returned when link text is resolved to a note.
type ResolveResponse struct {
	Path    string `json:"path" validate:"required"`
	Created bool   `json:"created"`
}

// TreeResponse wraps the vault tree.
type TreeResponse struct {
	Items []models.NoteRef `json:"items" validate:"required"`
}

// NoteResponse is a single note with its links.
type NoteResponse struct {
	Path      string   `json:"path" validate:"required"`
	Content   string   `json:"content" validate:"required"`
	Backlinks []string `json:"backlinks" validate:"required"`
	Outgoing  []string `json:"outgoing" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// QuickOpenResponse wraps quick-open matches.
type QuickOpenResponse struct {
	Matches []noteservice.Match `json:"matches" validate:"required"`
}

// BacklinksResponse lists the notes linking to a path.
type BacklinksResponse struct {
	Path      string   `json:"path" validate:"required"`
	Backlinks []string `json:"backlinks" validate:"required"`
}

// OpenRequest opens the note at Path in the session.
type OpenRequest struct {
	Path string `json:"path" example:"home.md" validate:"required"`
}

func (r *OpenRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Path, validation.Required),
	)
}

// PosRequest carries a single offset.
type PosRequest struct {
	Pos int `json:"pos" example:"12"`
}

func (r *PosRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Pos, validation.Min(0)),
	)
}

// InsertRequest types Text at Pos.
type InsertRequest struct {
	Pos  int    `json:"pos" example:"12"`
	Text string `json:"text" example:"hello" validate:"required"`
}

func (r *InsertRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Pos, validation.Min(0)),
		validation.Field(&r.Text, validation.Required),
	)
}

// DeleteRequest removes the raw range [Start, End).
type DeleteRequest struct {
	Start int `json:"start" example:"0"`
	End   int `json:"end" example:"5"`
}

func (r *DeleteRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Start, validation.Min(0)),
		validation.Field(&r.End, validation.Min(0)),
	)
}

// KeyRequest applies a structural key: enter, tab, backspace or delete.
type KeyRequest struct {
	Key string `json:"key" example:"enter" validate:"required"`
}

func (r *KeyRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Key, validation.Required),
	)
}

// ReadOnlyRequest switches read-only mode.
type ReadOnlyRequest struct {
	Enabled bool `json:"enabled"`
}

// FoldRequest toggles the callout whose header is on Line.
type FoldRequest struct {
	Line int `json:"line" example:"3"`
}

func (r *FoldRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Line, validation.Min(0)),
	)
}

// ClickResponse reports whether a click hit a link.
type ClickResponse struct {
	Hit      bool               `json:"hit"`
	Snapshot workspace.Snapshot `json:"snapshot"`
}

// HoverResponse reports the link under a position.
type HoverResponse struct {
	Link string `json:"link,omitempty"`
	Hit  bool   `json:"hit"`
}

// PromptRunResponse is returned when a prompt job starts.
type PromptRunResponse struct {
	ID       string             `json:"id" validate:"required"`
	Snapshot workspace.Snapshot `json:"snapshot"`
}

// PromptsResponse lists the prompt names triggers may use.
type PromptsResponse struct {
	Prompts []string `json:"prompts" validate:"required"`
}
