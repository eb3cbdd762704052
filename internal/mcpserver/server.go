// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the vault to LLM agents via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/link"
	"github.com/starford/quire/internal/noteservice"
)

const contractURI = "quire://note-format"

// Server wraps the MCP server with the vault tools.
type Server struct {
	mcp   *server.MCPServer
	notes *noteservice.Service
}

// New creates a new MCP server with all tools registered.
func New(notes *noteservice.Service, version string) *Server {
	s := &Server{notes: notes}

	s.mcp = server.NewMCPServer(
		"quire",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Full-text search through note content and titles."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the raw content of a note, link brackets included."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path (e.g. projects/Weekly_Review.md)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a note called name inside dir. The name is sanitized "+
			"the same way link text is, so [[name]] will resolve to it. Read the contract "+
			"first via get_note_contract or the "+contractURI+" resource."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Note name without extension; spaces become underscores")),
		mcp.WithString("dir", mcp.Description("Directory to create the note in (default vault root)")),
		mcp.WithString("content", mcp.Description("Initial Markdown content")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("write_note",
		mcp.WithDescription("Replace the content of an existing note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path of the note")),
		mcp.WithString("content", mcp.Required(), mcp.Description("New Markdown content")),
	), s.writeNote)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the note format contract. "+
			"Call this before creating or updating notes to ensure correct structure."),
	), s.getNoteContract)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List the vault tree, or the part of it under folder."),
		mcp.WithString("folder", mcp.Description("Optional folder to list (empty for all)")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all notes that link to the specified note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Note path or link text")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("get_outgoing_links",
		mcp.WithDescription("List the note paths a note links to."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path of the note")),
	), s.getOutgoingLinks)

	s.mcp.AddTool(mcp.NewTool("resolve_link",
		mcp.WithDescription("Resolve [[link text]] to a note path, creating an empty note when none exists."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Link text, with or without brackets")),
	), s.resolveLink)

	s.mcp.AddTool(mcp.NewTool("journal_entry",
		mcp.WithDescription("Return the journal entry for a day, creating it with a dated heading when missing."),
		mcp.WithString("date", mcp.Description("Day as YYYY-MM-DD (default today)")),
	), s.journalEntry)

	s.mcp.AddTool(mcp.NewTool("quick_open",
		mcp.WithDescription("Fuzzy-find notes by link text."),
		mcp.WithString("query", mcp.Description("Fuzzy query; empty lists notes alphabetically")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of matches (default 20)")),
	), s.quickOpen)

	s.mcp.AddTool(mcp.NewTool("rename_note",
		mcp.WithDescription("Rename a note or directory in place and rewrite every link to it."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Current vault-relative path")),
		mcp.WithString("name", mcp.Required(), mcp.Description("New name")),
	), s.renameNote)

	s.mcp.AddTool(mcp.NewTool("move_note",
		mcp.WithDescription("Move a note or directory into another directory and rewrite every link to it."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Current vault-relative path")),
		mcp.WithString("target", mcp.Required(), mcp.Description("Destination directory (\".\" for the root)")),
	), s.moveNote)

	s.mcp.AddTool(mcp.NewTool("trash_note",
		mcp.WithDescription("Move a note or directory to the trash. Links to it are left unchanged."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path")),
	), s.trashNote)

	// Resource: note format contract.
	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Note Format Contract",
			mcp.WithResourceDescription("How notes, links, journal entries and AI responses are laid out."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func toolError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("not found: " + err.Error())
	case errors.Is(err, apperr.ErrAlreadyExists):
		return mcp.NewToolResultError("already exists: " + err.Error())
	case errors.Is(err, apperr.ErrProtected):
		return mcp.NewToolResultError("not allowed: " + err.Error())
	}
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.notes.Search(ctx, query, req.GetInt("limit", 20))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(results), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := s.notes.Read(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return mcp.NewToolResultText(content), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, err := s.notes.CreateNote(ctx, req.GetString("dir", "."), name)
	if err != nil {
		return toolError(err), nil
	}
	if content := req.GetString("content", ""); content != "" {
		if err := s.notes.Save(ctx, p, content); err != nil {
			return toolError(err), nil
		}
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", p)), nil
}

func (s *Server) writeNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.notes.Read(ctx, path); err != nil {
		return toolError(err), nil
	}
	if noteservice.InTrash(path) {
		return mcp.NewToolResultError(fmt.Sprintf("not allowed: %s is in the trash", path)), nil
	}
	if err := s.notes.Save(ctx, path, content); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("saved: %s", path)), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folder := strings.Trim(req.GetString("folder", ""), "/")
	if folder == "." {
		folder = ""
	}

	refs, err := s.notes.List(ctx)
	if err != nil {
		return toolError(err), nil
	}

	var lines []string
	for _, r := range refs {
		if folder != "" && !strings.HasPrefix(r.Path, folder+"/") {
			continue
		}
		line := r.Path
		if r.IsDir() {
			line += "/"
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return mcp.NewToolResultText("no notes found"), nil
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) getNoteContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !strings.HasSuffix(path, link.Ext) {
		path = filepath.ToSlash(link.ToFilePath(link.Extract(path), "."))
	}
	bl, err := s.notes.Backlinks(ctx, path)
	if err != nil {
		return toolError(err), nil
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return mcp.NewToolResultText(strings.Join(bl, "\n")), nil
}

func (s *Server) getOutgoingLinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := s.notes.Outgoing(ctx, path)
	if err != nil {
		return toolError(err), nil
	}
	if len(out) == 0 {
		return mcp.NewToolResultText("no outgoing links"), nil
	}
	return mcp.NewToolResultText(strings.Join(out, "\n")), nil
}

func (s *Server) resolveLink(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, created, err := s.notes.ResolveLinkTarget(ctx, text)
	if err != nil {
		return toolError(err), nil
	}
	if created {
		return mcp.NewToolResultText(fmt.Sprintf("created: %s", p)), nil
	}
	return mcp.NewToolResultText(p), nil
}

func (s *Server) journalEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var (
		p   string
		err error
	)
	if date := req.GetString("date", ""); date != "" {
		day, perr := time.ParseInLocation(time.DateOnly, date, time.Local)
		if perr != nil {
			return mcp.NewToolResultError("date must be YYYY-MM-DD"), nil
		}
		p, _, err = s.notes.ResolveJournalEntry(ctx, day)
	} else {
		p, _, err = s.notes.Today(ctx)
	}
	if err != nil {
		return toolError(err), nil
	}
	content, err := s.notes.Read(ctx, p)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(p + "\n\n" + content), nil
}

func (s *Server) quickOpen(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	matches, err := s.notes.QuickOpen(ctx, req.GetString("query", ""), req.GetInt("limit", 20))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(matches), nil
}

func (s *Server) renameNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	dst, changed, err := s.notes.Rename(ctx, path, name)
	if dst == "" {
		return toolError(err), nil
	}
	return relocated(dst, changed, err), nil
}

func (s *Server) moveNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	target, err := req.RequireString("target")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	dst, changed, err := s.notes.Move(ctx, path, target)
	if dst == "" {
		return toolError(err), nil
	}
	return relocated(dst, changed, err), nil
}

func relocated(dst string, changed []string, err error) *mcp.CallToolResult {
	res := struct {
		Path    string   `json:"path"`
		Changed []string `json:"changed"`
		Warning string   `json:"warning,omitempty"`
	}{Path: dst, Changed: changed}
	if res.Changed == nil {
		res.Changed = []string{}
	}
	if err != nil {
		res.Warning = "link rewrite incomplete: " + err.Error()
	}
	return jsonResult(res)
}

func (s *Server) trashNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	dst, err := s.notes.Trash(ctx, path)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("trashed: %s", dst)), nil
}
