// Package workspace is the editor session: the open note, read-only mode,
// auto-save and prompt jobs. A single loop goroutine owns all of it; public
// methods hand closures to that loop and wait for them.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/editor"
	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/prompt"
	"github.com/starford/quire/internal/sse"
)

// ErrStopped is returned once Run has exited.
var ErrStopped = errors.New("workspace: stopped")

// Notes is the part of the note service a workspace uses.
type Notes interface {
	Read(ctx context.Context, path string) (string, error)
	Save(ctx context.Context, path, content string) error
	ResolveLinkTarget(ctx context.Context, linkText string) (string, bool, error)
	Today(ctx context.Context) (string, bool, error)
}

// Events receives what the UI needs to hear about.
type Events interface {
	Publish(sse.Event)
	Warn(msg string)
}

// Config tunes a Workspace.
type Config struct {
	UndoLimit     int
	AutoSave      time.Duration
	PromptTimeout time.Duration
}

// Workspace is the session controller.
type Workspace struct {
	notes   Notes
	prompts prompt.Service
	events  Events
	logger  *slog.Logger
	cfg     Config

	ops     chan func()
	stopped chan struct{}

	// Owned by the loop.
	runCtx    context.Context
	doc       *editor.Document
	path      string
	saved     string
	readOnly  bool
	gen       int
	activated []string
	jobs      map[string]*job
}

// New creates a Workspace. prompts may be nil when no model is configured.
func New(notes Notes, prompts prompt.Service, events Events, logger *slog.Logger, cfg Config) *Workspace {
	if cfg.AutoSave <= 0 {
		cfg.AutoSave = 5 * time.Second
	}
	if cfg.PromptTimeout <= 0 {
		cfg.PromptTimeout = 2 * time.Minute
	}
	return &Workspace{
		notes:   notes,
		prompts: prompts,
		events:  events,
		logger:  logger,
		cfg:     cfg,
		ops:     make(chan func()),
		stopped: make(chan struct{}),
		jobs:    make(map[string]*job),
	}
}

// Run processes operations until ctx is cancelled. The open note is saved
// on the way out.
func (w *Workspace) Run(ctx context.Context) error {
	defer close(w.stopped)
	w.runCtx = ctx

	ticker := time.NewTicker(w.cfg.AutoSave)
	defer ticker.Stop()

	w.logger.Info("workspace: started", slog.Duration("auto_save", w.cfg.AutoSave))
	for {
		select {
		case <-ctx.Done():
			w.cancelJobs()
			w.saveQuietly(context.Background())
			w.logger.Info("workspace: stopped")
			return nil
		case op := <-w.ops:
			op()
		case <-ticker.C:
			w.saveQuietly(ctx)
		}
	}
}

// do runs fn on the loop and waits for it to finish.
func (w *Workspace) do(fn func()) error {
	done := make(chan struct{})
	select {
	case w.ops <- func() { fn(); close(done) }:
	case <-w.stopped:
		return ErrStopped
	}
	<-done
	return nil
}

// IsReadOnly implements editor.Host.
func (w *Workspace) IsReadOnly() bool { return w.readOnly }

// OnLinkActivated implements editor.Host. Navigation is deferred until the
// document call that triggered it has returned.
func (w *Workspace) OnLinkActivated(linkText string) {
	w.activated = append(w.activated, linkText)
}

// Open saves the current note and opens p. Notes in the trash cannot be
// opened.
func (w *Workspace) Open(ctx context.Context, p string) (Snapshot, error) {
	var (
		snap Snapshot
		err  error
	)
	if derr := w.do(func() {
		err = w.open(ctx, p)
		snap = w.snapshot()
	}); derr != nil {
		return Snapshot{}, derr
	}
	return snap, err
}

// OpenToday opens today's journal entry, creating it when absent.
func (w *Workspace) OpenToday(ctx context.Context) (Snapshot, error) {
	var (
		snap Snapshot
		err  error
	)
	if derr := w.do(func() {
		var p string
		p, _, err = w.notes.Today(ctx)
		if err == nil {
			err = w.open(ctx, p)
		}
		snap = w.snapshot()
	}); derr != nil {
		return Snapshot{}, derr
	}
	return snap, err
}

// Close saves and closes the open note.
func (w *Workspace) Close(ctx context.Context) error {
	var err error
	if derr := w.do(func() {
		if w.doc == nil {
			return
		}
		if err = w.save(ctx); err != nil {
			return
		}
		w.drop()
	}); derr != nil {
		return derr
	}
	return err
}

// Save writes the open note to storage.
func (w *Workspace) Save(ctx context.Context) (Snapshot, error) {
	return w.edit(func() error {
		if w.doc == nil {
			return apperr.ErrNoDocument
		}
		return w.save(ctx)
	})
}

// SetReadOnly switches between edit and read-only mode.
func (w *Workspace) SetReadOnly(on bool) (Snapshot, error) {
	return w.edit(func() error {
		if w.readOnly == on {
			return nil
		}
		if w.doc != nil && !on {
			// Leaving read-only: new typing starts a fresh undo step.
			w.doc.RecordState()
		}
		w.readOnly = on
		return nil
	})
}

// Snapshot returns the current state.
func (w *Workspace) Snapshot() (Snapshot, error) {
	return w.edit(func() error { return nil })
}

// SetCursor moves the cursor. In read-only mode pos is a display offset.
func (w *Workspace) SetCursor(pos int) (Snapshot, error) {
	return w.withDoc(func(d *editor.Document) error {
		if w.readOnly {
			pos = d.Display().RawOffset(pos)
		}
		d.SetCursor(pos)
		return nil
	})
}

// Insert types s at pos. Inserting whitespace closes the current undo step.
func (w *Workspace) Insert(pos int, s string) (Snapshot, error) {
	return w.withDoc(func(d *editor.Document) error {
		if !d.Insert(pos, s) {
			return w.rejected()
		}
		if strings.ContainsAny(s, " \t\n") {
			d.RecordState()
		}
		return nil
	})
}

// Delete removes text[start:end].
func (w *Workspace) Delete(start, end int) (Snapshot, error) {
	return w.withDoc(func(d *editor.Document) error {
		if !d.Delete(start, end) {
			return w.rejected()
		}
		return nil
	})
}

// Key applies a structural key at the cursor.
func (w *Workspace) Key(k editor.Key) (Snapshot, error) {
	return w.withDoc(func(d *editor.Document) error {
		if !d.Key(k) {
			return w.rejected()
		}
		return nil
	})
}

// Replace swaps the whole buffer, e.g. after the file changed on disk.
func (w *Workspace) Replace(text string) (Snapshot, error) {
	return w.withDoc(func(d *editor.Document) error {
		if !d.Replace(text) {
			return w.rejected()
		}
		return nil
	})
}

// Undo steps back one undo state. Underflow is not an error.
func (w *Workspace) Undo() (Snapshot, error) {
	return w.withDoc(func(d *editor.Document) error {
		if w.readOnly {
			return apperr.ErrReadOnly
		}
		d.Undo()
		return nil
	})
}

// Redo steps forward one undo state. Underflow is not an error.
func (w *Workspace) Redo() (Snapshot, error) {
	return w.withDoc(func(d *editor.Document) error {
		if w.readOnly {
			return apperr.ErrReadOnly
		}
		d.Redo()
		return nil
	})
}

// ToggleFold folds or unfolds the callout whose header is on line.
func (w *Workspace) ToggleFold(line int) (Snapshot, error) {
	return w.withDoc(func(d *editor.Document) error {
		if !d.ToggleFold(line) {
			return fmt.Errorf("workspace: line %d is not a callout header: %w", line, apperr.ErrNotFound)
		}
		return nil
	})
}

// Hover reports the link text under pos.
func (w *Workspace) Hover(pos int) (string, bool, error) {
	var (
		text string
		ok   bool
	)
	_, err := w.withDoc(func(d *editor.Document) error {
		text, ok = d.Hover(pos)
		return nil
	})
	return text, ok, err
}

// Click activates the link under pos, if any: the current note is saved,
// the target is resolved (and created when missing) and opened.
func (w *Workspace) Click(ctx context.Context, pos int) (Snapshot, bool, error) {
	var hit bool
	snap, err := w.withDoc(func(d *editor.Document) error {
		hit = d.Click(pos)
		return w.followLinks(ctx)
	})
	return snap, hit, err
}

// ActivateLink follows linkText as if it had been clicked.
func (w *Workspace) ActivateLink(ctx context.Context, linkText string) (Snapshot, error) {
	return w.edit(func() error {
		w.OnLinkActivated(linkText)
		return w.followLinks(ctx)
	})
}

// Relocate tells the workspace that oldPath (a note or a directory) now
// lives at newPath. An empty newPath means it is gone; the open note is
// then dropped without saving.
func (w *Workspace) Relocate(oldPath, newPath string) error {
	return w.do(func() {
		if w.doc == nil {
			return
		}
		rest, ok := under(w.path, oldPath)
		if !ok {
			return
		}
		if newPath == "" {
			w.logger.Info("workspace: open note removed", slog.String("path", w.path))
			w.drop()
			w.publishDocument()
			return
		}
		w.path = newPath + rest
		w.publishDocument()
	})
}

// Reload refreshes the open note from storage when it is among paths.
// The reload is an undoable replacement. Unsaved edits win over the copy on
// disk.
func (w *Workspace) Reload(ctx context.Context, paths []string) error {
	return w.do(func() {
		if w.doc == nil || w.doc.Text() != w.saved {
			return
		}
		for _, p := range paths {
			if p != w.path {
				continue
			}
			content, err := w.notes.Read(ctx, p)
			if err != nil {
				w.warn("reload failed", err)
				return
			}
			if content == w.saved {
				return
			}
			if !w.doc.Replace(content) {
				w.events.Warn("Could not reload " + p + " while it is being edited")
				return
			}
			w.saved = content
			w.publishDocument()
			return
		}
	})
}

// Flush saves the open note if it has unsaved changes.
func (w *Workspace) Flush(ctx context.Context) error {
	var err error
	if derr := w.do(func() { err = w.save(ctx) }); derr != nil {
		return derr
	}
	return err
}

// edit runs fn on the loop and returns the resulting snapshot.
func (w *Workspace) edit(fn func() error) (Snapshot, error) {
	var (
		snap Snapshot
		err  error
	)
	if derr := w.do(func() {
		err = fn()
		snap = w.snapshot()
	}); derr != nil {
		return Snapshot{}, derr
	}
	return snap, err
}

func (w *Workspace) withDoc(fn func(d *editor.Document) error) (Snapshot, error) {
	return w.edit(func() error {
		if w.doc == nil {
			return apperr.ErrNoDocument
		}
		return fn(w.doc)
	})
}

func (w *Workspace) rejected() error {
	if w.readOnly {
		return apperr.ErrReadOnly
	}
	return apperr.ErrRejected
}

func (w *Workspace) open(ctx context.Context, p string) error {
	if inTrash(p) {
		return fmt.Errorf("workspace: open %s: %w", p, apperr.ErrProtected)
	}
	if w.doc != nil && w.path == p {
		return nil
	}
	content, err := w.notes.Read(ctx, p)
	if err != nil {
		return err
	}
	if w.doc != nil {
		if err := w.save(ctx); err != nil {
			return err
		}
	}
	w.cancelJobs()
	if w.doc == nil {
		w.doc = editor.New(w, w.cfg.UndoLimit)
	}
	w.doc.Load(content)
	w.path = p
	w.saved = content
	w.gen++
	w.logger.Debug("workspace: opened", slog.String("path", p))
	w.publishDocument()
	return nil
}

func (w *Workspace) followLinks(ctx context.Context) error {
	links := w.activated
	w.activated = nil
	for _, text := range links {
		p, _, err := w.notes.ResolveLinkTarget(ctx, text)
		if err != nil {
			w.warn("link target", err)
			return err
		}
		if err := w.open(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// save writes the open note when it changed. The document is untouched on
// failure and a warning is published.
func (w *Workspace) save(ctx context.Context) error {
	if w.doc == nil {
		return nil
	}
	text := w.doc.Text()
	if text == w.saved {
		return nil
	}
	if err := w.notes.Save(ctx, w.path, text); err != nil {
		w.warn("save failed", err)
		return err
	}
	w.saved = text
	w.events.Publish(sse.Event{Type: sse.TypeDocumentSaved, Data: map[string]string{"path": w.path}})
	return nil
}

func (w *Workspace) saveQuietly(ctx context.Context) {
	_ = w.save(ctx)
}

func (w *Workspace) drop() {
	w.cancelJobs()
	w.doc = nil
	w.path = ""
	w.saved = ""
	w.gen++
}

func (w *Workspace) warn(msg string, err error) {
	w.logger.Warn("workspace: "+msg, slog.String("path", w.path), slog.String("error", err.Error()))
	w.events.Warn(msg + ": " + err.Error())
}

func (w *Workspace) publishDocument() {
	w.events.Publish(sse.Event{Type: sse.TypeDocument, Data: map[string]string{"path": w.path}})
}

// under reports whether p is root or lies beneath it, returning the part of
// p after root.
func under(p, root string) (string, bool) {
	if p == root {
		return "", true
	}
	if rest, ok := strings.CutPrefix(p, root+"/"); ok {
		return "/" + rest, true
	}
	return "", false
}

func inTrash(p string) bool {
	_, ok := under(path.Clean(p), models.TrashDir)
	return ok
}
