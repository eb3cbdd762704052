package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/quire/internal/link"
	"github.com/starford/quire/internal/storage"
)

// EventCallback hears about every note the watcher indexed or dropped.
// kind is "created", "updated" or "deleted".
type EventCallback func(kind, path string)

// DefaultSettle is how long the vault must stay quiet before a batch of
// file events is applied.
const DefaultSettle = 150 * time.Millisecond

// Watcher applies edits made outside the editor to an Index. Events are
// batched per path until the vault settles, then each path is compared
// with what the index holds. A file whose checksum is already indexed is
// skipped, so the editor's own saves never come back as changes.
type Watcher struct {
	idx    Index
	store  storage.Provider
	root   string
	logger *slog.Logger
	notify EventCallback
	settle time.Duration
}

// NewWatcher creates a watcher for the vault at root. cb may be nil.
func NewWatcher(idx Index, store storage.Provider, root string, logger *slog.Logger, cb EventCallback) *Watcher {
	if cb == nil {
		cb = func(string, string) {}
	}
	return &Watcher{idx: idx, store: store, root: root, logger: logger, notify: cb, settle: DefaultSettle}
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := addTree(fw, w.root); err != nil {
		return err
	}
	w.logger.Info("watcher: started", slog.String("root", w.root))

	pending := make(map[string]bool)
	timer := time.NewTimer(w.settle)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher: stopped")
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := addTree(fw, ev.Name); err != nil {
						w.logger.Warn("watcher: watch new dir failed", slog.String("path", ev.Name), slog.String("error", err.Error()))
					}
					w.markTree(ev.Name, pending)
				}
			}
			if rel, ok := w.rel(ev.Name); ok {
				pending[rel] = true
			}
			timer.Reset(w.settle)

		case <-timer.C:
			w.apply(pending)
			clear(pending)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher: error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) apply(pending map[string]bool) {
	known, err := w.idx.Checksums()
	if err != nil {
		w.logger.Warn("watcher: read index failed", slog.String("error", err.Error()))
		return
	}
	for p := range pending {
		switch {
		case w.store.IsDir(p):
			// its files were queued when it appeared
		case strings.HasSuffix(p, link.Ext):
			w.applyFile(p, known)
		case !w.store.Exists(p):
			// a directory left: drop what was indexed beneath it
			for q := range known {
				if strings.HasPrefix(q, p+"/") {
					w.drop(q)
				}
			}
		}
	}
}

func (w *Watcher) applyFile(p string, known map[string]string) {
	prev, had := known[p]
	data, err := w.store.Read(p)
	if err != nil || !Indexable(p) {
		if had {
			w.drop(p)
		}
		return
	}
	if had && prev == storage.Checksum(data) {
		return
	}
	if err := IndexFile(w.idx, p, data); err != nil {
		w.logger.Warn("watcher: index failed", slog.String("path", p), slog.String("error", err.Error()))
		return
	}
	kind := "created"
	if had {
		kind = "updated"
	}
	w.logger.Debug("watcher: indexed", slog.String("path", p), slog.String("kind", kind))
	w.notify(kind, p)
}

func (w *Watcher) drop(p string) {
	if err := w.idx.DeleteNote(p); err != nil {
		w.logger.Warn("watcher: unindex failed", slog.String("path", p), slog.String("error", err.Error()))
		return
	}
	w.logger.Debug("watcher: unindexed", slog.String("path", p))
	w.notify("deleted", p)
}

func (w *Watcher) rel(abs string) (string, bool) {
	rel, err := filepath.Rel(w.root, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// markTree queues every note already inside a directory that just appeared.
func (w *Watcher) markTree(dir string, pending map[string]bool) {
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(p, link.Ext) {
			return nil
		}
		if rel, ok := w.rel(p); ok {
			pending[rel] = true
		}
		return nil
	})
}

func addTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fw.Add(p)
		}
		return nil
	})
}
