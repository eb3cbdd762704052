// Package noteservice coordinates vault storage, the link model and the
// index. It is the only layer that turns link texts into files.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/index"
	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/storage"
)

// Event kinds passed to the notifier.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// HomeNote is created in a fresh vault.
const HomeNote = "home.md"

// Notifier receives vault change events.
type Notifier func(kind, path string)

// Option configures a Service.
type Option func(*Service)

// WithNotifier sets the change callback.
func WithNotifier(fn Notifier) Option { return func(s *Service) { s.notify = fn } }

// WithClock overrides time.Now, used for journal dates.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// Service coordinates storage and index operations.
type Service struct {
	store  storage.Provider
	db     index.Index
	logger *slog.Logger
	notify Notifier
	now    func() time.Time
}

// NewService creates a new note service.
func NewService(store storage.Provider, db index.Index, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:  store,
		db:     db,
		logger: logger,
		notify: func(string, string) {},
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// EnsureLayout creates the trash and journal directories and a home note
// when missing.
func (s *Service) EnsureLayout(_ context.Context) error {
	for _, dir := range []string{models.TrashDir, models.JournalDir} {
		if err := s.store.Mkdir(dir); err != nil {
			return fmt.Errorf("noteservice: layout: %w", err)
		}
	}
	if !s.store.Exists(HomeNote) {
		if err := s.store.Create(HomeNote); err != nil && !errors.Is(err, apperr.ErrAlreadyExists) {
			return fmt.Errorf("noteservice: layout: %w", err)
		}
		s.reindex(HomeNote)
	}
	return nil
}

// List returns the full vault tree.
func (s *Service) List(_ context.Context) ([]models.NoteRef, error) {
	refs, err := s.store.List("")
	if err != nil {
		return nil, fmt.Errorf("noteservice: list: %w", err)
	}
	return refs, nil
}

// Read returns the raw content of a note.
func (s *Service) Read(_ context.Context, p string) (string, error) {
	if s.store.IsDir(p) {
		return "", fmt.Errorf("noteservice: read %s: %w", p, apperr.ErrNotFound)
	}
	data, err := s.store.Read(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("noteservice: read %s: %w", p, apperr.ErrNotFound)
		}
		return "", fmt.Errorf("noteservice: read %s: %w", p, err)
	}
	return string(data), nil
}

// Save writes content to p and reindexes it.
func (s *Service) Save(_ context.Context, p, content string) error {
	if s.store.IsDir(p) {
		return fmt.Errorf("noteservice: save %s: %w", p, apperr.ErrConflict)
	}
	existed := s.store.Exists(p)
	if err := s.store.Write(p, []byte(content)); err != nil {
		return fmt.Errorf("noteservice: save %s: %w", p, err)
	}
	s.indexData(p, []byte(content))
	if existed {
		s.notify(EventUpdated, p)
	} else {
		s.notify(EventCreated, p)
	}
	return nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	res, err := s.db.Search(query, limit)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(res), nil
}

// Backlinks returns all note paths that link to the given target.
func (s *Service) Backlinks(_ context.Context, target string) ([]string, error) {
	bl, err := s.db.Backlinks(clean(target))
	if err != nil {
		return nil, err
	}
	return nonNilSlice(bl), nil
}

// Outgoing returns the paths the note at source links to.
func (s *Service) Outgoing(_ context.Context, source string) ([]string, error) {
	out, err := s.db.Outgoing(clean(source))
	if err != nil {
		return nil, err
	}
	return nonNilSlice(out), nil
}

// IndexFile parses data and upserts it into the index when the path is
// indexable. Exported so that sync and watcher callers can reuse it.
func (s *Service) IndexFile(p string, data []byte) error {
	if !index.Indexable(p) {
		return s.db.DeleteNote(p)
	}
	return index.IndexFile(s.db, p, data)
}

// IsSpecial reports whether p is the trash or journal directory itself.
func IsSpecial(p string) bool {
	p = clean(p)
	return p == models.TrashDir || p == models.JournalDir
}

// InTrash reports whether p lies inside the trash directory.
func InTrash(p string) bool {
	p = clean(p)
	return p == models.TrashDir || strings.HasPrefix(p, models.TrashDir+"/")
}

func (s *Service) indexData(p string, data []byte) {
	if err := s.IndexFile(p, data); err != nil {
		s.logger.Warn("index failed", slog.String("path", p), slog.String("error", err.Error()))
	}
}

func (s *Service) reindex(p string) {
	data, err := s.store.Read(p)
	if err != nil {
		s.logger.Warn("reindex: read failed", slog.String("path", p), slog.String("error", err.Error()))
		return
	}
	s.indexData(p, data)
}

// resync brings the whole index up to date after a tree-level change.
func (s *Service) resync() {
	if _, err := index.Sync(s.db, s.store, s.logger); err != nil {
		s.logger.Warn("index sync failed", slog.String("error", err.Error()))
	}
}

func clean(p string) string {
	return path.Clean(strings.ReplaceAll(p, "\\", "/"))
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
