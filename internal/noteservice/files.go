package noteservice

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/link"
	"github.com/starford/quire/internal/models"
)

// CreateNote creates an empty note called name inside dir. The name is
// sanitized and given the note extension.
func (s *Service) CreateNote(_ context.Context, dir, name string) (string, error) {
	name = noteName(name)
	if name == "" {
		return "", fmt.Errorf("noteservice: create note: empty name: %w", apperr.ErrInvalid)
	}
	dir = clean(dir)
	if InTrash(dir) {
		return "", fmt.Errorf("noteservice: create note in %s: %w", dir, apperr.ErrProtected)
	}
	p := clean(path.Join(dir, name))
	if err := s.store.Create(p); err != nil {
		return "", fmt.Errorf("noteservice: create note: %w", err)
	}
	s.indexData(p, nil)
	s.notify(EventCreated, p)
	return p, nil
}

// CreateDirectory creates directory name inside parent.
func (s *Service) CreateDirectory(_ context.Context, parent, name string) (string, error) {
	name = link.Sanitize(name)
	if name == "" || strings.HasPrefix(name, ".") || strings.Contains(name, "/") {
		return "", fmt.Errorf("noteservice: create directory %q: %w", name, apperr.ErrInvalid)
	}
	parent = clean(parent)
	if InTrash(parent) {
		return "", fmt.Errorf("noteservice: create directory in %s: %w", parent, apperr.ErrProtected)
	}
	p := clean(path.Join(parent, name))
	if s.store.Exists(p) {
		return "", fmt.Errorf("noteservice: create directory %s: %w", p, apperr.ErrAlreadyExists)
	}
	if err := s.store.Mkdir(p); err != nil {
		return "", fmt.Errorf("noteservice: create directory: %w", err)
	}
	s.notify(EventCreated, p)
	return p, nil
}

// DeleteDirectory removes an empty directory. The trash and journal cannot
// be removed.
func (s *Service) DeleteDirectory(_ context.Context, p string) error {
	p = clean(p)
	if IsSpecial(p) || p == "." {
		return fmt.Errorf("noteservice: delete directory %s: %w", p, apperr.ErrProtected)
	}
	if !s.store.IsDir(p) {
		return fmt.Errorf("noteservice: delete directory %s: %w", p, apperr.ErrNotFound)
	}
	if err := s.store.RemoveDir(p); err != nil {
		return fmt.Errorf("noteservice: delete directory: %w", err)
	}
	s.notify(EventDeleted, p)
	return nil
}

// Rename gives the file or directory at p a new name in the same parent and
// rewrites links to it. It returns the new path and the notes whose links
// changed.
func (s *Service) Rename(ctx context.Context, p, newName string) (string, []string, error) {
	p = clean(p)
	if IsSpecial(p) || p == "." {
		return "", nil, fmt.Errorf("noteservice: rename %s: %w", p, apperr.ErrProtected)
	}
	if !s.store.Exists(p) {
		return "", nil, fmt.Errorf("noteservice: rename %s: %w", p, apperr.ErrNotFound)
	}
	isDir := s.store.IsDir(p)
	if isDir {
		newName = link.Sanitize(newName)
	} else {
		newName = noteName(newName)
	}
	if newName == "" || strings.HasPrefix(newName, ".") {
		return "", nil, fmt.Errorf("noteservice: rename %s: %w", p, apperr.ErrInvalid)
	}
	dst := clean(path.Join(path.Dir(p), newName))
	if dst == p {
		return p, []string{}, nil
	}
	if err := s.store.Rename(p, dst); err != nil {
		return "", nil, fmt.Errorf("noteservice: rename: %w", err)
	}
	s.moved(p, dst, isDir)
	changed, err := s.OnRename(ctx, p, dst)
	if err != nil {
		return dst, changed, err
	}
	return dst, changed, nil
}

// Move relocates the file or directory at p into targetDir and rewrites
// links to it. Items cannot be moved onto themselves, into their own
// subtree, or into the trash or journal (use Trash for the former).
func (s *Service) Move(ctx context.Context, p, targetDir string) (string, []string, error) {
	p, targetDir = clean(p), clean(targetDir)
	if IsSpecial(p) || p == "." {
		return "", nil, fmt.Errorf("noteservice: move %s: %w", p, apperr.ErrProtected)
	}
	if !s.store.Exists(p) {
		return "", nil, fmt.Errorf("noteservice: move %s: %w", p, apperr.ErrNotFound)
	}
	if targetDir != "." && !s.store.IsDir(targetDir) {
		return "", nil, fmt.Errorf("noteservice: move into %s: %w", targetDir, apperr.ErrNotFound)
	}
	if underSpecial(targetDir) {
		return "", nil, fmt.Errorf("noteservice: move into %s: %w", targetDir, apperr.ErrProtected)
	}
	if path.Dir(p) == targetDir || targetDir == p || strings.HasPrefix(targetDir, p+"/") {
		return "", nil, fmt.Errorf("noteservice: move %s into %s: %w", p, targetDir, apperr.ErrConflict)
	}
	isDir := s.store.IsDir(p)
	dst := clean(path.Join(targetDir, path.Base(p)))
	if err := s.store.Move(p, dst); err != nil {
		return "", nil, fmt.Errorf("noteservice: move: %w", err)
	}
	s.moved(p, dst, isDir)
	changed, err := s.OnMove(ctx, p, dst)
	return dst, changed, err
}

// Trash moves p into the trash under a unique name. Links to it are left
// as they are.
func (s *Service) Trash(_ context.Context, p string) (string, error) {
	p = clean(p)
	if IsSpecial(p) || p == "." {
		return "", fmt.Errorf("noteservice: trash %s: %w", p, apperr.ErrProtected)
	}
	if InTrash(p) {
		return "", fmt.Errorf("noteservice: trash %s: already in trash: %w", p, apperr.ErrConflict)
	}
	isDir := s.store.IsDir(p)
	dst, err := s.store.Trash(p)
	if err != nil {
		return "", fmt.Errorf("noteservice: trash: %w", err)
	}
	if isDir {
		s.resync()
	} else if err := s.db.DeleteNote(p); err != nil {
		s.logger.Warn("trash: unindex failed", slog.String("path", p), slog.String("error", err.Error()))
	}
	s.logger.Info("moved to trash", slog.String("path", p), slog.String("trash_path", dst))
	s.notify(EventDeleted, p)
	return dst, nil
}

func (s *Service) moved(from, to string, isDir bool) {
	if isDir {
		s.resync()
	} else {
		if err := s.db.DeleteNote(from); err != nil {
			s.logger.Warn("unindex failed", slog.String("path", from), slog.String("error", err.Error()))
		}
		s.reindex(to)
	}
	s.notify(EventDeleted, from)
	s.notify(EventCreated, to)
}

func noteName(name string) string {
	name = link.Sanitize(strings.TrimSuffix(strings.TrimSpace(name), link.Ext))
	if name == "" || strings.Contains(name, "/") {
		return ""
	}
	return name + link.Ext
}

func underSpecial(dir string) bool {
	for _, sp := range []string{models.TrashDir, models.JournalDir} {
		if dir == sp || strings.HasPrefix(dir, sp+"/") {
			return true
		}
	}
	return false
}
