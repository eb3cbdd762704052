package noteservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/index"
	"github.com/starford/quire/internal/link"
)

// ResolveLinkTarget maps linkText to its note path, creating an empty note
// (and its parent directories) when none exists. created reports whether a
// file was made.
func (s *Service) ResolveLinkTarget(_ context.Context, linkText string) (p string, created bool, err error) {
	text := strings.TrimSpace(link.Extract(linkText))
	if text == "" {
		return "", false, fmt.Errorf("noteservice: resolve link: empty link text: %w", apperr.ErrInvalid)
	}
	p = clean(link.ToFilePath(text, "."))
	if s.store.IsDir(p) {
		return "", false, fmt.Errorf("noteservice: resolve link %q: %w", text, apperr.ErrConflict)
	}
	if s.store.Exists(p) {
		return p, false, nil
	}
	if err := s.store.Create(p); err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			return p, false, nil
		}
		return "", false, fmt.Errorf("noteservice: resolve link %q: %w", text, err)
	}
	s.indexData(p, nil)
	s.logger.Info("link target created", slog.String("path", p))
	s.notify(EventCreated, p)
	return p, true, nil
}

// OnRename rewrites every link in the vault that resolved to oldPath so it
// resolves to newPath. When newPath is a directory every note beneath it is
// handled. It returns the paths of the notes that changed.
func (s *Service) OnRename(ctx context.Context, oldPath, newPath string) ([]string, error) {
	return s.rewriteLinks(ctx, clean(oldPath), clean(newPath))
}

// OnMove is OnRename for a file or directory that changed parent.
func (s *Service) OnMove(ctx context.Context, oldPath, newPath string) ([]string, error) {
	return s.rewriteLinks(ctx, clean(oldPath), clean(newPath))
}

type renamePair struct{ from, to string }

func (s *Service) rewriteLinks(ctx context.Context, oldPath, newPath string) ([]string, error) {
	metas, err := s.store.Notes("")
	if err != nil {
		return nil, fmt.Errorf("noteservice: rewrite links: %w", err)
	}

	var pairs []renamePair
	if s.store.IsDir(newPath) {
		prefix := newPath + "/"
		for _, m := range metas {
			if rel, ok := strings.CutPrefix(m.Path, prefix); ok {
				pairs = append(pairs, renamePair{from: oldPath + "/" + rel, to: m.Path})
			}
		}
	} else {
		pairs = []renamePair{{from: oldPath, to: newPath}}
	}
	if len(pairs) == 0 {
		return []string{}, nil
	}

	changed := []string{}
	for _, m := range metas {
		if err := ctx.Err(); err != nil {
			return changed, err
		}
		if InTrash(m.Path) {
			continue
		}
		data, err := s.store.Read(m.Path)
		if err != nil {
			s.logger.Warn("rewrite links: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		content := string(data)
		dirty := false
		for _, pr := range pairs {
			if out, ok := link.Rewrite(content, pr.from, pr.to, "."); ok {
				content, dirty = out, true
			}
		}
		if !dirty {
			continue
		}
		if err := s.store.Write(m.Path, []byte(content)); err != nil {
			return changed, fmt.Errorf("noteservice: rewrite links in %s: %w", m.Path, err)
		}
		s.indexData(m.Path, []byte(content))
		s.notify(EventUpdated, m.Path)
		changed = append(changed, m.Path)
	}
	if len(changed) > 0 {
		s.logger.Info("links rewritten",
			slog.String("from", oldPath),
			slog.String("to", newPath),
			slog.Int("notes", len(changed)),
		)
	}
	return changed, nil
}

// Match is one quick-open result.
type Match struct {
	Path     string `json:"path"`
	LinkText string `json:"link_text"`
	Score    int    `json:"score"`
}

// QuickOpen fuzzy-matches query against the link text of every live note.
// An empty query returns notes in link-text order.
func (s *Service) QuickOpen(_ context.Context, query string, limit int) ([]Match, error) {
	if limit <= 0 {
		limit = 20
	}
	metas, err := s.store.Notes("")
	if err != nil {
		return nil, fmt.Errorf("noteservice: quick open: %w", err)
	}
	var paths, texts []string
	for _, m := range metas {
		if !index.Indexable(m.Path) {
			continue
		}
		paths = append(paths, m.Path)
		texts = append(texts, link.FromFilePath(m.Path, "."))
	}

	out := []Match{}
	if strings.TrimSpace(query) == "" {
		order := make([]int, len(texts))
		for i := range order {
			order[i] = i
		}
		sort.Slice(order, func(a, b int) bool { return texts[order[a]] < texts[order[b]] })
		for _, i := range order {
			if len(out) == limit {
				break
			}
			out = append(out, Match{Path: paths[i], LinkText: texts[i]})
		}
		return out, nil
	}

	for _, m := range fuzzy.Find(query, texts) {
		if len(out) == limit {
			break
		}
		out = append(out, Match{Path: paths[m.Index], LinkText: m.Str, Score: m.Score})
	}
	return out, nil
}
