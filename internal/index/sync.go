package index

import (
	"log/slog"
	"path"
	"strings"

	"github.com/starford/quire/internal/link"
	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/parser"
	"github.com/starford/quire/internal/storage"
)

// SyncStats counts what a Sync pass changed.
type SyncStats struct {
	Indexed int
	Removed int
}

// Sync reconciles idx with the vault on disk. Notes whose checksum changed
// are reparsed; rows for notes that are gone, trashed or hidden are removed.
// Per-note failures are logged and skipped.
func Sync(idx Index, store storage.Provider, logger *slog.Logger) (SyncStats, error) {
	var stats SyncStats

	metas, err := store.Notes("")
	if err != nil {
		return stats, err
	}
	known, err := idx.Checksums()
	if err != nil {
		return stats, err
	}

	live := make(map[string]bool, len(metas))
	for _, m := range metas {
		if !Indexable(m.Path) {
			continue
		}
		live[m.Path] = true
		if cs, ok := known[m.Path]; ok && cs == m.Checksum {
			continue
		}
		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := IndexFile(idx, m.Path, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		stats.Indexed++
	}

	for p := range known {
		if live[p] {
			continue
		}
		if err := idx.DeleteNote(p); err != nil {
			logger.Warn("sync: remove failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		stats.Removed++
	}

	if stats.Indexed+stats.Removed > 0 {
		logger.Info("sync: index updated", slog.Int("indexed", stats.Indexed), slog.Int("removed", stats.Removed))
	}
	return stats, nil
}

// Indexable reports whether the vault-relative path is a live note: a .md
// file outside the trash and every hidden directory except the journal.
func Indexable(rel string) bool {
	rel = path.Clean(strings.ReplaceAll(rel, "\\", "/"))
	if !strings.HasSuffix(rel, link.Ext) {
		return false
	}
	for i, seg := range strings.Split(rel, "/") {
		if strings.HasPrefix(seg, ".") && (i != 0 || seg != models.JournalDir) {
			return false
		}
	}
	return true
}

// IndexFile parses data and stores it under p. Each link is recorded
// against the note path its text resolves to.
func IndexFile(idx Index, p string, data []byte) error {
	note := parser.Parse(data)

	links := make([]Link, 0, len(note.Links))
	for _, text := range note.Links {
		links = append(links, Link{
			Target: path.Clean(strings.ReplaceAll(link.ToFilePath(text, "."), "\\", "/")),
			Text:   text,
		})
	}

	row := NoteRow{
		Path:     p,
		LinkText: link.FromFilePath(p, "."),
		Title:    note.Title,
		Checksum: storage.Checksum(data),
	}
	return idx.UpsertNote(row, note.Body, links)
}
