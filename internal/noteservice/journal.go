package noteservice

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/quire/internal/journal"
)

// ResolveJournalEntry returns the path of the journal entry for date,
// creating it with a dated heading when absent. Existing entries are never
// modified.
func (s *Service) ResolveJournalEntry(_ context.Context, date time.Time) (p string, created bool, err error) {
	p = journal.RelPath(date)
	if s.store.Exists(p) {
		return p, false, nil
	}
	header := []byte(journal.Header(date))
	if err := s.store.Write(p, header); err != nil {
		return "", false, fmt.Errorf("noteservice: journal %s: %w", p, err)
	}
	s.indexData(p, header)
	s.logger.Info("journal entry created", slog.String("path", p))
	s.notify(EventCreated, p)
	return p, true, nil
}

// Today resolves the journal entry for the current date.
func (s *Service) Today(ctx context.Context) (string, bool, error) {
	return s.ResolveJournalEntry(ctx, s.now())
}
