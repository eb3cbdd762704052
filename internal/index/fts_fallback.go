//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

// Without FTS5 the notes table is scanned with LIKE.
func initFTS(*sql.DB) error { return nil }

func ftsUpsert(*sql.Tx, NoteRow, string) error { return nil }

func ftsDelete(*sql.Tx, string) error { return nil }

// Search returns notes whose link text, title or body contains every word
// of query, case-insensitively.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	words := strings.Fields(query)
	if len(words) == 0 {
		return nil, nil
	}

	var (
		where []string
		args  []any
	)
	for _, w := range words {
		like := "%" + escapeLike(w) + "%"
		where = append(where, `(link_text LIKE ? ESCAPE '\' OR title LIKE ? ESCAPE '\' OR body LIKE ? ESCAPE '\')`)
		args = append(args, like, like, like)
	}
	args = append(args, limit)

	rows, err := db.conn.Query(`
		SELECT path, link_text, title, substr(body, 1, 160)
		FROM notes
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY link_text
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Path, &r.LinkText, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
