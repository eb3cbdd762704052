package index

import (
	"fmt"
	"time"
)

// NoteRow is one live note.
type NoteRow struct {
	Path      string
	LinkText  string // what [[...]] must contain to reach the note
	Title     string
	Checksum  string
	IndexedAt time.Time
}

// Link is one outgoing [[...]] reference: the path it resolves to and the
// text as written.
type Link struct {
	Target string
	Text   string
}

// SearchResult is one search hit.
type SearchResult struct {
	Path     string `json:"path"`
	LinkText string `json:"link_text"`
	Title    string `json:"title"`
	Snippet  string `json:"snippet"`
}

// UpsertNote replaces the row, search entry and outgoing links of n.Path in
// one transaction. Several links resolving to one target keep the first.
func (db *DB) UpsertNote(n NoteRow, body string, links []Link) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if n.IndexedAt.IsZero() {
		n.IndexedAt = time.Now()
	}
	_, err = tx.Exec(`
		INSERT INTO notes (path, link_text, title, checksum, body, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			link_text  = excluded.link_text,
			title      = excluded.title,
			checksum   = excluded.checksum,
			body       = excluded.body,
			indexed_at = excluded.indexed_at
	`, n.Path, n.LinkText, n.Title, n.Checksum, body, n.IndexedAt)
	if err != nil {
		return fmt.Errorf("index: upsert note %s: %w", n.Path, err)
	}
	if err := ftsUpsert(tx, n, body); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM links WHERE source = ?`, n.Path); err != nil {
		return fmt.Errorf("index: clear links of %s: %w", n.Path, err)
	}
	if len(links) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO links (source, target, text) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare link insert: %w", err)
		}
		defer stmt.Close()
		for _, l := range links {
			if _, err := stmt.Exec(n.Path, l.Target, l.Text); err != nil {
				return fmt.Errorf("index: insert link %s -> %s: %w", n.Path, l.Target, err)
			}
		}
	}
	return tx.Commit()
}

// DeleteNote forgets path. Links pointing at it stay: they still resolve to
// the same path if the note comes back.
func (db *DB) DeleteNote(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := ftsDelete(tx, path); err != nil {
		return err
	}
	for _, q := range []string{`DELETE FROM links WHERE source = ?`, `DELETE FROM notes WHERE path = ?`} {
		if _, err := tx.Exec(q, path); err != nil {
			return fmt.Errorf("index: delete %s: %w", path, err)
		}
	}
	return tx.Commit()
}

// Checksums maps every indexed path to the checksum it was indexed at.
func (db *DB) Checksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// Backlinks returns the sorted paths of notes linking to target.
func (db *DB) Backlinks(target string) ([]string, error) {
	return db.strings(`SELECT source FROM links WHERE target = ? ORDER BY source`, target)
}

// Outgoing returns the sorted paths source links to, whether or not they
// exist yet.
func (db *DB) Outgoing(source string) ([]string, error) {
	return db.strings(`SELECT target FROM links WHERE source = ? ORDER BY target`, source)
}

func (db *DB) strings(query, arg string) ([]string, error) {
	rows, err := db.conn.Query(query, arg)
	if err != nil {
		return nil, fmt.Errorf("index: query links: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
