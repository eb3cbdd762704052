package index

// Index is what the note service and the sync/watch loops need from the
// cache.
type Index interface {
	UpsertNote(n NoteRow, body string, links []Link) error
	DeleteNote(path string) error
	Search(query string, limit int) ([]SearchResult, error)
	Backlinks(target string) ([]string, error)
	Outgoing(source string) ([]string, error)
	Checksums() (map[string]string, error)
}

var _ Index = (*DB)(nil)
