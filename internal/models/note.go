// Package models defines the domain types shared across quire.
package models

import "time"

// Special directories directly under the vault root.
const (
	TrashDir   = ".trash"
	JournalDir = ".journal"
)

// Kind tells what a NoteRef points at.
type Kind string

const (
	KindFile      Kind = "file"
	KindDirectory Kind = "directory"
	KindTrash     Kind = "trash"
	KindJournal   Kind = "journal"
)

// NoteRef is one entry of a vault listing. It is rebuilt on every listing
// and never stored.
type NoteRef struct {
	Path   string `json:"path"`
	Name   string `json:"name"`
	Kind   Kind   `json:"kind"`
	Parent string `json:"parent"`
}

// IsDir reports whether the entry is any kind of directory.
func (r NoteRef) IsDir() bool { return r.Kind != KindFile }

// NoteMetadata is a lightweight representation of a note file used by the
// index and by link rewriting.
type NoteMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
