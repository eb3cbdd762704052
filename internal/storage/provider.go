// Package storage defines the vault file-system abstraction.
package storage

import "github.com/starford/quire/internal/models"

// Provider is the interface for vault file operations. Every path is
// relative to the vault root.
type Provider interface {
	// List returns the tree under dir: directories (each followed by its
	// contents) before files, with the trash and journal directories last
	// when dir is the root. Other hidden entries are skipped.
	List(dir string) ([]models.NoteRef, error)
	// Notes returns metadata for every .md file under dir.
	Notes(dir string) ([]models.NoteMetadata, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parents.
	Write(path string, content []byte) error
	// Create makes an empty file and its parents. It fails with
	// apperr.ErrAlreadyExists when path is taken.
	Create(path string) error
	// Exists reports whether anything exists at path.
	Exists(path string) bool
	// IsDir reports whether path is a directory.
	IsDir(path string) bool
	// Mkdir creates the directory path and its parents.
	Mkdir(path string) error
	// Move relocates src to dst, creating dst's parents.
	Move(src, dst string) error
	// Rename renames oldPath to newPath in place. It fails with
	// apperr.ErrAlreadyExists when newPath is taken.
	Rename(oldPath, newPath string) error
	// Trash moves path into the trash directory under a unique name and
	// returns its new path.
	Trash(path string) (string, error)
	// RemoveDir removes an empty directory.
	RemoveDir(path string) error
	// Delete removes the file at path for good.
	Delete(path string) error
}
