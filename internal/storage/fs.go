package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/models"
)

const tmpPrefix = ".quire-tmp-"

// FS implements Provider backed by the local file system.
type FS struct {
	root string // absolute path to vault directory
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute vault directory.
func (f *FS) Root() string { return f.root }

// safePath resolves a relative path against the vault root and rejects
// any result that escapes it (directory traversal).
func (f *FS) safePath(rel string) (string, error) {
	if rel == "" || rel == "." {
		return f.root, nil
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", rel)
	}
	joined := filepath.Join(f.root, cleaned)
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	// Ensure the resolved path is still under root.
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("storage: path escapes vault root: %s", rel)
	}
	return abs, nil
}

func (f *FS) rel(abs string) string {
	r, err := filepath.Rel(f.root, abs)
	if err != nil {
		return abs
	}
	return filepath.ToSlash(r)
}

// List walks dir and returns the vault tree in display order.
func (f *FS) List(dir string) ([]models.NoteRef, error) {
	base, err := f.safePath(dir)
	if err != nil {
		return nil, err
	}
	var out []models.NoteRef
	if err := f.scan(base, &out); err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	return out, nil
}

func (f *FS) scan(dir string, out *[]models.NoteRef) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	parent := f.rel(dir)
	atRoot := dir == f.root

	var dirs, files, special []fs.DirEntry
	for _, e := range entries {
		name := e.Name()
		switch {
		case atRoot && e.IsDir() && (name == models.TrashDir || name == models.JournalDir):
			special = append(special, e)
		case strings.HasPrefix(name, "."):
		case e.IsDir():
			dirs = append(dirs, e)
		case strings.HasSuffix(name, ".md"):
			files = append(files, e)
		}
	}
	// os.ReadDir sorts by name, so .journal precedes .trash.
	for _, group := range [][]fs.DirEntry{dirs, files, special} {
		for _, e := range group {
			abs := filepath.Join(dir, e.Name())
			ref := models.NoteRef{
				Path:   f.rel(abs),
				Name:   e.Name(),
				Kind:   models.KindFile,
				Parent: parent,
			}
			if !e.IsDir() {
				ref.Name = strings.TrimSuffix(e.Name(), ".md")
				*out = append(*out, ref)
				continue
			}
			ref.Kind = models.KindDirectory
			if atRoot && e.Name() == models.TrashDir {
				ref.Kind = models.KindTrash
			} else if atRoot && e.Name() == models.JournalDir {
				ref.Kind = models.KindJournal
			}
			*out = append(*out, ref)
			if err := f.scan(abs, out); err != nil {
				return err
			}
		}
	}
	return nil
}

// Notes walks dir (relative to root) and returns metadata for every .md file.
// Hidden directories are skipped, except the trash and journal.
func (f *FS) Notes(dir string) ([]models.NoteMetadata, error) {
	base, err := f.safePath(dir)
	if err != nil {
		return nil, err
	}
	var out []models.NoteMetadata
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		name := d.Name()
		if d.IsDir() {
			if p != base && strings.HasPrefix(name, ".") && !f.special(p) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(name, ".md") || strings.HasPrefix(name, tmpPrefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		out = append(out, models.NoteMetadata{
			Path:      f.rel(p),
			Checksum:  Checksum(data),
			UpdatedAt: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: notes: %w", err)
	}
	return out, nil
}

func (f *FS) special(abs string) bool {
	return filepath.Dir(abs) == f.root &&
		(filepath.Base(abs) == models.TrashDir || filepath.Base(abs) == models.JournalDir)
}

// Read returns the raw bytes of a vault file.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// Write atomically writes content: tmp file → fsync → rename.
func (f *FS) Write(path string, content []byte) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, tmpPrefix+"*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// Create makes an empty file, creating missing parents.
func (f *FS) Create(path string) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}
	file, err := os.OpenFile(abs, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("storage: create %s: %w", path, apperr.ErrAlreadyExists)
		}
		return fmt.Errorf("storage: create %s: %w", path, err)
	}
	return file.Close()
}

// Exists reports whether path exists inside the vault.
func (f *FS) Exists(path string) bool {
	abs, err := f.safePath(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(abs)
	return err == nil
}

// IsDir reports whether path is a directory inside the vault.
func (f *FS) IsDir(path string) bool {
	abs, err := f.safePath(path)
	if err != nil {
		return false
	}
	info, err := os.Stat(abs)
	return err == nil && info.IsDir()
}

// Mkdir creates a directory and any missing parents.
func (f *FS) Mkdir(path string) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir %s: %w", path, err)
	}
	return nil
}

// Move relocates a file or directory within the vault.
func (f *FS) Move(src, dst string) error {
	absOld, err := f.safePath(src)
	if err != nil {
		return err
	}
	absNew, err := f.safePath(dst)
	if err != nil {
		return err
	}
	if _, err := os.Stat(absNew); err == nil {
		return fmt.Errorf("storage: move to %s: %w", dst, apperr.ErrAlreadyExists)
	}
	dir := filepath.Dir(absNew)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir for move: %w", err)
	}
	if err := os.Rename(absOld, absNew); err != nil {
		return fmt.Errorf("storage: move: %w", err)
	}
	return nil
}

// Rename renames a file or directory without creating parents.
func (f *FS) Rename(oldPath, newPath string) error {
	absOld, err := f.safePath(oldPath)
	if err != nil {
		return err
	}
	absNew, err := f.safePath(newPath)
	if err != nil {
		return err
	}
	if absOld == absNew {
		return nil
	}
	if _, err := os.Stat(absNew); err == nil {
		return fmt.Errorf("storage: rename to %s: %w", newPath, apperr.ErrAlreadyExists)
	}
	if err := os.Rename(absOld, absNew); err != nil {
		return fmt.Errorf("storage: rename %s: %w", oldPath, err)
	}
	return nil
}

// Trash moves path into the trash directory. Name clashes get a numeric
// suffix: note.md, note_1.md, note_2.md.
func (f *FS) Trash(path string) (string, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return "", err
	}
	if abs == f.root {
		return "", fmt.Errorf("storage: trash root: %w", apperr.ErrProtected)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", fmt.Errorf("storage: trash %s: %w", path, err)
	}
	trash := filepath.Join(f.root, models.TrashDir)
	if err := os.MkdirAll(trash, 0o755); err != nil {
		return "", fmt.Errorf("storage: mkdir trash: %w", err)
	}

	name := filepath.Base(abs)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	dst := filepath.Join(trash, name)
	for i := 1; ; i++ {
		if _, err := os.Stat(dst); errors.Is(err, fs.ErrNotExist) {
			break
		}
		dst = filepath.Join(trash, stem+"_"+strconv.Itoa(i)+ext)
	}
	if err := os.Rename(abs, dst); err != nil {
		return "", fmt.Errorf("storage: trash %s: %w", path, err)
	}
	return f.rel(dst), nil
}

// RemoveDir removes an empty directory.
func (f *FS) RemoveDir(path string) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	if abs == f.root {
		return fmt.Errorf("storage: remove root: %w", apperr.ErrProtected)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return fmt.Errorf("storage: remove dir %s: %w", path, err)
	}
	if len(entries) > 0 {
		return fmt.Errorf("storage: remove dir %s: %w", path, apperr.ErrNotEmpty)
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("storage: remove dir %s: %w", path, err)
	}
	return nil
}

// Delete removes a file from the vault.
func (f *FS) Delete(path string) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("storage: delete %s: %w", path, err)
	}
	return nil
}
