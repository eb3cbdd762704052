package prompt

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/storage"
)

// Library reads prompt definitions: one subdirectory per prompt name under
// dir, each holding .md fragments.
type Library struct {
	store storage.Provider
	dir   string
}

// NewLibrary returns a Library over dir inside store.
func NewLibrary(store storage.Provider, dir string) *Library {
	return &Library{store: store, dir: path.Clean(dir)}
}

// Names lists the available prompt names, sorted.
func (l *Library) Names() ([]string, error) {
	if !l.store.IsDir(l.dir) {
		return nil, nil
	}
	refs, err := l.store.List(l.dir)
	if err != nil {
		return nil, fmt.Errorf("prompt: list: %w", err)
	}
	var names []string
	for _, r := range refs {
		if r.Kind == models.KindDirectory && r.Parent == l.dir {
			names = append(names, r.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Files returns the fragments of prompt name keyed by file name.
func (l *Library) Files(name string) (map[string]string, error) {
	dir := path.Join(l.dir, name)
	if name == "" || strings.HasPrefix(name, ".") || strings.ContainsAny(name, `/\`) || !l.store.IsDir(dir) {
		return nil, nil
	}
	refs, err := l.store.List(dir)
	if err != nil {
		return nil, fmt.Errorf("prompt: list %s: %w", name, err)
	}
	files := make(map[string]string)
	for _, r := range refs {
		if r.Kind != models.KindFile || r.Parent != dir {
			continue
		}
		data, err := l.store.Read(r.Path)
		if err != nil {
			return nil, fmt.Errorf("prompt: read %s: %w", r.Path, err)
		}
		files[path.Base(r.Path)] = string(data)
	}
	return files, nil
}

// Compose builds the full model prompt: system.md, then assistant.md, then
// the remaining fragments in name order, followed by the user text.
func Compose(files map[string]string, userText string) string {
	var parts []string
	for _, first := range []string{"system.md", "assistant.md"} {
		if c, ok := files[first]; ok {
			parts = append(parts, c)
		}
	}
	rest := make([]string, 0, len(files))
	for name := range files {
		if name != "system.md" && name != "assistant.md" {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		parts = append(parts, files[name])
	}
	return strings.Join(parts, "\n\n") + "\n\nUser text to process:\n" + userText
}
