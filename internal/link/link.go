// Package link finds, resolves, and rewrites [[wiki links]] in raw note text.
package link

import (
	"iter"
	"path/filepath"
	"regexp"
	"strings"
)

// Ext is the file extension of every note.
const Ext = ".md"

var (
	wikilinkRe   = regexp.MustCompile(`\[\[([^\]]+)\]\]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Span is one [[Text]] occurrence in raw text. Start and End are half-open
// byte offsets covering the brackets.
type Span struct {
	Start int
	End   int
	Text  string
}

// All yields every link in text from left to right. The sequence can be
// ranged over any number of times.
func All(text string) iter.Seq[Span] {
	return func(yield func(Span) bool) {
		for _, m := range wikilinkRe.FindAllStringSubmatchIndex(text, -1) {
			if !yield(Span{Start: m[0], End: m[1], Text: text[m[2]:m[3]]}) {
				return
			}
		}
	}
}

// FindAll returns every link in text ordered by position.
func FindAll(text string) []Span {
	var out []Span
	for s := range All(text) {
		out = append(out, s)
	}
	return out
}

// At returns the text of the link whose raw span contains pos. Both edges
// count as inside.
func At(text string, pos int) (string, bool) {
	for s := range All(text) {
		if s.Start <= pos && pos <= s.End {
			return s.Text, true
		}
		if s.Start > pos {
			break
		}
	}
	return "", false
}

// Extract returns the text inside a complete [[...]] link, or s unchanged
// when s is not one.
func Extract(s string) string {
	m := wikilinkRe.FindStringSubmatchIndex(s)
	if m == nil || m[0] != 0 {
		return s
	}
	return s[m[2]:m[3]]
}

// Wiki wraps text in link brackets.
func Wiki(text string) string {
	return "[[" + text + "]]"
}

// Sanitize trims name and collapses every whitespace run into one underscore.
func Sanitize(name string) string {
	return whitespaceRe.ReplaceAllString(strings.TrimSpace(name), "_")
}

// ToFilePath resolves link text to a note path under baseDir. Each
// slash-separated segment is sanitized on its own and the last one gets the
// note extension.
func ToFilePath(linkText, baseDir string) string {
	parts := strings.Split(linkText, "/")
	for i, p := range parts {
		parts[i] = Sanitize(p)
	}
	parts[len(parts)-1] += Ext
	return filepath.Join(append([]string{baseDir}, parts...)...)
}

// FromFilePath derives link text from a note path. Underscores become spaces
// in the file name only; directory names are left as stored.
func FromFilePath(path, baseDir string) string {
	rel, err := filepath.Rel(baseDir, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	rel = strings.TrimSuffix(rel, Ext)

	parts := strings.Split(rel, "/")
	last := len(parts) - 1
	parts[last] = strings.ReplaceAll(parts[last], "_", " ")
	return strings.Join(parts, "/")
}

// Rewrite points every link in content that resolves to oldPath at newPath
// instead. It reports whether anything changed.
func Rewrite(content, oldPath, newPath, baseDir string) (string, bool) {
	oldPath = filepath.Clean(oldPath)
	replacement := Wiki(FromFilePath(newPath, baseDir))

	var b strings.Builder
	last := 0
	changed := false
	for s := range All(content) {
		if filepath.Clean(ToFilePath(s.Text, baseDir)) != oldPath {
			continue
		}
		b.WriteString(content[last:s.Start])
		b.WriteString(replacement)
		last = s.End
		changed = true
	}
	if !changed {
		return content, false
	}
	b.WriteString(content[last:])
	out := b.String()
	return out, out != content
}
