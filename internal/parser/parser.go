// Package parser reads the parts of a note the index stores: an optional
// YAML front matter block, the title and the distinct link texts.
package parser

import (
	"bytes"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/quire/internal/link"
)

const fence = "---"

// Note is a parsed note.
type Note struct {
	Meta  map[string]any // nil without valid front matter
	Body  string
	Title string
	Links []string // link texts in order of first use
}

// Parse never fails on malformed input: broken front matter is treated as
// body text and unterminated links are ignored.
func Parse(data []byte) Note {
	meta, body := splitMeta(data)
	return Note{
		Meta:  meta,
		Body:  body,
		Title: title(meta, body),
		Links: linkTexts(body),
	}
}

func splitMeta(data []byte) (map[string]any, string) {
	src := bytes.TrimLeft(data, "\r\n")
	if !bytes.HasPrefix(src, []byte(fence+"\n")) && !bytes.HasPrefix(src, []byte(fence+"\r\n")) {
		return nil, string(data)
	}
	rest := src[len(fence):]
	end := bytes.Index(rest, []byte("\n"+fence))
	if end < 0 {
		return nil, string(data)
	}

	var meta map[string]any
	if err := yaml.Unmarshal(rest[:end], &meta); err != nil || meta == nil {
		return nil, string(data)
	}
	body := rest[end+1+len(fence):]
	return meta, strings.TrimLeft(string(body), "\r\n")
}

func linkTexts(body string) []string {
	var out []string
	seen := make(map[string]bool)
	for sp := range link.All(body) {
		text := strings.TrimSpace(sp.Text)
		if text == "" || seen[text] {
			continue
		}
		seen[text] = true
		out = append(out, text)
	}
	return out
}

// title prefers a front matter title, then the first level-one heading.
// Journal entries get theirs from the dated heading they start with.
func title(meta map[string]any, body string) string {
	if s, ok := meta["title"].(string); ok && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s)
	}
	for line := range strings.SplitSeq(body, "\n") {
		if h, ok := strings.CutPrefix(strings.TrimSpace(line), "# "); ok {
			return strings.TrimSpace(h)
		}
	}
	return ""
}
