// Package display projects raw note text into its read-only form, where link
// brackets are dropped and only the link text remains.
package display

import (
	"strings"

	"github.com/starford/quire/internal/link"
)

// Span is one link in display text together with the raw span it came from.
// End-Start always equals len(Text) and RawEnd-RawStart-4.
type Span struct {
	Start    int    `json:"start"`
	End      int    `json:"end"`
	Text     string `json:"text"`
	RawStart int    `json:"raw_start"`
	RawEnd   int    `json:"raw_end"`
}

// Projection is the display form of a raw text.
type Projection struct {
	Text  string `json:"text"`
	Links []Span `json:"links"`
}

// Project strips the brackets of every link in raw in a single left to right
// pass. The result is never persisted.
func Project(raw string) Projection {
	var (
		b     strings.Builder
		spans []Span
		last  int
	)
	b.Grow(len(raw))
	for s := range link.All(raw) {
		b.WriteString(raw[last:s.Start])
		start := b.Len()
		b.WriteString(s.Text)
		spans = append(spans, Span{
			Start:    start,
			End:      b.Len(),
			Text:     s.Text,
			RawStart: s.Start,
			RawEnd:   s.End,
		})
		last = s.End
	}
	b.WriteString(raw[last:])
	return Projection{Text: b.String(), Links: spans}
}

// HitTest returns the link under a display position. A position exactly on
// either edge of a link counts as a hit.
func (p Projection) HitTest(pos int) (string, bool) {
	for _, s := range p.Links {
		if s.Start > pos {
			break
		}
		if pos <= s.End {
			return s.Text, true
		}
	}
	return "", false
}

// RawOffset maps a display position back into raw text. Positions inside a
// link land on the same character of the link text, which sits two bytes
// further in raw text. A position at the end of a link maps past its closing
// brackets.
func (p Projection) RawOffset(pos int) int {
	if pos < 0 {
		return 0
	}
	shift := 0
	for _, s := range p.Links {
		if pos < s.Start {
			break
		}
		if pos < s.End {
			return pos + shift + 2
		}
		shift += 4
	}
	return pos + shift
}
