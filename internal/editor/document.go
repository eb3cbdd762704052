// Package editor holds the in-memory state of one open note: raw text,
// cursor, undo history, block classification and pending prompt regions.
//
// Raw text is the only source of truth. Display text and block maps are
// derived from it on demand. All offsets are byte offsets.
package editor

import (
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/starford/quire/internal/blocks"
	"github.com/starford/quire/internal/display"
	"github.com/starford/quire/internal/history"
	"github.com/starford/quire/internal/link"
)

// Host is what a Document needs from whoever embeds it.
type Host interface {
	IsReadOnly() bool
	OnLinkActivated(linkText string)
}

// Key is a structural key. Typing plain characters goes through Insert and
// does not create an undo boundary; structural keys do.
type Key int

const (
	KeyEnter Key = iota + 1
	KeyTab
	KeyBackspace
	KeyDelete
)

// Region is a span of raw text locked while a prompt job runs.
type Region struct {
	ID    int `json:"id"`
	Start int `json:"start"`
	End   int `json:"end"`
}

// Document is a single open note. It is not safe for concurrent use; the
// workspace loop serialises access.
type Document struct {
	host    Host
	text    string
	cursor  int
	hist    *history.History
	cls     *blocks.Classifier
	blocks  blocks.Map
	pending []Region
	nextID  int
}

// New returns an empty document bound to host. undoLimit <= 0 selects the
// history default.
func New(host Host, undoLimit int) *Document {
	d := &Document{
		host: host,
		hist: history.New(undoLimit),
		cls:  blocks.NewClassifier(),
	}
	d.blocks = d.cls.Classify("")
	return d
}

// Load replaces the whole document with text loaded from storage. History,
// fold state and pending regions start over.
func (d *Document) Load(text string) {
	d.text = text
	d.cursor = 0
	d.pending = nil
	d.hist.Clear()
	d.cls.Reset()
	d.blocks = d.cls.Classify(text)
	d.RecordState()
}

// Text returns the raw text.
func (d *Document) Text() string { return d.text }

// Cursor returns the cursor offset in raw text.
func (d *Document) Cursor() int { return d.cursor }

// SetCursor moves the cursor, clamped to the text.
func (d *Document) SetCursor(pos int) {
	d.cursor = clamp(pos, len(d.text))
}

// Blocks returns the current block map.
func (d *Document) Blocks() blocks.Map { return d.blocks }

// Display projects the raw text for read-only viewing.
func (d *Document) Display() display.Projection { return display.Project(d.text) }

// Pending returns the locked regions.
func (d *Document) Pending() []Region { return slices.Clone(d.pending) }

// CanUndo reports whether Undo could currently do anything.
func (d *Document) CanUndo() bool { return d.hist.CanUndo() }

// CanRedo reports whether Redo could currently do anything.
func (d *Document) CanRedo() bool { return d.hist.CanRedo() }

// Insert puts s at pos. It reports false, changing nothing, when the
// edit is not allowed or pos splits a character.
func (d *Document) Insert(pos int, s string) bool {
	if s == "" || !utf8.ValidString(s) || pos < 0 || pos > len(d.text) || !d.runeStart(pos) {
		return false
	}
	if !d.editable(pos, pos, s) {
		return false
	}
	d.splice(pos, pos, s)
	return true
}

// Delete removes text[start:end]. It reports false, changing nothing, when
// the edit is not allowed.
func (d *Document) Delete(start, end int) bool {
	if start > end {
		start, end = end, start
	}
	start, end = clamp(start, len(d.text)), clamp(end, len(d.text))
	if start == end || !d.runeStart(start) || !d.runeStart(end) {
		return false
	}
	if !d.editable(start, end, "") {
		return false
	}
	d.splice(start, end, "")
	return true
}

// Key applies a structural key at the cursor. The text before and after the
// key are both recorded as undo boundaries.
func (d *Document) Key(k Key) bool {
	start, end, insert := d.cursor, d.cursor, ""
	switch k {
	case KeyEnter:
		insert = "\n"
	case KeyTab:
		insert = "\t"
	case KeyBackspace:
		if d.cursor == 0 {
			return false
		}
		_, size := utf8.DecodeLastRuneInString(d.text[:d.cursor])
		start = d.cursor - size
	case KeyDelete:
		if d.cursor == len(d.text) {
			return false
		}
		_, size := utf8.DecodeRuneInString(d.text[d.cursor:])
		end = d.cursor + size
	default:
		return false
	}
	if !d.editable(start, end, insert) {
		return false
	}
	d.RecordState()
	d.splice(start, end, insert)
	d.RecordState()
	return true
}

// Replace swaps the whole buffer for text, e.g. when content arrives from
// outside the editor. It is refused in read-only mode and while prompt
// regions are pending.
func (d *Document) Replace(text string) bool {
	if d.host.IsReadOnly() || len(d.pending) > 0 {
		return false
	}
	if text == d.text {
		return true
	}
	d.RecordState()
	d.reflow(text)
	d.cursor = clamp(d.cursor, len(text))
	d.RecordState()
	return true
}

// RecordState snapshots the current text and cursor.
func (d *Document) RecordState() {
	d.hist.Record(history.State{Text: d.text, Cursor: d.cursor})
}

// Undo restores the previous snapshot. Unrecorded typing is snapshotted
// first so Redo can bring it back.
func (d *Document) Undo() bool {
	if !d.canRestore() {
		return false
	}
	d.RecordState()
	return d.hist.Undo(d.restore)
}

// Redo reapplies the most recently undone snapshot.
func (d *Document) Redo() bool {
	if !d.canRestore() {
		return false
	}
	return d.hist.Redo(d.restore)
}

// ToggleFold flips the callout whose header is on line.
func (d *Document) ToggleFold(line int) bool {
	if !d.cls.ToggleFold(line) {
		return false
	}
	d.blocks = d.cls.Last()
	return true
}

// Hover returns the link under pos. In read-only mode pos is a display
// offset, otherwise a raw one.
func (d *Document) Hover(pos int) (string, bool) {
	if d.host.IsReadOnly() {
		return d.Display().HitTest(pos)
	}
	return link.At(d.text, pos)
}

// Click activates the link under pos, if any.
func (d *Document) Click(pos int) bool {
	text, ok := d.Hover(pos)
	if !ok {
		return false
	}
	d.host.OnLinkActivated(text)
	return true
}

// MarkPending locks text[start:end] until ResolvePending or CancelPending.
func (d *Document) MarkPending(start, end int) (int, bool) {
	if start > end {
		start, end = end, start
	}
	if start < 0 || end > len(d.text) {
		return 0, false
	}
	for _, r := range d.pending {
		if start <= r.End && r.Start <= end {
			return 0, false
		}
	}
	d.nextID++
	d.pending = append(d.pending, Region{ID: d.nextID, Start: start, End: end})
	return d.nextID, true
}

// ResolvePending unlocks region id and inserts s right after it. The
// insertion is programmatic and bypasses read-only mode.
func (d *Document) ResolvePending(id int, s string) bool {
	i := slices.IndexFunc(d.pending, func(r Region) bool { return r.ID == id })
	if i < 0 {
		return false
	}
	at := d.pending[i].End
	d.pending = slices.Delete(d.pending, i, i+1)
	if s == "" {
		return true
	}
	cursor := d.cursor
	d.RecordState()
	d.splice(at, at, s)
	if cursor < at {
		d.cursor = cursor
	}
	d.RecordState()
	return true
}

// CancelPending unlocks region id without inserting anything.
func (d *Document) CancelPending(id int) bool {
	i := slices.IndexFunc(d.pending, func(r Region) bool { return r.ID == id })
	if i < 0 {
		return false
	}
	d.pending = slices.Delete(d.pending, i, i+1)
	return true
}

// editable reports whether text[start:end] may be replaced by insert.
func (d *Document) editable(start, end int, insert string) bool {
	if d.host.IsReadOnly() {
		return false
	}
	for _, r := range d.pending {
		if start == end && r.Start <= start && start <= r.End {
			return false
		}
		if start < r.End && r.Start < end {
			return false
		}
	}
	first := blocks.LineOf(d.text, start)
	last := blocks.LineOf(d.text, end)
	if d.blocks.EditableRange(first, last) {
		return true
	}
	// Text that opens a new line after an end marker leaves the marker intact.
	return start == end && strings.HasPrefix(insert, "\n") && d.endOfEndMarker(start)
}

// endOfEndMarker reports whether pos is the end of an AI response end
// marker line.
func (d *Document) endOfEndMarker(pos int) bool {
	if pos < len(d.text) && d.text[pos] != '\n' {
		return false
	}
	line := blocks.LineOf(d.text, pos)
	return strings.TrimSpace(d.text[blocks.LineStart(d.text, line):pos]) == blocks.EndMarker
}

func (d *Document) runeStart(pos int) bool {
	return pos == len(d.text) || utf8.RuneStart(d.text[pos])
}

func (d *Document) canRestore() bool {
	return !d.host.IsReadOnly() && len(d.pending) == 0
}

// splice replaces text[start:end] with s and keeps the cursor, fold state
// and pending regions in step.
func (d *Document) splice(start, end int, s string) {
	removed := d.text[start:end]
	delta := len(s) - len(removed)

	d.shiftFolds(start, strings.Count(s, "\n")-strings.Count(removed, "\n"))
	for i := range d.pending {
		if d.pending[i].Start >= end {
			d.pending[i].Start += delta
			d.pending[i].End += delta
		}
	}

	d.text = d.text[:start] + s + d.text[end:]
	d.cursor = start + len(s)
	d.blocks = d.cls.Classify(d.text)
}

func (d *Document) restore(s history.State) {
	d.reflow(s.Text)
	d.cursor = s.Cursor
}

// reflow swaps in text wholesale. Fold state is moved as if the change were
// one edit starting where the old and new text first differ.
func (d *Document) reflow(text string) {
	p := 0
	for p < len(d.text) && p < len(text) && d.text[p] == text[p] {
		p++
	}
	d.shiftFolds(p, strings.Count(text, "\n")-strings.Count(d.text, "\n"))
	d.text = text
	d.blocks = d.cls.Classify(text)
}

// shiftFolds re-keys fold state for an edit at offset at of the current
// text that changes the line count by lines.
func (d *Document) shiftFolds(at, lines int) {
	if lines == 0 {
		return
	}
	after := blocks.LineOf(d.text, at)
	if at == 0 || d.text[at-1] == '\n' {
		after--
	}
	d.cls.ShiftLines(after, lines)
}

func clamp(pos, n int) int {
	return max(0, min(pos, n))
}
