// Package blocks tags the lines of a note as plain text, foldable callouts,
// or chat regions delimited by AI response markers.
//
// A Map is disposable and rebuilt from raw text after every change. Fold
// intent lives in the Classifier, keyed by callout header line, so it
// survives reclassification.
package blocks

import (
	"fmt"
	"strings"
)

// AI response sentinels. Each sits on its own line.
const (
	StartMarker = "§§§AI_RESPONSE_START§§§"
	EndMarker   = "§§§AI_RESPONSE_END§§§"
)

// ThinkingHeader is the callout header folded automatically the first time
// it is seen.
const ThinkingHeader = "> thinking..."

// Kind classifies a line or block.
type Kind int

const (
	Plain Kind = iota
	Callout
	ChatMarker
	ChatUser
	ChatAssistant
)

var kindNames = [...]string{"plain", "callout", "chat_marker", "chat_user", "chat_assistant"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(b []byte) error {
	for i, name := range kindNames {
		if name == string(b) {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("blocks: unknown kind %q", b)
}

// Block is a run of lines sharing one kind. Start and End are inclusive
// line numbers.
type Block struct {
	Start  int  `json:"start"`
	End    int  `json:"end"`
	Kind   Kind `json:"kind"`
	Folded bool `json:"folded,omitempty"`
}

type lineInfo struct {
	kind   Kind
	header bool
	block  int
}

// Map is the classification of one text snapshot.
type Map struct {
	lines  []lineInfo
	blocks []Block
}

// LineCount returns the number of lines classified.
func (m Map) LineCount() int { return len(m.lines) }

// Blocks returns the blocks in document order. They partition the lines.
func (m Map) Blocks() []Block {
	out := make([]Block, len(m.blocks))
	copy(out, m.blocks)
	return out
}

// LineKind returns the kind of line. Lines outside the document are plain.
func (m Map) LineKind(line int) Kind {
	if !m.valid(line) {
		return Plain
	}
	return m.lines[line].kind
}

// IsHeader reports whether line is the first line of a callout.
func (m Map) IsHeader(line int) bool {
	return m.valid(line) && m.lines[line].header
}

// BlockAt returns the block containing line.
func (m Map) BlockAt(line int) (Block, bool) {
	if !m.valid(line) {
		return Block{}, false
	}
	return m.blocks[m.lines[line].block], true
}

// Visible reports whether line is shown. Marker lines and the body of a
// folded callout are hidden.
func (m Map) Visible(line int) bool {
	if !m.valid(line) {
		return false
	}
	li := m.lines[line]
	if li.kind == ChatMarker {
		return false
	}
	if li.kind == Callout && !li.header && m.blocks[li.block].Folded {
		return false
	}
	return true
}

// Editable reports whether text on line may be modified. Assistant output
// and marker lines are read-only.
func (m Map) Editable(line int) bool {
	if !m.valid(line) {
		return false
	}
	k := m.lines[line].kind
	return k != ChatAssistant && k != ChatMarker
}

// EditableRange reports whether every line from first to last is editable.
func (m Map) EditableRange(first, last int) bool {
	for l := first; l <= last; l++ {
		if !m.Editable(l) {
			return false
		}
	}
	return true
}

func (m Map) valid(line int) bool {
	return line >= 0 && line < len(m.lines)
}

// Classifier builds Maps and owns callout fold state across passes.
// It is not safe for concurrent use.
type Classifier struct {
	folded  map[int]bool
	seen    map[int]bool // auto-fold already applied
	toggled map[int]bool // folded state set by the user
	last    Map
}

// NewClassifier returns a classifier with no fold state.
func NewClassifier() *Classifier {
	c := &Classifier{}
	c.Reset()
	return c
}

// Reset forgets all fold state, e.g. when another file is loaded.
func (c *Classifier) Reset() {
	c.folded = make(map[int]bool)
	c.seen = make(map[int]bool)
	c.toggled = make(map[int]bool)
	c.last = Map{}
}

// Last returns the Map produced by the most recent Classify call.
func (c *Classifier) Last() Map { return c.last }

// Classify rescans raw in full and returns its Map.
func (c *Classifier) Classify(raw string) Map {
	texts := strings.Split(raw, "\n")
	lines := make([]lineInfo, len(texts))

	hasMarkers := false
	for _, t := range texts {
		if isMarker(t) {
			hasMarkers = true
			break
		}
	}
	base := Plain
	if hasMarkers {
		base = ChatUser
	}

	inAssistant := false
	for i, t := range texts {
		switch trimmed := strings.TrimSpace(t); {
		case trimmed == StartMarker:
			lines[i].kind = ChatMarker
			inAssistant = true
		case trimmed == EndMarker:
			lines[i].kind = ChatMarker
			inAssistant = false
		case inAssistant:
			lines[i].kind = ChatAssistant
		default:
			lines[i].kind = base
		}
	}

	headers := make(map[int]struct{})
	for i := 0; i < len(texts); i++ {
		if !calloutCandidate(lines[i].kind, texts[i]) {
			continue
		}
		lines[i].header = true
		headers[i] = struct{}{}
		for j := i; j < len(texts) && calloutCandidate(lines[j].kind, texts[j]); j++ {
			lines[j].kind = Callout
			i = j
		}
	}

	for h := range headers {
		if !c.seen[h] && !c.toggled[h] && isThinking(texts[h]) {
			c.folded[h] = true
			c.seen[h] = true
		}
	}
	c.prune(headers, len(texts))

	var blocks []Block
	for i := range lines {
		k := lines[i].kind
		extend := len(blocks) > 0 &&
			blocks[len(blocks)-1].Kind == k &&
			k != ChatMarker &&
			!lines[i].header
		if extend {
			blocks[len(blocks)-1].End = i
		} else {
			blocks = append(blocks, Block{Start: i, End: i, Kind: k, Folded: lines[i].header && c.folded[i]})
		}
		lines[i].block = len(blocks) - 1
	}

	c.last = Map{lines: lines, blocks: blocks}
	return c.last
}

// ToggleFold flips the fold state of the callout whose header is on line and
// marks it user-owned. It reports false when line is not a callout header in
// the last Map.
func (c *Classifier) ToggleFold(line int) bool {
	if !c.last.IsHeader(line) {
		return false
	}
	c.folded[line] = !c.folded[line]
	c.toggled[line] = true

	b := c.last.lines[line].block
	blocks := c.last.Blocks()
	blocks[b].Folded = c.folded[line]
	c.last = Map{lines: c.last.lines, blocks: blocks}
	return true
}

// Folded reports the stored fold state of the callout header on line.
func (c *Classifier) Folded(line int) bool { return c.folded[line] }

// ShiftLines re-keys fold state after an edit changed the line count by
// delta somewhere on line after. Keys beyond after move by delta; keys on
// lines removed by the edit are dropped.
func (c *Classifier) ShiftLines(after, delta int) {
	if delta == 0 {
		return
	}
	for _, m := range []map[int]bool{c.folded, c.seen, c.toggled} {
		shifted := make(map[int]bool, len(m))
		for k, v := range m {
			switch {
			case k <= after:
				shifted[k] = v
			case delta < 0 && k <= after-delta:
				// joined into line after
			default:
				shifted[k+delta] = v
			}
		}
		clear(m)
		for k, v := range shifted {
			m[k] = v
		}
	}
}

// prune drops fold state for lines that are no longer callout headers. The
// auto-fold record survives as long as the line exists, so a header that
// briefly stops being a callout is not folded a second time.
func (c *Classifier) prune(headers map[int]struct{}, lineCount int) {
	for _, m := range []map[int]bool{c.folded, c.toggled} {
		for k := range m {
			if _, ok := headers[k]; !ok {
				delete(m, k)
			}
		}
	}
	for k := range c.seen {
		if k >= lineCount {
			delete(c.seen, k)
		}
	}
}

// LineOf returns the zero-based line containing byte offset pos.
func LineOf(text string, pos int) int {
	pos = max(0, min(pos, len(text)))
	return strings.Count(text[:pos], "\n")
}

// LineStart returns the byte offset where line begins, or len(text) when the
// text has fewer lines.
func LineStart(text string, line int) int {
	off := 0
	for range line {
		i := strings.IndexByte(text[off:], '\n')
		if i < 0 {
			return len(text)
		}
		off += i + 1
	}
	return off
}

func isMarker(line string) bool {
	t := strings.TrimSpace(line)
	return t == StartMarker || t == EndMarker
}

func isThinking(line string) bool {
	return strings.ToLower(strings.TrimSpace(line)) == ThinkingHeader
}

func calloutCandidate(k Kind, line string) bool {
	return (k == Plain || k == ChatUser) && strings.HasPrefix(strings.TrimSpace(line), ">")
}
