package workspace

import (
	"github.com/starford/quire/internal/blocks"
	"github.com/starford/quire/internal/display"
)

// Snapshot is the editor state a client renders.
type Snapshot struct {
	Path     string         `json:"path"`
	Open     bool           `json:"open"`
	Text     string         `json:"text"`
	Cursor   int            `json:"cursor"`
	ReadOnly bool           `json:"read_only"`
	Dirty    bool           `json:"dirty"`
	CanUndo  bool           `json:"can_undo"`
	CanRedo  bool           `json:"can_redo"`
	Blocks   []blocks.Block `json:"blocks"`
	// Hidden lists lines not shown: chat markers and folded callout bodies.
	Hidden []int `json:"hidden_lines"`
	// Locked lists lines that reject edits.
	Locked  []int               `json:"locked_lines"`
	Display *display.Projection `json:"display,omitempty"`
	Jobs    []Job               `json:"jobs"`
}

func (w *Workspace) snapshot() Snapshot {
	s := Snapshot{
		ReadOnly: w.readOnly,
		Blocks:   []blocks.Block{},
		Hidden:   []int{},
		Locked:   []int{},
		Jobs:     w.jobList(),
	}
	if w.doc == nil {
		return s
	}
	d := w.doc
	s.Path = w.path
	s.Open = true
	s.Text = d.Text()
	s.Cursor = d.Cursor()
	s.Dirty = s.Text != w.saved
	s.CanUndo = d.CanUndo()
	s.CanRedo = d.CanRedo()

	m := d.Blocks()
	s.Blocks = m.Blocks()
	for i := 0; i < m.LineCount(); i++ {
		if !m.Visible(i) {
			s.Hidden = append(s.Hidden, i)
		}
		if !m.Editable(i) {
			s.Locked = append(s.Locked, i)
		}
	}
	if w.readOnly {
		p := d.Display()
		s.Display = &p
	}
	return s
}
