// Package history implements snapshot based undo and redo over
// (text, cursor) pairs, independent of any text widget.
package history

// DefaultLimit is the number of snapshots kept when none is configured.
const DefaultLimit = 100

// State is one snapshot.
type State struct {
	Text   string `json:"text"`
	Cursor int    `json:"cursor"`
}

// History holds the undo and redo stacks. The top of the undo stack is the
// current state. It is not safe for concurrent use.
type History struct {
	limit     int
	undo      []State
	redo      []State
	restoring bool
}

// New returns an empty history keeping at most limit snapshots per stack.
func New(limit int) *History {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &History{limit: limit}
}

// Record pushes s as the new current state and drops the redo branch.
// It does nothing while a restore is being applied or when s.Text equals
// the current state. It reports whether a snapshot was pushed.
func (h *History) Record(s State) bool {
	if h.restoring {
		return false
	}
	if n := len(h.undo); n > 0 && h.undo[n-1].Text == s.Text {
		return false
	}
	h.undo = push(h.undo, s, h.limit)
	h.redo = h.redo[:0]
	return true
}

// Undo moves the current state onto the redo stack and applies the one
// beneath it. With one or no snapshots it does nothing.
func (h *History) Undo(apply func(State)) bool {
	if len(h.undo) <= 1 {
		return false
	}
	n := len(h.undo)
	h.redo = push(h.redo, h.undo[n-1], h.limit)
	h.undo = h.undo[:n-1]
	h.restore(h.undo[n-2], apply)
	return true
}

// Redo moves the most recently undone state back onto the undo stack and
// applies it.
func (h *History) Redo(apply func(State)) bool {
	n := len(h.redo)
	if n == 0 {
		return false
	}
	s := h.redo[n-1]
	h.redo = h.redo[:n-1]
	h.undo = push(h.undo, s, h.limit)
	h.restore(s, apply)
	return true
}

func (h *History) restore(s State, apply func(State)) {
	s.Cursor = max(0, min(s.Cursor, len(s.Text)))
	if apply == nil {
		return
	}
	h.restoring = true
	defer func() { h.restoring = false }()
	apply(s)
}

// Clear drops both stacks.
func (h *History) Clear() {
	h.undo = nil
	h.redo = nil
}

// Restoring reports whether an Undo or Redo is currently applying a state.
func (h *History) Restoring() bool { return h.restoring }

// CanUndo reports whether Undo would do anything.
func (h *History) CanUndo() bool { return len(h.undo) > 1 }

// CanRedo reports whether Redo would do anything.
func (h *History) CanRedo() bool { return len(h.redo) > 0 }

// Len returns the sizes of the undo and redo stacks.
func (h *History) Len() (undo, redo int) { return len(h.undo), len(h.redo) }

// Current returns the top of the undo stack.
func (h *History) Current() (State, bool) {
	if len(h.undo) == 0 {
		return State{}, false
	}
	return h.undo[len(h.undo)-1], true
}

func push(stack []State, s State, limit int) []State {
	stack = append(stack, s)
	if over := len(stack) - limit; over > 0 {
		stack = append(stack[:0], stack[over:]...)
	}
	return stack
}
