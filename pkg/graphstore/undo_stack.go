package graphstore

import (
	"errors"
	"time"

	"github.com/dshills/flowedit/pkg/flow"
)

// snapshot is a point-in-time copy of the graph. The selection is not part of
// history; it is cleared only when its node disappears.
type snapshot struct {
	Nodes     []*flow.Node
	Edges     []*flow.Edge
	Timestamp time.Time
}

// UndoStack manages undo/redo history with a bounded buffer
type UndoStack struct {
	snapshots []snapshot
	cursor    int // index of the current state, -1 if empty
	capacity  int
}

// NewUndoStack creates a new undo stack with the specified capacity
func NewUndoStack(capacity int) *UndoStack {
	if capacity <= 0 {
		capacity = 100
	}

	return &UndoStack{
		snapshots: make([]snapshot, 0, capacity),
		cursor:    -1,
		capacity:  capacity,
	}
}

// Push records a new state. Any redo history beyond the cursor is discarded.
func (u *UndoStack) Push(g *flow.Graph) error {
	if g == nil {
		return errors.New("cannot push nil graph")
	}

	snap := snapshot{
		Nodes:     flow.CloneNodes(g.Nodes),
		Edges:     flow.CloneEdges(g.Edges),
		Timestamp: time.Now(),
	}

	if u.cursor < len(u.snapshots)-1 {
		u.snapshots = u.snapshots[:u.cursor+1]
	}

	if len(u.snapshots) >= u.capacity {
		// drop the oldest state
		copy(u.snapshots, u.snapshots[1:])
		u.snapshots[len(u.snapshots)-1] = snap
	} else {
		u.snapshots = append(u.snapshots, snap)
	}
	u.cursor = len(u.snapshots) - 1
	return nil
}

// Undo moves back one state and returns it
func (u *UndoStack) Undo() (*snapshot, error) {
	if !u.CanUndo() {
		return nil, errors.New("nothing to undo")
	}
	u.cursor--
	return &u.snapshots[u.cursor], nil
}

// Redo moves forward one state and returns it
func (u *UndoStack) Redo() (*snapshot, error) {
	if !u.CanRedo() {
		return nil, errors.New("nothing to redo")
	}
	u.cursor++
	return &u.snapshots[u.cursor], nil
}

// CanUndo returns true if an earlier state exists
func (u *UndoStack) CanUndo() bool {
	return u.cursor > 0
}

// CanRedo returns true if a later state exists
func (u *UndoStack) CanRedo() bool {
	return u.cursor < len(u.snapshots)-1
}

// Clear resets the undo stack
func (u *UndoStack) Clear() {
	u.snapshots = make([]snapshot, 0, u.capacity)
	u.cursor = -1
}

// Size returns the current number of snapshots
func (u *UndoStack) Size() int {
	return len(u.snapshots)
}
