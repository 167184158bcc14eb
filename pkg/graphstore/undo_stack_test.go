package graphstore

import (
	"testing"

	"github.com/dshills/flowedit/pkg/flow"
)

func TestUndoStack_NewUndoStack(t *testing.T) {
	stack := NewUndoStack(0)

	if stack.capacity != 100 {
		t.Errorf("expected default capacity 100, got %d", stack.capacity)
	}
	if stack.cursor != -1 {
		t.Errorf("expected initial cursor -1, got %d", stack.cursor)
	}
	if stack.CanUndo() || stack.CanRedo() {
		t.Error("empty stack should not undo or redo")
	}
}

func TestUndoStack_PushCopiesGraph(t *testing.T) {
	stack := NewUndoStack(5)
	g, _ := flow.NewGraph("test", "")

	if err := stack.Push(g); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	g.Nodes[0].Label = "changed"

	if got := stack.snapshots[0].Nodes[0].Label; got != "Start" {
		t.Errorf("snapshot label = %q, want Start", got)
	}
	if err := stack.Push(nil); err == nil {
		t.Error("expected error pushing nil graph")
	}
}

func TestUndoStack_Capacity(t *testing.T) {
	stack := NewUndoStack(3)
	g, _ := flow.NewGraph("test", "")

	for i := 0; i < 5; i++ {
		g.Description = string(rune('a' + i))
		_ = stack.Push(g)
	}

	if stack.Size() != 3 {
		t.Fatalf("expected size 3, got %d", stack.Size())
	}
	if stack.cursor != 2 {
		t.Errorf("expected cursor 2, got %d", stack.cursor)
	}

	undone := 0
	for stack.CanUndo() {
		if _, err := stack.Undo(); err != nil {
			t.Fatalf("Undo failed: %v", err)
		}
		undone++
	}
	if undone != 2 {
		t.Errorf("expected 2 undo steps, got %d", undone)
	}
}

func TestUndoStack_PushTruncatesRedo(t *testing.T) {
	stack := NewUndoStack(10)
	g, _ := flow.NewGraph("test", "")

	_ = stack.Push(g)
	_ = stack.Push(g)
	_ = stack.Push(g)
	_, _ = stack.Undo()
	_, _ = stack.Undo()

	if !stack.CanRedo() {
		t.Fatal("expected redo to be available")
	}
	_ = stack.Push(g)
	if stack.CanRedo() {
		t.Error("push should clear redo history")
	}
	if stack.Size() != 2 {
		t.Errorf("expected size 2, got %d", stack.Size())
	}

	stack.Clear()
	if stack.Size() != 0 || stack.cursor != -1 {
		t.Error("Clear should empty the stack")
	}
}
