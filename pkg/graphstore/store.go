// Package graphstore holds the authoritative in-memory copy of a flow graph
// being edited: its nodes and edges, the current selection, a per-node revision
// counter and the undo history.
//
// Reads return copies. Every change is visible to reads as soon as the mutating
// call returns, and subscribers are notified synchronously after the store's
// lock is released, so a subscriber may read the store (but should not assume
// it is the only one reacting).
package graphstore

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/dshills/flowedit/pkg/flow"
)

// Store is the graph store for one open flow
type Store struct {
	mu         sync.RWMutex
	graph      *flow.Graph
	selectedID string
	revisions  map[string]uint64
	counter    uint64
	listeners  map[int]func()
	nextID     int
	undo       *UndoStack
	logger     *slog.Logger
}

// Option configures a Store
type Option func(*Store)

// WithUndoCapacity bounds the undo history
func WithUndoCapacity(capacity int) Option {
	return func(s *Store) {
		s.undo = NewUndoStack(capacity)
	}
}

// WithLogger sets the logger used for store events
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a store over a copy of g
func New(g *flow.Graph, opts ...Option) *Store {
	s := &Store{
		graph:     g.Clone(),
		revisions: make(map[string]uint64, len(g.Nodes)),
		listeners: make(map[int]func()),
		undo:      NewUndoStack(100),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, n := range s.graph.Nodes {
		s.bump(n.ID)
	}
	_ = s.undo.Push(s.graph)
	return s
}

// Graph returns a copy of the whole flow
func (s *Store) Graph() *flow.Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph.Clone()
}

// Node returns a copy of the node with the given id
func (s *Store) Node(id string) (*flow.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.graph.Node(id)
	if !ok {
		return nil, false
	}
	return n.Clone(), true
}

// SelectedNode returns a copy of the selected node, or nil when nothing is selected
func (s *Store) SelectedNode() *flow.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selectedID == "" {
		return nil
	}
	n, ok := s.graph.Node(s.selectedID)
	if !ok {
		return nil
	}
	return n.Clone()
}

// SetSelectedNode selects node by id, or clears the selection when node is nil.
// Selecting a node that is not in the graph clears the selection.
func (s *Store) SetSelectedNode(node *flow.Node) {
	id := ""
	if node != nil {
		id = node.ID
	}
	_ = s.Select(id)
}

// Select selects the node with the given id; an empty id clears the selection
func (s *Store) Select(id string) error {
	s.mu.Lock()
	var err error
	if id != "" {
		if _, ok := s.graph.Node(id); !ok {
			err = fmt.Errorf("%w: %s", flow.ErrNodeNotFound, id)
			id = ""
		}
	}
	changed := s.selectedID != id
	s.selectedID = id
	s.mu.Unlock()

	if changed {
		s.logger.Debug("selection changed", "node", id)
		s.notify()
	}
	return err
}

// Revision returns the node's revision. It changes every time the node's data changes.
// Unknown ids have revision 0.
func (s *Store) Revision(id string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revisions[id]
}

// UpdateNode shallow-merges patch into the node's label, description and config.
// Unknown ids are ignored.
func (s *Store) UpdateNode(id string, patch flow.NodePatch) {
	s.mu.Lock()
	n, ok := s.graph.Node(id)
	if !ok {
		s.mu.Unlock()
		s.logger.Debug("update of unknown node ignored", "node", id)
		return
	}
	patch.Apply(n)
	s.bump(id)
	s.record()
	s.mu.Unlock()

	s.notify()
}

// DeleteNode removes a node and its edges. The selection is cleared when it pointed at the node.
func (s *Store) DeleteNode(id string) {
	s.mu.Lock()
	if err := s.graph.RemoveNode(id); err != nil {
		s.mu.Unlock()
		s.logger.Debug("delete of unknown node ignored", "node", id)
		return
	}
	delete(s.revisions, id)
	if s.selectedID == id {
		s.selectedID = ""
	}
	s.record()
	s.mu.Unlock()

	s.notify()
}

// AddNode appends a node. Node ids must be unique.
func (s *Store) AddNode(node *flow.Node) error {
	if node == nil {
		return errors.New("cannot add nil node")
	}
	if !node.Kind.Valid() {
		return fmt.Errorf("unknown node kind: %s", node.Kind)
	}

	s.mu.Lock()
	if _, exists := s.graph.Node(node.ID); exists {
		s.mu.Unlock()
		return fmt.Errorf("duplicate node ID: %s", node.ID)
	}
	if err := s.graph.AddNode(node.Clone()); err != nil {
		s.mu.Unlock()
		return err
	}
	s.bump(node.ID)
	s.record()
	s.mu.Unlock()

	s.notify()
	return nil
}

// AddEdge connects two existing nodes
func (s *Store) AddEdge(from, to string) (*flow.Edge, error) {
	s.mu.Lock()
	if _, ok := s.graph.Node(from); !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", flow.ErrNodeNotFound, from)
	}
	if _, ok := s.graph.Node(to); !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", flow.ErrNodeNotFound, to)
	}
	edge := &flow.Edge{ID: flow.NewID(), FromNodeID: from, ToNodeID: to}
	if err := edge.Validate(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if err := s.graph.AddEdge(edge); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.record()
	s.mu.Unlock()

	s.notify()
	return edge, nil
}

// Undo restores the previous state of the graph
func (s *Store) Undo() error {
	return s.travel(s.undo.Undo)
}

// Redo re-applies a state undone by Undo
func (s *Store) Redo() error {
	return s.travel(s.undo.Redo)
}

// CanUndo reports whether Undo would succeed
func (s *Store) CanUndo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.undo.CanUndo()
}

// CanRedo reports whether Redo would succeed
func (s *Store) CanRedo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.undo.CanRedo()
}

func (s *Store) travel(step func() (*snapshot, error)) error {
	s.mu.Lock()
	snap, err := step()
	if err != nil {
		s.mu.Unlock()
		return err
	}

	current := make(map[string]*flow.Node, len(s.graph.Nodes))
	for _, n := range s.graph.Nodes {
		current[n.ID] = n
	}

	s.graph.Nodes = flow.CloneNodes(snap.Nodes)
	s.graph.Edges = flow.CloneEdges(snap.Edges)

	alive := make(map[string]bool, len(s.graph.Nodes))
	for _, n := range s.graph.Nodes {
		alive[n.ID] = true
		if prev, ok := current[n.ID]; !ok || !reflect.DeepEqual(prev, n) {
			s.bump(n.ID)
		}
	}
	for id := range s.revisions {
		if !alive[id] {
			delete(s.revisions, id)
		}
	}
	if s.selectedID != "" && !alive[s.selectedID] {
		s.selectedID = ""
	}
	s.mu.Unlock()

	s.notify()
	return nil
}

// Subscribe registers fn to be called after every change.
// The returned function removes the subscription.
func (s *Store) Subscribe(fn func()) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// bump assigns the node a new revision; callers hold the lock
func (s *Store) bump(id string) {
	s.counter++
	s.revisions[id] = s.counter
}

// record pushes the current state onto the undo stack; callers hold the lock
func (s *Store) record() {
	if err := s.undo.Push(s.graph); err != nil {
		s.logger.Warn("failed to record undo state", "error", err)
	}
}

func (s *Store) notify() {
	s.mu.RLock()
	fns := make([]func(), 0, len(s.listeners))
	for i := 0; i < s.nextID; i++ {
		if fn, ok := s.listeners[i]; ok {
			fns = append(fns, fn)
		}
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn()
	}
}
