// Package editor binds the selected node of a graph store to an editable form.
//
// The Synchronizer is driven from a single goroutine: the store's change
// notifications and the form's change events must be delivered from the same
// loop. It is not safe for concurrent use.
package editor

import (
	"fmt"
	"log/slog"

	"github.com/dshills/flowedit/pkg/flow"
	"github.com/dshills/flowedit/pkg/normalize"
)

// NoSelectionTitle is the panel title shown when no node is selected
const NoSelectionTitle = "No node selected"

// GraphStore is the part of the graph store the editor needs
type GraphStore interface {
	SelectedNode() *flow.Node
	UpdateNode(id string, patch flow.NodePatch)
	DeleteNode(id string)
	SetSelectedNode(node *flow.Node)
	// Revision changes whenever the node's data changes
	Revision(id string) uint64
}

// Form is the editable projection of the selected node
type Form interface {
	ResetFields()
	SetFieldsValue(values flow.Values)
	SetFieldValue(name string, value interface{})
}

// Notifier delivers store change notifications
type Notifier interface {
	Subscribe(fn func()) func()
}

// State is the binding state between the form and the store
type State int

// Binding states
const (
	// NoSelection: no node is bound, the form is empty
	NoSelection State = iota
	// BoundClean: the form mirrors the bound node
	BoundClean
	// BoundDirty: a write of the synchronizer's own is in flight and must not reseed the form
	BoundDirty
)

func (s State) String() string {
	switch s {
	case NoSelection:
		return "no_selection"
	case BoundClean:
		return "bound_clean"
	case BoundDirty:
		return "bound_dirty"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Synchronizer keeps one form consistent with the selected node in both directions
type Synchronizer struct {
	store    GraphStore
	form     Form
	pipeline *normalize.Pipeline
	logger   *slog.Logger

	state         State
	boundID       string
	boundRevision uint64
	suppressNext  bool
}

// Option configures a Synchronizer
type Option func(*Synchronizer)

// WithPipeline replaces the default normalization pipeline
func WithPipeline(p *normalize.Pipeline) Option {
	return func(s *Synchronizer) {
		if p != nil {
			s.pipeline = p
		}
	}
}

// WithLogger sets the logger used for binding events
func WithLogger(logger *slog.Logger) Option {
	return func(s *Synchronizer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSynchronizer creates a synchronizer between store and form.
// Call Attach or Refresh to bind the current selection.
func NewSynchronizer(store GraphStore, form Form, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		store:    store,
		form:     form,
		pipeline: normalize.Default(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Attach subscribes the synchronizer to store notifications and binds the current selection.
// The returned function detaches it.
func (s *Synchronizer) Attach(n Notifier) func() {
	unsubscribe := n.Subscribe(s.Refresh)
	s.Refresh()
	return unsubscribe
}

// State returns the current binding state
func (s *Synchronizer) State() State {
	return s.state
}

// BoundID returns the id of the bound node, or "" when nothing is bound
func (s *Synchronizer) BoundID() string {
	return s.boundID
}

// Refresh reconciles the form with the store. It is the handler for store
// change notifications.
//
// A different selected node resets and reseeds the form. A new revision of the
// bound node reseeds the form without a reset, unless the revision is the
// synchronizer's own write, which is skipped. A cleared selection resets the form.
func (s *Synchronizer) Refresh() {
	node := s.store.SelectedNode()
	if node == nil {
		if s.state != NoSelection {
			s.form.ResetFields()
			s.logger.Debug("selection cleared", "node", s.boundID)
		}
		s.state = NoSelection
		s.boundID = ""
		s.boundRevision = 0
		s.suppressNext = false
		return
	}

	rev := s.store.Revision(node.ID)
	if node.ID != s.boundID {
		s.bind(node, rev)
		return
	}
	if rev == s.boundRevision {
		return
	}
	s.boundRevision = rev

	if s.suppressNext {
		s.suppressNext = false
		s.state = BoundClean
		s.logger.Debug("own write, reseed skipped", "node", node.ID, "revision", rev)
		return
	}

	s.form.SetFieldsValue(node.FormValues())
	s.logger.Debug("external update, form reseeded", "node", node.ID, "revision", rev)
}

func (s *Synchronizer) bind(node *flow.Node, rev uint64) {
	previous := s.boundID

	s.form.ResetFields()
	s.form.SetFieldsValue(node.FormValues())

	s.state = BoundClean
	s.boundID = node.ID
	s.boundRevision = rev
	s.suppressNext = false

	if previous == "" {
		s.logger.Debug("node bound", "node", node.ID, "kind", node.Kind)
	} else {
		s.logger.Debug("node switched", "from", previous, "to", node.ID, "kind", node.Kind)
	}
}

// current returns the selected node when it is the bound one. A selection that
// moved to another node is bound first and nil is returned, so that edits
// queued for the previous node are dropped rather than applied to the new one.
func (s *Synchronizer) current() *flow.Node {
	node := s.store.SelectedNode()
	if node == nil {
		if s.state != NoSelection {
			s.Refresh()
		}
		return nil
	}
	if node.ID != s.boundID {
		s.logger.Debug("edit for stale node dropped", "bound", s.boundID, "selected", node.ID)
		s.Refresh()
		return nil
	}
	return node
}

// HandleValuesChange is the form's change handler. changed holds the edited
// fields and all the complete form value bag.
//
// The changed fields are merged over the node's stored configuration, so keys
// the form still holds but the node no longer has stay absent. The result is
// normalized for the node's kind and written back with the label and
// description in one store update. Without a bound selection the call is a no-op.
func (s *Synchronizer) HandleValuesChange(changed, all flow.Values) {
	node := s.current()
	if node == nil {
		return
	}

	label := node.Label
	if v, ok := all[flow.LabelField].(string); ok {
		label = v
	}
	description := node.Description
	if v, ok := all[flow.DescriptionField].(string); ok {
		description = v
	}

	merged := node.Config.Clone()
	if merged == nil {
		merged = flow.Config{}
	}
	for k, v := range changed {
		if k == flow.LabelField || k == flow.DescriptionField {
			continue
		}
		merged[k] = flow.PlainValue(v)
	}

	cfg := s.pipeline.Normalize(node.Kind, merged, changed, node.Config)
	s.write(node.ID, flow.NodePatch{Label: &label, Description: &description, Config: cfg})
}

// writeField replaces one configuration field of the bound node through the
// same self-originated write path as form edits, then mirrors it into the form.
// It reports whether a write happened.
func (s *Synchronizer) writeField(field string, value interface{}) bool {
	node := s.current()
	if node == nil {
		return false
	}

	merged := node.Config.Clone()
	if merged == nil {
		merged = flow.Config{}
	}
	merged[field] = value

	cfg := s.pipeline.Normalize(node.Kind, merged, flow.Values{field: value}, node.Config)
	s.write(node.ID, flow.NodePatch{Config: cfg})
	s.form.SetFieldValue(field, flow.CloneValue(cfg[field]))
	return true
}

// write performs one store update marked as self-originated. Whether the store
// notifies during UpdateNode or later, the resulting revision is recorded as
// already reflected in the form.
func (s *Synchronizer) write(id string, patch flow.NodePatch) {
	s.suppressNext = true
	s.state = BoundDirty

	s.store.UpdateNode(id, patch)

	s.boundRevision = s.store.Revision(id)
	s.suppressNext = false
	s.state = BoundClean
}

// HandleDelete removes the selected node and clears the selection.
// It is a no-op without a selection or when the node's kind is required.
// It reports whether a node was deleted.
func (s *Synchronizer) HandleDelete() bool {
	node := s.store.SelectedNode()
	if node == nil || node.Kind.Required() {
		return false
	}

	s.store.DeleteNode(node.ID)
	s.store.SetSelectedNode(nil)
	s.Refresh()
	s.logger.Debug("node deleted", "node", node.ID)
	return true
}

// PanelTitle describes the selected node, or NoSelectionTitle
func (s *Synchronizer) PanelTitle() string {
	node := s.store.SelectedNode()
	if node == nil {
		return NoSelectionTitle
	}
	if node.Label == "" {
		return node.Kind.DisplayName()
	}
	return fmt.Sprintf("%s (%s)", node.Label, node.Kind.DisplayName())
}

// CanDelete reports whether the selected node may be deleted.
// Start and end nodes are structurally required.
func (s *Synchronizer) CanDelete() bool {
	node := s.store.SelectedNode()
	return node != nil && !node.Kind.Required()
}
