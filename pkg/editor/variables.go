package editor

import (
	"context"

	"github.com/dshills/flowedit/pkg/flow"
)

// VariableController edits the ordered variable list of the selected node.
// Writes go through the synchronizer so they never reseed the form.
//
// Name uniqueness is not enforced here; callers validate entries first
// (see flow.ValidateVariableList).
type VariableController struct {
	sync *Synchronizer
	list string
}

// NewVariableController creates a controller over the given list key.
// An empty key selects the list the node's kind carries.
func NewVariableController(sync *Synchronizer, list string) *VariableController {
	return &VariableController{sync: sync, list: list}
}

// SetList switches the active list key
func (c *VariableController) SetList(list string) {
	c.list = list
}

// ListKey returns the list key in effect for the selected node, or "" when the
// node has no matching list
func (c *VariableController) ListKey() string {
	node := c.sync.store.SelectedNode()
	if node == nil {
		return ""
	}
	return c.keyFor(node)
}

func (c *VariableController) keyFor(node *flow.Node) string {
	if c.list == "" {
		if lists := node.Kind.VariableLists(); len(lists) > 0 {
			return lists[0]
		}
		return ""
	}
	if !node.Kind.HasVariableList(c.list) {
		return ""
	}
	return c.list
}

// List returns the variables of the selected node in order.
// It is empty without a selection or when the node has no such list.
func (c *VariableController) List() []flow.Variable {
	node := c.sync.store.SelectedNode()
	if node == nil {
		return []flow.Variable{}
	}
	key := c.keyFor(node)
	if key == "" {
		return []flow.Variable{}
	}
	vars := flow.DecodeVariables(node.Config[key])
	if vars == nil {
		return []flow.Variable{}
	}
	return vars
}

// Save replaces the entry named editing.Name with v in place, or appends v
// when editing is nil or names no entry. An edit without extra keys keeps the
// ones the replaced entry carried.
func (c *VariableController) Save(v flow.Variable, editing *flow.Variable) bool {
	vars, key, ok := c.load()
	if !ok {
		return false
	}

	if editing != nil {
		for i := range vars {
			if vars[i].Name == editing.Name {
				if v.Extra == nil {
					v.Extra = vars[i].Extra
				}
				vars[i] = v
				return c.sync.writeField(key, vars)
			}
		}
	}
	return c.sync.writeField(key, append(vars, v))
}

// Remove deletes the entry with the given name. An unknown name is a no-op.
func (c *VariableController) Remove(name string) bool {
	vars, key, ok := c.load()
	if !ok {
		return false
	}

	kept := make([]flow.Variable, 0, len(vars))
	for _, v := range vars {
		if v.Name != name {
			kept = append(kept, v)
		}
	}
	if len(kept) == len(vars) {
		return false
	}
	return c.sync.writeField(key, kept)
}

// Reorder moves the entry named activeID to the position of overID.
// Equal or unknown names are a no-op.
func (c *VariableController) Reorder(activeID, overID string) bool {
	if activeID == overID {
		return false
	}
	vars, key, ok := c.load()
	if !ok {
		return false
	}

	from, to := indexOf(vars, activeID), indexOf(vars, overID)
	if from < 0 || to < 0 {
		return false
	}
	return c.sync.writeField(key, MoveElement(vars, from, to))
}

// load reads the active list of the bound node
func (c *VariableController) load() ([]flow.Variable, string, bool) {
	node := c.sync.current()
	if node == nil {
		return nil, "", false
	}
	key := c.keyFor(node)
	if key == "" {
		return nil, "", false
	}
	vars := flow.DecodeVariables(node.Config[key])
	if vars == nil {
		vars = []flow.Variable{}
	}
	return vars, key, true
}

func indexOf(vars []flow.Variable, name string) int {
	for i, v := range vars {
		if v.Name == name {
			return i
		}
	}
	return -1
}

type variablesKey struct{}

// WithVariables returns a context carrying the controller
func WithVariables(ctx context.Context, c *VariableController) context.Context {
	return context.WithValue(ctx, variablesKey{}, c)
}

// VariablesFromContext returns the controller carried by ctx.
// It panics when ctx carries none.
func VariablesFromContext(ctx context.Context) *VariableController {
	c, ok := ctx.Value(variablesKey{}).(*VariableController)
	if !ok || c == nil {
		panic("editor: VariablesFromContext called outside a variable controller scope")
	}
	return c
}
