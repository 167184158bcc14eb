package editor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/flowedit/pkg/flow"
)

func names(vars []flow.Variable) []string {
	out := make([]string, 0, len(vars))
	for _, v := range vars {
		out = append(out, v.Name)
	}
	return out
}

func variablesOf(t *testing.T, store *countingStore, id, key string) []flow.Variable {
	t.Helper()
	n, ok := store.Node(id)
	require.True(t, ok)
	return flow.DecodeVariables(n.Config[key])
}

func TestEditorEndToEnd(t *testing.T) {
	store := newTestStore(testNode("n1", flow.KindStart, "Start", flow.Config{
		flow.VariablesKey: []flow.Variable{{Name: "x"}},
	}))
	form := newRecordingForm()
	sync := attach(t, store, form)
	vars := NewVariableController(sync, flow.VariablesKey)

	require.NoError(t, store.Select("n1"))

	form.Edit(flow.LabelField, "Start A")
	n, _ := store.Node("n1")
	assert.Equal(t, "Start A", n.Label)
	assert.Equal(t, []flow.Variable{{Name: "x"}}, n.Config[flow.VariablesKey])

	require.True(t, vars.Save(flow.Variable{Name: "y"}, nil))
	n, _ = store.Node("n1")
	assert.Equal(t, []flow.Variable{{Name: "x"}, {Name: "y"}}, n.Config[flow.VariablesKey])

	require.True(t, vars.Reorder("y", "x"))
	n, _ = store.Node("n1")
	assert.Equal(t, []flow.Variable{{Name: "y"}, {Name: "x"}}, n.Config[flow.VariablesKey])

	assert.Equal(t, 3, store.writes)
	assert.Equal(t, 1, form.seeds, "controller writes never reseed the form")
	mirrored, _ := form.Value(flow.VariablesKey)
	assert.Equal(t, []flow.Variable{{Name: "y"}, {Name: "x"}}, mirrored)
	label, _ := form.Value(flow.LabelField)
	assert.Equal(t, "Start A", label)
}

func TestVariableControllerList(t *testing.T) {
	store := newTestStore(
		testNode("start", flow.KindStart, "Start", flow.Config{
			flow.VariablesKey: []interface{}{
				map[string]interface{}{"name": "a", "type": "string"},
				map[string]interface{}{"name": "b", "type": "number", "defaultValue": 1},
			},
		}),
		testNode("end", flow.KindEnd, "End", flow.Config{
			flow.OutputVariablesKey: []flow.Variable{{Name: "result"}},
		}),
		testNode("s", flow.KindScript, "Script", nil),
	)
	sync := attach(t, store, newRecordingForm())
	vars := NewVariableController(sync, "")

	assert.Equal(t, []flow.Variable{}, vars.List(), "empty without a selection")
	assert.Equal(t, "", vars.ListKey())

	require.NoError(t, store.Select("start"))
	assert.Equal(t, []string{"a", "b"}, names(vars.List()))
	assert.Equal(t, flow.VariablesKey, vars.ListKey())
	assert.Equal(t, 1, vars.List()[1].DefaultValue)

	require.NoError(t, store.Select("end"))
	assert.Equal(t, []string{"result"}, names(vars.List()))
	assert.Equal(t, flow.OutputVariablesKey, vars.ListKey())

	vars.SetList(flow.VariablesKey)
	assert.Equal(t, []flow.Variable{}, vars.List(), "end nodes carry no input variables")
	assert.False(t, vars.Save(flow.Variable{Name: "z"}, nil))

	require.NoError(t, store.Select("s"))
	vars.SetList("")
	assert.Equal(t, []flow.Variable{}, vars.List())
	assert.False(t, vars.Save(flow.Variable{Name: "z"}, nil))
	assert.Equal(t, 0, store.writes)
}

func TestVariableControllerSave(t *testing.T) {
	store := newTestStore(testNode("end", flow.KindEnd, "End", flow.Config{
		flow.OutputVariablesKey: []flow.Variable{{Name: "a"}, {Name: "b", Type: "string"}, {Name: "c"}},
	}))
	sync := attach(t, store, newRecordingForm())
	vars := NewVariableController(sync, flow.OutputVariablesKey)
	require.NoError(t, store.Select("end"))

	editing := flow.Variable{Name: "b"}
	require.True(t, vars.Save(flow.Variable{Name: "renamed", Type: "number"}, &editing))
	got := variablesOf(t, store, "end", flow.OutputVariablesKey)
	assert.Equal(t, []string{"a", "renamed", "c"}, names(got), "edits keep their position")
	assert.Equal(t, "number", got[1].Type)

	missing := flow.Variable{Name: "ghost"}
	require.True(t, vars.Save(flow.Variable{Name: "d"}, &missing))
	assert.Equal(t, []string{"a", "renamed", "c", "d"}, names(variablesOf(t, store, "end", flow.OutputVariablesKey)),
		"an unmatched edit is a create")
}

func TestVariableControllerRemove(t *testing.T) {
	store := newTestStore(testNode("start", flow.KindStart, "Start", flow.Config{
		flow.VariablesKey: []flow.Variable{{Name: "a"}, {Name: "b"}},
	}))
	sync := attach(t, store, newRecordingForm())
	vars := NewVariableController(sync, flow.VariablesKey)

	assert.False(t, vars.Remove("a"), "no-op without a selection")
	require.NoError(t, store.Select("start"))

	assert.True(t, vars.Remove("a"))
	assert.Equal(t, []string{"b"}, names(vars.List()))

	assert.False(t, vars.Remove("a"))
	assert.Equal(t, 1, store.writes)
}

func TestVariableControllerReorder(t *testing.T) {
	store := newTestStore(testNode("start", flow.KindStart, "Start", flow.Config{
		flow.VariablesKey: []flow.Variable{{Name: "a"}, {Name: "b"}, {Name: "c"}, {Name: "d"}},
	}))
	sync := attach(t, store, newRecordingForm())
	vars := NewVariableController(sync, flow.VariablesKey)
	require.NoError(t, store.Select("start"))

	assert.False(t, vars.Reorder("b", "b"))
	assert.False(t, vars.Reorder("b", "zz"))
	assert.False(t, vars.Reorder("zz", "a"))
	assert.Equal(t, []string{"a", "b", "c", "d"}, names(vars.List()))
	assert.Equal(t, 0, store.writes)

	assert.True(t, vars.Reorder("b", "d"))
	assert.Equal(t, []string{"a", "c", "d", "b"}, names(vars.List()))

	assert.True(t, vars.Reorder("b", "a"))
	assert.Equal(t, []string{"b", "a", "c", "d"}, names(vars.List()))
}

func TestVariableControllerDropsStaleWrite(t *testing.T) {
	store := newTestStore(
		testNode("start", flow.KindStart, "Start", flow.Config{flow.VariablesKey: []flow.Variable{{Name: "a"}}}),
		testNode("sub", flow.KindSubFlow, "Sub", flow.Config{flow.VariablesKey: []flow.Variable{{Name: "s"}}}),
	)
	form := newRecordingForm()
	sync := NewSynchronizer(store, form)
	vars := NewVariableController(sync, flow.VariablesKey)

	require.NoError(t, store.Select("start"))
	sync.Refresh()
	require.NoError(t, store.Select("sub"))

	assert.False(t, vars.Save(flow.Variable{Name: "late"}, nil))
	assert.Equal(t, []string{"s"}, names(variablesOf(t, store, "sub", flow.VariablesKey)))
	assert.Equal(t, "sub", sync.BoundID())
}

func TestVariablesFromContext(t *testing.T) {
	store := newTestStore()
	c := NewVariableController(NewSynchronizer(store, NewMapForm()), "")

	ctx := WithVariables(context.Background(), c)
	assert.Same(t, c, VariablesFromContext(ctx))

	assert.Panics(t, func() {
		VariablesFromContext(context.Background())
	})
}

func TestVariableControllerKeepsExtraKeys(t *testing.T) {
	store := newLoadedStore(t, `
id: f1
name: extras
nodes:
  - id: start
    kind: start
    label: Start
    config:
      variables:
        - name: a
          type: string
          required: true
          label: A
        - name: b
`)
	sync := attach(t, store, newRecordingForm())
	vars := NewVariableController(sync, flow.VariablesKey)
	require.NoError(t, store.Select("start"))
	extra := map[string]interface{}{"required": true, "label": "A"}

	require.True(t, vars.Reorder("b", "a"))
	got := variablesOf(t, store, "start", flow.VariablesKey)
	require.Equal(t, []string{"b", "a"}, names(got))
	assert.Equal(t, extra, got[1].Extra)

	editing := flow.Variable{Name: "a"}
	require.True(t, vars.Save(flow.Variable{Name: "a", Type: "number"}, &editing))
	got = variablesOf(t, store, "start", flow.VariablesKey)
	assert.Equal(t, "number", got[1].Type)
	assert.Equal(t, extra, got[1].Extra)

	require.True(t, vars.Remove("b"))
	got = variablesOf(t, store, "start", flow.VariablesKey)
	require.Len(t, got, 1)
	assert.Equal(t, extra, got[0].Extra)

	data, err := flow.Marshal(store.Graph())
	require.NoError(t, err)
	reloaded, err := flow.Parse(data)
	require.NoError(t, err)
	start, ok := reloaded.Node("start")
	require.True(t, ok)
	assert.Equal(t, []flow.Variable{{Name: "a", Type: "number", Extra: extra}},
		flow.DecodeVariables(start.Config[flow.VariablesKey]))
}
