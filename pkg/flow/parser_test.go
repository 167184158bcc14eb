package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFlow = `
id: f1
name: orders
version: "1.0.0"
nodes:
  - id: n1
    kind: start
    label: Start
    config:
      variables:
        - name: orderId
          type: string
  - id: n2
    kind: llm
    label: Summarize
    config:
      model: gpt-4o
      messages:
        - role: system
          content: be brief
  - id: n3
    kind: end
    label: End
edges:
  - id: e1
    from: n1
    to: n2
  - id: e2
    from: n2
    to: n3
`

func TestParse(t *testing.T) {
	g, err := Parse([]byte(sampleFlow))
	require.NoError(t, err)

	require.Len(t, g.Nodes, 3)
	assert.Equal(t, KindLLM, g.Nodes[1].Kind)
	assert.Equal(t, []Variable{{Name: "orderId", Type: "string"}}, DecodeVariables(g.Nodes[0].Config[VariablesKey]))
	assert.NotNil(t, g.Nodes[2].Config, "missing config decodes to an empty map")
	assert.NoError(t, g.Validate())
}

func TestParseRoundTripKeepsVariableOrder(t *testing.T) {
	g, err := Parse([]byte(sampleFlow))
	require.NoError(t, err)
	g.Nodes[0].Config[VariablesKey] = []Variable{{Name: "b"}, {Name: "a"}, {Name: "c"}}

	data, err := Marshal(g)
	require.NoError(t, err)

	back, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, []Variable{{Name: "b"}, {Name: "a"}, {Name: "c"}}, DecodeVariables(back.Nodes[0].Config[VariablesKey]))
}

func TestParseYieldsPlainMaps(t *testing.T) {
	g, err := Parse([]byte(sampleFlow))
	require.NoError(t, err)

	vars, ok := g.Nodes[0].Config[VariablesKey].([]interface{})
	require.True(t, ok)
	assert.IsType(t, map[string]interface{}{}, vars[0])

	msgs, ok := g.Nodes[1].Config["messages"].([]interface{})
	require.True(t, ok)
	assert.Equal(t, map[string]interface{}{"role": "system", "content": "be brief"}, msgs[0])
}

func TestParseErrors(t *testing.T) {
	_, err := Parse(nil)
	assert.Error(t, err)

	_, err = Parse([]byte("nodes: [unclosed"))
	assert.Error(t, err)
}

func TestValidateDocument(t *testing.T) {
	assert.NoError(t, ValidateDocument([]byte(sampleFlow)))

	badKind := `
id: f1
name: orders
nodes:
  - id: n1
    kind: teleport
`
	err := ValidateDocument([]byte(badKind))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema validation failed")

	missingName := `
id: f1
nodes: []
`
	assert.Error(t, ValidateDocument([]byte(missingName)))
}
