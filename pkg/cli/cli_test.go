package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/flowedit/pkg/flow"
	"github.com/dshills/flowedit/pkg/storage"
)

// setupTestEnv points the CLI at a temporary configuration directory
func setupTestEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(configDirEnv, dir)
	t.Cleanup(closeReferenceData)
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	require.NoError(t, err, out)
	return out
}

func loadFlow(t *testing.T, dir, name string) *flow.Graph {
	t.Helper()
	repo, err := storage.NewFilesystemFlowRepository(dir)
	require.NoError(t, err)
	g, err := repo.Load(name)
	require.NoError(t, err)
	return g
}

func nodeOfKind(t *testing.T, g *flow.Graph, kind flow.NodeKind) *flow.Node {
	t.Helper()
	for _, n := range g.Nodes {
		if n.Kind == kind {
			return n
		}
	}
	t.Fatalf("flow %s has no %s node", g.Name, kind)
	return nil
}

func TestInitAndValidate(t *testing.T) {
	dir := setupTestEnv(t)

	out := mustRun(t, "init", "order-intake", "-d", "Takes orders")
	assert.Contains(t, out, "✓ Created flow: order-intake")

	g := loadFlow(t, dir, "order-intake")
	assert.Equal(t, "Takes orders", g.Description)
	assert.Equal(t, DefaultProject, g.ProjectID)
	assert.Len(t, g.Nodes, 2)

	_, err := run(t, "init", "order-intake")
	assert.Error(t, err, "existing flows are not overwritten")

	_, err = run(t, "init", "bad name")
	assert.Error(t, err)

	out = mustRun(t, "validate", "order-intake")
	assert.Contains(t, out, "✓ Flow document valid")
	assert.Contains(t, out, "✓ 2 nodes, 1 edges")

	_, err = run(t, "validate", "missing")
	assert.Error(t, err)
}

func TestConfigFileCreated(t *testing.T) {
	dir := setupTestEnv(t)
	mustRun(t, "init", "demo")

	cfg, err := loadFileConfig(dir + "/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, DefaultProject, cfg.Project)
	assert.Equal(t, 100, cfg.UndoCapacity)
}

func TestNodeCommands(t *testing.T) {
	dir := setupTestEnv(t)
	mustRun(t, "init", "order-intake")
	start := nodeOfKind(t, loadFlow(t, dir, "order-intake"), flow.KindStart)

	out := mustRun(t, "node", "add", "order-intake", "script", "--label", "Build", "--after", start.ID)
	assert.Contains(t, out, "✓ Added Script node")

	g := loadFlow(t, dir, "order-intake")
	script := nodeOfKind(t, g, flow.KindScript)
	assert.Equal(t, "Build", script.Label)
	assert.Len(t, g.Edges, 2)

	mustRun(t, "node", "set", "order-intake", script.ID, "label=Fetch order", "source=return 1")
	script = nodeOfKind(t, loadFlow(t, dir, "order-intake"), flow.KindScript)
	assert.Equal(t, "Fetch order", script.Label)
	assert.Equal(t, "return 1", script.Config["source"])
	assert.Equal(t, "javascript", script.Config["language"], "untouched fields are kept")

	out = mustRun(t, "node", "show", "order-intake", script.ID)
	assert.Contains(t, out, "Fetch order (Script)")
	assert.Contains(t, out, "source: return 1")

	out = mustRun(t, "node", "list", "order-intake")
	assert.Contains(t, out, script.ID)

	_, err := run(t, "node", "delete", "order-intake", start.ID)
	assert.Error(t, err, "start nodes cannot be deleted")

	out = mustRun(t, "node", "delete", "order-intake", script.ID)
	assert.Contains(t, out, "✓ Deleted Fetch order (Script)")
	g = loadFlow(t, dir, "order-intake")
	assert.Len(t, g.Nodes, 2)
	assert.Len(t, g.Edges, 1)

	_, err = run(t, "node", "add", "order-intake", "teleporter")
	assert.Error(t, err)
}

func TestParseAssignments(t *testing.T) {
	values, err := parseAssignments([]string{"label=42", "timeoutMs=500", "headers=[a, b]", "url="})
	require.NoError(t, err)
	assert.Equal(t, "42", values[flow.LabelField])
	assert.Equal(t, 500, values["timeoutMs"])
	assert.Equal(t, []interface{}{"a", "b"}, values["headers"])
	assert.Equal(t, "", values["url"])

	_, err = parseAssignments([]string{"novalue"})
	assert.Error(t, err)
}

func TestVarCommands(t *testing.T) {
	dir := setupTestEnv(t)
	mustRun(t, "init", "order-intake")
	g := loadFlow(t, dir, "order-intake")
	start := nodeOfKind(t, g, flow.KindStart)
	end := nodeOfKind(t, g, flow.KindEnd)

	mustRun(t, "var", "add", "order-intake", start.ID, "orderId", "--type", "string")
	mustRun(t, "var", "add", "order-intake", start.ID, "retries", "--type", "number", "--default", "3")

	_, err := run(t, "var", "add", "order-intake", start.ID, "orderId", "--type", "string")
	assert.Error(t, err, "duplicate names are rejected")

	out := mustRun(t, "var", "list", "order-intake", start.ID)
	assert.Contains(t, out, "orderId")
	assert.Contains(t, out, "retries")

	out = mustRun(t, "var", "move", "order-intake", start.ID, "retries", "orderId")
	assert.Equal(t, "retries\norderId\n", out)

	_, err = run(t, "var", "move", "order-intake", start.ID, "retries", "retries")
	assert.Error(t, err)

	mustRun(t, "var", "add", "order-intake", start.ID, "orderRef", "--type", "string", "--replace", "orderId")
	out = mustRun(t, "var", "move", "order-intake", start.ID, "orderRef", "retries")
	assert.Equal(t, "orderRef\nretries\n", out)

	mustRun(t, "var", "remove", "order-intake", start.ID, "retries")
	start = nodeOfKind(t, loadFlow(t, dir, "order-intake"), flow.KindStart)
	vars := flow.DecodeVariables(start.Config[flow.VariablesKey])
	require.Len(t, vars, 1)
	assert.Equal(t, "orderRef", vars[0].Name)

	// end nodes only carry outputs
	mustRun(t, "var", "add", "order-intake", end.ID, "result", "--type", "object")
	_, err = run(t, "var", "add", "order-intake", start.ID, "x", "--output")
	assert.Error(t, err)
}

func TestRefDataCommands(t *testing.T) {
	setupTestEnv(t)

	out := mustRun(t, "refdata", "enum", "add", "Priority", "low:Low", "high:High")
	assert.Contains(t, out, "{{enum.Priority}}")
	out = mustRun(t, "refdata", "const", "add", "TIMEOUT", "30", "--type", "number")
	assert.Contains(t, out, "{{const.TIMEOUT}}")
	mustRun(t, "refdata", "const", "add", "LIMITS", `{"max": 3}`, "--type", "json", "--flow", "checkout")

	_, err := run(t, "refdata", "enum", "add", "Priority", "x")
	assert.Error(t, err, "names are unique per scope")

	out = mustRun(t, "refdata", "enum", "list")
	assert.Contains(t, out, "low, high")

	out = mustRun(t, "refdata", "options")
	assert.Contains(t, out, "Priority")
	assert.Contains(t, out, "Low (low)")
	assert.Contains(t, out, "TIMEOUT = 30")
	assert.NotContains(t, out, "LIMITS")

	out = mustRun(t, "refdata", "options", "--flow", "checkout", "--kind", "constant")
	assert.Contains(t, out, "Flow constants")
	assert.Contains(t, out, `LIMITS = {"max":3}`)
	assert.NotContains(t, out, "Priority")

	out = mustRun(t, "refdata", "options", "--query", "zzz")
	assert.Contains(t, out, "No options")

	_, err = run(t, "refdata", "options", "--kind", "other")
	assert.Error(t, err)
}

func TestRefDataDelete(t *testing.T) {
	setupTestEnv(t)

	out := mustRun(t, "refdata", "const", "add", "API_URL", "https://api", "--type", "string")
	id := strings.TrimSuffix(strings.SplitN(out, "(", 2)[1], ")\n  Reference it as {{const.API_URL}}\n")

	out = mustRun(t, "refdata", "delete", id)
	assert.Contains(t, out, "✓ Deleted constant API_URL")

	out = mustRun(t, "refdata", "const", "list")
	assert.NotContains(t, out, "API_URL")
}
