package graph_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaygraph/toolgraphd/internal/expr"
	"github.com/relaygraph/toolgraphd/internal/graph"
	"github.com/relaygraph/toolgraphd/pkg/toolgraph"
)

func newValidator() *graph.Validator {
	jsonata := expr.NewJSONata()
	return graph.NewValidator(jsonata, expr.NewJSONLogic(jsonata))
}

func validTool() toolgraph.Tool {
	return toolgraph.Tool{
		Name: "count-files",
		Nodes: []toolgraph.Node{
			{ID: "entry", Type: toolgraph.NodeEntry, Next: "transform"},
			{ID: "transform", Type: toolgraph.NodeTransform, Expr: "directory", Next: "exit"},
			{ID: "exit", Type: toolgraph.NodeExit},
		},
	}
}

func TestValidate_AcceptsWellFormedTool(t *testing.T) {
	v := newValidator()
	cfg := &toolgraph.Config{Tools: []toolgraph.Tool{validTool()}}
	assert.Nil(t, v.Validate(cfg))
}

func TestValidate_DuplicateToolName(t *testing.T) {
	v := newValidator()
	tool := validTool()
	cfg := &toolgraph.Config{Tools: []toolgraph.Tool{tool, tool}}

	err := v.Validate(cfg)
	require.NotNil(t, err)
	assertContains(t, err.Messages, "duplicate tool name")
}

func TestValidate_EntryExitCounts(t *testing.T) {
	v := newValidator()

	tool := validTool()
	tool.Nodes = append(tool.Nodes, toolgraph.Node{ID: "entry2", Type: toolgraph.NodeEntry, Next: "exit"})
	cfg := &toolgraph.Config{Tools: []toolgraph.Tool{tool}}

	err := v.Validate(cfg)
	require.NotNil(t, err)
	assertContains(t, err.Messages, "expected exactly one entry node, found 2")

	tool2 := validTool()
	tool2.Nodes = tool2.Nodes[:2]
	cfg2 := &toolgraph.Config{Tools: []toolgraph.Tool{tool2}}
	err2 := v.Validate(cfg2)
	require.NotNil(t, err2)
	assertContains(t, err2.Messages, "expected exactly one exit node, found 0")
}

func TestValidate_DuplicateNodeID(t *testing.T) {
	v := newValidator()
	tool := validTool()
	tool.Nodes = append(tool.Nodes, toolgraph.Node{ID: "entry", Type: toolgraph.NodeTransform, Expr: "value", Next: "exit"})
	cfg := &toolgraph.Config{Tools: []toolgraph.Tool{tool}}

	err := v.Validate(cfg)
	require.NotNil(t, err)
	assertContains(t, err.Messages, `duplicate node id "entry"`)
}

func TestValidate_DanglingNextReference(t *testing.T) {
	v := newValidator()
	tool := validTool()
	tool.Nodes[1].Next = "nowhere"
	cfg := &toolgraph.Config{Tools: []toolgraph.Tool{tool}}

	err := v.Validate(cfg)
	require.NotNil(t, err)
	assertContains(t, err.Messages, `"nowhere" is not a defined node`)
}

func TestValidate_UnreachableExit(t *testing.T) {
	v := newValidator()
	tool := toolgraph.Tool{
		Name: "orphan-exit",
		Nodes: []toolgraph.Node{
			{ID: "entry", Type: toolgraph.NodeEntry, Next: "entry"},
			{ID: "exit", Type: toolgraph.NodeExit},
		},
	}
	cfg := &toolgraph.Config{Tools: []toolgraph.Tool{tool}}

	err := v.Validate(cfg)
	require.NotNil(t, err)
	assertContains(t, err.Messages, "exit is not reachable from entry")
}

func TestValidate_SwitchDefaultArmAndNextBothSetIsRejected(t *testing.T) {
	v := newValidator()
	tool := toolgraph.Tool{
		Name: "switch-high",
		Nodes: []toolgraph.Node{
			{ID: "entry", Type: toolgraph.NodeEntry, Next: "switch"},
			{
				ID:   "switch",
				Type: toolgraph.NodeSwitch,
				Conditions: []toolgraph.SwitchArm{
					{Rule: map[string]any{">": []any{map[string]any{"var": "value"}, 10}}, Target: "exit"},
					{Target: "exit"},
				},
				Next: "exit",
			},
			{ID: "exit", Type: toolgraph.NodeExit},
		},
	}
	cfg := &toolgraph.Config{Tools: []toolgraph.Tool{tool}}

	err := v.Validate(cfg)
	require.NotNil(t, err)
	assertContains(t, err.Messages, "both a rule-less default arm and a top-level next")
}

func TestValidate_SwitchNoConditions(t *testing.T) {
	v := newValidator()
	tool := toolgraph.Tool{
		Name: "empty-switch",
		Nodes: []toolgraph.Node{
			{ID: "entry", Type: toolgraph.NodeEntry, Next: "switch"},
			{ID: "switch", Type: toolgraph.NodeSwitch, Next: "exit"},
			{ID: "exit", Type: toolgraph.NodeExit},
		},
	}
	cfg := &toolgraph.Config{Tools: []toolgraph.Tool{tool}}

	err := v.Validate(cfg)
	require.NotNil(t, err)
	assertContains(t, err.Messages, "switch node has no conditions")
}

func TestValidate_MCPCallUndefinedServerAndMissingTool(t *testing.T) {
	v := newValidator()
	tool := toolgraph.Tool{
		Name: "call-out",
		Nodes: []toolgraph.Node{
			{ID: "entry", Type: toolgraph.NodeEntry, Next: "call"},
			{ID: "call", Type: toolgraph.NodeMCPCall, Server: "missing", Next: "exit"},
			{ID: "exit", Type: toolgraph.NodeExit},
		},
	}
	cfg := &toolgraph.Config{Tools: []toolgraph.Tool{tool}}

	err := v.Validate(cfg)
	require.NotNil(t, err)
	assertContains(t, err.Messages, `references undefined downstream server "missing"`)
	assertContains(t, err.Messages, "mcp-call node has no tool")
}

func TestValidate_TransformExpressionSyntaxError(t *testing.T) {
	v := newValidator()
	tool := validTool()
	tool.Nodes[1].Expr = "value >"
	cfg := &toolgraph.Config{Tools: []toolgraph.Tool{tool}}

	err := v.Validate(cfg)
	require.NotNil(t, err)
	assertContains(t, err.Messages, "expression syntax error")
}

func TestValidateTool_UsesConfigForServerResolutionOnATransientTool(t *testing.T) {
	v := newValidator()
	tool := validTool()
	tool.Nodes[0].Next = "call"
	tool.Nodes = append(tool.Nodes, toolgraph.Node{ID: "call", Type: toolgraph.NodeMCPCall, Server: "fs", Tool: "list_directory", Next: "transform"})
	cfg := &toolgraph.Config{
		DownstreamServers: map[string]toolgraph.DownstreamServer{
			"fs": {Transport: toolgraph.TransportStdio, Command: "fs-server"},
		},
	}

	msgs := v.ValidateTool(cfg, tool)
	assert.Empty(t, msgs)
}

func assertContains(t *testing.T, messages []string, substr string) {
	t.Helper()
	for _, m := range messages {
		if strings.Contains(m, substr) {
			return
		}
	}
	t.Fatalf("expected one message to contain %q, got: %v", substr, messages)
}
