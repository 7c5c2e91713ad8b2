package nodeexec_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaygraph/toolgraphd/internal/argeval"
	"github.com/relaygraph/toolgraphd/internal/expr"
	"github.com/relaygraph/toolgraphd/internal/history"
	"github.com/relaygraph/toolgraphd/internal/nodeexec"
	"github.com/relaygraph/toolgraphd/pkg/toolgraph"
)

type fakeDownstream struct {
	calls []fakeCall
	out   any
	err   error
}

type fakeCall struct {
	server string
	tool   string
	args   map[string]any
}

func (f *fakeDownstream) Call(ctx context.Context, serverName string, cfg toolgraph.DownstreamServer, toolName string, args map[string]any) (any, error) {
	f.calls = append(f.calls, fakeCall{server: serverName, tool: toolName, args: args})
	return f.out, f.err
}

func newDeps(t *testing.T, downstream nodeexec.DownstreamCaller, cfg *toolgraph.Config) *nodeexec.Deps {
	t.Helper()
	jsonata := expr.NewJSONata()
	if cfg == nil {
		cfg = &toolgraph.Config{}
	}
	return &nodeexec.Deps{
		JSONata:    jsonata,
		JSONLogic:  expr.NewJSONLogic(jsonata),
		Args:       argeval.New(jsonata),
		Downstream: downstream,
		Config:     cfg,
	}
}

func TestExecute_EntryPassesThroughToolInput(t *testing.T) {
	deps := newDeps(t, nil, nil)
	n := &toolgraph.Node{ID: "entry", Type: toolgraph.NodeEntry, Next: "transform"}
	input := map[string]any{"directory": "./tests"}

	res, err := nodeexec.Execute(context.Background(), n, input, nil, history.New(), deps)
	require.NoError(t, err)
	assert.Equal(t, input, res.Output)
	assert.Equal(t, "transform", res.Next)
}

func TestExecute_TransformEvaluatesAgainstLiveContext(t *testing.T) {
	deps := newDeps(t, nil, nil)
	n := &toolgraph.Node{ID: "t", Type: toolgraph.NodeTransform, Expr: "entry.directory", Next: "exit"}
	liveCtx := map[string]any{"entry": map[string]any{"directory": "./tests"}}

	res, err := nodeexec.Execute(context.Background(), n, nil, liveCtx, history.New(), deps)
	require.NoError(t, err)
	assert.Equal(t, "./tests", res.Output)
}

func TestExecute_TransformSyntaxErrorWrapsAsExpressionError(t *testing.T) {
	deps := newDeps(t, nil, nil)
	n := &toolgraph.Node{ID: "t", Type: toolgraph.NodeTransform, Expr: "value >", Next: "exit"}

	_, err := nodeexec.Execute(context.Background(), n, nil, map[string]any{}, history.New(), deps)
	require.Error(t, err)
	var exprErr *toolgraph.ExpressionError
	require.ErrorAs(t, err, &exprErr)
	assert.Equal(t, "t", exprErr.NodeID)
}

func TestExecute_ExitReturnsLastHistoryRecordOutput(t *testing.T) {
	deps := newDeps(t, nil, nil)
	hist := history.New()
	hist.Append(toolgraph.HistoryRecord{NodeID: "transform", Output: "final value"})

	n := &toolgraph.Node{ID: "exit", Type: toolgraph.NodeExit}
	res, err := nodeexec.Execute(context.Background(), n, nil, nil, hist, deps)
	require.NoError(t, err)
	assert.Equal(t, "final value", res.Output)
}

func TestExecute_ExitWithEmptyHistoryReturnsEmptyObject(t *testing.T) {
	deps := newDeps(t, nil, nil)
	n := &toolgraph.Node{ID: "exit", Type: toolgraph.NodeExit}

	res, err := nodeexec.Execute(context.Background(), n, nil, nil, history.New(), deps)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, res.Output)
}

func TestExecute_SwitchFirstMatchingArmWins(t *testing.T) {
	deps := newDeps(t, nil, nil)
	n := &toolgraph.Node{
		ID:   "switch",
		Type: toolgraph.NodeSwitch,
		Conditions: []toolgraph.SwitchArm{
			{Rule: map[string]any{">": []any{map[string]any{"var": "value"}, 10}}, Target: "high"},
			{Rule: map[string]any{"<=": []any{map[string]any{"var": "value"}, 10}}, Target: "low"},
		},
	}

	res, err := nodeexec.Execute(context.Background(), n, nil, map[string]any{"value": 15}, history.New(), deps)
	require.NoError(t, err)
	assert.Equal(t, "high", res.Output)
	assert.Equal(t, "high", res.Next)

	res, err = nodeexec.Execute(context.Background(), n, nil, map[string]any{"value": 5}, history.New(), deps)
	require.NoError(t, err)
	assert.Equal(t, "low", res.Output)
}

func TestExecute_SwitchDefaultArmWinsWhenNoRuleMatches(t *testing.T) {
	deps := newDeps(t, nil, nil)
	n := &toolgraph.Node{
		ID:   "switch",
		Type: toolgraph.NodeSwitch,
		Conditions: []toolgraph.SwitchArm{
			{Rule: map[string]any{">": []any{map[string]any{"var": "value"}, 100}}, Target: "high"},
			{Target: "default-path"},
		},
	}

	res, err := nodeexec.Execute(context.Background(), n, nil, map[string]any{"value": 5}, history.New(), deps)
	require.NoError(t, err)
	assert.Equal(t, "default-path", res.Output)
}

func TestExecute_SwitchFallsBackToNextWhenNoArmMatchesAndNoDefault(t *testing.T) {
	deps := newDeps(t, nil, nil)
	n := &toolgraph.Node{
		ID:   "switch",
		Type: toolgraph.NodeSwitch,
		Next: "fallback",
		Conditions: []toolgraph.SwitchArm{
			{Rule: map[string]any{">": []any{map[string]any{"var": "value"}, 100}}, Target: "high"},
		},
	}

	res, err := nodeexec.Execute(context.Background(), n, nil, map[string]any{"value": 5}, history.New(), deps)
	require.NoError(t, err)
	assert.Equal(t, "fallback", res.Output)
}

func TestExecute_SwitchUnmatchedWithNoFallbackReturnsSwitchUnmatchedError(t *testing.T) {
	deps := newDeps(t, nil, nil)
	n := &toolgraph.Node{
		ID:   "switch",
		Type: toolgraph.NodeSwitch,
		Conditions: []toolgraph.SwitchArm{
			{Rule: map[string]any{">": []any{map[string]any{"var": "value"}, 100}}, Target: "high"},
		},
	}

	_, err := nodeexec.Execute(context.Background(), n, nil, map[string]any{"value": 5}, history.New(), deps)
	require.Error(t, err)
	var unmatched *toolgraph.SwitchUnmatchedError
	require.ErrorAs(t, err, &unmatched)
	assert.Equal(t, "switch", unmatched.NodeID)
}

func TestExecute_MCPCallLowersArgsAndDispatchesToDownstream(t *testing.T) {
	fake := &fakeDownstream{out: map[string]any{"count": 3}}
	cfg := &toolgraph.Config{
		DownstreamServers: map[string]toolgraph.DownstreamServer{
			"fs": {Transport: toolgraph.TransportStdio, Command: "fs-server"},
		},
	}
	deps := newDeps(t, fake, cfg)
	n := &toolgraph.Node{
		ID:     "call",
		Type:   toolgraph.NodeMCPCall,
		Server: "fs",
		Tool:   "count_files",
		Next:   "exit",
		Args: map[string]any{
			"path": map[string]any{"expr": "entry.directory"},
		},
	}
	liveCtx := map[string]any{"entry": map[string]any{"directory": "./tests"}}

	res, err := nodeexec.Execute(context.Background(), n, nil, liveCtx, history.New(), deps)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"count": 3}, res.Output)
	assert.Equal(t, "exit", res.Next)

	require.Len(t, fake.calls, 1)
	assert.Equal(t, "fs", fake.calls[0].server)
	assert.Equal(t, "count_files", fake.calls[0].tool)
	assert.Equal(t, "./tests", fake.calls[0].args["path"])
}

func TestExecute_MCPCallUndefinedServerErrors(t *testing.T) {
	fake := &fakeDownstream{}
	deps := newDeps(t, fake, &toolgraph.Config{})
	n := &toolgraph.Node{ID: "call", Type: toolgraph.NodeMCPCall, Server: "missing", Tool: "x"}

	_, err := nodeexec.Execute(context.Background(), n, nil, map[string]any{}, history.New(), deps)
	require.Error(t, err)
	assert.Empty(t, fake.calls, "the downstream caller must not be invoked for an undefined server")
}

func TestExecute_MCPCallPropagatesDownstreamError(t *testing.T) {
	wantErr := errors.New("boom")
	fake := &fakeDownstream{err: wantErr}
	cfg := &toolgraph.Config{
		DownstreamServers: map[string]toolgraph.DownstreamServer{
			"fs": {Transport: toolgraph.TransportStdio, Command: "fs-server"},
		},
	}
	deps := newDeps(t, fake, cfg)
	n := &toolgraph.Node{ID: "call", Type: toolgraph.NodeMCPCall, Server: "fs", Tool: "x", Args: map[string]any{}}

	_, err := nodeexec.Execute(context.Background(), n, nil, map[string]any{}, history.New(), deps)
	require.ErrorIs(t, err, wantErr)
}
