// Package nodeexec implements the per-node-kind execution logic of
// spec §4.D: entry, transform, switch, downstream-call, and exit.
package nodeexec

import (
	"context"
	"fmt"

	"github.com/relaygraph/toolgraphd/internal/argeval"
	"github.com/relaygraph/toolgraphd/internal/expr"
	"github.com/relaygraph/toolgraphd/internal/history"
	"github.com/relaygraph/toolgraphd/pkg/toolgraph"
)

// DownstreamCaller is the downstream-client manager's Call capability,
// narrowed to an interface so node executors (and their tests) don't
// depend on the concrete transport machinery in internal/downstream.
type DownstreamCaller interface {
	Call(ctx context.Context, serverName string, cfg toolgraph.DownstreamServer, toolName string, args map[string]any) (any, error)
}

// Deps bundles the collaborators a node executor needs.
type Deps struct {
	JSONata    *expr.JSONata
	JSONLogic  *expr.JSONLogic
	Args       *argeval.Evaluator
	Downstream DownstreamCaller
	Config     *toolgraph.Config
}

// Result is what an executor returns on success. Next is empty for an
// exit node and for any other node whose Next is unset; the scheduler
// reports the latter as an error.
type Result struct {
	Output any
	Next   string
}

// Execute dispatches to the node-kind-specific logic. It does not touch
// history; the caller (the scheduler) owns appending the record so that
// the "at most one record on failure" invariant has a single enforcement
// point (spec §7).
func Execute(ctx context.Context, n *toolgraph.Node, toolInput map[string]any, liveCtx map[string]any, hist *history.History, deps *Deps) (Result, error) {
	view := expr.HistoryView{Records: hist.Before(hist.Len()), Index: hist.Len()}

	switch n.Type {
	case toolgraph.NodeEntry:
		return Result{Output: toolInput, Next: n.Next}, nil

	case toolgraph.NodeTransform:
		out, err := deps.JSONata.Eval(n.Expr, liveCtx, view)
		if err != nil {
			return Result{}, &toolgraph.ExpressionError{
				NodeID: n.ID,
				Kind:   toolgraph.ExpressionEvaluationError,
				Expr:   n.Expr,
				Cause:  err,
			}
		}
		return Result{Output: out, Next: n.Next}, nil

	case toolgraph.NodeMCPCall:
		return executeMCPCall(ctx, n, liveCtx, view, deps)

	case toolgraph.NodeSwitch:
		return executeSwitch(n, liveCtx, view, deps)

	case toolgraph.NodeExit:
		// The output is whatever the most recently appended record holds,
		// even when that record belongs to a switch node — whose output is
		// the chosen arm's target id, not a data value. See DESIGN.md,
		// "Switch-node output surprise".
		last, ok := hist.Last()
		if !ok {
			return Result{Output: map[string]any{}}, nil
		}
		return Result{Output: last.Output}, nil

	default:
		return Result{}, fmt.Errorf("unknown node type %q", n.Type)
	}
}

func executeMCPCall(ctx context.Context, n *toolgraph.Node, liveCtx map[string]any, view expr.HistoryView, deps *Deps) (Result, error) {
	lowered, err := deps.Args.Lower(n.Args, liveCtx, view)
	if err != nil {
		return Result{}, err
	}
	loweredArgs, ok := lowered.(map[string]any)
	if !ok {
		return Result{}, &toolgraph.ArgumentEvaluationError{
			Path:  "$",
			Cause: fmt.Errorf("mcp-call args must lower to an object, got %T", lowered),
		}
	}

	serverCfg, ok := deps.Config.DownstreamServers[n.Server]
	if !ok {
		return Result{}, fmt.Errorf("mcp-call node %q references undefined downstream server %q", n.ID, n.Server)
	}

	out, err := deps.Downstream.Call(ctx, n.Server, serverCfg, n.Tool, loweredArgs)
	if err != nil {
		return Result{}, err
	}
	return Result{Output: out, Next: n.Next}, nil
}

// executeSwitch walks arms in declaration order and takes the first arm
// that is either a rule-less default arm or has a truthy rule, so a default
// arm placed before a matching rule wins; arms after it are never
// evaluated. If no arm is taken, the switch node's own Next is used as a
// fallback (the
// validator rejects configurations that set both, so at most one of these
// two default mechanisms is ever present). The chosen arm's target id is
// both the node's output and its next-node-id.
func executeSwitch(n *toolgraph.Node, liveCtx map[string]any, view expr.HistoryView, deps *Deps) (Result, error) {
	for _, arm := range n.Conditions {
		if arm.IsDefault() {
			return Result{Output: arm.Target, Next: arm.Target}, nil
		}
		matched, err := deps.JSONLogic.Eval(arm.Rule, liveCtx, view)
		if err != nil {
			return Result{}, &toolgraph.ExpressionError{
				NodeID: n.ID,
				Kind:   toolgraph.ExpressionEvaluationError,
				Cause:  err,
			}
		}
		if matched {
			return Result{Output: arm.Target, Next: arm.Target}, nil
		}
	}
	if n.Next != "" {
		return Result{Output: n.Next, Next: n.Next}, nil
	}
	return Result{}, &toolgraph.SwitchUnmatchedError{NodeID: n.ID}
}
