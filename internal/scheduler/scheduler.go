package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/relaygraph/toolgraphd/internal/graph"
	"github.com/relaygraph/toolgraphd/internal/history"
	"github.com/relaygraph/toolgraphd/internal/nodeexec"
	"github.com/relaygraph/toolgraphd/pkg/toolgraph"
)

// Result is what one invocation returns to its caller: the final output,
// the complete history, and telemetry when requested. InvocationID is
// assigned once per Start call and is stable across pause/resume/step.
type Result struct {
	InvocationID string
	Output       any
	History      []toolgraph.HistoryRecord
	Telemetry    *toolgraph.Telemetry
}

// Invocation is a started, possibly still-running execution. Callers
// drive it via its Controller and read the outcome from Wait.
type Invocation struct {
	Controller   *Controller
	InvocationID string

	done   chan struct{}
	result *Result
	err    error
}

// Wait blocks until the invocation reaches a terminal state and returns
// its outcome.
func (inv *Invocation) Wait() (*Result, error) {
	<-inv.done
	return inv.result, inv.err
}

// Start builds the node graph, validates the entry node exists, and
// begins executing tool against args in a new goroutine, returning
// immediately with the invocation handle. Use this form when the caller
// needs to pause/resume/step/stop mid-execution.
func Start(ctx context.Context, cfg *toolgraph.Config, tool *toolgraph.Tool, deps *nodeexec.Deps, args map[string]any, opts Options) (*Invocation, error) {
	g := graph.Build(tool)
	entry, ok := g.EntryNode()
	if !ok {
		return nil, fmt.Errorf("tool %q has no entry node", tool.Name)
	}

	ctrl := newController(opts)
	invocationID := uuid.New().String()
	inv := &Invocation{Controller: ctrl, InvocationID: invocationID, done: make(chan struct{})}

	go func() {
		result, err := run(ctx, g, entry, tool.Name, invocationID, cfg.ExecutionLimits, deps, args, opts, ctrl)
		inv.result, inv.err = result, err
		close(inv.done)
	}()

	return inv, nil
}

// Run executes tool against args to completion and blocks for the
// result. Equivalent to Start followed by Wait; used when the caller has
// no need to interact with the controller mid-flight (no breakpoints, no
// start-paused).
func Run(ctx context.Context, cfg *toolgraph.Config, tool *toolgraph.Tool, deps *nodeexec.Deps, args map[string]any, opts Options) (*Result, error) {
	inv, err := Start(ctx, cfg, tool, deps, args, opts)
	if err != nil {
		return nil, err
	}
	return inv.Wait()
}

func run(ctx context.Context, g *graph.Graph, entry *toolgraph.Node, toolName, invocationID string, limits toolgraph.ExecutionLimits, deps *nodeexec.Deps, args map[string]any, opts Options, ctrl *Controller) (*Result, error) {
	ctrl.mu.Lock()
	ctrl.status = StatusRunning
	ctrl.mu.Unlock()

	hist := history.New()
	start := time.Now()
	currentID := entry.ID

	for {
		node, ok := g.Node(currentID)
		if !ok {
			ctrl.finish(StatusError)
			return buildResult(invocationID, hist, opts, start), fmt.Errorf("tool %q: dangling node reference %q", toolName, currentID)
		}

		// Step 1: limits check.
		if hist.Len() >= limits.MaxNodeExecutions {
			ctrl.finish(StatusError)
			return buildResult(invocationID, hist, opts, start), &toolgraph.LimitExceededError{
				Kind:    toolgraph.LimitNodeExecutions,
				Limit:   int64(limits.MaxNodeExecutions),
				Current: int64(hist.Len()),
			}
		}
		if elapsed := time.Since(start); elapsed >= time.Duration(limits.MaxExecutionTimeMS)*time.Millisecond {
			ctrl.finish(StatusError)
			return buildResult(invocationID, hist, opts, start), &toolgraph.LimitExceededError{
				Kind:    toolgraph.LimitExecutionTime,
				Limit:   int64(limits.MaxExecutionTimeMS),
				Current: elapsed.Milliseconds(),
			}
		}

		// Steps 2-3: stop check, breakpoint/pause check.
		if !ctrl.awaitTurn(currentID) {
			ctrl.finish(StatusStopped)
			return buildResult(invocationID, hist, opts, start), &toolgraph.CancelledError{}
		}

		liveCtx := history.LiveContext(hist.Before(hist.Len()))

		// Step 4: onNodeStart.
		if opts.Hooks.OnNodeStart != nil && !opts.Hooks.OnNodeStart(currentID, liveCtx) {
			ctrl.requestPause()
			if !ctrl.awaitTurn(currentID) {
				ctrl.finish(StatusStopped)
				return buildResult(invocationID, hist, opts, start), &toolgraph.CancelledError{}
			}
		}

		// Step 5: execute.
		var toolInput map[string]any
		if node.Type == toolgraph.NodeEntry {
			toolInput = args
		}
		nodeStart := time.Now()
		result, execErr := nodeexec.Execute(ctx, node, toolInput, liveCtx, hist, deps)
		nodeEnd := time.Now()

		rec := toolgraph.HistoryRecord{
			NodeID:    currentID,
			NodeType:  node.Type,
			StartTime: nodeStart,
			EndTime:   nodeEnd,
			Duration:  nodeEnd.Sub(nodeStart),
		}

		if execErr != nil {
			rec.Error = execErr
			hist.Append(rec)
			if opts.Hooks.OnNodeError != nil {
				opts.Hooks.OnNodeError(currentID, execErr)
			}
			ctrl.finish(StatusError)
			return buildResult(invocationID, hist, opts, start), execErr
		}

		rec.Output = result.Output
		hist.Append(rec)

		// Step 6: onNodeComplete.
		if opts.Hooks.OnNodeComplete != nil {
			opts.Hooks.OnNodeComplete(currentID, liveCtx, result.Output, rec.Duration)
		}

		// Step 7: step-complete bookkeeping.
		ctrl.markStepComplete()

		if node.Type == toolgraph.NodeExit {
			ctrl.finish(StatusFinished)
			return buildResult(invocationID, hist, opts, start), nil
		}

		// Steps 8-9: advance.
		if result.Next == "" {
			ctrl.finish(StatusError)
			return buildResult(invocationID, hist, opts, start), fmt.Errorf("node %q has no successor and is not an exit node", currentID)
		}
		currentID = result.Next
	}
}

func buildResult(invocationID string, hist *history.History, opts Options, start time.Time) *Result {
	records := hist.Records()
	var output any
	if len(records) > 0 {
		output = records[len(records)-1].Output
	}
	var tel *toolgraph.Telemetry
	if opts.EnableTelemetry {
		tel = buildTelemetry(records, start)
	}
	return &Result{InvocationID: invocationID, Output: output, History: records, Telemetry: tel}
}

func buildTelemetry(records []toolgraph.HistoryRecord, start time.Time) *toolgraph.Telemetry {
	stats := make(map[toolgraph.NodeType]toolgraph.NodeTypeStats)
	errCount := 0
	for _, r := range records {
		if r.Error != nil {
			errCount++
		}
		s := stats[r.NodeType]
		if s.Count == 0 || r.Duration < s.MinDuration {
			s.MinDuration = r.Duration
		}
		if r.Duration > s.MaxDuration {
			s.MaxDuration = r.Duration
		}
		s.Count++
		s.TotalDuration += r.Duration
		stats[r.NodeType] = s
	}
	return &toolgraph.Telemetry{
		TotalDuration: time.Since(start),
		NodeStats:     stats,
		ErrorCount:    errCount,
	}
}
