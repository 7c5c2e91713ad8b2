// Package engine provides the concrete, in-memory implementation of
// pkg/toolgraph.Host: it owns the configuration, the graph validator, the
// downstream-client manager, and dispatches invocations to the
// scheduler. Constructor validates its required collaborators and
// exposes a Close lifecycle, mirroring internal/mcp.Server's shape in the
// teacher repo (re-targeted: this type is not itself an MCP server, it
// is what one would call).
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/relaygraph/toolgraphd/internal/argeval"
	"github.com/relaygraph/toolgraphd/internal/config"
	"github.com/relaygraph/toolgraphd/internal/downstream"
	"github.com/relaygraph/toolgraphd/internal/expr"
	"github.com/relaygraph/toolgraphd/internal/graph"
	"github.com/relaygraph/toolgraphd/internal/nodeexec"
	"github.com/relaygraph/toolgraphd/internal/obs"
	"github.com/relaygraph/toolgraphd/internal/scheduler"
	"github.com/relaygraph/toolgraphd/pkg/toolgraph"
)

// Engine is the concrete Host implementation.
type Engine struct {
	logger *zap.Logger

	mu  sync.RWMutex
	cfg *toolgraph.Config

	jsonata    *expr.JSONata
	jsonlogic  *expr.JSONLogic
	validator  *graph.Validator
	args       *argeval.Evaluator
	downstream *downstream.Manager

	metrics        *obs.Metrics
	tracer         trace.Tracer
	tracerProvider *sdktrace.TracerProvider
}

// New constructs an Engine around cfg, validating the graph up front.
// logger may be nil, in which case a no-op logger is used.
func New(cfg *toolgraph.Config, logger *zap.Logger) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("engine: configuration is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	jsonata := expr.NewJSONata()
	jsonlogic := expr.NewJSONLogic(jsonata)
	validator := graph.NewValidator(jsonata, jsonlogic)

	if verr := validator.Validate(cfg); verr != nil {
		return nil, verr
	}

	tp := obs.NewTracerProvider(logger)

	return &Engine{
		logger:         logger,
		cfg:            cfg,
		jsonata:        jsonata,
		jsonlogic:      jsonlogic,
		validator:      validator,
		args:           argeval.New(jsonata),
		downstream:     downstream.NewManager(cfg.Server.Name, cfg.Server.Version),
		metrics:        obs.NewMetrics(),
		tracer:         tp.Tracer("toolgraphd"),
		tracerProvider: tp,
	}, nil
}

// Close releases the downstream-client cache and flushes the tracer
// provider.
func (e *Engine) Close() error {
	_ = e.tracerProvider.Shutdown(context.Background())
	return e.downstream.CloseAll()
}

// ListTools implements toolgraph.Host.
func (e *Engine) ListTools() []toolgraph.ToolDescriptor {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]toolgraph.ToolDescriptor, 0, len(e.cfg.Tools))
	for _, t := range e.cfg.Tools {
		out = append(out, descriptorOf(t))
	}
	return out
}

// GetTool implements toolgraph.Host.
func (e *Engine) GetTool(name string) (toolgraph.ToolDescriptor, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	t, ok := e.cfg.ToolByName(name)
	if !ok {
		return toolgraph.ToolDescriptor{}, false
	}
	return descriptorOf(*t), true
}

func descriptorOf(t toolgraph.Tool) toolgraph.ToolDescriptor {
	return toolgraph.ToolDescriptor{
		Name:         t.Name,
		Description:  t.Description,
		InputSchema:  t.InputSchema,
		OutputSchema: t.OutputSchema,
	}
}

// ExecuteTool implements toolgraph.Host.
func (e *Engine) ExecuteTool(ctx context.Context, name string, args map[string]any, opts toolgraph.ExecuteOptions) (*toolgraph.ExecuteResult, error) {
	e.mu.RLock()
	tool, ok := e.cfg.ToolByName(name)
	cfg := e.cfg
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("engine: no such tool %q", name)
	}
	return e.execute(ctx, cfg, tool, args, opts)
}

// ExecuteToolDefinition implements toolgraph.Host: it runs a transient
// tool not present in the configuration, sharing the same downstream
// client cache, after validating the definition against the current
// configuration's downstream servers.
func (e *Engine) ExecuteToolDefinition(ctx context.Context, def toolgraph.Tool, args map[string]any, opts toolgraph.ExecuteOptions) (*toolgraph.ExecuteResult, error) {
	e.mu.RLock()
	cfg := e.cfg
	e.mu.RUnlock()

	if msgs := e.validator.ValidateTool(cfg, def); len(msgs) > 0 {
		return nil, &toolgraph.GraphValidationError{Messages: msgs}
	}
	return e.execute(ctx, cfg, &def, args, opts)
}

func (e *Engine) execute(ctx context.Context, cfg *toolgraph.Config, tool *toolgraph.Tool, args map[string]any, opts toolgraph.ExecuteOptions) (*toolgraph.ExecuteResult, error) {
	deps := &nodeexec.Deps{
		JSONata:    e.jsonata,
		JSONLogic:  e.jsonlogic,
		Args:       e.args,
		Downstream: e.downstream,
		Config:     cfg,
	}

	nodes := make(map[string]toolgraph.Node, len(tool.Nodes))
	for _, n := range tool.Nodes {
		nodes[n.ID] = n
	}
	schedOpts := toSchedulerOptions(opts)
	schedOpts.Hooks = e.instrumentHooks(ctx, tool.Name, nodes, opts.Hooks)

	e.logger.Debug("starting tool invocation", zap.String("tool", tool.Name))
	result, err := scheduler.Run(ctx, cfg, tool, deps, args, schedOpts)
	if result == nil {
		return nil, err
	}
	if err != nil {
		var limitErr *toolgraph.LimitExceededError
		if errors.As(err, &limitErr) {
			e.metrics.LimitBreachesTotal.WithLabelValues(string(limitErr.Kind)).Inc()
		}
		e.logger.Warn("tool invocation failed",
			zap.String("tool", tool.Name),
			zap.String("invocation_id", result.InvocationID),
			zap.Error(err),
		)
	} else {
		e.logger.Debug("tool invocation finished",
			zap.String("tool", tool.Name),
			zap.String("invocation_id", result.InvocationID),
		)
	}
	return &toolgraph.ExecuteResult{
		InvocationID: result.InvocationID,
		Output:       result.Output,
		History:      result.History,
		Telemetry:    result.Telemetry,
	}, err
}

func toSchedulerOptions(opts toolgraph.ExecuteOptions) scheduler.Options {
	return scheduler.Options{
		Breakpoints:     opts.Breakpoints,
		EnableTelemetry: opts.EnableTelemetry,
		StartPaused:     opts.StartPaused,
	}
}

// instrumentHooks wraps the caller's hooks (if any) with the engine's
// Prometheus metrics and OpenTelemetry tracing: a span per node
// execution, a node-executions/duration observation per node type, and
// a downstream-call observation per mcp node's server. Caller hooks
// still run and still control pause-on-return-false; instrumentation
// never changes the scheduler's decision.
func (e *Engine) instrumentHooks(ctx context.Context, toolName string, nodes map[string]toolgraph.Node, user toolgraph.Hooks) scheduler.Hooks {
	var mu sync.Mutex
	spans := make(map[string]trace.Span)

	return scheduler.Hooks{
		OnNodeStart: func(nodeID string, liveCtx map[string]any) bool {
			_, span := e.tracer.Start(ctx, nodeID, trace.WithAttributes(attribute.String("tool", toolName)))
			mu.Lock()
			spans[nodeID] = span
			mu.Unlock()

			if user.OnNodeStart != nil {
				return user.OnNodeStart(nodeID, liveCtx)
			}
			return true
		},
		OnNodeComplete: func(nodeID string, input map[string]any, output any, duration time.Duration) {
			mu.Lock()
			span, ok := spans[nodeID]
			delete(spans, nodeID)
			mu.Unlock()
			if ok {
				span.End()
			}

			node := nodes[nodeID]
			nodeType := string(node.Type)
			e.metrics.NodeExecutionsTotal.WithLabelValues(nodeType, "success").Inc()
			e.metrics.NodeDuration.WithLabelValues(nodeType).Observe(duration.Seconds())
			if node.Type == toolgraph.NodeMCPCall {
				e.metrics.DownstreamCallsTotal.WithLabelValues(node.Server, "success").Inc()
				e.metrics.DownstreamDuration.WithLabelValues(node.Server).Observe(duration.Seconds())
			}

			if user.OnNodeComplete != nil {
				user.OnNodeComplete(nodeID, input, output, duration)
			}
		},
		OnNodeError: func(nodeID string, err error) {
			mu.Lock()
			span, ok := spans[nodeID]
			delete(spans, nodeID)
			mu.Unlock()
			if ok {
				span.RecordError(err)
				span.End()
			}

			node := nodes[nodeID]
			nodeType := string(node.Type)
			e.metrics.NodeExecutionsTotal.WithLabelValues(nodeType, "error").Inc()
			if node.Type == toolgraph.NodeMCPCall {
				e.metrics.DownstreamCallsTotal.WithLabelValues(node.Server, "error").Inc()
			}

			if user.OnNodeError != nil {
				user.OnNodeError(nodeID, err)
			}
		},
		OnPause:  user.OnPause,
		OnResume: user.OnResume,
	}
}

// AddTool implements toolgraph.Host.
func (e *Engine) AddTool(def toolgraph.Tool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.cfg.ToolByName(def.Name); exists {
		return fmt.Errorf("engine: tool %q already exists", def.Name)
	}
	candidate := *e.cfg
	candidate.Tools = append(append([]toolgraph.Tool{}, e.cfg.Tools...), def)
	if verr := e.validator.Validate(&candidate); verr != nil {
		return verr
	}
	e.cfg.Tools = candidate.Tools
	return nil
}

// UpdateTool implements toolgraph.Host.
func (e *Engine) UpdateTool(name string, def toolgraph.Tool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := -1
	for i, t := range e.cfg.Tools {
		if t.Name == name {
			idx = i
			break
		}
	}
	if idx == -1 {
		return fmt.Errorf("engine: no such tool %q", name)
	}

	candidate := *e.cfg
	candidate.Tools = append([]toolgraph.Tool{}, e.cfg.Tools...)
	candidate.Tools[idx] = def
	if verr := e.validator.Validate(&candidate); verr != nil {
		return verr
	}
	e.cfg.Tools = candidate.Tools
	return nil
}

// DeleteTool implements toolgraph.Host.
func (e *Engine) DeleteTool(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := -1
	for i, t := range e.cfg.Tools {
		if t.Name == name {
			idx = i
			break
		}
	}
	if idx == -1 {
		return fmt.Errorf("engine: no such tool %q", name)
	}
	e.cfg.Tools = append(e.cfg.Tools[:idx], e.cfg.Tools[idx+1:]...)
	return nil
}

// Save implements toolgraph.Host.
func (e *Engine) Save(path string) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return config.Save(e.cfg, path)
}
