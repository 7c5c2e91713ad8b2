package toolgraph

import (
	"context"
	"time"
)

// ToolDescriptor is what listTools/getTool expose about a tool (spec §6).
type ToolDescriptor struct {
	Name         string
	Description  string
	InputSchema  SchemaDescriptor
	OutputSchema SchemaDescriptor
}

// Hooks are the scheduler callbacks an invocation may register. This
// mirrors internal/scheduler.Hooks field-for-field; it is redeclared here
// rather than imported so the public embedding contract in this package
// never depends on an internal package (which would also create an
// import cycle, since the scheduler depends on this package).
type Hooks struct {
	OnNodeStart    func(nodeID string, ctx map[string]any) bool
	OnNodeComplete func(nodeID string, input map[string]any, output any, duration time.Duration)
	OnNodeError    func(nodeID string, err error)
	OnPause        func(nodeID string)
	OnResume       func(nodeID string)
}

// ExecuteOptions mirrors spec §6's executeTool options.
type ExecuteOptions struct {
	Hooks           Hooks
	Breakpoints     []string
	EnableTelemetry bool
	StartPaused     bool
}

// ExecuteResult is what executeTool/executeToolDefinition return.
// InvocationID identifies this run for log/trace correlation; it has no
// meaning across process restarts and is never persisted.
type ExecuteResult struct {
	InvocationID string
	Output       any
	History      []HistoryRecord
	Telemetry    *Telemetry
}

// Host is the engine's embedding contract (spec §6): the seam behind
// which an out-of-scope host-RPC server (an MCP server, for instance)
// would sit. The wire protocol that speaks to external callers is out of
// scope; Host is what such a protocol layer would call.
type Host interface {
	ListTools() []ToolDescriptor
	GetTool(name string) (ToolDescriptor, bool)
	ExecuteTool(ctx context.Context, name string, args map[string]any, opts ExecuteOptions) (*ExecuteResult, error)
	AddTool(def Tool) error
	UpdateTool(name string, def Tool) error
	DeleteTool(name string) error
	Save(path string) error
	ExecuteToolDefinition(ctx context.Context, def Tool, args map[string]any, opts ExecuteOptions) (*ExecuteResult, error)
}
