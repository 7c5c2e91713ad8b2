package toolgraph

import (
	"errors"
	"fmt"
)

// ErrCancelled is returned, wrapped by CancelledError, when a controller's
// stop() took effect. Callers discriminate on this sentinel with
// errors.Is.
var ErrCancelled = errors.New("execution cancelled")

// ConfigurationError reports schema or expression static-validation
// failures. Fatal: no execution starts while one is outstanding.
type ConfigurationError struct {
	Messages []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration invalid: %d error(s): %v", len(e.Messages), e.Messages)
}

// GraphValidationError reports structural graph failures: dangling
// references, unreachable exit, multiple entry/exit nodes.
type GraphValidationError struct {
	Messages []string
}

func (e *GraphValidationError) Error() string {
	return fmt.Sprintf("graph invalid: %d error(s): %v", len(e.Messages), e.Messages)
}

// DownstreamProtocolError reports a transport or handshake failure, a
// connection closed mid-call, or a protocol-level error surfaced by a
// downstream server.
type DownstreamProtocolError struct {
	Server string
	Code   int
	Msg    string
	Data   any
	Stderr []string
	Cause  error
}

func (e *DownstreamProtocolError) Error() string {
	return fmt.Sprintf("downstream protocol error from %q (code %d): %s", e.Server, e.Code, e.Msg)
}

func (e *DownstreamProtocolError) Unwrap() error { return e.Cause }

// DownstreamToolError reports a downstream response with isError set.
type DownstreamToolError struct {
	Server   string
	Tool     string
	Message  string
	Response any
}

func (e *DownstreamToolError) Error() string {
	return fmt.Sprintf("downstream tool %q on %q reported an error: %s", e.Tool, e.Server, e.Message)
}

// ArgumentEvaluationError reports a malformed {expr:...} literal or a
// JSONata failure while lowering a node's args.
type ArgumentEvaluationError struct {
	Path  string
	Cause error
}

func (e *ArgumentEvaluationError) Error() string {
	return fmt.Sprintf("argument evaluation failed at %q: %v", e.Path, e.Cause)
}

func (e *ArgumentEvaluationError) Unwrap() error { return e.Cause }

// ExpressionErrorKind distinguishes syntax from evaluation failures.
type ExpressionErrorKind string

const (
	ExpressionSyntaxError     ExpressionErrorKind = "syntax"
	ExpressionEvaluationError ExpressionErrorKind = "evaluation"
)

// ExpressionError reports a JSONata or JSON-Logic failure during
// transform/switch evaluation.
type ExpressionError struct {
	NodeID string
	Kind   ExpressionErrorKind
	Expr   string
	Cause  error
}

func (e *ExpressionError) Error() string {
	return fmt.Sprintf("expression %s error in node %q (%q): %v", e.Kind, e.NodeID, e.Expr, e.Cause)
}

func (e *ExpressionError) Unwrap() error { return e.Cause }

// SwitchUnmatchedError reports a switch node with no matching arm and no
// default or fallback.
type SwitchUnmatchedError struct {
	NodeID string
}

func (e *SwitchUnmatchedError) Error() string {
	return fmt.Sprintf("switch node %q: no arm matched and no default/fallback", e.NodeID)
}

// LimitKind distinguishes node-count from wall-clock limit breaches.
type LimitKind string

const (
	LimitNodeExecutions LimitKind = "max-node-executions"
	LimitExecutionTime  LimitKind = "max-execution-time"
)

// LimitExceededError reports a node-count or wall-clock limit breach.
type LimitExceededError struct {
	Kind    LimitKind
	Limit   int64
	Current int64
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("limit exceeded: %s limit=%d current=%d", e.Kind, e.Limit, e.Current)
}

// CancelledError reports that stop() was invoked. Message is fixed so
// callers can discriminate with errors.Is(err, ErrCancelled).
type CancelledError struct{}

func (e *CancelledError) Error() string { return ErrCancelled.Error() }

func (e *CancelledError) Unwrap() error { return ErrCancelled }
