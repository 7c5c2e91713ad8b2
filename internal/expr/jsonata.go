// Package expr implements the two expression sublanguages the graph
// engine embeds: a JSONata-like data-transformation language and a
// JSON-Logic-like conditional-routing language whose `var` operator
// defers to the JSONata engine instead of doing a dot-path lookup
// (spec §4.A, §9 "var is not a path").
package expr

import (
	"fmt"

	"github.com/blues/jsonata-go"
	"github.com/relaygraph/toolgraphd/pkg/toolgraph"
)

// HistoryView is the slice of history visible to an expression evaluated
// at a given execution-index, together with that index. It backs the four
// history-access functions bound into every JSONata evaluation.
type HistoryView struct {
	Records []toolgraph.HistoryRecord
	Index   int
}

// previousNode returns the output recorded `offset` steps before Index.
func (v HistoryView) previousNode(offset *float64) interface{} {
	off := 1
	if offset != nil {
		off = int(*offset)
	}
	pos := v.Index - off
	if pos < 0 || pos >= len(v.Records) {
		return nil
	}
	return v.Records[pos].Output
}

func (v HistoryView) executionCount(name string) float64 {
	count := 0
	for _, r := range v.Records {
		if r.NodeID == name {
			count++
		}
	}
	return float64(count)
}

func (v HistoryView) matching(name string) []toolgraph.HistoryRecord {
	var out []toolgraph.HistoryRecord
	for _, r := range v.Records {
		if r.NodeID == name {
			out = append(out, r)
		}
	}
	return out
}

func (v HistoryView) nodeExecution(name string, index float64) interface{} {
	matches := v.matching(name)
	idx := int(index)
	if idx < 0 {
		idx = len(matches) + idx
	}
	if idx < 0 || idx >= len(matches) {
		return nil
	}
	return matches[idx].Output
}

func (v HistoryView) nodeExecutions(name string) []interface{} {
	matches := v.matching(name)
	out := make([]interface{}, len(matches))
	for i, r := range matches {
		out[i] = r.Output
	}
	return out
}

// JSONata evaluates JSONata-like expressions, binding the four
// history-access functions (previousNode, executionCount, nodeExecution,
// nodeExecutions) fresh for every call so that concurrent invocations of
// the engine never share mutable evaluation state (spec §5).
type JSONata struct{}

// NewJSONata returns a JSONata-like evaluator.
func NewJSONata() *JSONata { return &JSONata{} }

// Validate reports whether expression parses as JSONata, without
// evaluating it. Used by the static graph validator (spec §4.E).
func (j *JSONata) Validate(expression string) error {
	_, err := jsonata.Compile(expression)
	return err
}

// Eval evaluates expression against ctx with the history-access functions
// bound to the given view.
func (j *JSONata) Eval(expression string, ctx any, view HistoryView) (any, error) {
	compiled, err := jsonata.Compile(expression)
	if err != nil {
		return nil, fmt.Errorf("jsonata syntax error: %w", err)
	}

	if err := compiled.RegisterFunc("previousNode", view.previousNode); err != nil {
		return nil, fmt.Errorf("registering previousNode: %w", err)
	}
	if err := compiled.RegisterFunc("executionCount", view.executionCount); err != nil {
		return nil, fmt.Errorf("registering executionCount: %w", err)
	}
	if err := compiled.RegisterFunc("nodeExecution", view.nodeExecution); err != nil {
		return nil, fmt.Errorf("registering nodeExecution: %w", err)
	}
	if err := compiled.RegisterFunc("nodeExecutions", view.nodeExecutions); err != nil {
		return nil, fmt.Errorf("registering nodeExecutions: %w", err)
	}

	result, err := compiled.Eval(ctx)
	if err != nil {
		return nil, fmt.Errorf("jsonata evaluation error: %w", err)
	}
	return result, nil
}
