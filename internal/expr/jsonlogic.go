package expr

import (
	"fmt"
	"strings"

	jsonlogic "github.com/diegoholiveira/jsonlogic"
)

// JSONLogic evaluates JSON-Logic-like rule trees after pre-processing every
// `var` subtree through the JSONata engine (spec §4.A, §9): the `var`
// operator's single string argument is always evaluated as a JSONata
// expression against the same context, never as a dot-path, so an
// off-the-shelf JSON-Logic engine cannot be used unmodified.
type JSONLogic struct {
	jsonata *JSONata
}

// NewJSONLogic returns a JSON-Logic-like evaluator backed by the given
// JSONata engine (the same one used for transform nodes, so the history
// functions behave identically in both sublanguages).
func NewJSONLogic(jsonata *JSONata) *JSONLogic {
	return &JSONLogic{jsonata: jsonata}
}

// Eval evaluates rule against ctx, returning the truthy coercion of the
// JSON-Logic engine's result.
func (l *JSONLogic) Eval(rule map[string]any, ctx any, view HistoryView) (bool, error) {
	pre, err := l.preprocess(rule, ctx, view)
	if err != nil {
		return false, fmt.Errorf("resolving var: %w", err)
	}

	result, err := jsonlogic.ApplyInterface(pre, ctx)
	if err != nil {
		return false, fmt.Errorf("json-logic evaluation error: %w", err)
	}
	return truthy(result), nil
}

// preprocess walks rule, replacing every {"var": "<expr>"} leaf with its
// JSONata-evaluated value, and returns the resulting plain JSON tree.
func (l *JSONLogic) preprocess(node any, ctx any, view HistoryView) (any, error) {
	switch n := node.(type) {
	case map[string]any:
		if varExpr, ok := asVarNode(n); ok {
			result, err := l.jsonata.Eval(varExpr, ctx, view)
			if err != nil {
				return nil, fmt.Errorf("evaluating var %q: %w", varExpr, err)
			}
			return result, nil
		}
		out := make(map[string]any, len(n))
		for k, v := range n {
			resolved, err := l.preprocess(v, ctx, view)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(n))
		for i, v := range n {
			resolved, err := l.preprocess(v, ctx, view)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return node, nil
	}
}

// asVarNode reports whether node is exactly {"var": "<string>"}.
func asVarNode(n map[string]any) (string, bool) {
	if len(n) != 1 {
		return "", false
	}
	raw, ok := n["var"]
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	return s, ok
}

// ValidateRule walks rule rejecting any var argument that looks like a
// JSONata expression (the heuristic in spec §4.A: starts with "$") but
// fails to parse. Plain dot-paths are left unvalidated at this stage; the
// engine always evaluates every var argument as JSONata at runtime
// regardless of this heuristic.
func (l *JSONLogic) ValidateRule(rule any) error {
	switch n := rule.(type) {
	case map[string]any:
		if varExpr, ok := asVarNode(n); ok {
			if strings.HasPrefix(strings.TrimSpace(varExpr), "$") {
				if err := l.jsonata.Validate(varExpr); err != nil {
					return fmt.Errorf("var %q: %w", varExpr, err)
				}
			}
			return nil
		}
		for _, v := range n {
			if err := l.ValidateRule(v); err != nil {
				return err
			}
		}
		return nil
	case []any:
		for _, v := range n {
			if err := l.ValidateRule(v); err != nil {
				return err
			}
		}
		return nil
	default:
		return nil
	}
}

// truthy coerces a JSON-Logic-like result to boolean.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}
