// Package argeval lowers a node's argument tree, replacing every
// {expr: "<jsonata>"} leaf with its evaluated value (spec §4.C).
package argeval

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/relaygraph/toolgraphd/internal/expr"
	"github.com/relaygraph/toolgraphd/pkg/toolgraph"
)

// Evaluator lowers argument trees using a JSONata-like evaluator.
type Evaluator struct {
	jsonata *expr.JSONata
}

// New returns an argument evaluator backed by the given JSONata engine.
func New(jsonata *expr.JSONata) *Evaluator {
	return &Evaluator{jsonata: jsonata}
}

// Lower recursively evaluates every {expr: "<string>"} leaf in tree against
// ctx, returning a new tree with literals passed through unchanged.
// Sibling properties of a map, and sibling elements of an array, are
// lowered concurrently; the returned tree's shape is deterministic
// regardless of goroutine completion order.
func (e *Evaluator) Lower(tree any, ctx any, view expr.HistoryView) (any, error) {
	return e.lower(tree, "$", ctx, view)
}

func (e *Evaluator) lower(node any, path string, ctx any, view expr.HistoryView) (any, error) {
	switch n := node.(type) {
	case map[string]any:
		if exprNode, ambiguous, ok := asExprLeaf(n); ok {
			if ambiguous {
				return nil, &toolgraph.ArgumentEvaluationError{
					Path:  path,
					Cause: fmt.Errorf("ambiguous literal-vs-expression: expr key mixed with other keys, or non-string expr"),
				}
			}
			result, err := e.jsonata.Eval(exprNode, ctx, view)
			if err != nil {
				return nil, &toolgraph.ArgumentEvaluationError{Path: path, Cause: err}
			}
			return result, nil
		}

		keys := make([]string, 0, len(n))
		for k := range n {
			keys = append(keys, k)
		}

		results := make([]any, len(keys))
		g := new(errgroup.Group)
		for i, k := range keys {
			i, k := i, k
			g.Go(func() error {
				resolved, err := e.lower(n[k], path+"."+k, ctx, view)
				if err != nil {
					return err
				}
				results[i] = resolved
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		out := make(map[string]any, len(n))
		for i, k := range keys {
			out[k] = results[i]
		}
		return out, nil

	case []any:
		results := make([]any, len(n))
		g := new(errgroup.Group)
		for i, v := range n {
			i, v := i, v
			g.Go(func() error {
				resolved, err := e.lower(v, fmt.Sprintf("%s[%d]", path, i), ctx, view)
				if err != nil {
					return err
				}
				results[i] = resolved
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return results, nil

	default:
		return node, nil
	}
}

// asExprLeaf reports whether n is an {expr: ...} node. ok is true whenever
// the "expr" key is present; ambiguous is true when the node cannot be
// unambiguously treated as an expression literal (extra keys, or a
// non-string expr value).
func asExprLeaf(n map[string]any) (exprStr string, ambiguous bool, ok bool) {
	raw, present := n["expr"]
	if !present {
		return "", false, false
	}
	s, isString := raw.(string)
	if len(n) != 1 || !isString {
		return "", true, true
	}
	return s, false, true
}
