package graph

import (
	"fmt"

	"github.com/relaygraph/toolgraphd/internal/expr"
	"github.com/relaygraph/toolgraphd/pkg/toolgraph"
)

// Validator runs the pre-execution static checks of spec §4.E. It never
// talks to downstream clients.
type Validator struct {
	jsonata   *expr.JSONata
	jsonlogic *expr.JSONLogic
}

// NewValidator returns a validator backed by the given expression
// evaluators.
func NewValidator(jsonata *expr.JSONata, jsonlogic *expr.JSONLogic) *Validator {
	return &Validator{jsonata: jsonata, jsonlogic: jsonlogic}
}

// Validate aggregates every structural and expression-syntax error found
// in cfg. Schema validation of the raw configuration document is out of
// scope (spec §1); callers that parse YAML/JSON should report those
// separately and call Validate once a toolgraph.Config value exists.
func (v *Validator) Validate(cfg *toolgraph.Config) *toolgraph.GraphValidationError {
	var messages []string

	seenToolNames := make(map[string]bool)
	for _, tool := range cfg.Tools {
		if seenToolNames[tool.Name] {
			messages = append(messages, fmt.Sprintf("tool %q: duplicate tool name", tool.Name))
		}
		seenToolNames[tool.Name] = true

		messages = append(messages, v.validateTool(&tool, cfg)...)
	}

	if len(messages) == 0 {
		return nil
	}
	return &toolgraph.GraphValidationError{Messages: messages}
}

// ValidateTool runs the same per-tool checks as Validate against a single
// transient tool definition, using cfg only to resolve downstream-server
// references. Used by executeToolDefinition (spec §6), which runs a tool
// not present in the configuration.
func (v *Validator) ValidateTool(cfg *toolgraph.Config, tool toolgraph.Tool) []string {
	return v.validateTool(&tool, cfg)
}

func (v *Validator) validateTool(tool *toolgraph.Tool, cfg *toolgraph.Config) []string {
	var messages []string
	prefix := fmt.Sprintf("tool %q", tool.Name)

	entryCount, exitCount := 0, 0
	ids := make(map[string]bool, len(tool.Nodes))
	for _, n := range tool.Nodes {
		if ids[n.ID] {
			messages = append(messages, fmt.Sprintf("%s: duplicate node id %q", prefix, n.ID))
		}
		ids[n.ID] = true
		switch n.Type {
		case toolgraph.NodeEntry:
			entryCount++
		case toolgraph.NodeExit:
			exitCount++
		}
	}
	if entryCount != 1 {
		messages = append(messages, fmt.Sprintf("%s: expected exactly one entry node, found %d", prefix, entryCount))
	}
	if exitCount != 1 {
		messages = append(messages, fmt.Sprintf("%s: expected exactly one exit node, found %d", prefix, exitCount))
	}

	g := Build(tool)

	for _, n := range tool.Nodes {
		messages = append(messages, v.validateNode(prefix, &n, g, cfg, ids)...)
	}

	if entryCount == 1 && exitCount == 1 {
		if entry, ok := g.EntryNode(); ok {
			if !reachesExit(g, entry.ID) {
				messages = append(messages, fmt.Sprintf("%s: exit is not reachable from entry", prefix))
			}
		}
	}

	return messages
}

func (v *Validator) validateNode(prefix string, n *toolgraph.Node, g *Graph, cfg *toolgraph.Config, ids map[string]bool) []string {
	var messages []string
	nodePrefix := fmt.Sprintf("%s, node %q", prefix, n.ID)

	checkRef := func(target, label string) {
		if target == "" {
			return
		}
		if !ids[target] {
			messages = append(messages, fmt.Sprintf("%s: %s %q is not a defined node", nodePrefix, label, target))
		}
	}

	switch n.Type {
	case toolgraph.NodeEntry:
		checkRef(n.Next, "next")
	case toolgraph.NodeExit:
		// no successor
	case toolgraph.NodeTransform:
		checkRef(n.Next, "next")
		if n.Expr == "" {
			messages = append(messages, fmt.Sprintf("%s: transform node has no expression", nodePrefix))
		} else if err := v.jsonata.Validate(n.Expr); err != nil {
			messages = append(messages, fmt.Sprintf("%s: expression syntax error: %v", nodePrefix, err))
		}
	case toolgraph.NodeMCPCall:
		checkRef(n.Next, "next")
		if n.Server == "" {
			messages = append(messages, fmt.Sprintf("%s: mcp-call node has no server", nodePrefix))
		} else if _, ok := cfg.DownstreamServers[n.Server]; !ok {
			messages = append(messages, fmt.Sprintf("%s: references undefined downstream server %q", nodePrefix, n.Server))
		}
		if n.Tool == "" {
			messages = append(messages, fmt.Sprintf("%s: mcp-call node has no tool", nodePrefix))
		}
	case toolgraph.NodeSwitch:
		hasDefaultArm := false
		for i, arm := range n.Conditions {
			if arm.IsDefault() {
				hasDefaultArm = true
				checkRef(arm.Target, fmt.Sprintf("condition[%d] default target", i))
			} else {
				checkRef(arm.Target, fmt.Sprintf("condition[%d] target", i))
				if err := v.jsonlogic.ValidateRule(arm.Rule); err != nil {
					messages = append(messages, fmt.Sprintf("%s: condition[%d] rule syntax error: %v", nodePrefix, i, err))
				}
			}
		}
		if hasDefaultArm && n.Next != "" {
			messages = append(messages, fmt.Sprintf("%s: switch has both a rule-less default arm and a top-level next; pick one convention", nodePrefix))
		}
		if n.Next != "" {
			checkRef(n.Next, "next")
		}
		if len(n.Conditions) == 0 {
			messages = append(messages, fmt.Sprintf("%s: switch node has no conditions", nodePrefix))
		}
	default:
		messages = append(messages, fmt.Sprintf("%s: unknown node type %q", nodePrefix, n.Type))
	}

	return messages
}

// reachesExit performs a breadth-first search over static edges from
// startID looking for an exit node.
func reachesExit(g *Graph, startID string) bool {
	visited := map[string]bool{startID: true}
	queue := []string{startID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		n, ok := g.Node(id)
		if !ok {
			continue
		}
		if n.Type == toolgraph.NodeExit {
			return true
		}
		for _, next := range g.Successors(n) {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}
