// Package graph builds the in-memory adjacency view of a tool's node graph
// and validates it before any execution starts.
package graph

import "github.com/relaygraph/toolgraphd/pkg/toolgraph"

// Graph is the adjacency view of one tool's nodes, keyed by node id.
type Graph struct {
	Tool  *toolgraph.Tool
	byID  map[string]*toolgraph.Node
}

// Build indexes a tool's nodes by id.
func Build(tool *toolgraph.Tool) *Graph {
	byID := make(map[string]*toolgraph.Node, len(tool.Nodes))
	for i := range tool.Nodes {
		byID[tool.Nodes[i].ID] = &tool.Nodes[i]
	}
	return &Graph{Tool: tool, byID: byID}
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*toolgraph.Node, bool) {
	n, ok := g.byID[id]
	return n, ok
}

// Successors returns every node id this node's static edges can reach: for
// a non-switch node, Next (if set); for a switch, every arm target plus the
// node's own Next when it is used as the fallback.
func (g *Graph) Successors(n *toolgraph.Node) []string {
	if n.Type != toolgraph.NodeSwitch {
		if n.Next == "" {
			return nil
		}
		return []string{n.Next}
	}
	out := make([]string, 0, len(n.Conditions)+1)
	for _, arm := range n.Conditions {
		if arm.Target != "" {
			out = append(out, arm.Target)
		}
	}
	if n.Next != "" {
		out = append(out, n.Next)
	}
	return out
}

// EntryNode returns the tool's entry node.
func (g *Graph) EntryNode() (*toolgraph.Node, bool) {
	return g.Tool.EntryNode()
}
