// Package callgraph builds the call graph from parsed Frames, discovers
// its strongly connected components, and propagates cumulative stack
// bounds through it.
package callgraph

import (
	"sort"

	"stackbound/internal/diag"
	"stackbound/internal/frame"
)

// Node is one function in the call graph, keyed by its Frame's address.
// The graph is an arena of Nodes addressed by index; Callees/Callers hold
// indices into that arena rather than pointers, so the structure has no
// cyclic Go-level ownership even though the call graph itself is cyclic.
type Node struct {
	Frame frame.Frame

	Callees []int // indices into Graph.nodes
	Callers []int

	InCycle    bool
	TotalStack uint64
	LowerBound bool

	visited bool // traversal marker, reset between passes
}

// Graph is the linked call graph produced by Build.
type Graph struct {
	nodes  []*Node
	byAddr map[uint64]int
}

// Nodes returns every Node in the graph, in Frame-emission order.
func (g *Graph) Nodes() []*Node {
	return g.nodes
}

// Node returns the Node at the given address, if any.
func (g *Graph) Node(addr uint64) (*Node, bool) {
	i, ok := g.byAddr[addr]
	if !ok {
		return nil, false
	}
	return g.nodes[i], true
}

// Callees returns the resolved callee Nodes of n.
func (g *Graph) Callees(n *Node) []*Node {
	out := make([]*Node, len(n.Callees))
	for i, idx := range n.Callees {
		out[i] = g.nodes[idx]
	}
	return out
}

// Callers returns the resolved caller Nodes of n.
func (g *Graph) Callers(n *Node) []*Node {
	out := make([]*Node, len(n.Callers))
	for i, idx := range n.Callers {
		out[i] = g.nodes[idx]
	}
	return out
}

func (g *Graph) indexOf(n *Node) int {
	return g.byAddr[n.Frame.Address]
}

// Build links Frames into a Graph, resolving call-target addresses
// against the Nodes created from those same Frames (an address with no
// corresponding Frame is outside the analyzed scope — typically a PLT
// stub or an unanalyzed library function — and is dropped with an
// UnresolvedCallee diagnostic).
func Build(frames []frame.Frame) (*Graph, []diag.Diagnostic) {
	g := &Graph{
		byAddr: make(map[uint64]int, len(frames)),
		nodes:  make([]*Node, 0, len(frames)),
	}

	for _, f := range frames {
		if _, exists := g.byAddr[f.Address]; exists {
			continue
		}
		g.byAddr[f.Address] = len(g.nodes)
		g.nodes = append(g.nodes, &Node{Frame: f})
	}

	var diags []diag.Diagnostic

	for _, n := range g.nodes {
		seen := make(map[uint64]bool, len(n.Frame.CallTargets))
		for _, target := range n.Frame.CallTargets {
			if seen[target] {
				continue
			}
			seen[target] = true

			calleeIdx, ok := g.byAddr[target]
			if !ok {
				diags = append(diags, diag.Diagnostic{
					Kind:     diag.UnresolvedCallee,
					Function: n.Frame.Name,
					Target:   target,
				})
				continue
			}

			callerIdx := g.indexOf(n)
			n.Callees = append(n.Callees, calleeIdx)
			callee := g.nodes[calleeIdx]
			callee.Callers = append(callee.Callers, callerIdx)
		}
	}

	sort.Slice(diags, func(i, j int) bool {
		if diags[i].Kind != diags[j].Kind {
			return diags[i].Kind < diags[j].Kind
		}
		return diags[i].Function < diags[j].Function
	})

	return g, diags
}
