package render

import (
	"fmt"

	"github.com/emicklei/dot"

	"stackbound/internal/callgraph"
)

// DOT renders the call graph as Graphviz DOT text, one node per Node and
// one edge per resolved call, colored red when both the caller and the
// callee are in a cyclic component. An edge from a non-cyclic caller into
// a cycle is not colored.
func DOT(g *callgraph.Graph) string {
	graph := dot.NewGraph(dot.Directed)
	graph.Attr("rankdir", "LR")

	dotNodes := make(map[uint64]dot.Node, len(g.Nodes()))
	for _, n := range g.Nodes() {
		label := fmt.Sprintf("%s\n%d bytes", n.Frame.Name, n.TotalStack)
		dn := graph.Node(n.Frame.Name).Label(label)
		if n.InCycle {
			dn = dn.Attr("color", "red")
		}
		if n.LowerBound {
			dn = dn.Attr("style", "dashed")
		}
		dotNodes[n.Frame.Address] = dn
	}

	for _, n := range g.Nodes() {
		for _, callee := range g.Callees(n) {
			edge := graph.Edge(dotNodes[n.Frame.Address], dotNodes[callee.Frame.Address])
			if n.InCycle && callee.InCycle {
				edge.Attr("color", "red")
			}
		}
	}

	return graph.String()
}
