package callgraph

import "stackbound/internal/diag"

// tarjanFrame is one activation record of the iterative Tarjan walk,
// standing in for a machine stack frame so DetectCycles can handle graphs
// with chains of thousands of nodes without recursing.
type tarjanFrame struct {
	nodeIdx  int
	childPos int
}

// DetectCycles marks every Node participating in a strongly connected
// component of size >1, or with a self-loop, with InCycle = true, and
// returns one CycleEntry diagnostic per marked component (every maximal
// SCC of size >1 and every self-recursive node), naming one
// representative member. Runs Tarjan's algorithm over an explicit stack.
func DetectCycles(g *Graph) []diag.Diagnostic {
	n := len(g.nodes)
	index := make([]int, n)
	lowlink := make([]int, n)
	onStack := make([]bool, n)
	for i := range index {
		index[i] = -1
	}

	var (
		nextIndex int
		tstack    []int // Tarjan's SCC stack (node indices)
		diags     []diag.Diagnostic
	)

	for start := 0; start < n; start++ {
		if index[start] != -1 {
			continue
		}

		// Explicit call stack for the DFS itself.
		callStack := []tarjanFrame{{nodeIdx: start}}
		index[start] = nextIndex
		lowlink[start] = nextIndex
		nextIndex++
		tstack = append(tstack, start)
		onStack[start] = true

		for len(callStack) > 0 {
			top := &callStack[len(callStack)-1]
			v := top.nodeIdx

			if top.childPos < len(g.nodes[v].Callees) {
				w := g.nodes[v].Callees[top.childPos]
				top.childPos++

				if index[w] == -1 {
					index[w] = nextIndex
					lowlink[w] = nextIndex
					nextIndex++
					tstack = append(tstack, w)
					onStack[w] = true
					callStack = append(callStack, tarjanFrame{nodeIdx: w})
				} else if onStack[w] {
					if index[w] < lowlink[v] {
						lowlink[v] = index[w]
					}
				}
				continue
			}

			// Done with v's children: pop and propagate lowlink to parent.
			callStack = callStack[:len(callStack)-1]
			if len(callStack) > 0 {
				parent := callStack[len(callStack)-1].nodeIdx
				if lowlink[v] < lowlink[parent] {
					lowlink[parent] = lowlink[v]
				}
			}

			if lowlink[v] == index[v] {
				var scc []int
				for {
					w := tstack[len(tstack)-1]
					tstack = tstack[:len(tstack)-1]
					onStack[w] = false
					scc = append(scc, w)
					if w == v {
						break
					}
				}
				markSCC(g, scc, &diags)
			}
		}
	}

	return diags
}

// markSCC marks every member of scc as InCycle when the component has
// more than one member, or a single member with a self-edge. A single
// CycleEntry diagnostic is emitted per marked component, naming the
// first member encountered as the representative.
func markSCC(g *Graph, scc []int, diags *[]diag.Diagnostic) {
	if len(scc) == 1 {
		idx := scc[0]
		if !hasSelfEdge(g.nodes[idx], idx) {
			return
		}
	}

	for _, idx := range scc {
		g.nodes[idx].InCycle = true
	}

	*diags = append(*diags, diag.Diagnostic{
		Kind:     diag.CycleEntry,
		Function: g.nodes[scc[0]].Frame.Name,
	})
}

func hasSelfEdge(n *Node, idx int) bool {
	for _, c := range n.Callees {
		if c == idx {
			return true
		}
	}
	return false
}
