package callgraph

// Propagate assigns TotalStack and LowerBound to every Node. It walks
// the DAG obtained by contracting each strongly connected
// component to a single pseudo-node, computed here with its own Tarjan
// pass (independent of DetectCycles, which only needs to know whether a
// node participates in some cycle — Propagate additionally needs to know
// *which* cycle, to skip edges that re-enter a node's own component).
//
// Tarjan pops components in reverse-topological order: a component is
// finished only once every component it can reach is already finished.
// That is exactly the order Propagate needs, so cycle discovery and
// total-stack computation happen in the same explicit-stack walk.
func Propagate(g *Graph) {
	n := len(g.nodes)
	index := make([]int, n)
	lowlink := make([]int, n)
	onStack := make([]bool, n)
	for i := range index {
		index[i] = -1
	}

	var (
		nextIndex int
		tstack    []int
	)

	for start := 0; start < n; start++ {
		if index[start] != -1 {
			continue
		}

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
				resolveComponent(g, scc)
			}
		}
	}
}

// resolveComponent computes TotalStack and LowerBound for every member of
// a finished component. Every callee outside the component is already
// resolved, since components finish in reverse-topological order; callees
// inside the component are skipped.
func resolveComponent(g *Graph, scc []int) {
	inComponent := make(map[int]bool, len(scc))
	for _, idx := range scc {
		inComponent[idx] = true
	}

	for _, idx := range scc {
		node := g.nodes[idx]

		var (
			max uint64
			lb  bool
		)
		for _, calleeIdx := range node.Callees {
			if inComponent[calleeIdx] {
				continue
			}
			callee := g.nodes[calleeIdx]
			if callee.TotalStack > max {
				max = callee.TotalStack
			}
			lb = lb || callee.LowerBound
		}

		node.TotalStack = node.Frame.OwnStack + max
		node.LowerBound = lb || node.InCycle || node.Frame.DynamicStack || node.Frame.HasIndirectCall
	}
}
