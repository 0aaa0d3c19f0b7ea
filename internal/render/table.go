// Package render turns a computed call graph and its diagnostics into the
// external forms a CLI collaborator hands to a user: a plain table, a
// colorized table, or a Graphviz DOT call graph. None of this package is
// part of the core analyzer.
package render

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"stackbound/internal/callgraph"
)

// SortBy selects the row order of Table.
type SortBy int

// Recognized sort orders.
const (
	SortByTotal SortBy = iota
	SortByName
)

// Table writes a fixed-width table of every Node's stack bound to w.
// Rows sort by TotalStack descending with address as the stable
// secondary key when by is SortByTotal.
func Table(w io.Writer, g *callgraph.Graph, by SortBy, c *Colorizer) error {
	nodes := append([]*callgraph.Node(nil), g.Nodes()...)
	sortNodes(nodes, by)

	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TOTAL\tOWN\tQUALITY\tFUNCTION\tSECTION")

	for _, n := range nodes {
		quality := "exact"
		if n.LowerBound {
			quality = c.warn("lower bound")
		} else {
			quality = c.ok(quality)
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\n",
			n.TotalStack, n.Frame.OwnStack, quality, n.Frame.Name, n.Frame.Section)
	}

	return tw.Flush()
}

func sortNodes(nodes []*callgraph.Node, by SortBy) {
	switch by {
	case SortByName:
		sort.Slice(nodes, func(i, j int) bool { return nodes[i].Frame.Name < nodes[j].Frame.Name })
	default:
		sort.Slice(nodes, func(i, j int) bool {
			if nodes[i].TotalStack != nodes[j].TotalStack {
				return nodes[i].TotalStack > nodes[j].TotalStack
			}
			return nodes[i].Frame.Address < nodes[j].Frame.Address
		})
	}
}
