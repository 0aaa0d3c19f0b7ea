package callgraph_test

import (
	"testing"

	"stackbound/internal/callgraph"
	"stackbound/internal/diag"
	"stackbound/internal/frame"
)

func mkFrame(addr uint64, name string, own uint64, calls ...uint64) frame.Frame {
	return frame.Frame{Address: addr, Name: name, OwnStack: own, CallTargets: calls}
}

func TestBuildResolvesCallEdges(t *testing.T) {
	frames := []frame.Frame{
		mkFrame(0x100, "leaf", 8),
		mkFrame(0x200, "caller", 16, 0x100),
	}
	g, diags := callgraph.Build(frames)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %+v", diags)
	}

	caller, ok := g.Node(0x200)
	if !ok {
		t.Fatal("caller not found")
	}
	callees := g.Callees(caller)
	if len(callees) != 1 || callees[0].Frame.Name != "leaf" {
		t.Fatalf("callees = %+v", callees)
	}

	leaf, _ := g.Node(0x100)
	callers := g.Callers(leaf)
	if len(callers) != 1 || callers[0].Frame.Name != "caller" {
		t.Fatalf("callers = %+v", callers)
	}
}

func TestBuildUnresolvedCallee(t *testing.T) {
	frames := []frame.Frame{
		mkFrame(0x100, "caller", 8, 0xdead),
	}
	g, diags := callgraph.Build(frames)
	caller, _ := g.Node(0x100)
	if len(g.Callees(caller)) != 0 {
		t.Fatalf("expected no resolved callees, got %+v", g.Callees(caller))
	}
	if len(diags) != 1 || diags[0].Kind != diag.UnresolvedCallee || diags[0].Target != 0xdead {
		t.Fatalf("diags = %+v", diags)
	}
}

func TestBuildDedupesRepeatedCallsToSameTarget(t *testing.T) {
	frames := []frame.Frame{
		mkFrame(0x100, "leaf", 8),
		mkFrame(0x200, "caller", 8, 0x100, 0x100, 0x100),
	}
	g, _ := callgraph.Build(frames)
	caller, _ := g.Node(0x200)
	if len(g.Callees(caller)) != 1 {
		t.Fatalf("expected one deduped callee edge, got %d", len(g.Callees(caller)))
	}
}

func TestDetectCyclesMarksSelfLoop(t *testing.T) {
	frames := []frame.Frame{
		mkFrame(0x100, "recur", 8, 0x100),
	}
	g, _ := callgraph.Build(frames)
	diags := callgraph.DetectCycles(g)

	n, _ := g.Node(0x100)
	if !n.InCycle {
		t.Fatal("expected self-recursive node to be marked InCycle")
	}
	if len(diags) != 1 || diags[0].Kind != diag.CycleEntry {
		t.Fatalf("diags = %+v", diags)
	}
}

func TestDetectCyclesMarksMutualRecursion(t *testing.T) {
	frames := []frame.Frame{
		mkFrame(0x100, "ping", 8, 0x200),
		mkFrame(0x200, "pong", 8, 0x100),
	}
	g, _ := callgraph.Build(frames)
	callgraph.DetectCycles(g)

	ping, _ := g.Node(0x100)
	pong, _ := g.Node(0x200)
	if !ping.InCycle || !pong.InCycle {
		t.Fatalf("expected both mutually recursive nodes marked, got ping=%v pong=%v", ping.InCycle, pong.InCycle)
	}
}

func TestDetectCyclesLeavesAcyclicGraphUnmarked(t *testing.T) {
	frames := []frame.Frame{
		mkFrame(0x100, "leaf", 8),
		mkFrame(0x200, "caller", 8, 0x100),
	}
	g, _ := callgraph.Build(frames)
	callgraph.DetectCycles(g)

	for _, n := range g.Nodes() {
		if n.InCycle {
			t.Fatalf("node %s should not be marked InCycle", n.Frame.Name)
		}
	}
}

func TestPropagateLinearChain(t *testing.T) {
	frames := []frame.Frame{
		mkFrame(0x100, "leaf", 8),
		mkFrame(0x200, "middle", 16, 0x100),
		mkFrame(0x300, "top", 24, 0x200),
	}
	g, _ := callgraph.Build(frames)
	callgraph.DetectCycles(g)
	callgraph.Propagate(g)

	leaf, _ := g.Node(0x100)
	middle, _ := g.Node(0x200)
	top, _ := g.Node(0x300)

	if leaf.TotalStack != 8 {
		t.Errorf("leaf.TotalStack = %d, want 8", leaf.TotalStack)
	}
	if middle.TotalStack != 24 {
		t.Errorf("middle.TotalStack = %d, want 24", middle.TotalStack)
	}
	if top.TotalStack != 48 {
		t.Errorf("top.TotalStack = %d, want 48", top.TotalStack)
	}
	if leaf.LowerBound || middle.LowerBound || top.LowerBound {
		t.Error("no node in an exact linear chain should be a lower bound")
	}
}

func TestPropagatePicksMaxAcrossSiblings(t *testing.T) {
	frames := []frame.Frame{
		mkFrame(0x100, "small", 8),
		mkFrame(0x200, "big", 64),
		mkFrame(0x300, "caller", 8, 0x100, 0x200),
	}
	g, _ := callgraph.Build(frames)
	callgraph.DetectCycles(g)
	callgraph.Propagate(g)

	caller, _ := g.Node(0x300)
	if caller.TotalStack != 8+64 {
		t.Errorf("caller.TotalStack = %d, want %d", caller.TotalStack, 8+64)
	}
}

func TestPropagateCycleIsLowerBound(t *testing.T) {
	frames := []frame.Frame{
		mkFrame(0x100, "ping", 8, 0x200),
		mkFrame(0x200, "pong", 16, 0x100),
	}
	g, _ := callgraph.Build(frames)
	callgraph.DetectCycles(g)
	callgraph.Propagate(g)

	ping, _ := g.Node(0x100)
	pong, _ := g.Node(0x200)
	if !ping.LowerBound || !pong.LowerBound {
		t.Fatalf("cyclic nodes must be marked as lower bounds: ping=%v pong=%v", ping.LowerBound, pong.LowerBound)
	}
	if ping.TotalStack != ping.Frame.OwnStack || pong.TotalStack != pong.Frame.OwnStack {
		t.Errorf("cyclic node TotalStack should equal its own stack (no non-cyclic callee): ping=%d pong=%d",
			ping.TotalStack, pong.TotalStack)
	}
}

func TestPropagateIndirectCallIsLowerBound(t *testing.T) {
	frames := []frame.Frame{
		{Address: 0x100, Name: "dispatcher", OwnStack: 8, HasIndirectCall: true},
	}
	g, _ := callgraph.Build(frames)
	callgraph.DetectCycles(g)
	callgraph.Propagate(g)

	n, _ := g.Node(0x100)
	if !n.LowerBound {
		t.Fatal("a function with an indirect call must be a lower bound")
	}
}
