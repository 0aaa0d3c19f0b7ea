package callgraph_test

import (
	"fmt"
	"testing"

	"stackbound/internal/arch"
	"stackbound/internal/callgraph"
	"stackbound/internal/diag"
	"stackbound/internal/disasm"
	"stackbound/internal/frame"
)

// TestPipelineRecursiveCallGraph drives a synthetic x86_64 disassembly
// through the full Extract -> Build -> DetectCycles -> Propagate
// pipeline against a call structure with two disjoint recursive cycles
// (a self-loop and a three-function ring) feeding into one function
// with an indirect dispatch: a leaf-heavy chain rolling up into
// func_epsilon, a self-recursive rec_xi, a rec_psi/rec_chi/rec_phi
// ring, and a main that calls both cycles plus one function pointer.
func TestPipelineRecursiveCallGraph(t *testing.T) {
	type fn struct {
		name     string
		calls    []string // direct call targets, by name, in call order
		indirect bool      // also emits one "call *%rax"
	}

	fns := []fn{
		{name: "func_omega2"},
		{name: "func_omega", calls: []string{"func_omega2"}},
		{name: "func_alpha4"},
		{name: "func_alpha3", calls: []string{"func_alpha4"}},
		{name: "func_alpha2", calls: []string{"func_alpha3"}},
		{name: "func_alpha", calls: []string{"func_alpha2"}},
		{name: "func_beta", calls: []string{"func_alpha"}},
		{name: "func_gamma", calls: []string{"func_alpha", "func_beta"}},
		{name: "func_delta", calls: []string{"func_alpha", "func_beta", "func_gamma"}},
		{name: "func_epsilon", calls: []string{"func_alpha", "func_beta", "func_gamma", "func_delta"}},
		{name: "rec_xi", calls: []string{"rec_xi"}},
		{name: "rec_phi", calls: []string{"rec_psi"}},
		{name: "rec_chi", calls: []string{"rec_phi"}},
		{name: "rec_psi", calls: []string{"rec_chi"}},
		{name: "main", calls: []string{"func_omega", "func_epsilon", "rec_psi", "rec_xi", "rec_xi"}, indirect: true},
	}

	addr := make(map[string]uint64, len(fns))
	for i, f := range fns {
		addr[f.name] = 0x1000 + uint64(i)*0x100
	}

	var lines []string
	for _, f := range fns {
		base := addr[f.name]
		lines = append(lines, fmt.Sprintf("%016x <%s>:", base, f.name))

		pc := base
		lines = append(lines, fmt.Sprintf("  %x:\tsub    $0x30,%%rsp", pc))
		pc++
		for _, target := range f.calls {
			lines = append(lines, fmt.Sprintf("  %x:\tcall   %x <%s>", pc, addr[target], target))
			pc++
		}
		if f.indirect {
			lines = append(lines, fmt.Sprintf("  %x:\tcall   *%%rax", pc))
			pc++
		}
		lines = append(lines, fmt.Sprintf("  %x:\tretq", pc))
	}

	frames, frameDiags, err := frame.Extract(arch.X86_64, disasm.NewSliceStream(lines))
	if err != nil {
		t.Fatal(err)
	}

	g, buildDiags := callgraph.Build(frames)
	if len(buildDiags) != 0 {
		t.Fatalf("unexpected build diagnostics: %+v", buildDiags)
	}
	cycleDiags := callgraph.DetectCycles(g)
	callgraph.Propagate(g)

	main, ok := g.Node(addr["main"])
	if !ok {
		t.Fatal("main not found in graph")
	}
	if main.TotalStack < 480 {
		t.Errorf("main.TotalStack = %d, want >= 480", main.TotalStack)
	}
	if !main.LowerBound {
		t.Error("main should be a lower bound: it dispatches through a function pointer")
	}

	recXi, _ := g.Node(addr["rec_xi"])
	if !recXi.InCycle {
		t.Error("rec_xi should be marked InCycle (self-recursion)")
	}

	for _, name := range []string{"rec_psi", "rec_chi", "rec_phi"} {
		n, _ := g.Node(addr[name])
		if !n.InCycle {
			t.Errorf("%s should be marked InCycle (mutual recursion)", name)
		}
	}

	var sawXiCycle, sawPsiCycle bool
	for _, d := range cycleDiags {
		switch d.Function {
		case "rec_xi":
			sawXiCycle = true
		case "rec_psi", "rec_chi", "rec_phi":
			sawPsiCycle = true
		}
	}
	if !sawXiCycle {
		t.Error("expected a CycleEntry diagnostic naming rec_xi's component")
	}
	if !sawPsiCycle {
		t.Error("expected a CycleEntry diagnostic naming rec_psi's component")
	}

	var indirectCount int
	for _, d := range frameDiags {
		if d.Kind == diag.IndirectCall && d.Function == "main" {
			indirectCount++
		}
	}
	if indirectCount != 1 {
		t.Errorf("got %d IndirectCall diagnostics for main, want 1", indirectCount)
	}
}
