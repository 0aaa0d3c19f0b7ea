// Command stackbound computes a static upper bound on the runtime stack
// consumption of every function in an ELF binary. Everything in this
// file is process spawning, flag parsing, and rendering, wired against
// the pure core in the internal packages.
package main

import (
	"debug/elf"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"stackbound/internal/arch"
	"stackbound/internal/callgraph"
	"stackbound/internal/diag"
	"stackbound/internal/disasm"
	"stackbound/internal/elfsym"
	"stackbound/internal/frame"
	"stackbound/internal/funcscan"
	"stackbound/internal/render"
)

const (
	exitOK    = 0
	exitWarn  = 1
	exitFatal = 2
)

type options struct {
	archFlag string
	objdump  string
	native   bool
	color    string
	strict   bool
	sortBy   string
	dot      bool
	json     bool
	debug    bool
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var opts options

	root := &cobra.Command{
		Use:           "stackbound <binary>",
		Short:         "Compute static stack-usage bounds for an ELF binary",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.Flags().StringVarP(&opts.archFlag, "arch", "a", "", "override architecture detection (arm, aarch64, x86, x86_64)")
	root.Flags().StringVarP(&opts.objdump, "objdump", "o", "", "path to the objdump binary")
	root.Flags().BoolVar(&opts.native, "native", false, "prefer the in-process decoder over external objdump where available")
	root.Flags().StringVar(&opts.color, "color", "auto", "color output: auto, always, never")
	root.Flags().BoolVar(&opts.strict, "strict", false, "exit non-zero if any warning-level diagnostic was emitted")
	root.Flags().StringVar(&opts.sortBy, "sort", "total", "sort order: total, name")
	root.Flags().BoolVar(&opts.dot, "dot", false, "emit the call graph as Graphviz DOT")
	root.Flags().BoolVar(&opts.json, "json", false, "emit the call graph and diagnostics as JSON")
	root.Flags().BoolVar(&opts.debug, "debug", false, "show debug logging")
	root.SetArgs(args)

	exitCode := exitOK
	root.RunE = func(cmd *cobra.Command, args []string) error {
		code, err := analyze(args[0], opts)
		exitCode = code
		return err
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "stackbound:", err)
		if exitCode == exitOK {
			exitCode = exitFatal
		}
	}
	return exitCode
}

func analyze(path string, opts options) (int, error) {
	log := logrus.New()
	if !opts.debug {
		log.SetLevel(logrus.WarnLevel)
	}

	f, err := elfsym.Open(path)
	if err != nil {
		return exitFatal, err
	}
	defer f.Close()

	a, err := resolveArch(f, opts.archFlag)
	if err != nil {
		return exitFatal, err
	}
	log.Debugf("using architecture %s", a)

	symbols, err := elfsym.ReadSymbols(f)
	if err != nil {
		return exitFatal, err
	}
	if len(symbols) == 0 {
		symbols = recoverSymbols(f, a)
		log.Debugf("no symbol table; recovered %d function candidates by prologue/call-site scan", len(symbols))
	} else {
		log.Debugf("read %d function symbols", len(symbols))
	}

	stream, err := buildStream(f, a, path, symbols, opts, log)
	if err != nil {
		return exitFatal, err
	}

	frames, frameDiags, err := frame.Extract(a, stream)
	if err != nil {
		return exitFatal, err
	}

	graph, buildDiags := callgraph.Build(frames)
	cycleDiags := callgraph.DetectCycles(graph)
	callgraph.Propagate(graph)

	var allDiags []diag.Diagnostic
	allDiags = append(allDiags, frameDiags...)
	allDiags = append(allDiags, buildDiags...)
	allDiags = append(allDiags, cycleDiags...)

	color := resolveColor(opts.color)
	sortBy := render.SortByTotal
	if opts.sortBy == "name" {
		sortBy = render.SortByName
	}

	switch {
	case opts.json:
		if err := writeJSON(os.Stdout, graph, allDiags); err != nil {
			return exitFatal, err
		}
	case opts.dot:
		fmt.Fprintln(os.Stdout, render.DOT(graph))
	default:
		if err := render.Table(os.Stdout, graph, sortBy, color); err != nil {
			return exitFatal, err
		}
		render.Diagnostics(os.Stderr, allDiags, color)
	}

	return render.ExitCode(allDiags, opts.strict), nil
}

func resolveArch(f *elf.File, override string) (arch.Arch, error) {
	if override != "" {
		a := arch.Arch(override)
		if _, err := arch.PointerWidth(a); err != nil {
			return "", err
		}
		return a, nil
	}
	return elfsym.DetectArch(f)
}

func buildStream(f *elf.File, a arch.Arch, path string, symbols elfsym.Table, opts options, log *logrus.Logger) (frame.LineStream, error) {
	if opts.native {
		if lines, err := buildNativeStream(f, a, symbols); err == nil {
			return lines, nil
		} else {
			log.Debugf("native decoder unavailable (%v); falling back to objdump", err)
		}
	}
	return disasm.NewExternalStream(opts.objdump, path)
}

// buildNativeStream decodes every executable section with the in-process
// decoder and concatenates the results into one line stream, mirroring
// the single ordered sequence an external objdump invocation would emit
// for the whole binary.
func buildNativeStream(f *elf.File, a arch.Arch, symbols elfsym.Table) (frame.LineStream, error) {
	var lines []string
	for _, sec := range elfsym.TextSections(f) {
		code, err := sec.Data()
		if err != nil {
			return nil, fmt.Errorf("read section %s: %w", sec.Name, err)
		}
		stream, err := disasm.NewNativeStream(a, code, sec.Addr, symbols)
		if err != nil {
			return nil, err
		}
		lines = append(lines, stream.Lines()...)
	}
	return disasm.NewSliceStream(lines), nil
}

// recoverSymbols merges prologue/call-site-derived function boundaries
// across every executable section, used when the ELF carries no symbol
// table at all (fully stripped binaries).
func recoverSymbols(f *elf.File, a arch.Arch) elfsym.Table {
	table := make(elfsym.Table)
	for _, sec := range elfsym.TextSections(f) {
		code, err := sec.Data()
		if err != nil {
			continue
		}
		for addr, sym := range funcscan.Recover(a, code, sec.Addr) {
			table[addr] = sym
		}
	}
	return table
}

func resolveColor(mode string) *render.Colorizer {
	switch mode {
	case "always":
		return render.NewColorizer(true)
	case "never":
		return render.NewColorizer(false)
	default:
		return render.NewColorizer(term.IsTerminal(int(os.Stdout.Fd())))
	}
}

type jsonReport struct {
	Functions   []jsonFunction   `json:"functions"`
	Diagnostics []jsonDiagnostic `json:"diagnostics"`
}

type jsonFunction struct {
	Address    uint64 `json:"address"`
	Name       string `json:"name"`
	Section    string `json:"section"`
	OwnStack   uint64 `json:"own_stack"`
	TotalStack uint64 `json:"total_stack"`
	InCycle    bool   `json:"in_cycle"`
	LowerBound bool   `json:"lower_bound"`
}

type jsonDiagnostic struct {
	Kind     string `json:"kind"`
	Function string `json:"function"`
	Target   uint64 `json:"target,omitempty"`
}

func writeJSON(w io.Writer, g *callgraph.Graph, diags []diag.Diagnostic) error {
	report := jsonReport{}
	for _, n := range g.Nodes() {
		report.Functions = append(report.Functions, jsonFunction{
			Address:    n.Frame.Address,
			Name:       n.Frame.Name,
			Section:    n.Frame.Section,
			OwnStack:   n.Frame.OwnStack,
			TotalStack: n.TotalStack,
			InCycle:    n.InCycle,
			LowerBound: n.LowerBound,
		})
	}
	for _, d := range diags {
		report.Diagnostics = append(report.Diagnostics, jsonDiagnostic{
			Kind:     d.Kind.String(),
			Function: d.Function,
			Target:   d.Target,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
