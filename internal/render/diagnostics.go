package render

import (
	"fmt"
	"io"
	"sort"

	"stackbound/internal/diag"
)

// Diagnostics writes one line per diagnostic, colored by kind: the
// function name is yellow for cycle, indirect-call and dynamic-stack
// diagnostics, red for malformed-line ones, and plain for unresolved
// callees.
func Diagnostics(w io.Writer, diags []diag.Diagnostic, c *Colorizer) {
	sorted := append([]diag.Diagnostic(nil), diags...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Kind != sorted[j].Kind {
			return sorted[i].Kind < sorted[j].Kind
		}
		return sorted[i].Function < sorted[j].Function
	})

	for _, d := range sorted {
		label := c.bold(d.Kind.String())
		switch d.Kind {
		case diag.CycleEntry:
			fmt.Fprintf(w, "%s: cycle entering with %s\n", label, c.warn(d.Function))
		case diag.IndirectCall:
			fmt.Fprintf(w, "%s: %s calls a function pointer\n", label, c.warn(d.Function))
		case diag.DynamicStack:
			fmt.Fprintf(w, "%s: dynamic stack operation in %s\n", label, c.warn(d.Function))
		case diag.UnresolvedCallee:
			fmt.Fprintf(w, "%s: %s calls unresolved target 0x%x\n", label, d.Function, d.Target)
		case diag.MalformedLine:
			fmt.Fprintf(w, "%s: unparsed instruction in %s\n", label, c.fatal(d.Function))
		}
	}
}

// ExitCode maps diagnostic severity to a process exit code: 0 if nothing
// warrants attention, 1 if strict mode is on and any Warn-or-above
// diagnostic was emitted. 2 is reserved for fatal errors and is never
// returned from here.
func ExitCode(diags []diag.Diagnostic, strict bool) int {
	if !strict {
		return 0
	}
	for _, d := range diags {
		if d.Kind.Severity() >= diag.Warn {
			return 1
		}
	}
	return 0
}
