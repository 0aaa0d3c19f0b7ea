// Package frame implements the function extractor: it consumes a
// disassembly stream partitioned into per-function sections and emits
// one Frame per function, together with the diagnostics observable from
// a single function's body in isolation (dynamic-stack, indirect-call,
// malformed-line).
package frame

import (
	"regexp"

	"stackbound/internal/arch"
	"stackbound/internal/diag"
)

// Frame is the pre-link record captured during disassembly parsing.
type Frame struct {
	Address         uint64
	Name            string
	Section         string
	OwnStack        uint64
	CallTargets     []uint64
	DynamicStack    bool
	HasIndirectCall bool
}

// LineStream is the minimal contract the extractor needs from a
// disassembly source. Both the native decoder and the external objdump
// backend in package disasm implement it.
type LineStream interface {
	// Next returns the next line and true, or ("", false) at end of
	// stream.
	Next() (line string, ok bool)
}

// header matches a function section header: "<hex address> <name>:",
// the shape both objdump and this project's in-process decoder emit.
var header = regexp.MustCompile(`^\s*(0x)?([0-9a-f]+)\s+<([^>]+)>:\s*$`)

// looksLikeInstruction is a loose shape check for "this is at least
// trying to be a disassembly line" — used only to distinguish a
// malformed line from one that is legitimately Irrelevant to stack
// accounting.
var looksLikeInstruction = regexp.MustCompile(`^\s*(0x)?[0-9a-f]+:`)

// sectionMarker matches a "Disassembly of section X:" style marker; the
// section name last seen this way is recorded on every following Frame.
// Streams that supply no such marker leave Section empty on every Frame.
var sectionMarker = regexp.MustCompile(`^Disassembly of section (\S+):$`)

// Extract walks lines one function section at a time, classifying each
// instruction line and accumulating its effect on the current Frame.
func Extract(a arch.Arch, lines LineStream) ([]Frame, []diag.Diagnostic, error) {
	recognizer, err := arch.Dispatch(a)
	if err != nil {
		return nil, nil, err
	}

	var (
		frames []Frame
		diags  []diag.Diagnostic
		cur    *Frame
		seenMalformed bool
		section string
	)

	seal := func() {
		if cur != nil {
			frames = append(frames, *cur)
		}
	}

	for {
		line, ok := lines.Next()
		if !ok {
			break
		}
		if line == "" {
			continue
		}

		if m := sectionMarker.FindStringSubmatch(line); m != nil {
			section = m[1]
			continue
		}

		if m := header.FindStringSubmatch(line); m != nil {
			seal()
			addr := parseHex(m[2])
			cur = &Frame{Address: addr, Name: m[3], Section: section}
			seenMalformed = false
			continue
		}

		if cur == nil {
			// Instructions before any header are outside any function;
			// nothing to attribute them to.
			continue
		}

		effect := recognizer.Classify(line)

		switch effect.Kind {
		case arch.StackDecrease:
			cur.OwnStack += effect.Bytes

		case arch.StackDecreaseDynamic:
			cur.DynamicStack = true

		case arch.DirectCall:
			cur.CallTargets = append(cur.CallTargets, effect.Target)
			if arch.PushesReturnAddress(a) {
				width, _ := arch.PointerWidth(a)
				cur.OwnStack += uint64(width)
			}

		case arch.IndirectCall:
			cur.HasIndirectCall = true

		case arch.Return:
			// no effect on accounting

		case arch.Irrelevant:
			if !seenMalformed && !looksLikeInstruction.MatchString(line) {
				seenMalformed = true
				diags = append(diags, diag.Diagnostic{Kind: diag.MalformedLine, Function: cur.Name})
			}
		}
	}
	seal()

	for _, f := range frames {
		if f.DynamicStack {
			diags = append(diags, diag.Diagnostic{Kind: diag.DynamicStack, Function: f.Name})
		}
		if f.HasIndirectCall {
			diags = append(diags, diag.Diagnostic{Kind: diag.IndirectCall, Function: f.Name})
		}
	}

	return frames, diags, nil
}

func parseHex(s string) uint64 {
	var v uint64
	for _, c := range s {
		v <<= 4
		switch {
		case c >= '0' && c <= '9':
			v |= uint64(c - '0')
		case c >= 'a' && c <= 'f':
			v |= uint64(c-'a') + 10
		case c >= 'A' && c <= 'F':
			v |= uint64(c-'A') + 10
		}
	}
	return v
}
