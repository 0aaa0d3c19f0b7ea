package disasm

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/arch/arm64/arm64asm"
	"golang.org/x/arch/x86/x86asm"

	"stackbound/internal/arch"
	"stackbound/internal/elfsym"
)

// ErrNoNativeDecoder is returned by NewNativeStream for architectures
// this project has no in-process decoder for (arm, x86); callers should
// fall back to ExternalStream.
var ErrNoNativeDecoder = errors.New("disasm: no native decoder for this architecture")

// NewNativeStream decodes a .text region with golang.org/x/arch and
// renders it into the same section/header/instruction line shape
// ExternalStream produces, so the core recognizer sees one dialect
// regardless of backend.
func NewNativeStream(a arch.Arch, code []byte, baseAddr uint64, symbols elfsym.Table) (*SliceStream, error) {
	switch a {
	case arch.X86_64:
		return newX86NativeStream(code, baseAddr, symbols, 64)
	case arch.AArch64:
		return newARM64NativeStream(code, baseAddr, symbols)
	default:
		return nil, ErrNoNativeDecoder
	}
}

func newX86NativeStream(code []byte, baseAddr uint64, symbols elfsym.Table, mode int) (*SliceStream, error) {
	headers := headerOffsets(baseAddr, uint64(len(code)), symbols)

	lookup := func(addr uint64) (string, uint64) {
		if sym, ok := symbols[addr]; ok {
			return sym.Name, addr
		}
		return "", 0
	}

	var lines []string
	offset := 0
	for offset < len(code) {
		addr := baseAddr + uint64(offset)
		if name, ok := headers[addr]; ok {
			lines = append(lines, fmt.Sprintf("%x <%s>:", addr, name))
		}

		inst, err := x86asm.Decode(code[offset:], mode)
		if err != nil || inst.Len == 0 {
			lines = append(lines, fmt.Sprintf("  %x:\t(bad)", addr))
			offset++
			continue
		}

		text := x86asm.GNUSyntax(inst, addr, lookup)
		// GNUSyntax prints a direct call's target as a bare symbol or
		// address; rewrite it into objdump's "<addr> <name>" form, which
		// the x86 recognizer's direct-call pattern requires.
		if inst.Op == x86asm.CALL {
			if rel, ok := inst.Args[0].(x86asm.Rel); ok {
				target := addr + uint64(inst.Len) + uint64(int64(rel))
				if sym, ok := symbols[target]; ok {
					text = fmt.Sprintf("call %x <%s>", target, sym.Name)
				}
			}
		}
		lines = append(lines, fmt.Sprintf("  %x:\t%s", addr, text))
		offset += inst.Len
	}

	return NewSliceStream(lines), nil
}

func newARM64NativeStream(code []byte, baseAddr uint64, symbols elfsym.Table) (*SliceStream, error) {
	headers := headerOffsets(baseAddr, uint64(len(code)), symbols)

	var lines []string
	const insnLen = 4
	for offset := 0; offset+insnLen <= len(code); offset += insnLen {
		addr := baseAddr + uint64(offset)
		if name, ok := headers[addr]; ok {
			lines = append(lines, fmt.Sprintf("%x <%s>:", addr, name))
		}

		inst, err := arm64asm.Decode(code[offset : offset+insnLen])
		if err != nil {
			lines = append(lines, fmt.Sprintf("  %x:\t(bad)", addr))
			continue
		}

		text := annotateARM64Target(strings.ToLower(inst.String()), addr, symbols)
		lines = append(lines, fmt.Sprintf("  %x:\t%s", addr, text))
	}

	return NewSliceStream(lines), nil
}

// annotateARM64Target appends the objdump-style "<addr> <name>" trailer
// after a bl/b branch, since arm64asm's own String() renders the target
// as a PC-relative offset (".+0x20") with no absolute address or symbol
// lookup at all.
func annotateARM64Target(text string, pc uint64, symbols elfsym.Table) string {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return text
	}
	switch fields[0] {
	case "bl", "b", "b.eq", "b.ne", "b.lt", "b.gt", "b.le", "b.ge", "b.cs", "b.cc":
	default:
		return text
	}
	target, ok := parseARM64BranchTarget(fields[1], pc)
	if !ok {
		return text
	}
	if sym, ok := symbols[target]; ok {
		return fmt.Sprintf("%s %x <%s>", fields[0], target, sym.Name)
	}
	return text
}

// parseARM64BranchTarget parses arm64asm's PCRel operand rendering
// (PCRel.String in golang.org/x/arch/arm64/arm64asm), of the form
// ".+0xNN". PCRel.String formats its signed offset by casting straight
// to uint64 before applying the "+" flag, so a backward branch never
// prints a literal "-": its negative offset comes out as ".+0x..." with
// the offset's 64-bit two's-complement bit pattern. Adding that value
// to pc with ordinary uint64 wraparound arithmetic recovers the correct
// absolute target either way, so both the "+" and the defensive "-"
// case (in case a future library version signs it properly) are
// handled by the same pc-relative addition below.
func parseARM64BranchTarget(operand string, pc uint64) (uint64, bool) {
	operand = strings.TrimPrefix(operand, ".")
	if operand == "" {
		return 0, false
	}

	neg := false
	switch operand[0] {
	case '+':
		operand = operand[1:]
	case '-':
		neg = true
		operand = operand[1:]
	default:
		return 0, false
	}
	operand = strings.TrimPrefix(operand, "0x")

	offset, err := strconv.ParseUint(operand, 16, 64)
	if err != nil {
		return 0, false
	}
	if neg {
		return pc - offset, true
	}
	return pc + offset, true
}

// headerOffsets returns the subset of symbols whose address falls within
// [base, base+size), used to interleave synthetic function headers with
// decoded instructions the same way objdump does.
func headerOffsets(base, size uint64, symbols elfsym.Table) map[uint64]string {
	out := make(map[uint64]string)
	for addr, sym := range symbols {
		if addr >= base && addr < base+size {
			out[addr] = sym.Name
		}
	}
	return out
}
