// Package funcscan recovers function boundaries in a stripped ELF's .text
// section when no symbol table survives. It stands in for elfsym.ReadSymbols
// on such binaries, producing synthetic names the rest of the pipeline
// treats exactly like real ones: a prologue match alone (push rbp; mov
// rbp, rsp, or a leading sub rsp, imm) is corroborated by the target of a
// direct call or unconditional jump landing on the same address, since
// compiled code almost always both enters a function through its
// prologue and is called into it from somewhere else in the same object.
package funcscan

import (
	"fmt"
	"sort"

	"golang.org/x/arch/arm64/arm64asm"
	"golang.org/x/arch/x86/x86asm"

	"stackbound/internal/arch"
	"stackbound/internal/elfsym"
)

// candidate tracks how confidently an address looks like a function entry.
type candidate struct {
	hasPrologue bool
	calledInto  bool
}

// Recover scans code (the raw bytes of one .text-like section starting at
// baseAddr) and returns synthetic symbols for addresses that look like
// function entries. Only x86_64 and aarch64 have decoders wired here,
// matching the two architectures internal/disasm.NewNativeStream can
// decode in-process; other architectures return an empty table, leaving
// symbol-less analysis to fall back on whatever the disassembler itself
// labels as function headers.
func Recover(a arch.Arch, code []byte, baseAddr uint64) elfsym.Table {
	switch a {
	case arch.X86_64:
		return recoverX86(code, baseAddr)
	case arch.AArch64:
		return recoverARM64(code, baseAddr)
	default:
		return elfsym.Table{}
	}
}

func recoverX86(code []byte, baseAddr uint64) elfsym.Table {
	candidates := make(map[uint64]*candidate)

	offset := 0
	addr := baseAddr
	var prev *x86asm.Inst

	for offset < len(code) {
		if isEndbr(code, offset) {
			offset += 4
			addr += 4
			prev = nil
			continue
		}

		inst, err := x86asm.Decode(code[offset:], 64)
		if err != nil {
			offset++
			addr++
			prev = nil
			continue
		}

		if prologueAtX86(prev, inst) {
			mark(candidates, addr-prologueBackup(prev)).hasPrologue = true
		}

		if target, ok := directTargetX86(inst, addr); ok {
			mark(candidates, target).calledInto = true
		}

		next := inst
		prev = &next
		offset += inst.Len
		addr += uint64(inst.Len)
	}

	return finalize(candidates)
}

func isEndbr(code []byte, offset int) bool {
	if offset+4 > len(code) {
		return false
	}
	return code[offset] == 0xf3 && code[offset+1] == 0x0f &&
		code[offset+2] == 0x1e && (code[offset+3] == 0xfa || code[offset+3] == 0xfb)
}

// prologueAtX86 reports whether inst completes a recognized prologue given
// the previous instruction: push rbp; mov rbp, rsp, or a leading sub
// rsp, imm with no predecessor (start of the scanned region).
func prologueAtX86(prev *x86asm.Inst, inst x86asm.Inst) bool {
	if prev != nil && prev.Op == x86asm.PUSH && prev.Args[0] == x86asm.RBP &&
		inst.Op == x86asm.MOV && inst.Args[0] == x86asm.RBP && inst.Args[1] == x86asm.RSP {
		return true
	}
	if inst.Op == x86asm.SUB && inst.Args[0] == x86asm.RSP {
		if imm, ok := inst.Args[1].(x86asm.Imm); ok && imm > 0 && prev == nil {
			return true
		}
	}
	return false
}

// prologueBackup returns how many bytes to step back from the current
// address to reach the start of the matched prologue: the push rbp form
// starts one instruction earlier, the bare sub rsp form starts here.
func prologueBackup(prev *x86asm.Inst) uint64 {
	if prev != nil && prev.Op == x86asm.PUSH {
		return uint64(prev.Len)
	}
	return 0
}

func directTargetX86(inst x86asm.Inst, addr uint64) (uint64, bool) {
	if inst.Op != x86asm.CALL && inst.Op != x86asm.JMP {
		return 0, false
	}
	rel, ok := inst.Args[0].(x86asm.Rel)
	if !ok {
		return 0, false
	}
	return addr + uint64(inst.Len) + uint64(int64(rel)), true
}

func recoverARM64(code []byte, baseAddr uint64) elfsym.Table {
	candidates := make(map[uint64]*candidate)
	const insnLen = 4

	for offset := 0; offset+insnLen <= len(code); offset += insnLen {
		inst, err := arm64asm.Decode(code[offset : offset+insnLen])
		if err != nil {
			continue
		}
		addr := baseAddr + uint64(offset)

		if inst.Op == arm64asm.SUB {
			if isSPTarget(inst) && offset == 0 {
				mark(candidates, addr).hasPrologue = true
			}
		}
		if inst.Op == arm64asm.STP && offset == 0 {
			mark(candidates, addr).hasPrologue = true
		}

		if inst.Op == arm64asm.BL {
			if pcrel, ok := inst.Args[0].(arm64asm.PCRel); ok {
				mark(candidates, addr+uint64(int64(pcrel))).calledInto = true
			}
		}
	}

	return finalize(candidates)
}

func isSPTarget(inst arm64asm.Inst) bool {
	reg, ok := inst.Args[0].(arm64asm.Reg)
	return ok && reg == arm64asm.SP
}

func mark(candidates map[uint64]*candidate, addr uint64) *candidate {
	c, ok := candidates[addr]
	if !ok {
		c = &candidate{}
		candidates[addr] = c
	}
	return c
}

// finalize keeps only addresses corroborated by both a prologue and an
// inbound call, naming each "sub_<address>" the way stripped-binary
// disassemblers conventionally do for recovered functions.
func finalize(candidates map[uint64]*candidate) elfsym.Table {
	table := make(elfsym.Table)
	addrs := make([]uint64, 0, len(candidates))
	for addr, c := range candidates {
		if c.hasPrologue && c.calledInto {
			addrs = append(addrs, addr)
		}
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	for _, addr := range addrs {
		table[addr] = elfsym.Symbol{Name: fmt.Sprintf("sub_%x", addr), Section: ".text"}
	}
	return table
}
