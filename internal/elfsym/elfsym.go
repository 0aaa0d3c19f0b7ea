// Package elfsym opens an ELF binary, determines its architecture, and
// reads the symbol table the core analyzer needs. It is a collaborator
// external to the core: the core trusts whatever architecture tag and
// symbol map it is handed.
package elfsym

import (
	"debug/elf"
	"fmt"

	"stackbound/internal/arch"
)

// Symbol is one entry of the address -> (name, section) map the core's
// inputs carry.
type Symbol struct {
	Name    string
	Section string
}

// Table maps a function's entry address to its symbol.
type Table map[uint64]Symbol

// Open opens path as an ELF file. The caller is responsible for closing
// the returned file.
func Open(path string) (*elf.File, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("elfsym: open %s: %w", path, err)
	}
	return f, nil
}

// DetectArch maps the ELF header's machine field to a supported
// architecture tag.
func DetectArch(f *elf.File) (arch.Arch, error) {
	switch f.Machine {
	case elf.EM_386:
		return arch.X86, nil
	case elf.EM_X86_64:
		return arch.X86_64, nil
	case elf.EM_ARM:
		return arch.ARM, nil
	case elf.EM_AARCH64:
		return arch.AArch64, nil
	default:
		return "", &arch.ErrUnsupportedArch{Tag: arch.Arch(f.Machine.String())}
	}
}

// ReadSymbols builds the address -> Symbol table from the ELF symbol
// table, falling back to the dynamic symbol table for stripped shared
// objects. Only STT_FUNC symbols are kept. When two symbols share an
// address, the first GLOBAL-bound one wins, falling back to the first
// one seen.
func ReadSymbols(f *elf.File) (Table, error) {
	syms, err := f.Symbols()
	if err != nil {
		syms, err = f.DynamicSymbols()
		if err != nil {
			return nil, fmt.Errorf("elfsym: read symbols: %w", err)
		}
	}

	table := make(Table, len(syms))
	global := make(map[uint64]bool, len(syms))

	for _, s := range syms {
		if elf.ST_TYPE(s.Info) != elf.STT_FUNC {
			continue
		}
		if s.Name == "" {
			continue
		}

		section := ""
		if int(s.Section) < len(f.Sections) {
			section = f.Sections[s.Section].Name
		}

		isGlobal := elf.ST_BIND(s.Info) == elf.STB_GLOBAL
		if _, exists := table[s.Value]; exists && (global[s.Value] || !isGlobal) {
			continue
		}
		table[s.Value] = Symbol{Name: s.Name, Section: section}
		if isGlobal {
			global[s.Value] = true
		}
	}

	return table, nil
}

// TextSections returns every allocated, executable PROGBITS section —
// ordinarily just .text, but binaries built with -ffunction-sections or
// split hot/cold paths (.text.unlikely) may hold code in more than one.
func TextSections(f *elf.File) []*elf.Section {
	var out []*elf.Section
	for _, sec := range f.Sections {
		if sec.Type != elf.SHT_PROGBITS {
			continue
		}
		if sec.Flags&elf.SHF_EXECINSTR == 0 {
			continue
		}
		if sec.Flags&elf.SHF_ALLOC == 0 {
			continue
		}
		out = append(out, sec)
	}
	return out
}
