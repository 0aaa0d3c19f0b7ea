package arch

import "regexp"

// operation builds a regexp matching a disassembly line whose mnemonic
// and operands follow the given fragments, tolerating the arbitrary
// leading "<addr>:\t<hex bytes>\t" prefix both objdump and the in-process
// decoder emit. Mirrors the operand-chaining shape of the classic
// checkstack instruction-set tables: mnemonic, then comma-joined operands.
func operation(mnemonic string, operands ...string) *regexp.Regexp {
	pat := `^.*\s+` + mnemonic
	if len(operands) > 0 {
		pat += `\s+` + operands[0]
		for _, op := range operands[1:] {
			pat += `,\s*` + op
		}
	}
	return regexp.MustCompile(pat)
}

func mustCompile(pat string) *regexp.Regexp {
	return regexp.MustCompile(pat)
}
