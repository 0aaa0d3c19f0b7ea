// Package arch selects an instruction recognizer for one of the four
// supported instruction sets and classifies single lines of disassembly
// into their effect on the stack pointer or control flow.
//
// The dispatch is a closed tagged variant: one Arch value maps to exactly
// one Recognizer, chosen from a fixed table built at package init. There
// is no class hierarchy and no lookup of a recognizer by name.
package arch

import "fmt"

// Arch identifies one of the four supported instruction sets.
type Arch string

// Recognized architecture tags.
const (
	ARM     Arch = "arm"
	AArch64 Arch = "aarch64"
	X86     Arch = "x86"
	X86_64  Arch = "x86_64"
)

// ErrUnsupportedArch is returned by Dispatch when the tag is outside the
// recognized set.
type ErrUnsupportedArch struct {
	Tag Arch
}

func (e *ErrUnsupportedArch) Error() string {
	return fmt.Sprintf("arch: unsupported architecture %q", string(e.Tag))
}

// PointerWidth returns the word width in bytes for the architecture: 4 for
// arm/x86, 8 for aarch64/x86_64.
func PointerWidth(a Arch) (int, error) {
	switch a {
	case ARM, X86:
		return 4, nil
	case AArch64, X86_64:
		return 8, nil
	default:
		return 0, &ErrUnsupportedArch{Tag: a}
	}
}

// PushesReturnAddress reports whether a direct call instruction on this
// architecture pushes the return address onto the stack itself (x86 family),
// as opposed to leaving it in a link register (ARM family).
func PushesReturnAddress(a Arch) bool {
	return a == X86 || a == X86_64
}

var recognizers = map[Arch]Recognizer{
	ARM:     newARMRecognizer(),
	AArch64: newAArch64Recognizer(),
	X86:     newX86Recognizer(),
	X86_64:  newX86_64Recognizer(),
}

// Dispatch returns the recognizer for the given architecture tag.
func Dispatch(a Arch) (Recognizer, error) {
	r, ok := recognizers[a]
	if !ok {
		return nil, &ErrUnsupportedArch{Tag: a}
	}
	return r, nil
}
