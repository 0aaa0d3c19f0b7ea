package arch

import (
	"regexp"
	"strconv"
	"strings"
)

// armRecognizer implements the ARM/AArch64 instruction forms this
// project recognizes. On these architectures the link register, not the
// stack, holds the return address, so unlike x86 a direct call does not
// by itself decrease the stack; only an explicit prologue store (push,
// stp, str) does.
type armRecognizer struct {
	branchLink   *regexp.Regexp // bl/blx <addr> <name>
	branchLinkR  *regexp.Regexp // blr reg / bx reg indirect call
	ret          *regexp.Regexp // ret / bx lr
	pushRegs     *regexp.Regexp // push {r4, r5, ...} — A32/T32 only
	stmSP        *regexp.Regexp // stmdb sp!, {...}
	subSP        *regexp.Regexp // sub sp, sp, #imm
	addNegSP     *regexp.Regexp // add sp, sp, #-imm
	stpPreIndex  *regexp.Regexp // stp x29, x30, [sp, #-imm]!
	strPreIndex  *regexp.Regexp // str x30, [sp, #-imm]!
}

func newARMRecognizer() Recognizer {
	return newARMFamily()
}

func newAArch64Recognizer() Recognizer {
	return newARMFamily()
}

func newARMFamily() *armRecognizer {
	return &armRecognizer{
		branchLink:  mustCompile(`^.*\s+(bl|blx)(\.n|w)?\s+(0x)?([0-9a-f]+)\s+<[^>]+>\s*$`),
		branchLinkR: mustCompile(`^.*\s+(blr|bx|blx)\s+[a-z][a-z0-9]+\s*$`),
		ret:         mustCompile(`^.*\s+(ret|bx\s+lr)\s*$`),
		pushRegs:    mustCompile(`^.*\s+push(\.\w+)?\s*\{([^}]*)\}\s*$`),
		stmSP:       mustCompile(`^.*\s+stm(ia|ib|da|db)(\.w)?\s+sp!?,\s*\{([^}]*)\}\s*$`),
		subSP:       mustCompile(`^.*\s+sub(\.w|s)?\s+(w|x)?sp,\s*(w|x)?sp,\s*#(0x[0-9a-f]+|[0-9]+)\s*$`),
		addNegSP:    mustCompile(`^.*\s+add(\.w|s)?\s+(w|x)?sp,\s*(w|x)?sp,\s*#-(0x[0-9a-f]+|[0-9]+)\s*$`),
		stpPreIndex: mustCompile(`^.*\s+stp\s+[a-z][a-z0-9]+,\s*[a-z][a-z0-9]+,\s*\[(w|x)?sp,\s*#-(0x[0-9a-f]+|[0-9]+)\]!\s*$`),
		strPreIndex: mustCompile(`^.*\s+str[a-z]?\s+[a-z][a-z0-9]+,\s*\[(w|x)?sp,\s*#-(0x[0-9a-f]+|[0-9]+)\]!\s*$`),
	}
}

func (r *armRecognizer) Classify(line string) Effect {
	switch {
	case r.ret.MatchString(line):
		return Effect{Kind: Return}

	case r.branchLinkR.MatchString(line):
		return Effect{Kind: IndirectCall}

	case r.branchLink.MatchString(line):
		if addr, ok := armCallTarget(r.branchLink, line); ok {
			return Effect{Kind: DirectCall, Target: addr}
		}
		return Effect{Kind: Irrelevant}

	case r.pushRegs.MatchString(line):
		return Effect{Kind: StackDecrease, Bytes: uint64(4 * regListCount(r.pushRegs, line, 2))}

	case r.stmSP.MatchString(line):
		return Effect{Kind: StackDecrease, Bytes: uint64(4 * regListCount(r.stmSP, line, 3))}

	case r.subSP.MatchString(line):
		if n, ok := armImmediate(r.subSP, line, 4); ok {
			return Effect{Kind: StackDecrease, Bytes: n}
		}
		return Effect{Kind: StackDecreaseDynamic}

	case r.addNegSP.MatchString(line):
		if n, ok := armImmediate(r.addNegSP, line, 4); ok {
			return Effect{Kind: StackDecrease, Bytes: n}
		}
		return Effect{Kind: StackDecreaseDynamic}

	case r.stpPreIndex.MatchString(line):
		if n, ok := armImmediate(r.stpPreIndex, line, 2); ok {
			return Effect{Kind: StackDecrease, Bytes: n}
		}
		return Effect{Kind: StackDecreaseDynamic}

	case r.strPreIndex.MatchString(line):
		if n, ok := armImmediate(r.strPreIndex, line, 2); ok {
			return Effect{Kind: StackDecrease, Bytes: n}
		}
		return Effect{Kind: StackDecreaseDynamic}

	default:
		return Effect{Kind: Irrelevant}
	}
}

func armCallTarget(re *regexp.Regexp, line string) (uint64, bool) {
	m := re.FindStringSubmatch(line)
	if len(m) < 5 {
		return 0, false
	}
	v, err := strconv.ParseUint(m[4], 16, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// armImmediate extracts the group-th submatch as a decimal or hex
// immediate, per the "#0x..." / "#..." forms used throughout the ARM
// stack-decreasing instructions.
func armImmediate(re *regexp.Regexp, line string, group int) (uint64, bool) {
	m := re.FindStringSubmatch(line)
	if len(m) <= group {
		return 0, false
	}
	imm := m[group]
	var (
		v   uint64
		err error
	)
	if strings.HasPrefix(imm, "0x") {
		v, err = strconv.ParseUint(imm[2:], 16, 64)
	} else {
		v, err = strconv.ParseUint(imm, 10, 64)
	}
	if err != nil {
		return 0, false
	}
	return v, true
}

// regListCount counts the registers in a "{r4, r5, r6}" style list,
// captured at the given submatch group.
func regListCount(re *regexp.Regexp, line string, group int) int {
	m := re.FindStringSubmatch(line)
	if len(m) <= group {
		return 0
	}
	list := strings.TrimSpace(m[group])
	if list == "" {
		return 0
	}
	return strings.Count(list, ",") + 1
}
