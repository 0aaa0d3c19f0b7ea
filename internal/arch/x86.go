package arch

import (
	"regexp"
	"strconv"
	"strings"
)

// x86Recognizer implements the shared x86/x86-64 instruction forms.
// wordWidth is 4 for 32-bit, 8 for 64-bit; it is the size attributed to
// a push whose operand is not a recognized register. A register push is
// sized by the register-size tables, which are the same for both widths.
type x86Recognizer struct {
	wordWidth int

	stackSubImm    *regexp.Regexp
	stackSubDyn    *regexp.Regexp
	stackAddDyn    *regexp.Regexp
	pushOp         *regexp.Regexp
	callDirect     *regexp.Regexp
	callIndirect   *regexp.Regexp
	jmpIndirect    *regexp.Regexp
	ret            *regexp.Regexp
	reg8, reg4, reg2, reg1 *regexp.Regexp
}

func newX86Recognizer() Recognizer {
	return newX86Family(4)
}

func newX86_64Recognizer() Recognizer {
	return newX86Family(8)
}

func newX86Family(wordWidth int) *x86Recognizer {
	const sp = `(e|r)?sp`

	return &x86Recognizer{
		wordWidth: wordWidth,

		// sub $0x10,%rsp / sub $0x10,%esp — statically sized decrement.
		stackSubImm: operation(`sub[lq]?`, `\$(0x[0-9a-f]+|[0-9]+)`, `%`+sp+`$`),

		// sub %rax,%rsp — register-computed decrement, magnitude unknown.
		stackSubDyn: operation(`sub[lq]?`, `%\w+`, `%`+sp+`$`),

		// add %rax,%rsp — also register-computed; the recognizer cannot
		// tell the sign of the register's value, so it is classified as
		// StackDecreaseDynamic like sub %reg,%rsp, and the extractor marks
		// the function as having a dynamic stack.
		stackAddDyn: operation(`add[lq]?`, `%\w+`, `%`+sp+`$`),

		// push %rbp / pushq $0x10 / push %eax
		pushOp: operation(`push[lq]?`),

		// call 4005e9 <function_e> / callq 4005e9 <function_e>
		callDirect: mustCompile(`^.*\s+call[q]?\s+(0x)?([0-9a-f]+)\s+<[^>]+>\s*$`),

		// call *%rax / callq *0x8(%rax)
		callIndirect: mustCompile(`^.*\s+call[q]?\s+\*`),

		// jmp *%rax (tail call through function pointer)
		jmpIndirect: mustCompile(`^.*\s+jmp[q]?\s+\*`),

		ret: mustCompile(`^.*\s+ret[qn]?\s*$`),

		reg8: regexp.MustCompile(`%(r(a|b|c|d)x|r(bp|si|di|sp)|r(8|9|1[0-5]))$`),
		reg4: regexp.MustCompile(`%(e(a|b|c|d)x|e(bp|si|di|sp)|r(8|9|1[0-5])d)$`),
		reg2: regexp.MustCompile(`%((a|b|c|d)x|bp|si|di|sp|r(8|9|1[0-5])w)$`),
		reg1: regexp.MustCompile(`%((a|b|c|d)(h|l)|(bp|si|di|sp)l|r(8|9|1[0-5])b)$`),
	}
}

func (r *x86Recognizer) Classify(line string) Effect {
	switch {
	case r.ret.MatchString(line):
		return Effect{Kind: Return}

	case r.callIndirect.MatchString(line), r.jmpIndirect.MatchString(line):
		return Effect{Kind: IndirectCall}

	case r.callDirect.MatchString(line):
		if addr, ok := parseCallTarget(r.callDirect, line); ok {
			return Effect{Kind: DirectCall, Target: addr}
		}
		return Effect{Kind: Irrelevant}

	case r.stackSubImm.MatchString(line):
		if n, ok := extractImmediate(line); ok {
			return Effect{Kind: StackDecrease, Bytes: n}
		}
		return Effect{Kind: StackDecreaseDynamic}

	case r.stackSubDyn.MatchString(line), r.stackAddDyn.MatchString(line):
		return Effect{Kind: StackDecreaseDynamic}

	case r.pushOp.MatchString(line):
		return Effect{Kind: StackDecrease, Bytes: uint64(r.pushSize(line))}

	default:
		return Effect{Kind: Irrelevant}
	}
}

// pushSize sizes a push by the pushed register's width, falling back to
// the architecture's default immediate/constant push size.
func (r *x86Recognizer) pushSize(line string) int {
	switch {
	case r.reg8.MatchString(line):
		return 8
	case r.reg4.MatchString(line):
		return 4
	case r.reg2.MatchString(line):
		return 2
	case r.reg1.MatchString(line):
		return 1
	default:
		return r.wordWidth
	}
}

// extractImmediate pulls the trailing "$0x10,%rsp"-style immediate out of
// a sub instruction's last operand.
func extractImmediate(line string) (uint64, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return 0, false
	}
	last := fields[len(fields)-1]
	comma := strings.Index(last, ",")
	if comma < 0 {
		return 0, false
	}
	imm := strings.TrimPrefix(last[:comma], "$")

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

func parseCallTarget(re *regexp.Regexp, line string) (uint64, bool) {
	m := re.FindStringSubmatch(line)
	if len(m) < 3 {
		return 0, false
	}
	v, err := strconv.ParseUint(m[2], 16, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
