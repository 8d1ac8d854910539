package vm

import (
	"fmt"
	"strings"
)

// Base addresses of the directly addressed segments.
const (
	pointerBase = 3
	tempBase    = 5
	tempSize    = 8
	stackBase   = 256
)

// indirect maps the pointer-based segments to the register holding their base.
var indirect = map[Segment]string{
	Local:    "LCL",
	Argument: "ARG",
	This:     "THIS",
	That:     "THAT",
}

var binaryComp = map[Op]string{
	Add: "M=M+D",
	Sub: "M=M-D",
	And: "M=M&D",
	Or:  "M=M|D",
}

var unaryComp = map[Op]string{
	Neg:        "M=-M",
	Not:        "M=!M",
	ShiftLeft:  "M=M<<",
	ShiftRight: "M=M>>",
}

// Option configures a Translator.
type Option func(*Translator)

// WithSharedScratch makes every return sequence use R13/R14 as its scratch
// cells instead of a pair of variables per return site.
func WithSharedScratch() Option {
	return func(t *Translator) { t.sharedScratch = true }
}

// WithComments annotates the output with the VM command each block implements.
func WithComments() Option {
	return func(t *Translator) { t.comments = true }
}

// Translator lowers VM commands to Hack assembly. One Translator produces one
// assembly program; all label counters live here so two Translators never
// share state.
type Translator struct {
	out           strings.Builder
	unit          string
	function      string
	arithCount    int
	calls         map[string]int
	returns       int
	sharedScratch bool
	comments      bool
}

func NewTranslator(opts ...Option) *Translator {
	t := &Translator{
		unit:  "Main",
		calls: make(map[string]int),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SetUnit starts a new translation unit (one .vm file). Static variables and
// helper labels are namespaced by the unit name.
func (t *Translator) SetUnit(name string) {
	t.unit = name
	t.function = ""
}

func (t *Translator) line(format string, args ...any) {
	fmt.Fprintf(&t.out, format+"\n", args...)
}

func (t *Translator) comment(format string, args ...any) {
	if t.comments {
		t.line("// "+format, args...)
	}
}

// String returns the assembly emitted so far.
func (t *Translator) String() string {
	return t.out.String()
}

// scope is the prefix for function-local labels.
func (t *Translator) scope() string {
	if t.function != "" {
		return t.function
	}
	return t.unit
}

// WriteBootstrap emits SP=256 followed by a call to Sys.init.
func (t *Translator) WriteBootstrap() {
	t.comment("bootstrap")
	t.line("@%d", stackBase)
	t.line("D=A")
	t.line("@SP")
	t.line("M=D")
	saved := t.function
	t.function = "bootstrap"
	t.WriteCall("Sys.init", 0)
	t.function = saved
}

// Write dispatches a single command to the matching emitter.
func (t *Translator) Write(c Command) error {
	switch c.Kind {
	case CmdArithmetic:
		return t.WriteArithmetic(c.Op)
	case CmdPush, CmdPop:
		return t.WritePushPop(c.Kind, c.Segment, c.Index)
	case CmdLabel:
		t.WriteLabel(c.Name)
	case CmdGoto:
		t.WriteGoto(c.Name)
	case CmdIfGoto:
		t.WriteIf(c.Name)
	case CmdFunction:
		t.WriteFunction(c.Name, c.Count)
	case CmdCall:
		t.WriteCall(c.Name, c.Count)
	case CmdReturn:
		t.WriteReturn()
	default:
		return fmt.Errorf("unknown command kind %s", c.Kind)
	}
	return nil
}

// WriteAll translates cmds in order, stopping at the first error.
func (t *Translator) WriteAll(cmds []Command) error {
	for i, c := range cmds {
		if err := t.Write(c); err != nil {
			return fmt.Errorf("command %d (%s): %w", i+1, c, err)
		}
	}
	return nil
}

// pushD pushes the D register onto the stack.
func (t *Translator) pushD() {
	t.line("@SP")
	t.line("A=M")
	t.line("M=D")
	t.line("@SP")
	t.line("M=M+1")
}

// popD pops the top of the stack into D.
func (t *Translator) popD() {
	t.line("@SP")
	t.line("AM=M-1")
	t.line("D=M")
}

// WriteArithmetic emits one arithmetic/logical command. Each emission takes
// the next counter value so helper labels are never reused.
func (t *Translator) WriteArithmetic(op Op) error {
	n := t.arithCount
	t.arithCount++
	t.comment("%s", op)

	if comp, ok := binaryComp[op]; ok {
		t.popD()
		t.line("A=A-1")
		t.line(comp)
		return nil
	}
	if comp, ok := unaryComp[op]; ok {
		t.line("@SP")
		t.line("A=M-1")
		t.line(comp)
		return nil
	}

	switch op {
	case Eq:
		t.writeEq(n)
	case Gt, Lt:
		t.writeCompare(op, n)
	default:
		return fmt.Errorf("unknown arithmetic command %q", op)
	}
	return nil
}

func (t *Translator) helperLabel(op Op, part string, n int) string {
	return fmt.Sprintf("%s$%s.%s.%d", t.unit, op, part, n)
}

func (t *Translator) writeEq(n int) {
	end := t.helperLabel(Eq, "END", n)
	t.popD()
	t.line("A=A-1")
	t.line("D=M-D")
	t.line("M=0")
	t.line("@%s", end)
	t.line("D;JNE")
	t.line("@SP")
	t.line("A=M-1")
	t.line("M=-1")
	t.line("(%s)", end)
}

// writeCompare emits gt/lt. x is second from top, y is top. When the signs
// differ the result follows from the signs alone, so x-y is only computed
// when it cannot overflow.
func (t *Translator) writeCompare(op Op, n int) {
	yNeg := t.helperLabel(op, "YNEG", n)
	same := t.helperLabel(op, "SAME", n)
	isTrue := t.helperLabel(op, "TRUE", n)
	isFalse := t.helperLabel(op, "FALSE", n)
	end := t.helperLabel(op, "END", n)

	// x > y holds when x >= 0 > y; x < y holds when x < 0 <= y.
	xNonNegYNeg, xNegYNonNeg := isTrue, isFalse
	sameJump := "JGT"
	if op == Lt {
		xNonNegYNeg, xNegYNonNeg = isFalse, isTrue
		sameJump = "JLT"
	}

	t.popD()
	t.line("@%s", yNeg)
	t.line("D;JLT")
	t.line("@SP")
	t.line("A=M-1")
	t.line("D=M")
	t.line("@%s", xNegYNonNeg)
	t.line("D;JLT")
	t.line("@%s", same)
	t.line("0;JMP")
	t.line("(%s)", yNeg)
	t.line("@SP")
	t.line("A=M-1")
	t.line("D=M")
	t.line("@%s", xNonNegYNeg)
	t.line("D;JGE")
	t.line("(%s)", same)
	t.line("@SP")
	t.line("A=M")
	t.line("D=M")
	t.line("A=A-1")
	t.line("D=M-D")
	t.line("@%s", isTrue)
	t.line("D;%s", sameJump)
	t.line("(%s)", isFalse)
	t.line("@SP")
	t.line("A=M-1")
	t.line("M=0")
	t.line("@%s", end)
	t.line("0;JMP")
	t.line("(%s)", isTrue)
	t.line("@SP")
	t.line("A=M-1")
	t.line("M=-1")
	t.line("(%s)", end)
}

// WritePushPop emits a push or pop for the given segment and index.
func (t *Translator) WritePushPop(kind Kind, seg Segment, index int) error {
	if kind != CmdPush && kind != CmdPop {
		return fmt.Errorf("WritePushPop called with %s", kind)
	}
	t.comment("%s %s %d", kind, seg, index)

	if seg == Constant {
		if kind == CmdPop {
			return fmt.Errorf("cannot pop into the constant segment")
		}
		t.line("@%d", index)
		t.line("D=A")
		t.pushD()
		return nil
	}

	if reg, ok := indirect[seg]; ok {
		if kind == CmdPush {
			t.line("@%d", index)
			t.line("D=A")
			t.line("@%s", reg)
			t.line("A=M+D")
			t.line("D=M")
			t.pushD()
			return nil
		}
		// The destination is computed before the pop touches SP.
		t.line("@%d", index)
		t.line("D=A")
		t.line("@%s", reg)
		t.line("D=M+D")
		t.line("@R13")
		t.line("M=D")
		t.popD()
		t.line("@R13")
		t.line("A=M")
		t.line("M=D")
		return nil
	}

	var addr string
	switch seg {
	case Pointer:
		if index > 1 {
			return fmt.Errorf("pointer index %d out of range", index)
		}
		addr = fmt.Sprint(pointerBase + index)
	case Temp:
		if index >= tempSize {
			return fmt.Errorf("temp index %d out of range", index)
		}
		addr = fmt.Sprint(tempBase + index)
	case Static:
		addr = fmt.Sprintf("%s.%d", t.unit, index)
	default:
		return fmt.Errorf("unknown segment %q", seg)
	}

	if kind == CmdPush {
		t.line("@%s", addr)
		t.line("D=M")
		t.pushD()
		return nil
	}
	t.popD()
	t.line("@%s", addr)
	t.line("M=D")
	return nil
}

func (t *Translator) WriteLabel(label string) {
	t.line("(%s$%s)", t.scope(), label)
}

func (t *Translator) WriteGoto(label string) {
	t.comment("goto %s", label)
	t.line("@%s$%s", t.scope(), label)
	t.line("0;JMP")
}

func (t *Translator) WriteIf(label string) {
	t.comment("if-goto %s", label)
	t.popD()
	t.line("@%s$%s", t.scope(), label)
	t.line("D;JNE")
}

// WriteFunction emits the entry label and zero-initialises nLocals locals.
func (t *Translator) WriteFunction(name string, nLocals int) {
	t.function = name
	t.line("(%s)", name)
	for i := 0; i < nLocals; i++ {
		_ = t.WritePushPop(CmdPush, Constant, 0)
	}
}

// WriteCall emits the caller side of the calling convention. The pushed
// frame is [return address, LCL, ARG, THIS, THAT].
func (t *Translator) WriteCall(name string, nArgs int) {
	caller := t.scope()
	i := t.calls[caller]
	t.calls[caller]++
	ret := fmt.Sprintf("%s$ret.%d", caller, i)

	t.comment("call %s %d", name, nArgs)
	t.line("@%s", ret)
	t.line("D=A")
	t.pushD()
	for _, reg := range []string{"LCL", "ARG", "THIS", "THAT"} {
		t.line("@%s", reg)
		t.line("D=M")
		t.pushD()
	}
	t.line("@SP")
	t.line("D=M")
	t.line("@%d", 5+nArgs)
	t.line("D=D-A")
	t.line("@ARG")
	t.line("M=D")
	t.line("@SP")
	t.line("D=M")
	t.line("@LCL")
	t.line("M=D")
	t.line("@%s", name)
	t.line("0;JMP")
	t.line("(%s)", ret)
}

// scratch returns the cells holding the frame base and return address for
// the next return sequence. Per-site cells are written and read within one
// uninterrupted sequence; nothing may be reordered between those accesses.
func (t *Translator) scratch() (frame, retAddr string) {
	if t.sharedScratch {
		return "R13", "R14"
	}
	k := t.returns
	t.returns++
	return fmt.Sprintf("%s$frame.%d", t.unit, k), fmt.Sprintf("%s$retaddr.%d", t.unit, k)
}

// WriteReturn emits the callee side of the calling convention.
func (t *Translator) WriteReturn() {
	frame, retAddr := t.scratch()
	t.comment("return")

	// frame = LCL
	t.line("@LCL")
	t.line("D=M")
	t.line("@%s", frame)
	t.line("M=D")
	// retAddr = *(frame-5), read before *ARG is overwritten
	t.line("@5")
	t.line("A=D-A")
	t.line("D=M")
	t.line("@%s", retAddr)
	t.line("M=D")
	// *ARG = pop()
	t.popD()
	t.line("@ARG")
	t.line("A=M")
	t.line("M=D")
	// SP = ARG+1
	t.line("@ARG")
	t.line("D=M+1")
	t.line("@SP")
	t.line("M=D")
	// THAT, THIS, ARG, LCL = *(frame-1) .. *(frame-4)
	for _, reg := range []string{"THAT", "THIS", "ARG", "LCL"} {
		t.line("@%s", frame)
		t.line("AM=M-1")
		t.line("D=M")
		t.line("@%s", reg)
		t.line("M=D")
	}
	t.line("@%s", retAddr)
	t.line("A=M")
	t.line("0;JMP")
}

// Translate lowers a single unit's commands to assembly.
func Translate(unit string, cmds []Command, opts ...Option) (string, error) {
	t := NewTranslator(opts...)
	t.SetUnit(unit)
	if err := t.WriteAll(cmds); err != nil {
		return "", err
	}
	return t.String(), nil
}
