package vm

import (
	"fmt"
	"strings"
)

// Kind identifies the category of a VM command.
type Kind int

const (
	CmdArithmetic Kind = iota // add, sub, neg, eq, gt, lt, and, or, not, shiftleft, shiftright
	CmdPush                   // push segment index
	CmdPop                    // pop segment index
	CmdLabel                  // label name
	CmdGoto                   // goto name
	CmdIfGoto                 // if-goto name
	CmdFunction               // function name nLocals
	CmdCall                   // call name nArgs
	CmdReturn                 // return
)

var kindNames = [...]string{
	CmdArithmetic: "arithmetic",
	CmdPush:       "push",
	CmdPop:        "pop",
	CmdLabel:      "label",
	CmdGoto:       "goto",
	CmdIfGoto:     "if-goto",
	CmdFunction:   "function",
	CmdCall:       "call",
	CmdReturn:     "return",
}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Segment names a virtual memory segment.
type Segment string

const (
	Constant Segment = "constant"
	Local    Segment = "local"
	Argument Segment = "argument"
	This     Segment = "this"
	That     Segment = "that"
	Static   Segment = "static"
	Pointer  Segment = "pointer"
	Temp     Segment = "temp"
)

var segments = map[string]Segment{
	"constant": Constant,
	"local":    Local,
	"argument": Argument,
	"this":     This,
	"that":     That,
	"static":   Static,
	"pointer":  Pointer,
	"temp":     Temp,
}

// Op is an arithmetic or logical VM command.
type Op string

const (
	Add        Op = "add"
	Sub        Op = "sub"
	Neg        Op = "neg"
	Eq         Op = "eq"
	Gt         Op = "gt"
	Lt         Op = "lt"
	And        Op = "and"
	Or         Op = "or"
	Not        Op = "not"
	ShiftLeft  Op = "shiftleft"
	ShiftRight Op = "shiftright"
)

var ops = map[string]Op{
	"add":        Add,
	"sub":        Sub,
	"neg":        Neg,
	"eq":         Eq,
	"gt":         Gt,
	"lt":         Lt,
	"and":        And,
	"or":         Or,
	"not":        Not,
	"shiftleft":  ShiftLeft,
	"shiftright": ShiftRight,
}

// Command is a single stack-machine instruction. Only the fields relevant
// to Kind are set.
type Command struct {
	Kind    Kind
	Op      Op      // CmdArithmetic
	Segment Segment // CmdPush, CmdPop
	Index   int     // CmdPush, CmdPop
	Name    string  // CmdLabel, CmdGoto, CmdIfGoto, CmdFunction, CmdCall
	Count   int     // CmdFunction (locals), CmdCall (arguments)
}

func Arithmetic(op Op) Command { return Command{Kind: CmdArithmetic, Op: op} }

func Push(seg Segment, index int) Command {
	return Command{Kind: CmdPush, Segment: seg, Index: index}
}

func Pop(seg Segment, index int) Command {
	return Command{Kind: CmdPop, Segment: seg, Index: index}
}

func Label(name string) Command  { return Command{Kind: CmdLabel, Name: name} }
func Goto(name string) Command   { return Command{Kind: CmdGoto, Name: name} }
func IfGoto(name string) Command { return Command{Kind: CmdIfGoto, Name: name} }

func Function(name string, nLocals int) Command {
	return Command{Kind: CmdFunction, Name: name, Count: nLocals}
}

func Call(name string, nArgs int) Command {
	return Command{Kind: CmdCall, Name: name, Count: nArgs}
}

func Return() Command { return Command{Kind: CmdReturn} }

// String renders the command in canonical .vm syntax.
func (c Command) String() string {
	switch c.Kind {
	case CmdArithmetic:
		return string(c.Op)
	case CmdPush, CmdPop:
		return fmt.Sprintf("%s %s %d", c.Kind, c.Segment, c.Index)
	case CmdLabel, CmdGoto, CmdIfGoto:
		return fmt.Sprintf("%s %s", c.Kind, c.Name)
	case CmdFunction, CmdCall:
		return fmt.Sprintf("%s %s %d", c.Kind, c.Name, c.Count)
	case CmdReturn:
		return "return"
	}
	return fmt.Sprintf("<%s>", c.Kind)
}

// Emitter receives commands in program order.
type Emitter interface {
	Emit(Command)
}

// Program is an in-memory command sequence. It is the usual Emitter for
// the code generator: output is buffered until the whole unit succeeds.
type Program []Command

func (p *Program) Emit(c Command) {
	*p = append(*p, c)
}

// String renders the program as .vm text, one command per line.
func (p Program) String() string {
	var sb strings.Builder
	for _, c := range p {
		sb.WriteString(c.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Functions returns the names declared by function commands, in order.
func (p Program) Functions() []string {
	var names []string
	for _, c := range p {
		if c.Kind == CmdFunction {
			names = append(names, c.Name)
		}
	}
	return names
}
