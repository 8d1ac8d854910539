package vm

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Parse reads .vm source text into commands. Comments start with "//" and
// run to end of line; blank lines are ignored.
func Parse(src string) ([]Command, error) {
	var cmds []Command
	for i, raw := range strings.Split(src, "\n") {
		lineNo := i + 1
		line := stripComment(raw)
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		cmd, err := parseFields(fields, lineNo)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}

func stripComment(line string) string {
	if idx := strings.Index(line, "//"); idx >= 0 {
		return line[:idx]
	}
	return line
}

func parseFields(fields []string, lineNo int) (Command, error) {
	name := fields[0]
	args := fields[1:]

	if op, ok := ops[name]; ok {
		if len(args) != 0 {
			return Command{}, fmt.Errorf("line %d: %s expects no operands", lineNo, name)
		}
		return Arithmetic(op), nil
	}

	switch name {
	case "push", "pop":
		if len(args) != 2 {
			return Command{}, fmt.Errorf("line %d: %s expects segment and index", lineNo, name)
		}
		seg, ok := segments[args[0]]
		if !ok {
			return Command{}, fmt.Errorf("line %d: unknown segment %q", lineNo, args[0])
		}
		idx, err := parseCount(args[1], lineNo)
		if err != nil {
			return Command{}, err
		}
		if name == "push" {
			return Push(seg, idx), nil
		}
		if seg == Constant {
			return Command{}, fmt.Errorf("line %d: cannot pop into the constant segment", lineNo)
		}
		return Pop(seg, idx), nil

	case "label", "goto", "if-goto":
		if len(args) != 1 {
			return Command{}, fmt.Errorf("line %d: %s expects a label", lineNo, name)
		}
		switch name {
		case "label":
			return Label(args[0]), nil
		case "goto":
			return Goto(args[0]), nil
		}
		return IfGoto(args[0]), nil

	case "function", "call":
		if len(args) != 2 {
			return Command{}, fmt.Errorf("line %d: %s expects a name and a count", lineNo, name)
		}
		n, err := parseCount(args[1], lineNo)
		if err != nil {
			return Command{}, err
		}
		if name == "function" {
			return Function(args[0], n), nil
		}
		return Call(args[0], n), nil

	case "return":
		if len(args) != 0 {
			return Command{}, fmt.Errorf("line %d: return expects no operands", lineNo)
		}
		return Return(), nil
	}

	return Command{}, fmt.Errorf("line %d: unknown command %q", lineNo, name)
}

func parseCount(s string, lineNo int) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 32767 {
		return 0, fmt.Errorf("line %d: invalid number %q", lineNo, s)
	}
	return n, nil
}

// Writer is an Emitter that streams commands as .vm text.
type Writer struct {
	w   io.Writer
	err error
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) Emit(c Command) {
	if w.err != nil {
		return
	}
	_, w.err = io.WriteString(w.w, c.String()+"\n")
}

// Err reports the first write error, if any.
func (w *Writer) Err() error {
	return w.err
}
