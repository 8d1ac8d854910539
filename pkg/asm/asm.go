package asm

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"hackc/pkg/cpu"
)

// Default bounds of the variable area.
const (
	VariableBase  = 16
	VariableLimit = 256
)

var predefined = map[string]uint16{
	"SP":     0,
	"LCL":    1,
	"ARG":    2,
	"THIS":   3,
	"THAT":   4,
	"R0":     0,
	"R1":     1,
	"R2":     2,
	"R3":     3,
	"R4":     4,
	"R5":     5,
	"R6":     6,
	"R7":     7,
	"R8":     8,
	"R9":     9,
	"R10":    10,
	"R11":    11,
	"R12":    12,
	"R13":    13,
	"R14":    14,
	"R15":    15,
	"SCREEN": cpu.Screen,
	"KBD":    cpu.Keyboard,
}

// computeOps maps a comp mnemonic to its a bit and six ALU control bits.
var computeOps = map[string]uint16{
	"0":   0b0101010,
	"1":   0b0111111,
	"-1":  0b0111010,
	"D":   0b0001100,
	"A":   0b0110000,
	"!D":  0b0001101,
	"!A":  0b0110001,
	"-D":  0b0001111,
	"-A":  0b0110011,
	"D+1": 0b0011111,
	"A+1": 0b0110111,
	"D-1": 0b0001110,
	"A-1": 0b0110010,
	"D+A": 0b0000010,
	"A+D": 0b0000010,
	"D-A": 0b0010011,
	"A-D": 0b0000111,
	"D&A": 0b0000000,
	"A&D": 0b0000000,
	"D|A": 0b0010101,
	"A|D": 0b0010101,
	"M":   0b1110000,
	"!M":  0b1110001,
	"-M":  0b1110011,
	"M+1": 0b1110111,
	"M-1": 0b1110010,
	"D+M": 0b1000010,
	"M+D": 0b1000010,
	"D-M": 0b1010011,
	"M-D": 0b1000111,
	"D&M": 0b1000000,
	"M&D": 0b1000000,
	"D|M": 0b1010101,
	"M|D": 0b1010101,
}

// shiftOps are encoded in the extended (101) instruction space.
var shiftOps = map[string]uint16{
	"D<<": 0b0110000,
	"A<<": 0b0100000,
	"M<<": 0b1100000,
	"D>>": 0b0010000,
	"A>>": 0b0000000,
	"M>>": 0b1000000,
}

var jumpOps = map[string]uint16{
	"JGT": cpu.JumpGT,
	"JEQ": cpu.JumpEQ,
	"JGE": cpu.JumpGE,
	"JLT": cpu.JumpLT,
	"JNE": cpu.JumpNE,
	"JLE": cpu.JumpLE,
	"JMP": cpu.JumpAlways,
}

var destBits = map[rune]uint16{
	'M': cpu.DestM,
	'D': cpu.DestD,
	'A': cpu.DestA,
}

type lineKind int

const (
	lineEmpty lineKind = iota
	lineLabel
	lineAddress
	lineCompute
)

type parsedLine struct {
	lineNo int
	kind   lineKind
	text   string // label name, address operand or compute text
}

type Assembler struct {
	// VariableLimit is the first RAM address that may not be given to a
	// variable. Allocation past it is an error.
	VariableLimit uint16

	labels    map[string]uint16
	variables map[string]uint16
	next      uint16
}

func NewAssembler() *Assembler {
	return &Assembler{
		VariableLimit: VariableLimit,
		labels:        make(map[string]uint16),
		variables:     make(map[string]uint16),
		next:          VariableBase,
	}
}

// Assemble translates Hack assembly into machine words. The returned source
// map gives the 1-based source line of every ROM address.
func Assemble(code string) ([]uint16, map[uint16]int, error) {
	return NewAssembler().Assemble(code)
}

func (a *Assembler) Assemble(code string) ([]uint16, map[uint16]int, error) {
	rawLines := strings.Split(code, "\n")
	lines := make([]parsedLine, 0, len(rawLines))
	for i, raw := range rawLines {
		p, err := parseLine(raw, i+1)
		if err != nil {
			return nil, nil, err
		}
		lines = append(lines, p)
	}

	if err := a.pass1(lines); err != nil {
		return nil, nil, err
	}
	return a.pass2(lines)
}

// Symbol returns the address bound to a label, variable or predefined name.
func (a *Assembler) Symbol(name string) (uint16, bool) {
	if addr, ok := predefined[name]; ok {
		return addr, true
	}
	if addr, ok := a.labels[name]; ok {
		return addr, true
	}
	addr, ok := a.variables[name]
	return addr, ok
}

// Variables returns the number of variables allocated so far.
func (a *Assembler) Variables() int {
	return len(a.variables)
}

func (a *Assembler) pass1(lines []parsedLine) error {
	var address int

	for _, p := range lines {
		switch p.kind {
		case lineLabel:
			if _, ok := predefined[p.text]; ok {
				return fmt.Errorf("label '%s' redefines a predefined symbol on line %d", p.text, p.lineNo)
			}
			if _, exists := a.labels[p.text]; exists {
				return fmt.Errorf("duplicate label '%s' on line %d", p.text, p.lineNo)
			}
			a.labels[p.text] = uint16(address)
		case lineAddress, lineCompute:
			address++
			if address > cpu.ROMSize {
				return fmt.Errorf("program too large near line %d", p.lineNo)
			}
		}
	}
	return nil
}

func (a *Assembler) pass2(lines []parsedLine) ([]uint16, map[uint16]int, error) {
	program := make([]uint16, 0, len(lines))
	sourceMap := make(map[uint16]int)

	for _, p := range lines {
		var word uint16
		var err error
		switch p.kind {
		case lineAddress:
			word, err = a.resolveAddress(p.text, p.lineNo)
		case lineCompute:
			word, err = encodeCompute(p.text, p.lineNo)
		default:
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		sourceMap[uint16(len(program))] = p.lineNo
		program = append(program, word)
	}

	return program, sourceMap, nil
}

func (a *Assembler) resolveAddress(operand string, lineNo int) (uint16, error) {
	if isDigits(operand) {
		value, err := strconv.ParseUint(operand, 10, 16)
		if err != nil || value > 0x7FFF {
			return 0, fmt.Errorf("constant out of range on line %d: %s", lineNo, operand)
		}
		return uint16(value), nil
	}

	if !isSymbol(operand) {
		return 0, fmt.Errorf("invalid symbol '%s' on line %d", operand, lineNo)
	}
	if addr, ok := a.Symbol(operand); ok {
		return addr, nil
	}

	if a.next >= a.VariableLimit {
		return 0, fmt.Errorf("variable '%s' on line %d does not fit below RAM %d", operand, lineNo, a.VariableLimit)
	}
	addr := a.next
	a.variables[operand] = addr
	a.next++
	return addr, nil
}

// encodeCompute encodes "dest=comp;jump" where dest and jump are optional.
func encodeCompute(text string, lineNo int) (uint16, error) {
	var dest, jump uint16
	comp := text

	if eq := strings.IndexByte(comp, '='); eq >= 0 {
		var err error
		dest, err = parseDest(comp[:eq], lineNo)
		if err != nil {
			return 0, err
		}
		comp = comp[eq+1:]
	}
	if semi := strings.IndexByte(comp, ';'); semi >= 0 {
		j, ok := jumpOps[comp[semi+1:]]
		if !ok {
			return 0, fmt.Errorf("unknown jump '%s' on line %d", comp[semi+1:], lineNo)
		}
		jump = j
		comp = comp[:semi]
	}

	if bits, ok := computeOps[comp]; ok {
		return cpu.EncodeCompute(false, bits, dest, jump), nil
	}
	if bits, ok := shiftOps[comp]; ok {
		return cpu.EncodeCompute(true, bits, dest, jump), nil
	}
	return 0, fmt.Errorf("unknown computation '%s' on line %d", comp, lineNo)
}

func parseDest(s string, lineNo int) (uint16, error) {
	if s == "" {
		return 0, fmt.Errorf("empty destination on line %d", lineNo)
	}
	var dest uint16
	for _, r := range s {
		bit, ok := destBits[r]
		if !ok || dest&bit != 0 {
			return 0, fmt.Errorf("invalid destination '%s' on line %d", s, lineNo)
		}
		dest |= bit
	}
	return dest, nil
}

func parseLine(raw string, lineNo int) (parsedLine, error) {
	p := parsedLine{lineNo: lineNo}

	line := strings.Join(strings.Fields(stripComments(raw)), "")
	if line == "" {
		return p, nil
	}

	switch {
	case line[0] == '(':
		if !strings.HasSuffix(line, ")") {
			return p, fmt.Errorf("unterminated label on line %d", lineNo)
		}
		name := line[1 : len(line)-1]
		if !isSymbol(name) {
			return p, fmt.Errorf("invalid label '%s' on line %d", name, lineNo)
		}
		p.kind, p.text = lineLabel, name
	case line[0] == '@':
		if len(line) == 1 {
			return p, fmt.Errorf("missing address on line %d", lineNo)
		}
		p.kind, p.text = lineAddress, line[1:]
	default:
		p.kind, p.text = lineCompute, line
	}
	return p, nil
}

func stripComments(line string) string {
	if idx := strings.Index(line, "//"); idx >= 0 {
		return line[:idx]
	}
	return line
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// isSymbol accepts letters, digits, '_', '.', '$' and ':' not starting
// with a digit.
func isSymbol(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		if i == 0 && unicode.IsDigit(r) {
			return false
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !strings.ContainsRune("_.$:", r) {
			return false
		}
	}

	return true
}

// Format renders words as .hack text: one 16-digit binary word per line.
func Format(words []uint16) string {
	var sb strings.Builder
	sb.Grow(len(words) * 17)
	for _, w := range words {
		fmt.Fprintf(&sb, "%016b\n", w)
	}
	return sb.String()
}

// ParseHack reads .hack text back into words. Blank lines are ignored.
func ParseHack(text string) ([]uint16, error) {
	var words []uint16
	for i, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if len(line) != 16 {
			return nil, fmt.Errorf("line %d: expected 16 binary digits, got %q", i+1, line)
		}
		v, err := strconv.ParseUint(line, 2, 16)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid binary word %q", i+1, line)
		}
		words = append(words, uint16(v))
	}
	return words, nil
}
