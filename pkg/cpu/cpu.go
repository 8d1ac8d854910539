package cpu

import "fmt"

// Memory map.
const (
	RAMSize  = 0x6001
	ROMSize  = 0x8000
	Screen   = 0x4000
	Keyboard = 0x6000

	ScreenWidth  = 512
	ScreenHeight = 256
	ScreenWords  = ScreenWidth * ScreenHeight / 16
)

// Instruction prefixes. Bit 15 clear marks an A-instruction.
const (
	PrefixMask     uint16 = 0xE000
	PrefixCompute  uint16 = 0xE000 // 111a cccc ccdd djjj
	PrefixExtended uint16 = 0xA000 // 101a cccc ccdd djjj, shift ops
)

// Destination bits.
const (
	DestM uint16 = 1 << iota
	DestD
	DestA
)

// Jump conditions.
const (
	JumpNone uint16 = iota
	JumpGT
	JumpEQ
	JumpGE
	JumpLT
	JumpNE
	JumpLE
	JumpAlways
)

// ALU control bits within the 6-bit comp field.
const (
	aluZX = 1 << 5
	aluNX = 1 << 4
	aluZY = 1 << 3
	aluNY = 1 << 2
	aluF  = 1 << 1
	aluNO = 1 << 0
)

// Extended comp fields (without the a bit).
const (
	shiftLeftD  uint16 = 0b110000
	shiftLeftY  uint16 = 0b100000
	shiftRightD uint16 = 0b010000
	shiftRightY uint16 = 0b000000
)

type CPU struct {
	A  uint16
	D  uint16
	PC uint16

	RAM [RAMSize]uint16
	ROM [ROMSize]uint16

	// ProgramSize is the number of words loaded into ROM.
	ProgramSize int

	Cycles uint64

	// Halted is set when the program enters a loop of the form "@k" at k
	// followed by a jump with no destination, or when an invalid
	// instruction is executed.
	Halted bool
	Fault  error
}

func NewCPU() *CPU {
	return &CPU{}
}

// Load copies program into ROM and resets the registers. RAM is left as is.
func (c *CPU) Load(program []uint16) error {
	if len(program) > ROMSize {
		return fmt.Errorf("program of %d words does not fit in ROM", len(program))
	}
	c.ROM = [ROMSize]uint16{}
	copy(c.ROM[:], program)
	c.ProgramSize = len(program)
	c.Reset()
	return nil
}

// Reset clears A, D and PC and resumes execution from address 0.
func (c *CPU) Reset() {
	c.A, c.D, c.PC = 0, 0, 0
	c.Cycles = 0
	c.Halted = false
	c.Fault = nil
}

// ReadMem returns the RAM cell at addr. Addresses past the keyboard read as 0.
func (c *CPU) ReadMem(addr uint16) uint16 {
	if int(addr) >= RAMSize {
		return 0
	}
	return c.RAM[addr]
}

// WriteMem stores val at addr. Writes to the keyboard register or past it
// are ignored.
func (c *CPU) WriteMem(addr uint16, val uint16) {
	if int(addr) >= Keyboard {
		return
	}
	c.RAM[addr] = val
}

// SetKey publishes the currently pressed key code (0 for none).
func (c *CPU) SetKey(code uint16) {
	c.RAM[Keyboard] = code
}

// Stack returns the cells between the stack base and SP.
func (c *CPU) Stack() []uint16 {
	sp := int(c.RAM[0])
	if sp < 256 || sp >= Screen {
		return nil
	}
	return append([]uint16(nil), c.RAM[256:sp]...)
}

func alu(x, y, ctrl uint16) uint16 {
	if ctrl&aluZX != 0 {
		x = 0
	}
	if ctrl&aluNX != 0 {
		x = ^x
	}
	if ctrl&aluZY != 0 {
		y = 0
	}
	if ctrl&aluNY != 0 {
		y = ^y
	}
	var out uint16
	if ctrl&aluF != 0 {
		out = x + y
	} else {
		out = x & y
	}
	if ctrl&aluNO != 0 {
		out = ^out
	}
	return out
}

// shift evaluates an extended comp field. Right shifts are arithmetic.
func shift(d, y, ctrl uint16) (uint16, bool) {
	switch ctrl {
	case shiftLeftD:
		return d << 1, true
	case shiftLeftY:
		return y << 1, true
	case shiftRightD:
		return uint16(int16(d) >> 1), true
	case shiftRightY:
		return uint16(int16(y) >> 1), true
	}
	return 0, false
}

func jumps(cond, out uint16) bool {
	v := int16(out)
	switch cond {
	case JumpGT:
		return v > 0
	case JumpEQ:
		return v == 0
	case JumpGE:
		return v >= 0
	case JumpLT:
		return v < 0
	case JumpNE:
		return v != 0
	case JumpLE:
		return v <= 0
	case JumpAlways:
		return true
	}
	return false
}

func (c *CPU) Step() {
	if c.Halted {
		return
	}
	if int(c.PC) >= ROMSize {
		c.fault(fmt.Errorf("pc 0x%04X outside ROM", c.PC))
		return
	}

	instr := c.ROM[c.PC]
	c.Cycles++

	if instr&0x8000 == 0 {
		c.A = instr
		c.PC++
		return
	}

	addr := c.A
	y := c.A
	if instr&0x1000 != 0 {
		y = c.ReadMem(addr)
	}
	ctrl := (instr >> 6) & 0x3F

	var out uint16
	switch instr & PrefixMask {
	case PrefixCompute:
		out = alu(c.D, y, ctrl)
	case PrefixExtended:
		v, ok := shift(c.D, y, ctrl)
		if !ok {
			c.fault(fmt.Errorf("invalid shift instruction 0x%04X at 0x%04X", instr, c.PC))
			return
		}
		out = v
	default:
		c.fault(fmt.Errorf("invalid instruction 0x%04X at 0x%04X", instr, c.PC))
		return
	}

	dest := (instr >> 3) & 0x7
	if dest&DestM != 0 {
		c.WriteMem(addr, out)
	}
	if dest&DestA != 0 {
		c.A = out
	}
	if dest&DestD != 0 {
		c.D = out
	}

	if !jumps(instr&0x7, out) {
		c.PC++
		return
	}
	// The jump target is the A value latched before this instruction.
	if dest == 0 && addr+1 == c.PC && c.ROM[addr] == addr {
		c.Halted = true
	}
	c.PC = addr
}

func (c *CPU) fault(err error) {
	c.Fault = err
	c.Halted = true
}

// Run steps the CPU until it halts or maxSteps instructions have executed
// (maxSteps <= 0 means no limit). It returns the number of steps taken.
func (c *CPU) Run(maxSteps int) int {
	steps := 0
	for !c.Halted {
		if maxSteps > 0 && steps >= maxSteps {
			break
		}
		c.Step()
		steps++
	}
	return steps
}

// RunUntilDone runs until the program halts.
func (c *CPU) RunUntilDone() {
	c.Run(0)
}

// EncodeCompute assembles a C-instruction from its fields. comp holds the a
// bit followed by the six ALU control bits.
func EncodeCompute(extended bool, comp, dest, jump uint16) uint16 {
	prefix := PrefixCompute
	if extended {
		prefix = PrefixExtended
	}
	return prefix | (comp&0x7F)<<6 | (dest&0x7)<<3 | jump&0x7
}
