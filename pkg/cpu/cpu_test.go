package cpu

import (
	"testing"
)

// comp fields (a bit + six ALU control bits) used by the hand-built programs.
const (
	compZero     uint16 = 0b0101010
	compD        uint16 = 0b0001100
	compA        uint16 = 0b0110000
	compM        uint16 = 0b1110000
	compDPlusA   uint16 = 0b0000010
	compDMinus1  uint16 = 0b0001110
	compDMinusM  uint16 = 0b1010011
	compShiftLD  uint16 = 0b0110000
	compShiftRM  uint16 = 0b1000000
	compShiftLM  uint16 = 0b1100000
	compShiftRD  uint16 = 0b0010000
	compShiftLA  uint16 = 0b0100000
	compShiftRA  uint16 = 0b0000000
	compMinusOne uint16 = 0b0111010
)

func cInstr(comp, dest, jump uint16) uint16 {
	return EncodeCompute(false, comp, dest, jump)
}

func shiftInstr(comp, dest uint16) uint16 {
	return EncodeCompute(true, comp, dest, JumpNone)
}

// halt returns the two-word "@addr; 0;JMP" loop placed at addr.
func halt(addr uint16) []uint16 {
	return []uint16{addr, cInstr(compZero, 0, JumpAlways)}
}

// loadProgram loads words into ROM and fails the test on error.
func loadProgram(t *testing.T, c *CPU, words ...uint16) {
	t.Helper()
	if err := c.Load(words); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestEncodeCompute(t *testing.T) {
	// D=D+A has comp 0000010 and dest 010.
	if got := EncodeCompute(false, compDPlusA, DestD, JumpNone); got != 0xE090 {
		t.Errorf("D=D+A: expected 0xE090, got 0x%04X", got)
	}
	// 0;JMP
	if got := EncodeCompute(false, compZero, 0, JumpAlways); got != 0xEA87 {
		t.Errorf("0;JMP: expected 0xEA87, got 0x%04X", got)
	}
	// D<< in the extended space.
	if got := EncodeCompute(true, compShiftLD, DestD, JumpNone); got != 0xAC10 {
		t.Errorf("D=D<<: expected 0xAC10, got 0x%04X", got)
	}
}

func TestALU(t *testing.T) {
	const x, y = 5, 3
	tests := []struct {
		name string
		ctrl uint16
		want int16
	}{
		{"0", 0b101010, 0},
		{"1", 0b111111, 1},
		{"-1", 0b111010, -1},
		{"x", 0b001100, x},
		{"y", 0b110000, y},
		{"!x", 0b001101, ^int16(x)},
		{"-x", 0b001111, -x},
		{"x+1", 0b011111, x + 1},
		{"y-1", 0b110010, y - 1},
		{"x+y", 0b000010, x + y},
		{"x-y", 0b010011, x - y},
		{"y-x", 0b000111, y - x},
		{"x&y", 0b000000, x & y},
		{"x|y", 0b010101, x | y},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := int16(alu(x, y, tt.ctrl)); got != tt.want {
				t.Errorf("alu(%d, %d, %06b) = %d, want %d", x, y, tt.ctrl, got, tt.want)
			}
		})
	}
}

func TestJumpConditions(t *testing.T) {
	tests := []struct {
		cond            uint16
		neg, zero, posv bool
	}{
		{JumpNone, false, false, false},
		{JumpGT, false, false, true},
		{JumpEQ, false, true, false},
		{JumpGE, false, true, true},
		{JumpLT, true, false, false},
		{JumpNE, true, false, true},
		{JumpLE, true, true, false},
		{JumpAlways, true, true, true},
	}
	for _, tt := range tests {
		if got := jumps(tt.cond, 0xFFFF); got != tt.neg {
			t.Errorf("jump %03b on -1: got %v, want %v", tt.cond, got, tt.neg)
		}
		if got := jumps(tt.cond, 0); got != tt.zero {
			t.Errorf("jump %03b on 0: got %v, want %v", tt.cond, got, tt.zero)
		}
		if got := jumps(tt.cond, 1); got != tt.posv {
			t.Errorf("jump %03b on 1: got %v, want %v", tt.cond, got, tt.posv)
		}
	}
}

func TestAddTwoConstants(t *testing.T) {
	c := NewCPU()
	prog := []uint16{
		2, cInstr(compA, DestD, JumpNone),
		3, cInstr(compDPlusA, DestD, JumpNone),
		0, cInstr(compD, DestM, JumpNone),
	}
	prog = append(prog, halt(uint16(len(prog)))...)
	loadProgram(t, c, prog...)

	c.Run(100)

	if !c.Halted {
		t.Fatalf("expected halt, pc=%d", c.PC)
	}
	if c.Fault != nil {
		t.Fatalf("unexpected fault: %v", c.Fault)
	}
	if c.RAM[0] != 5 {
		t.Errorf("RAM[0]: expected 5, got %d", c.RAM[0])
	}
}

func TestCountdownLoopIsNotHalt(t *testing.T) {
	c := NewCPU()
	// 0:@5 1:D=A 2:@2 3:D=D-1;JGT 4:@4 5:0;JMP
	prog := []uint16{
		5, cInstr(compA, DestD, JumpNone),
		2, cInstr(compDMinus1, DestD, JumpGT),
	}
	prog = append(prog, halt(4)...)
	loadProgram(t, c, prog...)

	c.Run(1000)

	if !c.Halted {
		t.Fatal("expected halt")
	}
	if c.D != 0 {
		t.Errorf("D: expected 0, got %d", c.D)
	}
	if c.PC != 4 {
		t.Errorf("PC: expected 4, got %d", c.PC)
	}
}

func TestMemoryOperandAndSubtraction(t *testing.T) {
	c := NewCPU()
	c.RAM[100] = 40
	prog := []uint16{
		50, cInstr(compA, DestD, JumpNone),
		100, cInstr(compDMinusM, DestM|DestD, JumpNone),
	}
	prog = append(prog, halt(4)...)
	loadProgram(t, c, prog...)
	c.RunUntilDone()

	if c.RAM[100] != 10 || c.D != 10 {
		t.Errorf("expected RAM[100]=D=10, got RAM[100]=%d D=%d", c.RAM[100], c.D)
	}
}

func TestJumpUsesLatchedA(t *testing.T) {
	c := NewCPU()
	// AM=-1;JMP must jump to the A value in effect before the instruction.
	prog := []uint16{
		4, cInstr(compMinusOne, DestA|DestM, JumpAlways),
		0, 0, // skipped
	}
	prog = append(prog, halt(4)...)
	loadProgram(t, c, prog...)
	c.Run(10)

	if !c.Halted || c.PC != 4 {
		t.Fatalf("expected halt at 4, got pc=%d halted=%v", c.PC, c.Halted)
	}
	if c.RAM[4] != 0xFFFF {
		t.Errorf("RAM[4]: expected 0xFFFF, got 0x%04X", c.RAM[4])
	}
}

func TestShiftInstructions(t *testing.T) {
	tests := []struct {
		name string
		comp uint16
		d    uint16
		a    uint16
		m    uint16
		want uint16
	}{
		{"D<<", compShiftLD, 3, 0, 0, 6},
		{"D>>", compShiftRD, 6, 0, 0, 3},
		{"D>> keeps sign", compShiftRD, 0xFFF0, 0, 0, 0xFFF8},
		{"A<<", compShiftLA, 0, 0x4001, 0, 0x8002},
		{"A>>", compShiftRA, 0, 0x0100, 0, 0x0080},
		{"M<<", compShiftLM, 0, 200, 0x0101, 0x0202},
		{"M>>", compShiftRM, 0, 200, 0x8000, 0xC000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCPU()
			loadProgram(t, c, shiftInstr(tt.comp, DestD))
			c.D, c.A = tt.d, tt.a
			c.RAM[200] = tt.m
			c.Step()
			if c.Fault != nil {
				t.Fatalf("fault: %v", c.Fault)
			}
			if c.D != tt.want {
				t.Errorf("got 0x%04X, want 0x%04X", c.D, tt.want)
			}
		})
	}
}

func TestInvalidInstructionFaults(t *testing.T) {
	for _, word := range []uint16{0x8000, 0xC000, shiftInstr(0b0111111, DestD)} {
		c := NewCPU()
		loadProgram(t, c, word)
		c.Step()
		if !c.Halted || c.Fault == nil {
			t.Errorf("0x%04X: expected fault, got halted=%v fault=%v", word, c.Halted, c.Fault)
		}
	}
}

func TestKeyboardRegister(t *testing.T) {
	c := NewCPU()
	c.SetKey(65)
	if got := c.ReadMem(Keyboard); got != 65 {
		t.Errorf("ReadMem(KBD): expected 65, got %d", got)
	}
	c.WriteMem(Keyboard, 1)
	if got := c.ReadMem(Keyboard); got != 65 {
		t.Errorf("write to KBD should be ignored, got %d", got)
	}
	if got := c.ReadMem(0x7000); got != 0 {
		t.Errorf("ReadMem past KBD: expected 0, got %d", got)
	}
}

func TestLoadTooLarge(t *testing.T) {
	c := NewCPU()
	if err := c.Load(make([]uint16, ROMSize+1)); err == nil {
		t.Fatal("expected error for oversized program")
	}
}

func TestStack(t *testing.T) {
	c := NewCPU()
	c.RAM[0] = 258
	c.RAM[256] = 7
	c.RAM[257] = 9
	got := c.Stack()
	if len(got) != 2 || got[0] != 7 || got[1] != 9 {
		t.Errorf("Stack: got %v", got)
	}
	c.RAM[0] = 0
	if c.Stack() != nil {
		t.Error("Stack with uninitialised SP should be nil")
	}
}

func BenchmarkCPU_CountdownLoop(b *testing.B) {
	prog := []uint16{
		0x7FFF, cInstr(compA, DestD, JumpNone),
		2, cInstr(compDMinus1, DestD, JumpGT),
	}
	prog = append(prog, halt(4)...)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c := NewCPU()
		_ = c.Load(prog)
		c.RunUntilDone()
	}
}
