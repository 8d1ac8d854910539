package asm

import (
	"reflect"
	"strings"
	"testing"

	"hackc/pkg/cpu"
)

func TestHelperFunctions(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"abc", true},
		{"_abc", true},
		{"Main.main$ret.0", true},
		{"Foo:bar", true},
		{"abc1", true},
		{"1abc", false},
		{"", false},
		{"ab-c", false},
		{"a b", false},
	}
	for _, tc := range tests {
		if got := isSymbol(tc.input); got != tc.want {
			t.Errorf("isSymbol(%q) = %v; want %v", tc.input, got, tc.want)
		}
	}

	if !isDigits("0123") || isDigits("") || isDigits("12a") {
		t.Error("isDigits misclassified input")
	}
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		line    string
		want    parsedLine
		wantErr bool
	}{
		{"@21", parsedLine{lineNo: 1, kind: lineAddress, text: "21"}, false},
		{"  D = D + A ; JGT  // comment", parsedLine{lineNo: 1, kind: lineCompute, text: "D=D+A;JGT"}, false},
		{"(LOOP)", parsedLine{lineNo: 1, kind: lineLabel, text: "LOOP"}, false},
		{"// only a comment", parsedLine{lineNo: 1}, false},
		{"", parsedLine{lineNo: 1}, false},
		{"(LOOP", parsedLine{}, true},
		{"(1LOOP)", parsedLine{}, true},
		{"@", parsedLine{}, true},
	}
	for _, tc := range tests {
		got, err := parseLine(tc.line, 1)
		if (err != nil) != tc.wantErr {
			t.Errorf("parseLine(%q) error = %v; wantErr %v", tc.line, err, tc.wantErr)
			continue
		}
		if !tc.wantErr && !reflect.DeepEqual(got, tc.want) {
			t.Errorf("parseLine(%q) = %+v; want %+v", tc.line, got, tc.want)
		}
	}
}

func TestAssembleAdd(t *testing.T) {
	code := `
// Computes R0 = 2 + 3
@2
D=A
@3
D=D+A
@0
M=D
`
	want := []uint16{
		0b0000000000000010,
		0b1110110000010000,
		0b0000000000000011,
		0b1110000010010000,
		0b0000000000000000,
		0b1110001100001000,
	}
	got, _, err := Assemble(code)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Assemble mismatch:\n got %s\nwant %s", Format(got), Format(want))
	}
}

func TestAssembleComputeTable(t *testing.T) {
	tests := []struct {
		text string
		want uint16
	}{
		{"0;JMP", 0b1110101010000111},
		{"D;JGT", 0b1110001100000001},
		{"AM=M-1", 0b1111110010101000},
		{"MD=M+1", 0b1111110111011000},
		{"AMD=D|M", 0b1111010101111000},
		{"DM=D&A", 0b1110000000011000},
		{"A=!A", 0b1110110001100000},
		{"M=-1", 0b1110111010001000},
		{"D=D<<", 0b1010110000010000},
		{"M=M>>", 0b1011000000001000},
		{"A=A<<", 0b1010100000100000},
		{"D=M<<", 0b1011100000010000},
		{"D=D>>", 0b1010010000010000},
		{"D=A>>", 0b1010000000010000},
	}
	for _, tc := range tests {
		t.Run(tc.text, func(t *testing.T) {
			got, err := encodeCompute(tc.text, 1)
			if err != nil {
				t.Fatalf("encodeCompute: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %016b, want %016b", got, tc.want)
			}
		})
	}
}

func TestLabelsAndVariables(t *testing.T) {
	code := `
@i
M=1
(LOOP)
@i
D=M
@END
D;JGT
@sum
M=D
@LOOP
0;JMP
(END)
@END
0;JMP
`
	a := NewAssembler()
	words, _, err := a.Assemble(code)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	checks := map[string]uint16{"LOOP": 2, "END": 10, "i": 16, "sum": 17, "SCREEN": 16384, "KBD": 24576, "R13": 13}
	for name, want := range checks {
		if got, ok := a.Symbol(name); !ok || got != want {
			t.Errorf("Symbol(%q) = %d, %v; want %d", name, got, ok, want)
		}
	}
	if a.Variables() != 2 {
		t.Errorf("Variables() = %d; want 2", a.Variables())
	}
	if words[0] != 16 || words[2] != 16 || words[4] != 10 || words[6] != 17 || words[8] != 2 {
		t.Errorf("unexpected address words: %v", words)
	}

	// Label referenced before definition and variables allocated by first use.
	c := cpu.NewCPU()
	if err := c.Load(words); err != nil {
		t.Fatal(err)
	}
	c.Run(100)
	if !c.Halted || c.PC != 10 {
		t.Errorf("expected halt at END, got pc=%d halted=%v", c.PC, c.Halted)
	}
}

func TestAssembleErrors(t *testing.T) {
	tests := []struct {
		name string
		code string
		msg  string
	}{
		{"constant out of range", "@32768", "out of range"},
		{"unknown comp", "D=X", "unknown computation"},
		{"unknown dest", "X=D", "invalid destination"},
		{"repeated dest", "MM=D", "invalid destination"},
		{"empty dest", "=D", "empty destination"},
		{"unknown jump", "0;JXX", "unknown jump"},
		{"duplicate label", "(A1)\n(A1)", "duplicate label"},
		{"predefined label", "(SP)", "predefined"},
		{"bad symbol", "@a-b", "invalid symbol"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Assemble(tc.code)
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tc.msg) {
				t.Errorf("error %q does not mention %q", err, tc.msg)
			}
			if !strings.Contains(err.Error(), "line ") {
				t.Errorf("error %q has no line number", err)
			}
		})
	}
}

func TestVariableLimit(t *testing.T) {
	a := NewAssembler()
	a.VariableLimit = 18
	_, _, err := a.Assemble("@x\n@y\n@x\n@z\n")
	if err == nil {
		t.Fatal("expected variable allocation to fail")
	}
	if !strings.Contains(err.Error(), "'z' on line 4") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAssembleSourceMap(t *testing.T) {
	code := `
// Line 2: comment
@5         // Line 3
           // Line 4: empty
(LABEL)    // Line 5: label takes no slot
D=A        // Line 6
@LABEL     // Line 7
`
	_, sourceMap, err := Assemble(code)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	want := map[uint16]int{0: 3, 1: 6, 2: 7}
	if !reflect.DeepEqual(sourceMap, want) {
		t.Errorf("sourceMap = %v; want %v", sourceMap, want)
	}
}

func TestFormatAndParseHack(t *testing.T) {
	words := []uint16{0, 0x7FFF, 0xEA87, 0xAC10}
	text := Format(words)
	if !strings.HasPrefix(text, "0000000000000000\n0111111111111111\n") {
		t.Errorf("unexpected format: %q", text)
	}

	got, err := ParseHack(text + "\n\n")
	if err != nil {
		t.Fatalf("ParseHack: %v", err)
	}
	if !reflect.DeepEqual(got, words) {
		t.Errorf("ParseHack = %v; want %v", got, words)
	}

	for _, bad := range []string{"0101", "000000000000000x", "00000000000000000"} {
		if _, err := ParseHack(bad); err == nil {
			t.Errorf("ParseHack(%q): expected error", bad)
		}
	}
}

func TestMultiplyProgramRuns(t *testing.T) {
	words, _, err := Assemble(smallProgram)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	c := cpu.NewCPU()
	if err := c.Load(words); err != nil {
		t.Fatal(err)
	}
	c.RAM[0], c.RAM[1] = 6, 7
	c.Run(10000)
	if !c.Halted {
		t.Fatal("program did not halt")
	}
	if c.RAM[2] != 42 {
		t.Errorf("R2 = %d; want 42", c.RAM[2])
	}
}
