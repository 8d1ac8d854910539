package compiler_test

import (
	"fmt"
	"testing"

	"hackc/pkg/build"
	"hackc/pkg/cpu"
	"hackc/pkg/jackos"
)

const maxSteps = 5_000_000

// runJack compiles the given classes together with the runtime, runs the
// program until Sys.init halts and returns the machine.
func runJack(t *testing.T, classes ...string) *cpu.CPU {
	t.Helper()
	var srcs []build.Source
	for i, text := range classes {
		srcs = append(srcs, build.Source{Path: fmt.Sprintf("Class%d.jack", i), Text: text})
	}
	img, err := build.BuildImage(srcs, build.Options{Bootstrap: build.BootstrapAuto, Runtime: true})
	if err != nil {
		t.Fatalf("BuildImage failed: %v", err)
	}
	c := cpu.NewCPU()
	if err := c.Load(img.Words); err != nil {
		t.Fatal(err)
	}
	c.Run(maxSteps)
	if !c.Halted {
		t.Fatalf("program did not halt within %d steps (pc=%d)", maxSteps, c.PC)
	}
	if c.Fault != nil {
		t.Fatalf("cpu fault: %v", c.Fault)
	}
	return c
}

// runMain wraps body in a Main.main returning int and returns its result.
func runMain(t *testing.T, body string, extra ...string) int16 {
	t.Helper()
	src := "class Main {\n    function int main() {\n" + body + "\n    }\n}"
	c := runJack(t, append([]string{src}, extra...)...)
	return int16(c.RAM[jackos.ResultAddress])
}

func TestMethodCall_E2E(t *testing.T) {
	c := runJack(t, `
class Main {
    function int main() {
        var Main m;
        let m = Main.new();
        return m.f();
    }

    constructor Main new() {
        return this;
    }

    method int f() {
        var int x;
        let x = 2 + 3;
        return x;
    }
}`)
	if got := c.RAM[jackos.ResultAddress]; got != 5 {
		t.Errorf("expected 5, got %d", got)
	}
}

func TestArithmetic_E2E(t *testing.T) {
	tests := []struct {
		expr     string
		expected int16
	}{
		{"2 + 3", 5},
		{"2 + 3 * 4", 20},
		{"2 + (3 * 4)", 14},
		{"6 * 7", 42},
		{"-6 * 7", -42},
		{"-6 * -7", 42},
		{"100 / 7", 14},
		{"-100 / 7", -14},
		{"100 / -7", -14},
		{"1 - 5", -4},
		{"~0", -1},
		{"^3", 6},
		{"#(-8)", -4},
		{"#16", 8},
		{"12 & 10", 8},
		{"12 | 10", 14},
		{"Math.abs(-9)", 9},
		{"Math.max(3, 11)", 11},
		{"Math.min(3, 11)", 3},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got := runMain(t, "return "+tt.expr+";")
			if got != tt.expected {
				t.Errorf("%s: expected %d, got %d", tt.expr, tt.expected, got)
			}
		})
	}
}

func TestComparisons_E2E(t *testing.T) {
	tests := []struct {
		expr     string
		expected int16
	}{
		{"3 < 4", -1},
		{"4 < 3", 0},
		{"3 > 4", 0},
		{"-1 > -2", -1},
		{"32767 > -32767", -1},
		{"-32767 < 32767", -1},
		{"5 = 5", -1},
		{"true & false", 0},
		{"true | false", -1},
		{"~(1 = 2)", -1},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got := runMain(t, "return "+tt.expr+";")
			if got != tt.expected {
				t.Errorf("%s: expected %d, got %d", tt.expr, tt.expected, got)
			}
		})
	}
}

func TestControlFlow_E2E(t *testing.T) {
	got := runMain(t, `
        var int i, sum;
        while (i < 10) {
            if ((i & 1) = 0) {
                let sum = sum + i;
            } else {
                let sum = sum - 1;
            }
            let i = i + 1;
        }
        return sum;`)
	// 0+2+4+6+8 - 5
	if got != 15 {
		t.Errorf("expected 15, got %d", got)
	}
}

func TestArrays_E2E(t *testing.T) {
	got := runMain(t, `
        var Array a;
        var int i, sum;
        let a = Array.new(10);
        while (i < 10) {
            let a[i] = i * i;
            let i = i + 1;
        }
        let i = 0;
        while (i < 10) {
            let sum = sum + a[i];
            let i = i + 1;
        }
        let a[a[2]] = 7;
        return sum + a[4];`)
	// 285 + 7
	if got != 292 {
		t.Errorf("expected 292, got %d", got)
	}
}

func TestStrings_E2E(t *testing.T) {
	got := runMain(t, `
        var String s;
        let s = "Hello";
        do s.appendChar(33);
        return (s.length() * 1000) + s.charAt(1);`)
	// String.new reserves exactly the literal's length, so '!' is dropped.
	if got != 5101 {
		t.Errorf("expected 5101, got %d", got)
	}
}

func TestRecursion_E2E(t *testing.T) {
	c := runJack(t, `
class Main {
    function int main() {
        return Main.fib(12);
    }
    function int fib(int n) {
        if (n < 2) {
            return n;
        }
        return Main.fib(n - 1) + Main.fib(n - 2);
    }
}`)
	if got := c.RAM[jackos.ResultAddress]; got != 144 {
		t.Errorf("fib(12): expected 144, got %d", got)
	}
}

func TestObjectsAcrossClasses_E2E(t *testing.T) {
	c := runJack(t, `
class Main {
    function int main() {
        var Counter a, b;
        let a = Counter.new(10);
        let b = Counter.new(20);
        do a.bump();
        do a.bump();
        do b.bump();
        return (a.get() + b.get()) + Counter.created();
    }
}`, `
class Counter {
    static int created;
    field int value;

    constructor Counter new(int start) {
        let value = start;
        let created = created + 1;
        return this;
    }

    method void bump() {
        let value = value + 1;
        return;
    }

    method int get() {
        return value;
    }

    function int created() {
        return created;
    }
}`)
	// 12 + 21 + 2
	if got := c.RAM[jackos.ResultAddress]; got != 35 {
		t.Errorf("expected 35, got %d", got)
	}
}

func TestSysError_E2E(t *testing.T) {
	c := runJack(t, `
class Main {
    function int main() {
        return 1 / 0;
    }
}`)
	if got := c.RAM[jackos.ErrorAddress]; got != 3 {
		t.Errorf("expected error code 3, got %d", got)
	}
}

func TestDeterministicOutput_E2E(t *testing.T) {
	src := []build.Source{{Path: "Main.jack", Text: `
class Main {
    function int main() {
        var int i;
        while (i < 3) { if (i = 1) { let i = i + 2; } else { let i = i + 1; } }
        return i;
    }
}`}}
	opts := build.Options{Runtime: true}
	first, err := build.BuildImage(src, opts)
	if err != nil {
		t.Fatal(err)
	}
	second, err := build.BuildImage(src, opts)
	if err != nil {
		t.Fatal(err)
	}
	if first.Assembly != second.Assembly {
		t.Error("two builds of the same source produced different assembly")
	}
}
