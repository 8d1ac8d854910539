package main

import (
	"path/filepath"
	"testing"

	"hackc/pkg/asm"
	"hackc/pkg/compiler"
	"hackc/pkg/cpu"
	"hackc/pkg/jackos"
	"hackc/pkg/vm"
)

func TestCompilerAndCPU(t *testing.T) {
	// 1. Define Jack source
	source := `
class Main {
    function int fib(int n) {
        if (n = 0) { return 0; }
        if (n = 1) { return 1; }
        return Main.fib(n - 1) + Main.fib(n - 2);
    }

    function int main() {
        var int limit, result;
        let limit = 6;
        let result = Main.fib(limit);
        do Memory.poke(8000, result);
        return result;
    }
}
`

	// 2. Lex
	tokens, err := compiler.Lex(source)
	if err != nil {
		t.Fatalf("Lexing failed: %v", err)
	}

	// 3. Compile to VM commands
	var prog vm.Program
	engine := compiler.NewEngine(tokens, source, &prog)
	if err := engine.CompileClass(); err != nil {
		t.Fatalf("Compilation failed: %v", err)
	}
	t.Logf("Generated VM:\n%s", prog)

	// 4. Translate, bootstrap first, then Main and the runtime units
	tr := vm.NewTranslator()
	tr.WriteBootstrap()
	tr.SetUnit(engine.ClassName())
	if err := tr.WriteAll(prog); err != nil {
		t.Fatalf("Translation failed: %v", err)
	}
	for _, f := range jackos.Files() {
		var cmds []vm.Command
		if filepath.Ext(f.Path) == ".jack" {
			cmds, err = compiler.CompileClass(f.Source)
		} else {
			cmds, err = vm.Parse(f.Source)
		}
		if err != nil {
			t.Fatalf("runtime %s: %v", f.Path, err)
		}
		tr.SetUnit(f.Name)
		if err := tr.WriteAll(cmds); err != nil {
			t.Fatalf("runtime %s: %v", f.Path, err)
		}
	}

	// 5. Assemble
	machineCode, _, err := asm.Assemble(tr.String())
	if err != nil {
		t.Fatalf("Assembly failed: %v", err)
	}

	// 6. Instantiate CPU and load code
	c := cpu.NewCPU()
	if err := c.Load(machineCode); err != nil {
		t.Fatal(err)
	}

	// 7. Run until Sys.init parks in its halt loop
	c.Run(2_000_000)
	if !c.Halted {
		t.Fatalf("program did not halt (pc=%d)", c.PC)
	}
	if c.Fault != nil {
		t.Fatalf("cpu fault: %v", c.Fault)
	}

	// 8. Assertions: the 6th Fibonacci number is 8
	if c.RAM[8000] != 8 {
		t.Errorf("Expected RAM[8000] = 8, got %d", c.RAM[8000])
	}
	if c.RAM[jackos.ResultAddress] != 8 {
		t.Errorf("Expected result 8, got %d", c.RAM[jackos.ResultAddress])
	}
	if c.RAM[0] != 261 {
		t.Errorf("Expected SP to rest at 261 inside Sys.init, got %d", c.RAM[0])
	}
}
