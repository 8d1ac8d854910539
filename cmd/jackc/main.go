package main

import (
	"flag"
	"fmt"
	"os"

	"hackc/pkg/compiler"
	"hackc/pkg/utils"
	"hackc/pkg/vm"
)

const testSource = `class Main {
    function int main() {
        var int x;
        let x = 2 + 3;
        return x;
    }
}
`

func main() {
	showTokens := flag.Bool("tokens", true, "print the token stream")
	showSymbols := flag.Bool("symbols", true, "print each subroutine's symbol table")
	showAsm := flag.Bool("asm", true, "print the translated assembly")
	flag.Parse()

	src := testSource
	unit := "Main"
	if flag.NArg() > 0 {
		data, err := os.ReadFile(flag.Arg(0))
		if err != nil {
			fmt.Fprintln(os.Stderr, "read error:", err)
			os.Exit(1)
		}
		src = string(data)
		unit = utils.BaseName(flag.Arg(0))
	}

	// Lex
	tokens, err := compiler.Lex(src)
	if err != nil {
		fmt.Fprintln(os.Stderr, "lex error:", err)
		os.Exit(1)
	}
	if *showTokens {
		fmt.Printf("Tokens (%d)\n", len(tokens))
		for _, tok := range tokens {
			fmt.Println(" ", tok)
		}
		fmt.Println()
	}

	// Compile
	var prog vm.Program
	engine := compiler.NewEngine(tokens, src, &prog)
	if *showSymbols {
		engine.SubroutineHook = func(name string, symbols *compiler.SymbolTable) {
			fmt.Printf("Symbols after %s\n%s\n", name, symbols)
		}
	}
	if err := engine.CompileClass(); err != nil {
		fmt.Fprintln(os.Stderr, "compile error:", err)
		os.Exit(1)
	}

	fmt.Println("Generated VM")
	fmt.Print(prog)
	fmt.Println()

	// Translate
	if *showAsm {
		asm, err := vm.Translate(unit, prog, vm.WithComments())
		if err != nil {
			fmt.Fprintln(os.Stderr, "translate error:", err)
			os.Exit(1)
		}
		fmt.Println("Generated Assembly")
		fmt.Print(asm)
	}
}
