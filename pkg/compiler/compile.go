package compiler

import "hackc/pkg/vm"

// Compile lexes and compiles one class, streaming commands to out. On error
// out may hold a partial program.
func Compile(src string, out vm.Emitter) (*Engine, error) {
	tokens, err := Lex(src)
	if err != nil {
		return nil, err
	}
	e := NewEngine(tokens, src, out)
	return e, e.CompileClass()
}

// CompileClass compiles one class into an in-memory program.
func CompileClass(src string) (vm.Program, error) {
	var prog vm.Program
	if _, err := Compile(src, &prog); err != nil {
		return nil, err
	}
	return prog, nil
}
