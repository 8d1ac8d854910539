// Package compiler translates Jack classes into VM commands: a Lexer, a
// two-scope SymbolTable and a recursive-descent Engine that emits through
// vm.Emitter.
package compiler
