package compiler

import "fmt"

// TokenType identifies the category of a lexed token.
type TokenType int

const (
	EOF TokenType = iota // sentinel: end of input

	KEYWORD      // class, method, let, ...
	SYMBOL       // single character: { } ( ) [ ] . , ; + - * / & | < > = ~ ^ #
	INT_CONST    // decimal integer literal 0..32767
	STRING_CONST // string literal, quotes stripped
	IDENTIFIER   // anything else
)

var tokenNames = [...]string{
	EOF:          "EOF",
	KEYWORD:      "KEYWORD",
	SYMBOL:       "SYMBOL",
	INT_CONST:    "INT_CONST",
	STRING_CONST: "STRING_CONST",
	IDENTIFIER:   "IDENTIFIER",
}

func (tt TokenType) String() string {
	if int(tt) >= 0 && int(tt) < len(tokenNames) {
		return tokenNames[tt]
	}
	return fmt.Sprintf("TokenType(%d)", int(tt))
}

// Token is a single lexical unit produced by the Lexer.
type Token struct {
	Type   TokenType
	Lexeme string // source text; string constants without their quotes
	Line   int    // 1-based source line
}

func (t Token) String() string {
	return fmt.Sprintf("%-12s %-14q  line %d", t.Type, t.Lexeme, t.Line)
}

// Is reports whether t is the keyword or symbol spelled lexeme.
func (t Token) Is(lexeme string) bool {
	return (t.Type == KEYWORD || t.Type == SYMBOL) && t.Lexeme == lexeme
}
