package compiler

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// keywords is the reserved word set of the language.
var keywords = map[string]bool{
	"class":       true,
	"constructor": true,
	"function":    true,
	"method":      true,
	"field":       true,
	"static":      true,
	"var":         true,
	"int":         true,
	"char":        true,
	"boolean":     true,
	"void":        true,
	"true":        true,
	"false":       true,
	"null":        true,
	"this":        true,
	"let":         true,
	"do":          true,
	"if":          true,
	"else":        true,
	"while":       true,
	"return":      true,
}

const symbols = "{}()[].,;+-*/&|<>=~^#"

// maxIntConst is the largest integer literal the language accepts.
const maxIntConst = 32767

func isSymbol(r rune) bool {
	return strings.ContainsRune(symbols, r)
}

// Lexer holds all mutable state for a single scanning pass over src.
type Lexer struct {
	src  []rune
	pos  int // index of the next rune to consume
	line int // current 1-based source line
}

func newLexer(src string) *Lexer {
	return &Lexer{src: []rune(src), pos: 0, line: 1}
}

// peek returns the rune at the current position without advancing.
func (l *Lexer) peek() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

// peek2 returns the rune one position ahead of the current position.
func (l *Lexer) peek2() rune {
	if l.pos+1 >= len(l.src) {
		return 0
	}
	return l.src[l.pos+1]
}

// advance consumes one rune and returns it.
func (l *Lexer) advance() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	r := l.src[l.pos]
	l.pos++
	if r == '\n' {
		l.line++
	}
	return r
}

func (l *Lexer) atEnd() bool {
	return l.pos >= len(l.src)
}

// skipLineComment discards everything from the current position to end-of-line.
// The opening "//" must already have been consumed.
func (l *Lexer) skipLineComment() {
	for !l.atEnd() && l.peek() != '\n' {
		l.advance()
	}
}

// skipBlockComment discards everything up to and including the closing "*/".
// The opening "/*" must already have been consumed.
func (l *Lexer) skipBlockComment() error {
	startLine := l.line
	for !l.atEnd() {
		if l.peek() == '*' && l.peek2() == '/' {
			l.advance() // *
			l.advance() // /
			return nil
		}
		l.advance()
	}
	return fmt.Errorf("unterminated block comment (opened on line %d)", startLine)
}

// skipTrivia consumes whitespace and comments.
func (l *Lexer) skipTrivia() error {
	for !l.atEnd() {
		r := l.peek()
		switch {
		case unicode.IsSpace(r):
			l.advance()
		case r == '/' && l.peek2() == '/':
			l.advance()
			l.advance()
			l.skipLineComment()
		case r == '/' && l.peek2() == '*':
			l.advance()
			l.advance()
			if err := l.skipBlockComment(); err != nil {
				return err
			}
		default:
			return nil
		}
	}
	return nil
}

// scanString collects the text between double quotes on one line. The
// opening quote must still be at l.peek().
func (l *Lexer) scanString() (Token, error) {
	line := l.line
	l.advance() // opening "
	var sb strings.Builder
	for {
		if l.atEnd() {
			return Token{}, fmt.Errorf("unterminated string constant on line %d", line)
		}
		r := l.advance()
		switch r {
		case '"':
			return Token{Type: STRING_CONST, Lexeme: sb.String(), Line: line}, nil
		case '\n':
			return Token{}, fmt.Errorf("newline in string constant on line %d", line)
		}
		sb.WriteRune(r)
	}
}

// scanWord collects a maximal run of characters that are not whitespace,
// symbols or quotes, then classifies it.
func (l *Lexer) scanWord() Token {
	line := l.line
	start := l.pos
	for !l.atEnd() {
		r := l.peek()
		if unicode.IsSpace(r) || isSymbol(r) || r == '"' {
			break
		}
		l.advance()
	}
	word := string(l.src[start:l.pos])
	return Token{Type: classifyWord(word), Lexeme: word, Line: line}
}

func classifyWord(word string) TokenType {
	if keywords[word] {
		return KEYWORD
	}
	if isDigits(word) {
		if n, err := strconv.Atoi(word); err == nil && n <= maxIntConst {
			return INT_CONST
		}
	}
	return IDENTIFIER
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func (l *Lexer) nextToken() (Token, error) {
	if err := l.skipTrivia(); err != nil {
		return Token{}, err
	}
	if l.atEnd() {
		return Token{Type: EOF, Line: l.line}, nil
	}

	r := l.peek()
	switch {
	case r == '"':
		return l.scanString()
	case isSymbol(r):
		line := l.line
		l.advance()
		return Token{Type: SYMBOL, Lexeme: string(r), Line: line}, nil
	}
	return l.scanWord(), nil
}

// Lex tokenises src and returns all tokens including the final EOF token.
// It fails on an unterminated comment or string constant.
func Lex(src string) ([]Token, error) {
	l := newLexer(src)
	var tokens []Token
	for {
		tok, err := l.nextToken()
		if err != nil {
			return tokens, err
		}
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens, nil
		}
	}
}
