package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"hackc/pkg/vm"
)

// binaryOps maps an infix operator to the commands that apply it.
var binaryOps = map[string]vm.Command{
	"+": vm.Arithmetic(vm.Add),
	"-": vm.Arithmetic(vm.Sub),
	"*": vm.Call("Math.multiply", 2),
	"/": vm.Call("Math.divide", 2),
	"&": vm.Arithmetic(vm.And),
	"|": vm.Arithmetic(vm.Or),
	"<": vm.Arithmetic(vm.Lt),
	">": vm.Arithmetic(vm.Gt),
	"=": vm.Arithmetic(vm.Eq),
}

var unaryOps = map[string]vm.Op{
	"-": vm.Neg,
	"~": vm.Not,
	"^": vm.ShiftLeft,
	"#": vm.ShiftRight,
}

// Engine is a recursive-descent compiler for one class. It reads the token
// slice with one token of lookahead and emits VM commands as it goes.
//
// Grammar:
//
//	class          = "class" className "{" classVarDec* subroutineDec* "}"
//	classVarDec    = ("static" | "field") type varName ("," varName)* ";"
//	subroutineDec  = ("constructor" | "function" | "method") ("void" | type)
//	                 subroutineName "(" parameterList ")" subroutineBody
//	subroutineBody = "{" varDec* statements "}"
//	statement      = let | if | while | do | return
//	expression     = term (op term)*        applied strictly left to right
//	term           = intConst | stringConst | keywordConst | varName
//	               | varName "[" expression "]" | subroutineCall
//	               | "(" expression ")" | unaryOp term
type Engine struct {
	tokens      []Token
	pos         int
	sourceLines []string
	out         vm.Emitter

	symbols   *SymbolTable
	className string
	labels    int

	// SubroutineHook, if set, is called after each subroutine is compiled
	// with its fully qualified name and the symbol table still holding its
	// scope.
	SubroutineHook func(name string, symbols *SymbolTable)
}

func NewEngine(tokens []Token, src string, out vm.Emitter) *Engine {
	return &Engine{
		tokens:      tokens,
		sourceLines: strings.Split(src, "\n"),
		out:         out,
		symbols:     NewSymbolTable(),
	}
}

// ClassName is the name of the class compiled so far.
func (e *Engine) ClassName() string {
	return e.className
}

// errorf formats an error prefixed with the token's line and followed by
// the offending source line. %w verbs are preserved.
func (e *Engine) errorf(tok Token, format string, args ...any) error {
	lineIdx := tok.Line - 1
	snippet := "<source unavailable>"
	if lineIdx >= 0 && lineIdx < len(e.sourceLines) {
		snippet = strings.TrimSpace(e.sourceLines[lineIdx])
	}
	args = append([]any{tok.Line}, args...)
	args = append(args, snippet)
	return fmt.Errorf("line %d: "+format+"\n  |> %s", args...)
}

func (e *Engine) emit(c vm.Command) {
	e.out.Emit(c)
}

// peek returns the current token without consuming it.
func (e *Engine) peek() Token {
	if e.pos >= len(e.tokens) {
		return Token{Type: EOF}
	}
	return e.tokens[e.pos]
}

// advance consumes and returns the current token.
func (e *Engine) advance() Token {
	tok := e.peek()
	if e.pos < len(e.tokens) {
		e.pos++
	}
	return tok
}

// expect consumes the current token if it is the keyword or symbol lexeme.
func (e *Engine) expect(lexeme string) (Token, error) {
	tok := e.advance()
	if !tok.Is(lexeme) {
		return tok, e.errorf(tok, "expected %q, got %s (%q)", lexeme, tok.Type, tok.Lexeme)
	}
	return tok, nil
}

func (e *Engine) expectIdentifier() (Token, error) {
	tok := e.advance()
	if tok.Type != IDENTIFIER {
		return tok, e.errorf(tok, "expected identifier, got %s (%q)", tok.Type, tok.Lexeme)
	}
	return tok, nil
}

// expectType consumes int, char, boolean, a class name, or void when allowed.
func (e *Engine) expectType(allowVoid bool) (string, error) {
	tok := e.advance()
	switch {
	case tok.Type == IDENTIFIER:
		return tok.Lexeme, nil
	case tok.Is("int"), tok.Is("char"), tok.Is("boolean"):
		return tok.Lexeme, nil
	case allowVoid && tok.Is("void"):
		return tok.Lexeme, nil
	}
	return "", e.errorf(tok, "expected type, got %s (%q)", tok.Type, tok.Lexeme)
}

func (e *Engine) newLabels(a, b string) (string, string) {
	n := e.labels
	e.labels++
	return a + strconv.Itoa(n), b + strconv.Itoa(n)
}

func (e *Engine) lookup(tok Token) (Symbol, error) {
	sym, ok := e.symbols.Lookup(tok.Lexeme)
	if !ok {
		return Symbol{}, e.errorf(tok, "%w %q", ErrUndeclared, tok.Lexeme)
	}
	return sym, nil
}

func (e *Engine) pushSymbol(sym Symbol) {
	e.emit(vm.Push(sym.Kind.Segment(), sym.Index))
}

// CompileClass compiles the whole token stream, which must hold exactly one
// class followed by EOF.
func (e *Engine) CompileClass() error {
	if _, err := e.expect("class"); err != nil {
		return err
	}
	name, err := e.expectIdentifier()
	if err != nil {
		return err
	}
	e.className = name.Lexeme
	if _, err := e.expect("{"); err != nil {
		return err
	}

	for e.peek().Is("static") || e.peek().Is("field") {
		if err := e.compileClassVarDec(); err != nil {
			return err
		}
	}
	for e.peek().Is("constructor") || e.peek().Is("function") || e.peek().Is("method") {
		if err := e.compileSubroutine(); err != nil {
			return err
		}
	}

	if _, err := e.expect("}"); err != nil {
		return err
	}
	if tok := e.peek(); tok.Type != EOF {
		return e.errorf(tok, "unexpected %s (%q) after class body", tok.Type, tok.Lexeme)
	}
	return nil
}

func (e *Engine) compileClassVarDec() error {
	kind := KindField
	if e.advance().Lexeme == "static" {
		kind = KindStatic
	}
	return e.compileNameList(kind)
}

// compileNameList handles "type varName (, varName)* ;".
func (e *Engine) compileNameList(kind Kind) error {
	typ, err := e.expectType(false)
	if err != nil {
		return err
	}
	for {
		name, err := e.expectIdentifier()
		if err != nil {
			return err
		}
		e.symbols.Define(name.Lexeme, typ, kind)
		if !e.peek().Is(",") {
			break
		}
		e.advance()
	}
	_, err = e.expect(";")
	return err
}

func (e *Engine) compileSubroutine() error {
	kindTok := e.advance()
	if _, err := e.expectType(true); err != nil {
		return err
	}
	name, err := e.expectIdentifier()
	if err != nil {
		return err
	}

	e.symbols.StartSubroutine()
	if kindTok.Lexeme == "method" {
		e.symbols.Define("this", e.className, KindArg)
	}

	if _, err := e.expect("("); err != nil {
		return err
	}
	if err := e.compileParameterList(); err != nil {
		return err
	}
	if _, err := e.expect(")"); err != nil {
		return err
	}

	fullName := e.className + "." + name.Lexeme
	if err := e.compileSubroutineBody(kindTok.Lexeme, fullName); err != nil {
		return err
	}
	if e.SubroutineHook != nil {
		e.SubroutineHook(fullName, e.symbols)
	}
	return nil
}

func (e *Engine) compileParameterList() error {
	if e.peek().Is(")") {
		return nil
	}
	for {
		typ, err := e.expectType(false)
		if err != nil {
			return err
		}
		name, err := e.expectIdentifier()
		if err != nil {
			return err
		}
		e.symbols.Define(name.Lexeme, typ, KindArg)
		if !e.peek().Is(",") {
			return nil
		}
		e.advance()
	}
}

func (e *Engine) compileSubroutineBody(kind, fullName string) error {
	if _, err := e.expect("{"); err != nil {
		return err
	}
	for e.peek().Is("var") {
		e.advance()
		if err := e.compileNameList(KindVar); err != nil {
			return err
		}
	}

	e.emit(vm.Function(fullName, e.symbols.VarCount(KindVar)))
	switch kind {
	case "constructor":
		e.emit(vm.Push(vm.Constant, e.symbols.VarCount(KindField)))
		e.emit(vm.Call("Memory.alloc", 1))
		e.emit(vm.Pop(vm.Pointer, 0))
	case "method":
		e.emit(vm.Push(vm.Argument, 0))
		e.emit(vm.Pop(vm.Pointer, 0))
	}

	if err := e.compileStatements(); err != nil {
		return err
	}
	_, err := e.expect("}")
	return err
}

func (e *Engine) compileStatements() error {
	for {
		tok := e.peek()
		if tok.Type != KEYWORD {
			return nil
		}
		var err error
		switch tok.Lexeme {
		case "let":
			err = e.compileLet()
		case "if":
			err = e.compileIf()
		case "while":
			err = e.compileWhile()
		case "do":
			err = e.compileDo()
		case "return":
			err = e.compileReturn()
		default:
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (e *Engine) compileLet() error {
	e.advance() // let
	nameTok, err := e.expectIdentifier()
	if err != nil {
		return err
	}
	sym, err := e.lookup(nameTok)
	if err != nil {
		return err
	}

	indexed := e.peek().Is("[")
	if indexed {
		e.advance()
		e.pushSymbol(sym)
		if err := e.compileExpression(); err != nil {
			return err
		}
		if _, err := e.expect("]"); err != nil {
			return err
		}
		e.emit(vm.Arithmetic(vm.Add))
	}

	if _, err := e.expect("="); err != nil {
		return err
	}
	if err := e.compileExpression(); err != nil {
		return err
	}
	if _, err := e.expect(";"); err != nil {
		return err
	}

	if !indexed {
		e.emit(vm.Pop(sym.Kind.Segment(), sym.Index))
		return nil
	}
	// The value sits above the address; park it while THAT is set.
	e.emit(vm.Pop(vm.Temp, 0))
	e.emit(vm.Pop(vm.Pointer, 1))
	e.emit(vm.Push(vm.Temp, 0))
	e.emit(vm.Pop(vm.That, 0))
	return nil
}

// compileCondition handles "( expression )" and negates the result.
func (e *Engine) compileCondition() error {
	if _, err := e.expect("("); err != nil {
		return err
	}
	if err := e.compileExpression(); err != nil {
		return err
	}
	if _, err := e.expect(")"); err != nil {
		return err
	}
	e.emit(vm.Arithmetic(vm.Not))
	return nil
}

// compileBlock handles "{ statements }".
func (e *Engine) compileBlock() error {
	if _, err := e.expect("{"); err != nil {
		return err
	}
	if err := e.compileStatements(); err != nil {
		return err
	}
	_, err := e.expect("}")
	return err
}

func (e *Engine) compileIf() error {
	e.advance() // if
	falseLabel, endLabel := e.newLabels("IF_FALSE", "IF_END")

	if err := e.compileCondition(); err != nil {
		return err
	}
	e.emit(vm.IfGoto(falseLabel))
	if err := e.compileBlock(); err != nil {
		return err
	}
	e.emit(vm.Goto(endLabel))
	e.emit(vm.Label(falseLabel))
	if e.peek().Is("else") {
		e.advance()
		if err := e.compileBlock(); err != nil {
			return err
		}
	}
	e.emit(vm.Label(endLabel))
	return nil
}

func (e *Engine) compileWhile() error {
	e.advance() // while
	topLabel, endLabel := e.newLabels("WHILE_EXP", "WHILE_END")

	e.emit(vm.Label(topLabel))
	if err := e.compileCondition(); err != nil {
		return err
	}
	e.emit(vm.IfGoto(endLabel))
	if err := e.compileBlock(); err != nil {
		return err
	}
	e.emit(vm.Goto(topLabel))
	e.emit(vm.Label(endLabel))
	return nil
}

func (e *Engine) compileDo() error {
	e.advance() // do
	nameTok, err := e.expectIdentifier()
	if err != nil {
		return err
	}
	if err := e.compileSubroutineCall(nameTok); err != nil {
		return err
	}
	if _, err := e.expect(";"); err != nil {
		return err
	}
	e.emit(vm.Pop(vm.Temp, 0))
	return nil
}

func (e *Engine) compileReturn() error {
	e.advance() // return
	if e.peek().Is(";") {
		e.emit(vm.Push(vm.Constant, 0))
	} else if err := e.compileExpression(); err != nil {
		return err
	}
	if _, err := e.expect(";"); err != nil {
		return err
	}
	e.emit(vm.Return())
	return nil
}

func (e *Engine) compileExpression() error {
	if err := e.compileTerm(); err != nil {
		return err
	}
	for {
		tok := e.peek()
		if tok.Type != SYMBOL {
			return nil
		}
		cmd, ok := binaryOps[tok.Lexeme]
		if !ok {
			return nil
		}
		e.advance()
		if err := e.compileTerm(); err != nil {
			return err
		}
		e.emit(cmd)
	}
}

func (e *Engine) compileTerm() error {
	tok := e.advance()
	switch tok.Type {
	case INT_CONST:
		n, _ := strconv.Atoi(tok.Lexeme)
		e.emit(vm.Push(vm.Constant, n))
		return nil

	case STRING_CONST:
		return e.compileString(tok)

	case KEYWORD:
		switch tok.Lexeme {
		case "true":
			e.emit(vm.Push(vm.Constant, 0))
			e.emit(vm.Arithmetic(vm.Not))
		case "false", "null":
			e.emit(vm.Push(vm.Constant, 0))
		case "this":
			e.emit(vm.Push(vm.Pointer, 0))
		default:
			return e.errorf(tok, "unexpected keyword %q in expression", tok.Lexeme)
		}
		return nil

	case SYMBOL:
		if tok.Lexeme == "(" {
			if err := e.compileExpression(); err != nil {
				return err
			}
			_, err := e.expect(")")
			return err
		}
		if op, ok := unaryOps[tok.Lexeme]; ok {
			if err := e.compileTerm(); err != nil {
				return err
			}
			e.emit(vm.Arithmetic(op))
			return nil
		}

	case IDENTIFIER:
		next := e.peek()
		if next.Is("(") || next.Is(".") {
			return e.compileSubroutineCall(tok)
		}
		sym, err := e.lookup(tok)
		if err != nil {
			return err
		}
		e.pushSymbol(sym)
		if !next.Is("[") {
			return nil
		}
		e.advance()
		if err := e.compileExpression(); err != nil {
			return err
		}
		if _, err := e.expect("]"); err != nil {
			return err
		}
		e.emit(vm.Arithmetic(vm.Add))
		e.emit(vm.Pop(vm.Pointer, 1))
		e.emit(vm.Push(vm.That, 0))
		return nil
	}

	return e.errorf(tok, "unexpected %s (%q) in expression", tok.Type, tok.Lexeme)
}

func (e *Engine) compileString(tok Token) error {
	runes := []rune(tok.Lexeme)
	e.emit(vm.Push(vm.Constant, len(runes)))
	e.emit(vm.Call("String.new", 1))
	for _, r := range runes {
		if r > maxIntConst {
			return e.errorf(tok, "character %q out of range in string constant", r)
		}
		e.emit(vm.Push(vm.Constant, int(r)))
		e.emit(vm.Call("String.appendChar", 2))
	}
	return nil
}

// compileSubroutineCall compiles a call whose first identifier has already
// been consumed.
func (e *Engine) compileSubroutineCall(first Token) error {
	var target string
	receiver := false

	if e.peek().Is(".") {
		e.advance()
		method, err := e.expectIdentifier()
		if err != nil {
			return err
		}
		if sym, ok := e.symbols.Lookup(first.Lexeme); ok {
			e.pushSymbol(sym)
			target = sym.Type + "." + method.Lexeme
			receiver = true
		} else {
			target = first.Lexeme + "." + method.Lexeme
		}
	} else {
		e.emit(vm.Push(vm.Pointer, 0))
		target = e.className + "." + first.Lexeme
		receiver = true
	}

	if _, err := e.expect("("); err != nil {
		return err
	}
	n, err := e.compileExpressionList()
	if err != nil {
		return err
	}
	if _, err := e.expect(")"); err != nil {
		return err
	}
	if receiver {
		n++
	}
	e.emit(vm.Call(target, n))
	return nil
}

func (e *Engine) compileExpressionList() (int, error) {
	if e.peek().Is(")") {
		return 0, nil
	}
	n := 0
	for {
		if err := e.compileExpression(); err != nil {
			return n, err
		}
		n++
		if !e.peek().Is(",") {
			return n, nil
		}
		e.advance()
	}
}
