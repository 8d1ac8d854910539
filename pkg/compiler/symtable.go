package compiler

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"hackc/pkg/vm"
)

// ErrUndeclared is returned when a name is in neither scope.
var ErrUndeclared = errors.New("undeclared identifier")

// Kind is the storage kind of a declared name.
type Kind int

const (
	KindNone Kind = iota
	KindStatic
	KindField
	KindArg
	KindVar
)

var kindNames = [...]string{
	KindNone:   "none",
	KindStatic: "static",
	KindField:  "field",
	KindArg:    "arg",
	KindVar:    "var",
}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Segment is the VM segment holding variables of this kind.
func (k Kind) Segment() vm.Segment {
	switch k {
	case KindStatic:
		return vm.Static
	case KindField:
		return vm.This
	case KindArg:
		return vm.Argument
	case KindVar:
		return vm.Local
	}
	return ""
}

func (k Kind) classScope() bool {
	return k == KindStatic || k == KindField
}

type Symbol struct {
	Name  string
	Type  string
	Kind  Kind
	Index int
}

// SymbolTable has exactly two flat scopes: the class (static, field) and the
// current subroutine (arg, var). The subroutine scope shadows the class.
type SymbolTable struct {
	class      map[string]Symbol
	subroutine map[string]Symbol
	counts     map[Kind]int
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		class:      make(map[string]Symbol),
		subroutine: make(map[string]Symbol),
		counts:     make(map[Kind]int),
	}
}

// StartSubroutine clears the subroutine scope and resets the arg and var
// counters. The class scope is untouched.
func (s *SymbolTable) StartSubroutine() {
	s.subroutine = make(map[string]Symbol)
	s.counts[KindArg] = 0
	s.counts[KindVar] = 0
}

// Define adds name to the scope its kind belongs to with the next index of
// that kind. Redefinition overwrites the earlier entry.
func (s *SymbolTable) Define(name, typ string, kind Kind) Symbol {
	sym := Symbol{Name: name, Type: typ, Kind: kind, Index: s.counts[kind]}
	s.counts[kind]++
	if kind.classScope() {
		s.class[name] = sym
	} else {
		s.subroutine[name] = sym
	}
	return sym
}

// Lookup resolves name in the subroutine scope first, then the class scope.
func (s *SymbolTable) Lookup(name string) (Symbol, bool) {
	if sym, ok := s.subroutine[name]; ok {
		return sym, true
	}
	sym, ok := s.class[name]
	return sym, ok
}

func (s *SymbolTable) resolve(name string) (Symbol, error) {
	sym, ok := s.Lookup(name)
	if !ok {
		return Symbol{}, fmt.Errorf("%w %q", ErrUndeclared, name)
	}
	return sym, nil
}

func (s *SymbolTable) KindOf(name string) (Kind, error) {
	sym, err := s.resolve(name)
	return sym.Kind, err
}

func (s *SymbolTable) TypeOf(name string) (string, error) {
	sym, err := s.resolve(name)
	return sym.Type, err
}

func (s *SymbolTable) IndexOf(name string) (int, error) {
	sym, err := s.resolve(name)
	return sym.Index, err
}

// VarCount is the number of names of kind defined in the active scope.
func (s *SymbolTable) VarCount(kind Kind) int {
	return s.counts[kind]
}

func (s *SymbolTable) String() string {
	var sb strings.Builder
	writeScope(&sb, "Class", s.class)
	writeScope(&sb, "Subroutine", s.subroutine)
	return sb.String()
}

func writeScope(sb *strings.Builder, title string, scope map[string]Symbol) {
	if len(scope) == 0 {
		fmt.Fprintf(sb, "%s: (empty)\n", title)
		return
	}
	fmt.Fprintf(sb, "%s:\n", title)
	names := make([]string, 0, len(scope))
	for name := range scope {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sym := scope[name]
		fmt.Fprintf(sb, "  %-20s  %-6s %d  (Type: %s)\n", name, sym.Kind, sym.Index, sym.Type)
	}
}
