package ir

import "slices"

// Symbol is a named entity. A symbol's parent is the DefExpr that
// introduces it; builtin symbols have no parent.
type Symbol interface {
	Node
	Name() string
	SetName(string)
	symbolNode()
}

type symbol struct {
	node
	name string
}

func (s *symbol) Name() string     { return s.name }
func (s *symbol) SetName(n string) { s.name = n }
func (s *symbol) symbolNode()      {}

// DefOf returns the definition of s, or nil for builtin and detached
// symbols.
func DefOf(s Symbol) *DefExpr {
	d, _ := s.Parent().(*DefExpr)
	return d
}

type ModuleSymbol struct {
	symbol
	Block *BlockStmt
}

func NewModule(name string) *ModuleSymbol {
	m := &ModuleSymbol{}
	m.name = name
	m.Block = adopt(m, NewBlock())
	return m
}

// Functions returns the functions defined at the top level of the module.
func (m *ModuleSymbol) Functions() []*FnSymbol {
	var fns []*FnSymbol
	for _, stmt := range m.Block.Body {
		if d, ok := stmt.(*DefExpr); ok {
			if fn, ok := d.Sym.(*FnSymbol); ok {
				fns = append(fns, fn)
			}
		}
	}
	return fns
}

// Lookup returns the top-level symbol with the given name, or nil.
func (m *ModuleSymbol) Lookup(name string) Symbol {
	for _, stmt := range m.Block.Body {
		if d, ok := stmt.(*DefExpr); ok && d.Sym.Name() == name {
			return d.Sym
		}
	}
	return nil
}

type FnKind int

const (
	FnFunction FnKind = iota
	FnIterator
)

func (k FnKind) String() string {
	if k == FnIterator {
		return "iterator"
	}
	return "function"
}

// FnSymbol is a function. Methods take the method token and the
// receiver as their first two formals; This points at the receiver.
type FnSymbol struct {
	symbol
	Kind        FnKind
	Formals     []*DefExpr
	Body        *BlockStmt
	RetType     Type
	RetExprType Expr
	This        Symbol

	IsMethod    bool
	Global      bool
	BuildSetter bool
	DefSetGet   bool
	IsParam     bool

	// VisiblePoint marks where a nested function was defined before it
	// was moved to the module level.
	VisiblePoint *CallExpr
}

func NewFn(name string) *FnSymbol {
	fn := &FnSymbol{RetType: Unknown}
	fn.name = name
	fn.Body = adopt(fn, NewBlock())
	return fn
}

// Formal returns the symbol of the i-th formal.
func (fn *FnSymbol) Formal(i int) *ArgSymbol {
	if i < 0 || i >= len(fn.Formals) {
		return nil
	}
	a, _ := fn.Formals[i].Sym.(*ArgSymbol)
	return a
}

func (fn *FnSymbol) InsertFormalAtTail(defs ...*DefExpr) {
	for _, d := range defs {
		fn.Formals = append(fn.Formals, adopt(fn, d))
	}
}

func (fn *FnSymbol) InsertFormalAtHead(d *DefExpr) {
	fn.Formals = slices.Insert(fn.Formals, 0, adopt(fn, d))
}

func (fn *FnSymbol) InsertAtHead(stmts ...Expr) { fn.Body.InsertAtHead(stmts...) }
func (fn *FnSymbol) InsertAtTail(stmts ...Expr) { fn.Body.InsertAtTail(stmts...) }

// SetBody replaces the body, detaching the previous one.
func (fn *FnSymbol) SetBody(b *BlockStmt) {
	if fn.Body != nil {
		fn.Body.setParent(nil)
	}
	fn.Body = adopt(fn, b)
}

// SetRetExprType replaces the declared return type expression.
func (fn *FnSymbol) SetRetExprType(e Expr) {
	if fn.RetExprType != nil {
		fn.RetExprType.setParent(nil)
	}
	fn.RetExprType = adopt(fn, e)
}

type Intent int

const (
	IntentBlank Intent = iota
	IntentConst
	IntentRef
	IntentParam
	IntentType
)

type ArgSymbol struct {
	symbol
	Intent Intent
	Type   Type
}

func NewArg(intent Intent, name string, typ Type) *ArgSymbol {
	if typ == nil {
		typ = Unknown
	}
	a := &ArgSymbol{Intent: intent, Type: typ}
	a.name = name
	return a
}

type ConstClass int

const (
	VarVar ConstClass = iota
	VarConst
	VarParam
)

type VarSymbol struct {
	symbol
	Type         Type
	Const        ConstClass
	CompilerTemp bool
	TypeVariable bool
	Pragmas      []string
}

func NewVar(name string, typ Type) *VarSymbol {
	if typ == nil {
		typ = Unknown
	}
	v := &VarSymbol{Type: typ}
	v.name = name
	return v
}

// NewTemp returns a compiler temporary.
func NewTemp(name string) *VarSymbol {
	v := NewVar(name, nil)
	v.CompilerTemp = true
	return v
}

func (v *VarSymbol) HasPragma(p string) bool { return slices.Contains(v.Pragmas, p) }

func (v *VarSymbol) AddPragma(p string) {
	if !v.HasPragma(p) {
		v.Pragmas = append(v.Pragmas, p)
	}
}

type TypeSymbol struct {
	symbol
	Type    Type
	Pragmas []string
}

func (t *TypeSymbol) HasPragma(p string) bool { return slices.Contains(t.Pragmas, p) }

type LabelSymbol struct {
	symbol
}

func NewLabel(name string) *LabelSymbol {
	l := &LabelSymbol{}
	l.name = name
	return l
}

// The method token is passed as the first argument of every method call;
// the setter token separates a setter's receiver from the assigned value.
var (
	MethodToken = builtinVar("_mt", MethodTokenType)
	SetterToken = builtinVar("_st", SetterTokenType)
)

func builtinVar(name string, typ Type) *VarSymbol {
	v := NewVar(name, typ)
	v.Const = VarConst
	return v
}

// TypeOf returns the declared type of a value symbol, or Unknown.
func TypeOf(s Symbol) Type {
	switch s := s.(type) {
	case *ArgSymbol:
		return s.Type
	case *VarSymbol:
		return s.Type
	case *TypeSymbol:
		return s.Type
	case *FnSymbol:
		return s.RetType
	}
	return Unknown
}
