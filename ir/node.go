// Package ir is the tree representation consumed and rewritten by the
// normalization pass.
//
// Every node has at most one parent. Nodes are moved by detaching them
// (Remove) and reinserting them somewhere else; inserting a node that is
// still attached panics.
package ir

import (
	"fmt"
	"reflect"
)

// Pos is a source location used for diagnostics.
type Pos struct {
	File string
	Line int
}

func (p Pos) IsValid() bool { return p.Line > 0 }

func (p Pos) String() string {
	switch {
	case p.File == "" && p.Line == 0:
		return "-"
	case p.File == "":
		return fmt.Sprintf("line %d", p.Line)
	default:
		return fmt.Sprintf("%s:%d", p.File, p.Line)
	}
}

// Node is implemented by every expression, statement and symbol of the
// tree. The set of implementations is closed.
type Node interface {
	Pos() Pos
	SetPos(Pos)
	Parent() Node
	setParent(Node)
}

type node struct {
	pos    Pos
	parent Node
}

func (n *node) Pos() Pos         { return n.pos }
func (n *node) SetPos(p Pos)     { n.pos = p }
func (n *node) Parent() Node     { return n.parent }
func (n *node) setParent(p Node) { n.parent = p }

// Expr is a node that may appear in an expression or statement position.
// Statements are expressions whose parent is a block.
type Expr interface {
	Node
	exprNode()
}

// DefExpr introduces a symbol. For variables and formals, Init holds the
// initializer (or default value) and ExprType the declared type
// expression; both may be nil.
type DefExpr struct {
	node
	Sym      Symbol
	Init     Expr
	ExprType Expr
}

// SymExpr is a resolved reference to a symbol.
type SymExpr struct {
	node
	Sym Symbol
}

// NameExpr is a reference that is resolved by name after normalization:
// operators, overloaded functions and methods.
type NameExpr struct {
	node
	Name string
}

type LitKind int

const (
	IntLit LitKind = iota
	StringLit
	BoolLit
)

// Lit is an immediate value.
type Lit struct {
	node
	Kind LitKind
	Int  int64
	Str  string
	Bool bool
}

// Prim identifies a primitive operation. Calls with a primitive have no
// base expression.
type Prim int

const (
	PrimNone Prim = iota
	PrimMove
	PrimTypeof
	PrimNoop
	PrimRef
	PrimAlloc
)

var primNames = [...]string{
	PrimNone:   "",
	PrimMove:   "move",
	PrimTypeof: "typeof",
	PrimNoop:   "noop",
	PrimRef:    "ref",
	PrimAlloc:  "alloc",
}

func (p Prim) String() string {
	if int(p) < len(primNames) {
		return primNames[p]
	}
	return fmt.Sprintf("prim(%d)", int(p))
}

// CallExpr is a call. MethodTag marks a call produced from a field or
// method access; PartialTag marks such a call used as the base of another
// call, whose arguments complete it.
type CallExpr struct {
	node
	Base       Expr
	Args       []Expr
	Prim       Prim
	MethodTag  bool
	PartialTag bool
}

// BlockStmt is a sequence of statements.
type BlockStmt struct {
	node
	Body []Expr
}

// CondStmt branches on Cond. Else may be nil.
type CondStmt struct {
	node
	Cond Expr
	Then *BlockStmt
	Else *BlockStmt
}

// WhileStmt runs Pre, then tests Cond, before every iteration of Body.
// Pre holds statements that compute parts of the condition.
type WhileStmt struct {
	node
	Pre  *BlockStmt
	Cond Expr
	Body *BlockStmt
}

type GotoStmt struct {
	node
	Label *LabelSymbol
}

// ReturnStmt returns from the enclosing function. Expr is nil for a
// void return. A ReturnStmt with Yield set is a production point of a
// generator function.
type ReturnStmt struct {
	node
	Expr  Expr
	Yield bool
}

func (*DefExpr) exprNode()    {}
func (*SymExpr) exprNode()    {}
func (*NameExpr) exprNode()   {}
func (*Lit) exprNode()        {}
func (*CallExpr) exprNode()   {}
func (*BlockStmt) exprNode()  {}
func (*CondStmt) exprNode()   {}
func (*WhileStmt) exprNode()  {}
func (*GotoStmt) exprNode()   {}
func (*ReturnStmt) exprNode() {}

func NewDef(sym Symbol, init, exprType Expr) *DefExpr {
	d := &DefExpr{}
	d.Sym = adopt(d, sym)
	d.Init = adopt(d, init)
	d.ExprType = adopt(d, exprType)
	return d
}

func NewSym(s Symbol) *SymExpr {
	if s == nil {
		panic("ir: reference to nil symbol")
	}
	return &SymExpr{Sym: s}
}

func NewName(name string) *NameExpr { return &NameExpr{Name: name} }

func NewInt(v int64) *Lit     { return &Lit{Kind: IntLit, Int: v} }
func NewString(s string) *Lit { return &Lit{Kind: StringLit, Str: s} }
func NewBool(b bool) *Lit     { return &Lit{Kind: BoolLit, Bool: b} }

func NewCall(base Expr, args ...Expr) *CallExpr {
	c := &CallExpr{}
	c.Base = adopt(c, base)
	for _, a := range args {
		c.Args = append(c.Args, adopt(c, a))
	}
	return c
}

// Call builds a call to the function or operator with the given name.
func Call(name string, args ...Expr) *CallExpr {
	return NewCall(NewName(name), args...)
}

func NewPrim(p Prim, args ...Expr) *CallExpr {
	c := NewCall(nil, args...)
	c.Prim = p
	return c
}

// Dot builds the field access x.name.
func Dot(x Expr, name string) *CallExpr {
	return Call(".", x, NewString(name))
}

func NewBlock(stmts ...Expr) *BlockStmt {
	b := &BlockStmt{}
	for _, s := range stmts {
		b.Body = append(b.Body, adopt(b, s))
	}
	return b
}

func NewCond(cond Expr, then, els *BlockStmt) *CondStmt {
	c := &CondStmt{}
	c.Cond = adopt(c, cond)
	c.Then = adopt(c, then)
	c.Else = adopt(c, els)
	return c
}

func NewWhile(cond Expr, body *BlockStmt) *WhileStmt {
	w := &WhileStmt{}
	w.Pre = adopt(w, NewBlock())
	w.Cond = adopt(w, cond)
	w.Body = adopt(w, body)
	return w
}

func NewGoto(l *LabelSymbol) *GotoStmt { return &GotoStmt{Label: l} }

func NewReturn(e Expr) *ReturnStmt {
	r := &ReturnStmt{}
	r.Expr = adopt(r, e)
	return r
}

func NewYield(e Expr) *ReturnStmt {
	r := NewReturn(e)
	r.Yield = true
	return r
}

// IsNamed reports whether the call's base refers to name.
func (c *CallExpr) IsNamed(name string) bool {
	switch b := c.Base.(type) {
	case *NameExpr:
		return b.Name == name
	case *SymExpr:
		return b.Sym.Name() == name
	}
	return false
}

// Name returns the name the call's base refers to, if any.
func (c *CallExpr) Name() string {
	switch b := c.Base.(type) {
	case *NameExpr:
		return b.Name
	case *SymExpr:
		return b.Sym.Name()
	}
	return ""
}

func (c *CallExpr) IsPrim(p Prim) bool { return c.Prim == p }

// Arg returns the i-th argument, or nil when out of range.
func (c *CallExpr) Arg(i int) Expr {
	if i < 0 || i >= len(c.Args) {
		return nil
	}
	return c.Args[i]
}

func (c *CallExpr) InsertAtTail(args ...Expr) {
	for _, a := range args {
		c.Args = append(c.Args, adopt(c, a))
	}
}

func (b *BlockStmt) InsertAtHead(stmts ...Expr) {
	head := make([]Expr, 0, len(stmts)+len(b.Body))
	for _, s := range stmts {
		head = append(head, adopt(b, s))
	}
	b.Body = append(head, b.Body...)
}

func (b *BlockStmt) InsertAtTail(stmts ...Expr) {
	for _, s := range stmts {
		b.Body = append(b.Body, adopt(b, s))
	}
}

func (b *BlockStmt) Last() Expr {
	if len(b.Body) == 0 {
		return nil
	}
	return b.Body[len(b.Body)-1]
}

// IsString reports whether e is a string literal, and returns its value.
func IsString(e Expr) (string, bool) {
	if l, ok := e.(*Lit); ok && l.Kind == StringLit {
		return l.Str, true
	}
	return "", false
}

// adopt sets p as the parent of n. Nil values, typed or not, come back
// as the zero value of T.
func adopt[T Node](p Node, n T) T {
	if isNil(n) {
		var zero T
		return zero
	}
	if n.Parent() != nil {
		panic(fmt.Sprintf("ir: %T at %s already has a parent %T", n, n.Pos(), n.Parent()))
	}
	n.setParent(p)
	return n
}

func isNil(n Node) bool {
	if n == nil {
		return true
	}
	v := reflect.ValueOf(n)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
