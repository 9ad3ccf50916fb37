package ir

import (
	"fmt"
	"slices"
)

// Copy returns a deep copy of the tree rooted at n. Every symbol defined
// inside the tree is copied too, and references to it within the copy
// point at the new symbol. References to symbols defined outside the tree
// are shared. When m is not nil it receives the old-to-new symbol
// mapping.
func Copy[T Node](n T, m Map) T {
	if m == nil {
		m = Map{}
	}
	c := &copier{symbols: m}
	out := c.copy(n).(T)
	c.fixup()
	return out
}

type copier struct {
	symbols Map
	refs    []*SymExpr
	gotos   []*GotoStmt
	fns     []*FnSymbol
}

func (c *copier) copy(n Node) Node {
	if isNil(n) {
		return nil
	}
	var out Node
	switch n := n.(type) {
	case *DefExpr:
		out = NewDef(c.copy(n.Sym).(Symbol), c.expr(n.Init), c.expr(n.ExprType))
	case *SymExpr:
		se := &SymExpr{Sym: n.Sym}
		c.refs = append(c.refs, se)
		out = se
	case *NameExpr:
		out = &NameExpr{Name: n.Name}
	case *Lit:
		l := *n
		l.node = node{}
		out = &l
	case *CallExpr:
		call := NewCall(c.expr(n.Base))
		for _, a := range n.Args {
			call.InsertAtTail(c.expr(a))
		}
		call.Prim = n.Prim
		call.MethodTag = n.MethodTag
		call.PartialTag = n.PartialTag
		out = call
	case *BlockStmt:
		b := NewBlock()
		for _, s := range n.Body {
			b.InsertAtTail(c.expr(s))
		}
		out = b
	case *CondStmt:
		out = NewCond(c.expr(n.Cond), c.block(n.Then), c.block(n.Else))
	case *WhileStmt:
		w := &WhileStmt{}
		w.Pre = adopt(w, c.block(n.Pre))
		w.Cond = adopt(w, c.expr(n.Cond))
		w.Body = adopt(w, c.block(n.Body))
		out = w
	case *GotoStmt:
		g := &GotoStmt{Label: n.Label}
		c.gotos = append(c.gotos, g)
		out = g
	case *ReturnStmt:
		r := NewReturn(c.expr(n.Expr))
		r.Yield = n.Yield
		out = r
	case *FnSymbol:
		fn := &FnSymbol{
			Kind:        n.Kind,
			RetType:     n.RetType,
			This:        n.This,
			IsMethod:    n.IsMethod,
			Global:      n.Global,
			BuildSetter: n.BuildSetter,
			DefSetGet:   n.DefSetGet,
			IsParam:     n.IsParam,
		}
		fn.name = n.name
		c.symbols[n] = fn
		for _, f := range n.Formals {
			fn.InsertFormalAtTail(c.copy(f).(*DefExpr))
		}
		fn.RetExprType = adopt(fn, c.expr(n.RetExprType))
		fn.Body = adopt(fn, c.block(n.Body))
		c.fns = append(c.fns, fn)
		out = fn
	case *ArgSymbol:
		a := NewArg(n.Intent, n.name, n.Type)
		c.symbols[n] = a
		out = a
	case *VarSymbol:
		v := &VarSymbol{
			Type:         n.Type,
			Const:        n.Const,
			CompilerTemp: n.CompilerTemp,
			TypeVariable: n.TypeVariable,
			Pragmas:      slices.Clone(n.Pragmas),
		}
		v.name = n.name
		c.symbols[n] = v
		out = v
	case *LabelSymbol:
		l := NewLabel(n.name)
		c.symbols[n] = l
		out = l
	case *TypeSymbol:
		if _, ok := n.Type.(*ClassType); ok {
			panic(fmt.Sprintf("ir: cannot copy class type %s", n.name))
		}
		t := &TypeSymbol{Type: n.Type, Pragmas: slices.Clone(n.Pragmas)}
		t.name = n.name
		c.symbols[n] = t
		out = t
	default:
		panic(fmt.Sprintf("ir: cannot copy %T", n))
	}
	out.SetPos(n.Pos())
	return out
}

func (c *copier) expr(e Expr) Expr {
	if isNil(e) {
		return nil
	}
	return c.copy(e).(Expr)
}

func (c *copier) block(b *BlockStmt) *BlockStmt {
	if b == nil {
		return nil
	}
	return c.copy(b).(*BlockStmt)
}

func (c *copier) fixup() {
	for _, se := range c.refs {
		if s, ok := c.symbols[se.Sym]; ok {
			se.Sym = s
		}
	}
	for _, g := range c.gotos {
		if l, ok := c.symbols[g.Label].(*LabelSymbol); ok {
			g.Label = l
		}
	}
	for _, fn := range c.fns {
		if fn.This != nil {
			if s, ok := c.symbols[fn.This]; ok {
				fn.This = s
			}
		}
	}
}
