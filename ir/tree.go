package ir

import (
	"fmt"
	"slices"
)

// Children returns the direct children of n in encounter order.
func Children(n Node) []Node {
	var out []Node
	add := func(c Node) {
		if !isNil(c) {
			out = append(out, c)
		}
	}
	switch n := n.(type) {
	case *DefExpr:
		add(n.Sym)
		add(n.Init)
		add(n.ExprType)
	case *CallExpr:
		add(n.Base)
		for _, a := range n.Args {
			add(a)
		}
	case *BlockStmt:
		for _, s := range n.Body {
			add(s)
		}
	case *CondStmt:
		add(n.Cond)
		add(n.Then)
		add(n.Else)
	case *WhileStmt:
		add(n.Pre)
		add(n.Cond)
		add(n.Body)
	case *ReturnStmt:
		add(n.Expr)
	case *ModuleSymbol:
		add(n.Block)
	case *FnSymbol:
		for _, f := range n.Formals {
			add(f)
		}
		add(n.RetExprType)
		add(n.Body)
	case *TypeSymbol:
		if c, ok := n.Type.(*ClassType); ok && c.sym == n {
			add(c.Fields)
		}
	case *SymExpr, *NameExpr, *Lit, *GotoStmt, *ArgSymbol, *VarSymbol, *LabelSymbol:
	default:
		panic(fmt.Sprintf("ir: unknown node %T", n))
	}
	return out
}

// Remove detaches n from its parent and returns it.
func Remove[T Node](n T) T {
	p := n.Parent()
	if p == nil {
		return n
	}
	swap(p, n, nil)
	n.setParent(nil)
	return n
}

// Replace puts repl where old is and detaches old.
func Replace(old, repl Node) {
	p := old.Parent()
	if p == nil {
		panic(fmt.Sprintf("ir: replacing detached %T", old))
	}
	adopt(p, repl)
	swap(p, old, repl)
	old.setParent(nil)
}

// InsertBefore inserts n before anchor in the list that holds anchor.
func InsertBefore(anchor, n Node) { insert(anchor, n, 0) }

// InsertAfter inserts n after anchor in the list that holds anchor.
func InsertAfter(anchor, n Node) { insert(anchor, n, 1) }

func insert(anchor, n Node, offset int) {
	p := anchor.Parent()
	switch p := p.(type) {
	case *BlockStmt:
		i := indexOf(p.Body, anchor)
		p.Body = slices.Insert(p.Body, i+offset, adopt(p, n.(Expr)))
	case *CallExpr:
		i := indexOf(p.Args, anchor)
		p.Args = slices.Insert(p.Args, i+offset, adopt(p, n.(Expr)))
	case *FnSymbol:
		i := indexOf(p.Formals, anchor)
		p.Formals = slices.Insert(p.Formals, i+offset, adopt(p, n.(*DefExpr)))
	default:
		panic(fmt.Sprintf("ir: cannot insert next to %T in %T", anchor, p))
	}
}

func indexOf[T Node](list []T, n Node) int {
	for i, x := range list {
		if Node(x) == n {
			return i
		}
	}
	panic(fmt.Sprintf("ir: %T is not a child of its parent", n))
}

// swap replaces the child old of p with repl, or deletes it when repl is
// nil.
func swap(p, old, repl Node) {
	switch p := p.(type) {
	case *DefExpr:
		switch old {
		case p.Init:
			p.Init = asExpr(repl)
		case p.ExprType:
			p.ExprType = asExpr(repl)
		case p.Sym:
			if repl == nil {
				panic("ir: removing the symbol of a definition")
			}
			p.Sym = repl.(Symbol)
		default:
			badChild(p, old)
		}
	case *CallExpr:
		if old == p.Base {
			p.Base = asExpr(repl)
			return
		}
		p.Args = swapList(p.Args, old, repl)
	case *BlockStmt:
		p.Body = swapList(p.Body, old, repl)
	case *CondStmt:
		switch old {
		case p.Cond:
			p.Cond = asExpr(repl)
		case p.Then:
			p.Then = asBlock(repl)
		case p.Else:
			p.Else = asBlock(repl)
		default:
			badChild(p, old)
		}
	case *WhileStmt:
		switch old {
		case p.Pre:
			p.Pre = asBlock(repl)
		case p.Cond:
			p.Cond = asExpr(repl)
		case p.Body:
			p.Body = asBlock(repl)
		default:
			badChild(p, old)
		}
	case *ReturnStmt:
		if old != p.Expr {
			badChild(p, old)
		}
		p.Expr = asExpr(repl)
	case *ModuleSymbol:
		if old != p.Block {
			badChild(p, old)
		}
		p.Block = asBlock(repl)
	case *FnSymbol:
		switch old {
		case p.RetExprType:
			p.RetExprType = asExpr(repl)
		case p.Body:
			p.Body = asBlock(repl)
		default:
			i := indexOf(p.Formals, old)
			if repl == nil {
				p.Formals = slices.Delete(p.Formals, i, i+1)
			} else {
				p.Formals[i] = repl.(*DefExpr)
			}
		}
	case *TypeSymbol:
		c, ok := p.Type.(*ClassType)
		if !ok || old != c.Fields {
			badChild(p, old)
		}
		c.Fields = asBlock(repl)
	default:
		badChild(p, old)
	}
}

func swapList(list []Expr, old, repl Node) []Expr {
	i := indexOf(list, old)
	if repl == nil {
		return slices.Delete(list, i, i+1)
	}
	list[i] = repl.(Expr)
	return list
}

func asExpr(n Node) Expr {
	if n == nil {
		return nil
	}
	return n.(Expr)
}

func asBlock(n Node) *BlockStmt {
	if n == nil {
		return nil
	}
	b, ok := n.(*BlockStmt)
	if !ok {
		panic(fmt.Sprintf("ir: %T used where a block is required", n))
	}
	return b
}

func badChild(p, n Node) {
	panic(fmt.Sprintf("ir: %T is not a child of %T", n, p))
}

// EnclosingFn returns the innermost function containing n, or nil.
func EnclosingFn(n Node) *FnSymbol {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if fn, ok := p.(*FnSymbol); ok {
			return fn
		}
	}
	return nil
}

// ModuleOf returns the module containing n, or nil when n is detached.
func ModuleOf(n Node) *ModuleSymbol {
	for p := Node(n); p != nil; p = p.Parent() {
		if m, ok := p.(*ModuleSymbol); ok {
			return m
		}
	}
	return nil
}

// StmtExpr returns the statement containing e: the ancestor of e (or e
// itself) whose parent is a block. It returns nil when e is not nested in
// a block without crossing a symbol first, as in formal defaults.
func StmtExpr(e Expr) Expr {
	for n := Node(e); n != nil; {
		x, ok := n.(Expr)
		if !ok {
			return nil
		}
		p := x.Parent()
		if _, ok := p.(*BlockStmt); ok {
			return x
		}
		n = p
	}
	return nil
}

// Contains reports whether n is root or a descendant of root.
func Contains(root, n Node) bool {
	for p := n; p != nil; p = p.Parent() {
		if p == root {
			return true
		}
	}
	return false
}

// Next returns the statement following e in its block, or nil.
func Next(e Expr) Expr {
	b, ok := e.Parent().(*BlockStmt)
	if !ok {
		return nil
	}
	i := indexOf(b.Body, e)
	if i+1 < len(b.Body) {
		return b.Body[i+1]
	}
	return nil
}

// Stamp sets p on every node of the tree rooted at n that has no valid
// position.
func Stamp(n Node, p Pos) {
	Walk(n, func(x Node) bool {
		if !x.Pos().IsValid() {
			x.SetPos(p)
		}
		return true
	})
}

// InheritPositions gives every node of the tree rooted at n that has no
// valid position the position of its nearest positioned ancestor.
func InheritPositions(n Node) {
	var visit func(Node, Pos)
	visit = func(x Node, p Pos) {
		if x.Pos().IsValid() {
			p = x.Pos()
		} else if p.IsValid() {
			x.SetPos(p)
		}
		for _, c := range Children(x) {
			visit(c, p)
		}
	}
	visit(n, Pos{})
}
