package compiler

import (
	"github.com/stealthrocket/iterlower/ir"
)

// fixDefExpr moves the type and initializer of a local variable's
// definition into explicit statements following it.
//
// A typed variable is first given the default value of its type through
// the temporary _typeTmp, then assigned its initializer with the
// assignment operator. An untyped variable gets a copy of its
// initializer. A typed param variable is moved a cast of its initializer.
// Const variables are built in the temporary _constTmp and moved into
// place once complete.
func (n *normalizer) fixDefExpr(v *ir.VarSymbol) {
	def := ir.DefOf(v)
	typ, init := def.ExprType, def.Init
	if typ == nil && init == nil {
		return
	}
	if typ != nil {
		ir.Remove(typ)
	}
	if init != nil {
		ir.Remove(init)
	}

	target := v
	if v.Const == ir.VarConst {
		target = ir.NewTemp("_constTmp")
		ir.InsertBefore(def, ir.NewDef(target, nil, nil))
		ir.InsertAfter(def, move(v, ir.NewSym(target)))
	}

	if typ == nil {
		ir.InsertAfter(def, move(target, ir.Call("_copy", init)))
		return
	}
	if init != nil && v.Const == ir.VarParam {
		ir.InsertAfter(def, move(target, ir.Call("_cast", typ, init)))
		return
	}
	typeTmp := ir.NewVar("_typeTmp", nil)
	typeTmp.TypeVariable = true
	ir.InsertBefore(def, ir.NewDef(typeTmp, nil, nil))
	ir.InsertBefore(def, move(typeTmp, ir.Call("_init", typ)))
	if init != nil {
		ir.InsertAfter(def, move(target, ir.Call("=", ir.NewSym(target), init)))
	}
	ir.InsertAfter(def, move(target, ir.NewSym(typeTmp)))
}

func move(dst ir.Symbol, src ir.Expr) *ir.CallExpr {
	return ir.NewPrim(ir.PrimMove, ir.NewSym(dst), src)
}

// insertCallTemps evaluates a nested call into a new temporary defined
// just before the statement containing it, so that every call is either a
// statement or the source of a move.
//
// Calls nested in the argument of a default-initialization call hoist the
// whole _init call instead. Calls in the condition of a while loop are
// hoisted into the loop's pre-condition block so that they are evaluated
// again on every iteration. Primitives, partial calls, calls already
// feeding a move and calls under typeof, which are never evaluated, stay
// in place.
func (n *normalizer) insertCallTemps(call *ir.CallExpr) {
	if call.Parent() == nil {
		return
	}
	stmt := ir.StmtExpr(call)
	if stmt == nil || stmt == ir.Expr(call) {
		return
	}
	if _, ok := call.Parent().(*ir.DefExpr); ok {
		return
	}
	if call.PartialTag || call.Prim != ir.PrimNone || underTypeof(call, stmt) {
		return
	}
	if parent, ok := call.Parent().(*ir.CallExpr); ok {
		if parent.IsPrim(ir.PrimMove) || parent.IsPrim(ir.PrimRef) {
			return
		}
		if parent.IsNamed("_init") {
			call = parent
		}
	}

	tmp := ir.NewTemp("_tmp")
	tmp.Const = ir.VarConst
	if w, ok := stmt.(*ir.WhileStmt); ok && ir.Contains(w.Cond, call) {
		ir.Replace(call, ir.NewSym(tmp))
		w.Pre.InsertAtTail(ir.NewDef(tmp, nil, nil), move(tmp, call))
		return
	}
	ir.Replace(call, ir.NewSym(tmp))
	ir.InsertBefore(stmt, ir.NewDef(tmp, nil, nil))
	ir.InsertBefore(stmt, move(tmp, call))
}

func underTypeof(call *ir.CallExpr, stmt ir.Expr) bool {
	for p := call.Parent(); p != nil && p != ir.Node(stmt); p = p.Parent() {
		if c, ok := p.(*ir.CallExpr); ok && c.IsPrim(ir.PrimTypeof) {
			return true
		}
	}
	return false
}

// fixUserAssign wraps an assignment operator call whose result is not
// already consumed by its enclosing statement into a move to its left
// hand side.
func (n *normalizer) fixUserAssign(call *ir.CallExpr) {
	if call.Parent() == nil || !call.IsNamed("=") || call.Prim != ir.PrimNone {
		return
	}
	stmt := ir.StmtExpr(call)
	if stmt == nil || ir.Node(stmt) == call.Parent() {
		return
	}
	lhs, ok := call.Arg(0).(*ir.SymExpr)
	if !ok {
		n.fatalf(call, "assignment to a non-variable")
	}
	m := ir.NewPrim(ir.PrimMove, ir.Copy(lhs, nil))
	ir.Replace(call, m)
	m.InsertAtTail(call)
}
