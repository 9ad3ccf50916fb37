package compiler

import (
	"github.com/stealthrocket/iterlower/ir"
)

// normalizeReturns leaves fn with a single return at the end of its body.
//
// Functions without a return get a void one. Otherwise each return stores
// its value in the temporary _ret_<fn> (cast to the declared return type
// when there is one) and jumps to the label _end_<fn> that precedes the
// final return of the temporary. A function whose only return is already
// its last statement and returns a symbol is left alone.
func (n *normalizer) normalizeReturns(fn *ir.FnSymbol) {
	var rets []*ir.ReturnStmt
	for _, rs := range ir.CollectOf[*ir.ReturnStmt](fn.Body) {
		if ir.EnclosingFn(rs) == fn {
			rets = append(rets, rs)
		}
	}
	if len(rets) == 0 {
		fn.InsertAtTail(ir.NewReturn(nil))
		return
	}
	if len(rets) == 1 && ir.Expr(rets[0]) == fn.Body.Last() {
		switch rets[0].Expr.(type) {
		case nil, *ir.SymExpr:
			return
		}
	}

	returnsVoid := rets[0].Expr == nil
	label := ir.NewLabel("_end_" + fn.Name())
	fn.InsertAtTail(ir.NewDef(label, nil, nil))
	var retval *ir.VarSymbol
	if returnsVoid {
		fn.InsertAtTail(ir.NewReturn(nil))
	} else {
		retval = ir.NewTemp("_ret_" + fn.Name())
		retval.Type = fn.RetType
		if fn.IsParam {
			retval.Const = ir.VarParam
		}
		fn.InsertAtHead(ir.NewDef(retval, nil, nil))
		fn.InsertAtTail(ir.NewReturn(ir.NewSym(retval)))
	}

	used := false
	for _, rs := range rets {
		if (rs.Expr == nil) != returnsVoid {
			n.fatalf(rs, "function %s mixes void and value returns", fn.Name())
		}
		if retval != nil {
			e := ir.Remove(rs.Expr)
			if fn.RetExprType != nil {
				e = ir.Call("_cast", ir.Copy(fn.RetExprType, nil), e)
			}
			ir.InsertBefore(rs, ir.NewPrim(ir.PrimMove, ir.NewSym(retval), e))
		}
		if next, ok := ir.Next(rs).(*ir.DefExpr); ok && next.Sym == ir.Symbol(label) {
			ir.Remove(rs)
		} else {
			ir.Replace(rs, ir.NewGoto(label))
			used = true
		}
	}
	if !used {
		ir.Remove(ir.DefOf(label))
	}
}

// buildLvalueFunction defines, after fn, a setter variant of it used when
// a call to fn is assigned to. The setter takes two extra formals, the
// setter token and the assigned value _lvalue, and each of its returns
// assigns _lvalue to the returned expression instead.
//
// The setter keeps the name of fn; calls select it by passing the setter
// token.
func (n *normalizer) buildLvalueFunction(fn *ir.FnSymbol) {
	setter := ir.Copy(fn, nil)
	fn.BuildSetter = false
	setter.BuildSetter = false
	setter.RetType = ir.Void
	ir.InsertAfter(ir.DefOf(fn), ir.NewDef(setter, nil, nil))
	if class, ok := ir.TypeOf(fn.This).(*ir.ClassType); ok {
		class.AddMethod(setter)
	}

	st := ir.NewArg(ir.IntentBlank, "_st", ir.SetterTokenType)
	lvalue := ir.NewArg(ir.IntentBlank, "_lvalue", ir.Any)
	var exprType ir.Expr
	if setter.RetExprType != nil {
		lvalue.Type = ir.Unknown
		exprType = ir.Remove(setter.RetExprType)
	}
	setter.InsertFormalAtTail(ir.NewDef(st, nil, nil), ir.NewDef(lvalue, nil, exprType))

	for _, rs := range ir.CollectOf[*ir.ReturnStmt](setter.Body) {
		if ir.EnclosingFn(rs) != setter || rs.Expr == nil {
			continue
		}
		e := ir.Remove(rs.Expr)
		ir.InsertBefore(rs, ir.Call("=", e, ir.NewSym(lvalue)))
	}
}

// tagGlobal marks functions taking a class instance as global. Those
// nested in another function move to the end of the module, leaving a
// no-op call where they were defined.
func (n *normalizer) tagGlobal(fn *ir.FnSymbol) {
	if fn.Global {
		return
	}
	for _, def := range fn.Formals {
		if arg, ok := def.Sym.(*ir.ArgSymbol); ok && isPlainClass(arg.Type) {
			fn.Global = true
		}
		if se, ok := def.ExprType.(*ir.SymExpr); ok && isPlainClass(ir.TypeOf(se.Sym)) {
			fn.Global = true
		}
	}
	if !fn.Global {
		return
	}
	if _, nested := parentSymbol(ir.DefOf(fn)).(*ir.FnSymbol); !nested {
		return
	}
	mod := ir.ModuleOf(fn)
	if mod == nil {
		return
	}
	def := ir.DefOf(fn)
	point := ir.NewPrim(ir.PrimNoop)
	ir.InsertBefore(def, point)
	fn.VisiblePoint = point
	mod.Block.InsertAtTail(ir.Remove(def))
}

func isPlainClass(t ir.Type) bool {
	class, ok := t.(*ir.ClassType)
	if !ok || class.Tag != ir.ClassClass {
		return false
	}
	ts := class.Symbol()
	return !ts.HasPragma("domain") && !ts.HasPragma("array")
}
