package compiler

import (
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/stealthrocket/iterlower/ir"
)

// hoistDecls turns the state of an iterator body into fields of class.
//
// The formals come first, then the locals in the order a pre-order walk
// of the body meets their definitions. Each field is named
// _<ordinal>_<name> so that locals of different scopes sharing a name
// stay distinct. Locals of nested functions and compiler temporaries are
// left alone.
//
// A local's definition becomes an assignment of its initializer to the
// field; a local declared without one is assigned its type's default
// value. When the local has no declared type, the field's type is deferred
// to the type of the initializer.
//
// Every reference to a hoisted symbol, in the body and in the field type
// expressions, is then rewritten into a field access on a new receiver
// formal. The receiver is returned; fn gets the method token and the
// receiver as its only formals.
func (n *normalizer) hoistDecls(fn *ir.FnSymbol, class *ir.ClassType) *ir.ArgSymbol {
	this := ir.NewArg(ir.IntentBlank, "this", class)
	fields := make(map[ir.Symbol]*ir.VarSymbol)
	ordinal := 0
	hoist := func(old ir.Symbol, typ ir.Type, exprType ir.Expr) *ir.VarSymbol {
		field := ir.NewVar(fmt.Sprintf("_%d_%s", ordinal, old.Name()), typ)
		ordinal++
		class.AddField(ir.NewDef(field, nil, exprType))
		fields[old] = field
		return field
	}

	for _, def := range slices.Clone(fn.Formals) {
		ir.Remove(def)
		arg := def.Sym.(*ir.ArgSymbol)
		if arg.Type == ir.MethodTokenType {
			continue
		}
		var exprType ir.Expr
		if def.ExprType != nil {
			exprType = ir.Remove(def.ExprType)
		}
		field := hoist(arg, arg.Type, exprType)
		if arg.Intent == ir.IntentParam {
			field.Const = ir.VarParam
		}
	}

	for _, def := range ir.CollectOf[*ir.DefExpr](fn.Body) {
		v, ok := def.Sym.(*ir.VarSymbol)
		if !ok || v.CompilerTemp || ir.EnclosingFn(def) != fn {
			continue
		}
		var init, exprType ir.Expr
		if def.Init != nil {
			init = ir.Remove(def.Init)
		}
		if def.ExprType != nil {
			exprType = ir.Remove(def.ExprType)
		}
		name := fmt.Sprintf("_%d_%s", ordinal, v.Name())
		if init == nil {
			init = ir.Call("_init", ir.Dot(ir.NewSym(this), name))
		}
		if exprType == nil {
			exprType = ir.NewPrim(ir.PrimTypeof, ir.Copy(init, nil))
		}
		field := hoist(v, v.Type, exprType)
		field.Const = v.Const
		ir.Replace(def, ir.Call("=", ir.Dot(ir.NewSym(this), field.Name()), init))
	}

	rewrite := func(root ir.Node) {
		for _, se := range ir.CollectOf[*ir.SymExpr](root) {
			if field, ok := fields[se.Sym]; ok {
				ir.Replace(se, ir.Dot(ir.NewSym(this), field.Name()))
			}
		}
	}
	rewrite(fn.Body)
	if fn.RetExprType != nil {
		rewrite(fn.RetExprType)
	}
	for _, def := range class.FieldDefs() {
		if def.ExprType != nil {
			rewrite(def.ExprType)
		}
	}

	mt := ir.NewArg(ir.IntentBlank, "_methodToken", ir.MethodTokenType)
	fn.InsertFormalAtTail(ir.NewDef(mt, nil, nil), ir.NewDef(this, nil, nil))
	fn.This = this

	n.logger.Debug("hoisted iterator state",
		zap.String("class", class.String()),
		zap.Int("fields", ordinal))
	return this
}
