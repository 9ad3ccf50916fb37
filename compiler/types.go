package compiler

import (
	"go.uber.org/zap"

	"github.com/stealthrocket/iterlower/ir"
)

// clonePrimitiveMethods copies a method whose receiver has the default
// width of a numeric family once for every other width of the family.
// The copies are defined before fn and returned.
func (n *normalizer) clonePrimitiveMethods(fn *ir.FnSymbol) []*ir.FnSymbol {
	recv, ok := fn.This.(*ir.ArgSymbol)
	if !ok {
		return nil
	}
	t, ok := recv.Type.(*ir.PrimitiveType)
	if !ok || !t.IsNumeric() || t.Width != ir.DefaultWidth(t.Kind) {
		return nil
	}
	var clones []*ir.FnSymbol
	for _, w := range ir.Widths(t.Kind) {
		if w == t.Width {
			continue
		}
		wt := ir.Numeric(t.Kind, w)
		clone := ir.Copy(fn, nil)
		arg := clone.This.(*ir.ArgSymbol)
		arg.Type = wt
		if def := ir.DefOf(arg); def != nil && def.ExprType != nil {
			ir.Replace(def.ExprType, ir.NewSym(wt.Symbol()))
		}
		ir.InsertBefore(ir.DefOf(fn), ir.NewDef(clone, nil, nil))
		clones = append(clones, clone)
	}
	n.logger.Debug("cloned primitive method",
		zap.String("function", fn.Name()),
		zap.Int("clones", len(clones)))
	return clones
}

// fixupParameterizedFormals instantiates a function whose formal types
// query the width of a numeric family, as in int(?w). One copy is made
// per width of the family, with the query replaced by the width and every
// use of the queried symbol replaced by its value. The copies are defined
// after fn, fn itself is removed, and the copies are returned; they still
// contain the other queries of fn, if any. Nil is returned when fn has no
// query.
func (n *normalizer) fixupParameterizedFormals(fn *ir.FnSymbol) []*ir.FnSymbol {
	for _, x := range ir.CollectTop(fn) {
		call, ok := x.(*ir.CallExpr)
		if !ok || len(call.Args) != 1 {
			continue
		}
		query, ok := call.Args[0].(*ir.DefExpr)
		if !ok {
			continue
		}
		kind, ok := ir.Family(call.Name())
		if !ok {
			continue
		}
		var clones []*ir.FnSymbol
		anchor := ir.DefOf(fn)
		for _, w := range ir.Widths(kind) {
			m := ir.Map{}
			clone := ir.Copy(fn, m)
			q := m[query.Sym]
			for _, use := range ir.Uses(clone, q) {
				ir.Replace(use, ir.NewInt(int64(w)))
			}
			ir.Replace(ir.DefOf(q), ir.NewInt(int64(w)))
			def := ir.NewDef(clone, nil, nil)
			ir.InsertAfter(anchor, def)
			anchor = def
			clones = append(clones, clone)
		}
		ir.Remove(ir.DefOf(fn))
		n.logger.Debug("instantiated queried widths",
			zap.String("function", fn.Name()),
			zap.String("query", query.Sym.Name()),
			zap.Int("clones", len(clones)))
		return clones
	}
	return nil
}

// hackResolveType gives a formal of unknown type the type its type
// expression denotes, when that type is known without resolution.
func hackResolveType(def *ir.DefExpr) {
	arg, ok := def.Sym.(*ir.ArgSymbol)
	if !ok || arg.Type != ir.Unknown || def.ExprType == nil {
		return
	}
	if t := ir.TypeInfo(def.ExprType); t != ir.Unknown && t != ir.Any {
		arg.Type = t
		ir.Remove(def.ExprType)
	}
}

// enableScalarPromotion records the element type of a _promoter iterator
// on the class it belongs to. When the element type is a field of the
// receiver rather than a known type, the field is tagged with the
// "promoter" pragma instead.
func (n *normalizer) enableScalarPromotion(fn *ir.FnSymbol) {
	if fn.Name() != "_promoter" || fn.RetExprType == nil || fn.This == nil {
		return
	}
	class, _ := ir.TypeOf(fn.This).(*ir.ClassType)
	if t := ir.TypeInfo(fn.RetExprType); t != ir.Unknown {
		if class != nil {
			class.ScalarPromotionType = t
		}
		return
	}
	call, ok := fn.RetExprType.(*ir.CallExpr)
	if !ok || !call.IsNamed(".") || class == nil {
		return
	}
	if recv, ok := call.Arg(0).(*ir.SymExpr); !ok || recv.Sym != fn.This {
		return
	}
	name, ok := ir.IsString(call.Arg(1))
	if !ok {
		return
	}
	if field := class.Field(name); field != nil {
		field.AddPragma("promoter")
	}
}
