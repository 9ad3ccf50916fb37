package compiler

import (
	"github.com/stealthrocket/iterlower/ir"
)

// checkFunction rejects yields outside of iterators. A yield belongs to
// the innermost function containing it.
func (n *normalizer) checkFunction(fn *ir.FnSymbol) {
	if fn.Kind == ir.FnIterator {
		return
	}
	for _, x := range ir.CollectTop(fn.Body) {
		if rs, ok := x.(*ir.ReturnStmt); ok && rs.Yield {
			n.fatalf(rs, "yield in function %s, which is not an iterator", fn.Name())
		}
	}
}

// checkIterator verifies the assumptions iterator lowering relies on:
//
//   - every yield has a value and is a statement of a block,
//   - plain returns do not return a value,
//   - iterators do not define nested iterators,
//   - every local has a declared type or an initializer.
func (n *normalizer) checkIterator(fn *ir.FnSymbol) {
	for _, x := range ir.CollectTop(fn.Body) {
		switch x := x.(type) {
		case *ir.ReturnStmt:
			switch {
			case x.Yield && x.Expr == nil:
				n.fatalf(x, "yield without a value in iterator %s", fn.Name())
			case x.Yield:
				if _, ok := x.Parent().(*ir.BlockStmt); !ok {
					n.fatalf(x, "yield is not a statement in iterator %s", fn.Name())
				}
			case x.Expr != nil:
				n.fatalf(x, "iterator %s returns a value", fn.Name())
			}
		case *ir.FnSymbol:
			if x.Kind == ir.FnIterator {
				n.fatalf(x, "not implemented: iterator %s nested in iterator %s", x.Name(), fn.Name())
			}
		case *ir.DefExpr:
			if v, ok := x.Sym.(*ir.VarSymbol); ok && !v.CompilerTemp && x.Init == nil && x.ExprType == nil {
				n.fatalf(x, "local %s of iterator %s has neither a type nor an initializer", v.Name(), fn.Name())
			}
		}
	}
}
