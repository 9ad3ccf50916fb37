package compiler

import (
	"github.com/stealthrocket/iterlower/ir"
)

// applyGettersSetters rewrites the member accesses of fn into method
// calls. A read .(x, "f") becomes f(_mt, x), tagged as partial when it is
// itself the base of a call so that the call's arguments complete it. An
// assignment =(.(x, "f"), y) becomes f(_mt, x, _st, y), and an assignment
// to any other call =(g(a), y) becomes g(a, _st, y).
//
// Calls of nested functions are rewritten when those functions are.
func (n *normalizer) applyGettersSetters(fn *ir.FnSymbol) {
	for _, x := range ir.CollectPostorder(fn) {
		call, ok := x.(*ir.CallExpr)
		if !ok || call.Parent() == nil || ir.EnclosingFn(call) != fn {
			continue
		}
		switch {
		case call.IsNamed("."):
			if parent, ok := call.Parent().(*ir.CallExpr); ok && parent.IsNamed("=") && parent.Arg(0) == ir.Expr(call) {
				continue
			}
			method := n.memberName(call)
			getter := ir.Call(method, ir.NewSym(ir.MethodToken), ir.Remove(call.Args[0]))
			getter.MethodTag = true
			ir.Replace(call, getter)
			if parent, ok := getter.Parent().(*ir.CallExpr); ok && parent.Base == ir.Expr(getter) {
				getter.PartialTag = true
			}

		case call.IsNamed("="):
			lhs, ok := call.Arg(0).(*ir.CallExpr)
			if !ok || lhs.Prim != ir.PrimNone {
				continue
			}
			rhs := ir.Remove(call.Args[1])
			if lhs.IsNamed(".") {
				method := n.memberName(lhs)
				setter := ir.Call(method,
					ir.NewSym(ir.MethodToken),
					ir.Remove(lhs.Args[0]),
					ir.NewSym(ir.SetterToken),
					rhs,
				)
				ir.Replace(call, setter)
			} else {
				ir.Remove(lhs)
				ir.Replace(call, lhs)
				lhs.InsertAtTail(ir.NewSym(ir.SetterToken), rhs)
			}
		}
	}
}

func (n *normalizer) memberName(call *ir.CallExpr) string {
	name, ok := ir.IsString(call.Arg(1))
	if !ok {
		n.fatalf(call, "No method name for getter or setter")
	}
	return name
}
