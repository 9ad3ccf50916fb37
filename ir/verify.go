package ir

import (
	"errors"
	"fmt"
)

// Verify checks the structural invariants of the tree rooted at n: every
// child points back at its parent, no node is reachable twice, and every
// reference designates a symbol.
func Verify(n Node) error {
	var errs []error
	seen := make(map[Node]bool)
	var visit func(Node)
	visit = func(x Node) {
		if seen[x] {
			errs = append(errs, fmt.Errorf("%s: %T reachable from two parents", x.Pos(), x))
			return
		}
		seen[x] = true
		switch x := x.(type) {
		case *SymExpr:
			if isNil(x.Sym) {
				errs = append(errs, fmt.Errorf("%s: reference to nil symbol", x.Pos()))
			}
		case *GotoStmt:
			if x.Label == nil {
				errs = append(errs, fmt.Errorf("%s: goto without label", x.Pos()))
			}
		case *CallExpr:
			if x.Prim == PrimNone && x.Base == nil {
				errs = append(errs, fmt.Errorf("%s: call without base", x.Pos()))
			}
		case *DefExpr:
			if isNil(x.Sym) {
				errs = append(errs, fmt.Errorf("%s: definition without symbol", x.Pos()))
			}
		}
		for _, c := range Children(x) {
			if c.Parent() != x {
				errs = append(errs, fmt.Errorf("%s: %T has parent %T, expected %T", c.Pos(), c, c.Parent(), x))
			}
			visit(c)
		}
	}
	visit(n)
	return errors.Join(errs...)
}
