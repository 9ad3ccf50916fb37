package ir

// Walk traverses the tree rooted at n in pre-order. Children of a node
// are skipped when f returns false for it.
func Walk(n Node, f func(Node) bool) {
	if !f(n) {
		return
	}
	for _, c := range Children(n) {
		Walk(c, f)
	}
}

// Collect returns every node of the tree rooted at n in pre-order. The
// result is a snapshot: the tree may be rewritten while iterating it.
func Collect(n Node) []Node {
	var nodes []Node
	Walk(n, func(x Node) bool {
		nodes = append(nodes, x)
		return true
	})
	return nodes
}

// CollectPostorder returns every node of the tree rooted at n, children
// before their parents.
func CollectPostorder(n Node) []Node {
	var nodes []Node
	var visit func(Node)
	visit = func(x Node) {
		for _, c := range Children(x) {
			visit(c)
		}
		nodes = append(nodes, x)
	}
	visit(n)
	return nodes
}

// CollectTop is like Collect but does not descend into functions nested
// in n. The nested function symbols themselves are included.
func CollectTop(n Node) []Node {
	var nodes []Node
	Walk(n, func(x Node) bool {
		nodes = append(nodes, x)
		_, isFn := x.(*FnSymbol)
		return !isFn || x == n
	})
	return nodes
}

// CollectOf returns the nodes of type T in the tree rooted at n, in
// pre-order.
func CollectOf[T Node](n Node) []T {
	var out []T
	Walk(n, func(x Node) bool {
		if t, ok := x.(T); ok {
			out = append(out, t)
		}
		return true
	})
	return out
}

// Uses returns the references to s in the tree rooted at n.
func Uses(n Node, s Symbol) []*SymExpr {
	var uses []*SymExpr
	Walk(n, func(x Node) bool {
		if se, ok := x.(*SymExpr); ok && se.Sym == s {
			uses = append(uses, se)
		}
		return true
	})
	return uses
}

// Map associates symbols with their replacements.
type Map map[Symbol]Symbol

// UpdateSymbols rewrites every reference in the tree rooted at n
// according to m.
func UpdateSymbols(n Node, m Map) {
	Walk(n, func(x Node) bool {
		switch x := x.(type) {
		case *SymExpr:
			if s, ok := m[x.Sym]; ok {
				x.Sym = s
			}
		case *GotoStmt:
			if l, ok := m[x.Label].(*LabelSymbol); ok {
				x.Label = l
			}
		case *FnSymbol:
			if x.This != nil {
				if s, ok := m[x.This]; ok {
					x.This = s
				}
			}
		}
		return true
	})
}
