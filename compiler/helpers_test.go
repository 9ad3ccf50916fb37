package compiler

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/stealthrocket/iterlower/eval"
	"github.com/stealthrocket/iterlower/ir"
	"github.com/stealthrocket/iterlower/irfile"
)

func parse(t *testing.T, src string) *ir.ModuleSymbol {
	t.Helper()
	mod, err := irfile.Parse("test.yaml", []byte(src))
	if err != nil {
		t.Fatal(err)
	}
	return mod
}

func normalize(t *testing.T, src string) *ir.ModuleSymbol {
	t.Helper()
	mod := parse(t, src)
	if err := Normalize(mod, WithVerify(true)); err != nil {
		t.Fatal(err)
	}
	return mod
}

func interp(t *testing.T, mod *ir.ModuleSymbol) *eval.Interp {
	t.Helper()
	in, err := eval.New(mod, eval.WithStepLimit(100_000))
	if err != nil {
		t.Fatal(err)
	}
	return in
}

// iterate calls the factory fn and walks the returned iterator, returning
// the values produced and every cursor seen, the exhausted one included.
func iterate(t *testing.T, mod *ir.ModuleSymbol, fn string, args ...any) (values []any, cursors []int64) {
	t.Helper()
	in := interp(t, mod)
	v, err := in.Call(fn, args...)
	if err != nil {
		t.Fatal(err)
	}
	it, err := in.Iterator(v)
	if err != nil {
		t.Fatal(err)
	}
	c, err := it.HeadCursor()
	for ; err == nil; c, err = it.NextCursor(c) {
		cursors = append(cursors, c)
		valid, err := it.ValidCursor(c)
		if err != nil {
			t.Fatal(err)
		}
		if !valid {
			return values, cursors
		}
		if len(cursors) > 1000 {
			t.Fatal("iterator does not terminate")
		}
		x, err := it.Value(c)
		if err != nil {
			t.Fatal(err)
		}
		values = append(values, x)
	}
	t.Fatal(err)
	return nil, nil
}

func lookupFn(t *testing.T, mod *ir.ModuleSymbol, name string) *ir.FnSymbol {
	t.Helper()
	for _, fn := range ir.CollectOf[*ir.FnSymbol](mod) {
		if fn.Name() == name {
			return fn
		}
	}
	t.Fatalf("function %s not found", name)
	return nil
}

// sexpr renders a tree compactly: calls as name(args), primitives by
// their name, statements by their keyword.
func sexpr(n ir.Node) string {
	switch n := n.(type) {
	case nil:
		return "<nil>"
	case *ir.DefExpr:
		return "def " + n.Sym.Name()
	case *ir.SymExpr:
		return n.Sym.Name()
	case *ir.NameExpr:
		return n.Name
	case *ir.Lit:
		switch n.Kind {
		case ir.IntLit:
			return strconv.FormatInt(n.Int, 10)
		case ir.StringLit:
			return strconv.Quote(n.Str)
		}
		return strconv.FormatBool(n.Bool)
	case *ir.CallExpr:
		args := make([]string, len(n.Args))
		for i, a := range n.Args {
			args[i] = sexpr(a)
		}
		base := n.Prim.String()
		if n.Prim == ir.PrimNone {
			base = sexpr(n.Base)
		}
		return base + "(" + strings.Join(args, ", ") + ")"
	case *ir.CondStmt:
		return "if " + sexpr(n.Cond)
	case *ir.WhileStmt:
		return "while " + sexpr(n.Cond)
	case *ir.GotoStmt:
		return "goto " + n.Label.Name()
	case *ir.ReturnStmt:
		kw := "return"
		if n.Yield {
			kw = "yield"
		}
		if n.Expr == nil {
			return kw
		}
		return kw + " " + sexpr(n.Expr)
	case *ir.BlockStmt:
		return fmt.Sprintf("{%d}", len(n.Body))
	}
	return fmt.Sprintf("%T", n)
}

func sexprs(list []ir.Expr) []string {
	out := make([]string, len(list))
	for i, e := range list {
		out[i] = sexpr(e)
	}
	return out
}
