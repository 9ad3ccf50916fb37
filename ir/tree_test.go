package ir

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func names(list []Expr) []string {
	var out []string
	for _, e := range list {
		switch e := e.(type) {
		case *DefExpr:
			out = append(out, "def "+e.Sym.Name())
		case *CallExpr:
			out = append(out, "call "+e.Name())
		case *ReturnStmt:
			out = append(out, "return")
		default:
			out = append(out, "?")
		}
	}
	return out
}

func TestSurgery(t *testing.T) {
	for _, test := range []struct {
		name   string
		edit   func(b *BlockStmt)
		expect []string
	}{
		{
			name:   "insert before",
			edit:   func(b *BlockStmt) { InsertBefore(b.Body[1], Call("x")) },
			expect: []string{"call a", "call x", "call b", "call c"},
		},
		{
			name:   "insert after last",
			edit:   func(b *BlockStmt) { InsertAfter(b.Body[2], Call("x")) },
			expect: []string{"call a", "call b", "call c", "call x"},
		},
		{
			name:   "remove",
			edit:   func(b *BlockStmt) { Remove(b.Body[0]) },
			expect: []string{"call b", "call c"},
		},
		{
			name:   "replace",
			edit:   func(b *BlockStmt) { Replace(b.Body[1], NewReturn(nil)) },
			expect: []string{"call a", "return", "call c"},
		},
		{
			name: "move to head",
			edit: func(b *BlockStmt) {
				c := Remove(b.Body[2])
				b.InsertAtHead(c)
			},
			expect: []string{"call c", "call a", "call b"},
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			b := NewBlock(Call("a"), Call("b"), Call("c"))
			test.edit(b)
			if diff := cmp.Diff(test.expect, names(b.Body)); diff != "" {
				t.Errorf("unexpected statements (-want +got):\n%s", diff)
			}
			if err := Verify(b); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestInsertAttachedPanics(t *testing.T) {
	b := NewBlock(Call("a"))
	defer func() {
		if recover() == nil {
			t.Error("inserting an attached node did not panic")
		}
	}()
	NewBlock(b.Body[0])
}

func TestRemoveArgument(t *testing.T) {
	x := NewSym(NewVar("x", nil))
	call := Call("f", NewInt(1), x, NewInt(2))
	Remove(x)
	if len(call.Args) != 2 || x.Parent() != nil {
		t.Fatalf("argument not removed: %d args, parent %v", len(call.Args), x.Parent())
	}
}

func TestCopyRemapsLocalSymbols(t *testing.T) {
	outer := NewVar("outer", nil)
	fn := NewFn("f")
	n := NewArg(IntentBlank, "n", Int(0))
	fn.InsertFormalAtTail(NewDef(n, nil, nil))
	local := NewVar("i", nil)
	l := NewLabel("top")
	fn.InsertAtTail(
		NewDef(local, NewSym(n), nil),
		NewDef(l, nil, nil),
		Call("=", NewSym(local), Call("+", NewSym(local), NewSym(outer))),
		NewGoto(l),
	)

	m := Map{}
	cp := Copy(fn, m)

	if cp == fn || m[fn] != cp {
		t.Fatal("function symbol not copied")
	}
	if m[n] == nil || m[local] == nil || m[l] == nil {
		t.Fatalf("missing mapping: %v", m)
	}
	for _, se := range CollectOf[*SymExpr](cp) {
		switch se.Sym {
		case n, local:
			t.Errorf("copy still references original %s", se.Sym.Name())
		}
	}
	if got := len(Uses(cp, outer)); got != 1 {
		t.Errorf("outer symbol uses in copy: got %d, want 1", got)
	}
	if g := CollectOf[*GotoStmt](cp)[0]; g.Label != m[l] {
		t.Error("goto label not remapped")
	}
	if err := Verify(cp); err != nil {
		t.Error(err)
	}
	if err := Verify(fn); err != nil {
		t.Error(err)
	}
}

func TestCollectTop(t *testing.T) {
	inner := NewFn("inner")
	inner.InsertAtTail(Call("hidden"))
	fn := NewFn("outer")
	fn.InsertAtTail(NewDef(inner, nil, nil), Call("visible"))

	var calls []string
	for _, n := range CollectTop(fn) {
		if c, ok := n.(*CallExpr); ok {
			calls = append(calls, c.Name())
		}
	}
	if diff := cmp.Diff([]string{"visible"}, calls); diff != "" {
		t.Errorf("unexpected calls (-want +got):\n%s", diff)
	}
}

func TestStmtExpr(t *testing.T) {
	x := NewSym(NewVar("x", nil))
	inner := Call("+", x, NewInt(1))
	stmt := Call("f", inner)
	NewBlock(stmt)
	if got := StmtExpr(x); got != stmt {
		t.Errorf("StmtExpr: got %v, want the enclosing call", got)
	}

	arg := NewArg(IntentBlank, "a", nil)
	dflt := Call("g")
	fn := NewFn("h")
	fn.InsertFormalAtTail(NewDef(arg, dflt, nil))
	if got := StmtExpr(dflt); got != nil {
		t.Errorf("StmtExpr of a formal default: got %T, want nil", got)
	}
}

func TestVerifyDetectsSharedNode(t *testing.T) {
	b := NewBlock(Call("a"))
	b.Body = append(b.Body, b.Body[0])
	if err := Verify(b); err == nil {
		t.Error("shared node not detected")
	}
}

func TestBuiltin(t *testing.T) {
	for _, test := range []struct {
		name   string
		expect Type
	}{
		{"int", Int(64)},
		{"int(32)", Int(32)},
		{"int8", Int(8)},
		{"uint", Numeric(KindUInt, 64)},
		{"complex", Numeric(KindComplex, 128)},
		{"bool", Bool},
		{"string", String},
	} {
		t.Run(test.name, func(t *testing.T) {
			ts := Builtin(test.name)
			if ts == nil {
				t.Fatal("not found")
			}
			if ts.Type != test.expect {
				t.Errorf("got %s, want %s", ts.Type, test.expect)
			}
		})
	}
	if Builtin("int(7)") != nil {
		t.Error("invalid width accepted")
	}
}

func TestPrint(t *testing.T) {
	mod := NewModule("demo")
	fn := NewFn("count")
	fn.Kind = FnIterator
	n := NewArg(IntentBlank, "n", Int(0))
	fn.InsertFormalAtTail(NewDef(n, nil, nil))
	i := NewVar("i", nil)
	fn.InsertAtTail(
		NewDef(i, NewInt(0), nil),
		NewWhile(Call("<", NewSym(i), NewSym(n)), NewBlock(
			NewYield(Call("*", NewSym(i), Call("+", NewSym(i), NewInt(1)))),
			Call("=", NewSym(i), Call("+", NewSym(i), NewInt(1))),
		)),
	)
	mod.Block.InsertAtTail(NewDef(fn, nil, nil))

	out := Sprint(mod)
	for _, want := range []string{
		"package demo",
		"func count(n int(64)) iter[?]",
		"var i = 0",
		"for i < n {",
		"yield(i * (i + 1))",
		"i = i + 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output does not contain %q:\n%s", want, out)
		}
	}
}

func TestPrintLabels(t *testing.T) {
	l := NewLabel("done")
	b := NewBlock(
		NewBlock(NewGoto(l)),
		NewDef(l, nil, nil),
		NewReturn(NewSym(MethodToken)),
	)
	out := Sprint(b)
	for _, want := range []string{"goto done", "done:", "return _mt"} {
		if !strings.Contains(out, want) {
			t.Errorf("output does not contain %q:\n%s", want, out)
		}
	}
}
