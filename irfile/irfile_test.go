package irfile_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/stealthrocket/iterlower/ir"
	"github.com/stealthrocket/iterlower/irfile"
)

const squares = `module: demo
decls:
  - fn: squares
    iterator: true
    formals: [{name: n, type: int}]
    returns: int
    body:
      - var: i
        init: "1"
      - while: i <= n
        do:
          - yield: i * i
          - assign: [i, i + 1]
`

func parse(t *testing.T, src string) *ir.ModuleSymbol {
	t.Helper()
	mod, err := irfile.Parse("test.yaml", []byte(src))
	if err != nil {
		t.Fatal(err)
	}
	return mod
}

func TestParse(t *testing.T) {
	mod := parse(t, squares)
	out := ir.Sprint(mod)
	for _, want := range []string{
		"package demo",
		"func squares(n int(64)) iter[int(64)]",
		"var i = 1",
		"for i <= n {",
		"yield(i * i)",
		"i = i + 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output does not contain %q:\n%s", want, out)
		}
	}

	fn := mod.Lookup("squares").(*ir.FnSymbol)
	if fn.Kind != ir.FnIterator {
		t.Error("squares is not an iterator")
	}
	n := fn.Formal(0)
	if uses := ir.Uses(fn.Body, n); len(uses) != 1 {
		t.Errorf("got %d uses of n", len(uses))
	}
	yield := ir.CollectOf[*ir.ReturnStmt](fn)[0]
	if !yield.Yield || yield.Pos().Line != 12 || yield.Pos().File != "test.yaml" {
		t.Errorf("yield at %s", yield.Pos())
	}
	if err := ir.Verify(mod); err != nil {
		t.Error(err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "squares.yaml")
	if err := os.WriteFile(path, []byte(squares), 0o644); err != nil {
		t.Fatal(err)
	}
	mod, err := irfile.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if mod.Name() != "demo" || mod.Pos().File != path {
		t.Errorf("loaded module %s at %s", mod.Name(), mod.Pos())
	}
	if _, err := irfile.Load(filepath.Join(t.TempDir(), "missing.yaml")); !os.IsNotExist(err) {
		t.Errorf("missing file: got %v", err)
	}
}

func TestDefaultModuleName(t *testing.T) {
	if name := parse(t, "decls: []").Name(); name != "main" {
		t.Errorf("got %s", name)
	}
}

func TestMethod(t *testing.T) {
	mod := parse(t, `
decls:
  - class: Range
    fields:
      - {name: lo, type: int}
      - {name: hi, type: int, init: "10"}
  - fn: size
    method: Range
    body:
      - return: this.hi - this.lo
`)
	class := mod.Lookup("Range").(*ir.TypeSymbol).Type.(*ir.ClassType)
	fn := mod.Lookup("size").(*ir.FnSymbol)
	if len(class.Methods) != 1 || class.Methods[0] != fn {
		t.Errorf("got %d methods", len(class.Methods))
	}
	if !fn.IsMethod || fn.This != ir.Symbol(fn.Formal(1)) {
		t.Error("receiver not set")
	}
	if fn.Formal(0).Type != ir.Type(ir.MethodTokenType) || fn.Formal(1).Type != ir.Type(class) {
		t.Error("unexpected method formals")
	}
	hi := class.Field("hi")
	if hi == nil || hi.Type != ir.Type(ir.Int(64)) {
		t.Fatal("field hi not typed")
	}
	if init, ok := ir.DefOf(hi).Init.(*ir.Lit); !ok || init.Int != 10 {
		t.Error("field hi has no initializer")
	}
}

func TestFormals(t *testing.T) {
	mod := parse(t, `
decls:
  - fn: f
    formals:
      - {name: a, type: int, query: w}
      - {name: b, intent: param, type: bool, default: "true"}
      - {name: c, type: int(16)}
    body:
      - return: w
`)
	fn := mod.Lookup("f").(*ir.FnSymbol)
	a := fn.Formals[0]
	query, ok := a.ExprType.(*ir.CallExpr)
	if !ok || query.Name() != "int" {
		t.Fatalf("type of a is not a width query")
	}
	w, ok := query.Args[0].(*ir.DefExpr)
	if !ok || w.Sym.Name() != "w" {
		t.Fatal("query variable not defined")
	}
	if ret := ir.CollectOf[*ir.ReturnStmt](fn)[0]; ret.Expr.(*ir.SymExpr).Sym != w.Sym {
		t.Error("query variable not in scope of the body")
	}

	b := fn.Formal(1)
	if b.Intent != ir.IntentParam {
		t.Errorf("intent of b: got %v", b.Intent)
	}
	if lit, ok := fn.Formals[1].Init.(*ir.Lit); !ok || lit.Kind != ir.BoolLit || !lit.Bool {
		t.Error("default of b not parsed")
	}
	if se, ok := fn.Formals[2].ExprType.(*ir.SymExpr); !ok || se.Sym != ir.Symbol(ir.Int(16).Symbol()) {
		t.Error("type of c is not int(16)")
	}
}

func TestStatements(t *testing.T) {
	mod := parse(t, `
decls:
  - class: P
  - fn: helper
  - fn: f
    formals: [{name: x}]
    body:
      - const: c
        init: x
      - label: top
      - if: x > c
        then:
          - goto: top
        else:
          - return: ""
      - block:
          - expr: helper()
      - func:
          fn: g
          body:
            - return: typeof(x)
      - expr: g()
      - return: P()
`)
	fn := mod.Lookup("f").(*ir.FnSymbol)
	var kinds []string
	for _, stmt := range fn.Body.Body {
		switch stmt := stmt.(type) {
		case *ir.DefExpr:
			kinds = append(kinds, "def "+stmt.Sym.Name())
		case *ir.CondStmt:
			kinds = append(kinds, "if")
		case *ir.BlockStmt:
			kinds = append(kinds, "block")
		case *ir.CallExpr:
			kinds = append(kinds, "call")
		case *ir.ReturnStmt:
			kinds = append(kinds, "return")
		}
	}
	want := []string{"def c", "def top", "if", "block", "def g", "call", "return"}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("unexpected statements (-want +got):\n%s", diff)
	}

	c := fn.Body.Body[0].(*ir.DefExpr).Sym.(*ir.VarSymbol)
	if c.Const != ir.VarConst {
		t.Error("c is not const")
	}
	cond := fn.Body.Body[2].(*ir.CondStmt)
	if g := cond.Then.Body[0].(*ir.GotoStmt); g.Label != fn.Body.Body[1].(*ir.DefExpr).Sym {
		t.Error("goto does not target the label")
	}
	if ret := cond.Else.Body[0].(*ir.ReturnStmt); ret.Expr != nil || ret.Yield {
		t.Error("void return expected")
	}

	g := fn.Body.Body[4].(*ir.DefExpr).Sym.(*ir.FnSymbol)
	typeof := ir.CollectOf[*ir.ReturnStmt](g)[0].Expr.(*ir.CallExpr)
	if !typeof.IsPrim(ir.PrimTypeof) || typeof.Args[0].(*ir.SymExpr).Sym != ir.Symbol(fn.Formal(0)) {
		t.Error("nested function does not see the enclosing formal")
	}
	if call := fn.Body.Body[5].(*ir.CallExpr); !call.IsNamed("g") {
		t.Error("nested function not callable by name")
	}
	ctor := fn.Body.Last().(*ir.ReturnStmt).Expr.(*ir.CallExpr)
	if se, ok := ctor.Base.(*ir.SymExpr); !ok || se.Sym.Name() != "P" {
		t.Error("class call does not refer to the class")
	}
}

func TestExpressions(t *testing.T) {
	mod := parse(t, `
decls:
  - class: P
    fields: [{name: x, type: int}]
  - fn: f
    formals: [{name: p, type: P}, {name: k}]
    body:
      - expr: _init(int(8))
      - expr: p.move(-k, !true)
      - expr: '(k + 1) * 2 == 4 || "s" != "t"'
      - assign: [p.x, _st]
      - expr: g(_mt, p)
`)
	fn := mod.Lookup("f").(*ir.FnSymbol)
	got := make([]string, len(fn.Body.Body))
	for i, stmt := range fn.Body.Body {
		got[i] = ir.Sprint(stmt)
	}
	want := []string{
		"_init(int(8))",
		"p.move(-k, !true)",
		`(k+1)*2 == 4 || "s" != "t"`,
		"p.x = _st",
		"g(_mt, p)",
	}
	compact := strings.NewReplacer(" ", "", "\n", "")
	for i := range want {
		if !strings.Contains(compact.Replace(got[i]), compact.Replace(want[i])) {
			t.Errorf("statement %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestErrors(t *testing.T) {
	for _, test := range []struct {
		name string
		src  string
		err  string
	}{
		{
			name: "syntax",
			src:  "decls: [",
			err:  "test.yaml: yaml:",
		},
		{
			name: "empty declaration",
			src:  "decls: [{pragmas: [x]}]",
			err:  "test.yaml:1: declaration has no fn, class or var key",
		},
		{
			name: "class redeclared",
			src: `
decls:
  - class: A
  - class: A
`,
			err: "test.yaml:4: class A redeclared",
		},
		{
			name: "undefined name",
			src: `
decls:
  - fn: f
    body:
      - return: zz
`,
			err: `test.yaml:5: "zz": undefined: zz`,
		},
		{
			name: "method of undefined class",
			src: `
decls:
  - fn: f
    method: Nope
`,
			err: "test.yaml:3: method of undefined class Nope",
		},
		{
			name: "unknown intent",
			src: `
decls:
  - fn: f
    formals: [{name: x, intent: inout}]
`,
			err: `formal x: unknown intent "inout"`,
		},
		{
			name: "query on non-numeric type",
			src: `
decls:
  - fn: f
    formals: [{name: x, type: bool, query: w}]
`,
			err: `formal x: width query on non-numeric type "bool"`,
		},
		{
			name: "invalid width",
			src: `
decls:
  - fn: f
    body:
      - var: x
        type: int(7)
`,
			err: "invalid type int(7)",
		},
		{
			name: "undefined label",
			src: `
decls:
  - fn: f
    body:
      - goto: out
`,
			err: "function f: label out not defined",
		},
		{
			name: "label redefined",
			src: `
decls:
  - fn: f
    body:
      - label: l
      - label: l
`,
			err: "test.yaml:6: label l redefined",
		},
		{
			name: "empty statement",
			src: `
decls:
  - fn: f
    body:
      - then: []
`,
			err: "test.yaml:5: empty statement",
		},
		{
			name: "malformed assignment",
			src: `
decls:
  - fn: f
    body:
      - assign: [x]
`,
			err: "assign takes a target and a value",
		},
		{
			name: "unsupported expression",
			src: `
decls:
  - fn: f
    body:
      - expr: a[0]
`,
			err: "unsupported expression *ast.IndexExpr",
		},
		{
			name: "unnamed nested function",
			src: `
decls:
  - fn: f
    body:
      - func: {iterator: true}
`,
			err: "nested function has no name",
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			_, err := irfile.Parse("test.yaml", []byte(test.src))
			if err == nil {
				t.Fatal("no error")
			}
			if !strings.Contains(err.Error(), test.err) {
				t.Errorf("got %q, want %q", err, test.err)
			}
		})
	}
}
