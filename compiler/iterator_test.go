package compiler

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/stealthrocket/iterlower/eval"
	"github.com/stealthrocket/iterlower/ir"
)

func TestIteratorLowering(t *testing.T) {
	for _, test := range []struct {
		name    string
		src     string
		fn      string
		args    []any
		values  []any
		cursors []int64
	}{
		{
			name: "squares",
			src: `
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
`,
			fn:      "squares",
			args:    []any{int64(4)},
			values:  []any{int64(1), int64(4), int64(9), int64(16)},
			cursors: []int64{1, 1, 1, 1, 2},
		},
		{
			name: "three yields",
			src: `
decls:
  - fn: three
    iterator: true
    body:
      - yield: "1"
      - yield: "2"
      - yield: "3"
`,
			fn:      "three",
			values:  []any{int64(1), int64(2), int64(3)},
			cursors: []int64{1, 2, 3, 4},
		},
		{
			name: "no yield",
			src: `
decls:
  - fn: nothing
    iterator: true
    body:
      - var: x
        init: "0"
`,
			fn:      "nothing",
			cursors: []int64{1},
		},
		{
			name: "empty range",
			src: `
decls:
  - fn: upto
    iterator: true
    formals: [{name: n, type: int}]
    body:
      - var: i
        type: int
      - while: i < n
        do:
          - yield: i
          - assign: [i, i + 1]
`,
			fn:      "upto",
			args:    []any{int64(0)},
			cursors: []int64{2},
		},
		{
			name: "even squares",
			src: `
decls:
  - fn: evens
    iterator: true
    formals: [{name: n, type: int}]
    returns: int
    body:
      - var: i
        init: "1"
      - while: i <= n
        do:
          - if: i % 2 == 0
            then:
              - yield: i * i
          - assign: [i, i + 1]
`,
			fn:      "evens",
			args:    []any{int64(6)},
			values:  []any{int64(4), int64(16), int64(36)},
			cursors: []int64{1, 1, 1, 2},
		},
		{
			name: "nested loops",
			src: `
decls:
  - fn: pairs
    iterator: true
    formals: [{name: n, type: int}]
    body:
      - var: i
        init: "0"
      - while: i < n
        do:
          - var: j
            init: "0"
          - while: j < i
            do:
              - yield: i*10 + j
              - assign: [j, j + 1]
          - assign: [i, i + 1]
`,
			fn:      "pairs",
			args:    []any{int64(3)},
			values:  []any{int64(10), int64(20), int64(21)},
			cursors: []int64{1, 1, 1, 2},
		},
		{
			name: "fizzbuzz",
			src: `
decls:
  - fn: fizzbuzz
    iterator: true
    formals: [{name: n, type: int}]
    body:
      - var: i
        init: "1"
      - while: i <= n
        do:
          - if: i % 15 == 0
            then:
              - yield: '"fizzbuzz"'
            else:
              - if: i % 3 == 0
                then:
                  - yield: '"fizz"'
                else:
                  - if: i % 5 == 0
                    then:
                      - yield: '"buzz"'
                    else:
                      - yield: i
          - assign: [i, i + 1]
`,
			fn:      "fizzbuzz",
			args:    []any{int64(6)},
			values:  []any{int64(1), int64(2), "fizz", int64(4), "buzz", "fizz"},
			cursors: []int64{4, 4, 2, 4, 3, 2, 5},
		},
		{
			name: "early return",
			src: `
decls:
  - fn: until
    iterator: true
    formals: [{name: n, type: int}]
    body:
      - var: i
        init: "0"
      - while: "true"
        do:
          - if: i == n
            then:
              - return: ""
          - yield: i
          - assign: [i, i + 1]
`,
			fn:      "until",
			args:    []any{int64(3)},
			values:  []any{int64(0), int64(1), int64(2)},
			cursors: []int64{1, 1, 1, 2},
		},
		{
			name: "default argument",
			src: `
decls:
  - fn: countdown
    iterator: true
    formals: [{name: from, type: int, default: "3"}]
    body:
      - var: k
        init: from
      - while: k > 0
        do:
          - yield: k
          - assign: [k, k - 1]
`,
			fn:      "countdown",
			values:  []any{int64(3), int64(2), int64(1)},
			cursors: []int64{1, 1, 1, 2},
		},
		{
			name: "local typed from formal",
			src: `
decls:
  - fn: doubles
    iterator: true
    formals: [{name: n, type: int}]
    body:
      - var: d
        init: n * 2
      - yield: d
      - yield: d + 1
`,
			fn:      "doubles",
			args:    []any{int64(5)},
			values:  []any{int64(10), int64(11)},
			cursors: []int64{1, 2, 3},
		},
		{
			name: "nested helper",
			src: `
decls:
  - fn: outer
    iterator: true
    formals: [{name: n, type: int}]
    body:
      - func:
          fn: helper
          body:
            - return: n + 1
      - yield: helper()
      - yield: helper() * 2
`,
			fn:      "outer",
			args:    []any{int64(4)},
			values:  []any{int64(5), int64(10)},
			cursors: []int64{1, 2, 3},
		},
		{
			name: "nested helpers calling each other",
			src: `
decls:
  - fn: scaled
    iterator: true
    formals: [{name: n, type: int}]
    body:
      - var: i
        init: "0"
      - func:
          fn: twice
          formals: [{name: k, type: int}]
          body:
            - return: k * 2
      - func:
          fn: step
          body:
            - return: twice(i) + n
      - while: i < 3
        do:
          - yield: step()
          - assign: [i, i + 1]
`,
			fn:      "scaled",
			args:    []any{int64(10)},
			values:  []any{int64(10), int64(12), int64(14)},
			cursors: []int64{1, 1, 1, 2},
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			mod := normalize(t, test.src)
			values, cursors := iterate(t, mod, test.fn, test.args...)
			if diff := cmp.Diff(test.values, values); diff != "" {
				t.Errorf("unexpected values (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(test.cursors, cursors); diff != "" {
				t.Errorf("unexpected cursors (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIteratorClass(t *testing.T) {
	mod := parse(t, `
module: demo
decls:
  - fn: squares
    iterator: true
    formals: [{name: n, type: int}]
    returns: int
    body:
      - var: i
        init: "1"
      - var: total
        type: int
      - while: i <= n
        do:
          - yield: i * i
          - assign: [total, total + i]
          - assign: [i, i + 1]
`)
	before := make(map[ir.Symbol]bool)
	iter := lookupFn(t, mod, "squares")
	for _, def := range ir.CollectOf[*ir.DefExpr](iter) {
		switch def.Sym.(type) {
		case *ir.ArgSymbol, *ir.VarSymbol:
			before[def.Sym] = true
		}
	}
	if err := Normalize(mod, WithVerify(true)); err != nil {
		t.Fatal(err)
	}

	ts, ok := mod.Lookup("_iterator_0_squares").(*ir.TypeSymbol)
	if !ok {
		t.Fatalf("iterator class not found:\n%s", ir.Sprint(mod))
	}
	class := ts.Type.(*ir.ClassType)
	if !class.IsIterator {
		t.Error("class is not tagged as an iterator")
	}

	var fields []string
	for _, def := range class.FieldDefs() {
		fields = append(fields, def.Sym.Name())
	}
	if diff := cmp.Diff([]string{"_0_n", "_1_i", "_2_total"}, fields); diff != "" {
		t.Errorf("unexpected fields (-want +got):\n%s", diff)
	}
	if got := sexpr(class.FieldDefs()[1].ExprType); got != "typeof(1)" {
		t.Errorf("deferred type of i: got %s", got)
	}
	if got := sexpr(class.FieldDefs()[2].ExprType); got != "int(64)" {
		t.Errorf("declared type of total: got %s", got)
	}

	var methods []string
	for _, m := range class.Methods {
		methods = append(methods, m.Name())
		if !m.IsMethod || !m.Global {
			t.Errorf("%s: not a global method", m.Name())
		}
		if m.This == nil || ir.TypeOf(m.This) != ir.Type(class) {
			t.Errorf("%s: receiver is not the iterator class", m.Name())
		}
	}
	want := []string{"getNextCursor", "getHeadCursor", "getElemType", "getValue", "isValidCursor"}
	if diff := cmp.Diff(want, methods); diff != "" {
		t.Errorf("unexpected methods (-want +got):\n%s", diff)
	}

	// Hoisting is lossless: the methods refer only to their own formals and
	// locals, and the original formals and locals survive only in the
	// factory, which forwards the formals to the constructor.
	for _, m := range class.Methods {
		for _, se := range ir.CollectOf[*ir.SymExpr](m) {
			if before[se.Sym] {
				t.Errorf("%s refers to %s from before lowering", m.Name(), se.Sym.Name())
			}
			switch se.Sym.(type) {
			case *ir.ArgSymbol, *ir.VarSymbol:
				def := ir.DefOf(se.Sym)
				if def == nil || ir.EnclosingFn(def) == nil {
					continue
				}
				if !definedIn(def, m) {
					t.Errorf("%s refers to %s defined in %s", m.Name(), se.Sym.Name(), ir.EnclosingFn(def).Name())
				}
			}
		}
	}
	for _, se := range ir.CollectOf[*ir.SymExpr](mod) {
		if before[se.Sym] && ir.EnclosingFn(se) != iter {
			t.Errorf("%s is referenced outside the factory", se.Sym.Name())
		}
	}

	// The class and its methods lead the module; the factory stays in
	// place and no longer is an iterator.
	var order []string
	for _, stmt := range mod.Block.Body {
		order = append(order, stmt.(*ir.DefExpr).Sym.Name())
	}
	wantOrder := []string{
		"isValidCursor",
		"getValue",
		"getElemType",
		"getHeadCursor",
		"getNextCursor",
		"_construct__iterator_0_squares",
		"_iterator_0_squares",
		"squares",
	}
	if diff := cmp.Diff(wantOrder, order); diff != "" {
		t.Errorf("unexpected module order (-want +got):\n%s", diff)
	}

	factory := lookupFn(t, mod, "squares")
	if factory.Kind != ir.FnFunction {
		t.Error("factory is still an iterator")
	}
	if got := sexpr(factory.RetExprType); got != "typeof(_construct__iterator_0_squares(n))" {
		t.Errorf("factory return type: got %s", got)
	}
	if got := lookupFn(t, mod, "isValidCursor").RetType; got != ir.Type(ir.Bool) {
		t.Errorf("isValidCursor returns %v", got)
	}
	if got := lookupFn(t, mod, "getNextCursor").RetType; got != ir.Type(ir.Int(64)) {
		t.Errorf("getNextCursor returns %v", got)
	}
	if next := lookupFn(t, mod, "getNextCursor"); next.RetExprType != nil {
		t.Error("getNextCursor kept the declared element type")
	}
	if value := lookupFn(t, mod, "getValue"); sexpr(value.RetExprType) != "int(64)" {
		t.Errorf("getValue return type: got %s", sexpr(value.RetExprType))
	}

	in := interp(t, mod)
	v, err := in.Call("squares", int64(3))
	if err != nil {
		t.Fatal(err)
	}
	it, err := in.Iterator(v)
	if err != nil {
		t.Fatal(err)
	}
	elem, err := it.ElemType()
	if err != nil {
		t.Fatal(err)
	}
	if elem != ir.Type(ir.Int(64)) {
		t.Errorf("element type: got %v", elem)
	}
}

func TestIteratorCursorMethodsAreIndependent(t *testing.T) {
	mod := normalize(t, `
decls:
  - fn: two
    iterator: true
    body:
      - yield: "7"
      - yield: "8"
`)
	seen := make(map[ir.Symbol]string)
	for _, name := range []string{"getNextCursor", "getValue", "isValidCursor"} {
		fn := lookupFn(t, mod, name)
		cursor := fn.Formal(2)
		if cursor == nil || cursor.Name() != "cursor" {
			t.Fatalf("%s: third formal is not the cursor", name)
		}
		if other, ok := seen[cursor]; ok {
			t.Errorf("%s shares its cursor with %s", name, other)
		}
		seen[cursor] = name
		for _, se := range ir.CollectOf[*ir.SymExpr](fn) {
			if se.Sym.Name() == "cursor" && se.Sym != ir.Symbol(cursor) {
				t.Errorf("%s refers to a foreign cursor", name)
			}
		}
	}

	in := interp(t, mod)
	v, err := in.Call("two")
	if err != nil {
		t.Fatal(err)
	}
	it, err := in.Iterator(v)
	if err != nil {
		t.Fatal(err)
	}
	for c, want := range map[int64]bool{0: true, 1: true, 2: true, 3: false} {
		got, err := it.ValidCursor(c)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("isValidCursor(%d): got %t, want %t", c, got, want)
		}
	}
	// Out of range cursors produce no value.
	if v, err := it.Value(5); err != nil || v != nil {
		t.Errorf("getValue(5): got %v, %v", v, err)
	}
}

// definedIn reports whether def is part of fn, directly or within one of
// its nested functions.
func definedIn(def *ir.DefExpr, fn *ir.FnSymbol) bool {
	for p := ir.Node(def); p != nil; p = p.Parent() {
		if p == ir.Node(fn) {
			return true
		}
	}
	return false
}

func TestIteratorReentrancy(t *testing.T) {
	mod := normalize(t, `
decls:
  - var: calls
    init: "0"
  - fn: tick
    body:
      - assign: [calls, calls + 1]
      - return: calls
  - fn: count
    body:
      - return: calls
  - fn: counted
    iterator: true
    body:
      - var: base
        type: int
        init: tick() * 10
      - yield: base + 1
      - yield: base + 2
`)
	in := interp(t, mod)
	v, err := in.Call("counted")
	if err != nil {
		t.Fatal(err)
	}
	it, err := in.Iterator(v)
	if err != nil {
		t.Fatal(err)
	}

	type step struct {
		op     string
		cursor int64
		want   any
	}
	cursor := int64(-1)
	for i, s := range []step{
		{"head", 0, int64(1)},
		{"value", 1, int64(11)},
		{"value", 1, int64(11)},
		{"next", 1, int64(2)},
		{"value", 2, int64(12)},
		{"value", 1, int64(11)},
		{"value", 2, int64(12)},
		{"next", 2, int64(3)},
	} {
		var got any
		switch s.op {
		case "head":
			cursor, err = it.HeadCursor()
			got = cursor
		case "next":
			cursor, err = it.NextCursor(s.cursor)
			got = cursor
		case "value":
			got, err = it.Value(s.cursor)
		}
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if got != s.want {
			t.Errorf("step %d: %s(%d) = %v, want %v", i, s.op, s.cursor, got, s.want)
		}
	}

	// The initializer of base ran once, when the body was entered.
	if n, err := in.Call("count"); err != nil || n != int64(1) {
		t.Errorf("initializer ran %v times (%v)", n, err)
	}

	// Starting over runs it again.
	if _, err := it.HeadCursor(); err != nil {
		t.Fatal(err)
	}
	if v, err := it.Value(1); err != nil || v != int64(21) {
		t.Errorf("value after restart: got %v, %v", v, err)
	}
}

func TestResumeTable(t *testing.T) {
	mod := normalize(t, `
decls:
  - fn: ab
    iterator: true
    body:
      - yield: '"a"'
      - yield: '"b"'
`)
	next := lookupFn(t, mod, "getNextCursor")
	var table *ir.BlockStmt
	for _, def := range ir.CollectOf[*ir.DefExpr](next) {
		if def.Sym.Name() == "return_0" {
			table, _ = def.Parent().(*ir.BlockStmt)
		}
	}
	if table == nil || table.Parent() != ir.Node(next.Body) {
		t.Fatalf("resume table not found:\n%s", ir.Sprint(next))
	}
	var targets []string
	for _, stmt := range table.Body {
		if cond, ok := stmt.(*ir.CondStmt); ok {
			targets = append(targets, sexpr(cond.Then.Body[0]))
		}
	}
	want := []string{"goto return_0", "goto return_1", "goto return_2"}
	if diff := cmp.Diff(want, targets); diff != "" {
		t.Errorf("unexpected resume targets (-want +got):\n%s", diff)
	}
	if last := sexpr(table.Last()); last != "def return_0" {
		t.Errorf("resume table ends with %s", last)
	}
}

func TestIteratorMethod(t *testing.T) {
	mod := normalize(t, `
decls:
  - class: Range
    fields:
      - {name: lo, type: int}
      - {name: hi, type: int}
  - fn: items
    method: Range
    iterator: true
    body:
      - var: i
        init: this.lo
      - while: i < this.hi
        do:
          - yield: i
          - assign: [i, i + 1]
  - fn: make
    formals: [{name: lo, type: int}, {name: hi, type: int}]
    body:
      - return: Range(lo, hi)
`)
	in := interp(t, mod)
	r, err := in.Call("make", int64(2), int64(5))
	if err != nil {
		t.Fatal(err)
	}
	v, err := in.Method(r, "items")
	if err != nil {
		t.Fatal(err)
	}
	it, err := in.Iterator(v)
	if err != nil {
		t.Fatal(err)
	}
	values, err := collect(it)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]any{int64(2), int64(3), int64(4)}, values); diff != "" {
		t.Errorf("unexpected values (-want +got):\n%s", diff)
	}
}

func collect(it *eval.Iterator) ([]any, error) {
	var values []any
	c, err := it.HeadCursor()
	for err == nil {
		var valid bool
		if valid, err = it.ValidCursor(c); err != nil || !valid {
			break
		}
		var v any
		if v, err = it.Value(c); err != nil {
			break
		}
		values = append(values, v)
		c, err = it.NextCursor(c)
	}
	return values, err
}

func TestIteratorNumbering(t *testing.T) {
	mod := normalize(t, `
decls:
  - fn: a
    iterator: true
    body: [{yield: "1"}]
  - fn: b
    iterator: true
    body: [{yield: "2"}]
`)
	for _, name := range []string{"_iterator_0_a", "_iterator_1_b"} {
		if mod.Lookup(name) == nil {
			t.Errorf("class %s not found", name)
		}
	}

	// A Pass numbers classes across the modules it normalizes.
	p := NewPass()
	for i, want := range []string{"_iterator_0_a", "_iterator_1_a"} {
		mod := parse(t, `
decls:
  - fn: a
    iterator: true
    body: [{yield: "1"}]
`)
		if err := p.Normalize(mod); err != nil {
			t.Fatal(err)
		}
		if mod.Lookup(want) == nil {
			t.Errorf("module %d: class %s not found", i, want)
		}
	}
}

func TestIteratorErrors(t *testing.T) {
	for _, test := range []struct {
		name string
		src  string
		err  string
	}{
		{
			name: "yield in function",
			src: `
decls:
  - fn: f
    body: [{yield: "1"}]
`,
			err: "yield in function f",
		},
		{
			name: "value return",
			src: `
decls:
  - fn: f
    iterator: true
    body:
      - yield: "1"
      - return: "2"
`,
			err: "iterator f returns a value",
		},
		{
			name: "untyped local",
			src: `
decls:
  - fn: f
    iterator: true
    body:
      - var: x
      - yield: "1"
`,
			err: "local x of iterator f has neither a type nor an initializer",
		},
		{
			name: "nested iterator",
			src: `
decls:
  - fn: f
    iterator: true
    body:
      - func:
          fn: g
          iterator: true
          body: [{yield: "1"}]
      - yield: "2"
`,
			err: "not implemented: iterator g nested in iterator f",
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			mod := parse(t, test.src)
			err := Normalize(mod)
			var ie *InternalError
			if !errors.As(err, &ie) {
				t.Fatalf("expected an internal error, got %v", err)
			}
			if !strings.Contains(ie.Msg, test.err) {
				t.Errorf("got %q, want %q", ie.Msg, test.err)
			}
			if !ie.Pos.IsValid() {
				t.Error("error has no position")
			}
		})
	}
}
