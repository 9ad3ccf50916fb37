package irfile

import (
	"fmt"

	"github.com/stealthrocket/iterlower/ir"
)

type builder struct {
	file    string
	mod     *ir.ModuleSymbol
	classes map[string]*ir.ClassType
	fns     map[string]bool

	// labels of the function being built
	labels  map[string]*ir.LabelSymbol
	defined map[string]bool
}

// scope maps names to the symbols visible at a point of the module.
type scope struct {
	outer *scope
	syms  map[string]ir.Symbol
}

func (s *scope) lookup(name string) ir.Symbol {
	for ; s != nil; s = s.outer {
		if sym, ok := s.syms[name]; ok {
			return sym
		}
	}
	return nil
}

func (s *scope) fork() *scope {
	return &scope{outer: s, syms: make(map[string]ir.Symbol)}
}

func (s *scope) insert(sym ir.Symbol) { s.syms[sym.Name()] = sym }

func newBuilder(file string) *builder {
	return &builder{
		file:    file,
		classes: make(map[string]*ir.ClassType),
		fns:     make(map[string]bool),
	}
}

func (b *builder) errorf(line int, format string, args ...any) error {
	return fmt.Errorf("%s:%d: %s", b.file, line, fmt.Sprintf(format, args...))
}

func (b *builder) pos(line int) ir.Pos { return ir.Pos{File: b.file, Line: line} }

func (b *builder) module(f *File) error {
	name := f.Module
	if name == "" {
		name = "main"
	}
	b.mod = ir.NewModule(name)
	b.mod.SetPos(b.pos(1))
	global := (*scope)(nil).fork()

	for _, d := range f.Decls {
		switch {
		case d.Class != "":
			if b.classes[d.Class] != nil {
				return b.errorf(d.Line, "class %s redeclared", d.Class)
			}
			tag := ir.ClassClass
			if d.Record {
				tag = ir.ClassRecord
			}
			class := ir.NewClass(d.Class, tag)
			class.Symbol().Pragmas = d.Pragmas
			b.classes[d.Class] = class
		case d.Fn != "":
			b.fns[d.Fn] = true
		}
	}

	for i := range f.Decls {
		d := &f.Decls[i]
		var def *ir.DefExpr
		switch {
		case d.Class != "":
			class := b.classes[d.Class]
			for _, field := range d.Fields {
				v := ir.NewVar(field.Name, nil)
				init, exprType, err := b.typed(global, d.Line, field.Type, field.Init)
				if err != nil {
					return err
				}
				v.Type = ir.TypeInfo(exprType)
				fd := ir.NewDef(v, init, exprType)
				ir.Stamp(fd, b.pos(d.Line))
				class.AddField(fd)
			}
			def = ir.NewDef(class.Symbol(), nil, nil)
		case d.Fn != "":
			fn, err := b.function(global, d)
			if err != nil {
				return err
			}
			def = ir.NewDef(fn, nil, nil)
		case d.Var != "":
			v := ir.NewVar(d.Var, nil)
			if d.Const {
				v.Const = ir.VarConst
			}
			init, exprType, err := b.typed(global, d.Line, d.Type, d.Init)
			if err != nil {
				return err
			}
			def = ir.NewDef(v, init, exprType)
			global.insert(v)
		default:
			return b.errorf(d.Line, "declaration has no fn, class or var key")
		}
		ir.Stamp(def, b.pos(d.Line))
		b.mod.Block.InsertAtTail(def)
	}
	return nil
}

// typed translates an optional type expression and initializer.
func (b *builder) typed(s *scope, line int, typ, init string) (initExpr, typeExpr ir.Expr, err error) {
	if typ != "" {
		if typeExpr, err = b.expr(s, line, typ); err != nil {
			return nil, nil, err
		}
	}
	if init != "" {
		if initExpr, err = b.expr(s, line, init); err != nil {
			return nil, nil, err
		}
	}
	return initExpr, typeExpr, nil
}

var intents = map[string]ir.Intent{
	"":      ir.IntentBlank,
	"const": ir.IntentConst,
	"ref":   ir.IntentRef,
	"param": ir.IntentParam,
	"type":  ir.IntentType,
}

func (b *builder) function(outer *scope, d *Decl) (*ir.FnSymbol, error) {
	fn := ir.NewFn(d.Fn)
	fn.SetPos(b.pos(d.Line))
	if d.Iterator {
		fn.Kind = ir.FnIterator
	}
	fn.BuildSetter = d.Setter
	fn.IsParam = d.Param
	s := outer.fork()

	if d.Method != "" {
		class := b.classes[d.Method]
		if class == nil {
			return nil, b.errorf(d.Line, "method of undefined class %s", d.Method)
		}
		mt := ir.NewArg(ir.IntentBlank, "_mt", ir.MethodTokenType)
		this := ir.NewArg(ir.IntentBlank, "this", class)
		fn.InsertFormalAtTail(ir.NewDef(mt, nil, nil), ir.NewDef(this, nil, nil))
		fn.This = this
		fn.IsMethod = true
		class.AddMethod(fn)
		s.insert(this)
	}

	for _, f := range d.Formals {
		intent, ok := intents[f.Intent]
		if !ok {
			return nil, b.errorf(d.Line, "formal %s: unknown intent %q", f.Name, f.Intent)
		}
		arg := ir.NewArg(intent, f.Name, nil)
		var exprType ir.Expr
		if f.Query != "" {
			if _, ok := ir.Family(f.Type); !ok {
				return nil, b.errorf(d.Line, "formal %s: width query on non-numeric type %q", f.Name, f.Type)
			}
			q := ir.NewVar(f.Query, nil)
			exprType = ir.Call(f.Type, ir.NewDef(q, nil, nil))
			s.insert(q)
		}
		init, typ, err := b.typed(s, d.Line, typeUnlessQueried(f), f.Default)
		if err != nil {
			return nil, err
		}
		if typ != nil {
			exprType = typ
		}
		fn.InsertFormalAtTail(ir.NewDef(arg, init, exprType))
		s.insert(arg)
	}

	if d.Returns != "" {
		rt, err := b.expr(s, d.Line, d.Returns)
		if err != nil {
			return nil, err
		}
		fn.SetRetExprType(rt)
	}

	savedLabels, savedDefined := b.labels, b.defined
	b.labels, b.defined = make(map[string]*ir.LabelSymbol), make(map[string]bool)
	defer func() { b.labels, b.defined = savedLabels, savedDefined }()

	if err := b.stmts(s, fn.Body, d.Body); err != nil {
		return nil, err
	}
	for name := range b.labels {
		if !b.defined[name] {
			return nil, b.errorf(d.Line, "function %s: label %s not defined", d.Fn, name)
		}
	}
	ir.Stamp(fn, b.pos(d.Line))
	return fn, nil
}

func typeUnlessQueried(f Formal) string {
	if f.Query != "" {
		return ""
	}
	return f.Type
}

func (b *builder) label(name string) *ir.LabelSymbol {
	l, ok := b.labels[name]
	if !ok {
		l = ir.NewLabel(name)
		b.labels[name] = l
	}
	return l
}

func (b *builder) stmts(s *scope, block *ir.BlockStmt, list []Stmt) error {
	for i := range list {
		stmt, err := b.stmt(s, &list[i])
		if err != nil {
			return err
		}
		ir.Stamp(stmt, b.pos(list[i].Line))
		block.InsertAtTail(stmt)
	}
	return nil
}

func (b *builder) block(s *scope, list []Stmt) (*ir.BlockStmt, error) {
	block := ir.NewBlock()
	if err := b.stmts(s.fork(), block, list); err != nil {
		return nil, err
	}
	return block, nil
}

func (b *builder) stmt(s *scope, st *Stmt) (ir.Expr, error) {
	line := st.Line
	switch {
	case st.Var != "" || st.Const != "" || st.Param != "":
		v := ir.NewVar(st.Var, nil)
		switch {
		case st.Const != "":
			v = ir.NewVar(st.Const, nil)
			v.Const = ir.VarConst
		case st.Param != "":
			v = ir.NewVar(st.Param, nil)
			v.Const = ir.VarParam
		}
		init, exprType, err := b.typed(s, line, st.Type, st.Init)
		if err != nil {
			return nil, err
		}
		s.insert(v)
		return ir.NewDef(v, init, exprType), nil

	case st.Yield != "":
		e, err := b.expr(s, line, st.Yield)
		if err != nil {
			return nil, err
		}
		return ir.NewYield(e), nil

	case st.HasReturn:
		if st.Return == "" {
			return ir.NewReturn(nil), nil
		}
		e, err := b.expr(s, line, st.Return)
		if err != nil {
			return nil, err
		}
		return ir.NewReturn(e), nil

	case st.Expr != "":
		return b.expr(s, line, st.Expr)

	case st.Assign != nil:
		if len(st.Assign) != 2 {
			return nil, b.errorf(line, "assign takes a target and a value")
		}
		lhs, err := b.expr(s, line, st.Assign[0])
		if err != nil {
			return nil, err
		}
		rhs, err := b.expr(s, line, st.Assign[1])
		if err != nil {
			return nil, err
		}
		return ir.Call("=", lhs, rhs), nil

	case st.If != "":
		cond, err := b.expr(s, line, st.If)
		if err != nil {
			return nil, err
		}
		then, err := b.block(s, st.Then)
		if err != nil {
			return nil, err
		}
		var els *ir.BlockStmt
		if st.Else != nil {
			if els, err = b.block(s, st.Else); err != nil {
				return nil, err
			}
		}
		return ir.NewCond(cond, then, els), nil

	case st.While != "":
		cond, err := b.expr(s, line, st.While)
		if err != nil {
			return nil, err
		}
		body, err := b.block(s, st.Do)
		if err != nil {
			return nil, err
		}
		return ir.NewWhile(cond, body), nil

	case st.Label != "":
		if b.defined[st.Label] {
			return nil, b.errorf(line, "label %s redefined", st.Label)
		}
		b.defined[st.Label] = true
		return ir.NewDef(b.label(st.Label), nil, nil), nil

	case st.Goto != "":
		return ir.NewGoto(b.label(st.Goto)), nil

	case st.Block != nil:
		return b.block(s, st.Block)

	case st.Func != nil:
		if st.Func.Fn == "" {
			return nil, b.errorf(line, "nested function has no name")
		}
		st.Func.Line = line
		b.fns[st.Func.Fn] = true
		fn, err := b.function(s, st.Func)
		if err != nil {
			return nil, err
		}
		return ir.NewDef(fn, nil, nil), nil
	}
	return nil, b.errorf(line, "empty statement")
}
