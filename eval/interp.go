// Package eval interprets normalized modules.
//
// The interpreter executes the trees produced by the compiler package
// directly, which makes it possible to check that a lowered iterator
// produces the same values as the iterator it replaces. Function bodies
// are flattened into instruction lists so that gotos may target any label
// of their function.
package eval

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/stealthrocket/iterlower/ir"
)

const (
	defaultStepLimit = 1_000_000
	maxDepth         = 1000
)

// Error is a runtime error raised while interpreting a module.
type Error struct {
	Pos ir.Pos
	Err error
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s: %v", e.Pos, e.Err)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// ErrStepLimit is returned when a call executes more instructions than
// allowed by WithStepLimit.
var ErrStepLimit = errors.New("step limit exceeded")

// Option configures an interpreter.
type Option func(*Interp)

// WithLogger sets the logger receiving a debug message per function call.
func WithLogger(l *zap.Logger) Option {
	return func(in *Interp) { in.logger = l }
}

// WithStepLimit bounds the number of instructions executed by each call
// made through the Interp API.
func WithStepLimit(n int) Option {
	return func(in *Interp) { in.stepLimit = n }
}

// Interp executes the functions of a module.
type Interp struct {
	mod      *ir.ModuleSymbol
	fns      map[string][]*ir.FnSymbol
	globals  map[ir.Symbol]Value
	programs map[*ir.FnSymbol]*program
	logger   *zap.Logger

	stepLimit int
	steps     int
	depth     int
}

// New returns an interpreter for mod and runs the module's top-level
// statements, which initialize its global variables.
func New(mod *ir.ModuleSymbol, options ...Option) (*Interp, error) {
	in := &Interp{
		mod:       mod,
		fns:       make(map[string][]*ir.FnSymbol),
		globals:   make(map[ir.Symbol]Value),
		programs:  make(map[*ir.FnSymbol]*program),
		logger:    zap.NewNop(),
		stepLimit: defaultStepLimit,
	}
	for _, option := range options {
		option(in)
	}
	for _, fn := range ir.CollectOf[*ir.FnSymbol](mod) {
		in.fns[fn.Name()] = append(in.fns[fn.Name()], fn)
	}
	p, err := assemble(mod.Block)
	if err != nil {
		return nil, err
	}
	in.steps = 0
	if _, err := in.run(&frame{vars: in.globals}, p); err != nil {
		return nil, fmt.Errorf("initializing module %s: %w", mod.Name(), err)
	}
	return in, nil
}

// Call calls the function with the given name. Arguments must be int64,
// bool, string or values returned by previous calls.
func (in *Interp) Call(name string, args ...Value) (Value, error) {
	in.steps = 0
	return in.callNamed(nil, name, args, nil)
}

// Method calls the method name of recv.
func (in *Interp) Method(recv Value, name string, args ...Value) (Value, error) {
	in.steps = 0
	return in.callNamed(nil, name, append([]Value{methodToken, recv}, args...), nil)
}

type frame struct {
	fn    *ir.FnSymbol
	vars  map[ir.Symbol]Value
	outer *frame
}

func (in *Interp) errorf(at ir.Node, format string, args ...any) error {
	var pos ir.Pos
	if at != nil {
		pos = at.Pos()
	}
	return &Error{Pos: pos, Err: fmt.Errorf(format, args...)}
}

func (in *Interp) wrap(pos ir.Pos, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Pos: pos, Err: err}
}

func (in *Interp) isGlobal(s ir.Symbol) bool {
	def := ir.DefOf(s)
	return def != nil && def.Parent() == ir.Node(in.mod.Block)
}

func (in *Interp) lookup(fr *frame, s ir.Symbol) (Value, error) {
	switch s {
	case ir.MethodToken:
		return methodToken, nil
	case ir.SetterToken:
		return setterToken, nil
	}
	switch s := s.(type) {
	case *ir.TypeSymbol:
		return Type{s.Type}, nil
	case *ir.FnSymbol, *ir.LabelSymbol, *ir.ModuleSymbol:
		return nil, fmt.Errorf("%s is not a value", s.Name())
	}
	for f := fr; f != nil; f = f.outer {
		if v, ok := f.vars[s]; ok {
			return v, nil
		}
	}
	// Variables whose definition was jumped over read as nil.
	return in.globals[s], nil
}

func (in *Interp) set(fr *frame, s ir.Symbol, v Value) {
	if in.isGlobal(s) {
		in.globals[s] = v
		return
	}
	for f := fr; f != nil; f = f.outer {
		if _, ok := f.vars[s]; ok {
			f.vars[s] = v
			return
		}
	}
	fr.vars[s] = v
}

func (in *Interp) program(fn *ir.FnSymbol) (*program, error) {
	if p, ok := in.programs[fn]; ok {
		return p, nil
	}
	p, err := assemble(fn.Body)
	if err != nil {
		return nil, err
	}
	in.programs[fn] = p
	return p, nil
}

func (in *Interp) run(fr *frame, p *program) (Value, error) {
	for pc := 0; pc < len(p.code); {
		ins := &p.code[pc]
		pc++
		if in.steps++; in.stepLimit > 0 && in.steps > in.stepLimit {
			return nil, &Error{Pos: ins.pos, Err: ErrStepLimit}
		}
		switch ins.op {
		case opEval:
			if _, err := in.eval(fr, ins.expr); err != nil {
				return nil, in.wrap(ins.pos, err)
			}
		case opDecl:
			v, err := in.declare(fr, ins.def)
			if err != nil {
				return nil, in.wrap(ins.pos, err)
			}
			if in.isGlobal(ins.def.Sym) {
				in.globals[ins.def.Sym] = v
			} else {
				fr.vars[ins.def.Sym] = v
			}
		case opJump:
			pc = ins.target
		case opBranch:
			v, err := in.eval(fr, ins.expr)
			if err != nil {
				return nil, in.wrap(ins.pos, err)
			}
			b, ok := v.(bool)
			if !ok {
				return nil, &Error{Pos: ins.pos, Err: fmt.Errorf("condition is %s, not a bool", Format(v))}
			}
			if !b {
				pc = ins.target
			}
		case opReturn:
			if ins.expr == nil {
				return nil, nil
			}
			v, err := in.eval(fr, ins.expr)
			if err != nil {
				return nil, in.wrap(ins.pos, err)
			}
			return v, nil
		case opYield:
			return nil, &Error{Pos: ins.pos, Err: errors.New("yield outside of a lowered iterator")}
		}
	}
	return nil, nil
}

func (in *Interp) declare(fr *frame, def *ir.DefExpr) (Value, error) {
	if def.Init != nil {
		return in.eval(fr, def.Init)
	}
	if def.ExprType != nil {
		return in.zeroOf(fr, def.ExprType)
	}
	return Zero(ir.TypeOf(def.Sym)), nil
}

func (in *Interp) zeroOf(fr *frame, typeExpr ir.Expr) (Value, error) {
	v, err := in.eval(fr, typeExpr)
	if err != nil {
		return nil, err
	}
	t, ok := v.(Type)
	if !ok {
		return nil, fmt.Errorf("%s is not a type", Format(v))
	}
	return Zero(t.Type), nil
}

func (in *Interp) eval(fr *frame, e ir.Expr) (Value, error) {
	switch e := e.(type) {
	case *ir.Lit:
		switch e.Kind {
		case ir.IntLit:
			return e.Int, nil
		case ir.StringLit:
			return e.Str, nil
		default:
			return e.Bool, nil
		}
	case *ir.SymExpr:
		return in.lookup(fr, e.Sym)
	case *ir.NameExpr:
		if ts := ir.Builtin(e.Name); ts != nil {
			return Type{ts.Type}, nil
		}
		return nil, in.errorf(e, "undefined: %s", e.Name)
	case *ir.CallExpr:
		return in.call(fr, e)
	}
	return nil, in.errorf(e, "cannot evaluate %T", e)
}

func (in *Interp) args(fr *frame, list []ir.Expr) ([]Value, error) {
	values := make([]Value, len(list))
	for i, a := range list {
		v, err := in.eval(fr, a)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

func (in *Interp) call(fr *frame, c *ir.CallExpr) (Value, error) {
	if c.Prim != ir.PrimNone {
		return in.prim(fr, c)
	}
	args, err := in.args(fr, c.Args)
	if err != nil {
		return nil, err
	}
	switch base := c.Base.(type) {
	case *ir.SymExpr:
		switch s := base.Sym.(type) {
		case *ir.FnSymbol:
			return in.invoke(fr, s, args, c)
		case *ir.TypeSymbol:
			if class, ok := s.Type.(*ir.ClassType); ok {
				if class.DefaultConstructor == nil {
					return nil, in.errorf(c, "class %s has no constructor", class)
				}
				return in.invoke(fr, class.DefaultConstructor, args, c)
			}
			if len(args) != 1 {
				return nil, in.errorf(c, "conversion to %s takes one argument", s.Type)
			}
			v, err := cast(s.Type, args[0])
			if err != nil {
				return nil, in.wrap(c.Pos(), err)
			}
			return v, nil
		}
		return in.callNamed(fr, base.Sym.Name(), args, c)
	case *ir.NameExpr:
		return in.callNamed(fr, base.Name, args, c)
	case *ir.CallExpr:
		if base.IsNamed(".") {
			recv, err := in.eval(fr, base.Arg(0))
			if err != nil {
				return nil, err
			}
			name, ok := ir.IsString(base.Arg(1))
			if !ok {
				return nil, in.errorf(base, "member name is not a string")
			}
			return in.callNamed(fr, name, append([]Value{methodToken, recv}, args...), c)
		}
		if base.PartialTag {
			prefix, err := in.args(fr, base.Args)
			if err != nil {
				return nil, err
			}
			return in.callNamed(fr, base.Name(), append(prefix, args...), c)
		}
	}
	return nil, in.errorf(c, "call of %T is not supported", c.Base)
}

func (in *Interp) prim(fr *frame, c *ir.CallExpr) (Value, error) {
	switch c.Prim {
	case ir.PrimMove:
		dst, ok := c.Arg(0).(*ir.SymExpr)
		if !ok || len(c.Args) != 2 {
			return nil, in.errorf(c, "malformed move")
		}
		v, err := in.eval(fr, c.Args[1])
		if err != nil {
			return nil, err
		}
		in.set(fr, dst.Sym, v)
		return nil, nil
	case ir.PrimTypeof:
		v, err := in.eval(fr, c.Arg(0))
		if err != nil {
			return nil, err
		}
		return Type{TypeOf(v)}, nil
	case ir.PrimRef:
		return in.eval(fr, c.Arg(0))
	case ir.PrimAlloc:
		v, err := in.eval(fr, c.Arg(0))
		if err != nil {
			return nil, err
		}
		if t, ok := v.(Type); ok {
			if class, ok := t.Type.(*ir.ClassType); ok {
				return newObject(class), nil
			}
		}
		return nil, in.errorf(c, "cannot allocate %s", Format(v))
	case ir.PrimNoop:
		return nil, nil
	}
	return nil, in.errorf(c, "unknown primitive %s", c.Prim)
}

// callNamed calls the first function named name that accepts args. Calls
// no function accepts are tried as builtin operations, then as field
// accesses of the form f(_mt, obj) and f(_mt, obj, _st, v).
func (in *Interp) callNamed(fr *frame, name string, args []Value, at ir.Node) (Value, error) {
	for _, fn := range in.fns[name] {
		if accepts(fn, args) {
			return in.invoke(fr, fn, args, at)
		}
	}
	if b, ok := builtins[name]; ok {
		v, err := b(args)
		if err != nil {
			return nil, in.errorf(at, "%s: %v", name, err)
		}
		return v, nil
	}
	if v, ok, err := member(name, args); ok {
		if err != nil {
			return nil, in.errorf(at, "%v", err)
		}
		return v, nil
	}
	if kind, ok := ir.Family(name); ok && len(args) == 1 {
		if w, ok := args[0].(int64); ok {
			if t := ir.Numeric(kind, int(w)); t != nil {
				return Type{t}, nil
			}
		}
	}
	return nil, in.errorf(at, "no function %s accepting %d arguments", name, len(args))
}

func accepts(fn *ir.FnSymbol, args []Value) bool {
	if len(args) > len(fn.Formals) {
		return false
	}
	for i := range fn.Formals {
		arg := fn.Formal(i)
		if arg == nil {
			return false
		}
		if i >= len(args) {
			if arg.Type == ir.MethodTokenType || arg.Type == ir.SetterTokenType {
				return false
			}
			continue
		}
		switch arg.Type {
		case ir.MethodTokenType:
			if args[i] != methodToken {
				return false
			}
		case ir.SetterTokenType:
			if args[i] != setterToken {
				return false
			}
		default:
			if _, ok := args[i].(token); ok {
				return false
			}
			if class, ok := arg.Type.(*ir.ClassType); ok {
				if obj, ok := args[i].(*Object); ok && obj.Class != class {
					return false
				}
			}
		}
	}
	return true
}

func member(name string, args []Value) (v Value, ok bool, err error) {
	switch {
	case len(args) == 2 && args[0] == methodToken:
	case len(args) == 4 && args[0] == methodToken && args[2] == setterToken:
	default:
		return nil, false, nil
	}
	obj, isObj := args[1].(*Object)
	if !isObj {
		if args[1] == nil {
			return nil, true, fmt.Errorf("nil dereference accessing %s", name)
		}
		return nil, false, nil
	}
	if _, found := obj.Fields[name]; !found {
		return nil, false, nil
	}
	if len(args) == 4 {
		obj.Fields[name] = args[3]
		return nil, true, nil
	}
	return obj.Fields[name], true, nil
}

func (in *Interp) invoke(caller *frame, fn *ir.FnSymbol, args []Value, at ir.Node) (Value, error) {
	if in.depth >= maxDepth {
		return nil, in.errorf(at, "call depth exceeded calling %s", fn.Name())
	}
	p, err := in.program(fn)
	if err != nil {
		return nil, err
	}
	fr := &frame{fn: fn, vars: make(map[ir.Symbol]Value, len(fn.Formals))}
	if caller != nil && caller.fn != nil && ir.EnclosingFn(fn) == caller.fn {
		fr.outer = caller
	}
	for i, def := range fn.Formals {
		if i < len(args) {
			fr.vars[def.Sym] = args[i]
			continue
		}
		v, err := in.defaultArg(fr, def)
		if err != nil {
			return nil, in.wrap(def.Pos(), err)
		}
		fr.vars[def.Sym] = v
	}
	in.logger.Debug("call",
		zap.String("function", fn.Name()),
		zap.Int("args", len(args)),
		zap.Int("depth", in.depth))

	in.depth++
	defer func() { in.depth-- }()
	return in.run(fr, p)
}

func (in *Interp) defaultArg(fr *frame, def *ir.DefExpr) (Value, error) {
	if def.Init != nil {
		return in.eval(fr, def.Init)
	}
	if def.ExprType != nil {
		return in.zeroOf(fr, def.ExprType)
	}
	return Zero(ir.TypeOf(def.Sym)), nil
}
