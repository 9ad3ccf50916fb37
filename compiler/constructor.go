package compiler

import (
	"slices"

	"github.com/stealthrocket/iterlower/ir"
)

// buildDefaultConstructor synthesizes _construct_<class>, which takes one
// formal per field (with the field's type expression and initializer as
// the formal's type and default), allocates an instance, assigns every
// field from its formal, and returns the instance. The definition is
// inserted before the class definition.
func (n *normalizer) buildDefaultConstructor(class *ir.ClassType) *ir.FnSymbol {
	ctor := ir.NewFn("_construct_" + class.String())
	this := ir.NewVar("this", class)
	ctor.This = this
	ctor.RetType = class
	ctor.InsertAtTail(
		ir.NewDef(this, nil, nil),
		ir.NewPrim(ir.PrimMove, ir.NewSym(this), ir.NewPrim(ir.PrimAlloc, ir.NewSym(class.Symbol()))),
	)
	for _, field := range class.FieldDefs() {
		var init, exprType ir.Expr
		if field.Init != nil {
			init = ir.Copy(field.Init, nil)
		}
		if field.ExprType != nil {
			exprType = ir.Copy(field.ExprType, nil)
		}
		arg := ir.NewArg(ir.IntentBlank, field.Sym.Name(), ir.TypeOf(field.Sym))
		ctor.InsertFormalAtTail(ir.NewDef(arg, init, exprType))
		ctor.InsertAtTail(ir.Call("=", ir.Dot(ir.NewSym(this), field.Sym.Name()), ir.NewSym(arg)))
	}
	ctor.InsertAtTail(ir.NewReturn(ir.NewSym(this)))

	classDef := ir.DefOf(class.Symbol())
	def := ir.NewDef(ctor, nil, nil)
	def.SetPos(classDef.Pos())
	ir.InsertBefore(classDef, def)
	class.DefaultConstructor = ctor
	return ctor
}

// relinkConstructor rewrites the formals of the default constructor of
// class so that the type expressions and defaults that read a field of
// the instance, as in .(this, "name"), read the formal of the same name
// instead. The instance does not exist yet when they are evaluated.
func (n *normalizer) relinkConstructor(class *ir.ClassType) {
	ctor := class.DefaultConstructor
	for _, def := range ctor.Formals {
		for _, call := range ir.CollectOf[*ir.CallExpr](def) {
			if call.Parent() == nil || len(call.Args) < 2 {
				continue
			}
			recv, ok := call.Args[0].(*ir.SymExpr)
			if !ok || recv.Sym.Name() != "this" || ir.TypeOf(recv.Sym) != ir.Type(class) {
				continue
			}
			name, ok := ir.IsString(call.Args[1])
			if !ok {
				_, sym := call.Args[1].(*ir.SymExpr)
				_, lit := call.Args[1].(*ir.Lit)
				if sym || lit || call.IsNamed(".") {
					n.fatalf(call, "string literal expected")
				}
				continue
			}
			arg := formalNamed(ctor, name)
			if arg == nil {
				n.fatalf(call, "could not find arg to replace with: %s", name)
			}
			ir.Replace(call, ir.NewSym(arg))
		}
	}
}

func formalNamed(fn *ir.FnSymbol, name string) *ir.ArgSymbol {
	for i := range fn.Formals {
		if arg := fn.Formal(i); arg != nil && arg.Name() == name {
			return arg
		}
	}
	return nil
}

// hasConstructorMethod reports whether mod defines a method of class
// named after it, which changeMethodIntoConstructor turns into the
// class's constructor.
func hasConstructorMethod(mod *ir.ModuleSymbol, class *ir.ClassType) bool {
	if mod == nil {
		return false
	}
	for _, fn := range ir.CollectOf[*ir.FnSymbol](mod) {
		if fn.Name() == class.String() && isMethodOf(fn, class) {
			return true
		}
	}
	return false
}

func isMethodOf(fn *ir.FnSymbol, class *ir.ClassType) bool {
	mt, recv := fn.Formal(0), fn.Formal(1)
	return mt != nil && recv != nil && mt.Type == ir.MethodTokenType && recv.Type == ir.Type(class)
}

// changeMethodIntoConstructor turns a method named after its receiver's
// class into the function _construct_<class>: the body is wrapped with
// the allocation and the return of the new instance, the receiver is
// replaced by a local, and the definition moves before the class.
func (n *normalizer) changeMethodIntoConstructor(fn *ir.FnSymbol) {
	if len(fn.Formals) <= 1 {
		return
	}
	if mt := fn.Formal(0); mt == nil || mt.Type != ir.MethodTokenType {
		return
	}
	recv := fn.Formal(1)
	if recv == nil {
		return
	}
	if recv.Type == ir.Unknown {
		n.fatalf(fn, "this argument has unknown type")
	}
	if recv.Type.String() != fn.Name() {
		return
	}
	class, ok := recv.Type.(*ir.ClassType)
	if !ok {
		n.fatalf(fn, "constructor on non-class type")
	}

	fn.SetName("_construct_" + fn.Name())
	this := ir.NewVar("this", class)
	fn.InsertAtHead(
		ir.NewDef(this, nil, nil),
		ir.NewPrim(ir.PrimMove, ir.NewSym(this), ir.NewPrim(ir.PrimAlloc, ir.NewSym(class.Symbol()))),
	)
	fn.InsertAtTail(ir.NewReturn(ir.NewSym(this)))
	ir.Remove(fn.Formals[1])
	ir.Remove(fn.Formals[0])
	ir.UpdateSymbols(fn, ir.Map{recv: this})
	fn.This = this
	fn.IsMethod = false
	fn.RetType = class
	class.Methods = slices.DeleteFunc(class.Methods, func(m *ir.FnSymbol) bool { return m == fn })

	def := ir.Remove(ir.DefOf(fn))
	ir.InsertBefore(ir.DefOf(class.Symbol()), def)
	if class.DefaultConstructor == nil {
		class.DefaultConstructor = fn
	}
}

// callConstructorForClass redirects a call on a class type to the class's
// default constructor.
func (n *normalizer) callConstructorForClass(call *ir.CallExpr) {
	se, ok := call.Base.(*ir.SymExpr)
	if !ok {
		return
	}
	ts, ok := se.Sym.(*ir.TypeSymbol)
	if !ok {
		return
	}
	class, ok := ts.Type.(*ir.ClassType)
	if !ok {
		return
	}
	if class.DefaultConstructor == nil {
		n.fatalf(call, "class type %s has no default constructor", class)
	}
	ir.Replace(se, ir.NewSym(class.DefaultConstructor))
}
