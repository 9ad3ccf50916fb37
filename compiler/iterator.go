package compiler

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/stealthrocket/iterlower/ir"
)

// lowerIterator replaces the iterator fn with a class implementing the
// cursor protocol and turns fn into a factory returning an instance of
// it.
//
// The class, named _iterator_<uid>_<fn>, holds the iterator's formals and
// locals as fields. Its methods are:
//
//	getNextCursor(cursor) int  resumes after suspension point cursor
//	                           (0 starts from the top) and returns the
//	                           next suspension point, or N+1 when done
//	getHeadCursor() int        getNextCursor(0)
//	getValue(cursor)           the value produced at a suspension point
//	getElemType()              the type of the values produced
//	isValidCursor(cursor) bool whether cursor is a suspension point
//
// where N is the number of yields in fn. The class and its methods are
// inserted at the head of the module.
func (n *normalizer) lowerIterator(fn *ir.FnSymbol) {
	mod := ir.ModuleOf(fn)
	if mod == nil {
		n.fatalf(fn, "iterator %s is not part of a module", fn.Name())
	}
	n.checkIterator(fn)

	uid := n.iterators
	n.iterators++
	class := ir.NewClass(fmt.Sprintf("_iterator_%d_%s", uid, fn.Name()), ir.ClassClass)
	classDef := ir.NewDef(class.Symbol(), nil, nil)
	classDef.SetPos(fn.Pos())
	mod.Block.InsertAtHead(classDef)

	next := ir.Copy(fn, nil)
	next.SetName("getNextCursor")
	mod.Block.InsertAtHead(ir.NewDef(next, nil, nil))
	makeIteratorMethod(next, class)
	this := n.hoistDecls(next, class)
	cursor := ir.NewArg(ir.IntentBlank, "cursor", ir.Int(64))
	next.InsertFormalAtTail(ir.NewDef(cursor, nil, nil))

	values, labels := replaceYields(next)
	buildResumeTable(next, cursor, labels)

	ctor := n.buildDefaultConstructor(class)
	n.relinkConstructor(class)
	n.normalize(classDef)
	n.normalize(ir.DefOf(ctor))
	class.IsIterator = true
	next.RetType = ir.Int(64)

	head := n.newIteratorMethod(mod, class, "getHeadCursor", false)
	head.InsertAtTail(ir.NewReturn(ir.NewCall(
		ir.Dot(ir.NewSym(head.This), "getNextCursor"),
		ir.NewInt(0),
	)))
	head.RetType = ir.Int(64)

	elem := n.newIteratorMethod(mod, class, "getElemType", false)
	elem.InsertAtTail(ir.NewReturn(ir.NewPrim(ir.PrimTypeof, ir.NewCall(
		ir.Dot(ir.NewSym(elem.This), "getValue"),
		ir.NewInt(0),
	))))

	value := n.newIteratorMethod(mod, class, "getValue", true)
	if next.RetExprType != nil {
		value.SetRetExprType(ir.Remove(next.RetExprType))
		value.RetType = ir.TypeInfo(value.RetExprType)
	}
	buildValueTable(value, value.Formal(2), values)
	m := ir.Map{this: value.This}
	copyValueHelpers(next, value, class, m)
	ir.UpdateSymbols(value, m)

	valid := n.newIteratorMethod(mod, class, "isValidCursor", true)
	valid.InsertAtTail(ir.NewReturn(ir.Call("!=",
		ir.NewSym(valid.Formal(2)),
		ir.NewInt(int64(len(values)+1)),
	)))
	valid.RetType = ir.Bool

	n.buildFactory(fn, class)

	n.logger.Debug("lowered iterator",
		zap.String("iterator", fn.Name()),
		zap.String("class", class.String()),
		zap.Int("suspension_points", len(values)),
		zap.Stringer("pos", fn.Pos()))
}

// buildFactory replaces the body of the iterator fn with the construction
// of an instance of class from its formals.
func (n *normalizer) buildFactory(fn *ir.FnSymbol, class *ir.ClassType) {
	fn.Kind = ir.FnFunction
	fn.RetType = ir.Unknown
	call := ir.NewCall(ir.NewSym(class.DefaultConstructor))
	for i := range fn.Formals {
		if arg := fn.Formal(i); arg.Type != ir.MethodTokenType {
			call.InsertAtTail(ir.NewSym(arg))
		}
	}
	fn.SetBody(ir.NewBlock(ir.NewReturn(call)))
	fn.SetRetExprType(ir.NewPrim(ir.PrimTypeof, ir.Copy(call, nil)))
	n.normalize(ir.DefOf(fn))
}

// newIteratorMethod defines an empty method of class at the head of the
// module. Methods taking a cursor get it as their third formal.
func (n *normalizer) newIteratorMethod(mod *ir.ModuleSymbol, class *ir.ClassType, name string, withCursor bool) *ir.FnSymbol {
	fn := ir.NewFn(name)
	def := ir.NewDef(fn, nil, nil)
	def.SetPos(n.loc)
	mod.Block.InsertAtHead(def)
	makeIteratorMethod(fn, class)
	mt := ir.NewArg(ir.IntentBlank, "_methodToken", ir.MethodTokenType)
	this := ir.NewArg(ir.IntentBlank, "this", class)
	fn.InsertFormalAtTail(ir.NewDef(mt, nil, nil), ir.NewDef(this, nil, nil))
	fn.This = this
	if withCursor {
		cursor := ir.NewArg(ir.IntentBlank, "cursor", ir.Int(64))
		fn.InsertFormalAtTail(ir.NewDef(cursor, nil, nil))
	}
	return fn
}

func makeIteratorMethod(fn *ir.FnSymbol, class *ir.ClassType) {
	fn.Kind = ir.FnFunction
	fn.RetType = ir.Unknown
	fn.IsMethod = true
	fn.Global = true
	fn.BuildSetter = false
	class.AddMethod(fn)
}

// copyValueHelpers gives value its own copy of each function nested in
// next that the captured values call, directly or through one another.
// The copies are defined at the head of value and renamed after class so
// that calls by name from value reach them rather than the originals;
// their references to the receiver of next are remapped through m.
func copyValueHelpers(next, value *ir.FnSymbol, class *ir.ClassType, m ir.Map) {
	nested := make(map[string]*ir.FnSymbol)
	for _, def := range ir.CollectOf[*ir.DefExpr](next.Body) {
		if fn, ok := def.Sym.(*ir.FnSymbol); ok && ir.EnclosingFn(def) == next {
			nested[fn.Name()] = fn
		}
	}
	if len(nested) == 0 {
		return
	}

	renamed := make(map[*ir.FnSymbol]string)
	var copies []*ir.DefExpr
	queue := []ir.Node{value.Body}
	for len(queue) > 0 {
		root := queue[0]
		queue = queue[1:]
		for _, call := range ir.CollectOf[*ir.CallExpr](root) {
			fn := nestedCallee(call, nested)
			if fn == nil {
				continue
			}
			name, ok := renamed[fn]
			if !ok {
				name = class.String() + "_" + fn.Name()
				renamed[fn] = name
				cp := ir.Copy(ir.DefOf(fn), m)
				cp.Sym.SetName(name)
				copies = append(copies, cp)
				queue = append(queue, cp)
			}
			ir.Replace(call.Base, ir.NewName(name))
		}
	}
	for _, def := range copies {
		value.InsertAtHead(def)
	}
}

func nestedCallee(call *ir.CallExpr, nested map[string]*ir.FnSymbol) *ir.FnSymbol {
	switch base := call.Base.(type) {
	case *ir.NameExpr:
		return nested[base.Name]
	case *ir.SymExpr:
		if fn, ok := base.Sym.(*ir.FnSymbol); ok && nested[fn.Name()] == fn {
			return fn
		}
	}
	return nil
}
