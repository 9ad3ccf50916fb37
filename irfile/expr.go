package irfile

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"

	"github.com/stealthrocket/iterlower/ir"
)

// expr parses src with the Go expression grammar and translates it.
func (b *builder) expr(s *scope, line int, src string) (ir.Expr, error) {
	e, err := parser.ParseExpr(src)
	if err != nil {
		return nil, b.errorf(line, "%q: %v", src, err)
	}
	x, err := b.translate(s, e)
	if err != nil {
		return nil, b.errorf(line, "%q: %v", src, err)
	}
	ir.Stamp(x, b.pos(line))
	return x, nil
}

func (b *builder) translate(s *scope, e ast.Expr) (ir.Expr, error) {
	switch e := e.(type) {
	case *ast.ParenExpr:
		return b.translate(s, e.X)

	case *ast.BasicLit:
		switch e.Kind {
		case token.INT:
			v, err := strconv.ParseInt(e.Value, 0, 64)
			if err != nil {
				return nil, err
			}
			return ir.NewInt(v), nil
		case token.STRING:
			v, err := strconv.Unquote(e.Value)
			if err != nil {
				return nil, err
			}
			return ir.NewString(v), nil
		}
		return nil, fmt.Errorf("unsupported literal %s", e.Value)

	case *ast.Ident:
		return b.ident(s, e.Name)

	case *ast.BinaryExpr:
		x, err := b.translate(s, e.X)
		if err != nil {
			return nil, err
		}
		y, err := b.translate(s, e.Y)
		if err != nil {
			return nil, err
		}
		return ir.Call(e.Op.String(), x, y), nil

	case *ast.UnaryExpr:
		switch e.Op {
		case token.SUB, token.NOT:
		default:
			return nil, fmt.Errorf("unsupported operator %s", e.Op)
		}
		x, err := b.translate(s, e.X)
		if err != nil {
			return nil, err
		}
		return ir.Call(e.Op.String(), x), nil

	case *ast.SelectorExpr:
		x, err := b.translate(s, e.X)
		if err != nil {
			return nil, err
		}
		return ir.Dot(x, e.Sel.Name), nil

	case *ast.CallExpr:
		return b.call(s, e)
	}
	return nil, fmt.Errorf("unsupported expression %T", e)
}

func (b *builder) ident(s *scope, name string) (ir.Expr, error) {
	if sym := s.lookup(name); sym != nil {
		return ir.NewSym(sym), nil
	}
	switch name {
	case "true":
		return ir.NewBool(true), nil
	case "false":
		return ir.NewBool(false), nil
	case "_mt":
		return ir.NewSym(ir.MethodToken), nil
	case "_st":
		return ir.NewSym(ir.SetterToken), nil
	}
	if class := b.classes[name]; class != nil {
		return ir.NewSym(class.Symbol()), nil
	}
	if ts := ir.Builtin(name); ts != nil {
		return ir.NewSym(ts), nil
	}
	if b.fns[name] {
		return ir.NewName(name), nil
	}
	return nil, fmt.Errorf("undefined: %s", name)
}

func (b *builder) call(s *scope, e *ast.CallExpr) (ir.Expr, error) {
	var base ir.Expr
	if id, ok := e.Fun.(*ast.Ident); ok && s.lookup(id.Name) == nil {
		switch {
		case id.Name == "typeof":
			if len(e.Args) != 1 {
				return nil, fmt.Errorf("typeof takes one argument")
			}
			x, err := b.translate(s, e.Args[0])
			if err != nil {
				return nil, err
			}
			return ir.NewPrim(ir.PrimTypeof, x), nil
		case isWidth(id.Name, e.Args):
			ts := ir.Builtin(fmt.Sprintf("%s(%s)", id.Name, e.Args[0].(*ast.BasicLit).Value))
			if ts == nil {
				return nil, fmt.Errorf("invalid type %s(%s)", id.Name, e.Args[0].(*ast.BasicLit).Value)
			}
			return ir.NewSym(ts), nil
		case b.fns[id.Name] || b.classes[id.Name] == nil && ir.Builtin(id.Name) == nil:
			base = ir.NewName(id.Name)
		}
	}
	if base == nil {
		x, err := b.translate(s, e.Fun)
		if err != nil {
			return nil, err
		}
		base = x
	}
	call := ir.NewCall(base)
	for _, a := range e.Args {
		x, err := b.translate(s, a)
		if err != nil {
			return nil, err
		}
		call.InsertAtTail(x)
	}
	return call, nil
}

// isWidth reports whether a call such as int(32) names a numeric type.
func isWidth(name string, args []ast.Expr) bool {
	if _, ok := ir.Family(name); !ok || len(args) != 1 {
		return false
	}
	lit, ok := args[0].(*ast.BasicLit)
	return ok && lit.Kind == token.INT
}
