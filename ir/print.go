package ir

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"go/token"
	"io"
	"strconv"

	"golang.org/x/tools/go/ast/astutil"
)

// Fprint writes a Go-like rendering of n to w. Modules print as a file,
// functions as declarations and other nodes as statements or expressions.
// Primitives print as calls to __<name>, and labels attach to the
// statement that follows them.
func Fprint(w io.Writer, n Node) error {
	var out any
	switch n := n.(type) {
	case *ModuleSymbol:
		out = moduleFile(n)
	case *FnSymbol:
		out = fnDecl(n)
	case *TypeSymbol:
		out = typeDecl(n)
	case *BlockStmt:
		out = blockStmt(n)
	case *DefExpr, *CondStmt, *WhileStmt, *GotoStmt, *ReturnStmt:
		out = stmtList([]Expr{n.(Expr)})
	case Expr:
		out = expr(n)
	default:
		return fmt.Errorf("cannot print %T", n)
	}
	if node, ok := out.(ast.Node); ok {
		out = astutil.Apply(node, nil, flattenBlocks)
	}
	return format.Node(w, token.NewFileSet(), out)
}

// Sprint is like Fprint but returns a string. Errors are rendered inline.
func Sprint(n Node) string {
	var b bytes.Buffer
	if err := Fprint(&b, n); err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return b.String()
}

// flattenBlocks splices anonymous blocks into the enclosing statement
// list.
func flattenBlocks(c *astutil.Cursor) bool {
	b, ok := c.Node().(*ast.BlockStmt)
	if !ok || c.Index() < 0 {
		return true
	}
	if _, ok := c.Parent().(*ast.BlockStmt); !ok {
		return true
	}
	for _, s := range b.List {
		c.InsertBefore(s)
	}
	c.Delete()
	return true
}

func moduleFile(m *ModuleSymbol) *ast.File {
	f := &ast.File{Name: ast.NewIdent(m.Name())}
	var init []Expr
	for _, stmt := range m.Block.Body {
		d, ok := stmt.(*DefExpr)
		if !ok {
			init = append(init, stmt)
			continue
		}
		switch s := d.Sym.(type) {
		case *FnSymbol:
			f.Decls = append(f.Decls, fnDecl(s))
		case *TypeSymbol:
			f.Decls = append(f.Decls, typeDecl(s))
		default:
			f.Decls = append(f.Decls, varDecl(d))
		}
	}
	if len(init) > 0 {
		f.Decls = append(f.Decls, &ast.FuncDecl{
			Name: ast.NewIdent("init"),
			Type: &ast.FuncType{Params: &ast.FieldList{}},
			Body: &ast.BlockStmt{List: stmtList(init)},
		})
	}
	return f
}

func fnDecl(fn *FnSymbol) *ast.FuncDecl {
	return &ast.FuncDecl{
		Name: ast.NewIdent(fn.Name()),
		Type: fnType(fn),
		Body: blockStmt(fn.Body),
	}
}

func fnType(fn *FnSymbol) *ast.FuncType {
	params := &ast.FieldList{}
	for _, f := range fn.Formals {
		var typ ast.Expr
		if f.ExprType != nil {
			typ = expr(f.ExprType)
		} else {
			typ = ast.NewIdent(TypeOf(f.Sym).String())
		}
		if f.Init != nil {
			typ = &ast.BinaryExpr{X: typ, Op: token.ASSIGN, Y: expr(f.Init)}
		}
		params.List = append(params.List, &ast.Field{
			Names: []*ast.Ident{ast.NewIdent(f.Sym.Name())},
			Type:  typ,
		})
	}
	var result ast.Expr
	switch {
	case fn.RetExprType != nil:
		result = expr(fn.RetExprType)
	case fn.RetType != nil && fn.RetType != Unknown:
		result = ast.NewIdent(fn.RetType.String())
	}
	if fn.Kind == FnIterator {
		if result == nil {
			result = ast.NewIdent("?")
		}
		result = &ast.IndexExpr{X: ast.NewIdent("iter"), Index: result}
	}
	t := &ast.FuncType{Params: params}
	if result != nil {
		t.Results = &ast.FieldList{List: []*ast.Field{{Type: result}}}
	}
	return t
}

func typeDecl(ts *TypeSymbol) *ast.GenDecl {
	spec := &ast.TypeSpec{Name: ast.NewIdent(ts.Name())}
	if c, ok := ts.Type.(*ClassType); ok {
		fields := &ast.FieldList{}
		for _, d := range c.FieldDefs() {
			fields.List = append(fields.List, &ast.Field{
				Names: []*ast.Ident{ast.NewIdent(d.Sym.Name())},
				Type:  declType(d),
			})
		}
		spec.Type = &ast.StructType{Fields: fields}
	} else {
		spec.Type = ast.NewIdent(ts.Type.String())
	}
	return &ast.GenDecl{Tok: token.TYPE, Specs: []ast.Spec{spec}}
}

func varDecl(d *DefExpr) *ast.GenDecl {
	spec := &ast.ValueSpec{Names: []*ast.Ident{ast.NewIdent(d.Sym.Name())}}
	if d.ExprType != nil || d.Init == nil {
		spec.Type = declType(d)
	}
	if d.Init != nil {
		spec.Values = []ast.Expr{expr(d.Init)}
	}
	tok := token.VAR
	if v, ok := d.Sym.(*VarSymbol); ok && v.Const != VarVar {
		tok = token.CONST
	}
	return &ast.GenDecl{Tok: tok, Specs: []ast.Spec{spec}}
}

func declType(d *DefExpr) ast.Expr {
	if d.ExprType != nil {
		return expr(d.ExprType)
	}
	return ast.NewIdent(TypeOf(d.Sym).String())
}

func blockStmt(b *BlockStmt) *ast.BlockStmt {
	if b == nil {
		return &ast.BlockStmt{}
	}
	return &ast.BlockStmt{List: stmtList(b.Body)}
}

func stmtList(list []Expr) []ast.Stmt {
	var out []ast.Stmt
	var labels []*LabelSymbol
	for _, e := range list {
		if d, ok := e.(*DefExpr); ok {
			if l, ok := d.Sym.(*LabelSymbol); ok {
				labels = append(labels, l)
				continue
			}
		}
		out = append(out, labeled(labels, stmt(e)))
		labels = nil
	}
	if len(labels) > 0 {
		out = append(out, labeled(labels, &ast.EmptyStmt{Implicit: true}))
	}
	return out
}

func labeled(labels []*LabelSymbol, s ast.Stmt) ast.Stmt {
	for i := len(labels) - 1; i >= 0; i-- {
		s = &ast.LabeledStmt{Label: ast.NewIdent(labels[i].Name()), Stmt: s}
	}
	return s
}

func stmt(e Expr) ast.Stmt {
	switch e := e.(type) {
	case *DefExpr:
		switch s := e.Sym.(type) {
		case *FnSymbol:
			return &ast.AssignStmt{
				Lhs: []ast.Expr{ast.NewIdent(s.Name())},
				Tok: token.DEFINE,
				Rhs: []ast.Expr{&ast.FuncLit{Type: fnType(s), Body: blockStmt(s.Body)}},
			}
		case *TypeSymbol:
			return &ast.DeclStmt{Decl: typeDecl(s)}
		default:
			return &ast.DeclStmt{Decl: varDecl(e)}
		}
	case *BlockStmt:
		return blockStmt(e)
	case *CondStmt:
		s := &ast.IfStmt{Cond: expr(e.Cond), Body: blockStmt(e.Then)}
		if e.Else != nil {
			s.Else = blockStmt(e.Else)
		}
		return s
	case *WhileStmt:
		if e.Pre == nil || len(e.Pre.Body) == 0 {
			return &ast.ForStmt{Cond: expr(e.Cond), Body: blockStmt(e.Body)}
		}
		body := stmtList(e.Pre.Body)
		body = append(body, &ast.IfStmt{
			Cond: &ast.UnaryExpr{Op: token.NOT, X: paren(expr(e.Cond))},
			Body: &ast.BlockStmt{List: []ast.Stmt{&ast.BranchStmt{Tok: token.BREAK}}},
		})
		body = append(body, blockStmt(e.Body).List...)
		return &ast.ForStmt{Body: &ast.BlockStmt{List: body}}
	case *GotoStmt:
		return &ast.BranchStmt{Tok: token.GOTO, Label: ast.NewIdent(e.Label.Name())}
	case *ReturnStmt:
		if e.Yield {
			return &ast.ExprStmt{X: &ast.CallExpr{Fun: ast.NewIdent("yield"), Args: []ast.Expr{expr(e.Expr)}}}
		}
		s := &ast.ReturnStmt{}
		if e.Expr != nil {
			s.Results = []ast.Expr{expr(e.Expr)}
		}
		return s
	case *CallExpr:
		if e.IsNamed("=") && len(e.Args) == 2 {
			return &ast.AssignStmt{
				Lhs: []ast.Expr{expr(e.Args[0])},
				Tok: token.ASSIGN,
				Rhs: []ast.Expr{expr(e.Args[1])},
			}
		}
	}
	return &ast.ExprStmt{X: expr(e)}
}

var binaryOps = map[string]token.Token{
	"+":  token.ADD,
	"-":  token.SUB,
	"*":  token.MUL,
	"/":  token.QUO,
	"%":  token.REM,
	"&":  token.AND,
	"|":  token.OR,
	"^":  token.XOR,
	"==": token.EQL,
	"!=": token.NEQ,
	"<":  token.LSS,
	"<=": token.LEQ,
	">":  token.GTR,
	">=": token.GEQ,
	"&&": token.LAND,
	"||": token.LOR,
	"=":  token.ASSIGN,
}

var unaryOps = map[string]token.Token{
	"!": token.NOT,
	"-": token.SUB,
}

func expr(e Expr) ast.Expr {
	switch e := e.(type) {
	case nil:
		return ast.NewIdent("void")
	case *SymExpr:
		return ast.NewIdent(e.Sym.Name())
	case *NameExpr:
		return ast.NewIdent(e.Name)
	case *Lit:
		switch e.Kind {
		case IntLit:
			return &ast.BasicLit{Kind: token.INT, Value: strconv.FormatInt(e.Int, 10)}
		case StringLit:
			return &ast.BasicLit{Kind: token.STRING, Value: strconv.Quote(e.Str)}
		default:
			return ast.NewIdent(strconv.FormatBool(e.Bool))
		}
	case *DefExpr:
		return ast.NewIdent("?" + e.Sym.Name())
	case *CallExpr:
		return callExpr(e)
	}
	return ast.NewIdent(fmt.Sprintf("<%T>", e))
}

func callExpr(c *CallExpr) ast.Expr {
	args := make([]ast.Expr, len(c.Args))
	for i, a := range c.Args {
		args[i] = expr(a)
	}
	if c.Prim != PrimNone {
		return &ast.CallExpr{Fun: ast.NewIdent("__" + c.Prim.String()), Args: args}
	}
	name := ""
	if n, ok := c.Base.(*NameExpr); ok {
		name = n.Name
	}
	if name == "." && len(c.Args) == 2 {
		if field, ok := IsString(c.Args[1]); ok {
			return &ast.SelectorExpr{X: args[0], Sel: ast.NewIdent(field)}
		}
	}
	if op, ok := binaryOps[name]; ok && len(args) == 2 {
		return &ast.BinaryExpr{
			X:  parenIf(args[0], op, false),
			Op: op,
			Y:  parenIf(args[1], op, true),
		}
	}
	if op, ok := unaryOps[name]; ok && len(args) == 1 {
		return &ast.UnaryExpr{Op: op, X: paren(args[0])}
	}
	return &ast.CallExpr{Fun: expr(c.Base), Args: args}
}

func paren(x ast.Expr) ast.Expr {
	switch x.(type) {
	case *ast.BinaryExpr, *ast.UnaryExpr:
		return &ast.ParenExpr{X: x}
	}
	return x
}

func parenIf(x ast.Expr, parent token.Token, right bool) ast.Expr {
	b, ok := x.(*ast.BinaryExpr)
	if !ok {
		return x
	}
	if p := b.Op.Precedence(); p < parent.Precedence() || (right && p == parent.Precedence()) {
		return &ast.ParenExpr{X: x}
	}
	return x
}
