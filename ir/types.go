package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// Type is the static type attached to symbols. Types are either builtin
// primitives, which are shared and never mutated, or class types owned by
// the module that defines them.
type Type interface {
	Symbol() *TypeSymbol
	String() string
	typeNode()
}

type Kind int

const (
	KindUnknown Kind = iota
	KindAny
	KindVoid
	KindBool
	KindString
	KindMethodToken
	KindSetterToken
	KindInt
	KindUInt
	KindReal
	KindImag
	KindComplex
)

type PrimitiveType struct {
	Kind  Kind
	Width int
	sym   *TypeSymbol
}

func (t *PrimitiveType) Symbol() *TypeSymbol { return t.sym }
func (t *PrimitiveType) String() string      { return t.sym.name }
func (t *PrimitiveType) typeNode()           {}

// IsNumeric reports whether the type belongs to a family parameterized
// by width.
func (t *PrimitiveType) IsNumeric() bool { return len(widths[t.Kind]) > 0 }

var (
	Unknown         = newPrimitive(KindUnknown, 0, "?")
	Any             = newPrimitive(KindAny, 0, "any")
	Void            = newPrimitive(KindVoid, 0, "void")
	Bool            = newPrimitive(KindBool, 0, "bool")
	String          = newPrimitive(KindString, 0, "string")
	MethodTokenType = newPrimitive(KindMethodToken, 0, "_MethodToken")
	SetterTokenType = newPrimitive(KindSetterToken, 0, "_SetterToken")
)

var families = map[Kind]string{
	KindInt:     "int",
	KindUInt:    "uint",
	KindReal:    "real",
	KindImag:    "imag",
	KindComplex: "complex",
}

var widths = map[Kind][]int{
	KindInt:     {8, 16, 32, 64},
	KindUInt:    {8, 16, 32, 64},
	KindReal:    {32, 64},
	KindImag:    {32, 64},
	KindComplex: {64, 128},
}

var defaultWidths = map[Kind]int{
	KindInt:     64,
	KindUInt:    64,
	KindReal:    64,
	KindImag:    64,
	KindComplex: 128,
}

var numeric = func() map[Kind]map[int]*PrimitiveType {
	m := make(map[Kind]map[int]*PrimitiveType)
	for kind, ws := range widths {
		m[kind] = make(map[int]*PrimitiveType)
		for _, w := range ws {
			m[kind][w] = newPrimitive(kind, w, fmt.Sprintf("%s(%d)", families[kind], w))
		}
	}
	return m
}()

func newPrimitive(kind Kind, width int, name string) *PrimitiveType {
	t := &PrimitiveType{Kind: kind, Width: width}
	t.sym = &TypeSymbol{Type: t}
	t.sym.name = name
	return t
}

// Numeric returns the primitive of the given family and width, or nil if
// the width does not exist for that family. A zero width selects the
// default width.
func Numeric(kind Kind, width int) *PrimitiveType {
	if width == 0 {
		width = defaultWidths[kind]
	}
	return numeric[kind][width]
}

func Int(width int) *PrimitiveType { return Numeric(KindInt, width) }

// Widths returns the widths of a numeric family in increasing order.
func Widths(kind Kind) []int { return widths[kind] }

func DefaultWidth(kind Kind) int { return defaultWidths[kind] }

// Family returns the numeric family with the given name.
func Family(name string) (Kind, bool) {
	for kind, n := range families {
		if n == name {
			return kind, true
		}
	}
	return KindUnknown, false
}

// Builtin looks up a builtin type by name. Numeric types are accepted as
// "int" (default width), "int(32)" or "int32".
func Builtin(name string) *TypeSymbol {
	switch name {
	case "any":
		return Any.sym
	case "void":
		return Void.sym
	case "bool":
		return Bool.sym
	case "string":
		return String.sym
	}
	family, width := name, ""
	if i := strings.IndexByte(name, '('); i > 0 && strings.HasSuffix(name, ")") {
		family, width = name[:i], name[i+1:len(name)-1]
	} else if i := strings.IndexAny(name, "0123456789"); i > 0 {
		family, width = name[:i], name[i:]
	}
	kind, ok := Family(family)
	if !ok {
		return nil
	}
	w := 0
	if width != "" {
		n, err := strconv.Atoi(width)
		if err != nil {
			return nil
		}
		w = n
	}
	if t := Numeric(kind, w); t != nil {
		return t.sym
	}
	return nil
}

type ClassTag int

const (
	ClassClass ClassTag = iota
	ClassRecord
)

// ClassType is a nominal type with fields. Methods are defined at the
// module level and registered in Methods.
type ClassType struct {
	sym    *TypeSymbol
	Tag    ClassTag
	Fields *BlockStmt

	DefaultConstructor  *FnSymbol
	Methods             []*FnSymbol
	IsIterator          bool
	ScalarPromotionType Type
}

// NewClass returns a class type together with its symbol, ready to be
// wrapped in a DefExpr.
func NewClass(name string, tag ClassTag) *ClassType {
	c := &ClassType{Tag: tag}
	c.sym = &TypeSymbol{Type: c}
	c.sym.name = name
	c.Fields = adopt[*BlockStmt](c.sym, NewBlock())
	return c
}

func (c *ClassType) Symbol() *TypeSymbol { return c.sym }
func (c *ClassType) String() string      { return c.sym.name }
func (c *ClassType) typeNode()           {}

func (c *ClassType) AddField(def *DefExpr) { c.Fields.InsertAtTail(def) }

// FieldDefs returns the definitions of the fields in declaration order.
func (c *ClassType) FieldDefs() []*DefExpr {
	var defs []*DefExpr
	for _, stmt := range c.Fields.Body {
		if d, ok := stmt.(*DefExpr); ok {
			defs = append(defs, d)
		}
	}
	return defs
}

func (c *ClassType) Field(name string) *VarSymbol {
	for _, d := range c.FieldDefs() {
		if v, ok := d.Sym.(*VarSymbol); ok && v.name == name {
			return v
		}
	}
	return nil
}

func (c *ClassType) AddMethod(fn *FnSymbol) { c.Methods = append(c.Methods, fn) }

// TypeInfo returns the static type of e as far as it is known before type
// resolution.
func TypeInfo(e Expr) Type {
	switch e := e.(type) {
	case *SymExpr:
		return TypeOf(e.Sym)
	case *DefExpr:
		return TypeOf(e.Sym)
	case *NameExpr:
		if ts := Builtin(e.Name); ts != nil {
			return ts.Type
		}
	case *Lit:
		switch e.Kind {
		case IntLit:
			return Int(0)
		case StringLit:
			return String
		case BoolLit:
			return Bool
		}
	case *CallExpr:
		kind, ok := Family(e.Name())
		if !ok || len(e.Args) != 1 {
			break
		}
		if w, ok := e.Args[0].(*Lit); ok && w.Kind == IntLit {
			if t := Numeric(kind, int(w.Int)); t != nil {
				return t
			}
		}
	}
	return Unknown
}
