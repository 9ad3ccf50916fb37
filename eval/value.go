package eval

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/stealthrocket/iterlower/ir"
)

// Value is a runtime value: an int64, bool, string, *Object, Type, one of
// the method or setter tokens, or nil.
type Value = any

// Object is an instance of a class.
type Object struct {
	Class  *ir.ClassType
	Fields map[string]Value
}

func newObject(class *ir.ClassType) *Object {
	obj := &Object{Class: class, Fields: make(map[string]Value)}
	for _, def := range class.FieldDefs() {
		obj.Fields[def.Sym.Name()] = Zero(ir.TypeOf(def.Sym))
	}
	return obj
}

func (o *Object) String() string {
	var b strings.Builder
	b.WriteString(o.Class.String())
	b.WriteByte('{')
	for i, def := range o.Class.FieldDefs() {
		if i > 0 {
			b.WriteString(", ")
		}
		name := def.Sym.Name()
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(Format(o.Fields[name]))
	}
	b.WriteByte('}')
	return b.String()
}

// Type is a type used as a value, as produced by typeof.
type Type struct {
	ir.Type
}

type token int

const (
	methodToken token = iota + 1
	setterToken
)

func (t token) String() string {
	if t == methodToken {
		return "_mt"
	}
	return "_st"
}

// Zero returns the default value of t.
func Zero(t ir.Type) Value {
	p, ok := t.(*ir.PrimitiveType)
	if !ok {
		return nil
	}
	switch p.Kind {
	case ir.KindInt, ir.KindUInt:
		return int64(0)
	case ir.KindBool:
		return false
	case ir.KindString:
		return ""
	}
	return nil
}

// TypeOf returns the runtime type of v.
func TypeOf(v Value) ir.Type {
	switch v := v.(type) {
	case int64:
		return ir.Int(0)
	case bool:
		return ir.Bool
	case string:
		return ir.String
	case *Object:
		return v.Class
	case Type:
		return v.Type
	case token:
		if v == methodToken {
			return ir.MethodTokenType
		}
		return ir.SetterTokenType
	}
	return ir.Void
}

// Format renders v the way values are printed by the command line tool.
func Format(v Value) string {
	switch v := v.(type) {
	case nil:
		return "nil"
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	case string:
		return strconv.Quote(v)
	case Type:
		return "type " + v.String()
	}
	return fmt.Sprint(v)
}

// cast converts v to the type t, truncating integers to the width of t.
func cast(t ir.Type, v Value) (Value, error) {
	p, ok := t.(*ir.PrimitiveType)
	if !ok {
		if class, ok := t.(*ir.ClassType); ok {
			if obj, ok := v.(*Object); ok && obj.Class != class {
				return nil, fmt.Errorf("cannot cast %s to %s", obj.Class, class)
			}
		}
		return v, nil
	}
	switch p.Kind {
	case ir.KindInt, ir.KindUInt:
		var i int64
		switch v := v.(type) {
		case int64:
			i = v
		case bool:
			if v {
				i = 1
			}
		default:
			return nil, fmt.Errorf("cannot cast %s to %s", Format(v), t)
		}
		return truncate(p, i), nil
	case ir.KindBool:
		switch v := v.(type) {
		case bool:
			return v, nil
		case int64:
			return v != 0, nil
		}
		return nil, fmt.Errorf("cannot cast %s to %s", Format(v), t)
	case ir.KindString:
		switch v := v.(type) {
		case string:
			return v, nil
		case int64:
			return strconv.FormatInt(v, 10), nil
		case bool:
			return strconv.FormatBool(v), nil
		}
		return nil, fmt.Errorf("cannot cast %s to %s", Format(v), t)
	}
	return v, nil
}

func truncate(t *ir.PrimitiveType, i int64) int64 {
	switch {
	case t.Width >= 64:
		return i
	case t.Kind == ir.KindUInt:
		return i & (1<<t.Width - 1)
	default:
		shift := 64 - t.Width
		return i << shift >> shift
	}
}
