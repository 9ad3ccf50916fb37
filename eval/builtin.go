package eval

import (
	"cmp"
	"errors"
	"fmt"

	"github.com/stealthrocket/iterlower/ir"
)

type builtin func(args []Value) (Value, error)

var errDivideByZero = errors.New("division by zero")

var builtins = map[string]builtin{
	"+": func(args []Value) (Value, error) {
		if len(args) == 2 {
			if a, ok := args[0].(string); ok {
				if b, ok := args[1].(string); ok {
					return a + b, nil
				}
			}
		}
		return arith(args, func(a, b int64) (int64, error) { return a + b, nil })
	},
	"-": func(args []Value) (Value, error) {
		if len(args) == 1 {
			a, ok := args[0].(int64)
			if !ok {
				return nil, operandError(args)
			}
			return -a, nil
		}
		return arith(args, func(a, b int64) (int64, error) { return a - b, nil })
	},
	"*": binary(func(a, b int64) (int64, error) { return a * b, nil }),
	"/": binary(func(a, b int64) (int64, error) {
		if b == 0 {
			return 0, errDivideByZero
		}
		return a / b, nil
	}),
	"%": binary(func(a, b int64) (int64, error) {
		if b == 0 {
			return 0, errDivideByZero
		}
		return a % b, nil
	}),
	"<":  compare(func(c int) bool { return c < 0 }),
	"<=": compare(func(c int) bool { return c <= 0 }),
	">":  compare(func(c int) bool { return c > 0 }),
	">=": compare(func(c int) bool { return c >= 0 }),
	"==": func(args []Value) (Value, error) {
		if len(args) != 2 {
			return nil, arityError(2, args)
		}
		return args[0] == args[1], nil
	},
	"!=": func(args []Value) (Value, error) {
		if len(args) != 2 {
			return nil, arityError(2, args)
		}
		return args[0] != args[1], nil
	},
	"&&": logic(func(a, b bool) bool { return a && b }),
	"||": logic(func(a, b bool) bool { return a || b }),
	"!": func(args []Value) (Value, error) {
		if len(args) != 1 {
			return nil, arityError(1, args)
		}
		b, ok := args[0].(bool)
		if !ok {
			return nil, operandError(args)
		}
		return !b, nil
	},
	"=": func(args []Value) (Value, error) {
		if len(args) != 2 {
			return nil, arityError(2, args)
		}
		return args[1], nil
	},
	"_copy": func(args []Value) (Value, error) {
		if len(args) != 1 {
			return nil, arityError(1, args)
		}
		return args[0], nil
	},
	"_init": func(args []Value) (Value, error) {
		if len(args) != 1 {
			return nil, arityError(1, args)
		}
		if t, ok := args[0].(Type); ok {
			return Zero(t.Type), nil
		}
		return Zero(TypeOf(args[0])), nil
	},
	"_cast": func(args []Value) (Value, error) {
		if len(args) != 2 {
			return nil, arityError(2, args)
		}
		t, ok := args[0].(Type)
		if !ok {
			return nil, fmt.Errorf("%s is not a type", Format(args[0]))
		}
		return cast(t.Type, args[1])
	},
	".": func(args []Value) (Value, error) {
		if len(args) != 2 {
			return nil, arityError(2, args)
		}
		obj, ok := args[0].(*Object)
		name, isName := args[1].(string)
		if !ok || !isName {
			return nil, operandError(args)
		}
		v, found := obj.Fields[name]
		if !found {
			return nil, fmt.Errorf("%s has no field %s", obj.Class, name)
		}
		return v, nil
	},
}

func binary(f func(a, b int64) (int64, error)) builtin {
	return func(args []Value) (Value, error) { return arith(args, f) }
}

func arith(args []Value, f func(a, b int64) (int64, error)) (Value, error) {
	if len(args) != 2 {
		return nil, arityError(2, args)
	}
	a, ok1 := args[0].(int64)
	b, ok2 := args[1].(int64)
	if !ok1 || !ok2 {
		return nil, operandError(args)
	}
	v, err := f(a, b)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func compare(f func(int) bool) builtin {
	return func(args []Value) (Value, error) {
		if len(args) != 2 {
			return nil, arityError(2, args)
		}
		switch a := args[0].(type) {
		case int64:
			if b, ok := args[1].(int64); ok {
				return f(cmp.Compare(a, b)), nil
			}
		case string:
			if b, ok := args[1].(string); ok {
				return f(cmp.Compare(a, b)), nil
			}
		}
		return nil, operandError(args)
	}
}

func logic(f func(a, b bool) bool) builtin {
	return func(args []Value) (Value, error) {
		if len(args) != 2 {
			return nil, arityError(2, args)
		}
		a, ok1 := args[0].(bool)
		b, ok2 := args[1].(bool)
		if !ok1 || !ok2 {
			return nil, operandError(args)
		}
		return f(a, b), nil
	}
}

func arityError(want int, args []Value) error {
	return fmt.Errorf("takes %d arguments, got %d", want, len(args))
}

func operandError(args []Value) error {
	types := make([]ir.Type, len(args))
	for i, a := range args {
		types[i] = TypeOf(a)
	}
	return fmt.Errorf("invalid operands %v", types)
}
