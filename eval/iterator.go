package eval

import (
	"fmt"

	"github.com/stealthrocket/iterlower"
	"github.com/stealthrocket/iterlower/ir"
)

// Iterator drives an instance of a lowered iterator class through the
// methods generated for it.
type Iterator struct {
	in  *Interp
	obj *Object
}

var _ iterlower.Protocol = (*Iterator)(nil)

// Iterator returns the protocol of v, which must be an instance of a
// lowered iterator class, as returned by the iterator's factory.
func (in *Interp) Iterator(v Value) (*Iterator, error) {
	obj, ok := v.(*Object)
	if !ok || !obj.Class.IsIterator {
		return nil, fmt.Errorf("%s is not an iterator", Format(v))
	}
	return &Iterator{in: in, obj: obj}, nil
}

func (it *Iterator) call(method string, args ...Value) (Value, error) {
	it.in.steps = 0
	return it.in.callNamed(nil, method, append([]Value{methodToken, it.obj}, args...), nil)
}

func (it *Iterator) cursor(method string, args ...Value) (int64, error) {
	v, err := it.call(method, args...)
	if err != nil {
		return 0, err
	}
	c, ok := v.(int64)
	if !ok {
		return 0, fmt.Errorf("%s returned %s, not a cursor", method, Format(v))
	}
	return c, nil
}

func (it *Iterator) HeadCursor() (int64, error) {
	return it.cursor("getHeadCursor")
}

func (it *Iterator) NextCursor(cursor int64) (int64, error) {
	return it.cursor("getNextCursor", cursor)
}

func (it *Iterator) Value(cursor int64) (any, error) {
	return it.call("getValue", cursor)
}

func (it *Iterator) ValidCursor(cursor int64) (bool, error) {
	v, err := it.call("isValidCursor", cursor)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("isValidCursor returned %s", Format(v))
	}
	return b, nil
}

// ElemType returns the type of the values the iterator produces.
func (it *Iterator) ElemType() (ir.Type, error) {
	v, err := it.call("getElemType")
	if err != nil {
		return nil, err
	}
	t, ok := v.(Type)
	if !ok {
		return nil, fmt.Errorf("getElemType returned %s", Format(v))
	}
	return t.Type, nil
}

// Object returns the iterator instance.
func (it *Iterator) Object() *Object { return it.obj }
