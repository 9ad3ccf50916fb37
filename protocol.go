// Package iterlower drives iterators lowered to the cursor protocol.
//
// An iterator lowered by the compiler package becomes a class whose
// instances answer four questions about their cursors. Where does
// iteration start? Which cursor follows a given one? What value is
// produced at a cursor? Does a cursor designate a value at all? Protocol is
// that interface seen from Go; the eval package implements it for
// interpreted modules.
package iterlower

// Protocol is the cursor protocol of a lowered iterator instance.
//
// Cursors are small integers. An iterator with N suspension points uses
// the cursors 1 through N for values and N+1 once it is exhausted.
type Protocol interface {
	// HeadCursor returns the cursor of the first value, running the
	// iterator from its beginning.
	HeadCursor() (int64, error)

	// NextCursor resumes the iterator after the suspension point cursor
	// and returns the cursor of the next value. Calling it with the
	// exhausted cursor is not allowed.
	NextCursor(cursor int64) (int64, error)

	// Value returns the value produced at the suspension point cursor.
	Value(cursor int64) (any, error)

	// ValidCursor reports whether cursor designates a value.
	ValidCursor(cursor int64) (bool, error)
}

// Run iterates p to completion, calling f for each value it produces.
// Iteration stops early when f returns false.
func Run(p Protocol, f func(any) bool) error {
	g := New(p)
	for g.Next() {
		if !f(g.Recv()) {
			break
		}
	}
	return g.Err()
}

// Collect returns the values produced by p.
func Collect(p Protocol) ([]any, error) {
	var values []any
	err := Run(p, func(v any) bool {
		values = append(values, v)
		return true
	})
	return values, err
}
