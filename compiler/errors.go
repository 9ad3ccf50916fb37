package compiler

import (
	"fmt"

	"github.com/stealthrocket/iterlower/ir"
)

// InternalError reports a violated invariant of the input tree, such as a
// constructor formal that cannot be linked back to a field. It indicates a
// bug in the front end that produced the tree rather than a user error.
type InternalError struct {
	Pos ir.Pos
	Msg string
}

func (e *InternalError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s: internal error: %s", e.Pos, e.Msg)
	}
	return "internal error: " + e.Msg
}

// fatalf aborts the current normalization. The panic is recovered at the
// package boundary and returned as an *InternalError.
func (n *normalizer) fatalf(at ir.Node, format string, args ...any) {
	pos := n.loc
	if at != nil && at.Pos().IsValid() {
		pos = at.Pos()
	}
	panic(&InternalError{Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

func recoverInternalError(err *error) {
	switch r := recover().(type) {
	case nil:
	case *InternalError:
		*err = r
	default:
		panic(r)
	}
}
