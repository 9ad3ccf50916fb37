package compiler

import (
	"fmt"

	"github.com/stealthrocket/iterlower/ir"
)

// replaceYields turns every yield of fn into a suspension point.
//
// The i-th yield (counting from one in textual order) is preceded by a
// return of i and followed by a definition of the label return_i, where
// the next call resumes. The yield statement itself is detached and
// returned in values so that its expression can be evaluated by the value
// method. labels[0] is the label of the body's entry point; it is created
// here but defined by the resume table.
//
// A plain return ends the iteration, so it is rewritten to return the
// exhausted cursor N+1.
func replaceYields(fn *ir.FnSymbol) (values []*ir.ReturnStmt, labels []*ir.LabelSymbol) {
	labels = append(labels, ir.NewLabel("return_0"))
	var exits []*ir.ReturnStmt
	for _, rs := range ir.CollectOf[*ir.ReturnStmt](fn.Body) {
		if ir.EnclosingFn(rs) != fn {
			continue
		}
		if !rs.Yield {
			exits = append(exits, rs)
			continue
		}
		i := len(values) + 1
		label := ir.NewLabel(fmt.Sprintf("return_%d", i))
		ir.InsertBefore(rs, ir.NewReturn(ir.NewInt(int64(i))))
		ir.InsertAfter(rs, ir.NewDef(label, nil, nil))
		values = append(values, ir.Remove(rs))
		labels = append(labels, label)
	}
	for _, rs := range exits {
		ir.Replace(rs, ir.NewReturn(ir.NewInt(int64(len(values)+1))))
	}
	return values, labels
}
