package compiler

import (
	"github.com/stealthrocket/iterlower/ir"
)

// buildResumeTable prepends to the body of fn a chain of branches that
// jumps to labels[i] when the cursor equals i, followed by the definition
// of labels[0]. Resuming at cursor 0 therefore starts the body from the
// beginning. A return of the exhausted cursor len(labels) is appended to
// the body for when control falls off its end.
//
// The chain is built from the last label to the first so that the branch
// on cursor 0 comes first.
func buildResumeTable(fn *ir.FnSymbol, cursor *ir.ArgSymbol, labels []*ir.LabelSymbol) {
	table := ir.NewBlock(ir.NewDef(labels[0], nil, nil))
	for i := len(labels) - 1; i >= 0; i-- {
		table.InsertAtHead(ir.NewCond(
			ir.Call("==", ir.NewSym(cursor), ir.NewInt(int64(i))),
			ir.NewBlock(ir.NewGoto(labels[i])),
			nil,
		))
	}
	fn.InsertAtHead(table)
	fn.InsertAtTail(ir.NewReturn(ir.NewInt(int64(len(labels)))))
}

// buildValueTable prepends to the body of fn one branch per yield: when
// the cursor equals i, the i-th yield's expression is returned. Cursors
// matching no branch fall through to the rest of the body.
func buildValueTable(fn *ir.FnSymbol, cursor *ir.ArgSymbol, values []*ir.ReturnStmt) {
	table := ir.NewBlock()
	for i, rs := range values {
		rs.Yield = false
		table.InsertAtTail(ir.NewCond(
			ir.Call("==", ir.NewSym(cursor), ir.NewInt(int64(i+1))),
			ir.NewBlock(rs),
			nil,
		))
	}
	fn.InsertAtHead(table)
}
