package eval

import (
	"fmt"

	"github.com/stealthrocket/iterlower/ir"
)

type opcode uint8

const (
	opEval   opcode = iota // evaluate expr for its effects
	opDecl                 // bind the variable defined by def
	opJump                 // continue at target
	opBranch               // continue at target when expr is false
	opReturn               // return expr, or nil
	opYield                // yield outside of a lowered iterator
)

type instr struct {
	op     opcode
	expr   ir.Expr
	def    *ir.DefExpr
	label  *ir.LabelSymbol
	target int
	pos    ir.Pos
}

// program is a function body flattened into a list of instructions, so
// that gotos may jump anywhere in it, including into loops.
type program struct {
	code []instr
}

func assemble(body *ir.BlockStmt) (*program, error) {
	a := &assembler{labels: make(map[*ir.LabelSymbol]int)}
	a.stmt(body)
	a.emit(instr{op: opReturn, pos: body.Pos()})
	for i := range a.code {
		ins := &a.code[i]
		if ins.op != opJump || ins.label == nil {
			continue
		}
		target, ok := a.labels[ins.label]
		if !ok {
			return nil, fmt.Errorf("%s: goto %s: label not defined", ins.pos, ins.label.Name())
		}
		ins.target = target
	}
	return &program{code: a.code}, nil
}

type assembler struct {
	code   []instr
	labels map[*ir.LabelSymbol]int
}

func (a *assembler) emit(ins instr) int {
	a.code = append(a.code, ins)
	return len(a.code) - 1
}

func (a *assembler) stmt(e ir.Expr) {
	switch s := e.(type) {
	case nil:
	case *ir.BlockStmt:
		if s == nil {
			break
		}
		for _, x := range s.Body {
			a.stmt(x)
		}
	case *ir.DefExpr:
		switch sym := s.Sym.(type) {
		case *ir.LabelSymbol:
			a.labels[sym] = len(a.code)
		case *ir.VarSymbol:
			a.emit(instr{op: opDecl, def: s, pos: s.Pos()})
		}
	case *ir.CondStmt:
		branch := a.emit(instr{op: opBranch, expr: s.Cond, pos: s.Pos()})
		a.stmt(s.Then)
		if s.Else == nil {
			a.code[branch].target = len(a.code)
			break
		}
		jump := a.emit(instr{op: opJump, pos: s.Pos()})
		a.code[branch].target = len(a.code)
		a.stmt(s.Else)
		a.code[jump].target = len(a.code)
	case *ir.WhileStmt:
		top := len(a.code)
		a.stmt(s.Pre)
		branch := a.emit(instr{op: opBranch, expr: s.Cond, pos: s.Pos()})
		a.stmt(s.Body)
		a.emit(instr{op: opJump, target: top, pos: s.Pos()})
		a.code[branch].target = len(a.code)
	case *ir.GotoStmt:
		a.emit(instr{op: opJump, label: s.Label, pos: s.Pos()})
	case *ir.ReturnStmt:
		op := opReturn
		if s.Yield {
			op = opYield
		}
		a.emit(instr{op: op, expr: s.Expr, pos: s.Pos()})
	default:
		a.emit(instr{op: opEval, expr: e, pos: e.Pos()})
	}
}
