package lower

import (
	"kestrel/internal/diag"
	"kestrel/internal/hir"
	"kestrel/internal/ir"
	"kestrel/internal/types"
)

// block lowers blk in a fresh scope starting at b. It returns the block
// where control continues, or nil when every path terminated. Statements
// after a terminator are unreachable and skipped.
func (fl *funcLowerer) block(b *ir.Block, blk *hir.Block) (*ir.Block, error) {
	if blk == nil {
		return b, nil
	}
	fl.push()
	defer fl.pop()
	for _, s := range blk.Stmts {
		if b == nil {
			break
		}
		next, err := fl.stmt(b, s)
		if err != nil {
			return nil, err
		}
		b = next
	}
	return b, nil
}

func (fl *funcLowerer) stmt(b *ir.Block, s *hir.Stmt) (*ir.Block, error) {
	if s == nil {
		return b, nil
	}
	if err := fl.l.ctx.Err(); err != nil {
		return nil, err
	}
	switch s.Kind {
	case hir.StmtVar:
		return fl.varStmt(b, s)
	case hir.StmtExpr:
		return fl.exprStmt(b, s)
	case hir.StmtAssign:
		return fl.assign(b, s)
	case hir.StmtReturn:
		return fl.ret(b, s)
	case hir.StmtIf:
		return fl.ifStmt(b, s)
	case hir.StmtWhile:
		return fl.while(b, s)
	case hir.StmtDoWhile:
		return fl.doWhile(b, s)
	case hir.StmtFor:
		return fl.forStmt(b, s)
	case hir.StmtBlock:
		return fl.block(b, s.Block)
	case hir.StmtBreak, hir.StmtContinue:
		return fl.jump(b, s)
	case hir.StmtTry:
		return fl.try(b, s)
	case hir.StmtThrow:
		return fl.throw(b, s)
	case hir.StmtDelete:
		return fl.delete(b, s)
	}
	return nil, diag.Errorf(diag.LowMalformedTree, s.Span, "unknown statement kind %s", s.Kind)
}

func (fl *funcLowerer) varStmt(b *ir.Block, s *hir.Stmt) (*ir.Block, error) {
	v := s.Var
	if v == nil || len(v.Names) != len(v.Types) {
		return nil, diag.Errorf(diag.LowMalformedTree, s.Span, "malformed declaration")
	}
	switch {
	case len(v.Values) == 0:
		for i, name := range v.Names {
			slot, err := fl.slot(name, v.Types[i], s.Span)
			if err != nil {
				return nil, err
			}
			b.Store(ir.Zero(slot.Elem), slot)
			fl.define(name, v.Types[i], slot)
		}
		return b, nil
	case len(v.Values) == len(v.Names):
		vals := make([]ir.Value, len(v.Values))
		for i, x := range v.Values {
			val, next, err := fl.valueAs(b, x, v.Types[i])
			if err != nil {
				return nil, err
			}
			b, vals[i] = next, val
		}
		for i, name := range v.Names {
			if err := fl.bind(b, name, v.Types[i], vals[i], s.Span); err != nil {
				return nil, err
			}
		}
		return b, nil
	case len(v.Values) == 1 && isMulti(fl.types(), v.Values[0]):
		slots := make([]*ir.Instr, len(v.Names))
		for i, name := range v.Names {
			slot, err := fl.slot(name, v.Types[i], s.Span)
			if err != nil {
				return nil, err
			}
			slots[i] = slot
		}
		b, err := fl.callInto(b, v.Values[0], len(v.Names), func(i int) (place, bool) {
			return place{kind: placeMemory, addr: slots[i], typ: v.Types[i], name: v.Names[i], span: s.Span}, true
		}, true)
		if err != nil {
			return nil, err
		}
		for i, name := range v.Names {
			fl.define(name, v.Types[i], slots[i])
		}
		return b, nil
	}
	return nil, diag.Errorf(diag.LowArityMismatch, s.Span, "%d names declared with %d values", len(v.Names), len(v.Values))
}

func (fl *funcLowerer) exprStmt(b *ir.Block, s *hir.Stmt) (*ir.Block, error) {
	if s.Expr != nil && s.Expr.Kind == hir.ExprCall {
		_, b, err := fl.call(b, s.Expr, nil)
		return b, err
	}
	_, b, err := fl.value(b, s.Expr)
	return b, err
}

func (fl *funcLowerer) ret(b *ir.Block, s *hir.Stmt) (*ir.Block, error) {
	var values []*hir.Expr
	if s.Return != nil {
		values = s.Return.Values
	}
	in := fl.types()
	switch {
	case len(fl.results) == 0:
		if len(values) != 0 {
			return nil, diag.Errorf(diag.LowBadReturn, s.Span, "@%s returns no value", fl.fn.Name)
		}
		fl.restoreTries(b, 0)
		b.RetVoid()
		return nil, nil
	case len(values) == 0:
		return nil, diag.Errorf(diag.LowBadReturn, s.Span, "@%s must return %d value(s)", fl.fn.Name, len(fl.results))
	case len(fl.results) == 1:
		if len(values) != 1 {
			return nil, diag.Errorf(diag.LowBadReturn, s.Span, "@%s returns one value, got %d", fl.fn.Name, len(values))
		}
		v, b, err := fl.valueAs(b, values[0], fl.results[0])
		if err != nil {
			return nil, err
		}
		fl.restoreTries(b, 0)
		b.Ret(v)
		return nil, nil
	}

	switch {
	case len(values) == len(fl.results):
		vals := make([]ir.Value, len(values))
		for i, x := range values {
			v, next, err := fl.valueAs(b, x, fl.results[i])
			if err != nil {
				return nil, err
			}
			b, vals[i] = next, v
		}
		for i, v := range vals {
			b.Store(v, fl.outs[i])
		}
	case len(values) == 1 && isMulti(in, values[0]):
		members, _ := in.ListMembers(values[0].Type)
		if len(members) != len(fl.results) {
			return nil, diag.Errorf(diag.LowBadReturn, s.Span, "@%s returns %d values, call yields %d", fl.fn.Name, len(fl.results), len(members))
		}
		next, err := fl.callInto(b, values[0], len(fl.results), func(i int) (place, bool) {
			return place{kind: placeMemory, addr: fl.outs[i], typ: fl.results[i], span: s.Span}, true
		}, true)
		if err != nil {
			return nil, err
		}
		b = next
	default:
		return nil, diag.Errorf(diag.LowBadReturn, s.Span, "@%s returns %d values, got %d", fl.fn.Name, len(fl.results), len(values))
	}
	fl.restoreTries(b, 0)
	b.RetVoid()
	return nil, nil
}

func (fl *funcLowerer) ifStmt(b *ir.Block, s *hir.Stmt) (*ir.Block, error) {
	st := s.If
	cond, b, err := fl.boolValue(b, st.Cond)
	if err != nil {
		return nil, err
	}
	then := fl.fn.NewBlock("then")
	var els, merge *ir.Block
	if st.Else != nil {
		els = fl.fn.NewBlock("else")
	} else {
		merge = fl.fn.NewBlock("endif")
		els = merge
	}
	b.CondBr(cond, then, els)

	thenEnd, err := fl.block(then, st.Then)
	if err != nil {
		return nil, err
	}
	elseEnd := merge
	if st.Else != nil {
		if elseEnd, err = fl.block(els, st.Else); err != nil {
			return nil, err
		}
	}
	if thenEnd == nil && elseEnd == nil {
		return nil, nil
	}
	if merge == nil {
		merge = fl.fn.NewBlock("endif")
	}
	if thenEnd != nil {
		thenEnd.Br(merge)
	}
	if st.Else != nil && elseEnd != nil {
		elseEnd.Br(merge)
	}
	return merge, nil
}

func (fl *funcLowerer) loop(brk, cont *ir.Block, entry *ir.Block, body *hir.Block) (*ir.Block, error) {
	fl.loops = append(fl.loops, loopTargets{brk: brk, cont: cont, tries: len(fl.tries)})
	defer func() { fl.loops = fl.loops[:len(fl.loops)-1] }()
	return fl.block(entry, body)
}

func (fl *funcLowerer) while(b *ir.Block, s *hir.Stmt) (*ir.Block, error) {
	cond := fl.fn.NewBlock("while.cond")
	body := fl.fn.NewBlock("while.body")
	exit := fl.fn.NewBlock("while.end")
	b.Br(cond)
	c, condEnd, err := fl.boolValue(cond, s.Loop.Cond)
	if err != nil {
		return nil, err
	}
	condEnd.CondBr(c, body, exit)
	end, err := fl.loop(exit, cond, body, s.Loop.Body)
	if err != nil {
		return nil, err
	}
	if end != nil {
		end.Br(cond)
	}
	return exit, nil
}

func (fl *funcLowerer) doWhile(b *ir.Block, s *hir.Stmt) (*ir.Block, error) {
	body := fl.fn.NewBlock("do.body")
	cond := fl.fn.NewBlock("do.cond")
	exit := fl.fn.NewBlock("do.end")
	b.Br(body)
	end, err := fl.loop(exit, cond, body, s.Loop.Body)
	if err != nil {
		return nil, err
	}
	if end != nil {
		end.Br(cond)
	}
	c, condEnd, err := fl.boolValue(cond, s.Loop.Cond)
	if err != nil {
		return nil, err
	}
	condEnd.CondBr(c, body, exit)
	return exit, nil
}

func (fl *funcLowerer) forStmt(b *ir.Block, s *hir.Stmt) (*ir.Block, error) {
	st := s.For
	fl.push()
	defer fl.pop()
	b, err := fl.stmt(b, st.Init)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, nil
	}
	cond := fl.fn.NewBlock("for.cond")
	body := fl.fn.NewBlock("for.body")
	post := fl.fn.NewBlock("for.post")
	exit := fl.fn.NewBlock("for.end")
	b.Br(cond)
	if st.Cond == nil {
		cond.Br(body)
	} else {
		c, condEnd, err := fl.boolValue(cond, st.Cond)
		if err != nil {
			return nil, err
		}
		condEnd.CondBr(c, body, exit)
	}
	end, err := fl.loop(exit, post, body, st.Body)
	if err != nil {
		return nil, err
	}
	if end != nil {
		end.Br(post)
	}
	postEnd, err := fl.stmt(post, st.Post)
	if err != nil {
		return nil, err
	}
	if postEnd != nil {
		postEnd.Br(cond)
	}
	return exit, nil
}

func (fl *funcLowerer) jump(b *ir.Block, s *hir.Stmt) (*ir.Block, error) {
	if len(fl.loops) == 0 {
		return nil, diag.Errorf(diag.LowOutsideLoop, s.Span, "%s outside of a loop", s.Kind)
	}
	lp := fl.loops[len(fl.loops)-1]
	fl.restoreTries(b, lp.tries)
	if s.Kind == hir.StmtBreak {
		b.Br(lp.brk)
	} else {
		b.Br(lp.cont)
	}
	return nil, nil
}

// isMulti reports whether e is a call yielding several values.
func isMulti(in *types.Interner, e *hir.Expr) bool {
	if e == nil || e.Kind != hir.ExprCall {
		return false
	}
	_, ok := in.ListMembers(e.Type)
	return ok
}
