package lower

import (
	"kestrel/internal/diag"
	"kestrel/internal/hir"
	"kestrel/internal/ir"
	"kestrel/internal/types"
)

func (fl *funcLowerer) assign(b *ir.Block, s *hir.Stmt) (*ir.Block, error) {
	a := s.Assign
	if a == nil || len(a.Targets) == 0 {
		return nil, diag.Errorf(diag.LowMalformedTree, s.Span, "assignment without targets")
	}
	if op, ok := a.Op.Binary(); ok {
		if len(a.Targets) != 1 || len(a.Values) != 1 {
			return nil, diag.Errorf(diag.LowArityMismatch, s.Span, "%s takes one target and one value", a.Op)
		}
		return fl.compound(b, s, op)
	}
	in := fl.types()
	switch {
	case len(a.Values) == 1 && isMulti(in, a.Values[0]) && len(a.Targets) > 1:
		return fl.assignCall(b, s)
	case len(a.Values) == len(a.Targets) && len(a.Targets) == 1:
		if isBlank(a.Targets[0]) {
			return fl.exprStmt(b, &hir.Stmt{Kind: hir.StmtExpr, Span: s.Span, Expr: a.Values[0]})
		}
		p, b, err := fl.location(b, a.Targets[0])
		if err != nil {
			return nil, err
		}
		v, b, err := fl.valueAs(b, a.Values[0], p.typ)
		if err != nil {
			return nil, err
		}
		return b, fl.store(b, p, v)
	case len(a.Values) == len(a.Targets):
		return fl.assignParallel(b, s)
	}
	return nil, diag.Errorf(diag.LowArityMismatch, s.Span, "%d targets assigned %d values", len(a.Targets), len(a.Values))
}

// compound lowers x op= y. The target place is evaluated once.
func (fl *funcLowerer) compound(b *ir.Block, s *hir.Stmt, op hir.BinaryOp) (*ir.Block, error) {
	a := s.Assign
	p, b, err := fl.location(b, a.Targets[0])
	if err != nil {
		return nil, err
	}
	if !isScalar(fl.types(), p.typ) {
		return nil, diag.Errorf(diag.LowBadOperator, s.Span, "operator %s on %s", a.Op, types.Label(fl.types(), p.typ))
	}
	old, err := fl.load(b, p)
	if err != nil {
		return nil, err
	}
	y, b, err := fl.valueAs(b, a.Values[0], p.typ)
	if err != nil {
		return nil, err
	}
	return b, fl.store(b, p, b.Binary(arith[op], old, y))
}

// assignParallel evaluates every target and value before the first store,
// so `a, b = b, a` swaps.
func (fl *funcLowerer) assignParallel(b *ir.Block, s *hir.Stmt) (*ir.Block, error) {
	a := s.Assign
	places := make([]place, len(a.Targets))
	keep := make([]bool, len(a.Targets))
	for i, t := range a.Targets {
		if isBlank(t) {
			continue
		}
		p, next, err := fl.location(b, t)
		if err != nil {
			return nil, err
		}
		b, places[i], keep[i] = next, p, true
	}
	vals := make([]ir.Value, len(a.Values))
	for i, x := range a.Values {
		var (
			v   ir.Value
			err error
		)
		if keep[i] {
			v, b, err = fl.valueAs(b, x, places[i].typ)
		} else {
			v, b, err = fl.value(b, x)
		}
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	for i, v := range vals {
		if !keep[i] {
			continue
		}
		if err := fl.store(b, places[i], v); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// assignCall lowers a, b = f(). Distinct locals are handed to the callee
// as output pointers like a declaration would; anything else goes
// through temporaries. Inside a try the temporaries stay, so a throw
// from f leaves every target untouched for the catch body.
func (fl *funcLowerer) assignCall(b *ir.Block, s *hir.Stmt) (*ir.Block, error) {
	a := s.Assign
	places := make([]place, len(a.Targets))
	keep := make([]bool, len(a.Targets))
	direct := len(fl.tries) == 0
	seen := make(map[ir.Value]bool, len(a.Targets))
	for i, t := range a.Targets {
		if isBlank(t) {
			continue
		}
		p, next, err := fl.location(b, t)
		if err != nil {
			return nil, err
		}
		b, places[i], keep[i] = next, p, true
		if !isLocalSlot(p) || seen[p.addr] {
			direct = false
		}
		seen[p.addr] = true
	}
	return fl.callInto(b, a.Values[0], len(a.Targets), func(i int) (place, bool) {
		return places[i], keep[i]
	}, direct)
}

// isLocalSlot reports whether p is a stack slot of the current function.
func isLocalSlot(p place) bool {
	if p.kind != placeMemory || p.readonly {
		return false
	}
	in, ok := p.addr.(*ir.Instr)
	return ok && in.Op == ir.OpAlloca
}

// callInto lowers a call yielding n values and stores value i in dest(i);
// a false second result discards it. With direct set, memory destinations
// of the exact result type are handed to the callee as output pointers.
func (fl *funcLowerer) callInto(b *ir.Block, call *hir.Expr, n int, dest func(i int) (place, bool), direct bool) (*ir.Block, error) {
	in := fl.types()
	members, ok := in.ListMembers(call.Type)
	if !ok || len(members) != n {
		return nil, diag.Errorf(diag.LowArityMismatch, call.Span, "%s yields %d values, %d expected", calleeLabel(call.Call.Callee), len(members), n)
	}
	type pending struct {
		from types.TypeID
		tmp  *ir.Instr
		to   place
	}
	outs := make([]ir.Value, n)
	var later []pending
	for i := 0; i < n; i++ {
		p, keep := dest(i)
		if direct && keep && p.kind == placeMemory && in.Same(members[i], p.typ) {
			outs[i] = p.addr
			continue
		}
		vt, err := fl.valueType(members[i], call.Span)
		if err != nil {
			return nil, err
		}
		tmp := fl.temp(vt)
		outs[i] = tmp
		if keep {
			later = append(later, pending{from: members[i], tmp: tmp, to: p})
		}
	}
	_, b, err := fl.call(b, call, outs)
	if err != nil {
		return nil, err
	}
	for _, pd := range later {
		v, err := fl.convert(b, b.Load(pd.tmp.Elem, pd.tmp), pd.from, pd.to.typ, call)
		if err != nil {
			return nil, err
		}
		if err := fl.store(b, pd.to, v); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func isBlank(e *hir.Expr) bool {
	return e != nil && e.Kind == hir.ExprIdent && e.Name == "_"
}
