package lower

import (
	"kestrel/internal/diag"
	"kestrel/internal/hir"
	"kestrel/internal/ir"
	"kestrel/internal/types"
)

type calleeKind uint8

const (
	// calleeDirect calls a known function.
	calleeDirect calleeKind = iota
	// calleePointer calls a function value.
	calleePointer
	// calleeSlot calls an interface slot loaded from a vtable.
	calleeSlot
)

// callee is a resolved call target. recv is the receiver passed ahead of
// the arguments: the object pointer for methods, nil otherwise.
type callee struct {
	kind   calleeKind
	fn     *ir.Func
	ptr    ir.Value
	sig    *ir.Type
	fnType types.TypeID
	recv   ir.Value
	name   string
}

func (c callee) target() ir.Value {
	if c.kind == calleeDirect {
		return c.fn
	}
	return c.ptr
}

func (fl *funcLowerer) callee(b *ir.Block, e *hir.Expr) (callee, *ir.Block, error) {
	in := fl.types()
	ft := fl.semType(e)
	if in.KindOf(ft) != types.KindFn {
		return callee{}, b, diag.Errorf(diag.LowNotCallable, e.Span, "%s of type %s is not callable", calleeLabel(e), types.Label(in, ft))
	}
	c := callee{fnType: ft, name: calleeLabel(e)}
	switch e.Kind {
	case hir.ExprIdent, hir.ExprMember:
		r, b, err := fl.ref(b, e)
		if err != nil {
			return callee{}, b, err
		}
		switch r.kind {
		case refFunc, refMethod:
			c.kind, c.fn, c.sig, c.recv = calleeDirect, r.fn, r.fn.Sig, r.recv
			return c, b, nil
		case refSlot:
			c.kind, c.sig, c.recv = calleeSlot, r.slot.Sig, r.recv
			c.ptr = fl.l.disp.SlotFunc(b, r.ivt, r.slot.Index)
			return c, b, nil
		case refPlace:
			v, err := fl.load(b, r.place)
			if err != nil {
				return callee{}, b, err
			}
			return fl.pointerCallee(b, c, v, e)
		case refValue:
			return fl.pointerCallee(b, c, r.value, e)
		}
		return callee{}, b, diag.Errorf(diag.LowNotCallable, e.Span, "%s is not callable", r.name)
	}
	v, b, err := fl.value(b, e)
	if err != nil {
		return callee{}, b, err
	}
	return fl.pointerCallee(b, c, v, e)
}

func (fl *funcLowerer) pointerCallee(b *ir.Block, c callee, v ir.Value, e *hir.Expr) (callee, *ir.Block, error) {
	sig, err := fl.l.res.Signature(c.fnType, false)
	if err != nil {
		return callee{}, b, atSpan(err, e.Span)
	}
	c.kind, c.ptr, c.sig = calleePointer, v, sig
	return c, b, nil
}

// call lowers a call expression. For functions returning several values,
// outs are the output pointers to pass; when nil, stack temporaries are
// used and the values are returned as one aggregate.
func (fl *funcLowerer) call(b *ir.Block, e *hir.Expr, outs []ir.Value) (ir.Value, *ir.Block, error) {
	in := fl.types()
	c, b, err := fl.callee(b, e.Call.Callee)
	if err != nil {
		return nil, b, err
	}
	info, _ := in.FnInfo(c.fnType)
	if len(e.Call.Args) != len(info.Params) {
		return nil, b, diag.Errorf(diag.LowArityMismatch, e.Span, "%s expects %d arguments, got %d", c.name, len(info.Params), len(e.Call.Args))
	}
	results := in.Results(c.fnType)

	args := make([]ir.Value, 0, len(c.sig.Params))
	if c.recv != nil {
		args = append(args, c.recv)
	}
	var temps []*ir.Instr
	if len(results) > 1 {
		if outs == nil {
			for _, r := range results {
				vt, err := fl.valueType(r, e.Span)
				if err != nil {
					return nil, b, err
				}
				tmp := fl.temp(vt)
				temps = append(temps, tmp)
				outs = append(outs, tmp)
			}
		}
		if len(outs) != len(results) {
			return nil, b, diag.Errorf(diag.LowBadReturn, e.Span, "%s returns %d values, %d expected", c.name, len(results), len(outs))
		}
		args = append(args, outs...)
	}
	for i, a := range e.Call.Args {
		v, next, err := fl.valueAs(b, a, info.Params[i])
		if err != nil {
			return nil, next, err
		}
		b = next
		args = append(args, v)
	}
	if len(args) != len(c.sig.Params) {
		return nil, b, diag.Errorf(diag.LowArityMismatch, e.Span, "%s takes %d machine arguments, got %d", c.name, len(c.sig.Params), len(args))
	}

	ret := b.Call(c.target(), c.sig, args...)
	switch {
	case temps != nil:
		fields := make([]*ir.Type, len(results))
		for i, t := range temps {
			fields[i] = t.Elem
		}
		var agg ir.Value = ir.Zero(ir.StructOf(fields...))
		for i, t := range temps {
			agg = b.InsertValue(agg, b.Load(fields[i], t), i)
		}
		return agg, b, nil
	case len(results) > 1, c.sig.Ret.IsVoid():
		return nil, b, nil
	}
	return ret, b, nil
}
