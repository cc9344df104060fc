package lower

import (
	"kestrel/internal/diag"
	"kestrel/internal/hir"
	"kestrel/internal/ir"
	"kestrel/internal/source"
	"kestrel/internal/types"
)

// value lowers e to an rvalue of the storage type of its semantic type.
func (fl *funcLowerer) value(b *ir.Block, e *hir.Expr) (ir.Value, *ir.Block, error) {
	if e == nil {
		return nil, b, diag.Errorf(diag.LowMalformedTree, source.Span{}, "missing expression in @%s", fl.fn.Name)
	}
	switch e.Kind {
	case hir.ExprIntLit, hir.ExprBoolLit, hir.ExprCharLit, hir.ExprNull:
		v, err := fl.literal(e)
		return v, b, err
	case hir.ExprStringLit:
		return fl.l.stringConst(e.Lit.Str), b, nil
	case hir.ExprIdent, hir.ExprMember, hir.ExprIndex, hir.ExprThis:
		return fl.refValue(b, e)
	case hir.ExprCall:
		v, b, err := fl.call(b, e, nil)
		if err != nil {
			return nil, b, err
		}
		if v == nil {
			return nil, b, diag.Errorf(diag.LowBadOperator, e.Span, "call of %s has no value", calleeLabel(e.Call.Callee))
		}
		return v, b, nil
	case hir.ExprUnary:
		return fl.unary(b, e)
	case hir.ExprBinary:
		return fl.binary(b, e)
	case hir.ExprIs:
		return fl.is(b, e)
	case hir.ExprNew:
		return fl.alloc(b, e)
	case hir.ExprCast:
		return fl.cast(b, e)
	case hir.ExprIncDec:
		return fl.incDec(b, e)
	case hir.ExprArrayLit:
		return fl.arrayLit(b, e)
	}
	return nil, b, diag.Errorf(diag.LowMalformedTree, e.Span, "unknown expression kind %s", e.Kind)
}

func (fl *funcLowerer) refValue(b *ir.Block, e *hir.Expr) (ir.Value, *ir.Block, error) {
	r, b, err := fl.ref(b, e)
	if err != nil {
		return nil, b, err
	}
	switch r.kind {
	case refPlace:
		v, err := fl.load(b, r.place)
		return v, b, err
	case refValue:
		return r.value, b, nil
	case refFunc:
		return r.fn, b, nil
	case refMethod, refSlot:
		return nil, b, diag.Errorf(diag.LowNotCallable, e.Span, "method %s can only be called", r.name)
	}
	return nil, b, diag.Errorf(diag.LowBadMemberAccess, e.Span, "%s %s is not a value", e.Kind, r.name)
}

// valueAs lowers e and adapts it to the representation of target.
func (fl *funcLowerer) valueAs(b *ir.Block, e *hir.Expr, target types.TypeID) (ir.Value, *ir.Block, error) {
	in := fl.types()
	from := fl.semType(e)
	switch {
	case in.Same(from, target):
	case in.KindOf(target) == types.KindInterface && in.KindOf(from) == types.KindStruct:
		addr, b, err := fl.address(b, e)
		if err != nil {
			return nil, b, err
		}
		v, err := fl.pack(b, addr, from, target, e)
		return v, b, err
	case in.IsDynamicArray(target) && in.KindOf(from) == types.KindArray && !in.IsDynamicArray(from):
		addr, b, err := fl.address(b, e)
		if err != nil {
			return nil, b, err
		}
		return fl.dynArray(b, ir.Int(ir.I32, int64(in.MustLookup(from).Count)), addr), b, nil
	}
	v, b, err := fl.value(b, e)
	if err != nil {
		return nil, b, err
	}
	v, err = fl.convert(b, v, from, target, e)
	return v, b, err
}

// boolValue lowers a condition.
func (fl *funcLowerer) boolValue(b *ir.Block, e *hir.Expr) (ir.Value, *ir.Block, error) {
	return fl.valueAs(b, e, fl.types().Builtins().Bool)
}

func (fl *funcLowerer) literal(e *hir.Expr) (ir.Value, error) {
	if e.Kind == hir.ExprNull {
		vt, err := fl.valueType(e.Type, e.Span)
		if err != nil {
			return nil, err
		}
		return ir.Zero(vt), nil
	}
	if e.Lit == nil {
		return nil, diag.Errorf(diag.LowMalformedTree, e.Span, "%s without payload", e.Kind)
	}
	vt, err := fl.valueType(e.Type, e.Span)
	if err != nil {
		return nil, err
	}
	switch e.Kind {
	case hir.ExprIntLit:
		return intConst(vt, e.Lit.Int), nil
	case hir.ExprCharLit:
		return intConst(vt, int64(e.Lit.Char)), nil
	default:
		return ir.Bool(e.Lit.Bool), nil
	}
}

func (fl *funcLowerer) unary(b *ir.Block, e *hir.Expr) (ir.Value, *ir.Block, error) {
	switch e.Unary {
	case hir.OpDeref:
		return fl.refValue(b, e)
	case hir.OpAddr:
		p, b, err := fl.location(b, e.X)
		if err != nil {
			return nil, b, err
		}
		if p.kind != placeMemory {
			return nil, b, diag.Errorf(diag.LowBadLvalue, e.Span, "cannot take the address of property %s", p.name)
		}
		return p.addr, b, nil
	}
	x, b, err := fl.valueAs(b, e.X, e.Type)
	if err != nil {
		return nil, b, err
	}
	t := x.Type()
	if !t.IsInt() {
		return nil, b, diag.Errorf(diag.LowBadOperator, e.Span, "operator %s on %s", e.Unary, types.Label(fl.types(), e.X.Type))
	}
	switch e.Unary {
	case hir.OpNeg:
		return b.Binary(ir.Sub, ir.Int(t, 0), x), b, nil
	case hir.OpNot:
		if t.Bits != 1 {
			return nil, b, diag.Errorf(diag.LowBadOperator, e.Span, "operator ! on %s", types.Label(fl.types(), e.X.Type))
		}
		return b.Binary(ir.Xor, x, ir.Bool(true)), b, nil
	case hir.OpBitNot:
		return b.Binary(ir.Xor, x, intConst(t, -1)), b, nil
	}
	return nil, b, diag.Errorf(diag.LowMalformedTree, e.Span, "unknown unary operator %d", e.Unary)
}

var arith = map[hir.BinaryOp]ir.BinOp{
	hir.OpAdd: ir.Add,
	hir.OpSub: ir.Sub,
	hir.OpMul: ir.Mul,
	hir.OpDiv: ir.SDiv,
	hir.OpRem: ir.SRem,
	hir.OpAnd: ir.And,
	hir.OpOr:  ir.Or,
	hir.OpXor: ir.Xor,
	hir.OpShl: ir.Shl,
	hir.OpShr: ir.AShr,
}

func (fl *funcLowerer) binary(b *ir.Block, e *hir.Expr) (ir.Value, *ir.Block, error) {
	be := e.Binary
	switch {
	case be.Op == hir.OpLogAnd || be.Op == hir.OpLogOr:
		return fl.logical(b, e)
	case be.Op.IsComparison():
		return fl.compare(b, e)
	}
	op, ok := arith[be.Op]
	if !ok {
		return nil, b, diag.Errorf(diag.LowMalformedTree, e.Span, "unknown binary operator %d", be.Op)
	}
	if !isScalar(fl.types(), e.Type) {
		return nil, b, diag.Errorf(diag.LowBadOperator, e.Span, "operator %s on %s", be.Op, types.Label(fl.types(), e.Type))
	}
	x, b, err := fl.valueAs(b, be.X, e.Type)
	if err != nil {
		return nil, b, err
	}
	y, b, err := fl.valueAs(b, be.Y, e.Type)
	if err != nil {
		return nil, b, err
	}
	return b.Binary(op, x, y), b, nil
}

// logical lowers && and || with short-circuit evaluation through a stack
// slot.
func (fl *funcLowerer) logical(b *ir.Block, e *hir.Expr) (ir.Value, *ir.Block, error) {
	be := e.Binary
	x, b, err := fl.boolValue(b, be.X)
	if err != nil {
		return nil, b, err
	}
	slot := fl.fn.Alloca(ir.I1, "sc")
	b.Store(x, slot)
	rhs := fl.fn.NewBlock("rhs")
	end := fl.fn.NewBlock("sc")
	if be.Op == hir.OpLogAnd {
		b.CondBr(x, rhs, end)
	} else {
		b.CondBr(x, end, rhs)
	}
	y, rhsEnd, err := fl.boolValue(rhs, be.Y)
	if err != nil {
		return nil, rhsEnd, err
	}
	rhsEnd.Store(y, slot)
	rhsEnd.Br(end)
	return end.Load(ir.I1, slot), end, nil
}

func (fl *funcLowerer) cast(b *ir.Block, e *hir.Expr) (ir.Value, *ir.Block, error) {
	in := fl.types()
	from, to := fl.semType(e.X), e.Type
	v, b, err := fl.value(b, e.X)
	if err != nil {
		return nil, b, err
	}
	fk, tk := in.KindOf(from), in.KindOf(to)
	switch {
	case in.Same(from, to):
		return v, b, nil
	case isScalar(in, from) && tk == types.KindBool:
		return b.ICmp(ir.NE, v, ir.Int(v.Type(), 0)), b, nil
	case isScalar(in, from) && isScalar(in, to):
		vt, err := fl.valueType(to, e.Span)
		if err != nil {
			return nil, b, err
		}
		return resize(b, v, vt, fk != types.KindBool), b, nil
	case isPointerLike(in, from) && isPointerLike(in, to):
		return v, b, nil
	}
	out, err := fl.convert(b, v, from, to, e)
	return out, b, err
}

// incDec lowers ++/-- as a read-modify-write of its operand.
func (fl *funcLowerer) incDec(b *ir.Block, e *hir.Expr) (ir.Value, *ir.Block, error) {
	p, b, err := fl.location(b, e.X)
	if err != nil {
		return nil, b, err
	}
	old, err := fl.load(b, p)
	if err != nil {
		return nil, b, err
	}
	t := old.Type()
	if !t.IsInt() || t.Bits == 1 {
		return nil, b, diag.Errorf(diag.LowBadOperator, e.Span, "increment of %s", types.Label(fl.types(), p.typ))
	}
	op := ir.Add
	if e.IncDec.Dec {
		op = ir.Sub
	}
	updated := b.BinaryNSW(op, old, ir.Int(t, 1))
	if err := fl.store(b, p, updated); err != nil {
		return nil, b, err
	}
	if e.IncDec.Prefix {
		return updated, b, nil
	}
	return old, b, nil
}

func (fl *funcLowerer) arrayLit(b *ir.Block, e *hir.Expr) (ir.Value, *ir.Block, error) {
	arrT, err := fl.valueType(e.Type, e.Span)
	if err != nil {
		return nil, b, err
	}
	elem := fl.types().Elem(e.Type)
	var agg ir.Value = ir.Zero(arrT)
	for i, x := range e.Elems {
		v, next, err := fl.valueAs(b, x, elem)
		if err != nil {
			return nil, next, err
		}
		b = next
		agg = b.InsertValue(agg, v, i)
	}
	return agg, b, nil
}

func calleeLabel(e *hir.Expr) string {
	switch e.Kind {
	case hir.ExprIdent, hir.ExprMember:
		return e.Name
	}
	return e.Kind.String()
}
