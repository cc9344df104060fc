package lower

import (
	"kestrel/internal/diag"
	"kestrel/internal/hir"
	"kestrel/internal/ir"
	"kestrel/internal/types"
)

var predicates = map[hir.BinaryOp]ir.Pred{
	hir.OpEq: ir.EQ,
	hir.OpNe: ir.NE,
	hir.OpLt: ir.SLT,
	hir.OpLe: ir.SLE,
	hir.OpGt: ir.SGT,
	hir.OpGe: ir.SGE,
}

type cmpShape uint8

const (
	cmpScalar cmpShape = iota
	cmpPointer
	cmpIfaceNull
	cmpIfaceIface
	cmpIfacePointer
)

// compareShape decides whether x and y may be compared with op. Equality
// is defined for identical scalars, pointer pairs, pointers or interfaces
// against null, interface pairs (both words) and an interface against a
// struct pointer (object identity); ordering only for identical scalars
// other than bool.
func compareShape(in *types.Interner, op hir.BinaryOp, x, y types.TypeID) (shape cmpShape, swap, ok bool) {
	xk, yk := in.KindOf(x), in.KindOf(y)
	equality := op == hir.OpEq || op == hir.OpNe
	switch {
	case isScalar(in, x) && in.Same(x, y) && (equality || xk != types.KindBool):
		return cmpScalar, false, true
	case !equality:
		return 0, false, false
	case isPointerLike(in, x) && isPointerLike(in, y):
		return cmpPointer, false, true
	case xk == types.KindInterface && yk == types.KindNull:
		return cmpIfaceNull, false, true
	case xk == types.KindNull && yk == types.KindInterface:
		return cmpIfaceNull, true, true
	case xk == types.KindInterface && yk == types.KindInterface:
		return cmpIfaceIface, false, true
	case xk == types.KindInterface && isStructPointer(in, y):
		return cmpIfacePointer, false, true
	case isStructPointer(in, x) && yk == types.KindInterface:
		return cmpIfacePointer, true, true
	}
	return 0, false, false
}

func isStructPointer(in *types.Interner, id types.TypeID) bool {
	return in.KindOf(id) == types.KindPointer && in.KindOf(in.Elem(id)) == types.KindStruct
}

func (fl *funcLowerer) compare(b *ir.Block, e *hir.Expr) (ir.Value, *ir.Block, error) {
	in := fl.types()
	be := e.Binary
	xt, yt := fl.semType(be.X), fl.semType(be.Y)
	shape, swap, ok := compareShape(in, be.Op, xt, yt)
	if !ok {
		return nil, b, diag.Errorf(diag.LowBadComparison, e.Span, "cannot compare %s %s %s", types.Label(in, xt), be.Op, types.Label(in, yt))
	}
	x, b, err := fl.value(b, be.X)
	if err != nil {
		return nil, b, err
	}
	y, b, err := fl.value(b, be.Y)
	if err != nil {
		return nil, b, err
	}
	if swap {
		x, y = y, x
	}
	pred := predicates[be.Op]
	switch shape {
	case cmpScalar, cmpPointer:
		return b.ICmp(pred, x, y), b, nil
	case cmpIfaceNull:
		return b.ICmp(pred, b.ExtractValue(x, 0), ir.Null()), b, nil
	case cmpIfacePointer:
		return b.ICmp(pred, b.ExtractValue(x, 0), y), b, nil
	case cmpIfaceIface:
		objs := b.ICmp(ir.EQ, b.ExtractValue(x, 0), b.ExtractValue(y, 0))
		vts := b.ICmp(ir.EQ, b.ExtractValue(x, 1), b.ExtractValue(y, 1))
		eq := b.Binary(ir.And, objs, vts)
		if be.Op == hir.OpNe {
			return b.Binary(ir.Xor, eq, ir.Bool(true)), b, nil
		}
		return eq, b, nil
	}
	return nil, b, diag.Errorf(diag.LowMalformedTree, e.Span, "unknown comparison shape %d", shape)
}

// is lowers a dynamic type test. Interface operands are tested at run
// time: against an interface through the lookup routine, against a struct
// by vtable identity. Other operands have a static answer.
func (fl *funcLowerer) is(b *ir.Block, e *hir.Expr) (ir.Value, *ir.Block, error) {
	in := fl.types()
	xt := fl.semType(e.X)
	target := e.Is
	if isStructPointer(in, target) {
		target = in.Elem(target)
	}
	v, b, err := fl.value(b, e.X)
	if err != nil {
		return nil, b, err
	}
	tk := in.KindOf(target)
	if tk != types.KindInterface && tk != types.KindStruct {
		return nil, b, diag.Errorf(diag.LowBadOperator, e.Span, "is needs a struct or interface, got %s", types.Label(in, e.Is))
	}

	switch in.KindOf(xt) {
	case types.KindInterface:
		vt := b.ExtractValue(v, 1)
		if tk == types.KindInterface {
			table, ok := fl.l.disp.Table(target)
			if !ok {
				return nil, b, diag.Errorf(diag.LowUnknownInterface, e.Span, "interface %s was never declared", types.Label(in, target))
			}
			ivt, err := fl.lookup(b, vt, table)
			if err != nil {
				return nil, b, atSpan(err, e.Span)
			}
			return b.ICmp(ir.NE, ivt, ir.Null()), b, nil
		}
		def, ok := fl.l.res.Def(target)
		if !ok {
			return nil, b, diag.Errorf(diag.LowUnregisteredStruct, e.Span, "struct %s was never declared", types.Label(in, target))
		}
		return b.ICmp(ir.EQ, vt, fl.l.disp.VTable(def)), b, nil
	case types.KindNull:
		return ir.Bool(false), b, nil
	}

	st := xt
	if isStructPointer(in, xt) {
		st = in.Elem(xt)
	}
	if in.KindOf(st) != types.KindStruct {
		return nil, b, diag.Errorf(diag.LowBadOperator, e.Span, "is on %s", types.Label(in, xt))
	}
	if tk == types.KindInterface {
		return ir.Bool(fl.l.disp.Implements(st, target)), b, nil
	}
	return ir.Bool(in.Same(st, target)), b, nil
}
