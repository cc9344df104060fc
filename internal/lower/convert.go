package lower

import (
	"kestrel/internal/diag"
	"kestrel/internal/hir"
	"kestrel/internal/ir"
	"kestrel/internal/types"
)

// intConst wraps v to the width of t.
func intConst(t *ir.Type, v int64) *ir.Const {
	switch {
	case t.Bits == 1:
		return ir.Int(t, v&1)
	case t.Bits > 0 && t.Bits < 64:
		shift := 64 - t.Bits
		return ir.Int(t, v<<shift>>shift)
	}
	return ir.Int(t, v)
}

// resize converts between integer widths. Narrower values are sign
// extended when signed, zero extended otherwise.
func resize(b *ir.Block, v ir.Value, to *ir.Type, signed bool) ir.Value {
	from := v.Type()
	switch {
	case from.Bits == to.Bits:
		return v
	case from.Bits > to.Bits:
		return b.Cast(ir.Trunc, v, to)
	case signed && from.Bits > 1:
		return b.Cast(ir.SExt, v, to)
	default:
		return b.Cast(ir.ZExt, v, to)
	}
}

func isScalar(in *types.Interner, id types.TypeID) bool {
	switch in.KindOf(id) {
	case types.KindInt, types.KindChar, types.KindBool:
		return true
	}
	return false
}

func isPointerLike(in *types.Interner, id types.TypeID) bool {
	switch in.KindOf(id) {
	case types.KindPointer, types.KindFn, types.KindNull:
		return true
	}
	return false
}

// nullable reports whether null converts to id.
func nullable(in *types.Interner, id types.TypeID) bool {
	switch in.KindOf(id) {
	case types.KindPointer, types.KindFn, types.KindNull, types.KindInterface:
		return true
	case types.KindArray:
		return in.IsDynamicArray(id)
	}
	return false
}

// convert adapts a lowered value of type from to the representation of
// to: integer widths, bool to integer, null to the zero value, struct
// pointers to interface values and fixed-array pointers to dynamic arrays.
func (fl *funcLowerer) convert(b *ir.Block, v ir.Value, from, to types.TypeID, e *hir.Expr) (ir.Value, error) {
	in := fl.types()
	if in.Same(from, to) {
		return v, nil
	}
	fk, tk := in.KindOf(from), in.KindOf(to)
	vt, err := fl.valueType(to, e.Span)
	if err != nil {
		return nil, err
	}
	switch {
	case fk == types.KindNull:
		if nullable(in, to) {
			return ir.Zero(vt), nil
		}
	case tk == types.KindInterface && fk == types.KindInterface:
		return v, nil
	case (tk == types.KindInt || tk == types.KindChar) && isScalar(in, from):
		return resize(b, v, vt, fk != types.KindBool), nil
	case tk == types.KindInterface && fk == types.KindPointer && in.KindOf(in.Elem(from)) == types.KindStruct:
		return fl.pack(b, v, in.Elem(from), to, e)
	case tk == types.KindArray && in.IsDynamicArray(to) && fk == types.KindPointer:
		arr := in.Elem(from)
		if tt, ok := in.Lookup(arr); ok && tt.Kind == types.KindArray && tt.Count != types.ArrayDynamicLength {
			return fl.dynArray(b, ir.Int(ir.I32, int64(tt.Count)), v), nil
		}
	case isPointerLike(in, from) && isPointerLike(in, to):
		return v, nil
	case v.Type().Equal(vt):
		return v, nil
	}
	return nil, diag.Errorf(diag.LowBadConversion, e.Span, "cannot convert %s to %s", types.Label(in, from), types.Label(in, to))
}

// pack builds the interface value of the struct object at obj.
func (fl *funcLowerer) pack(b *ir.Block, obj ir.Value, structType, iface types.TypeID, e *hir.Expr) (ir.Value, error) {
	def, ok := fl.l.res.Def(structType)
	if !ok {
		return nil, diag.Errorf(diag.LowUnregisteredStruct, e.Span, "struct %s was never declared", types.Label(fl.types(), structType))
	}
	if !fl.l.disp.Implements(structType, iface) {
		return nil, diag.Errorf(diag.LowMissingInterfaceMember, e.Span, "type %s does not implement interface %s", def.Name, types.Label(fl.types(), iface))
	}
	rt := fl.l.res.Runtime
	v := b.InsertValue(ir.Zero(rt.Iface), obj, 0)
	return b.InsertValue(v, fl.l.disp.VTable(def), 1), nil
}

// dynArray builds the { length, data } record of a dynamic array.
func (fl *funcLowerer) dynArray(b *ir.Block, n, data ir.Value) ir.Value {
	v := b.InsertValue(ir.Zero(fl.l.res.DynArray()), n, 0)
	return b.InsertValue(v, data, 1)
}
