package lower

import (
	"kestrel/internal/diag"
	"kestrel/internal/dispatch"
	"kestrel/internal/hir"
	"kestrel/internal/ir"
	"kestrel/internal/layout"
	"kestrel/internal/source"
	"kestrel/internal/types"
)

type placeKind uint8

const (
	// placeMemory is an address holding a value of typ.
	placeMemory placeKind = iota
	// placeAccessor is a property with statically known accessors.
	placeAccessor
	// placeSlot is a property reached through an interface vtable.
	placeSlot
)

// place is an assignable or readable location.
type place struct {
	kind     placeKind
	typ      types.TypeID
	name     string
	span     source.Span
	readonly bool

	addr ir.Value

	recv     ir.Value // accessor receiver, nil for namespace properties
	get, set *ir.Func

	ivt   ir.Value
	table *dispatch.Table
}

type refKind uint8

const (
	refPlace refKind = iota
	refValue
	refFunc
	refMethod
	refSlot
	refNamespace
	refType
)

// ref is what a name, member or index expression denotes.
type ref struct {
	kind  refKind
	place place
	value ir.Value

	fn   *ir.Func  // refFunc, refMethod
	recv ir.Value  // refMethod, refSlot
	slot dispatch.Slot
	ivt  ir.Value
	node *memberTable
	name string
}

func (fl *funcLowerer) memory(addr ir.Value, typ types.TypeID, name string, span source.Span) ref {
	return ref{kind: refPlace, place: place{kind: placeMemory, addr: addr, typ: typ, name: name, span: span}}
}

// ref lowers an expression to what it denotes. Expressions that only have
// a value come back as refValue.
func (fl *funcLowerer) ref(b *ir.Block, e *hir.Expr) (ref, *ir.Block, error) {
	switch e.Kind {
	case hir.ExprIdent:
		r, err := fl.ident(b, e)
		return r, b, err
	case hir.ExprThis:
		if fl.this == nil {
			return ref{}, b, diag.Errorf(diag.LowThisOutsideType, e.Span, "this outside of a member body")
		}
		return ref{kind: refValue, value: fl.this}, b, nil
	case hir.ExprMember:
		return fl.member(b, e)
	case hir.ExprIndex:
		return fl.index(b, e)
	case hir.ExprUnary:
		if e.Unary != hir.OpDeref {
			break
		}
		if fl.types().KindOf(e.X.Type) != types.KindPointer {
			return ref{}, b, diag.Errorf(diag.LowBadOperator, e.Span, "cannot dereference %s", types.Label(fl.types(), e.X.Type))
		}
		p, b, err := fl.value(b, e.X)
		if err != nil {
			return ref{}, b, err
		}
		return fl.memory(p, fl.types().Elem(e.X.Type), "*", e.Span), b, nil
	}
	v, b, err := fl.value(b, e)
	return ref{kind: refValue, value: v}, b, err
}

// ident resolves a bare name: locals, then members of the enclosing type,
// then namespace members from the current namespace outwards.
func (fl *funcLowerer) ident(b *ir.Block, e *hir.Expr) (ref, error) {
	if path, ok := fl.types().NamespacePath(e.Type); ok {
		if node, ok := fl.ns.find(path); ok {
			return ref{kind: refNamespace, node: node, name: e.Name}, nil
		}
	}
	if loc, ok := fl.lookupLocal(e.Name); ok {
		return fl.memory(loc.slot, loc.typ, e.Name, e.Span), nil
	}
	if fl.self != nil {
		if r, ok, err := fl.structMember(b, fl.self, fl.this, e.Name, e.Span); ok || err != nil {
			return r, err
		}
	}
	ent, ok := fl.ns.resolve(e.Name)
	if !ok {
		return ref{}, diag.Errorf(diag.LowUnresolvedName, e.Span, "%s is not declared in %s", e.Name, fl.ns.label())
	}
	return fl.entryRef(ent, e.Span)
}

func (fl *funcLowerer) entryRef(ent *entry, span source.Span) (ref, error) {
	switch ent.kind {
	case entryNamespace:
		return ref{kind: refNamespace, node: ent.node, name: ent.name}, nil
	case entryType, entryInterface:
		return ref{kind: refType, name: ent.name}, nil
	case entryFunc:
		return ref{kind: refFunc, fn: ent.fn, name: ent.name}, nil
	case entryProperty:
		info, _ := fl.types().PropertyInfo(ent.typ)
		return ref{kind: refPlace, place: place{
			kind: placeAccessor,
			typ:  info.Result,
			name: ent.name,
			span: span,
			get:  ent.get,
			set:  ent.set,
		}}, nil
	case entryVar, entryConst:
		r := fl.memory(ent.global, ent.typ, ent.name, span)
		r.place.readonly = ent.kind == entryConst
		return r, nil
	}
	return ref{}, diag.Errorf(diag.LowMalformedTree, span, "unknown entry kind %s", ent.kind)
}

// structMember resolves name on the struct def stored at base. ok is false
// when def has no such member.
func (fl *funcLowerer) structMember(b *ir.Block, def *layout.TypeDef, base ir.Value, name string, span source.Span) (ref, bool, error) {
	if f, ok := def.Field(name); ok {
		addr := b.FieldPtr(def.Struct, base, f.Index)
		return fl.memory(addr, f.Type, name, span), true, nil
	}
	if prop, ok := def.Props[name]; ok {
		info, _ := fl.types().PropertyInfo(prop)
		get, _ := def.Member(layout.AccessorName(name, false))
		set, _ := def.Member(layout.AccessorName(name, true))
		return ref{kind: refPlace, place: place{
			kind: placeAccessor,
			typ:  info.Result,
			name: def.Name + "." + name,
			span: span,
			recv: base,
			get:  get,
			set:  set,
		}}, true, nil
	}
	if fn, ok := def.Member(name); ok {
		return ref{kind: refMethod, fn: fn, recv: base, name: def.Name + "." + name}, true, nil
	}
	return ref{}, false, nil
}

func (fl *funcLowerer) member(b *ir.Block, e *hir.Expr) (ref, *ir.Block, error) {
	in := fl.types()
	xt := e.X.Type
	switch in.KindOf(xt) {
	case types.KindNamespace:
		return fl.namespaceMember(b, e)
	case types.KindArray:
		if e.Name == "Size" {
			return fl.size(b, e.X, xt)
		}
	case types.KindStruct:
		def, ok := fl.l.res.Def(xt)
		if !ok {
			break
		}
		base, b, err := fl.address(b, e.X)
		if err != nil {
			return ref{}, b, err
		}
		return fl.mustStructMember(b, def, base, e)
	case types.KindInterface:
		v, b, err := fl.value(b, e.X)
		if err != nil {
			return ref{}, b, err
		}
		r, err := fl.ifaceMember(b, v, xt, e.Name, e.Span)
		return r, b, err
	case types.KindPointer:
		elem := in.Elem(xt)
		switch in.KindOf(elem) {
		case types.KindStruct:
			def, ok := fl.l.res.Def(elem)
			if !ok {
				break
			}
			p, b, err := fl.value(b, e.X)
			if err != nil {
				return ref{}, b, err
			}
			return fl.mustStructMember(b, def, p, e)
		case types.KindInterface:
			p, b, err := fl.value(b, e.X)
			if err != nil {
				return ref{}, b, err
			}
			v := b.Load(fl.l.res.Runtime.Iface, p)
			r, err := fl.ifaceMember(b, v, elem, e.Name, e.Span)
			return r, b, err
		case types.KindArray:
			if e.Name == "Size" {
				return fl.size(b, e.X, xt)
			}
		}
	}
	return ref{}, b, diag.Errorf(diag.LowBadMemberAccess, e.Span, "%s has no member %s", types.Label(in, xt), e.Name)
}

func (fl *funcLowerer) mustStructMember(b *ir.Block, def *layout.TypeDef, base ir.Value, e *hir.Expr) (ref, *ir.Block, error) {
	r, ok, err := fl.structMember(b, def, base, e.Name, e.Span)
	if err != nil {
		return ref{}, b, err
	}
	if !ok {
		return ref{}, b, diag.Errorf(diag.LowBadMemberAccess, e.Span, "type %s has no member %s", def.Name, e.Name)
	}
	return r, b, nil
}

func (fl *funcLowerer) namespaceMember(b *ir.Block, e *hir.Expr) (ref, *ir.Block, error) {
	var node *memberTable
	if r, b2, err := fl.ref(b, e.X); err == nil && r.kind == refNamespace {
		node, b = r.node, b2
	} else if path, ok := fl.types().NamespacePath(e.X.Type); ok {
		node, _ = fl.ns.find(path)
	}
	if node == nil {
		return ref{}, b, diag.Errorf(diag.LowUnresolvedName, e.Span, "unknown namespace %s", types.Label(fl.types(), e.X.Type))
	}
	ent, ok := node.lookup(e.Name)
	if !ok {
		return ref{}, b, diag.Errorf(diag.LowUnresolvedName, e.Span, "%s is not declared in %s", e.Name, node.label())
	}
	r, err := fl.entryRef(ent, e.Span)
	return r, b, err
}

// ifaceMember dispatches a member of the interface value v through the
// runtime lookup.
func (fl *funcLowerer) ifaceMember(b *ir.Block, v ir.Value, iface types.TypeID, name string, span source.Span) (ref, error) {
	table, ok := fl.l.disp.Table(iface)
	if !ok {
		return ref{}, diag.Errorf(diag.LowUnknownInterface, span, "interface %s was never declared", types.Label(fl.types(), iface))
	}
	obj := b.ExtractValue(v, 0)
	ivt, err := fl.lookup(b, b.ExtractValue(v, 1), table)
	if err != nil {
		return ref{}, atSpan(err, span)
	}
	if prop, ok := table.Property(name); ok {
		info, _ := fl.types().PropertyInfo(prop)
		return ref{kind: refPlace, place: place{
			kind:  placeSlot,
			typ:   info.Result,
			name:  table.Name + "." + name,
			span:  span,
			recv:  obj,
			ivt:   ivt,
			table: table,
		}}, nil
	}
	if slot, ok := table.Slot(name); ok {
		return ref{kind: refSlot, slot: slot, ivt: ivt, recv: obj, name: table.Name + "." + name}, nil
	}
	return ref{}, diag.Errorf(diag.LowBadMemberAccess, span, "interface %s has no member %s", table.Name, name)
}

// lookup calls the runtime lookup for table on the vtable vt.
func (fl *funcLowerer) lookup(b *ir.Block, vt ir.Value, table *dispatch.Table) (ir.Value, error) {
	fn, err := fl.l.disp.Lookup()
	if err != nil {
		return nil, err
	}
	return b.Call(fn, fn.Sig, vt, ir.Int(ir.I32, int64(table.ID))), nil
}

// size lowers the Size of an array or of a pointer to an array.
func (fl *funcLowerer) size(b *ir.Block, x *hir.Expr, xt types.TypeID) (ref, *ir.Block, error) {
	in := fl.types()
	arr := xt
	if in.KindOf(xt) == types.KindPointer {
		arr = in.Elem(xt)
	}
	tt := in.MustLookup(arr)
	if tt.Count != types.ArrayDynamicLength {
		return ref{kind: refValue, value: ir.Int(ir.I32, int64(tt.Count))}, b, nil
	}
	v, b, err := fl.value(b, x)
	if err != nil {
		return ref{}, b, err
	}
	if arr != xt {
		v = b.Load(fl.l.res.DynArray(), v)
	}
	return ref{kind: refValue, value: b.ExtractValue(v, 0)}, b, nil
}

func (fl *funcLowerer) index(b *ir.Block, e *hir.Expr) (ref, *ir.Block, error) {
	in := fl.types()
	xt := e.X.Type
	elemVT, err := fl.valueType(e.Type, e.Span)
	if err != nil {
		return ref{}, b, err
	}
	switch in.KindOf(xt) {
	case types.KindArray:
		if in.IsDynamicArray(xt) {
			v, b, err := fl.value(b, e.X)
			if err != nil {
				return ref{}, b, err
			}
			idx, b, err := fl.valueAs(b, e.Index, in.Builtins().Int)
			if err != nil {
				return ref{}, b, err
			}
			addr := b.ElemPtr(elemVT, b.ExtractValue(v, 1), idx)
			return fl.memory(addr, e.Type, "[]", e.Span), b, nil
		}
		arrT, err := fl.valueType(xt, e.Span)
		if err != nil {
			return ref{}, b, err
		}
		base, b, err := fl.address(b, e.X)
		if err != nil {
			return ref{}, b, err
		}
		idx, b, err := fl.valueAs(b, e.Index, in.Builtins().Int)
		if err != nil {
			return ref{}, b, err
		}
		addr := b.GEP(arrT, base, ir.Int(ir.I32, 0), idx)
		return fl.memory(addr, e.Type, "[]", e.Span), b, nil
	case types.KindPointer:
		p, b, err := fl.value(b, e.X)
		if err != nil {
			return ref{}, b, err
		}
		idx, b, err := fl.valueAs(b, e.Index, in.Builtins().Int)
		if err != nil {
			return ref{}, b, err
		}
		return fl.memory(b.ElemPtr(elemVT, p, idx), e.Type, "[]", e.Span), b, nil
	}
	return ref{}, b, diag.Errorf(diag.LowBadIndex, e.Span, "cannot index %s", types.Label(in, xt))
}

// location lowers an expression that must denote a place.
func (fl *funcLowerer) location(b *ir.Block, e *hir.Expr) (place, *ir.Block, error) {
	r, b, err := fl.ref(b, e)
	if err != nil {
		return place{}, b, err
	}
	if r.kind != refPlace {
		return place{}, b, diag.Errorf(diag.LowBadLvalue, e.Span, "%s expression is not assignable", e.Kind)
	}
	return r.place, b, nil
}

// address returns the memory address of e, spilling values without one
// into a stack temporary.
func (fl *funcLowerer) address(b *ir.Block, e *hir.Expr) (ir.Value, *ir.Block, error) {
	r, b, err := fl.ref(b, e)
	if err != nil {
		return nil, b, err
	}
	var v ir.Value
	switch {
	case r.kind == refPlace && r.place.kind == placeMemory:
		return r.place.addr, b, nil
	case r.kind == refPlace:
		if v, err = fl.load(b, r.place); err != nil {
			return nil, b, err
		}
	case r.kind == refValue && r.value != nil:
		v = r.value
	default:
		return nil, b, diag.Errorf(diag.LowBadLvalue, e.Span, "%s has no address", e.Kind)
	}
	tmp := fl.temp(v.Type())
	b.Store(v, tmp)
	return tmp, b, nil
}

// load reads the current value of a place.
func (fl *funcLowerer) load(b *ir.Block, p place) (ir.Value, error) {
	switch p.kind {
	case placeMemory:
		vt, err := fl.valueType(p.typ, p.span)
		if err != nil {
			return nil, err
		}
		return b.Load(vt, p.addr), nil
	case placeAccessor:
		if p.get == nil {
			return nil, diag.Errorf(diag.LowBadLvalue, p.span, "property %s has no getter", p.name)
		}
		if p.recv != nil {
			return b.Call(p.get, p.get.Sig, p.recv), nil
		}
		return b.Call(p.get, p.get.Sig), nil
	case placeSlot:
		slot, ok := p.table.Slot(layout.AccessorName(propName(p), false))
		if !ok {
			return nil, diag.Errorf(diag.LowBadLvalue, p.span, "property %s has no getter", p.name)
		}
		fn := fl.l.disp.SlotFunc(b, p.ivt, slot.Index)
		return b.Call(fn, slot.Sig, p.recv), nil
	}
	return nil, diag.Errorf(diag.LowMalformedTree, p.span, "unknown place kind %d", p.kind)
}

// store writes v, already converted to the place type, to p.
func (fl *funcLowerer) store(b *ir.Block, p place, v ir.Value) error {
	if p.readonly {
		return diag.Errorf(diag.LowBadLvalue, p.span, "cannot assign to constant %s", p.name)
	}
	switch p.kind {
	case placeMemory:
		b.Store(v, p.addr)
		return nil
	case placeAccessor:
		if p.set == nil {
			return diag.Errorf(diag.LowBadLvalue, p.span, "property %s has no setter", p.name)
		}
		if p.recv != nil {
			b.Call(p.set, p.set.Sig, p.recv, v)
		} else {
			b.Call(p.set, p.set.Sig, v)
		}
		return nil
	case placeSlot:
		slot, ok := p.table.Slot(layout.AccessorName(propName(p), true))
		if !ok {
			return diag.Errorf(diag.LowBadLvalue, p.span, "property %s has no setter", p.name)
		}
		fn := fl.l.disp.SlotFunc(b, p.ivt, slot.Index)
		b.Call(fn, slot.Sig, p.recv, v)
		return nil
	}
	return diag.Errorf(diag.LowMalformedTree, p.span, "unknown place kind %d", p.kind)
}

// propName strips the interface prefix from a slot place name.
func propName(p place) string {
	return p.name[len(p.table.Name)+1:]
}
