package layout

import (
	"fmt"

	"fortio.org/safecast"

	"kestrel/internal/diag"
	"kestrel/internal/ir"
	"kestrel/internal/source"
	"kestrel/internal/types"
)

// Runtime layout types shared by every unit.
const (
	IfaceTypeName   = "kestrel.iface"
	VTableTypeName  = "kestrel.vtable"
	IVTableTypeName = "kestrel.ivtable"
)

// RuntimeTypes are the three fixed runtime layouts.
type RuntimeTypes struct {
	// Iface is { object ptr, vtable ptr }.
	Iface *ir.Type
	// VTable is { interface count, ptr to [n x IVTable] }.
	VTable *ir.Type
	// IVTable is { interface id, ptr to slot array }.
	IVTable *ir.Type
}

// Resolver maps semantic types to IR types. Struct types must be declared
// with Define before they can be resolved.
type Resolver struct {
	Types   *types.Interner
	Mod     *ir.Module
	Engine  *LayoutEngine
	Runtime RuntimeTypes

	defs     map[types.TypeID]*TypeDef
	order    []*TypeDef
	dynArray *ir.Type
}

// NewResolver creates a resolver emitting named types into mod.
func NewResolver(in *types.Interner, mod *ir.Module, engine *LayoutEngine) *Resolver {
	r := &Resolver{
		Types:    in,
		Mod:      mod,
		Engine:   engine,
		defs:     make(map[types.TypeID]*TypeDef),
		dynArray: ir.StructOf(ir.I32, ir.Ptr),
	}
	r.Runtime.Iface = mod.NamedStruct(IfaceTypeName)
	r.Runtime.Iface.SetBody(ir.Ptr, ir.Ptr)
	r.Runtime.VTable = mod.NamedStruct(VTableTypeName)
	r.Runtime.VTable.SetBody(ir.I32, ir.Ptr)
	r.Runtime.IVTable = mod.NamedStruct(IVTableTypeName)
	r.Runtime.IVTable.SetBody(ir.I32, ir.Ptr)
	return r
}

// DynArray is the { length, data } record of T[].
func (r *Resolver) DynArray() *ir.Type {
	return r.dynArray
}

// Define creates the shell TypeDef of a struct type.
func (r *Resolver) Define(id types.TypeID, span source.Span) (*TypeDef, error) {
	info, ok := r.Types.Nominal(id)
	if !ok || r.Types.KindOf(id) != types.KindStruct {
		return nil, diag.Errorf(diag.LowMalformedTree, span, "type declaration without a struct type")
	}
	if _, dup := r.defs[id]; dup {
		return nil, diag.Errorf(diag.LowDuplicateDecl, span, "type %s declared twice", info.Name)
	}
	if r.Mod.Struct(info.Name) != nil {
		return nil, diag.Errorf(diag.LowDuplicateDecl, span, "type name %s collides with a runtime type", info.Name)
	}
	def := &TypeDef{
		ID:         id,
		Name:       info.Name,
		Span:       span,
		Struct:     r.Mod.NamedStruct(info.Name),
		Members:    make(map[string]*ir.Func),
		Props:      make(map[string]types.TypeID),
		fieldIndex: make(map[string]int),
	}
	r.defs[id] = def
	r.order = append(r.order, def)
	return def, nil
}

// Def returns the TypeDef of a struct type.
func (r *Resolver) Def(id types.TypeID) (*TypeDef, bool) {
	def, ok := r.defs[id]
	return def, ok
}

// Defs returns every TypeDef in declaration order.
func (r *Resolver) Defs() []*TypeDef {
	return r.order
}

// SetFields fills the struct body from fields in declaration order.
func (r *Resolver) SetFields(def *TypeDef, names []string, fieldTypes []types.TypeID, span source.Span) error {
	if def.frozen {
		return fmt.Errorf("type %s is frozen", def.Name)
	}
	body := make([]*ir.Type, len(names))
	for i, name := range names {
		if _, dup := def.fieldIndex[name]; dup {
			return diag.Errorf(diag.LowDuplicateDecl, span, "field %s declared twice in %s", name, def.Name)
		}
		t, err := r.ValueType(fieldTypes[i])
		if err != nil {
			return err
		}
		def.fieldIndex[name] = i
		def.Fields = append(def.Fields, Field{Name: name, Type: fieldTypes[i], Index: i})
		body[i] = t
	}
	def.Struct.SetBody(body...)
	return nil
}

// Resolve maps a semantic type to its IR representation.
func (r *Resolver) Resolve(id types.TypeID) (*ir.Type, error) {
	tt, ok := r.Types.Lookup(id)
	if !ok {
		return nil, diag.Errorf(diag.LowUnsupportedType, source.Span{}, "unresolved type #%d", id)
	}
	switch tt.Kind {
	case types.KindVoid:
		return ir.Void, nil
	case types.KindBool:
		return ir.I1, nil
	case types.KindChar:
		return ir.I8, nil
	case types.KindInt:
		return ir.I32, nil
	case types.KindNull, types.KindPointer:
		return ir.Ptr, nil
	case types.KindArray:
		if tt.Count == types.ArrayDynamicLength {
			return r.dynArray, nil
		}
		elem, err := r.ValueType(tt.Elem)
		if err != nil {
			return nil, err
		}
		n, convErr := safecast.Conv[int](tt.Count)
		if convErr != nil {
			return nil, diag.Errorf(diag.LowUnsupportedType, source.Span{}, "array length of %s: %v", types.Label(r.Types, id), convErr)
		}
		return ir.ArrayOf(elem, n), nil
	case types.KindStruct:
		def, ok := r.defs[id]
		if !ok {
			var span source.Span
			if info, ok := r.Types.Nominal(id); ok {
				span = info.Decl
			}
			return nil, diag.Errorf(diag.LowUnregisteredStruct, span, "struct %s was never declared", types.Label(r.Types, id))
		}
		return def.Struct, nil
	case types.KindInterface:
		return r.Runtime.Iface, nil
	case types.KindFn:
		return r.Signature(id, false)
	case types.KindProperty:
		info, _ := r.Types.PropertyInfo(id)
		return r.Resolve(info.Result)
	case types.KindList:
		members, _ := r.Types.ListMembers(id)
		fields := make([]*ir.Type, len(members))
		for i, m := range members {
			t, err := r.ValueType(m)
			if err != nil {
				return nil, err
			}
			fields[i] = t
		}
		return ir.StructOf(fields...), nil
	default:
		return nil, diag.Errorf(diag.LowUnsupportedType, source.Span{}, "type %s has no machine representation", types.Label(r.Types, id))
	}
}

// ValueType is the storage type of a value of id: function values are
// pointers and void is stored as a byte.
func (r *Resolver) ValueType(id types.TypeID) (*ir.Type, error) {
	switch r.Types.KindOf(id) {
	case types.KindFn:
		return ir.Ptr, nil
	case types.KindVoid:
		return ir.I8, nil
	}
	return r.Resolve(id)
}

// Signature resolves a function type. A receiver adds a leading ptr. When
// the function returns two or more values, one out-pointer per value
// follows the receiver and the result becomes void.
func (r *Resolver) Signature(fn types.TypeID, receiver bool) (*ir.Type, error) {
	info, ok := r.Types.FnInfo(fn)
	if !ok {
		return nil, diag.Errorf(diag.LowUnsupportedType, source.Span{}, "%s is not a function type", types.Label(r.Types, fn))
	}
	results := r.Types.Results(fn)
	params := make([]*ir.Type, 0, len(info.Params)+len(results)+1)
	if receiver {
		params = append(params, ir.Ptr)
	}
	ret := ir.Void
	switch len(results) {
	case 0:
	case 1:
		t, err := r.ValueType(results[0])
		if err != nil {
			return nil, err
		}
		ret = t
	default:
		for range results {
			params = append(params, ir.Ptr)
		}
	}
	for _, p := range info.Params {
		t, err := r.ValueType(p)
		if err != nil {
			return nil, err
		}
		params = append(params, t)
	}
	return ir.FuncType(ret, params...), nil
}

// AccessorSignature resolves a property getter (receiver) -> value or
// setter (receiver, value) -> void.
func (r *Resolver) AccessorSignature(prop types.TypeID, set, receiver bool) (*ir.Type, error) {
	info, ok := r.Types.PropertyInfo(prop)
	if !ok {
		return nil, diag.Errorf(diag.LowBadPropertyDecl, source.Span{}, "%s is not a property type", types.Label(r.Types, prop))
	}
	if _, multi := r.Types.ListMembers(info.Result); multi {
		return nil, diag.Errorf(diag.LowBadPropertyDecl, source.Span{}, "property of %s cannot return several values", types.Label(r.Types, info.Result))
	}
	val, err := r.ValueType(info.Result)
	if err != nil {
		return nil, err
	}
	var params []*ir.Type
	if receiver {
		params = append(params, ir.Ptr)
	}
	if set {
		return ir.FuncType(ir.Void, append(params, val)...), nil
	}
	return ir.FuncType(val, params...), nil
}

// SizeOf returns the allocation size of a semantic type.
func (r *Resolver) SizeOf(id types.TypeID) (int, error) {
	t, err := r.ValueType(id)
	if err != nil {
		return 0, err
	}
	size, err := r.Engine.SizeOf(t)
	if err != nil {
		return 0, diag.Errorf(diag.LowRecursiveLayout, source.Span{}, "%s: %v", types.Label(r.Types, id), err)
	}
	return size, nil
}
