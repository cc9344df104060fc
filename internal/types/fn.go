package types //nolint:revive

import (
	"slices"
)

// FnInfo stores metadata for function types.
type FnInfo struct {
	Params []TypeID // Parameter types (in order)
	Result TypeID   // Void, a single type, or a List of two or more
}

// RegisterFn creates or finds a function type.
func (in *Interner) RegisterFn(params []TypeID, result TypeID) TypeID {
	if result == NoTypeID {
		result = in.builtins.Void
	}
	for id := TypeID(1); int(id) < len(in.types); id++ {
		tt := in.types[id]
		if tt.Kind != KindFn || int(tt.Payload) >= len(in.fns) {
			continue
		}
		info := in.fns[tt.Payload]
		if info.Result == result && slices.Equal(info.Params, params) {
			return id
		}
	}
	slot := appendSlot(&in.fns, FnInfo{Params: slices.Clone(params), Result: result})
	return in.internRaw(Type{Kind: KindFn, Payload: slot})
}

// FnInfo retrieves function type metadata by TypeID.
func (in *Interner) FnInfo(id TypeID) (*FnInfo, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindFn {
		return nil, false
	}
	if int(tt.Payload) >= len(in.fns) {
		return nil, false
	}
	return &in.fns[tt.Payload], true
}

// Results returns the flattened result list of a function type: empty for
// void, one element for single results.
func (in *Interner) Results(fn TypeID) []TypeID {
	info, ok := in.FnInfo(fn)
	if !ok || info.Result == in.builtins.Void {
		return nil
	}
	if members, isList := in.ListMembers(info.Result); isList {
		return members
	}
	return []TypeID{info.Result}
}

// PropertyInfo describes a property type: the accessor result and which
// accessors the declaration provides.
type PropertyInfo struct {
	Result TypeID
	HasGet bool
	HasSet bool
}

// RegisterProperty creates or finds a property type.
func (in *Interner) RegisterProperty(result TypeID, hasGet, hasSet bool) TypeID {
	want := PropertyInfo{Result: result, HasGet: hasGet, HasSet: hasSet}
	for id := TypeID(1); int(id) < len(in.types); id++ {
		tt := in.types[id]
		if tt.Kind == KindProperty && int(tt.Payload) < len(in.props) && in.props[tt.Payload] == want {
			return id
		}
	}
	slot := appendSlot(&in.props, want)
	return in.internRaw(Type{Kind: KindProperty, Payload: slot})
}

// PropertyInfo retrieves property metadata by TypeID.
func (in *Interner) PropertyInfo(id TypeID) (*PropertyInfo, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindProperty {
		return nil, false
	}
	if int(tt.Payload) >= len(in.props) {
		return nil, false
	}
	return &in.props[tt.Payload], true
}
