package types

import (
	"slices"
)

// ListInfo stores the members of a multi-value type list. Lists are always
// flat and hold at least two members.
type ListInfo struct {
	Members []TypeID
}

// RegisterList interns a multi-value list. Nested lists are flattened, an
// empty list is void and a singleton list is its only member.
func (in *Interner) RegisterList(members []TypeID) TypeID {
	flat := make([]TypeID, 0, len(members))
	for _, m := range members {
		if inner, ok := in.ListMembers(m); ok {
			flat = append(flat, inner...)
			continue
		}
		flat = append(flat, m)
	}
	switch len(flat) {
	case 0:
		return in.builtins.Void
	case 1:
		return flat[0]
	}
	for id := TypeID(1); int(id) < len(in.types); id++ {
		tt := in.types[id]
		if tt.Kind == KindList && int(tt.Payload) < len(in.lists) && slices.Equal(in.lists[tt.Payload].Members, flat) {
			return id
		}
	}
	slot := appendSlot(&in.lists, ListInfo{Members: flat})
	return in.internRaw(Type{Kind: KindList, Payload: slot})
}

// ListMembers returns the members of a list type.
func (in *Interner) ListMembers(id TypeID) ([]TypeID, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindList || int(tt.Payload) >= len(in.lists) {
		return nil, false
	}
	return in.lists[tt.Payload].Members, true
}

// Same compares two types treating singleton lists as their member.
func (in *Interner) Same(a, b TypeID) bool {
	a, b = in.unwrapSingleton(a), in.unwrapSingleton(b)
	if a == b {
		return true
	}
	ma, okA := in.ListMembers(a)
	mb, okB := in.ListMembers(b)
	if !okA || !okB || len(ma) != len(mb) {
		return false
	}
	for i := range ma {
		if !in.Same(ma[i], mb[i]) {
			return false
		}
	}
	return true
}

func (in *Interner) unwrapSingleton(id TypeID) TypeID {
	if members, ok := in.ListMembers(id); ok && len(members) == 1 {
		return members[0]
	}
	return id
}

// NamespaceInfo names the namespace an expression refers to.
type NamespaceInfo struct {
	Path string
}

// RegisterNamespace returns the type of an expression naming the namespace at
// path (dot separated).
func (in *Interner) RegisterNamespace(path string) TypeID {
	for id := TypeID(1); int(id) < len(in.types); id++ {
		tt := in.types[id]
		if tt.Kind == KindNamespace && int(tt.Payload) < len(in.namespaces) && in.namespaces[tt.Payload].Path == path {
			return id
		}
	}
	slot := appendSlot(&in.namespaces, NamespaceInfo{Path: path})
	return in.internRaw(Type{Kind: KindNamespace, Payload: slot})
}

// NamespacePath returns the path of a namespace type.
func (in *Interner) NamespacePath(id TypeID) (string, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindNamespace || int(tt.Payload) >= len(in.namespaces) {
		return "", false
	}
	return in.namespaces[tt.Payload].Path, true
}
