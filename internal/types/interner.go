package types

import (
	"fmt"

	"fortio.org/safecast"
)

// Builtins stores TypeIDs for primitive types.
type Builtins struct {
	Invalid TypeID
	Void    TypeID
	Bool    TypeID
	Char    TypeID
	Int     TypeID
	Null    TypeID
}

// Interner provides stable TypeIDs by hashing structural descriptors.
// It is produced by the front end and only read by the back end.
type Interner struct {
	types      []Type
	index      map[typeKey]TypeID
	builtins   Builtins
	nominals   []NominalInfo
	byName     map[nominalKey]TypeID
	fns        []FnInfo
	props      []PropertyInfo
	lists      []ListInfo
	namespaces []NamespaceInfo
}

type typeKey struct {
	Kind    Kind
	Elem    TypeID
	Count   uint32
	Payload uint32
}

type nominalKey struct {
	Kind Kind
	Name string
}

// NewInterner constructs an interner seeded with built-in primitives.
func NewInterner() *Interner {
	in := &Interner{}
	in.reset()
	in.builtins.Invalid = in.internRaw(Type{Kind: KindInvalid})
	in.builtins.Void = in.Intern(Type{Kind: KindVoid})
	in.builtins.Bool = in.Intern(Type{Kind: KindBool})
	in.builtins.Char = in.Intern(Type{Kind: KindChar})
	in.builtins.Int = in.Intern(Type{Kind: KindInt})
	in.builtins.Null = in.Intern(Type{Kind: KindNull})
	return in
}

func (in *Interner) reset() {
	in.types = in.types[:0]
	in.index = make(map[typeKey]TypeID, 64)
	in.byName = make(map[nominalKey]TypeID, 16)
	// slot 0 of every side table is an invalid sentinel
	in.nominals = []NominalInfo{{}}
	in.fns = []FnInfo{{}}
	in.props = []PropertyInfo{{}}
	in.lists = []ListInfo{{}}
	in.namespaces = []NamespaceInfo{{}}
}

// Builtins returns TypeIDs for primitive types.
func (in *Interner) Builtins() Builtins {
	return in.builtins
}

// Len returns the number of interned descriptors including the invalid slot.
func (in *Interner) Len() int {
	return len(in.types)
}

// Intern ensures the provided structural descriptor has a stable TypeID.
func (in *Interner) Intern(t Type) TypeID {
	if t.Kind == KindInvalid {
		return NoTypeID
	}
	key := typeKey(t)
	if id, ok := in.index[key]; ok {
		return id
	}
	return in.internRaw(t)
}

func (in *Interner) internRaw(t Type) TypeID {
	n, err := safecast.Conv[uint32](len(in.types))
	if err != nil {
		panic(fmt.Errorf("len(types) overflow: %w", err))
	}
	id := TypeID(n)
	in.types = append(in.types, t)
	in.index[typeKey(t)] = id
	return id
}

// Lookup returns the descriptor for a TypeID.
func (in *Interner) Lookup(id TypeID) (Type, bool) {
	if in == nil || id == NoTypeID || int(id) >= len(in.types) {
		return Type{}, false
	}
	return in.types[id], true
}

// MustLookup panics when id is invalid.
func (in *Interner) MustLookup(id TypeID) Type {
	tt, ok := in.Lookup(id)
	if !ok {
		panic("types: invalid TypeID")
	}
	return tt
}

// KindOf returns the kind of id, KindInvalid for unknown ids.
func (in *Interner) KindOf(id TypeID) Kind {
	tt, ok := in.Lookup(id)
	if !ok {
		return KindInvalid
	}
	return tt.Kind
}

// Pointer interns *elem.
func (in *Interner) Pointer(elem TypeID) TypeID {
	return in.Intern(MakePointer(elem))
}

// Array interns elem[count].
func (in *Interner) Array(elem TypeID, count uint32) TypeID {
	return in.Intern(MakeArray(elem, count))
}

// DynArray interns elem[].
func (in *Interner) DynArray(elem TypeID) TypeID {
	return in.Intern(MakeArray(elem, ArrayDynamicLength))
}

// Elem returns the pointee/element of pointer and array types.
func (in *Interner) Elem(id TypeID) TypeID {
	tt, ok := in.Lookup(id)
	if !ok {
		return NoTypeID
	}
	switch tt.Kind {
	case KindPointer, KindArray:
		return tt.Elem
	}
	return NoTypeID
}

// IsDynamicArray reports whether id is an elem[] type.
func (in *Interner) IsDynamicArray(id TypeID) bool {
	tt, ok := in.Lookup(id)
	return ok && tt.Kind == KindArray && tt.Count == ArrayDynamicLength
}

// PointerTo reports whether id is a pointer whose pointee has kind k.
func (in *Interner) PointerTo(id TypeID, k Kind) (TypeID, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindPointer {
		return NoTypeID, false
	}
	if in.KindOf(tt.Elem) != k {
		return NoTypeID, false
	}
	return tt.Elem, true
}

func appendSlot[T any](table *[]T, info T) uint32 {
	*table = append(*table, info)
	slot, err := safecast.Conv[uint32](len(*table) - 1)
	if err != nil {
		panic(fmt.Errorf("side table overflow: %w", err))
	}
	return slot
}
