package types

import (
	"kestrel/internal/source"
)

// NominalInfo describes a declared struct or interface type. Members live on
// the resolved tree; the interner only carries identity.
type NominalInfo struct {
	Name string // qualified, e.g. "geo.Pair"
	Decl source.Span
}

// RegisterStruct returns the struct type declared under the qualified name,
// creating it on first use.
func (in *Interner) RegisterStruct(name string, decl source.Span) TypeID {
	return in.registerNominal(KindStruct, name, decl)
}

// RegisterInterface returns the interface type declared under the qualified
// name, creating it on first use.
func (in *Interner) RegisterInterface(name string, decl source.Span) TypeID {
	return in.registerNominal(KindInterface, name, decl)
}

func (in *Interner) registerNominal(kind Kind, name string, decl source.Span) TypeID {
	key := nominalKey{Kind: kind, Name: name}
	if id, ok := in.byName[key]; ok {
		return id
	}
	slot := appendSlot(&in.nominals, NominalInfo{Name: name, Decl: decl})
	id := in.internRaw(Type{Kind: kind, Payload: slot})
	in.byName[key] = id
	return id
}

// Nominal returns the declaration info of a struct or interface type.
func (in *Interner) Nominal(id TypeID) (*NominalInfo, bool) {
	tt, ok := in.Lookup(id)
	if !ok || (tt.Kind != KindStruct && tt.Kind != KindInterface) {
		return nil, false
	}
	if int(tt.Payload) >= len(in.nominals) {
		return nil, false
	}
	return &in.nominals[tt.Payload], true
}

// FindStruct looks up a struct by qualified name.
func (in *Interner) FindStruct(name string) (TypeID, bool) {
	id, ok := in.byName[nominalKey{Kind: KindStruct, Name: name}]
	return id, ok
}

// FindInterface looks up an interface by qualified name.
func (in *Interner) FindInterface(name string) (TypeID, bool) {
	id, ok := in.byName[nominalKey{Kind: KindInterface, Name: name}]
	return id, ok
}
