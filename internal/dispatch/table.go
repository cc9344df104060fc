package dispatch

import (
	"kestrel/internal/ir"
	"kestrel/internal/source"
	"kestrel/internal/types"
)

// SlotKind tells how a slot was contributed by the interface.
type SlotKind uint8

const (
	SlotFunc SlotKind = iota
	SlotGet
	SlotSet
)

// Slot is one entry of an interface vtable.
type Slot struct {
	Index int
	Name  string // method name or "<prop>.get" / "<prop>.set"
	Kind  SlotKind
	// Sig is the callee signature with the receiver as first parameter.
	Sig *ir.Type
}

// Table is the slot table of one interface. It is immutable once declared
// and is the only source of slot numbers for both vtables and call sites.
type Table struct {
	ID   int32
	Name string
	Type types.TypeID
	Span source.Span

	slots    []Slot
	byName   map[string]int
	props    map[string]types.TypeID
	methods  map[string]types.TypeID
	declared bool
}

// Len is the number of slots.
func (t *Table) Len() int {
	return len(t.slots)
}

// Slots returns the slots in index order.
func (t *Table) Slots() []Slot {
	return t.slots
}

// Slot looks up a slot by member name.
func (t *Table) Slot(name string) (Slot, bool) {
	i, ok := t.byName[name]
	if !ok {
		return Slot{}, false
	}
	return t.slots[i], true
}

// Method returns the KindFn type of an interface method.
func (t *Table) Method(name string) (types.TypeID, bool) {
	fn, ok := t.methods[name]
	return fn, ok
}

// Property returns the KindProperty type of an interface property.
func (t *Table) Property(name string) (types.TypeID, bool) {
	p, ok := t.props[name]
	return p, ok
}

// Declared reports whether slots have been assigned.
func (t *Table) Declared() bool {
	return t.declared
}

func (t *Table) add(name string, kind SlotKind, sig *ir.Type) {
	t.byName[name] = len(t.slots)
	t.slots = append(t.slots, Slot{Index: len(t.slots), Name: name, Kind: kind, Sig: sig})
}
