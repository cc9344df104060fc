package types

import (
	"bytes"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"kestrel/internal/source"
)

func TestInternerBuiltinsAreDistinct(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	seen := map[TypeID]string{}
	for name, id := range map[string]TypeID{"void": b.Void, "bool": b.Bool, "char": b.Char, "int": b.Int, "null": b.Null} {
		if id == NoTypeID {
			t.Fatalf("%s has no id", name)
		}
		if prev, dup := seen[id]; dup {
			t.Fatalf("%s and %s share id %d", name, prev, id)
		}
		seen[id] = name
	}
	if b.Invalid != NoTypeID {
		t.Fatalf("invalid builtin should be NoTypeID, got %d", b.Invalid)
	}
}

func TestInternDeduplicatesStructuralTypes(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	if in.Pointer(b.Int) != in.Pointer(b.Int) {
		t.Fatal("pointer types are not deduplicated")
	}
	if in.Array(b.Char, 4) == in.Array(b.Char, 5) {
		t.Fatal("arrays of different length share an id")
	}
	if !in.IsDynamicArray(in.DynArray(b.Int)) {
		t.Fatal("dynamic array not recognised")
	}
	if in.IsDynamicArray(in.Array(b.Int, 3)) {
		t.Fatal("fixed array reported as dynamic")
	}
	fn1 := in.RegisterFn([]TypeID{b.Int, b.Bool}, b.Int)
	fn2 := in.RegisterFn([]TypeID{b.Int, b.Bool}, b.Int)
	if fn1 != fn2 {
		t.Fatal("identical fn types differ")
	}
	if in.RegisterFn(nil, NoTypeID) != in.RegisterFn(nil, b.Void) {
		t.Fatal("missing result should mean void")
	}
}

func TestNominalTypesByName(t *testing.T) {
	in := NewInterner()
	pair := in.RegisterStruct("geo.Pair", source.At(3))
	if again := in.RegisterStruct("geo.Pair", source.At(9)); again != pair {
		t.Fatal("struct registered twice")
	}
	cmp := in.RegisterInterface("geo.Pair", source.At(4))
	if cmp == pair {
		t.Fatal("struct and interface with the same name must differ")
	}
	info, ok := in.Nominal(pair)
	if !ok || info.Name != "geo.Pair" || info.Decl.Line != 3 {
		t.Fatalf("unexpected nominal info %+v", info)
	}
	if id, ok := in.FindInterface("geo.Pair"); !ok || id != cmp {
		t.Fatal("FindInterface failed")
	}
	if _, ok := in.FindStruct("geo.Missing"); ok {
		t.Fatal("FindStruct found an undeclared type")
	}
}

func TestListsFlattenAndCollapse(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	if got := in.RegisterList([]TypeID{b.Int}); got != b.Int {
		t.Fatalf("singleton list = %s, want int", Label(in, got))
	}
	if got := in.RegisterList(nil); got != b.Void {
		t.Fatalf("empty list = %s, want void", Label(in, got))
	}
	inner := in.RegisterList([]TypeID{b.Int, b.Bool})
	outer := in.RegisterList([]TypeID{inner, b.Char})
	members, ok := in.ListMembers(outer)
	if !ok || len(members) != 3 {
		t.Fatalf("nested list not flattened: %v", members)
	}
	if in.RegisterList([]TypeID{b.Int, b.Bool}) != inner {
		t.Fatal("lists are not deduplicated")
	}
	if !in.Same(in.RegisterList([]TypeID{b.Bool}), b.Bool) {
		t.Fatal("singleton list must equal its member")
	}
	if in.Same(inner, b.Int) {
		t.Fatal("two-member list equal to int")
	}
}

func TestResults(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	multi := in.RegisterFn(nil, in.RegisterList([]TypeID{b.Int, b.Bool}))
	if got := in.Results(multi); len(got) != 2 || got[0] != b.Int || got[1] != b.Bool {
		t.Fatalf("Results(multi) = %v", got)
	}
	if got := in.Results(in.RegisterFn(nil, b.Void)); len(got) != 0 {
		t.Fatalf("void fn has results %v", got)
	}
	if got := in.Results(in.RegisterFn(nil, b.Int)); len(got) != 1 {
		t.Fatalf("single result fn has %d results", len(got))
	}
}

func TestLabel(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	pair := in.RegisterStruct("Pair", source.Span{})
	tests := []struct {
		id   TypeID
		want string
	}{
		{b.Int, "int"},
		{in.Pointer(pair), "*Pair"},
		{in.Array(b.Char, 8), "char[8]"},
		{in.DynArray(b.Int), "int[]"},
		{in.RegisterFn([]TypeID{pair}, b.Int), "fn(Pair) int"},
		{in.RegisterFn(nil, b.Void), "fn()"},
		{in.RegisterList([]TypeID{b.Int, b.Bool}), "(int, bool)"},
		{in.RegisterProperty(b.Int, true, false), "property int {get}"},
		{in.RegisterNamespace("std.io"), "namespace std.io"},
		{NoTypeID, "?"},
	}
	for _, tt := range tests {
		if got := Label(in, tt.id); got != tt.want {
			t.Errorf("Label(%d) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestInternerMsgpackSnapshot(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	pair := in.RegisterStruct("Pair", source.At(1))
	cmp := in.RegisterInterface("Comparable", source.At(2))
	fn := in.RegisterFn([]TypeID{in.Pointer(pair)}, in.RegisterList([]TypeID{b.Int, b.Bool}))

	var buf bytes.Buffer
	if err := msgpack.NewEncoder(&buf).Encode(in); err != nil {
		t.Fatalf("encode: %v", err)
	}
	out := NewInterner()
	if err := msgpack.NewDecoder(&buf).Decode(out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Len() != in.Len() {
		t.Fatalf("decoded %d types, want %d", out.Len(), in.Len())
	}
	if id, ok := out.FindInterface("Comparable"); !ok || id != cmp {
		t.Fatal("interface name index not rebuilt")
	}
	if Label(out, fn) != Label(in, fn) {
		t.Fatalf("fn label %q != %q", Label(out, fn), Label(in, fn))
	}
	if out.Pointer(pair) != in.Pointer(pair) {
		t.Fatal("structural index not rebuilt")
	}
}
