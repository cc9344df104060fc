package layout

import (
	"errors"
	"testing"

	"kestrel/internal/diag"
	"kestrel/internal/ir"
	"kestrel/internal/source"
	"kestrel/internal/types"
)

func TestLayoutScalarsAndAggregates(t *testing.T) {
	e := New(X86_64LinuxGNU())
	tests := []struct {
		name        string
		typ         *ir.Type
		size, align int
	}{
		{"i1", ir.I1, 1, 1},
		{"i8", ir.I8, 1, 1},
		{"i32", ir.I32, 4, 4},
		{"i64", ir.I64, 8, 8},
		{"ptr", ir.Ptr, 8, 8},
		{"dyn array", ir.StructOf(ir.I32, ir.Ptr), 16, 8},
		{"iface", ir.StructOf(ir.Ptr, ir.Ptr), 16, 8},
		{"bool+int", ir.StructOf(ir.I1, ir.I32), 8, 4},
		{"array", ir.ArrayOf(ir.StructOf(ir.I32, ir.I8), 3), 24, 4},
		{"jmpbuf", ir.ArrayOf(ir.I8, 200), 200, 1},
		{"empty", ir.StructOf(), 0, 1},
	}
	for _, tt := range tests {
		l, err := e.LayoutOf(tt.typ)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if l.Size != tt.size || l.Align != tt.align {
			t.Errorf("%s: size/align = %d/%d, want %d/%d", tt.name, l.Size, l.Align, tt.size, tt.align)
		}
	}
}

func TestFieldOffsets(t *testing.T) {
	m := ir.NewModule("t", "")
	st := m.NamedStruct("S")
	st.SetBody(ir.I8, ir.I32, ir.Ptr, ir.I1)
	e := New(X86_64LinuxGNU())
	l, err := e.LayoutOf(st)
	if err != nil {
		t.Fatal(err)
	}
	want := []int{0, 4, 8, 16}
	for i, off := range want {
		if l.FieldOffsets[i] != off {
			t.Errorf("field %d at %d, want %d", i, l.FieldOffsets[i], off)
		}
	}
	if l.Size != 24 {
		t.Errorf("size %d, want 24", l.Size)
	}
	if off, _ := e.FieldOffset(st, 2); off != 8 {
		t.Errorf("FieldOffset = %d", off)
	}
}

func TestRecursiveStructIsAnError(t *testing.T) {
	m := ir.NewModule("t", "")
	a := m.NamedStruct("A")
	b := m.NamedStruct("B")
	a.SetBody(ir.I32, b)
	b.SetBody(a)
	_, err := New(X86_64LinuxGNU()).LayoutOf(a)
	var le *LayoutError
	if !errors.As(err, &le) || le.Kind != LayoutErrRecursiveUnsized {
		t.Fatalf("expected recursive layout error, got %v", err)
	}
	if len(le.Cycle) != 3 {
		t.Fatalf("cycle %v", le.Cycle)
	}
	c := m.NamedStruct("C")
	c.SetBody(ir.Ptr, ir.I32)
	if _, err := New(X86_64LinuxGNU()).LayoutOf(c); err != nil {
		t.Fatalf("self pointer should be fine: %v", err)
	}
}

func TestOpaqueStructIsAnError(t *testing.T) {
	m := ir.NewModule("t", "")
	_, err := New(X86_64LinuxGNU()).LayoutOf(m.NamedStruct("Later"))
	var le *LayoutError
	if !errors.As(err, &le) || le.Kind != LayoutErrOpaque {
		t.Fatalf("expected opaque error, got %v", err)
	}
}

func TestTargetByName(t *testing.T) {
	for _, name := range []string{"", "x86_64-linux-gnu", "x86_64-unknown-linux-gnu"} {
		if tg, ok := TargetByName(name); !ok || tg.JmpBufSize != 200 {
			t.Errorf("TargetByName(%q) = %+v, %v", name, tg, ok)
		}
	}
	if tg, ok := TargetByName("aarch64-linux-gnu"); !ok || tg.JmpBufSize != 312 {
		t.Errorf("aarch64 = %+v", tg)
	}
	if _, ok := TargetByName("riscv64"); ok {
		t.Error("unknown target accepted")
	}
}

func newResolver(t *testing.T) (*Resolver, *types.Interner) {
	t.Helper()
	in := types.NewInterner()
	mod := ir.NewModule("t", "")
	return NewResolver(in, mod, New(X86_64LinuxGNU())), in
}

func TestResolvePrimitivesAndShapes(t *testing.T) {
	r, in := newResolver(t)
	b := in.Builtins()
	iface := in.RegisterInterface("Shape", source.At(1))
	tests := []struct {
		id   types.TypeID
		want string
	}{
		{b.Bool, "i1"},
		{b.Char, "i8"},
		{b.Int, "i32"},
		{b.Void, "void"},
		{in.Pointer(b.Int), "ptr"},
		{in.Pointer(iface), "ptr"},
		{in.Pointer(b.Void), "ptr"},
		{in.DynArray(b.Int), "{ i32, ptr }"},
		{in.Array(b.Char, 4), "[4 x i8]"},
		{iface, "%kestrel.iface"},
		{in.RegisterList([]types.TypeID{b.Int, b.Bool}), "{ i32, i1 }"},
		{in.RegisterProperty(b.Bool, true, true), "i1"},
		{in.RegisterFn([]types.TypeID{b.Int}, b.Bool), "i1 (i32)"},
	}
	for _, tt := range tests {
		got, err := r.Resolve(tt.id)
		if err != nil {
			t.Fatalf("Resolve(%s): %v", types.Label(in, tt.id), err)
		}
		if got.String() != tt.want {
			t.Errorf("Resolve(%s) = %s, want %s", types.Label(in, tt.id), got, tt.want)
		}
	}
	if vt, _ := r.ValueType(in.RegisterFn(nil, b.Void)); vt != ir.Ptr {
		t.Errorf("function value type = %s", vt)
	}
	if vt, _ := r.ValueType(b.Void); vt != ir.I8 {
		t.Errorf("void value type = %s", vt)
	}
}

func TestResolveUnregisteredStruct(t *testing.T) {
	r, in := newResolver(t)
	ghost := in.RegisterStruct("Ghost", source.At(12))
	_, err := r.Resolve(ghost)
	de, ok := diag.AsError(err)
	if !ok || de.Code != diag.LowUnregisteredStruct || de.Span.Line != 12 {
		t.Fatalf("expected LOW1001 at line 12, got %v", err)
	}
	if _, err := r.Resolve(in.RegisterNamespace("std")); diag.CodeOf(err) != diag.LowUnsupportedType {
		t.Fatalf("namespace resolve: %v", err)
	}
}

func TestSignatureMultiReturn(t *testing.T) {
	r, in := newResolver(t)
	b := in.Builtins()
	fn := in.RegisterFn([]types.TypeID{b.Char}, in.RegisterList([]types.TypeID{b.Int, b.Bool}))
	free, err := r.Signature(fn, false)
	if err != nil {
		t.Fatal(err)
	}
	if free.String() != "void (ptr, ptr, i8)" {
		t.Errorf("free signature %s", free)
	}
	method, _ := r.Signature(fn, true)
	if method.String() != "void (ptr, ptr, ptr, i8)" {
		t.Errorf("method signature %s", method)
	}
	get, _ := r.AccessorSignature(in.RegisterProperty(b.Int, true, true), false, true)
	set, _ := r.AccessorSignature(in.RegisterProperty(b.Int, true, true), true, true)
	if get.String() != "i32 (ptr)" || set.String() != "void (ptr, i32)" {
		t.Errorf("accessors %s / %s", get, set)
	}
}

func TestTypeDefFields(t *testing.T) {
	r, in := newResolver(t)
	b := in.Builtins()
	pair := in.RegisterStruct("geo.Pair", source.At(2))
	def, err := r.Define(pair, source.At(2))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Define(pair, source.At(3)); diag.CodeOf(err) != diag.LowDuplicateDecl {
		t.Fatalf("second Define: %v", err)
	}
	if err := r.SetFields(def, []string{"x", "y"}, []types.TypeID{b.Int, b.Int}, source.At(2)); err != nil {
		t.Fatal(err)
	}
	if f, ok := def.Field("y"); !ok || f.Index != 1 {
		t.Fatalf("field y = %+v %v", f, ok)
	}
	got, _ := r.Resolve(pair)
	if got.String() != "%geo.Pair" || got.Body() != "{ i32, i32 }" {
		t.Fatalf("pair = %s %s", got, got.Body())
	}
	if size, _ := r.SizeOf(pair); size != 8 {
		t.Fatalf("SizeOf(Pair) = %d", size)
	}
	fn := r.Mod.NewFunc("geo.Pair.Sum", ir.FuncType(ir.I32, ir.Ptr))
	if err := def.AddMember("Sum", fn); err != nil {
		t.Fatal(err)
	}
	if err := def.AddMember("x", fn); err == nil {
		t.Fatal("member colliding with a field accepted")
	}
	def.Freeze()
	if err := def.AddMember(AccessorName("Len", false), fn); err == nil {
		t.Fatal("frozen type accepted a member")
	}
}
