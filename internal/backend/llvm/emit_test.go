package llvm

import (
	"strings"
	"testing"

	"kestrel/internal/ir"
)

func TestEmitModule(t *testing.T) {
	m := ir.NewModule("unit", "x86_64-unknown-linux-gnu")
	pair := m.NamedStruct("Pair")
	pair.SetBody(ir.I32, ir.I32)
	m.NamedStruct("Later")
	g := m.NewGlobal("kestrel.jmpbuf", ir.ArrayOf(ir.I8, 200), nil)
	g.Align = 16
	s := m.NewGlobal("str.0", ir.ArrayOf(ir.I8, 2), ir.Bytes([]byte("ok")))
	s.Constant, s.Private = true, true
	setjmp := m.NewFunc("_setjmp", ir.FuncType(ir.I32, ir.Ptr))
	setjmp.Attrs = []string{"returns_twice"}

	f := m.NewFunc("sum", ir.FuncType(ir.I32, ir.Ptr), "p")
	entry := f.Entry()
	slot := f.Alloca(ir.I32, "acc")
	x := entry.Load(ir.I32, entry.FieldPtr(pair, f.Params[0], 0))
	y := entry.Load(ir.I32, entry.FieldPtr(pair, f.Params[0], 1))
	entry.Store(entry.BinaryNSW(ir.Add, x, y), slot)
	entry.Call(setjmp, setjmp.Sig, g)
	entry.Ret(entry.Load(ir.I32, slot))

	out, err := EmitModule(m)
	if err != nil {
		t.Fatalf("EmitModule: %v", err)
	}
	for _, want := range []string{
		`target triple = "x86_64-unknown-linux-gnu"`,
		"%Pair = type { i32, i32 }",
		"%Later = type opaque",
		"@kestrel.jmpbuf = global [200 x i8] zeroinitializer, align 16",
		`@str.0 = private unnamed_addr constant [2 x i8] c"\6F\6B"`,
		"declare i32 @_setjmp(ptr) returns_twice",
		"define i32 @sum(ptr %p) {",
		"entry:\n  %acc.1 = alloca i32\n",
		"getelementptr inbounds %Pair, ptr %p, i32 0, i32 1",
		"add nsw i32",
		"call i32 @_setjmp(ptr @kestrel.jmpbuf) returns_twice",
		"ret i32 %t.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
}

func TestFormatInstrTerminators(t *testing.T) {
	m := ir.NewModule("unit", "")
	f := m.NewFunc("f", ir.FuncType(ir.Void, ir.I1), "c")
	entry := f.Entry()
	a := f.NewBlock("then")
	b := f.NewBlock("else")
	entry.CondBr(f.Params[0], a, b)
	a.Br(b)
	b.Unreachable()
	var lines []string
	for _, bb := range f.Blocks {
		for _, in := range bb.Instrs {
			line, err := formatInstr(in)
			if err != nil {
				t.Fatal(err)
			}
			lines = append(lines, line)
		}
	}
	got := strings.Join(lines, "\n")
	want := "br i1 %c, label %then.1, label %else.2\nbr label %else.2\nunreachable"
	if got != want {
		t.Fatalf("got\n%s\nwant\n%s", got, want)
	}
}
