package lower

import (
	"bytes"
	"strings"
	"testing"

	"kestrel/internal/hir"
	"kestrel/internal/ir"
	"kestrel/internal/layout"
	"kestrel/internal/vm"
)

func TestProgramsRunOnVM(t *testing.T) {
	tests := []struct {
		name  string
		build func(f *fixture)
		want  int64
		check func(t *testing.T, mod *ir.Module)
	}{
		{
			name: "namespace property",
			build: func(f *fixture) {
				b, bt := f.b, f.bt
				total := b.Ident("total", bt.Int)
				cfg := &hir.Namespace{Name: "cfg"}
				cfg.Add(b.Global("total", bt.Int, b.Int(0)), b.Property("Count", bt.Int,
					b.Body(b.Return(b.Binary(hir.OpMul, total, b.Int(2)))),
					b.Body(b.Set(total, b.Binary(hir.OpAdd, b.Ident(hir.SetterParam, bt.Int), b.Int(1)))),
				))
				count := b.Member(b.NS("cfg"), "Count", bt.Int)
				f.prog.Root.Add(cfg, b.Func("Main", nil, f.ints(1), b.Body(
					b.Set(count, b.Int(20)),
					b.Return(count),
				)))
			},
			want: 42,
			check: func(t *testing.T, mod *ir.Module) {
				get, set := mod.Func("cfg.Count.get"), mod.Func("cfg.Count.set")
				if get == nil || set == nil {
					t.Fatalf("accessors not named cfg.Count.get/set:\n%s", dump(mod))
				}
				if get.Sig.String() != "i32 ()" || set.Sig.String() != "void (i32)" {
					t.Fatalf("accessor signatures %s / %s", get.Sig, set.Sig)
				}
			},
		},
		{
			name: "struct property with compound assignment",
			build: func(f *fixture) {
				b, bt := f.b, f.bt
				box := b.Struct("Box", "Box").Field("w", bt.Int)
				w := b.Member(b.This(box.Type), "w", bt.Int)
				box.Prop(b.Property("W", bt.Int,
					b.Body(b.Return(w)),
					b.Body(b.Set(w, b.Binary(hir.OpMul, b.Ident(hir.SetterParam, bt.Int), b.Int(2)))),
				))
				ptr := f.in.Pointer(box.Type)
				p := b.Ident("p", ptr)
				f.prog.Root.Add(box, b.Func("Main", nil, f.ints(1), b.Body(
					b.Let("p", ptr, b.New(box.Type)),
					b.Set(b.Member(p, "W", bt.Int), b.Int(2)),
					// W is 4; 4+3 goes through the setter once more.
					b.SetOp(hir.AddAssign, b.Member(p, "W", bt.Int), b.Int(3)),
					b.Return(b.Binary(hir.OpAdd, b.Member(p, "w", bt.Int), b.Member(p, "W", bt.Int))),
				)))
			},
			want: 28,
			check: func(t *testing.T, mod *ir.Module) {
				get, set := mod.Func("Box.W.get"), mod.Func("Box.W.set")
				if get == nil || set == nil {
					t.Fatalf("accessors not named Box.W.get/set:\n%s", dump(mod))
				}
				if get.Sig.String() != "i32 (ptr)" || set.Sig.String() != "void (ptr, i32)" {
					t.Fatalf("accessor signatures %s / %s", get.Sig, set.Sig)
				}
			},
		},
		{
			name: "interface property through slots",
			build: func(f *fixture) {
				b, bt := f.b, f.bt
				sized := b.Interface("Sized", "Sized").Prop("Len", f.in.RegisterProperty(bt.Int, true, true))
				sq := b.Struct("Sq", "Sq", sized.Type).Field("n", bt.Int)
				n := b.Member(b.This(sq.Type), "n", bt.Int)
				sq.Prop(b.Property("Len", bt.Int,
					b.Body(b.Return(n)),
					b.Body(b.Set(n, b.Binary(hir.OpAdd, b.Ident(hir.SetterParam, bt.Int), b.Int(1)))),
				))
				ptr := f.in.Pointer(sq.Type)
				s := b.Ident("s", sized.Type)
				f.prog.Root.Add(sized, sq, b.Func("Main", nil, f.ints(1), b.Body(
					b.Let("p", ptr, b.New(sq.Type)),
					b.Let("s", sized.Type, b.Ident("p", ptr)),
					b.Set(b.Member(s, "Len", bt.Int), b.Int(40)),
					b.SetOp(hir.AddAssign, b.Member(s, "Len", bt.Int), b.Int(1)),
					b.Return(b.Member(s, "Len", bt.Int)),
				)))
			},
			want: 43,
			check: func(t *testing.T, mod *ir.Module) {
				slots := mod.Global("Sq.vtable.Sized")
				if slots == nil || slots.Init == nil || len(slots.Init.Elems) != 2 {
					t.Fatalf("Sq has no Sized slots:\n%s", dump(mod))
				}
				if slots.Init.Elems[0] != ir.Value(mod.Func("Sq.Len.get")) || slots.Init.Elems[1] != ir.Value(mod.Func("Sq.Len.set")) {
					t.Fatalf("slots = %s, %s", slots.Init.Elems[0].Ident(), slots.Init.Elems[1].Ident())
				}
			},
		},
		{
			name: "is fails for an interface the type lacks",
			build: func(f *fixture) {
				b, bt := f.b, f.bt
				cmp, pair, _ := pairProgram(f)
				printable := b.Interface("Printable", "Printable").Method("Print", f.in.RegisterFn(nil, bt.Int))
				ptr := f.in.Pointer(pair.Type)
				c := b.Ident("c", cmp.Type)
				f.prog.Root.Add(cmp, printable, pair, b.Func("Main", nil, f.ints(1), b.Body(
					b.Let("p", ptr, b.New(pair.Type)),
					b.Let("c", cmp.Type, b.Ident("p", ptr)),
					b.If(b.Is(c, printable.Type), b.Body(b.Return(b.Int(1))), nil),
					b.If(b.Unary(hir.OpNot, b.Is(c, cmp.Type)), b.Body(b.Return(b.Int(2))), nil),
					b.Return(b.Int(7)),
				)))
			},
			want: 7,
		},
		{
			name: "forward reference across namespaces",
			build: func(f *fixture) {
				b, bt := f.b, f.bt
				g := b.Func("g", []hir.Param{b.P("x", bt.Int)}, f.ints(1), b.Body(
					b.Return(b.Binary(hir.OpMul, b.Ident("x", bt.Int), b.Int(3))),
				))
				fn := b.Func("f", nil, f.ints(1), b.Body(
					b.Return(b.Call(b.Member(b.NS("beta"), "g", g.Type), b.Int(5))),
				))
				alpha := &hir.Namespace{Name: "alpha"}
				alpha.Add(fn)
				beta := &hir.Namespace{Name: "beta"}
				beta.Add(g)
				f.prog.Root.Add(alpha, beta, b.Func("Main", nil, f.ints(1), b.Body(
					b.Return(b.Call(b.Member(b.NS("alpha"), "f", fn.Type))),
				)))
			},
			want: 15,
			check: func(t *testing.T, mod *ir.Module) {
				if mod.Func("alpha.f") == nil || mod.Func("beta.g") == nil {
					t.Fatalf("namespace functions not qualified:\n%s", dump(mod))
				}
			},
		},
		{
			name: "interface named ifaces",
			build: func(f *fixture) {
				b, bt := f.b, f.bt
				get := f.in.RegisterFn(nil, bt.Int)
				ifc := b.Interface("ifaces", "ifaces").Method("Get", get)
				foo := b.Struct("Foo", "Foo", ifc.Type).Field("v", bt.Int)
				foo.Method(b.Func("Get", nil, f.ints(1), b.Body(
					b.Return(b.Member(b.This(foo.Type), "v", bt.Int)),
				)))
				ptr := f.in.Pointer(foo.Type)
				p := b.Ident("p", ptr)
				f.prog.Root.Add(ifc, foo, b.Func("Main", nil, f.ints(1), b.Body(
					b.Let("p", ptr, b.New(foo.Type)),
					b.Set(b.Member(p, "v", bt.Int), b.Int(9)),
					b.Let("i", ifc.Type, p),
					b.Return(b.Call(b.Member(b.Ident("i", ifc.Type), "Get", get))),
				)))
			},
			want: 9,
			check: func(t *testing.T, mod *ir.Module) {
				if mod.Global("Foo.vtable.ifaces") == nil || mod.Global("Foo.vtable..ifaces") == nil {
					t.Fatalf("vtable arrays missing:\n%s", dump(mod))
				}
			},
		},
		{
			name: "lookup emitted without dispatch",
			build: func(f *fixture) {
				b, bt := f.b, f.bt
				cmp := b.Interface("Unused", "Unused").Method("M", f.in.RegisterFn(nil, bt.Int))
				f.prog.Root.Add(cmp, b.Func("Main", nil, f.ints(1), b.Body(b.Return(b.Int(0)))))
			},
			want: 0,
			check: func(t *testing.T, mod *ir.Module) {
				if mod.Func("kestrel.lookup") == nil {
					t.Fatalf("module with an interface has no lookup routine")
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tt.build(f)
			res := f.lower(t)
			if tt.check != nil {
				tt.check(t, res.Module)
			}
			var out bytes.Buffer
			code, err := vm.New(res.Module, layout.X86_64LinuxGNU(), &out).Run(MainName)
			if err != nil {
				t.Fatalf("run: %v\n%s", err, dump(res.Module))
			}
			if code != tt.want {
				t.Fatalf("exit code = %d, want %d", code, tt.want)
			}
		})
	}
}

// pairFunc declares pair() returning (1, 2).
func pairFunc(f *fixture) *hir.FuncDecl {
	b := f.b
	return b.Func("pair", nil, f.ints(2), b.Body(b.Return(b.Int(1), b.Int(2))))
}

// outputOperands returns the leading pointer arguments of every call to fn.
func outputOperands(res *Result, fn *ir.Func, n int) [][]ir.Value {
	var calls [][]ir.Value
	for _, blk := range res.Entry.Blocks {
		for _, in := range blk.Instrs {
			if in.Op == ir.OpCall && in.Operands[0] == ir.Value(fn) {
				calls = append(calls, in.Operands[1:1+n])
			}
		}
	}
	return calls
}

func TestMultiAssignPassesLocalsAsOutputs(t *testing.T) {
	f := newFixture()
	b, bt := f.b, f.bt
	pair := pairFunc(f)
	x, y := b.Ident("x", bt.Int), b.Ident("y", bt.Int)
	f.prog.Root.Add(pair, b.Func("Main", nil, f.ints(1), b.Body(
		b.Let("x", bt.Int, b.Int(0)),
		b.Let("y", bt.Int, b.Int(0)),
		b.SetMulti([]*hir.Expr{x, y}, b.Call(b.Ident("pair", pair.Type))),
		b.Return(b.Binary(hir.OpAdd, b.Binary(hir.OpMul, x, b.Int(10)), y)),
	)))

	res := f.lower(t)
	calls := outputOperands(res, res.Module.Func("pair"), 2)
	if len(calls) != 1 {
		t.Fatalf("%d calls to pair", len(calls))
	}
	for i, name := range []string{"x.", "y."} {
		slot, ok := calls[0][i].(*ir.Instr)
		if !ok || slot.Op != ir.OpAlloca || !strings.HasPrefix(slot.Name, name) {
			t.Fatalf("output %d is %s, want the %s slot:\n%s", i, calls[0][i].Ident(), name, dump(res.Module))
		}
	}
	var out bytes.Buffer
	code, err := vm.New(res.Module, layout.X86_64LinuxGNU(), &out).Run(MainName)
	if err != nil || code != 12 {
		t.Fatalf("main() = %d, %v", code, err)
	}
}

func TestMultiAssignSameTargetUsesTemps(t *testing.T) {
	f := newFixture()
	b, bt := f.b, f.bt
	pair := pairFunc(f)
	x := b.Ident("x", bt.Int)
	f.prog.Root.Add(pair, b.Func("Main", nil, f.ints(1), b.Body(
		b.Let("x", bt.Int, b.Int(0)),
		b.SetMulti([]*hir.Expr{x, x}, b.Call(b.Ident("pair", pair.Type))),
		b.Return(x),
	)))

	res := f.lower(t)
	calls := outputOperands(res, res.Module.Func("pair"), 2)
	if len(calls) != 1 {
		t.Fatalf("%d calls to pair", len(calls))
	}
	for i, v := range calls[0] {
		if slot, ok := v.(*ir.Instr); ok && strings.HasPrefix(slot.Name, "x.") {
			t.Fatalf("aliased target passed directly as output %d", i)
		}
	}
	var out bytes.Buffer
	code, err := vm.New(res.Module, layout.X86_64LinuxGNU(), &out).Run(MainName)
	if err != nil || code != 2 {
		t.Fatalf("main() = %d, %v", code, err)
	}
}

func TestMultiAssignInsideTryKeepsTargets(t *testing.T) {
	f := newFixture()
	b, bt := f.b, f.bt
	x := b.Ident("x", bt.Int)
	fail := b.Func("fail", nil, f.ints(2), b.Body(b.Throw(b.Int(4))))
	f.prog.Root.Add(fail, b.Func("Main", nil, f.ints(1), b.Body(
		b.Let("x", bt.Int, b.Int(6)),
		b.Let("y", bt.Int, b.Int(0)),
		b.Try(b.Body(
			b.SetMulti([]*hir.Expr{x, b.Ident("y", bt.Int)}, b.Call(b.Ident("fail", fail.Type))),
		), "e", bt.Int, b.Body(
			b.Return(b.Binary(hir.OpAdd, x, b.Ident("e", bt.Int))),
		)),
		b.Return(b.Int(-1)),
	)))
	if code, _ := f.run(t); code != 10 {
		t.Fatalf("exit code = %d, want 10", code)
	}
}
