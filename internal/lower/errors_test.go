package lower

import (
	"context"
	"testing"

	"kestrel/internal/diag"
	"kestrel/internal/hir"
	"kestrel/internal/ir"
	"kestrel/internal/layout"
	"kestrel/internal/types"
)

func TestLoweringErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func(f *fixture)
		want  diag.Code
	}{
		{
			name: "struct without the interface",
			build: func(f *fixture) {
				b := f.b
				cmp := b.Interface("Shape", "Shape")
				cmp.Method("Area", f.in.RegisterFn(nil, f.bt.Int))
				box := b.Struct("Box", "Box").Field("w", f.bt.Int)
				f.prog.Root.Add(cmp, box, b.Func("Main", nil, nil, b.Body(
					b.Let("s", cmp.Type, b.New(box.Type)),
				)))
			},
			want: diag.LowMissingInterfaceMember,
		},
		{
			name: "int compared with bool",
			build: func(f *fixture) {
				b := f.b
				f.prog.Root.Add(b.Func("Main", nil, nil, b.Body(
					b.Do(b.Binary(hir.OpEq, b.Int(1), b.Bool(true))),
				)))
			},
			want: diag.LowBadComparison,
		},
		{
			name: "bool ordered",
			build: func(f *fixture) {
				b := f.b
				f.prog.Root.Add(b.Func("Main", nil, nil, b.Body(
					b.Do(b.Binary(hir.OpLt, b.Bool(true), b.Bool(false))),
				)))
			},
			want: diag.LowBadComparison,
		},
		{
			name: "root global in reserved namespace",
			build: func(f *fixture) {
				f.prog.Root.Add(f.b.Global(reservedNamespace, f.bt.Int, nil))
			},
			want: diag.LowDuplicateDecl,
		},
		{
			name: "break outside loop",
			build: func(f *fixture) {
				b := f.b
				f.prog.Root.Add(b.Func("Main", nil, nil, b.Body(b.Break())))
			},
			want: diag.LowOutsideLoop,
		},
		{
			name: "return value from void function",
			build: func(f *fixture) {
				b := f.b
				f.prog.Root.Add(b.Func("Main", nil, nil, b.Body(b.Return(b.Int(1)))))
			},
			want: diag.LowBadReturn,
		},
		{
			name: "thrown struct too large",
			build: func(f *fixture) {
				b := f.b
				big := b.Struct("Big", "Big")
				for _, n := range []string{"a", "b", "c", "d", "e"} {
					big.Field(n, f.bt.Int)
				}
				f.prog.Root.Add(big, b.Func("Main", nil, nil, b.Body(
					b.Throw(b.Unary(hir.OpDeref, b.New(big.Type))),
				)))
			},
			want: diag.LowThrowTooLarge,
		},
		{
			name: "reserved namespace",
			build: func(f *fixture) {
				ns := &hir.Namespace{Name: reservedNamespace}
				ns.Add(f.b.Global("init", f.bt.Int, nil))
				f.prog.Root.Add(ns)
			},
			want: diag.LowDuplicateDecl,
		},
		{
			name: "root type in reserved namespace",
			build: func(f *fixture) {
				b := f.b
				cmp, pair, compare := pairProgram(f)
				k := b.Struct(reservedNamespace, reservedNamespace)
				k.Method(b.Func("lookup", nil, nil, b.Body()))
				ptr := f.in.Pointer(pair.Type)
				c := b.Ident("c", cmp.Type)
				f.prog.Root.Add(k, cmp, pair, b.Func("Main", nil, f.ints(1), b.Body(
					b.Let("p", ptr, b.New(pair.Type)),
					b.Let("c", cmp.Type, b.Ident("p", ptr)),
					b.Return(b.Call(b.Member(c, "Compare", compare), b.Unary(hir.OpDeref, b.Ident("p", ptr)))),
				)))
			},
			want: diag.LowDuplicateDecl,
		},
		{
			name: "root function in reserved namespace",
			build: func(f *fixture) {
				f.prog.Root.Add(f.b.Func(reservedNamespace, nil, nil, f.b.Body()))
			},
			want: diag.LowDuplicateDecl,
		},
		{
			name: "extern with reserved name",
			build: func(f *fixture) {
				b := f.b
				f.prog.Root.Add(b.Extern(thrownName, nil, nil), b.Func("Main", nil, nil, b.Body(
					b.Throw(b.Int(1)),
				)))
			},
			want: diag.LowDuplicateDecl,
		},
		{
			name: "duplicate function",
			build: func(f *fixture) {
				b := f.b
				f.prog.Root.Add(
					b.Func("helper", nil, nil, b.Body()),
					b.Func("helper", nil, nil, b.Body()),
				)
			},
			want: diag.LowDuplicateDecl,
		},
		{
			name: "entry with parameters",
			build: func(f *fixture) {
				b := f.b
				f.prog.Root.Add(b.Func("Main", []hir.Param{b.P("argc", f.bt.Int)}, nil, b.Body()))
			},
			want: diag.LowBadEntry,
		},
		{
			name: "entry returning bool",
			build: func(f *fixture) {
				b := f.b
				f.prog.Root.Add(b.Func("Main", nil, []types.TypeID{f.bt.Bool}, b.Body(b.Return(b.Bool(true)))))
			},
			want: diag.LowBadEntry,
		},
		{
			name: "constant without value",
			build: func(f *fixture) {
				f.prog.Root.AddConst(f.b.Global("limit", f.bt.Int, nil))
			},
			want: diag.LowBadInitializer,
		},
		{
			name: "unresolved name",
			build: func(f *fixture) {
				b := f.b
				f.prog.Root.Add(b.Func("Main", nil, f.ints(1), b.Body(
					b.Return(b.Ident("missing", f.bt.Int)),
				)))
			},
			want: diag.LowUnresolvedName,
		},
		{
			name: "call with too few arguments",
			build: func(f *fixture) {
				b := f.b
				id := b.Func("id", []hir.Param{b.P("x", f.bt.Int)}, f.ints(1), b.Body(b.Return(b.Ident("x", f.bt.Int))))
				f.prog.Root.Add(id, b.Func("Main", nil, f.ints(1), b.Body(
					b.Return(b.Call(b.Ident("id", id.Type))),
				)))
			},
			want: diag.LowArityMismatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tt.build(f)
			_, err := Lower(context.Background(), f.prog, Options{})
			if err == nil {
				t.Fatalf("expected %s, lowering succeeded", tt.want.ID())
			}
			if got := diag.CodeOf(err); got != tt.want {
				t.Fatalf("code = %s, want %s (%v)", got.ID(), tt.want.ID(), err)
			}
		})
	}
}

func TestLowerHonorsCancellation(t *testing.T) {
	f := newFixture()
	b := f.b
	f.prog.Root.Add(b.Func("Main", nil, nil, b.Body()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Lower(ctx, f.prog, Options{}); err == nil {
		t.Fatalf("lowering ignored a cancelled context")
	}
}

func TestRuntimeGlobalClash(t *testing.T) {
	f := newFixture()
	l := newLowerer(context.Background(), f.prog, Options{Target: layout.X86_64LinuxGNU()})
	l.mod.NewFunc(jmpBufName, ir.FuncType(ir.Void))
	l.mod.NewGlobal(thrownName, ir.I32, nil)
	if _, err := l.jumpBuffer(); diag.CodeOf(err) != diag.LowDuplicateDecl {
		t.Fatalf("jump buffer clash: %v", err)
	}
	if _, err := l.thrownSlot(); diag.CodeOf(err) != diag.LowDuplicateDecl {
		t.Fatalf("thrown slot clash: %v", err)
	}
}
