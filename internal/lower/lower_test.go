package lower

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"kestrel/internal/backend/llvm"
	"kestrel/internal/hir"
	"kestrel/internal/ir"
	"kestrel/internal/layout"
	"kestrel/internal/types"
	"kestrel/internal/vm"
)

type fixture struct {
	in   *types.Interner
	b    *hir.Builder
	bt   types.Builtins
	prog *hir.Program
}

func newFixture() *fixture {
	in := types.NewInterner()
	prog := hir.NewProgram(in)
	prog.Files.Add("test.k")
	return &fixture{in: in, b: hir.NewBuilder(in), bt: in.Builtins(), prog: prog}
}

func (f *fixture) ints(n int) []types.TypeID {
	out := make([]types.TypeID, n)
	for i := range out {
		out[i] = f.bt.Int
	}
	return out
}

func (f *fixture) lower(t *testing.T) *Result {
	t.Helper()
	res, err := Lower(context.Background(), f.prog, Options{})
	if err != nil {
		t.Fatalf("lower: %v", err)
	}
	return res
}

// dump renders mod for failure messages.
func dump(mod *ir.Module) string {
	text, err := llvm.EmitModule(mod)
	if err != nil {
		return err.Error()
	}
	return text
}

// run lowers the program and executes main, returning its exit code and
// what it printed.
func (f *fixture) run(t *testing.T) (int64, string) {
	t.Helper()
	res := f.lower(t)
	if res.Main == nil {
		t.Fatalf("no main generated")
	}
	var out bytes.Buffer
	code, err := vm.New(res.Module, layout.X86_64LinuxGNU(), &out).Run(MainName)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, dump(res.Module))
	}
	return code, out.String()
}

func TestLoopsBreakAndContinue(t *testing.T) {
	f := newFixture()
	b, bt := f.b, f.bt
	sum := b.Ident("sum", bt.Int)
	i := b.Ident("i", bt.Int)
	f.prog.Root.Add(b.Func("Main", nil, f.ints(1), b.Body(
		b.Let("sum", bt.Int, b.Int(0)),
		b.For(b.Let("i", bt.Int, b.Int(0)), b.Binary(hir.OpLt, i, b.Int(10)), b.Do(b.Inc(i, false)), b.Body(
			b.If(b.Binary(hir.OpEq, i, b.Int(5)), b.Body(b.Continue()), nil),
			b.If(b.Binary(hir.OpEq, i, b.Int(8)), b.Body(b.Break()), nil),
			b.SetOp(hir.AddAssign, sum, i),
		)),
		b.Let("n", bt.Int, b.Int(3)),
		b.While(b.Binary(hir.OpGt, b.Ident("n", bt.Int), b.Int(0)), b.Body(
			b.SetOp(hir.AddAssign, sum, b.Int(100)),
			b.Do(b.Dec(b.Ident("n", bt.Int), true)),
		)),
		b.DoWhile(b.Body(
			b.SetOp(hir.SubAssign, sum, b.Int(1)),
		), b.Bool(false)),
		b.Return(sum),
	)))

	code, _ := f.run(t)
	// 0+1+2+3+4+6+7 = 23, three rounds of 100, one decrement.
	if code != 322 {
		t.Fatalf("exit code = %d, want 322", code)
	}
}

func TestMultiReturnUsesOutParams(t *testing.T) {
	f := newFixture()
	b, bt := f.b, f.bt
	x, y := b.Ident("x", bt.Int), b.Ident("y", bt.Int)
	divmod := b.Func("divmod", []hir.Param{b.P("x", bt.Int), b.P("y", bt.Int)}, []types.TypeID{bt.Int, bt.Bool}, b.Body(
		b.Return(b.Binary(hir.OpDiv, x, y), b.Binary(hir.OpEq, b.Binary(hir.OpRem, x, y), b.Int(0))),
	))
	call := b.Call(b.Ident("divmod", divmod.Type), b.Int(12), b.Int(4))
	f.prog.Root.Add(divmod, b.Func("Main", nil, f.ints(1), b.Body(
		b.Vars([]string{"q", "ok"}, []types.TypeID{bt.Int, bt.Bool}, call),
		b.If(b.Ident("ok", bt.Bool), b.Body(b.Return(b.Ident("q", bt.Int))), nil),
		b.Return(b.Int(-1)),
	)))

	res := f.lower(t)
	fn := res.Module.Func("divmod")
	if fn == nil || !fn.Sig.Ret.IsVoid() || len(fn.Params) != 4 {
		t.Fatalf("divmod lowered as %v", fn)
	}
	if fn.Params[0].Type() != ir.Ptr || fn.Params[1].Type() != ir.Ptr {
		t.Fatalf("divmod outputs are not pointers: %s", fn.Sig)
	}

	var direct bool
	for _, blk := range res.Entry.Blocks {
		for _, in := range blk.Instrs {
			if in.Op != ir.OpCall || in.Operands[0] != ir.Value(fn) {
				continue
			}
			q, ok1 := in.Operands[1].(*ir.Instr)
			okSlot, ok2 := in.Operands[2].(*ir.Instr)
			direct = ok1 && ok2 && q.Op == ir.OpAlloca && okSlot.Op == ir.OpAlloca &&
				strings.HasPrefix(q.Name, "q.") && strings.HasPrefix(okSlot.Name, "ok.")
		}
	}
	if !direct {
		t.Fatalf("declared locals are not passed as outputs:\n%s", dump(res.Module))
	}

	var out bytes.Buffer
	code, err := vm.New(res.Module, layout.X86_64LinuxGNU(), &out).Run(MainName)
	if err != nil || code != 3 {
		t.Fatalf("main() = %d, %v", code, err)
	}
}

func TestMultiAssignSwapsThroughTemps(t *testing.T) {
	f := newFixture()
	b, bt := f.b, f.bt
	x, y := b.Ident("x", bt.Int), b.Ident("y", bt.Int)
	f.prog.Root.Add(b.Func("Main", nil, f.ints(1), b.Body(
		b.Let("x", bt.Int, b.Int(1)),
		b.Let("y", bt.Int, b.Int(2)),
		b.SetMulti([]*hir.Expr{x, y}, y, x),
		b.Return(b.Binary(hir.OpSub, b.Binary(hir.OpMul, x, b.Int(10)), y)),
	)))
	if code, _ := f.run(t); code != 19 {
		t.Fatalf("exit code = %d, want 19", code)
	}
}

// pairProgram declares Comparable and Pair implementing it.
func pairProgram(f *fixture) (cmp *hir.InterfaceDecl, pair *hir.TypeDecl, compare types.TypeID) {
	b, bt := f.b, f.bt
	cmp = b.Interface("Comparable", "Comparable")
	pair = b.Struct("Pair", "Pair", cmp.Type)
	compare = f.in.RegisterFn([]types.TypeID{pair.Type}, bt.Int)
	cmp.Method("Compare", compare)
	pair.Field("x", bt.Int).Field("y", bt.Int)
	pair.Method(b.Func("Compare", []hir.Param{b.P("other", pair.Type)}, f.ints(1), b.Body(
		b.Return(b.Binary(hir.OpSub,
			b.Member(b.This(pair.Type), "x", bt.Int),
			b.Member(b.Ident("other", pair.Type), "x", bt.Int))),
	)))
	return cmp, pair, compare
}

func TestInterfaceDispatch(t *testing.T) {
	f := newFixture()
	b, bt := f.b, f.bt
	cmp, pair, compare := pairProgram(f)
	ptr := f.in.Pointer(pair.Type)
	p, q, c := b.Ident("p", ptr), b.Ident("q", ptr), b.Ident("c", cmp.Type)
	f.prog.Root.Add(cmp, pair, b.Func("Main", nil, f.ints(1), b.Body(
		b.Let("p", ptr, b.New(pair.Type)),
		b.Let("q", ptr, b.New(pair.Type)),
		b.Set(b.Member(p, "x", bt.Int), b.Int(7)),
		b.Set(b.Member(q, "x", bt.Int), b.Int(3)),
		b.Let("c", cmp.Type, p),
		b.If(b.Unary(hir.OpNot, b.Is(c, cmp.Type)), b.Body(b.Return(b.Int(-1))), nil),
		b.If(b.Unary(hir.OpNot, b.Is(c, pair.Type)), b.Body(b.Return(b.Int(-2))), nil),
		b.If(b.Binary(hir.OpNe, c, p), b.Body(b.Return(b.Int(-3))), nil),
		b.Return(b.Call(b.Member(c, "Compare", compare), b.Unary(hir.OpDeref, q))),
	)))

	res := f.lower(t)
	slots := res.Module.Global("Pair.vtable.Comparable")
	if slots == nil || slots.Init == nil || len(slots.Init.Elems) != 1 {
		t.Fatalf("Pair has no Comparable slots:\n%s", dump(res.Module))
	}
	if slots.Init.Elems[0] != ir.Value(res.Module.Func("Pair.Compare")) {
		t.Fatalf("slot 0 = %s, want @Pair.Compare", slots.Init.Elems[0].Ident())
	}

	var out bytes.Buffer
	code, err := vm.New(res.Module, layout.X86_64LinuxGNU(), &out).Run(MainName)
	if err != nil || code != 4 {
		t.Fatalf("main() = %d, %v", code, err)
	}
}

func TestNewThenDeleteLeavesNull(t *testing.T) {
	f := newFixture()
	b, bt := f.b, f.bt
	ptr := f.in.Pointer(bt.Int)
	p := b.Ident("p", ptr)
	arr := b.Ident("a", f.in.DynArray(bt.Int))
	f.prog.Root.Add(b.Func("Main", nil, f.ints(1), b.Body(
		b.Let("p", ptr, b.New(bt.Int)),
		b.If(b.Binary(hir.OpNe, b.Unary(hir.OpDeref, p), b.Int(0)), b.Body(b.Return(b.Int(-1))), nil),
		b.Set(b.Unary(hir.OpDeref, p), b.Int(5)),
		b.Delete(p),
		b.Let("a", types.NoTypeID, b.NewArray(bt.Int, b.Int(4))),
		b.Set(b.Index(arr, b.Int(3)), b.Int(9)),
		b.Let("n", bt.Int, b.Binary(hir.OpAdd, b.Size(arr), b.Index(arr, b.Int(3)))),
		b.Delete(arr),
		b.If(b.Binary(hir.OpEq, p, b.Null()), b.Body(b.Return(b.Ident("n", bt.Int))), nil),
		b.Return(b.Int(0)),
	)))

	res := f.lower(t)
	var out bytes.Buffer
	m := vm.New(res.Module, layout.X86_64LinuxGNU(), &out)
	code, err := m.Run(MainName)
	if err != nil || code != 13 {
		t.Fatalf("main() = %d, %v", code, err)
	}
	if n := m.LiveAllocations(); n != 0 {
		t.Fatalf("%d allocations leaked", n)
	}
}

func TestTryCatchesThrownValue(t *testing.T) {
	f := newFixture()
	b, bt := f.b, f.bt
	e := b.Ident("e", bt.Int)
	fail := b.Func("fail", []hir.Param{b.P("v", bt.Int)}, nil, b.Body(
		b.Throw(b.Ident("v", bt.Int)),
	))
	f.prog.Root.Add(fail, b.Func("Main", nil, f.ints(1), b.Body(
		b.Let("total", bt.Int, b.Int(0)),
		b.Try(b.Body(
			b.Throw(b.Int(5)),
		), "e", bt.Int, b.Body(
			b.SetOp(hir.AddAssign, b.Ident("total", bt.Int), e),
		)),
		b.Try(b.Body(
			b.Do(b.Call(b.Ident("fail", fail.Type), b.Int(30))),
			b.Return(b.Int(-1)),
		), "e", bt.Int, b.Body(
			b.SetOp(hir.AddAssign, b.Ident("total", bt.Int), e),
		)),
		b.Return(b.Ident("total", bt.Int)),
	)))
	if code, _ := f.run(t); code != 35 {
		t.Fatalf("exit code = %d, want 35", code)
	}
}

func TestThrowFromCatchPropagates(t *testing.T) {
	f := newFixture()
	b, bt := f.b, f.bt
	f.prog.Root.Add(b.Func("Main", nil, f.ints(1), b.Body(
		b.Try(b.Body(
			b.Try(b.Body(
				b.Throw(b.Int(1)),
			), "e", bt.Int, b.Body(
				b.Throw(b.Binary(hir.OpAdd, b.Ident("e", bt.Int), b.Int(1))),
			)),
			b.Return(b.Int(-1)),
		), "e", bt.Int, b.Body(
			b.Return(b.Ident("e", bt.Int)),
		)),
	)))
	if code, _ := f.run(t); code != 2 {
		t.Fatalf("exit code = %d, want 2", code)
	}
}

func TestHandlerRestoredAfterTry(t *testing.T) {
	f := newFixture()
	b, bt := f.b, f.bt
	f.prog.Root.Add(b.Func("Main", nil, f.ints(1), b.Body(
		b.Try(b.Body(), "", bt.Int, b.Body(b.Return(b.Int(-1)))),
		b.Throw(b.Int(3)),
	)))
	if code, _ := f.run(t); code != UncaughtExitCode {
		t.Fatalf("exit code = %d, want %d", code, UncaughtExitCode)
	}
}

func TestGlobalsStringsAndExterns(t *testing.T) {
	f := newFixture()
	b, bt := f.b, f.bt
	str := f.in.DynArray(bt.Char)
	msg, i := b.Ident("msg", str), b.Ident("i", bt.Int)
	putchar := b.Extern("putchar", []hir.Param{b.P("c", bt.Int)}, f.ints(1))
	cfg := &hir.Namespace{Name: "cfg"}
	cfg.AddConst(b.Global("base", bt.Int, b.Int(40)))
	cfg.Add(b.Global("total", bt.Int, b.Binary(hir.OpAdd, b.Ident("base", bt.Int), b.Int(2))))
	f.prog.Root.Add(putchar, cfg, b.Global("msg", str, b.Str("hi\n")))
	f.prog.Root.Add(b.Func("Main", nil, f.ints(1), b.Body(
		b.For(b.Let("i", bt.Int, b.Int(0)), b.Binary(hir.OpLt, i, b.Size(msg)), b.Do(b.Inc(i, true)), b.Body(
			b.Do(b.Call(b.Ident("putchar", putchar.Type), b.Index(msg, i))),
		)),
		b.Return(b.Member(b.NS("cfg"), "total", bt.Int)),
	)))

	res := f.lower(t)
	if g := res.Module.Global("cfg.base"); g == nil || !g.Constant || g.Init == nil {
		t.Fatalf("cfg.base lowered as %+v", g)
	}
	if res.Module.Func(InitName) == nil {
		t.Fatalf("no %s for cfg.total", InitName)
	}
	var out bytes.Buffer
	code, err := vm.New(res.Module, layout.X86_64LinuxGNU(), &out).Run(MainName)
	if err != nil || code != 42 {
		t.Fatalf("main() = %d, %v", code, err)
	}
	if out.String() != "hi\n" {
		t.Fatalf("output %q", out.String())
	}
}

func TestLibraryUnitHasNoMain(t *testing.T) {
	f := newFixture()
	b := f.b
	f.prog.Root.Add(b.Func("helper", nil, f.ints(1), b.Body(b.Return(b.Int(1)))))
	res := f.lower(t)
	if res.Entry != nil || res.Main != nil || res.Module.Func(MainName) != nil {
		t.Fatalf("library unit got an entry point")
	}
}
