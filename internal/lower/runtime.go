package lower

import (
	"fmt"
	"slices"

	"kestrel/internal/diag"
	"kestrel/internal/hir"
	"kestrel/internal/ir"
	"kestrel/internal/source"
)

const (
	// InitName is the function running non-constant global initializers.
	InitName = "kestrel.init"
	// MainName is the C entry point.
	MainName = "main"
	// UncaughtExitCode is returned by main when a throw reaches it.
	UncaughtExitCode = 70
)

// runtimeFunc declares the C function name with signature sig, or reuses
// an existing declaration with the same signature.
func (l *lowerer) runtimeFunc(name string, sig *ir.Type, attrs ...string) (*ir.Func, error) {
	if f, ok := l.runtime[name]; ok {
		return f, nil
	}
	f := l.mod.Func(name)
	switch {
	case f != nil && !f.Sig.Equal(sig):
		return nil, diag.Errorf(diag.LowDuplicateDecl, source.Span{}, "runtime function %s is declared as %s, needs %s", name, f.Sig, sig)
	case f == nil && l.mod.Global(name) != nil:
		return nil, diag.Errorf(diag.LowDuplicateDecl, source.Span{}, "runtime function %s collides with a global", name)
	case f == nil:
		f = l.mod.NewFunc(name, sig)
	}
	for _, a := range attrs {
		if !slices.Contains(f.Attrs, a) {
			f.Attrs = append(f.Attrs, a)
		}
	}
	l.runtime[name] = f
	return f, nil
}

// stringConst returns the char[] value of s backed by a private
// NUL-terminated global. Equal literals share one global.
func (l *lowerer) stringConst(s string) *ir.Const {
	g, ok := l.strings[s]
	if !ok {
		data := append([]byte(s), 0)
		g = l.mod.NewGlobal(fmt.Sprintf("kestrel.str.%d", len(l.strings)), ir.ArrayOf(ir.I8, len(data)), ir.Bytes(data))
		g.Constant, g.Private = true, true
		l.strings[s] = g
	}
	return ir.Aggregate(l.res.DynArray(), ir.Int(ir.I32, int64(len(s))), g)
}

// lowerInit appends the initialization of global g to the init function,
// creating it on first use. Initializers run in declaration order.
func (l *lowerer) lowerInit(d *hir.VarDecl, g *ir.Global) error {
	if l.initFn == nil {
		fn, err := l.newFunc(InitName, ir.FuncType(ir.Void), d.Span)
		if err != nil {
			return err
		}
		fn.Private = true
		l.initFn = l.newFuncLowerer(fn, nil)
		l.initFn.push()
		l.initEnd = fn.Entry()
	}
	fl := l.initFn
	fl.ns = l.current()
	v, b, err := fl.valueAs(l.initEnd, d.Value, d.Type)
	if err != nil {
		return err
	}
	b.Store(v, g)
	l.initEnd = b
	return nil
}

func (l *lowerer) finishInit() {
	if l.initFn != nil {
		l.initEnd.RetVoid()
	}
}

// emitMain generates the C entry point: it installs the outermost
// handler, runs the initializers, then calls the entry function and
// returns its result.
func (l *lowerer) emitMain() error {
	if l.entry == nil {
		return nil
	}
	if l.mod.Func(MainName) != nil || l.mod.Global(MainName) != nil {
		return diag.Errorf(diag.LowBadEntry, source.Span{}, "symbol %s is reserved for the program entry", MainName)
	}
	sj, err := l.setjmp()
	if err != nil {
		return err
	}
	jb, err := l.jumpBuffer()
	if err != nil {
		return err
	}
	main := l.mod.NewFunc(MainName, ir.FuncType(ir.I32))
	b := main.Entry()
	r := b.Call(sj, sj.Sig, jb)
	run := main.NewBlock("run")
	uncaught := main.NewBlock("uncaught")
	b.CondBr(b.ICmp(ir.NE, r, ir.Int(ir.I32, 0)), uncaught, run)
	uncaught.Ret(ir.Int(ir.I32, UncaughtExitCode))

	if l.initFn != nil {
		run.Call(l.initFn.fn, l.initFn.fn.Sig)
	}
	ret := run.Call(l.entry, l.entry.Sig)
	if l.entry.Sig.Ret.IsVoid() {
		run.Ret(ir.Int(ir.I32, 0))
	} else {
		run.Ret(resize(run, ret, ir.I32, true))
	}
	l.main = main
	return nil
}
