package lower

import (
	"kestrel/internal/diag"
	"kestrel/internal/hir"
	"kestrel/internal/ir"
	"kestrel/internal/source"
	"kestrel/internal/types"
)

const (
	jmpBufName = "kestrel.jmpbuf"
	thrownName = "kestrel.thrown"

	// MaxThrowSize is the largest thrown value in bytes.
	MaxThrowSize = 16
)

// tryFrame is an active try block of the current function.
type tryFrame struct {
	// save holds the jump buffer that was current when the try began.
	save *ir.Instr
}

// jumpBuffer returns the global holding the innermost handler.
func (l *lowerer) jumpBuffer() (*ir.Global, error) {
	if l.jmpbuf == nil {
		t := l.opts.Target
		g, err := l.runtimeGlobal(jmpBufName, ir.ArrayOf(ir.I8, t.JmpBufSize))
		if err != nil {
			return nil, err
		}
		g.Align = t.JmpBufAlign
		l.jmpbuf = g
	}
	return l.jmpbuf, nil
}

// thrownSlot returns the global the thrown value travels through.
func (l *lowerer) thrownSlot() (*ir.Global, error) {
	if l.thrown == nil {
		g, err := l.runtimeGlobal(thrownName, l.res.Runtime.Iface)
		if err != nil {
			return nil, err
		}
		g.Align = 8
		l.thrown = g
	}
	return l.thrown, nil
}

func (l *lowerer) runtimeGlobal(name string, content *ir.Type) (*ir.Global, error) {
	if l.mod.Func(name) != nil || l.mod.Global(name) != nil {
		return nil, diag.Errorf(diag.LowDuplicateDecl, source.Span{}, "symbol %s is reserved for exception handling", name)
	}
	return l.mod.NewGlobal(name, content, nil), nil
}

func (l *lowerer) setjmp() (*ir.Func, error) {
	return l.runtimeFunc(l.opts.Runtime.SetJmp, ir.FuncType(ir.I32, ir.Ptr), "returns_twice")
}

func (l *lowerer) longjmp() (*ir.Func, error) {
	return l.runtimeFunc(l.opts.Runtime.LongJmp, ir.FuncType(ir.Void, ir.Ptr, ir.I32), "noreturn")
}

// restoreTries reinstates the handler that was current before the try at
// depth, for control leaving every try from depth outwards.
func (fl *funcLowerer) restoreTries(b *ir.Block, depth int) {
	if depth >= len(fl.tries) {
		return
	}
	fl.restoreHandler(b, fl.tries[depth].save)
}

// restoreHandler runs only inside a try, after jumpBuffer succeeded.
func (fl *funcLowerer) restoreHandler(b *ir.Block, save *ir.Instr) {
	jb := fl.l.jmpbuf
	b.Store(b.Load(jb.Content, save), jb)
}

// try saves the current handler, installs a new one with setjmp and runs
// the body. A throw lands in the catch block with the saved handler back
// in place, so a throw from the catch body propagates outwards.
func (fl *funcLowerer) try(b *ir.Block, s *hir.Stmt) (*ir.Block, error) {
	st := s.Try
	if st == nil {
		return nil, diag.Errorf(diag.LowMalformedTree, s.Span, "try without payload")
	}
	sj, err := fl.l.setjmp()
	if err != nil {
		return nil, atSpan(err, s.Span)
	}
	jb, err := fl.l.jumpBuffer()
	if err != nil {
		return nil, atSpan(err, s.Span)
	}
	save := fl.fn.Alloca(jb.Content, "jb.save")
	b.Store(b.Load(jb.Content, jb), save)
	r := b.Call(sj, sj.Sig, jb)
	body := fl.fn.NewBlock("try")
	catch := fl.fn.NewBlock("catch")
	b.CondBr(b.ICmp(ir.NE, r, ir.Int(ir.I32, 0)), catch, body)

	fl.tries = append(fl.tries, tryFrame{save: save})
	bodyEnd, err := fl.block(body, st.Body)
	fl.tries = fl.tries[:len(fl.tries)-1]
	if err != nil {
		return nil, err
	}
	if bodyEnd != nil {
		fl.restoreHandler(bodyEnd, save)
	}

	fl.restoreHandler(catch, save)
	fl.push()
	if st.CatchName != "" {
		if err := fl.checkThrowSize(st.CatchType, s); err != nil {
			fl.pop()
			return nil, err
		}
		vt, err := fl.valueType(st.CatchType, s.Span)
		if err != nil {
			fl.pop()
			return nil, err
		}
		slot, err := fl.l.thrownSlot()
		if err != nil {
			fl.pop()
			return nil, atSpan(err, s.Span)
		}
		v := catch.Load(vt, slot)
		if err := fl.bind(catch, st.CatchName, st.CatchType, v, s.Span); err != nil {
			fl.pop()
			return nil, err
		}
	}
	catchEnd, err := fl.block(catch, st.Catch)
	fl.pop()
	if err != nil {
		return nil, err
	}

	if bodyEnd == nil && catchEnd == nil {
		return nil, nil
	}
	merge := fl.fn.NewBlock("endtry")
	if bodyEnd != nil {
		bodyEnd.Br(merge)
	}
	if catchEnd != nil {
		catchEnd.Br(merge)
	}
	return merge, nil
}

// throw stores the value in the thrown slot and jumps to the innermost
// handler.
func (fl *funcLowerer) throw(b *ir.Block, s *hir.Stmt) (*ir.Block, error) {
	if s.Expr == nil {
		return nil, diag.Errorf(diag.LowMalformedTree, s.Span, "throw without a value")
	}
	if err := fl.checkThrowSize(fl.semType(s.Expr), s); err != nil {
		return nil, err
	}
	lj, err := fl.l.longjmp()
	if err != nil {
		return nil, atSpan(err, s.Span)
	}
	v, b, err := fl.value(b, s.Expr)
	if err != nil {
		return nil, err
	}
	slot, err := fl.l.thrownSlot()
	if err != nil {
		return nil, atSpan(err, s.Span)
	}
	jb, err := fl.l.jumpBuffer()
	if err != nil {
		return nil, atSpan(err, s.Span)
	}
	b.Store(ir.Zero(slot.Content), slot)
	b.Store(v, slot)
	b.Call(lj, lj.Sig, jb, ir.Int(ir.I32, 1))
	b.Unreachable()
	return nil, nil
}

func (fl *funcLowerer) checkThrowSize(t types.TypeID, s *hir.Stmt) error {
	size, err := fl.l.res.SizeOf(t)
	if err != nil {
		return atSpan(err, s.Span)
	}
	if size > MaxThrowSize {
		return diag.Errorf(diag.LowThrowTooLarge, s.Span, "%s is %d bytes, at most %d can be thrown", types.Label(fl.types(), t), size, MaxThrowSize)
	}
	return nil
}
