package lower

import (
	"kestrel/internal/diag"
	"kestrel/internal/hir"
	"kestrel/internal/ir"
	"kestrel/internal/types"
)

func (l *lowerer) mallocFn() (*ir.Func, error) {
	return l.runtimeFunc(l.opts.Runtime.Alloc, ir.FuncType(ir.Ptr, ir.I64))
}

func (l *lowerer) freeFn() (*ir.Func, error) {
	return l.runtimeFunc(l.opts.Runtime.Free, ir.FuncType(ir.Void, ir.Ptr))
}

// alloc lowers `new T` to a zeroed heap object and `new T[n]` to a dynamic
// array of n zeroed elements.
func (fl *funcLowerer) alloc(b *ir.Block, e *hir.Expr) (ir.Value, *ir.Block, error) {
	nw := e.New
	if nw == nil {
		return nil, b, diag.Errorf(diag.LowMalformedTree, e.Span, "new without payload")
	}
	malloc, err := fl.l.mallocFn()
	if err != nil {
		return nil, b, atSpan(err, e.Span)
	}
	vt, err := fl.valueType(nw.Elem, e.Span)
	if err != nil {
		return nil, b, err
	}
	if nw.Count == nil {
		size, err := fl.l.res.SizeOf(nw.Elem)
		if err != nil {
			return nil, b, atSpan(err, e.Span)
		}
		p := b.Call(malloc, malloc.Sig, ir.Int(ir.I64, int64(max(size, 1))))
		b.Store(ir.Zero(vt), p)
		return p, b, nil
	}

	stride, err := fl.l.engine.Stride(vt)
	if err != nil {
		return nil, b, diag.Errorf(diag.LowRecursiveLayout, e.Span, "%s: %v", types.Label(fl.types(), nw.Elem), err)
	}
	n, b, err := fl.valueAs(b, nw.Count, fl.types().Builtins().Int)
	if err != nil {
		return nil, b, err
	}
	bytes := b.Binary(ir.Mul, resize(b, n, ir.I64, true), ir.Int(ir.I64, int64(max(stride, 1))))
	p := b.Call(malloc, malloc.Sig, bytes)

	i := fl.fn.Alloca(n.Type(), "i")
	b.Store(ir.Int(n.Type(), 0), i)
	cond := fl.fn.NewBlock("zero.cond")
	body := fl.fn.NewBlock("zero.body")
	done := fl.fn.NewBlock("zero.end")
	b.Br(cond)
	cur := cond.Load(n.Type(), i)
	cond.CondBr(cond.ICmp(ir.SLT, cur, n), body, done)
	body.Store(ir.Zero(vt), body.ElemPtr(vt, p, cur))
	body.Store(body.BinaryNSW(ir.Add, cur, ir.Int(n.Type(), 1)), i)
	body.Br(cond)
	return fl.dynArray(done, n, p), done, nil
}

// delete frees the storage an lvalue refers to and nulls the lvalue.
func (fl *funcLowerer) delete(b *ir.Block, s *hir.Stmt) (*ir.Block, error) {
	if s.Expr == nil {
		return nil, diag.Errorf(diag.LowMalformedTree, s.Span, "delete without operand")
	}
	free, err := fl.l.freeFn()
	if err != nil {
		return nil, atSpan(err, s.Span)
	}
	p, b, err := fl.location(b, s.Expr)
	if err != nil {
		return nil, err
	}
	in := fl.types()
	v, err := fl.load(b, p)
	if err != nil {
		return nil, err
	}
	var ptr ir.Value
	switch in.KindOf(p.typ) {
	case types.KindPointer:
		ptr = v
	case types.KindInterface:
		ptr = b.ExtractValue(v, 0)
	case types.KindArray:
		if in.IsDynamicArray(p.typ) {
			ptr = b.ExtractValue(v, 1)
		}
	}
	if ptr == nil {
		return nil, diag.Errorf(diag.LowBadOperator, s.Span, "cannot delete %s", types.Label(in, p.typ))
	}
	b.Call(free, free.Sig, ptr)
	return b, fl.store(b, p, ir.Zero(v.Type()))
}
