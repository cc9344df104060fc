package dispatch

import (
	"kestrel/internal/diag"
	"kestrel/internal/ir"
	"kestrel/internal/source"
)

// Lookup returns the runtime routine
//
//	ptr @kestrel.lookup(ptr vtable, i32 id)
//
// generating it on first use. Reserve calls it for the first interface, so
// every module declaring an interface carries the routine. It scans the
// interface array of the vtable and returns the matching per-interface
// vtable, or null when the vtable is null or does not carry the interface.
func (b *Builder) Lookup() (*ir.Func, error) {
	if b.lookup != nil {
		return b.lookup, nil
	}
	if b.mod.Func(LookupName) != nil || b.mod.Global(LookupName) != nil {
		return nil, diag.Errorf(diag.LowDuplicateDecl, source.Span{}, "symbol %s is reserved for interface lookup", LookupName)
	}
	rt := b.resolver.Runtime
	f := b.mod.NewFunc(LookupName, ir.FuncType(ir.Ptr, ir.Ptr, ir.I32), "vtable", "id")
	f.Private = true
	vt, id := f.Params[0], f.Params[1]

	entry := f.Entry()
	scan := f.NewBlock("scan")
	cond := f.NewBlock("cond")
	body := f.NewBlock("body")
	found := f.NewBlock("found")
	next := f.NewBlock("next")
	missing := f.NewBlock("missing")

	counter := f.Alloca(ir.I32, "i")
	entry.CondBr(entry.ICmp(ir.EQ, vt, ir.Null()), missing, scan)

	count := scan.Load(ir.I32, scan.FieldPtr(rt.VTable, vt, 0))
	ifaces := scan.Load(ir.Ptr, scan.FieldPtr(rt.VTable, vt, 1))
	scan.Store(ir.Int(ir.I32, 0), counter)
	scan.Br(cond)

	i := cond.Load(ir.I32, counter)
	cond.CondBr(cond.ICmp(ir.SLT, i, count), body, missing)

	ivt := body.ElemPtr(rt.IVTable, ifaces, i)
	ivtID := body.Load(ir.I32, body.FieldPtr(rt.IVTable, ivt, 0))
	body.CondBr(body.ICmp(ir.EQ, ivtID, id), found, next)

	found.Ret(ivt)

	next.Store(next.BinaryNSW(ir.Add, i, ir.Int(ir.I32, 1)), counter)
	next.Br(cond)

	missing.Ret(ir.Null())

	b.lookup = f
	return f, nil
}

// SlotFunc emits the load of slot index from the per-interface vtable ivt
// returned by Lookup.
func (b *Builder) SlotFunc(blk *ir.Block, ivt ir.Value, index int) ir.Value {
	slots := blk.Load(ir.Ptr, blk.FieldPtr(b.resolver.Runtime.IVTable, ivt, 1))
	return blk.Load(ir.Ptr, blk.ElemPtr(ir.Ptr, slots, ir.Int(ir.I32, int64(index))))
}
