package lower

import (
	"kestrel/internal/diag"
	"kestrel/internal/hir"
	"kestrel/internal/ir"
	"kestrel/internal/layout"
	"kestrel/internal/source"
	"kestrel/internal/trace"
	"kestrel/internal/types"
)

// body describes one function, method or accessor body to lower.
type body struct {
	fn      *ir.Func
	self    *layout.TypeDef
	params  []hir.Param
	results []types.TypeID
	block   *hir.Block
}

// funcLowerer is the state of one function body. A fresh one is created
// for every body.
type funcLowerer struct {
	l  *lowerer
	fn *ir.Func
	ns *memberTable

	self *layout.TypeDef
	this ir.Value

	results []types.TypeID
	outs    []ir.Value

	scopes []map[string]*local
	loops  []loopTargets
	tries  []tryFrame
}

type local struct {
	name string
	typ  types.TypeID
	slot ir.Value
}

type loopTargets struct {
	brk, cont *ir.Block
	// tries is the number of enclosing try blocks when the loop began.
	tries int
}

func (l *lowerer) newFuncLowerer(fn *ir.Func, self *layout.TypeDef) *funcLowerer {
	return &funcLowerer{l: l, fn: fn, ns: l.current(), self: self}
}

func (l *lowerer) lowerFunc(b body) error {
	if b.fn == nil {
		return diag.Errorf(diag.LowMalformedTree, source.Span{}, "body without a declared function")
	}
	span := source.Span{}
	if b.block != nil {
		span = b.block.Span
	}
	sp := trace.Begin(l.tracer, trace.ScopeNode, "func:"+b.fn.Name, l.spanID)
	defer sp.End("")

	fl := l.newFuncLowerer(b.fn, b.self)
	fl.results = b.results
	params := b.fn.Params
	if b.self != nil {
		if len(params) == 0 {
			return diag.Errorf(diag.LowMalformedTree, span, "@%s has no receiver parameter", b.fn.Name)
		}
		fl.this = params[0]
		params = params[1:]
	}
	if len(b.results) > 1 {
		if len(params) < len(b.results) {
			return diag.Errorf(diag.LowMalformedTree, span, "@%s lacks output parameters", b.fn.Name)
		}
		for _, p := range params[:len(b.results)] {
			fl.outs = append(fl.outs, p)
		}
		params = params[len(b.results):]
	}
	if len(params) != len(b.params) {
		return diag.Errorf(diag.LowMalformedTree, span, "@%s declares %d parameters, body has %d", b.fn.Name, len(params), len(b.params))
	}

	entry := b.fn.Entry()
	fl.push()
	for i, p := range b.params {
		if err := fl.bind(entry, p.Name, p.Type, params[i], p.Span); err != nil {
			return err
		}
	}
	cur, err := fl.block(entry, b.block)
	if err != nil {
		return err
	}
	fl.pop()
	if cur != nil {
		if len(fl.results) == 0 {
			cur.RetVoid()
		} else {
			cur.Unreachable()
		}
	}
	return nil
}

func (fl *funcLowerer) push() {
	fl.scopes = append(fl.scopes, make(map[string]*local))
}

func (fl *funcLowerer) pop() {
	fl.scopes = fl.scopes[:len(fl.scopes)-1]
}

// bind allocates a local initialized with v in the innermost scope.
func (fl *funcLowerer) bind(b *ir.Block, name string, typ types.TypeID, v ir.Value, span source.Span) error {
	slot, err := fl.declare(name, typ, span)
	if err != nil {
		return err
	}
	b.Store(v, slot)
	return nil
}

// declare allocates an uninitialized local in the innermost scope.
func (fl *funcLowerer) declare(name string, typ types.TypeID, span source.Span) (ir.Value, error) {
	slot, err := fl.slot(name, typ, span)
	if err != nil {
		return nil, err
	}
	fl.define(name, typ, slot)
	return slot, nil
}

// slot allocates storage for a local without making it visible.
func (fl *funcLowerer) slot(name string, typ types.TypeID, span source.Span) (*ir.Instr, error) {
	vt, err := fl.valueType(typ, span)
	if err != nil {
		return nil, err
	}
	hint := name
	if hint == "" || hint == "_" {
		hint = "tmp"
	}
	return fl.fn.Alloca(vt, hint), nil
}

// define makes slot visible as name in the innermost scope. The blank
// name is never bound.
func (fl *funcLowerer) define(name string, typ types.TypeID, slot ir.Value) {
	if name == "" || name == "_" {
		return
	}
	fl.scopes[len(fl.scopes)-1][name] = &local{name: name, typ: typ, slot: slot}
}

func (fl *funcLowerer) lookupLocal(name string) (*local, bool) {
	for i := len(fl.scopes) - 1; i >= 0; i-- {
		if loc, ok := fl.scopes[i][name]; ok {
			return loc, true
		}
	}
	return nil, false
}

// temp allocates an anonymous stack slot.
func (fl *funcLowerer) temp(t *ir.Type) *ir.Instr {
	return fl.fn.Alloca(t, "tmp")
}

func (fl *funcLowerer) types() *types.Interner {
	return fl.l.types
}

func (fl *funcLowerer) valueType(id types.TypeID, span source.Span) (*ir.Type, error) {
	t, err := fl.l.res.ValueType(id)
	if err != nil {
		return nil, atSpan(err, span)
	}
	return t, nil
}

// semType is the type of the value an expression produces: the result
// type for property references, the node type otherwise.
func (fl *funcLowerer) semType(e *hir.Expr) types.TypeID {
	if info, ok := fl.types().PropertyInfo(e.Type); ok {
		return info.Result
	}
	return e.Type
}
