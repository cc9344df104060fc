package lower

import (
	"strconv"

	"kestrel/internal/diag"
	"kestrel/internal/hir"
	"kestrel/internal/ir"
	"kestrel/internal/layout"
	"kestrel/internal/source"
	"kestrel/internal/types"
)

// declareShells creates the member-table entry of every declaration, the
// opaque struct of every type and the id of every interface.
func (l *lowerer) declareShells(m hir.Member) error {
	node := l.current()
	if m.Name() == "" {
		return diag.Errorf(diag.LowMalformedTree, source.Span{}, "%s member in %s without name or payload", m.Kind, node.label())
	}
	if node == l.root && m.Name() == reservedNamespace {
		return diag.Errorf(diag.LowDuplicateDecl, m.Span(), "%s name %s is reserved", m.Kind, m.Name())
	}
	switch m.Kind {
	case hir.MemberType:
		d := m.Type
		def, err := l.res.Define(d.Type, d.Span)
		if err != nil {
			return err
		}
		if reservedSymbol(def.Name) {
			return diag.Errorf(diag.LowDuplicateDecl, d.Span, "type name %s is reserved", def.Name)
		}
		if err := node.declare(&entry{kind: entryType, name: d.Name, span: d.Span, typ: d.Type, def: def}); err != nil {
			return err
		}
		if _, err := l.disp.DeclareVTable(def); err != nil {
			return err
		}
		l.typeDecls = append(l.typeDecls, typeDecl{decl: d, def: def, node: node})
		return nil
	case hir.MemberInterface:
		d := m.Interface
		table, err := l.disp.Reserve(d)
		if err != nil {
			return err
		}
		return node.declare(&entry{kind: entryInterface, name: d.Name, span: d.Span, typ: d.Type, table: table})
	case hir.MemberFunc:
		return node.declare(&entry{kind: entryFunc, name: m.Func.Name, span: m.Func.Span, typ: m.Func.Type})
	case hir.MemberProperty:
		return node.declare(&entry{kind: entryProperty, name: m.Property.Name, span: m.Property.Span, typ: m.Property.Type})
	case hir.MemberVar:
		return node.declare(&entry{kind: entryVar, name: m.Var.Name, span: m.Var.Span, typ: m.Var.Type})
	case hir.MemberConst:
		return node.declare(&entry{kind: entryConst, name: m.Var.Name, span: m.Var.Span, typ: m.Var.Type})
	default:
		return diag.Errorf(diag.LowMalformedTree, source.Span{}, "unknown member kind %d in %s", m.Kind, node.label())
	}
}

// declareSignatures fills slot tables, struct bodies and every function,
// accessor and global declaration, then builds the vtables once every
// interface is known.
func (l *lowerer) declareSignatures() error {
	if err := l.walk(l.prog.Root, l.root, l.declareSignature); err != nil {
		return err
	}
	for _, td := range l.typeDecls {
		if _, err := l.engine.SizeOf(td.def.Struct); err != nil {
			return diag.Errorf(diag.LowRecursiveLayout, td.decl.Span, "type %s: %v", td.def.Name, err)
		}
		if err := l.disp.BuildVTables(td.def, td.decl); err != nil {
			return err
		}
		td.def.Freeze()
	}
	return l.findEntry()
}

func (l *lowerer) declareSignature(m hir.Member) error {
	node := l.current()
	e, ok := node.lookup(m.Name())
	if !ok {
		return diag.Errorf(diag.LowMalformedTree, source.Span{}, "%s %s was not declared in %s", m.Kind, m.Name(), node.label())
	}
	switch m.Kind {
	case hir.MemberInterface:
		_, err := l.disp.DeclareInterface(m.Interface)
		return err
	case hir.MemberType:
		return l.declareType(e.def, m.Type)
	case hir.MemberFunc:
		return l.declareFunc(node, e, m.Func)
	case hir.MemberProperty:
		get, set, err := l.declareAccessors(node.qualify(m.Property.Name), m.Property, false)
		if err != nil {
			return err
		}
		e.get, e.set = get, set
		return nil
	case hir.MemberVar, hir.MemberConst:
		return l.declareGlobal(node, e, m.Var, m.Kind == hir.MemberConst)
	default:
		return diag.Errorf(diag.LowMalformedTree, source.Span{}, "unknown member kind %d", m.Kind)
	}
}

func (l *lowerer) declareType(def *layout.TypeDef, d *hir.TypeDecl) error {
	names := make([]string, len(d.Fields))
	fieldTypes := make([]types.TypeID, len(d.Fields))
	for i, f := range d.Fields {
		names[i] = f.Name
		fieldTypes[i] = f.Type
	}
	if err := l.res.SetFields(def, names, fieldTypes, d.Span); err != nil {
		return atSpan(err, d.Span)
	}
	for _, fn := range d.Funcs {
		if fn.Name == "vtable" {
			return diag.Errorf(diag.LowDuplicateDecl, fn.Span, "method name %s.vtable is reserved", def.Name)
		}
		if fn.Extern || fn.Body == nil {
			return diag.Errorf(diag.LowMalformedTree, fn.Span, "method %s.%s has no body", def.Name, fn.Name)
		}
		sig, err := l.res.Signature(fn.Type, true)
		if err != nil {
			return atSpan(err, fn.Span)
		}
		f, err := l.newFunc(def.Name+"."+fn.Name, sig, fn.Span, l.paramNames(fn.Type, fn.Params, true)...)
		if err != nil {
			return err
		}
		if err := def.AddMember(fn.Name, f); err != nil {
			return diag.Errorf(diag.LowDuplicateDecl, fn.Span, "%s: %v", def.Name, err)
		}
	}
	for _, p := range d.Properties {
		if _, clash := def.Field(p.Name); clash {
			return diag.Errorf(diag.LowDuplicateDecl, p.Span, "property %s.%s collides with a field", def.Name, p.Name)
		}
		if _, clash := def.Member(p.Name); clash {
			return diag.Errorf(diag.LowDuplicateDecl, p.Span, "property %s.%s collides with a method", def.Name, p.Name)
		}
		if _, dup := def.Props[p.Name]; dup {
			return diag.Errorf(diag.LowDuplicateDecl, p.Span, "property %s.%s declared twice", def.Name, p.Name)
		}
		get, set, err := l.declareAccessors(def.Name+"."+p.Name, p, true)
		if err != nil {
			return err
		}
		def.Props[p.Name] = p.Type
		for _, acc := range []struct {
			fn  *ir.Func
			set bool
		}{{get, false}, {set, true}} {
			if acc.fn == nil {
				continue
			}
			if err := def.AddMember(layout.AccessorName(p.Name, acc.set), acc.fn); err != nil {
				return diag.Errorf(diag.LowDuplicateDecl, p.Span, "%s: %v", def.Name, err)
			}
		}
	}
	return nil
}

func (l *lowerer) declareFunc(node *memberTable, e *entry, fn *hir.FuncDecl) error {
	if !fn.Extern && fn.Body == nil {
		return diag.Errorf(diag.LowMalformedTree, fn.Span, "function %s has no body", fn.Name)
	}
	sig, err := l.res.Signature(fn.Type, false)
	if err != nil {
		return atSpan(err, fn.Span)
	}
	name := node.qualify(fn.Name)
	if fn.Extern {
		if reservedSymbol(fn.Name) {
			return diag.Errorf(diag.LowDuplicateDecl, fn.Span, "extern name %s is reserved", fn.Name)
		}
		name = fn.Name
	}
	f, err := l.newFunc(name, sig, fn.Span, l.paramNames(fn.Type, fn.Params, false)...)
	if err != nil {
		return err
	}
	e.fn = f
	return nil
}

// paramNames lists IR parameter names: receiver, output pointers, then the
// declared parameters.
func (l *lowerer) paramNames(fnType types.TypeID, params []hir.Param, receiver bool) []string {
	var names []string
	if receiver {
		names = append(names, "this")
	}
	if results := l.types.Results(fnType); len(results) > 1 {
		for i := range results {
			names = append(names, "out"+strconv.Itoa(i))
		}
	}
	for _, p := range params {
		names = append(names, p.Name)
	}
	return names
}

// declareAccessors declares the getter and setter of a property under
// "<symbol>.get" and "<symbol>.set".
func (l *lowerer) declareAccessors(symbol string, p *hir.PropertyDecl, receiver bool) (get, set *ir.Func, err error) {
	info, ok := l.types.PropertyInfo(p.Type)
	if !ok {
		return nil, nil, diag.Errorf(diag.LowBadPropertyDecl, p.Span, "property %s has no property type", p.Name)
	}
	if info.HasGet != (p.Get != nil) || info.HasSet != (p.Set != nil) || (!info.HasGet && !info.HasSet) {
		return nil, nil, diag.Errorf(diag.LowBadPropertyDecl, p.Span, "accessors of property %s do not match %s", p.Name, types.Label(l.types, p.Type))
	}
	var recv []string
	if receiver {
		recv = []string{"this"}
	}
	if p.Get != nil {
		sig, err := l.res.AccessorSignature(p.Type, false, receiver)
		if err != nil {
			return nil, nil, atSpan(err, p.Span)
		}
		if get, err = l.newFunc(symbol+".get", sig, p.Span, recv...); err != nil {
			return nil, nil, err
		}
	}
	if p.Set != nil {
		sig, err := l.res.AccessorSignature(p.Type, true, receiver)
		if err != nil {
			return nil, nil, atSpan(err, p.Span)
		}
		if set, err = l.newFunc(symbol+".set", sig, p.Span, append(recv, hir.SetterParam)...); err != nil {
			return nil, nil, err
		}
	}
	return get, set, nil
}

// declareGlobal emits the storage of a global variable or constant. Literal
// initializers become the global's initial value; any other initializer is
// lowered into the module init function during the body pass.
func (l *lowerer) declareGlobal(node *memberTable, e *entry, d *hir.VarDecl, constant bool) error {
	vt, err := l.res.ValueType(d.Type)
	if err != nil {
		return atSpan(err, d.Span)
	}
	g, err := l.newGlobal(node.qualify(d.Name), vt, d.Span)
	if err != nil {
		return err
	}
	e.global = g
	if d.Value == nil {
		if constant {
			return diag.Errorf(diag.LowBadInitializer, d.Span, "constant %s has no value", d.Name)
		}
		return nil
	}
	if c, ok := l.constInit(d.Value, d.Type); ok {
		g.Init = c
		g.Constant = constant
	}
	return nil
}

// constInit folds literal initializers into constants of the storage type
// of target.
func (l *lowerer) constInit(e *hir.Expr, target types.TypeID) (*ir.Const, bool) {
	vt, err := l.res.ValueType(target)
	if err != nil {
		return nil, false
	}
	tk := l.types.KindOf(target)
	switch e.Kind {
	case hir.ExprIntLit:
		if tk == types.KindInt || tk == types.KindChar {
			return intConst(vt, e.Lit.Int), true
		}
	case hir.ExprCharLit:
		if tk == types.KindInt || tk == types.KindChar {
			return intConst(vt, int64(e.Lit.Char)), true
		}
	case hir.ExprBoolLit:
		if tk == types.KindBool {
			return ir.Bool(e.Lit.Bool), true
		}
	case hir.ExprNull:
		if nullable(l.types, target) {
			return ir.Zero(vt), true
		}
	case hir.ExprUnary:
		if e.Unary == hir.OpNeg && e.X != nil && e.X.Kind == hir.ExprIntLit && (tk == types.KindInt || tk == types.KindChar) {
			return intConst(vt, -e.X.Lit.Int), true
		}
	case hir.ExprStringLit:
		if l.types.IsDynamicArray(target) && l.types.KindOf(l.types.Elem(target)) == types.KindChar {
			return l.stringConst(e.Lit.Str), true
		}
	}
	return nil, false
}

// findEntry records the entry function. Only a root-level function with
// no parameters returning nothing or int qualifies.
func (l *lowerer) findEntry() error {
	e, ok := l.root.lookup(l.opts.Entry)
	if !ok {
		return nil
	}
	if e.kind != entryFunc || e.fn == nil {
		return diag.Errorf(diag.LowBadEntry, e.span, "entry %s is a %s, not a function", e.name, e.kind)
	}
	info, _ := l.types.FnInfo(e.typ)
	results := l.types.Results(e.typ)
	if info == nil || len(info.Params) != 0 || len(results) > 1 ||
		(len(results) == 1 && l.types.KindOf(results[0]) != types.KindInt) {
		return diag.Errorf(diag.LowBadEntry, e.span, "entry %s must take no parameters and return nothing or int, has %s", e.name, types.Label(l.types, e.typ))
	}
	l.entry = e.fn
	return nil
}

// lowerBodies lowers every body, then the init function and the C entry
// wrapper.
func (l *lowerer) lowerBodies() error {
	if err := l.walk(l.prog.Root, l.root, l.lowerMember); err != nil {
		return err
	}
	l.finishInit()
	return l.emitMain()
}

func (l *lowerer) lowerMember(m hir.Member) error {
	node := l.current()
	e, ok := node.lookup(m.Name())
	if !ok {
		return diag.Errorf(diag.LowMalformedTree, source.Span{}, "%s %s was not declared in %s", m.Kind, m.Name(), node.label())
	}
	switch m.Kind {
	case hir.MemberInterface:
		return nil
	case hir.MemberType:
		return l.lowerTypeBodies(e.def, m.Type)
	case hir.MemberFunc:
		fn := m.Func
		if fn.Extern {
			return nil
		}
		return l.lowerFunc(body{
			fn:      e.fn,
			params:  fn.Params,
			results: l.types.Results(fn.Type),
			block:   fn.Body,
		})
	case hir.MemberProperty:
		return l.lowerAccessors(nil, m.Property, e.get, e.set)
	case hir.MemberVar, hir.MemberConst:
		if m.Var.Value == nil || e.global.Init != nil {
			return nil
		}
		return l.lowerInit(m.Var, e.global)
	default:
		return diag.Errorf(diag.LowMalformedTree, source.Span{}, "unknown member kind %d", m.Kind)
	}
}

func (l *lowerer) lowerTypeBodies(def *layout.TypeDef, d *hir.TypeDecl) error {
	for _, fn := range d.Funcs {
		f, _ := def.Member(fn.Name)
		err := l.lowerFunc(body{
			fn:      f,
			self:    def,
			params:  fn.Params,
			results: l.types.Results(fn.Type),
			block:   fn.Body,
		})
		if err != nil {
			return err
		}
	}
	for _, p := range d.Properties {
		get, _ := def.Member(layout.AccessorName(p.Name, false))
		set, _ := def.Member(layout.AccessorName(p.Name, true))
		if err := l.lowerAccessors(def, p, get, set); err != nil {
			return err
		}
	}
	return nil
}

func (l *lowerer) lowerAccessors(self *layout.TypeDef, p *hir.PropertyDecl, get, set *ir.Func) error {
	info, _ := l.types.PropertyInfo(p.Type)
	if p.Get != nil {
		err := l.lowerFunc(body{fn: get, self: self, results: []types.TypeID{info.Result}, block: p.Get})
		if err != nil {
			return err
		}
	}
	if p.Set != nil {
		err := l.lowerFunc(body{
			fn:     set,
			self:   self,
			params: []hir.Param{{Name: hir.SetterParam, Span: p.Span, Type: info.Result}},
			block:  p.Set,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
