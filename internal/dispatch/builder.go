package dispatch

import (
	"fmt"

	"kestrel/internal/diag"
	"kestrel/internal/hir"
	"kestrel/internal/ir"
	"kestrel/internal/layout"
	"kestrel/internal/source"
	"kestrel/internal/types"
)

// LookupName is the generated runtime lookup routine.
const LookupName = "kestrel.lookup"

// Builder assigns interface slots, builds per-type vtables and generates
// the runtime lookup routine.
type Builder struct {
	resolver *layout.Resolver
	mod      *ir.Module

	tables map[types.TypeID]*Table
	order  []*Table
	nextID int32
	lookup *ir.Func

	implements map[types.TypeID]map[types.TypeID]bool
}

// NewBuilder creates a dispatch builder emitting into the resolver's module.
func NewBuilder(r *layout.Resolver) *Builder {
	return &Builder{
		resolver: r,
		mod:      r.Mod,
		tables:   make(map[types.TypeID]*Table),
		nextID:   1,

		implements: make(map[types.TypeID]map[types.TypeID]bool),
	}
}

// Reserve registers the interface and assigns its id. Slots are assigned
// later by DeclareInterface so that interfaces may be referenced before
// their members are known.
func (b *Builder) Reserve(decl *hir.InterfaceDecl) (*Table, error) {
	info, ok := b.resolver.Types.Nominal(decl.Type)
	if !ok || b.resolver.Types.KindOf(decl.Type) != types.KindInterface {
		return nil, diag.Errorf(diag.LowMalformedTree, decl.Span, "interface %s has no interface type", decl.Name)
	}
	if _, dup := b.tables[decl.Type]; dup {
		return nil, diag.Errorf(diag.LowDuplicateDecl, decl.Span, "interface %s declared twice", info.Name)
	}
	t := &Table{
		ID:      b.nextID,
		Name:    info.Name,
		Type:    decl.Type,
		Span:    decl.Span,
		byName:  make(map[string]int),
		props:   make(map[string]types.TypeID),
		methods: make(map[string]types.TypeID),
	}
	if _, err := b.Lookup(); err != nil {
		return nil, atSpan(err, decl.Span)
	}
	b.nextID++
	b.tables[decl.Type] = t
	b.order = append(b.order, t)
	return t, nil
}

// DeclareInterface assigns slots in member order: a method takes one slot,
// a property takes one per accessor, get before set.
func (b *Builder) DeclareInterface(decl *hir.InterfaceDecl) (*Table, error) {
	t, ok := b.tables[decl.Type]
	if !ok {
		var err error
		if t, err = b.Reserve(decl); err != nil {
			return nil, err
		}
	}
	if t.declared {
		return t, nil
	}
	for _, m := range decl.Members {
		if _, dup := t.byName[m.Name]; dup {
			return nil, diag.Errorf(diag.LowDuplicateDecl, m.Span, "interface %s declares %s twice", t.Name, m.Name)
		}
		if _, dup := t.props[m.Name]; dup {
			return nil, diag.Errorf(diag.LowDuplicateDecl, m.Span, "interface %s declares %s twice", t.Name, m.Name)
		}
		switch m.Kind {
		case hir.IfaceFunc:
			sig, err := b.resolver.Signature(m.Type, true)
			if err != nil {
				return nil, atSpan(err, m.Span)
			}
			t.methods[m.Name] = m.Type
			t.add(m.Name, SlotFunc, sig)
		case hir.IfaceProperty:
			info, ok := b.resolver.Types.PropertyInfo(m.Type)
			if !ok {
				return nil, diag.Errorf(diag.LowBadPropertyDecl, m.Span, "interface property %s has no property type", m.Name)
			}
			t.props[m.Name] = m.Type
			if info.HasGet {
				sig, err := b.resolver.AccessorSignature(m.Type, false, true)
				if err != nil {
					return nil, atSpan(err, m.Span)
				}
				t.add(layout.AccessorName(m.Name, false), SlotGet, sig)
			}
			if info.HasSet {
				sig, err := b.resolver.AccessorSignature(m.Type, true, true)
				if err != nil {
					return nil, atSpan(err, m.Span)
				}
				t.add(layout.AccessorName(m.Name, true), SlotSet, sig)
			}
		default:
			return nil, diag.Errorf(diag.LowMalformedTree, m.Span, "interface member %s has unknown kind %d", m.Name, m.Kind)
		}
	}
	t.declared = true
	return t, nil
}

// Table returns the slot table of an interface type.
func (b *Builder) Table(iface types.TypeID) (*Table, bool) {
	t, ok := b.tables[iface]
	return t, ok
}

// Tables returns all tables in id order.
func (b *Builder) Tables() []*Table {
	return b.order
}

// DeclareVTable creates the empty vtable global of a struct. BuildVTables
// fills it once every interface is known.
func (b *Builder) DeclareVTable(def *layout.TypeDef) (*ir.Global, error) {
	if def.VTable != nil {
		return def.VTable, nil
	}
	g, err := b.global(def.Name+".vtable", b.resolver.Runtime.VTable, nil, def.Span)
	if err != nil {
		return nil, err
	}
	def.VTable = g
	return g, nil
}

// VTable returns the vtable global of a struct declared by DeclareVTable.
func (b *Builder) VTable(def *layout.TypeDef) *ir.Global {
	return def.VTable
}

// global adds a constant global, reporting a symbol clash as a diagnostic.
func (b *Builder) global(name string, content *ir.Type, init *ir.Const, sp source.Span) (*ir.Global, error) {
	if b.mod.Global(name) != nil || b.mod.Func(name) != nil {
		return nil, diag.Errorf(diag.LowDuplicateDecl, sp, "symbol %s declared twice", name)
	}
	g := b.mod.NewGlobal(name, content, init)
	g.Constant = true
	return g, nil
}

// BuildVTables fills the vtable of def from the interfaces decl implements.
// Every slot must be filled by a member of the same name and signature.
func (b *Builder) BuildVTables(def *layout.TypeDef, decl *hir.TypeDecl) error {
	rt := b.resolver.Runtime
	entries := make([]ir.Value, 0, len(decl.Implements))
	seen := make(map[types.TypeID]bool, len(decl.Implements))
	for _, iface := range decl.Implements {
		if seen[iface] {
			continue
		}
		seen[iface] = true
		t, ok := b.tables[iface]
		if !ok || !t.declared {
			return diag.Errorf(diag.LowUnknownInterface, decl.Span, "type %s implements undeclared interface %s", def.Name, types.Label(b.resolver.Types, iface))
		}
		slots := make([]ir.Value, t.Len())
		for _, s := range t.slots {
			fn, ok := def.Member(s.Name)
			if !ok {
				return diag.Errorf(diag.LowMissingInterfaceMember, decl.Span, "type %s does not implement interface member %s", def.Name, memberLabel(t.Name, s))
			}
			if !fn.Sig.Equal(s.Sig) {
				return diag.Errorf(diag.LowInterfaceSignature, decl.Span, "%s.%s has signature %s, interface %s expects %s", def.Name, s.Name, fn.Sig, t.Name, s.Sig)
			}
			slots[s.Index] = fn
		}
		arrType := ir.ArrayOf(ir.Ptr, len(slots))
		slotsGlobal, err := b.global(fmt.Sprintf("%s.vtable.%s", def.Name, t.Name), arrType, ir.Aggregate(arrType, slots...), decl.Span)
		if err != nil {
			return err
		}
		entries = append(entries, ir.Aggregate(rt.IVTable, ir.Int(ir.I32, int64(t.ID)), slotsGlobal))
	}
	var ifaces ir.Value = ir.Null()
	if len(entries) > 0 {
		arrType := ir.ArrayOf(rt.IVTable, len(entries))
		// Interface names are never empty, so the double dot keeps this
		// apart from the per-interface arrays.
		g, err := b.global(def.Name+".vtable..ifaces", arrType, ir.Aggregate(arrType, entries...), decl.Span)
		if err != nil {
			return err
		}
		ifaces = g
	}
	vt, err := b.DeclareVTable(def)
	if err != nil {
		return err
	}
	b.implements[def.ID] = seen
	vt.Init = ir.Aggregate(rt.VTable, ir.Int(ir.I32, int64(len(entries))), ifaces)
	return nil
}

// Implements reports whether the vtable built for the struct type carries
// iface.
func (b *Builder) Implements(structType, iface types.TypeID) bool {
	return b.implements[structType][iface]
}

func memberLabel(iface string, s Slot) string {
	return iface + "." + s.Name
}

func atSpan(err error, sp source.Span) error {
	if de, ok := diag.AsError(err); ok {
		return de.At(sp)
	}
	return err
}
