package lower

import (
	"strings"

	"kestrel/internal/diag"
	"kestrel/internal/dispatch"
	"kestrel/internal/ir"
	"kestrel/internal/layout"
	"kestrel/internal/source"
	"kestrel/internal/types"
)

type entryKind uint8

const (
	entryNamespace entryKind = iota
	entryType
	entryInterface
	entryFunc
	entryProperty
	entryVar
	entryConst
)

func (k entryKind) String() string {
	switch k {
	case entryNamespace:
		return "namespace"
	case entryType:
		return "type"
	case entryInterface:
		return "interface"
	case entryFunc:
		return "function"
	case entryProperty:
		return "property"
	case entryVar:
		return "variable"
	case entryConst:
		return "constant"
	default:
		return "entry?"
	}
}

// entry is one name in a namespace. Payload fields are filled across the
// declaration passes: the shell pass creates the entry, the signature pass
// attaches generated functions and globals.
type entry struct {
	kind entryKind
	name string
	span source.Span
	typ  types.TypeID

	node     *memberTable // namespace
	def      *layout.TypeDef
	table    *dispatch.Table
	fn       *ir.Func
	get, set *ir.Func
	global   *ir.Global
}

// memberTable mirrors one namespace. Lookups fall back to enclosing
// namespaces.
type memberTable struct {
	name    string
	path    string
	parent  *memberTable
	entries map[string]*entry
}

func newMemberTable(name string, parent *memberTable) *memberTable {
	t := &memberTable{name: name, parent: parent, entries: make(map[string]*entry)}
	switch {
	case parent == nil:
	case parent.path == "":
		t.path = name
	default:
		t.path = parent.path + "." + name
	}
	return t
}

func (t *memberTable) label() string {
	if t.path == "" {
		return "<root>"
	}
	return t.path
}

// qualify returns the symbol name of a member declared here.
func (t *memberTable) qualify(name string) string {
	if t.path == "" {
		return name
	}
	return t.path + "." + name
}

func (t *memberTable) declare(e *entry) error {
	if prev, dup := t.entries[e.name]; dup {
		return diag.Errorf(diag.LowDuplicateDecl, e.span, "%s %s already declared as %s in %s", e.kind, e.name, prev.kind, t.label()).
			WithNote(prev.span, "previous declaration")
	}
	t.entries[e.name] = e
	return nil
}

// lookup finds a name declared directly in t.
func (t *memberTable) lookup(name string) (*entry, bool) {
	e, ok := t.entries[name]
	return e, ok
}

// resolve finds a name in t or the nearest enclosing namespace.
func (t *memberTable) resolve(name string) (*entry, bool) {
	for n := t; n != nil; n = n.parent {
		if e, ok := n.entries[name]; ok {
			return e, true
		}
	}
	return nil, false
}

// find returns the node of a dotted namespace path relative to the root
// of t.
func (t *memberTable) find(path string) (*memberTable, bool) {
	n := t
	for n.parent != nil {
		n = n.parent
	}
	if path == "" {
		return n, true
	}
	for _, part := range strings.Split(path, ".") {
		e, ok := n.entries[part]
		if !ok || e.kind != entryNamespace {
			return nil, false
		}
		n = e.node
	}
	return n, true
}
