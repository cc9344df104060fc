package layout

import (
	"fmt"

	"kestrel/internal/ir"
	"kestrel/internal/source"
	"kestrel/internal/types"
)

// Field is one struct field in declaration order.
type Field struct {
	Name  string
	Type  types.TypeID
	Index int
}

// TypeDef is the generated representation of one declared struct type. It
// is created as a shell, filled in while signatures are declared and frozen
// before bodies are lowered.
type TypeDef struct {
	ID     types.TypeID
	Name   string // qualified name, also the IR struct name
	Span   source.Span
	Struct *ir.Type
	Fields []Field
	// Members maps method names and accessor names ("<prop>.get",
	// "<prop>.set") to generated functions.
	Members map[string]*ir.Func
	// Props maps property names to their KindProperty type.
	Props  map[string]types.TypeID
	VTable *ir.Global

	fieldIndex map[string]int
	frozen     bool
}

// Field looks up a field by name.
func (d *TypeDef) Field(name string) (Field, bool) {
	i, ok := d.fieldIndex[name]
	if !ok {
		return Field{}, false
	}
	return d.Fields[i], true
}

// Member looks up a generated method or accessor.
func (d *TypeDef) Member(name string) (*ir.Func, bool) {
	fn, ok := d.Members[name]
	return fn, ok
}

// AddMember records a generated method or accessor.
func (d *TypeDef) AddMember(name string, fn *ir.Func) error {
	if d.frozen {
		return fmt.Errorf("type %s is frozen", d.Name)
	}
	if _, dup := d.Members[name]; dup {
		return fmt.Errorf("member %s declared twice", name)
	}
	if _, dup := d.fieldIndex[name]; dup {
		return fmt.Errorf("member %s collides with a field", name)
	}
	d.Members[name] = fn
	return nil
}

// Freeze forbids further changes.
func (d *TypeDef) Freeze() {
	d.frozen = true
}

// AccessorName returns the member key of a property accessor.
func AccessorName(prop string, set bool) string {
	if set {
		return prop + ".set"
	}
	return prop + ".get"
}
