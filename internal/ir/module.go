package ir

import (
	"fmt"
)

// Module is one compilation unit.
type Module struct {
	Name    string
	Triple  string
	Structs []*Type
	Globals []*Global
	Funcs   []*Func

	structs map[string]*Type
	globals map[string]*Global
	funcs   map[string]*Func
}

// NewModule creates an empty module.
func NewModule(name, triple string) *Module {
	return &Module{
		Name:    name,
		Triple:  triple,
		structs: make(map[string]*Type),
		globals: make(map[string]*Global),
		funcs:   make(map[string]*Func),
	}
}

// NamedStruct returns the identified struct called name, creating an opaque
// one on first use.
func (m *Module) NamedStruct(name string) *Type {
	if t, ok := m.structs[name]; ok {
		return t
	}
	t := &Type{Kind: TypeStruct, Name: name, Opaque: true}
	m.structs[name] = t
	m.Structs = append(m.Structs, t)
	return t
}

// Struct looks up a named struct.
func (m *Module) Struct(name string) *Type {
	return m.structs[name]
}

// NewGlobal adds a global. It panics when the name is taken.
func (m *Module) NewGlobal(name string, content *Type, init *Const) *Global {
	if _, dup := m.globals[name]; dup {
		panic(fmt.Sprintf("ir: duplicate global @%s", name))
	}
	g := &Global{Name: name, Content: content, Init: init}
	m.globals[name] = g
	m.Globals = append(m.Globals, g)
	return g
}

// Global looks up a global by name.
func (m *Module) Global(name string) *Global {
	return m.globals[name]
}

// NewFunc declares a function. Bodies are added through NewBlock. It
// panics when the name is taken.
func (m *Module) NewFunc(name string, sig *Type, paramNames ...string) *Func {
	if _, dup := m.funcs[name]; dup {
		panic(fmt.Sprintf("ir: duplicate function @%s", name))
	}
	if sig == nil || sig.Kind != TypeFunc {
		panic(fmt.Sprintf("ir: @%s needs a function signature", name))
	}
	f := &Func{
		Name:   name,
		Sig:    sig,
		Module: m,
		names:  map[string]bool{"entry": true},
	}
	for i, pt := range sig.Params {
		pname := fmt.Sprintf("p%d", i)
		if i < len(paramNames) && paramNames[i] != "" {
			pname = paramNames[i]
		}
		for f.names[pname] {
			pname += "_"
		}
		f.names[pname] = true
		f.Params = append(f.Params, &Param{Name: pname, Typ: pt, Index: i})
	}
	m.funcs[name] = f
	m.Funcs = append(m.Funcs, f)
	return f
}

// Func looks up a function by name.
func (m *Module) Func(name string) *Func {
	return m.funcs[name]
}
