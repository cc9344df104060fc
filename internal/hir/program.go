package hir

import (
	"kestrel/internal/source"
	"kestrel/internal/types"
)

// Program is a fully type-resolved compilation unit. The back end reads it
// and never mutates it.
type Program struct {
	Types *types.Interner
	Files source.Files
	Root  *Namespace
}

// Namespace is a named scope holding declarations and nested namespaces.
// The root namespace has an empty name.
type Namespace struct {
	Name    string
	Span    source.Span
	Members []Member
}

// MemberKind enumerates namespace member kinds.
type MemberKind uint8

const (
	// MemberNamespace is a nested namespace.
	MemberNamespace MemberKind = iota
	// MemberType is a struct type declaration.
	MemberType
	// MemberInterface is an interface declaration.
	MemberInterface
	// MemberFunc is a free function.
	MemberFunc
	// MemberProperty is a namespace-level property.
	MemberProperty
	// MemberVar is a global variable.
	MemberVar
	// MemberConst is a global constant.
	MemberConst
)

func (k MemberKind) String() string {
	switch k {
	case MemberNamespace:
		return "namespace"
	case MemberType:
		return "type"
	case MemberInterface:
		return "interface"
	case MemberFunc:
		return "func"
	case MemberProperty:
		return "property"
	case MemberVar:
		return "var"
	case MemberConst:
		return "const"
	default:
		return "member?"
	}
}

// Member is one namespace entry. Exactly one payload is set, chosen by Kind;
// MemberVar and MemberConst both use Var.
type Member struct {
	Kind      MemberKind
	Namespace *Namespace
	Type      *TypeDecl
	Interface *InterfaceDecl
	Func      *FuncDecl
	Property  *PropertyDecl
	Var       *VarDecl
}

// Name returns the declared name of the member payload.
func (m Member) Name() string {
	switch m.Kind {
	case MemberNamespace:
		if m.Namespace != nil {
			return m.Namespace.Name
		}
	case MemberType:
		if m.Type != nil {
			return m.Type.Name
		}
	case MemberInterface:
		if m.Interface != nil {
			return m.Interface.Name
		}
	case MemberFunc:
		if m.Func != nil {
			return m.Func.Name
		}
	case MemberProperty:
		if m.Property != nil {
			return m.Property.Name
		}
	case MemberVar, MemberConst:
		if m.Var != nil {
			return m.Var.Name
		}
	}
	return ""
}

// Span returns the position of the member payload.
func (m Member) Span() source.Span {
	switch {
	case m.Namespace != nil:
		return m.Namespace.Span
	case m.Type != nil:
		return m.Type.Span
	case m.Interface != nil:
		return m.Interface.Span
	case m.Func != nil:
		return m.Func.Span
	case m.Property != nil:
		return m.Property.Span
	case m.Var != nil:
		return m.Var.Span
	}
	return source.Span{}
}

// TypeDecl declares a struct type with fields, methods and properties.
type TypeDecl struct {
	Name       string
	Span       source.Span
	Type       types.TypeID // KindStruct
	Implements []types.TypeID
	Fields     []FieldDecl
	Funcs      []*FuncDecl
	Properties []*PropertyDecl
}

// FieldDecl is a struct field in declaration order.
type FieldDecl struct {
	Name string
	Span source.Span
	Type types.TypeID
}

// InterfaceDecl declares an interface. Member order defines slot order.
type InterfaceDecl struct {
	Name    string
	Span    source.Span
	Type    types.TypeID // KindInterface
	Members []InterfaceMember
}

// InterfaceMemberKind distinguishes interface methods from properties.
type InterfaceMemberKind uint8

const (
	IfaceFunc InterfaceMemberKind = iota
	IfaceProperty
)

// InterfaceMember is a method (Type is KindFn, without receiver) or a
// property (Type is KindProperty).
type InterfaceMember struct {
	Kind InterfaceMemberKind
	Name string
	Span source.Span
	Type types.TypeID
}

// FuncDecl is a free function or a method. Type is the KindFn signature
// without the receiver. Extern functions have no body.
type FuncDecl struct {
	Name   string
	Span   source.Span
	Type   types.TypeID
	Params []Param
	Body   *Block
	Extern bool
}

// Param is a named function parameter.
type Param struct {
	Name string
	Span source.Span
	Type types.TypeID
}

// PropertyDecl is a property with optional accessors. Inside Set the new
// value is bound to the name SetterParam.
type PropertyDecl struct {
	Name string
	Span source.Span
	Type types.TypeID // KindProperty
	Get  *Block
	Set  *Block
}

// SetterParam names the implicit parameter of property setters.
const SetterParam = "value"

// VarDecl is a global variable or constant.
type VarDecl struct {
	Name  string
	Span  source.Span
	Type  types.TypeID
	Value *Expr
}
