package ir

import (
	"fmt"
	"strings"
)

// TypeKind enumerates IR type shapes.
type TypeKind uint8

const (
	TypeVoid TypeKind = iota
	TypeInt
	TypePtr
	TypeStruct
	TypeArray
	TypeFunc
)

// Type is an IR type. Named structs are identified by pointer and may be
// opaque until SetBody is called; every other type compares structurally.
type Type struct {
	Kind   TypeKind
	Bits   int     // TypeInt
	Name   string  // named TypeStruct
	Fields []*Type // TypeStruct
	Opaque bool    // named TypeStruct without a body yet
	Elem   *Type   // TypeArray
	Len    int     // TypeArray
	Ret    *Type   // TypeFunc
	Params []*Type // TypeFunc
}

var (
	Void = &Type{Kind: TypeVoid}
	I1   = &Type{Kind: TypeInt, Bits: 1}
	I8   = &Type{Kind: TypeInt, Bits: 8}
	I32  = &Type{Kind: TypeInt, Bits: 32}
	I64  = &Type{Kind: TypeInt, Bits: 64}
	Ptr  = &Type{Kind: TypePtr}
)

// IntType returns the integer type of the given width.
func IntType(bits int) *Type {
	switch bits {
	case 1:
		return I1
	case 8:
		return I8
	case 32:
		return I32
	case 64:
		return I64
	}
	return &Type{Kind: TypeInt, Bits: bits}
}

// StructOf returns a literal (unnamed) struct type.
func StructOf(fields ...*Type) *Type {
	return &Type{Kind: TypeStruct, Fields: fields}
}

// ArrayOf returns [n x elem].
func ArrayOf(elem *Type, n int) *Type {
	return &Type{Kind: TypeArray, Elem: elem, Len: n}
}

// FuncType returns a function signature.
func FuncType(ret *Type, params ...*Type) *Type {
	return &Type{Kind: TypeFunc, Ret: ret, Params: params}
}

// SetBody fills in an opaque named struct.
func (t *Type) SetBody(fields ...*Type) {
	t.Fields = fields
	t.Opaque = false
}

func (t *Type) IsVoid() bool { return t != nil && t.Kind == TypeVoid }
func (t *Type) IsInt() bool  { return t != nil && t.Kind == TypeInt }
func (t *Type) IsPtr() bool  { return t != nil && t.Kind == TypePtr }

// IsAggregate reports whether values of t are structs or arrays.
func (t *Type) IsAggregate() bool {
	return t != nil && (t.Kind == TypeStruct || t.Kind == TypeArray)
}

// Equal compares types; named structs compare by identity.
func (t *Type) Equal(o *Type) bool {
	if t == o {
		return true
	}
	if t == nil || o == nil || t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case TypeVoid, TypePtr:
		return true
	case TypeInt:
		return t.Bits == o.Bits
	case TypeArray:
		return t.Len == o.Len && t.Elem.Equal(o.Elem)
	case TypeStruct:
		if t.Name != "" || o.Name != "" {
			return false
		}
		return equalTypes(t.Fields, o.Fields)
	case TypeFunc:
		return t.Ret.Equal(o.Ret) && equalTypes(t.Params, o.Params)
	}
	return false
}

func equalTypes(a, b []*Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// String renders the type in LLVM assembly syntax; named structs render as
// their reference.
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case TypeVoid:
		return "void"
	case TypeInt:
		return fmt.Sprintf("i%d", t.Bits)
	case TypePtr:
		return "ptr"
	case TypeArray:
		return fmt.Sprintf("[%d x %s]", t.Len, t.Elem)
	case TypeStruct:
		if t.Name != "" {
			return "%" + t.Name
		}
		return t.Body()
	case TypeFunc:
		parts := make([]string, len(t.Params))
		for i, p := range t.Params {
			parts[i] = p.String()
		}
		return fmt.Sprintf("%s (%s)", t.Ret, strings.Join(parts, ", "))
	}
	return "?"
}

// Body renders the field list of a struct, or "opaque".
func (t *Type) Body() string {
	if t.Opaque {
		return "opaque"
	}
	if len(t.Fields) == 0 {
		return "{}"
	}
	parts := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		parts[i] = f.String()
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}
