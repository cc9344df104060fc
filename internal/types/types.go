package types

import "fmt"

// TypeID uniquely identifies a type inside the interner.
type TypeID uint32

// NoTypeID marks the absence of a type.
const NoTypeID TypeID = 0

// Kind enumerates all supported kinds of semantic types.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindVoid
	KindBool
	KindChar
	KindInt
	KindNull
	KindPointer
	KindArray
	KindStruct
	KindInterface
	KindFn
	KindProperty
	KindList
	KindNamespace
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindVoid:
		return "void"
	case KindBool:
		return "bool"
	case KindChar:
		return "char"
	case KindInt:
		return "int"
	case KindNull:
		return "null"
	case KindPointer:
		return "pointer"
	case KindArray:
		return "array"
	case KindStruct:
		return "struct"
	case KindInterface:
		return "interface"
	case KindFn:
		return "fn"
	case KindProperty:
		return "property"
	case KindList:
		return "list"
	case KindNamespace:
		return "namespace"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// ArrayDynamicLength marks arrays whose length is only known at run time.
const ArrayDynamicLength = ^uint32(0)

// Type is a compact descriptor for any supported type. Nominal and composite
// kinds keep their details in side tables addressed by Payload.
type Type struct {
	Kind    Kind
	Elem    TypeID
	Count   uint32 // for arrays (ArrayDynamicLength means dynamic)
	Payload uint32 // side-table slot for struct/interface/fn/property/list/namespace
}

// IsPrimitive reports whether the kind maps to a fixed machine scalar.
func (k Kind) IsPrimitive() bool {
	switch k {
	case KindVoid, KindBool, KindChar, KindInt:
		return true
	}
	return false
}

// MakePointer describes a pointer to elem.
func MakePointer(elem TypeID) Type {
	return Type{Kind: KindPointer, Elem: elem}
}

// MakeArray describes an array of elem. Use ArrayDynamicLength for T[].
func MakeArray(elem TypeID, count uint32) Type {
	return Type{Kind: KindArray, Elem: elem, Count: count}
}
