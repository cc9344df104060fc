package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// Value is anything an instruction can use as an operand.
type Value interface {
	Type() *Type
	// Ident is the operand text without its type: "%t3", "@g", "42".
	Ident() string
}

// ConstKind enumerates constant shapes.
type ConstKind uint8

const (
	ConstInt ConstKind = iota
	ConstNull
	ConstZero
	ConstAggregate
	ConstBytes
)

// Const is a compile-time constant.
type Const struct {
	Kind  ConstKind
	Typ   *Type
	Int   int64
	Elems []Value // ConstAggregate: constants, globals or functions
	Bytes []byte  // ConstBytes: exactly Typ.Len bytes
}

// Int returns an integer constant of type t.
func Int(t *Type, v int64) *Const {
	return &Const{Kind: ConstInt, Typ: t, Int: v}
}

// Bool returns an i1 constant.
func Bool(v bool) *Const {
	if v {
		return Int(I1, 1)
	}
	return Int(I1, 0)
}

// Null returns the null pointer.
func Null() *Const {
	return &Const{Kind: ConstNull, Typ: Ptr}
}

// Zero returns the zero value of t.
func Zero(t *Type) *Const {
	switch t.Kind {
	case TypeInt:
		return Int(t, 0)
	case TypePtr:
		return Null()
	}
	return &Const{Kind: ConstZero, Typ: t}
}

// Aggregate returns a struct or array constant.
func Aggregate(t *Type, elems ...Value) *Const {
	return &Const{Kind: ConstAggregate, Typ: t, Elems: elems}
}

// Bytes returns a [len(data) x i8] constant.
func Bytes(data []byte) *Const {
	return &Const{Kind: ConstBytes, Typ: ArrayOf(I8, len(data)), Bytes: data}
}

func (c *Const) Type() *Type { return c.Typ }

func (c *Const) Ident() string {
	switch c.Kind {
	case ConstInt:
		if c.Typ.Bits == 1 {
			return strconv.FormatBool(c.Int != 0)
		}
		return strconv.FormatInt(c.Int, 10)
	case ConstNull:
		return "null"
	case ConstZero:
		return "zeroinitializer"
	case ConstBytes:
		return formatBytes(c.Bytes)
	case ConstAggregate:
		parts := make([]string, len(c.Elems))
		for i, e := range c.Elems {
			parts[i] = Operand(e)
		}
		if c.Typ.Kind == TypeArray {
			return "[" + strings.Join(parts, ", ") + "]"
		}
		return "{ " + strings.Join(parts, ", ") + " }"
	}
	return "undef"
}

func formatBytes(data []byte) string {
	var sb strings.Builder
	sb.WriteString("c\"")
	for _, b := range data {
		fmt.Fprintf(&sb, "\\%02X", b)
	}
	sb.WriteString("\"")
	return sb.String()
}

// Operand renders "type ident".
func Operand(v Value) string {
	return v.Type().String() + " " + v.Ident()
}

// IsConst reports whether v is a module-level constant expression:
// a Const, a Global or a Func.
func IsConst(v Value) bool {
	switch v.(type) {
	case *Const, *Global, *Func:
		return true
	}
	return false
}

// Global is a module-level variable or constant. Its value is the address,
// so Type is always Ptr; Content is the stored type.
type Global struct {
	Name     string
	Content  *Type
	Init     *Const // nil means zeroinitializer
	Constant bool
	Private  bool
	Align    int
}

func (g *Global) Type() *Type   { return Ptr }
func (g *Global) Ident() string { return "@" + g.Name }

// Param is a function parameter.
type Param struct {
	Name  string
	Typ   *Type
	Index int
}

func (p *Param) Type() *Type   { return p.Typ }
func (p *Param) Ident() string { return "%" + p.Name }
