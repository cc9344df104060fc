package hir

import (
	"kestrel/internal/source"
	"kestrel/internal/types"
)

// ExprKind enumerates expression kinds.
type ExprKind uint8

const (
	ExprIntLit ExprKind = iota
	ExprBoolLit
	ExprCharLit
	// ExprStringLit has type char[].
	ExprStringLit
	ExprNull
	// ExprIdent names a local, parameter, member of the enclosing type, or
	// namespace member visible from the current namespace.
	ExprIdent
	ExprThis
	// ExprMember is X.Name where X is a namespace, struct, pointer to struct,
	// interface or array (Size).
	ExprMember
	ExprIndex
	ExprCall
	ExprUnary
	ExprBinary
	// ExprIs tests the dynamic type of X against Target.
	ExprIs
	// ExprNew allocates one value, or Count values when Count is set.
	ExprNew
	ExprCast
	ExprIncDec
	// ExprArrayLit has a fixed array type.
	ExprArrayLit
)

func (k ExprKind) String() string {
	switch k {
	case ExprIntLit:
		return "IntLit"
	case ExprBoolLit:
		return "BoolLit"
	case ExprCharLit:
		return "CharLit"
	case ExprStringLit:
		return "StringLit"
	case ExprNull:
		return "Null"
	case ExprIdent:
		return "Ident"
	case ExprThis:
		return "This"
	case ExprMember:
		return "Member"
	case ExprIndex:
		return "Index"
	case ExprCall:
		return "Call"
	case ExprUnary:
		return "Unary"
	case ExprBinary:
		return "Binary"
	case ExprIs:
		return "Is"
	case ExprNew:
		return "New"
	case ExprCast:
		return "Cast"
	case ExprIncDec:
		return "IncDec"
	case ExprArrayLit:
		return "ArrayLit"
	default:
		return "Expr?"
	}
}

// Expr is a typed expression node. Type is the resolved type: for names of
// properties it is the KindProperty type, for calls the callee's result.
type Expr struct {
	Kind   ExprKind
	Span   source.Span
	Type   types.TypeID
	Lit    *Lit
	Name   string // Ident and Member
	X      *Expr  // Member, Index, Unary, Is, Cast, IncDec operand
	Index  *Expr
	Call   *CallExpr
	Unary  UnaryOp
	Binary *BinaryExpr
	Is     types.TypeID
	New    *NewExpr
	IncDec *IncDecExpr
	Elems  []*Expr // ArrayLit
}

// Lit carries literal payloads.
type Lit struct {
	Int  int64
	Bool bool
	Char byte
	Str  string
}

type CallExpr struct {
	Callee *Expr
	Args   []*Expr
}

// UnaryOp enumerates prefix operators.
type UnaryOp uint8

const (
	OpNeg UnaryOp = iota + 1
	OpNot
	OpBitNot
	OpAddr
	OpDeref
)

func (op UnaryOp) String() string {
	switch op {
	case OpNeg:
		return "-"
	case OpNot:
		return "!"
	case OpBitNot:
		return "~"
	case OpAddr:
		return "&"
	case OpDeref:
		return "*"
	default:
		return "?"
	}
}

// BinaryOp enumerates infix operators.
type BinaryOp uint8

const (
	OpAdd BinaryOp = iota + 1
	OpSub
	OpMul
	OpDiv
	OpRem
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpLogAnd
	OpLogOr
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

var binaryOpText = [...]string{"?", "+", "-", "*", "/", "%", "&", "|", "^", "<<", ">>", "&&", "||", "==", "!=", "<", "<=", ">", ">="}

func (op BinaryOp) String() string {
	if int(op) < len(binaryOpText) {
		return binaryOpText[op]
	}
	return "?"
}

// IsComparison reports whether op yields bool from two operands.
func (op BinaryOp) IsComparison() bool {
	return op >= OpEq && op <= OpGe
}

type BinaryExpr struct {
	Op   BinaryOp
	X, Y *Expr
}

// NewExpr: Expr.Type is *Elem, or Elem[] when Count is set.
type NewExpr struct {
	Elem  types.TypeID
	Count *Expr
}

type IncDecExpr struct {
	Dec    bool
	Prefix bool
}
