package hir

import (
	"kestrel/internal/source"
	"kestrel/internal/types"
)

// StmtKind enumerates statement kinds.
type StmtKind uint8

const (
	// StmtVar declares locals: `x := e`, `var x T`, `a, b := f()`.
	StmtVar StmtKind = iota
	// StmtExpr evaluates an expression for its effects.
	StmtExpr
	// StmtAssign is plain, compound or multi-target assignment.
	StmtAssign
	// StmtReturn returns zero or more values.
	StmtReturn
	StmtIf
	StmtWhile
	StmtDoWhile
	StmtFor
	StmtBlock
	StmtBreak
	StmtContinue
	// StmtTry is try/catch with an optional catch binding.
	StmtTry
	StmtThrow
	// StmtDelete frees the pointee of an lvalue and zeroes the lvalue.
	StmtDelete
)

func (k StmtKind) String() string {
	switch k {
	case StmtVar:
		return "Var"
	case StmtExpr:
		return "Expr"
	case StmtAssign:
		return "Assign"
	case StmtReturn:
		return "Return"
	case StmtIf:
		return "If"
	case StmtWhile:
		return "While"
	case StmtDoWhile:
		return "DoWhile"
	case StmtFor:
		return "For"
	case StmtBlock:
		return "Block"
	case StmtBreak:
		return "Break"
	case StmtContinue:
		return "Continue"
	case StmtTry:
		return "Try"
	case StmtThrow:
		return "Throw"
	case StmtDelete:
		return "Delete"
	default:
		return "Stmt?"
	}
}

// Block is a statement list with its own local scope.
type Block struct {
	Span  source.Span
	Stmts []*Stmt
}

// Stmt is a statement. The payload matching Kind is set; Break and Continue
// carry none. Throw and Delete use Expr.
type Stmt struct {
	Kind   StmtKind
	Span   source.Span
	Var    *VarStmt
	Expr   *Expr
	Assign *AssignStmt
	Return *ReturnStmt
	If     *IfStmt
	Loop   *LoopStmt
	For    *ForStmt
	Block  *Block
	Try    *TryStmt
}

// VarStmt declares len(Names) locals. Values is empty (zero init), holds one
// value per name, or a single multi-result call.
type VarStmt struct {
	Names  []string
	Types  []types.TypeID
	Values []*Expr
}

// AssignOp enumerates assignment operators.
type AssignOp uint8

const (
	Assign AssignOp = iota
	AddAssign
	SubAssign
	MulAssign
	DivAssign
	RemAssign
	AndAssign
	OrAssign
	XorAssign
	ShlAssign
	ShrAssign
)

var assignOpText = [...]string{"=", "+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "<<=", ">>="}

func (op AssignOp) String() string {
	if int(op) < len(assignOpText) {
		return assignOpText[op]
	}
	return "?="
}

// Binary returns the arithmetic operator of a compound assignment.
func (op AssignOp) Binary() (BinaryOp, bool) {
	switch op {
	case AddAssign:
		return OpAdd, true
	case SubAssign:
		return OpSub, true
	case MulAssign:
		return OpMul, true
	case DivAssign:
		return OpDiv, true
	case RemAssign:
		return OpRem, true
	case AndAssign:
		return OpAnd, true
	case OrAssign:
		return OpOr, true
	case XorAssign:
		return OpXor, true
	case ShlAssign:
		return OpShl, true
	case ShrAssign:
		return OpShr, true
	}
	return 0, false
}

// AssignStmt assigns Values to Targets. Compound operators take exactly one
// target and one value; multi-target assignment takes one value per target
// or one multi-result call.
type AssignStmt struct {
	Targets []*Expr
	Op      AssignOp
	Values  []*Expr
}

type ReturnStmt struct {
	Values []*Expr
}

// IfStmt: an else-if chain nests an If statement inside Else.
type IfStmt struct {
	Cond *Expr
	Then *Block
	Else *Block
}

// LoopStmt is shared by while and do-while.
type LoopStmt struct {
	Cond *Expr
	Body *Block
}

// ForStmt is a C-style loop; every header part is optional.
type ForStmt struct {
	Init *Stmt
	Cond *Expr
	Post *Stmt
	Body *Block
}

// TryStmt is try/catch. CatchName is empty when the thrown value is not
// bound; otherwise it is bound as CatchType.
type TryStmt struct {
	Body      *Block
	CatchName string
	CatchType types.TypeID
	Catch     *Block
}
