package ir

// Op enumerates instruction opcodes.
type Op uint8

const (
	OpAlloca Op = iota
	OpLoad
	OpStore
	OpGEP
	OpBinary
	OpICmp
	OpCast
	OpCall
	OpExtractValue
	OpInsertValue

	// Terminators.
	OpBr
	OpCondBr
	OpRet
	OpUnreachable
)

// IsTerminator reports whether op ends a block.
func (op Op) IsTerminator() bool {
	return op >= OpBr
}

func (op Op) String() string {
	switch op {
	case OpAlloca:
		return "alloca"
	case OpLoad:
		return "load"
	case OpStore:
		return "store"
	case OpGEP:
		return "getelementptr"
	case OpBinary:
		return "binary"
	case OpICmp:
		return "icmp"
	case OpCast:
		return "cast"
	case OpCall:
		return "call"
	case OpExtractValue:
		return "extractvalue"
	case OpInsertValue:
		return "insertvalue"
	case OpBr, OpCondBr:
		return "br"
	case OpRet:
		return "ret"
	case OpUnreachable:
		return "unreachable"
	}
	return "op?"
}

// BinOp enumerates integer arithmetic and bitwise operations.
type BinOp uint8

const (
	Add BinOp = iota
	Sub
	Mul
	SDiv
	SRem
	And
	Or
	Xor
	Shl
	AShr
)

var binOpText = [...]string{"add", "sub", "mul", "sdiv", "srem", "and", "or", "xor", "shl", "ashr"}

func (op BinOp) String() string {
	if int(op) < len(binOpText) {
		return binOpText[op]
	}
	return "binop?"
}

// Pred enumerates integer comparison predicates.
type Pred uint8

const (
	EQ Pred = iota
	NE
	SLT
	SLE
	SGT
	SGE
)

var predText = [...]string{"eq", "ne", "slt", "sle", "sgt", "sge"}

func (p Pred) String() string {
	if int(p) < len(predText) {
		return predText[p]
	}
	return "pred?"
}

// CastOp enumerates conversions.
type CastOp uint8

const (
	SExt CastOp = iota
	ZExt
	Trunc
	PtrToInt
	IntToPtr
)

var castText = [...]string{"sext", "zext", "trunc", "ptrtoint", "inttoptr"}

func (op CastOp) String() string {
	if int(op) < len(castText) {
		return castText[op]
	}
	return "cast?"
}

// Instr is one instruction. Which fields are meaningful depends on Op:
//
//	Alloca:        Elem, Align
//	Load:          Typ, Operands[0]=ptr
//	Store:         Operands[0]=value, Operands[1]=ptr
//	GEP:           Elem (source element type), Operands[0]=base, rest indices
//	Binary:        Bin, NSW, Operands x y
//	ICmp:          Pred, Operands x y
//	Cast:          Cast, Operands[0], Typ=target
//	Call:          Sig, Operands[0]=callee, rest args
//	ExtractValue:  Operands[0]=aggregate, Index
//	InsertValue:   Operands[0]=aggregate, Operands[1]=value, Index
//	Br:            Targets[0]
//	CondBr:        Operands[0]=cond, Targets then/else
//	Ret:           Operands empty or the value
type Instr struct {
	Op       Op
	Name     string // without the leading %; empty when no value is produced
	Typ      *Type  // result type
	Operands []Value
	Elem     *Type
	Align    int
	Bin      BinOp
	NSW      bool
	Pred     Pred
	Cast     CastOp
	Sig      *Type
	Index    []int
	Targets  []*Block
	Attrs    []string // call-site function attributes
}

func (in *Instr) Type() *Type {
	if in.Typ == nil {
		return Void
	}
	return in.Typ
}

func (in *Instr) Ident() string { return "%" + in.Name }

// Callee returns the called value of a call instruction.
func (in *Instr) Callee() Value {
	if in.Op != OpCall || len(in.Operands) == 0 {
		return nil
	}
	return in.Operands[0]
}

// Args returns the arguments of a call instruction.
func (in *Instr) Args() []Value {
	if in.Op != OpCall || len(in.Operands) == 0 {
		return nil
	}
	return in.Operands[1:]
}
