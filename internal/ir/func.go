package ir

import (
	"fmt"
)

// Func is a function declaration or definition.
type Func struct {
	Name    string
	Sig     *Type
	Params  []*Param
	Blocks  []*Block
	Allocas []*Instr // emitted at the top of the entry block
	Attrs   []string
	Private bool
	Module  *Module

	seq   int
	names map[string]bool
}

func (f *Func) Type() *Type   { return Ptr }
func (f *Func) Ident() string { return "@" + f.Name }

// IsDecl reports whether f has no body.
func (f *Func) IsDecl() bool {
	return len(f.Blocks) == 0
}

// Entry returns the first block, creating it when the body is empty.
func (f *Func) Entry() *Block {
	if len(f.Blocks) == 0 {
		return f.NewBlock("entry")
	}
	return f.Blocks[0]
}

// NewBlock appends a block. Labels are unique within the function.
func (f *Func) NewBlock(hint string) *Block {
	name := hint
	if len(f.Blocks) > 0 || hint != "entry" {
		name = f.unique(hint)
	}
	b := &Block{Name: name, Parent: f}
	f.Blocks = append(f.Blocks, b)
	return b
}

func (f *Func) unique(hint string) string {
	if hint == "" {
		hint = "t"
	}
	f.seq++
	return fmt.Sprintf("%s.%d", hint, f.seq)
}

// Alloca reserves a stack slot of type t in the entry block.
func (f *Func) Alloca(t *Type, hint string) *Instr {
	in := &Instr{Op: OpAlloca, Name: f.unique(hint), Typ: Ptr, Elem: t}
	f.Allocas = append(f.Allocas, in)
	return in
}

// Block is a basic block. Instructions are appended through its emission
// methods; once a terminator is emitted the block is closed and any further
// emission panics.
type Block struct {
	Name   string
	Parent *Func
	Instrs []*Instr
}

func (b *Block) Type() *Type   { return Ptr }
func (b *Block) Ident() string { return "%" + b.Name }

// Terminator returns the final instruction when the block is closed.
func (b *Block) Terminator() *Instr {
	if n := len(b.Instrs); n > 0 && b.Instrs[n-1].Op.IsTerminator() {
		return b.Instrs[n-1]
	}
	return nil
}

// Terminated reports whether the block is closed.
func (b *Block) Terminated() bool {
	return b.Terminator() != nil
}

func (b *Block) emit(in *Instr) *Instr {
	if b.Terminated() {
		panic(fmt.Sprintf("ir: emit %s into terminated block %s in @%s", in.Op, b.Name, b.Parent.Name))
	}
	b.Instrs = append(b.Instrs, in)
	return in
}

func (b *Block) named(in *Instr) *Instr {
	in.Name = b.Parent.unique("t")
	return b.emit(in)
}

// Load reads a t from ptr.
func (b *Block) Load(t *Type, ptr Value) *Instr {
	return b.named(&Instr{Op: OpLoad, Typ: t, Operands: []Value{ptr}})
}

// Store writes v to ptr.
func (b *Block) Store(v, ptr Value) {
	b.emit(&Instr{Op: OpStore, Operands: []Value{v, ptr}})
}

// GEP computes an address inside an object of type elem at base.
func (b *Block) GEP(elem *Type, base Value, indices ...Value) *Instr {
	ops := append([]Value{base}, indices...)
	return b.named(&Instr{Op: OpGEP, Typ: Ptr, Elem: elem, Operands: ops})
}

// FieldPtr addresses field i of the struct st stored at base.
func (b *Block) FieldPtr(st *Type, base Value, i int) *Instr {
	return b.GEP(st, base, Int(I32, 0), Int(I32, int64(i)))
}

// ElemPtr addresses element idx of an array of elem starting at base.
func (b *Block) ElemPtr(elem *Type, base, idx Value) *Instr {
	return b.GEP(elem, base, idx)
}

// Binary emits an arithmetic or bitwise operation.
func (b *Block) Binary(op BinOp, x, y Value) *Instr {
	return b.named(&Instr{Op: OpBinary, Bin: op, Typ: x.Type(), Operands: []Value{x, y}})
}

// BinaryNSW emits an operation with the no-signed-wrap flag.
func (b *Block) BinaryNSW(op BinOp, x, y Value) *Instr {
	in := b.Binary(op, x, y)
	in.NSW = true
	return in
}

// ICmp compares two integers or pointers.
func (b *Block) ICmp(pred Pred, x, y Value) *Instr {
	return b.named(&Instr{Op: OpICmp, Pred: pred, Typ: I1, Operands: []Value{x, y}})
}

// Cast converts v to t.
func (b *Block) Cast(op CastOp, v Value, t *Type) *Instr {
	return b.named(&Instr{Op: OpCast, Cast: op, Typ: t, Operands: []Value{v}})
}

// Call invokes callee with signature sig. Calls to void functions produce
// no value.
func (b *Block) Call(callee Value, sig *Type, args ...Value) *Instr {
	in := &Instr{Op: OpCall, Typ: sig.Ret, Sig: sig, Operands: append([]Value{callee}, args...)}
	if f, ok := callee.(*Func); ok {
		in.Attrs = f.Attrs
	}
	if sig.Ret.IsVoid() {
		return b.emit(in)
	}
	return b.named(in)
}

// ExtractValue reads a member of an aggregate value.
func (b *Block) ExtractValue(agg Value, index ...int) *Instr {
	return b.named(&Instr{Op: OpExtractValue, Typ: memberType(agg.Type(), index), Operands: []Value{agg}, Index: index})
}

// InsertValue returns agg with one member replaced by v.
func (b *Block) InsertValue(agg, v Value, index ...int) *Instr {
	return b.named(&Instr{Op: OpInsertValue, Typ: agg.Type(), Operands: []Value{agg, v}, Index: index})
}

// Br jumps to target.
func (b *Block) Br(target *Block) {
	b.emit(&Instr{Op: OpBr, Targets: []*Block{target}})
}

// CondBr branches on an i1.
func (b *Block) CondBr(cond Value, then, els *Block) {
	b.emit(&Instr{Op: OpCondBr, Operands: []Value{cond}, Targets: []*Block{then, els}})
}

// Ret returns v.
func (b *Block) Ret(v Value) {
	b.emit(&Instr{Op: OpRet, Operands: []Value{v}})
}

// RetVoid returns from a void function.
func (b *Block) RetVoid() {
	b.emit(&Instr{Op: OpRet})
}

// Unreachable marks the end of a path that cannot be reached.
func (b *Block) Unreachable() {
	b.emit(&Instr{Op: OpUnreachable})
}

// memberType walks index through nested aggregates.
func memberType(t *Type, index []int) *Type {
	for _, i := range index {
		switch {
		case t == nil:
			return nil
		case t.Kind == TypeStruct && i >= 0 && i < len(t.Fields):
			t = t.Fields[i]
		case t.Kind == TypeArray:
			t = t.Elem
		default:
			return nil
		}
	}
	return t
}

// MemberType is the type reached by walking index into t.
func MemberType(t *Type, index ...int) *Type {
	return memberType(t, index)
}
