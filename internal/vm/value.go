package vm

import (
	"encoding/binary"
	"slices"

	"kestrel/internal/ir"
)

// Value is a runtime value. Integers are kept sign-extended to 64 bits
// (i1 as 0 or 1), pointers as raw bits; aggregates hold their members.
type Value struct {
	N     int64
	Elems []Value
}

// Ptr returns the value as a pointer.
func (v Value) Ptr() uint64 {
	return uint64(v.N)
}

func ptrValue(p uint64) Value {
	return Value{N: int64(p)}
}

// canon wraps n to the width of t.
func canon(t *ir.Type, n int64) int64 {
	switch {
	case t.Bits == 1:
		return n & 1
	case t.Bits > 0 && t.Bits < 64:
		shift := 64 - t.Bits
		return n << shift >> shift
	}
	return n
}

// unsigned returns n as an unsigned number of width t.
func unsigned(t *ir.Type, n int64) uint64 {
	if t.Bits >= 64 || t.Bits <= 0 {
		return uint64(n)
	}
	return uint64(n) & (1<<t.Bits - 1)
}

func zeroValue(t *ir.Type) Value {
	switch t.Kind {
	case ir.TypeStruct:
		elems := make([]Value, len(t.Fields))
		for i, f := range t.Fields {
			elems[i] = zeroValue(f)
		}
		return Value{Elems: elems}
	case ir.TypeArray:
		elems := make([]Value, t.Len)
		for i := range elems {
			elems[i] = zeroValue(t.Elem)
		}
		return Value{Elems: elems}
	}
	return Value{}
}

func cloneValue(v Value) Value {
	if v.Elems == nil {
		return v
	}
	elems := slices.Clone(v.Elems)
	for i := range elems {
		elems[i] = cloneValue(elems[i])
	}
	return Value{N: v.N, Elems: elems}
}

// sizeOf returns the store size of t on the VM target.
func (vm *VM) sizeOf(t *ir.Type) int {
	n, err := vm.layout.SizeOf(t)
	if err != nil {
		panic(vm.eb.errorf(PanicTypeMismatch, "size of %s: %v", t, err))
	}
	return n
}

func (vm *VM) stride(t *ir.Type) int {
	n, err := vm.layout.Stride(t)
	if err != nil {
		panic(vm.eb.errorf(PanicTypeMismatch, "stride of %s: %v", t, err))
	}
	return n
}

func (vm *VM) fieldOffset(st *ir.Type, i int) int {
	n, err := vm.layout.FieldOffset(st, i)
	if err != nil {
		panic(vm.eb.errorf(PanicTypeMismatch, "field %d of %s: %v", i, st, err))
	}
	return n
}

// encode writes v as a t into buf, which holds exactly sizeOf(t) bytes.
func (vm *VM) encode(t *ir.Type, v Value, buf []byte) {
	switch t.Kind {
	case ir.TypeInt:
		putInt(buf, uint64(v.N))
	case ir.TypePtr:
		putInt(buf, v.Ptr())
	case ir.TypeStruct:
		if len(v.Elems) != len(t.Fields) {
			panic(vm.eb.typeMismatch("store of a malformed " + t.String()))
		}
		for i, f := range t.Fields {
			off := vm.fieldOffset(t, i)
			vm.encode(f, v.Elems[i], buf[off:off+vm.sizeOf(f)])
		}
	case ir.TypeArray:
		if len(v.Elems) != t.Len {
			panic(vm.eb.typeMismatch("store of a malformed " + t.String()))
		}
		stride, size := vm.stride(t.Elem), vm.sizeOf(t.Elem)
		for i := 0; i < t.Len; i++ {
			vm.encode(t.Elem, v.Elems[i], buf[i*stride:i*stride+size])
		}
	}
}

// decode reads a t from buf.
func (vm *VM) decode(t *ir.Type, buf []byte) Value {
	switch t.Kind {
	case ir.TypeInt:
		return Value{N: canon(t, int64(getInt(buf)))}
	case ir.TypePtr:
		return ptrValue(getInt(buf))
	case ir.TypeStruct:
		elems := make([]Value, len(t.Fields))
		for i, f := range t.Fields {
			off := vm.fieldOffset(t, i)
			elems[i] = vm.decode(f, buf[off:off+vm.sizeOf(f)])
		}
		return Value{Elems: elems}
	case ir.TypeArray:
		elems := make([]Value, t.Len)
		stride, size := vm.stride(t.Elem), vm.sizeOf(t.Elem)
		for i := range elems {
			elems[i] = vm.decode(t.Elem, buf[i*stride:i*stride+size])
		}
		return Value{Elems: elems}
	}
	return Value{}
}

func putInt(buf []byte, n uint64) {
	switch len(buf) {
	case 1:
		buf[0] = byte(n)
	case 2:
		binary.LittleEndian.PutUint16(buf, uint16(n))
	case 4:
		binary.LittleEndian.PutUint32(buf, uint32(n))
	case 8:
		binary.LittleEndian.PutUint64(buf, n)
	}
}

func getInt(buf []byte) uint64 {
	switch len(buf) {
	case 1:
		return uint64(buf[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(buf))
	case 4:
		return uint64(binary.LittleEndian.Uint32(buf))
	case 8:
		return binary.LittleEndian.Uint64(buf)
	}
	return 0
}

// Load reads a t at pointer p.
func (vm *VM) Load(t *ir.Type, p uint64) (v Value, err error) {
	defer vm.recoverInto(&err)
	buf, verr := vm.access(p, vm.sizeOf(t))
	if verr != nil {
		return Value{}, verr
	}
	return vm.decode(t, buf), nil
}

// Store writes v as a t at pointer p.
func (vm *VM) Store(t *ir.Type, p uint64, v Value) (err error) {
	defer vm.recoverInto(&err)
	buf, verr := vm.access(p, vm.sizeOf(t))
	if verr != nil {
		return verr
	}
	vm.encode(t, v, buf)
	return nil
}
