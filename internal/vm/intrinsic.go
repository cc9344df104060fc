package vm

import (
	"fmt"

	"kestrel/internal/ir"
)

// jmpTarget is the continuation recorded by setjmp.
type jmpTarget struct {
	frame *Frame
	depth int
	block *ir.Block
	ip    int
	call  *ir.Instr
}

type intrinsicFunc func(vm *VM, fr *Frame, call *ir.Instr, args []Value) Value

// intrinsics are the C library functions the VM provides to extern
// declarations.
var intrinsics = map[string]struct {
	arity int
	fn    intrinsicFunc
}{
	"malloc":  {1, (*VM).malloc},
	"free":    {1, (*VM).free},
	"_setjmp": {1, (*VM).setjmp},
	"setjmp":  {1, (*VM).setjmp},
	"longjmp": {2, (*VM).longjmp},
	"putchar": {1, (*VM).putchar},
	"exit":    {1, (*VM).exit},
}

func (vm *VM) intrinsic(fr *Frame, call *ir.Instr, fn *ir.Func, args []Value) {
	in, ok := intrinsics[fn.Name]
	if !ok {
		panic(vm.eb.errorf(PanicUnknownFunction, "extern @%s has no VM implementation", fn.Name))
	}
	if len(args) != in.arity {
		panic(vm.eb.errorf(PanicTypeMismatch, "extern @%s takes %d arguments, declared with %d", fn.Name, in.arity, len(args)))
	}
	v := in.fn(vm, fr, call, args)
	t := call.Type()
	if t.IsVoid() || vm.halted {
		return
	}
	if t.IsInt() {
		v.N = canon(t, v.N)
	}
	fr.regs[call] = v
}

func (vm *VM) malloc(_ *Frame, _ *ir.Instr, args []Value) Value {
	n := args[0].N
	if n < 0 || n > maxAlloc {
		panic(vm.eb.errorf(PanicOutOfMemory, "malloc of %d bytes", n))
	}
	p, err := vm.rawAlloc(allocHeap, int(n), 16, "")
	if err != nil {
		panic(err)
	}
	vm.heapAllocs++
	return ptrValue(p)
}

func (vm *VM) free(_ *Frame, _ *ir.Instr, args []Value) Value {
	if err := vm.rawFree(args[0].Ptr()); err != nil {
		panic(err)
	}
	return Value{}
}

// setjmp stores a fresh token in the buffer and remembers where the
// calling frame resumes.
func (vm *VM) setjmp(fr *Frame, call *ir.Instr, args []Value) Value {
	vm.nextJmp++
	token := vm.nextJmp
	buf, err := vm.access(args[0].Ptr(), 8)
	if err != nil {
		panic(err)
	}
	putInt(buf, token)
	vm.jumps[token] = jmpTarget{
		frame: fr,
		depth: len(vm.stack) - 1,
		block: fr.block,
		ip:    fr.ip,
		call:  call,
	}
	return Value{}
}

// longjmp unwinds to the frame that stored the buffer's token and resumes
// it after its setjmp call, which then returns val (1 when val is 0).
func (vm *VM) longjmp(_ *Frame, _ *ir.Instr, args []Value) Value {
	buf, err := vm.access(args[0].Ptr(), 8)
	if err != nil {
		panic(err)
	}
	token := getInt(buf)
	target, ok := vm.jumps[token]
	if !ok {
		panic(vm.eb.errorf(PanicBadJump, "longjmp through a buffer never set (token %d)", token))
	}
	if target.depth >= len(vm.stack) || vm.stack[target.depth] != target.frame {
		panic(vm.eb.errorf(PanicBadJump, "longjmp into @%s after it returned", target.frame.fn.Name))
	}
	for len(vm.stack) > target.depth+1 {
		vm.pop()
	}
	val := canon(ir.I32, args[1].N)
	if val == 0 {
		val = 1
	}
	fr := target.frame
	fr.block, fr.ip = target.block, target.ip
	fr.regs[target.call] = Value{N: val}
	return Value{}
}

func (vm *VM) putchar(_ *Frame, _ *ir.Instr, args []Value) Value {
	if _, err := vm.Out.Write([]byte{byte(args[0].N)}); err != nil {
		panic(vm.eb.makeError(PanicUnimplemented, fmt.Sprintf("putchar: %v", err)))
	}
	return Value{N: int64(byte(args[0].N))}
}

func (vm *VM) exit(_ *Frame, _ *ir.Instr, args []Value) Value {
	vm.halted = true
	vm.exitCode = canon(ir.I32, args[0].N)
	return Value{}
}
