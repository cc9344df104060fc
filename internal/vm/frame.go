package vm

import (
	"kestrel/internal/ir"
)

// Frame represents a function activation record on the call stack.
type Frame struct {
	fn      *ir.Func
	block   *ir.Block
	ip      int
	params  []Value
	regs    map[*ir.Instr]Value
	allocas []uint64
	// call is the instruction in the caller waiting for the result; nil
	// for the frame Run started.
	call *ir.Instr
}

// newFrame creates a frame for fn and reserves its stack slots.
func (vm *VM) newFrame(fn *ir.Func, args []Value, call *ir.Instr) *Frame {
	fr := &Frame{
		fn:     fn,
		block:  fn.Blocks[0],
		params: args,
		regs:   make(map[*ir.Instr]Value, len(fn.Allocas)+16),
		call:   call,
	}
	for _, a := range fn.Allocas {
		p, err := vm.rawAlloc(allocStack, max(vm.sizeOf(a.Elem), 1), a.Align, fn.Name+"."+a.Name)
		if err != nil {
			panic(err)
		}
		fr.allocas = append(fr.allocas, p)
		fr.regs[a] = ptrValue(p)
	}
	return fr
}

// release marks the frame's stack slots dead.
func (vm *VM) release(fr *Frame) {
	for _, p := range fr.allocas {
		id, _ := splitPtr(p)
		if a, ok := vm.mem.allocs[id]; ok {
			a.freed = true
			a.data = nil
		}
	}
	fr.allocas = nil
}

func (vm *VM) top() *Frame {
	return vm.stack[len(vm.stack)-1]
}

// pop removes the top frame.
func (vm *VM) pop() *Frame {
	fr := vm.top()
	vm.stack = vm.stack[:len(vm.stack)-1]
	vm.release(fr)
	return fr
}
