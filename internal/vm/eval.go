package vm

import (
	"kestrel/internal/ir"
)

// step executes one instruction of the top frame. Failures panic with a
// *VMError, recovered by Run.
func (vm *VM) step() {
	vm.steps++
	if vm.MaxSteps > 0 && vm.steps > vm.MaxSteps {
		panic(vm.eb.errorf(PanicStepLimit, "step budget of %d exhausted", vm.MaxSteps))
	}
	fr := vm.top()
	if fr.ip >= len(fr.block.Instrs) {
		panic(vm.eb.errorf(PanicUnimplemented, "fell off the end of %%%s", fr.block.Name))
	}
	in := fr.block.Instrs[fr.ip]
	fr.ip++
	vm.exec(fr, in)
}

func (vm *VM) exec(fr *Frame, in *ir.Instr) {
	switch in.Op {
	case ir.OpAlloca:
		p, err := vm.rawAlloc(allocStack, max(vm.sizeOf(in.Elem), 1), in.Align, fr.fn.Name+"."+in.Name)
		if err != nil {
			panic(err)
		}
		fr.allocas = append(fr.allocas, p)
		fr.regs[in] = ptrValue(p)
	case ir.OpLoad:
		fr.regs[in] = vm.decode(in.Typ, vm.mustAccess(vm.operand(fr, in.Operands[0]).Ptr(), in.Typ))
	case ir.OpStore:
		t := in.Operands[0].Type()
		v := vm.operand(fr, in.Operands[0])
		vm.encode(t, v, vm.mustAccess(vm.operand(fr, in.Operands[1]).Ptr(), t))
	case ir.OpGEP:
		fr.regs[in] = ptrValue(vm.gep(fr, in))
	case ir.OpBinary:
		x, y := vm.operand(fr, in.Operands[0]), vm.operand(fr, in.Operands[1])
		fr.regs[in] = Value{N: vm.binary(in.Bin, in.Typ, x.N, y.N)}
	case ir.OpICmp:
		x, y := vm.operand(fr, in.Operands[0]), vm.operand(fr, in.Operands[1])
		fr.regs[in] = boolValue(compare(in.Pred, x.N, y.N))
	case ir.OpCast:
		fr.regs[in] = Value{N: cast(in.Cast, in.Operands[0].Type(), in.Typ, vm.operand(fr, in.Operands[0]).N)}
	case ir.OpCall:
		vm.call(fr, in)
	case ir.OpExtractValue:
		v := vm.operand(fr, in.Operands[0])
		fr.regs[in] = cloneValue(vm.member(v, in.Index))
	case ir.OpInsertValue:
		agg := cloneValue(vm.operand(fr, in.Operands[0]))
		vm.setMember(&agg, in.Index, vm.operand(fr, in.Operands[1]))
		fr.regs[in] = agg
	case ir.OpBr:
		fr.block, fr.ip = in.Targets[0], 0
	case ir.OpCondBr:
		target := in.Targets[1]
		if vm.operand(fr, in.Operands[0]).N != 0 {
			target = in.Targets[0]
		}
		fr.block, fr.ip = target, 0
	case ir.OpRet:
		var v Value
		if len(in.Operands) == 1 {
			v = vm.operand(fr, in.Operands[0])
		}
		vm.ret(v)
	case ir.OpUnreachable:
		panic(vm.eb.errorf(PanicUnreachable, "unreachable reached in @%s", fr.fn.Name))
	default:
		panic(vm.eb.errorf(PanicUnimplemented, "opcode %s", in.Op))
	}
}

func (vm *VM) mustAccess(p uint64, t *ir.Type) []byte {
	buf, err := vm.access(p, vm.sizeOf(t))
	if err != nil {
		panic(err)
	}
	return buf
}

// operand evaluates v in frame fr; fr is nil for constant contexts.
func (vm *VM) operand(fr *Frame, v ir.Value) Value {
	switch v := v.(type) {
	case *ir.Const:
		return vm.constValue(v)
	case *ir.Global:
		p, ok := vm.globals[v]
		if !ok {
			panic(vm.eb.errorf(PanicTypeMismatch, "global @%s is not part of the module", v.Name))
		}
		return ptrValue(p)
	case *ir.Func:
		p, ok := vm.funcs[v]
		if !ok {
			panic(vm.eb.errorf(PanicUnknownFunction, "function @%s is not part of the module", v.Name))
		}
		return ptrValue(p)
	case *ir.Param:
		if fr != nil && v.Index < len(fr.params) {
			return fr.params[v.Index]
		}
	case *ir.Instr:
		if fr != nil {
			if val, ok := fr.regs[v]; ok {
				return val
			}
		}
		panic(vm.eb.errorf(PanicTypeMismatch, "use of %%%s before its definition", v.Name))
	}
	panic(vm.eb.errorf(PanicTypeMismatch, "operand %s has no value here", v.Ident()))
}

func (vm *VM) constValue(c *ir.Const) Value {
	switch c.Kind {
	case ir.ConstInt:
		return Value{N: canon(c.Typ, c.Int)}
	case ir.ConstNull:
		return Value{}
	case ir.ConstZero:
		return zeroValue(c.Typ)
	case ir.ConstBytes:
		elems := make([]Value, len(c.Bytes))
		for i, b := range c.Bytes {
			elems[i] = Value{N: canon(ir.I8, int64(b))}
		}
		return Value{Elems: elems}
	case ir.ConstAggregate:
		elems := make([]Value, len(c.Elems))
		for i, e := range c.Elems {
			elems[i] = vm.operand(nil, e)
		}
		return Value{Elems: elems}
	}
	panic(vm.eb.errorf(PanicUnimplemented, "constant kind %d", c.Kind))
}

func (vm *VM) gep(fr *Frame, in *ir.Instr) uint64 {
	base := vm.operand(fr, in.Operands[0]).Ptr()
	t := in.Elem
	var delta int64
	for i, op := range in.Operands[1:] {
		n := vm.operand(fr, op).N
		if i == 0 {
			delta += n * int64(vm.stride(t))
			continue
		}
		switch t.Kind {
		case ir.TypeStruct:
			if n < 0 || int(n) >= len(t.Fields) {
				panic(vm.eb.errorf(PanicTypeMismatch, "field %d of %s", n, t))
			}
			delta += int64(vm.fieldOffset(t, int(n)))
			t = t.Fields[n]
		case ir.TypeArray:
			delta += n * int64(vm.stride(t.Elem))
			t = t.Elem
		default:
			panic(vm.eb.errorf(PanicTypeMismatch, "index into %s", t))
		}
	}
	p, err := vm.offset(base, delta)
	if err != nil {
		panic(err)
	}
	return p
}

func (vm *VM) binary(op ir.BinOp, t *ir.Type, x, y int64) int64 {
	switch op {
	case ir.Add:
		return canon(t, x+y)
	case ir.Sub:
		return canon(t, x-y)
	case ir.Mul:
		return canon(t, x*y)
	case ir.SDiv, ir.SRem:
		if y == 0 {
			panic(vm.eb.errorf(PanicDivideByZero, "%s by zero", op))
		}
		if y == -1 {
			// x / -1 overflows only for the minimum value, where it wraps.
			if op == ir.SRem {
				return 0
			}
			return canon(t, -x)
		}
		if op == ir.SDiv {
			return canon(t, x/y)
		}
		return canon(t, x%y)
	case ir.And:
		return canon(t, x&y)
	case ir.Or:
		return canon(t, x|y)
	case ir.Xor:
		return canon(t, x^y)
	case ir.Shl, ir.AShr:
		if y < 0 || y >= int64(t.Bits) {
			panic(vm.eb.errorf(PanicBadShift, "%s by %d on %s", op, y, t))
		}
		if op == ir.Shl {
			return canon(t, x<<y)
		}
		return canon(t, x>>y)
	}
	panic(vm.eb.errorf(PanicUnimplemented, "binary operator %s", op))
}

func compare(p ir.Pred, x, y int64) bool {
	switch p {
	case ir.EQ:
		return x == y
	case ir.NE:
		return x != y
	case ir.SLT:
		return x < y
	case ir.SLE:
		return x <= y
	case ir.SGT:
		return x > y
	case ir.SGE:
		return x >= y
	}
	return false
}

func boolValue(b bool) Value {
	if b {
		return Value{N: 1}
	}
	return Value{}
}

func cast(op ir.CastOp, from, to *ir.Type, n int64) int64 {
	switch op {
	case ir.SExt:
		if from.Bits == 1 {
			return -n
		}
		return canon(to, n)
	case ir.ZExt:
		return canon(to, int64(unsigned(from, n)))
	case ir.Trunc:
		return canon(to, n)
	}
	// ptrtoint and inttoptr keep the bits.
	return n
}

func (vm *VM) member(v Value, index []int) Value {
	for _, i := range index {
		if i < 0 || i >= len(v.Elems) {
			panic(vm.eb.errorf(PanicTypeMismatch, "member %d of an aggregate with %d members", i, len(v.Elems)))
		}
		v = v.Elems[i]
	}
	return v
}

func (vm *VM) setMember(agg *Value, index []int, v Value) {
	cur := agg
	for _, i := range index {
		if i < 0 || i >= len(cur.Elems) {
			panic(vm.eb.errorf(PanicTypeMismatch, "member %d of an aggregate with %d members", i, len(cur.Elems)))
		}
		cur = &cur.Elems[i]
	}
	*cur = cloneValue(v)
}

// call executes a call instruction: externs run immediately, defined
// functions get a new frame.
func (vm *VM) call(fr *Frame, in *ir.Instr) {
	callee := in.Callee()
	var fn *ir.Func
	if f, ok := callee.(*ir.Func); ok {
		fn = f
	} else {
		f, err := vm.funcAt(vm.operand(fr, callee).Ptr())
		if err != nil {
			panic(err)
		}
		fn = f
	}
	if !fn.Sig.Equal(in.Sig) {
		panic(vm.eb.errorf(PanicTypeMismatch, "call of @%s as %s, declared %s", fn.Name, in.Sig, fn.Sig))
	}
	args := make([]Value, len(in.Args()))
	for i, a := range in.Args() {
		args[i] = vm.operand(fr, a)
	}
	if fn.IsDecl() {
		vm.intrinsic(fr, in, fn, args)
		return
	}
	vm.push(vm.newFrame(fn, args, in))
}

// ret pops the top frame and hands v to the waiting call.
func (vm *VM) ret(v Value) {
	fr := vm.pop()
	if fr.call == nil {
		vm.result = v
		return
	}
	if !fr.call.Type().IsVoid() {
		vm.top().regs[fr.call] = v
	}
}
