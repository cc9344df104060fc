package ir

import (
	"errors"
	"fmt"
)

// Verify checks module invariants: every block ends in exactly one
// terminator, branch targets belong to the same function, call arity and
// argument types match the signature, and returns match the result type.
func Verify(m *Module) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, f := range m.Funcs {
		if f.IsDecl() {
			continue
		}
		if err := verifyFunc(f); err != nil {
			errs = append(errs, fmt.Errorf("function @%s: %w", f.Name, err))
		}
	}
	for _, g := range m.Globals {
		if g.Init != nil && !g.Init.Type().Equal(g.Content) {
			errs = append(errs, fmt.Errorf("global @%s: initializer %s does not match %s", g.Name, g.Init.Type(), g.Content))
		}
	}
	return errors.Join(errs...)
}

func verifyFunc(f *Func) error {
	var errs []error
	owned := make(map[*Block]bool, len(f.Blocks))
	for _, b := range f.Blocks {
		owned[b] = true
	}
	for _, b := range f.Blocks {
		if len(b.Instrs) == 0 || !b.Instrs[len(b.Instrs)-1].Op.IsTerminator() {
			errs = append(errs, fmt.Errorf("%s: unterminated block", b.Name))
		}
		for i, in := range b.Instrs {
			if in.Op.IsTerminator() && i != len(b.Instrs)-1 {
				errs = append(errs, fmt.Errorf("%s: terminator %s before end of block", b.Name, in.Op))
			}
			for _, t := range in.Targets {
				if !owned[t] {
					errs = append(errs, fmt.Errorf("%s: branch to foreign block %s", b.Name, t.Name))
				}
			}
			if err := verifyInstr(f, in); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", b.Name, err))
			}
		}
	}
	return errors.Join(errs...)
}

func verifyInstr(f *Func, in *Instr) error {
	switch in.Op {
	case OpLoad:
		if !in.Operands[0].Type().IsPtr() {
			return fmt.Errorf("load from non-pointer %s", Operand(in.Operands[0]))
		}
	case OpStore:
		if !in.Operands[1].Type().IsPtr() {
			return fmt.Errorf("store to non-pointer %s", Operand(in.Operands[1]))
		}
	case OpBinary, OpICmp:
		x, y := in.Operands[0].Type(), in.Operands[1].Type()
		if !x.Equal(y) {
			return fmt.Errorf("%s operands differ: %s vs %s", in.Op, x, y)
		}
	case OpCondBr:
		if !in.Operands[0].Type().Equal(I1) {
			return fmt.Errorf("branch condition is %s, want i1", in.Operands[0].Type())
		}
	case OpCall:
		args := in.Args()
		if len(args) != len(in.Sig.Params) {
			return fmt.Errorf("call to %s passes %d arguments, signature has %d", in.Callee().Ident(), len(args), len(in.Sig.Params))
		}
		for i, a := range args {
			if !a.Type().Equal(in.Sig.Params[i]) {
				return fmt.Errorf("call to %s: argument %d is %s, want %s", in.Callee().Ident(), i, a.Type(), in.Sig.Params[i])
			}
		}
		if callee, ok := in.Callee().(*Func); ok && !callee.Sig.Equal(in.Sig) {
			return fmt.Errorf("call to %s uses signature %s, declared %s", callee.Ident(), in.Sig, callee.Sig)
		}
	case OpRet:
		ret := f.Sig.Ret
		switch {
		case len(in.Operands) == 0 && !ret.IsVoid():
			return fmt.Errorf("ret void in function returning %s", ret)
		case len(in.Operands) == 1 && !in.Operands[0].Type().Equal(ret):
			return fmt.Errorf("ret %s in function returning %s", in.Operands[0].Type(), ret)
		}
	}
	return nil
}
