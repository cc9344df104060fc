package llvm

import (
	"fmt"
	"strings"

	"kestrel/internal/ir"
)

func (e *Emitter) emitFunction(f *ir.Func) error {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = fmt.Sprintf("%s %%%s", p.Typ, p.Name)
	}
	linkage := ""
	if f.Private {
		linkage = "internal "
	}
	fmt.Fprintf(&e.buf, "define %s%s @%s(%s)%s {\n", linkage, f.Sig.Ret, f.Name, strings.Join(params, ", "), attrSuffix(f.Attrs))
	fe := &funcEmitter{emitter: e, f: f}
	for i, bb := range f.Blocks {
		fmt.Fprintf(&e.buf, "%s:\n", bb.Name)
		if i == 0 {
			for _, a := range f.Allocas {
				if err := fe.emitInstr(a); err != nil {
					return err
				}
			}
		}
		for _, in := range bb.Instrs {
			if err := fe.emitInstr(in); err != nil {
				return fmt.Errorf("%s: %w", bb.Name, err)
			}
		}
	}
	e.buf.WriteString("}\n\n")
	return nil
}
