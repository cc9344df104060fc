package llvm

import (
	"fmt"
	"strings"

	"kestrel/internal/ir"
)

// Emitter renders an ir.Module as LLVM assembly.
type Emitter struct {
	mod *ir.Module
	buf strings.Builder
}

type funcEmitter struct {
	emitter *Emitter
	f       *ir.Func
}

// EmitModule renders mod as textual LLVM IR.
func EmitModule(mod *ir.Module) (string, error) {
	if mod == nil {
		return "", nil
	}
	e := &Emitter{mod: mod}
	e.emitPreamble()
	e.emitTypes()
	e.emitGlobals()
	e.emitDecls()
	if err := e.emitFunctions(); err != nil {
		return "", err
	}
	return e.buf.String(), nil
}

func (e *Emitter) emitPreamble() {
	fmt.Fprintf(&e.buf, "; ModuleID = '%s'\n", e.mod.Name)
	fmt.Fprintf(&e.buf, "source_filename = \"%s\"\n", e.mod.Name)
	if e.mod.Triple != "" {
		fmt.Fprintf(&e.buf, "target triple = \"%s\"\n", e.mod.Triple)
	}
	e.buf.WriteString("\n")
}

func (e *Emitter) emitTypes() {
	if len(e.mod.Structs) == 0 {
		return
	}
	for _, t := range e.mod.Structs {
		fmt.Fprintf(&e.buf, "%%%s = type %s\n", t.Name, t.Body())
	}
	e.buf.WriteString("\n")
}

func (e *Emitter) emitGlobals() {
	if len(e.mod.Globals) == 0 {
		return
	}
	for _, g := range e.mod.Globals {
		var sb strings.Builder
		fmt.Fprintf(&sb, "@%s = ", g.Name)
		if g.Private {
			sb.WriteString("private unnamed_addr ")
		}
		if g.Constant {
			sb.WriteString("constant ")
		} else {
			sb.WriteString("global ")
		}
		init := "zeroinitializer"
		if g.Init != nil {
			init = g.Init.Ident()
		}
		fmt.Fprintf(&sb, "%s %s", g.Content, init)
		if g.Align > 0 {
			fmt.Fprintf(&sb, ", align %d", g.Align)
		}
		e.buf.WriteString(sb.String())
		e.buf.WriteString("\n")
	}
	e.buf.WriteString("\n")
}

func (e *Emitter) emitDecls() {
	n := 0
	for _, f := range e.mod.Funcs {
		if !f.IsDecl() {
			continue
		}
		params := make([]string, len(f.Sig.Params))
		for i, p := range f.Sig.Params {
			params[i] = p.String()
		}
		fmt.Fprintf(&e.buf, "declare %s @%s(%s)%s\n", f.Sig.Ret, f.Name, strings.Join(params, ", "), attrSuffix(f.Attrs))
		n++
	}
	if n > 0 {
		e.buf.WriteString("\n")
	}
}

func (e *Emitter) emitFunctions() error {
	for _, f := range e.mod.Funcs {
		if f.IsDecl() {
			continue
		}
		if err := e.emitFunction(f); err != nil {
			return fmt.Errorf("@%s: %w", f.Name, err)
		}
	}
	return nil
}

func attrSuffix(attrs []string) string {
	if len(attrs) == 0 {
		return ""
	}
	return " " + strings.Join(attrs, " ")
}
