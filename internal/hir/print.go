package hir

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"kestrel/internal/types"
)

// Printer dumps a resolved tree in a source-like notation with every
// expression annotated by its type.
type Printer struct {
	w      io.Writer
	types  *types.Interner
	indent int
	err    error
}

// NewPrinter creates a new printer.
func NewPrinter(w io.Writer, in *types.Interner) *Printer {
	return &Printer{w: w, types: in}
}

// Dump writes the program to w.
func Dump(w io.Writer, prog *Program) error {
	p := NewPrinter(w, prog.Types)
	p.printNamespace(prog.Root)
	return p.err
}

func (p *Printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *Printer) line(format string, args ...any) {
	p.printf("%s", strings.Repeat("  ", p.indent))
	p.printf(format, args...)
	p.printf("\n")
}

func (p *Printer) typ(id types.TypeID) string {
	return types.Label(p.types, id)
}

func (p *Printer) printNamespace(ns *Namespace) {
	if ns == nil {
		return
	}
	if ns.Name != "" {
		p.line("namespace %s {", ns.Name)
		p.indent++
		defer func() {
			p.indent--
			p.line("}")
		}()
	}
	for _, m := range ns.Members {
		switch m.Kind {
		case MemberNamespace:
			p.printNamespace(m.Namespace)
		case MemberType:
			p.printType(m.Type)
		case MemberInterface:
			p.printInterface(m.Interface)
		case MemberFunc:
			p.printFunc(m.Func)
		case MemberProperty:
			p.printProperty(m.Property)
		case MemberVar, MemberConst:
			kw := "var"
			if m.Kind == MemberConst {
				kw = "const"
			}
			if m.Var.Value != nil {
				p.line("%s %s %s = %s", kw, m.Var.Name, p.typ(m.Var.Type), p.expr(m.Var.Value))
			} else {
				p.line("%s %s %s", kw, m.Var.Name, p.typ(m.Var.Type))
			}
		}
	}
}

func (p *Printer) printType(d *TypeDecl) {
	impl := make([]string, len(d.Implements))
	for i, id := range d.Implements {
		impl[i] = p.typ(id)
	}
	if len(impl) > 0 {
		p.line("type %s is %s {", d.Name, strings.Join(impl, ", "))
	} else {
		p.line("type %s {", d.Name)
	}
	p.indent++
	for _, f := range d.Fields {
		p.line("%s %s", f.Name, p.typ(f.Type))
	}
	for _, fn := range d.Funcs {
		p.printFunc(fn)
	}
	for _, prop := range d.Properties {
		p.printProperty(prop)
	}
	p.indent--
	p.line("}")
}

func (p *Printer) printInterface(d *InterfaceDecl) {
	p.line("interface %s {", d.Name)
	p.indent++
	for _, m := range d.Members {
		p.line("%s %s", m.Name, p.typ(m.Type))
	}
	p.indent--
	p.line("}")
}

func (p *Printer) printFunc(fn *FuncDecl) {
	params := make([]string, len(fn.Params))
	for i, prm := range fn.Params {
		params[i] = prm.Name + " " + p.typ(prm.Type)
	}
	res := ""
	if info, ok := p.types.FnInfo(fn.Type); ok && info.Result != p.types.Builtins().Void {
		res = " " + p.typ(info.Result)
	}
	head := fmt.Sprintf("%s(%s)%s", fn.Name, strings.Join(params, ", "), res)
	if fn.Extern || fn.Body == nil {
		p.line("extern %s", head)
		return
	}
	p.line("%s {", head)
	p.printStmts(fn.Body)
	p.line("}")
}

func (p *Printer) printProperty(prop *PropertyDecl) {
	p.line("property %s %s {", prop.Name, p.typ(prop.Type))
	p.indent++
	if prop.Get != nil {
		p.line("get {")
		p.printStmts(prop.Get)
		p.line("}")
	}
	if prop.Set != nil {
		p.line("set {")
		p.printStmts(prop.Set)
		p.line("}")
	}
	p.indent--
	p.line("}")
}

func (p *Printer) printStmts(b *Block) {
	p.indent++
	if b != nil {
		for _, s := range b.Stmts {
			p.printStmt(s)
		}
	}
	p.indent--
}

func (p *Printer) printStmt(s *Stmt) {
	switch s.Kind {
	case StmtVar:
		p.line("%s", p.varStmt(s.Var))
	case StmtExpr:
		p.line("%s", p.expr(s.Expr))
	case StmtAssign:
		p.line("%s %s %s", p.exprList(s.Assign.Targets), s.Assign.Op, p.exprList(s.Assign.Values))
	case StmtReturn:
		if len(s.Return.Values) == 0 {
			p.line("return")
		} else {
			p.line("return %s", p.exprList(s.Return.Values))
		}
	case StmtIf:
		p.line("if %s {", p.expr(s.If.Cond))
		p.printStmts(s.If.Then)
		if s.If.Else != nil {
			p.line("} else {")
			p.printStmts(s.If.Else)
		}
		p.line("}")
	case StmtWhile:
		p.line("while %s {", p.expr(s.Loop.Cond))
		p.printStmts(s.Loop.Body)
		p.line("}")
	case StmtDoWhile:
		p.line("do {")
		p.printStmts(s.Loop.Body)
		p.line("} while %s", p.expr(s.Loop.Cond))
	case StmtFor:
		p.line("for %s; %s; %s {", p.simple(s.For.Init), p.expr(s.For.Cond), p.simple(s.For.Post))
		p.printStmts(s.For.Body)
		p.line("}")
	case StmtBlock:
		p.line("{")
		p.printStmts(s.Block)
		p.line("}")
	case StmtBreak:
		p.line("break")
	case StmtContinue:
		p.line("continue")
	case StmtTry:
		p.line("try {")
		p.printStmts(s.Try.Body)
		if s.Try.CatchName != "" {
			p.line("} catch %s %s {", s.Try.CatchName, p.typ(s.Try.CatchType))
		} else {
			p.line("} catch {")
		}
		p.printStmts(s.Try.Catch)
		p.line("}")
	case StmtThrow:
		p.line("throw %s", p.expr(s.Expr))
	case StmtDelete:
		p.line("delete %s", p.expr(s.Expr))
	default:
		p.line("<%s>", s.Kind)
	}
}

func (p *Printer) simple(s *Stmt) string {
	if s == nil {
		return ""
	}
	switch s.Kind {
	case StmtVar:
		return p.varStmt(s.Var)
	case StmtExpr:
		return p.expr(s.Expr)
	case StmtAssign:
		return fmt.Sprintf("%s %s %s", p.exprList(s.Assign.Targets), s.Assign.Op, p.exprList(s.Assign.Values))
	}
	return "<" + s.Kind.String() + ">"
}

func (p *Printer) varStmt(v *VarStmt) string {
	decl := make([]string, len(v.Names))
	for i, name := range v.Names {
		decl[i] = name
		if i < len(v.Types) {
			decl[i] += " " + p.typ(v.Types[i])
		}
	}
	out := "var " + strings.Join(decl, ", ")
	if len(v.Values) > 0 {
		out += " = " + p.exprList(v.Values)
	}
	return out
}

func (p *Printer) exprList(list []*Expr) string {
	parts := make([]string, len(list))
	for i, e := range list {
		parts[i] = p.expr(e)
	}
	return strings.Join(parts, ", ")
}

func (p *Printer) expr(e *Expr) string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case ExprIntLit:
		return strconv.FormatInt(e.Lit.Int, 10)
	case ExprBoolLit:
		return strconv.FormatBool(e.Lit.Bool)
	case ExprCharLit:
		return strconv.QuoteRune(rune(e.Lit.Char))
	case ExprStringLit:
		return strconv.Quote(e.Lit.Str)
	case ExprNull:
		return "null"
	case ExprIdent:
		return e.Name
	case ExprThis:
		return "this"
	case ExprMember:
		return p.expr(e.X) + "." + e.Name
	case ExprIndex:
		return fmt.Sprintf("%s[%s]", p.expr(e.X), p.expr(e.Index))
	case ExprCall:
		return fmt.Sprintf("%s(%s)", p.expr(e.Call.Callee), p.exprList(e.Call.Args))
	case ExprUnary:
		return e.Unary.String() + p.expr(e.X)
	case ExprBinary:
		return fmt.Sprintf("(%s %s %s)", p.expr(e.Binary.X), e.Binary.Op, p.expr(e.Binary.Y))
	case ExprIs:
		return fmt.Sprintf("(%s is %s)", p.expr(e.X), p.typ(e.Is))
	case ExprNew:
		if e.New.Count != nil {
			return fmt.Sprintf("new %s[%s]", p.typ(e.New.Elem), p.expr(e.New.Count))
		}
		return "new " + p.typ(e.New.Elem)
	case ExprCast:
		return fmt.Sprintf("%s(%s)", p.typ(e.Type), p.expr(e.X))
	case ExprIncDec:
		op := "++"
		if e.IncDec.Dec {
			op = "--"
		}
		if e.IncDec.Prefix {
			return op + p.expr(e.X)
		}
		return p.expr(e.X) + op
	case ExprArrayLit:
		return "[" + p.exprList(e.Elems) + "]"
	default:
		return "<" + e.Kind.String() + ">"
	}
}
