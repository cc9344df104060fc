package hir

import (
	"fmt"

	"fortio.org/safecast"

	"kestrel/internal/source"
	"kestrel/internal/types"
)

// Builder constructs resolved trees with consistent types. The front end and
// tests use it; every node it creates is stamped with the current Line.
type Builder struct {
	Types *types.Interner
	Line  uint32
}

// NewBuilder returns a builder over the interner.
func NewBuilder(in *types.Interner) *Builder {
	return &Builder{Types: in}
}

// At sets the line used for subsequent nodes and returns the builder.
func (b *Builder) At(line uint32) *Builder {
	b.Line = line
	return b
}

func (b *Builder) span() source.Span {
	if b.Line == 0 {
		return source.Span{}
	}
	return source.At(b.Line)
}

func (b *Builder) expr(kind ExprKind, typ types.TypeID) *Expr {
	return &Expr{Kind: kind, Span: b.span(), Type: typ}
}

func (b *Builder) Int(v int64) *Expr {
	e := b.expr(ExprIntLit, b.Types.Builtins().Int)
	e.Lit = &Lit{Int: v}
	return e
}

func (b *Builder) Bool(v bool) *Expr {
	e := b.expr(ExprBoolLit, b.Types.Builtins().Bool)
	e.Lit = &Lit{Bool: v}
	return e
}

func (b *Builder) Char(c byte) *Expr {
	e := b.expr(ExprCharLit, b.Types.Builtins().Char)
	e.Lit = &Lit{Char: c}
	return e
}

func (b *Builder) Str(s string) *Expr {
	e := b.expr(ExprStringLit, b.Types.DynArray(b.Types.Builtins().Char))
	e.Lit = &Lit{Str: s}
	return e
}

func (b *Builder) Null() *Expr {
	return b.expr(ExprNull, b.Types.Builtins().Null)
}

// Ident references a name of the given type.
func (b *Builder) Ident(name string, typ types.TypeID) *Expr {
	e := b.expr(ExprIdent, typ)
	e.Name = name
	return e
}

// NS references the namespace at path.
func (b *Builder) NS(path string) *Expr {
	name := path
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			name = path[i+1:]
			break
		}
	}
	return b.Ident(name, b.Types.RegisterNamespace(path))
}

// This is the receiver of the enclosing member body, typed *structType.
func (b *Builder) This(structType types.TypeID) *Expr {
	return b.expr(ExprThis, b.Types.Pointer(structType))
}

func (b *Builder) Member(x *Expr, name string, typ types.TypeID) *Expr {
	e := b.expr(ExprMember, typ)
	e.X = x
	e.Name = name
	return e
}

// Size is the length of an array operand.
func (b *Builder) Size(x *Expr) *Expr {
	return b.Member(x, "Size", b.Types.Builtins().Int)
}

func (b *Builder) Index(x, index *Expr) *Expr {
	e := b.expr(ExprIndex, b.Types.Elem(x.Type))
	e.X = x
	e.Index = index
	return e
}

// Call types the node with the callee's result.
func (b *Builder) Call(callee *Expr, args ...*Expr) *Expr {
	result := b.Types.Builtins().Void
	if info, ok := b.Types.FnInfo(callee.Type); ok {
		result = info.Result
	}
	e := b.expr(ExprCall, result)
	e.Call = &CallExpr{Callee: callee, Args: args}
	return e
}

func (b *Builder) Unary(op UnaryOp, x *Expr) *Expr {
	typ := x.Type
	switch op {
	case OpNot:
		typ = b.Types.Builtins().Bool
	case OpAddr:
		typ = b.Types.Pointer(x.Type)
	case OpDeref:
		typ = b.Types.Elem(x.Type)
	}
	e := b.expr(ExprUnary, typ)
	e.X = x
	e.Unary = op
	return e
}

func (b *Builder) Binary(op BinaryOp, x, y *Expr) *Expr {
	typ := x.Type
	if op.IsComparison() || op == OpLogAnd || op == OpLogOr {
		typ = b.Types.Builtins().Bool
	}
	e := b.expr(ExprBinary, typ)
	e.Binary = &BinaryExpr{Op: op, X: x, Y: y}
	return e
}

func (b *Builder) Is(x *Expr, target types.TypeID) *Expr {
	e := b.expr(ExprIs, b.Types.Builtins().Bool)
	e.X = x
	e.Is = target
	return e
}

// New allocates one zeroed elem.
func (b *Builder) New(elem types.TypeID) *Expr {
	e := b.expr(ExprNew, b.Types.Pointer(elem))
	e.New = &NewExpr{Elem: elem}
	return e
}

// NewArray allocates count zeroed elems as elem[].
func (b *Builder) NewArray(elem types.TypeID, count *Expr) *Expr {
	e := b.expr(ExprNew, b.Types.DynArray(elem))
	e.New = &NewExpr{Elem: elem, Count: count}
	return e
}

func (b *Builder) Cast(x *Expr, target types.TypeID) *Expr {
	e := b.expr(ExprCast, target)
	e.X = x
	return e
}

// Inc builds ++x (prefix) or x++.
func (b *Builder) Inc(x *Expr, prefix bool) *Expr {
	e := b.expr(ExprIncDec, x.Type)
	e.X = x
	e.IncDec = &IncDecExpr{Prefix: prefix}
	return e
}

// Dec builds --x (prefix) or x--.
func (b *Builder) Dec(x *Expr, prefix bool) *Expr {
	e := b.Inc(x, prefix)
	e.IncDec.Dec = true
	return e
}

// ArrayLit builds a fixed array literal of elem.
func (b *Builder) ArrayLit(elem types.TypeID, elems ...*Expr) *Expr {
	n, err := safecast.Conv[uint32](len(elems))
	if err != nil {
		panic(fmt.Errorf("array literal too long: %w", err))
	}
	e := b.expr(ExprArrayLit, b.Types.Array(elem, n))
	e.Elems = elems
	return e
}

func (b *Builder) stmt(kind StmtKind) *Stmt {
	return &Stmt{Kind: kind, Span: b.span()}
}

// Body builds a block.
func (b *Builder) Body(stmts ...*Stmt) *Block {
	return &Block{Span: b.span(), Stmts: stmts}
}

// Let declares one local initialized with value, typed like value when typ
// is NoTypeID.
func (b *Builder) Let(name string, typ types.TypeID, value *Expr) *Stmt {
	if typ == types.NoTypeID && value != nil {
		typ = value.Type
	}
	var values []*Expr
	if value != nil {
		values = []*Expr{value}
	}
	return b.Vars([]string{name}, []types.TypeID{typ}, values...)
}

// Vars declares several locals at once.
func (b *Builder) Vars(names []string, typs []types.TypeID, values ...*Expr) *Stmt {
	s := b.stmt(StmtVar)
	s.Var = &VarStmt{Names: names, Types: typs, Values: values}
	return s
}

func (b *Builder) Do(e *Expr) *Stmt {
	s := b.stmt(StmtExpr)
	s.Expr = e
	return s
}

func (b *Builder) Set(target, value *Expr) *Stmt {
	return b.SetOp(Assign, target, value)
}

func (b *Builder) SetOp(op AssignOp, target, value *Expr) *Stmt {
	s := b.stmt(StmtAssign)
	s.Assign = &AssignStmt{Targets: []*Expr{target}, Op: op, Values: []*Expr{value}}
	return s
}

// SetMulti assigns to several targets from one call or one value each.
func (b *Builder) SetMulti(targets []*Expr, values ...*Expr) *Stmt {
	s := b.stmt(StmtAssign)
	s.Assign = &AssignStmt{Targets: targets, Op: Assign, Values: values}
	return s
}

func (b *Builder) Return(values ...*Expr) *Stmt {
	s := b.stmt(StmtReturn)
	s.Return = &ReturnStmt{Values: values}
	return s
}

func (b *Builder) If(cond *Expr, then, els *Block) *Stmt {
	s := b.stmt(StmtIf)
	s.If = &IfStmt{Cond: cond, Then: then, Else: els}
	return s
}

func (b *Builder) While(cond *Expr, body *Block) *Stmt {
	s := b.stmt(StmtWhile)
	s.Loop = &LoopStmt{Cond: cond, Body: body}
	return s
}

func (b *Builder) DoWhile(body *Block, cond *Expr) *Stmt {
	s := b.stmt(StmtDoWhile)
	s.Loop = &LoopStmt{Cond: cond, Body: body}
	return s
}

func (b *Builder) For(init *Stmt, cond *Expr, post *Stmt, body *Block) *Stmt {
	s := b.stmt(StmtFor)
	s.For = &ForStmt{Init: init, Cond: cond, Post: post, Body: body}
	return s
}

func (b *Builder) Nested(blk *Block) *Stmt {
	s := b.stmt(StmtBlock)
	s.Block = blk
	return s
}

func (b *Builder) Break() *Stmt {
	return b.stmt(StmtBreak)
}

func (b *Builder) Continue() *Stmt {
	return b.stmt(StmtContinue)
}

// Try builds try/catch; name may be empty to leave the thrown value unbound.
func (b *Builder) Try(body *Block, name string, typ types.TypeID, catch *Block) *Stmt {
	s := b.stmt(StmtTry)
	s.Try = &TryStmt{Body: body, CatchName: name, CatchType: typ, Catch: catch}
	return s
}

func (b *Builder) Throw(e *Expr) *Stmt {
	s := b.stmt(StmtThrow)
	s.Expr = e
	return s
}

func (b *Builder) Delete(e *Expr) *Stmt {
	s := b.stmt(StmtDelete)
	s.Expr = e
	return s
}

// P declares a parameter.
func (b *Builder) P(name string, typ types.TypeID) Param {
	return Param{Name: name, Span: b.span(), Type: typ}
}

// Func declares a function; results may be empty (void), one type or
// several (multi-return).
func (b *Builder) Func(name string, params []Param, results []types.TypeID, body *Block) *FuncDecl {
	paramTypes := make([]types.TypeID, len(params))
	for i, p := range params {
		paramTypes[i] = p.Type
	}
	fn := b.Types.RegisterFn(paramTypes, b.Types.RegisterList(results))
	return &FuncDecl{Name: name, Span: b.span(), Type: fn, Params: params, Body: body}
}

// Extern declares a body-less C function.
func (b *Builder) Extern(name string, params []Param, results []types.TypeID) *FuncDecl {
	fn := b.Func(name, params, results, nil)
	fn.Extern = true
	return fn
}

// Property declares a property; get and set may be nil.
func (b *Builder) Property(name string, result types.TypeID, get, set *Block) *PropertyDecl {
	return &PropertyDecl{
		Name: name,
		Span: b.span(),
		Type: b.Types.RegisterProperty(result, get != nil, set != nil),
		Get:  get,
		Set:  set,
	}
}

// Struct declares a struct type registered under qualified.
func (b *Builder) Struct(name, qualified string, implements ...types.TypeID) *TypeDecl {
	return &TypeDecl{
		Name:       name,
		Span:       b.span(),
		Type:       b.Types.RegisterStruct(qualified, b.span()),
		Implements: implements,
	}
}

// Field appends a field to the type.
func (d *TypeDecl) Field(name string, typ types.TypeID) *TypeDecl {
	d.Fields = append(d.Fields, FieldDecl{Name: name, Span: d.Span, Type: typ})
	return d
}

// Method appends a method to the type.
func (d *TypeDecl) Method(fn *FuncDecl) *TypeDecl {
	d.Funcs = append(d.Funcs, fn)
	return d
}

// Prop appends a property to the type.
func (d *TypeDecl) Prop(p *PropertyDecl) *TypeDecl {
	d.Properties = append(d.Properties, p)
	return d
}

// Interface declares an interface registered under qualified.
func (b *Builder) Interface(name, qualified string) *InterfaceDecl {
	return &InterfaceDecl{
		Name: name,
		Span: b.span(),
		Type: b.Types.RegisterInterface(qualified, b.span()),
	}
}

// Method appends a method slot; fn is a KindFn type without receiver.
func (d *InterfaceDecl) Method(name string, fn types.TypeID) *InterfaceDecl {
	d.Members = append(d.Members, InterfaceMember{Kind: IfaceFunc, Name: name, Span: d.Span, Type: fn})
	return d
}

// Prop appends a property; prop is a KindProperty type.
func (d *InterfaceDecl) Prop(name string, prop types.TypeID) *InterfaceDecl {
	d.Members = append(d.Members, InterfaceMember{Kind: IfaceProperty, Name: name, Span: d.Span, Type: prop})
	return d
}

// Global declares a global variable.
func (b *Builder) Global(name string, typ types.TypeID, value *Expr) *VarDecl {
	return &VarDecl{Name: name, Span: b.span(), Type: typ, Value: value}
}

// Add appends declarations to the namespace. Accepted values are
// *Namespace, *TypeDecl, *InterfaceDecl, *FuncDecl, *PropertyDecl and
// *VarDecl (added as a variable); use AddConst for constants.
func (n *Namespace) Add(decls ...any) *Namespace {
	for _, d := range decls {
		switch d := d.(type) {
		case *Namespace:
			n.Members = append(n.Members, Member{Kind: MemberNamespace, Namespace: d})
		case *TypeDecl:
			n.Members = append(n.Members, Member{Kind: MemberType, Type: d})
		case *InterfaceDecl:
			n.Members = append(n.Members, Member{Kind: MemberInterface, Interface: d})
		case *FuncDecl:
			n.Members = append(n.Members, Member{Kind: MemberFunc, Func: d})
		case *PropertyDecl:
			n.Members = append(n.Members, Member{Kind: MemberProperty, Property: d})
		case *VarDecl:
			n.Members = append(n.Members, Member{Kind: MemberVar, Var: d})
		default:
			panic(fmt.Sprintf("hir: cannot add %T to a namespace", d))
		}
	}
	return n
}

// AddConst appends a constant declaration.
func (n *Namespace) AddConst(c *VarDecl) *Namespace {
	n.Members = append(n.Members, Member{Kind: MemberConst, Var: c})
	return n
}

// NewProgram returns an empty program with a root namespace.
func NewProgram(in *types.Interner) *Program {
	return &Program{Types: in, Root: &Namespace{}}
}
