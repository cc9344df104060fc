package lower

import (
	"context"
	"fmt"
	"strings"

	"kestrel/internal/diag"
	"kestrel/internal/dispatch"
	"kestrel/internal/hir"
	"kestrel/internal/ir"
	"kestrel/internal/layout"
	"kestrel/internal/observ"
	"kestrel/internal/source"
	"kestrel/internal/trace"
	"kestrel/internal/types"
)

// DefaultEntry is the name of the entry function looked up in the root
// namespace.
const DefaultEntry = "Main"

// reservedNamespace prefixes every symbol generated by the compiler.
const reservedNamespace = "kestrel"

// Runtime names the C functions generated code calls.
type Runtime struct {
	Alloc   string
	Free    string
	SetJmp  string
	LongJmp string
}

// DefaultRuntime returns the libc names.
func DefaultRuntime() Runtime {
	return Runtime{
		Alloc:   "malloc",
		Free:    "free",
		SetJmp:  "_setjmp",
		LongJmp: "longjmp",
	}
}

func (rt Runtime) withDefaults() Runtime {
	def := DefaultRuntime()
	if rt.Alloc == "" {
		rt.Alloc = def.Alloc
	}
	if rt.Free == "" {
		rt.Free = def.Free
	}
	if rt.SetJmp == "" {
		rt.SetJmp = def.SetJmp
	}
	if rt.LongJmp == "" {
		rt.LongJmp = def.LongJmp
	}
	return rt
}

// Options configures one lowering run. The zero value lowers for
// x86_64-linux-gnu with the default entry and runtime names.
type Options struct {
	Module  string
	Target  layout.Target
	Entry   string
	Runtime Runtime
	Timer   *observ.Timer
}

// Result is a lowered unit.
type Result struct {
	Module *ir.Module
	// Entry is the lowered entry function, nil for library units.
	Entry *ir.Func
	// Main is the C entry wrapper, generated only together with Entry.
	Main *ir.Func
	// Layout computes byte sizes for Module's target.
	Layout *layout.LayoutEngine
}

// Lower turns a resolved program into an IR module. Declarations are
// processed in three global passes (shells, signatures, bodies) so that
// any declaration may reference any other, across namespaces and
// regardless of order. The first error aborts the unit.
func Lower(ctx context.Context, prog *hir.Program, opts Options) (*Result, error) {
	if prog == nil || prog.Root == nil || prog.Types == nil {
		return nil, diag.Errorf(diag.LowMalformedTree, source.Span{}, "empty program")
	}
	if opts.Target.Triple == "" {
		opts.Target = layout.X86_64LinuxGNU()
	}
	if opts.Entry == "" {
		opts.Entry = DefaultEntry
	}
	if opts.Module == "" {
		opts.Module = "kestrel"
	}
	opts.Runtime = opts.Runtime.withDefaults()

	l := newLowerer(ctx, prog, opts)
	tracer := trace.FromContext(ctx)
	root := trace.Begin(tracer, trace.ScopeDriver, "lower", trace.CurrentSpan(ctx).SpanID)
	l.spanID = root.ID()

	err := l.run()
	detail := "ok"
	if err != nil {
		detail = err.Error()
	}
	root.WithExtra("module", opts.Module).End(detail)
	if err != nil {
		return nil, err
	}
	return &Result{Module: l.mod, Entry: l.entry, Main: l.main, Layout: l.engine}, nil
}

type phase struct {
	name string
	run  func() error
}

func (l *lowerer) run() error {
	phases := []phase{
		{"shells", func() error { return l.walk(l.prog.Root, l.root, l.declareShells) }},
		{"signatures", l.declareSignatures},
		{"bodies", l.lowerBodies},
		{"verify", l.verify},
	}
	for _, p := range phases {
		if err := l.pass(p.name, p.run); err != nil {
			return err
		}
	}
	return nil
}

func (l *lowerer) pass(name string, run func() error) (err error) {
	idx := l.opts.Timer.Begin(name)
	sp := trace.Begin(l.tracer, trace.ScopePass, name, l.spanID)
	parent := l.spanID
	l.spanID = sp.ID()
	defer func() {
		l.spanID = parent
		detail := "ok"
		if err != nil {
			detail = diag.CodeOf(err).ID()
		}
		sp.End(detail)
		l.opts.Timer.End(idx, "")
	}()
	return run()
}

func (l *lowerer) verify() error {
	for _, f := range l.mod.Funcs {
		ir.Prune(f)
	}
	if err := ir.Verify(l.mod); err != nil {
		return diag.Errorf(diag.IRInvalid, source.Span{}, "module %s: %v", l.mod.Name, err)
	}
	return nil
}

// lowerer holds the state of one unit. It is not safe for concurrent use;
// separate units use separate lowerers.
type lowerer struct {
	ctx    context.Context
	prog   *hir.Program
	types  *types.Interner
	opts   Options
	mod    *ir.Module
	engine *layout.LayoutEngine
	res    *layout.Resolver
	disp   *dispatch.Builder

	root  *memberTable
	scope []*memberTable

	typeDecls []typeDecl
	strings   map[string]*ir.Global

	runtime map[string]*ir.Func
	jmpbuf  *ir.Global
	thrown  *ir.Global
	initFn  *funcLowerer
	initEnd *ir.Block

	entry *ir.Func
	main  *ir.Func

	tracer trace.Tracer
	spanID uint64
}

type typeDecl struct {
	decl *hir.TypeDecl
	def  *layout.TypeDef
	node *memberTable
}

func newLowerer(ctx context.Context, prog *hir.Program, opts Options) *lowerer {
	mod := ir.NewModule(opts.Module, opts.Target.Triple)
	engine := layout.New(opts.Target)
	res := layout.NewResolver(prog.Types, mod, engine)
	return &lowerer{
		ctx:     ctx,
		prog:    prog,
		types:   prog.Types,
		opts:    opts,
		mod:     mod,
		engine:  engine,
		res:     res,
		disp:    dispatch.NewBuilder(res),
		root:    newMemberTable("", nil),
		strings: make(map[string]*ir.Global),
		runtime: make(map[string]*ir.Func),
		tracer:  trace.FromContext(ctx),
	}
}

// enter makes node the current namespace until the returned func runs.
func (l *lowerer) enter(node *memberTable) func() {
	l.scope = append(l.scope, node)
	depth := len(l.scope)
	return func() {
		if len(l.scope) != depth {
			panic(fmt.Sprintf("lower: namespace stack corrupted leaving %q", node.path))
		}
		l.scope = l.scope[:depth-1]
	}
}

func (l *lowerer) current() *memberTable {
	if len(l.scope) == 0 {
		return l.root
	}
	return l.scope[len(l.scope)-1]
}

// walk visits ns depth-first with node as the current namespace, calling
// visit for every member that is not a namespace. Nested namespaces are
// visited in member order.
func (l *lowerer) walk(ns *hir.Namespace, node *memberTable, visit func(m hir.Member) error) error {
	pop := l.enter(node)
	defer pop()

	sp := trace.Begin(l.tracer, trace.ScopeModule, "namespace:"+node.label(), l.spanID)
	defer sp.End("")

	for _, m := range ns.Members {
		if err := l.ctx.Err(); err != nil {
			return err
		}
		if m.Kind != hir.MemberNamespace {
			if err := visit(m); err != nil {
				return err
			}
			continue
		}
		if m.Namespace == nil {
			return diag.Errorf(diag.LowMalformedTree, ns.Span, "namespace member without payload")
		}
		child, err := l.childNamespace(node, m.Namespace)
		if err != nil {
			return err
		}
		if err := l.walk(m.Namespace, child, visit); err != nil {
			return err
		}
	}
	return nil
}

// childNamespace returns the member-table node of a nested namespace,
// creating it the first time it is seen.
func (l *lowerer) childNamespace(parent *memberTable, ns *hir.Namespace) (*memberTable, error) {
	if e, ok := parent.lookup(ns.Name); ok {
		if e.kind != entryNamespace {
			return nil, diag.Errorf(diag.LowDuplicateDecl, ns.Span, "namespace %s collides with %s %s", ns.Name, e.kind, e.name)
		}
		return e.node, nil
	}
	if parent == l.root && ns.Name == reservedNamespace {
		return nil, diag.Errorf(diag.LowDuplicateDecl, ns.Span, "namespace %s is reserved", ns.Name)
	}
	child := newMemberTable(ns.Name, parent)
	if err := parent.declare(&entry{kind: entryNamespace, name: ns.Name, span: ns.Span, node: child}); err != nil {
		return nil, err
	}
	return child, nil
}

// reservedSymbol reports whether name lies in the compiler's namespace.
func reservedSymbol(name string) bool {
	return name == reservedNamespace || strings.HasPrefix(name, reservedNamespace+".")
}

// newFunc declares a function, reporting symbol clashes as diagnostics.
func (l *lowerer) newFunc(name string, sig *ir.Type, span source.Span, paramNames ...string) (*ir.Func, error) {
	if l.mod.Func(name) != nil || l.mod.Global(name) != nil {
		return nil, diag.Errorf(diag.LowDuplicateDecl, span, "symbol %s declared twice", name)
	}
	return l.mod.NewFunc(name, sig, paramNames...), nil
}

func (l *lowerer) newGlobal(name string, content *ir.Type, span source.Span) (*ir.Global, error) {
	if l.mod.Func(name) != nil || l.mod.Global(name) != nil {
		return nil, diag.Errorf(diag.LowDuplicateDecl, span, "symbol %s declared twice", name)
	}
	return l.mod.NewGlobal(name, content, nil), nil
}

// atSpan attaches sp to diagnostics raised without a position.
func atSpan(err error, sp source.Span) error {
	if err == nil {
		return nil
	}
	if de, ok := diag.AsError(err); ok {
		return de.At(sp)
	}
	return err
}
