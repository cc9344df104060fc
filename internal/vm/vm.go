package vm

import (
	"io"

	"kestrel/internal/ir"
	"kestrel/internal/layout"
)

// Default limits of a VM.
const (
	DefaultMaxSteps = 50_000_000
	DefaultMaxDepth = 10_000
)

// VM is a direct interpreter of IR modules. Memory is byte addressed with
// the layout of the chosen target, so values round-trip through memory as
// they would in compiled code.
type VM struct {
	Mod *ir.Module
	Out io.Writer
	// MaxSteps and MaxDepth bound execution; zero disables the bound.
	MaxSteps int
	MaxDepth int

	layout  *layout.LayoutEngine
	mem     *rawMemory
	stack   []*Frame
	globals map[*ir.Global]uint64
	funcs   map[*ir.Func]uint64
	jumps   map[uint64]jmpTarget
	nextJmp uint64

	started  bool
	halted   bool
	exitCode int64
	result   Value
	steps    int

	heapAllocs int
	heapFrees  int

	eb *errorBuilder
}

// New creates a VM for mod. Output of putchar goes to out, which may be nil.
func New(mod *ir.Module, target layout.Target, out io.Writer) *VM {
	if out == nil {
		out = io.Discard
	}
	vm := &VM{
		Mod:      mod,
		Out:      out,
		MaxSteps: DefaultMaxSteps,
		MaxDepth: DefaultMaxDepth,
		layout:   layout.New(target),
		mem:      newRawMemory(),
		globals:  make(map[*ir.Global]uint64),
		funcs:    make(map[*ir.Func]uint64),
		jumps:    make(map[uint64]jmpTarget),
	}
	vm.eb = &errorBuilder{vm: vm}
	return vm
}

// start lays out globals and function addresses, then writes the global
// initializers. Initializers may reference any global or function.
func (vm *VM) start() {
	if vm.started {
		return
	}
	vm.started = true
	for _, f := range vm.Mod.Funcs {
		p, err := vm.rawAlloc(allocCode, 0, 1, f.Name)
		if err != nil {
			panic(err)
		}
		id, _ := splitPtr(p)
		vm.mem.allocs[id].fn = f
		vm.funcs[f] = p
	}
	for _, g := range vm.Mod.Globals {
		p, err := vm.rawAlloc(allocGlobal, max(vm.sizeOf(g.Content), 1), g.Align, g.Name)
		if err != nil {
			panic(err)
		}
		vm.globals[g] = p
	}
	for _, g := range vm.Mod.Globals {
		if g.Init == nil {
			continue
		}
		buf, err := vm.access(vm.globals[g], vm.sizeOf(g.Content))
		if err != nil {
			panic(err)
		}
		vm.encode(g.Content, vm.constValue(g.Init), buf)
	}
}

// Run calls the function entry with integer or pointer arguments and
// returns its result, 0 for void functions. When the program calls exit,
// Run returns the exit status instead.
func (vm *VM) Run(entry string, args ...int64) (ret int64, err error) {
	defer vm.recoverInto(&err)
	vm.start()
	fn := vm.Mod.Func(entry)
	if fn == nil || fn.IsDecl() {
		return 0, vm.eb.errorf(PanicUnknownFunction, "no function @%s to run", entry)
	}
	if len(args) != len(fn.Sig.Params) {
		return 0, vm.eb.errorf(PanicTypeMismatch, "@%s takes %d arguments, got %d", entry, len(fn.Sig.Params), len(args))
	}
	vals := make([]Value, len(args))
	for i, a := range args {
		vals[i] = Value{N: a}
		if t := fn.Sig.Params[i]; t.IsInt() {
			vals[i].N = canon(t, a)
		}
	}

	vm.stack = vm.stack[:0]
	vm.halted, vm.steps, vm.result = false, 0, Value{}
	vm.push(vm.newFrame(fn, vals, nil))
	for len(vm.stack) > 0 && !vm.halted {
		vm.step()
	}
	if vm.halted {
		vm.stack = vm.stack[:0]
		return vm.exitCode, nil
	}
	return vm.result.N, nil
}

// Global returns the address of the named global.
func (vm *VM) Global(name string) (uint64, bool) {
	vm.start()
	g := vm.Mod.Global(name)
	if g == nil {
		return 0, false
	}
	return vm.globals[g], true
}

// LiveAllocations is the number of heap allocations not yet freed.
func (vm *VM) LiveAllocations() int {
	return vm.heapAllocs - vm.heapFrees
}

func (vm *VM) push(fr *Frame) {
	if vm.MaxDepth > 0 && len(vm.stack) >= vm.MaxDepth {
		panic(vm.eb.errorf(PanicStackOverflow, "call depth exceeds %d calling @%s", vm.MaxDepth, fr.fn.Name))
	}
	vm.stack = append(vm.stack, fr)
}

func (vm *VM) recoverInto(err *error) {
	if r := recover(); r != nil {
		if e, ok := r.(*VMError); ok {
			vm.stack = vm.stack[:0]
			*err = e
			return
		}
		panic(r)
	}
}
