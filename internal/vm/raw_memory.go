package vm

import (
	"fmt"

	"fortio.org/safecast"

	"kestrel/internal/ir"
)

// Pointers are allocation id << 32 | byte offset. Id 0 is null.
const offsetBits = 32

// maxAlloc bounds a single allocation.
const maxAlloc = 1 << 28

type allocKind uint8

const (
	allocHeap allocKind = iota
	allocStack
	allocGlobal
	allocCode
)

func (k allocKind) String() string {
	switch k {
	case allocHeap:
		return "heap"
	case allocStack:
		return "stack"
	case allocGlobal:
		return "global"
	default:
		return "code"
	}
}

type rawAlloc struct {
	kind  allocKind
	data  []byte
	align int
	freed bool
	fn    *ir.Func // allocCode
	name  string
}

type rawMemory struct {
	next   uint32
	allocs map[uint32]*rawAlloc
}

func newRawMemory() *rawMemory {
	return &rawMemory{
		next:   1,
		allocs: make(map[uint32]*rawAlloc, 64),
	}
}

func makePtr(id uint32, off uint32) uint64 {
	return uint64(id)<<offsetBits | uint64(off)
}

func splitPtr(p uint64) (id, off uint32) {
	return uint32(p >> offsetBits), uint32(p)
}

func (vm *VM) rawAlloc(kind allocKind, size, align int, name string) (uint64, *VMError) {
	if size < 0 || size > maxAlloc {
		return 0, vm.eb.errorf(PanicOutOfMemory, "allocation of %d bytes", size)
	}
	if align <= 0 {
		align = 1
	}
	id := vm.mem.next
	vm.mem.next++
	vm.mem.allocs[id] = &rawAlloc{
		kind:  kind,
		data:  make([]byte, size),
		align: align,
		name:  name,
	}
	return makePtr(id, 0), nil
}

// access returns the n bytes at p.
func (vm *VM) access(p uint64, n int) ([]byte, *VMError) {
	id, off := splitPtr(p)
	if id == 0 {
		return nil, vm.eb.errorf(PanicNullDeref, "access of %d bytes at null+%d", n, off)
	}
	a, ok := vm.mem.allocs[id]
	if !ok {
		return nil, vm.eb.errorf(PanicOutOfBounds, "dangling pointer %s", formatPtr(p))
	}
	if a.freed {
		return nil, vm.eb.errorf(PanicUseAfterFree, "access to released %s storage %s", a.kind, a.label(id))
	}
	if a.kind == allocCode {
		return nil, vm.eb.errorf(PanicTypeMismatch, "data access to function @%s", a.fn.Name)
	}
	end := int(off) + n
	if end > len(a.data) {
		return nil, vm.eb.errorf(PanicOutOfBounds, "access [%d, %d) of %s, size %d", off, end, a.label(id), len(a.data))
	}
	return a.data[off:end], nil
}

func (vm *VM) rawFree(p uint64) *VMError {
	id, off := splitPtr(p)
	if id == 0 {
		return nil
	}
	a, ok := vm.mem.allocs[id]
	switch {
	case !ok:
		return vm.eb.errorf(PanicInvalidFree, "free of dangling pointer %s", formatPtr(p))
	case a.kind != allocHeap:
		return vm.eb.errorf(PanicInvalidFree, "free of %s storage %s", a.kind, a.label(id))
	case off != 0:
		return vm.eb.errorf(PanicInvalidFree, "free of interior pointer %s", formatPtr(p))
	case a.freed:
		return vm.eb.errorf(PanicDoubleFree, "double free of %s", a.label(id))
	}
	a.freed = true
	a.data = nil
	vm.heapFrees++
	return nil
}

// offset moves p by delta bytes within its allocation's address space.
func (vm *VM) offset(p uint64, delta int64) (uint64, *VMError) {
	id, off := splitPtr(p)
	moved, err := safecast.Conv[uint32](int64(off) + delta)
	if err != nil {
		return 0, vm.eb.errorf(PanicOutOfBounds, "pointer arithmetic %s%+d leaves the address space", formatPtr(p), delta)
	}
	return makePtr(id, moved), nil
}

// funcAt resolves a function pointer.
func (vm *VM) funcAt(p uint64) (*ir.Func, *VMError) {
	id, off := splitPtr(p)
	if id == 0 {
		return nil, vm.eb.makeError(PanicNullDeref, "call through a null function pointer")
	}
	a, ok := vm.mem.allocs[id]
	if !ok || a.kind != allocCode || off != 0 {
		return nil, vm.eb.errorf(PanicTypeMismatch, "call through non-function pointer %s", formatPtr(p))
	}
	return a.fn, nil
}

func (a *rawAlloc) label(id uint32) string {
	if a.name != "" {
		return fmt.Sprintf("#%d (%s)", id, a.name)
	}
	return fmt.Sprintf("#%d", id)
}

func formatPtr(p uint64) string {
	if p == 0 {
		return "null"
	}
	id, off := splitPtr(p)
	return fmt.Sprintf("#%d+%d", id, off)
}
