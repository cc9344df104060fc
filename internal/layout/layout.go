package layout

import (
	"kestrel/internal/ir"
)

// TypeLayout is the ABI layout of a type for a specific Target.
type TypeLayout struct {
	Size  int
	Align int

	// Struct-only:
	FieldOffsets []int
}

// LayoutEngine computes memory layout for IR types.
type LayoutEngine struct {
	Target Target

	cache map[*ir.Type]TypeLayout
}

// New creates a new LayoutEngine for the specified target.
func New(target Target) *LayoutEngine {
	return &LayoutEngine{
		Target: target,
		cache:  make(map[*ir.Type]TypeLayout, 64),
	}
}

type layoutState struct {
	stack []*ir.Type
	index map[*ir.Type]int
}

// LayoutOf computes the layout of a type. Named structs are cached.
func (e *LayoutEngine) LayoutOf(t *ir.Type) (TypeLayout, error) {
	if e.cache == nil {
		e.cache = make(map[*ir.Type]TypeLayout, 64)
	}
	state := &layoutState{index: make(map[*ir.Type]int, 8)}
	l, err := e.layoutOf(t, state)
	if err != nil {
		return l, err
	}
	return l, nil
}

func (e *LayoutEngine) layoutOf(t *ir.Type, state *layoutState) (TypeLayout, *LayoutError) {
	if t == nil {
		return TypeLayout{Size: 0, Align: 1}, nil
	}
	named := t.Kind == ir.TypeStruct && t.Name != ""
	if !named {
		return e.computeLayout(t, state)
	}
	if cached, ok := e.cache[t]; ok {
		return cached, nil
	}
	if idx, ok := state.index[t]; ok {
		cycle := make([]string, 0, len(state.stack)-idx+1)
		for _, s := range state.stack[idx:] {
			cycle = append(cycle, s.String())
		}
		cycle = append(cycle, t.String())
		return TypeLayout{Size: 0, Align: 1}, &LayoutError{
			Kind:  LayoutErrRecursiveUnsized,
			Type:  t.String(),
			Cycle: cycle,
		}
	}
	if t.Opaque {
		return TypeLayout{Size: 0, Align: 1}, &LayoutError{Kind: LayoutErrOpaque, Type: t.String()}
	}
	state.index[t] = len(state.stack)
	state.stack = append(state.stack, t)
	l, err := e.computeLayout(t, state)
	state.stack = state.stack[:len(state.stack)-1]
	delete(state.index, t)
	if err == nil {
		e.cache[t] = l
	}
	return l, err
}

// SizeOf returns the size of a type in bytes.
func (e *LayoutEngine) SizeOf(t *ir.Type) (int, error) {
	l, err := e.LayoutOf(t)
	return l.Size, err
}

// AlignOf returns the alignment requirement of a type in bytes.
func (e *LayoutEngine) AlignOf(t *ir.Type) (int, error) {
	l, err := e.LayoutOf(t)
	return l.Align, err
}

// FieldOffset returns the byte offset of a struct field.
func (e *LayoutEngine) FieldOffset(structT *ir.Type, fieldIdx int) (int, error) {
	l, err := e.LayoutOf(structT)
	if err != nil {
		return 0, err
	}
	if fieldIdx < 0 || fieldIdx >= len(l.FieldOffsets) {
		return 0, nil
	}
	return l.FieldOffsets[fieldIdx], nil
}

// Stride returns the distance between consecutive array elements.
func (e *LayoutEngine) Stride(t *ir.Type) (int, error) {
	l, err := e.LayoutOf(t)
	if err != nil {
		return 0, err
	}
	return roundUp(l.Size, l.Align), nil
}
