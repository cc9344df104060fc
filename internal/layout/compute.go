package layout

import (
	"kestrel/internal/ir"
)

func (e *LayoutEngine) computeLayout(t *ir.Type, state *layoutState) (TypeLayout, *LayoutError) {
	switch t.Kind {
	case ir.TypeVoid:
		return TypeLayout{Size: 0, Align: 1}, nil
	case ir.TypeInt:
		return scalarLayoutBytes((t.Bits + 7) / 8), nil
	case ir.TypePtr:
		return e.ptrLayout(), nil
	case ir.TypeArray:
		return e.arrayFixedLayout(t, state)
	case ir.TypeStruct:
		return e.structLayout(t, state)
	default:
		return TypeLayout{Size: 0, Align: 1}, &LayoutError{Kind: LayoutErrUnsized, Type: t.String()}
	}
}

func (e *LayoutEngine) ptrLayout() TypeLayout {
	ptrSize := e.Target.PtrSize
	ptrAlign := e.Target.PtrAlign
	if ptrSize <= 0 {
		ptrSize = 8
	}
	if ptrAlign <= 0 {
		ptrAlign = ptrSize
	}
	return TypeLayout{Size: ptrSize, Align: ptrAlign}
}

func scalarLayoutBytes(size int) TypeLayout {
	if size <= 0 {
		return TypeLayout{Size: 0, Align: 1}
	}
	align := 1
	for align < size && align < 16 {
		align <<= 1
	}
	return TypeLayout{Size: size, Align: align}
}

func roundUp(n, align int) int {
	if align <= 1 {
		return n
	}
	r := n % align
	if r == 0 {
		return n
	}
	return n + (align - r)
}

func (e *LayoutEngine) arrayFixedLayout(t *ir.Type, state *layoutState) (TypeLayout, *LayoutError) {
	elemLayout, err := e.layoutOf(t.Elem, state)
	if err != nil {
		return TypeLayout{Size: 0, Align: 1}, err
	}
	elemAlign := max(elemLayout.Align, 1)
	stride := roundUp(elemLayout.Size, elemAlign)
	n := max(t.Len, 0)
	return TypeLayout{
		Size:  stride * n,
		Align: elemAlign,
	}, nil
}

func (e *LayoutEngine) structLayout(t *ir.Type, state *layoutState) (TypeLayout, *LayoutError) {
	if len(t.Fields) == 0 {
		return TypeLayout{Size: 0, Align: 1}, nil
	}
	offsets := make([]int, len(t.Fields))
	size := 0
	align := 1
	for i, f := range t.Fields {
		fl, err := e.layoutOf(f, state)
		if err != nil {
			return TypeLayout{Size: 0, Align: 1}, err
		}
		fAlign := max(fl.Align, 1)
		size = roundUp(size, fAlign)
		offsets[i] = size
		size += fl.Size
		align = max(align, fAlign)
	}
	size = roundUp(size, align)
	return TypeLayout{
		Size:         size,
		Align:        align,
		FieldOffsets: offsets,
	}, nil
}
