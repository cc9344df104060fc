package layout

import (
	"fmt"
	"strings"
)

// LayoutErrorKind enumerates types of layout calculation errors.
type LayoutErrorKind uint8

const (
	// LayoutErrRecursiveUnsized indicates a struct that contains itself by value.
	LayoutErrRecursiveUnsized LayoutErrorKind = iota + 1
	// LayoutErrOpaque indicates a named struct whose body was never set.
	LayoutErrOpaque
	// LayoutErrUnsized indicates a type without storage (functions).
	LayoutErrUnsized
)

// LayoutError represents an error during memory layout calculation.
type LayoutError struct {
	Kind  LayoutErrorKind
	Type  string
	Cycle []string // for LayoutErrRecursiveUnsized
}

func (e *LayoutError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case LayoutErrRecursiveUnsized:
		if len(e.Cycle) == 0 {
			return fmt.Sprintf("recursive value type has infinite size (%s)", e.Type)
		}
		return fmt.Sprintf("recursive value type has infinite size (cycle: %s)", strings.Join(e.Cycle, " -> "))
	case LayoutErrOpaque:
		return fmt.Sprintf("type %s has no body", e.Type)
	case LayoutErrUnsized:
		return fmt.Sprintf("type %s has no storage size", e.Type)
	default:
		return fmt.Sprintf("layout error kind=%d type %s", e.Kind, e.Type)
	}
}
