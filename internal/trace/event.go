package trace

import "time"

// Kind is the type of a trace event.
type Kind uint8

const (
	// KindSpanBegin opens a span.
	KindSpanBegin Kind = iota + 1
	// KindSpanEnd closes the span with the same id.
	KindSpanEnd
	// KindPoint is an instant event.
	KindPoint
)

func (k Kind) String() string {
	switch k {
	case KindSpanBegin:
		return "begin"
	case KindSpanEnd:
		return "end"
	case KindPoint:
		return "point"
	default:
		return "unknown"
	}
}

// Scope is the granularity of an event. Smaller values are coarser.
type Scope uint8

const (
	// ScopeDriver is a CLI command or one build unit.
	ScopeDriver Scope = iota + 1
	// ScopePass is a lowering pass, IR printing or the link step.
	ScopePass
	// ScopeModule is the walk of one namespace.
	ScopeModule
	// ScopeNode is one function body.
	ScopeNode
)

func (s Scope) String() string {
	switch s {
	case ScopeDriver:
		return "driver"
	case ScopePass:
		return "pass"
	case ScopeModule:
		return "module"
	case ScopeNode:
		return "node"
	default:
		return "unknown"
	}
}

// Event is a single trace record.
type Event struct {
	Time     time.Time
	Seq      uint64 // assigned by the tracer that stores the event
	Kind     Kind
	Scope    Scope
	SpanID   uint64
	ParentID uint64 // 0 for roots
	GID      uint64 // goroutine that emitted the event
	Name     string // "lower", "bodies", "namespace:std.io", "func:Pair.Compare"
	Detail   string
	Extra    map[string]string
}
