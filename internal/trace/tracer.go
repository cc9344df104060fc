package trace

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Tracer receives trace events. Implementations are safe for concurrent
// use; build units lowered in parallel share one tracer.
type Tracer interface {
	Emit(ev *Event)
	Flush() error
	Close() error
	Level() Level
	Enabled() bool
}

// DefaultRingSize is the number of events a ring keeps when Config leaves
// it unset.
const DefaultRingSize = 4096

// Config selects a tracer.
type Config struct {
	Level Level
	// Path is the stream destination; "-" or "" means stderr. Output takes
	// precedence when set.
	Path   string
	Output io.Writer
	// Format defaults to NDJSON for *.ndjson paths and text otherwise.
	Format Format
	// Ring additionally keeps the last RingSize events for Dump.
	Ring     bool
	RingSize int
}

// New builds the tracer described by cfg. At LevelError nothing is
// streamed: events are kept in a ring at phase granularity for Dump.
func New(cfg Config) (Tracer, error) {
	if cfg.RingSize <= 0 {
		cfg.RingSize = DefaultRingSize
	}
	switch cfg.Level {
	case LevelOff:
		return Nop, nil
	case LevelError:
		return NewRingTracer(cfg.RingSize, LevelPhase), nil
	}
	w, err := openOutput(cfg)
	if err != nil {
		return nil, err
	}
	format := cfg.Format
	if format == FormatText && strings.HasSuffix(cfg.Path, ".ndjson") {
		format = FormatNDJSON
	}
	stream := NewStreamTracer(w, cfg.Level, format)
	if !cfg.Ring {
		return stream, nil
	}
	return NewMultiTracer(cfg.Level, stream, NewRingTracer(cfg.RingSize, cfg.Level)), nil
}

func openOutput(cfg Config) (io.Writer, error) {
	if cfg.Output != nil {
		return cfg.Output, nil
	}
	if cfg.Path == "" || cfg.Path == "-" {
		return nopCloser{os.Stderr}, nil
	}
	f, err := os.Create(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open trace output: %w", err)
	}
	return f, nil
}

// nopCloser keeps Close from closing stderr.
type nopCloser struct{ io.Writer }

// Dump writes the events held by every ring inside t. Tracers without a
// ring write nothing.
func Dump(t Tracer, w io.Writer) error {
	switch t := t.(type) {
	case *RingTracer:
		return t.Dump(w, FormatText)
	case *MultiTracer:
		for _, inner := range t.tracers {
			if err := Dump(inner, w); err != nil {
				return err
			}
		}
	}
	return nil
}
