package main

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"kestrel/internal/buildpipeline"
	"kestrel/internal/observ"
	"kestrel/internal/prof"
	"kestrel/internal/trace"
)

// session is the per-invocation state set up from the persistent flags.
type session struct {
	quiet          bool
	timings        bool
	maxDiagnostics int
	jobs           int
	diagFormat     string

	stderr   io.Writer
	profiler *prof.Profiler
	tracer   trace.Tracer
	timers   []namedTimer
}

type namedTimer struct {
	unit  string
	timer *observ.Timer
}

func (s *session) start(cmd *cobra.Command) error {
	flags := cmd.Root().PersistentFlags()
	colorMode, err := flags.GetString("color")
	if err != nil {
		return err
	}
	if err := applyColorMode(colorMode, isTerminal(os.Stderr)); err != nil {
		return err
	}
	if s.quiet, err = flags.GetBool("quiet"); err != nil {
		return err
	}
	if s.timings, err = flags.GetBool("timings"); err != nil {
		return err
	}
	if s.maxDiagnostics, err = flags.GetInt("max-diagnostics"); err != nil {
		return err
	}
	if s.jobs, err = flags.GetInt("jobs"); err != nil {
		return err
	}
	if s.diagFormat, err = flags.GetString("diag-format"); err != nil {
		return err
	}
	s.stderr = cmd.ErrOrStderr()
	if err := s.setupProfiling(cmd); err != nil {
		return err
	}
	return s.setupTracing(cmd)
}

func (s *session) setupProfiling(cmd *cobra.Command) error {
	flags := cmd.Root().PersistentFlags()
	var cfg prof.Config
	var err error
	if cfg.CPU, err = flags.GetString("cpu-profile"); err != nil {
		return err
	}
	if cfg.Mem, err = flags.GetString("mem-profile"); err != nil {
		return err
	}
	if cfg.Trace, err = flags.GetString("runtime-trace"); err != nil {
		return err
	}
	if cfg == (prof.Config{}) {
		return nil
	}
	s.profiler, err = prof.Start(cfg)
	return err
}

// setupTracing attaches the tracer selected by --trace and --trace-level
// to the command context. --trace alone implies the phase level.
func (s *session) setupTracing(cmd *cobra.Command) error {
	flags := cmd.Root().PersistentFlags()
	output, err := flags.GetString("trace")
	if err != nil {
		return err
	}
	levelStr, err := flags.GetString("trace-level")
	if err != nil {
		return err
	}
	level, err := trace.ParseLevel(levelStr)
	if err != nil {
		return err
	}
	if level == trace.LevelOff && output != "" {
		level = trace.LevelPhase
	}
	tracer, err := trace.New(trace.Config{Level: level, Path: output})
	if err != nil {
		return fmt.Errorf("failed to create tracer: %w", err)
	}
	s.tracer = tracer
	cmd.SetContext(trace.WithTracer(cmd.Context(), tracer))
	return nil
}

// timer returns a fresh timer for unit, or nil without --timings.
func (s *session) timer(unit string) *observ.Timer {
	if !s.timings {
		return nil
	}
	t := observ.NewTimer()
	s.timers = append(s.timers, namedTimer{unit: unit, timer: t})
	return t
}

// finish prints timings, dumps the trace ring after a failure and closes
// the tracer.
func (s *session) finish(failed bool) {
	if s.stderr == nil {
		return
	}
	if err := s.profiler.Stop(); err != nil {
		fmt.Fprintf(s.stderr, "profile: %v\n", err)
	}
	for _, nt := range s.timers {
		if len(s.timers) > 1 {
			fmt.Fprintf(s.stderr, "%s ", nt.unit)
		}
		fmt.Fprint(s.stderr, nt.timer.Summary())
	}
	if s.tracer == nil {
		return
	}
	if failed {
		if err := trace.Dump(s.tracer, s.stderr); err != nil {
			fmt.Fprintf(s.stderr, "trace: dump error: %v\n", err)
		}
	}
	if err := s.tracer.Flush(); err != nil {
		fmt.Fprintf(s.stderr, "trace: flush error: %v\n", err)
	}
	if err := s.tracer.Close(); err != nil {
		fmt.Fprintf(s.stderr, "trace: close error: %v\n", err)
	}
}

// sink prints one line per finished stage to w, or nothing with --quiet.
func (s *session) sink(w io.Writer) buildpipeline.ProgressSink {
	if s.quiet {
		return nil
	}
	var mu sync.Mutex
	return buildpipeline.SinkFunc(func(ev buildpipeline.Event) {
		if ev.Status == buildpipeline.StatusWorking {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		printEvent(w, ev)
	})
}

var statusColors = map[buildpipeline.Status]*color.Color{
	buildpipeline.StatusDone:   color.New(color.FgGreen),
	buildpipeline.StatusCached: color.New(color.FgCyan),
	buildpipeline.StatusError:  color.New(color.FgRed, color.Bold),
}

func printEvent(w io.Writer, ev buildpipeline.Event) {
	status := string(ev.Status)
	if c, ok := statusColors[ev.Status]; ok {
		status = c.Sprint(status)
	}
	if ev.Elapsed > 0 {
		fmt.Fprintf(w, "%-12s %-6s %s %.1f ms\n", ev.Unit, ev.Stage, status, float64(ev.Elapsed)/float64(time.Millisecond))
		return
	}
	fmt.Fprintf(w, "%-12s %-6s %s\n", ev.Unit, ev.Stage, status)
}
