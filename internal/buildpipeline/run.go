package buildpipeline

import (
	"context"
	"errors"
	"io"
	"time"

	"kestrel/internal/layout"
	"kestrel/internal/lower"
	"kestrel/internal/trace"
	"kestrel/internal/vm"
)

// RunResult is the outcome of executing a unit on the VM.
type RunResult struct {
	ExitCode int64
	// Leaked counts heap allocations never freed.
	Leaked int
}

// Run lowers the unit of req and executes its C entry wrapper on the VM,
// writing program output to stdout. A VM panic is returned as the error
// wrapped in a *UnitError; use errors.As to reach the *vm.VMError.
func Run(ctx context.Context, req *Request, stdout io.Writer) (RunResult, error) {
	if req == nil || req.Input == "" {
		return RunResult{}, errors.New("buildpipeline: missing input")
	}
	r := *req
	if r.Lower.Target.Triple == "" {
		r.Lower.Target = layout.X86_64LinuxGNU()
	}
	unit := r.unit()
	sp := trace.Begin(trace.FromContext(ctx), trace.ScopeDriver, "run:"+unit, trace.CurrentSpan(ctx).SpanID)
	ctx = trace.WithSpan(ctx, sp)
	defer sp.End("")

	lowered, err := lowerUnit(ctx, &r, unit)
	if err != nil {
		return RunResult{}, err
	}
	if lowered.Main == nil {
		return RunResult{}, &UnitError{Unit: unit, Err: errors.New("unit has no entry function to run")}
	}

	start := time.Now()
	emit(r.Progress, unit, StageRun, StatusWorking, nil, 0)
	machine := vm.New(lowered.Module, r.Lower.Target, stdout)
	var code int64
	err = r.Lower.Timer.Time("run", func() error {
		var err error
		code, err = machine.Run(lower.MainName)
		return err
	})
	if err != nil {
		emit(r.Progress, unit, StageRun, StatusError, err, time.Since(start))
		return RunResult{}, &UnitError{Unit: unit, Err: err}
	}
	emit(r.Progress, unit, StageRun, StatusDone, nil, time.Since(start))
	return RunResult{ExitCode: code, Leaked: machine.LiveAllocations()}, nil
}
