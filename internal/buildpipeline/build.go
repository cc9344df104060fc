package buildpipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"kestrel/internal/backend/llvm"
	"kestrel/internal/diag"
	"kestrel/internal/hir"
	"kestrel/internal/lower"
	"kestrel/internal/observ"
	"kestrel/internal/project"
	"kestrel/internal/source"
	"kestrel/internal/trace"
	"kestrel/internal/version"
)

// InputExt is the extension of serialized resolved programs.
const InputExt = ".khir"

// Request describes one unit to build.
type Request struct {
	// Unit names the unit in diagnostics and output files. It defaults to
	// the input's base name.
	Unit  string
	Input string
	Lower lower.Options
	// WorkDir receives <unit>.ll, <unit>.o and the build stamp.
	WorkDir string
	// Output is the executable to link. Empty stops after the .ll.
	Output  string
	Imports []string

	PrintCommands bool
	// Stdout receives printed commands and linker output; nil means
	// os.Stdout.
	Stdout   io.Writer
	Progress ProgressSink
}

// Result describes a built unit.
type Result struct {
	Unit    string
	LLPath  string
	ObjPath string
	Output  string
	// Lowered is nil when the unit was up to date.
	Lowered *lower.Result
	Cached  bool
	Timer   *observ.Timer
}

func (req *Request) unit() string {
	if req.Unit != "" {
		return req.Unit
	}
	return strings.TrimSuffix(filepath.Base(req.Input), filepath.Ext(req.Input))
}

func (req *Request) stdout() io.Writer {
	if req.Stdout != nil {
		return req.Stdout
	}
	return os.Stdout
}

// Load decodes the program stored at path.
func Load(path string) (*hir.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, diag.Errorf(diag.IOLoadFileError, source.Span{}, "%v", err)
	}
	prog, err := hir.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, diag.Errorf(diag.IOLoadFileError, source.Span{}, "%s: %v", path, err)
	}
	return prog, nil
}

// lowerUnit decodes and lowers the unit of req.
func lowerUnit(ctx context.Context, req *Request, unit string) (*lower.Result, error) {
	start := time.Now()
	emit(req.Progress, unit, StageDecode, StatusWorking, nil, 0)
	prog, err := Load(req.Input)
	if err != nil {
		emit(req.Progress, unit, StageDecode, StatusError, err, time.Since(start))
		return nil, &UnitError{Unit: unit, Err: err}
	}
	emit(req.Progress, unit, StageDecode, StatusDone, nil, time.Since(start))

	start = time.Now()
	emit(req.Progress, unit, StageLower, StatusWorking, nil, 0)
	opts := req.Lower
	if opts.Module == "" {
		opts.Module = unit
	}
	res, err := lower.Lower(ctx, prog, opts)
	if err != nil {
		emit(req.Progress, unit, StageLower, StatusError, err, time.Since(start))
		return nil, &UnitError{Unit: unit, Files: prog.Files, Err: err}
	}
	emit(req.Progress, unit, StageLower, StatusDone, nil, time.Since(start))
	return res, nil
}

// stamp identifies the inputs of a unit's .ll: the program file, every
// option that changes the generated code, and the compiler version.
func stamp(req *Request, unit string) (project.Digest, error) {
	d, err := project.HashFile(req.Input)
	if err != nil {
		return d, diag.Errorf(diag.IOLoadFileError, source.Span{}, "%v", err)
	}
	o, rt := req.Lower, req.Lower.Runtime
	return project.Combine(d, version.Version, unit, o.Module, o.Target.Triple, o.Entry,
		rt.Alloc, rt.Free, rt.SetJmp, rt.LongJmp), nil
}

func upToDate(llPath, stampPath string, want project.Digest) bool {
	if _, err := os.Stat(llPath); err != nil {
		return false
	}
	have, err := os.ReadFile(stampPath)
	return err == nil && strings.TrimSpace(string(have)) == want.String()
}

// Compile lowers the unit and writes its .ll, unless the stamp shows the
// existing .ll was produced from the same inputs.
func Compile(ctx context.Context, req *Request) (*Result, error) {
	if req == nil || req.Input == "" {
		return nil, errors.New("buildpipeline: missing input")
	}
	unit := req.unit()
	timer := req.Lower.Timer
	if timer == nil {
		timer = observ.NewTimer()
	}
	r := *req
	r.Lower.Timer = timer
	req = &r

	sp := trace.Begin(trace.FromContext(ctx), trace.ScopeDriver, "unit:"+unit, trace.CurrentSpan(ctx).SpanID)
	ctx = trace.WithSpan(ctx, sp)
	res, err := compile(ctx, req, unit)
	detail := "ok"
	switch {
	case err != nil:
		detail = diag.CodeOf(err).ID()
	case res.Cached:
		detail = "cached"
	}
	sp.End(detail)
	return res, err
}

func compile(ctx context.Context, req *Request, unit string) (*Result, error) {
	workDir := req.WorkDir
	if workDir == "" {
		workDir = filepath.Dir(req.Input)
	}
	res := &Result{
		Unit:   unit,
		LLPath: filepath.Join(workDir, unit+".ll"),
		Timer:  req.Lower.Timer,
	}
	stampPath := res.LLPath + ".stamp"
	want, err := stamp(req, unit)
	if err != nil {
		return res, &UnitError{Unit: unit, Err: err}
	}
	if upToDate(res.LLPath, stampPath, want) {
		res.Cached = true
		emit(req.Progress, unit, StageEmit, StatusCached, nil, 0)
		return res, nil
	}

	lowered, err := lowerUnit(ctx, req, unit)
	if err != nil {
		return res, err
	}
	res.Lowered = lowered

	start := time.Now()
	emit(req.Progress, unit, StageEmit, StatusWorking, nil, 0)
	err = res.Timer.Time("print", func() error {
		text, err := llvm.EmitModule(lowered.Module)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(workDir, 0o750); err != nil {
			return diag.Errorf(diag.IOWriteFileError, source.Span{}, "%v", err)
		}
		if err := os.WriteFile(res.LLPath, []byte(text), 0o600); err != nil {
			return diag.Errorf(diag.IOWriteFileError, source.Span{}, "%v", err)
		}
		if err := os.WriteFile(stampPath, []byte(want.String()+"\n"), 0o600); err != nil {
			return diag.Errorf(diag.IOWriteFileError, source.Span{}, "%v", err)
		}
		return nil
	})
	if err != nil {
		emit(req.Progress, unit, StageEmit, StatusError, err, time.Since(start))
		return res, &UnitError{Unit: unit, Err: err}
	}
	emit(req.Progress, unit, StageEmit, StatusDone, nil, time.Since(start))
	return res, nil
}

// Build compiles the unit and, when req.Output is set, links it.
func Build(ctx context.Context, req *Request) (*Result, error) {
	res, err := Compile(ctx, req)
	if err != nil || req.Output == "" {
		return res, err
	}
	start := time.Now()
	emit(req.Progress, res.Unit, StageLink, StatusWorking, nil, 0)
	err = res.Timer.Time("link", func() error { return link(ctx, req, res) })
	if err != nil {
		emit(req.Progress, res.Unit, StageLink, StatusError, err, time.Since(start))
		return res, &UnitError{Unit: res.Unit, Err: err}
	}
	emit(req.Progress, res.Unit, StageLink, StatusDone, nil, time.Since(start))
	return res, nil
}

// BuildAll builds independent units with at most jobs running at once
// (unlimited when jobs <= 0). Every unit runs to completion; the failures
// come back joined, one *UnitError each. results[i] belongs to reqs[i].
func BuildAll(ctx context.Context, reqs []*Request, jobs int) ([]*Result, error) {
	seen := make(map[string]bool, len(reqs))
	for _, req := range reqs {
		unit := req.unit()
		if seen[unit] {
			return nil, fmt.Errorf("buildpipeline: unit %s given twice", unit)
		}
		seen[unit] = true
	}

	sp := trace.Begin(trace.FromContext(ctx), trace.ScopeDriver, "build", trace.CurrentSpan(ctx).SpanID)
	ctx = trace.WithSpan(ctx, sp)
	results := make([]*Result, len(reqs))
	errs := make([]error, len(reqs))
	var g errgroup.Group
	if jobs > 0 {
		g.SetLimit(jobs)
	}
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			results[i], errs[i] = Build(ctx, req)
			return nil
		})
	}
	_ = g.Wait()
	err := errors.Join(errs...)
	sp.WithExtra("units", fmt.Sprint(len(reqs))).End("")
	return results, err
}
