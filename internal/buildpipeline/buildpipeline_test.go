package buildpipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"kestrel/internal/diag"
	"kestrel/internal/hir"
	"kestrel/internal/layout"
	"kestrel/internal/lower"
	"kestrel/internal/source"
	"kestrel/internal/types"
)

// program returns a unit whose Main returns code.
func program(code int64) *hir.Program {
	in := types.NewInterner()
	prog := hir.NewProgram(in)
	prog.Files.Add("main.k")
	b := hir.NewBuilder(in)
	prog.Root.Add(b.Func("Main", nil, []types.TypeID{in.Builtins().Int}, b.Body(
		b.Return(b.Int(code)),
	)))
	return prog
}

// brokenProgram fails to lower with a break outside of a loop.
func brokenProgram() *hir.Program {
	in := types.NewInterner()
	prog := hir.NewProgram(in)
	prog.Files.Add("broken.k")
	b := hir.NewBuilder(in).At(3)
	prog.Root.Add(b.Func("Main", nil, nil, b.Body(b.Break())))
	return prog
}

func writeUnit(t *testing.T, dir, name string, prog *hir.Program) string {
	t.Helper()
	var buf bytes.Buffer
	if err := hir.Encode(&buf, prog); err != nil {
		t.Fatalf("encode: %v", err)
	}
	path := filepath.Join(dir, name+InputExt)
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) OnEvent(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) has(unit string, stage Stage, status Status) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.ContainsFunc(r.events, func(ev Event) bool {
		return ev.Unit == unit && ev.Stage == stage && ev.Status == status
	})
}

func TestRunExecutesMain(t *testing.T) {
	dir := t.TempDir()
	path := writeUnit(t, dir, "seven", program(7))
	rec := &recorder{}
	res, err := Run(context.Background(), &Request{Input: path, Progress: rec}, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.ExitCode != 7 || res.Leaked != 0 {
		t.Fatalf("got %+v, want exit 7 and no leaks", res)
	}
	if !rec.has("seven", StageRun, StatusDone) {
		t.Fatalf("missing run event in %+v", rec.events)
	}
}

func TestCompileWritesLLAndReusesIt(t *testing.T) {
	dir := t.TempDir()
	path := writeUnit(t, dir, "app", program(1))
	out := filepath.Join(dir, "out")
	req := &Request{Input: path, WorkDir: out, Lower: lowerOptions()}

	first, err := Compile(context.Background(), req)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if first.Cached || first.Lowered == nil {
		t.Fatalf("first compile reported cached")
	}
	text, err := os.ReadFile(filepath.Join(out, "app.ll"))
	if err != nil {
		t.Fatalf("read .ll: %v", err)
	}
	if !strings.Contains(string(text), "define i32 @main(") {
		t.Fatalf("no main in:\n%s", text)
	}

	second, err := Compile(context.Background(), req)
	if err != nil {
		t.Fatalf("recompile: %v", err)
	}
	if !second.Cached {
		t.Fatalf("unchanged unit was lowered again")
	}

	writeUnit(t, dir, "app", program(2))
	third, err := Compile(context.Background(), req)
	if err != nil {
		t.Fatalf("compile after edit: %v", err)
	}
	if third.Cached {
		t.Fatalf("edited unit reused a stale .ll")
	}
}

func TestStampDependsOnTarget(t *testing.T) {
	dir := t.TempDir()
	path := writeUnit(t, dir, "app", program(1))
	x86 := &Request{Input: path, Lower: lowerOptions()}
	arm := &Request{Input: path, Lower: lowerOptions()}
	arm.Lower.Target = layout.AArch64LinuxGNU()
	a, err := stamp(x86, "app")
	if err != nil {
		t.Fatal(err)
	}
	b, err := stamp(arm, "app")
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatalf("targets share a stamp")
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk"+InputExt)
	if err := os.WriteFile(path, []byte("not a program"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if got := diag.CodeOf(err); got != diag.IOLoadFileError {
		t.Fatalf("code = %s, want %s", got.ID(), diag.IOLoadFileError.ID())
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing"+InputExt)); diag.CodeOf(err) != diag.IOLoadFileError {
		t.Fatalf("missing file: %v", err)
	}
}

func TestBuildAllCollectsEveryUnit(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	reqs := []*Request{
		{Input: writeUnit(t, dir, "good", program(0)), Progress: rec, Lower: lowerOptions()},
		{Input: writeUnit(t, dir, "bad", brokenProgram()), Progress: rec, Lower: lowerOptions()},
	}
	results, err := BuildAll(context.Background(), reqs, 2)
	if err == nil {
		t.Fatalf("expected the broken unit to fail")
	}
	if results[0] == nil || results[0].Unit != "good" {
		t.Fatalf("good unit result = %+v", results[0])
	}
	if _, err := os.Stat(filepath.Join(dir, "good.ll")); err != nil {
		t.Fatalf("good unit not emitted: %v", err)
	}
	if !rec.has("bad", StageLower, StatusError) || !rec.has("good", StageEmit, StatusDone) {
		t.Fatalf("events: %+v", rec.events)
	}

	var ue *UnitError
	if !errors.As(err, &ue) || ue.Unit != "bad" {
		t.Fatalf("error does not name the unit: %v", err)
	}
	bag := diag.NewBag(0)
	files := map[string]*source.Files{}
	Collect(bag, files, err)
	items := bag.Items()
	if len(items) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(items))
	}
	d := items[0]
	if d.Unit != "bad" || d.Code != diag.LowOutsideLoop {
		t.Fatalf("diagnostic = %+v", d)
	}
	if got := files["bad"].Format(d.Primary); !strings.HasPrefix(got, "broken.k:3") {
		t.Fatalf("span renders as %q", got)
	}
}

func TestBuildAllRejectsDuplicateUnits(t *testing.T) {
	reqs := []*Request{{Input: "a/app.khir"}, {Input: "b/app.khir"}}
	if _, err := BuildAll(context.Background(), reqs, 0); err == nil {
		t.Fatalf("two units named app were accepted")
	}
}

func TestLinkCommands(t *testing.T) {
	req := &Request{Output: "bin/app", Imports: []string{"rt.o", "-lm"}, Lower: lowerOptions()}
	res := &Result{LLPath: "work/app.ll", ObjPath: "work/app.o"}
	got := linkCommands(req, res)
	want := [][]string{
		{"clang", "--target=x86_64-linux-gnu", "-c", "-x", "ir", "work/app.ll", "-o", "work/app.o"},
		{"clang", "--target=x86_64-linux-gnu", "work/app.o", "rt.o", "-lm", "-o", "bin/app"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d commands", len(got))
	}
	for i := range want {
		if !slices.Equal(got[i], want[i]) {
			t.Fatalf("command %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLinkWithoutClang(t *testing.T) {
	old := lookPath
	lookPath = func(string) (string, error) { return "", errors.New("not found") }
	defer func() { lookPath = old }()

	dir := t.TempDir()
	req := &Request{Input: writeUnit(t, dir, "app", program(0)), Output: filepath.Join(dir, "app")}
	_, err := Build(context.Background(), req)
	if err == nil || !strings.Contains(err.Error(), "clang not found") {
		t.Fatalf("err = %v", err)
	}
}

func lowerOptions() lower.Options {
	return lower.Options{Target: layout.X86_64LinuxGNU()}
}
