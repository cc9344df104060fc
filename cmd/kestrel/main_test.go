package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"kestrel/internal/buildpipeline"
	"kestrel/internal/diag"
	"kestrel/internal/hir"
	"kestrel/internal/source"
	"kestrel/internal/types"
)

func noColor(t *testing.T) {
	t.Helper()
	orig := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = orig })
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

// writeProgram stores a unit whose Main prints "ok" and returns code.
func writeProgram(t *testing.T, path string, code int64) {
	t.Helper()
	in := types.NewInterner()
	bt := in.Builtins()
	prog := hir.NewProgram(in)
	prog.Files.Add("main.k")
	b := hir.NewBuilder(in)
	putchar := b.Extern("putchar", []hir.Param{b.P("c", bt.Int)}, []types.TypeID{bt.Int})
	put := func(c byte) *hir.Stmt {
		return b.Do(b.Call(b.Ident("putchar", putchar.Type), b.Int(int64(c))))
	}
	prog.Root.Add(putchar, b.Func("Main", nil, []types.TypeID{bt.Int}, b.Body(
		put('o'), put('k'), put('\n'),
		b.Return(b.Int(code)),
	)))
	var buf bytes.Buffer
	if err := hir.Encode(&buf, prog); err != nil {
		t.Fatal(err)
	}
	writeFile(t, path, buf.String())
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	noColor(t)
	root, s := newRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--color", "off"}, args...))
	err := root.Execute()
	s.finish(err != nil)
	return stdout.String(), stderr.String(), err
}

func TestApplyColorMode(t *testing.T) {
	noColor(t)
	if err := applyColorMode("on", false); err != nil || color.NoColor {
		t.Fatalf("on: NoColor=%v err=%v", color.NoColor, err)
	}
	if err := applyColorMode("off", true); err != nil || !color.NoColor {
		t.Fatalf("off: NoColor=%v err=%v", color.NoColor, err)
	}
	t.Setenv("NO_COLOR", "")
	if err := applyColorMode("auto", false); err != nil || !color.NoColor {
		t.Fatalf("auto without a terminal: NoColor=%v err=%v", color.NoColor, err)
	}
	if err := applyColorMode("sometimes", true); err == nil {
		t.Fatalf("invalid mode accepted")
	}
}

func TestRenderDiagnostics(t *testing.T) {
	noColor(t)
	files := source.Files{}
	files.Add("loop.k")
	err := errors.Join(
		&buildpipeline.UnitError{Unit: "b", Files: files, Err: diag.Errorf(diag.LowOutsideLoop, source.At(4), "break outside of a loop")},
		&buildpipeline.UnitError{Unit: "a", Err: errors.New("clang: link failed")},
	)
	var out bytes.Buffer
	n, rerr := renderDiagnostics(&out, err, 10, "pretty")
	if rerr != nil || n != 2 {
		t.Fatalf("printed %d diagnostics (%v), want 2", n, rerr)
	}
	want := "a: E0000 clang: link failed\nloop.k:4: LOW1308 break outside of a loop\n"
	if out.String() != want {
		t.Fatalf("got:\n%s\nwant:\n%s", out.String(), want)
	}
}

func TestRenderDiagnosticsJSON(t *testing.T) {
	err := &buildpipeline.UnitError{Unit: "app", Err: diag.Errorf(diag.IOLoadFileError, source.Span{}, "missing")}
	var out bytes.Buffer
	if _, rerr := renderDiagnostics(&out, err, 10, "json"); rerr != nil {
		t.Fatal(rerr)
	}
	if !strings.Contains(out.String(), `"code": "IO4001"`) {
		t.Fatalf("output:\n%s", out.String())
	}
	if _, rerr := renderDiagnostics(&out, err, 10, "xml"); rerr == nil {
		t.Fatalf("unknown format accepted")
	}
}

func TestResolveUnitsFromManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "kestrel.toml"), `
[package]
name = "demo"

[build]
target = "aarch64-linux-gnu"
entry = "Start"

[runtime]
alloc = "gc_alloc"

[link]
imports = ["rt/rt.o", "-lm"]
`)
	writeFile(t, filepath.Join(dir, "app.khir"), "")
	s := &session{quiet: true, stderr: io.Discard}

	reqs, err := resolveUnits(dir, nil, &unitFlags{}, s)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(reqs) != 1 {
		t.Fatalf("got %d units", len(reqs))
	}
	req := reqs[0]
	if req.Lower.Target.Triple != "aarch64-linux-gnu" || req.Lower.Entry != "Start" || req.Lower.Runtime.Alloc != "gc_alloc" {
		t.Fatalf("options = %+v", req.Lower)
	}
	if req.Output != filepath.Join(dir, "demo") {
		t.Fatalf("output = %s", req.Output)
	}
	if req.WorkDir != filepath.Join(dir, "build") {
		t.Fatalf("work dir = %s", req.WorkDir)
	}
	if len(req.Imports) != 2 || req.Imports[0] != filepath.Join(dir, "rt", "rt.o") || req.Imports[1] != "-lm" {
		t.Fatalf("imports = %q", req.Imports)
	}

	reqs, err = resolveUnits(dir, nil, &unitFlags{target: "x86_64-linux-gnu", noLink: true}, s)
	if err != nil {
		t.Fatalf("resolve with flags: %v", err)
	}
	if reqs[0].Lower.Target.Triple != "x86_64-linux-gnu" || reqs[0].Output != "" {
		t.Fatalf("flags ignored: %+v", reqs[0])
	}
}

func TestResolveUnitsWithoutManifest(t *testing.T) {
	dir := t.TempDir()
	s := &session{quiet: true, stderr: io.Discard}
	if _, err := resolveUnits(dir, nil, &unitFlags{}, s); err == nil || err.Error() != noInputMessage {
		t.Fatalf("err = %v", err)
	}
	args := []string{filepath.Join(dir, "a.khir"), filepath.Join(dir, "b.khir")}
	if _, err := resolveUnits(dir, args, &unitFlags{output: "out"}, s); err == nil {
		t.Fatalf("--output accepted for two units")
	}
	reqs, err := resolveUnits(dir, args, &unitFlags{}, s)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if reqs[1].Output != filepath.Join(dir, "b") || reqs[1].Lower.Target.Triple != "x86_64-linux-gnu" {
		t.Fatalf("request = %+v", reqs[1])
	}
	if _, err := resolveUnits(dir, []string{"main.k"}, &unitFlags{}, s); err == nil {
		t.Fatalf("source file accepted as a unit")
	}
}

func TestRunCommandReturnsProgramStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hello.khir")
	writeProgram(t, path, 3)
	stdout, _, err := execute(t, "run", "--quiet", path)
	var exit *exitCodeError
	if !errors.As(err, &exit) || exit.code != 3 {
		t.Fatalf("err = %v, want exit status 3", err)
	}
	if stdout != "ok\n" {
		t.Fatalf("stdout = %q", stdout)
	}
}

func TestIRCommandPrintsModule(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hello.khir")
	writeProgram(t, path, 0)
	stdout, _, err := execute(t, "ir", path)
	if err != nil {
		t.Fatalf("ir: %v", err)
	}
	for _, want := range []string{"define i32 @main(", "declare i32 @putchar(i32"} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("missing %q in:\n%s", want, stdout)
		}
	}
}

func TestBuildCommandReportsDiagnostics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.khir")
	writeFile(t, path, "junk")
	_, stderr, err := execute(t, "build", "--no-link", "--quiet", path)
	if !errors.Is(err, errReported) {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(stderr, "junk: IO4001") {
		t.Fatalf("stderr = %q", stderr)
	}
}

func TestVersionCommandJSON(t *testing.T) {
	stdout, _, err := execute(t, "version", "--format", "json")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(stdout, `"tool": "kestrel"`) {
		t.Fatalf("stdout = %s", stdout)
	}
}
