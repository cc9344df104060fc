package buildpipeline

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
)

var lookPath = exec.LookPath

func ensureClang() error {
	if _, err := lookPath("clang"); err != nil {
		return fmt.Errorf("clang not found; install with: sudo apt-get update && sudo apt-get install -y clang llvm lld")
	}
	return nil
}

// linkCommands returns the clang invocations turning res.LLPath into
// req.Output: one compiling the IR to an object, one linking the object
// with the imports.
func linkCommands(req *Request, res *Result) [][]string {
	triple := "--target=" + req.Lower.Target.Triple
	if req.Lower.Target.Triple == "" {
		triple = ""
	}
	compile := []string{"clang"}
	link := []string{"clang"}
	if triple != "" {
		compile = append(compile, triple)
		link = append(link, triple)
	}
	compile = append(compile, "-c", "-x", "ir", res.LLPath, "-o", res.ObjPath)
	link = append(link, res.ObjPath)
	link = append(link, req.Imports...)
	link = append(link, "-o", req.Output)
	return [][]string{compile, link}
}

func link(ctx context.Context, req *Request, res *Result) error {
	if err := ensureClang(); err != nil {
		return err
	}
	res.ObjPath = strings.TrimSuffix(res.LLPath, filepath.Ext(res.LLPath)) + ".o"
	res.Output = req.Output
	for _, argv := range linkCommands(req, res) {
		if err := runCommand(ctx, req.stdout(), req.PrintCommands, argv[0], argv[1:]...); err != nil {
			return err
		}
	}
	return nil
}

func runCommand(ctx context.Context, stdout io.Writer, printCommands bool, name string, args ...string) error {
	if printCommands {
		if _, err := fmt.Fprintf(stdout, "%s %s\n", name, strings.Join(args, " ")); err != nil {
			return fmt.Errorf("failed to print command: %w", err)
		}
	}
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = stdout
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return err
		}
		return fmt.Errorf("%s: %s", name, msg)
	}
	return nil
}
