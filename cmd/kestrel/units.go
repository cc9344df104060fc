package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"kestrel/internal/buildpipeline"
	"kestrel/internal/layout"
	"kestrel/internal/lower"
	"kestrel/internal/project"
)

const noInputMessage = "no input: pass .khir units or run inside a project with kestrel.toml"

// unitFlags are the per-command flags shared by build, run and ir.
type unitFlags struct {
	target        string
	entry         string
	output        string
	workDir       string
	noLink        bool
	printCommands bool
}

func (f *unitFlags) register(cmd *cobra.Command, withLink bool) {
	cmd.Flags().StringVar(&f.target, "target", "", "target triple (x86_64-linux-gnu|aarch64-linux-gnu)")
	cmd.Flags().StringVar(&f.entry, "entry", "", "entry function in the root namespace (default Main)")
	if !withLink {
		return
	}
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "executable path (single unit only)")
	cmd.Flags().StringVar(&f.workDir, "work-dir", "", "directory for .ll and .o files")
	cmd.Flags().BoolVar(&f.noLink, "no-link", false, "stop after writing .ll files")
	cmd.Flags().BoolVar(&f.printCommands, "print-commands", false, "print clang invocations")
}

// loadManifest returns the nearest kestrel.toml above dir, or nil.
func loadManifest(dir string) (*project.Manifest, error) {
	path, ok, err := project.Find(dir)
	if err != nil || !ok {
		return nil, err
	}
	return project.Load(path)
}

// resolveUnits turns args and flags into build requests. Without args the
// units are the .khir files at the project root.
func resolveUnits(dir string, args []string, f *unitFlags, s *session) ([]*buildpipeline.Request, error) {
	m, err := loadManifest(dir)
	if err != nil {
		return nil, err
	}
	inputs := args
	if len(inputs) == 0 {
		if m == nil {
			return nil, errors.New(noInputMessage)
		}
		inputs, err = filepath.Glob(filepath.Join(m.Root, "*"+buildpipeline.InputExt))
		if err != nil {
			return nil, err
		}
		if len(inputs) == 0 {
			return nil, fmt.Errorf("no %s units in %s", buildpipeline.InputExt, m.Root)
		}
	}
	if f.output != "" && len(inputs) > 1 {
		return nil, errors.New("--output needs exactly one unit")
	}

	opts, err := lowerOptions(m, f)
	if err != nil {
		return nil, err
	}
	workDir := f.workDir
	if workDir == "" && m != nil {
		workDir = filepath.Join(m.Root, "build")
	}
	var imports []string
	if m != nil {
		imports = m.LinkInputs()
	}

	reqs := make([]*buildpipeline.Request, len(inputs))
	for i, in := range inputs {
		if !strings.HasSuffix(in, buildpipeline.InputExt) {
			return nil, fmt.Errorf("%s: expected a %s file", in, buildpipeline.InputExt)
		}
		req := &buildpipeline.Request{
			Input:         in,
			Lower:         opts,
			WorkDir:       workDir,
			Imports:       imports,
			PrintCommands: f.printCommands,
			Progress:      s.sink(s.stderr),
		}
		unit := strings.TrimSuffix(filepath.Base(in), buildpipeline.InputExt)
		req.Lower.Timer = s.timer(unit)
		req.Output = outputFor(m, f, unit, in, workDir, len(inputs))
		reqs[i] = req
	}
	return reqs, nil
}

func lowerOptions(m *project.Manifest, f *unitFlags) (lower.Options, error) {
	var opts lower.Options
	if m != nil {
		opts.Target = m.Target()
		opts.Entry = m.Build.Entry
		opts.Runtime = lower.Runtime{
			Alloc:   m.Runtime.Alloc,
			Free:    m.Runtime.Free,
			SetJmp:  m.Runtime.SetJmp,
			LongJmp: m.Runtime.LongJmp,
		}
	} else {
		opts.Target = layout.X86_64LinuxGNU()
	}
	if f.target != "" {
		t, ok := layout.TargetByName(f.target)
		if !ok {
			return opts, fmt.Errorf("unsupported target %q", f.target)
		}
		opts.Target = t
	}
	if f.entry != "" {
		opts.Entry = f.entry
	}
	return opts, nil
}

// outputFor picks the executable of one unit: -o, then the manifest's
// output for a single-unit project, then <dir>/<unit>.
func outputFor(m *project.Manifest, f *unitFlags, unit, input, workDir string, units int) string {
	switch {
	case f.noLink:
		return ""
	case f.output != "":
		return f.output
	case m != nil && units == 1:
		return m.OutputPath()
	case workDir != "":
		return filepath.Join(workDir, unit)
	}
	return filepath.Join(filepath.Dir(input), unit)
}
