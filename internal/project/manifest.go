// Package project loads kestrel.toml, the manifest that configures a
// build: the unit name, target, entry function, runtime symbol names and
// the extra objects to link.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"kestrel/internal/layout"
)

// ManifestName is the file Find looks for.
const ManifestName = "kestrel.toml"

// Manifest is a parsed kestrel.toml. Path and Root are filled by Load.
type Manifest struct {
	Path string `toml:"-"`
	Root string `toml:"-"`

	Package PackageConfig `toml:"package"`
	Build   BuildConfig   `toml:"build"`
	Runtime RuntimeConfig `toml:"runtime"`
	Link    LinkConfig    `toml:"link"`
}

type PackageConfig struct {
	Name string `toml:"name"`
}

type BuildConfig struct {
	Target string `toml:"target"`
	Entry  string `toml:"entry"`
	// Output is the executable path, relative to Root.
	Output string `toml:"output"`
}

// RuntimeConfig renames the C functions generated code calls. Empty
// fields keep the libc names.
type RuntimeConfig struct {
	Alloc   string `toml:"alloc"`
	Free    string `toml:"free"`
	SetJmp  string `toml:"setjmp"`
	LongJmp string `toml:"longjmp"`
}

type LinkConfig struct {
	// Imports are objects or libraries passed to the linker, relative to
	// Root unless absolute or of the -lname form.
	Imports []string `toml:"imports"`
}

// Find walks up from startDir to the nearest kestrel.toml.
func Find(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("resolve %s: %w", startDir, err)
	}
	for {
		candidate := filepath.Join(dir, ManifestName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("stat %s: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false, nil
		}
		dir = parent
	}
}

// Load parses and validates the manifest at path and applies defaults.
func Load(path string) (*Manifest, error) {
	var m Manifest
	meta, err := toml.DecodeFile(path, &m)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	if !meta.IsDefined("package", "name") || strings.TrimSpace(m.Package.Name) == "" {
		return nil, fmt.Errorf("%s: missing [package].name", path)
	}
	if meta.IsDefined("build", "entry") && strings.TrimSpace(m.Build.Entry) == "" {
		return nil, fmt.Errorf("%s: [build].entry is empty", path)
	}
	if meta.IsDefined("build", "output") && strings.TrimSpace(m.Build.Output) == "" {
		return nil, fmt.Errorf("%s: [build].output is empty", path)
	}
	if _, ok := layout.TargetByName(m.Build.Target); !ok {
		return nil, fmt.Errorf("%s: unsupported [build].target %q", path, m.Build.Target)
	}

	m.Path = path
	m.Root = filepath.Dir(path)
	if !meta.IsDefined("build", "output") {
		m.Build.Output = m.Package.Name
	}
	return &m, nil
}

// Target returns the layout target of the build.
func (m *Manifest) Target() layout.Target {
	t, _ := layout.TargetByName(m.Build.Target)
	return t
}

// OutputPath is the absolute executable path.
func (m *Manifest) OutputPath() string {
	return m.resolve(m.Build.Output)
}

// LinkInputs returns Link.Imports with file paths made absolute.
func (m *Manifest) LinkInputs() []string {
	out := make([]string, len(m.Link.Imports))
	for i, imp := range m.Link.Imports {
		if strings.HasPrefix(imp, "-l") {
			out[i] = imp
			continue
		}
		out[i] = m.resolve(imp)
	}
	return out
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Root, filepath.FromSlash(p))
}
