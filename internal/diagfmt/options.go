// Package diagfmt renders a diag.Bag for people (Pretty) and for tools
// (JSON).
package diagfmt

import (
	"path/filepath"

	"kestrel/internal/source"
)

// PathMode specifies how file paths are displayed.
type PathMode uint8

const (
	// PathModeAsIs prints paths as the front end recorded them.
	PathModeAsIs PathMode = iota
	PathModeBasename
)

// Files resolves spans per unit. Diagnostics without a unit, or whose unit
// is missing, are located by the unit name alone.
type Files map[string]*source.Files

func (fs Files) location(unit string, sp source.Span, mode PathMode) (path string, line, col uint32) {
	f, ok := fs[unit]
	if !ok || len(f.Paths) == 0 || !sp.IsValid() {
		return unit, 0, 0
	}
	path = f.Path(sp.File)
	if mode == PathModeBasename {
		path = filepath.Base(path)
	}
	return path, sp.Line, sp.Col
}

// PrettyOpts configures pretty-printing of diagnostics.
type PrettyOpts struct {
	PathMode  PathMode
	ShowNotes bool
	// ShowTitle appends the code's title after the message.
	ShowTitle bool
}

// JSONOpts configures JSON output of diagnostics.
type JSONOpts struct {
	PathMode     PathMode
	Max          int // limits the output, not the bag
	IncludeNotes bool
}
