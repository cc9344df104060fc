package source

import (
	"fmt"
	"path/filepath"

	"fortio.org/safecast"
)

// Files maps FileIDs to the paths of the sources a unit was built from.
// ID 0 is reserved for synthesized spans.
type Files struct {
	Paths []string
}

// Add registers a path and returns its FileID.
func (f *Files) Add(path string) FileID {
	if len(f.Paths) == 0 {
		f.Paths = append(f.Paths, "<builtin>")
	}
	f.Paths = append(f.Paths, filepath.ToSlash(path))
	id, err := safecast.Conv[uint32](len(f.Paths) - 1)
	if err != nil {
		panic(fmt.Errorf("file table overflow: %w", err))
	}
	return FileID(id)
}

// Path returns the registered path, or "<unknown>".
func (f *Files) Path(id FileID) string {
	if f == nil || int(id) >= len(f.Paths) || id == NoFileID {
		return "<unknown>"
	}
	return f.Paths[id]
}

// Format renders span as "path:line:col".
func (f *Files) Format(sp Span) string {
	if !sp.IsValid() {
		return f.Path(sp.File)
	}
	if sp.Col == 0 {
		return fmt.Sprintf("%s:%d", f.Path(sp.File), sp.Line)
	}
	return fmt.Sprintf("%s:%d:%d", f.Path(sp.File), sp.Line, sp.Col)
}
