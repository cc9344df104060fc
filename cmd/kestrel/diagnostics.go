package main

import (
	"fmt"
	"io"

	"kestrel/internal/buildpipeline"
	"kestrel/internal/diag"
	"kestrel/internal/diagfmt"
)

// renderDiagnostics prints every failure in err, sorted by unit and
// position, in the given format (pretty or json). It returns how many
// diagnostics it printed.
func renderDiagnostics(w io.Writer, err error, max int, format string) (int, error) {
	bag := diag.NewBag(max)
	files := make(diagfmt.Files)
	buildpipeline.Collect(bag, files, err)
	bag.Sort()
	bag.Dedup()
	switch format {
	case "", "pretty":
		return bag.Len(), diagfmt.Pretty(w, bag, files, diagfmt.PrettyOpts{ShowNotes: true})
	case "json":
		return bag.Len(), diagfmt.JSON(w, bag, files, diagfmt.JSONOpts{IncludeNotes: true})
	}
	return 0, fmt.Errorf("invalid --diag-format %q (expected pretty|json)", format)
}

// report renders err as diagnostics and returns errReported.
func (s *session) report(w io.Writer, err error) error {
	if _, rerr := renderDiagnostics(w, err, s.maxDiagnostics, s.diagFormat); rerr != nil {
		return rerr
	}
	return errReported
}
