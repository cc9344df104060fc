package diagfmt

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"kestrel/internal/diag"
)

var (
	errorColor    = color.New(color.FgRed, color.Bold)
	warningColor  = color.New(color.FgYellow, color.Bold)
	infoColor     = color.New(color.FgBlue, color.Bold)
	locationColor = color.New(color.Bold)
	noteColor     = color.New(color.FgCyan)
)

func severityColor(s diag.Severity) *color.Color {
	switch s {
	case diag.SevWarning:
		return warningColor
	case diag.SevInfo:
		return infoColor
	}
	return errorColor
}

// Pretty prints bag.Items() (sort the bag first), one diagnostic per
// line:
//
//	<path>:<line>[:<col>]: <CODE> <message>
//
// followed by its notes when opts.ShowNotes is set. Colors follow
// color.NoColor.
func Pretty(w io.Writer, bag *diag.Bag, fs Files, opts PrettyOpts) error {
	for _, d := range bag.Items() {
		loc := formatLocation(fs.location(d.Unit, d.Primary, opts.PathMode))
		if loc != "" {
			loc = locationColor.Sprint(loc) + ": "
		}
		msg := d.Message
		if opts.ShowTitle {
			msg += " (" + d.Code.Title() + ")"
		}
		if _, err := fmt.Fprintf(w, "%s%s %s\n", loc, severityColor(d.Severity).Sprint(d.Code.ID()), msg); err != nil {
			return err
		}
		if !opts.ShowNotes {
			continue
		}
		for _, n := range d.Notes {
			if _, err := fmt.Fprintf(w, "  %s %s\n", noteColor.Sprint("note:"), n.Msg); err != nil {
				return err
			}
			if !n.Span.IsValid() {
				continue
			}
			if _, err := fmt.Fprintf(w, "    at %s\n", formatLocation(fs.location(d.Unit, n.Span, opts.PathMode))); err != nil {
				return err
			}
		}
	}
	return nil
}

func formatLocation(path string, line, col uint32) string {
	switch {
	case line == 0:
		return path
	case col == 0:
		return fmt.Sprintf("%s:%d", path, line)
	}
	return fmt.Sprintf("%s:%d:%d", path, line, col)
}
