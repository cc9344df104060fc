package buildpipeline

import (
	"errors"

	"kestrel/internal/diag"
	"kestrel/internal/source"
)

// UnitError attributes a failure to one unit. Files resolves the spans of
// diagnostics raised while lowering it; it is empty when the unit never
// decoded.
type UnitError struct {
	Unit  string
	Files source.Files
	Err   error
}

func (e *UnitError) Error() string { return e.Unit + ": " + e.Err.Error() }
func (e *UnitError) Unwrap() error { return e.Err }

// Collect adds every failure inside err to bag, tagged with its unit, and
// records each unit's file table in files when files is not nil. Errors
// joined by BuildAll are visited one by one.
func Collect(bag *diag.Bag, files map[string]*source.Files, err error) {
	if err == nil {
		return
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			Collect(bag, files, e)
		}
		return
	}
	d := diag.FromError(err)
	var ue *UnitError
	if errors.As(err, &ue) {
		d.Unit = ue.Unit
		if files != nil {
			files[ue.Unit] = &ue.Files
		}
		if _, ok := diag.AsError(err); !ok {
			d.Message = ue.Err.Error()
		}
	}
	bag.Add(d)
}
