package diag

import (
	"kestrel/internal/source"
)

type Note struct {
	Span source.Span
	Msg  string
}

type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Primary  source.Span
	Notes    []Note
	// Unit names the compilation unit the diagnostic belongs to when
	// several units are built together.
	Unit string
}
