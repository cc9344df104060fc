package diag

import (
	"errors"
	"fmt"

	"kestrel/internal/source"
)

// Error is a fatal compilation error. Lowering aborts on the first one; there
// is no recoverable path inside the back end.
type Error struct {
	Code    Code
	Message string
	Span    source.Span
	Notes   []Note
}

// Errorf builds an *Error with a formatted message.
func Errorf(code Code, span source.Span, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Span:    span,
	}
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Span.IsValid() {
		return fmt.Sprintf("line %d: %s %s", e.Span.Line, e.Code.ID(), e.Message)
	}
	return fmt.Sprintf("%s %s", e.Code.ID(), e.Message)
}

// WithNote attaches a secondary position to the error.
func (e *Error) WithNote(sp source.Span, msg string) *Error {
	if e == nil {
		return nil
	}
	e.Notes = append(e.Notes, Note{Span: sp, Msg: msg})
	return e
}

// At fills in the position when the error does not carry one yet.
func (e *Error) At(sp source.Span) *Error {
	if e != nil && !e.Span.IsValid() {
		e.Span = sp
	}
	return e
}

// Diagnostic converts the error into a bag entry.
func (e *Error) Diagnostic() Diagnostic {
	return Diagnostic{
		Severity: SevError,
		Code:     e.Code,
		Message:  e.Message,
		Primary:  e.Span,
		Notes:    e.Notes,
	}
}

// AsError unwraps err to a *Error when one is present in its chain.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// CodeOf returns the classification of err, or UnknownCode.
func CodeOf(err error) Code {
	if de, ok := AsError(err); ok {
		return de.Code
	}
	return UnknownCode
}

// FromError wraps any error into a diagnostic, keeping structured data when
// the error carries it.
func FromError(err error) Diagnostic {
	if de, ok := AsError(err); ok {
		return de.Diagnostic()
	}
	return Diagnostic{Severity: SevError, Code: UnknownCode, Message: err.Error()}
}
