// Package diag defines the error model shared by the lowering pipeline and the
// driver.
//
// Every failure inside the back end is fatal to the unit being compiled. The
// lowering code reports it as a *Error carrying a stable Code, a message and the
// originating source.Span. The driver converts errors of all units into
// Diagnostic records, collects them in a Bag, and renders them.
//
// Code values are grouped by range:
//
//   - 1000–1999 (LOW): lowering errors (types, interfaces, calls, expressions,
//     exceptions, declarations).
//   - 2000–2999 (IRV): generated IR failed verification.
//   - 4000–4999 (IO): reading inputs or writing outputs.
package diag
