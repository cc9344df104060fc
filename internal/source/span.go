package source

import (
	"fmt"
)

// FileID indexes Files of the unit that produced a span.
type FileID uint32

// NoFileID marks spans synthesized by the compiler.
const NoFileID FileID = 0

// Span is a source position carried by resolved tree nodes. The front end
// records line/column only; byte offsets never reach the back end.
type Span struct {
	File FileID
	Line uint32
	Col  uint32
}

func (s Span) IsValid() bool {
	return s.Line != 0
}

func (s Span) String() string {
	if s.Col == 0 {
		return fmt.Sprintf("%d:%d", s.File, s.Line)
	}
	return fmt.Sprintf("%d:%d:%d", s.File, s.Line, s.Col)
}

// Before orders spans by file, then line, then column.
func (s Span) Before(other Span) bool {
	if s.File != other.File {
		return s.File < other.File
	}
	if s.Line != other.Line {
		return s.Line < other.Line
	}
	return s.Col < other.Col
}

// At is a shorthand used by tree builders and tests.
func At(line uint32) Span {
	return Span{File: 1, Line: line}
}
