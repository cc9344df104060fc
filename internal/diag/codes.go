package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Type resolution
	LowInfo               Code = 1000
	LowUnregisteredStruct Code = 1001
	LowUnsupportedType    Code = 1002
	LowRecursiveLayout    Code = 1003
	LowUnknownInterface   Code = 1004

	// Interface conformance
	LowMissingInterfaceMember Code = 1101
	LowInterfaceSignature     Code = 1102

	// Calls
	LowArityMismatch Code = 1201
	LowNotCallable   Code = 1202
	LowBadArgument   Code = 1203

	// Expressions and lvalues
	LowBadMemberAccess Code = 1301
	LowBadComparison   Code = 1302
	LowBadLvalue       Code = 1303
	LowUnresolvedName  Code = 1304
	LowBadConversion   Code = 1305
	LowBadOperator     Code = 1306
	LowBadIndex        Code = 1307
	LowOutsideLoop     Code = 1308
	LowBadReturn       Code = 1309
	LowThisOutsideType Code = 1310

	// Exceptions
	LowThrowTooLarge Code = 1401

	// Declarations
	LowDuplicateDecl   Code = 1501
	LowBadInitializer  Code = 1502
	LowBadEntry        Code = 1503
	LowMalformedTree   Code = 1504
	LowBadPropertyDecl Code = 1505

	// IR verification
	IRInvalid Code = 2001

	// IO
	IOLoadFileError  Code = 4001
	IOWriteFileError Code = 4002
)

var codeDescription = map[Code]string{
	UnknownCode:               "Unknown error",
	LowInfo:                   "Lowering information",
	LowUnregisteredStruct:     "Struct type was never declared",
	LowUnsupportedType:        "Type shape has no machine representation",
	LowRecursiveLayout:        "Recursive value type has infinite size",
	LowUnknownInterface:       "Interface type was never declared",
	LowMissingInterfaceMember: "Type does not implement interface member",
	LowInterfaceSignature:     "Implementation signature does not match interface slot",
	LowArityMismatch:          "Wrong number of call arguments",
	LowNotCallable:            "Expression is not callable",
	LowBadArgument:            "Argument cannot be passed as parameter type",
	LowBadMemberAccess:        "Member access on a type without members",
	LowBadComparison:          "Operands cannot be compared",
	LowBadLvalue:              "Expression is not assignable",
	LowUnresolvedName:         "Name does not resolve to a declaration",
	LowBadConversion:          "Value cannot be converted to target type",
	LowBadOperator:            "Operator not supported for operand types",
	LowBadIndex:               "Indexing requires an array operand",
	LowOutsideLoop:            "break/continue outside of a loop",
	LowBadReturn:              "Return value count does not match signature",
	LowThisOutsideType:        "this used outside of a member body",
	LowThrowTooLarge:          "Thrown value does not fit the exception slot",
	LowDuplicateDecl:          "Duplicate declaration in namespace",
	LowBadInitializer:         "Initializer cannot be lowered",
	LowBadEntry:               "Entry point has an unsupported signature",
	LowMalformedTree:          "Malformed resolved tree",
	LowBadPropertyDecl:        "Property accessor does not match declaration",
	IRInvalid:                 "Generated IR failed verification",
	IOLoadFileError:           "I/O load file error",
	IOWriteFileError:          "I/O write file error",
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("LOW%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("IRV%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("IO%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[Code(0)]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
