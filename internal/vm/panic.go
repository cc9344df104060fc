package vm

import (
	"fmt"
	"strings"
)

// PanicCode identifies the type of VM panic.
type PanicCode int

// Stable panic codes - do not change values.
const (
	PanicUnknownFunction PanicCode = 1001 // VM1001: call of an unknown or body-less function
	PanicTypeMismatch    PanicCode = 1002 // VM1002: operand shape does not fit the instruction
	PanicOutOfBounds     PanicCode = 1003 // VM1003: memory access outside its allocation
	PanicNullDeref       PanicCode = 1004 // VM1004: access through a null pointer
	PanicUseAfterFree    PanicCode = 1005 // VM1005: access to freed or returned storage
	PanicInvalidFree     PanicCode = 1006 // VM1006: free of a non-heap or interior pointer
	PanicDoubleFree      PanicCode = 1007 // VM1007: second free of an allocation
	PanicDivideByZero    PanicCode = 1008 // VM1008: sdiv or srem by zero
	PanicBadShift        PanicCode = 1009 // VM1009: shift amount out of range
	PanicUnreachable     PanicCode = 1010 // VM1010: unreachable executed
	PanicBadJump         PanicCode = 1011 // VM1011: longjmp to a buffer without a live setjmp
	PanicOutOfMemory     PanicCode = 1012 // VM1012: allocation over the VM limit
	PanicStepLimit       PanicCode = 1013 // VM1013: step budget exhausted
	PanicStackOverflow   PanicCode = 1014 // VM1014: call depth over the VM limit
	PanicUnimplemented   PanicCode = 1999 // VM1999: unimplemented opcode
)

// String returns the code as "VM1001" format.
func (c PanicCode) String() string {
	return fmt.Sprintf("VM%d", c)
}

// BacktraceFrame represents one frame in the panic backtrace.
type BacktraceFrame struct {
	FuncName string
	Block    string
}

// VMError represents a runtime panic in the VM.
type VMError struct {
	Code      PanicCode
	Message   string
	Backtrace []BacktraceFrame // Stack frames from top to bottom
}

// Error implements the error interface.
func (p *VMError) Error() string {
	return fmt.Sprintf("panic %s: %s", p.Code, p.Message)
}

// Format renders the panic with its backtrace.
func (p *VMError) Format() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "panic %s: %s\n", p.Code, p.Message)
	if len(p.Backtrace) > 0 {
		sb.WriteString("backtrace:\n")
		for i, frame := range p.Backtrace {
			fmt.Fprintf(&sb, "  %d: @%s in %%%s\n", i, frame.FuncName, frame.Block)
		}
	}
	return sb.String()
}

// errorBuilder helps construct VMError values.
type errorBuilder struct {
	vm *VM
}

func (eb *errorBuilder) makeError(code PanicCode, msg string) *VMError {
	e := &VMError{
		Code:    code,
		Message: msg,
	}
	stack := eb.vm.stack
	e.Backtrace = make([]BacktraceFrame, len(stack))
	for i := len(stack) - 1; i >= 0; i-- {
		frame := stack[i]
		e.Backtrace[len(stack)-1-i] = BacktraceFrame{
			FuncName: frame.fn.Name,
			Block:    frame.block.Name,
		}
	}
	return e
}

func (eb *errorBuilder) errorf(code PanicCode, format string, args ...any) *VMError {
	return eb.makeError(code, fmt.Sprintf(format, args...))
}

func (eb *errorBuilder) typeMismatch(what string) *VMError {
	return eb.makeError(PanicTypeMismatch, what)
}
