package fault

import (
	"errors"
	"fmt"
)

// Code categorizes a failure.
type Code string

const (
	// CodeArgument indicates an invalid caller-supplied value.
	CodeArgument Code = "ARGUMENT_ERROR"

	// CodeLogic indicates protocol misuse: sending a nested bundle,
	// registering a duplicate request id, using a closed session.
	CodeLogic Code = "LOGIC_ERROR"

	// CodeMemory indicates an allocation failure reported by the engine.
	CodeMemory Code = "MEMORY_ERROR"

	// CodeResourceExhausted indicates the identifier space is full.
	CodeResourceExhausted Code = "RESOURCE_EXHAUSTED"

	// CodeInvalidIdentifier indicates an id outside the allocator range or
	// one that is not currently allocated.
	CodeInvalidIdentifier Code = "INVALID_IDENTIFIER"

	// CodePacketOverflow indicates a message exceeded its buffer.
	CodePacketOverflow Code = "PACKET_OVERFLOW"

	// CodeEngine is anything the engine reports that maps to no other code.
	CodeEngine Code = "ENGINE_ERROR"
)

// Sentinels for errors.Is. They match any *Error with the same Code.
var (
	ErrArgument          = &Error{Code: CodeArgument}
	ErrLogic             = &Error{Code: CodeLogic}
	ErrMemory            = &Error{Code: CodeMemory}
	ErrResourceExhausted = &Error{Code: CodeResourceExhausted}
	ErrInvalidIdentifier = &Error{Code: CodeInvalidIdentifier}
	ErrPacketOverflow    = &Error{Code: CodePacketOverflow}
	ErrEngine            = &Error{Code: CodeEngine}
)

// Error is a categorized failure.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Op names the operation that failed, e.g. "ids.alloc" or "/synth/new".
	Op string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// New creates an Error.
func New(code Code, op, message string) *Error {
	return &Error{Code: code, Op: op, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(code Code, op, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error around a cause.
func Wrap(code Code, op string, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if msg == "" {
		msg = "failure"
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Op, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Is reports whether err (or anything it wraps) carries code.
func Is(err error, code Code) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code == code
	}
	return false
}

// CodeOf returns the Code carried by err, or "" if err is not categorized.
func CodeOf(err error) Code {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

// Misuse creates a LogicError for a violated protocol rule.
func Misuse(op, message string) *Error {
	return New(CodeLogic, op, message)
}
