package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/synthctl/internal/fault"
)

var errInvalidValue = fault.New(fault.CodeArgument, "value", "zero Value has no type")

// BackendCode is the failure category an engine backend reports.
type BackendCode int

const (
	// BackendUnspecified is any failure without a more specific category.
	BackendUnspecified BackendCode = iota + 1
	// BackendArgument reports an invalid argument passed to the engine.
	BackendArgument
	// BackendLogic reports a call made in the wrong engine state.
	BackendLogic
	// BackendMemory reports an engine allocation failure.
	BackendMemory
)

// BackendError is returned by Driver and Backend implementations.
type BackendError struct {
	Code    BackendCode
	Message string
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	return fmt.Sprintf("engine error %d: %s", e.Code, e.Message)
}

// translate maps a boundary failure onto the fault taxonomy. Errors that are
// already categorized pass through; uncategorized errors become
// fault.ErrEngine.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	if fault.CodeOf(err) != "" {
		return err
	}
	var be *BackendError
	if !errors.As(err, &be) {
		return fault.Wrap(fault.CodeEngine, op, err)
	}
	code := fault.CodeEngine
	switch be.Code {
	case BackendArgument:
		code = fault.CodeArgument
	case BackendLogic:
		code = fault.CodeLogic
	case BackendMemory:
		code = fault.CodeMemory
	}
	return fault.Wrap(code, op, err)
}

// IsProtocolMisuse reports whether err is a LogicError raised by the
// builder or session, such as sending a nested bundle.
func IsProtocolMisuse(err error) bool {
	return fault.Is(err, fault.CodeLogic)
}

type duplicateRequestError struct {
	id RequestID
}

func (e duplicateRequestError) Error() string {
	return fmt.Sprintf("duplicate request id %d", e.id)
}

// IsDuplicateRequest reports whether err came from registering a reply
// handler under a request id that is already pending.
func IsDuplicateRequest(err error) bool {
	var de duplicateRequestError
	return errors.As(err, &de)
}
