package sqld

import (
	"errors"
	"fmt"
)

// EngineError is a failure reported by the SQL engine: open, compile, or
// execution. Msg carries the engine's own diagnostic text.
type EngineError struct {
	// Op is the engine call that failed (open, prepare, step, finalize, close).
	Op string

	// Code is the engine result code name, e.g. "SQLITE_ERROR". May be empty.
	Code string

	// Msg is the engine's diagnostic text.
	Msg string

	// Err is the underlying engine error.
	Err error
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("sqld: %s: %s: %s", e.Op, e.Code, e.Msg)
	}
	return fmt.Sprintf("sqld: %s: %s", e.Op, e.Msg)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// UsageError reports a call that violated a documented precondition.
// It indicates a bug in the caller.
type UsageError struct {
	Op  string
	Msg string
}

// Error implements the error interface.
func (e *UsageError) Error() string {
	return fmt.Sprintf("sqld: %s: %s", e.Op, e.Msg)
}

// IsEngineError reports whether err is, or wraps, an *EngineError.
func IsEngineError(err error) bool {
	var ee *EngineError
	return errors.As(err, &ee)
}

// IsUsageError reports whether err is, or wraps, a *UsageError.
func IsUsageError(err error) bool {
	var ue *UsageError
	return errors.As(err, &ue)
}

func usageError(op, msg string) *UsageError {
	return &UsageError{Op: op, Msg: msg}
}

// engineError wraps an engine failure. Errors that already are an
// *EngineError keep their code and message and only take the new op.
func engineError(op string, err error) *EngineError {
	var ee *EngineError
	if errors.As(err, &ee) {
		return &EngineError{Op: op, Code: ee.Code, Msg: ee.Msg, Err: ee.Err}
	}
	return &EngineError{Op: op, Msg: err.Error(), Err: err}
}
