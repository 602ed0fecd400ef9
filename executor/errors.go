package executor

import (
	"errors"
	"strings"
)

var (
	ErrClosed  = errors.New("executor closed")
	ErrTimeout = errors.New("execution timed out")
)

// RuntimeError is a failure raised while interpreted code was executing:
// an uncaught exception, a syntax error or a non-zero exit. Message is the
// interpreter's own description and is what users see.
type RuntimeError struct {
	Message string
	Err     error
}

func (e *RuntimeError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "runtime error"
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// NewRuntimeError builds a RuntimeError, using the trimmed interpreter
// message when there is one.
func NewRuntimeError(message string, err error) *RuntimeError {
	return &RuntimeError{Message: strings.TrimRight(message, "\n"), Err: err}
}
