// Package status defines the error kinds shared by delegator compute calls,
// the tuning API and the key-value storage layer.
package status

import (
	"errors"
	"fmt"
)

// Code is the closed set of result kinds.
type Code int

const (
	Success Code = iota
	InvalidArgs
	OutOfResources
	Unsupported
	RuntimeError
)

func (c Code) String() string {
	switch c {
	case Success:
		return "success"
	case InvalidArgs:
		return "invalid_args"
	case OutOfResources:
		return "out_of_resources"
	case Unsupported:
		return "unsupported"
	case RuntimeError:
		return "runtime_error"
	default:
		return fmt.Sprintf("code(%d)", int(c))
	}
}

// Sentinel kinds. Match with errors.Is.
var (
	ErrInvalidArgs    = errors.New("invalid arguments")
	ErrOutOfResources = errors.New("out of resources")
	ErrUnsupported    = errors.New("unsupported")
	ErrRuntime        = errors.New("runtime error")
)

func sentinel(c Code) error {
	switch c {
	case InvalidArgs:
		return ErrInvalidArgs
	case OutOfResources:
		return ErrOutOfResources
	case Unsupported:
		return ErrUnsupported
	case RuntimeError:
		return ErrRuntime
	default:
		return nil
	}
}

// Error carries a Code plus the operation that produced it.
type Error struct {
	Code Code
	Op   string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Code.String()
	if e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e.Code.
func (e *Error) Is(target error) bool {
	s := sentinel(e.Code)
	return s != nil && target == s
}

// New returns an *Error with a formatted message.
func New(code Code, op, format string, args ...any) error {
	return &Error{Code: code, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap attaches code and op to err. A nil err stays nil.
func Wrap(code Code, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Op: op, Err: err}
}

// CodeOf maps err onto a Code. Unrecognised errors are RuntimeError.
func CodeOf(err error) Code {
	if err == nil {
		return Success
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	switch {
	case errors.Is(err, ErrInvalidArgs):
		return InvalidArgs
	case errors.Is(err, ErrOutOfResources):
		return OutOfResources
	case errors.Is(err, ErrUnsupported):
		return Unsupported
	default:
		return RuntimeError
	}
}

// LegacyCode returns 0 for nil and -1 otherwise, the integer convention
// older storage callers expect from Load and Flush.
func LegacyCode(err error) int {
	if err == nil {
		return 0
	}
	return -1
}
