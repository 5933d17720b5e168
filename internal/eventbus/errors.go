package eventbus

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrNilCallback is returned when a nil function is registered.
	ErrNilCallback = errors.New("eventbus: callback is nil")

	// ErrNotFunc is returned when a registered value is not a function.
	ErrNotFunc = errors.New("eventbus: callback is not a function")

	// ErrSourceIndex is returned when FromSource names a parameter the
	// function does not have.
	ErrSourceIndex = errors.New("eventbus: source parameter index out of range")

	// ErrCallbackTimeout is reported when an awaited callback result does not
	// complete within the configured callback timeout.
	ErrCallbackTimeout = errors.New("eventbus: callback timed out")

	// ErrMaxDepthExceeded is returned by Dispatch when re-entrant dispatches
	// nest deeper than the configured limit.
	ErrMaxDepthExceeded = errors.New("eventbus: maximum dispatch depth exceeded")
)

// CastError reports that an event argument could not be converted to the
// type a callback parameter declares.
type CastError struct {
	Event string
	From  reflect.Type
	To    reflect.Type
	Err   error
}

func (e *CastError) Error() string {
	from := "nil"
	if e.From != nil {
		from = e.From.String()
	}
	msg := fmt.Sprintf("could not cast event argument for %s from %s to %s", e.Event, from, e.To)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CastError) Unwrap() error { return e.Err }

// PanicError wraps a value recovered from a panicking callback.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("callback panicked: %v", e.Value)
}

// Unwrap exposes the panic value when it was itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
