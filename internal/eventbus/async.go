package eventbus

import (
	"context"
	"fmt"
	"reflect"
	"sync"
)

// Awaitable is a pending computation a callback may return. Invoke waits
// for it before moving on to the next callback; a non-nil error counts as a
// failure of the callback that returned it.
type Awaitable interface {
	Await(ctx context.Context) error
}

// Task is an Awaitable backed by a goroutine.
type Task struct {
	done chan struct{}
	once sync.Once
	err  error
}

// Go runs fn in a new goroutine and returns a Task that completes with its
// result. A panic inside fn completes the task with a *PanicError.
func Go(fn func() error) *Task {
	t := &Task{done: make(chan struct{})}
	go func() {
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = &PanicError{Value: r}
			}
			t.complete(err)
		}()
		err = fn()
	}()
	return t
}

// Done returns an already completed Task. A nil err means success.
func Done(err error) *Task {
	t := &Task{done: make(chan struct{})}
	t.complete(err)
	return t
}

func (t *Task) complete(err error) {
	t.once.Do(func() {
		t.err = err
		close(t.done)
	})
}

// Await blocks until the task completes or ctx is done.
func (t *Task) Await(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

var (
	awaitableType = reflect.TypeOf((*Awaitable)(nil)).Elem()
	errChanType   = reflect.TypeOf((<-chan error)(nil))
)

// awaitChan adapts a receive-only error channel. A closed channel without a
// value is success.
type awaitChan (<-chan error)

func (c awaitChan) Await(ctx context.Context) error {
	select {
	case err := <-c:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pending scans a callback's return values. It returns the awaitables to
// wait for, in result order, and the first synchronous error.
func pending(results []reflect.Value) ([]Awaitable, error) {
	var (
		syncErr error
		waits   []Awaitable
	)
	for _, r := range results {
		t := r.Type()
		switch {
		case t == errChanType:
			if !r.IsNil() {
				waits = append(waits, awaitChan(r.Interface().(<-chan error)))
			}
		case t.Implements(awaitableType):
			if isNilValue(r) {
				continue
			}
			waits = append(waits, r.Interface().(Awaitable))
		case t == errorType:
			if !r.IsNil() && syncErr == nil {
				syncErr = r.Interface().(error)
			}
		}
	}
	return waits, syncErr
}

func isNilValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// await waits for every awaitable in turn, stopping at the first failure.
func await(ctx context.Context, waits []Awaitable) error {
	for i, w := range waits {
		if err := w.Await(ctx); err != nil {
			if len(waits) > 1 {
				return fmt.Errorf("awaited result %d: %w", i, err)
			}
			return err
		}
	}
	return nil
}
