package eventbus

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/vk/eventhost/internal/ctxlog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Entry holds the ordered callbacks registered for one event name.
type Entry struct {
	name     string
	settings *settings

	mu        sync.Mutex
	callbacks []*Callback
}

func newEntry(name string, s *settings) *Entry {
	return &Entry{name: name, settings: s}
}

// Name returns the event name with the casing it was first seen with.
func (e *Entry) Name() string { return e.name }

// Len returns the number of live callbacks.
func (e *Entry) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.callbacks)
}

// Register appends cb. The same callback may be registered more than once;
// each copy runs on every invoke.
func (e *Entry) Register(cb *Callback) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.callbacks = append(e.callbacks, cb)
}

// Unregister removes the first registration of cb and reports whether one
// was found.
func (e *Entry) Unregister(cb *Callback) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := slices.Index(e.callbacks, cb)
	if i < 0 {
		return false
	}
	e.callbacks = slices.Delete(e.callbacks, i, i+1)
	return true
}

func (e *Entry) snapshot() []*Callback {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.callbacks)
}

// Invoke runs every callback registered when the call starts, one at a time
// in registration order, waiting on any Awaitable a callback returns before
// starting the next. Registrations made meanwhile only affect later invokes.
//
// A callback that fails is logged and unregistered, and the loop carries on.
// Invoke returns a non-nil error only when ctx ends first; the callbacks not
// yet run are then skipped and kept.
func (e *Entry) Invoke(ctx context.Context, source string, args []any) error {
	for _, cb := range e.snapshot() {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := e.call(ctx, cb, source, args)
		if err == nil {
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return ctxErr
		}
		e.prune(ctx, cb, err)
	}
	return nil
}

func (e *Entry) call(ctx context.Context, cb *Callback, source string, args []any) (err error) {
	in, err := e.bind(ctx, cb, source, args)
	if err != nil {
		return err
	}

	var results []reflect.Value
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = &PanicError{Value: r}
			}
		}()
		results = cb.fn.Call(in)
	}()
	if err != nil {
		return err
	}

	waits, err := pending(results)
	if err != nil || len(waits) == 0 {
		return err
	}

	timeout := e.settings.callbackTimeout
	if timeout <= 0 {
		return await(ctx, waits)
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err = await(waitCtx, waits)
	if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrCallbackTimeout, timeout)
	}
	return err
}

// bind builds the argument list for cb. The positional cursor only moves for
// parameters that take a dispatch argument.
func (e *Entry) bind(ctx context.Context, cb *Callback, source string, args []any) ([]reflect.Value, error) {
	in := make([]reflect.Value, 0, len(cb.params))
	cursor := 0
	for i, p := range cb.params {
		switch p.Kind {
		case ContextParam:
			in = append(in, reflect.ValueOf(ctx))

		case FromSourceParam:
			v, err := e.bindSource(source, p.Type)
			if err != nil {
				return nil, fmt.Errorf("parameter %d: %w", i, err)
			}
			in = append(in, v)

		case VariadicParam:
			elem := p.Type.Elem()
			for ; cursor < len(args); cursor++ {
				v, err := Coerce(e.name, args[cursor], elem)
				if err != nil {
					return nil, fmt.Errorf("argument %d: %w", cursor, err)
				}
				in = append(in, v)
			}

		default:
			if cursor >= len(args) {
				in = append(in, reflect.Zero(p.Type))
				cursor++
				continue
			}
			v, err := Coerce(e.name, args[cursor], p.Type)
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", cursor, err)
			}
			in = append(in, v)
			cursor++
		}
	}
	return in, nil
}

func (e *Entry) bindSource(source string, t reflect.Type) (reflect.Value, error) {
	if strings.TrimSpace(source) == "" {
		return reflect.Zero(t), nil
	}
	if ctor, ok := e.settings.sourceConstructor(t); ok {
		obj, err := ctor(source)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("building %s from source %q: %w", t, source, err)
		}
		return Coerce(e.name, obj, t)
	}
	if t.Kind() == reflect.Interface {
		return Coerce(e.name, source, t)
	}
	return Coerce(e.name, Source(source), t)
}

func (e *Entry) prune(ctx context.Context, cb *Callback, err error) {
	ctxlog.FromContext(ctx).Error("Error invoking callback for event",
		"event", e.name,
		"callback", cb.String(),
		"error", err,
	)
	trace.SpanFromContext(ctx).RecordError(err, trace.WithAttributes(
		attribute.String("eventbus.event", e.name),
		attribute.String("eventbus.callback", cb.String()),
	))
	e.Unregister(cb)
}
