package eventbus

import (
	"reflect"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/vk/eventhost/internal/eventbus"

// SourceConstructor builds an in-domain identity value (a player, a peer,
// a session) from a raw, non-blank source string.
type SourceConstructor func(source string) (any, error)

// Option configures a Registry.
type Option func(*settings)

// WithCallbackTimeout bounds how long Invoke waits for the Awaitable a
// callback returns. A callback whose result is still pending after d is
// treated as failed and removed. Zero, the default, waits forever.
func WithCallbackTimeout(d time.Duration) Option {
	return func(s *settings) {
		s.callbackTimeout = d
	}
}

// WithMaxDepth limits how deeply dispatches may nest when callbacks raise
// further events. Zero, the default, means no limit.
func WithMaxDepth(n int) Option {
	return func(s *settings) {
		s.maxDepth = n
	}
}

// WithTracer sets the tracer used for dispatch spans. The global otel
// tracer provider is used by default.
func WithTracer(t trace.Tracer) Option {
	return func(s *settings) {
		s.tracer = t
	}
}

// WithSourceType registers ctor as the way to build source parameters of
// type t. See Registry.RegisterSourceType.
func WithSourceType(t reflect.Type, ctor SourceConstructor) Option {
	return func(s *settings) {
		s.sources[t] = ctor
	}
}

// settings is shared by a Registry and all of its entries.
type settings struct {
	callbackTimeout time.Duration
	maxDepth        int
	tracer          trace.Tracer

	srcMu   sync.RWMutex
	sources map[reflect.Type]SourceConstructor
}

func newSettings(opts []Option) *settings {
	s := &settings{
		sources: make(map[reflect.Type]SourceConstructor),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	return s
}

func (s *settings) sourceConstructor(t reflect.Type) (SourceConstructor, bool) {
	s.srcMu.RLock()
	defer s.srcMu.RUnlock()
	ctor, ok := s.sources[t]
	return ctor, ok
}

func (s *settings) sourceTypes() map[reflect.Type]struct{} {
	s.srcMu.RLock()
	defer s.srcMu.RUnlock()
	out := make(map[reflect.Type]struct{}, len(s.sources))
	for t := range s.sources {
		out[t] = struct{}{}
	}
	return out
}
