package eventbus

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/vk/eventhost/internal/ctxlog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Registry maps case-insensitive event names to their Entry.
//
// A Registry is owned by whatever component delivers events to it; there is
// no process-wide instance. All methods are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	entries  map[string]*Entry
	settings *settings
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{
		entries:  make(map[string]*Entry),
		settings: newSettings(opts),
	}
}

// Lookup returns the Entry for name, creating and storing an empty one the
// first time any casing of name is seen. Probing a name therefore always
// leaves an Entry behind.
func (r *Registry) Lookup(name string) *Entry {
	key := foldName(name)

	r.mu.RLock()
	entry, ok := r.entries[key]
	r.mu.RUnlock()
	if ok {
		return entry
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.entries[key]; ok {
		return entry
	}
	entry = newEntry(name, r.settings)
	r.entries[key] = entry
	return entry
}

// Add wraps fn in a Callback and registers it under name. Parameters whose
// type was registered with RegisterSourceType are bound from the source.
func (r *Registry) Add(name string, fn any, opts ...CallbackOption) (*Callback, error) {
	opts = append([]CallbackOption{withSourceTypes(r.settings.sourceTypes())}, opts...)
	cb, err := NewCallback(fn, opts...)
	if err != nil {
		return nil, fmt.Errorf("registering callback for event %q: %w", name, err)
	}
	r.Lookup(name).Register(cb)
	return cb, nil
}

// AddCallback registers an already built callback under name.
func (r *Registry) AddCallback(name string, cb *Callback) {
	r.Lookup(name).Register(cb)
}

// Remove unregisters cb from name. Removing from a name that was never
// looked up does nothing and creates no Entry.
func (r *Registry) Remove(name string, cb *Callback) bool {
	r.mu.RLock()
	entry, ok := r.entries[foldName(name)]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	return entry.Unregister(cb)
}

// RegisterSourceType makes ctor the constructor for source parameters of
// type t. Callbacks added afterwards through Add have parameters of type t
// bound from the source automatically.
func (r *Registry) RegisterSourceType(t reflect.Type, ctor SourceConstructor) {
	r.settings.srcMu.Lock()
	defer r.settings.srcMu.Unlock()
	r.settings.sources[t] = ctor
}

// Dispatch raises name with the given source and arguments and waits until
// every callback registered for it has run. An unknown name is a no-op.
//
// Callback failures are logged and prune the failing callback; they are never
// returned. Dispatch only fails when ctx ends before the broadcast completes
// or when the nesting limit set by WithMaxDepth is exceeded.
func (r *Registry) Dispatch(ctx context.Context, name, source string, args ...any) error {
	logger := ctxlog.FromContext(ctx)

	r.mu.RLock()
	entry, ok := r.entries[foldName(name)]
	r.mu.RUnlock()
	if !ok {
		logger.Debug("No entry for event, skipping dispatch.", "event", name)
		return nil
	}

	depth := depthFrom(ctx) + 1
	if limit := r.settings.maxDepth; limit > 0 && depth > limit {
		logger.Error("Dropping nested event dispatch.", "event", name, "depth", depth, "max_depth", limit)
		return fmt.Errorf("%w: event %q at depth %d", ErrMaxDepthExceeded, name, depth)
	}
	ctx = withDepth(ctx, depth)

	ctx, span := r.settings.tracer.Start(ctx, "eventbus.dispatch", trace.WithAttributes(
		attribute.String("eventbus.event", entry.Name()),
		attribute.String("eventbus.source", source),
		attribute.Int("eventbus.args", len(args)),
	))
	defer span.End()

	if err := entry.Invoke(ctx, source, args); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// Names returns the original-case name of every Entry, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

type depthKey struct{}

func depthFrom(ctx context.Context) int {
	d, _ := ctx.Value(depthKey{}).(int)
	return d
}

func withDepth(ctx context.Context, d int) context.Context {
	return context.WithValue(ctx, depthKey{}, d)
}
