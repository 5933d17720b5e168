package registry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-viper/mapstructure/v2"
	"github.com/vk/eventhost/internal/config"
	"github.com/vk/eventhost/internal/ctxlog"
	"github.com/vk/eventhost/internal/eventbus"
)

// Module is the interface that all built-in modules implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Emitter sends an event to a remote peer set.
type Emitter interface {
	Emit(event string, args ...any) error
}

// Deps are the host services a module may use when building its callback.
type Deps struct {
	Out    io.Writer
	Client *http.Client
	// Bridge resolves a configured upstream by name.
	Bridge func(name string) (Emitter, bool)
}

// RegisteredModule holds the compiled Go parts of a subscriber module.
type RegisteredModule struct {
	// NewInput returns a pointer to a fresh argument struct. Fields are
	// matched against subscription arguments by their `arg` tag.
	NewInput func() any
	// Build returns the callback function to register on the bus for event.
	Build func(event string, input any, deps *Deps) (any, error)
}

// Registry maps module names to their implementations.
type Registry struct {
	modules map[string]*RegisteredModule
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{modules: make(map[string]*RegisteredModule)}
}

// RegisterModule adds a module under name. Registering the same name twice
// is a programming error and panics.
func (r *Registry) RegisterModule(name string, m *RegisteredModule) {
	if _, exists := r.modules[name]; exists {
		panic(fmt.Sprintf("module with name '%s' already registered", name))
	}
	slog.Debug("Registering module.", "name", name)
	r.modules[name] = m
}

// Names lists registered modules in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.modules))
	for name := range r.modules {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Subscribe builds the module named by sub and registers its callback for
// sub.Event on bus.
func (r *Registry) Subscribe(ctx context.Context, bus *eventbus.Registry, sub *config.Subscription, deps *Deps) (*eventbus.Callback, error) {
	m, ok := r.modules[sub.Module]
	if !ok {
		return nil, fmt.Errorf("subscription on %q: unknown module %q", sub.Event, sub.Module)
	}

	input := m.NewInput()
	if err := decodeArguments(sub.Arguments, input); err != nil {
		return nil, fmt.Errorf("subscription %q on %q: %w", sub.Module, sub.Event, err)
	}

	fn, err := m.Build(sub.Event, input, deps)
	if err != nil {
		return nil, fmt.Errorf("subscription %q on %q: %w", sub.Module, sub.Event, err)
	}

	cb, err := bus.Add(sub.Event, fn)
	if err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Debug("Subscribed module to event.", "module", sub.Module, "event", sub.Event, "callback", cb.String())
	return cb, nil
}

// decodeArguments fills out from the loosely typed argument map. Unknown
// keys are rejected so typos surface at startup.
func decodeArguments(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "arg",
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(args); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}
