package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Model is the unified, format-agnostic representation of the host
// configuration.
type Model struct {
	Log           Log
	Dispatch      Dispatch
	HTTP          HTTP
	Bridges       []*Bridge
	Scripts       []string
	Subscriptions []*Subscription
}

// Log configures the host logger.
type Log struct {
	Level  string
	Format string
}

// Dispatch configures the event bus.
type Dispatch struct {
	// CallbackTimeout bounds how long one callback's asynchronous result is
	// awaited. Zero waits forever.
	CallbackTimeout time.Duration
	// MaxDepth limits nested dispatches. Zero means unlimited.
	MaxDepth int
}

// HTTP configures the ingress server. Port 0 disables it.
type HTTP struct {
	Port int
}

// Bridge is an upstream socket.io connection whose events are forwarded
// into the bus.
type Bridge struct {
	Name               string
	URL                string
	Namespace          string
	Events             []string
	InsecureSkipVerify bool
	ConnectTimeout     time.Duration
}

// Subscription attaches a built-in module to an event.
type Subscription struct {
	Module    string
	Event     string
	Arguments map[string]any
}

// Default returns the model used when nothing is configured.
func Default() *Model {
	return &Model{
		Log: Log{Level: "info", Format: "json"},
	}
}

// Merge folds other into m. Scalars set in other win; lists are appended.
func (m *Model) Merge(other *Model) {
	if other == nil {
		return
	}
	if other.Log.Level != "" {
		m.Log.Level = other.Log.Level
	}
	if other.Log.Format != "" {
		m.Log.Format = other.Log.Format
	}
	if other.Dispatch.CallbackTimeout != 0 {
		m.Dispatch.CallbackTimeout = other.Dispatch.CallbackTimeout
	}
	if other.Dispatch.MaxDepth != 0 {
		m.Dispatch.MaxDepth = other.Dispatch.MaxDepth
	}
	if other.HTTP.Port != 0 {
		m.HTTP.Port = other.HTTP.Port
	}
	m.Bridges = append(m.Bridges, other.Bridges...)
	m.Scripts = append(m.Scripts, other.Scripts...)
	m.Subscriptions = append(m.Subscriptions, other.Subscriptions...)
}

// Bridge returns the bridge called name, or nil.
func (m *Model) Bridge(name string) *Bridge {
	for _, b := range m.Bridges {
		if b.Name == name {
			return b
		}
	}
	return nil
}

// Validate reports every problem with the model at once.
func (m *Model) Validate() error {
	var errs []error

	switch strings.ToLower(m.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid log level %q: must be 'debug', 'info', 'warn', or 'error'", m.Log.Level))
	}
	switch strings.ToLower(m.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid log format %q: must be 'text' or 'json'", m.Log.Format))
	}
	if m.Dispatch.CallbackTimeout < 0 {
		errs = append(errs, errors.New("dispatch callback timeout cannot be negative"))
	}
	if m.Dispatch.MaxDepth < 0 {
		errs = append(errs, errors.New("dispatch max depth cannot be negative"))
	}
	if m.HTTP.Port < 0 || m.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid http port %d", m.HTTP.Port))
	}

	seen := make(map[string]struct{}, len(m.Bridges))
	for i, b := range m.Bridges {
		if b.Name == "" {
			errs = append(errs, fmt.Errorf("bridge %d: name is required", i))
		} else if _, dup := seen[b.Name]; dup {
			errs = append(errs, fmt.Errorf("bridge %q: declared more than once", b.Name))
		}
		seen[b.Name] = struct{}{}
		if b.URL == "" {
			errs = append(errs, fmt.Errorf("bridge %q: url is required", b.Name))
		}
	}

	for i, s := range m.Subscriptions {
		if s.Module == "" {
			errs = append(errs, fmt.Errorf("subscription %d: module is required", i))
		}
		if strings.TrimSpace(s.Event) == "" {
			errs = append(errs, fmt.Errorf("subscription %d (%s): event is required", i, s.Module))
		}
	}

	return errors.Join(errs...)
}

// ParseDuration accepts the empty string as zero.
func ParseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, s, err)
	}
	return d, nil
}
