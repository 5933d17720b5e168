// Package relay re-emits local events to a socket.io bridge.
package relay

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/eventhost/internal/ctxlog"
	"github.com/vk/eventhost/internal/peer"
	"github.com/vk/eventhost/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for a relay subscription.
type Input struct {
	Bridge    string `arg:"bridge"`
	EmitEvent string `arg:"emit_event"`
}

// Build resolves the target bridge and returns a callback that emits
// (origin, args...) upstream. Events that arrived over the same bridge are
// not sent back to it.
func Build(event string, input any, deps *registry.Deps) (any, error) {
	in := input.(*Input)
	if in.Bridge == "" {
		return nil, errors.New("relay: bridge is required")
	}
	if deps == nil || deps.Bridge == nil {
		return nil, fmt.Errorf("relay: no bridges configured, cannot use %q", in.Bridge)
	}
	target, ok := deps.Bridge(in.Bridge)
	if !ok {
		return nil, fmt.Errorf("relay: unknown bridge %q", in.Bridge)
	}
	emit := in.EmitEvent
	if emit == "" {
		emit = event
	}

	return func(ctx context.Context, p *peer.Peer, args ...any) error {
		origin := ""
		if p != nil {
			if p.Transport == in.Bridge {
				return nil
			}
			origin = p.Source()
		}
		ctxlog.FromContext(ctx).Debug("Relaying event.", "event", event, "bridge", in.Bridge, "emit_event", emit, "origin", origin)
		if err := target.Emit(emit, append([]any{origin}, args...)...); err != nil {
			return fmt.Errorf("relay to %q: %w", in.Bridge, err)
		}
		return nil
	}, nil
}

// Register registers the module with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterModule("relay", &registry.RegisteredModule{
		NewInput: func() any { return new(Input) },
		Build:    Build,
	})
}
