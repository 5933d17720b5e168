package print

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/vk/eventhost/internal/ctxlog"
	"github.com/vk/eventhost/internal/eventbus"
	"github.com/vk/eventhost/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for a print subscription.
type Input struct {
	Prefix string `arg:"prefix"`
}

// Build returns a callback that writes one line per event to deps.Out.
func Build(event string, input any, deps *registry.Deps) (any, error) {
	in := input.(*Input)
	var out io.Writer = os.Stdout
	if deps != nil && deps.Out != nil {
		out = deps.Out
	}
	var mu sync.Mutex

	return func(ctx context.Context, src eventbus.Source, args ...any) {
		ctxlog.FromContext(ctx).Debug("Printing event.", "event", event, "source", src)

		var b strings.Builder
		if in.Prefix != "" {
			b.WriteString(in.Prefix)
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s source=%q", event, string(src))
		for _, a := range args {
			fmt.Fprintf(&b, " %v", a)
		}
		b.WriteByte('\n')

		mu.Lock()
		defer mu.Unlock()
		io.WriteString(out, b.String())
	}, nil
}

// Register registers the module with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterModule("print", &registry.RegisteredModule{
		NewInput: func() any { return new(Input) },
		Build:    Build,
	})
}
