// Package hclconfig loads host configuration from HCL files.
package hclconfig

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/eventhost/internal/config"
	"github.com/vk/eventhost/internal/ctxlog"
)

// Loader is the HCL implementation of config.Loader.
type Loader struct {
	parser *hclparse.Parser
}

// NewLoader creates a new HCL configuration loader.
func NewLoader() *Loader {
	return &Loader{parser: hclparse.NewParser()}
}

// Extensions implements config.Loader.
func (l *Loader) Extensions() []string { return []string{".hcl"} }

// fileRoot decodes every top-level construct a file may contain.
type fileRoot struct {
	Log           *logBlock            `hcl:"log,block"`
	Dispatch      *dispatchBlock       `hcl:"dispatch,block"`
	HTTP          *httpBlock           `hcl:"http,block"`
	Bridges       []*bridgeBlock       `hcl:"bridge,block"`
	Scripts       []string             `hcl:"scripts,optional"`
	Subscriptions []*subscriptionBlock `hcl:"subscription,block"`
}

type logBlock struct {
	Level  string `hcl:"level,optional"`
	Format string `hcl:"format,optional"`
}

type dispatchBlock struct {
	CallbackTimeout string `hcl:"callback_timeout,optional"`
	MaxDepth        int    `hcl:"max_depth,optional"`
}

type httpBlock struct {
	Port int `hcl:"port,optional"`
}

type bridgeBlock struct {
	Name               string   `hcl:"name,label"`
	URL                string   `hcl:"url"`
	Namespace          string   `hcl:"namespace,optional"`
	Events             []string `hcl:"events,optional"`
	InsecureSkipVerify bool     `hcl:"insecure_skip_verify,optional"`
	ConnectTimeout     string   `hcl:"connect_timeout,optional"`
}

type subscriptionBlock struct {
	Module    string          `hcl:"module,label"`
	Event     string          `hcl:"event"`
	Arguments *argumentsBlock `hcl:"arguments,block"`
}

type argumentsBlock struct {
	Body hcl.Body `hcl:",remain"`
}

// LoadFile parses one HCL file and translates it into a config.Model.
func (l *Loader) LoadFile(ctx context.Context, path string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)

	file, diags := l.parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}

	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", path, diags)
	}

	model, err := translate(&root)
	if err != nil {
		return nil, fmt.Errorf("in %s: %w", path, err)
	}
	logger.Debug("Loaded HCL config file.", "path", path, "bridges", len(model.Bridges), "subscriptions", len(model.Subscriptions))
	return model, nil
}

func translate(root *fileRoot) (*config.Model, error) {
	m := &config.Model{Scripts: root.Scripts}

	if root.Log != nil {
		m.Log = config.Log{Level: root.Log.Level, Format: root.Log.Format}
	}
	if root.Dispatch != nil {
		d, err := config.ParseDuration("callback_timeout", root.Dispatch.CallbackTimeout)
		if err != nil {
			return nil, err
		}
		m.Dispatch = config.Dispatch{CallbackTimeout: d, MaxDepth: root.Dispatch.MaxDepth}
	}
	if root.HTTP != nil {
		m.HTTP.Port = root.HTTP.Port
	}

	for _, b := range root.Bridges {
		d, err := config.ParseDuration("connect_timeout", b.ConnectTimeout)
		if err != nil {
			return nil, fmt.Errorf("bridge %q: %w", b.Name, err)
		}
		m.Bridges = append(m.Bridges, &config.Bridge{
			Name:               b.Name,
			URL:                b.URL,
			Namespace:          b.Namespace,
			Events:             b.Events,
			InsecureSkipVerify: b.InsecureSkipVerify,
			ConnectTimeout:     d,
		})
	}

	for _, s := range root.Subscriptions {
		args, err := decodeArguments(s.Arguments)
		if err != nil {
			return nil, fmt.Errorf("subscription %q on %q: %w", s.Module, s.Event, err)
		}
		m.Subscriptions = append(m.Subscriptions, &config.Subscription{
			Module:    s.Module,
			Event:     s.Event,
			Arguments: args,
		})
	}
	return m, nil
}

// decodeArguments evaluates a free-form arguments block into native values.
// Expressions are evaluated without variables or functions.
func decodeArguments(block *argumentsBlock) (map[string]any, error) {
	if block == nil {
		return nil, nil
	}
	attrs, diags := block.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}

	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]any, len(attrs))
	for _, name := range names {
		val, diags := attrs[name].Expr.Value(nil)
		if diags.HasErrors() {
			return nil, diags
		}
		native, err := ctyToNative(val)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", name, err)
		}
		out[name] = native
	}
	return out, nil
}
