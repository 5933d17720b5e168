package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/vk/eventhost/internal/bridge"
	"github.com/vk/eventhost/internal/config"
	"github.com/vk/eventhost/internal/config/hclconfig"
	"github.com/vk/eventhost/internal/config/yamlconfig"
	"github.com/vk/eventhost/internal/ctxlog"
	"github.com/vk/eventhost/internal/eventbus"
	"github.com/vk/eventhost/internal/ingress"
	"github.com/vk/eventhost/internal/peer"
	"github.com/vk/eventhost/internal/registry"
	"github.com/vk/eventhost/internal/scripting"
)

// Lifecycle events raised by the host itself with source HostSource.
const (
	EventStarted  = "eventhost:started"
	EventStopping = "eventhost:stopping"
	HostSource    = "local:host"
)

// webhookTimeout bounds requests made by the webhook module's shared client.
const webhookTimeout = 30 * time.Second

// App encapsulates the host's dependencies, configuration, and lifecycle.
type App struct {
	outW    io.Writer
	cfg     *Config
	model   *config.Model
	logger  *slog.Logger
	bus     *eventbus.Registry
	modules *registry.Registry
	bridges *bridge.Set
	scripts *scripting.Host
	ingress *ingress.Server
}

// NewApp loads configuration and builds every component. Nothing is
// started until Run.
func NewApp(ctx context.Context, outW io.Writer, cfg *Config, modules ...registry.Module) (*App, error) {
	bootLogger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx = ctxlog.WithLogger(ctx, bootLogger)

	loaders := []config.Loader{hclconfig.NewLoader(), yamlconfig.NewLoader()}
	model, err := config.Load(ctx, loaders, cfg.ConfigPaths...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := config.ApplyEnv(model, cfg.DotenvPath); err != nil {
		return nil, err
	}
	applyOverrides(model, cfg)
	if err := model.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := newLogger(model.Log.Level, model.Log.Format, outW)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Configuration loaded.", "paths", cfg.ConfigPaths)

	a := &App{
		outW:   outW,
		cfg:    cfg,
		model:  model,
		logger: logger,
		bus: eventbus.NewRegistry(
			eventbus.WithCallbackTimeout(model.Dispatch.CallbackTimeout),
			eventbus.WithMaxDepth(model.Dispatch.MaxDepth),
			eventbus.WithSourceType(peer.Type, peer.Constructor),
		),
		modules: registry.New(),
		bridges: bridge.NewSet(),
	}

	for _, b := range model.Bridges {
		a.bridges.Add(bridge.New(b, a.bus))
	}

	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(a.modules)
	}
	logger.Debug("Modules registered.", "modules", a.modules.Names())

	deps := &registry.Deps{
		Out:    outW,
		Client: &http.Client{Timeout: webhookTimeout},
		Bridge: a.bridges.Emitter,
	}
	for _, sub := range model.Subscriptions {
		if _, err := a.modules.Subscribe(ctx, a.bus, sub, deps); err != nil {
			return nil, err
		}
	}

	a.scripts = scripting.NewHost(a.bus)

	if model.HTTP.Port > 0 {
		a.ingress, err = ingress.New(ctx, a.bus)
		if err != nil {
			return nil, err
		}
	}

	logger.Debug("App constructed.",
		"subscriptions", len(model.Subscriptions),
		"bridges", a.bridges.Len(),
		"scripts", len(model.Scripts),
		"http_port", model.HTTP.Port,
	)
	return a, nil
}

func applyOverrides(m *config.Model, cfg *Config) {
	if cfg.LogLevel != "" {
		m.Log.Level = cfg.LogLevel
	}
	if cfg.LogFormat != "" {
		m.Log.Format = cfg.LogFormat
	}
	if cfg.HTTPPort != nil {
		m.HTTP.Port = *cfg.HTTPPort
	}
	if cfg.CallbackTimeout != nil {
		m.Dispatch.CallbackTimeout = *cfg.CallbackTimeout
	}
}

// Bus returns the application's event bus.
func (a *App) Bus() *eventbus.Registry { return a.bus }

// Model returns the effective configuration.
func (a *App) Model() *config.Model { return a.model }

// Logger returns the application's logger.
func (a *App) Logger() *slog.Logger { return a.logger }
