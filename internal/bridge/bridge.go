// Package bridge connects the host to upstream socket.io servers. Events
// named in a bridge's configuration are forwarded into the event bus with
// the source "<bridge name>:<socket id>", and relay subscriptions can emit
// local events back upstream.
package bridge

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/vk/eventhost/internal/config"
	"github.com/vk/eventhost/internal/ctxlog"
	"github.com/vk/eventhost/internal/eventbus"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// DefaultConnectTimeout applies when the bridge config leaves it unset.
const DefaultConnectTimeout = 15 * time.Second

// ErrNotConnected is returned by Emit before Connect succeeds or after Close.
var ErrNotConnected = errors.New("bridge is not connected")

// Bridge is one upstream socket.io connection.
type Bridge struct {
	cfg *config.Bridge
	bus *eventbus.Registry

	mu  sync.RWMutex
	io  *socket.Socket
	ctx context.Context
}

// New creates an unconnected bridge.
func New(cfg *config.Bridge, bus *eventbus.Registry) *Bridge {
	return &Bridge{cfg: cfg, bus: bus}
}

// Name returns the configured bridge name.
func (b *Bridge) Name() string { return b.cfg.Name }

// Connect dials the upstream server and waits for the handshake. Forwarded
// events are dispatched with a context derived from ctx.
func (b *Bridge) Connect(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx).With("bridge", b.cfg.Name, "url", b.cfg.URL)

	parsedURL, err := url.Parse(b.cfg.URL)
	if err != nil {
		return fmt.Errorf("bridge %q: failed to parse URL: %w", b.cfg.Name, err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return fmt.Errorf("bridge %q: URL %q must be absolute", b.cfg.Name, b.cfg.URL)
	}

	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	if b.cfg.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	namespace := b.cfg.Namespace
	if namespace == "" {
		namespace = "/"
	}
	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(namespace, opts)

	dispatchCtx := ctxlog.With(context.WithoutCancel(ctx), "bridge", b.cfg.Name)
	for _, event := range b.cfg.Events {
		io.On(types.EventName(event), func(args ...any) {
			b.forward(dispatchCtx, event, fmt.Sprint(io.Id()), args)
		})
	}

	connectChan := make(chan error, 1)
	io.Once(types.EventName("connect"), func(...any) {
		logger.Info("Successfully connected", "sid", io.Id())
		select {
		case connectChan <- nil:
		default:
		}
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err := errors.New("connect_error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		select {
		case connectChan <- err:
		default:
		}
	})

	timeout := b.cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	logger.Debug("Initiating connection...", "namespace", namespace, "events", b.cfg.Events)
	io.Connect()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return fmt.Errorf("bridge %q: socket.io connection failed: %w", b.cfg.Name, err)
		}
	case <-ctx.Done():
		io.Disconnect()
		return fmt.Errorf("bridge %q: %w", b.cfg.Name, ctx.Err())
	case <-timer.C:
		io.Disconnect()
		return fmt.Errorf("bridge %q: timed out after %s waiting for socket.io connection", b.cfg.Name, timeout)
	}

	b.mu.Lock()
	b.io = io
	b.ctx = dispatchCtx
	b.mu.Unlock()
	return nil
}

// forward hands one upstream event to the bus.
func (b *Bridge) forward(ctx context.Context, event, sid string, args []any) {
	source := b.cfg.Name + ":" + sid
	if err := b.bus.Dispatch(ctx, event, source, args...); err != nil {
		ctxlog.FromContext(ctx).Warn("Forwarded event was not delivered.", "event", event, "source", source, "error", err)
	}
}

// Emit sends an event upstream.
func (b *Bridge) Emit(event string, args ...any) error {
	b.mu.RLock()
	io := b.io
	b.mu.RUnlock()
	if io == nil || !io.Connected() {
		return fmt.Errorf("bridge %q: %w", b.cfg.Name, ErrNotConnected)
	}
	io.Emit(event, args...)
	return nil
}

// Close disconnects the bridge. It is safe to call more than once.
func (b *Bridge) Close() {
	b.mu.Lock()
	io := b.io
	b.io = nil
	b.mu.Unlock()
	if io != nil {
		ctxlog.FromContext(b.ctx).Info("Disconnecting bridge", "bridge", b.cfg.Name, "sid", io.Id())
		io.Disconnect()
	}
}
