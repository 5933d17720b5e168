// Package scripting embeds a Lua runtime that can subscribe to and raise
// events on the bus.
//
// Scripts see three globals:
//
//	AddEventHandler(name, fn) -> handle
//	RemoveEventHandler(name, handle) -> removed
//	TriggerEvent(name, ...)
//
// Handlers receive the event source followed by the event arguments. Events
// raised by a script carry the source "lua:<script>". A Lua error inside a
// handler is returned to the bus as a Go error, which removes the handler.
//
// One Lua state is shared by every script loaded into a Host and is guarded
// by a single lock. A handler that raises an event which reaches another
// Lua handler re-enters without taking the lock again.
package scripting

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Shopify/go-lua"
	"github.com/vk/eventhost/internal/ctxlog"
	"github.com/vk/eventhost/internal/eventbus"
)

// SourcePrefix is the transport name of events raised from Lua.
const SourcePrefix = "lua"

const handlersKey = "eventhost.handlers"

type lockKey struct{}

type handler struct {
	id     int
	event  string
	script string
	cb     *eventbus.Callback
}

// Host owns a Lua state bound to an event bus.
type Host struct {
	bus *eventbus.Registry

	mu    sync.Mutex
	state *lua.State

	// Valid only while mu is held.
	ctx      context.Context
	script   string
	nextID   int
	handlers map[int]*handler
}

// NewHost creates a Lua state with the standard libraries and the event
// globals installed.
func NewHost(bus *eventbus.Registry) *Host {
	h := &Host{
		bus:      bus,
		state:    lua.NewState(),
		ctx:      context.Background(),
		handlers: make(map[int]*handler),
	}
	lua.OpenLibraries(h.state)

	h.state.NewTable()
	h.state.SetField(lua.RegistryIndex, handlersKey)

	for name, fn := range map[string]lua.Function{
		"AddEventHandler":    h.luaAddEventHandler,
		"RemoveEventHandler": h.luaRemoveEventHandler,
		"TriggerEvent":       h.luaTriggerEvent,
		"print":              h.luaPrint,
	} {
		h.state.PushGoFunction(fn)
		h.state.SetGlobal(name)
	}
	return h
}

// acquire takes the host lock unless ctx shows it is already held by this
// goroutine's call chain.
func (h *Host) acquire(ctx context.Context) (context.Context, func()) {
	if ctx.Value(lockKey{}) == h {
		return ctx, func() {}
	}
	h.mu.Lock()
	return context.WithValue(ctx, lockKey{}, h), h.mu.Unlock
}

// enter records the running context and script, returning a restore func.
func (h *Host) enter(ctx context.Context, script string) func() {
	prevCtx, prevScript := h.ctx, h.script
	h.ctx, h.script = ctx, script
	return func() { h.ctx, h.script = prevCtx, prevScript }
}

// LoadFile runs a script. Handlers it registers stay active until removed,
// until they fail, or until Close.
func (h *Host) LoadFile(ctx context.Context, path string) error {
	ctx, unlock := h.acquire(ctx)
	defer unlock()

	script := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	defer h.enter(ctx, script)()

	top := h.state.Top()
	defer h.state.SetTop(top)

	if err := lua.LoadFile(h.state, path, ""); err != nil {
		return fmt.Errorf("load lua %s: %w", path, err)
	}
	if err := h.state.ProtectedCall(0, 0, 0); err != nil {
		return fmt.Errorf("run lua %s: %w", path, err)
	}
	ctxlog.FromContext(ctx).Info("Loaded script.", "script", script, "path", path)
	return nil
}

// Handlers reports how many Lua handlers are registered.
func (h *Host) Handlers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handlers)
}

// Close removes every Lua handler from the bus.
func (h *Host) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, hd := range h.handlers {
		h.bus.Remove(hd.event, hd.cb)
		delete(h.handlers, id)
	}
}

// invoke calls one Lua handler on behalf of the bus.
func (h *Host) invoke(ctx context.Context, hd *handler, source string, args []any) error {
	ctx, unlock := h.acquire(ctx)
	defer unlock()
	defer h.enter(ctx, hd.script)()

	// Removed by another handler after the bus took its snapshot.
	if _, ok := h.handlers[hd.id]; !ok {
		return nil
	}

	l := h.state
	top := l.Top()
	defer l.SetTop(top)

	l.Field(lua.RegistryIndex, handlersKey)
	l.RawGetInt(-1, hd.id)
	if l.TypeOf(-1) != lua.TypeFunction {
		return fmt.Errorf("lua handler %d for %q is gone", hd.id, hd.event)
	}
	l.PushString(source)
	for _, a := range args {
		pushValue(l, a)
	}
	if err := l.ProtectedCall(1+len(args), 0, 0); err != nil {
		h.forget(hd)
		return fmt.Errorf("lua handler in %s for %q: %w", hd.script, hd.event, err)
	}
	return nil
}

// forget drops a handler's Lua function. The bus unregisters the callback
// itself when it prunes.
func (h *Host) forget(hd *handler) {
	l := h.state
	l.Field(lua.RegistryIndex, handlersKey)
	l.PushNil()
	l.RawSetInt(-2, hd.id)
	l.Pop(1)
	delete(h.handlers, hd.id)
}

func (h *Host) luaAddEventHandler(l *lua.State) int {
	name := lua.CheckString(l, 1)
	lua.CheckType(l, 2, lua.TypeFunction)

	h.nextID++
	hd := &handler{id: h.nextID, event: name, script: h.script}

	l.Field(lua.RegistryIndex, handlersKey)
	l.PushValue(2)
	l.RawSetInt(-2, hd.id)
	l.Pop(1)

	cb, err := h.bus.Add(name, func(ctx context.Context, src eventbus.Source, args ...any) error {
		return h.invoke(ctx, hd, string(src), args)
	})
	if err != nil {
		lua.Errorf(l, "%s", err.Error())
		return 0
	}
	hd.cb = cb
	h.handlers[hd.id] = hd

	ctxlog.FromContext(h.ctx).Debug("Lua handler added.", "script", hd.script, "event", name, "handle", hd.id)
	l.PushInteger(hd.id)
	return 1
}

func (h *Host) luaRemoveEventHandler(l *lua.State) int {
	name := lua.CheckString(l, 1)
	id := lua.CheckInteger(l, 2)

	hd, ok := h.handlers[id]
	if !ok || !strings.EqualFold(hd.event, name) {
		l.PushBoolean(false)
		return 1
	}
	removed := h.bus.Remove(hd.event, hd.cb)
	h.forget(hd)
	ctxlog.FromContext(h.ctx).Debug("Lua handler removed.", "script", h.script, "event", hd.event, "handle", hd.id)
	l.PushBoolean(removed)
	return 1
}

func (h *Host) luaTriggerEvent(l *lua.State) int {
	name := lua.CheckString(l, 1)
	args := make([]any, 0, l.Top()-1)
	for i := 2; i <= l.Top(); i++ {
		args = append(args, luaToGo(l, i))
	}

	ctx, script := h.ctx, h.script
	if err := h.bus.Dispatch(ctx, name, SourcePrefix+":"+script, args...); err != nil {
		lua.Errorf(l, "TriggerEvent(%s): %s", name, err.Error())
		return 0
	}
	// A nested handler may have changed the running script; restore it.
	h.ctx, h.script = ctx, script
	return 0
}

func (h *Host) luaPrint(l *lua.State) int {
	parts := make([]string, 0, l.Top())
	for i := 1; i <= l.Top(); i++ {
		parts = append(parts, fmt.Sprint(luaToGo(l, i)))
	}
	ctxlog.FromContext(h.ctx).Info(strings.Join(parts, "\t"), "script", h.script)
	return 0
}
