// Package eventbus is the in-process, name-addressed event dispatcher.
//
// Callers register ordinary Go functions against event names and raise events
// with a source identifier and a positional argument list. Each registered
// function gets a parameter descriptor table built once at registration time;
// on dispatch the arguments are bound against that table, coerced to the
// declared parameter types, and the function is called through reflection.
//
//	bus := eventbus.NewRegistry()
//	bus.Add("playerJoined", func(src eventbus.Source, name string, level int) {
//	    fmt.Println(src, name, level)
//	})
//	_ = bus.Dispatch(ctx, "PlayerJoined", "12", "alice", 3.0)
//
// Event names are case-insensitive. Callbacks of one event run strictly one
// after another in registration order; a callback returning an Awaitable (for
// example a *Task from Go) is awaited before the next one starts.
//
// A callback that fails (returns an error, panics, fails to bind its arguments,
// or whose awaited result fails) is logged and permanently removed from its
// event. Failures never reach the caller of Dispatch.
package eventbus
