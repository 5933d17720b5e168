// Package app wires the event host together: configuration, logging, the
// event bus, subscriber modules, bridges, scripts, the HTTP ingress and the
// optional console. It is decoupled from any entrypoint like the CLI.
package app
