// Package registry provides the glue between configuration and the built-in
// subscriber modules.
//
// Each module registers itself under a name together with a constructor for
// its argument struct and a Build function that turns decoded arguments into
// an event callback. Subscriptions from the config file name a module and an
// event; Subscribe decodes the arguments and attaches the built callback to
// the bus.
package registry
