// Package peer is the host's identity type for event sources. Every source
// string the host hands to the event bus has the form "transport:id" (or a
// bare id for locally raised events), and callbacks that declare a *Peer
// parameter receive the parsed form instead of the raw string.
package peer

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// Local is the transport name given to bare ids.
const Local = "local"

// ErrEmptyID is returned when a source names a transport but no id.
var ErrEmptyID = errors.New("peer: source has an empty id")

// Type is the reflect.Type of *Peer, for registering Parse as a source
// constructor.
var Type = reflect.TypeOf((*Peer)(nil))

// Peer identifies the origin of an event.
type Peer struct {
	Transport string
	ID        string
}

// Parse builds a Peer from a source string. Only the first colon separates
// the transport from the id, so ids may contain colons themselves.
func Parse(source string) (*Peer, error) {
	source = strings.TrimSpace(source)
	transport, id, found := strings.Cut(source, ":")
	if !found {
		transport, id = Local, source
	}
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: %q", ErrEmptyID, source)
	}
	if transport == "" {
		transport = Local
	}
	return &Peer{Transport: transport, ID: id}, nil
}

// Source renders p back into the source form Parse accepts.
func (p *Peer) Source() string {
	return p.Transport + ":" + p.ID
}

// String implements fmt.Stringer.
func (p *Peer) String() string { return p.Source() }

// Constructor adapts Parse to the event bus source-constructor signature.
func Constructor(source string) (any, error) {
	return Parse(source)
}
