package config

import "context"

// Loader is the interface for a format-specific configuration loader.
type Loader interface {
	// Extensions lists the file extensions (with the leading dot) this
	// loader understands.
	Extensions() []string

	// LoadFile reads a single file and translates it into the
	// format-agnostic model.
	LoadFile(ctx context.Context, path string) (*Model, error)
}
