package app

import (
	"errors"
	"time"
)

// Config holds what the entrypoint knows before any file is read. Zero or
// nil override fields leave the file and environment values in place.
type Config struct {
	ConfigPaths []string
	DotenvPath  string

	LogLevel        string
	LogFormat       string
	HTTPPort        *int
	CallbackTimeout *time.Duration

	Console bool
}

// NewConfig validates cfg and returns a copy.
func NewConfig(cfg Config) (*Config, error) {
	if len(cfg.ConfigPaths) == 0 {
		return nil, errors.New("at least one config path is required")
	}
	if cfg.HTTPPort != nil && (*cfg.HTTPPort < 0 || *cfg.HTTPPort > 65535) {
		return nil, errors.New("http port must be between 0 and 65535")
	}
	if cfg.CallbackTimeout != nil && *cfg.CallbackTimeout < 0 {
		return nil, errors.New("callback timeout cannot be negative")
	}
	return &cfg, nil
}
