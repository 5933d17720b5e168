package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// envOverrides lists the variables that can override file configuration.
// Pointer fields stay nil when the variable is unset.
type envOverrides struct {
	LogLevel        string         `env:"EVENTHOST_LOG_LEVEL"`
	LogFormat       string         `env:"EVENTHOST_LOG_FORMAT"`
	HTTPPort        *int           `env:"EVENTHOST_HTTP_PORT"`
	CallbackTimeout *time.Duration `env:"EVENTHOST_CALLBACK_TIMEOUT"`
	MaxDepth        *int           `env:"EVENTHOST_MAX_DEPTH"`
	Scripts         []string       `env:"EVENTHOST_SCRIPTS" envSeparator:","`
}

// ApplyEnv loads dotenvPath (if it exists) into the process environment and
// applies any EVENTHOST_* variables to m. Variables already set in the
// environment take precedence over the dotenv file.
func ApplyEnv(m *Model, dotenvPath string) error {
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", dotenvPath, err)
		}
	}

	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parsing environment: %w", err)
	}

	if o.LogLevel != "" {
		m.Log.Level = strings.ToLower(o.LogLevel)
	}
	if o.LogFormat != "" {
		m.Log.Format = strings.ToLower(o.LogFormat)
	}
	if o.HTTPPort != nil {
		m.HTTP.Port = *o.HTTPPort
	}
	if o.CallbackTimeout != nil {
		m.Dispatch.CallbackTimeout = *o.CallbackTimeout
	}
	if o.MaxDepth != nil {
		m.Dispatch.MaxDepth = *o.MaxDepth
	}
	m.Scripts = append(m.Scripts, o.Scripts...)
	return nil
}
