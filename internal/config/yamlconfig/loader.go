// Package yamlconfig loads host configuration from YAML files.
package yamlconfig

import (
	"context"
	"fmt"
	"os"

	"github.com/vk/eventhost/internal/config"
	"github.com/vk/eventhost/internal/ctxlog"
	"gopkg.in/yaml.v3"
)

// Loader is the YAML implementation of config.Loader.
type Loader struct{}

// NewLoader creates a new YAML configuration loader.
func NewLoader() *Loader { return &Loader{} }

// Extensions implements config.Loader.
func (l *Loader) Extensions() []string { return []string{".yaml", ".yml"} }

type document struct {
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Dispatch struct {
		CallbackTimeout string `yaml:"callback_timeout"`
		MaxDepth        int    `yaml:"max_depth"`
	} `yaml:"dispatch"`
	HTTP struct {
		Port int `yaml:"port"`
	} `yaml:"http"`
	Bridges []struct {
		Name               string   `yaml:"name"`
		URL                string   `yaml:"url"`
		Namespace          string   `yaml:"namespace"`
		Events             []string `yaml:"events"`
		InsecureSkipVerify bool     `yaml:"insecure_skip_verify"`
		ConnectTimeout     string   `yaml:"connect_timeout"`
	} `yaml:"bridges"`
	Scripts       []string `yaml:"scripts"`
	Subscriptions []struct {
		Module    string         `yaml:"module"`
		Event     string         `yaml:"event"`
		Arguments map[string]any `yaml:"arguments"`
	} `yaml:"subscriptions"`
}

// LoadFile reads one YAML file and translates it into a config.Model.
func (l *Loader) LoadFile(ctx context.Context, path string) (*config.Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode YAML file %s: %w", path, err)
	}

	timeout, err := config.ParseDuration("callback_timeout", doc.Dispatch.CallbackTimeout)
	if err != nil {
		return nil, fmt.Errorf("in %s: %w", path, err)
	}

	m := &config.Model{
		Log:      config.Log{Level: doc.Log.Level, Format: doc.Log.Format},
		Dispatch: config.Dispatch{CallbackTimeout: timeout, MaxDepth: doc.Dispatch.MaxDepth},
		HTTP:     config.HTTP{Port: doc.HTTP.Port},
		Scripts:  doc.Scripts,
	}
	for _, b := range doc.Bridges {
		d, err := config.ParseDuration("connect_timeout", b.ConnectTimeout)
		if err != nil {
			return nil, fmt.Errorf("in %s: bridge %q: %w", path, b.Name, err)
		}
		m.Bridges = append(m.Bridges, &config.Bridge{
			Name:               b.Name,
			URL:                b.URL,
			Namespace:          b.Namespace,
			Events:             b.Events,
			InsecureSkipVerify: b.InsecureSkipVerify,
			ConnectTimeout:     d,
		})
	}
	for _, s := range doc.Subscriptions {
		m.Subscriptions = append(m.Subscriptions, &config.Subscription{
			Module:    s.Module,
			Event:     s.Event,
			Arguments: s.Arguments,
		})
	}

	ctxlog.FromContext(ctx).Debug("Loaded YAML config file.", "path", path, "bridges", len(m.Bridges), "subscriptions", len(m.Subscriptions))
	return m, nil
}
