package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/eventhost/internal/testutil"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestApp_RunLifecycle(t *testing.T) {
	// --- Arrange ---
	dir := t.TempDir()
	script := writeFile(t, dir, "greet.lua", `
AddEventHandler("eventhost:started", function(source)
  TriggerEvent("greeting", "hello from " .. source)
end)
`)
	cfgPath := writeFile(t, dir, "host.hcl", `
log {
  level  = "debug"
  format = "text"
}

scripts = ["`+filepath.ToSlash(script)+`"]

subscription "print" {
  event = "eventhost:started"
  arguments {
    prefix = "[boot]"
  }
}

subscription "print" {
  event = "greeting"
}

subscription "print" {
  event = "eventhost:stopping"
}
`)

	out := &testutil.SafeBuffer{}
	cfg, err := NewConfig(Config{ConfigPaths: []string{cfgPath}})
	require.NoError(t, err)
	a, err := NewApp(context.Background(), out, cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, err = a.Bus().Add("greeting", func() { cancel() })
	require.NoError(t, err)

	// --- Act ---
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	// --- Assert ---
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after the context was cancelled")
	}

	logs := out.String()
	assert.Contains(t, logs, `[boot] eventhost:started source="local:host"`)
	assert.Contains(t, logs, `greeting source="lua:greet" hello from local:host`)
	assert.Contains(t, logs, `eventhost:stopping source="local:host"`)
	assert.Contains(t, logs, "Event host shutting down.")
}

func TestNewApp_Overrides(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "host.yaml", `
log:
  level: warn
dispatch:
  callback_timeout: 1s
  max_depth: 3
http:
  port: 8080
`)
	t.Setenv("EVENTHOST_HTTP_PORT", "9090")

	port := 0
	timeout := 2 * time.Second
	cfg, err := NewConfig(Config{
		ConfigPaths:     []string{cfgPath},
		LogLevel:        "debug",
		HTTPPort:        &port,
		CallbackTimeout: &timeout,
	})
	require.NoError(t, err)

	a, err := NewApp(context.Background(), &testutil.SafeBuffer{}, cfg)
	require.NoError(t, err)

	m := a.Model()
	assert.Equal(t, "debug", m.Log.Level)
	assert.Equal(t, 0, m.HTTP.Port, "flags win over environment and files")
	assert.Equal(t, 2*time.Second, m.Dispatch.CallbackTimeout)
	assert.Equal(t, 3, m.Dispatch.MaxDepth)
	assert.Nil(t, a.ingress)
}

func TestNewApp_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "unknown module",
			content: `subscription "teleport" { event = "e" }`,
			wantErr: `unknown module "teleport"`,
		},
		{
			name:    "invalid log level",
			content: `log { level = "loud" }`,
			wantErr: "invalid configuration",
		},
		{
			name:    "syntax error",
			content: `subscription "print" {`,
			wantErr: "failed to load configuration",
		},
		{
			name:    "relay to missing bridge",
			content: "subscription \"relay\" {\n  event = \"e\"\n  arguments {\n    bridge = \"nowhere\"\n  }\n}\n",
			wantErr: `unknown bridge "nowhere"`,
		},
	}

	for i, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, dir, "case"+string(rune('a'+i))+".hcl", tc.content)
			cfg, err := NewConfig(Config{ConfigPaths: []string{path}})
			require.NoError(t, err)
			_, err = NewApp(context.Background(), &testutil.SafeBuffer{}, cfg)
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestNewConfig(t *testing.T) {
	_, err := NewConfig(Config{})
	assert.ErrorContains(t, err, "config path is required")

	bad := -1
	_, err = NewConfig(Config{ConfigPaths: []string{"x"}, HTTPPort: &bad})
	assert.ErrorContains(t, err, "http port")

	neg := -time.Second
	_, err = NewConfig(Config{ConfigPaths: []string{"x"}, CallbackTimeout: &neg})
	assert.ErrorContains(t, err, "callback timeout")
}

func TestApp_RunFailsOnBadScript(t *testing.T) {
	dir := t.TempDir()
	script := writeFile(t, dir, "broken.lua", `this is not lua`)
	cfgPath := writeFile(t, dir, "host.hcl", `scripts = ["`+filepath.ToSlash(script)+`"]`)

	cfg, err := NewConfig(Config{ConfigPaths: []string{cfgPath}})
	require.NoError(t, err)
	a, err := NewApp(context.Background(), &testutil.SafeBuffer{}, cfg)
	require.NoError(t, err)

	err = a.Run(context.Background())
	assert.ErrorContains(t, err, "load lua")
}
