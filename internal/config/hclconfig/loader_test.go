package hclconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/eventhost/internal/config"
	"github.com/vk/eventhost/internal/testutil"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoader_LoadFile(t *testing.T) {
	ctx, _ := testutil.LogContext(t)
	path := writeFile(t, t.TempDir(), "host.hcl", `
log {
  level  = "debug"
  format = "text"
}

dispatch {
  callback_timeout = "5s"
  max_depth        = 8
}

http {
  port = 8080
}

bridge "upstream" {
  url       = "http://localhost:3000/socket.io/"
  namespace = "/game"
  events    = ["chat", "join"]
}

scripts = ["scripts/chat.lua"]

subscription "print" {
  event = "chat"
  arguments {
    prefix = "[chat]"
    limit  = 3
    ratio  = 0.5
    tags   = ["a", "b"]
  }
}

subscription "print" {
  event = "join"
}
`)

	model, err := NewLoader().LoadFile(ctx, path)
	require.NoError(t, err)

	want := &config.Model{
		Log:      config.Log{Level: "debug", Format: "text"},
		Dispatch: config.Dispatch{CallbackTimeout: 5 * time.Second, MaxDepth: 8},
		HTTP:     config.HTTP{Port: 8080},
		Bridges: []*config.Bridge{{
			Name:      "upstream",
			URL:       "http://localhost:3000/socket.io/",
			Namespace: "/game",
			Events:    []string{"chat", "join"},
		}},
		Scripts: []string{"scripts/chat.lua"},
		Subscriptions: []*config.Subscription{
			{Module: "print", Event: "chat", Arguments: map[string]any{
				"prefix": "[chat]",
				"limit":  int64(3),
				"ratio":  0.5,
				"tags":   []any{"a", "b"},
			}},
			{Module: "print", Event: "join"},
		},
	}
	if diff := cmp.Diff(want, model); diff != "" {
		t.Errorf("model mismatch (-want +got):\n%s", diff)
	}
}

func TestLoader_Errors(t *testing.T) {
	ctx, _ := testutil.LogContext(t)
	dir := t.TempDir()

	t.Run("syntax error", func(t *testing.T) {
		path := writeFile(t, dir, "bad.hcl", `log {`)
		_, err := NewLoader().LoadFile(ctx, path)
		assert.ErrorContains(t, err, "failed to parse HCL file")
	})

	t.Run("unknown block", func(t *testing.T) {
		path := writeFile(t, dir, "unknown.hcl", `runner "x" {}`)
		_, err := NewLoader().LoadFile(ctx, path)
		assert.ErrorContains(t, err, "failed to decode HCL file")
	})

	t.Run("bad duration", func(t *testing.T) {
		path := writeFile(t, dir, "dur.hcl", `dispatch { callback_timeout = "soon" }`)
		_, err := NewLoader().LoadFile(ctx, path)
		assert.ErrorContains(t, err, `invalid callback_timeout "soon"`)
	})

	t.Run("bridge without url", func(t *testing.T) {
		path := writeFile(t, dir, "bridge.hcl", `bridge "x" {}`)
		_, err := NewLoader().LoadFile(ctx, path)
		assert.Error(t, err)
	})
}

func TestLoad_MergesDirectory(t *testing.T) {
	ctx, _ := testutil.LogContext(t)
	dir := t.TempDir()
	writeFile(t, dir, "a.hcl", `
log { level = "warn" }
subscription "print" { event = "one" }
`)
	writeFile(t, dir, "b.hcl", `
http { port = 9000 }
subscription "print" { event = "two" }
`)
	writeFile(t, dir, "notes.txt", "ignored")

	model, err := config.Load(ctx, []config.Loader{NewLoader()}, dir, filepath.Join(dir, "missing"))
	require.NoError(t, err)

	assert.Equal(t, "warn", model.Log.Level)
	assert.Equal(t, "json", model.Log.Format, "defaults survive when not overridden")
	assert.Equal(t, 9000, model.HTTP.Port)
	require.Len(t, model.Subscriptions, 2)
	assert.Equal(t, "one", model.Subscriptions[0].Event)
	assert.Equal(t, "two", model.Subscriptions[1].Event)
	require.NoError(t, model.Validate())
}
