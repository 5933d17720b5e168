package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		assert.NoError(t, Default().Validate())
	})

	t.Run("collects every problem", func(t *testing.T) {
		m := Default()
		m.Log.Level = "loud"
		m.Log.Format = "xml"
		m.HTTP.Port = 70000
		m.Dispatch.MaxDepth = -1
		m.Bridges = []*Bridge{{Name: "a", URL: "http://x"}, {Name: "a"}}
		m.Subscriptions = []*Subscription{{Module: "print"}}

		err := m.Validate()
		require.Error(t, err)
		for _, want := range []string{
			`invalid log level "loud"`,
			`invalid log format "xml"`,
			"invalid http port 70000",
			"max depth cannot be negative",
			`bridge "a": declared more than once`,
			`bridge "a": url is required`,
			"subscription 0 (print): event is required",
		} {
			assert.ErrorContains(t, err, want)
		}
	})
}

func TestMerge(t *testing.T) {
	m := Default()
	m.Merge(&Model{
		Log:      Log{Level: "debug"},
		Dispatch: Dispatch{CallbackTimeout: time.Second},
		Scripts:  []string{"a.lua"},
	})
	m.Merge(&Model{Scripts: []string{"b.lua"}, Bridges: []*Bridge{{Name: "up", URL: "http://x"}}})
	m.Merge(nil)

	assert.Equal(t, "debug", m.Log.Level)
	assert.Equal(t, "json", m.Log.Format)
	assert.Equal(t, time.Second, m.Dispatch.CallbackTimeout)
	assert.Equal(t, []string{"a.lua", "b.lua"}, m.Scripts)
	assert.NotNil(t, m.Bridge("up"))
	assert.Nil(t, m.Bridge("down"))
}

func TestApplyEnv(t *testing.T) {
	dotenv := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(dotenv, []byte("EVENTHOST_MAX_DEPTH=4\nEVENTHOST_LOG_LEVEL=warn\n"), 0o644))

	t.Setenv("EVENTHOST_LOG_LEVEL", "DEBUG")
	t.Setenv("EVENTHOST_HTTP_PORT", "8081")
	t.Setenv("EVENTHOST_CALLBACK_TIMEOUT", "3s")
	t.Setenv("EVENTHOST_SCRIPTS", "one.lua,two.lua")
	// godotenv writes into the process environment; register cleanup first.
	t.Setenv("EVENTHOST_MAX_DEPTH", "")
	require.NoError(t, os.Unsetenv("EVENTHOST_MAX_DEPTH"))

	m := Default()
	require.NoError(t, ApplyEnv(m, dotenv))

	assert.Equal(t, "debug", m.Log.Level, "real environment wins over the dotenv file")
	assert.Equal(t, 8081, m.HTTP.Port)
	assert.Equal(t, 3*time.Second, m.Dispatch.CallbackTimeout)
	assert.Equal(t, 4, m.Dispatch.MaxDepth)
	assert.Equal(t, []string{"one.lua", "two.lua"}, m.Scripts)
}

func TestApplyEnv_MissingDotenvIsIgnored(t *testing.T) {
	m := Default()
	require.NoError(t, ApplyEnv(m, filepath.Join(t.TempDir(), "nope.env")))
	assert.Equal(t, "info", m.Log.Level)
}

func TestApplyEnv_BadValue(t *testing.T) {
	t.Setenv("EVENTHOST_HTTP_PORT", "eighty")
	err := ApplyEnv(Default(), "")
	assert.ErrorContains(t, err, "parsing environment")
}
