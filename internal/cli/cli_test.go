package cli

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	out := &bytes.Buffer{}
	cfg, exit, err := Parse([]string{
		"-config", "a.hcl",
		"-config", "dir",
		"-log-level", "DEBUG",
		"-log-format", "text",
		"-http-port", "0",
		"-callback-timeout", "3s",
		"-console",
		"extra.yaml",
	}, out)
	require.NoError(t, err)
	require.False(t, exit)

	assert.Equal(t, []string{"a.hcl", "dir", "extra.yaml"}, cfg.ConfigPaths)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	require.NotNil(t, cfg.HTTPPort)
	assert.Equal(t, 0, *cfg.HTTPPort, "an explicit 0 still overrides")
	require.NotNil(t, cfg.CallbackTimeout)
	assert.Equal(t, 3*time.Second, *cfg.CallbackTimeout)
	assert.True(t, cfg.Console)
	assert.Equal(t, ".env", cfg.DotenvPath)
}

func TestParse_UnsetFlagsDoNotOverride(t *testing.T) {
	cfg, _, err := Parse([]string{"host.hcl"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Nil(t, cfg.HTTPPort)
	assert.Nil(t, cfg.CallbackTimeout)
	assert.Empty(t, cfg.LogLevel)
	assert.False(t, cfg.Console)
}

func TestParse_ExitCases(t *testing.T) {
	t.Run("help", func(t *testing.T) {
		out := &bytes.Buffer{}
		cfg, exit, err := Parse([]string{"-h"}, out)
		require.NoError(t, err)
		assert.True(t, exit)
		assert.Nil(t, cfg)
		assert.Contains(t, out.String(), "Usage:")
	})

	t.Run("no paths prints usage", func(t *testing.T) {
		out := &bytes.Buffer{}
		_, exit, err := Parse(nil, out)
		require.NoError(t, err)
		assert.True(t, exit)
		assert.Contains(t, out.String(), "CONFIG_PATH")
	})
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "unknown flag", args: []string{"-nope"}, wantErr: "flag provided but not defined"},
		{name: "bad format", args: []string{"-log-format", "xml", "a.hcl"}, wantErr: "invalid log-format"},
		{name: "bad level", args: []string{"-log-level", "loud", "a.hcl"}, wantErr: "invalid log-level"},
		{name: "bad port", args: []string{"-http-port", "70000", "a.hcl"}, wantErr: "http port"},
		{name: "negative timeout", args: []string{"-callback-timeout", "-1s", "a.hcl"}, wantErr: "callback timeout"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Parse(tc.args, &bytes.Buffer{})
			require.Error(t, err)
			var exitErr *ExitError
			require.True(t, errors.As(err, &exitErr))
			assert.Equal(t, 2, exitErr.Code)
			assert.Contains(t, exitErr.Message, tc.wantErr)
		})
	}
}
