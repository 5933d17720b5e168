package bridge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/eventhost/internal/config"
	"github.com/vk/eventhost/internal/eventbus"
	"github.com/vk/eventhost/internal/peer"
	"github.com/vk/eventhost/internal/testutil"
)

func TestBridge_ForwardUsesBridgeSource(t *testing.T) {
	ctx, _ := testutil.LogContext(t)
	bus := eventbus.NewRegistry(eventbus.WithSourceType(peer.Type, peer.Constructor))

	var got []*peer.Peer
	var msgs []string
	_, err := bus.Add("chat", func(p *peer.Peer, msg string) {
		got = append(got, p)
		msgs = append(msgs, msg)
	})
	require.NoError(t, err)

	b := New(&config.Bridge{Name: "upstream", URL: "http://localhost"}, bus)
	b.forward(ctx, "CHAT", "abc", []any{"hello"})

	require.Len(t, got, 1)
	assert.Equal(t, &peer.Peer{Transport: "upstream", ID: "abc"}, got[0])
	assert.Equal(t, []string{"hello"}, msgs)
}

func TestBridge_EmitBeforeConnect(t *testing.T) {
	b := New(&config.Bridge{Name: "upstream", URL: "http://localhost"}, eventbus.NewRegistry())
	err := b.Emit("chat", "x")
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorContains(t, err, `bridge "upstream"`)
	b.Close()
	b.Close()
}

func TestBridge_ConnectRejectsBadURL(t *testing.T) {
	ctx, _ := testutil.LogContext(t)
	b := New(&config.Bridge{Name: "x", URL: "not a url/socket.io"}, eventbus.NewRegistry())
	assert.ErrorContains(t, b.Connect(ctx), "must be absolute")
}

func TestBridge_ConnectFailsAgainstNonSocketServer(t *testing.T) {
	ctx, _ := testutil.LogContext(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	b := New(&config.Bridge{
		Name:           "x",
		URL:            srv.URL + "/socket.io/",
		ConnectTimeout: 500 * time.Millisecond,
	}, eventbus.NewRegistry())

	err := b.Connect(ctx)
	require.Error(t, err)
	assert.ErrorContains(t, err, `bridge "x"`)
	assert.ErrorIs(t, b.Emit("chat"), ErrNotConnected)
}

func TestBridge_ConnectHonorsCancellation(t *testing.T) {
	ctx, _ := testutil.LogContext(t)
	ctx, cancel := context.WithCancel(ctx)
	cancel()

	b := New(&config.Bridge{Name: "x", URL: "http://127.0.0.1:1/socket.io/"}, eventbus.NewRegistry())
	err := b.Connect(ctx)
	require.Error(t, err)
}

func TestSet(t *testing.T) {
	bus := eventbus.NewRegistry()
	s := NewSet()
	a := New(&config.Bridge{Name: "a", URL: "http://a"}, bus)
	s.Add(a)
	s.Add(New(&config.Bridge{Name: "b", URL: "http://b"}, bus))
	a2 := New(&config.Bridge{Name: "a", URL: "http://a2"}, bus)
	s.Add(a2)

	assert.Equal(t, 2, s.Len())
	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Same(t, a2, got)

	em, ok := s.Emitter("b")
	require.True(t, ok)
	assert.ErrorIs(t, em.Emit("e"), ErrNotConnected)

	_, ok = s.Emitter("c")
	assert.False(t, ok)
	s.Close()
}
