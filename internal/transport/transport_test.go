package transport

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gemwallet/internal/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
		return Event{}
	}
}

func TestLocalWindow_PostMessage(t *testing.T) {
	w := NewLocalWindow("https://dapp.example", protocol.ConnectionInfo{Title: "dApp"})
	defer w.Close()

	got := make(chan Event, 4)
	remove := w.AddListener(func(ev Event) { got <- ev })

	require.NoError(t, w.PostMessage(map[string]string{"hello": "world"}, "https://dapp.example"))
	ev := recv(t, got)
	assert.Equal(t, w.ID(), ev.Source)
	assert.JSONEq(t, `{"hello":"world"}`, string(ev.Data))

	// 目标 origin 不符时静默丢弃
	require.NoError(t, w.PostMessage("x", "https://evil.example"))
	require.NoError(t, w.PostMessage("y", "*"))
	ev = recv(t, got)
	assert.JSONEq(t, `"y"`, string(ev.Data))

	assert.Equal(t, 1, w.Listeners())
	remove()
	remove()
	assert.Equal(t, 0, w.Listeners())
	assert.Equal(t, "https://dapp.example", w.Info().URL)

	w.Close()
	assert.ErrorIs(t, w.PostMessage("z", "*"), ErrClosed)
}

func TestBridge_DialAndExchange(t *testing.T) {
	attached := make(chan Window, 1)
	bridge := NewBridge(nil, func(w Window) func() {
		// 服务端回声：把收到的数据原样 post 回去
		remove := w.AddListener(func(ev Event) {
			var m map[string]any
			_ = json.Unmarshal(ev.Data, &m)
			m["echo"] = true
			_ = w.PostMessage(m, w.Origin())
		})
		attached <- w
		return remove
	})
	srv := httptest.NewServer(bridge)
	defer srv.Close()

	endpoint := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, err := Dial(context.Background(), endpoint, "https://dapp.example", protocol.ConnectionInfo{Title: "My dApp"})
	require.NoError(t, err)
	go func() { _ = client.Run() }()
	defer client.Close()

	got := make(chan Event, 1)
	client.AddListener(func(ev Event) { got <- ev })

	serverSide := <-attached
	assert.Equal(t, "https://dapp.example", serverSide.Origin())
	assert.Equal(t, "My dApp", serverSide.Info().Title)

	require.NoError(t, client.PostMessage(map[string]any{"n": 1}, "https://dapp.example"))
	ev := recv(t, got)
	assert.JSONEq(t, `{"n":1,"echo":true}`, string(ev.Data))
	assert.Equal(t, client.ID(), ev.Source)
}

func TestBridge_RejectsOrigin(t *testing.T) {
	bridge := NewBridge([]string{"https://allowed.example"}, func(w Window) func() { return func() {} })
	srv := httptest.NewServer(bridge)
	defer srv.Close()

	endpoint := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, err := Dial(context.Background(), endpoint, "https://evil.example", protocol.ConnectionInfo{})
	assert.Error(t, err)
}
