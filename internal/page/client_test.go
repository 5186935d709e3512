package page

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"gemwallet/internal/protocol"
	"gemwallet/internal/transport"
	"gemwallet/pkg/errno"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const origin = "https://dapp.example"

// fakeRelay 在 window 上应答请求，respond 返回要 post 的响应列表
func fakeRelay(t *testing.T, w *transport.LocalWindow, respond func(req protocol.Request) []any) *atomic.Int32 {
	t.Helper()
	var seen atomic.Int32
	remove := w.AddListener(func(ev transport.Event) {
		var req protocol.Request
		if err := json.Unmarshal(ev.Data, &req); err != nil || req.Source != protocol.SourceRequest {
			return
		}
		seen.Add(1)
		for _, out := range respond(req) {
			_ = w.PostMessage(out, origin)
		}
	})
	t.Cleanup(remove)
	return &seen
}

func newWindow(t *testing.T) *transport.LocalWindow {
	w := transport.NewLocalWindow(origin, protocol.ConnectionInfo{})
	t.Cleanup(w.Close)
	return w
}

func resultFor(req protocol.Request, r protocol.Result) *protocol.Response {
	return protocol.NewResponse(&req, r)
}

func TestRequest_NotInstalled(t *testing.T) {
	w := newWindow(t)
	c := NewClient(w, NewConnectionState(false))

	_, err := c.GetAddress(context.Background())
	assert.ErrorIs(t, err, errno.ErrExtensionNotInstalled)
	assert.Equal(t, 0, w.Listeners())
}

func TestIsConnected_TimeoutWhenNoRelay(t *testing.T) {
	w := newWindow(t)
	c := NewClient(w, NewConnectionState(true), WithProbeTimeout(50*time.Millisecond))

	start := time.Now()
	assert.False(t, c.IsConnected(context.Background()))
	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, c.State().Connected())
}

func TestIsConnected_CachesPositiveAnswer(t *testing.T) {
	w := newWindow(t)
	yes := true
	seen := fakeRelay(t, w, func(req protocol.Request) []any {
		return []any{resultFor(req, protocol.Result{IsConnected: &yes})}
	})

	// 没有扩展标记时探测仍然会发出
	c := NewClient(w, NewConnectionState(false))
	require.True(t, c.IsConnected(context.Background()))
	assert.True(t, c.State().Connected())

	require.True(t, c.IsConnected(context.Background()))
	assert.Equal(t, int32(1), seen.Load(), "第二次不再发请求")
}

func TestRequest_AtMostOneResolution(t *testing.T) {
	w := newWindow(t)
	fakeRelay(t, w, func(req protocol.Request) []any {
		wrongID := req
		wrongID.MessageID += 0.5
		foreignApp := resultFor(req, protocol.Result{Address: "rForeign"})
		foreignApp.App = "other-wallet"
		return []any{
			resultFor(wrongID, protocol.Result{Address: "rWrong"}),
			foreignApp,
			resultFor(req, protocol.Result{Address: "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"}),
			resultFor(req, protocol.Result{Address: "rSecond"}),
		}
	})

	c := NewClient(w, NewConnectionState(true))
	addr, err := c.GetAddress(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh", addr)

	// fakeRelay 的监听器还在，页面的一次性监听器已移除
	assert.Eventually(t, func() bool { return w.Listeners() == 1 }, time.Second, 10*time.Millisecond)
}

func TestRequest_IgnoresForeignWindow(t *testing.T) {
	w := newWindow(t)
	c := NewClient(w, NewConnectionState(true), WithIDGenerator(&protocol.IDGenerator{
		Now:  func() time.Time { return time.UnixMilli(1000) },
		Rand: func() (float64, error) { return 0.5, nil },
	}))

	go func() {
		time.Sleep(20 * time.Millisecond)
		forged, _ := json.Marshal(protocol.NewResponse(&protocol.Request{Type: protocol.RequestAddress, MessageID: 1000.5}, protocol.Result{Address: "rForged"}))
		_ = w.Dispatch(transport.Event{Source: "iframe", Origin: origin, Data: forged})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err := c.GetAddress(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRequest_LogsUndecodableFrame(t *testing.T) {
	w := newWindow(t)
	fakeRelay(t, w, func(req protocol.Request) []any {
		// 同一 window 上先来一条坏消息，再来真正的响应
		_ = w.Dispatch(transport.Event{Source: w.ID(), Origin: origin, Data: []byte("{broken")})
		return []any{resultFor(req, protocol.Result{Address: "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"})}
	})

	core, logs := observer.New(zap.WarnLevel)
	c := NewClient(w, NewConnectionState(true), WithLogger(zap.New(core)))

	addr, err := c.GetAddress(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh", addr)

	dropped := logs.FilterMessage("丢弃无法解析的消息").All()
	require.Len(t, dropped, 1)
	assert.Equal(t, string(protocol.RequestAddress), dropped[0].ContextMap()["type"])
}

func TestCall_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		result protocol.Result
		check  func(t *testing.T, hash string, err error)
	}{
		{"error string", protocol.Result{Error: "Unable to reach the extension"}, func(t *testing.T, _ string, err error) {
			assert.EqualError(t, err, "Unable to reach the extension")
		}},
		{"rejected", protocol.Result{Rejected: true}, func(t *testing.T, _ string, err error) {
			assert.ErrorIs(t, err, errno.ErrUserRejected)
		}},
		{"missing hash", protocol.Result{}, func(t *testing.T, hash string, err error) {
			assert.Empty(t, hash)
			assert.ErrorIs(t, err, errno.ErrMalformedResponse)
		}},
		{"ok", protocol.Result{Hash: "ABCD"}, func(t *testing.T, hash string, err error) {
			require.NoError(t, err)
			assert.Equal(t, "ABCD", hash)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := newWindow(t)
			fakeRelay(t, w, func(req protocol.Request) []any {
				assert.Equal(t, protocol.SendPayment, req.Type)
				return []any{resultFor(req, tc.result)}
			})
			c := NewClient(w, NewConnectionState(true))
			hash, err := c.SendPayment(context.Background(), protocol.PaymentRequest{
				Amount:      protocol.XRP("10000"),
				Destination: "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh",
			})
			tc.check(t, hash, err)
		})
	}
}

func TestRaceTimeout(t *testing.T) {
	v, err := RaceTimeout(context.Background(), time.Second, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	_, err = RaceTimeout(context.Background(), 20*time.Millisecond, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	assert.ErrorIs(t, err, ErrTimeout, "fn 自己返回的超时也归为 ErrTimeout")

	_, err = RaceTimeout(context.Background(), 20*time.Millisecond, func(ctx context.Context) (int, error) {
		time.Sleep(200 * time.Millisecond)
		return 1, nil
	})
	assert.ErrorIs(t, err, ErrTimeout)

	boom := errors.New("boom")
	_, err = RaceTimeout(context.Background(), time.Second, func(ctx context.Context) (int, error) {
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)
}
