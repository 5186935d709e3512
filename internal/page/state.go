package page

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ConnectionState 替代页面上的全局标记：扩展是否注入 (marker) 以及探测是否成功过
type ConnectionState struct {
	mu        sync.RWMutex
	installed bool
	connected bool
}

// NewConnectionState installed 表示扩展标记存在 (content script 已注入)
func NewConnectionState(installed bool) *ConnectionState {
	return &ConnectionState{installed: installed}
}

func (s *ConnectionState) Installed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.installed
}

func (s *ConnectionState) SetInstalled(v bool) {
	s.mu.Lock()
	s.installed = v
	s.mu.Unlock()
}

// Connected 探测成功后为 true，之后的 IsConnected 不再发起请求
func (s *ConnectionState) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *ConnectionState) markConnected() {
	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
}

// ErrTimeout RaceTimeout 超时
var ErrTimeout = errors.New("page: timed out")

// RaceTimeout 在 d 内等待 fn 返回；超时返回 ErrTimeout，fn 的结果被丢弃。
// fn 收到的 ctx 在超时后取消
func RaceTimeout[T any](ctx context.Context, d time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			var zero T
			return zero, ErrTimeout
		}
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, ErrTimeout
		}
		return zero, ctx.Err()
	}
}
