// Package relay 对应 content script：只接受同一 window 上本应用发出的请求，
// 转发到 background，并把最终结果带着原 messageId 回给页面。
package relay

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"gemwallet/internal/protocol"
	"gemwallet/internal/transport"
	"gemwallet/pkg/errno"
	"gemwallet/pkg/monitor"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultAckTimeout background 必须在这段时间内确认收到请求
const DefaultAckTimeout = 5 * time.Second

// Runtime relay 需要的 runtime 通道能力
type Runtime interface {
	SendMessage(ctx context.Context, msg protocol.RuntimeMessage) error
	Once(t protocol.MessageType, id string) (<-chan protocol.RuntimeMessage, func())
}

type Relay struct {
	runtime    Runtime
	ackTimeout time.Duration
	newID      func() string
	log        *zap.Logger
}

type Option func(*Relay)

func WithAckTimeout(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.ackTimeout = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Relay) { r.log = l }
}

func New(rt Runtime, opts ...Option) *Relay {
	r := &Relay{
		runtime:    rt,
		ackTimeout: DefaultAckTimeout,
		newID:      uuid.NewString,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func unreachable() protocol.Result {
	return protocol.Result{Error: errno.ErrExtensionUnreachable.Message}
}

// Handle 处理一条已校验的请求并返回唯一的响应。不依赖任何 window
func (r *Relay) Handle(ctx context.Context, req *protocol.Request, conn protocol.ConnectionInfo) *protocol.Response {
	start := time.Now()
	result, outcome := r.handle(ctx, req, conn)
	monitor.ObserveRelay(string(req.Type), outcome, time.Since(start).Seconds())
	return protocol.NewResponse(req, result)
}

func (r *Relay) handle(ctx context.Context, req *protocol.Request, conn protocol.ConnectionInfo) (protocol.Result, string) {
	// 探测由 relay 自己回答，不经过 background
	if req.Type == protocol.RequestConnection {
		connected := true
		return protocol.Result{IsConnected: &connected}, "ok"
	}

	receiveType, ok := protocol.ReceiveType(req.Type)
	if !ok {
		return protocol.Result{Error: "Unsupported request type"}, "invalid"
	}

	id := r.newID()
	log := r.log.With(zap.String("type", string(req.Type)), zap.String("id", id), zap.Float64("messageId", req.MessageID))

	// 先注册监听再发送，避免完成事件先于监听到达
	ack, cancelAck := r.runtime.Once(protocol.RuntimeAck, id)
	defer cancelAck()
	done, cancelDone := r.runtime.Once(receiveType, id)
	defer cancelDone()

	msg := protocol.RuntimeMessage{
		Type:       req.Type,
		ID:         id,
		Connection: &conn,
		Payload:    req.Payload,
	}
	if err := r.runtime.SendMessage(ctx, msg); err != nil {
		log.Warn("转发到 background 失败", zap.Error(err))
		return unreachable(), "unreachable"
	}

	timer := time.NewTimer(r.ackTimeout)
	defer timer.Stop()

	select {
	case a := <-ack:
		if a.Result != nil {
			return *a.Result, outcome(*a.Result)
		}
	case res := <-done:
		// 完成事件可能先于 ack 被消费
		return resultOf(res), outcome(resultOf(res))
	case <-timer.C:
		log.Warn("background 未确认请求")
		return unreachable(), "unreachable"
	case <-ctx.Done():
		return unreachable(), "cancelled"
	}

	// 已确认：等待用户在确认页完成操作，没有超时
	select {
	case res := <-done:
		return resultOf(res), outcome(resultOf(res))
	case <-ctx.Done():
		log.Info("页面已离开，放弃等待结果")
		return unreachable(), "cancelled"
	}
}

func resultOf(msg protocol.RuntimeMessage) protocol.Result {
	if msg.Result == nil {
		return protocol.Result{Error: errno.ErrMalformedResponse.Message}
	}
	return *msg.Result
}

func outcome(r protocol.Result) string {
	switch {
	case r.Error != "":
		return "error"
	case r.Rejected:
		return "rejected"
	}
	return "ok"
}

// Attach 在 window 上注册监听，返回的 detach 移除监听并取消进行中的请求
func (r *Relay) Attach(parent context.Context, w transport.Window) (detach func()) {
	ctx, cancel := context.WithCancel(parent)
	var wg sync.WaitGroup

	remove := w.AddListener(func(ev transport.Event) {
		if ev.Source != w.ID() {
			return
		}
		var req protocol.Request
		if err := json.Unmarshal(ev.Data, &req); err != nil {
			return
		}
		if err := req.Valid(); err != nil {
			// 响应、其他扩展的消息都会走到这里，属于正常情况
			return
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := r.Handle(ctx, &req, w.Info())
			if ctx.Err() != nil {
				return
			}
			if err := w.PostMessage(resp, w.Origin()); err != nil {
				r.log.Warn("回复页面失败", zap.String("type", string(req.Type)), zap.Error(err))
			}
		}()
	})

	return func() {
		remove()
		cancel()
		wg.Wait()
	}
}
