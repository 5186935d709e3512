// Package runtime 把扩展内部的 runtime messaging 映射到 mq 上：
// relay 通过 requests 主题发请求，background 通过 events 主题回 ack 和完成事件。
package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"gemwallet/internal/protocol"
	"gemwallet/internal/service/mq"

	"go.uber.org/zap"
)

// BackgroundGroup background 在 requests 主题上的消费组
const BackgroundGroup = "gem-background"

type waiterKey struct {
	typ protocol.MessageType
	id  string
}

// Channel 一个进程内的 runtime 端点。relay 侧调用 Start + SendMessage + Once，
// background 侧调用 Serve + Emit
type Channel struct {
	broker   mq.Broker
	instance string
	log      *zap.Logger

	mu      sync.Mutex
	waiters map[waiterKey]chan protocol.RuntimeMessage
}

// NewChannel instance 用作 events 主题的消费组，保证每个 relay 实例都收到所有事件
func NewChannel(broker mq.Broker, instance string, log *zap.Logger) *Channel {
	if log == nil {
		log = zap.NewNop()
	}
	return &Channel{
		broker:   broker,
		instance: instance,
		log:      log,
		waiters:  make(map[waiterKey]chan protocol.RuntimeMessage),
	}
}

// Start 加入 events 主题的消费组并在后台分发事件，ctx 取消时退出
func (c *Channel) Start(ctx context.Context) error {
	consumer := c.broker.NewConsumer("gem-relay-"+c.instance, c.instance)
	if err := consumer.Join(ctx, mq.TopicRuntimeEvents); err != nil {
		return fmt.Errorf("runtime: join events: %w", err)
	}
	go func() {
		defer consumer.Close()
		if err := consumer.Subscribe(ctx, mq.TopicRuntimeEvents, c.dispatch); err != nil {
			c.log.Error("runtime events 订阅退出", zap.Error(err))
		}
	}()
	return nil
}

func (c *Channel) dispatch(m *mq.Message) error {
	var msg protocol.RuntimeMessage
	if err := json.Unmarshal(m.Payload, &msg); err != nil {
		// 坏消息直接确认丢弃，重试也不会变好
		c.log.Warn("runtime 事件解析失败", zap.Error(err))
		return nil
	}
	if msg.App != protocol.AppID {
		return nil
	}

	key := waiterKey{typ: msg.Type, id: msg.ID}
	c.mu.Lock()
	ch, ok := c.waiters[key]
	if ok {
		delete(c.waiters, key)
	}
	c.mu.Unlock()

	if ok {
		ch <- msg // 缓冲为 1，且每个 waiter 只投递一次
	}
	return nil
}

// Once 注册一个一次性监听，只接收 (type, id) 匹配的第一条事件。
// 必须在 SendMessage 之前调用；cancel 用于放弃等待
func (c *Channel) Once(t protocol.MessageType, id string) (<-chan protocol.RuntimeMessage, func()) {
	key := waiterKey{typ: t, id: id}
	ch := make(chan protocol.RuntimeMessage, 1)

	c.mu.Lock()
	c.waiters[key] = ch
	c.mu.Unlock()

	return ch, func() {
		c.mu.Lock()
		if c.waiters[key] == ch {
			delete(c.waiters, key)
		}
		c.mu.Unlock()
	}
}

// Pending 当前等待中的监听数
func (c *Channel) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// SendMessage relay -> background
func (c *Channel) SendMessage(ctx context.Context, msg protocol.RuntimeMessage) error {
	return c.publish(ctx, mq.TopicRuntimeRequests, msg)
}

// Emit background -> relay
func (c *Channel) Emit(ctx context.Context, msg protocol.RuntimeMessage) error {
	return c.publish(ctx, mq.TopicRuntimeEvents, msg)
}

func (c *Channel) publish(ctx context.Context, topic string, msg protocol.RuntimeMessage) error {
	msg.App = protocol.AppID
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("runtime: encode %s: %w", msg.Type, err)
	}
	return c.broker.Publish(ctx, topic, msg.ID, raw)
}

// Handler background 处理单条 runtime 请求
type Handler func(ctx context.Context, msg protocol.RuntimeMessage)

// Serve 加入 requests 消费组后在后台消费 runtime 请求，ctx 取消时退出。
// handler 在消费循环里同步调用，耗时操作需要自己起 goroutine
func (c *Channel) Serve(ctx context.Context, handler Handler) error {
	consumer := c.broker.NewConsumer(BackgroundGroup, c.instance)
	if err := consumer.Join(ctx, mq.TopicRuntimeRequests); err != nil {
		return fmt.Errorf("runtime: join requests: %w", err)
	}

	go func() {
		defer consumer.Close()
		err := consumer.Subscribe(ctx, mq.TopicRuntimeRequests, func(m *mq.Message) error {
			var msg protocol.RuntimeMessage
			if err := json.Unmarshal(m.Payload, &msg); err != nil {
				c.log.Warn("runtime 请求解析失败", zap.Error(err))
				return nil
			}
			if msg.App != protocol.AppID || msg.ID == "" {
				return nil
			}
			handler(ctx, msg)
			return nil
		})
		if err != nil {
			c.log.Error("runtime requests 订阅退出", zap.Error(err))
		}
	}()
	return nil
}
