package mq

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"gemwallet/pkg/logger"

	"go.uber.org/zap"
)

const memoryQueueSize = 1024

// MemoryBroker 进程内实现，单实例部署和测试使用。
// 每个 (topic, group) 一个带缓冲的 channel，Publish 向该 topic 下所有组投递
type MemoryBroker struct {
	mu     sync.RWMutex
	groups map[string]map[string]chan *Message // topic -> group -> queue
	seq    atomic.Uint64
	closed bool
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{groups: make(map[string]map[string]chan *Message)}
}

func (b *MemoryBroker) Publish(ctx context.Context, topic string, key string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("memory broker closed")
	}

	id := strconv.FormatUint(b.seq.Add(1), 10)
	for group, q := range b.groups[topic] {
		msg := &Message{ID: id, Topic: topic, Key: key, Payload: payload}
		select {
		case q <- msg:
		case <-ctx.Done():
			return ctx.Err()
		default:
			// 消费者卡住时不阻塞生产者，与 Redis Stream MAXLEN 裁剪的效果一致
			logger.Warn("[Memory MQ] 队列已满，丢弃消息", zap.String("topic", topic), zap.String("group", group))
		}
	}
	return nil
}

func (b *MemoryBroker) queue(topic, group string) (chan *Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("memory broker closed")
	}
	byGroup, ok := b.groups[topic]
	if !ok {
		byGroup = make(map[string]chan *Message)
		b.groups[topic] = byGroup
	}
	q, ok := byGroup[group]
	if !ok {
		q = make(chan *Message, memoryQueueSize)
		byGroup[group] = q
	}
	return q, nil
}

func (b *MemoryBroker) NewConsumer(group, name string) Consumer {
	return &memoryConsumer{broker: b, group: group, name: name}
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

type memoryConsumer struct {
	broker *MemoryBroker
	group  string
	name   string
}

func (c *memoryConsumer) Join(_ context.Context, topic string) error {
	_, err := c.broker.queue(topic, c.group)
	return err
}

func (c *memoryConsumer) Subscribe(ctx context.Context, topic string, handler func(msg *Message) error) error {
	q, err := c.broker.queue(topic, c.group)
	if err != nil {
		return err
	}
	logger.Debug("[Memory MQ] 开始监听主题", zap.String("topic", topic), zap.String("group", c.group))

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-q:
			if err := handler(msg); err != nil {
				logger.Warn("[Memory MQ] 业务处理失败", zap.String("topic", topic), zap.Error(err))
			}
		}
	}
}

func (c *memoryConsumer) Close() error {
	return nil
}
