package mq

import (
	"context"
	"sync"
	"time"

	"gemwallet/pkg/logger"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaConsumer 实现 Consumer 接口
type KafkaConsumer struct {
	brokers []string
	groupID string

	mu      sync.Mutex
	readers map[string]*kafka.Reader
}

// NewKafkaConsumer 创建 Kafka 消费者
func NewKafkaConsumer(brokers []string, groupID string) *KafkaConsumer {
	return &KafkaConsumer{
		brokers: brokers,
		groupID: groupID,
		readers: make(map[string]*kafka.Reader),
	}
}

// Join 创建 Reader 并加入消费组。新组从 LastOffset 开始，
// 组协调在后台完成，所以 Kafka 下 Join 只是尽力而为
func (c *KafkaConsumer) Join(_ context.Context, topic string) error {
	c.reader(topic)
	return nil
}

func (c *KafkaConsumer) reader(topic string) *kafka.Reader {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.readers[topic]; ok {
		return r
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     c.brokers,
		GroupID:     c.groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond, // runtime 消息对延迟敏感
		StartOffset: kafka.LastOffset,
	})
	c.readers[topic] = r
	return r
}

// Subscribe 订阅 Kafka 主题
func (c *KafkaConsumer) Subscribe(ctx context.Context, topic string, handler func(msg *Message) error) error {
	r := c.reader(topic)
	logger.Info("[Kafka MQ] 开始监听主题", zap.String("topic", topic), zap.String("group", c.groupID))

	for {
		// 1. 读取消息 (阻塞直到有消息)
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error("[Kafka MQ] 读取消息错误", zap.String("topic", topic), zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		msg := &Message{
			ID:      string(m.Key),
			Topic:   topic,
			Key:     string(m.Key),
			Payload: m.Value,
		}

		// 2. 调用业务处理函数
		if err := handler(msg); err != nil {
			// Kafka 不支持单条 Nack，失败的消息不提交 offset，下次重平衡后重新投递
			logger.Warn("[Kafka MQ] 业务处理失败", zap.String("topic", topic), zap.Error(err))
			continue
		}

		// 3. 手动提交 Offset
		if err := r.CommitMessages(ctx, m); err != nil {
			logger.Warn("[Kafka MQ] 提交 Offset 失败", zap.Error(err))
		}
	}
}

// Close 关闭消费者
func (c *KafkaConsumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for topic, r := range c.readers {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.readers, topic)
	}
	return firstErr
}
