package mq

import (
	"context"
	"fmt"
	"time"

	"gemwallet/pkg/logger"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaBroker 实现 Broker 接口
type KafkaBroker struct {
	brokers []string
	writer  *kafka.Writer
}

// NewKafkaBroker 创建 Kafka Broker
// brokers: Kafka 节点地址列表 (e.g. ["localhost:9092"])
func NewKafkaBroker(brokers []string) *KafkaBroker {
	// Writer 不指定 Topic，每条消息自带 Topic
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},    // 按 Key 哈希，同一 runtime ID 的消息有序
		AllowAutoTopicCreation: true,             // 开发环境允许自动创建 Topic
		RequiredAcks:           kafka.RequireAll, // 等待所有 ISR 副本确认
		BatchSize:              100,
		BatchTimeout:           10 * time.Millisecond,
	}

	return &KafkaBroker{brokers: brokers, writer: writer}
}

// Publish 发送消息到 Kafka
func (b *KafkaBroker) Publish(ctx context.Context, topic string, key string, payload []byte) error {
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: payload,
	}

	if err := b.writer.WriteMessages(ctx, msg); err != nil {
		logger.Error("[Kafka MQ] Publish Error", zap.String("topic", topic), zap.Error(err))
		return fmt.Errorf("kafka write error: %w", err)
	}
	return nil
}

func (b *KafkaBroker) NewConsumer(group, name string) Consumer {
	return NewKafkaConsumer(b.brokers, group)
}

// Close 关闭连接
func (b *KafkaBroker) Close() error {
	return b.writer.Close()
}
