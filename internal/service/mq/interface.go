package mq

import "context"

// Message 代表一条通用的业务消息
type Message struct {
	ID       string            // 消息ID (例如 Redis Stream ID)
	Topic    string            // 主题 (例如 "gem.runtime.requests")
	Key      string            // 分区键 (例如 runtime 消息 ID), 同样用于 Kafka Partition
	Payload  []byte            // 消息体 (JSON)
	Metadata map[string]string // 元数据
}

// Producer 生产者接口
type Producer interface {
	// Publish 发送消息
	// key: 用于分区排序 (Partition Key). 传空字符串则随机分区.
	Publish(ctx context.Context, topic string, key string, payload []byte) error
}

// Consumer 消费者接口
type Consumer interface {
	// Join 确保消费组存在，Join 返回之后发布的消息一定能被该组消费到
	Join(ctx context.Context, topic string) error

	// Subscribe 订阅主题，阻塞直到 ctx 取消
	// handler: 消息处理函数，返回 error 时消息不确认 (Redis 留在 PEL，Kafka 不提交 offset)
	Subscribe(ctx context.Context, topic string, handler func(msg *Message) error) error

	// Close 关闭消费者
	Close() error
}

// Broker 同时提供生产者和按消费组创建的消费者。
// 同一消费组内的消费者分摊消息，不同消费组各自收到全部消息
type Broker interface {
	Producer
	NewConsumer(group, name string) Consumer
	Close() error
}

// Topics
const (
	TopicRuntimeRequests = "gem.runtime.requests"
	TopicRuntimeEvents   = "gem.runtime.events"
	TopicTelemetry       = "gem.telemetry"
)
