package telemetry

import (
	"context"
	"time"

	"gemwallet/internal/model"
	"gemwallet/internal/service/mq"
	"gemwallet/pkg/monitor"
	"gemwallet/pkg/utils/lock"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	relayLockKey   = "telemetry:lock:outbox_relay"
	relayBatchSize = 50
)

// OutboxStore outbox 表的读写
type OutboxStore interface {
	Pending(ctx context.Context, limit int) ([]model.OutboxMessage, error)
	MarkSent(ctx context.Context, id uint64) error
}

type gormOutboxStore struct {
	db *gorm.DB
}

func NewGormOutboxStore(db *gorm.DB) OutboxStore {
	return &gormOutboxStore{db: db}
}

func (s *gormOutboxStore) Pending(ctx context.Context, limit int) ([]model.OutboxMessage, error) {
	var messages []model.OutboxMessage
	err := s.db.WithContext(ctx).Where("status = ?", model.OutboxPending).Order("id").Limit(limit).Find(&messages).Error
	return messages, err
}

func (s *gormOutboxStore) MarkSent(ctx context.Context, id uint64) error {
	return s.db.WithContext(ctx).Model(&model.OutboxMessage{}).Where("id = ?", id).Update("status", model.OutboxSent).Error
}

// OutboxRelay 把 outbox 表中的消息搬运到 MQ。
// 多实例部署时用分布式锁保证同一时刻只有一个实例在搬运
type OutboxRelay struct {
	store    OutboxStore
	producer mq.Producer
	locker   lock.DistributedLock
	interval time.Duration
	log      *zap.Logger
}

func NewOutboxRelay(store OutboxStore, producer mq.Producer, locker lock.DistributedLock, interval time.Duration, log *zap.Logger) *OutboxRelay {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &OutboxRelay{store: store, producer: producer, locker: locker, interval: interval, log: log}
}

// Start 阻塞直到 ctx 取消
func (r *OutboxRelay) Start(ctx context.Context) {
	r.log.Info("启动 outbox 中继服务", zap.Duration("interval", r.interval))
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("outbox 中继服务停止")
			return
		case <-ticker.C:
			r.RelayOnce(ctx)
		}
	}
}

// RelayOnce 处理一批待发送消息，返回成功投递的数量
func (r *OutboxRelay) RelayOnce(ctx context.Context) int {
	if r.locker != nil {
		locked, err := r.locker.Acquire(ctx, relayLockKey, 10*time.Second)
		if err != nil || !locked {
			// 其他实例在搬运
			return 0
		}
		defer r.locker.Release(ctx, relayLockKey)
	}

	messages, err := r.store.Pending(ctx, relayBatchSize)
	if err != nil {
		r.log.Error("查询 outbox 消息失败", zap.Error(err))
		return 0
	}

	sent := 0
	for _, msg := range messages {
		if err := r.producer.Publish(ctx, msg.Topic, msg.Key, msg.Payload); err != nil {
			r.log.Warn("outbox 消息发送失败", zap.Uint64("id", msg.ID), zap.Error(err))
			continue
		}
		// 只有发送成功了才更新状态 => At-least-once，消费方需要幂等
		if err := r.store.MarkSent(ctx, msg.ID); err != nil {
			r.log.Warn("outbox 状态更新失败", zap.Uint64("id", msg.ID), zap.Error(err))
			continue
		}
		sent++
	}
	if sent > 0 {
		monitor.ObserveOutboxPublished(sent)
		r.log.Debug("outbox 消息已投递", zap.Int("count", sent))
	}
	return sent
}
