package telemetry

import (
	"context"
	"fmt"

	"gemwallet/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormSink 在一个事务里写入 TransactionRecord 和 outbox 消息
type GormSink struct {
	db    *gorm.DB
	topic string
}

func NewGormSink(db *gorm.DB, topic string) *GormSink {
	return &GormSink{db: db, topic: topic}
}

// Record Event 对应的数据库记录
func Record(ev Event) model.TransactionRecord {
	fee, err := decimal.NewFromString(ev.FeeDrops)
	if err != nil {
		fee = decimal.Zero
	}
	return model.TransactionRecord{
		ConfirmationID: ev.ConfirmationID,
		Type:           ev.Type,
		State:          ev.State,
		Account:        ev.Account,
		Network:        ev.Network,
		Origin:         ev.Origin,
		TxHash:         ev.Hash,
		ResultCode:     ev.ResultCode,
		Error:          ev.Error,
		FeeDrops:       fee,
		Payload:        ev.Transactions,
		CreatedAt:      ev.At,
	}
}

func (s *GormSink) Capture(ctx context.Context, ev Event) error {
	rec := Record(ev)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		return model.CreateOutboxMessage(tx, s.topic, ev.ConfirmationID, ev)
	})
	if err != nil {
		return fmt.Errorf("telemetry: capture %s: %w", ev.ConfirmationID, err)
	}
	return nil
}
