// Package telemetry 记录已结束的确认，并通过 outbox 投递到 MQ
package telemetry

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// Event 一次确认的最终结果
type Event struct {
	ConfirmationID string          `json:"confirmation_id"`
	Type           string          `json:"type"`
	State          string          `json:"state"`
	Account        string          `json:"account,omitempty"`
	Network        string          `json:"network,omitempty"`
	Origin         string          `json:"origin,omitempty"`
	Hash           string          `json:"hash,omitempty"`
	ResultCode     string          `json:"result_code,omitempty"`
	Error          string          `json:"error,omitempty"`
	FeeDrops       string          `json:"fee_drops,omitempty"`
	Transactions   json.RawMessage `json:"transactions,omitempty"`
	At             time.Time       `json:"at"`
}

// Sink 接收确认结果的外部记录方
type Sink interface {
	Capture(ctx context.Context, ev Event) error
}

// LogSink 未启用数据库时只写日志
type LogSink struct {
	log *zap.Logger
}

func NewLogSink(log *zap.Logger) *LogSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogSink{log: log}
}

func (s *LogSink) Capture(_ context.Context, ev Event) error {
	s.log.Info("确认结束",
		zap.String("id", ev.ConfirmationID),
		zap.String("type", ev.Type),
		zap.String("state", ev.State),
		zap.String("hash", ev.Hash),
		zap.String("result_code", ev.ResultCode),
		zap.String("error", ev.Error),
	)
	return nil
}
