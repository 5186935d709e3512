package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gemwallet/internal/telemetry"
	"gemwallet/pkg/logger"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// 任务类型常量
const (
	TypeTelemetryCapture = "telemetry:capture"
)

// NewTelemetryCaptureTask 确认结果写库任务。TaskID 为确认 ID，同一确认只入队一次
func NewTelemetryCaptureTask(ev telemetry.Event) (*asynq.Task, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeTelemetryCapture, payload,
		asynq.TaskID(ev.ConfirmationID),
		asynq.MaxRetry(10),
		asynq.Timeout(30*time.Second),
	), nil
}

// NewTelemetryCaptureHandler 消费写库任务，交给 sink (通常是 GormSink)
func NewTelemetryCaptureHandler(sink telemetry.Sink) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var ev telemetry.Event
		if err := json.Unmarshal(t.Payload(), &ev); err != nil {
			// JSON 解析失败，重试也没用，直接跳过 (SkipRetry)
			return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
		}
		if ev.ConfirmationID == "" {
			return fmt.Errorf("telemetry task without confirmation id: %w", asynq.SkipRetry)
		}
		if err := sink.Capture(ctx, ev); err != nil {
			logger.Warn("确认结果写库失败，等待重试", zap.String("id", ev.ConfirmationID), zap.Error(err))
			return err
		}
		logger.Debug("确认结果已写库", zap.String("id", ev.ConfirmationID))
		return nil
	}
}
