package worker

import (
	"context"
	"errors"

	"gemwallet/internal/telemetry"
	"gemwallet/internal/worker/tasks"
	"gemwallet/pkg/logger"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// Client 封装 Asynq Client，同时作为异步的 telemetry.Sink
type Client struct {
	client enqueuer
}

// NewClient 初始化 Client
// addr: "localhost:6379"
func NewClient(addr string, password string, db int) *Client {
	c := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Client{client: c}
}

// Enqueue 将任务推送到队列
func (c *Client) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	return c.client.EnqueueContext(ctx, task, opts...)
}

// Capture 把确认结果放入写库队列。同一确认重复入队视为成功
func (c *Client) Capture(ctx context.Context, ev telemetry.Event) error {
	task, err := tasks.NewTelemetryCaptureTask(ev)
	if err != nil {
		return err
	}
	_, err = c.Enqueue(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		logger.Debug("确认结果已在队列中", zap.String("id", ev.ConfirmationID))
		return nil
	}
	return err
}

// Close 关闭客户端连接
func (c *Client) Close() error {
	return c.client.Close()
}
