package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"gemwallet/internal/telemetry"
	"gemwallet/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	seen  map[string]bool
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	var ev telemetry.Event
	if err := json.Unmarshal(task.Payload(), &ev); err != nil {
		return nil, err
	}
	if f.seen[ev.ConfirmationID] {
		return nil, asynq.ErrTaskIDConflict
	}
	f.seen[ev.ConfirmationID] = true
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: ev.ConfirmationID, Type: task.Type()}, nil
}

func (f *fakeEnqueuer) Close() error { return nil }

type recordingSink struct {
	events []telemetry.Event
	err    error
}

func (s *recordingSink) Capture(_ context.Context, ev telemetry.Event) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, ev)
	return nil
}

func event(id string) telemetry.Event {
	return telemetry.Event{
		ConfirmationID: id,
		Type:           "SEND_PAYMENT",
		State:          "SUCCESS",
		Hash:           "ABC",
		FeeDrops:       "12",
		At:             time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestClient_Capture(t *testing.T) {
	f := &fakeEnqueuer{seen: map[string]bool{}}
	c := &Client{client: f}
	ctx := context.Background()

	require.NoError(t, c.Capture(ctx, event("c-1")))
	require.Len(t, f.tasks, 1)
	assert.Equal(t, tasks.TypeTelemetryCapture, f.tasks[0].Type())

	// 同一确认重复入队不算失败
	require.NoError(t, c.Capture(ctx, event("c-1")))
	assert.Len(t, f.tasks, 1)

	f.err = errors.New("redis down")
	assert.Error(t, c.Capture(ctx, event("c-2")))
}

func TestTelemetryCaptureHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("写入 sink", func(t *testing.T) {
		sink := &recordingSink{}
		task, err := tasks.NewTelemetryCaptureTask(event("c-1"))
		require.NoError(t, err)

		require.NoError(t, tasks.NewTelemetryCaptureHandler(sink)(ctx, task))
		require.Len(t, sink.events, 1)
		assert.Equal(t, event("c-1"), sink.events[0])
	})

	t.Run("sink 失败时重试", func(t *testing.T) {
		sink := &recordingSink{err: errors.New("db down")}
		task, err := tasks.NewTelemetryCaptureTask(event("c-1"))
		require.NoError(t, err)

		err = tasks.NewTelemetryCaptureHandler(sink)(ctx, task)
		require.Error(t, err)
		assert.False(t, errors.Is(err, asynq.SkipRetry))
	})

	tests := []struct {
		name    string
		payload []byte
	}{
		{name: "payload 不是 JSON", payload: []byte("{oops")},
		{name: "缺少确认 ID", payload: []byte(`{"type":"SEND_PAYMENT"}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &recordingSink{}
			err := tasks.NewTelemetryCaptureHandler(sink)(ctx, asynq.NewTask(tasks.TypeTelemetryCapture, tt.payload))
			require.Error(t, err)
			assert.True(t, errors.Is(err, asynq.SkipRetry))
			assert.Empty(t, sink.events)
		})
	}
}

func TestNewServeMux(t *testing.T) {
	sink := &recordingSink{}
	mux := NewServeMux(sink)
	task, err := tasks.NewTelemetryCaptureTask(event("c-9"))
	require.NoError(t, err)

	require.NoError(t, mux.ProcessTask(context.Background(), task))
	require.Len(t, sink.events, 1)

	err = mux.ProcessTask(context.Background(), asynq.NewTask("email:deliver", nil))
	assert.Error(t, err, "未注册的任务类型")
}
