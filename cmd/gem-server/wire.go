package main

import (
	"context"
	"fmt"

	"gemwallet/internal/model"
	"gemwallet/internal/service/mq"
	"gemwallet/internal/storage"
	"gemwallet/internal/telemetry"
	"gemwallet/internal/worker"
	"gemwallet/pkg/config"
	"gemwallet/pkg/database"
	"gemwallet/pkg/logger"
	"gemwallet/pkg/utils/lock"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type infra struct {
	redis  *redis.Client
	store  storage.Store
	broker mq.Broker
	locker lock.DistributedLock
}

func needsRedis(cfg config.Config) bool {
	return cfg.Storage.Driver == "redis" || cfg.Runtime.Broker == "redis" || cfg.Telemetry.Async
}

func newInfra(ctx context.Context, cfg config.Config) (*infra, error) {
	in := &infra{locker: lock.NewMemoryLock()}

	if needsRedis(cfg) {
		rdb, err := database.ConnectRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		in.redis = rdb
		in.locker = lock.NewRedisLock(rdb)
	}

	switch cfg.Storage.Driver {
	case "redis":
		in.store = storage.NewRedisStore(in.redis, "gem:")
	case "file", "":
		fs, err := storage.NewFileStore(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		in.store = fs
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	switch cfg.Runtime.Broker {
	case "kafka":
		logger.Info("使用 Kafka 作为消息队列...", zap.Strings("brokers", cfg.Kafka.Brokers))
		in.broker = mq.NewKafkaBroker(cfg.Kafka.Brokers)
	case "redis":
		logger.Info("使用 Redis Streams 作为消息队列...")
		in.broker = mq.NewRedisBroker(in.redis)
	case "memory", "":
		logger.Info("使用进程内队列 (单实例)")
		in.broker = mq.NewMemoryBroker()
	default:
		return nil, fmt.Errorf("unknown runtime broker %q", cfg.Runtime.Broker)
	}
	return in, nil
}

func (in *infra) Close() {
	if err := in.broker.Close(); err != nil {
		logger.Warn("关闭消息队列失败", zap.Error(err))
	}
	if in.redis != nil {
		_ = in.redis.Close()
	}
}

type telemetryStack struct {
	sink   telemetry.Sink
	client *worker.Client
	worker *worker.Server
}

// newTelemetry 没有数据库时只写日志；有数据库时写 TransactionRecord + outbox，
// 并启动 outbox relay。telemetry.async 打开时经 asynq 队列异步写库
func newTelemetry(ctx context.Context, cfg config.Config, in *infra) (*telemetryStack, error) {
	if !cfg.DB.Enabled {
		return &telemetryStack{sink: telemetry.NewLogSink(logger.Named("telemetry"))}, nil
	}

	db, err := database.ConnectPostgres(database.PostgresDSN(cfg.DB), cfg.App.Env)
	if err != nil {
		return nil, err
	}
	// 开发环境直接 AutoMigrate，生产环境使用 cmd/migrate 管理 Schema
	if cfg.App.Env == "development" {
		if err := db.AutoMigrate(model.AllModels()...); err != nil {
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
		logger.Info("数据库自动迁移完成 (Dev Mode)")
	}
	gormSink := telemetry.NewGormSink(db, cfg.Telemetry.Topic)

	outbox := telemetry.NewOutboxRelay(telemetry.NewGormOutboxStore(db), in.broker, in.locker,
		cfg.Telemetry.RelayInterval, logger.Named("outbox"))
	go outbox.Start(ctx)

	st := &telemetryStack{sink: gormSink}
	if cfg.Telemetry.Async {
		st.client = worker.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		st.worker = worker.NewServer(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Worker.Concurrency, gormSink)
		if err := st.worker.Start(); err != nil {
			_ = st.client.Close()
			return nil, err
		}
		st.sink = st.client
	}
	return st, nil
}

func (st *telemetryStack) Close() {
	if st.worker != nil {
		st.worker.Stop()
	}
	if st.client != nil {
		_ = st.client.Close()
	}
}
