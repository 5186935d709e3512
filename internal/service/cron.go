package service

import (
	"context"
	"time"

	"gemwallet/pkg/logger"
	"gemwallet/pkg/utils/lock"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const pruneLockKey = "cron:lock:prune_confirmations"

// Pruner 清理已关闭的确认，*background.Service 实现了它
type Pruner interface {
	Prune(ttl time.Duration) int
}

type CronService struct {
	cron       *cron.Cron
	locker     lock.DistributedLock
	pruner     Pruner
	pruneAfter time.Duration
}

func NewCronService(locker lock.DistributedLock, pruner Pruner, pruneAfter time.Duration) *CronService {
	// 标准配置 (分级)
	return &CronService{
		cron:       cron.New(),
		locker:     locker,
		pruner:     pruner,
		pruneAfter: pruneAfter,
	}
}

func (s *CronService) Start() error {
	if _, err := s.cron.AddFunc("@every 1m", s.PruneConfirmations); err != nil {
		return err
	}
	s.cron.Start()
	logger.Info("Cron Service started")
	return nil
}

func (s *CronService) Stop() {
	<-s.cron.Stop().Done()
	logger.Info("Cron Service stopped")
}

// PruneConfirmations 清理关闭超过 pruneAfter 的确认
func (s *CronService) PruneConfirmations() {
	s.prune(context.Background())
}

func (s *CronService) prune(ctx context.Context) int {
	// 防止多实例同时执行
	locked, err := s.locker.Acquire(ctx, pruneLockKey, 30*time.Second)
	if err != nil || !locked {
		logger.Debug("PruneConfirmations: 获取锁失败或已有实例在运行", zap.Error(err))
		return 0
	}
	defer func() { _ = s.locker.Release(ctx, pruneLockKey) }()

	n := s.pruner.Prune(s.pruneAfter)
	if n > 0 {
		logger.Info("已清理关闭的确认", zap.Int("count", n), zap.Duration("after", s.pruneAfter))
	}
	return n
}
