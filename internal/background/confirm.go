package background

import (
	"context"
	"errors"
	"time"

	"gemwallet/internal/fee"
	"gemwallet/internal/submission"
	"gemwallet/pkg/errno"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// List 未关闭的确认
func (s *Service) List() []*submission.Confirmation {
	return s.registry.List()
}

func (s *Service) Get(id string) (*submission.Confirmation, error) {
	return s.registry.Get(id)
}

func (s *Service) lookup(id string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending[id]
}

// Snapshot 确认页的手续费 / 储备快照。不涉及交易或已关闭的确认返回 nil
func (s *Service) Snapshot(ctx context.Context, id string) (*fee.Snapshot, error) {
	if _, err := s.registry.Get(id); err != nil {
		return nil, err
	}
	e := s.lookup(id)
	if e == nil || len(e.txs) == 0 {
		return nil, nil
	}
	return s.refresh(ctx, e)
}

func (s *Service) refresh(ctx context.Context, e *entry) (*fee.Snapshot, error) {
	snap, err := e.watcher.Refresh(ctx, s.ledger(), fee.Input{
		Transactions: e.txs,
		FeeOverride:  e.feeOverride(),
		Account:      e.account.Address(),
	})
	if err != nil {
		var en errno.Errno
		if errors.As(err, &en) {
			return nil, err
		}
		s.log.Warn("刷新手续费快照失败", zap.String("id", e.conf.ID), zap.Error(err))
		return nil, errno.ErrLedger
	}
	return snap, nil
}

// Confirm 用户确认。feeOverride 为用户给定的手续费 (drops)，为空时使用估算值。
// 提交类交易必须通过手续费 / 储备检查
func (s *Service) Confirm(ctx context.Context, id, feeOverride string) error {
	c, err := s.registry.Get(id)
	if err != nil {
		return err
	}
	e := s.lookup(id)
	if e == nil || c.State() != submission.Waiting || len(e.txs) == 0 {
		return c.Confirm(ctx)
	}

	if feeOverride != "" {
		if len(e.txs) > 1 {
			return errno.ErrValidation.WithMessage("fee override is only supported for single transactions")
		}
		d, err := decimal.NewFromString(feeOverride)
		if err != nil || !d.IsPositive() || !d.IsInteger() {
			return errno.ErrValidation.WithMessage("fee must be a positive integer amount of drops")
		}
		e.setFeeOverride(d.String())
	}

	if e.gated {
		snap, err := s.refresh(ctx, e)
		if err != nil {
			return err
		}
		if !snap.CanConfirm() {
			if snap.Insufficient {
				return errno.ErrInsufficientFunds
			}
			return errno.ErrFeeEstimation
		}
	}
	return c.Confirm(ctx)
}

func (s *Service) Reject(id string) error {
	c, err := s.registry.Get(id)
	if err != nil {
		return err
	}
	return c.Reject()
}

// Close 关闭终态确认，结果随即发回页面
func (s *Service) Close(id string) error {
	c, err := s.registry.Get(id)
	if err != nil {
		return err
	}
	return c.Close()
}

// Prune 清理关闭超过 ttl 的确认
func (s *Service) Prune(ttl time.Duration) int {
	return s.registry.Prune(ttl)
}
