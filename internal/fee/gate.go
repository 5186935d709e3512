// Package fee 确认前的手续费 / 储备检查
package fee

import (
	"context"
	"errors"
	"fmt"

	"gemwallet/internal/ledger"
	"gemwallet/internal/txbuilder"
	"gemwallet/pkg/errno"
	"gemwallet/pkg/monitor"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Ledger 计算快照需要的 ledger 读接口，*ledger.Client 实现了它
type Ledger interface {
	URL() string
	EstimateFee(ctx context.Context, tx txbuilder.Transaction) (string, error)
	GetXRPBalance(ctx context.Context, address string) (decimal.Decimal, error)
	GetOwnerCount(ctx context.Context, address string) (uint32, error)
	GetReserve(ctx context.Context) (ledger.Reserve, error)
}

// Input 一次确认涉及的交易 (批量时按顺序)
type Input struct {
	Transactions []txbuilder.Transaction
	// FeeOverride 调用方给定的总手续费 (drops)，为空时使用估算值
	FeeOverride string
	Account     string
}

// Snapshot 确认页展示的手续费 / 储备快照。金额单位 XRP，*Drops 字段为 drops
type Snapshot struct {
	EstimatedFeesDrops string          `json:"estimated_fees_drops"`
	EstimatedFees      decimal.Decimal `json:"estimated_fees"`
	FeeError           string          `json:"fee_error,omitempty"`
	Balance            decimal.Decimal `json:"balance"`
	AccountNotFound    bool            `json:"account_not_found"`
	OwnerCount         uint32          `json:"owner_count"`
	Reserve            decimal.Decimal `json:"reserve"`
	Difference         decimal.Decimal `json:"difference"`
	Insufficient       bool            `json:"insufficient"`
	overridden         bool
}

// CanConfirm 余额足够，且手续费已知 (估算成功或调用方给定)
func (s *Snapshot) CanConfirm() bool {
	if s == nil || s.Insufficient {
		return false
	}
	return s.FeeError == "" || s.overridden
}

// Compute 计算一次快照
func Compute(ctx context.Context, l Ledger, in Input, log *zap.Logger) (*Snapshot, error) {
	reserve, err := l.GetReserve(ctx)
	if err != nil {
		return nil, fmt.Errorf("fee: reserve: %w", err)
	}
	return compute(ctx, l, in, reserve, log)
}

func compute(ctx context.Context, l Ledger, in Input, reserve ledger.Reserve, log *zap.Logger) (*Snapshot, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var (
		snap     Snapshot
		totalFee = decimal.Zero
		balance  = decimal.Zero
	)

	// 余额、owner 数和手续费互不依赖，全部完成后才得到最终结果
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for _, tx := range in.Transactions {
			tx = tx.WithAccount(in.Account)
			drops := tx.Fee()
			if drops == "" {
				est, err := l.EstimateFee(gctx, tx)
				if err != nil {
					// 具体原因只进日志
					snap.FeeError = errno.ErrFeeEstimation.Message
					log.Warn("手续费估算失败", zap.String("type", tx.Type()), zap.Error(err))
					continue
				}
				drops = est
			}
			d, err := decimal.NewFromString(drops)
			if err != nil {
				snap.FeeError = errno.ErrFeeEstimation.Message
				continue
			}
			totalFee = totalFee.Add(d)
		}
		return nil
	})
	g.Go(func() error {
		bal, err := l.GetXRPBalance(gctx, in.Account)
		switch {
		case errors.Is(err, errno.ErrAccountNotFound):
			snap.AccountNotFound = true
		case err != nil:
			log.Error("获取余额失败", zap.String("account", in.Account), zap.Error(err))
			return fmt.Errorf("fee: balance: %w", err)
		default:
			balance = bal
		}
		return nil
	})
	g.Go(func() error {
		owners, err := l.GetOwnerCount(gctx, in.Account)
		if err != nil {
			// 退化为只算基础储备
			if !errors.Is(err, errno.ErrAccountNotFound) {
				log.Warn("获取 owner count 失败，仅按基础储备计算", zap.Error(err))
			}
			owners = 0
		}
		snap.OwnerCount = owners
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap.EstimatedFeesDrops = totalFee.String()
	snap.EstimatedFees = ledgerXRP(totalFee)
	snap.Balance = balance
	snap.Reserve = reserve.Total(snap.OwnerCount)

	fees := snap.EstimatedFees
	if in.FeeOverride != "" {
		d, err := decimal.NewFromString(in.FeeOverride)
		if err != nil {
			return nil, errno.ErrValidation.WithMessage(fmt.Sprintf("invalid fee %q", in.FeeOverride))
		}
		fees = ledgerXRP(d)
		snap.overridden = true
	}

	snap.Difference = balance.Sub(snap.Reserve).Sub(fees)
	snap.Insufficient = snap.Difference.LessThanOrEqual(decimal.Zero)
	if snap.Insufficient {
		monitor.ObserveInsufficientFunds()
	}
	return &snap, nil
}

func ledgerXRP(drops decimal.Decimal) decimal.Decimal {
	return drops.Shift(-6)
}
