package fee

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Watcher 持有确认页当前的快照，只有输入变化时才重新计算
type Watcher struct {
	mu          sync.Mutex
	fingerprint string
	current     *Snapshot
	log         *zap.Logger
}

func NewWatcher(log *zap.Logger) *Watcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{log: log}
}

// Current 最近一次计算结果，还没有时为 nil
func (w *Watcher) Current() *Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Refresh 交易、手续费覆盖值、ledger 客户端或储备参数任一变化都会重新计算
func (w *Watcher) Refresh(ctx context.Context, l Ledger, in Input) (*Snapshot, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	reserve, err := l.GetReserve(ctx)
	if err != nil {
		return nil, fmt.Errorf("fee: reserve: %w", err)
	}
	raw, err := json.Marshal(struct {
		Txs      any    `json:"txs"`
		Override string `json:"override"`
		Account  string `json:"account"`
		Client   string `json:"client"`
		Base     string `json:"base"`
		PerOwner string `json:"per_owner"`
	}{in.Transactions, in.FeeOverride, in.Account, l.URL(), reserve.Base.String(), reserve.PerOwner.String()})
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(raw)
	fp := hex.EncodeToString(sum[:])
	if fp == w.fingerprint && w.current != nil {
		return w.current, nil
	}

	snap, err := compute(ctx, l, in, reserve, w.log)
	if err != nil {
		return nil, err
	}
	w.fingerprint = fp
	w.current = snap
	return snap, nil
}

// Reset 确认页关闭时丢弃快照
func (w *Watcher) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.fingerprint = ""
	w.current = nil
}
