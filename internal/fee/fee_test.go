package fee

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"gemwallet/internal/ledger"
	"gemwallet/internal/txbuilder"
	"gemwallet/pkg/errno"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wallet = "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"

type fakeLedger struct {
	mu          sync.Mutex
	url         string
	estimate    string
	estimateOK  bool
	estimateErr error
	balance     decimal.Decimal
	balanceErr  error
	owners      uint32
	ownersErr   error
	reserve     ledger.Reserve
	estimated   []txbuilder.Transaction
	balances    int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		url:        "https://s.altnet.rippletest.net:51234",
		estimate:   "12",
		estimateOK: true,
		balance:    decimal.NewFromInt(50),
		owners:     2,
		reserve:    ledger.Reserve{Base: decimal.NewFromInt(10), PerOwner: decimal.NewFromInt(2)},
	}
}

func (f *fakeLedger) URL() string { return f.url }

func (f *fakeLedger) EstimateFee(_ context.Context, tx txbuilder.Transaction) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.estimated = append(f.estimated, tx)
	if f.estimateErr != nil {
		return "", f.estimateErr
	}
	if !f.estimateOK {
		return "", errno.ErrFeeEstimation
	}
	return f.estimate, nil
}

func (f *fakeLedger) GetXRPBalance(context.Context, string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances++
	return f.balance, f.balanceErr
}

func (f *fakeLedger) GetOwnerCount(context.Context, string) (uint32, error) {
	return f.owners, f.ownersErr
}

func (f *fakeLedger) GetReserve(context.Context) (ledger.Reserve, error) {
	return f.reserve, nil
}

func payment(fee string) txbuilder.Transaction {
	tx := txbuilder.Transaction{"TransactionType": "Payment", "Destination": "rPT1Sjq2YGrBMTttX4GZHjKu9dyfzbpAYe", "Amount": "10000"}
	if fee != "" {
		tx["Fee"] = fee
	}
	return tx
}

func TestCompute_ReserveArithmetic(t *testing.T) {
	l := newFakeLedger()
	snap, err := Compute(context.Background(), l, Input{Transactions: []txbuilder.Transaction{payment("199")}, Account: wallet}, nil)
	require.NoError(t, err)

	// 50 - (10 + 2*2) - 0.000199
	assert.Equal(t, "35.999801", snap.Difference.String())
	assert.Equal(t, "14", snap.Reserve.String())
	assert.Equal(t, "199", snap.EstimatedFeesDrops)
	assert.Equal(t, "0.000199", snap.EstimatedFees.String())
	assert.False(t, snap.Insufficient)
	assert.True(t, snap.CanConfirm())
	assert.Empty(t, l.estimated, "显式 Fee 不需要估算")
}

func TestCompute_BulkSumsPerTransaction(t *testing.T) {
	l := newFakeLedger()
	snap, err := Compute(context.Background(), l, Input{
		Transactions: []txbuilder.Transaction{payment("199"), payment("")},
		Account:      wallet,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "211", snap.EstimatedFeesDrops)

	// 估算前补上 Account
	require.Len(t, l.estimated, 1)
	assert.Equal(t, wallet, l.estimated[0].Account())
}

func TestCompute_Degraded(t *testing.T) {
	t.Run("account not found", func(t *testing.T) {
		l := newFakeLedger()
		l.balanceErr = errno.ErrAccountNotFound.WithMessage("actNotFound")
		l.ownersErr = errno.ErrAccountNotFound
		snap, err := Compute(context.Background(), l, Input{Transactions: []txbuilder.Transaction{payment("12")}, Account: wallet}, nil)
		require.NoError(t, err)
		assert.True(t, snap.AccountNotFound)
		assert.True(t, snap.Balance.IsZero())
		assert.True(t, snap.Insufficient)
		assert.False(t, snap.CanConfirm())
	})

	t.Run("owner count failure uses base reserve", func(t *testing.T) {
		l := newFakeLedger()
		l.ownersErr = errors.New("timeout")
		snap, err := Compute(context.Background(), l, Input{Transactions: []txbuilder.Transaction{payment("199")}, Account: wallet}, nil)
		require.NoError(t, err)
		assert.Equal(t, "10", snap.Reserve.String())
		assert.Equal(t, "39.999801", snap.Difference.String())
	})

	t.Run("balance failure is an error", func(t *testing.T) {
		l := newFakeLedger()
		l.balanceErr = errno.ErrLedger
		_, err := Compute(context.Background(), l, Input{Account: wallet}, nil)
		assert.ErrorIs(t, err, errno.ErrLedger)
	})

	t.Run("fee estimation failure blocks confirm", func(t *testing.T) {
		l := newFakeLedger()
		l.estimateOK = false
		snap, err := Compute(context.Background(), l, Input{Transactions: []txbuilder.Transaction{payment("")}, Account: wallet}, nil)
		require.NoError(t, err)
		assert.Equal(t, errno.ErrFeeEstimation.Message, snap.FeeError)
		assert.False(t, snap.Insufficient)
		assert.False(t, snap.CanConfirm())

		snap, err = Compute(context.Background(), l, Input{Transactions: []txbuilder.Transaction{payment("")}, Account: wallet, FeeOverride: "15"}, nil)
		require.NoError(t, err)
		assert.True(t, snap.CanConfirm())
		assert.Equal(t, "35.999985", snap.Difference.String())
	})
}

// remoteFee 手续费走真实的 ledger.Client，其余读接口用 fake
type remoteFee struct {
	*fakeLedger
	client *ledger.Client
}

func (r remoteFee) EstimateFee(ctx context.Context, tx txbuilder.Transaction) (string, error) {
	return r.client.EstimateFee(ctx, tx)
}

func TestCompute_FeeErrorHidesCause(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	unreachable := srv.URL
	srv.Close()

	tests := []struct {
		name string
		l    Ledger
	}{
		{"节点不可达", remoteFee{fakeLedger: newFakeLedger(), client: ledger.New(unreachable)}},
		{"原始传输错误", func() Ledger {
			l := newFakeLedger()
			l.estimateErr = errors.New("ledger fee: dial tcp 10.1.2.3:51234: connect: connection refused")
			return l
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, err := Compute(context.Background(), tt.l, Input{Transactions: []txbuilder.Transaction{payment("")}, Account: wallet}, nil)
			require.NoError(t, err)
			assert.Equal(t, errno.ErrFeeEstimation.Message, snap.FeeError)
			assert.NotContains(t, snap.FeeError, "dial")
			assert.NotContains(t, snap.FeeError, "127.0.0.1")
			assert.False(t, snap.CanConfirm())
		})
	}
}

func TestCompute_Insufficient(t *testing.T) {
	tests := []struct {
		name         string
		balance      int64
		insufficient bool
	}{
		{"刚好等于储备+手续费", 0, true},
		{"余额充足", 50, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newFakeLedger()
			l.balance = decimal.NewFromInt(tt.balance)
			if tt.balance == 0 {
				// 14 XRP 储备 + 12 drops 手续费
				l.balance = decimal.RequireFromString("14.000012")
			}
			snap, err := Compute(context.Background(), l, Input{Transactions: []txbuilder.Transaction{payment("12")}, Account: wallet}, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.insufficient, snap.Insufficient)
		})
	}
}

func TestWatcher_RecomputesOnChange(t *testing.T) {
	l := newFakeLedger()
	w := NewWatcher(nil)
	ctx := context.Background()
	in := Input{Transactions: []txbuilder.Transaction{payment("199")}, Account: wallet}

	first, err := w.Refresh(ctx, l, in)
	require.NoError(t, err)
	again, err := w.Refresh(ctx, l, in)
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.Equal(t, 1, l.balances)

	in.FeeOverride = "1000"
	changed, err := w.Refresh(ctx, l, in)
	require.NoError(t, err)
	assert.NotSame(t, first, changed)
	assert.Equal(t, 2, l.balances)

	l.url = "wss://xahau-test.net"
	_, err = w.Refresh(ctx, l, in)
	require.NoError(t, err)
	assert.Equal(t, 3, l.balances)

	l.reserve.PerOwner = decimal.RequireFromString("0.2")
	snap, err := w.Refresh(ctx, l, in)
	require.NoError(t, err)
	assert.Equal(t, 4, l.balances)
	assert.Equal(t, "10.4", snap.Reserve.String())

	w.Reset()
	assert.Nil(t, w.Current())
}
