package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"gemwallet/internal/fee"
	"gemwallet/internal/network"
	"gemwallet/internal/protocol"
	"gemwallet/internal/storage"
	"gemwallet/internal/submission"
	"gemwallet/internal/txbuilder"
	"gemwallet/internal/wallet"
	"gemwallet/pkg/errno"
	"gemwallet/pkg/keystore"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const genesisSeed = "snoPBrXtMeMyMHUVTgbuqAfg1SUTb"

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func do(t *testing.T, r *gin.Engine, method, path string, body any) envelope {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

type fakeConfirmations struct {
	mu       sync.Mutex
	items    map[string]*submission.Confirmation
	snap     *fee.Snapshot
	snapErr  error
	override string
}

func (f *fakeConfirmations) List() []*submission.Confirmation {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*submission.Confirmation, 0, len(f.items))
	for _, c := range f.items {
		out = append(out, c)
	}
	return out
}

func (f *fakeConfirmations) Get(id string) (*submission.Confirmation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.items[id]
	if !ok {
		return nil, errno.ErrConfirmationNotFound
	}
	return c, nil
}

func (f *fakeConfirmations) Snapshot(context.Context, string) (*fee.Snapshot, error) {
	return f.snap, f.snapErr
}

func (f *fakeConfirmations) Confirm(ctx context.Context, id, feeOverride string) error {
	c, err := f.Get(id)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.override = feeOverride
	f.mu.Unlock()
	return c.Confirm(ctx)
}

func (f *fakeConfirmations) Reject(id string) error {
	c, err := f.Get(id)
	if err != nil {
		return err
	}
	return c.Reject()
}

func (f *fakeConfirmations) Close(id string) error {
	c, err := f.Get(id)
	if err != nil {
		return err
	}
	return c.Close()
}

func payment() txbuilder.Transaction {
	return txbuilder.Transaction{
		"TransactionType": "Payment",
		"Amount":          "1000",
		"Destination":     "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh",
		"Flags":           float64(0x00020000),
	}
}

func newConfirmationRouter(f *fakeConfirmations) *gin.Engine {
	r := gin.New()
	h := NewConfirmationHandler(f)
	g := r.Group("/confirmations")
	g.GET("", h.List)
	g.GET("/:id", h.Detail)
	g.POST("/:id/confirm", h.Confirm)
	g.POST("/:id/reject", h.Reject)
	g.POST("/:id/close", h.Close)
	return r
}

func TestConfirmationHandler(t *testing.T) {
	conn := protocol.ConnectionInfo{URL: "https://dapp.example"}
	exec := func(context.Context) (protocol.Result, error) {
		return protocol.Result{Hash: "ABC"}, nil
	}
	f := &fakeConfirmations{
		items: map[string]*submission.Confirmation{
			"c-1": submission.New("c-1", protocol.SendPayment, conn, exec, submission.WithTransactions(payment())),
			"c-2": submission.New("c-2", protocol.SetTrustline, conn, exec),
		},
		snap: &fee.Snapshot{EstimatedFeesDrops: "12", Balance: decimal.NewFromInt(50)},
	}
	r := newConfirmationRouter(f)

	t.Run("列表", func(t *testing.T) {
		env := do(t, r, http.MethodGet, "/confirmations", nil)
		require.Equal(t, 0, env.Code)
		var views []submission.View
		require.NoError(t, json.Unmarshal(env.Data, &views))
		assert.Len(t, views, 2)
	})

	t.Run("详情包含 flags 和手续费", func(t *testing.T) {
		env := do(t, r, http.MethodGet, "/confirmations/c-1", nil)
		require.Equal(t, 0, env.Code)
		var d struct {
			State        submission.State  `json:"state"`
			Title        string            `json:"title"`
			Transactions []TransactionView `json:"transactions"`
			Fee          *fee.Snapshot     `json:"fee"`
			CanConfirm   bool              `json:"can_confirm"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &d))
		assert.Equal(t, submission.Waiting, d.State)
		assert.Equal(t, "Confirm Transaction", d.Title)
		require.Len(t, d.Transactions, 1)
		assert.Equal(t, []string{"tfPartialPayment"}, d.Transactions[0].Flags)
		require.NotNil(t, d.Fee)
		assert.Equal(t, "12", d.Fee.EstimatedFeesDrops)
		assert.True(t, d.CanConfirm)
	})

	t.Run("快照失败时返回 fee_error", func(t *testing.T) {
		f.snapErr = errno.ErrLedger
		defer func() { f.snapErr = nil }()
		env := do(t, r, http.MethodGet, "/confirmations/c-1", nil)
		require.Equal(t, 0, env.Code)
		var d ConfirmationDetail
		require.NoError(t, json.Unmarshal(env.Data, &d))
		assert.Equal(t, errno.ErrLedger.Message, d.FeeError)
		assert.False(t, d.CanConfirm)
	})

	t.Run("不存在", func(t *testing.T) {
		env := do(t, r, http.MethodGet, "/confirmations/nope", nil)
		assert.Equal(t, errno.ErrConfirmationNotFound.Code, env.Code)
	})

	t.Run("手续费不是数字", func(t *testing.T) {
		env := do(t, r, http.MethodPost, "/confirmations/c-1/confirm", map[string]string{"fee": "abc"})
		assert.Equal(t, errno.ErrBind.Code, env.Code)
	})

	t.Run("确认后关闭", func(t *testing.T) {
		env := do(t, r, http.MethodPost, "/confirmations/c-1/confirm", map[string]string{"fee": "15"})
		require.Equal(t, 0, env.Code)
		assert.Equal(t, "15", f.override)

		c, _ := f.Get("c-1")
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		state, err := c.Wait(ctx)
		require.NoError(t, err)
		assert.Equal(t, submission.Success, state)

		env = do(t, r, http.MethodPost, "/confirmations/c-1/close", nil)
		require.Equal(t, 0, env.Code)
		var v submission.View
		require.NoError(t, json.Unmarshal(env.Data, &v))
		assert.True(t, v.Closed)
		assert.Equal(t, "ABC", v.Hash)
	})

	t.Run("拒绝后不能再确认", func(t *testing.T) {
		env := do(t, r, http.MethodPost, "/confirmations/c-2/reject", nil)
		require.Equal(t, 0, env.Code)
		var v submission.View
		require.NoError(t, json.Unmarshal(env.Data, &v))
		assert.Equal(t, submission.Rejected, v.State)

		env = do(t, r, http.MethodPost, "/confirmations/c-2/confirm", nil)
		assert.Equal(t, errno.ErrActionNotAllowed.Code, env.Code)
	})
}

func newWalletRouter(w Wallets) *gin.Engine {
	r := gin.New()
	h := NewWalletHandler(w)
	r.POST("/wallet/unlock", h.Unlock)
	r.POST("/wallet/lock", h.Lock)
	r.GET("/wallets", h.List)
	r.POST("/wallets", h.Create)
	r.POST("/wallets/import", h.Import)
	r.PUT("/wallets/:index", h.Rename)
	r.DELETE("/wallets/:index", h.Remove)
	r.POST("/wallets/:index/select", h.Select)
	return r
}

func TestWalletHandler(t *testing.T) {
	p := wallet.NewProvider(storage.NewMemoryStore(), keystore.LightScryptN, nil)
	r := newWalletRouter(p)

	summaries := func(env envelope) []wallet.Summary {
		var out []wallet.Summary
		require.NoError(t, json.Unmarshal(env.Data, &out))
		return out
	}

	env := do(t, r, http.MethodGet, "/wallets", nil)
	assert.Equal(t, errno.ErrWalletLocked.Code, env.Code, "未解锁")

	env = do(t, r, http.MethodPost, "/wallet/unlock", map[string]string{"password": "short"})
	assert.Equal(t, errno.ErrBind.Code, env.Code, "密码太短")

	env = do(t, r, http.MethodPost, "/wallet/unlock", map[string]string{"password": "correct horse"})
	require.Equal(t, 0, env.Code)

	env = do(t, r, http.MethodPost, "/wallets/import", map[string]string{"name": "Genesis", "secret": genesisSeed})
	require.Equal(t, 0, env.Code)
	var imported wallet.Summary
	require.NoError(t, json.Unmarshal(env.Data, &imported))
	assert.Equal(t, "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh", imported.Address)

	env = do(t, r, http.MethodPost, "/wallets/import", map[string]string{"name": "Bad", "secret": "not a secret"})
	assert.Equal(t, errno.ErrInvalidSecret.Code, env.Code)

	env = do(t, r, http.MethodPost, "/wallets", map[string]string{"name": "Fresh", "algorithm": "ed25519"})
	require.Equal(t, 0, env.Code)

	env = do(t, r, http.MethodPost, "/wallets", map[string]string{"name": "Weird", "algorithm": "rsa"})
	assert.Equal(t, errno.ErrBind.Code, env.Code)

	env = do(t, r, http.MethodPost, "/wallets/1/select", nil)
	require.Equal(t, 0, env.Code)
	list := summaries(env)
	require.Len(t, list, 2)
	assert.True(t, list[1].Selected)

	env = do(t, r, http.MethodPut, "/wallets/0", map[string]string{"name": "Main"})
	require.Equal(t, 0, env.Code)
	assert.Equal(t, "Main", summaries(env)[0].Name)

	env = do(t, r, http.MethodPost, "/wallets/x/select", nil)
	assert.Equal(t, errno.ErrValidation.Code, env.Code)

	env = do(t, r, http.MethodDelete, "/wallets/5", nil)
	assert.Equal(t, errno.ErrWalletNotFound.Code, env.Code)

	env = do(t, r, http.MethodDelete, "/wallets/0", nil)
	require.Equal(t, 0, env.Code)
	list = summaries(env)
	require.Len(t, list, 1)
	assert.Equal(t, "Fresh", list[0].Name)
	assert.True(t, list[0].Selected)

	env = do(t, r, http.MethodPost, "/wallet/lock", nil)
	require.Equal(t, 0, env.Code)
	assert.False(t, p.Unlocked())
}

func TestNetworkHandler(t *testing.T) {
	store, err := network.NewStore(context.Background(), storage.NewMemoryStore(), network.Testnet, "")
	require.NoError(t, err)
	r := gin.New()
	h := NewNetworkHandler(store)
	r.GET("/network", h.Get)
	r.PUT("/network", h.Select)

	env := do(t, r, http.MethodGet, "/network", nil)
	require.Equal(t, 0, env.Code)
	var got struct {
		Current network.Network   `json:"current"`
		Presets []network.Network `json:"presets"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, network.Testnet, got.Current.Name)
	assert.Len(t, got.Presets, 5)

	tests := []struct {
		name     string
		body     map[string]string
		wantCode int
	}{
		{name: "切换到 devnet", body: map[string]string{"name": network.Devnet}, wantCode: 0},
		{name: "自定义节点", body: map[string]string{"name": network.Custom, "url": "http://localhost:5005"}, wantCode: 0},
		{name: "自定义节点缺少地址", body: map[string]string{"name": network.Custom}, wantCode: errno.ErrValidation.Code},
		{name: "未知网络", body: map[string]string{"name": "moonnet"}, wantCode: errno.ErrValidation.Code},
		{name: "地址不合法", body: map[string]string{"name": network.Custom, "url": "::bad"}, wantCode: errno.ErrBind.Code},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := do(t, r, http.MethodPut, "/network", tt.body)
			assert.Equal(t, tt.wantCode, env.Code, env.Msg)
		})
	}
	assert.Equal(t, network.Custom, store.Current().Name)
}

func TestHealthCheck(t *testing.T) {
	r := gin.New()
	r.GET("/health", HealthCheck)
	env := do(t, r, http.MethodGet, "/health", nil)
	var data map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "UP", data["status"])
	assert.Equal(t, "gem-server", data["service"])
}
