package background

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"gemwallet/internal/ledger"
	"gemwallet/internal/network"
	"gemwallet/internal/protocol"
	"gemwallet/internal/storage"
	"gemwallet/internal/submission"
	"gemwallet/internal/telemetry"
	"gemwallet/internal/txbuilder"
	"gemwallet/internal/wallet"
	"gemwallet/pkg/errno"
	"gemwallet/pkg/keystore"
	"gemwallet/pkg/xrpcodec"
	"gemwallet/pkg/xrpkey"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	genesisSeed    = "snoPBrXtMeMyMHUVTgbuqAfg1SUTb"
	genesisAddress = "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"
)

type fakeEmitter struct {
	ch chan protocol.RuntimeMessage
}

func newEmitter() *fakeEmitter {
	return &fakeEmitter{ch: make(chan protocol.RuntimeMessage, 16)}
}

func (f *fakeEmitter) Emit(_ context.Context, msg protocol.RuntimeMessage) error {
	f.ch <- msg
	return nil
}

func (f *fakeEmitter) next(t *testing.T) protocol.RuntimeMessage {
	t.Helper()
	select {
	case msg := <-f.ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("没有收到 runtime 消息")
	}
	return protocol.RuntimeMessage{}
}

type fakeNetworks struct {
	n network.Network
}

func (f fakeNetworks) Current() network.Network { return f.n }

type fakeSink struct {
	ch chan telemetry.Event
}

func (f *fakeSink) Capture(_ context.Context, ev telemetry.Event) error {
	select {
	case f.ch <- ev:
	default:
	}
	return nil
}

type fakeLedger struct {
	balance   decimal.Decimal
	owners    uint32
	networkID uint32
	// result SubmitAndWait 返回的结果码，为空时 tesSUCCESS
	result string
	// failAt SignAndSubmit 第几笔返回失败
	failAt map[int]bool
	// balanceErr 查询余额返回的错误
	balanceErr error

	mu        sync.Mutex
	submitted []txbuilder.Transaction
}

func (f *fakeLedger) URL() string { return "fake://ledger" }

func (f *fakeLedger) EstimateFee(context.Context, txbuilder.Transaction) (string, error) {
	return "12", nil
}

func (f *fakeLedger) GetXRPBalance(context.Context, string) (decimal.Decimal, error) {
	return f.balance, f.balanceErr
}

func (f *fakeLedger) GetOwnerCount(context.Context, string) (uint32, error) {
	return f.owners, nil
}

func (f *fakeLedger) GetReserve(context.Context) (ledger.Reserve, error) {
	return ledger.Reserve{Base: decimal.NewFromInt(10), PerOwner: decimal.NewFromInt(2)}, nil
}

func (f *fakeLedger) NetworkID(context.Context) (uint32, error) {
	return f.networkID, nil
}

func (f *fakeLedger) GetNFTs(context.Context, string, uint32, json.RawMessage) (*protocol.NFTPage, error) {
	return &protocol.NFTPage{AccountNFTs: []protocol.NFT{{NFTokenID: "00", Issuer: genesisAddress}}}, nil
}

func (f *fakeLedger) Autofill(_ context.Context, tx txbuilder.Transaction) (txbuilder.Transaction, error) {
	out := tx.Clone()
	out.SetDefault("Sequence", uint32(7))
	out.SetDefault("Fee", "12")
	return out, nil
}

func (f *fakeLedger) record(tx txbuilder.Transaction) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, tx)
	return len(f.submitted) - 1
}

// sign 用钱包在本地签名，记录签好的交易；哈希换成按序号的固定值
func (f *fakeLedger) sign(ctx context.Context, tx txbuilder.Transaction, signer ledger.Signer) (*txbuilder.Signed, int, error) {
	filled, err := f.Autofill(ctx, tx)
	if err != nil {
		return nil, 0, err
	}
	signed, err := signer.SignTransaction(filled)
	if err != nil {
		return nil, 0, err
	}
	i := f.record(signed.Transaction)
	signed.Hash = fmt.Sprintf("HASH%d", i)
	return signed, i, nil
}

func (f *fakeLedger) SignAndSubmit(ctx context.Context, tx txbuilder.Transaction, signer ledger.Signer) (*txbuilder.Signed, *ledger.SubmitResult, error) {
	signed, i, err := f.sign(ctx, tx, signer)
	if err != nil {
		return nil, nil, err
	}
	if f.failAt[i] {
		return signed, &ledger.SubmitResult{EngineResult: "tecUNFUNDED_PAYMENT"}, nil
	}
	return signed, &ledger.SubmitResult{EngineResult: "tesSUCCESS", Accepted: true}, nil
}

func (f *fakeLedger) SubmitAndWait(ctx context.Context, tx txbuilder.Transaction, signer ledger.Signer) (*ledger.TxResult, error) {
	signed, _, err := f.sign(ctx, tx, signer)
	if err != nil {
		return nil, err
	}
	result := f.result
	if result == "" {
		result = "tesSUCCESS"
	}
	return &ledger.TxResult{Hash: signed.Hash, Result: result, Validated: true}, nil
}

type harness struct {
	svc     *Service
	emitter *fakeEmitter
	ledger  *fakeLedger
	sink    *fakeSink
	wallets *wallet.Provider
}

func newHarness(t *testing.T, l *fakeLedger) *harness {
	t.Helper()
	ctx := context.Background()
	wallets := wallet.NewProvider(storage.NewMemoryStore(), keystore.LightScryptN, nil)
	require.NoError(t, wallets.Unlock(ctx, "correct horse"))
	_, err := wallets.Import(ctx, "Genesis", genesisSeed)
	require.NoError(t, err)

	testnet, err := network.Lookup(network.Testnet, "")
	require.NoError(t, err)

	h := &harness{emitter: newEmitter(), ledger: l, sink: &fakeSink{ch: make(chan telemetry.Event, 4)}, wallets: wallets}
	h.svc = New(h.emitter, wallets, fakeNetworks{n: testnet},
		func(network.Network) Ledger { return l },
		submission.NewRegistry(),
		WithSink(h.sink),
	)
	return h
}

func funded() *fakeLedger {
	return &fakeLedger{balance: decimal.NewFromInt(50), owners: 2}
}

func request(t protocol.MessageType, id string, payload any) protocol.RuntimeMessage {
	msg := protocol.RuntimeMessage{
		App:        protocol.AppID,
		Type:       t,
		ID:         id,
		Connection: &protocol.ConnectionInfo{URL: "https://dapp.example", Title: "dApp"},
	}
	if payload != nil {
		raw, _ := json.Marshal(payload)
		msg.Payload = raw
	}
	return msg
}

// handle 处理请求并返回 ack；有确认时同时返回它
func (h *harness) handle(t *testing.T, msg protocol.RuntimeMessage) (protocol.RuntimeMessage, *submission.Confirmation) {
	t.Helper()
	h.svc.Handle(context.Background(), msg)
	ack := h.emitter.next(t)
	require.Equal(t, protocol.RuntimeAck, ack.Type)
	require.Equal(t, msg.ID, ack.ID)
	if ack.Result != nil {
		return ack, nil
	}
	list := h.svc.List()
	require.NotEmpty(t, list)
	return ack, list[len(list)-1]
}

func waitTerminal(t *testing.T, c *submission.Confirmation) submission.State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s, err := c.Wait(ctx)
	require.NoError(t, err)
	return s
}

func TestHandle_ImmediateAcks(t *testing.T) {
	h := newHarness(t, funded())

	t.Run("网络查询直接完成", func(t *testing.T) {
		ack, c := h.handle(t, request(protocol.RequestNetwork, "n-1", nil))
		assert.Nil(t, c)
		require.NotNil(t, ack.Result.Network)
		assert.Equal(t, "Testnet", ack.Result.Network.Network)
		assert.Equal(t, uint32(1), ack.Result.Network.NetworkID)
	})

	t.Run("未知类型", func(t *testing.T) {
		ack, _ := h.handle(t, request("REQUEST_EVERYTHING", "n-2", nil))
		assert.Equal(t, "Unsupported request type", ack.Result.Error)
	})

	tests := []struct {
		name    string
		msg     protocol.RuntimeMessage
		wantErr string
	}{
		{
			name:    "地址不合法",
			msg:     request(protocol.SendPayment, "v-1", map[string]any{"amount": "1000", "destination": "rNotAnAddress"}),
			wantErr: "not a valid XRPL address",
		},
		{
			name:    "未知 flag",
			msg:     request(protocol.SendPayment, "v-2", map[string]any{"amount": "1000", "destination": genesisAddress, "flags": map[string]bool{"tfBogus": true}}),
			wantErr: "tfBogus",
		},
		{
			name:    "交易类型未知",
			msg:     request(protocol.SubmitTransaction, "v-3", map[string]any{"transaction": map[string]any{"TransactionType": "Teleport"}}),
			wantErr: "Teleport",
		},
		{
			name:    "hex 消息不合法",
			msg:     request(protocol.RequestSignMessage, "v-4", map[string]any{"message": "zz", "isHex": true}),
			wantErr: "not valid hex",
		},
		{
			name:    "批量超过上限",
			msg:     request(protocol.SubmitBulkTransactions, "v-5", map[string]any{"transactions": make([]map[string]any, 51)}),
			wantErr: "at most 50",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack, c := h.handle(t, tt.msg)
			assert.Nil(t, c)
			require.NotNil(t, ack.Result)
			assert.Contains(t, ack.Result.Error, tt.wantErr)
		})
	}
	assert.Empty(t, h.svc.List(), "校验失败不创建确认")
}

func TestHandle_WalletLocked(t *testing.T) {
	h := newHarness(t, funded())
	h.wallets.Lock()

	ack, c := h.handle(t, request(protocol.RequestAddress, "a-1", nil))
	assert.Nil(t, c)
	assert.Equal(t, errno.ErrWalletLocked.Message, ack.Result.Error)
}

func TestHandle_IgnoresForeignApp(t *testing.T) {
	h := newHarness(t, funded())
	msg := request(protocol.RequestAddress, "x-1", nil)
	msg.App = "other-wallet"
	h.svc.Handle(context.Background(), msg)

	select {
	case m := <-h.emitter.ch:
		t.Fatalf("不应回复其他应用: %+v", m)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPayment_ConfirmAndClose(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, funded())

	ack, c := h.handle(t, request(protocol.SendPayment, "p-1", map[string]any{
		"amount":      "10000",
		"destination": genesisAddress,
	}))
	assert.Nil(t, ack.Result, "需要用户确认的请求只回普通 ack")
	assert.Equal(t, submission.Waiting, c.State())
	assert.Equal(t, "https://dapp.example", c.Connection.URL)
	require.Len(t, c.Transactions, 1)
	assert.Equal(t, genesisAddress, c.Transactions[0].Account())

	snap, err := h.svc.Snapshot(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "12", snap.EstimatedFeesDrops)
	// 50 - (10 + 2*2) - 0.000012
	assert.Equal(t, "35.999988", snap.Difference.String())
	assert.True(t, snap.CanConfirm())

	require.NoError(t, h.svc.Confirm(ctx, c.ID, ""))
	assert.Equal(t, submission.Success, waitTerminal(t, c))
	assert.Equal(t, "HASH0", c.Outcome().Hash)

	select {
	case ev := <-h.sink.ch:
		assert.Equal(t, c.ID, ev.ConfirmationID)
		assert.Equal(t, "success", ev.State)
		assert.Equal(t, "HASH0", ev.Hash)
		assert.Equal(t, "testnet", ev.Network)
		assert.Equal(t, "12", ev.FeeDrops)
	case <-time.After(2 * time.Second):
		t.Fatal("终态没有记录到 telemetry")
	}

	// 关闭前页面收不到结果
	select {
	case m := <-h.emitter.ch:
		t.Fatalf("关闭前不应发送完成事件: %+v", m)
	default:
	}

	require.NoError(t, h.svc.Close(c.ID))
	done := h.emitter.next(t)
	assert.Equal(t, protocol.ReceivePaymentHash, done.Type)
	assert.Equal(t, "p-1", done.ID)
	assert.Equal(t, "HASH0", done.Result.Hash)

	assert.Empty(t, h.svc.List())
	snap, err = h.svc.Snapshot(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, snap, "关闭后不再计算手续费")
}

func TestConfirm_FeeGate(t *testing.T) {
	ctx := context.Background()

	t.Run("余额不足不能确认", func(t *testing.T) {
		h := newHarness(t, &fakeLedger{balance: decimal.NewFromInt(14), owners: 2})
		_, c := h.handle(t, request(protocol.SendPayment, "g-1", map[string]any{"amount": "1", "destination": genesisAddress}))

		err := h.svc.Confirm(ctx, c.ID, "")
		assert.ErrorIs(t, err, errno.ErrInsufficientFunds)
		assert.Equal(t, submission.Waiting, c.State())
		assert.Empty(t, h.ledger.submitted)
	})

	t.Run("用户给定手续费", func(t *testing.T) {
		h := newHarness(t, funded())
		_, c := h.handle(t, request(protocol.SendPayment, "g-2", map[string]any{"amount": "1", "destination": genesisAddress}))

		assert.ErrorIs(t, h.svc.Confirm(ctx, c.ID, "-5"), errno.ErrValidation)
		require.NoError(t, h.svc.Confirm(ctx, c.ID, "15"))
		assert.Equal(t, submission.Success, waitTerminal(t, c))
		require.Len(t, h.ledger.submitted, 1)
		assert.Equal(t, "15", h.ledger.submitted[0].Fee())
	})

	t.Run("重复确认", func(t *testing.T) {
		h := newHarness(t, funded())
		_, c := h.handle(t, request(protocol.SendPayment, "g-3", map[string]any{"amount": "1", "destination": genesisAddress}))
		require.NoError(t, h.svc.Confirm(ctx, c.ID, ""))
		waitTerminal(t, c)
		assert.ErrorIs(t, h.svc.Confirm(ctx, c.ID, ""), errno.ErrActionNotAllowed)
		assert.Len(t, h.ledger.submitted, 1)
	})

	t.Run("不存在的确认", func(t *testing.T) {
		h := newHarness(t, funded())
		assert.ErrorIs(t, h.svc.Confirm(ctx, "missing", ""), errno.ErrConfirmationNotFound)
	})
}

func TestConfirm_LedgerErrorHidesCause(t *testing.T) {
	ctx := context.Background()
	l := funded()
	l.balanceErr = fmt.Errorf("ledger account_info: %w", errors.New("dial tcp 10.1.2.3:51234: connect: connection refused"))
	h := newHarness(t, l)
	_, c := h.handle(t, request(protocol.SendPayment, "e-1", map[string]any{"amount": "1", "destination": genesisAddress}))

	_, err := h.svc.Snapshot(ctx, c.ID)
	require.ErrorIs(t, err, errno.ErrLedger)
	assert.Equal(t, errno.ErrLedger.Message, userMessage(err))

	err = h.svc.Confirm(ctx, c.ID, "")
	require.ErrorIs(t, err, errno.ErrLedger)
	assert.NotContains(t, err.Error(), "dial tcp")
	assert.Equal(t, submission.Waiting, c.State())
	assert.Empty(t, h.ledger.submitted)
}

func TestSubmit_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("NetworkID 不匹配", func(t *testing.T) {
		h := newHarness(t, funded())
		_, c := h.handle(t, request(protocol.SubmitTransaction, "f-1", map[string]any{
			"transaction": map[string]any{"TransactionType": "Payment", "Amount": "1", "Destination": genesisAddress, "NetworkID": 21338},
		}))
		require.NoError(t, h.svc.Confirm(ctx, c.ID, ""))
		assert.Equal(t, submission.Rejected, waitTerminal(t, c))
		assert.Contains(t, c.Outcome().Error, "NetworkID 21338")
		assert.Empty(t, h.ledger.submitted, "校验失败不提交")
	})

	t.Run("ledger 结果码", func(t *testing.T) {
		l := funded()
		l.result = "tecUNFUNDED_PAYMENT"
		h := newHarness(t, l)
		_, c := h.handle(t, request(protocol.SendPayment, "f-2", map[string]any{"amount": "1", "destination": genesisAddress}))
		require.NoError(t, h.svc.Confirm(ctx, c.ID, ""))
		assert.Equal(t, submission.Rejected, waitTerminal(t, c))

		reason, code := c.Reason()
		assert.Equal(t, "tecUNFUNDED_PAYMENT", code)
		assert.Contains(t, reason, "tecUNFUNDED_PAYMENT")
		assert.Equal(t, "HASH0", c.Outcome().Hash)
	})

	t.Run("用户拒绝", func(t *testing.T) {
		h := newHarness(t, funded())
		_, c := h.handle(t, request(protocol.SetTrustline, "f-3", map[string]any{
			"limitAmount": map[string]string{"currency": "USD", "issuer": genesisAddress, "value": "100"},
		}))
		require.NoError(t, h.svc.Reject(c.ID))
		require.NoError(t, h.svc.Close(c.ID))

		done := h.emitter.next(t)
		assert.Equal(t, protocol.ReceiveSetTrustline, done.Type)
		assert.True(t, done.Result.Rejected)
		assert.Empty(t, done.Result.Error)
	})
}

func TestShareAndSign(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, funded())

	run := func(t *testing.T, msg protocol.RuntimeMessage) protocol.Result {
		t.Helper()
		_, c := h.handle(t, msg)
		require.NoError(t, h.svc.Confirm(ctx, c.ID, ""))
		require.Equal(t, submission.Success, waitTerminal(t, c))
		require.NoError(t, h.svc.Close(c.ID))
		return *h.emitter.next(t).Result
	}

	t.Run("地址", func(t *testing.T) {
		assert.Equal(t, genesisAddress, run(t, request(protocol.RequestAddress, "s-1", nil)).Address)
	})

	t.Run("公钥", func(t *testing.T) {
		res := run(t, request(protocol.RequestPublicKey, "s-2", nil))
		kp, err := xrpkey.FromSeed(genesisSeed)
		require.NoError(t, err)
		assert.Equal(t, kp.PublicKey(), res.PublicKey)
	})

	t.Run("NFT", func(t *testing.T) {
		res := run(t, request(protocol.RequestNFTs, "s-3", map[string]any{"limit": 20}))
		require.NotNil(t, res.NFTs)
		assert.Len(t, res.NFTs.AccountNFTs, 1)
	})

	t.Run("签名消息", func(t *testing.T) {
		res := run(t, request(protocol.RequestSignMessage, "s-4", map[string]any{"message": "68656C6C6F", "isHex": true}))
		kp, err := xrpkey.FromSeed(genesisSeed)
		require.NoError(t, err)
		assert.NoError(t, xrpkey.VerifyMessage(kp.PublicKey(), "hello", res.SignedMessage))
	})

	t.Run("签名交易", func(t *testing.T) {
		res := run(t, request(protocol.SignTransaction, "s-5", map[string]any{
			"transaction": map[string]any{"TransactionType": "AccountSet"},
		}))
		kp, err := xrpkey.FromSeed(genesisSeed)
		require.NoError(t, err)
		// 本地签名：blob 里带本钱包公钥，哈希由 blob 算出
		assert.True(t, strings.HasPrefix(res.Signature, "1200032"), res.Signature)
		assert.Contains(t, res.Signature, "7321"+kp.PublicKey())
		blob, err := hex.DecodeString(res.Signature)
		require.NoError(t, err)
		assert.Equal(t, xrpcodec.TransactionID(blob), res.Hash)
	})
}

func TestSubmitBulk(t *testing.T) {
	ctx := context.Background()
	txs := []map[string]any{
		{"TransactionType": "Payment", "Amount": "1", "Destination": genesisAddress, "Fee": "199"},
		{"TransactionType": "Payment", "Amount": "2", "Destination": genesisAddress},
		{"TransactionType": "Payment", "Amount": "3", "Destination": genesisAddress},
	}

	tests := []struct {
		name      string
		onError   string
		wantState submission.State
		wantItems int
	}{
		{"abort 在第一笔失败后停止", protocol.OnErrorAbort, submission.Rejected, 2},
		{"continue 处理全部", protocol.OnErrorContinue, submission.Success, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := funded()
			l.failAt = map[int]bool{1: true}
			h := newHarness(t, l)
			_, c := h.handle(t, request(protocol.SubmitBulkTransactions, "b-1", map[string]any{
				"transactions": txs,
				"onError":      tt.onError,
			}))

			snap, err := h.svc.Snapshot(ctx, c.ID)
			require.NoError(t, err)
			assert.Equal(t, "223", snap.EstimatedFeesDrops, "199 + 12 + 12")

			// 批量请求不接受手续费覆盖
			assert.ErrorIs(t, h.svc.Confirm(ctx, c.ID, "500"), errno.ErrValidation)
			assert.Equal(t, submission.Waiting, c.State())

			require.NoError(t, h.svc.Confirm(ctx, c.ID, ""))
			assert.Equal(t, tt.wantState, waitTerminal(t, c))

			items := c.Outcome().Transactions
			require.Len(t, items, tt.wantItems)
			assert.True(t, items[0].Accepted)
			assert.False(t, items[1].Accepted)
			assert.Equal(t, "tecUNFUNDED_PAYMENT", items[1].Error)
			if tt.wantItems == 3 {
				assert.True(t, items[2].Accepted)
				assert.Equal(t, "HASH2", items[2].Hash)
			}
		})
	}
}

func TestSubmit_MnemonicWalletSigns(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, funded())
	s, err := h.wallets.Import(ctx, "Phrase", "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about")
	require.NoError(t, err)
	require.NoError(t, h.wallets.Select(ctx, s.Index))
	acct, err := h.wallets.Current()
	require.NoError(t, err)

	_, c := h.handle(t, request(protocol.SendPayment, "m-1", map[string]any{"amount": "1", "destination": genesisAddress}))
	require.NoError(t, h.svc.Confirm(ctx, c.ID, ""))
	assert.Equal(t, submission.Success, waitTerminal(t, c))

	require.Len(t, h.ledger.submitted, 1)
	signed := h.ledger.submitted[0]
	assert.Equal(t, s.Address, signed.Account())
	assert.Equal(t, acct.PublicKey(), signed["SigningPubKey"])

	data, err := xrpcodec.EncodeForSigning(signed)
	require.NoError(t, err)
	sig, _ := signed["TxnSignature"].(string)
	assert.NoError(t, xrpkey.Verify(acct.PublicKey(), data, sig))
}
