package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gemwallet/internal/protocol"
	"gemwallet/internal/txbuilder"
	"gemwallet/pkg/cache"
	"gemwallet/pkg/errno"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	dropsPerXRP = 6
	// maxFeeDrops autofill 估算手续费的上限 (2 XRP)
	maxFeeDrops int64 = 2_000_000
	// 1024 以下的网络 (主网/测试网) 交易中不能带 NetworkID
	restrictedNetworkID = 1024
)

// DropsToXRP 以 XRP 为单位的精确值
func DropsToXRP(drops string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(drops)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid drops %q: %w", drops, err)
	}
	return d.Shift(-dropsPerXRP), nil
}

// XRPToDrops 向下取整到 drop
func XRPToDrops(xrp decimal.Decimal) string {
	return xrp.Shift(dropsPerXRP).Truncate(0).String()
}

type AccountData struct {
	Account    string `json:"Account"`
	Balance    string `json:"Balance"`
	OwnerCount uint32 `json:"OwnerCount"`
	Sequence   uint32 `json:"Sequence"`
	RegularKey string `json:"RegularKey,omitempty"`
	Flags      uint32 `json:"Flags"`
}

// AccountInfo 当前 (未验证) 账本上的账户状态
func (c *Client) AccountInfo(ctx context.Context, address string) (*AccountData, error) {
	var out struct {
		AccountData AccountData `json:"account_data"`
	}
	err := c.call(ctx, "account_info", map[string]any{
		"account":      address,
		"ledger_index": "current",
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out.AccountData, nil
}

// GetXRPBalance 账户余额 (XRP)。未激活账户返回 errno.ErrAccountNotFound
func (c *Client) GetXRPBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	info, err := c.AccountInfo(ctx, address)
	if err != nil {
		return decimal.Zero, err
	}
	return DropsToXRP(info.Balance)
}

func (c *Client) GetOwnerCount(ctx context.Context, address string) (uint32, error) {
	info, err := c.AccountInfo(ctx, address)
	if err != nil {
		return 0, err
	}
	return info.OwnerCount, nil
}

// Reserve 服务器储备参数 (XRP)
type Reserve struct {
	Base     decimal.Decimal `json:"base"`
	PerOwner decimal.Decimal `json:"per_owner"`
}

// Total base + ownerCount × perOwner
func (r Reserve) Total(ownerCount uint32) decimal.Decimal {
	return r.Base.Add(r.PerOwner.Mul(decimal.NewFromInt(int64(ownerCount))))
}

type ServerInfo struct {
	BuildVersion    string `json:"build_version"`
	NetworkID       uint32 `json:"network_id"`
	ServerState     string `json:"server_state"`
	ValidatedLedger struct {
		Seq            uint32          `json:"seq"`
		BaseFeeXRP     decimal.Decimal `json:"base_fee_xrp"`
		ReserveBaseXRP decimal.Decimal `json:"reserve_base_xrp"`
		ReserveIncXRP  decimal.Decimal `json:"reserve_inc_xrp"`
	} `json:"validated_ledger"`
}

func (c *Client) ServerInfo(ctx context.Context) (*ServerInfo, error) {
	var out struct {
		Info ServerInfo `json:"info"`
	}
	if err := c.call(ctx, "server_info", nil, &out); err != nil {
		return nil, err
	}
	return &out.Info, nil
}

func (c *Client) reserveKey() string {
	return "ledger:reserve:" + c.url
}

// GetReserve 储备参数，有缓存时按 reserveTTL 缓存
func (c *Client) GetReserve(ctx context.Context) (Reserve, error) {
	var r Reserve
	if c.cache != nil {
		err := c.cache.Get(ctx, c.reserveKey(), &r)
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.log.Warn("读取储备参数缓存失败", zap.Error(err))
		}
	}

	info, err := c.ServerInfo(ctx)
	if err != nil {
		return Reserve{}, err
	}
	r = Reserve{Base: info.ValidatedLedger.ReserveBaseXRP, PerOwner: info.ValidatedLedger.ReserveIncXRP}

	if c.cache != nil {
		if err := c.cache.Set(ctx, c.reserveKey(), r, c.reserveTTL); err != nil {
			c.log.Warn("写入储备参数缓存失败", zap.Error(err))
		}
	}
	return r, nil
}

// NetworkID 节点的 network_id，主网和旧节点为 0
func (c *Client) NetworkID(ctx context.Context) (uint32, error) {
	info, err := c.ServerInfo(ctx)
	if err != nil {
		return 0, err
	}
	return info.NetworkID, nil
}

type feeResult struct {
	LedgerCurrentIndex uint32 `json:"ledger_current_index"`
	Drops              struct {
		BaseFee       string `json:"base_fee"`
		MinimumFee    string `json:"minimum_fee"`
		OpenLedgerFee string `json:"open_ledger_fee"`
	} `json:"drops"`
}

func parseDrops(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

// EstimateFee 估算交易手续费 (drops)。
// 多签按 (1 + 签名数) 倍计算，AccountDelete 按 owner reserve 计算
func (c *Client) EstimateFee(ctx context.Context, tx txbuilder.Transaction) (string, error) {
	if tx.Type() == txbuilder.TypeAccountDelete {
		r, err := c.GetReserve(ctx)
		if err != nil {
			c.log.Warn("读取储备参数失败，无法估算手续费", zap.Error(err))
			return "", errno.ErrFeeEstimation
		}
		return XRPToDrops(r.PerOwner), nil
	}

	var out feeResult
	if err := c.call(ctx, "fee", nil, &out); err != nil {
		c.log.Warn("估算手续费失败", zap.Error(err))
		return "", errno.ErrFeeEstimation
	}
	fee := parseDrops(out.Drops.OpenLedgerFee)
	if base := parseDrops(out.Drops.BaseFee); base > fee {
		fee = base
	}
	if signers, ok := tx["Signers"].([]any); ok && len(signers) > 0 {
		fee *= int64(1 + len(signers))
	}
	if fee > maxFeeDrops {
		fee = maxFeeDrops
	}
	return strconv.FormatInt(fee, 10), nil
}

// CurrentLedger ledger_current_index
func (c *Client) CurrentLedger(ctx context.Context) (uint32, error) {
	var out struct {
		LedgerCurrentIndex uint32 `json:"ledger_current_index"`
	}
	if err := c.call(ctx, "ledger_current", nil, &out); err != nil {
		return 0, err
	}
	return out.LedgerCurrentIndex, nil
}

// Autofill 补全 Sequence / Fee / LastLedgerSequence，network_id > 1024 时补 NetworkID。
// 返回副本，不修改 tx
func (c *Client) Autofill(ctx context.Context, tx txbuilder.Transaction) (txbuilder.Transaction, error) {
	out := tx.Clone()
	if out.Account() == "" {
		return nil, errno.ErrMalformedTransaction.WithMessage("transaction has no Account")
	}

	var (
		seq, current, networkID uint32
		fee                     string
	)
	_, hasSeq := out["Sequence"]
	_, hasTicket := out["TicketSequence"]
	_, hasLLS := out["LastLedgerSequence"]
	_, hasNetworkID := out["NetworkID"]

	g, gctx := errgroup.WithContext(ctx)
	if !hasSeq && !hasTicket {
		g.Go(func() error {
			info, err := c.AccountInfo(gctx, out.Account())
			if err != nil {
				return err
			}
			seq = info.Sequence
			return nil
		})
	}
	if out.Fee() == "" {
		g.Go(func() error {
			var err error
			fee, err = c.EstimateFee(gctx, tx)
			return err
		})
	}
	if !hasLLS {
		g.Go(func() error {
			var err error
			current, err = c.CurrentLedger(gctx)
			return err
		})
	}
	if !hasNetworkID {
		g.Go(func() error {
			var err error
			networkID, err = c.NetworkID(gctx)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if !hasSeq && !hasTicket {
		out["Sequence"] = seq
	}
	if hasTicket && !hasSeq {
		out["Sequence"] = uint32(0)
	}
	if fee != "" {
		out["Fee"] = fee
	}
	if !hasLLS {
		out["LastLedgerSequence"] = current + LedgerOffset
	}
	if !hasNetworkID && networkID > restrictedNetworkID {
		out["NetworkID"] = networkID
	}
	return out, nil
}

// GetNFTs account_nfts 分页查询
func (c *Client) GetNFTs(ctx context.Context, address string, limit uint32, marker json.RawMessage) (*protocol.NFTPage, error) {
	params := map[string]any{"account": address, "ledger_index": "validated"}
	if limit > 0 {
		params["limit"] = limit
	}
	if len(marker) > 0 && string(marker) != "null" {
		params["marker"] = marker
	}
	var out protocol.NFTPage
	if err := c.call(ctx, "account_nfts", params, &out); err != nil {
		return nil, err
	}
	if out.AccountNFTs == nil {
		out.AccountNFTs = []protocol.NFT{}
	}
	return &out, nil
}

// Signer 在本地完成签名，私钥不进入任何 RPC 请求
type Signer interface {
	SignTransaction(tx txbuilder.Transaction) (*txbuilder.Signed, error)
}

// SubmitResult submit 的初步结果 (未验证)
type SubmitResult struct {
	EngineResult        string `json:"engine_result"`
	EngineResultMessage string `json:"engine_result_message"`
	Accepted            bool   `json:"accepted"`
	TxJSON              struct {
		Hash string `json:"hash"`
	} `json:"tx_json"`
}

func (c *Client) Submit(ctx context.Context, txBlob string) (*SubmitResult, error) {
	var out SubmitResult
	if err := c.call(ctx, "submit", map[string]any{"tx_blob": txBlob}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TxResult 已验证 (或确定失败) 的交易结果
type TxResult struct {
	Hash        string
	Result      string
	Validated   bool
	LedgerIndex uint32
}

func (r *TxResult) Success() bool {
	return r.Validated && r.Result == "tesSUCCESS"
}

type txResponse struct {
	Hash        string `json:"hash"`
	Validated   bool   `json:"validated"`
	LedgerIndex uint32 `json:"ledger_index"`
	Meta        struct {
		TransactionResult string `json:"TransactionResult"`
	} `json:"meta"`
}

// Tx 查询交易
func (c *Client) Tx(ctx context.Context, hash string) (*TxResult, error) {
	var out txResponse
	if err := c.call(ctx, "tx", map[string]any{"transaction": hash}, &out); err != nil {
		return nil, err
	}
	return &TxResult{Hash: hash, Result: out.Meta.TransactionResult, Validated: out.Validated, LedgerIndex: out.LedgerIndex}, nil
}

// ErrLedgerExpired 超过 LastLedgerSequence 仍未验证
var ErrLedgerExpired = errno.ErrSubmissionRejected.WithMessage("The latest ledger sequence passed the transaction's LastLedgerSequence")

// SignAndSubmit autofill + 本地签名 + submit，节点只收到 tx_blob
func (c *Client) SignAndSubmit(ctx context.Context, tx txbuilder.Transaction, signer Signer) (*txbuilder.Signed, *SubmitResult, error) {
	filled, err := c.Autofill(ctx, tx)
	if err != nil {
		return nil, nil, err
	}
	signed, err := signer.SignTransaction(filled)
	if err != nil {
		return nil, nil, err
	}
	res, err := c.Submit(ctx, signed.TxBlob)
	if err != nil {
		return nil, nil, err
	}
	return signed, res, nil
}

// SubmitAndWait 提交并轮询 tx 直到验证或超过 LastLedgerSequence。
// tem/tef 这类不会进入账本的初步结果直接返回
func (c *Client) SubmitAndWait(ctx context.Context, tx txbuilder.Transaction, signer Signer) (*TxResult, error) {
	signed, res, err := c.SignAndSubmit(ctx, tx, signer)
	if err != nil {
		return nil, err
	}
	hash := signed.Hash
	if strings.HasPrefix(res.EngineResult, "tem") || strings.HasPrefix(res.EngineResult, "tef") {
		return &TxResult{Hash: hash, Result: res.EngineResult}, nil
	}

	lastLedger, _ := signed.Transaction.Uint("LastLedgerSequence")
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		result, err := c.Tx(ctx, hash)
		if err == nil && result.Validated {
			return result, nil
		}
		var rpcErr *RPCError
		if err != nil && !(errors.As(err, &rpcErr) && rpcErr.Code == "txnNotFound") {
			c.log.Warn("查询交易失败，继续轮询", zap.String("hash", hash), zap.Error(err))
		}

		current, err := c.CurrentLedger(ctx)
		if err == nil && lastLedger > 0 && current > lastLedger {
			return nil, ErrLedgerExpired
		}
	}
}
