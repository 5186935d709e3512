package txbuilder

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gemwallet/internal/protocol"
	"gemwallet/pkg/errno"
)

var (
	ErrInvalidTransaction     = errno.ErrMalformedTransaction.WithMessage("transaction must be a JSON object")
	ErrUnknownTransactionType = errno.ErrMalformedTransaction.WithMessage("unknown TransactionType")
)

// knownTypes XRPL 和 Xahau 支持的交易类型
var knownTypes = map[string]struct{}{}

func init() {
	for _, t := range []string{
		TypePayment, TypeTrustSet, TypeNFTokenMint, TypeNFTokenCreateOffer,
		TypeNFTokenCancelOffer, TypeNFTokenAcceptOffer, TypeNFTokenBurn,
		TypeSetRegularKey, TypeAccountSet, TypeOfferCreate, TypeOfferCancel,
		TypeAccountDelete,
		"AMMBid", "AMMCreate", "AMMDelete", "AMMDeposit", "AMMVote", "AMMWithdraw",
		"CheckCancel", "CheckCash", "CheckCreate", "Clawback", "DepositPreauth",
		"EscrowCancel", "EscrowCreate", "EscrowFinish",
		"PaymentChannelClaim", "PaymentChannelCreate", "PaymentChannelFund",
		"SignerListSet", "TicketCreate",
		// Xahau
		"SetHook", "Invoke", "Import", "ClaimReward",
		"URITokenMint", "URITokenBurn", "URITokenBuy",
		"URITokenCreateSellOffer", "URITokenCancelSellOffer",
	} {
		knownTypes[t] = struct{}{}
	}
}

// IsKnownType 是否为支持的交易类型
func IsKnownType(t string) bool {
	_, ok := knownTypes[t]
	return ok
}

// Parse 解析页面提交的原始交易 JSON。
// 数字保持 json.Number，金额里的货币代码和命名 flags 会被规范化
func Parse(raw json.RawMessage) (Transaction, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, ErrInvalidTransaction
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tx Transaction
	if err := dec.Decode(&tx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTransaction, err)
	}
	if !IsKnownType(tx.Type()) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransactionType, tx.Type())
	}
	if err := normalizeAmounts(tx); err != nil {
		return nil, err
	}
	if named, ok := tx["Flags"].(map[string]any); ok {
		m := make(map[string]bool, len(named))
		for k, v := range named {
			b, isBool := v.(bool)
			if !isBool {
				return nil, fmt.Errorf("txbuilder: flag %q must be boolean", k)
			}
			m[k] = b
		}
		f := protocol.Named(m)
		mask, _, err := NormalizeFlags(tx.Type(), &f)
		if err != nil {
			return nil, err
		}
		tx["Flags"] = mask
	}
	return tx, nil
}

// ParseAll 批量解析，返回第一个错误的下标
func ParseAll(raws []json.RawMessage) ([]Transaction, error) {
	txs := make([]Transaction, 0, len(raws))
	for i, raw := range raws {
		tx, err := Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}
