// Package txbuilder 把页面请求映射成 ledger 原生交易 JSON，不签名也不提交
package txbuilder

import (
	"encoding/json"
	"strconv"
)

// 交易类型
const (
	TypePayment            = "Payment"
	TypeTrustSet           = "TrustSet"
	TypeNFTokenMint        = "NFTokenMint"
	TypeNFTokenCreateOffer = "NFTokenCreateOffer"
	TypeNFTokenCancelOffer = "NFTokenCancelOffer"
	TypeNFTokenAcceptOffer = "NFTokenAcceptOffer"
	TypeNFTokenBurn        = "NFTokenBurn"
	TypeSetRegularKey      = "SetRegularKey"
	TypeAccountSet         = "AccountSet"
	TypeOfferCreate        = "OfferCreate"
	TypeOfferCancel        = "OfferCancel"
	TypeAccountDelete      = "AccountDelete"
)

// Transaction ledger 原生交易，字段名与 rippled JSON 一致 (PascalCase)
type Transaction map[string]any

func (t Transaction) Type() string {
	s, _ := t["TransactionType"].(string)
	return s
}

func (t Transaction) Account() string {
	s, _ := t["Account"].(string)
	return s
}

// Fee 显式给出的手续费 (drops)，没有时返回 ""
func (t Transaction) Fee() string {
	switch v := t["Fee"].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

// Uint 读取数值字段，兼容 json.Number / float64 / 整数
func (t Transaction) Uint(key string) (uint32, bool) {
	switch v := t[key].(type) {
	case uint32:
		return v, true
	case int:
		return uint32(v), v >= 0
	case int64:
		return uint32(v), v >= 0
	case uint64:
		return uint32(v), true
	case float64:
		return uint32(v), v >= 0
	case json.Number:
		n, err := strconv.ParseUint(v.String(), 10, 32)
		return uint32(n), err == nil
	case string:
		n, err := strconv.ParseUint(v, 10, 32)
		return uint32(n), err == nil
	}
	return 0, false
}

func (t Transaction) NetworkID() (uint32, bool) {
	return t.Uint("NetworkID")
}

// SetDefault 字段不存在时才写入
func (t Transaction) SetDefault(key string, v any) {
	if _, ok := t[key]; !ok {
		t[key] = v
	}
}

// Clone 浅拷贝顶层字段
func (t Transaction) Clone() Transaction {
	cp := make(Transaction, len(t))
	for k, v := range t {
		cp[k] = v
	}
	return cp
}

// WithAccount 返回 Account 为空时补上默认地址的副本
func (t Transaction) WithAccount(account string) Transaction {
	cp := t.Clone()
	if cp.Account() == "" {
		cp["Account"] = account
	}
	return cp
}

func (t Transaction) JSON() (json.RawMessage, error) {
	return json.Marshal(t)
}
