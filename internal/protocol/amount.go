package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Amount 是 XRP (drops 字符串) 或发行货币对象二选一
type Amount struct {
	Drops  string
	Issued *IssuedAmount
}

// IssuedAmount 非 XRP 货币金额
type IssuedAmount struct {
	Currency string `json:"currency"`
	Issuer   string `json:"issuer,omitempty"`
	Value    string `json:"value"`
}

// XRP 以 drops 表示的金额
func XRP(drops string) Amount {
	return Amount{Drops: drops}
}

// Issued 发行货币金额
func Issued(currency, issuer, value string) Amount {
	return Amount{Issued: &IssuedAmount{Currency: currency, Issuer: issuer, Value: value}}
}

func (a Amount) IsXRP() bool {
	return a.Issued == nil
}

func (a Amount) IsZero() bool {
	return a.Issued == nil && a.Drops == ""
}

// LedgerValue 返回放进交易 JSON 里的形式 (string 或 map)
func (a Amount) LedgerValue() any {
	if a.Issued != nil {
		m := map[string]any{
			"currency": a.Issued.Currency,
			"value":    a.Issued.Value,
		}
		if a.Issued.Issuer != "" {
			m["issuer"] = a.Issued.Issuer
		}
		return m
	}
	return a.Drops
}

func (a Amount) MarshalJSON() ([]byte, error) {
	if a.Issued != nil {
		return json.Marshal(a.Issued)
	}
	return json.Marshal(a.Drops)
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = Amount{}
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = XRP(s)
	case '{':
		var issued IssuedAmount
		if err := json.Unmarshal(data, &issued); err != nil {
			return err
		}
		if issued.Currency == "" || issued.Value == "" {
			return fmt.Errorf("protocol: issued amount needs currency and value")
		}
		*a = Amount{Issued: &issued}
	default:
		// 部分 dApp 会直接传数字形式的 drops
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("protocol: invalid amount %s", data)
		}
		*a = XRP(n.String())
	}
	return nil
}
