package txbuilder

import (
	"encoding/hex"
	"fmt"
	"strings"

	"gemwallet/internal/protocol"
	"gemwallet/pkg/errno"
)

const currencyHexLen = 40

var ErrCurrencyTooLong = errno.ErrInvalidCurrency.WithMessage("currency code longer than 20 bytes")

func isHex40(s string) bool {
	if len(s) != currencyHexLen {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// EncodeCurrency 超过 3 个字符且不是 40 位 hex 的货币代码，转大写 hex 并右补 0 到 40 位
func EncodeCurrency(code string) (string, error) {
	if len(code) <= 3 || isHex40(code) {
		return code, nil
	}
	if len(code) > currencyHexLen/2 {
		return "", fmt.Errorf("%w: %q", ErrCurrencyTooLong, code)
	}
	h := strings.ToUpper(hex.EncodeToString([]byte(code)))
	return h + strings.Repeat("0", currencyHexLen-len(h)), nil
}

// DecodeCurrency 40 位 hex 代码还原为可读字符串，不是可打印 ASCII 时原样返回
func DecodeCurrency(code string) string {
	if !isHex40(code) {
		return code
	}
	raw, _ := hex.DecodeString(code)
	raw = []byte(strings.TrimRight(string(raw), "\x00"))
	if len(raw) == 0 {
		return code
	}
	for _, b := range raw {
		if b < 0x20 || b > 0x7e {
			return code
		}
	}
	return string(raw)
}

// amountValue 放进交易里的金额，发行货币做代码规范化
func amountValue(a protocol.Amount) (any, error) {
	if a.Issued == nil {
		return a.Drops, nil
	}
	cur, err := EncodeCurrency(a.Issued.Currency)
	if err != nil {
		return nil, err
	}
	n := *a.Issued
	n.Currency = cur
	return protocol.Amount{Issued: &n}.LedgerValue(), nil
}

// amountFields 原始交易里可能出现金额对象的字段
var amountFields = []string{
	"Amount", "SendMax", "DeliverMin", "LimitAmount",
	"TakerGets", "TakerPays", "NFTokenBrokerFee",
}

func normalizeAmounts(tx Transaction) error {
	for _, field := range amountFields {
		m, ok := tx[field].(map[string]any)
		if !ok {
			continue
		}
		cur, ok := m["currency"].(string)
		if !ok {
			continue
		}
		enc, err := EncodeCurrency(cur)
		if err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
		if enc != cur {
			cp := make(map[string]any, len(m))
			for k, v := range m {
				cp[k] = v
			}
			cp["currency"] = enc
			tx[field] = cp
		}
	}
	return nil
}
