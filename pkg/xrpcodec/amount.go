package xrpcodec

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"

	"gemwallet/pkg/xrpkey"

	"github.com/shopspring/decimal"
)

const (
	amountIssuedBit   = uint64(1) << 63
	amountPositiveBit = uint64(1) << 62

	maxDrops = 100_000_000_000_000_000

	minExponent = -96
	maxExponent = 80
	// 指数编码偏移
	exponentBias = 97
)

var (
	minMantissa = big.NewInt(1_000_000_000_000_000)
	maxMantissa = big.NewInt(9_999_999_999_999_999)
	ten         = big.NewInt(10)
)

func encodeAmount(v any) ([]byte, error) {
	switch a := v.(type) {
	case string:
		return encodeDrops(a)
	case json.Number:
		return encodeDrops(a.String())
	case map[string]any:
		return encodeIssued(a)
	}
	return nil, fmt.Errorf("%w: unsupported amount %T", ErrInvalidValue, v)
}

// encodeDrops XRP 金额：最高位 0，次高位为正号，低 62 位为 drops
func encodeDrops(s string) ([]byte, error) {
	drops, err := strconv.ParseUint(s, 10, 64)
	if err != nil || drops > maxDrops {
		return nil, fmt.Errorf("%w: XRP amount %q", ErrInvalidValue, s)
	}
	return binary.BigEndian.AppendUint64(nil, amountPositiveBit|drops), nil
}

// encodeIssued 发行货币：8 字节数值 + 20 字节货币 + 20 字节发行方
func encodeIssued(m map[string]any) ([]byte, error) {
	var value string
	switch v := m["value"].(type) {
	case string:
		value = v
	case json.Number:
		value = v.String()
	default:
		return nil, fmt.Errorf("%w: issued amount needs a string value", ErrInvalidValue)
	}
	currency, _ := m["currency"].(string)
	issuer, _ := m["issuer"].(string)

	n, err := IssuedValue(value)
	if err != nil {
		return nil, err
	}
	cur, err := encodeCurrency(currency, false)
	if err != nil {
		return nil, err
	}
	id, err := xrpkey.DecodeAddress(issuer)
	if err != nil {
		return nil, fmt.Errorf("%w: issuer %q", ErrInvalidValue, issuer)
	}

	out := make([]byte, 0, 48)
	out = binary.BigEndian.AppendUint64(out, n)
	out = append(out, cur...)
	return append(out, id...), nil
}

// IssuedValue 发行货币数值的 64 位编码。
// 尾数规范化到 [1e15, 1e16)，超过 16 位有效数字返回错误
func IssuedValue(s string) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: amount value %q", ErrInvalidValue, s)
	}
	if d.IsZero() {
		return amountIssuedBit, nil
	}

	mantissa := new(big.Int).Abs(d.Coefficient())
	exp := int(d.Exponent())
	for mantissa.Cmp(minMantissa) < 0 {
		mantissa.Mul(mantissa, ten)
		exp--
	}
	rem := new(big.Int)
	for mantissa.Cmp(maxMantissa) > 0 {
		mantissa.QuoRem(mantissa, ten, rem)
		if rem.Sign() != 0 {
			return 0, fmt.Errorf("%w: amount %q has more than 16 significant digits", ErrInvalidValue, s)
		}
		exp++
	}
	if exp < minExponent || exp > maxExponent {
		return 0, fmt.Errorf("%w: amount %q out of range", ErrInvalidValue, s)
	}

	out := amountIssuedBit | uint64(exp+exponentBias)<<54 | mantissa.Uint64()
	if d.Sign() > 0 {
		out |= amountPositiveBit
	}
	return out, nil
}

// encodeCurrency 3 字符标准代码放在第 12~14 字节，40 位 hex 原样解码。
// "XRP" 只允许出现在路径里
func encodeCurrency(code string, allowXRP bool) ([]byte, error) {
	out := make([]byte, 20)
	switch {
	case code == "XRP":
		if !allowXRP {
			return nil, fmt.Errorf("%w: XRP is not an issued currency", ErrInvalidValue)
		}
		return out, nil
	case len(code) == 3:
		copy(out[12:], code)
		return out, nil
	case len(code) == 40:
		b, err := hex.DecodeString(code)
		if err != nil {
			return nil, fmt.Errorf("%w: currency %q", ErrInvalidValue, code)
		}
		return b, nil
	}
	return nil, fmt.Errorf("%w: currency %q", ErrInvalidValue, code)
}
