// Package xrpcodec XRPL 交易的二进制编码：字段按规范顺序序列化，
// 提供签名数据和交易哈希。只覆盖钱包会提交的交易字段
package xrpcodec

import (
	"bytes"
	"crypto/sha512"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"gemwallet/pkg/xrpkey"
)

var (
	// 签名数据前缀 "STX\0"
	prefixSigning = []byte{0x53, 0x54, 0x58, 0x00}
	// 交易 ID 前缀 "TXN\0"
	prefixTransactionID = []byte{0x54, 0x58, 0x4E, 0x00}
)

var (
	ErrUnsupportedField = errors.New("xrpcodec: unsupported field")
	ErrInvalidValue     = errors.New("xrpcodec: invalid value")
)

// Encode 完整序列化，包含 TxnSignature 和 Signers
func Encode(tx map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeObject(&buf, tx, false); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeForSigning 单签的签名数据：前缀 + 去掉非签名字段后的序列化结果
func EncodeForSigning(tx map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(prefixSigning)
	if err := encodeObject(&buf, tx, true); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// TransactionID 已签名交易 blob 的哈希，大写 hex
func TransactionID(blob []byte) string {
	data := make([]byte, 0, len(prefixTransactionID)+len(blob))
	data = append(append(data, prefixTransactionID...), blob...)
	sum := sha512.Sum512(data)
	return strings.ToUpper(hex.EncodeToString(sum[:32]))
}

func encodeObject(buf *bytes.Buffer, obj map[string]any, signingOnly bool) error {
	present := make([]Field, 0, len(obj))
	for name := range obj {
		f, ok := fields[name]
		if !ok {
			// hash / validated 这类 rippled 附加的小写字段不序列化
			if name != "" && unicode.IsLower(rune(name[0])) {
				continue
			}
			return fmt.Errorf("%w %q", ErrUnsupportedField, name)
		}
		if signingOnly && !f.Signing {
			continue
		}
		present = append(present, f)
	}
	sort.Slice(present, func(i, j int) bool {
		return present[i].sortKey() < present[j].sortKey()
	})

	for _, f := range present {
		if err := encodeField(buf, f, obj[f.Name], signingOnly); err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}
	}
	return nil
}

func encodeField(buf *bytes.Buffer, f Field, v any, signingOnly bool) error {
	var (
		payload []byte
		err     error
	)
	switch f.Type {
	case typeSTObject:
		m, ok := v.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: expected object, got %T", ErrInvalidValue, v)
		}
		buf.Write(f.header())
		if err := encodeObject(buf, m, signingOnly); err != nil {
			return err
		}
		buf.WriteByte(objectEndMarker)
		return nil

	case typeSTArray:
		items, err := toSlice(v)
		if err != nil {
			return err
		}
		buf.Write(f.header())
		for i, item := range items {
			wrapper, ok := item.(map[string]any)
			if !ok || len(wrapper) != 1 {
				return fmt.Errorf("%w: element %d must be an object with a single key", ErrInvalidValue, i)
			}
			for name, inner := range wrapper {
				innerField, ok := fields[name]
				if !ok || innerField.Type != typeSTObject {
					return fmt.Errorf("%w %q", ErrUnsupportedField, name)
				}
				if err := encodeField(buf, innerField, inner, signingOnly); err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}
			}
		}
		buf.WriteByte(arrayEndMarker)
		return nil

	case typeUInt8:
		payload, err = encodeUint(v, 8)
	case typeUInt16:
		if f.Name == "TransactionType" {
			payload, err = encodeTransactionType(v)
		} else {
			payload, err = encodeUint(v, 16)
		}
	case typeUInt32:
		payload, err = encodeUint(v, 32)
	case typeUInt64:
		payload, err = encodeUint64(v)
	case typeHash128:
		payload, err = decodeHash(v, 16)
	case typeHash160:
		payload, err = decodeHash(v, 20)
	case typeHash256:
		payload, err = decodeHash(v, 32)
	case typeAmount:
		payload, err = encodeAmount(v)
	case typeBlob:
		payload, err = decodeBlob(v)
	case typeAccountID:
		payload, err = encodeAccount(v)
	case typeVector256:
		payload, err = encodeVector256(v)
	case typePathSet:
		payload, err = encodePathSet(v)
	default:
		return fmt.Errorf("%w %q", ErrUnsupportedField, f.Name)
	}
	if err != nil {
		return err
	}

	buf.Write(f.header())
	if f.vl() {
		prefix, err := encodeVL(len(payload))
		if err != nil {
			return err
		}
		buf.Write(prefix)
	}
	buf.Write(payload)
	return nil
}

// encodeVL 变长字段的长度前缀 (1~3 字节)
func encodeVL(n int) ([]byte, error) {
	switch {
	case n <= 192:
		return []byte{byte(n)}, nil
	case n <= 12480:
		n -= 193
		return []byte{byte(193 + n>>8), byte(n)}, nil
	case n <= 918744:
		n -= 12481
		return []byte{byte(241 + n>>16), byte(n >> 8), byte(n)}, nil
	}
	return nil, fmt.Errorf("%w: %d bytes exceeds the variable length limit", ErrInvalidValue, n)
}

func toSlice(v any) ([]any, error) {
	switch s := v.(type) {
	case []any:
		return s, nil
	case []map[string]any:
		out := make([]any, len(s))
		for i := range s {
			out[i] = s[i]
		}
		return out, nil
	case []string:
		out := make([]any, len(s))
		for i := range s {
			out[i] = s[i]
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: expected array, got %T", ErrInvalidValue, v)
}

func toUint64(v any) (uint64, error) {
	switch n := v.(type) {
	case uint8:
		return uint64(n), nil
	case uint16:
		return uint64(n), nil
	case uint32:
		return uint64(n), nil
	case uint64:
		return n, nil
	case uint:
		return uint64(n), nil
	case int:
		if n >= 0 {
			return uint64(n), nil
		}
	case int32:
		if n >= 0 {
			return uint64(n), nil
		}
	case int64:
		if n >= 0 {
			return uint64(n), nil
		}
	case float64:
		if n >= 0 && n == math.Trunc(n) && n <= math.MaxUint32 {
			return uint64(n), nil
		}
	case json.Number:
		return strconv.ParseUint(n.String(), 10, 64)
	case string:
		return strconv.ParseUint(n, 10, 64)
	}
	return 0, fmt.Errorf("%w: %v is not an unsigned integer", ErrInvalidValue, v)
}

func encodeUint(v any, bits int) ([]byte, error) {
	n, err := toUint64(v)
	if err != nil {
		return nil, err
	}
	if n >= 1<<bits {
		return nil, fmt.Errorf("%w: %d overflows UInt%d", ErrInvalidValue, n, bits)
	}
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, n)
	return out[8-bits/8:], nil
}

// encodeUint64 JSON 里 UInt64 按 16 位 hex 字符串表示
func encodeUint64(v any) ([]byte, error) {
	if s, ok := v.(string); ok {
		n, err := strconv.ParseUint(s, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: UInt64 %q", ErrInvalidValue, s)
		}
		return binary.BigEndian.AppendUint64(nil, n), nil
	}
	n, err := toUint64(v)
	if err != nil {
		return nil, err
	}
	return binary.BigEndian.AppendUint64(nil, n), nil
}

func encodeTransactionType(v any) ([]byte, error) {
	name, ok := v.(string)
	if !ok {
		return encodeUint(v, 16)
	}
	code, ok := TransactionTypeCode(name)
	if !ok {
		return nil, fmt.Errorf("%w: transaction type %q", ErrUnsupportedField, name)
	}
	return binary.BigEndian.AppendUint16(nil, code), nil
}

func decodeHash(v any, size int) ([]byte, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("%w: expected hex string, got %T", ErrInvalidValue, v)
	}
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != size {
		return nil, fmt.Errorf("%w: expected %d byte hash", ErrInvalidValue, size)
	}
	return b, nil
}

func decodeBlob(v any) ([]byte, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("%w: expected hex string, got %T", ErrInvalidValue, v)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: blob is not hex", ErrInvalidValue)
	}
	return b, nil
}

func encodeAccount(v any) ([]byte, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("%w: expected address, got %T", ErrInvalidValue, v)
	}
	id, err := xrpkey.DecodeAddress(s)
	if err != nil {
		return nil, fmt.Errorf("%w: address %q", ErrInvalidValue, s)
	}
	return id, nil
}

func encodeVector256(v any) ([]byte, error) {
	items, err := toSlice(v)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 32*len(items))
	for _, item := range items {
		h, err := decodeHash(item, 32)
		if err != nil {
			return nil, err
		}
		out = append(out, h...)
	}
	return out, nil
}

// 路径步骤类型位
const (
	pathAccount  = 0x01
	pathCurrency = 0x10
	pathIssuer   = 0x20

	pathSeparator = 0xFF
	pathSetEnd    = 0x00
)

func encodePathSet(v any) ([]byte, error) {
	paths, err := toSlice(v)
	if err != nil {
		return nil, err
	}
	var out []byte
	for i, p := range paths {
		if i > 0 {
			out = append(out, pathSeparator)
		}
		steps, err := toSlice(p)
		if err != nil {
			return nil, err
		}
		for _, s := range steps {
			step, ok := s.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: path step must be an object", ErrInvalidValue)
			}
			account, hasAccount := step["account"].(string)
			currency, hasCurrency := step["currency"].(string)
			issuer, hasIssuer := step["issuer"].(string)

			var kind byte
			if hasAccount {
				kind |= pathAccount
			}
			if hasCurrency {
				kind |= pathCurrency
			}
			if hasIssuer {
				kind |= pathIssuer
			}
			out = append(out, kind)
			if hasAccount {
				id, err := encodeAccount(account)
				if err != nil {
					return nil, err
				}
				out = append(out, id...)
			}
			if hasCurrency {
				c, err := encodeCurrency(currency, true)
				if err != nil {
					return nil, err
				}
				out = append(out, c...)
			}
			if hasIssuer {
				id, err := encodeAccount(issuer)
				if err != nil {
					return nil, err
				}
				out = append(out, id...)
			}
		}
	}
	return append(out, pathSetEnd), nil
}
