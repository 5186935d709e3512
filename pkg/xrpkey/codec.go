package xrpkey

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/base58"
)

// XRPL 的 base58 使用自己的字母表，其余 (checksum = 双 sha256 前 4 字节) 与比特币一致
const rippleAlphabet = "rpshnaf39wBUDNEGHJKLM4PQRST7VWXYZ2bcdeCg65jkm8oFqi1tuvAxyz"
const bitcoinAlphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

var (
	toRipple  = strings.NewReplacer(pairs(bitcoinAlphabet, rippleAlphabet)...)
	toBitcoin = strings.NewReplacer(pairs(rippleAlphabet, bitcoinAlphabet)...)
)

var (
	versionAccountID   = []byte{0x00}
	versionFamilySeed  = []byte{0x21}
	versionED25519Seed = []byte{0x01, 0xE1, 0x4B}
)

var (
	ErrChecksum = errors.New("xrpkey: checksum mismatch")
	ErrVersion  = errors.New("xrpkey: unexpected version prefix")
)

func pairs(from, to string) []string {
	out := make([]string, 0, len(from)*2)
	for i := range from {
		out = append(out, from[i:i+1], to[i:i+1])
	}
	return out
}

func checksum(b []byte) []byte {
	h1 := sha256.Sum256(b)
	h2 := sha256.Sum256(h1[:])
	return h2[:4]
}

// encodeCheck base58check 编码，支持多字节版本前缀 (ed25519 seed 是 3 字节)
func encodeCheck(version, payload []byte) string {
	buf := make([]byte, 0, len(version)+len(payload)+4)
	buf = append(buf, version...)
	buf = append(buf, payload...)
	buf = append(buf, checksum(buf)...)
	return toRipple.Replace(base58.Encode(buf))
}

func decodeCheck(s string, version []byte, payloadLen int) ([]byte, error) {
	if strings.ContainsAny(s, "0OIl") {
		return nil, fmt.Errorf("xrpkey: invalid character in %q", s)
	}
	raw := base58.Decode(toBitcoin.Replace(s))
	if len(raw) != len(version)+payloadLen+4 {
		return nil, ErrVersion
	}
	body, sum := raw[:len(raw)-4], raw[len(raw)-4:]
	if !bytes.Equal(checksum(body), sum) {
		return nil, ErrChecksum
	}
	if !bytes.Equal(body[:len(version)], version) {
		return nil, ErrVersion
	}
	return body[len(version):], nil
}

// EncodeAddress 把 20 字节 AccountID 编码为 r 地址
func EncodeAddress(accountID []byte) string {
	return encodeCheck(versionAccountID, accountID)
}

// DecodeAddress 解析 r 地址，返回 20 字节 AccountID
func DecodeAddress(address string) ([]byte, error) {
	return decodeCheck(address, versionAccountID, 20)
}

// IsValidAddress 校验 classic address (r...)
func IsValidAddress(address string) bool {
	_, err := DecodeAddress(address)
	return err == nil
}

// EncodeSeed 编码 16 字节熵为 family seed
func EncodeSeed(entropy []byte, algo Algorithm) (string, error) {
	if len(entropy) != 16 {
		return "", fmt.Errorf("xrpkey: entropy must be 16 bytes, got %d", len(entropy))
	}
	switch algo {
	case ED25519:
		return encodeCheck(versionED25519Seed, entropy), nil
	case Secp256k1, "":
		return encodeCheck(versionFamilySeed, entropy), nil
	}
	return "", fmt.Errorf("xrpkey: unknown algorithm %q", algo)
}

// DecodeSeed 解析 family seed (s... / sEd...)，返回熵和算法
func DecodeSeed(seed string) ([]byte, Algorithm, error) {
	if entropy, err := decodeCheck(seed, versionED25519Seed, 16); err == nil {
		return entropy, ED25519, nil
	}
	entropy, err := decodeCheck(seed, versionFamilySeed, 16)
	if err != nil {
		return nil, "", fmt.Errorf("xrpkey: invalid seed: %w", err)
	}
	return entropy, Secp256k1, nil
}
