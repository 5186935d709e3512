package xrpkey

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha512"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"gemwallet/pkg/bip32"
	"gemwallet/pkg/bip39"
	"gemwallet/pkg/safe_random"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
)

// Algorithm 密钥算法
type Algorithm string

const (
	Secp256k1 Algorithm = "secp256k1"
	ED25519   Algorithm = "ed25519"
)

const ed25519Prefix = 0xED

var ErrInvalidSignature = errors.New("xrpkey: invalid signature")

// KeyPair 持有一个账户的私钥，只在钱包进程内存在
type KeyPair struct {
	algo      Algorithm
	secp      *btcec.PrivateKey
	ed        ed25519.PrivateKey
	publicKey []byte
}

// GenerateSeed 生成新的 family seed
func GenerateSeed(algo Algorithm) (string, error) {
	entropy, err := safe_random.GenerateRandomBytes(16)
	if err != nil {
		return "", err
	}
	return EncodeSeed(entropy, algo)
}

// FromSeed 从 family seed 派生账户密钥
func FromSeed(seed string) (*KeyPair, error) {
	entropy, algo, err := DecodeSeed(strings.TrimSpace(seed))
	if err != nil {
		return nil, err
	}
	return FromEntropy(entropy, algo)
}

// FromEntropy 从 16 字节熵派生账户密钥
func FromEntropy(entropy []byte, algo Algorithm) (*KeyPair, error) {
	switch algo {
	case ED25519:
		priv := ed25519.NewKeyFromSeed(sha512Half(entropy))
		pub := priv.Public().(ed25519.PublicKey)
		return &KeyPair{
			algo:      ED25519,
			ed:        priv,
			publicKey: append([]byte{ed25519Prefix}, pub...),
		}, nil
	case Secp256k1, "":
		priv, err := deriveSecp256k1(entropy)
		if err != nil {
			return nil, err
		}
		return fromSecp256k1(priv), nil
	}
	return nil, fmt.Errorf("xrpkey: unknown algorithm %q", algo)
}

// FromMnemonic 按 BIP-44 (m/44'/144'/0'/0/0) 从助记词派生 secp256k1 账户密钥
func FromMnemonic(mnemonic string) (*KeyPair, error) {
	seed, err := bip39.NewMnemonicService().MnemonicToSeed(mnemonic, "")
	if err != nil {
		return nil, err
	}
	priv, err := bip32.DeriveXRPLAccount(seed)
	if err != nil {
		return nil, err
	}
	return fromSecp256k1(priv), nil
}

// FromSecret 接受 family seed 或助记词
func FromSecret(secret string) (*KeyPair, error) {
	if bip39.NewMnemonicService().IsMnemonic(secret) {
		return FromMnemonic(secret)
	}
	return FromSeed(secret)
}

func fromSecp256k1(priv *btcec.PrivateKey) *KeyPair {
	return &KeyPair{
		algo:      Secp256k1,
		secp:      priv,
		publicKey: priv.PubKey().SerializeCompressed(),
	}
}

// deriveSecp256k1 XRPL family seed 的密钥派生:
// root = scalar(seed)，account = scalar(rootPub || 0) + root  (mod n)
func deriveSecp256k1(entropy []byte) (*btcec.PrivateKey, error) {
	n := btcec.S256().N

	root, err := deriveScalar(entropy, nil)
	if err != nil {
		return nil, err
	}
	rootPriv, _ := btcec.PrivKeyFromBytes(scalarBytes(root))
	rootPub := rootPriv.PubKey().SerializeCompressed()

	var accountIndex uint32
	inter, err := deriveScalar(rootPub, &accountIndex)
	if err != nil {
		return nil, err
	}

	k := new(big.Int).Add(inter, root)
	k.Mod(k, n)
	priv, _ := btcec.PrivKeyFromBytes(scalarBytes(k))
	return priv, nil
}

func deriveScalar(seed []byte, discriminator *uint32) (*big.Int, error) {
	n := btcec.S256().N
	buf := make([]byte, 0, len(seed)+8)
	for i := uint32(0); i < 0xffffffff; i++ {
		buf = append(buf[:0], seed...)
		if discriminator != nil {
			buf = binary.BigEndian.AppendUint32(buf, *discriminator)
		}
		buf = binary.BigEndian.AppendUint32(buf, i)

		k := new(big.Int).SetBytes(sha512Half(buf))
		if k.Sign() > 0 && k.Cmp(n) < 0 {
			return k, nil
		}
	}
	return nil, errors.New("xrpkey: impossible to derive a valid scalar")
}

func scalarBytes(k *big.Int) []byte {
	out := make([]byte, 32)
	return k.FillBytes(out)
}

func sha512Half(b []byte) []byte {
	sum := sha512.Sum512(b)
	return sum[:32]
}

// Algorithm 返回密钥算法
func (k *KeyPair) Algorithm() Algorithm {
	return k.algo
}

// PublicKey 返回大写 hex 公钥 (secp256k1 为压缩格式，ed25519 带 ED 前缀)
func (k *KeyPair) PublicKey() string {
	return strings.ToUpper(hex.EncodeToString(k.publicKey))
}

// Address 返回 classic address
func (k *KeyPair) Address() string {
	return AddressFromPublicKey(k.publicKey)
}

// AddressFromPublicKey AccountID = RIPEMD160(SHA256(pub))
func AddressFromPublicKey(pub []byte) string {
	return EncodeAddress(btcutil.Hash160(pub))
}

// Sign 对原始字节签名。
// secp256k1 对 sha512half(data) 做 DER ECDSA (RFC6979, low-S)，ed25519 直接签原文
func (k *KeyPair) Sign(data []byte) []byte {
	if k.algo == ED25519 {
		return ed25519.Sign(k.ed, data)
	}
	return ecdsa.Sign(k.secp, sha512Half(data)).Serialize()
}

// Verify 校验 Sign 产生的签名，publicKeyHex 为 PublicKey() 的格式
func Verify(publicKeyHex string, data []byte, signatureHex string) error {
	pub, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return fmt.Errorf("xrpkey: invalid public key: %w", err)
	}
	sig, err := hex.DecodeString(signatureHex)
	if err != nil {
		return fmt.Errorf("xrpkey: invalid signature hex: %w", err)
	}

	if len(pub) == 33 && pub[0] == ed25519Prefix {
		if !ed25519.Verify(ed25519.PublicKey(pub[1:]), data, sig) {
			return ErrInvalidSignature
		}
		return nil
	}

	pk, err := btcec.ParsePubKey(pub)
	if err != nil {
		return fmt.Errorf("xrpkey: invalid public key: %w", err)
	}
	parsed, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if !parsed.Verify(sha512Half(data), pk) {
		return ErrInvalidSignature
	}
	return nil
}

// SignMessage 对文本消息签名，返回大写 hex
func (k *KeyPair) SignMessage(message string) string {
	return strings.ToUpper(hex.EncodeToString(k.Sign([]byte(message))))
}

// VerifyMessage 校验 SignMessage 产生的签名
func VerifyMessage(publicKeyHex, message, signatureHex string) error {
	return Verify(publicKeyHex, []byte(message), signatureHex)
}

// SameKey 判断两个 KeyPair 是否为同一账户
func SameKey(a, b *KeyPair) bool {
	return a != nil && b != nil && bytes.Equal(a.publicKey, b.publicKey)
}
