package bip32

import (
	"encoding/hex"
	"strings"
	"testing"

	"gemwallet/pkg/bip39"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMasterKeyFromSeed(t *testing.T) {
	mnemonicService := bip39.NewMnemonicService()
	mnemonic, err := mnemonicService.GenerateMnemonic(128)
	require.NoError(t, err)
	seed, err := mnemonicService.MnemonicToSeed(mnemonic, "")
	require.NoError(t, err)

	wallet, err := NewMasterKeyFromSeed(seed)
	require.NoError(t, err)
	require.NotNil(t, wallet.MasterKey())
	assert.True(t, wallet.MasterKey().IsPrivate())

	_, err = NewMasterKeyFromSeed([]byte("short"))
	assert.ErrorIs(t, err, ErrInvalidSeed)
}

func TestDerivePath(t *testing.T) {
	// BIP-32 测试向量 1 的种子
	seed, _ := hex.DecodeString("000102030405060708090a0b0c0d0e0f")

	wallet, err := NewMasterKeyFromSeed(seed)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(wallet.MasterKey().String(), "xprv"))

	child, err := wallet.DerivePath("m/0'")
	require.NoError(t, err)
	assert.NotEqual(t, wallet.MasterKey().String(), child.String())

	// h 后缀与 ' 等价
	same, err := wallet.DerivePath("m/0h")
	require.NoError(t, err)
	assert.Equal(t, child.String(), same.String())

	pub, err := child.Neuter()
	require.NoError(t, err)
	assert.False(t, pub.IsPrivate())

	for _, bad := range []string{"44'/0'", "m/abc", "m/2147483648'"} {
		_, err := wallet.DerivePath(bad)
		assert.ErrorIs(t, err, ErrInvalidPath, bad)
	}
}

func TestDeriveXRPLAccount(t *testing.T) {
	seed, err := bip39.NewMnemonicService().MnemonicToSeed(
		"abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about", "")
	require.NoError(t, err)

	k1, err := DeriveXRPLAccount(seed)
	require.NoError(t, err)
	k2, err := DeriveXRPLAccount(seed)
	require.NoError(t, err)
	assert.Equal(t, k1.Serialize(), k2.Serialize())

	w, err := NewMasterKeyFromSeed(seed)
	require.NoError(t, err)
	other, err := w.DerivePath("m/44'/144'/0'/0/1")
	require.NoError(t, err)
	otherPriv, err := other.ECPrivKey()
	require.NoError(t, err)
	assert.NotEqual(t, k1.Serialize(), otherPriv.Serialize())
}
