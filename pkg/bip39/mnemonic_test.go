package bip39

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateMnemonic(t *testing.T) {
	service := NewMnemonicService()

	for _, tc := range []struct {
		bits  int
		words int
	}{
		{128, 12},
		{256, 24},
	} {
		mnemonic, err := service.GenerateMnemonic(tc.bits)
		require.NoError(t, err)
		assert.Len(t, strings.Fields(mnemonic), tc.words)
		assert.True(t, service.ValidateMnemonic(mnemonic))
		assert.True(t, service.IsMnemonic(mnemonic))
	}

	_, err := service.GenerateMnemonic(100)
	assert.Error(t, err)
}

func TestMnemonicToSeed(t *testing.T) {
	service := NewMnemonicService()

	// BIP-39 测试向量
	mnemonic := "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	expectedSeedHex := "5eb00bbddcf069084889a8ab9155568165f5c453ccb85e70811aaed6f6da5fc19a5ac40b389cd370d086206dec8aa6c43daea6690f20ad3d8d48b2d2ce9e38e4"

	seed, err := service.MnemonicToSeed(mnemonic, "")
	require.NoError(t, err)
	assert.Equal(t, expectedSeedHex, hex.EncodeToString(seed))

	// 大小写和多余空白不影响结果
	messy := "  ABANDON abandon abandon abandon abandon abandon\nabandon abandon abandon abandon abandon about "
	seed2, err := service.MnemonicToSeed(messy, "")
	require.NoError(t, err)
	assert.Equal(t, seed, seed2)
}

func TestValidateMnemonic_Invalid(t *testing.T) {
	service := NewMnemonicService()

	invalidMnemonic := "hello world invalid mnemonic phrase designed to fail validation check"
	assert.False(t, service.ValidateMnemonic(invalidMnemonic))

	_, err := service.MnemonicToSeed(invalidMnemonic, "")
	assert.Error(t, err)

	assert.False(t, service.IsMnemonic("snoPBrXtMeMyMHUVTgbuqAfg1SUTb"))
}
