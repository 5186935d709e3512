package safe_random

import (
	"bytes"
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRandomBytes(t *testing.T) {
	n := 32
	b, err := GenerateRandomBytes(n)
	require.NoError(t, err)
	assert.Len(t, b, n)
	assert.NotEqual(t, make([]byte, n), b, "GenerateRandomBytes 返回了全零数据")
}

func TestGenerateRandomHexString(t *testing.T) {
	s, err := GenerateRandomHexString(16)
	require.NoError(t, err)

	decoded, err := hex.DecodeString(s)
	require.NoError(t, err)
	assert.Len(t, decoded, 16)
}

func TestGenerateRandomInt(t *testing.T) {
	max := big.NewInt(100)
	for i := 0; i < 100; i++ {
		n, err := GenerateRandomInt(max)
		require.NoError(t, err)
		assert.True(t, n.Sign() >= 0 && n.Cmp(max) < 0, "GenerateRandomInt 返回值 %v 超出范围", n)
	}
}

func TestFloat64Range(t *testing.T) {
	zero, err := Float64FromReader(bytes.NewReader(make([]byte, 8)))
	require.NoError(t, err)
	assert.Equal(t, 0.0, zero)

	max, err := Float64FromReader(bytes.NewReader(bytes.Repeat([]byte{0xff}, 8)))
	require.NoError(t, err)
	assert.Less(t, max, 1.0)

	for i := 0; i < 100; i++ {
		f, err := Float64()
		require.NoError(t, err)
		assert.True(t, f >= 0 && f < 1)
	}
}

func TestFloat64ShortReader(t *testing.T) {
	_, err := Float64FromReader(bytes.NewReader([]byte{1, 2}))
	assert.Error(t, err)
}
