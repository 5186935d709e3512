package crypto_util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAESGCM(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef") // 32 字节用于 AES-256
	plaintext := []byte(`[{"name":"main","publicAddress":"rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"}]`)

	ciphertext, err := EncryptAESGCM(key, plaintext)
	require.NoError(t, err)
	assert.Len(t, ciphertext, GCMNonceSize+len(plaintext)+16)

	decrypted, err := DecryptAESGCM(key, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestAESGCM_Tampered(t *testing.T) {
	key := []byte("0123456789abcdef")
	ciphertext, err := EncryptAESGCM(key, []byte("hello"))
	require.NoError(t, err)

	ciphertext[len(ciphertext)-1] ^= 0x01
	_, err = DecryptAESGCM(key, ciphertext)
	assert.Error(t, err)
}

func TestAESGCM_InvalidKey(t *testing.T) {
	_, err := EncryptAESGCM([]byte("shortkey"), []byte("test"))
	assert.Error(t, err, "期望因密钥长度无效而报错")

	_, err = DecryptAESGCM([]byte("0123456789abcdef"), []byte("short"))
	assert.Error(t, err)
}
