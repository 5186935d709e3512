package wallet

import (
	"context"
	"errors"
	"testing"

	"gemwallet/internal/storage"
	"gemwallet/internal/txbuilder"
	"gemwallet/pkg/errno"
	"gemwallet/pkg/keystore"
	"gemwallet/pkg/xrpkey"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	genesisSeed    = "snoPBrXtMeMyMHUVTgbuqAfg1SUTb"
	genesisAddress = "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"
	mnemonic       = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
)

func newUnlocked(t *testing.T, kv storage.Store) *Provider {
	t.Helper()
	p := NewProvider(kv, keystore.LightScryptN, nil)
	require.NoError(t, p.Unlock(context.Background(), "correct horse"))
	return p
}

func TestProvider_LockedByDefault(t *testing.T) {
	p := NewProvider(storage.NewMemoryStore(), keystore.LightScryptN, nil)
	_, err := p.Current()
	assert.ErrorIs(t, err, errno.ErrWalletLocked)
	_, err = p.Import(context.Background(), "x", genesisSeed)
	assert.ErrorIs(t, err, errno.ErrWalletLocked)
	assert.ErrorIs(t, p.Unlock(context.Background(), ""), errno.ErrInvalidPassword)
}

func TestProvider_ImportPersistsEncrypted(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	p := newUnlocked(t, kv)

	_, err := p.Current()
	assert.ErrorIs(t, err, errno.ErrWalletNotFound)

	s, err := p.Import(ctx, "Genesis", genesisSeed)
	require.NoError(t, err)
	assert.Equal(t, genesisAddress, s.Address)
	assert.True(t, s.Selected)
	assert.False(t, s.HasMnemonic)

	raw, err := kv.Get(ctx, storage.KeyWallets)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), genesisSeed, "落盘数据是密文")

	// 重新解锁
	again := NewProvider(kv, keystore.LightScryptN, nil)
	assert.ErrorIs(t, again.Unlock(ctx, "wrong"), errno.ErrInvalidPassword)
	require.NoError(t, again.Unlock(ctx, "correct horse"))
	acct, err := again.Current()
	require.NoError(t, err)
	assert.Equal(t, genesisAddress, acct.Address())
	secret, err := again.CurrentSecret()
	require.NoError(t, err)
	assert.Equal(t, genesisSeed, secret)
	require.NoError(t, xrpkey.VerifyMessage(acct.PublicKey(), "hello", acct.SignMessage("hello")))

	_, err = again.Import(ctx, "dup", genesisSeed)
	assert.ErrorIs(t, err, errno.ErrValidation)
}

func TestProvider_MnemonicSignsTransactions(t *testing.T) {
	p := newUnlocked(t, storage.NewMemoryStore())
	s, err := p.Import(context.Background(), "", mnemonic)
	require.NoError(t, err)
	assert.True(t, s.HasMnemonic)
	assert.Equal(t, "Wallet 1", s.Name)

	acct, err := p.Current()
	require.NoError(t, err)
	signed, err := acct.SignTransaction(txbuilder.Transaction{
		"TransactionType": txbuilder.TypeAccountSet,
		"Account":         acct.Address(),
		"Fee":             "12",
		"Sequence":        uint32(1),
	})
	require.NoError(t, err)
	assert.Equal(t, acct.PublicKey(), signed.Transaction["SigningPubKey"])
	assert.NotEmpty(t, signed.TxBlob)
	assert.Len(t, signed.Hash, 64)

	secret, err := p.CurrentSecret()
	require.NoError(t, err)
	assert.Equal(t, mnemonic, secret)

	_, err = p.Import(context.Background(), "bad", "not a secret")
	assert.ErrorIs(t, err, errno.ErrInvalidSecret)
}

func TestProvider_RenameRemoveSelect(t *testing.T) {
	ctx := context.Background()
	p := newUnlocked(t, storage.NewMemoryStore())

	_, err := p.Import(ctx, "A", genesisSeed)
	require.NoError(t, err)
	b, err := p.Create(ctx, "B", xrpkey.ED25519)
	require.NoError(t, err)
	assert.Equal(t, xrpkey.ED25519, b.Algorithm)
	c, err := p.Create(ctx, "C", "")
	require.NoError(t, err)

	require.NoError(t, p.Select(ctx, 2))
	acct, err := p.Current()
	require.NoError(t, err)
	assert.Equal(t, c.Address, acct.Address())

	require.NoError(t, p.Rename(ctx, 2, "Savings"))
	assert.ErrorIs(t, p.Rename(ctx, 2, "  "), errno.ErrValidation)
	assert.ErrorIs(t, p.Rename(ctx, 9, "x"), errno.ErrWalletNotFound)

	// 删除前面的钱包，当前选择保持不变
	require.NoError(t, p.Remove(ctx, 0))
	acct, err = p.Current()
	require.NoError(t, err)
	assert.Equal(t, "Savings", acct.Name)

	// 删除当前 (最后一个)，选择落到新的最后一个
	require.NoError(t, p.Remove(ctx, 1))
	acct, err = p.Current()
	require.NoError(t, err)
	assert.Equal(t, b.Address, acct.Address())

	list, err := p.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Selected)

	p.Lock()
	assert.False(t, p.Unlocked())
	_, err = p.CurrentSecret()
	assert.ErrorIs(t, err, errno.ErrWalletLocked)
}

type failingStore struct{ storage.Store }

func (failingStore) Set(context.Context, string, []byte) error { return errors.New("disk full") }

func TestProvider_RollbackOnPersistFailure(t *testing.T) {
	p := newUnlocked(t, failingStore{storage.NewMemoryStore()})
	_, err := p.Import(context.Background(), "A", genesisSeed)
	assert.EqualError(t, err, "disk full")
	list, err := p.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}
