// Package wallet 钱包列表的解锁、增删改和当前钱包选择。
// 列表整体加密 (scrypt + AES-256-GCM) 后存放在 storage.KeyWallets 下
package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"gemwallet/internal/storage"
	"gemwallet/internal/txbuilder"
	"gemwallet/pkg/bip39"
	"gemwallet/pkg/errno"
	"gemwallet/pkg/keystore"
	"gemwallet/pkg/xrpkey"

	"go.uber.org/zap"
)

// Wallet 持久化的单个钱包，seed 和 mnemonic 二选一
type Wallet struct {
	Name          string           `json:"name"`
	PublicAddress string           `json:"publicAddress"`
	Seed          string           `json:"seed,omitempty"`
	Mnemonic      string           `json:"mnemonic,omitempty"`
	Algorithm     xrpkey.Algorithm `json:"algorithm"`
}

func (w Wallet) secret() string {
	if w.Mnemonic != "" {
		return w.Mnemonic
	}
	return w.Seed
}

type vault struct {
	Wallets  []Wallet `json:"wallets"`
	Selected int      `json:"selected"`
}

// Summary 对外展示的钱包信息，不含密钥
type Summary struct {
	Index       int              `json:"index"`
	Name        string           `json:"name"`
	Address     string           `json:"address"`
	Algorithm   xrpkey.Algorithm `json:"algorithm"`
	Selected    bool             `json:"selected"`
	HasMnemonic bool             `json:"has_mnemonic"`
}

// Account 当前钱包的签名能力
type Account struct {
	Name string
	key  *xrpkey.KeyPair
}

func (a *Account) Address() string {
	return a.key.Address()
}

func (a *Account) PublicKey() string {
	return a.key.PublicKey()
}

func (a *Account) SignMessage(message string) string {
	return a.key.SignMessage(message)
}

// SignTransaction 用当前钱包的密钥在本地签名，seed 和助记词钱包都可以
func (a *Account) SignTransaction(tx txbuilder.Transaction) (*txbuilder.Signed, error) {
	return txbuilder.Sign(tx, a.key)
}

type Provider struct {
	kv      storage.Store
	scryptN int
	log     *zap.Logger

	mu       sync.Mutex
	unlocked bool
	password string
	vault    vault
	keys     []*xrpkey.KeyPair
}

func NewProvider(kv storage.Store, scryptN int, log *zap.Logger) *Provider {
	if log == nil {
		log = zap.NewNop()
	}
	return &Provider{kv: kv, scryptN: scryptN, log: log}
}

// Unlock 解密钱包列表。首次运行 (没有保存的列表) 时以该密码开始一个空列表
func (p *Provider) Unlock(ctx context.Context, password string) error {
	if password == "" {
		return errno.ErrInvalidPassword
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	raw, err := p.kv.Get(ctx, storage.KeyWallets)
	if errors.Is(err, storage.ErrNotFound) {
		p.password = password
		p.vault = vault{}
		p.keys = nil
		p.unlocked = true
		p.log.Info("未找到钱包数据，初始化空钱包列表")
		return nil
	}
	if err != nil {
		return err
	}

	enc, err := keystore.Unmarshal(raw)
	if err != nil {
		return fmt.Errorf("wallet: decode keystore: %w", err)
	}
	plain, err := keystore.Decrypt(enc, password)
	if errors.Is(err, keystore.ErrMACMismatch) {
		return errno.ErrInvalidPassword
	}
	if err != nil {
		return err
	}
	var v vault
	if err := json.Unmarshal(plain, &v); err != nil {
		return fmt.Errorf("wallet: decode vault: %w", err)
	}
	keys := make([]*xrpkey.KeyPair, len(v.Wallets))
	for i, w := range v.Wallets {
		k, err := xrpkey.FromSecret(w.secret())
		if err != nil {
			return fmt.Errorf("wallet: %q: %w", w.Name, err)
		}
		keys[i] = k
	}

	p.password = password
	p.vault = v
	p.keys = keys
	p.unlocked = true
	p.log.Info("钱包已解锁", zap.Int("wallets", len(v.Wallets)))
	return nil
}

func (p *Provider) Lock() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unlocked = false
	p.password = ""
	p.vault = vault{}
	p.keys = nil
}

func (p *Provider) Unlocked() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.unlocked
}

// persistLocked 每次修改后同步写入加密列表，调用方持有锁
func (p *Provider) persistLocked(ctx context.Context) error {
	plain, err := json.Marshal(p.vault)
	if err != nil {
		return err
	}
	enc, err := keystore.Encrypt(plain, p.password, p.scryptN)
	if err != nil {
		return err
	}
	raw, err := enc.Marshal()
	if err != nil {
		return err
	}
	return p.kv.Set(ctx, storage.KeyWallets, raw)
}

func (p *Provider) checkLocked() error {
	if !p.unlocked {
		return errno.ErrWalletLocked
	}
	return nil
}

func (p *Provider) indexLocked(i int) error {
	if i < 0 || i >= len(p.vault.Wallets) {
		return errno.ErrWalletNotFound
	}
	return nil
}

// mutate 在锁内修改列表，写入失败时回滚内存状态
func (p *Provider) mutate(ctx context.Context, fn func() error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkLocked(); err != nil {
		return err
	}
	prevVault := vault{Wallets: append([]Wallet(nil), p.vault.Wallets...), Selected: p.vault.Selected}
	prevKeys := append([]*xrpkey.KeyPair(nil), p.keys...)
	if err := fn(); err != nil {
		return err
	}
	if err := p.persistLocked(ctx); err != nil {
		p.vault = prevVault
		p.keys = prevKeys
		p.log.Error("钱包数据写入失败", zap.Error(err))
		return err
	}
	return nil
}

func (p *Provider) addLocked(w Wallet, k *xrpkey.KeyPair) (int, error) {
	for _, existing := range p.vault.Wallets {
		if existing.PublicAddress == w.PublicAddress {
			return 0, errno.ErrValidation.WithMessage("wallet already exists: " + w.PublicAddress)
		}
	}
	if strings.TrimSpace(w.Name) == "" {
		w.Name = fmt.Sprintf("Wallet %d", len(p.vault.Wallets)+1)
	}
	p.vault.Wallets = append(p.vault.Wallets, w)
	p.keys = append(p.keys, k)
	idx := len(p.vault.Wallets) - 1
	if idx == 0 {
		p.vault.Selected = 0
	}
	return idx, nil
}

// Create 生成新的 family seed 钱包
func (p *Provider) Create(ctx context.Context, name string, algo xrpkey.Algorithm) (Summary, error) {
	if algo == "" {
		algo = xrpkey.Secp256k1
	}
	seed, err := xrpkey.GenerateSeed(algo)
	if err != nil {
		return Summary{}, err
	}
	return p.Import(ctx, name, seed)
}

// Import 导入 family seed 或助记词
func (p *Provider) Import(ctx context.Context, name, secret string) (Summary, error) {
	secret = strings.TrimSpace(secret)
	k, err := xrpkey.FromSecret(secret)
	if err != nil {
		return Summary{}, errno.ErrInvalidSecret
	}
	w := Wallet{Name: name, PublicAddress: k.Address(), Algorithm: k.Algorithm()}
	if bip39.NewMnemonicService().IsMnemonic(secret) {
		w.Mnemonic = bip39.NewMnemonicService().Normalize(secret)
	} else {
		w.Seed = secret
	}

	var idx int
	err = p.mutate(ctx, func() error {
		var err error
		idx, err = p.addLocked(w, k)
		return err
	})
	if err != nil {
		return Summary{}, err
	}
	return p.summary(idx)
}

func (p *Provider) Rename(ctx context.Context, index int, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errno.ErrValidation.WithMessage("wallet name is required")
	}
	return p.mutate(ctx, func() error {
		if err := p.indexLocked(index); err != nil {
			return err
		}
		p.vault.Wallets[index].Name = name
		return nil
	})
}

// Remove 删除钱包，当前钱包之前的被删时选择下标随之前移
func (p *Provider) Remove(ctx context.Context, index int) error {
	return p.mutate(ctx, func() error {
		if err := p.indexLocked(index); err != nil {
			return err
		}
		p.vault.Wallets = append(p.vault.Wallets[:index:index], p.vault.Wallets[index+1:]...)
		p.keys = append(p.keys[:index:index], p.keys[index+1:]...)
		switch {
		case len(p.vault.Wallets) == 0:
			p.vault.Selected = 0
		case index < p.vault.Selected:
			p.vault.Selected--
		case index == p.vault.Selected && p.vault.Selected >= len(p.vault.Wallets):
			p.vault.Selected = len(p.vault.Wallets) - 1
		}
		return nil
	})
}

func (p *Provider) Select(ctx context.Context, index int) error {
	return p.mutate(ctx, func() error {
		if err := p.indexLocked(index); err != nil {
			return err
		}
		p.vault.Selected = index
		return nil
	})
}

// Current 当前选中的钱包
func (p *Provider) Current() (*Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkLocked(); err != nil {
		return nil, err
	}
	if len(p.vault.Wallets) == 0 {
		return nil, errno.ErrWalletNotFound
	}
	i := p.vault.Selected
	w := p.vault.Wallets[i]
	return &Account{Name: w.Name, key: p.keys[i]}, nil
}

// CurrentSecret 当前钱包的 seed 或助记词，只用于用户主动备份
func (p *Provider) CurrentSecret() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkLocked(); err != nil {
		return "", err
	}
	if len(p.vault.Wallets) == 0 {
		return "", errno.ErrWalletNotFound
	}
	return p.vault.Wallets[p.vault.Selected].secret(), nil
}

func (p *Provider) List() ([]Summary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkLocked(); err != nil {
		return nil, err
	}
	out := make([]Summary, len(p.vault.Wallets))
	for i := range p.vault.Wallets {
		out[i] = p.summaryLocked(i)
	}
	return out, nil
}

func (p *Provider) summary(i int) (Summary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.indexLocked(i); err != nil {
		return Summary{}, err
	}
	return p.summaryLocked(i), nil
}

func (p *Provider) summaryLocked(i int) Summary {
	w := p.vault.Wallets[i]
	return Summary{
		Index:       i,
		Name:        w.Name,
		Address:     w.PublicAddress,
		Algorithm:   w.Algorithm,
		Selected:    i == p.vault.Selected,
		HasMnemonic: w.Mnemonic != "",
	}
}
