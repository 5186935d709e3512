package bip39

import (
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

// MnemonicService 提供助记词相关的功能
type MnemonicService struct{}

// NewMnemonicService 创建一个新的助记词服务实例
func NewMnemonicService() *MnemonicService {
	return &MnemonicService{}
}

// GenerateMnemonic 生成一个新的随机助记词 (BIP-39)。
// bitSize: 熵的位数，通常为 128 (12个单词) 或 256 (24个单词)。
func (s *MnemonicService) GenerateMnemonic(bitSize int) (string, error) {
	entropy, err := bip39.NewEntropy(bitSize)
	if err != nil {
		return "", fmt.Errorf("生成熵失败: %w", err)
	}

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("生成助记词失败: %w", err)
	}

	return mnemonic, nil
}

// Normalize 去掉多余空白并转为小写，用户粘贴的助记词经常带换行
func (s *MnemonicService) Normalize(mnemonic string) string {
	return strings.ToLower(strings.Join(strings.Fields(mnemonic), " "))
}

// ValidateMnemonic 验证助记词是否有效。
func (s *MnemonicService) ValidateMnemonic(mnemonic string) bool {
	return bip39.IsMnemonicValid(s.Normalize(mnemonic))
}

// IsMnemonic 粗略判断一个秘密是助记词还是 family seed (s...)
func (s *MnemonicService) IsMnemonic(secret string) bool {
	return len(strings.Fields(secret)) >= 12
}

// MnemonicToSeed 将助记词转换为种子 (BIP-39 Seed)。
// password: 可选的 passphrase，不需要时传 ""。
func (s *MnemonicService) MnemonicToSeed(mnemonic string, password string) ([]byte, error) {
	mnemonic = s.Normalize(mnemonic)
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("无效的助记词")
	}
	return bip39.NewSeed(mnemonic, password), nil
}
