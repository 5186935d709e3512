package request

import "gemwallet/pkg/xrpkey"

type UnlockRequest struct {
	Password string `json:"password" binding:"required,min=8"`
}

// CreateWalletRequest Secret 为空时生成新的 family seed
type CreateWalletRequest struct {
	Name      string           `json:"name" binding:"required,max=64"`
	Algorithm xrpkey.Algorithm `json:"algorithm" binding:"omitempty,oneof=secp256k1 ed25519"`
}

// ImportWalletRequest Secret 为 family seed 或 12/24 词助记词
type ImportWalletRequest struct {
	Name   string `json:"name" binding:"required,max=64"`
	Secret string `json:"secret" binding:"required"`
}

type RenameWalletRequest struct {
	Name string `json:"name" binding:"required,max=64"`
}
