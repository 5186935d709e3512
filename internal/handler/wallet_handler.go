package handler

import (
	"context"
	"strconv"

	"gemwallet/internal/handler/request"
	"gemwallet/internal/handler/response"
	"gemwallet/internal/wallet"
	"gemwallet/pkg/errno"
	"gemwallet/pkg/validator"
	"gemwallet/pkg/xrpkey"

	"github.com/gin-gonic/gin"
)

// Wallets 钱包管理，*wallet.Provider 实现了它
type Wallets interface {
	Unlock(ctx context.Context, password string) error
	Lock()
	Unlocked() bool
	Create(ctx context.Context, name string, algo xrpkey.Algorithm) (wallet.Summary, error)
	Import(ctx context.Context, name, secret string) (wallet.Summary, error)
	Rename(ctx context.Context, index int, name string) error
	Remove(ctx context.Context, index int) error
	Select(ctx context.Context, index int) error
	List() ([]wallet.Summary, error)
}

type WalletHandler struct {
	wallets Wallets
}

func NewWalletHandler(w Wallets) *WalletHandler {
	return &WalletHandler{wallets: w}
}

func bindError(c *gin.Context, err error) {
	response.Error(c, errno.ErrBind.WithMessage(validator.GetErrorMsg(err)))
}

func indexParam(c *gin.Context) (int, bool) {
	i, err := strconv.Atoi(c.Param("index"))
	if err != nil || i < 0 {
		response.Error(c, errno.ErrValidation.WithMessage("wallet index must be a non-negative integer"))
		return 0, false
	}
	return i, true
}

// Unlock 解锁钱包
// @Summary 解锁钱包
// @Tags Wallet
// @Accept json
// @Produce json
// @Param request body request.UnlockRequest true "Password"
// @Success 200 {object} response.Response
// @Router /api/v1/wallet/unlock [post]
func (h *WalletHandler) Unlock(c *gin.Context) {
	var req request.UnlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := h.wallets.Unlock(c.Request.Context(), req.Password); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"unlocked": true})
}

// Lock 锁定钱包
// @Summary 锁定钱包
// @Tags Wallet
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/v1/wallet/lock [post]
func (h *WalletHandler) Lock(c *gin.Context) {
	h.wallets.Lock()
	response.Success(c, gin.H{"unlocked": false})
}

// List 钱包列表
// @Summary 钱包列表
// @Tags Wallet
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/v1/wallets [get]
func (h *WalletHandler) List(c *gin.Context) {
	list, err := h.wallets.List()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, list)
}

// Create 生成新钱包
// @Summary 生成钱包
// @Tags Wallet
// @Accept json
// @Produce json
// @Param request body request.CreateWalletRequest true "Wallet"
// @Success 200 {object} response.Response
// @Router /api/v1/wallets [post]
func (h *WalletHandler) Create(c *gin.Context) {
	var req request.CreateWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	s, err := h.wallets.Create(c.Request.Context(), req.Name, req.Algorithm)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, s)
}

// Import 导入 family seed 或助记词
// @Summary 导入钱包
// @Tags Wallet
// @Accept json
// @Produce json
// @Param request body request.ImportWalletRequest true "Wallet"
// @Success 200 {object} response.Response
// @Router /api/v1/wallets/import [post]
func (h *WalletHandler) Import(c *gin.Context) {
	var req request.ImportWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	s, err := h.wallets.Import(c.Request.Context(), req.Name, req.Secret)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, s)
}

// Rename 重命名
// @Summary 重命名钱包
// @Tags Wallet
// @Accept json
// @Produce json
// @Param index path int true "Wallet index"
// @Param request body request.RenameWalletRequest true "Name"
// @Success 200 {object} response.Response
// @Router /api/v1/wallets/{index} [put]
func (h *WalletHandler) Rename(c *gin.Context) {
	i, ok := indexParam(c)
	if !ok {
		return
	}
	var req request.RenameWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := h.wallets.Rename(c.Request.Context(), i, req.Name); err != nil {
		response.Error(c, err)
		return
	}
	h.List(c)
}

// Remove 删除钱包
// @Summary 删除钱包
// @Tags Wallet
// @Produce json
// @Param index path int true "Wallet index"
// @Success 200 {object} response.Response
// @Router /api/v1/wallets/{index} [delete]
func (h *WalletHandler) Remove(c *gin.Context) {
	i, ok := indexParam(c)
	if !ok {
		return
	}
	if err := h.wallets.Remove(c.Request.Context(), i); err != nil {
		response.Error(c, err)
		return
	}
	h.List(c)
}

// Select 切换当前钱包
// @Summary 切换钱包
// @Tags Wallet
// @Produce json
// @Param index path int true "Wallet index"
// @Success 200 {object} response.Response
// @Router /api/v1/wallets/{index}/select [post]
func (h *WalletHandler) Select(c *gin.Context) {
	i, ok := indexParam(c)
	if !ok {
		return
	}
	if err := h.wallets.Select(c.Request.Context(), i); err != nil {
		response.Error(c, err)
		return
	}
	h.List(c)
}
