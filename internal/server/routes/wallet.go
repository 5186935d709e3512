package routes

import (
	"gemwallet/internal/handler"

	"github.com/gin-gonic/gin"
)

func RegisterWalletRoutes(rg *gin.RouterGroup, h *handler.WalletHandler) {
	rg.POST("/wallet/unlock", h.Unlock)
	rg.POST("/wallet/lock", h.Lock)

	walletGroup := rg.Group("/wallets")
	{
		walletGroup.GET("", h.List)
		walletGroup.POST("", h.Create)
		walletGroup.POST("/import", h.Import)
		walletGroup.PUT("/:index", h.Rename)
		walletGroup.DELETE("/:index", h.Remove)
		walletGroup.POST("/:index/select", h.Select)
	}
}
