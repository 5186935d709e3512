package routes

import (
	"gemwallet/internal/handler"

	"github.com/gin-gonic/gin"
)

// RegisterConfirmationRoutes 确认页路由
func RegisterConfirmationRoutes(rg *gin.RouterGroup, h *handler.ConfirmationHandler) {
	g := rg.Group("/confirmations")
	{
		g.GET("", h.List)
		g.GET("/:id", h.Detail)
		g.POST("/:id/confirm", h.Confirm)
		g.POST("/:id/reject", h.Reject)
		g.POST("/:id/close", h.Close)
	}
}
