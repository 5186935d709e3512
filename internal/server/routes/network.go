package routes

import (
	"gemwallet/internal/handler"

	"github.com/gin-gonic/gin"
)

func RegisterNetworkRoutes(rg *gin.RouterGroup, h *handler.NetworkHandler) {
	rg.GET("/network", h.Get)
	rg.PUT("/network", h.Select)
}
