package handler

import (
	"context"
	"errors"

	"gemwallet/internal/handler/request"
	"gemwallet/internal/handler/response"
	"gemwallet/internal/network"
	"gemwallet/pkg/errno"

	"github.com/gin-gonic/gin"
)

// Networks 网络选择，*network.Store 实现了它
type Networks interface {
	Current() network.Network
	Select(ctx context.Context, name, customURL string) (network.Network, error)
}

type NetworkHandler struct {
	networks Networks
}

func NewNetworkHandler(n Networks) *NetworkHandler {
	return &NetworkHandler{networks: n}
}

// Get 当前网络和预置网络
// @Summary 当前网络
// @Tags Network
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/v1/network [get]
func (h *NetworkHandler) Get(c *gin.Context) {
	response.Success(c, gin.H{
		"current": h.networks.Current(),
		"presets": network.Presets(),
	})
}

// Select 切换网络
// @Summary 切换网络
// @Tags Network
// @Accept json
// @Produce json
// @Param request body request.SelectNetworkRequest true "Network"
// @Success 200 {object} response.Response
// @Router /api/v1/network [put]
func (h *NetworkHandler) Select(c *gin.Context) {
	var req request.SelectNetworkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	n, err := h.networks.Select(c.Request.Context(), req.Name, req.URL)
	if errors.Is(err, network.ErrUnknownNetwork) {
		response.Error(c, errno.ErrValidation.WithMessage(err.Error()))
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, n)
}
