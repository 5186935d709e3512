package server

import (
	"net/http"

	_ "gemwallet/docs"
	"gemwallet/internal/handler"
	"gemwallet/internal/server/routes"
	"gemwallet/pkg/monitor"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handlers 路由依赖
type Handlers struct {
	Confirmations *handler.ConfirmationHandler
	Wallets       *handler.WalletHandler
	Networks      *handler.NetworkHandler
	// Bridge 页面 websocket 入口，nil 时不注册 /ws
	Bridge http.Handler
}

// NewHTTPRouter 初始化并返回一个 Gin Engine
func NewHTTPRouter(h Handlers) *gin.Engine {
	// 0. 初始化监控指标
	monitor.Init()

	// 1. 创建 Engine (使用默认中间件: Logger, Recovery)
	r := gin.Default()

	// 2. 注册通用中间件
	r.Use(monitor.PrometheusMiddleware())

	// 3. 注册基础路由
	r.GET("/health", handler.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	if h.Bridge != nil {
		r.GET("/ws", gin.WrapH(h.Bridge))
	}

	// 4. 注册 API 路由组
	api := r.Group("/api/v1")
	{
		if h.Confirmations != nil {
			routes.RegisterConfirmationRoutes(api, h.Confirmations)
		}
		if h.Wallets != nil {
			routes.RegisterWalletRoutes(api, h.Wallets)
		}
		if h.Networks != nil {
			routes.RegisterNetworkRoutes(api, h.Networks)
		}
	}

	return r
}
