package main

import (
	"context"
	"net/http"
	"time"

	"gemwallet/internal/background"
	"gemwallet/internal/handler"
	"gemwallet/internal/ledger"
	"gemwallet/internal/network"
	"gemwallet/internal/relay"
	"gemwallet/internal/runtime"
	"gemwallet/internal/server"
	"gemwallet/internal/service"
	"gemwallet/internal/submission"
	"gemwallet/internal/transport"
	"gemwallet/internal/wallet"
	"gemwallet/pkg/cache"
	"gemwallet/pkg/config"
	"gemwallet/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// @title GemWallet Server API
// @version 1.0
// @description 确认页、钱包管理和网络选择接口；页面通过 /ws 接入。

// @host localhost:8080
// @BasePath /
func main() {
	// 0. 初始化 Config
	config.Init()
	cfg := config.Global

	// 1. 初始化 Logger
	logger.Init(cfg.App.Env)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. 基础设施 (Redis / 存储 / MQ)
	infra, err := newInfra(ctx, cfg)
	if err != nil {
		logger.Fatal("基础设施初始化失败", zap.Error(err))
	}
	defer infra.Close()

	// 3. 钱包，配置了密码时启动即解锁
	wallets := wallet.NewProvider(infra.store, cfg.Wallet.ScryptN, logger.Named("wallet"))
	if cfg.Wallet.Password != "" {
		if err := wallets.Unlock(ctx, cfg.Wallet.Password); err != nil {
			logger.Fatal("钱包解锁失败", zap.Error(err))
		}
	}

	// 4. 网络与 ledger 客户端
	networks, err := network.NewStore(ctx, infra.store, cfg.Ledger.DefaultNetwork, cfg.Ledger.CustomURL)
	if err != nil {
		logger.Fatal("加载网络选择失败", zap.Error(err))
	}
	networks.OnChange(func(n network.Network) {
		logger.Info("网络已切换", zap.String("network", n.Name), zap.String("rpc", n.RPC))
	})

	var reserveCache cache.Cache = cache.NewMemoryCache(cfg.Ledger.ReserveTTL, time.Minute)
	if infra.redis != nil {
		reserveCache = cache.NewMultiLevelCache(reserveCache, cache.NewRedisCache(infra.redis))
	}
	pool := background.NewPool(
		ledger.WithHTTPClient(&http.Client{Timeout: cfg.Ledger.Timeout}),
		ledger.WithCache(reserveCache, cfg.Ledger.ReserveTTL),
		ledger.WithPollInterval(cfg.Ledger.PollInterval),
		ledger.WithLogger(logger.Named("ledger")),
	)

	// 5. Runtime 通道：relay 与 background 之间只通过 MQ 通信
	instance := cfg.Runtime.InstanceID
	if instance == "" {
		instance = uuid.NewString()
	}
	channel := runtime.NewChannel(infra.broker, instance, logger.Named("runtime"))
	if err := channel.Start(ctx); err != nil {
		logger.Fatal("runtime 通道启动失败", zap.Error(err))
	}

	// 6. 确认结果记录 (数据库 / 异步队列 / 日志)
	tel, err := newTelemetry(ctx, cfg, infra)
	if err != nil {
		logger.Fatal("telemetry 初始化失败", zap.Error(err))
	}
	defer tel.Close()

	// 7. Background
	bg := background.New(channel, wallets, networks, pool.Source(), submission.NewRegistry(),
		background.WithSink(tel.sink),
		background.WithLogger(logger.Named("background")),
	)
	if err := bg.Start(ctx, channel); err != nil {
		logger.Fatal("background 启动失败", zap.Error(err))
	}

	// 8. Relay 和页面入口
	rl := relay.New(channel,
		relay.WithAckTimeout(cfg.Runtime.AckTimeout),
		relay.WithLogger(logger.Named("relay")),
	)
	bridge := transport.NewBridge(cfg.App.AllowedOrigins, func(w transport.Window) func() {
		return rl.Attach(ctx, w)
	})

	// 9. 定时清理已关闭的确认
	cronService := service.NewCronService(infra.locker, bg, cfg.Telemetry.PruneAfter)
	if err := cronService.Start(); err != nil {
		logger.Fatal("Cron 启动失败", zap.Error(err))
	}

	// 10. HTTP
	router := server.NewHTTPRouter(server.Handlers{
		Confirmations: handler.NewConfirmationHandler(bg),
		Wallets:       handler.NewWalletHandler(wallets),
		Networks:      handler.NewNetworkHandler(networks),
		Bridge:        bridge,
	})
	app := server.New(server.Config{HttpPort: cfg.App.HttpPort}, router)
	app.OnShutdown(func(context.Context) {
		cronService.Stop()
		cancel()
	})

	logger.Info("gem-server 已启动",
		zap.String("instance", instance),
		zap.String("network", networks.Current().Name),
		zap.String("broker", cfg.Runtime.Broker),
		zap.Bool("unlocked", wallets.Unlocked()),
	)
	app.Run(ctx)
}
