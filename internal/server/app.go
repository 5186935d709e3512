package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gemwallet/pkg/logger"

	"go.uber.org/zap"
)

type Config struct {
	HttpPort string
	// ShutdownTimeout 默认 5s
	ShutdownTimeout time.Duration
}

// App HTTP 服务及其后台组件的生命周期
type App struct {
	httpServer *http.Server
	timeout    time.Duration
	hooks      []func(ctx context.Context)
}

func New(cfg Config, httpHandler http.Handler) *App {
	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &App{
		httpServer: &http.Server{
			Addr:              ":" + cfg.HttpPort,
			Handler:           httpHandler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		timeout: timeout,
	}
}

// OnShutdown 关闭 HTTP 之后按注册的逆序调用
func (a *App) OnShutdown(fn func(ctx context.Context)) {
	a.hooks = append(a.hooks, fn)
}

// Run 启动服务并阻塞，直到收到关闭信号或 ctx 结束
func (a *App) Run(ctx context.Context) {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP Server", zap.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("HTTP Server failure", zap.Error(err))
	}
	logger.Info("⚠️  Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP Server forced to shutdown", zap.Error(err))
	}
	for i := len(a.hooks) - 1; i >= 0; i-- {
		a.hooks[i](shutdownCtx)
	}
	logger.Info("Server exited properly")
}
