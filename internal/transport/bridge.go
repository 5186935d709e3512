package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"

	"gemwallet/internal/protocol"
	"gemwallet/pkg/logger"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// AttachFunc 新页面连接时调用 (通常是 relay.Attach)，返回的 detach 在断开时调用
type AttachFunc func(w Window) (detach func())

// Bridge /ws 入口：每个 websocket 连接是一个页面 window，连接建立即相当于
// content script 已注入 (扩展标记存在)
type Bridge struct {
	upgrader websocket.Upgrader
	attach   AttachFunc
}

// NewBridge allowedOrigins 为空时接受任意 origin
func NewBridge(allowedOrigins []string, attach AttachFunc) *Bridge {
	return &Bridge{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowedOrigins) == 0 {
					return true
				}
				return slices.Contains(allowedOrigins, r.Header.Get("Origin"))
			},
		},
		attach: attach,
	}
}

func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		http.Error(w, "missing Origin header", http.StatusBadRequest)
		return
	}

	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket 升级失败", zap.String("origin", origin), zap.Error(err))
		return
	}

	q := r.URL.Query()
	win := NewSocketWindow(conn, origin, protocol.ConnectionInfo{
		URL:     firstNonEmpty(q.Get("url"), origin),
		Title:   q.Get("title"),
		Favicon: q.Get("favicon"),
	})
	detach := b.attach(win)
	defer detach()

	logger.Info("页面已连接", zap.String("origin", origin), zap.String("window", win.ID()))
	_ = win.Run()
	logger.Info("页面已断开", zap.String("origin", origin), zap.String("window", win.ID()))
}

// Dial 以页面身份连接 /ws，返回的 window 需要调用方 go Run()
func Dial(ctx context.Context, endpoint, origin string, info protocol.ConnectionInfo) (*SocketWindow, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("transport: invalid endpoint: %w", err)
	}
	q := u.Query()
	if info.URL != "" {
		q.Set("url", info.URL)
	}
	if info.Title != "" {
		q.Set("title", info.Title)
	}
	if info.Favicon != "" {
		q.Set("favicon", info.Favicon)
	}
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Origin", origin)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("transport: dial %s: %s: %w", endpoint, resp.Status, err)
		}
		return nil, fmt.Errorf("transport: dial %s: %w", endpoint, err)
	}
	return NewSocketWindow(conn, origin, info), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
