package transport

import (
	"encoding/json"
	"sync"
	"time"

	"gemwallet/internal/protocol"
	"gemwallet/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxFrame   = 1 << 20
)

// SocketWindow 把 websocket 连接的两端各自看成同一个 window：
// 本端 post 的消息写到连接上，对端发来的帧作为本 window 上的事件派发。
// 服务端把它交给 relay，CLI 端把它交给页面客户端
type SocketWindow struct {
	id     string
	origin string
	info   protocol.ConnectionInfo
	conn   *websocket.Conn

	ls      listeners
	writeMu sync.Mutex
	done    chan struct{}
	once    sync.Once
}

// NewSocketWindow origin 是页面 origin (服务端取自 HTTP Origin 头)
func NewSocketWindow(conn *websocket.Conn, origin string, info protocol.ConnectionInfo) *SocketWindow {
	if info.URL == "" {
		info.URL = origin
	}
	return &SocketWindow{
		id:     uuid.NewString(),
		origin: origin,
		info:   info,
		conn:   conn,
		done:   make(chan struct{}),
	}
}

func (w *SocketWindow) ID() string                    { return w.id }
func (w *SocketWindow) Origin() string                { return w.origin }
func (w *SocketWindow) Info() protocol.ConnectionInfo { return w.info }

func (w *SocketWindow) AddListener(l Listener) func() {
	return w.ls.add(l)
}

func (w *SocketWindow) PostMessage(data any, targetOrigin string) error {
	if targetOrigin != "*" && targetOrigin != w.origin {
		return nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}

	select {
	case <-w.done:
		return ErrClosed
	default:
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteMessage(websocket.TextMessage, raw)
}

// Run 读循环，阻塞到连接断开
func (w *SocketWindow) Run() error {
	defer w.Close()

	w.conn.SetReadLimit(maxFrame)
	_ = w.conn.SetReadDeadline(time.Now().Add(pongWait))
	w.conn.SetPongHandler(func(string) error {
		return w.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go w.pingLoop()

	for {
		_, raw, err := w.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("websocket 异常断开", zap.String("origin", w.origin), zap.Error(err))
				return err
			}
			return nil
		}
		if !json.Valid(raw) {
			continue
		}
		ev := Event{Source: w.id, Origin: w.origin, Data: raw}
		for _, l := range w.ls.snapshot() {
			l(ev)
		}
	}
}

func (w *SocketWindow) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.writeMu.Lock()
			err := w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			w.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// Done 连接关闭后关闭
func (w *SocketWindow) Done() <-chan struct{} {
	return w.done
}

// Close 关闭连接
func (w *SocketWindow) Close() {
	w.once.Do(func() {
		close(w.done)
		w.writeMu.Lock()
		_ = w.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		w.writeMu.Unlock()
		_ = w.conn.Close()
	})
}
