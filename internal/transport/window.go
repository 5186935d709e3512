// Package transport 模拟页面的 window.postMessage：页面脚本和 relay 挂在同一个
// Window 上，一方 post 的消息所有监听者都能收到 (包括自己)。
package transport

import (
	"encoding/json"
	"errors"
	"sync"

	"gemwallet/internal/protocol"

	"github.com/google/uuid"
)

// ErrClosed window 已关闭
var ErrClosed = errors.New("transport: window closed")

// Event 一次 message 事件
type Event struct {
	// Source 发送方 window 的 ID；同一页面内的 post 等于接收方自己的 ID
	Source string
	Origin string
	Data   json.RawMessage
}

// Listener message 事件回调
type Listener func(Event)

// Window 页面 window 的最小抽象
type Window interface {
	ID() string
	Origin() string
	// Info 页面的 url / title / favicon，relay 转发请求时附带
	Info() protocol.ConnectionInfo
	// PostMessage 以 JSON 序列化 data 并异步派发；targetOrigin 与本 window 不符时丢弃
	PostMessage(data any, targetOrigin string) error
	// AddListener 注册监听，返回的函数用于移除
	AddListener(l Listener) (remove func())
}

// listeners 是可并发注册/移除的监听表
type listeners struct {
	mu   sync.RWMutex
	next uint64
	set  map[uint64]Listener
}

func (ls *listeners) add(l Listener) func() {
	ls.mu.Lock()
	if ls.set == nil {
		ls.set = make(map[uint64]Listener)
	}
	id := ls.next
	ls.next++
	ls.set[id] = l
	ls.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			ls.mu.Lock()
			delete(ls.set, id)
			ls.mu.Unlock()
		})
	}
}

func (ls *listeners) snapshot() []Listener {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	out := make([]Listener, 0, len(ls.set))
	for _, l := range ls.set {
		out = append(out, l)
	}
	return out
}

func (ls *listeners) count() int {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	return len(ls.set)
}

// LocalWindow 进程内的 window，页面客户端和 relay 直接共享它
type LocalWindow struct {
	id     string
	origin string
	info   protocol.ConnectionInfo

	ls    listeners
	queue chan Event
	done  chan struct{}
	once  sync.Once
}

// NewLocalWindow 创建并启动派发循环。派发在单个 goroutine 里按 post 顺序进行
func NewLocalWindow(origin string, info protocol.ConnectionInfo) *LocalWindow {
	if info.URL == "" {
		info.URL = origin
	}
	w := &LocalWindow{
		id:     uuid.NewString(),
		origin: origin,
		info:   info,
		queue:  make(chan Event, 256),
		done:   make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *LocalWindow) loop() {
	for {
		select {
		case <-w.done:
			return
		case ev := <-w.queue:
			for _, l := range w.ls.snapshot() {
				l(ev)
			}
		}
	}
}

func (w *LocalWindow) ID() string                    { return w.id }
func (w *LocalWindow) Origin() string                { return w.origin }
func (w *LocalWindow) Info() protocol.ConnectionInfo { return w.info }

func (w *LocalWindow) PostMessage(data any, targetOrigin string) error {
	if targetOrigin != "*" && targetOrigin != w.origin {
		return nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return w.Dispatch(Event{Source: w.id, Origin: w.origin, Data: raw})
}

// Dispatch 直接派发一个事件，测试里用来模拟来自 iframe / 其他 window 的消息
func (w *LocalWindow) Dispatch(ev Event) error {
	select {
	case <-w.done:
		return ErrClosed
	default:
	}
	select {
	case w.queue <- ev:
		return nil
	case <-w.done:
		return ErrClosed
	}
}

func (w *LocalWindow) AddListener(l Listener) func() {
	return w.ls.add(l)
}

// Listeners 当前监听数
func (w *LocalWindow) Listeners() int {
	return w.ls.count()
}

// Close 停止派发
func (w *LocalWindow) Close() {
	w.once.Do(func() { close(w.done) })
}
