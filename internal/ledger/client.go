// Package ledger rippled / xahaud JSON-RPC 客户端
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"gemwallet/pkg/cache"
	"gemwallet/pkg/errno"
	"gemwallet/pkg/monitor"

	"go.uber.org/zap"
)

const (
	DefaultTimeout      = 10 * time.Second
	DefaultPollInterval = time.Second
	DefaultReserveTTL   = 30 * time.Second

	// LedgerOffset autofill 时 LastLedgerSequence = 当前账本 + LedgerOffset
	LedgerOffset = 20
)

// RPCError rippled 返回 status=error
type RPCError struct {
	Method  string
	Code    string
	Message string
}

func (e *RPCError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("ledger %s: %s (%s)", e.Method, e.Code, e.Message)
	}
	return fmt.Sprintf("ledger %s: %s", e.Method, e.Code)
}

// Unwrap actNotFound 映射为 ErrAccountNotFound，其余归为通用 ledger 错误
func (e *RPCError) Unwrap() error {
	if e.Code == "actNotFound" {
		return errno.ErrAccountNotFound
	}
	return errno.ErrLedger
}

type Client struct {
	url          string
	http         *http.Client
	cache        cache.Cache
	reserveTTL   time.Duration
	pollInterval time.Duration
	log          *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithCache 缓存 server_info 的储备参数
func WithCache(cc cache.Cache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = cc
		if ttl > 0 {
			c.reserveTTL = ttl
		}
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

func New(url string, opts ...Option) *Client {
	c := &Client{
		url:          url,
		http:         &http.Client{Timeout: DefaultTimeout},
		reserveTTL:   DefaultReserveTTL,
		pollInterval: DefaultPollInterval,
		log:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL 节点地址，同时作为客户端标识 (fee 快照的指纹用到)
func (c *Client) URL() string {
	return c.url
}

type rpcRequest struct {
	Method string `json:"method"`
	Params []any  `json:"params"`
}

type rpcStatus struct {
	Status       string `json:"status"`
	Error        string `json:"error"`
	ErrorMessage string `json:"error_message"`
}

// call 发送一次 JSON-RPC 请求，result 解到 out
func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	if params == nil {
		params = map[string]any{}
	}
	body, err := json.Marshal(rpcRequest{Method: method, Params: []any{params}})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		monitor.ObserveLedgerError(method)
		return fmt.Errorf("ledger %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ledger %s: read body: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		monitor.ObserveLedgerError(method)
		return fmt.Errorf("ledger %s: http %d", method, resp.StatusCode)
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("ledger %s: decode: %w", method, err)
	}
	var status rpcStatus
	if err := json.Unmarshal(envelope.Result, &status); err != nil {
		return fmt.Errorf("ledger %s: decode: %w", method, err)
	}
	if status.Status == "error" || status.Error != "" {
		rpcErr := &RPCError{Method: method, Code: status.Error, Message: status.ErrorMessage}
		// 未激活账户是正常状态，不计入错误
		if status.Error != "actNotFound" {
			monitor.ObserveLedgerError(method)
			c.log.Warn("ledger RPC 返回错误", zap.String("method", method), zap.String("code", status.Error))
		}
		return rpcErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("ledger %s: decode result: %w", method, err)
	}
	return nil
}
