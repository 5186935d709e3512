// Package page 是注入到网页里的客户端：每个调用对应一次 postMessage 往返。
package page

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gemwallet/internal/protocol"
	"gemwallet/internal/transport"
	"gemwallet/pkg/errno"

	"go.uber.org/zap"
)

// DefaultProbeTimeout 探测请求的超时
const DefaultProbeTimeout = time.Second

// Client 页面侧客户端
type Client struct {
	win          transport.Window
	state        *ConnectionState
	ids          *protocol.IDGenerator
	probeTimeout time.Duration
	log          *zap.Logger
}

type Option func(*Client)

func WithProbeTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.probeTimeout = d
		}
	}
}

func WithIDGenerator(g *protocol.IDGenerator) Option {
	return func(c *Client) { c.ids = g }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

func NewClient(win transport.Window, state *ConnectionState, opts ...Option) *Client {
	c := &Client{
		win:          win,
		state:        state,
		ids:          &protocol.IDGenerator{},
		probeTimeout: DefaultProbeTimeout,
		log:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State 返回客户端使用的连接状态
func (c *Client) State() *ConnectionState {
	return c.state
}

// Request 通用往返：发出请求，等待 messagedId 匹配的第一条响应。
// 除探测外没有超时，等待时长由 ctx 决定
func (c *Client) Request(ctx context.Context, t protocol.MessageType, payload any) (*protocol.Response, error) {
	if t != protocol.RequestConnection && !c.state.Installed() {
		return nil, errno.ErrExtensionNotInstalled
	}

	req, err := protocol.NewRequest(t, payload, c.ids)
	if err != nil {
		return nil, err
	}

	got := make(chan *protocol.Response, 1)
	remove := c.win.AddListener(func(ev transport.Event) {
		if ev.Source != c.win.ID() {
			return
		}
		var resp protocol.Response
		if err := json.Unmarshal(ev.Data, &resp); err != nil {
			c.log.Warn("丢弃无法解析的消息", zap.String("type", string(t)), zap.Int("bytes", len(ev.Data)), zap.Error(err))
			return
		}
		if !resp.IsResponseFor(req.MessageID) {
			return
		}
		select {
		case got <- &resp:
		default: // 已经有一条响应，重复的直接丢弃
		}
	})
	defer remove()

	if err := c.win.PostMessage(req, c.win.Origin()); err != nil {
		return nil, err
	}

	select {
	case resp := <-got:
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// IsConnected 探测扩展是否响应，1 秒内没有响应视为未连接。成功结果会被缓存
func (c *Client) IsConnected(ctx context.Context) bool {
	if c.state.Connected() {
		return true
	}

	resp, err := RaceTimeout(ctx, c.probeTimeout, func(ctx context.Context) (*protocol.Response, error) {
		return c.Request(ctx, protocol.RequestConnection, nil)
	})
	if err != nil {
		if !errors.Is(err, ErrTimeout) {
			c.log.Warn("连接探测失败", zap.Error(err))
		}
		return false
	}
	if resp.IsConnected != nil && *resp.IsConnected {
		c.state.markConnected()
		return true
	}
	return false
}

// call 发起请求并把响应里的 error / rejected 转成 error
func (c *Client) call(ctx context.Context, t protocol.MessageType, payload any) (*protocol.Result, error) {
	resp, err := c.Request(ctx, t, payload)
	if err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, errors.New(resp.Error)
	}
	if resp.Rejected {
		return nil, errno.ErrUserRejected
	}
	return &resp.Result, nil
}

func (c *Client) malformed(t protocol.MessageType, field string) error {
	c.log.Warn("响应缺少结果字段", zap.String("type", string(t)), zap.String("field", field))
	return errno.ErrMalformedResponse.WithMessage("Malformed response: missing " + field)
}

func (c *Client) GetNetwork(ctx context.Context) (protocol.NetworkInfo, error) {
	r, err := c.call(ctx, protocol.RequestNetwork, nil)
	if err != nil {
		return protocol.NetworkInfo{}, err
	}
	if r.Network == nil {
		return protocol.NetworkInfo{}, c.malformed(protocol.RequestNetwork, "network")
	}
	return *r.Network, nil
}

func (c *Client) GetAddress(ctx context.Context) (string, error) {
	r, err := c.call(ctx, protocol.RequestAddress, nil)
	if err != nil {
		return "", err
	}
	if r.Address == "" {
		return "", c.malformed(protocol.RequestAddress, "address")
	}
	return r.Address, nil
}

// PublicKeyResult REQUEST_PUBLIC_KEY 同时返回地址和公钥
type PublicKeyResult struct {
	Address   string
	PublicKey string
}

func (c *Client) GetPublicKey(ctx context.Context) (PublicKeyResult, error) {
	r, err := c.call(ctx, protocol.RequestPublicKey, nil)
	if err != nil {
		return PublicKeyResult{}, err
	}
	if r.PublicKey == "" {
		return PublicKeyResult{}, c.malformed(protocol.RequestPublicKey, "publicKey")
	}
	return PublicKeyResult{Address: r.Address, PublicKey: r.PublicKey}, nil
}

func (c *Client) GetNFTs(ctx context.Context, req protocol.GetNFTsRequest) (protocol.NFTPage, error) {
	r, err := c.call(ctx, protocol.RequestNFTs, req)
	if err != nil {
		return protocol.NFTPage{}, err
	}
	if r.NFTs == nil {
		return protocol.NFTPage{}, c.malformed(protocol.RequestNFTs, "nfts")
	}
	return *r.NFTs, nil
}

func (c *Client) SignMessage(ctx context.Context, message string) (string, error) {
	r, err := c.call(ctx, protocol.RequestSignMessage, protocol.SignMessageRequest{Message: message})
	if err != nil {
		return "", err
	}
	if r.SignedMessage == "" {
		return "", c.malformed(protocol.RequestSignMessage, "signedMessage")
	}
	return r.SignedMessage, nil
}

// hash 所有 "提交交易返回 hash" 的入口共用
func (c *Client) hash(ctx context.Context, t protocol.MessageType, payload any) (string, error) {
	r, err := c.call(ctx, t, payload)
	if err != nil {
		return "", err
	}
	if r.Hash == "" {
		return "", c.malformed(t, "hash")
	}
	return r.Hash, nil
}

func (c *Client) SendPayment(ctx context.Context, req protocol.PaymentRequest) (string, error) {
	return c.hash(ctx, protocol.SendPayment, req)
}

func (c *Client) SetTrustline(ctx context.Context, req protocol.TrustlineRequest) (string, error) {
	return c.hash(ctx, protocol.SetTrustline, req)
}

func (c *Client) MintNFT(ctx context.Context, req protocol.MintNFTRequest) (string, error) {
	return c.hash(ctx, protocol.MintNFT, req)
}

func (c *Client) CreateNFTOffer(ctx context.Context, req protocol.CreateNFTOfferRequest) (string, error) {
	return c.hash(ctx, protocol.CreateNFTOffer, req)
}

func (c *Client) CancelNFTOffer(ctx context.Context, req protocol.CancelNFTOfferRequest) (string, error) {
	return c.hash(ctx, protocol.CancelNFTOffer, req)
}

func (c *Client) AcceptNFTOffer(ctx context.Context, req protocol.AcceptNFTOfferRequest) (string, error) {
	return c.hash(ctx, protocol.AcceptNFTOffer, req)
}

func (c *Client) BurnNFT(ctx context.Context, req protocol.BurnNFTRequest) (string, error) {
	return c.hash(ctx, protocol.BurnNFT, req)
}

func (c *Client) SetAccount(ctx context.Context, req protocol.SetAccountRequest) (string, error) {
	return c.hash(ctx, protocol.SetAccount, req)
}

func (c *Client) CreateOffer(ctx context.Context, req protocol.CreateOfferRequest) (string, error) {
	return c.hash(ctx, protocol.CreateOffer, req)
}

func (c *Client) CancelOffer(ctx context.Context, req protocol.CancelOfferRequest) (string, error) {
	return c.hash(ctx, protocol.CancelOffer, req)
}

func (c *Client) SetRegularKey(ctx context.Context, req protocol.SetRegularKeyRequest) (string, error) {
	return c.hash(ctx, protocol.SetRegularKey, req)
}

func (c *Client) DeleteAccount(ctx context.Context, req protocol.DeleteAccountRequest) (string, error) {
	return c.hash(ctx, protocol.DeleteAccount, req)
}

func (c *Client) SubmitTransaction(ctx context.Context, tx json.RawMessage) (string, error) {
	return c.hash(ctx, protocol.SubmitTransaction, protocol.RawTransactionRequest{Transaction: tx})
}

// SignTransaction 返回签名后的 tx blob
func (c *Client) SignTransaction(ctx context.Context, tx json.RawMessage) (string, error) {
	r, err := c.call(ctx, protocol.SignTransaction, protocol.RawTransactionRequest{Transaction: tx})
	if err != nil {
		return "", err
	}
	if r.Signature == "" {
		return "", c.malformed(protocol.SignTransaction, "signature")
	}
	return r.Signature, nil
}

func (c *Client) SubmitBulkTransactions(ctx context.Context, req protocol.BulkTransactionsRequest) ([]protocol.BulkItemResult, error) {
	r, err := c.call(ctx, protocol.SubmitBulkTransactions, req)
	if err != nil {
		return nil, err
	}
	if r.Transactions == nil {
		return nil, c.malformed(protocol.SubmitBulkTransactions, "transactions")
	}
	return r.Transactions, nil
}
