package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gemwallet/pkg/safe_random"
)

// Request 页面通过 window.postMessage 发出的请求
type Request struct {
	Source    string          `json:"source"`
	App       string          `json:"app"`
	Type      MessageType     `json:"type"`
	MessageID float64         `json:"messageId"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Response relay 回给页面的响应。
// 关联字段沿用已部署协议里的拼写 messagedId
type Response struct {
	Source     string      `json:"source"`
	App        string      `json:"app"`
	Type       MessageType `json:"type"`
	MessagedID float64     `json:"messagedId"`
	Result
}

// Result 响应中平铺的结果字段
type Result struct {
	IsConnected   *bool            `json:"isConnected,omitempty"`
	Network       *NetworkInfo     `json:"network,omitempty"`
	Address       string           `json:"address,omitempty"`
	PublicKey     string           `json:"publicKey,omitempty"`
	NFTs          *NFTPage         `json:"nfts,omitempty"`
	SignedMessage string           `json:"signedMessage,omitempty"`
	Hash          string           `json:"hash,omitempty"`
	Signature     string           `json:"signature,omitempty"`
	Transactions  []BulkItemResult `json:"transactions,omitempty"`
	Rejected      bool             `json:"rejected,omitempty"`
	Error         string           `json:"error,omitempty"`
}

// NetworkInfo REQUEST_NETWORK 的结果
type NetworkInfo struct {
	Chain     string `json:"chain"`
	Network   string `json:"network"`
	Websocket string `json:"websocket,omitempty"`
	NetworkID uint32 `json:"networkID,omitempty"`
}

// NFT account_nfts 返回的单个 NFT
type NFT struct {
	Flags        uint32 `json:"Flags"`
	Issuer       string `json:"Issuer"`
	NFTokenID    string `json:"NFTokenID"`
	NFTokenTaxon uint32 `json:"NFTokenTaxon"`
	URI          string `json:"URI,omitempty"`
	NFTSerial    uint32 `json:"nft_serial"`
}

// NFTPage 一页 NFT 以及继续翻页用的 marker
type NFTPage struct {
	AccountNFTs []NFT           `json:"account_nfts"`
	Marker      json.RawMessage `json:"marker,omitempty"`
}

// BulkItemResult 批量提交中单笔交易的结果
type BulkItemResult struct {
	ID       int    `json:"id"`
	Accepted bool   `json:"accepted"`
	Hash     string `json:"hash,omitempty"`
	Error    string `json:"error,omitempty"`
}

var (
	ErrWrongApp    = errors.New("protocol: app mismatch")
	ErrWrongSource = errors.New("protocol: unexpected source")
	ErrUnknownType = errors.New("protocol: unknown message type")
)

// NewRequest 构造一个带新 messageId 的请求
func NewRequest(t MessageType, payload any, ids *IDGenerator) (*Request, error) {
	req := &Request{
		Source:    SourceRequest,
		App:       AppID,
		Type:      t,
		MessageID: ids.Next(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("protocol: encode %s payload: %w", t, err)
		}
		req.Payload = raw
	}
	return req, nil
}

// Valid 检查 app / source / type，relay 只处理通过校验的请求
func (r *Request) Valid() error {
	if r.App != AppID {
		return ErrWrongApp
	}
	if r.Source != SourceRequest {
		return ErrWrongSource
	}
	if !IsRequestType(r.Type) {
		return fmt.Errorf("%w: %q", ErrUnknownType, r.Type)
	}
	return nil
}

// DecodePayload 把 payload 解到 v；payload 为空时 v 保持零值
func (r *Request) DecodePayload(v any) error {
	return DecodePayload(r.Payload, v)
}

// DecodePayload 同上，用于 runtime 消息里转发过来的 payload
func DecodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}

// NewResponse 为请求构造响应，type 使用对应的 RECEIVE_* 类型
func NewResponse(req *Request, result Result) *Response {
	t := req.Type
	if rt, ok := ReceiveType(req.Type); ok {
		t = rt
	}
	return &Response{
		Source:     SourceResponse,
		App:        AppID,
		Type:       t,
		MessagedID: req.MessageID,
		Result:     result,
	}
}

// IsResponseFor 页面监听器用它过滤响应
func (r *Response) IsResponseFor(messageID float64) bool {
	return r.App == AppID && r.Source == SourceResponse && r.MessagedID == messageID
}

// IDGenerator 生成 messageId = 当前毫秒时间戳 + [0,1) 随机小数。
// 零值可直接使用 (系统时钟 + 加密随机源)
type IDGenerator struct {
	Now  func() time.Time
	Rand func() (float64, error)
}

// Next 返回新的 messageId。随机源失败时小数部分为 0，只退化为毫秒精度
func (g *IDGenerator) Next() float64 {
	now := time.Now
	rnd := safe_random.Float64
	if g != nil && g.Now != nil {
		now = g.Now
	}
	if g != nil && g.Rand != nil {
		rnd = g.Rand
	}
	frac, err := rnd()
	if err != nil || frac < 0 || frac >= 1 {
		frac = 0
	}
	return float64(now().UnixMilli()) + frac
}
