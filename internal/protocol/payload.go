package protocol

import "encoding/json"

// ConnectionInfo 发起请求的页面信息，由 relay 填充，确认页面上展示
type ConnectionInfo struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Favicon string `json:"favicon,omitempty"`
}

// Memo 备注，字段为明文，构建交易时 hex 编码
type Memo struct {
	Memo MemoFields `json:"memo"`
}

type MemoFields struct {
	MemoType   string `json:"memoType,omitempty"`
	MemoData   string `json:"memoData,omitempty"`
	MemoFormat string `json:"memoFormat,omitempty"`
}

// Signer 多签中的单个签名
type Signer struct {
	Signer SignerFields `json:"signer"`
}

type SignerFields struct {
	Account       string `json:"account" validate:"required,xrpl_address"`
	TxnSignature  string `json:"txnSignature" validate:"required,hexstr"`
	SigningPubKey string `json:"signingPubKey" validate:"required,hexstr"`
}

// BaseTransactionRequest 所有交易请求共有的可选字段
type BaseTransactionRequest struct {
	Fee                string   `json:"fee,omitempty" validate:"omitempty,numeric"`
	Sequence           *uint32  `json:"sequence,omitempty"`
	AccountTxnID       string   `json:"accountTxnID,omitempty" validate:"omitempty,hexstr,len=64"`
	LastLedgerSequence *uint32  `json:"lastLedgerSequence,omitempty"`
	Memos              []Memo   `json:"memos,omitempty"`
	Signers            []Signer `json:"signers,omitempty" validate:"omitempty,dive"`
	SourceTag          *uint32  `json:"sourceTag,omitempty"`
	SigningPubKey      string   `json:"signingPubKey,omitempty" validate:"omitempty,hexstr"`
	TicketSequence     *uint32  `json:"ticketSequence,omitempty"`
	TxnSignature       string   `json:"txnSignature,omitempty" validate:"omitempty,hexstr"`
	NetworkID          *uint32  `json:"networkID,omitempty"`
}

type PaymentRequest struct {
	BaseTransactionRequest
	Amount         Amount  `json:"amount"`
	Destination    string  `json:"destination" validate:"required,xrpl_address"`
	DestinationTag *uint32 `json:"destinationTag,omitempty"`
	Flags          *Flags  `json:"flags,omitempty"`
}

type TrustlineRequest struct {
	BaseTransactionRequest
	LimitAmount Amount  `json:"limitAmount"`
	Flags       *Flags  `json:"flags,omitempty"`
	QualityIn   *uint32 `json:"qualityIn,omitempty"`
	QualityOut  *uint32 `json:"qualityOut,omitempty"`
}

type MintNFTRequest struct {
	BaseTransactionRequest
	Flags        *Flags  `json:"flags,omitempty"`
	Issuer       string  `json:"issuer,omitempty" validate:"omitempty,xrpl_address"`
	TransferFee  *uint16 `json:"transferFee,omitempty" validate:"omitempty,max=50000"`
	URI          string  `json:"URI,omitempty" validate:"omitempty,max=256"`
	NFTokenTaxon uint32  `json:"NFTokenTaxon"`
}

type CreateNFTOfferRequest struct {
	BaseTransactionRequest
	NFTokenID   string  `json:"NFTokenID" validate:"required,hexstr,len=64"`
	Amount      Amount  `json:"amount"`
	Owner       string  `json:"owner,omitempty" validate:"omitempty,xrpl_address"`
	Expiration  *uint32 `json:"expiration,omitempty"`
	Destination string  `json:"destination,omitempty" validate:"omitempty,xrpl_address"`
	Flags       *Flags  `json:"flags,omitempty"`
}

type CancelNFTOfferRequest struct {
	BaseTransactionRequest
	NFTokenOffers []string `json:"NFTokenOffers" validate:"required,min=1,dive,hexstr,len=64"`
}

type AcceptNFTOfferRequest struct {
	BaseTransactionRequest
	NFTokenSellOffer string  `json:"NFTokenSellOffer,omitempty" validate:"omitempty,hexstr,len=64"`
	NFTokenBuyOffer  string  `json:"NFTokenBuyOffer,omitempty" validate:"omitempty,hexstr,len=64"`
	NFTokenBrokerFee *Amount `json:"NFTokenBrokerFee,omitempty"`
}

type BurnNFTRequest struct {
	BaseTransactionRequest
	NFTokenID string `json:"NFTokenID" validate:"required,hexstr,len=64"`
	Owner     string `json:"owner,omitempty" validate:"omitempty,xrpl_address"`
}

type SetAccountRequest struct {
	BaseTransactionRequest
	Flags         *Flags  `json:"flags,omitempty"`
	ClearFlag     *uint32 `json:"clearFlag,omitempty"`
	Domain        string  `json:"domain,omitempty" validate:"omitempty,max=256"`
	EmailHash     string  `json:"emailHash,omitempty" validate:"omitempty,hexstr,len=32"`
	MessageKey    string  `json:"messageKey,omitempty" validate:"omitempty,hexstr"`
	NFTokenMinter string  `json:"NFTokenMinter,omitempty" validate:"omitempty,xrpl_address"`
	SetFlag       *uint32 `json:"setFlag,omitempty"`
	TransferRate  *uint32 `json:"transferRate,omitempty"`
	TickSize      *uint8  `json:"tickSize,omitempty" validate:"omitempty,max=15"`
}

type CreateOfferRequest struct {
	BaseTransactionRequest
	Flags         *Flags  `json:"flags,omitempty"`
	Expiration    *uint32 `json:"expiration,omitempty"`
	OfferSequence *uint32 `json:"offerSequence,omitempty"`
	TakerGets     Amount  `json:"takerGets"`
	TakerPays     Amount  `json:"takerPays"`
}

type CancelOfferRequest struct {
	BaseTransactionRequest
	OfferSequence uint32 `json:"offerSequence" validate:"required"`
}

type SetRegularKeyRequest struct {
	BaseTransactionRequest
	// 为空表示移除 regular key
	RegularKey string `json:"regularKey,omitempty" validate:"omitempty,xrpl_address"`
}

type DeleteAccountRequest struct {
	BaseTransactionRequest
	Destination    string  `json:"destination" validate:"required,xrpl_address"`
	DestinationTag *uint32 `json:"destinationTag,omitempty"`
}

type SignMessageRequest struct {
	Message string `json:"message" validate:"required"`
	// IsHex 为 true 时 message 已是 hex，按字节签名
	IsHex bool `json:"isHex,omitempty"`
}

type GetNFTsRequest struct {
	Limit  uint32          `json:"limit,omitempty" validate:"omitempty,min=20,max=400"`
	Marker json.RawMessage `json:"marker,omitempty"`
}

// RawTransactionRequest SIGN_TRANSACTION / SUBMIT_TRANSACTION 携带任意交易 JSON
type RawTransactionRequest struct {
	Transaction json.RawMessage `json:"transaction" validate:"required"`
}

const (
	OnErrorAbort    = "abort"
	OnErrorContinue = "continue"
)

type BulkTransactionsRequest struct {
	Transactions  []json.RawMessage `json:"transactions" validate:"required,min=1,max=50"`
	OnError       string            `json:"onError,omitempty" validate:"omitempty,oneof=abort continue"`
	WaitForHashes bool              `json:"waitForHashes,omitempty"`
}

// ContinueOnError 默认 abort
func (b BulkTransactionsRequest) ContinueOnError() bool {
	return b.OnError == OnErrorContinue
}
