// Package protocol 定义页面、content script (relay) 和 background 之间交换的消息格式。
package protocol

const (
	// AppID 用来区分其他扩展在同一个 window 上发送的消息
	AppID = "gem-wallet"

	SourceRequest  = "GEM_WALLET_MSG_REQUEST"
	SourceResponse = "GEM_WALLET_MSG_RESPONSE"
)

// MessageType 是消息的 type 字段
type MessageType string

// 页面 -> 扩展 的请求类型
const (
	RequestConnection      MessageType = "REQUEST_CONNECTION"
	RequestNetwork         MessageType = "REQUEST_NETWORK"
	RequestAddress         MessageType = "REQUEST_ADDRESS"
	RequestPublicKey       MessageType = "REQUEST_PUBLIC_KEY"
	RequestNFTs            MessageType = "REQUEST_NFTS"
	RequestSignMessage     MessageType = "REQUEST_SIGN_MESSAGE"
	SendPayment            MessageType = "SEND_PAYMENT"
	SetTrustline           MessageType = "SET_TRUSTLINE"
	MintNFT                MessageType = "MINT_NFT"
	CreateNFTOffer         MessageType = "CREATE_NFT_OFFER"
	CancelNFTOffer         MessageType = "CANCEL_NFT_OFFER"
	AcceptNFTOffer         MessageType = "ACCEPT_NFT_OFFER"
	BurnNFT                MessageType = "BURN_NFT"
	SetAccount             MessageType = "SET_ACCOUNT"
	CreateOffer            MessageType = "CREATE_OFFER"
	CancelOffer            MessageType = "CANCEL_OFFER"
	SetRegularKey          MessageType = "SET_REGULAR_KEY"
	DeleteAccount          MessageType = "DELETE_ACCOUNT"
	SignTransaction        MessageType = "SIGN_TRANSACTION"
	SubmitTransaction      MessageType = "SUBMIT_TRANSACTION"
	SubmitBulkTransactions MessageType = "SUBMIT_BULK_TRANSACTIONS"
)

// 扩展 -> relay 的完成事件类型
const (
	ReceiveNetwork                MessageType = "RECEIVE_NETWORK"
	ReceiveAddress                MessageType = "RECEIVE_ADDRESS"
	ReceivePublicKey              MessageType = "RECEIVE_PUBLIC_KEY"
	ReceiveNFTs                   MessageType = "RECEIVE_NFTS"
	ReceiveSignMessage            MessageType = "RECEIVE_SIGN_MESSAGE"
	ReceivePaymentHash            MessageType = "RECEIVE_PAYMENT_HASH"
	ReceiveSetTrustline           MessageType = "RECEIVE_SET_TRUSTLINE"
	ReceiveMintNFT                MessageType = "RECEIVE_MINT_NFT"
	ReceiveCreateNFTOffer         MessageType = "RECEIVE_CREATE_NFT_OFFER"
	ReceiveCancelNFTOffer         MessageType = "RECEIVE_CANCEL_NFT_OFFER"
	ReceiveAcceptNFTOffer         MessageType = "RECEIVE_ACCEPT_NFT_OFFER"
	ReceiveBurnNFT                MessageType = "RECEIVE_BURN_NFT"
	ReceiveSetAccount             MessageType = "RECEIVE_SET_ACCOUNT"
	ReceiveCreateOffer            MessageType = "RECEIVE_CREATE_OFFER"
	ReceiveCancelOffer            MessageType = "RECEIVE_CANCEL_OFFER"
	ReceiveSetRegularKey          MessageType = "RECEIVE_SET_REGULAR_KEY"
	ReceiveDeleteAccount          MessageType = "RECEIVE_DELETE_ACCOUNT"
	ReceiveSignTransaction        MessageType = "RECEIVE_SIGN_TRANSACTION"
	ReceiveSubmitTransaction      MessageType = "RECEIVE_SUBMIT_TRANSACTION"
	ReceiveSubmitBulkTransactions MessageType = "RECEIVE_SUBMIT_BULK_TRANSACTIONS"

	// RuntimeAck background 收到请求后立即回复，relay 用它判断扩展是否可达
	RuntimeAck MessageType = "RUNTIME_ACK"
)

var receiveTypes = map[MessageType]MessageType{
	RequestNetwork:         ReceiveNetwork,
	RequestAddress:         ReceiveAddress,
	RequestPublicKey:       ReceivePublicKey,
	RequestNFTs:            ReceiveNFTs,
	RequestSignMessage:     ReceiveSignMessage,
	SendPayment:            ReceivePaymentHash,
	SetTrustline:           ReceiveSetTrustline,
	MintNFT:                ReceiveMintNFT,
	CreateNFTOffer:         ReceiveCreateNFTOffer,
	CancelNFTOffer:         ReceiveCancelNFTOffer,
	AcceptNFTOffer:         ReceiveAcceptNFTOffer,
	BurnNFT:                ReceiveBurnNFT,
	SetAccount:             ReceiveSetAccount,
	CreateOffer:            ReceiveCreateOffer,
	CancelOffer:            ReceiveCancelOffer,
	SetRegularKey:          ReceiveSetRegularKey,
	DeleteAccount:          ReceiveDeleteAccount,
	SignTransaction:        ReceiveSignTransaction,
	SubmitTransaction:      ReceiveSubmitTransaction,
	SubmitBulkTransactions: ReceiveSubmitBulkTransactions,
}

// ReceiveType 返回请求对应的完成事件类型。探测请求 (REQUEST_CONNECTION) 没有对应事件
func ReceiveType(t MessageType) (MessageType, bool) {
	r, ok := receiveTypes[t]
	return r, ok
}

// IsRequestType 判断是否为 relay 允许转发的请求类型 (包括探测)
func IsRequestType(t MessageType) bool {
	if t == RequestConnection {
		return true
	}
	_, ok := receiveTypes[t]
	return ok
}

// IsTransactionType 需要构建/提交交易的请求类型，background 会为它们计算手续费
func IsTransactionType(t MessageType) bool {
	switch t {
	case SendPayment, SetTrustline, MintNFT, CreateNFTOffer, CancelNFTOffer, AcceptNFTOffer,
		BurnNFT, SetAccount, CreateOffer, CancelOffer, SetRegularKey, DeleteAccount,
		SignTransaction, SubmitTransaction, SubmitBulkTransactions:
		return true
	}
	return false
}

// RequestTypes 返回所有非探测的请求类型，顺序固定
func RequestTypes() []MessageType {
	return []MessageType{
		RequestNetwork, RequestAddress, RequestPublicKey, RequestNFTs, RequestSignMessage,
		SendPayment, SetTrustline, MintNFT, CreateNFTOffer, CancelNFTOffer, AcceptNFTOffer,
		BurnNFT, SetAccount, CreateOffer, CancelOffer, SetRegularKey, DeleteAccount,
		SignTransaction, SubmitTransaction, SubmitBulkTransactions,
	}
}
