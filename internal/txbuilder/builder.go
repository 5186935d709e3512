package txbuilder

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"gemwallet/internal/protocol"
)

func hexUpper(s string) string {
	return strings.ToUpper(hex.EncodeToString([]byte(s)))
}

// base 公共字段：TransactionType 和 Account 总是写入，其余只在请求里给了才写
func base(kind, account string, b protocol.BaseTransactionRequest) Transaction {
	tx := Transaction{
		"TransactionType": kind,
		"Account":         account,
	}
	if b.Fee != "" {
		tx["Fee"] = b.Fee
	}
	if b.Sequence != nil {
		tx["Sequence"] = *b.Sequence
	}
	if b.AccountTxnID != "" {
		tx["AccountTxnID"] = b.AccountTxnID
	}
	if b.LastLedgerSequence != nil {
		tx["LastLedgerSequence"] = *b.LastLedgerSequence
	}
	if len(b.Memos) > 0 {
		memos := make([]any, 0, len(b.Memos))
		for _, m := range b.Memos {
			fields := map[string]any{}
			if m.Memo.MemoType != "" {
				fields["MemoType"] = hexUpper(m.Memo.MemoType)
			}
			if m.Memo.MemoData != "" {
				fields["MemoData"] = hexUpper(m.Memo.MemoData)
			}
			if m.Memo.MemoFormat != "" {
				fields["MemoFormat"] = hexUpper(m.Memo.MemoFormat)
			}
			memos = append(memos, map[string]any{"Memo": fields})
		}
		tx["Memos"] = memos
	}
	if len(b.Signers) > 0 {
		signers := make([]any, 0, len(b.Signers))
		for _, s := range b.Signers {
			signers = append(signers, map[string]any{"Signer": map[string]any{
				"Account":       s.Signer.Account,
				"TxnSignature":  s.Signer.TxnSignature,
				"SigningPubKey": s.Signer.SigningPubKey,
			}})
		}
		tx["Signers"] = signers
	}
	if b.SourceTag != nil {
		tx["SourceTag"] = *b.SourceTag
	}
	if b.SigningPubKey != "" {
		tx["SigningPubKey"] = b.SigningPubKey
	}
	if b.TicketSequence != nil {
		tx["TicketSequence"] = *b.TicketSequence
	}
	if b.TxnSignature != "" {
		tx["TxnSignature"] = b.TxnSignature
	}
	if b.NetworkID != nil {
		tx["NetworkID"] = *b.NetworkID
	}
	return tx
}

func setFlags(tx Transaction, f *protocol.Flags) error {
	mask, ok, err := NormalizeFlags(tx.Type(), f)
	if err != nil {
		return err
	}
	if ok {
		tx["Flags"] = mask
	}
	return nil
}

func setAmount(tx Transaction, field string, a protocol.Amount) error {
	v, err := amountValue(a)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	tx[field] = v
	return nil
}

func setUint32(tx Transaction, field string, v *uint32) {
	if v != nil {
		tx[field] = *v
	}
}

func setString(tx Transaction, field, v string) {
	if v != "" {
		tx[field] = v
	}
}

func BuildPayment(account string, req protocol.PaymentRequest) (Transaction, error) {
	tx := base(TypePayment, account, req.BaseTransactionRequest)
	if err := setAmount(tx, "Amount", req.Amount); err != nil {
		return nil, err
	}
	tx["Destination"] = req.Destination
	setUint32(tx, "DestinationTag", req.DestinationTag)
	if err := setFlags(tx, req.Flags); err != nil {
		return nil, err
	}
	return tx, nil
}

func BuildTrustSet(account string, req protocol.TrustlineRequest) (Transaction, error) {
	tx := base(TypeTrustSet, account, req.BaseTransactionRequest)
	if err := setAmount(tx, "LimitAmount", req.LimitAmount); err != nil {
		return nil, err
	}
	setUint32(tx, "QualityIn", req.QualityIn)
	setUint32(tx, "QualityOut", req.QualityOut)
	if err := setFlags(tx, req.Flags); err != nil {
		return nil, err
	}
	return tx, nil
}

func BuildNFTokenMint(account string, req protocol.MintNFTRequest) (Transaction, error) {
	tx := base(TypeNFTokenMint, account, req.BaseTransactionRequest)
	tx["NFTokenTaxon"] = req.NFTokenTaxon
	setString(tx, "Issuer", req.Issuer)
	if req.TransferFee != nil {
		tx["TransferFee"] = *req.TransferFee
	}
	if req.URI != "" {
		tx["URI"] = hexUpper(req.URI)
	}
	if err := setFlags(tx, req.Flags); err != nil {
		return nil, err
	}
	return tx, nil
}

func BuildNFTokenCreateOffer(account string, req protocol.CreateNFTOfferRequest) (Transaction, error) {
	tx := base(TypeNFTokenCreateOffer, account, req.BaseTransactionRequest)
	tx["NFTokenID"] = req.NFTokenID
	if err := setAmount(tx, "Amount", req.Amount); err != nil {
		return nil, err
	}
	setString(tx, "Owner", req.Owner)
	setUint32(tx, "Expiration", req.Expiration)
	setString(tx, "Destination", req.Destination)
	if err := setFlags(tx, req.Flags); err != nil {
		return nil, err
	}
	return tx, nil
}

func BuildNFTokenCancelOffer(account string, req protocol.CancelNFTOfferRequest) (Transaction, error) {
	tx := base(TypeNFTokenCancelOffer, account, req.BaseTransactionRequest)
	offers := make([]any, len(req.NFTokenOffers))
	for i, o := range req.NFTokenOffers {
		offers[i] = o
	}
	tx["NFTokenOffers"] = offers
	return tx, nil
}

func BuildNFTokenAcceptOffer(account string, req protocol.AcceptNFTOfferRequest) (Transaction, error) {
	tx := base(TypeNFTokenAcceptOffer, account, req.BaseTransactionRequest)
	setString(tx, "NFTokenSellOffer", req.NFTokenSellOffer)
	setString(tx, "NFTokenBuyOffer", req.NFTokenBuyOffer)
	if req.NFTokenBrokerFee != nil {
		if err := setAmount(tx, "NFTokenBrokerFee", *req.NFTokenBrokerFee); err != nil {
			return nil, err
		}
	}
	return tx, nil
}

func BuildNFTokenBurn(account string, req protocol.BurnNFTRequest) (Transaction, error) {
	tx := base(TypeNFTokenBurn, account, req.BaseTransactionRequest)
	tx["NFTokenID"] = req.NFTokenID
	setString(tx, "Owner", req.Owner)
	return tx, nil
}

func BuildSetRegularKey(account string, req protocol.SetRegularKeyRequest) (Transaction, error) {
	tx := base(TypeSetRegularKey, account, req.BaseTransactionRequest)
	setString(tx, "RegularKey", req.RegularKey)
	return tx, nil
}

func BuildAccountSet(account string, req protocol.SetAccountRequest) (Transaction, error) {
	tx := base(TypeAccountSet, account, req.BaseTransactionRequest)
	setUint32(tx, "ClearFlag", req.ClearFlag)
	setUint32(tx, "SetFlag", req.SetFlag)
	if req.Domain != "" {
		tx["Domain"] = hexUpper(req.Domain)
	}
	setString(tx, "EmailHash", req.EmailHash)
	setString(tx, "MessageKey", req.MessageKey)
	setString(tx, "NFTokenMinter", req.NFTokenMinter)
	setUint32(tx, "TransferRate", req.TransferRate)
	if req.TickSize != nil {
		tx["TickSize"] = *req.TickSize
	}
	if err := setFlags(tx, req.Flags); err != nil {
		return nil, err
	}
	return tx, nil
}

func BuildOfferCreate(account string, req protocol.CreateOfferRequest) (Transaction, error) {
	tx := base(TypeOfferCreate, account, req.BaseTransactionRequest)
	if err := setAmount(tx, "TakerGets", req.TakerGets); err != nil {
		return nil, err
	}
	if err := setAmount(tx, "TakerPays", req.TakerPays); err != nil {
		return nil, err
	}
	setUint32(tx, "Expiration", req.Expiration)
	setUint32(tx, "OfferSequence", req.OfferSequence)
	if err := setFlags(tx, req.Flags); err != nil {
		return nil, err
	}
	return tx, nil
}

func BuildOfferCancel(account string, req protocol.CancelOfferRequest) (Transaction, error) {
	tx := base(TypeOfferCancel, account, req.BaseTransactionRequest)
	tx["OfferSequence"] = req.OfferSequence
	return tx, nil
}

func BuildAccountDelete(account string, req protocol.DeleteAccountRequest) (Transaction, error) {
	tx := base(TypeAccountDelete, account, req.BaseTransactionRequest)
	tx["Destination"] = req.Destination
	setUint32(tx, "DestinationTag", req.DestinationTag)
	return tx, nil
}

// DecodeRequest 按消息类型解出对应的请求结构体 (指针)，用于校验和构建
func DecodeRequest(t protocol.MessageType, payload json.RawMessage) (any, error) {
	var req any
	switch t {
	case protocol.SendPayment:
		req = &protocol.PaymentRequest{}
	case protocol.SetTrustline:
		req = &protocol.TrustlineRequest{}
	case protocol.MintNFT:
		req = &protocol.MintNFTRequest{}
	case protocol.CreateNFTOffer:
		req = &protocol.CreateNFTOfferRequest{}
	case protocol.CancelNFTOffer:
		req = &protocol.CancelNFTOfferRequest{}
	case protocol.AcceptNFTOffer:
		req = &protocol.AcceptNFTOfferRequest{}
	case protocol.BurnNFT:
		req = &protocol.BurnNFTRequest{}
	case protocol.SetAccount:
		req = &protocol.SetAccountRequest{}
	case protocol.CreateOffer:
		req = &protocol.CreateOfferRequest{}
	case protocol.CancelOffer:
		req = &protocol.CancelOfferRequest{}
	case protocol.SetRegularKey:
		req = &protocol.SetRegularKeyRequest{}
	case protocol.DeleteAccount:
		req = &protocol.DeleteAccountRequest{}
	default:
		return nil, fmt.Errorf("%w: %s", protocol.ErrUnknownType, t)
	}
	if err := protocol.DecodePayload(payload, req); err != nil {
		return nil, err
	}
	return req, nil
}

// Build 把 DecodeRequest 的结果构建成交易
func Build(account string, req any) (Transaction, error) {
	switch r := req.(type) {
	case *protocol.PaymentRequest:
		return BuildPayment(account, *r)
	case *protocol.TrustlineRequest:
		return BuildTrustSet(account, *r)
	case *protocol.MintNFTRequest:
		return BuildNFTokenMint(account, *r)
	case *protocol.CreateNFTOfferRequest:
		return BuildNFTokenCreateOffer(account, *r)
	case *protocol.CancelNFTOfferRequest:
		return BuildNFTokenCancelOffer(account, *r)
	case *protocol.AcceptNFTOfferRequest:
		return BuildNFTokenAcceptOffer(account, *r)
	case *protocol.BurnNFTRequest:
		return BuildNFTokenBurn(account, *r)
	case *protocol.SetRegularKeyRequest:
		return BuildSetRegularKey(account, *r)
	case *protocol.SetAccountRequest:
		return BuildAccountSet(account, *r)
	case *protocol.CreateOfferRequest:
		return BuildOfferCreate(account, *r)
	case *protocol.CancelOfferRequest:
		return BuildOfferCancel(account, *r)
	case *protocol.DeleteAccountRequest:
		return BuildAccountDelete(account, *r)
	}
	return nil, fmt.Errorf("txbuilder: unsupported request %T", req)
}
