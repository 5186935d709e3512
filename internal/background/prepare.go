package background

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"gemwallet/internal/fee"
	"gemwallet/internal/protocol"
	"gemwallet/internal/submission"
	"gemwallet/internal/txbuilder"
	"gemwallet/internal/wallet"
	"gemwallet/pkg/errno"
	"gemwallet/pkg/validator"
)

type runFunc func(ctx context.Context, e *entry) (protocol.Result, error)

// prepared 已通过校验的请求
type prepared struct {
	account *wallet.Account
	txs     []txbuilder.Transaction
	// gated 确认前需要通过手续费 / 储备检查
	gated bool
	run   runFunc
}

// entry 进行中的确认及其手续费状态
type entry struct {
	conf    *submission.Confirmation
	account *wallet.Account
	txs     []txbuilder.Transaction
	gated   bool
	watcher *fee.Watcher

	mu       sync.Mutex
	override string
}

func (e *entry) feeOverride() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.override
}

func (e *entry) setFeeOverride(drops string) {
	e.mu.Lock()
	e.override = drops
	e.mu.Unlock()
}

// withOverride 单笔交易使用用户给定的手续费
func (e *entry) withOverride(tx txbuilder.Transaction) txbuilder.Transaction {
	override := e.feeOverride()
	if override == "" {
		return tx
	}
	cp := tx.Clone()
	cp["Fee"] = override
	return cp
}

// invalid 统一成 errno，保留完整的错误信息
func invalid(err error) error {
	var e errno.Errno
	if errors.As(err, &e) {
		return e.WithMessage(err.Error())
	}
	if validator.IsValidationError(err) {
		return errno.ErrValidation.WithMessage(validator.GetErrorMsg(err))
	}
	return errno.ErrValidation.WithMessage(fmt.Sprintf("invalid payload: %v", err))
}

// decode 解码并校验 payload
func decode(raw json.RawMessage, v any) error {
	if err := protocol.DecodePayload(raw, v); err != nil {
		return invalid(err)
	}
	if err := validator.Struct(v); err != nil {
		return invalid(err)
	}
	return nil
}

// userMessage 返回给页面的错误文案
func userMessage(err error) string {
	var e errno.Errno
	if errors.As(err, &e) {
		return e.Message
	}
	return submission.GenericFailure
}

func (s *Service) prepare(msg protocol.RuntimeMessage) (*prepared, error) {
	acct, err := s.wallets.Current()
	if err != nil {
		return nil, err
	}
	addr := acct.Address()

	switch msg.Type {
	case protocol.RequestAddress:
		return &prepared{account: acct, run: func(context.Context, *entry) (protocol.Result, error) {
			return protocol.Result{Address: addr}, nil
		}}, nil

	case protocol.RequestPublicKey:
		pub := acct.PublicKey()
		return &prepared{account: acct, run: func(context.Context, *entry) (protocol.Result, error) {
			return protocol.Result{Address: addr, PublicKey: pub}, nil
		}}, nil

	case protocol.RequestNFTs:
		var req protocol.GetNFTsRequest
		if err := decode(msg.Payload, &req); err != nil {
			return nil, err
		}
		return &prepared{account: acct, run: s.shareNFTs(addr, req)}, nil

	case protocol.RequestSignMessage:
		var req protocol.SignMessageRequest
		if err := decode(msg.Payload, &req); err != nil {
			return nil, err
		}
		message := req.Message
		if req.IsHex {
			b, err := hex.DecodeString(req.Message)
			if err != nil {
				return nil, errno.ErrValidation.WithMessage("message is not valid hex")
			}
			message = string(b)
		}
		return &prepared{account: acct, run: func(context.Context, *entry) (protocol.Result, error) {
			return protocol.Result{SignedMessage: acct.SignMessage(message)}, nil
		}}, nil

	case protocol.SignTransaction, protocol.SubmitTransaction:
		var req protocol.RawTransactionRequest
		if err := decode(msg.Payload, &req); err != nil {
			return nil, err
		}
		tx, err := txbuilder.Parse(req.Transaction)
		if err != nil {
			return nil, invalid(err)
		}
		tx = tx.WithAccount(addr)
		if msg.Type == protocol.SignTransaction {
			return &prepared{account: acct, txs: []txbuilder.Transaction{tx}, run: s.signTransaction(acct, tx)}, nil
		}
		return &prepared{account: acct, txs: []txbuilder.Transaction{tx}, gated: true, run: s.submitTransaction(acct, tx)}, nil

	case protocol.SubmitBulkTransactions:
		var req protocol.BulkTransactionsRequest
		if err := decode(msg.Payload, &req); err != nil {
			return nil, err
		}
		txs, err := txbuilder.ParseAll(req.Transactions)
		if err != nil {
			return nil, invalid(err)
		}
		for i := range txs {
			txs[i] = txs[i].WithAccount(addr)
		}
		return &prepared{account: acct, txs: txs, gated: true, run: s.submitBulk(acct, txs, req)}, nil
	}

	body, err := txbuilder.DecodeRequest(msg.Type, msg.Payload)
	if err != nil {
		return nil, invalid(err)
	}
	if err := validator.Struct(body); err != nil {
		return nil, invalid(err)
	}
	tx, err := txbuilder.Build(addr, body)
	if err != nil {
		return nil, invalid(err)
	}
	return &prepared{account: acct, txs: []txbuilder.Transaction{tx}, gated: true, run: s.submitTransaction(acct, tx)}, nil
}
