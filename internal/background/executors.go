package background

import (
	"context"
	"fmt"
	"strings"

	"gemwallet/internal/ledger"
	"gemwallet/internal/network"
	"gemwallet/internal/protocol"
	"gemwallet/internal/submission"
	"gemwallet/internal/txbuilder"
	"gemwallet/internal/wallet"
	"gemwallet/pkg/errno"
)

func (s *Service) shareNFTs(addr string, req protocol.GetNFTsRequest) runFunc {
	return func(ctx context.Context, _ *entry) (protocol.Result, error) {
		page, err := s.ledger().GetNFTs(ctx, addr, req.Limit, req.Marker)
		if err != nil {
			return protocol.Result{}, err
		}
		return protocol.Result{NFTs: page}, nil
	}
}

// checkNetwork 显式指定了 NetworkID 的交易必须发往当前连接的网络
func (s *Service) checkNetwork(ctx context.Context, txs ...txbuilder.Transaction) error {
	n := s.networks.Current()
	want := n.NetworkID
	resolved := n.Name != network.Custom
	for i, tx := range txs {
		id, ok := tx.NetworkID()
		if !ok {
			continue
		}
		if !resolved {
			// 自定义节点的 network id 只能问节点
			got, err := s.ledger().NetworkID(ctx)
			if err != nil {
				return err
			}
			want, resolved = got, true
		}
		if id != want {
			return errno.ErrWrongNetwork.WithMessage(fmt.Sprintf(
				"transaction %d targets NetworkID %d but the connected network is %d", i, id, want))
		}
	}
	return nil
}

func (s *Service) signTransaction(acct *wallet.Account, tx txbuilder.Transaction) runFunc {
	return func(ctx context.Context, e *entry) (protocol.Result, error) {
		if err := s.checkNetwork(ctx, tx); err != nil {
			return protocol.Result{}, err
		}
		filled, err := s.ledger().Autofill(ctx, e.withOverride(tx))
		if err != nil {
			return protocol.Result{}, err
		}
		signed, err := acct.SignTransaction(filled)
		if err != nil {
			return protocol.Result{}, err
		}
		return protocol.Result{Signature: signed.TxBlob, Hash: signed.Hash}, nil
	}
}

func (s *Service) submitTransaction(acct *wallet.Account, tx txbuilder.Transaction) runFunc {
	return func(ctx context.Context, e *entry) (protocol.Result, error) {
		if err := s.checkNetwork(ctx, tx); err != nil {
			return protocol.Result{}, err
		}
		res, err := s.ledger().SubmitAndWait(ctx, e.withOverride(tx), acct)
		if err != nil {
			return protocol.Result{}, err
		}
		if !res.Success() {
			return protocol.Result{Hash: res.Hash}, &submission.ResultCodeError{Code: res.Result}
		}
		return protocol.Result{Hash: res.Hash}, nil
	}
}

// submitBulk 按顺序逐笔提交。abort 模式在第一笔失败后停止，已处理的结果仍然返回
func (s *Service) submitBulk(acct *wallet.Account, txs []txbuilder.Transaction, req protocol.BulkTransactionsRequest) runFunc {
	return func(ctx context.Context, _ *entry) (protocol.Result, error) {
		if err := s.checkNetwork(ctx, txs...); err != nil {
			return protocol.Result{}, err
		}
		l := s.ledger()
		items := make([]protocol.BulkItemResult, 0, len(txs))
		for i, tx := range txs {
			item := submitItem(ctx, l, acct, i, tx, req.WaitForHashes)
			items = append(items, item)
			if !item.Accepted && !req.ContinueOnError() {
				return protocol.Result{Transactions: items}, errno.ErrSubmissionRejected.WithMessage(
					fmt.Sprintf("transaction %d failed: %s", i, item.Error))
			}
		}
		return protocol.Result{Transactions: items}, nil
	}
}

func submitItem(ctx context.Context, l Ledger, signer ledger.Signer, i int, tx txbuilder.Transaction, wait bool) protocol.BulkItemResult {
	item := protocol.BulkItemResult{ID: i}
	if wait {
		res, err := l.SubmitAndWait(ctx, tx, signer)
		switch {
		case err != nil:
			item.Error = userMessage(err)
		case !res.Success():
			item.Hash = res.Hash
			item.Error = res.Result
		default:
			item.Accepted = true
			item.Hash = res.Hash
		}
		return item
	}

	signed, res, err := l.SignAndSubmit(ctx, tx, signer)
	if err != nil {
		item.Error = userMessage(err)
		return item
	}
	item.Hash = signed.Hash
	if res.Accepted || strings.HasPrefix(res.EngineResult, "tes") {
		item.Accepted = true
		return item
	}
	item.Error = res.EngineResult
	return item
}
