package txbuilder

import (
	"encoding/hex"
	"strings"

	"gemwallet/pkg/errno"
	"gemwallet/pkg/xrpcodec"
)

// Signer 持有私钥的一方，PublicKey 为大写 hex
type Signer interface {
	PublicKey() string
	Sign(data []byte) []byte
}

// Signed 本地签名的结果
type Signed struct {
	TxBlob      string
	Hash        string
	Transaction Transaction
}

// Sign 在本地对交易做单签：写入 SigningPubKey 和 TxnSignature 后序列化。
// 已带 Signers 的多签交易只做序列化。tx 本身不被修改
func Sign(tx Transaction, s Signer) (*Signed, error) {
	out := tx.Clone()
	if fee := out.Fee(); fee != "" {
		out["Fee"] = fee
	}
	delete(out, "TxnSignature")

	if signers, ok := out["Signers"].([]any); ok && len(signers) > 0 {
		out["SigningPubKey"] = ""
	} else {
		delete(out, "Signers")
		out["SigningPubKey"] = s.PublicKey()
		data, err := xrpcodec.EncodeForSigning(out)
		if err != nil {
			return nil, errno.ErrMalformedTransaction.WithMessage(err.Error())
		}
		out["TxnSignature"] = strings.ToUpper(hex.EncodeToString(s.Sign(data)))
	}

	blob, err := xrpcodec.Encode(out)
	if err != nil {
		return nil, errno.ErrMalformedTransaction.WithMessage(err.Error())
	}
	return &Signed{
		TxBlob:      strings.ToUpper(hex.EncodeToString(blob)),
		Hash:        xrpcodec.TransactionID(blob),
		Transaction: out,
	}, nil
}
