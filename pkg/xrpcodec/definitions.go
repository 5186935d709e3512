package xrpcodec

// 序列化类型代码
const (
	typeUInt16    = 1
	typeUInt32    = 2
	typeUInt64    = 3
	typeHash128   = 4
	typeHash256   = 5
	typeAmount    = 6
	typeBlob      = 7
	typeAccountID = 8
	typeSTObject  = 14
	typeSTArray   = 15
	typeUInt8     = 16
	typeHash160   = 17
	typePathSet   = 18
	typeVector256 = 19
)

const (
	objectEndMarker = 0xE1
	arrayEndMarker  = 0xF1
)

// Field 一个可序列化字段
type Field struct {
	Name string
	Type int
	Nth  int
	// Signing 为 false 的字段不参与签名数据
	Signing bool
}

func (f Field) vl() bool {
	return f.Type == typeBlob || f.Type == typeAccountID || f.Type == typeVector256
}

// sortKey 规范顺序：先按类型代码，再按字段序号
func (f Field) sortKey() int {
	return f.Type<<16 | f.Nth
}

// header 字段 ID 的 1~3 字节编码
func (f Field) header() []byte {
	switch {
	case f.Type < 16 && f.Nth < 16:
		return []byte{byte(f.Type<<4 | f.Nth)}
	case f.Type >= 16 && f.Nth < 16:
		return []byte{byte(f.Nth), byte(f.Type)}
	case f.Type < 16:
		return []byte{byte(f.Type << 4), byte(f.Nth)}
	}
	return []byte{0, byte(f.Type), byte(f.Nth)}
}

var fields = map[string]Field{}

func def(name string, typ, nth int) {
	fields[name] = Field{Name: name, Type: typ, Nth: nth, Signing: true}
}

func init() {
	def("TickSize", typeUInt8, 16)

	def("TransactionType", typeUInt16, 2)
	def("SignerWeight", typeUInt16, 3)
	def("TransferFee", typeUInt16, 4)

	for name, nth := range map[string]int{
		"NetworkID": 1, "Flags": 2, "SourceTag": 3, "Sequence": 4,
		"Expiration": 10, "TransferRate": 11, "DestinationTag": 14,
		"QualityIn": 20, "QualityOut": 21, "OfferSequence": 25,
		"LastLedgerSequence": 27, "SetFlag": 33, "ClearFlag": 34,
		"SignerQuorum": 35, "CancelAfter": 36, "FinishAfter": 37,
		"SettleDelay": 39, "TicketCount": 40, "TicketSequence": 41,
		"NFTokenTaxon": 42,
	} {
		def(name, typeUInt32, nth)
	}

	def("EmailHash", typeHash128, 1)

	for name, nth := range map[string]int{
		"WalletLocator": 7, "AccountTxnID": 9, "NFTokenID": 10,
		"InvoiceID": 17, "Channel": 22, "CheckID": 24,
		"NFTokenBuyOffer": 28, "NFTokenSellOffer": 29,
	} {
		def(name, typeHash256, nth)
	}

	for name, nth := range map[string]int{
		"Amount": 1, "Balance": 2, "LimitAmount": 3, "TakerPays": 4,
		"TakerGets": 5, "Fee": 8, "SendMax": 9, "DeliverMin": 10,
		"NFTokenBrokerFee": 19,
	} {
		def(name, typeAmount, nth)
	}

	for name, nth := range map[string]int{
		"PublicKey": 1, "MessageKey": 2, "SigningPubKey": 3, "TxnSignature": 4,
		"URI": 5, "Signature": 6, "Domain": 7,
		"MemoType": 12, "MemoData": 13, "MemoFormat": 14,
		"Fulfillment": 16, "Condition": 17,
	} {
		def(name, typeBlob, nth)
	}

	for name, nth := range map[string]int{
		"Account": 1, "Owner": 2, "Destination": 3, "Issuer": 4,
		"Authorize": 5, "Unauthorize": 6, "RegularKey": 8, "NFTokenMinter": 9,
	} {
		def(name, typeAccountID, nth)
	}

	def("Memo", typeSTObject, 10)
	def("SignerEntry", typeSTObject, 11)
	def("Signer", typeSTObject, 16)

	def("Signers", typeSTArray, 3)
	def("SignerEntries", typeSTArray, 4)
	def("Memos", typeSTArray, 9)

	def("Paths", typePathSet, 1)
	def("NFTokenOffers", typeVector256, 4)

	// 签名本身和多签列表不在签名数据里
	for _, name := range []string{"TxnSignature", "Signers"} {
		f := fields[name]
		f.Signing = false
		fields[name] = f
	}
}

// LookupField 按字段名查定义
func LookupField(name string) (Field, bool) {
	f, ok := fields[name]
	return f, ok
}

// transactionTypes TransactionType 名称到 UInt16 代码
var transactionTypes = map[string]uint16{
	"Payment":              0,
	"EscrowCreate":         1,
	"EscrowFinish":         2,
	"AccountSet":           3,
	"EscrowCancel":         4,
	"SetRegularKey":        5,
	"OfferCreate":          7,
	"OfferCancel":          8,
	"TicketCreate":         10,
	"SignerListSet":        12,
	"PaymentChannelCreate": 13,
	"PaymentChannelFund":   14,
	"PaymentChannelClaim":  15,
	"CheckCreate":          16,
	"CheckCash":            17,
	"CheckCancel":          18,
	"DepositPreauth":       19,
	"TrustSet":             20,
	"AccountDelete":        21,
	"NFTokenMint":          25,
	"NFTokenBurn":          26,
	"NFTokenCreateOffer":   27,
	"NFTokenCancelOffer":   28,
	"NFTokenAcceptOffer":   29,
	"Clawback":             30,
}

// TransactionTypeCode 可以本地编码的交易类型
func TransactionTypeCode(name string) (uint16, bool) {
	c, ok := transactionTypes[name]
	return c, ok
}
