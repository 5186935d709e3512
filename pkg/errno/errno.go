package errno

import "errors"

// Errno defines the error code logic
type Errno struct {
	Code    int
	Message string
}

func (e Errno) Error() string {
	return e.Message
}

// WithMessage 返回携带具体信息的副本，Code 不变
func (e Errno) WithMessage(msg string) Errno {
	return Errno{Code: e.Code, Message: msg}
}

// Is 只比较 Code，这样 WithMessage 之后的副本仍然能被 errors.Is 识别
func (e Errno) Is(target error) bool {
	var t Errno
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// Decode tries to convert an error to Errno
func Decode(err error) (int, string) {
	if err == nil {
		return OK.Code, OK.Message
	}

	var typed Errno
	if errors.As(err, &typed) {
		return typed.Code, typed.Message
	}
	var ptr *Errno
	if errors.As(err, &ptr) && ptr != nil {
		return ptr.Code, ptr.Message
	}
	return InternalServerError.Code, err.Error()
}

// Common Errors
var (
	OK                  = Errno{Code: 0, Message: "Success"}
	InternalServerError = Errno{Code: 10001, Message: "Internal server error"}
	ErrBind             = Errno{Code: 10002, Message: "Error occurred while binding the request body to the struct"}
	ErrDatabase         = Errno{Code: 10004, Message: "Database error"}
)

// Relay / transport errors (20000+)
var (
	ErrExtensionNotInstalled = Errno{Code: 20101, Message: "GemWallet needs to be installed"}
	ErrExtensionUnreachable  = Errno{Code: 20102, Message: "Unable to reach the extension"}
	ErrUserRejected          = Errno{Code: 20103, Message: "The request was rejected by the user"}
	ErrMalformedResponse     = Errno{Code: 20104, Message: "Malformed response from the extension"}
)

// Validation errors (21000+)
var (
	ErrValidation           = Errno{Code: 21001, Message: "Invalid request payload"}
	ErrWrongNetwork         = Errno{Code: 21002, Message: "The transaction targets a different network"}
	ErrMalformedTransaction = Errno{Code: 21003, Message: "Malformed transaction"}
	ErrUnknownFlag          = Errno{Code: 21004, Message: "Unknown transaction flag"}
	ErrInvalidCurrency      = Errno{Code: 21005, Message: "Invalid currency code"}
)

// Ledger errors (22000+)
var (
	ErrLedger             = Errno{Code: 22001, Message: "Something went wrong"}
	ErrFeeEstimation      = Errno{Code: 22002, Message: "Unable to estimate the transaction fee"}
	ErrAccountNotFound    = Errno{Code: 22003, Message: "Account not found"}
	ErrSubmissionRejected = Errno{Code: 22004, Message: "The transaction was rejected by the ledger"}
	ErrInsufficientFunds  = Errno{Code: 22005, Message: "Insufficient funds"}
)

// Confirmation / wallet errors (23000+)
var (
	ErrConfirmationNotFound = Errno{Code: 23001, Message: "Confirmation not found"}
	ErrActionNotAllowed     = Errno{Code: 23002, Message: "Action not allowed in the current state"}
	ErrWalletLocked         = Errno{Code: 23101, Message: "Wallet is locked"}
	ErrWalletNotFound       = Errno{Code: 23102, Message: "Wallet not found"}
	ErrInvalidSecret        = Errno{Code: 23103, Message: "Invalid seed or mnemonic"}
	ErrInvalidPassword      = Errno{Code: 23104, Message: "Invalid password"}
)
