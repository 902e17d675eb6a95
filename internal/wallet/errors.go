package wallet

import (
	"errors"
	"fmt"
)

// EIP-1193 / JSON-RPC error codes wallets report.
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupportedMethod = 4200
	CodeDisconnected      = 4900
	CodeUnrecognizedChain = 4902
	CodeRequestPending    = -32002
	CodeInternal          = -32603
	CodeExecutionReverted = 3
)

// Errors.
var (
	ErrWalletNotFound = errors.New("wallet not found")
	ErrWalletExists   = errors.New("wallet already exists")
	ErrInvalidKey     = errors.New("invalid private key")

	// ErrProviderAbsent means no wallet could be detected for this session.
	ErrProviderAbsent = errors.New("no wallet provider found")
	// ErrConnectionPending means a wallet prompt is already open. It is
	// benign: the user should finish the open prompt.
	ErrConnectionPending = errors.New("a wallet request is already pending")
	// ErrUnrecognizedNetwork means the wallet does not know the chain yet.
	ErrUnrecognizedNetwork = errors.New("wallet does not recognize the network")
	// ErrUserRejected means the user declined a prompt.
	ErrUserRejected = errors.New("user rejected the request")
	// ErrUnauthorized means the account has not been authorized yet.
	ErrUnauthorized = errors.New("account not authorized")
	// ErrExecutionReverted means the wallet refused a tx because it would revert.
	ErrExecutionReverted = errors.New("execution reverted")
)

// ProviderError is an error reported by a wallet provider.
type ProviderError struct {
	Code    int
	Message string
	Data    interface{}
}

// NewProviderError builds a ProviderError with the conventional message for code.
func NewProviderError(code int, msg string) *ProviderError {
	return &ProviderError{Code: code, Message: msg}
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("wallet error %d: %s", e.Code, e.Message)
}

// Is maps provider codes onto the package sentinels.
func (e *ProviderError) Is(target error) bool {
	switch target {
	case ErrUserRejected:
		return e.Code == CodeUserRejected
	case ErrUnauthorized:
		return e.Code == CodeUnauthorized
	case ErrUnrecognizedNetwork:
		return e.Code == CodeUnrecognizedChain
	case ErrConnectionPending:
		return e.Code == CodeRequestPending
	case ErrExecutionReverted:
		return e.Code == CodeExecutionReverted
	}
	return false
}

// ErrorCode implements go-ethereum's rpc.Error.
func (e *ProviderError) ErrorCode() int { return e.Code }

// ErrorData implements go-ethereum's rpc.DataError.
func (e *ProviderError) ErrorData() interface{} { return e.Data }

// IsBenign reports whether err needs only a user instruction, not a failure.
func IsBenign(err error) bool {
	return errors.Is(err, ErrConnectionPending)
}
