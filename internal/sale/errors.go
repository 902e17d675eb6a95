package sale

import "errors"

// ErrValidation wraps every reason an amount is refused before reaching the chain.
var ErrValidation = errors.New("validation failed")

// Validation reasons.
var (
	ErrEmptyAmount         = errors.New("select an amount to buy")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrBelowMinimum        = errors.New("below minimum purchase")
	ErrSaleClosed          = errors.New("crowdsale not open")
	ErrCapExceeded         = errors.New("purchase exceeds remaining cap")
)

// Transaction-layer errors. All of them are recoverable: the orchestrator
// refreshes counters and returns to Idle before surfacing them.
var (
	// ErrStaleCounters means the contract refused a purchase the local
	// counters allowed, typically because another buyer filled the cap first.
	ErrStaleCounters = errors.New("sale state changed since last refresh")
	// ErrTransactionReverted means a mined transaction failed.
	ErrTransactionReverted = errors.New("transaction reverted")
	// ErrUnexpectedProvider covers any wallet failure without a known meaning.
	ErrUnexpectedProvider = errors.New("unexpected wallet error")
)

// Orchestrator guard errors.
var (
	ErrBusy          = errors.New("a purchase is already in progress")
	ErrNotConnected  = errors.New("wallet not connected to the sale network")
	ErrWalletChanged = errors.New("wallet account or network changed during purchase")
)

// ValidationError carries a reason sentinel and a user-facing message.
// errors.Is matches both ErrValidation and the reason.
type ValidationError struct {
	Reason  error
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Reason.Error()
}

func (e *ValidationError) Unwrap() []error {
	return []error{ErrValidation, e.Reason}
}

func invalid(reason error, msg string) error {
	return &ValidationError{Reason: reason, Message: msg}
}
