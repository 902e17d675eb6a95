// Package sale holds the crowdsale purchase core: pure validation and
// clamping, the counters synchronizer, and the approve/buy orchestrator.
package sale

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Parameters is the immutable description of one crowdsale.
type Parameters struct {
	Sale         common.Address
	Token        common.Address
	PaymentToken common.Address

	TokenSymbol   string
	PaymentSymbol string
	// Decimals is shared by the sale token and the payment token.
	Decimals uint8

	// Rate is sale tokens per unit of payment token.
	Rate int64
	// TotalCap, IndividualCap and Goal are in sale-token units.
	// IndividualCap == 0 means unlimited.
	TotalCap      decimal.Decimal
	IndividualCap decimal.Decimal
	Goal          decimal.Decimal
	// MinimumPurchase is in payment-token units; 0 means unlimited.
	MinimumPurchase decimal.Decimal

	OpeningTime time.Time
	ClosingTime time.Time
}

// Validate checks the structural relations a deployed sale always satisfies.
func (p Parameters) Validate() error {
	var errs []error
	if p.Rate <= 0 {
		errs = append(errs, fmt.Errorf("rate must be positive, got %d", p.Rate))
	}
	if p.TotalCap.Sign() <= 0 {
		errs = append(errs, errors.New("cap must be positive"))
	}
	if p.IndividualCap.IsNegative() || p.IndividualCap.GreaterThan(p.TotalCap) {
		errs = append(errs, errors.New("individual cap must be between 0 and cap"))
	}
	if p.Goal.GreaterThan(p.TotalCap) {
		errs = append(errs, errors.New("goal exceeds cap"))
	}
	if p.MinimumPurchase.IsNegative() {
		errs = append(errs, errors.New("minimum purchase is negative"))
	}
	if !p.ClosingTime.IsZero() && !p.ClosingTime.After(p.OpeningTime) {
		errs = append(errs, errors.New("closing time must be after opening time"))
	}
	return errors.Join(errs...)
}

// RemainingCap is TotalCap - totalSold, floored at zero.
func (p Parameters) RemainingCap(c Counters) decimal.Decimal {
	return nonNegative(p.TotalCap.Sub(c.TotalSold))
}

// RemainingIndividual is IndividualCap - contribution, floored at zero. ok is
// false when the sale has no individual cap.
func (p Parameters) RemainingIndividual(c Counters) (remaining decimal.Decimal, ok bool) {
	if !p.IndividualCap.IsPositive() {
		return decimal.Zero, false
	}
	return nonNegative(p.IndividualCap.Sub(c.Contribution)), true
}

// MinimumTokens is the minimum purchase expressed in sale tokens.
func (p Parameters) MinimumTokens() decimal.Decimal {
	return ComputeTokenAmount(p.MinimumPurchase, p.Rate)
}

// Counters is a point-in-time snapshot of on-chain values for one account.
// Values are never mutated in place; Refresh returns a new snapshot.
type Counters struct {
	Account          common.Address
	IsOpen           bool
	TotalSold        decimal.Decimal
	Contribution     decimal.Decimal
	PaymentBalance   decimal.Decimal
	PaymentAllowance decimal.Decimal
	RefreshedAt      time.Time
}

// Limit names the constraint that clamped an amount.
type Limit int

const (
	LimitNone Limit = iota
	LimitTotalCap
	LimitIndividualCap
)

func (l Limit) String() string {
	switch l {
	case LimitTotalCap:
		return "remaining sale cap"
	case LimitIndividualCap:
		return "individual cap"
	default:
		return "none"
	}
}

// Intent is a purchase the user is composing. Tokens == Raw * Rate always.
type Intent struct {
	Raw     decimal.Decimal // payment-token units
	Tokens  decimal.Decimal // sale-token units
	Clamped bool
	Limit   Limit
}

// TxKind distinguishes the two transactions of a purchase.
type TxKind string

const (
	TxApproval TxKind = "approval"
	TxPurchase TxKind = "purchase"
)

// TransactionRecord tracks a submitted transaction. Confirmed flips once and
// only after the chain confirms it.
type TransactionRecord struct {
	Kind      TxKind
	Hash      common.Hash
	Amount    decimal.Decimal
	Confirmed bool
	Reverted  bool
	Submitted time.Time
}
