package sale

import (
	"fmt"

	"github.com/Mohsinsiddi/w3sale/internal/amount"
	"github.com/shopspring/decimal"
)

// ComputeTokenAmount is raw * rate, exact.
func ComputeTokenAmount(raw decimal.Decimal, rate int64) decimal.Decimal {
	return amount.MulRate(raw, rate)
}

// ClampResult is the outcome of ClampToLimits.
type ClampResult struct {
	Tokens  decimal.Decimal
	Raw     decimal.Decimal
	Clamped bool
	Limit   Limit
}

// ClampToLimits lowers proposed (sale-token units) to what the sale still
// admits: first the remaining total cap, then the caller's remaining
// individual cap. A clamped result back-derives Raw = Tokens / rate rounded
// down to the payment token's precision and recomputes Tokens = Raw * rate,
// so the pair stays exact and feeding Tokens back in is a fixed point.
func ClampToLimits(proposed decimal.Decimal, c Counters, p Parameters) ClampResult {
	proposed = nonNegative(proposed)
	places := int32(p.Decimals)

	target, limit := proposed, LimitNone
	if remaining := p.RemainingCap(c); target.GreaterThan(remaining) {
		target, limit = remaining, LimitTotalCap
	}
	if remaining, ok := p.RemainingIndividual(c); ok && target.GreaterThan(remaining) {
		target, limit = remaining, LimitIndividualCap
	}

	raw := amount.DivRate(target, p.Rate, places)
	if limit == LimitNone {
		return ClampResult{Tokens: proposed, Raw: raw}
	}
	return ClampResult{
		Tokens:  ComputeTokenAmount(raw, p.Rate),
		Raw:     raw,
		Clamped: true,
		Limit:   limit,
	}
}

// NewIntent derives the token amount for raw and clamps it against the
// counters. Raw is truncated to the payment token's precision first.
func NewIntent(raw decimal.Decimal, c Counters, p Parameters) Intent {
	raw = nonNegative(raw).Truncate(int32(p.Decimals))
	tokens := ComputeTokenAmount(raw, p.Rate)

	res := ClampToLimits(tokens, c, p)
	if !res.Clamped {
		return Intent{Raw: raw, Tokens: tokens}
	}
	return Intent{Raw: res.Raw, Tokens: res.Tokens, Clamped: true, Limit: res.Limit}
}

// ValidateForSubmit checks raw against fresh counters. It returns nil or a
// *ValidationError. Checks run in the order the user can act on them.
func ValidateForSubmit(raw decimal.Decimal, c Counters, p Parameters) error {
	if raw.Sign() <= 0 {
		return invalid(ErrEmptyAmount, "Select an amount to buy")
	}
	if raw.GreaterThan(c.PaymentBalance) {
		return invalid(ErrInsufficientBalance,
			fmt.Sprintf("Insufficient %s balance", symbolOr(p.PaymentSymbol, "payment token")))
	}
	if p.MinimumPurchase.IsPositive() && raw.LessThan(p.MinimumPurchase) {
		return invalid(ErrBelowMinimum,
			fmt.Sprintf("Minimum purchase amount is %s %s",
				amount.Format(p.MinimumTokens()), symbolOr(p.TokenSymbol, "tokens")))
	}
	if !c.IsOpen {
		return invalid(ErrSaleClosed, "Crowdsale not open")
	}

	tokens := ComputeTokenAmount(raw, p.Rate)
	if remaining := p.RemainingCap(c); tokens.GreaterThan(remaining) {
		return invalid(ErrCapExceeded,
			fmt.Sprintf("Only %s %s left in this sale", amount.Format(remaining), symbolOr(p.TokenSymbol, "tokens")))
	}
	if remaining, ok := p.RemainingIndividual(c); ok && tokens.GreaterThan(remaining) {
		return invalid(ErrCapExceeded,
			fmt.Sprintf("You can buy at most %s more %s", amount.Format(remaining), symbolOr(p.TokenSymbol, "tokens")))
	}
	return nil
}

// MaxAmount is the largest raw amount the caller can submit right now: the
// whole payment balance, clamped to the caps.
func MaxAmount(c Counters, p Parameters) Intent {
	return NewIntent(c.PaymentBalance, c, p)
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	return amount.NonNegative(d)
}

func symbolOr(sym, fallback string) string {
	if sym == "" {
		return fallback
	}
	return sym
}
