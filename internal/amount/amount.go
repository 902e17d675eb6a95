// Package amount converts between human-readable token amounts and on-chain
// base units without ever going through floating point.
package amount

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultDecimals is the ERC-20 default used when a token does not say otherwise.
const DefaultDecimals = 18

// ErrInvalidAmount is returned for empty, malformed or negative amounts.
var ErrInvalidAmount = errors.New("invalid amount")

const thousandSeparator = ","

// Parse reads a non-negative decimal string such as "12.5".
func Parse(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %q is negative", ErrInvalidAmount, s)
	}
	return d, nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) decimal.Decimal {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// TruncateInput parses s and drops any fractional digits beyond places.
// An input like "1.0000000000000000001" (19 places) becomes "1".
func TruncateInput(s string, places int32) (decimal.Decimal, error) {
	d, err := Parse(s)
	if err != nil {
		return decimal.Zero, err
	}
	return d.Truncate(places), nil
}

// ToUnits converts a human amount to base units. Digits beyond decimals are
// truncated toward zero so the result never exceeds the human amount.
func ToUnits(d decimal.Decimal, decimals uint8) *big.Int {
	return d.Shift(int32(decimals)).Truncate(0).BigInt()
}

// FromUnits converts base units to a human amount.
func FromUnits(units *big.Int, decimals uint8) decimal.Decimal {
	if units == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(units, -int32(decimals))
}

// MulRate multiplies a payment amount by an integer exchange rate.
func MulRate(d decimal.Decimal, rate int64) decimal.Decimal {
	return d.Mul(decimal.NewFromInt(rate))
}

// DivRate divides a token amount by rate, rounding down to places fractional
// digits. MulRate(DivRate(x, r, p), r) <= x always holds.
func DivRate(d decimal.Decimal, rate int64, places int32) decimal.Decimal {
	if rate <= 0 {
		return decimal.Zero
	}
	q, _ := d.QuoRem(decimal.NewFromInt(rate), places)
	return q
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// NonNegative clamps negative values to zero.
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// WithThousands inserts thousand separators into the integer part:
// "1234567.25" -> "1,234,567.25".
func WithThousands(s string) string {
	if s == "" {
		return ""
	}
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	integer, frac, hasFrac := strings.Cut(s, ".")

	var sb strings.Builder
	for i, r := range integer {
		if i > 0 && (len(integer)-i)%3 == 0 {
			sb.WriteString(thousandSeparator)
		}
		sb.WriteRune(r)
	}
	if hasFrac {
		sb.WriteString("." + frac)
	}
	return sign + sb.String()
}

// Format renders d with thousand separators.
func Format(d decimal.Decimal) string {
	return WithThousands(d.String())
}
