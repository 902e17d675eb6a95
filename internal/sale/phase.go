package sale

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Phase is where a sale sits on its timeline.
type Phase int

const (
	PhaseUpcoming Phase = iota
	PhaseOpen
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseUpcoming:
		return "upcoming"
	case PhaseOpen:
		return "open"
	default:
		return "closed"
	}
}

// PhaseAt places now on the sale's timeline.
func PhaseAt(now time.Time, p Parameters) Phase {
	switch {
	case now.Before(p.OpeningTime):
		return PhaseUpcoming
	case p.ClosingTime.IsZero() || now.Before(p.ClosingTime):
		return PhaseOpen
	default:
		return PhaseClosed
	}
}

// Countdown formats the time left until end as "1d 4h 2m 9s". Leading zero
// units are dropped; inner zero units are kept ("1d 0h 0m 5s"). Returns ""
// once end has passed.
func Countdown(now, end time.Time) string {
	left := end.Sub(now)
	if left <= 0 {
		return ""
	}
	secs := int64(left / time.Second)
	units := []struct {
		value int64
		label string
	}{
		{secs / 86400, "d"},
		{secs / 3600 % 24, "h"},
		{secs / 60 % 60, "m"},
		{secs % 60, "s"},
	}

	var parts []string
	for _, u := range units {
		if len(parts) == 0 && u.value == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%d%s", u.value, u.label))
	}
	if len(parts) == 0 {
		return "0s"
	}
	return strings.Join(parts, " ")
}

// Progress is sold / total as a fraction in [0, 1], rounded down to 4 places.
func Progress(sold, total decimal.Decimal) decimal.Decimal {
	if !total.IsPositive() {
		return decimal.Zero
	}
	q, _ := sold.QuoRem(total, 4)
	if q.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	return nonNegative(q)
}

// GoalReached reports whether sold has met the soft goal.
func GoalReached(sold decimal.Decimal, p Parameters) bool {
	return p.Goal.IsPositive() && sold.GreaterThanOrEqual(p.Goal)
}
