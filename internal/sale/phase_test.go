package sale_test

import (
	"testing"
	"time"

	"github.com/Mohsinsiddi/w3sale/internal/sale"
	"github.com/stretchr/testify/assert"
)

func TestPhaseAt(t *testing.T) {
	open := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	p := sale.Parameters{OpeningTime: open, ClosingTime: open.Add(48 * time.Hour)}

	assert.Equal(t, sale.PhaseUpcoming, sale.PhaseAt(open.Add(-time.Second), p))
	assert.Equal(t, sale.PhaseOpen, sale.PhaseAt(open, p))
	assert.Equal(t, sale.PhaseOpen, sale.PhaseAt(open.Add(47*time.Hour), p))
	assert.Equal(t, sale.PhaseClosed, sale.PhaseAt(open.Add(48*time.Hour), p))

	p.ClosingTime = time.Time{}
	assert.Equal(t, sale.PhaseOpen, sale.PhaseAt(open.Add(1000*time.Hour), p), "no closing time")
	assert.Equal(t, "upcoming", sale.PhaseUpcoming.String())
}

func TestCountdown(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		left time.Duration
		want string
	}{
		{28*time.Hour + 2*time.Minute + 9*time.Second, "1d 4h 2m 9s"},
		{24*time.Hour + 5*time.Second, "1d 0h 0m 5s"},
		{3*time.Minute + 1*time.Second, "3m 1s"},
		{59 * time.Second, "59s"},
		{500 * time.Millisecond, "0s"},
		{0, ""},
		{-time.Hour, ""},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, sale.Countdown(now, now.Add(tt.left)))
		})
	}
}

func TestProgress(t *testing.T) {
	assert.Equal(t, "0.95", sale.Progress(d("95000"), d("100000")).String())
	assert.Equal(t, "0.3333", sale.Progress(d("1"), d("3")).String())
	assert.Equal(t, "1", sale.Progress(d("150"), d("100")).String())
	assert.True(t, sale.Progress(d("1"), d("0")).IsZero())
}

func TestGoalReached(t *testing.T) {
	p := sale.Parameters{Goal: d("50000")}
	assert.False(t, sale.GoalReached(d("49999.99"), p))
	assert.True(t, sale.GoalReached(d("50000"), p))

	p.Goal = d("0")
	assert.False(t, sale.GoalReached(d("1"), p), "no goal set")
}
