package sale

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SaleReader is the read side of the crowdsale contract.
type SaleReader interface {
	IsOpen(ctx context.Context) (bool, error)
	TotalSold(ctx context.Context) (decimal.Decimal, error)
	ContributionOf(ctx context.Context, account common.Address) (decimal.Decimal, error)
}

// TokenReader is the read side of the payment token.
type TokenReader interface {
	BalanceOf(ctx context.Context, account common.Address) (decimal.Decimal, error)
	Allowance(ctx context.Context, owner, spender common.Address) (decimal.Decimal, error)
}

// Refresher produces fresh counters for an account.
type Refresher interface {
	Refresh(ctx context.Context, account common.Address) (Counters, error)
}

// Synchronizer reads the on-chain counters for one sale. It holds no mutable
// state, so it is safe to call while a purchase is in flight.
type Synchronizer struct {
	sale    SaleReader
	token   TokenReader
	spender common.Address
	now     func() time.Time
	logger  *zap.Logger
}

// SyncOption configures a Synchronizer.
type SyncOption func(*Synchronizer)

// WithSyncLogger sets the diagnostics logger.
func WithSyncLogger(l *zap.Logger) SyncOption {
	return func(s *Synchronizer) { s.logger = l }
}

// WithSyncClock overrides the clock stamped into RefreshedAt.
func WithSyncClock(now func() time.Time) SyncOption {
	return func(s *Synchronizer) { s.now = now }
}

// NewSynchronizer reads sale counters from sale and balances from token.
// spender is the sale contract the allowance is granted to.
func NewSynchronizer(sale SaleReader, token TokenReader, spender common.Address, opts ...SyncOption) *Synchronizer {
	s := &Synchronizer{
		sale:    sale,
		token:   token,
		spender: spender,
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Refresh issues all reads concurrently and returns one snapshot. Either
// every field is fresh or an error is returned. A zero account skips the
// per-account reads and leaves those fields at zero.
func (s *Synchronizer) Refresh(ctx context.Context, account common.Address) (Counters, error) {
	var open bool
	sold, contribution, balance, allowance := decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		open, err = s.sale.IsOpen(gctx)
		return wrap("isOpen", err)
	})
	g.Go(func() (err error) {
		sold, err = s.sale.TotalSold(gctx)
		return wrap("totalSold", err)
	})
	if account != (common.Address{}) {
		g.Go(func() (err error) {
			contribution, err = s.sale.ContributionOf(gctx, account)
			return wrap("contributionOf", err)
		})
		g.Go(func() (err error) {
			balance, err = s.token.BalanceOf(gctx, account)
			return wrap("balanceOf", err)
		})
		g.Go(func() (err error) {
			allowance, err = s.token.Allowance(gctx, account, s.spender)
			return wrap("allowance", err)
		})
	}
	if err := g.Wait(); err != nil {
		return Counters{}, err
	}

	c := Counters{
		Account:          account,
		IsOpen:           open,
		TotalSold:        sold,
		Contribution:     contribution,
		PaymentBalance:   balance,
		PaymentAllowance: allowance,
		RefreshedAt:      s.now(),
	}
	s.logger.Debug("counters refreshed",
		zap.String("account", account.Hex()),
		zap.Bool("open", c.IsOpen),
		zap.String("sold", c.TotalSold.String()),
		zap.String("allowance", c.PaymentAllowance.String()))
	return c, nil
}

func wrap(call string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("reading %s: %w", call, err)
}
