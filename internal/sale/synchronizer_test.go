package sale_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Mohsinsiddi/w3sale/internal/sale"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSale struct {
	open         bool
	sold         decimal.Decimal
	contribution decimal.Decimal
	err          error
	accountReads atomic.Int32
}

func (s *stubSale) IsOpen(context.Context) (bool, error) { return s.open, nil }

func (s *stubSale) TotalSold(context.Context) (decimal.Decimal, error) {
	return s.sold, s.err
}

func (s *stubSale) ContributionOf(context.Context, common.Address) (decimal.Decimal, error) {
	s.accountReads.Add(1)
	return s.contribution, nil
}

type stubToken struct {
	balance   decimal.Decimal
	allowance decimal.Decimal
	spender   common.Address
}

func (s *stubToken) BalanceOf(context.Context, common.Address) (decimal.Decimal, error) {
	return s.balance, nil
}

func (s *stubToken) Allowance(_ context.Context, _, spender common.Address) (decimal.Decimal, error) {
	s.spender = spender
	return s.allowance, nil
}

func TestSynchronizerRefresh(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sr := &stubSale{open: true, sold: d("95000"), contribution: d("1000")}
	tr := &stubToken{balance: d("42.5"), allowance: d("5")}
	s := sale.NewSynchronizer(sr, tr, saleAddr, sale.WithSyncClock(func() time.Time { return now }))

	c, err := s.Refresh(context.Background(), buyer)
	require.NoError(t, err)

	assert.Equal(t, buyer, c.Account)
	assert.True(t, c.IsOpen)
	assert.Equal(t, "95000", c.TotalSold.String())
	assert.Equal(t, "1000", c.Contribution.String())
	assert.Equal(t, "42.5", c.PaymentBalance.String())
	assert.Equal(t, "5", c.PaymentAllowance.String())
	assert.Equal(t, now, c.RefreshedAt)
	assert.Equal(t, saleAddr, tr.spender, "allowance is read for the sale contract")
}

func TestSynchronizerZeroAccountSkipsAccountReads(t *testing.T) {
	sr := &stubSale{open: true, sold: d("10"), contribution: d("1")}
	s := sale.NewSynchronizer(sr, &stubToken{balance: d("1")}, saleAddr)

	c, err := s.Refresh(context.Background(), common.Address{})
	require.NoError(t, err)
	assert.Equal(t, "10", c.TotalSold.String())
	assert.True(t, c.Contribution.IsZero())
	assert.True(t, c.PaymentBalance.IsZero())
	assert.Equal(t, int32(0), sr.accountReads.Load())
}

func TestSynchronizerErrorReturnsNoSnapshot(t *testing.T) {
	sr := &stubSale{open: true, err: errors.New("rpc down")}
	s := sale.NewSynchronizer(sr, &stubToken{}, saleAddr)

	c, err := s.Refresh(context.Background(), buyer)
	require.Error(t, err)
	assert.ErrorContains(t, err, "reading totalSold")
	assert.True(t, c.RefreshedAt.IsZero())
}
