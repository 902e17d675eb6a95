package contract

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/Mohsinsiddi/w3sale/internal/amount"
	"github.com/Mohsinsiddi/w3sale/internal/sale"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// ErrDecimalsMismatch is returned for sales whose token and payment token use
// different decimals. The purchase math assumes one shared precision.
var ErrDecimalsMismatch = errors.New("sale token and payment token decimals differ")

// Crowdsale reads a deployed crowdsale.
type Crowdsale struct {
	address  common.Address
	caller   Caller
	abi      abi.ABI
	decimals uint8
}

// NewCrowdsale binds the sale at address. Amounts are converted with
// decimals, which Parameters reports.
func NewCrowdsale(address common.Address, caller Caller, decimals uint8) *Crowdsale {
	return &Crowdsale{address: address, caller: caller, abi: mustABI(BuiltinCrowdsale), decimals: decimals}
}

func (c *Crowdsale) Address() common.Address { return c.address }

// IsOpen reports whether the sale accepts purchases now.
func (c *Crowdsale) IsOpen(ctx context.Context) (bool, error) {
	vals, err := call(ctx, c.caller, c.address, c.abi, "isOpen")
	if err != nil {
		return false, err
	}
	open, ok := vals[0].(bool)
	if !ok {
		return false, fmt.Errorf("isOpen: unexpected output type %T", vals[0])
	}
	return open, nil
}

// TotalSold is the number of sale tokens sold so far.
func (c *Crowdsale) TotalSold(ctx context.Context) (decimal.Decimal, error) {
	return c.tokens(ctx, "totalSold")
}

// ContributionOf is what account has bought so far, in sale tokens.
func (c *Crowdsale) ContributionOf(ctx context.Context, account common.Address) (decimal.Decimal, error) {
	return c.tokens(ctx, "contributionOf", account)
}

// PackBuy encodes buy(beneficiary, amount) with amount in payment-token units.
func (c *Crowdsale) PackBuy(beneficiary common.Address, amt decimal.Decimal) ([]byte, error) {
	return c.abi.Pack("buy", beneficiary, amount.ToUnits(amt, c.decimals))
}

// Parameters reads the immutable sale configuration together with both
// tokens' decimals and symbols.
func (c *Crowdsale) Parameters(ctx context.Context) (sale.Parameters, error) {
	var (
		uints    = map[string]*big.Int{}
		token    common.Address
		payment  common.Address
		uintKeys = []string{"rate", "cap", "individualCap", "minPurchaseAmount", "goal", "openingTime", "closingTime"}
		results  = make([]*big.Int, len(uintKeys))
	)

	g, gctx := errgroup.WithContext(ctx)
	for i, method := range uintKeys {
		g.Go(func() (err error) {
			results[i], err = callBig(gctx, c.caller, c.address, c.abi, method)
			return err
		})
	}
	g.Go(func() (err error) {
		token, err = callAddress(gctx, c.caller, c.address, c.abi, "token")
		return err
	})
	g.Go(func() (err error) {
		payment, err = callAddress(gctx, c.caller, c.address, c.abi, "paymentToken")
		return err
	})
	if err := g.Wait(); err != nil {
		return sale.Parameters{}, err
	}
	for i, method := range uintKeys {
		uints[method] = results[i]
	}

	saleToken, err := LoadToken(ctx, token, c.caller)
	if err != nil {
		return sale.Parameters{}, fmt.Errorf("sale token: %w", err)
	}
	payToken, err := LoadToken(ctx, payment, c.caller)
	if err != nil {
		return sale.Parameters{}, fmt.Errorf("payment token: %w", err)
	}
	if saleToken.Decimals() != payToken.Decimals() {
		return sale.Parameters{}, fmt.Errorf("%w: %d vs %d", ErrDecimalsMismatch, saleToken.Decimals(), payToken.Decimals())
	}
	tokenSymbol, err := saleToken.Symbol(ctx)
	if err != nil {
		return sale.Parameters{}, fmt.Errorf("sale token: %w", err)
	}
	paySymbol, err := payToken.Symbol(ctx)
	if err != nil {
		return sale.Parameters{}, fmt.Errorf("payment token: %w", err)
	}

	rate, err := int64Of("rate", uints["rate"])
	if err != nil {
		return sale.Parameters{}, err
	}
	opening, err := int64Of("openingTime", uints["openingTime"])
	if err != nil {
		return sale.Parameters{}, err
	}
	closing, err := int64Of("closingTime", uints["closingTime"])
	if err != nil {
		return sale.Parameters{}, err
	}

	dec := saleToken.Decimals()
	c.decimals = dec
	p := sale.Parameters{
		Sale:            c.address,
		Token:           token,
		PaymentToken:    payment,
		TokenSymbol:     tokenSymbol,
		PaymentSymbol:   paySymbol,
		Decimals:        dec,
		Rate:            rate,
		TotalCap:        amount.FromUnits(uints["cap"], dec),
		IndividualCap:   amount.FromUnits(uints["individualCap"], dec),
		Goal:            amount.FromUnits(uints["goal"], dec),
		MinimumPurchase: amount.FromUnits(uints["minPurchaseAmount"], dec),
		OpeningTime:     unixOrZero(opening),
		ClosingTime:     unixOrZero(closing),
	}
	if err := p.Validate(); err != nil {
		return sale.Parameters{}, fmt.Errorf("sale %s: %w", c.address.Hex(), err)
	}
	return p, nil
}

func (c *Crowdsale) tokens(ctx context.Context, method string, args ...interface{}) (decimal.Decimal, error) {
	v, err := callBig(ctx, c.caller, c.address, c.abi, method, args...)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.FromUnits(v, c.decimals), nil
}

func unixOrZero(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
