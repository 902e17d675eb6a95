package contract

import (
	"context"
	"fmt"

	"github.com/Mohsinsiddi/w3sale/internal/amount"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Token reads an ERC-20 and converts amounts to human units.
type Token struct {
	address  common.Address
	caller   Caller
	abi      abi.ABI
	decimals uint8
}

// NewToken binds an ERC-20 whose decimals are already known.
func NewToken(address common.Address, caller Caller, decimals uint8) *Token {
	return &Token{address: address, caller: caller, abi: mustABI(BuiltinERC20), decimals: decimals}
}

// LoadToken binds an ERC-20 and reads its decimals.
func LoadToken(ctx context.Context, address common.Address, caller Caller) (*Token, error) {
	t := NewToken(address, caller, amount.DefaultDecimals)
	vals, err := call(ctx, caller, address, t.abi, "decimals")
	if err != nil {
		return nil, err
	}
	dec, ok := vals[0].(uint8)
	if !ok {
		return nil, fmt.Errorf("decimals: unexpected output type %T", vals[0])
	}
	t.decimals = dec
	return t, nil
}

func (t *Token) Address() common.Address { return t.address }

func (t *Token) Decimals() uint8 { return t.decimals }

// Symbol returns the token symbol.
func (t *Token) Symbol(ctx context.Context) (string, error) {
	return t.text(ctx, "symbol")
}

// Name returns the token name.
func (t *Token) Name(ctx context.Context) (string, error) {
	return t.text(ctx, "name")
}

// BalanceOf returns account's balance in human units.
func (t *Token) BalanceOf(ctx context.Context, account common.Address) (decimal.Decimal, error) {
	v, err := callBig(ctx, t.caller, t.address, t.abi, "balanceOf", account)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.FromUnits(v, t.decimals), nil
}

// Allowance returns what spender may still pull from owner, in human units.
func (t *Token) Allowance(ctx context.Context, owner, spender common.Address) (decimal.Decimal, error) {
	v, err := callBig(ctx, t.caller, t.address, t.abi, "allowance", owner, spender)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.FromUnits(v, t.decimals), nil
}

// PackApprove encodes approve(spender, amount) with amount in human units.
func (t *Token) PackApprove(spender common.Address, amt decimal.Decimal) ([]byte, error) {
	return t.abi.Pack("approve", spender, amount.ToUnits(amt, t.decimals))
}

func (t *Token) text(ctx context.Context, method string) (string, error) {
	vals, err := call(ctx, t.caller, t.address, t.abi, method)
	if err != nil {
		return "", err
	}
	s, ok := vals[0].(string)
	if !ok {
		return "", fmt.Errorf("%s: unexpected output type %T", method, vals[0])
	}
	return s, nil
}
