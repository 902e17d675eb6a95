package sale

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// PendingTx is a submitted transaction. Hash is known immediately; Wait
// blocks until the chain confirms it and returns ErrTransactionReverted if
// it was mined but failed.
type PendingTx interface {
	Hash() common.Hash
	Wait(ctx context.Context) error
}

// Transactor submits the two writes of a purchase through the wallet.
// Amounts are in payment-token units.
type Transactor interface {
	Approve(ctx context.Context, from, spender common.Address, amount decimal.Decimal) (PendingTx, error)
	Buy(ctx context.Context, from, beneficiary common.Address, amount decimal.Decimal) (PendingTx, error)
}

// Receipt is a TransactionRecord with the context needed to store it.
type Receipt struct {
	ChainID int64
	Sale    common.Address
	Account common.Address
	TransactionRecord
}

// Recorder persists receipts. Record is called on submission and again on
// every status change of the same hash.
type Recorder interface {
	Record(ctx context.Context, r Receipt) error
}
