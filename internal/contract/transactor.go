package contract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Mohsinsiddi/w3sale/internal/chain"
	"github.com/Mohsinsiddi/w3sale/internal/sale"
	"github.com/Mohsinsiddi/w3sale/internal/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Sender hands a transaction to the wallet. wallet.Provider satisfies it.
type Sender interface {
	SendTransaction(ctx context.Context, req wallet.TxRequest) (common.Hash, error)
}

// ReceiptWaiter blocks until a transaction is mined. *chain.Client satisfies it.
type ReceiptWaiter interface {
	WaitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// ProviderTransactor implements sale.Transactor: the calldata is packed here,
// the wallet signs and broadcasts, and the chain client waits for receipts.
type ProviderTransactor struct {
	sender  Sender
	waiter  ReceiptWaiter
	token   *Token
	sale    *Crowdsale
	logger  *zap.Logger
	confirm time.Duration
}

// TransactorOption configures a ProviderTransactor.
type TransactorOption func(*ProviderTransactor)

// WithConfirmTimeout bounds each wait for a receipt. Wallet prompts and
// broadcasting are not covered.
func WithConfirmTimeout(d time.Duration) TransactorOption {
	return func(t *ProviderTransactor) { t.confirm = d }
}

// NewProviderTransactor binds approve to token and buy to sale.
func NewProviderTransactor(sender Sender, waiter ReceiptWaiter, token *Token, sale *Crowdsale, logger *zap.Logger, opts ...TransactorOption) *ProviderTransactor {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &ProviderTransactor{sender: sender, waiter: waiter, token: token, sale: sale, logger: logger}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Approve sends approve(spender, amount) to the payment token.
func (t *ProviderTransactor) Approve(ctx context.Context, from, spender common.Address, amt decimal.Decimal) (sale.PendingTx, error) {
	data, err := t.token.PackApprove(spender, amt)
	if err != nil {
		return nil, fmt.Errorf("packing approve: %w", err)
	}
	return t.send(ctx, from, t.token.Address(), data)
}

// Buy sends buy(beneficiary, amount) to the crowdsale.
func (t *ProviderTransactor) Buy(ctx context.Context, from, beneficiary common.Address, amt decimal.Decimal) (sale.PendingTx, error) {
	data, err := t.sale.PackBuy(beneficiary, amt)
	if err != nil {
		return nil, fmt.Errorf("packing buy: %w", err)
	}
	return t.send(ctx, from, t.sale.Address(), data)
}

func (t *ProviderTransactor) send(ctx context.Context, from, to common.Address, data []byte) (sale.PendingTx, error) {
	hash, err := t.sender.SendTransaction(ctx, wallet.TxRequest{From: from, To: to, Data: data})
	if err != nil {
		return nil, err
	}
	t.logger.Debug("transaction submitted", zap.String("to", to.Hex()), zap.String("hash", hash.Hex()))
	return &pendingTx{hash: hash, waiter: t.waiter, logger: t.logger, timeout: t.confirm}, nil
}

type pendingTx struct {
	hash    common.Hash
	waiter  ReceiptWaiter
	logger  *zap.Logger
	timeout time.Duration
}

func (p *pendingTx) Hash() common.Hash { return p.hash }

func (p *pendingTx) Wait(ctx context.Context) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	receipt, err := p.waiter.WaitMined(ctx, p.hash)
	if errors.Is(err, chain.ErrReverted) {
		return fmt.Errorf("%w: %s", sale.ErrTransactionReverted, p.hash.Hex())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		p.logger.Warn("gave up waiting for confirmation",
			zap.String("hash", p.hash.Hex()), zap.Duration("timeout", p.timeout))
	}
	if err != nil {
		return err
	}
	p.logger.Debug("transaction mined",
		zap.String("hash", p.hash.Hex()),
		zap.Stringer("block", receipt.BlockNumber),
		zap.Uint64("gas_used", receipt.GasUsed))
	return nil
}
