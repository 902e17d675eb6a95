package wallet

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/Mohsinsiddi/w3sale/internal/chain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

// BridgeProvider talks to an external wallet over JSON-RPC, e.g. a browser
// wallet exposed through a local bridge page or a node with unlocked accounts.
type BridgeProvider struct {
	rpc          *rpc.Client
	url          string
	pollInterval time.Duration
	logger       *zap.Logger
}

// BridgeOption configures a BridgeProvider.
type BridgeOption func(*BridgeProvider)

// WithBridgePoll sets how often accounts and chain are polled for changes.
func WithBridgePoll(d time.Duration) BridgeOption {
	return func(b *BridgeProvider) { b.pollInterval = d }
}

// WithBridgeLogger sets the diagnostics logger.
func WithBridgeLogger(l *zap.Logger) BridgeOption {
	return func(b *BridgeProvider) { b.logger = l }
}

// DialBridge connects to url and checks it answers eth_chainId. Any failure
// is reported as ErrProviderAbsent so callers treat it as "no wallet".
func DialBridge(ctx context.Context, url string, opts ...BridgeOption) (*BridgeProvider, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderAbsent, err)
	}
	b := &BridgeProvider{
		rpc:          c,
		url:          url,
		pollInterval: 2 * time.Second,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := b.ChainID(probeCtx); err != nil {
		c.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrProviderAbsent, url, err)
	}
	return b, nil
}

// Close closes the underlying RPC connection.
func (b *BridgeProvider) Close() { b.rpc.Close() }

func (b *BridgeProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	if err := b.call(ctx, &accounts, "eth_requestAccounts"); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (b *BridgeProvider) Accounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	if err := b.call(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (b *BridgeProvider) ChainID(ctx context.Context) (int64, error) {
	var id hexutil.Uint64
	if err := b.call(ctx, &id, "eth_chainId"); err != nil {
		return 0, err
	}
	return int64(id), nil
}

func (b *BridgeProvider) SwitchChain(ctx context.Context, chainID int64) error {
	param := map[string]string{"chainId": hexutil.EncodeUint64(uint64(chainID))}
	return b.call(ctx, nil, "wallet_switchEthereumChain", param)
}

func (b *BridgeProvider) AddChain(ctx context.Context, d chain.Descriptor) error {
	return b.call(ctx, nil, "wallet_addEthereumChain", d)
}

func (b *BridgeProvider) SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error) {
	tx := map[string]interface{}{
		"from": req.From,
		"to":   req.To,
		"data": hexutil.Bytes(req.Data),
	}
	if req.Value != nil && req.Value.Sign() > 0 {
		tx["value"] = (*hexutil.Big)(req.Value)
	}
	var hash common.Hash
	if err := b.call(ctx, &hash, "eth_sendTransaction", tx); err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}

// Subscribe polls accounts and chain and emits an event for each change.
// Bridges served over HTTP cannot push notifications.
func (b *BridgeProvider) Subscribe(ctx context.Context) (<-chan Event, error) {
	accounts, err := b.Accounts(ctx)
	if err != nil && !errors.Is(err, ErrUnauthorized) {
		return nil, err
	}
	chainID, err := b.ChainID(ctx)
	if err != nil {
		return nil, err
	}

	ch := make(chan Event, 8)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(b.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			nextAccounts, err := b.Accounts(ctx)
			if err != nil && !errors.Is(err, ErrUnauthorized) {
				if ctx.Err() != nil {
					return
				}
				b.logger.Debug("bridge poll failed", zap.String("url", b.url), zap.Error(err))
				continue
			}
			if !slices.Equal(nextAccounts, accounts) {
				accounts = nextAccounts
				if !send(ctx, ch, Event{Kind: EventAccountsChanged, Accounts: accounts}) {
					return
				}
			}

			nextChain, err := b.ChainID(ctx)
			if err != nil {
				continue
			}
			if nextChain != chainID {
				chainID = nextChain
				if !send(ctx, ch, Event{Kind: EventChainChanged, ChainID: chainID}) {
					return
				}
			}
		}
	}()
	return ch, nil
}

func send(ctx context.Context, ch chan<- Event, ev Event) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// call runs method and converts JSON-RPC errors into ProviderError.
func (b *BridgeProvider) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	err := b.rpc.CallContext(ctx, result, method, args...)
	if err == nil {
		return nil
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		pe := &ProviderError{Code: rpcErr.ErrorCode(), Message: err.Error()}
		var dataErr rpc.DataError
		if errors.As(err, &dataErr) {
			pe.Data = dataErr.ErrorData()
		}
		return pe
	}
	return fmt.Errorf("%s: %w", method, err)
}
