package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrReverted is returned by WaitMined when the receipt status is failed.
var ErrReverted = errors.New("transaction reverted")

const (
	dialTimeout         = 10 * time.Second
	defaultPollInterval = 2 * time.Second
	defaultRateLimit    = 10 // requests per second
	revertErrorCode     = 3
)

// Client is an ethclient bound to one verified chain. Reads go through a
// circuit breaker so a dead endpoint fails fast instead of hanging each call.
type Client struct {
	eth          *ethclient.Client
	url          string
	chainID      *big.Int
	breaker      *gobreaker.CircuitBreaker
	limiter      *rate.Limiter
	pollInterval time.Duration
	logger       *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the diagnostics logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithPollInterval sets the receipt polling interval used by WaitMined.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) { c.pollInterval = d }
}

// WithRateLimit caps outgoing requests per second. Zero disables limiting.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// Dial connects to the first URL that answers with the expected chain id.
// A zero wantChainID accepts whatever chain the first healthy endpoint serves.
func Dial(ctx context.Context, urls []string, wantChainID int64, opts ...Option) (*Client, error) {
	if len(urls) == 0 {
		return nil, errors.New("no RPC endpoints configured")
	}

	var lastErr error
	for _, url := range urls {
		dctx, cancel := context.WithTimeout(ctx, dialTimeout)
		eth, err := ethclient.DialContext(dctx, url)
		if err != nil {
			cancel()
			lastErr = err
			continue
		}

		id, err := eth.ChainID(dctx)
		cancel()
		if err != nil {
			eth.Close()
			lastErr = fmt.Errorf("%s: %w", url, err)
			continue
		}
		if wantChainID != 0 && id.Int64() != wantChainID {
			eth.Close()
			lastErr = fmt.Errorf("%s: chain ID mismatch: expected %d, got %s", url, wantChainID, id)
			continue
		}
		return newClient(eth, url, id, opts...), nil
	}
	return nil, fmt.Errorf("failed to connect to any RPC: %w", lastErr)
}

func newClient(eth *ethclient.Client, url string, chainID *big.Int, opts ...Option) *Client {
	c := &Client{
		eth:          eth,
		url:          url,
		chainID:      chainID,
		pollInterval: defaultPollInterval,
		limiter:      rate.NewLimiter(rate.Limit(defaultRateLimit), 1),
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "rpc:" + url,
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A revert is an answer from a healthy node, not an endpoint failure.
		IsSuccessful: func(err error) bool {
			return err == nil || IsRevert(err) || errors.Is(err, ethereum.NotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("rpc circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return c
}

// Close releases the underlying connection.
func (c *Client) Close() { c.eth.Close() }

// URL is the endpoint this client settled on.
func (c *Client) URL() string { return c.url }

// ChainID is the verified chain id.
func (c *Client) ChainID() *big.Int { return new(big.Int).Set(c.chainID) }

// CallContract runs eth_call against the latest block.
func (c *Client) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	out, err := c.read(ctx, func() (interface{}, error) {
		return c.eth.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	})
	if err != nil {
		return nil, err
	}
	return out.([]byte), nil
}

// BalanceAt returns the native balance of addr.
func (c *Client) BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error) {
	out, err := c.read(ctx, func() (interface{}, error) {
		return c.eth.BalanceAt(ctx, addr, nil)
	})
	if err != nil {
		return nil, err
	}
	return out.(*big.Int), nil
}

// PendingNonceAt returns the next nonce for addr.
func (c *Client) PendingNonceAt(ctx context.Context, addr common.Address) (uint64, error) {
	out, err := c.read(ctx, func() (interface{}, error) {
		return c.eth.PendingNonceAt(ctx, addr)
	})
	if err != nil {
		return 0, err
	}
	return out.(uint64), nil
}

// EstimateGas simulates msg. Reverts surface here before anything is signed.
func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	out, err := c.read(ctx, func() (interface{}, error) {
		return c.eth.EstimateGas(ctx, msg)
	})
	if err != nil {
		return 0, err
	}
	return out.(uint64), nil
}

// FeeCaps returns EIP-1559 tip and fee caps: fee = 2*baseFee + tip.
func (c *Client) FeeCaps(ctx context.Context) (tip, feeCap *big.Int, err error) {
	tip, err = c.eth.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("suggest tip: %w", err)
	}
	head, err := c.eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("latest header: %w", err)
	}
	base := head.BaseFee
	if base == nil {
		base = new(big.Int)
	}
	feeCap = new(big.Int).Add(new(big.Int).Mul(base, big.NewInt(2)), tip)
	return tip, feeCap, nil
}

// SendTransaction broadcasts a signed transaction.
func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	return c.eth.SendTransaction(ctx, tx)
}

// TransactionReceipt returns the receipt, or ethereum.NotFound while pending.
func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	out, err := c.read(ctx, func() (interface{}, error) {
		return c.eth.TransactionReceipt(ctx, hash)
	})
	if err != nil {
		return nil, err
	}
	return out.(*types.Receipt), nil
}

// WaitMined polls until hash is mined. A failed receipt is returned together
// with ErrReverted. The caller's context bounds the wait.
func (c *Client) WaitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			if receipt.Status == types.ReceiptStatusFailed {
				return receipt, fmt.Errorf("%w (hash: %s)", ErrReverted, hash.Hex())
			}
			return receipt, nil
		case errors.Is(err, ethereum.NotFound):
		default:
			c.logger.Debug("receipt poll failed", zap.String("hash", hash.Hex()), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("transaction %s not mined: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) read(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	return c.breaker.Execute(fn)
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// IsRevert reports whether err is an EVM execution revert (JSON-RPC code 3 or
// the canonical "execution reverted" message some nodes return without a code).
func IsRevert(err error) bool {
	if err == nil {
		return false
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == revertErrorCode {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "execution reverted")
}

// RevertReason extracts the human part of a revert message, if any.
func RevertReason(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if idx := strings.Index(msg, "execution reverted:"); idx >= 0 {
		return strings.TrimSpace(msg[idx+len("execution reverted:"):])
	}
	return ""
}
