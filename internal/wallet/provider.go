package wallet

import (
	"context"
	"math/big"

	"github.com/Mohsinsiddi/w3sale/internal/chain"
	"github.com/ethereum/go-ethereum/common"
)

// TxRequest is an eth_sendTransaction request. The wallet fills gas and fees.
type TxRequest struct {
	From  common.Address
	To    common.Address
	Data  []byte
	Value *big.Int
}

// EventKind identifies a provider-originated event.
type EventKind int

const (
	EventAccountsChanged EventKind = iota
	EventChainChanged
	EventDisconnect
)

// Event is fired by the provider at any time, independently of our requests.
type Event struct {
	Kind     EventKind
	Accounts []common.Address // EventAccountsChanged
	ChainID  int64            // EventChainChanged
}

// Provider is an EIP-1193 style wallet: it owns accounts and signs, we only ask.
type Provider interface {
	// RequestAccounts prompts the user to authorize accounts.
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	// Accounts returns already-authorized accounts without prompting.
	Accounts(ctx context.Context) ([]common.Address, error)
	// ChainID returns the wallet's current chain without prompting.
	ChainID(ctx context.Context) (int64, error)
	// SwitchChain fails with CodeUnrecognizedChain when the chain is unknown.
	SwitchChain(ctx context.Context, chainID int64) error
	// AddChain registers a chain with the wallet.
	AddChain(ctx context.Context, d chain.Descriptor) error
	// SendTransaction signs and broadcasts, returning the hash immediately.
	SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error)
	// Subscribe streams events until ctx is done; the channel is then closed.
	Subscribe(ctx context.Context) (<-chan Event, error)
}
