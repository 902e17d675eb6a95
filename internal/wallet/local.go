package wallet

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/Mohsinsiddi/w3sale/internal/chain"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// PromptKind says what the wallet is asking the user to approve.
type PromptKind int

const (
	PromptConnect PromptKind = iota
	PromptAddChain
	PromptSend
)

// PromptRequest describes one approval the wallet needs from the user.
type PromptRequest struct {
	Kind   PromptKind
	Wallet *Wallet
	Chain  *chain.Descriptor // PromptAddChain
	Tx     *TxRequest        // PromptSend
	Gas    uint64            // PromptSend
}

// PromptFunc asks the user. false means rejected.
type PromptFunc func(ctx context.Context, req PromptRequest) (bool, error)

// ChainBackend is what the local wallet needs from a node.
type ChainBackend interface {
	ChainID() *big.Int
	PendingNonceAt(ctx context.Context, addr common.Address) (uint64, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	FeeCaps(ctx context.Context) (tip, feeCap *big.Int, err error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// DialFunc connects to a chain through its descriptor's RPC URLs.
type DialFunc func(ctx context.Context, d chain.Descriptor) (ChainBackend, error)

// LocalProvider is a wallet that lives in this process: the key sits in the
// OS keychain, authorizations and added networks persist in a Session, and
// every sensitive action goes through a PromptFunc.
type LocalProvider struct {
	wallet  *Wallet
	signer  *Signer
	session *Session
	home    chain.Descriptor
	prompt  PromptFunc
	dial    DialFunc
	logger  *zap.Logger

	mu        sync.Mutex
	prompting bool
	backends  map[int64]ChainBackend
	subs      map[chan Event]struct{}
}

// LocalOption configures a LocalProvider.
type LocalOption func(*LocalProvider)

// WithPrompt sets the approval prompt. The default rejects everything.
func WithPrompt(fn PromptFunc) LocalOption {
	return func(p *LocalProvider) { p.prompt = fn }
}

// WithDialer sets how chain backends are reached.
func WithDialer(fn DialFunc) LocalOption {
	return func(p *LocalProvider) { p.dial = fn }
}

// WithLocalLogger sets the diagnostics logger.
func WithLocalLogger(l *zap.Logger) LocalOption {
	return func(p *LocalProvider) { p.logger = l }
}

// AutoApprove is a PromptFunc that approves every request.
func AutoApprove(context.Context, PromptRequest) (bool, error) { return true, nil }

// NewLocalProvider creates a wallet for w. home is the network the wallet
// knows out of the box; any other chain must be added first.
func NewLocalProvider(w *Wallet, ks KeystoreBackend, session *Session, home chain.Descriptor, opts ...LocalOption) *LocalProvider {
	p := &LocalProvider{
		wallet:   w,
		signer:   NewSigner(w, ks),
		session:  session,
		home:     home,
		prompt:   func(context.Context, PromptRequest) (bool, error) { return false, nil },
		dial:     dialClient,
		logger:   zap.NewNop(),
		backends: make(map[int64]ChainBackend),
		subs:     make(map[chan Event]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func dialClient(ctx context.Context, d chain.Descriptor) (ChainBackend, error) {
	return chain.Dial(ctx, d.RPCURLs, d.ID())
}

// RequestAccounts prompts for authorization unless already granted.
func (p *LocalProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	if p.session.Authorized(p.wallet.Name) {
		return []common.Address{p.wallet.Addr()}, nil
	}

	ok, err := p.ask(ctx, PromptRequest{Kind: PromptConnect, Wallet: p.wallet})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NewProviderError(CodeUserRejected, "user rejected the request")
	}
	if err := p.session.Authorize(p.wallet.Name); err != nil {
		return nil, fmt.Errorf("saving authorization: %w", err)
	}

	accounts := []common.Address{p.wallet.Addr()}
	p.emit(Event{Kind: EventAccountsChanged, Accounts: accounts})
	return accounts, nil
}

// Accounts returns the wallet address only if the user authorized it.
func (p *LocalProvider) Accounts(context.Context) ([]common.Address, error) {
	if !p.session.Authorized(p.wallet.Name) {
		return []common.Address{}, nil
	}
	return []common.Address{p.wallet.Addr()}, nil
}

// ChainID returns the selected network.
func (p *LocalProvider) ChainID(context.Context) (int64, error) {
	if id := p.session.CurrentChain(); id != 0 {
		return id, nil
	}
	return p.home.ID(), nil
}

// SwitchChain selects a known network.
func (p *LocalProvider) SwitchChain(ctx context.Context, chainID int64) error {
	if _, ok := p.descriptor(chainID); !ok {
		return NewProviderError(CodeUnrecognizedChain,
			fmt.Sprintf("unrecognized chain ID %d, try adding the chain first", chainID))
	}
	current, _ := p.ChainID(ctx)
	if current == chainID {
		return nil
	}
	if err := p.session.SetCurrentChain(chainID); err != nil {
		return fmt.Errorf("saving network: %w", err)
	}
	p.emit(Event{Kind: EventChainChanged, ChainID: chainID})
	return nil
}

// AddChain asks the user to add a network and remembers it.
func (p *LocalProvider) AddChain(ctx context.Context, d chain.Descriptor) error {
	if d.ID() <= 0 || len(d.RPCURLs) == 0 {
		return NewProviderError(-32602, "invalid chain descriptor")
	}
	if _, ok := p.descriptor(d.ID()); ok {
		return nil
	}
	ok, err := p.ask(ctx, PromptRequest{Kind: PromptAddChain, Wallet: p.wallet, Chain: &d})
	if err != nil {
		return err
	}
	if !ok {
		return NewProviderError(CodeUserRejected, "user rejected adding the network")
	}
	return p.session.AddChain(d)
}

// SendTransaction estimates, asks for approval, signs and broadcasts.
func (p *LocalProvider) SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error) {
	if !p.session.Authorized(p.wallet.Name) || req.From != p.wallet.Addr() {
		return common.Hash{}, NewProviderError(CodeUnauthorized, "the requested account has not been authorized")
	}
	if p.wallet.Type != TypeSigning {
		return common.Hash{}, NewProviderError(CodeUnauthorized, "watch-only wallet cannot sign")
	}

	chainID, _ := p.ChainID(ctx)
	backend, err := p.backend(ctx, chainID)
	if err != nil {
		return common.Hash{}, NewProviderError(CodeInternal, err.Error())
	}

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}
	gas, err := backend.EstimateGas(ctx, ethereum.CallMsg{
		From: req.From, To: &req.To, Data: req.Data, Value: value,
	})
	if err != nil {
		if chain.IsRevert(err) {
			return common.Hash{}, &ProviderError{Code: CodeExecutionReverted, Message: err.Error()}
		}
		return common.Hash{}, NewProviderError(CodeInternal, fmt.Sprintf("estimating gas: %v", err))
	}

	ok, err := p.ask(ctx, PromptRequest{Kind: PromptSend, Wallet: p.wallet, Tx: &req, Gas: gas})
	if err != nil {
		return common.Hash{}, err
	}
	if !ok {
		return common.Hash{}, NewProviderError(CodeUserRejected, "user denied transaction signature")
	}

	nonce, err := backend.PendingNonceAt(ctx, req.From)
	if err != nil {
		return common.Hash{}, NewProviderError(CodeInternal, fmt.Sprintf("nonce: %v", err))
	}
	tip, feeCap, err := backend.FeeCaps(ctx)
	if err != nil {
		return common.Hash{}, NewProviderError(CodeInternal, err.Error())
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   backend.ChainID(),
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &req.To,
		Value:     value,
		Data:      req.Data,
	})
	signed, err := p.signer.SignTx(tx, backend.ChainID())
	if err != nil {
		return common.Hash{}, NewProviderError(CodeInternal, err.Error())
	}
	if err := backend.SendTransaction(ctx, signed); err != nil {
		if chain.IsRevert(err) {
			return common.Hash{}, &ProviderError{Code: CodeExecutionReverted, Message: err.Error()}
		}
		return common.Hash{}, NewProviderError(CodeInternal, fmt.Sprintf("broadcast: %v", err))
	}

	p.logger.Debug("transaction sent", zap.String("hash", signed.Hash().Hex()), zap.Uint64("nonce", nonce))
	return signed.Hash(), nil
}

// Disconnect revokes the authorization, as if the user disconnected the site.
func (p *LocalProvider) Disconnect() error {
	if err := p.session.Revoke(p.wallet.Name); err != nil {
		return err
	}
	p.emit(Event{Kind: EventAccountsChanged, Accounts: []common.Address{}})
	return nil
}

// Subscribe streams account and chain changes made through this provider.
func (p *LocalProvider) Subscribe(ctx context.Context) (<-chan Event, error) {
	ch := make(chan Event, 16)
	p.mu.Lock()
	p.subs[ch] = struct{}{}
	p.mu.Unlock()

	go func() {
		<-ctx.Done()
		p.mu.Lock()
		delete(p.subs, ch)
		close(ch)
		p.mu.Unlock()
	}()
	return ch, nil
}

func (p *LocalProvider) emit(ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for ch := range p.subs {
		select {
		case ch <- ev:
		default:
			p.logger.Warn("dropping wallet event for slow subscriber")
		}
	}
}

// ask runs one prompt at a time; a second concurrent prompt is refused with
// the same pending code browser wallets use.
func (p *LocalProvider) ask(ctx context.Context, req PromptRequest) (bool, error) {
	p.mu.Lock()
	if p.prompting {
		p.mu.Unlock()
		return false, NewProviderError(CodeRequestPending, "request already pending, please wait")
	}
	p.prompting = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.prompting = false
		p.mu.Unlock()
	}()

	// Only an explicit "no" is a rejection; a prompt that times out or is
	// interrupted keeps its context error.
	ok, err := p.prompt(ctx, req)
	if err != nil {
		return false, fmt.Errorf("prompt: %w", err)
	}
	return ok, nil
}

// Close drops every chain connection the wallet opened. Later requests dial
// again.
func (p *LocalProvider) Close() {
	p.mu.Lock()
	backends := p.backends
	p.backends = make(map[int64]ChainBackend)
	p.mu.Unlock()

	for _, b := range backends {
		if c, ok := b.(closer); ok {
			c.Close()
		}
	}
}

func (p *LocalProvider) descriptor(id int64) (chain.Descriptor, bool) {
	if id == p.home.ID() {
		return p.home, true
	}
	return p.session.Chain(id)
}

func (p *LocalProvider) backend(ctx context.Context, id int64) (ChainBackend, error) {
	p.mu.Lock()
	b, ok := p.backends[id]
	p.mu.Unlock()
	if ok {
		return b, nil
	}

	d, known := p.descriptor(id)
	if !known {
		return nil, fmt.Errorf("unknown chain %d", id)
	}
	b, err := p.dial(ctx, d)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.backends[id] = b
	p.mu.Unlock()
	return b, nil
}
