package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Mohsinsiddi/w3sale/internal/chain"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Status is the connection status derived from State.
type Status int

const (
	StatusUnavailable Status = iota
	StatusDisconnected
	StatusWrongNetwork
	StatusConnected
)

func (s Status) String() string {
	switch s {
	case StatusUnavailable:
		return "unavailable"
	case StatusDisconnected:
		return "disconnected"
	case StatusWrongNetwork:
		return "wrong network"
	case StatusConnected:
		return "connected"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// State is the wallet as last reported by the provider. Status is computed
// from the fields, so a connected status on the wrong chain cannot exist.
type State struct {
	Present  bool
	Account  common.Address
	ChainID  int64
	Required int64
}

// HasAccount reports whether an account is authorized.
func (s State) HasAccount() bool { return s.Account != (common.Address{}) }

// Status derives the connection status.
func (s State) Status() Status {
	switch {
	case !s.Present:
		return StatusUnavailable
	case !s.HasAccount():
		return StatusDisconnected
	case s.ChainID != s.Required:
		return StatusWrongNetwork
	default:
		return StatusConnected
	}
}

// Connected is shorthand for Status() == StatusConnected.
func (s State) Connected() bool { return s.Status() == StatusConnected }

type actionKind int

const (
	actDetected actionKind = iota
	actLost
	actAccounts
	actChain
	actAuthorized
)

type action struct {
	kind     actionKind
	accounts []common.Address
	chainID  int64
}

// reduce is the only place State changes.
func reduce(s State, a action) State {
	switch a.kind {
	case actDetected:
		s.Present = true
		s.Account = firstAccount(a.accounts)
		s.ChainID = a.chainID
	case actLost:
		s = State{Required: s.Required}
	case actAccounts:
		if s.Present {
			s.Account = firstAccount(a.accounts)
		}
	case actChain:
		if s.Present {
			s.ChainID = a.chainID
		}
	case actAuthorized:
		if s.Present {
			s.Account = firstAccount(a.accounts)
			s.ChainID = a.chainID
		}
	}
	return s
}

func firstAccount(accounts []common.Address) common.Address {
	if len(accounts) == 0 {
		return common.Address{}
	}
	return accounts[0]
}

// ConnectionManager owns the wallet State for one required chain. Provider
// events and explicit requests both funnel into dispatch; after Close every
// dispatch is ignored.
type ConnectionManager struct {
	target chain.Descriptor
	logger *zap.Logger

	notifyMu sync.Mutex // serializes subscriber notification in dispatch order

	mu       sync.Mutex
	state    State
	provider Provider
	closed   bool
	subs     map[int]func(State)
	nextSub  int
	cancel   context.CancelFunc
	done     chan struct{}
}

// ManagerOption configures a ConnectionManager.
type ManagerOption func(*ConnectionManager)

// WithManagerLogger sets the diagnostics logger.
func WithManagerLogger(l *zap.Logger) ManagerOption {
	return func(m *ConnectionManager) { m.logger = l }
}

// NewConnectionManager creates a manager in the Unavailable state for target.
func NewConnectionManager(target chain.Descriptor, opts ...ManagerOption) *ConnectionManager {
	m := &ConnectionManager{
		target: target,
		logger: zap.NewNop(),
		state:  State{Required: target.ID()},
		subs:   make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Target is the chain descriptor the manager requires.
func (m *ConnectionManager) Target() chain.Descriptor { return m.target }

// Attach binds p, subscribes to its events, queries accounts and chain
// silently, and starts listening. Events raised between the subscription and
// the query queue up behind the query result. A nil p leaves the manager
// Unavailable.
func (m *ConnectionManager) Attach(ctx context.Context, p Provider) error {
	if p == nil {
		m.dispatch(action{kind: actLost})
		return ErrProviderAbsent
	}

	evCtx, cancel := context.WithCancel(context.Background())
	events, err := p.Subscribe(evCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("subscribing to wallet events: %w", err)
	}

	accounts, err := p.Accounts(ctx)
	if err != nil && !errors.Is(err, ErrUnauthorized) {
		cancel()
		return fmt.Errorf("querying accounts: %w", err)
	}
	chainID, err := p.ChainID(ctx)
	if err != nil {
		cancel()
		return fmt.Errorf("querying chain: %w", err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		cancel()
		return errors.New("connection manager closed")
	}
	if m.cancel != nil {
		m.cancel()
	}
	m.provider = p
	m.cancel = cancel
	done := make(chan struct{})
	m.done = done
	m.mu.Unlock()

	m.dispatch(action{kind: actDetected, accounts: accounts, chainID: chainID})
	go m.listen(events, done)
	return nil
}

func (m *ConnectionManager) listen(events <-chan Event, done chan struct{}) {
	defer close(done)
	for ev := range events {
		switch ev.Kind {
		case EventAccountsChanged:
			m.logger.Debug("wallet accounts changed", zap.Int("count", len(ev.Accounts)))
			m.dispatch(action{kind: actAccounts, accounts: ev.Accounts})
		case EventChainChanged:
			m.logger.Debug("wallet chain changed", zap.Int64("chain_id", ev.ChainID))
			m.dispatch(action{kind: actChain, chainID: ev.ChainID})
		case EventDisconnect:
			m.logger.Debug("wallet disconnected")
			m.dispatch(action{kind: actAccounts})
		}
	}
}

// State returns the current snapshot.
func (m *ConnectionManager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers fn for every state change. fn must not block and must
// not call back into the manager's request methods.
func (m *ConnectionManager) Subscribe(fn func(State)) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// RequestConnection prompts the wallet for account authorization. A pending
// prompt yields ErrConnectionPending, which callers present as guidance.
func (m *ConnectionManager) RequestConnection(ctx context.Context) error {
	p, err := m.currentProvider()
	if err != nil {
		return err
	}

	accounts, err := p.RequestAccounts(ctx)
	if err != nil {
		if !IsBenign(err) && !errors.Is(err, ErrUserRejected) {
			m.logger.Error("wallet connection failed", zap.Error(err))
		}
		return err
	}
	chainID, err := p.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("querying chain: %w", err)
	}

	m.dispatch(action{kind: actAuthorized, accounts: accounts, chainID: chainID})
	return nil
}

// RequestNetworkSwitch asks the wallet to switch to the target chain. An
// unknown chain is added with the target descriptor and the switch retried
// exactly once.
func (m *ConnectionManager) RequestNetworkSwitch(ctx context.Context) error {
	p, err := m.currentProvider()
	if err != nil {
		return err
	}

	id := m.target.ID()
	err = p.SwitchChain(ctx, id)
	if errors.Is(err, ErrUnrecognizedNetwork) {
		m.logger.Info("wallet does not know chain, adding it", zap.String("chain", m.target.ChainName))
		if addErr := p.AddChain(ctx, m.target); addErr != nil {
			return fmt.Errorf("adding network %s: %w", m.target.ChainName, addErr)
		}
		err = p.SwitchChain(ctx, id)
	}
	if err != nil {
		return err
	}

	chainID, err := p.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("querying chain: %w", err)
	}
	m.dispatch(action{kind: actChain, chainID: chainID})
	return nil
}

// Provider returns the attached provider, or nil.
func (m *ConnectionManager) Provider() Provider {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.provider
}

// Close stops event handling and drops subscribers. Safe to call twice.
func (m *ConnectionManager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	cancel, done := m.cancel, m.done
	m.subs = make(map[int]func(State))
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (m *ConnectionManager) currentProvider() (Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.provider == nil {
		return nil, ErrProviderAbsent
	}
	return m.provider, nil
}

func (m *ConnectionManager) dispatch(a action) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	prev := m.state
	next := reduce(prev, a)
	m.state = next
	subs := make([]func(State), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	if next == prev {
		return
	}
	for _, fn := range subs {
		fn(next)
	}
}
