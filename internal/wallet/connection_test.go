package wallet

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Mohsinsiddi/w3sale/internal/chain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b0")

	bscTestnet = chain.Descriptor{
		ChainID:        "0x61",
		ChainName:      "BNB Smart Chain Testnet",
		NativeCurrency: chain.NativeCurrency{Name: "tBNB", Symbol: "tBNB", Decimals: 18},
		RPCURLs:        []string{"https://bsc-testnet.example"},
	}
)

// fakeProvider is a scripted wallet.
type fakeProvider struct {
	mu          sync.Mutex
	accounts    []common.Address
	chainID     int64
	known       map[int64]bool
	addCalls    int
	switchCalls int
	requestErr  error
	addErr      error
	ignoreAdd   bool
	events      chan Event
	log         []string
	closed      int
}

func (f *fakeProvider) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
}

func newFakeProvider(chainID int64, accounts ...common.Address) *fakeProvider {
	return &fakeProvider{
		accounts: accounts,
		chainID:  chainID,
		known:    map[int64]bool{chainID: true},
		events:   make(chan Event),
	}
}

func (f *fakeProvider) RequestAccounts(context.Context) ([]common.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.requestErr != nil {
		return nil, f.requestErr
	}
	if len(f.accounts) == 0 {
		f.accounts = []common.Address{alice}
	}
	return f.accounts, nil
}

func (f *fakeProvider) Accounts(context.Context) ([]common.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = append(f.log, "accounts")
	return f.accounts, nil
}

func (f *fakeProvider) ChainID(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chainID, nil
}

func (f *fakeProvider) SwitchChain(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.switchCalls++
	if !f.known[id] {
		return NewProviderError(CodeUnrecognizedChain, "unrecognized chain")
	}
	f.chainID = id
	return nil
}

func (f *fakeProvider) AddChain(_ context.Context, d chain.Descriptor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addCalls++
	if f.addErr != nil {
		return f.addErr
	}
	if !f.ignoreAdd {
		f.known[d.ID()] = true
	}
	return nil
}

func (f *fakeProvider) SendTransaction(context.Context, TxRequest) (common.Hash, error) {
	return common.Hash{}, NewProviderError(CodeUnsupportedMethod, "not scripted")
}

func (f *fakeProvider) Subscribe(ctx context.Context) (<-chan Event, error) {
	f.mu.Lock()
	f.log = append(f.log, "subscribe")
	f.mu.Unlock()
	out := make(chan Event)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-f.events:
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (f *fakeProvider) calls() (adds, switches int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addCalls, f.switchCalls
}

func attached(t *testing.T, p Provider) *ConnectionManager {
	t.Helper()
	m := NewConnectionManager(bscTestnet)
	require.NoError(t, m.Attach(context.Background(), p))
	t.Cleanup(m.Close)
	return m
}

// ---------------------------------------------------------------------------
// reduce / State
// ---------------------------------------------------------------------------

func TestStateStatus(t *testing.T) {
	tests := []struct {
		name  string
		state State
		want  Status
	}{
		{"no provider", State{Required: 97}, StatusUnavailable},
		{"no provider ignores stale fields", State{Account: alice, ChainID: 97, Required: 97}, StatusUnavailable},
		{"no account", State{Present: true, ChainID: 97, Required: 97}, StatusDisconnected},
		{"wrong chain", State{Present: true, Account: alice, ChainID: 1, Required: 97}, StatusWrongNetwork},
		{"connected", State{Present: true, Account: alice, ChainID: 97, Required: 97}, StatusConnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.Status())
		})
	}
}

func TestReduceNeverConnectedOnWrongChain(t *testing.T) {
	actions := []action{
		{kind: actDetected, accounts: []common.Address{alice}, chainID: 1},
		{kind: actAccounts, accounts: []common.Address{bob}},
		{kind: actChain, chainID: 97},
		{kind: actChain, chainID: 56},
		{kind: actAccounts},
		{kind: actAccounts, accounts: []common.Address{alice}},
		{kind: actAuthorized, accounts: []common.Address{bob}, chainID: 56},
		{kind: actLost},
		{kind: actChain, chainID: 97},
		{kind: actDetected, accounts: []common.Address{alice}, chainID: 97},
	}

	s := State{Required: 97}
	for i, a := range actions {
		s = reduce(s, a)
		if s.Connected() {
			assert.Equal(t, int64(97), s.ChainID, "step %d", i)
			assert.True(t, s.HasAccount(), "step %d", i)
		}
	}
	assert.True(t, s.Connected())
}

func TestReduceIgnoresEventsWithoutProvider(t *testing.T) {
	s := reduce(State{Required: 97}, action{kind: actAccounts, accounts: []common.Address{alice}})
	assert.Equal(t, StatusUnavailable, s.Status())
	assert.False(t, s.HasAccount())
}

func TestReduceLostKeepsRequired(t *testing.T) {
	s := State{Present: true, Account: alice, ChainID: 97, Required: 97}
	s = reduce(s, action{kind: actLost})
	assert.Equal(t, State{Required: 97}, s)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "wrong network", StatusWrongNetwork.String())
	assert.Equal(t, "status(9)", Status(9).String())
}

// ---------------------------------------------------------------------------
// Attach / RequestConnection
// ---------------------------------------------------------------------------

func TestAttachNilProviderIsUnavailable(t *testing.T) {
	m := NewConnectionManager(bscTestnet)
	defer m.Close()

	err := m.Attach(context.Background(), nil)
	assert.ErrorIs(t, err, ErrProviderAbsent)
	assert.Equal(t, StatusUnavailable, m.State().Status())
	assert.ErrorIs(t, m.RequestConnection(context.Background()), ErrProviderAbsent)
}

func TestAttachAuthorizedOnRightChain(t *testing.T) {
	m := attached(t, newFakeProvider(97, alice))
	assert.Equal(t, StatusConnected, m.State().Status())
	assert.Equal(t, alice, m.State().Account)
}

func TestAttachWithoutAuthorization(t *testing.T) {
	m := attached(t, newFakeProvider(97))
	assert.Equal(t, StatusDisconnected, m.State().Status())
}

func TestRequestConnection(t *testing.T) {
	m := attached(t, newFakeProvider(97))

	require.NoError(t, m.RequestConnection(context.Background()))
	assert.Equal(t, StatusConnected, m.State().Status())
}

func TestAttachSubscribesBeforeQuerying(t *testing.T) {
	p := newFakeProvider(97, alice)
	attached(t, p)

	p.mu.Lock()
	defer p.mu.Unlock()
	require.GreaterOrEqual(t, len(p.log), 2)
	assert.Equal(t, []string{"subscribe", "accounts"}, p.log[:2])
}

func TestRequestConnectionUpdatesAccountAndChainTogether(t *testing.T) {
	p := newFakeProvider(1)
	m := attached(t, p)
	require.Equal(t, StatusDisconnected, m.State().Status())

	var seen []State
	m.Subscribe(func(s State) { seen = append(seen, s) })

	// The wallet moved to the required chain without raising an event.
	p.mu.Lock()
	p.chainID = 97
	p.mu.Unlock()

	require.NoError(t, m.RequestConnection(context.Background()))
	require.Len(t, seen, 1)
	assert.Equal(t, alice, seen[0].Account)
	assert.Equal(t, int64(97), seen[0].ChainID)
	assert.Equal(t, StatusConnected, seen[0].Status())
}

func TestRequestConnectionPendingIsBenign(t *testing.T) {
	p := newFakeProvider(97)
	p.requestErr = NewProviderError(CodeRequestPending, "already pending")
	m := attached(t, p)

	err := m.RequestConnection(context.Background())
	require.Error(t, err)
	assert.True(t, IsBenign(err))
	assert.ErrorIs(t, err, ErrConnectionPending)
	assert.Equal(t, StatusDisconnected, m.State().Status())
}

func TestRequestConnectionRejected(t *testing.T) {
	p := newFakeProvider(97)
	p.requestErr = NewProviderError(CodeUserRejected, "no")
	m := attached(t, p)

	err := m.RequestConnection(context.Background())
	assert.ErrorIs(t, err, ErrUserRejected)
	assert.False(t, IsBenign(err))
}

// ---------------------------------------------------------------------------
// RequestNetworkSwitch
// ---------------------------------------------------------------------------

func TestNetworkSwitchKnownChain(t *testing.T) {
	p := newFakeProvider(1, alice)
	p.known[97] = true
	m := attached(t, p)
	require.Equal(t, StatusWrongNetwork, m.State().Status())

	require.NoError(t, m.RequestNetworkSwitch(context.Background()))
	assert.Equal(t, StatusConnected, m.State().Status())

	adds, switches := p.calls()
	assert.Equal(t, 0, adds)
	assert.Equal(t, 1, switches)
}

func TestNetworkSwitchAddsUnknownChainOnce(t *testing.T) {
	p := newFakeProvider(1, alice)
	m := attached(t, p)

	require.NoError(t, m.RequestNetworkSwitch(context.Background()))
	assert.Equal(t, StatusConnected, m.State().Status())

	adds, switches := p.calls()
	assert.Equal(t, 1, adds)
	assert.Equal(t, 2, switches)
}

func TestNetworkSwitchDoesNotLoop(t *testing.T) {
	p := newFakeProvider(1, alice)
	p.ignoreAdd = true
	m := attached(t, p)

	err := m.RequestNetworkSwitch(context.Background())
	assert.ErrorIs(t, err, ErrUnrecognizedNetwork)
	assert.Equal(t, StatusWrongNetwork, m.State().Status())

	adds, switches := p.calls()
	assert.Equal(t, 1, adds)
	assert.Equal(t, 2, switches)
}

func TestNetworkSwitchAddRejected(t *testing.T) {
	p := newFakeProvider(1, alice)
	p.addErr = NewProviderError(CodeUserRejected, "no")
	m := attached(t, p)

	err := m.RequestNetworkSwitch(context.Background())
	assert.ErrorIs(t, err, ErrUserRejected)

	adds, switches := p.calls()
	assert.Equal(t, 1, adds)
	assert.Equal(t, 1, switches)
}

// ---------------------------------------------------------------------------
// events / subscribers / Close
// ---------------------------------------------------------------------------

func TestProviderEventsUpdateState(t *testing.T) {
	p := newFakeProvider(97, alice)
	m := attached(t, p)

	var mu sync.Mutex
	var seen []Status
	m.Subscribe(func(s State) {
		mu.Lock()
		seen = append(seen, s.Status())
		mu.Unlock()
	})

	p.events <- Event{Kind: EventChainChanged, ChainID: 56}
	assert.Eventually(t, func() bool { return m.State().Status() == StatusWrongNetwork }, time.Second, 5*time.Millisecond)

	p.events <- Event{Kind: EventChainChanged, ChainID: 97}
	p.events <- Event{Kind: EventAccountsChanged, Accounts: []common.Address{bob}}
	assert.Eventually(t, func() bool { return m.State().Account == bob }, time.Second, 5*time.Millisecond)

	p.events <- Event{Kind: EventDisconnect}
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 4
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Status{StatusWrongNetwork, StatusConnected, StatusConnected, StatusDisconnected}, seen)
}

func TestUnchangedStateDoesNotNotify(t *testing.T) {
	m := attached(t, newFakeProvider(97, alice))
	calls := 0
	m.Subscribe(func(State) { calls++ })

	m.dispatch(action{kind: actChain, chainID: 97})
	assert.Equal(t, 0, calls)
}

func TestUnsubscribe(t *testing.T) {
	m := attached(t, newFakeProvider(97, alice))
	calls := 0
	unsubscribe := m.Subscribe(func(State) { calls++ })
	unsubscribe()

	m.dispatch(action{kind: actChain, chainID: 1})
	assert.Equal(t, 0, calls)
}

func TestDispatchAfterCloseIsIgnored(t *testing.T) {
	m := NewConnectionManager(bscTestnet)
	require.NoError(t, m.Attach(context.Background(), newFakeProvider(97, alice)))
	calls := 0
	m.Subscribe(func(State) { calls++ })

	m.Close()
	before := m.State()
	m.dispatch(action{kind: actAccounts, accounts: []common.Address{bob}})
	m.dispatch(action{kind: actLost})

	assert.Equal(t, before, m.State())
	assert.Equal(t, 0, calls)
	assert.ErrorIs(t, m.RequestNetworkSwitch(context.Background()), ErrProviderAbsent)

	m.Close()
}
