package sale_test

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/Mohsinsiddi/w3sale/internal/sale"
	"github.com/Mohsinsiddi/w3sale/internal/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

var (
	buyer    = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	saleAddr = common.HexToAddress("0x0000000000000000000000000000000000005a1e")
)

// fakeWallet is a WalletWatcher whose state tests set directly.
type fakeWallet struct {
	mu    sync.Mutex
	state wallet.State
	subs  map[int]func(wallet.State)
	next  int
}

func connectedWallet() *fakeWallet {
	return &fakeWallet{
		state: wallet.State{Present: true, Account: buyer, ChainID: 97, Required: 97},
		subs:  make(map[int]func(wallet.State)),
	}
}

func (w *fakeWallet) State() wallet.State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *fakeWallet) set(fn func(*wallet.State)) {
	w.mu.Lock()
	fn(&w.state)
	st := w.state
	subs := make([]func(wallet.State), 0, len(w.subs))
	for _, s := range w.subs {
		subs = append(subs, s)
	}
	w.mu.Unlock()
	for _, s := range subs {
		s(st)
	}
}

func (w *fakeWallet) Subscribe(fn func(wallet.State)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.next
	w.next++
	w.subs[id] = fn
	return func() {
		w.mu.Lock()
		delete(w.subs, id)
		w.mu.Unlock()
	}
}

// fakeChain plays both the counters source and the transactor, so a
// confirmed transaction changes what the next Refresh returns.
type fakeChain struct {
	mu       sync.Mutex
	counters sale.Counters
	rate     int64
	refreshN int
	accounts []common.Address
	log      []string
	nonce    int
	clock    time.Time

	approveErr error
	buyErr     error
	approveRes error // result of Wait
	buyRes     error
	buyGate    chan struct{} // when set, Buy blocks until closed
	onApprove  func()

	holdFor     common.Address
	holdRefresh chan struct{} // when set, Refresh for holdFor blocks until closed
	holding     chan struct{} // receives once a Refresh is blocked on holdRefresh
}

func newFakeChain(c sale.Counters) *fakeChain {
	return &fakeChain{counters: c, rate: 1000, clock: time.Unix(1_700_000_000, 0)}
}

func (f *fakeChain) Refresh(_ context.Context, account common.Address) (sale.Counters, error) {
	f.mu.Lock()
	hold, holding := f.holdRefresh, f.holding
	if account != f.holdFor {
		hold = nil
	}
	f.mu.Unlock()
	if hold != nil {
		if holding != nil {
			holding <- struct{}{}
		}
		<-hold
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshN++
	f.accounts = append(f.accounts, account)
	f.clock = f.clock.Add(time.Second)
	c := f.counters
	c.Account = account
	c.RefreshedAt = f.clock
	return c, nil
}

func (f *fakeChain) refreshes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshN
}

func (f *fakeChain) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.log...)
}

func (f *fakeChain) Approve(_ context.Context, from, spender common.Address, amt decimal.Decimal) (sale.PendingTx, error) {
	if f.onApprove != nil {
		f.onApprove()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = append(f.log, "approve "+amt.String())
	if f.approveErr != nil {
		return nil, f.approveErr
	}
	return f.pending(func() error {
		if f.approveRes != nil {
			return f.approveRes
		}
		f.counters.PaymentAllowance = amt
		return nil
	}), nil
}

func (f *fakeChain) Buy(_ context.Context, from, beneficiary common.Address, amt decimal.Decimal) (sale.PendingTx, error) {
	if f.buyGate != nil {
		<-f.buyGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = append(f.log, fmt.Sprintf("buy %s allowance=%s", amt, f.counters.PaymentAllowance))
	if f.buyErr != nil {
		return nil, f.buyErr
	}
	return f.pending(func() error {
		if f.buyRes != nil {
			return f.buyRes
		}
		tokens := amt.Mul(decimal.NewFromInt(f.rate))
		f.counters.TotalSold = f.counters.TotalSold.Add(tokens)
		f.counters.Contribution = f.counters.Contribution.Add(tokens)
		f.counters.PaymentBalance = f.counters.PaymentBalance.Sub(amt)
		f.counters.PaymentAllowance = f.counters.PaymentAllowance.Sub(amt)
		return nil
	}), nil
}

// pending must be called with f.mu held.
func (f *fakeChain) pending(mine func() error) *fakePending {
	f.nonce++
	return &fakePending{
		hash: common.BigToHash(big.NewInt(int64(f.nonce))),
		mine: func() error {
			f.mu.Lock()
			defer f.mu.Unlock()
			return mine()
		},
	}
}

type fakePending struct {
	hash common.Hash
	mine func() error
}

func (p *fakePending) Hash() common.Hash { return p.hash }

func (p *fakePending) Wait(context.Context) error { return p.mine() }

// memRecorder keeps every receipt it is given.
type memRecorder struct {
	mu       sync.Mutex
	receipts []sale.Receipt
}

func (r *memRecorder) Record(_ context.Context, rc sale.Receipt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.receipts = append(r.receipts, rc)
	return nil
}

func (r *memRecorder) all() []sale.Receipt {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sale.Receipt(nil), r.receipts...)
}
