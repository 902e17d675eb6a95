package sale

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Mohsinsiddi/w3sale/internal/wallet"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// State is the orchestrator's position in one purchase attempt.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateApproving
	StatePurchasing
	StateSettling
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateApproving:
		return "approving"
	case StatePurchasing:
		return "purchasing"
	case StateSettling:
		return "settling"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Status is what subscribers render.
type Status struct {
	State    State
	Err      error
	LastTx   *TransactionRecord
	Counters Counters
}

// Busy reports whether an attempt is in flight.
func (s Status) Busy() bool { return s.State != StateIdle && s.State != StateFailed }

// WalletSource exposes the current wallet snapshot. It is read at every
// chain interaction, never cached across one.
type WalletSource interface {
	State() wallet.State
}

// Orchestrator runs approve → buy → confirm → refresh for one sale. Only one
// attempt runs at a time; a concurrent Submit fails with ErrBusy.
type Orchestrator struct {
	params    Parameters
	wallet    WalletSource
	refresher Refresher
	tx        Transactor
	recorder  Recorder
	logger    *zap.Logger
	now       func() time.Time

	busy atomic.Bool

	mu      sync.Mutex
	status  Status
	subs    map[int]func(Status)
	nextSub int
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithRecorder persists every transaction record.
func WithRecorder(r Recorder) OrchestratorOption {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithOrchestratorLogger sets the diagnostics logger.
func WithOrchestratorLogger(l *zap.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.logger = l }
}

// WithOrchestratorClock overrides the submission timestamp clock.
func WithOrchestratorClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator creates an idle orchestrator.
func NewOrchestrator(p Parameters, w WalletSource, r Refresher, tx Transactor, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		params:    p,
		wallet:    w,
		refresher: r,
		tx:        tx,
		logger:    zap.NewNop(),
		now:       time.Now,
		subs:      make(map[int]func(Status)),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Status returns the current status.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Subscribe registers fn for every status change. fn runs on the
// submitting goroutine and must not call Submit.
func (o *Orchestrator) Subscribe(fn func(Status)) (unsubscribe func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	id := o.nextSub
	o.nextSub++
	o.subs[id] = fn
	return func() {
		o.mu.Lock()
		delete(o.subs, id)
		o.mu.Unlock()
	}
}

// Submit buys raw payment-token units worth of sale tokens for the connected
// account. It returns the confirmed purchase record.
//
// Counters are re-read and the amount re-validated first. If the allowance
// is short, an approval for exactly raw is submitted and must confirm before
// the purchase is sent. A user rejection returns the orchestrator to Idle
// without an error status; every other transaction failure refreshes the
// counters before it is returned.
func (o *Orchestrator) Submit(ctx context.Context, raw decimal.Decimal) (*TransactionRecord, error) {
	if !o.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer o.busy.Store(false)

	snap := o.wallet.State()
	if !snap.Connected() {
		return nil, ErrNotConnected
	}
	a := &attempt{o: o, snap: snap}

	o.update(func(s *Status) { s.State, s.Err, s.LastTx = StateValidating, nil, nil })
	counters, err := o.refresher.Refresh(ctx, snap.Account)
	if err != nil {
		return nil, a.fail(ctx, fmt.Errorf("refreshing counters: %w", err))
	}
	o.update(func(s *Status) { s.Counters = counters })

	if err := ValidateForSubmit(raw, counters, o.params); err != nil {
		o.update(func(s *Status) { s.State, s.Err = StateFailed, err })
		o.update(func(s *Status) { s.State = StateIdle })
		return nil, err
	}

	if counters.PaymentAllowance.LessThan(raw) {
		if _, err := a.send(ctx, TxApproval, StateApproving, raw); err != nil {
			return nil, err
		}
	}

	rec, err := a.send(ctx, TxPurchase, StatePurchasing, raw)
	if err != nil {
		return nil, err
	}

	counters, err = o.refresher.Refresh(context.WithoutCancel(ctx), snap.Account)
	if err != nil {
		o.logger.Warn("refreshing counters after purchase", zap.Error(err))
		counters = o.Status().Counters
	}
	o.update(func(s *Status) { s.State, s.Counters = StateIdle, counters })
	return rec, nil
}

// attempt carries the wallet snapshot taken when Submit started.
type attempt struct {
	o    *Orchestrator
	snap wallet.State
}

// send submits one transaction and waits for its confirmation.
func (a *attempt) send(ctx context.Context, kind TxKind, state State, raw decimal.Decimal) (*TransactionRecord, error) {
	o := a.o
	if err := a.checkWallet(); err != nil {
		return nil, a.fail(ctx, err)
	}
	o.update(func(s *Status) { s.State = state })

	var (
		pending PendingTx
		err     error
	)
	switch kind {
	case TxApproval:
		pending, err = o.tx.Approve(ctx, a.snap.Account, o.params.Sale, raw)
	default:
		pending, err = o.tx.Buy(ctx, a.snap.Account, a.snap.Account, raw)
	}
	if err != nil {
		return nil, a.fail(ctx, o.classifySubmit(kind, err))
	}

	rec := TransactionRecord{Kind: kind, Hash: pending.Hash(), Amount: raw, Submitted: o.now()}
	o.logger.Info("transaction submitted", zap.String("kind", string(kind)), zap.String("hash", rec.Hash.Hex()))
	a.record(ctx, rec)
	if kind == TxPurchase {
		o.update(func(s *Status) { s.State = StateSettling })
	}

	if err := pending.Wait(ctx); err != nil {
		if errors.Is(err, ErrTransactionReverted) {
			rec.Reverted = true
			a.record(ctx, rec)
			return nil, a.fail(ctx, fmt.Errorf("%s %s: %w", kind, rec.Hash.Hex(), ErrTransactionReverted))
		}
		return nil, a.fail(ctx, fmt.Errorf("waiting for %s %s: %w", kind, rec.Hash.Hex(), err))
	}

	rec.Confirmed = true
	a.record(ctx, rec)
	o.logger.Info("transaction confirmed", zap.String("kind", string(kind)), zap.String("hash", rec.Hash.Hex()))
	return &rec, nil
}

// checkWallet fails if the account or chain moved since the attempt began.
func (a *attempt) checkWallet() error {
	cur := a.o.wallet.State()
	if !cur.Connected() || cur.Account != a.snap.Account || cur.ChainID != a.snap.ChainID {
		return ErrWalletChanged
	}
	return nil
}

func (a *attempt) record(ctx context.Context, rec TransactionRecord) {
	o := a.o
	r := rec
	o.update(func(s *Status) { s.LastTx = &r })
	if o.recorder == nil {
		return
	}
	err := o.recorder.Record(context.WithoutCancel(ctx), Receipt{
		ChainID:           a.snap.ChainID,
		Sale:              o.params.Sale,
		Account:           a.snap.Account,
		TransactionRecord: rec,
	})
	if err != nil {
		o.logger.Warn("recording transaction", zap.String("hash", rec.Hash.Hex()), zap.Error(err))
	}
}

// fail refreshes the counters and returns to Idle. A user rejection leaves
// no error in the status.
func (a *attempt) fail(ctx context.Context, err error) error {
	o := a.o
	rejected := errors.Is(err, wallet.ErrUserRejected)
	if !rejected {
		o.update(func(s *Status) { s.State, s.Err = StateFailed, err })
	}

	account := a.snap.Account
	if cur := o.wallet.State(); cur.HasAccount() {
		account = cur.Account
	}
	counters, rerr := o.refresher.Refresh(context.WithoutCancel(ctx), account)
	if rerr != nil {
		o.logger.Warn("refreshing counters after failure", zap.Error(rerr))
		counters = o.Status().Counters
	}

	o.update(func(s *Status) {
		s.State, s.Counters = StateIdle, counters
		if rejected {
			s.Err = nil
		}
	})
	return err
}

// classifySubmit maps a wallet error raised while submitting.
func (o *Orchestrator) classifySubmit(kind TxKind, err error) error {
	switch {
	case errors.Is(err, wallet.ErrUserRejected):
		o.logger.Debug("user rejected transaction", zap.String("kind", string(kind)))
		return err
	case wallet.IsBenign(err):
		return err
	case errors.Is(err, wallet.ErrExecutionReverted):
		o.logger.Info("wallet refused transaction that would revert", zap.String("kind", string(kind)), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrStaleCounters, err)
	default:
		o.logger.Error("unexpected wallet error", zap.String("kind", string(kind)), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrUnexpectedProvider, err)
	}
}

func (o *Orchestrator) update(fn func(*Status)) {
	o.mu.Lock()
	prev := o.status
	fn(&o.status)
	next := o.status
	subs := make([]func(Status), 0, len(o.subs))
	for _, s := range o.subs {
		subs = append(subs, s)
	}
	o.mu.Unlock()

	if statusEqual(prev, next) {
		return
	}
	for _, s := range subs {
		s(next)
	}
}

func statusEqual(a, b Status) bool {
	return a.State == b.State &&
		a.Err == b.Err &&
		a.LastTx == b.LastTx &&
		a.Counters.RefreshedAt.Equal(b.Counters.RefreshedAt)
}
