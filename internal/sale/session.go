package sale

import (
	"context"
	"strings"
	"sync"

	"github.com/Mohsinsiddi/w3sale/internal/amount"
	"github.com/Mohsinsiddi/w3sale/internal/wallet"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// WalletWatcher is a WalletSource that also reports changes.
type WalletWatcher interface {
	WalletSource
	Subscribe(fn func(wallet.State)) (unsubscribe func())
}

// View is everything a purchase screen renders.
type View struct {
	Input    string
	Intent   Intent
	InputErr error
	Wallet   wallet.State
	Purchase Status
	Counters Counters
}

// Session binds a user's amount input, the wallet and one orchestrator for a
// sale. The input is re-clamped against every counters refresh, so the shown
// amount never exceeds what the sale admits. Counters are refreshed on Start,
// after every purchase attempt and whenever the wallet account or chain
// changes.
type Session struct {
	params    Parameters
	wallet    WalletWatcher
	refresher Refresher
	orch      *Orchestrator
	logger    *zap.Logger

	mu       sync.Mutex
	input    string
	intent   Intent
	inputErr error
	counters Counters
	subs     map[int]func(View)
	nextSub  int

	walletChanged chan struct{}
	stop          []func()
	cancel        context.CancelFunc
	done          chan struct{}
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionLogger sets the diagnostics logger.
func WithSessionLogger(l *zap.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// NewSession creates a session. Call Start before use.
func NewSession(p Parameters, w WalletWatcher, r Refresher, o *Orchestrator, opts ...SessionOption) *Session {
	s := &Session{
		params:        p,
		wallet:        w,
		refresher:     r,
		orch:          o,
		logger:        zap.NewNop(),
		subs:          make(map[int]func(View)),
		walletChanged: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads the counters and begins following wallet changes.
func (s *Session) Start(ctx context.Context) error {
	if err := s.Refresh(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.done = make(chan struct{})

	s.stop = append(s.stop,
		s.wallet.Subscribe(func(wallet.State) {
			select {
			case s.walletChanged <- struct{}{}:
			default:
			}
		}),
		s.orch.Subscribe(func(st Status) {
			s.adoptCounters(st.Counters)
			s.notify()
		}),
	)

	go s.follow(runCtx)
	return nil
}

func (s *Session) follow(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.walletChanged:
			if err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("refreshing counters after wallet change", zap.Error(err))
			}
		}
	}
}

// Close stops following the wallet. Safe to call twice.
func (s *Session) Close() {
	for _, stop := range s.stop {
		stop()
	}
	s.stop = nil
	if s.cancel != nil {
		s.cancel()
		<-s.done
		s.cancel = nil
	}
}

// Refresh reloads the counters for the current account.
func (s *Session) Refresh(ctx context.Context) error {
	c, err := s.refresher.Refresh(ctx, s.wallet.State().Account)
	if err != nil {
		return err
	}
	s.adoptCounters(c)
	s.notify()
	return nil
}

// OnAmountChange sets the user's input. The returned intent is already
// clamped; an unparsable input yields a zero intent and InputErr.
func (s *Session) OnAmountChange(input string) (Intent, error) {
	s.mu.Lock()
	s.input = input
	s.recompute()
	intent, err := s.intent, s.inputErr
	s.mu.Unlock()

	s.notify()
	return intent, err
}

// MaxAmount sets the input to the whole payment balance, clamped.
func (s *Session) MaxAmount() Intent {
	s.mu.Lock()
	intent := MaxAmount(s.counters, s.params)
	s.input = intent.Raw.String()
	s.intent, s.inputErr = intent, nil
	s.mu.Unlock()

	s.notify()
	return intent
}

// OnSubmit buys the current intent.
func (s *Session) OnSubmit(ctx context.Context) (*TransactionRecord, error) {
	s.mu.Lock()
	raw, inputErr := s.intent.Raw, s.inputErr
	s.mu.Unlock()

	if inputErr != nil {
		return nil, invalid(ErrEmptyAmount, inputErr.Error())
	}
	return s.orch.Submit(ctx, raw)
}

// View returns the current view.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Subscribe registers fn for every view change.
func (s *Session) Subscribe(fn func(View)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// adoptCounters keeps the newest snapshot for the wallet's current account
// and re-clamps the input with it. A read for an account the wallet has
// already left is dropped however late it finishes.
func (s *Session) adoptCounters(c Counters) {
	if c.RefreshedAt.IsZero() || c.Account != s.wallet.State().Account {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.Account == s.counters.Account && c.RefreshedAt.Before(s.counters.RefreshedAt) {
		return
	}
	s.counters = c
	s.recompute()
}

// recompute derives the intent from the user's last input, not from the
// previously clamped value. Caller holds s.mu.
func (s *Session) recompute() {
	s.inputErr = nil
	if strings.TrimSpace(s.input) == "" {
		s.intent = Intent{Raw: decimal.Zero, Tokens: decimal.Zero}
		return
	}
	raw, err := amount.TruncateInput(s.input, int32(s.params.Decimals))
	if err != nil {
		s.intent = Intent{Raw: decimal.Zero, Tokens: decimal.Zero}
		s.inputErr = err
		return
	}
	s.intent = NewIntent(raw, s.counters, s.params)
}

func (s *Session) viewLocked() View {
	return View{
		Input:    s.input,
		Intent:   s.intent,
		InputErr: s.inputErr,
		Wallet:   s.wallet.State(),
		Purchase: s.orch.Status(),
		Counters: s.counters,
	}
}

func (s *Session) notify() {
	s.mu.Lock()
	v := s.viewLocked()
	subs := make([]func(View), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(v)
	}
}
