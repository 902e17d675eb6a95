package wallet

import (
	"context"
	"errors"
	"sync"

	"github.com/Mohsinsiddi/w3sale/internal/chain"
)

// DetectFunc finds the wallet provider for this session. It returns
// ErrProviderAbsent when there is none.
type DetectFunc func(ctx context.Context) (Provider, error)

// Shared hands one ConnectionManager to any number of consumers. The first
// Acquire detects and attaches the provider; the last release closes the
// manager and, when it holds connections, the provider too.
type Shared struct {
	target chain.Descriptor
	detect DetectFunc
	opts   []ManagerOption

	mu       sync.Mutex
	refs     int
	mgr      *ConnectionManager
	provider Provider
}

// closer is implemented by providers that hold network connections.
type closer interface {
	Close()
}

func closeProvider(p Provider) {
	if c, ok := p.(closer); ok {
		c.Close()
	}
}

// NewShared creates a holder for target.
func NewShared(target chain.Descriptor, detect DetectFunc, opts ...ManagerOption) *Shared {
	return &Shared{target: target, detect: detect, opts: opts}
}

// Acquire returns the shared manager and a release func. A missing provider
// is not an error: the manager is returned in the Unavailable state.
func (s *Shared) Acquire(ctx context.Context) (*ConnectionManager, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mgr == nil {
		mgr := NewConnectionManager(s.target, s.opts...)
		p, err := s.detect(ctx)
		switch {
		case errors.Is(err, ErrProviderAbsent):
			p = nil
		case err != nil:
			return nil, nil, err
		}
		if err := mgr.Attach(ctx, p); err != nil && !errors.Is(err, ErrProviderAbsent) {
			mgr.Close()
			closeProvider(p)
			return nil, nil, err
		}
		s.mgr, s.provider = mgr, p
	}

	s.refs++
	mgr := s.mgr
	var once sync.Once
	release := func() {
		once.Do(func() { s.release(mgr) })
	}
	return mgr, release, nil
}

// Refs is the number of live consumers.
func (s *Shared) Refs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs
}

func (s *Shared) release(mgr *ConnectionManager) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mgr != mgr {
		return
	}
	s.refs--
	if s.refs == 0 {
		s.mgr.Close()
		closeProvider(s.provider)
		s.mgr, s.provider = nil, nil
	}
}
