package wallet

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/Mohsinsiddi/w3sale/internal/chain"
)

// ErrCorruptSession means the session file exists but cannot be parsed. It is
// left untouched so added networks are not lost; deleting the file starts
// over.
var ErrCorruptSession = errors.New("session file is corrupt")

// Session persists what a local wallet remembers between runs: which
// wallets the user authorized, which networks were added, and the current
// network. The file is 0600 so only the current user can read it.
type Session struct {
	path string
	mu   sync.Mutex
}

type sessionFile struct {
	Authorized   map[string]string           `json:"authorized"` // wallet name → RFC3339 grant time
	Chains       map[string]chain.Descriptor `json:"chains"`     // decimal chain id → descriptor
	CurrentChain int64                       `json:"current_chain"`
}

// DefaultSessionPath returns the per-user session file.
//
//	macOS:   ~/Library/Caches/w3sale/session.json
//	Linux:   ~/.cache/w3sale/session.json
//	Windows: %LocalAppData%\w3sale\session.json
func DefaultSessionPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "w3sale", "session.json")
}

// NewSession opens the session stored at path.
func NewSession(path string) *Session {
	return &Session{path: path}
}

// Authorized reports whether the user granted name access.
func (s *Session) Authorized(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.read().Authorized[name]
	return ok
}

// Authorize records a grant for name.
func (s *Session) Authorize(name string) error {
	return s.update(func(f *sessionFile) {
		f.Authorized[name] = time.Now().UTC().Format(time.RFC3339)
	})
}

// Revoke removes the grant for name.
func (s *Session) Revoke(name string) error {
	return s.update(func(f *sessionFile) {
		delete(f.Authorized, name)
	})
}

// Chain returns an added network.
func (s *Session) Chain(id int64) (chain.Descriptor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.read().Chains[strconv.FormatInt(id, 10)]
	return d, ok
}

// AddChain remembers a network descriptor.
func (s *Session) AddChain(d chain.Descriptor) error {
	return s.update(func(f *sessionFile) {
		f.Chains[strconv.FormatInt(d.ID(), 10)] = d
	})
}

// CurrentChain is the selected network, or 0 if never set.
func (s *Session) CurrentChain() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().CurrentChain
}

// SetCurrentChain selects a network.
func (s *Session) SetCurrentChain(id int64) error {
	return s.update(func(f *sessionFile) {
		f.CurrentChain = id
	})
}

// Clear deletes the session file.
func (s *Session) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// load reads the session file. A missing file is an empty session.
func (s *Session) load() (*sessionFile, error) {
	f := &sessionFile{}
	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading session: %w", err)
	default:
		if err := json.Unmarshal(data, f); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCorruptSession, s.path, err)
		}
	}
	if f.Authorized == nil {
		f.Authorized = make(map[string]string)
	}
	if f.Chains == nil {
		f.Chains = make(map[string]chain.Descriptor)
	}
	return f, nil
}

// read is load for queries: an unreadable session grants nothing.
func (s *Session) read() *sessionFile {
	f, err := s.load()
	if err != nil {
		return &sessionFile{Authorized: map[string]string{}, Chains: map[string]chain.Descriptor{}}
	}
	return f
}

func (s *Session) update(fn func(*sessionFile)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.load()
	if err != nil {
		return err
	}
	fn(f)

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}
