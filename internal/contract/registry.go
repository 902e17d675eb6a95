package contract

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// ErrContractNotFound is returned when a saved sale is not found.
var ErrContractNotFound = errors.New("contract not found")

// ABIEntry is one ABI entry (function, event, etc.).
type ABIEntry struct {
	Name            string     `json:"name"`
	Type            string     `json:"type"`
	Inputs          []ABIParam `json:"inputs"`
	Outputs         []ABIParam `json:"outputs"`
	StateMutability string     `json:"stateMutability,omitempty"`
}

// ABIParam is a parameter in an ABI entry.
type ABIParam struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Indexed bool   `json:"indexed,omitempty"`
}

// IsReadFunction returns true if the function is read-only (view/pure).
func (e ABIEntry) IsReadFunction() bool {
	return e.Type == "function" &&
		(e.StateMutability == "view" || e.StateMutability == "pure")
}

// Entry is a saved crowdsale, so users can type `buy mysale` instead of an address.
type Entry struct {
	Name    string `json:"name"`
	Network string `json:"network"`
	Address string `json:"address"`
}

// Registry stores and retrieves saved sales.
type Registry struct {
	path      string
	contracts map[string]*Entry // key: "name@network"
}

// NewRegistry creates a Registry backed by a JSON file.
func NewRegistry(path string) *Registry {
	return &Registry{
		path:      path,
		contracts: make(map[string]*Entry),
	}
}

// Load reads stored sales from disk.
func (r *Registry) Load() error {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parsing %s: %w", r.path, err)
	}

	for i := range entries {
		e := &entries[i]
		r.contracts[key(e.Name, e.Network)] = e
	}
	return nil
}

// Save writes all sales to disk.
func (r *Registry) Save() error {
	data, err := json.MarshalIndent(r.sorted(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(r.path, data, 0o600)
}

// Add adds or updates an entry after checking the address.
func (r *Registry) Add(e *Entry) error {
	if !common.IsHexAddress(e.Address) {
		return fmt.Errorf("invalid address %q", e.Address)
	}
	e.Address = common.HexToAddress(e.Address).Hex()
	r.contracts[key(e.Name, e.Network)] = e
	return nil
}

// Get returns an entry by name and network.
func (r *Registry) Get(name, network string) (*Entry, error) {
	e, ok := r.contracts[key(name, network)]
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrContractNotFound, name, network)
	}
	return e, nil
}

// All returns all saved sales sorted by network then name.
func (r *Registry) All() []*Entry {
	entries := r.sorted()
	out := make([]*Entry, len(entries))
	for i := range entries {
		out[i] = r.contracts[key(entries[i].Name, entries[i].Network)]
	}
	return out
}

// Remove deletes an entry.
func (r *Registry) Remove(name, network string) error {
	k := key(name, network)
	if _, ok := r.contracts[k]; !ok {
		return fmt.Errorf("%w: %s on %s", ErrContractNotFound, name, network)
	}
	delete(r.contracts, k)
	return nil
}

// Resolve turns a name or a hex address into an address on network.
func (r *Registry) Resolve(nameOrAddress, network string) (common.Address, error) {
	if common.IsHexAddress(nameOrAddress) {
		return common.HexToAddress(nameOrAddress), nil
	}
	e, err := r.Get(nameOrAddress, network)
	if err != nil {
		return common.Address{}, err
	}
	return common.HexToAddress(e.Address), nil
}

func (r *Registry) sorted() []Entry {
	entries := make([]Entry, 0, len(r.contracts))
	for _, e := range r.contracts {
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Network != entries[j].Network {
			return entries[i].Network < entries[j].Network
		}
		return entries[i].Name < entries[j].Name
	})
	return entries
}

func key(name, network string) string {
	return name + "@" + network
}
