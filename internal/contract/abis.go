package contract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// BuiltinKind describes a built-in contract type whose ABI is embedded in the
// binary. New built-ins register themselves via init() in their own file.
type BuiltinKind struct {
	ID          string     // machine key, e.g. "crowdsale", "erc20"
	Name        string     // human label
	Description string     // one-line summary
	ABI         []ABIEntry // full ABI, ready to use
}

var (
	builtinMu       sync.RWMutex
	builtinRegistry = map[string]BuiltinKind{}
	parsedCache     = map[string]abi.ABI{}
)

// RegisterBuiltin adds a built-in ABI to the global registry.
// Call this from init() in the file that defines the ABI.
func RegisterBuiltin(b BuiltinKind) {
	builtinMu.Lock()
	defer builtinMu.Unlock()
	builtinRegistry[b.ID] = b
	delete(parsedCache, b.ID)
}

// GetBuiltin returns a built-in by ID. ok is false if not found.
func GetBuiltin(id string) (BuiltinKind, bool) {
	builtinMu.RLock()
	defer builtinMu.RUnlock()
	b, ok := builtinRegistry[id]
	return b, ok
}

// AllBuiltins returns all registered built-ins sorted by ID.
func AllBuiltins() []BuiltinKind {
	builtinMu.RLock()
	defer builtinMu.RUnlock()
	out := make([]BuiltinKind, 0, len(builtinRegistry))
	for _, b := range builtinRegistry {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ParsedABI returns the go-ethereum ABI for a built-in, parsing it once.
func ParsedABI(id string) (abi.ABI, error) {
	builtinMu.RLock()
	parsed, ok := parsedCache[id]
	b, known := builtinRegistry[id]
	builtinMu.RUnlock()
	if ok {
		return parsed, nil
	}
	if !known {
		return abi.ABI{}, fmt.Errorf("unknown builtin ABI %q", id)
	}

	parsed, err := ParseEntries(b.ABI)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("builtin %s: %w", id, err)
	}

	builtinMu.Lock()
	parsedCache[id] = parsed
	builtinMu.Unlock()
	return parsed, nil
}

// ParseEntries converts ABI entries into a go-ethereum ABI.
func ParseEntries(entries []ABIEntry) (abi.ABI, error) {
	data, err := json.Marshal(entries)
	if err != nil {
		return abi.ABI{}, err
	}
	return abi.JSON(bytes.NewReader(data))
}

func mustABI(id string) abi.ABI {
	a, err := ParsedABI(id)
	if err != nil {
		panic(err)
	}
	return a
}
