// Package ens resolves ENS names so sales and owners can be given as
// "launch.eth" instead of an address.
package ens

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Mohsinsiddi/w3sale/internal/contract"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// RegistryAddress is the ENS registry, same on Ethereum mainnet and Sepolia.
var RegistryAddress = common.HexToAddress("0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e")

// ErrNoRecord is returned when a name has no resolver or no address.
var ErrNoRecord = errors.New("no ENS record")

const ensABI = `[
 {"type":"function","name":"resolver","stateMutability":"view","inputs":[{"name":"node","type":"bytes32"}],"outputs":[{"name":"","type":"address"}]},
 {"type":"function","name":"addr","stateMutability":"view","inputs":[{"name":"node","type":"bytes32"}],"outputs":[{"name":"","type":"address"}]},
 {"type":"function","name":"name","stateMutability":"view","inputs":[{"name":"node","type":"bytes32"}],"outputs":[{"name":"","type":"string"}]}
]`

var parsed = func() abi.ABI {
	a, err := abi.JSON(strings.NewReader(ensABI))
	if err != nil {
		panic(err)
	}
	return a
}()

// IsName reports whether s looks like an ENS name rather than an address.
func IsName(s string) bool {
	return strings.Contains(s, ".") && !common.IsHexAddress(s)
}

// Resolver reads the ENS registry through an eth_call backend.
type Resolver struct {
	caller   contract.Caller
	registry common.Address
}

// NewResolver resolves against the canonical registry.
func NewResolver(caller contract.Caller) *Resolver {
	return &Resolver{caller: caller, registry: RegistryAddress}
}

// Resolve returns the address name points to. Names are lowercased before
// hashing.
func (r *Resolver) Resolve(ctx context.Context, name string) (common.Address, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	node := Namehash(name)

	resolver, err := r.address(ctx, r.registry, "resolver", node)
	if err != nil {
		return common.Address{}, fmt.Errorf("querying ENS registry: %w", err)
	}
	if resolver == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: no resolver set for %q", ErrNoRecord, name)
	}

	addr, err := r.address(ctx, resolver, "addr", node)
	if err != nil {
		return common.Address{}, fmt.Errorf("querying ENS resolver: %w", err)
	}
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: no address record for %q", ErrNoRecord, name)
	}
	return addr, nil
}

// ReverseLookup returns the primary name of address through addr.reverse.
func (r *Resolver) ReverseLookup(ctx context.Context, address common.Address) (string, error) {
	node := Namehash(strings.ToLower(strings.TrimPrefix(address.Hex(), "0x")) + ".addr.reverse")

	resolver, err := r.address(ctx, r.registry, "resolver", node)
	if err != nil {
		return "", fmt.Errorf("querying reverse registry: %w", err)
	}
	if resolver == (common.Address{}) {
		return "", fmt.Errorf("%w: no reverse record for %s", ErrNoRecord, address.Hex())
	}

	out, err := r.call(ctx, resolver, "name", node)
	if err != nil {
		return "", fmt.Errorf("querying reverse resolver: %w", err)
	}
	name, _ := out[0].(string)
	if name == "" {
		return "", fmt.Errorf("%w: no reverse name for %s", ErrNoRecord, address.Hex())
	}
	return name, nil
}

func (r *Resolver) address(ctx context.Context, to common.Address, method string, node common.Hash) (common.Address, error) {
	out, err := r.call(ctx, to, method, node)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%s: unexpected output %T", method, out[0])
	}
	return addr, nil
}

func (r *Resolver) call(ctx context.Context, to common.Address, method string, node common.Hash) ([]interface{}, error) {
	data, err := parsed.Pack(method, node)
	if err != nil {
		return nil, err
	}
	raw, err := r.caller.CallContract(ctx, to, data)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, contract.ErrNoCode
	}
	out, err := parsed.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", method, err)
	}
	return out, nil
}

// Namehash implements the EIP-137 namehash.
//
//	namehash("")    = 0x00...00
//	namehash("eth") = keccak256(namehash("") + keccak256("eth"))
func Namehash(name string) common.Hash {
	var node common.Hash
	if name == "" {
		return node
	}
	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		label := keccak256([]byte(labels[i]))
		node = common.BytesToHash(keccak256(node[:], label))
	}
	return node
}

func keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}
