package contract_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/Mohsinsiddi/w3sale/internal/contract"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	saleHex  = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	otherHex = "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"
)

func newRegistry(t *testing.T) *contract.Registry {
	t.Helper()
	return contract.NewRegistry(filepath.Join(t.TempDir(), "sales.json"))
}

func TestNewRegistryEmpty(t *testing.T) {
	assert.Empty(t, newRegistry(t).All())
}

func TestRegistryAddAndGet(t *testing.T) {
	reg := newRegistry(t)
	require.NoError(t, reg.Add(&contract.Entry{Name: "launch", Network: "sepolia", Address: saleHex}))

	got, err := reg.Get("launch", "sepolia")
	require.NoError(t, err)
	assert.Equal(t, saleHex, got.Address)
}

func TestRegistryAddChecksumsAddress(t *testing.T) {
	reg := newRegistry(t)
	e := &contract.Entry{Name: "launch", Network: "sepolia", Address: "0x5fbdb2315678afecb367f032d93f642f64180aa3"}
	require.NoError(t, reg.Add(e))
	assert.Equal(t, saleHex, e.Address)
}

func TestRegistryAddInvalidAddress(t *testing.T) {
	reg := newRegistry(t)
	err := reg.Add(&contract.Entry{Name: "bad", Network: "sepolia", Address: "0xOLD"})
	assert.ErrorContains(t, err, "invalid address")
	assert.Empty(t, reg.All())
}

func TestRegistryAddOverwritesExisting(t *testing.T) {
	reg := newRegistry(t)
	require.NoError(t, reg.Add(&contract.Entry{Name: "launch", Network: "sepolia", Address: saleHex}))
	require.NoError(t, reg.Add(&contract.Entry{Name: "launch", Network: "sepolia", Address: otherHex}))

	got, err := reg.Get("launch", "sepolia")
	require.NoError(t, err)
	assert.Equal(t, otherHex, got.Address)
	assert.Len(t, reg.All(), 1)
}

func TestRegistryGetDifferentNetwork(t *testing.T) {
	reg := newRegistry(t)
	require.NoError(t, reg.Add(&contract.Entry{Name: "launch", Network: "sepolia", Address: saleHex}))

	_, err := reg.Get("launch", "ethereum")
	assert.ErrorIs(t, err, contract.ErrContractNotFound)
}

func TestRegistryAllSorted(t *testing.T) {
	reg := newRegistry(t)
	require.NoError(t, reg.Add(&contract.Entry{Name: "b", Network: "sepolia", Address: saleHex}))
	require.NoError(t, reg.Add(&contract.Entry{Name: "a", Network: "sepolia", Address: saleHex}))
	require.NoError(t, reg.Add(&contract.Entry{Name: "z", Network: "base", Address: otherHex}))

	all := reg.All()
	require.Len(t, all, 3)
	assert.Equal(t, "z", all[0].Name)
	assert.Equal(t, "a", all[1].Name)
	assert.Equal(t, "b", all[2].Name)
}

func TestRegistryRemove(t *testing.T) {
	reg := newRegistry(t)
	require.NoError(t, reg.Add(&contract.Entry{Name: "launch", Network: "sepolia", Address: saleHex}))
	require.NoError(t, reg.Add(&contract.Entry{Name: "launch", Network: "base", Address: saleHex}))

	require.NoError(t, reg.Remove("launch", "sepolia"))
	_, err := reg.Get("launch", "sepolia")
	assert.ErrorIs(t, err, contract.ErrContractNotFound)

	_, err = reg.Get("launch", "base")
	assert.NoError(t, err)

	assert.ErrorIs(t, reg.Remove("ghost", "sepolia"), contract.ErrContractNotFound)
}

func TestRegistryResolve(t *testing.T) {
	reg := newRegistry(t)
	require.NoError(t, reg.Add(&contract.Entry{Name: "launch", Network: "sepolia", Address: saleHex}))

	addr, err := reg.Resolve("launch", "sepolia")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(saleHex), addr)

	addr, err = reg.Resolve(otherHex, "anything")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(otherHex), addr)

	_, err = reg.Resolve("launch", "base")
	assert.ErrorIs(t, err, contract.ErrContractNotFound)
}

func TestRegistryLoadNonExistentFile(t *testing.T) {
	reg := newRegistry(t)
	assert.NoError(t, reg.Load())
	assert.Empty(t, reg.All())
}

func TestRegistryLoadCorruptJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sales.json")
	require.NoError(t, os.WriteFile(path, []byte("{invalid json"), 0o600))

	assert.Error(t, contract.NewRegistry(path).Load())
}

func TestRegistrySaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sales.json")
	reg := contract.NewRegistry(path)
	require.NoError(t, reg.Add(&contract.Entry{Name: "launch", Network: "sepolia", Address: saleHex}))
	require.NoError(t, reg.Add(&contract.Entry{Name: "presale", Network: "base", Address: otherHex}))
	require.NoError(t, reg.Save())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw []contract.Entry
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Len(t, raw, 2)

	reg2 := contract.NewRegistry(path)
	require.NoError(t, reg2.Load())
	got, err := reg2.Get("presale", "base")
	require.NoError(t, err)
	assert.Equal(t, otherHex, got.Address)
}
