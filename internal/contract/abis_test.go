package contract_test

import (
	"testing"

	"github.com/Mohsinsiddi/w3sale/internal/contract"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinsRegistered(t *testing.T) {
	ids := make([]string, 0)
	for _, b := range contract.AllBuiltins() {
		ids = append(ids, b.ID)
	}
	assert.Contains(t, ids, contract.BuiltinCrowdsale)
	assert.Contains(t, ids, contract.BuiltinERC20)
	assert.IsIncreasing(t, ids)
}

func TestGetBuiltinNotFound(t *testing.T) {
	_, ok := contract.GetBuiltin("this-id-does-not-exist-xyz")
	assert.False(t, ok)
}

func TestParsedCrowdsaleABI(t *testing.T) {
	a, err := contract.ParsedABI(contract.BuiltinCrowdsale)
	require.NoError(t, err)

	for _, m := range []string{
		"rate", "cap", "individualCap", "minPurchaseAmount", "goal",
		"openingTime", "closingTime", "totalSold", "token", "paymentToken",
		"isOpen", "contributionOf", "buy",
	} {
		_, ok := a.Methods[m]
		assert.True(t, ok, "missing method %s", m)
	}
	assert.Contains(t, a.Events, "TokensPurchased")
	assert.True(t, a.Methods["isOpen"].IsConstant())
	assert.False(t, a.Methods["buy"].IsConstant())
}

func TestParsedERC20ABI(t *testing.T) {
	a, err := contract.ParsedABI(contract.BuiltinERC20)
	require.NoError(t, err)

	approve, ok := a.Methods["approve"]
	require.True(t, ok)
	assert.Equal(t, "approve(address,uint256)", approve.Sig)
	assert.Equal(t, "0x095ea7b3", hexutil.Encode(approve.ID))
}

func TestParsedABIUnknown(t *testing.T) {
	_, err := contract.ParsedABI("nope")
	assert.ErrorContains(t, err, "unknown builtin ABI")
}

func TestRegisterBuiltinInvalidatesCache(t *testing.T) {
	id := "test-builtin-reregister"
	contract.RegisterBuiltin(contract.BuiltinKind{ID: id, ABI: []contract.ABIEntry{
		{Name: "a", Type: "function", StateMutability: "view"},
	}})
	first, err := contract.ParsedABI(id)
	require.NoError(t, err)
	assert.Contains(t, first.Methods, "a")

	contract.RegisterBuiltin(contract.BuiltinKind{ID: id, ABI: []contract.ABIEntry{
		{Name: "b", Type: "function", StateMutability: "view"},
	}})
	second, err := contract.ParsedABI(id)
	require.NoError(t, err)
	assert.NotContains(t, second.Methods, "a")
	assert.Contains(t, second.Methods, "b")
}

func TestIsReadFunction(t *testing.T) {
	tests := []struct {
		entry contract.ABIEntry
		want  bool
	}{
		{contract.ABIEntry{Type: "function", StateMutability: "view"}, true},
		{contract.ABIEntry{Type: "function", StateMutability: "pure"}, true},
		{contract.ABIEntry{Type: "function", StateMutability: "nonpayable"}, false},
		{contract.ABIEntry{Type: "event"}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.entry.IsReadFunction(), tt.entry)
	}
}
