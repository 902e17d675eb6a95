package contract

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ErrNoCode is returned when a call comes back empty, which is what an
// address without a contract answers.
var ErrNoCode = errors.New("no contract code at address")

// Caller runs eth_call. *chain.Client satisfies it.
type Caller interface {
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// call packs method, runs it against to and unpacks the outputs.
func call(ctx context.Context, c Caller, to common.Address, a abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := a.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("packing %s: %w", method, err)
	}
	out, err := c.CallContract(ctx, to, data)
	if err != nil {
		return nil, fmt.Errorf("calling %s on %s: %w", method, to.Hex(), err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("calling %s on %s: %w", method, to.Hex(), ErrNoCode)
	}
	vals, err := a.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", method, err)
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("decoding %s: no outputs", method)
	}
	return vals, nil
}

func callBig(ctx context.Context, c Caller, to common.Address, a abi.ABI, method string, args ...interface{}) (*big.Int, error) {
	vals, err := call(ctx, c, to, a, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected output type %T", method, vals[0])
	}
	return v, nil
}

func callAddress(ctx context.Context, c Caller, to common.Address, a abi.ABI, method string) (common.Address, error) {
	vals, err := call(ctx, c, to, a, method)
	if err != nil {
		return common.Address{}, err
	}
	v, ok := vals[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%s: unexpected output type %T", method, vals[0])
	}
	return v, nil
}

func int64Of(method string, v *big.Int) (int64, error) {
	if !v.IsInt64() {
		return 0, fmt.Errorf("%s: %s does not fit in int64", method, v)
	}
	return v.Int64(), nil
}
