package chain

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rpcMock answers JSON-RPC calls from a method→result table. A value of type
// func() interface{} is evaluated per request so tests can script sequences.
func rpcMock(t *testing.T, responses map[string]interface{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string          `json:"method"`
			ID     json.RawMessage `json:"id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		result, ok := responses[req.Method]
		switch {
		case !ok:
			resp["error"] = map[string]interface{}{"code": -32601, "message": "method not found"}
		default:
			if fn, isFn := result.(func() interface{}); isFn {
				result = fn()
			}
			if e, isErr := result.(rpcErr); isErr {
				resp["error"] = map[string]interface{}{"code": e.code, "message": e.msg}
			} else {
				resp["result"] = result
			}
		}
		json.NewEncoder(w).Encode(resp) //nolint:errcheck
	}))
	t.Cleanup(srv.Close)
	return srv
}

type rpcErr struct {
	code int
	msg  string
}

func receiptJSON(status string) map[string]interface{} {
	return map[string]interface{}{
		"type":              "0x2",
		"status":            status,
		"cumulativeGasUsed": "0x5208",
		"gasUsed":           "0x5208",
		"logsBloom":         "0x" + strings.Repeat("0", 512),
		"logs":              []interface{}{},
		"transactionHash":   "0x" + strings.Repeat("ab", 32),
		"blockHash":         "0x" + strings.Repeat("cd", 32),
		"blockNumber":       "0x10",
		"transactionIndex":  "0x0",
	}
}

func TestDialFailsOverToMatchingChain(t *testing.T) {
	wrong := rpcMock(t, map[string]interface{}{"eth_chainId": "0x1"})
	right := rpcMock(t, map[string]interface{}{"eth_chainId": "0x61"})

	c, err := Dial(context.Background(), []string{wrong.URL, right.URL}, 97)
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, right.URL, c.URL())
	assert.Equal(t, int64(97), c.ChainID().Int64())
}

func TestDialAllEndpointsFail(t *testing.T) {
	wrong := rpcMock(t, map[string]interface{}{"eth_chainId": "0x1"})

	_, err := Dial(context.Background(), []string{wrong.URL}, 97)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chain ID mismatch")
}

func TestDialNoEndpoints(t *testing.T) {
	_, err := Dial(context.Background(), nil, 1)
	assert.Error(t, err)
}

func TestCallContractReturnsData(t *testing.T) {
	srv := rpcMock(t, map[string]interface{}{
		"eth_chainId": "0x61",
		"eth_call":    "0x" + strings.Repeat("0", 63) + "1",
	})
	c, err := Dial(context.Background(), []string{srv.URL}, 97, WithRateLimit(0))
	require.NoError(t, err)

	out, err := c.CallContract(context.Background(), common.HexToAddress("0x01"), []byte{0x01})
	require.NoError(t, err)
	require.Len(t, out, 32)
	assert.Equal(t, byte(1), out[31])
}

func TestCallContractRevertIsDetected(t *testing.T) {
	srv := rpcMock(t, map[string]interface{}{
		"eth_chainId": "0x61",
		"eth_call":    rpcErr{code: 3, msg: "execution reverted: Crowdsale: not open"},
	})
	c, err := Dial(context.Background(), []string{srv.URL}, 97, WithRateLimit(0))
	require.NoError(t, err)

	_, err = c.CallContract(context.Background(), common.HexToAddress("0x01"), nil)
	require.Error(t, err)
	assert.True(t, IsRevert(err))
	assert.Equal(t, "Crowdsale: not open", RevertReason(err))
}

func TestWaitMinedSuccess(t *testing.T) {
	var polls atomic.Int32
	srv := rpcMock(t, map[string]interface{}{
		"eth_chainId": "0x61",
		"eth_getTransactionReceipt": func() interface{} {
			if polls.Add(1) < 3 {
				return nil // pending
			}
			return receiptJSON("0x1")
		},
	})
	c, err := Dial(context.Background(), []string{srv.URL}, 97,
		WithPollInterval(5*time.Millisecond), WithRateLimit(0))
	require.NoError(t, err)

	receipt, err := c.WaitMined(context.Background(), common.HexToHash("0xab"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), receipt.Status)
	assert.GreaterOrEqual(t, polls.Load(), int32(3))
}

func TestWaitMinedReverted(t *testing.T) {
	srv := rpcMock(t, map[string]interface{}{
		"eth_chainId":               "0x61",
		"eth_getTransactionReceipt": receiptJSON("0x0"),
	})
	c, err := Dial(context.Background(), []string{srv.URL}, 97,
		WithPollInterval(5*time.Millisecond), WithRateLimit(0))
	require.NoError(t, err)

	receipt, err := c.WaitMined(context.Background(), common.HexToHash("0xab"))
	assert.ErrorIs(t, err, ErrReverted)
	require.NotNil(t, receipt)
}

func TestWaitMinedHonorsContext(t *testing.T) {
	srv := rpcMock(t, map[string]interface{}{
		"eth_chainId":               "0x61",
		"eth_getTransactionReceipt": nil,
	})
	c, err := Dial(context.Background(), []string{srv.URL}, 97,
		WithPollInterval(5*time.Millisecond), WithRateLimit(0))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = c.WaitMined(ctx, common.HexToHash("0xab"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestIsRevert(t *testing.T) {
	assert.False(t, IsRevert(nil))
	assert.False(t, IsRevert(errors.New("connection refused")))
	assert.True(t, IsRevert(errors.New("execution reverted")))
	assert.Equal(t, "", RevertReason(errors.New("execution reverted")))
}
