package ui

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/Mohsinsiddi/w3sale/internal/chain"
	"github.com/Mohsinsiddi/w3sale/internal/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirmFrom(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{" yes \n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		assert.Equal(t, tt.want, ConfirmFrom(strings.NewReader(tt.in), &out, "Buy?"), "%q", tt.in)
		assert.Contains(t, out.String(), "Buy? [y/N]")
	}
}

func TestWalletPromptApproves(t *testing.T) {
	var out bytes.Buffer
	prompt := WalletPrompt(strings.NewReader("y\n"), &out)

	d := chain.Descriptor{ChainID: "0xaa36a7", ChainName: "Sepolia", RPCURLs: []string{"https://rpc.sepolia.example"}}
	ok, err := prompt(context.Background(), wallet.PromptRequest{
		Kind:   wallet.PromptAddChain,
		Wallet: &wallet.Wallet{Name: "buyer", Address: "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"},
		Chain:  &d,
	})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, out.String(), "Add network")
	assert.Contains(t, out.String(), "Sepolia (11155111)")
	assert.Contains(t, out.String(), "buyer")
}

func TestWalletPromptTransactionDetails(t *testing.T) {
	var out bytes.Buffer
	prompt := WalletPrompt(strings.NewReader("n\n"), &out)

	ok, err := prompt(context.Background(), wallet.PromptRequest{
		Kind: wallet.PromptSend,
		Tx: &wallet.TxRequest{
			From: common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"),
			To:   common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"),
			Data: make([]byte, 68),
		},
		Gas: 60000,
	})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, out.String(), "Transaction request")
	assert.Contains(t, out.String(), "68 bytes")
	assert.Contains(t, out.String(), "60000")
}

func TestWalletPromptCanceled(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	prompt := WalletPrompt(r, io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ok, err := prompt(ctx, wallet.PromptRequest{Kind: wallet.PromptConnect})
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
}
