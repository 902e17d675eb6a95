package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Mohsinsiddi/w3sale/internal/wallet"
)

// Confirm prompts the user with a yes/no question on stdin. Returns true for yes.
func Confirm(prompt string) bool {
	return ConfirmFrom(os.Stdin, os.Stdout, StyleWarning.Render(prompt))
}

// ConfirmDanger is like Confirm but styled with the error color (for destructive actions).
func ConfirmDanger(prompt string) bool {
	return ConfirmFrom(os.Stdin, os.Stdout, StyleError.Render("⚠ "+prompt))
}

// ConfirmFrom asks prompt on out and reads the answer from in.
func ConfirmFrom(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", prompt)
	line, _ := bufio.NewReader(in).ReadString('\n')
	line = strings.TrimSpace(strings.ToLower(line))
	return line == "y" || line == "yes"
}

// WalletPrompt turns the local wallet's approval requests into terminal
// questions. A canceled context returns the context error.
func WalletPrompt(in io.Reader, out io.Writer) wallet.PromptFunc {
	reader := bufio.NewReader(in)
	return func(ctx context.Context, req wallet.PromptRequest) (bool, error) {
		fmt.Fprintln(out, KeyValueBlock(promptTitle(req.Kind), promptPairs(req)))
		fmt.Fprintf(out, "%s [y/N]: ", StyleWarning.Render("Approve?"))

		answer := make(chan string, 1)
		go func() {
			line, _ := reader.ReadString('\n')
			answer <- strings.TrimSpace(strings.ToLower(line))
		}()
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return false, ctx.Err()
		case line := <-answer:
			return line == "y" || line == "yes", nil
		}
	}
}

func promptTitle(k wallet.PromptKind) string {
	switch k {
	case wallet.PromptConnect:
		return "Connection request"
	case wallet.PromptAddChain:
		return "Add network"
	case wallet.PromptSend:
		return "Transaction request"
	default:
		return "Wallet request"
	}
}

func promptPairs(req wallet.PromptRequest) [][2]string {
	var pairs [][2]string
	if req.Wallet != nil {
		pairs = append(pairs, [2]string{"Wallet", fmt.Sprintf("%s (%s)", req.Wallet.Name, TruncateAddr(req.Wallet.Address))})
	}
	if req.Chain != nil {
		pairs = append(pairs, [2]string{"Network", fmt.Sprintf("%s (%d)", req.Chain.ChainName, req.Chain.ID())})
		if len(req.Chain.RPCURLs) > 0 {
			pairs = append(pairs, [2]string{"RPC", req.Chain.RPCURLs[0]})
		}
	}
	if req.Tx != nil {
		pairs = append(pairs,
			[2]string{"From", req.Tx.From.Hex()},
			[2]string{"To", req.Tx.To.Hex()},
			[2]string{"Data", fmt.Sprintf("%d bytes", len(req.Tx.Data))},
		)
	}
	if req.Gas > 0 {
		pairs = append(pairs, [2]string{"Gas", fmt.Sprintf("%d", req.Gas)})
	}
	return pairs
}
