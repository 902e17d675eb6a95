package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Mohsinsiddi/w3sale/internal/amount"
	"github.com/Mohsinsiddi/w3sale/internal/chain"
	"github.com/Mohsinsiddi/w3sale/internal/contract"
	"github.com/Mohsinsiddi/w3sale/internal/sale"
	"github.com/Mohsinsiddi/w3sale/internal/store"
	"github.com/Mohsinsiddi/w3sale/internal/ui"
	"github.com/Mohsinsiddi/w3sale/internal/wallet"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	buyAmount string
	buyMax    bool
	buyYes    bool
	buyPlain  bool
)

var buyCmd = &cobra.Command{
	Use:   "buy <sale>",
	Short: "Buy tokens from a crowdsale",
	Long: `Buy sale tokens, paying with the sale's ERC-20 payment token.

The amount is in payment-token units and is reduced to what the sale still
admits (remaining cap, your individual cap, your balance). When the current
allowance is short, an approval for exactly the amount is sent first.

Examples:
  w3sale buy launch --amount 250
  w3sale buy 0xSale --max --yes --plain`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if buyAmount == "" && !buyMax {
			return fmt.Errorf("--amount or --max is required")
		}
		autoApprove = buyYes

		c, target, err := targetChain()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		client, err := dialChain(ctx, target)
		if err != nil {
			return err
		}
		defer client.Close()

		saleAddr, err := resolveSale(ctx, client, args[0])
		if err != nil {
			return err
		}

		cs, token, params, err := loadSale(ctx, client, saleAddr)
		if err != nil {
			return err
		}

		mgr, release, err := acquireWallet(ctx, target)
		if err != nil {
			return err
		}
		defer release()
		if err := ensureConnected(ctx, mgr); err != nil {
			return err
		}

		receipts, err := store.OpenReceiptStore(cfg.Dir())
		if err != nil {
			return err
		}
		defer receipts.Close()

		syncer := sale.NewSynchronizer(cs, token, cs.Address(), sale.WithSyncLogger(logger))
		tx := contract.NewProviderTransactor(mgr.Provider(), client, token, cs, logger,
			contract.WithConfirmTimeout(cfg.ConfirmWait()))
		orch := sale.NewOrchestrator(params, mgr, syncer, tx,
			sale.WithRecorder(receipts),
			sale.WithOrchestratorLogger(logger))
		sess := sale.NewSession(params, mgr, syncer, orch, sale.WithSessionLogger(logger))
		if err := sess.Start(ctx); err != nil {
			return err
		}
		defer sess.Close()

		var intent sale.Intent
		if buyMax {
			intent = sess.MaxAmount()
		} else if intent, err = sess.OnAmountChange(buyAmount); err != nil {
			return err
		}
		if intent.Clamped {
			fmt.Println(ui.Warn(fmt.Sprintf("Amount reduced to %s %s by the %s.",
				amount.Format(intent.Raw), params.PaymentSymbol, intent.Limit)))
		}

		fmt.Println(ui.KeyValueBlock("Purchase", purchasePairs(mgr.State(), params, intent, sess.View().Counters)))
		if !buyYes && !ui.Confirm("Send purchase?") {
			fmt.Println(ui.Meta("Cancelled."))
			return nil
		}

		submitCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		var res ui.BuyDoneMsg
		// The local wallet asks on the terminal, which a full-screen view would hide.
		if buyPlain || (cfg.WalletBridge == "" && !buyYes) {
			res = runPlain(submitCtx, os.Stdout, sess, orch, c, params.TokenSymbol)
		} else {
			res = runInteractive(submitCtx, cancel, sess, orch, params, c)
		}

		if res.Err != nil {
			if errors.Is(res.Err, wallet.ErrUserRejected) {
				fmt.Println(ui.Meta("Purchase cancelled in the wallet."))
				return nil
			}
			return reported{res.Err}
		}
		after := sess.View().Counters
		fmt.Println(ui.Hint(fmt.Sprintf("You now hold %s %s from this sale. See `w3sale history`.",
			amount.Format(after.Contribution), params.TokenSymbol)))
		return nil
	},
}

// runPlain prints one line per orchestrator step and a link per submitted
// transaction.
func runPlain(ctx context.Context, out io.Writer, sess *sale.Session, orch *sale.Orchestrator, c *chain.Chain, tokenSymbol string) ui.BuyDoneMsg {
	var (
		last    = sale.StateIdle
		printed = make(map[common.Hash]bool)
	)
	unsub := orch.Subscribe(func(s sale.Status) {
		if s.State != last && s.State != sale.StateIdle {
			fmt.Fprintln(out, ui.Meta("… "+ui.StepLabel(s.State)))
		}
		last = s.State
		if tx := s.LastTx; tx != nil && !printed[tx.Hash] {
			printed[tx.Hash] = true
			link := tx.Hash.Hex()
			if url := c.TxURL(networkMode(), link); url != "" {
				link = url
			}
			fmt.Fprintln(out, ui.Meta(fmt.Sprintf("  %s %s", tx.Kind, link)))
		}
	})
	defer unsub()

	intent := sess.View().Intent
	rec, err := sess.OnSubmit(ctx)
	res := ui.BuyDoneMsg{Record: rec, Err: err}
	if !errors.Is(err, wallet.ErrUserRejected) {
		fmt.Fprintln(out, ui.BuyOutcome(res, intent, tokenSymbol))
	}
	return res
}

// runInteractive shows the Bubble Tea purchase view. ctrl+c cancels the
// wait; a transaction already in the wallet may still land.
func runInteractive(ctx context.Context, cancel context.CancelFunc, sess *sale.Session, orch *sale.Orchestrator, p sale.Parameters, c *chain.Chain) ui.BuyDoneMsg {
	intent := sess.View().Intent
	m := ui.NewBuyModel(intent, p.TokenSymbol, p.PaymentSymbol)
	m.ExplorerTxURL = func(hash string) string { return c.TxURL(networkMode(), hash) }

	prog := tea.NewProgram(m, tea.WithContext(ctx))
	unsub := orch.Subscribe(func(s sale.Status) { prog.Send(ui.BuyStatusMsg(s)) })
	defer unsub()

	done := make(chan ui.BuyDoneMsg, 1)
	go func() {
		rec, err := sess.OnSubmit(ctx)
		res := ui.BuyDoneMsg{Record: rec, Err: err}
		done <- res
		prog.Send(res)
	}()

	final, err := prog.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		logger.Warn("purchase view", zap.Error(err))
	}
	cancel()
	res := <-done
	if fm, ok := final.(ui.BuyModel); (ok && fm.Quitting) || errors.Is(err, tea.ErrProgramKilled) {
		fmt.Println(ui.Warn("Stopped watching. A transaction already sent may still confirm, see `w3sale history`."))
	}
	return res
}

// reported marks an error the purchase view already showed.
type reported struct{ error }

func (r reported) Unwrap() error { return r.error }

func purchasePairs(w wallet.State, p sale.Parameters, intent sale.Intent, c sale.Counters) [][2]string {
	pairs := [][2]string{
		{"Sale", p.Sale.Hex()},
		{"Buyer", w.Account.Hex()},
		{"Pay", amount.Format(intent.Raw) + " " + p.PaymentSymbol},
		{"Receive", amount.Format(intent.Tokens) + " " + p.TokenSymbol},
		{"Balance", amount.Format(c.PaymentBalance) + " " + p.PaymentSymbol},
	}
	if c.PaymentAllowance.LessThan(intent.Raw) {
		pairs = append(pairs, [2]string{"Steps", "approve " + amount.Format(intent.Raw) + " " + p.PaymentSymbol + ", then buy"})
	} else {
		pairs = append(pairs, [2]string{"Steps", "buy (allowance already covers it)"})
	}
	return pairs
}

func init() {
	f := buyCmd.Flags()
	f.StringVarP(&buyAmount, "amount", "a", "", "payment-token amount to spend, e.g. 250 or 0.5")
	f.BoolVar(&buyMax, "max", false, "spend as much as the sale and your balance allow")
	f.BoolVarP(&buyYes, "yes", "y", false, "skip confirmations, including local wallet prompts")
	f.BoolVar(&buyPlain, "plain", false, "print progress lines instead of the interactive view")
	buyCmd.MarkFlagsMutuallyExclusive("amount", "max")
}
