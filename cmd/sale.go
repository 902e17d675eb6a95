package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/Mohsinsiddi/w3sale/internal/amount"
	"github.com/Mohsinsiddi/w3sale/internal/config"
	"github.com/Mohsinsiddi/w3sale/internal/contract"
	"github.com/Mohsinsiddi/w3sale/internal/sale"
	"github.com/Mohsinsiddi/w3sale/internal/ui"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var saleCmd = &cobra.Command{
	Use:   "sale",
	Short: "Inspect and save crowdsales",
}

var saleInfoCmd = &cobra.Command{
	Use:   "info <sale>",
	Short: "Show a sale's terms, progress and timeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, target, err := targetChain()
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

		var account common.Address
		if owner, err := resolveOwner(ctx, client, ""); err == nil {
			account = owner
		}
		readCtx, cancel := context.WithTimeout(ctx, config.ReadTimeout)
		defer cancel()
		c, err := sale.NewSynchronizer(cs, token, cs.Address(), sale.WithSyncLogger(logger)).Refresh(readCtx, account)
		if err != nil {
			return err
		}

		fmt.Println(ui.KeyValueBlock(params.TokenSymbol+" sale", saleInfoPairs(time.Now(), params, c)))
		return nil
	},
}

var saleAddCmd = &cobra.Command{
	Use:   "add <name> <address>",
	Short: "Save a sale address under a name for the current network",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := newSaleRegistry()
		if err != nil {
			return err
		}
		e := &contract.Entry{Name: args[0], Network: saleNetwork(), Address: args[1]}
		if err := reg.Add(e); err != nil {
			return err
		}
		if err := reg.Save(); err != nil {
			return err
		}
		fmt.Println(ui.Success(fmt.Sprintf("Saved %q on %s: %s", e.Name, e.Network, ui.Addr(e.Address))))
		fmt.Println(ui.Hint(fmt.Sprintf("Buy with: w3sale buy %s --amount 10", e.Name)))
		return nil
	},
}

var saleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved sales",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := newSaleRegistry()
		if err != nil {
			return err
		}
		entries := reg.All()
		if len(entries) == 0 {
			fmt.Println(ui.Info("No saved sales."))
			fmt.Println(ui.Hint("Save one with: w3sale sale add launch 0xSaleAddress"))
			return nil
		}
		t := ui.NewTable([]ui.Column{
			{Title: "Name", Width: 16},
			{Title: "Network", Width: 18},
			{Title: "Address", Width: 44},
		})
		for _, e := range entries {
			t.AddRow(ui.Row{ui.Val(e.Name), ui.ChainName(e.Network), ui.Addr(e.Address)})
		}
		fmt.Println(t.Render())
		return nil
	},
}

var saleRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Forget a saved sale on the current network",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := newSaleRegistry()
		if err != nil {
			return err
		}
		if err := reg.Remove(args[0], saleNetwork()); err != nil {
			return err
		}
		if err := reg.Save(); err != nil {
			return err
		}
		fmt.Println(ui.Success(fmt.Sprintf("Removed %q from %s.", args[0], saleNetwork())))
		return nil
	},
}

// saleInfoPairs renders parameters and counters at now.
func saleInfoPairs(now time.Time, p sale.Parameters, c sale.Counters) [][2]string {
	tok := func(d decimal.Decimal) string { return amount.Format(d) + " " + p.TokenSymbol }
	pay := func(d decimal.Decimal) string { return amount.Format(d) + " " + p.PaymentSymbol }

	phase := sale.PhaseAt(now, p)
	state := phase.String()
	if phase == sale.PhaseOpen && !c.IsOpen {
		state = "paused"
	}
	progress := sale.Progress(c.TotalSold, p.TotalCap).Shift(2).StringFixed(2) + "%"

	pairs := [][2]string{
		{"Address", p.Sale.Hex()},
		{"Rate", fmt.Sprintf("%d %s per %s", p.Rate, p.TokenSymbol, p.PaymentSymbol)},
		{"Sold", fmt.Sprintf("%s of %s (%s)", tok(c.TotalSold), tok(p.TotalCap), progress)},
		{"Remaining", tok(p.RemainingCap(c))},
	}
	if p.IndividualCap.IsPositive() {
		pairs = append(pairs, [2]string{"Per wallet", tok(p.IndividualCap)})
	}
	if p.MinimumPurchase.IsPositive() {
		pairs = append(pairs, [2]string{"Minimum", fmt.Sprintf("%s (%s)", pay(p.MinimumPurchase), tok(p.MinimumTokens()))})
	}
	if p.Goal.IsPositive() {
		goal := tok(p.Goal)
		if sale.GoalReached(c.TotalSold, p) {
			goal += " reached"
		}
		pairs = append(pairs, [2]string{"Goal", goal})
	}
	pairs = append(pairs, [2]string{"Phase", state})

	switch phase {
	case sale.PhaseUpcoming:
		pairs = append(pairs, [2]string{"Opens in", sale.Countdown(now, p.OpeningTime)})
	case sale.PhaseOpen:
		if !p.ClosingTime.IsZero() {
			pairs = append(pairs, [2]string{"Closes in", sale.Countdown(now, p.ClosingTime)})
		}
	}
	if !p.OpeningTime.IsZero() {
		pairs = append(pairs, [2]string{"Opening", p.OpeningTime.Format(time.RFC1123)})
	}
	if !p.ClosingTime.IsZero() {
		pairs = append(pairs, [2]string{"Closing", p.ClosingTime.Format(time.RFC1123)})
	}
	if c.Contribution.IsPositive() {
		pairs = append(pairs, [2]string{"You bought", tok(c.Contribution)})
	}
	return pairs
}

func init() {
	saleCmd.AddCommand(saleInfoCmd, saleAddCmd, saleListCmd, saleRemoveCmd)
}
