package cmd

import (
	"fmt"

	"github.com/Mohsinsiddi/w3sale/internal/amount"
	"github.com/Mohsinsiddi/w3sale/internal/chain"
	"github.com/Mohsinsiddi/w3sale/internal/sale"
	"github.com/Mohsinsiddi/w3sale/internal/store"
	"github.com/Mohsinsiddi/w3sale/internal/ui"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List approvals and purchases sent from this machine",
	RunE: func(cmd *cobra.Command, args []string) error {
		receipts, err := store.OpenReceiptStore(cfg.Dir())
		if err != nil {
			return err
		}
		defer receipts.Close()

		list, err := receipts.List(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println(ui.Info("No transactions recorded yet."))
			return nil
		}

		reg := chain.NewRegistry()
		t := ui.NewTable([]ui.Column{
			{Title: "When", Width: 17},
			{Title: "Network", Width: 12},
			{Title: "Kind", Width: 9},
			{Title: "Amount", Width: 14},
			{Title: "Status", Width: 10},
			{Title: "Tx", Width: 14},
		})
		for _, r := range list {
			network := fmt.Sprintf("%d", r.ChainID)
			if c, err := reg.GetByChainID(r.ChainID); err == nil {
				network = c.Name
			}
			t.AddRow(ui.Row{
				ui.Meta(r.Submitted.Local().Format("2006-01-02 15:04")),
				ui.ChainName(network),
				string(r.Kind),
				amount.Format(r.Amount),
				receiptStatus(r),
				ui.Addr(ui.TruncateAddr(r.Hash.Hex())),
			})
		}
		fmt.Println(t.Render())
		fmt.Println(ui.Meta(fmt.Sprintf("%d transaction(s)", len(list))))
		return nil
	},
}

func receiptStatus(r sale.Receipt) string {
	switch {
	case r.Reverted:
		return ui.StyleError.Render("reverted")
	case r.Confirmed:
		return ui.StyleSuccess.Render("confirmed")
	default:
		return ui.StyleWarning.Render("pending")
	}
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "rows to show, 0 for all")
}
