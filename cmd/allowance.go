package cmd

import (
	"context"
	"fmt"

	"github.com/Mohsinsiddi/w3sale/internal/amount"
	"github.com/Mohsinsiddi/w3sale/internal/chain"
	"github.com/Mohsinsiddi/w3sale/internal/config"
	"github.com/Mohsinsiddi/w3sale/internal/ens"
	"github.com/Mohsinsiddi/w3sale/internal/sale"
	"github.com/Mohsinsiddi/w3sale/internal/ui"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var allowanceOwner string

var allowanceCmd = &cobra.Command{
	Use:   "allowance <sale>",
	Short: "Show an account's payment balance, allowance and contribution for a sale",
	Long: `Read the payment token balance and the allowance granted to the sale,
plus what the account already bought and may still buy.

The owner is --owner (wallet name, ENS name or address), else the default
wallet.
Nothing is signed, so watch-only wallets work.

Examples:
  w3sale allowance launch
  w3sale allowance 0xSale --owner 0xBuyer --network base --testnet`,
	Args: cobra.ExactArgs(1),
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

		owner, err := resolveOwner(ctx, client, allowanceOwner)
		if err != nil {
			return err
		}
		saleAddr, err := resolveSale(ctx, client, args[0])
		if err != nil {
			return err
		}

		sp := ui.NewSpinnerTo(cmd.ErrOrStderr(), "Loading sale...")
		sp.Start()
		defer sp.Stop()

		cs, token, params, err := loadSale(ctx, client, saleAddr)
		if err != nil {
			return err
		}

		sp.SetMessage("Reading balances...")
		readCtx, cancel := context.WithTimeout(ctx, config.ReadTimeout)
		defer cancel()
		c, err := sale.NewSynchronizer(cs, token, cs.Address(), sale.WithSyncLogger(logger)).Refresh(readCtx, owner)
		if err != nil {
			return err
		}
		sp.Stop()
		logger.Debug("counters read", zap.String("owner", owner.Hex()), zap.Time("at", c.RefreshedAt))

		fmt.Println(ui.KeyValueBlock("Allowance", allowancePairs(owner, params, c)))
		if c.PaymentAllowance.IsZero() {
			fmt.Println(ui.Hint("The first purchase sends an approval for the exact amount before buying."))
		}
		return nil
	},
}

// resolveOwner accepts a wallet name, an ENS name or an address; empty means
// the default wallet.
func resolveOwner(ctx context.Context, client *chain.Client, nameOrAddress string) (common.Address, error) {
	if common.IsHexAddress(nameOrAddress) {
		return common.HexToAddress(nameOrAddress), nil
	}
	if ens.IsName(nameOrAddress) {
		return resolveENS(ctx, client, nameOrAddress)
	}
	mgr := newWalletManager()
	if nameOrAddress == "" {
		nameOrAddress = cfg.DefaultWallet
	}
	if nameOrAddress == "" {
		w := mgr.Default()
		if w == nil {
			return common.Address{}, fmt.Errorf("--owner is required or set a default wallet")
		}
		return w.Addr(), nil
	}
	w, err := mgr.Get(nameOrAddress)
	if err != nil {
		return common.Address{}, err
	}
	return w.Addr(), nil
}

func allowancePairs(owner common.Address, p sale.Parameters, c sale.Counters) [][2]string {
	pairs := [][2]string{
		{"Owner", owner.Hex()},
		{"Sale", p.Sale.Hex()},
		{"Balance", amount.Format(c.PaymentBalance) + " " + p.PaymentSymbol},
		{"Allowance", amount.Format(c.PaymentAllowance) + " " + p.PaymentSymbol},
		{"Bought", amount.Format(c.Contribution) + " " + p.TokenSymbol},
	}
	if left, ok := p.RemainingIndividual(c); ok {
		pairs = append(pairs, [2]string{"Can still buy", amount.Format(left) + " " + p.TokenSymbol})
	}
	most := sale.MaxAmount(c, p)
	pairs = append(pairs, [2]string{"Max now", fmt.Sprintf("%s %s for %s %s",
		amount.Format(most.Tokens), p.TokenSymbol, amount.Format(most.Raw), p.PaymentSymbol)})
	return pairs
}

func init() {
	allowanceCmd.Flags().StringVar(&allowanceOwner, "owner", "", "wallet name, ENS name or address (default: default wallet)")
}
