package cmd

import (
	"fmt"
	"time"

	"github.com/Mohsinsiddi/w3sale/internal/chain"
	"github.com/Mohsinsiddi/w3sale/internal/config"
	"github.com/Mohsinsiddi/w3sale/internal/rpc"
	"github.com/Mohsinsiddi/w3sale/internal/ui"
	"github.com/Mohsinsiddi/w3sale/internal/wallet"
	"github.com/spf13/cobra"
)

var networkCmd = &cobra.Command{
	Use:   "network",
	Short: "Manage networks",
}

var networkListCmd = &cobra.Command{
	Use:   "list",
	Short: "List supported chains",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := chain.NewRegistry()
		t := ui.NewTable([]ui.Column{
			{Title: "#", Width: 3},
			{Title: "Name", Width: 14},
			{Title: "Display", Width: 20},
			{Title: "Chain ID", Width: 10},
			{Title: "Currency", Width: 9},
			{Title: "Testnet", Width: 22},
			{Title: "Testnet ID", Width: 10},
		})
		for i, c := range reg.All() {
			name := ui.ChainName(c.Name)
			if c.Name == cfg.Network {
				name = ui.StyleSuccess.Render(c.Name)
			}
			t.AddRow(ui.Row{
				fmt.Sprintf("%d", i+1),
				name,
				c.DisplayName,
				fmt.Sprintf("%d", c.ChainID),
				c.NativeCurrency,
				c.TestnetName,
				fmt.Sprintf("%d", c.TestnetChainID),
			})
		}
		fmt.Println(t.Render())
		fmt.Println(ui.Meta(fmt.Sprintf("%d chains, current: %s (%s)", len(reg.All()), cfg.Network, networkMode())))
		return nil
	},
}

var networkUseCmd = &cobra.Command{
	Use:   "use <chain>",
	Short: "Set the default network",
	Long: `Set the default chain and persist it to config.

When combined with --testnet or --mainnet the network mode is also persisted.

Examples:
  w3sale network use base              # keep current mode
  w3sale network use base --testnet    # persist testnet mode too`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if _, err := chain.NewRegistry().GetByName(name); err != nil {
			return fmt.Errorf("unknown chain %q, run `w3sale network list` to see all chains", name)
		}
		cfg.Network = name
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Println(ui.Success(fmt.Sprintf("Default network set to %s (%s)", ui.ChainName(name), networkMode())))
		return nil
	},
}

var networkStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the wallet's connection state against the configured network",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, target, err := targetChain()
		if err != nil {
			return err
		}
		mgr, release, err := acquireWallet(cmd.Context(), target)
		if err != nil {
			return err
		}
		defer release()

		fmt.Println(ui.KeyValueBlock("Wallet", statusPairs(c, mgr.State())))
		switch mgr.State().Status() {
		case wallet.StatusUnavailable:
			fmt.Println(ui.Hint("Add a signing wallet or pass --bridge."))
		case wallet.StatusDisconnected:
			fmt.Println(ui.Hint("Run `w3sale connect`."))
		case wallet.StatusWrongNetwork:
			fmt.Println(ui.Hint("Run `w3sale network switch`."))
		}
		return nil
	},
}

var networkSwitchCmd = &cobra.Command{
	Use:   "switch",
	Short: "Switch the wallet to the configured network, adding it if needed",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, target, err := targetChain()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		mgr, release, err := acquireWallet(ctx, target)
		if err != nil {
			return err
		}
		defer release()

		if err := ensureConnected(ctx, mgr); err != nil {
			return err
		}
		fmt.Println(ui.Success(fmt.Sprintf("Wallet is on %s", ui.ChainName(c.Label(networkMode())))))
		return nil
	},
}

var networkBenchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure the configured network's RPC endpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, target, err := targetChain()
		if err != nil {
			return err
		}
		sp := ui.NewSpinnerTo(cmd.ErrOrStderr(), fmt.Sprintf("Probing %d endpoints on %s...", len(target.RPCURLs), c.Label(networkMode())))
		sp.Start()
		results := rpc.Rank(rpc.Benchmark(cmd.Context(), target.RPCURLs, target.ID()))
		sp.StopWithMsg(ui.Meta(fmt.Sprintf("%d endpoints probed", len(results))))

		t := ui.NewTable([]ui.Column{
			{Title: "#", Width: 3},
			{Title: "Endpoint", Width: 44},
			{Title: "Latency", Width: 10},
			{Title: "Block", Width: 12},
			{Title: "Status", Width: 24},
		})
		for i, r := range results {
			status, latency, block := ui.StyleSuccess.Render("ok"), r.Latency.Round(time.Millisecond).String(), fmt.Sprintf("%d", r.BlockNumber)
			if r.Err != nil {
				status, latency, block = ui.StyleError.Render(r.Err.Error()), "-", "-"
			}
			t.AddRow(ui.Row{fmt.Sprintf("%d", i+1), r.URL, latency, block, status})
		}
		fmt.Println(t.Render())
		fmt.Println(ui.Hint("Endpoints are dialed in this order. Add your own with `w3sale config set-rpc`."))
		return nil
	},
}

func statusPairs(c *chain.Chain, s wallet.State) [][2]string {
	mode := networkMode()
	pairs := [][2]string{
		{"Status", s.Status().String()},
		{"Required", fmt.Sprintf("%s (%d)", c.Label(mode), c.ID(mode))},
	}
	if s.HasAccount() {
		pairs = append(pairs, [2]string{"Account", s.Account.Hex()})
	}
	if s.Present {
		current := fmt.Sprintf("%d", s.ChainID)
		if known, err := chain.NewRegistry().GetByChainID(s.ChainID); err == nil {
			name := known.DisplayName
			if s.ChainID == known.TestnetChainID {
				name = known.TestnetName
			}
			current = fmt.Sprintf("%s (%d)", name, s.ChainID)
		}
		pairs = append(pairs, [2]string{"Wallet chain", current})
	}
	if cfg.WalletBridge != "" {
		pairs = append(pairs, [2]string{"Bridge", cfg.WalletBridge})
	}
	pairs = append(pairs, [2]string{"Prompt timeout", config.PromptTimeout.String()})
	return pairs
}

func init() {
	networkCmd.AddCommand(networkListCmd, networkUseCmd, networkStatusCmd, networkSwitchCmd, networkBenchCmd)
}
