package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/Mohsinsiddi/w3sale/internal/config"
	"github.com/Mohsinsiddi/w3sale/internal/logging"
	"github.com/Mohsinsiddi/w3sale/internal/ui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version is the current release. Overridable via build ldflags:
//
//	go build -ldflags "-X github.com/Mohsinsiddi/w3sale/cmd.Version=1.2.3" .
var Version = "0.1.0"

var (
	cfgDir      string
	cfg         *config.Config
	logger      *zap.Logger
	verbose     bool
	testnet     bool
	mainnet     bool
	networkFlag string
	walletFlag  string
	bridgeFlag  string
)

// rootCmd is the top-level command.
var rootCmd = &cobra.Command{
	Use:   "w3sale",
	Short: "Buy crowdsale tokens from the terminal",
	Long: `w3sale connects a wallet, checks a crowdsale's caps and your limits,
and runs the approve and buy transactions for you.

The wallet is either a local signing wallet (key in the OS keychain) or an
external wallet reached through an EIP-1193 bridge (--bridge or
W3SALE_WALLET_BRIDGE). Every setting can also come from a W3SALE_* variable.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		var err error
		cfg, err = config.Load(cfgDir)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if testnet {
			cfg.NetworkMode = "testnet"
		}
		if mainnet {
			cfg.NetworkMode = "mainnet"
		}
		if networkFlag != "" {
			cfg.Network = networkFlag
		}
		if walletFlag != "" {
			cfg.DefaultWallet = walletFlag
		}
		if bridgeFlag != "" {
			cfg.WalletBridge = bridgeFlag
		}

		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		logger, err = logging.New(level)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var shown reported
		if !errors.As(err, &shown) {
			fmt.Fprintln(os.Stderr, describeError(err))
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.Long = ui.Banner() + "\n" + rootCmd.Long

	// W3SALE_CONFIG_DIR env var overrides --config flag.
	if envDir := os.Getenv(config.EnvConfigDir); envDir != "" {
		cfgDir = envDir
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgDir, "config", cfgDir, "config directory (default: ~/.w3sale)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "debug logging on stderr")
	pf.BoolVar(&testnet, "testnet", false, "use the testnet of the configured network")
	pf.BoolVar(&mainnet, "mainnet", false, "use the mainnet of the configured network")
	pf.StringVarP(&networkFlag, "network", "n", "", "network name, e.g. ethereum, base, bnb")
	pf.StringVarP(&walletFlag, "wallet", "w", "", "local wallet name")
	pf.StringVar(&bridgeFlag, "bridge", "", "EIP-1193 wallet bridge URL, e.g. http://127.0.0.1:1248")
	rootCmd.MarkFlagsMutuallyExclusive("testnet", "mainnet")

	rootCmd.AddCommand(
		walletCmd,
		connectCmd,
		disconnectCmd,
		networkCmd,
		saleCmd,
		buyCmd,
		allowanceCmd,
		historyCmd,
		configCmd,
	)
}
