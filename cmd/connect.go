package cmd

import (
	"errors"
	"fmt"

	"github.com/Mohsinsiddi/w3sale/internal/ui"
	"github.com/Mohsinsiddi/w3sale/internal/wallet"
	"github.com/spf13/cobra"
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Authorize the wallet and move it to the configured network",
	Long: `Ask the wallet for account access, then switch it to the configured
network. A network the wallet does not know is added first.

A local wallet remembers the grant in its session file until
` + "`w3sale disconnect`" + `.`,
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
			if wallet.IsBenign(err) {
				fmt.Println(ui.Warn("A connection request is already open in your wallet. Approve or reject it there."))
				return nil
			}
			if errors.Is(err, wallet.ErrUserRejected) {
				fmt.Println(ui.Meta("Connection rejected."))
				return nil
			}
			return err
		}

		s := mgr.State()
		fmt.Println(ui.Success(fmt.Sprintf("Connected %s on %s", ui.Addr(s.Account.Hex()), ui.ChainName(c.Label(networkMode())))))
		return nil
	},
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Revoke the local wallet's authorization",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.WalletBridge != "" {
			fmt.Println(ui.Info("Bridged wallets manage their own permissions. Disconnect from the wallet itself."))
			return nil
		}
		lp, err := localProvider()
		if err != nil {
			return err
		}
		if err := lp.Disconnect(); err != nil {
			return err
		}
		fmt.Println(ui.Success("Disconnected. The next purchase asks for access again."))
		return nil
	},
}
