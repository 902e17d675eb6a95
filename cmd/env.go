package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Mohsinsiddi/w3sale/internal/chain"
	"github.com/Mohsinsiddi/w3sale/internal/config"
	"github.com/Mohsinsiddi/w3sale/internal/contract"
	"github.com/Mohsinsiddi/w3sale/internal/ens"
	"github.com/Mohsinsiddi/w3sale/internal/rpc"
	"github.com/Mohsinsiddi/w3sale/internal/sale"
	"github.com/Mohsinsiddi/w3sale/internal/ui"
	"github.com/Mohsinsiddi/w3sale/internal/wallet"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// homeNetwork is the chain a local wallet knows before anything is added.
const homeNetwork = "ethereum"

// Chains carrying the ENS registry.
const (
	ensMainnet = 1
	ensSepolia = 11155111
)

// autoApprove skips the wallet prompts. Set by buy --yes.
var autoApprove bool

// newWalletManager creates a wallet manager backed by the wallets file and
// the OS keychain.
func newWalletManager() *wallet.Manager {
	return wallet.NewManager(
		wallet.WithStore(wallet.NewJSONStore(cfg.WalletsPath())),
		wallet.WithKeystore(wallet.OpenKeystore(cfg.Dir())),
	)
}

// newSaleRegistry loads the saved sales.
func newSaleRegistry() (*contract.Registry, error) {
	reg := contract.NewRegistry(cfg.SalesPath())
	if err := reg.Load(); err != nil {
		return nil, fmt.Errorf("loading saved sales: %w", err)
	}
	return reg, nil
}

func networkMode() string {
	if cfg.NetworkMode == chain.ModeTestnet {
		return chain.ModeTestnet
	}
	return chain.ModeMainnet
}

// saleNetwork is the registry key of the active network, e.g. "base" or
// "base-testnet".
func saleNetwork() string {
	if networkMode() == chain.ModeTestnet {
		return cfg.Network + "-testnet"
	}
	return cfg.Network
}

// targetChain returns the configured network and its add-chain descriptor.
// Custom RPCs from the config are tried before the built-in ones.
func targetChain() (*chain.Chain, chain.Descriptor, error) {
	c, err := chain.NewRegistry().GetByName(cfg.Network)
	if err != nil {
		return nil, chain.Descriptor{}, fmt.Errorf("unknown network %q, run `w3sale network list`", cfg.Network)
	}
	mode := networkMode()
	if c.ID(mode) == 0 {
		return nil, chain.Descriptor{}, fmt.Errorf("%s has no %s", c.DisplayName, mode)
	}
	return c, c.Descriptor(mode, cfg.GetRPCs(cfg.Network)...), nil
}

// dialChain connects to the target chain for reads and receipts, trying the
// fastest in-sync endpoint first.
func dialChain(ctx context.Context, d chain.Descriptor) (*chain.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, config.ReadTimeout)
	defer cancel()
	urls := rpc.Order(ctx, d.RPCURLs, d.ID())
	logger.Debug("rpc order", zap.Strings("urls", urls))
	client, err := chain.Dial(ctx, urls, d.ID(), chain.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", d.ChainName, err)
	}
	return client, nil
}

// resolveSale accepts a saved sale name, an ENS name or an address.
func resolveSale(ctx context.Context, client *chain.Client, nameOrAddress string) (common.Address, error) {
	if common.IsHexAddress(nameOrAddress) {
		return common.HexToAddress(nameOrAddress), nil
	}
	if ens.IsName(nameOrAddress) {
		return resolveENS(ctx, client, nameOrAddress)
	}
	reg, err := newSaleRegistry()
	if err != nil {
		return common.Address{}, err
	}
	addr, err := reg.Resolve(nameOrAddress, saleNetwork())
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %q on %s, save it with `w3sale sale add`", err, nameOrAddress, saleNetwork())
	}
	return addr, nil
}

// resolveENS resolves name on the connected chain when it carries the ENS
// registry, otherwise on Ethereum mainnet.
func resolveENS(ctx context.Context, client *chain.Client, name string) (common.Address, error) {
	ctx, cancel := context.WithTimeout(ctx, config.ReadTimeout)
	defer cancel()

	caller := client
	if id := client.ChainID().Int64(); id != ensMainnet && id != ensSepolia {
		home, err := chain.NewRegistry().GetByName(homeNetwork)
		if err != nil {
			return common.Address{}, err
		}
		d := home.Descriptor(chain.ModeMainnet, cfg.GetRPCs(homeNetwork)...)
		mainnet, err := chain.Dial(ctx, d.RPCURLs, d.ID(), chain.WithLogger(logger))
		if err != nil {
			return common.Address{}, fmt.Errorf("connecting to Ethereum for ENS: %w", err)
		}
		defer mainnet.Close()
		caller = mainnet
	}
	addr, err := ens.NewResolver(caller).Resolve(ctx, name)
	if err != nil {
		return common.Address{}, err
	}
	logger.Debug("ens resolved", zap.String("name", name), zap.String("address", addr.Hex()))
	return addr, nil
}

// loadSale reads a crowdsale's parameters and binds its payment token.
func loadSale(ctx context.Context, caller contract.Caller, addr common.Address) (*contract.Crowdsale, *contract.Token, sale.Parameters, error) {
	cs := contract.NewCrowdsale(addr, caller, 0)

	readCtx, cancel := context.WithTimeout(ctx, config.ReadTimeout)
	defer cancel()
	params, err := cs.Parameters(readCtx)
	if err != nil {
		return nil, nil, sale.Parameters{}, err
	}

	if want := strings.TrimSpace(cfg.PaymentToken); want != "" {
		if !common.IsHexAddress(want) {
			return nil, nil, sale.Parameters{}, fmt.Errorf("payment_token %q is not an address", want)
		}
		if common.HexToAddress(want) != params.PaymentToken {
			return nil, nil, sale.Parameters{}, fmt.Errorf("sale %s is paid in %s, expected %s",
				addr.Hex(), params.PaymentToken.Hex(), common.HexToAddress(want).Hex())
		}
	}
	return cs, contract.NewToken(params.PaymentToken, caller, params.Decimals), params, nil
}

// detectProvider finds the wallet for this run: the bridge when one is
// configured, otherwise the chosen local wallet.
func detectProvider(ctx context.Context) (wallet.Provider, error) {
	if cfg.WalletBridge != "" {
		b, err := wallet.DialBridge(ctx, cfg.WalletBridge, wallet.WithBridgeLogger(logger))
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	lp, err := localProvider()
	if err != nil {
		return nil, err
	}
	return lp, nil
}

// localProvider builds the in-process wallet for --wallet or the default.
func localProvider() (*wallet.LocalProvider, error) {
	mgr := newWalletManager()
	var w *wallet.Wallet
	if cfg.DefaultWallet != "" {
		found, err := mgr.Get(cfg.DefaultWallet)
		if err != nil {
			return nil, err
		}
		w = found
	} else if w = mgr.Default(); w == nil {
		return nil, wallet.ErrProviderAbsent
	}
	if w.Type != wallet.TypeSigning {
		return nil, fmt.Errorf("wallet %q is watch-only, add one with --key or run `w3sale wallet generate`", w.Name)
	}

	home, err := chain.NewRegistry().GetByName(homeNetwork)
	if err != nil {
		return nil, err
	}

	prompt := ui.WalletPrompt(os.Stdin, os.Stderr)
	if autoApprove {
		prompt = wallet.AutoApprove
	}
	return wallet.NewLocalProvider(w, mgr.Keystore(), wallet.NewSession(cfg.SessionPath()),
		home.Descriptor(chain.ModeMainnet, cfg.GetRPCs(homeNetwork)...),
		wallet.WithPrompt(prompt),
		wallet.WithDialer(func(ctx context.Context, d chain.Descriptor) (wallet.ChainBackend, error) {
			return chain.Dial(ctx, d.RPCURLs, d.ID(), chain.WithLogger(logger))
		}),
		wallet.WithLocalLogger(logger),
	), nil
}

// acquireWallet attaches the wallet to a connection manager for target.
func acquireWallet(ctx context.Context, target chain.Descriptor) (*wallet.ConnectionManager, func(), error) {
	shared := wallet.NewShared(target, detectProvider, wallet.WithManagerLogger(logger))
	return shared.Acquire(ctx)
}

// ensureConnected walks the wallet to Connected: authorize, then switch
// (adding the network if the wallet does not know it).
func ensureConnected(ctx context.Context, mgr *wallet.ConnectionManager) error {
	ctx, cancel := context.WithTimeout(ctx, config.PromptTimeout)
	defer cancel()

	switch mgr.State().Status() {
	case wallet.StatusUnavailable:
		return wallet.ErrProviderAbsent
	case wallet.StatusDisconnected:
		if err := mgr.RequestConnection(ctx); err != nil {
			return err
		}
	}
	if mgr.State().Status() == wallet.StatusWrongNetwork {
		if err := mgr.RequestNetworkSwitch(ctx); err != nil {
			return err
		}
	}
	if !mgr.State().Connected() {
		return sale.ErrNotConnected
	}
	return nil
}

// describeError turns known failures into guidance.
func describeError(err error) string {
	switch {
	case errors.Is(err, wallet.ErrProviderAbsent):
		return ui.Err("No wallet found.") + "\n" +
			ui.Hint("Add a signing wallet with `w3sale wallet add <name> --key <hex>` or set --bridge.")
	case wallet.IsBenign(err):
		return ui.Warn("A wallet request is already open. Finish it in your wallet, then retry.")
	case errors.Is(err, wallet.ErrUserRejected):
		return ui.Meta("Request rejected in the wallet.")
	}
	return ui.Err(err.Error())
}
