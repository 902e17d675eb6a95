package chain

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ErrChainNotFound is returned when a chain is not in the registry.
var ErrChainNotFound = errors.New("chain not found")

// Network modes.
const (
	ModeMainnet = "mainnet"
	ModeTestnet = "testnet"
)

// Chain holds the metadata needed to reach a chain and to ask a wallet to add it.
type Chain struct {
	Name            string   `json:"name"`
	DisplayName     string   `json:"display_name"`
	ChainID         int64    `json:"chain_id"`
	TestnetChainID  int64    `json:"testnet_chain_id"`
	TestnetName     string   `json:"testnet_name"`
	NativeCurrency  string   `json:"native_currency"`
	NativeName      string   `json:"native_name"`
	MainnetRPCs     []string `json:"mainnet_rpcs"`
	TestnetRPCs     []string `json:"testnet_rpcs"`
	MainnetExplorer string   `json:"mainnet_explorer"`
	TestnetExplorer string   `json:"testnet_explorer"`
}

// NativeCurrency is the EIP-3085 currency block.
type NativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// Descriptor is the wallet_addEthereumChain parameter (EIP-3085).
type Descriptor struct {
	ChainID           string         `json:"chainId"`
	ChainName         string         `json:"chainName"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency"`
	RPCURLs           []string       `json:"rpcUrls"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls,omitempty"`
}

// ID returns the descriptor's chain id as a number, or 0 when malformed.
func (d Descriptor) ID() int64 {
	id, err := hexutil.DecodeUint64(d.ChainID)
	if err != nil {
		return 0
	}
	return int64(id)
}

// Registry is the chain registry.
type Registry struct {
	chains []Chain
	byName map[string]*Chain
	byID   map[int64]*Chain
}

// NewRegistry creates the registry of supported EVM chains.
func NewRegistry() *Registry {
	chains := allChains()
	r := &Registry{
		chains: chains,
		byName: make(map[string]*Chain, len(chains)),
		byID:   make(map[int64]*Chain, len(chains)*2),
	}
	for i := range r.chains {
		c := &r.chains[i]
		r.byName[c.Name] = c
		r.byID[c.ChainID] = c
		if c.TestnetChainID != 0 {
			r.byID[c.TestnetChainID] = c
		}
	}
	return r
}

// All returns every chain in the registry.
func (r *Registry) All() []Chain {
	return r.chains
}

// GetByName finds a chain by its slug name (e.g. "bnb", "ethereum").
func (r *Registry) GetByName(name string) (*Chain, error) {
	c, ok := r.byName[strings.ToLower(name)]
	if !ok {
		return nil, ErrChainNotFound
	}
	return c, nil
}

// GetByChainID finds a chain by either its mainnet or testnet chain id.
func (r *Registry) GetByChainID(id int64) (*Chain, error) {
	c, ok := r.byID[id]
	if !ok {
		return nil, ErrChainNotFound
	}
	return c, nil
}

// ID returns the numeric chain id for mode.
func (c *Chain) ID(mode string) int64 {
	if mode == ModeTestnet {
		return c.TestnetChainID
	}
	return c.ChainID
}

// Label is the human name for mode, e.g. "BNB Smart Chain Testnet".
func (c *Chain) Label(mode string) string {
	if mode == ModeTestnet {
		return c.TestnetName
	}
	return c.DisplayName
}

// RPCs returns the RPC list for a chain in the given mode.
func (c *Chain) RPCs(mode string) []string {
	if mode == ModeTestnet {
		return c.TestnetRPCs
	}
	return c.MainnetRPCs
}

// Explorer returns the explorer URL for a chain in the given mode.
func (c *Chain) Explorer(mode string) string {
	if mode == ModeTestnet {
		return c.TestnetExplorer
	}
	return c.MainnetExplorer
}

// TxURL links a transaction hash on the chain's explorer.
func (c *Chain) TxURL(mode, hash string) string {
	base := c.Explorer(mode)
	if base == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/tx/" + hash
}

// Descriptor builds the add-chain request for mode. extraRPCs are tried first.
func (c *Chain) Descriptor(mode string, extraRPCs ...string) Descriptor {
	rpcs := append(append([]string{}, extraRPCs...), c.RPCs(mode)...)
	d := Descriptor{
		ChainID:   hexutil.EncodeUint64(uint64(c.ID(mode))),
		ChainName: c.Label(mode),
		NativeCurrency: NativeCurrency{
			Name:     c.NativeName,
			Symbol:   c.NativeCurrency,
			Decimals: 18,
		},
		RPCURLs: rpcs,
	}
	if e := c.Explorer(mode); e != "" {
		d.BlockExplorerURLs = []string{e}
	}
	return d
}

// --- chain data ---

func allChains() []Chain {
	return []Chain{
		{
			Name: "ethereum", DisplayName: "Ethereum", ChainID: 1, TestnetChainID: 11155111,
			TestnetName: "Sepolia", NativeCurrency: "ETH", NativeName: "Ether",
			MainnetRPCs:     []string{"https://eth.llamarpc.com", "https://ethereum-rpc.publicnode.com"},
			TestnetRPCs:     []string{"https://rpc.sepolia.org", "https://sepolia.gateway.tenderly.co"},
			MainnetExplorer: "https://etherscan.io",
			TestnetExplorer: "https://sepolia.etherscan.io",
		},
		{
			Name: "bnb", DisplayName: "BNB Smart Chain", ChainID: 56, TestnetChainID: 97,
			TestnetName: "BNB Smart Chain Testnet", NativeCurrency: "BNB", NativeName: "BNB",
			MainnetRPCs:     []string{"https://bsc-dataseed.bnbchain.org", "https://bsc-rpc.publicnode.com"},
			TestnetRPCs:     []string{"https://data-seed-prebsc-1-s1.bnbchain.org:8545", "https://bsc-testnet-rpc.publicnode.com"},
			MainnetExplorer: "https://bscscan.com",
			TestnetExplorer: "https://testnet.bscscan.com",
		},
		{
			Name: "base", DisplayName: "Base", ChainID: 8453, TestnetChainID: 84532,
			TestnetName: "Base Sepolia", NativeCurrency: "ETH", NativeName: "Ether",
			MainnetRPCs:     []string{"https://mainnet.base.org", "https://base.llamarpc.com"},
			TestnetRPCs:     []string{"https://sepolia.base.org"},
			MainnetExplorer: "https://basescan.org",
			TestnetExplorer: "https://sepolia.basescan.org",
		},
		{
			Name: "polygon", DisplayName: "Polygon", ChainID: 137, TestnetChainID: 80002,
			TestnetName: "Amoy", NativeCurrency: "POL", NativeName: "POL",
			MainnetRPCs:     []string{"https://polygon-bor-rpc.publicnode.com", "https://polygon-pokt.nodies.app"},
			TestnetRPCs:     []string{"https://rpc-amoy.polygon.technology"},
			MainnetExplorer: "https://polygonscan.com",
			TestnetExplorer: "https://amoy.polygonscan.com",
		},
		{
			Name: "arbitrum", DisplayName: "Arbitrum One", ChainID: 42161, TestnetChainID: 421614,
			TestnetName: "Arbitrum Sepolia", NativeCurrency: "ETH", NativeName: "Ether",
			MainnetRPCs:     []string{"https://arb1.arbitrum.io/rpc", "https://arbitrum-one-rpc.publicnode.com"},
			TestnetRPCs:     []string{"https://sepolia-rollup.arbitrum.io/rpc"},
			MainnetExplorer: "https://arbiscan.io",
			TestnetExplorer: "https://sepolia.arbiscan.io",
		},
		{
			Name: "optimism", DisplayName: "Optimism", ChainID: 10, TestnetChainID: 11155420,
			TestnetName: "OP Sepolia", NativeCurrency: "ETH", NativeName: "Ether",
			MainnetRPCs:     []string{"https://mainnet.optimism.io", "https://optimism-rpc.publicnode.com"},
			TestnetRPCs:     []string{"https://sepolia.optimism.io"},
			MainnetExplorer: "https://optimistic.etherscan.io",
			TestnetExplorer: "https://sepolia-optimism.etherscan.io",
		},
		{
			Name: "avalanche", DisplayName: "Avalanche C-Chain", ChainID: 43114, TestnetChainID: 43113,
			TestnetName: "Fuji", NativeCurrency: "AVAX", NativeName: "Avalanche",
			MainnetRPCs:     []string{"https://api.avax.network/ext/bc/C/rpc", "https://avalanche-c-chain-rpc.publicnode.com"},
			TestnetRPCs:     []string{"https://api.avax-test.network/ext/bc/C/rpc"},
			MainnetExplorer: "https://snowtrace.io",
			TestnetExplorer: "https://testnet.snowtrace.io",
		},
	}
}
