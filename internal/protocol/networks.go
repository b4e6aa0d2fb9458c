package protocol

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

const (
	Ethereum = "ethereum"
	Base     = "base"
)

// Network is the static configuration of one chain deployment.
type Network struct {
	Name      string
	ChainID   uint64
	Multicall common.Address
	// Factories maps protocol name to its factory contract.
	Factories map[string]common.Address
	// PriorityTokens sort first in canonical pairs, in list order.
	PriorityTokens []common.Address
}

var networks = map[string]Network{
	Ethereum: {
		Name:      Ethereum,
		ChainID:   1,
		Multicall: common.HexToAddress("0x5BA1e12693Dc8F9c48aAD8770482f4739bEeD696"),
		Factories: map[string]common.Address{
			UniswapV3: common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984"),
			UniswapV2: common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f"),
		},
		PriorityTokens: []common.Address{
			common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), // USDC
			common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7"), // USDT
			common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"), // DAI
			common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), // WETH
			common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599"), // WBTC
		},
	},
	Base: {
		Name:      Base,
		ChainID:   8453,
		Multicall: common.HexToAddress("0xcA11bde05977b3631167028862bE2a173976CA11"),
		Factories: map[string]common.Address{
			UniswapV3:           common.HexToAddress("0x33128a8fC17869897dcE68Ed026d694621f6FDfD"),
			UniswapV2:           common.HexToAddress("0x8909Dc15e40173Ff4699343b6eB8132c65e18eC6"),
			AerodromeBasic:      common.HexToAddress("0x420DD381b31aEf6683db6B902084cB0FFECe40Da"),
			AerodromeSlipstream: common.HexToAddress("0x5e7BB104d84c7CB9B682AaC2F3d509f5F406809A"),
		},
		PriorityTokens: []common.Address{
			common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"), // USDC
			common.HexToAddress("0xd9aAEc86B65D86f6A7B5B1b0c42FFA531710b6CA"), // USDbC
			common.HexToAddress("0x50c5725949A6F0c72E6C4a641F24049A917DB0Cb"), // DAI
			common.HexToAddress("0x4200000000000000000000000000000000000006"), // WETH
			common.HexToAddress("0xcbB7C0000aB88B473b1f5aFd9ef808440eed33Bf"), // cbBTC
		},
	},
}

// LookupNetwork returns the configuration for a network name.
func LookupNetwork(name string) (Network, error) {
	network, ok := networks[name]
	if !ok {
		return Network{}, fmt.Errorf("unsupported network: %s", name)
	}
	return network, nil
}

// NetworkNames returns the supported network names in sorted order.
func NetworkNames() []string {
	names := make([]string, 0, len(networks))
	for name := range networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
