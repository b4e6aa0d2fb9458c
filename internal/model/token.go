package model

import "github.com/ethereum/go-ethereum/common"

// DefaultTokenDecimals is used when a token's decimals call cannot be decoded.
const DefaultTokenDecimals uint8 = 18

// TokenRecord captures ERC20 metadata for one network.
type TokenRecord struct {
	Network  string         `json:"network"`
	Address  common.Address `json:"address"`
	Decimals uint8          `json:"decimals"`
	Symbol   string         `json:"symbol"`
}

// Key returns the record's unique key.
func (t TokenRecord) Key() MetadataKey {
	return MetadataKey{Network: t.Network, Address: t.Address}
}
