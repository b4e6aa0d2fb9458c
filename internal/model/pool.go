package model

import "github.com/ethereum/go-ethereum/common"

// PoolRecord identifies a liquidity pool. Records are immutable once stored.
type PoolRecord struct {
	Network        string         `json:"network"`
	DexName        string         `json:"dex_name"`
	Protocol       string         `json:"protocol"`
	Pool           common.Address `json:"pool"`
	TokenA         common.Address `json:"token_a"`
	TokenB         common.Address `json:"token_b"`
	FactoryAddress common.Address `json:"factory_address"`
	BlockNumber    uint64         `json:"block_number"`
	Params         PoolParams     `json:"params"`
}

// PoolParams are protocol specific. Unused fields stay nil.
type PoolParams struct {
	Fee         *uint32 `json:"fee,omitempty"`
	TickSpacing *int32  `json:"tick_spacing,omitempty"`
	Stable      *bool   `json:"stable,omitempty"`
}

// MetadataKey is the unique key of a pool or token record.
type MetadataKey struct {
	Network string
	Address common.Address
}

// Key returns the record's unique key.
func (p PoolRecord) Key() MetadataKey {
	return MetadataKey{Network: p.Network, Address: p.Pool}
}
