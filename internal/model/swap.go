package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// DecodedSwap is protocol decoder output. Amounts are signed pool deltas:
// positive means the token entered the pool.
type DecodedSwap struct {
	DexName      string
	Protocol     string
	From         SwapLeg
	To           SwapLeg
	Liquidity    *big.Int
	SqrtPriceX96 *big.Int
	Tick         *int32
}

// SwapLeg is one token side of a decoded swap.
type SwapLeg struct {
	Amount  *big.Int
	Account common.Address
}

// CanonicalSwap is the normalized record handed to the sink.
type CanonicalSwap struct {
	Dex         string         `json:"dex"`
	Protocol    string         `json:"protocol"`
	Network     string         `json:"network"`
	Block       BlockHeader    `json:"block"`
	Transaction TxRef          `json:"transaction"`
	LogIndex    uint64         `json:"log_index"`
	Account     common.Address `json:"account"`
	Sender      common.Address `json:"sender"`
	Recipient   common.Address `json:"recipient"`
	Pool        SwapPool       `json:"pool"`
	Factory     common.Address `json:"factory"`
	TokenA      TokenAmount    `json:"token_a"`
	TokenB      TokenAmount    `json:"token_b"`
}

// TxRef identifies the transaction that emitted a swap.
type TxRef struct {
	Hash  common.Hash `json:"hash"`
	Index uint64      `json:"index"`
}

// SwapPool carries the pool identity plus per-swap pool state when reported.
type SwapPool struct {
	Address      common.Address `json:"address"`
	Fee          *uint32        `json:"fee,omitempty"`
	TickSpacing  *int32         `json:"tick_spacing,omitempty"`
	Stable       *bool          `json:"stable,omitempty"`
	Liquidity    *big.Int       `json:"liquidity,omitempty"`
	SqrtPriceX96 *big.Int       `json:"sqrt_price_x96,omitempty"`
	Tick         *int32         `json:"tick,omitempty"`
}

// TokenAmount is one side of a canonical swap. Decimals is nil and Amount is
// invalid while the token's metadata is unresolved.
type TokenAmount struct {
	Address   common.Address      `json:"address"`
	Symbol    string              `json:"symbol"`
	Decimals  *uint8              `json:"decimals"`
	RawAmount *big.Int            `json:"raw_amount"`
	Amount    decimal.NullDecimal `json:"amount"`
}

// Resolve attaches token metadata and scales the raw amount.
func (t *TokenAmount) Resolve(token TokenRecord) {
	decimals := token.Decimals
	t.Decimals = &decimals
	t.Symbol = token.Symbol
	if t.RawAmount == nil {
		return
	}
	t.Amount = decimal.NewNullDecimal(decimal.NewFromBigInt(t.RawAmount, -int32(decimals)))
}

// Resolved reports whether metadata has been attached.
func (t TokenAmount) Resolved() bool {
	return t.Decimals != nil
}
