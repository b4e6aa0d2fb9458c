package model

import "github.com/ethereum/go-ethereum/common"

// DropReason labels why a log was not turned into a canonical swap.
type DropReason string

const (
	DropUnknownPool    DropReason = "unknown_pool"
	DropMissingTx      DropReason = "missing_transaction"
	DropNoDecoder      DropReason = "no_decoder"
	DropDecodeFailed   DropReason = "decode_failed"
	DropCreationFailed DropReason = "creation_decode_failed"
)

// Drop records a log the engine skipped.
type Drop struct {
	Reason      DropReason     `json:"reason"`
	BlockNumber uint64         `json:"block_number"`
	TxHash      common.Hash    `json:"tx_hash"`
	LogIndex    uint64         `json:"log_index"`
	Address     common.Address `json:"address"`
	Topic0      common.Hash    `json:"topic0"`
	Error       string         `json:"error,omitempty"`
}
