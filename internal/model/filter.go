package model

import "github.com/ethereum/go-ethereum/common"

// LogFilter selects logs for the block source. An empty Addresses list
// matches any emitter. Transaction asks for transaction context.
type LogFilter struct {
	Addresses   []common.Address
	Topic0      []common.Hash
	Transaction bool
}
