package model

import "github.com/ethereum/go-ethereum/common"

// BlockHeader carries the header fields the pipeline projects.
type BlockHeader struct {
	Number    uint64      `json:"number"`
	Hash      common.Hash `json:"hash"`
	Timestamp uint64      `json:"timestamp"`
}

// Position returns the chain position of the header.
func (h BlockHeader) Position() Position {
	return Position{Number: h.Number, Hash: h.Hash.Hex()}
}

// Transaction is the transaction context attached to logs.
type Transaction struct {
	Hash  common.Hash     `json:"hash"`
	Index uint64          `json:"index"`
	From  common.Address  `json:"from"`
	To    *common.Address `json:"to,omitempty"`
}

// Log is a raw event log as delivered by the block source.
type Log struct {
	Address          common.Address `json:"address"`
	Topics           []common.Hash  `json:"topics"`
	Data             []byte         `json:"data"`
	TransactionHash  common.Hash    `json:"transaction_hash"`
	TransactionIndex uint64         `json:"transaction_index"`
	LogIndex         uint64         `json:"log_index"`
}

// Topic0 returns the event signature topic, or the zero hash for anonymous logs.
func (l Log) Topic0() common.Hash {
	if len(l.Topics) == 0 {
		return common.Hash{}
	}
	return l.Topics[0]
}

// Block is one block of the stream with its matching logs in log-index order.
type Block struct {
	Header       BlockHeader   `json:"header"`
	Logs         []Log         `json:"logs"`
	Transactions []Transaction `json:"transactions,omitempty"`
}

// Transaction returns the transaction with the given hash, if present.
func (b Block) Transaction(hash common.Hash) (Transaction, bool) {
	for _, tx := range b.Transactions {
		if tx.Hash == hash {
			return tx, true
		}
	}
	return Transaction{}, false
}

// Batch is an ordered group of blocks. Position marks the end of the block
// range the batch covers, which may be past the last block that has logs.
type Batch struct {
	Blocks   []Block
	Position Position
}
