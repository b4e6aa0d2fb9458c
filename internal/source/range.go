package source

import "fmt"

// BlockRange represents an inclusive block range.
type BlockRange struct {
	From uint64
	To   uint64
}

// Len returns the number of blocks in the range.
func (r BlockRange) Len() uint64 {
	return r.To - r.From + 1
}

// NextRange returns the first batch of at most batchSize blocks starting at
// from and ending no later than limit.
func NextRange(from, limit, batchSize uint64) (BlockRange, error) {
	if batchSize == 0 {
		return BlockRange{}, fmt.Errorf("batch size must be greater than zero")
	}
	if limit < from {
		return BlockRange{}, fmt.Errorf("to block must be >= from block")
	}

	end := limit
	if limit-from+1 > batchSize {
		end = from + batchSize - 1
	}
	return BlockRange{From: from, To: end}, nil
}
