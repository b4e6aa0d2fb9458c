package storage

import (
	"context"

	"evmswaps/internal/model"
)

// Sink is the durable target for normalized swaps.
type Sink interface {
	// Write persists all rows or none of them.
	Write(ctx context.Context, rows []model.CanonicalSwap) error
	// CleanupAfter removes rows with a block number above cutoff, left
	// behind by a run that stopped before saving its checkpoint.
	CleanupAfter(ctx context.Context, cutoff uint64) error
	Close() error
}
