// Package source delivers ordered block batches matching a log filter.
package source

import (
	"context"
	"errors"

	"evmswaps/internal/model"
)

// ErrNotAcked is returned by Next while the previous batch is unacknowledged.
var ErrNotAcked = errors.New("previous batch not acknowledged")

// Source opens block streams.
type Source interface {
	// Head returns the latest block known to the upstream.
	Head(ctx context.Context) (uint64, error)
	// Open starts a stream at the block after the given position. A zero to
	// follows the chain head indefinitely; otherwise the stream drains with
	// io.EOF once block to has been delivered.
	Open(ctx context.Context, filters []model.LogFilter, after model.Position, to uint64) (Stream, error)
}

// Stream is a lazy ordered sequence of batches. Each batch must be
// acknowledged before the next one is requested.
type Stream interface {
	Next(ctx context.Context) (model.Batch, error)
	Ack(position model.Position) error
}
