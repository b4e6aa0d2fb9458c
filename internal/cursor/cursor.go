// Package cursor persists stream progress.
package cursor

import (
	"context"

	"evmswaps/internal/model"
)

// Store persists one checkpoint per logical stream. initial is where the
// stream began; it is only stored by the first Save for a stream.
type Store interface {
	Get(ctx context.Context, streamID string) (model.Checkpoint, bool, error)
	Save(ctx context.Context, streamID string, current, initial model.Position) error
}

// Resolve returns the stored checkpoint, or a fresh one positioned at def.
func Resolve(ctx context.Context, store Store, streamID string, def model.Position) (model.Checkpoint, error) {
	cp, ok, err := store.Get(ctx, streamID)
	if err != nil {
		return model.Checkpoint{}, err
	}
	if !ok {
		return model.Checkpoint{Current: def, Initial: def}, nil
	}
	return cp, nil
}
