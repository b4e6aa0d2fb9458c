package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"evmswaps/internal/cursor"
	"evmswaps/internal/model"
)

var _ cursor.Store = (*CursorStore)(nil)

// CursorStore keeps one sync_status row per stream.
type CursorStore struct {
	pool *pgxpool.Pool
}

func (s *CursorStore) Get(ctx context.Context, streamID string) (model.Checkpoint, bool, error) {
	if streamID == "" {
		return model.Checkpoint{}, false, fmt.Errorf("stream id required")
	}
	var (
		cp                    model.Checkpoint
		initialBlock, current int64
	)
	row := s.pool.QueryRow(ctx, `
		SELECT initial_block, initial_hash, current_block, current_hash
		FROM sync_status WHERE stream_id = $1
	`, streamID)
	if err := row.Scan(&initialBlock, &cp.Initial.Hash, &current, &cp.Current.Hash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Checkpoint{}, false, nil
		}
		return model.Checkpoint{}, false, err
	}
	cp.Initial.Number = uint64(initialBlock)
	cp.Current.Number = uint64(current)
	return cp, true, nil
}

// Save upserts the current position. The initial position is only written
// with the first row.
func (s *CursorStore) Save(ctx context.Context, streamID string, current, initial model.Position) error {
	if streamID == "" {
		return fmt.Errorf("stream id required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sync_status (stream_id, initial_block, initial_hash, current_block, current_hash, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (stream_id) DO UPDATE
		SET current_block = EXCLUDED.current_block,
			current_hash = EXCLUDED.current_hash,
			updated_at = now()
	`, streamID, int64(initial.Number), initial.Hash, int64(current.Number), current.Hash)
	return err
}
