package cursor

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"evmswaps/internal/model"
)

const redisKeyPrefix = "swaps:cursor:"

// RedisStore keeps each stream's checkpoint in a hash.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisClient connects to addr and verifies the connection.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Get(ctx context.Context, streamID string) (model.Checkpoint, bool, error) {
	fields, err := r.client.HGetAll(ctx, redisKeyPrefix+streamID).Result()
	if err != nil {
		return model.Checkpoint{}, false, fmt.Errorf("read cursor %s: %w", streamID, err)
	}
	if len(fields) == 0 {
		return model.Checkpoint{}, false, nil
	}

	current, err := parseRedisPosition(fields, "current")
	if err != nil {
		return model.Checkpoint{}, false, fmt.Errorf("cursor %s: %w", streamID, err)
	}
	initial, err := parseRedisPosition(fields, "initial")
	if err != nil {
		return model.Checkpoint{}, false, fmt.Errorf("cursor %s: %w", streamID, err)
	}
	return model.Checkpoint{Current: current, Initial: initial}, true, nil
}

func (r *RedisStore) Save(ctx context.Context, streamID string, current, initial model.Position) error {
	key := redisKeyPrefix + streamID

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, "initial", strconv.FormatUint(initial.Number, 10))
		pipe.HSetNX(ctx, key, "initial_hash", initial.Hash)
		pipe.HSet(ctx, key,
			"current", strconv.FormatUint(current.Number, 10),
			"current_hash", current.Hash,
			"updated_at", time.Now().UTC().Format(time.RFC3339Nano),
		)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save cursor %s: %w", streamID, err)
	}
	return nil
}

func parseRedisPosition(fields map[string]string, prefix string) (model.Position, error) {
	number, err := strconv.ParseUint(fields[prefix], 10, 64)
	if err != nil {
		return model.Position{}, fmt.Errorf("parse %s: %w", prefix, err)
	}
	return model.Position{Number: number, Hash: fields[prefix+"_hash"]}, nil
}
