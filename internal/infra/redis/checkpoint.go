package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/steemstream/internal/core/domain"
)

const (
	fieldProcessed = "last_processed"
	fieldHighWater = "high_water"
	fieldLastSeen  = "last_seen"
	fieldUpdatedAt = "updated_at"
)

// CheckpointRepo keeps the stream position in one hash so a flushed
// position is written with a single HSET.
type CheckpointRepo struct {
	rdb *redis.Client
	key string
}

func NewCheckpointRepo(client *Client) *CheckpointRepo {
	return &CheckpointRepo{rdb: client.rdb, key: client.key("checkpoint")}
}

func (r *CheckpointRepo) Load(ctx context.Context) (domain.Checkpoint, error) {
	vals, err := r.rdb.HGetAll(ctx, r.key).Result()
	if err != nil {
		return domain.Checkpoint{}, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	var cp domain.Checkpoint
	for field, dst := range map[string]*uint64{
		fieldProcessed: &cp.LastProcessed,
		fieldHighWater: &cp.HighWater,
		fieldLastSeen:  &cp.LastSeen,
	} {
		raw, ok := vals[field]
		if !ok {
			continue
		}
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return domain.Checkpoint{}, fmt.Errorf("invalid checkpoint field %s=%q: %w", field, raw, err)
		}
		*dst = v
	}
	if raw, ok := vals[fieldUpdatedAt]; ok {
		if ts, err := strconv.ParseInt(raw, 10, 64); err == nil {
			cp.UpdatedAt = time.Unix(ts, 0).UTC()
		}
	}
	return cp, nil
}

func (r *CheckpointRepo) SaveFlushed(ctx context.Context, processed, highWater uint64) error {
	err := r.rdb.HSet(ctx, r.key,
		fieldProcessed, strconv.FormatUint(processed, 10),
		fieldHighWater, strconv.FormatUint(highWater, 10),
		fieldUpdatedAt, strconv.FormatInt(time.Now().Unix(), 10),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

func (r *CheckpointRepo) SaveLastSeen(ctx context.Context, block uint64) error {
	if err := r.rdb.HSet(ctx, r.key, fieldLastSeen, strconv.FormatUint(block, 10)).Err(); err != nil {
		return fmt.Errorf("failed to save last seen block: %w", err)
	}
	return nil
}
