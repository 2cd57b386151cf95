package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/steemstream/internal/core/domain"
)

// FailedFlushRepo implements storage.FailedFlushRepository using Redis.
// IDs live in a sorted set scored by creation time; payloads in their own keys.
type FailedFlushRepo struct {
	rdb    *redis.Client
	client *Client
}

func NewFailedFlushRepo(client *Client) *FailedFlushRepo {
	return &FailedFlushRepo{rdb: client.rdb, client: client}
}

func (r *FailedFlushRepo) queueKey() string {
	return r.client.key("failed_flushes")
}

func (r *FailedFlushRepo) entryKey(id string) string {
	return r.client.key("failed_flush", id)
}

// Add stores the entry and indexes it. Entries do not expire.
func (r *FailedFlushRepo) Add(ctx context.Context, ff *domain.FailedFlush) error {
	data, err := json.Marshal(ff)
	if err != nil {
		return fmt.Errorf("failed to marshal failed flush: %w", err)
	}

	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, r.entryKey(ff.ID), data, 0)
	pipe.ZAdd(ctx, r.queueKey(), redis.Z{
		Score:  float64(ff.CreatedAt.UnixMilli()),
		Member: ff.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to add failed flush: %w", err)
	}
	return nil
}

// GetAll returns entries oldest first.
func (r *FailedFlushRepo) GetAll(ctx context.Context) ([]*domain.FailedFlush, error) {
	ids, err := r.rdb.ZRange(ctx, r.queueKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("zrange failed: %w", err)
	}

	out := make([]*domain.FailedFlush, 0, len(ids))
	for _, id := range ids {
		data, err := r.rdb.Get(ctx, r.entryKey(id)).Bytes()
		if err == redis.Nil {
			r.rdb.ZRem(ctx, r.queueKey(), id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get failed flush: %w", err)
		}

		var ff domain.FailedFlush
		if err := json.Unmarshal(data, &ff); err != nil {
			continue
		}
		out = append(out, &ff)
	}
	return out, nil
}

func (r *FailedFlushRepo) Count(ctx context.Context) (int, error) {
	n, err := r.rdb.ZCard(ctx, r.queueKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard failed: %w", err)
	}
	return int(n), nil
}
