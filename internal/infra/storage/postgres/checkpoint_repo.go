package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/steemstream/internal/core/domain"
)

// CheckpointRepo implements storage.CheckpointRepository on the single-row
// checkpoints table.
type CheckpointRepo struct {
	db *DB
}

func NewCheckpointRepo(db *DB) *CheckpointRepo {
	return &CheckpointRepo{db: db}
}

// Load returns the stored checkpoint, or zero values when no row exists yet.
func (r *CheckpointRepo) Load(ctx context.Context) (domain.Checkpoint, error) {
	var dest struct {
		LastProcessed int64     `db:"last_processed"`
		HighWater     int64     `db:"high_water"`
		LastSeen      int64     `db:"last_seen"`
		UpdatedAt     time.Time `db:"updated_at"`
	}
	err := r.db.GetContext(ctx, &dest, `
		SELECT last_processed, high_water, last_seen, updated_at
		FROM checkpoints
		WHERE id = 1
	`)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Checkpoint{}, nil
	}
	if err != nil {
		return domain.Checkpoint{}, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	return domain.Checkpoint{
		LastProcessed: uint64(dest.LastProcessed),
		HighWater:     uint64(dest.HighWater),
		LastSeen:      uint64(dest.LastSeen),
		UpdatedAt:     dest.UpdatedAt,
	}, nil
}

// SaveFlushed upserts last_processed and high_water in one statement.
func (r *CheckpointRepo) SaveFlushed(ctx context.Context, processed, highWater uint64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO checkpoints (id, last_processed, high_water, last_seen, updated_at)
		VALUES (1, $1, $2, 0, NOW())
		ON CONFLICT (id) DO UPDATE
		SET last_processed = EXCLUDED.last_processed,
		    high_water = EXCLUDED.high_water,
		    updated_at = EXCLUDED.updated_at
	`, int64(processed), int64(highWater))
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// SaveLastSeen upserts last_seen.
func (r *CheckpointRepo) SaveLastSeen(ctx context.Context, block uint64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO checkpoints (id, last_processed, high_water, last_seen, updated_at)
		VALUES (1, 0, 0, $1, NOW())
		ON CONFLICT (id) DO UPDATE
		SET last_seen = EXCLUDED.last_seen
	`, int64(block))
	if err != nil {
		return fmt.Errorf("failed to save last seen block: %w", err)
	}
	return nil
}
