package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/steemstream/internal/core/domain"
)

// FailedFlushRepo implements storage.FailedFlushRepository using PostgreSQL.
type FailedFlushRepo struct {
	db *DB
}

// NewFailedFlushRepo creates a new PostgreSQL dead-letter repository.
func NewFailedFlushRepo(db *DB) *FailedFlushRepo {
	return &FailedFlushRepo{db: db}
}

// Add stores a rejected insert.
func (r *FailedFlushRepo) Add(ctx context.Context, ff *domain.FailedFlush) error {
	query := `
		INSERT INTO failed_flushes (id, procedure, block_number, record_count, payload, error_msg, created_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7)
	`
	_, err := r.db.ExecContext(
		ctx,
		query,
		ff.ID,
		ff.Procedure,
		int64(ff.Block),
		ff.Records,
		string(ff.Payload),
		ff.Error,
		ff.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add failed flush: %w", err)
	}
	return nil
}

// GetAll returns every stored rejection, oldest first.
func (r *FailedFlushRepo) GetAll(ctx context.Context) ([]*domain.FailedFlush, error) {
	query := `
		SELECT id, procedure, block_number, record_count, payload, error_msg, created_at
		FROM failed_flushes
		ORDER BY created_at ASC
	`

	var rows []struct {
		ID          string    `db:"id"`
		Procedure   string    `db:"procedure"`
		BlockNumber int64     `db:"block_number"`
		RecordCount int       `db:"record_count"`
		Payload     []byte    `db:"payload"`
		ErrorMsg    string    `db:"error_msg"`
		CreatedAt   time.Time `db:"created_at"`
	}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to get failed flushes: %w", err)
	}

	out := make([]*domain.FailedFlush, 0, len(rows))
	for _, row := range rows {
		out = append(out, &domain.FailedFlush{
			ID:        row.ID,
			Procedure: row.Procedure,
			Block:     uint64(row.BlockNumber),
			Records:   row.RecordCount,
			Payload:   row.Payload,
			Error:     row.ErrorMsg,
			CreatedAt: row.CreatedAt,
		})
	}
	return out, nil
}

// Count returns the number of stored rejections.
func (r *FailedFlushRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM failed_flushes`); err != nil {
		return 0, fmt.Errorf("failed to count failed flushes: %w", err)
	}
	return count, nil
}
