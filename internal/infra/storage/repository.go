package storage

import (
	"context"

	"github.com/vietddude/steemstream/internal/core/domain"
)

// Row is one row of a tabular query result keyed by column name.
type Row = map[string]any

// Sink executes named batch procedures and named queries against durable storage.
type Sink interface {
	// InsertBatch JSON-encodes records and passes them as the single argument of procedure.
	InsertBatch(ctx context.Context, procedure string, records any) error

	// Call runs a procedure that takes no arguments.
	Call(ctx context.Context, procedure string) error

	// Query calls a set-returning function and concatenates every result set.
	Query(ctx context.Context, function string, params ...any) ([]Row, error)

	// Close releases the connection.
	Close() error
}

// CheckpointRepository persists the stream position.
type CheckpointRepository interface {
	// Load returns the stored checkpoint. Missing values load as zero.
	Load(ctx context.Context) (domain.Checkpoint, error)

	// SaveFlushed stores the resumable block and the high-water mark together.
	SaveFlushed(ctx context.Context, processed, highWater uint64) error

	// SaveLastSeen stores the block of the operation about to be handled.
	SaveLastSeen(ctx context.Context, block uint64) error
}

// FailedFlushRepository keeps rejected batch inserts for operator attention.
type FailedFlushRepository interface {
	Add(ctx context.Context, ff *domain.FailedFlush) error
	GetAll(ctx context.Context) ([]*domain.FailedFlush, error)
	Count(ctx context.Context) (int, error)
}
