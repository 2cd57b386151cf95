package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/steemstream/internal/indexing/accounts"
	"github.com/vietddude/steemstream/internal/indexing/metrics"
)

// ErrFlushIncomplete is returned when some categories were rejected and the
// checkpoint is held back.
var ErrFlushIncomplete = errors.New("flush incomplete")

// Sink writes and reads through named procedures.
type Sink interface {
	accounts.Querier
	InsertBatch(ctx context.Context, procedure string, records any) error
}

// Committer persists the resumable checkpoint.
type Committer interface {
	Commit(ctx context.Context, block uint64) error
}

// AccountSnapshot receives the persisted username snapshot after a flush.
type AccountSnapshot interface {
	Replace(snapshot []string)
	Promote()
}

// FailureRecorder keeps rejected inserts for operator attention.
type FailureRecorder interface {
	HandleFailure(ctx context.Context, procedure string, block uint64, records any, count int, err error) error
}

// Config controls flushing.
type Config struct {
	// Threshold is the record count across all categories that triggers a flush.
	Threshold int
	// HoldCheckpointOnFailure keeps the checkpoint and the rejected records when
	// any category insert fails. Held records are retried once another
	// Threshold of new records has arrived.
	HoldCheckpointOnFailure bool
}

// FlushResult summarises one flush.
type FlushResult struct {
	Block     uint64
	Records   int
	Failed    []Category
	Committed bool
	Duration  time.Duration
}

// Accumulator owns the current batch and flushes it once the threshold is reached.
// It is not safe for concurrent use; the ingestion loop is single-threaded.
type Accumulator struct {
	cfg       Config
	sink      Sink
	committer Committer
	snapshot  AccountSnapshot
	failures  FailureRecorder
	batch     *Batch

	// held is the number of records per category already reported to
	// failures; heldLen is the batch size right after the last held flush.
	held    map[Category]int
	heldLen int
}

// NewAccumulator creates an accumulator. failures may be nil.
func NewAccumulator(
	cfg Config,
	sink Sink,
	committer Committer,
	snapshot AccountSnapshot,
	failures FailureRecorder,
) *Accumulator {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 1000
	}
	return &Accumulator{
		cfg:       cfg,
		sink:      sink,
		committer: committer,
		snapshot:  snapshot,
		failures:  failures,
		batch:     &Batch{},
		held:      make(map[Category]int),
	}
}

// Batch returns the batch handlers append to.
func (a *Accumulator) Batch() *Batch {
	return a.batch
}

// MaybeFlush flushes when the records added since the last flush reach the
// threshold.
func (a *Accumulator) MaybeFlush(ctx context.Context, block uint64) (*FlushResult, error) {
	if a.batch.Len()-a.heldLen < a.cfg.Threshold {
		return nil, nil
	}
	return a.Flush(ctx, block)
}

// Flush writes every non-empty category, then commits block as the checkpoint,
// resets the batch and refreshes the account snapshot.
func (a *Accumulator) Flush(ctx context.Context, block uint64) (*FlushResult, error) {
	start := time.Now()
	result := &FlushResult{Block: block}

	for _, c := range Categories {
		records, n := a.batch.Records(c)
		if n == 0 {
			continue
		}
		result.Records += n

		procedure := c.Procedure()
		if err := a.sink.InsertBatch(ctx, procedure, records); err != nil {
			result.Failed = append(result.Failed, c)
			metrics.FlushFailures.WithLabelValues(procedure).Inc()
			slog.Error("Failed to insert batch",
				"procedure", procedure,
				"records", n,
				"block", block,
				"error", err,
			)
			a.recordFailure(ctx, c, block, err)
			continue
		}
		metrics.BatchRecords.WithLabelValues(string(c)).Add(float64(n))
	}

	result.Duration = time.Since(start)
	metrics.FlushDuration.Observe(result.Duration.Seconds())

	if len(result.Failed) > 0 && a.cfg.HoldCheckpointOnFailure {
		failed := make(map[Category]bool, len(result.Failed))
		for _, c := range result.Failed {
			failed[c] = true
		}
		for _, c := range Categories {
			if failed[c] {
				_, a.held[c] = a.batch.Records(c)
				continue
			}
			a.batch.Clear(c)
			delete(a.held, c)
		}
		a.heldLen = a.batch.Len()
		metrics.FlushesTotal.WithLabelValues("held").Inc()
		return result, fmt.Errorf("%w: %d categories rejected at block %d", ErrFlushIncomplete, len(result.Failed), block)
	}

	if err := a.committer.Commit(ctx, block); err != nil {
		metrics.FlushesTotal.WithLabelValues("error").Inc()
		return result, fmt.Errorf("failed to commit checkpoint: %w", err)
	}
	result.Committed = true

	a.batch.Reset()
	clear(a.held)
	a.heldLen = 0
	a.refreshSnapshot(ctx)

	if len(result.Failed) > 0 {
		metrics.FlushesTotal.WithLabelValues("partial").Inc()
	} else {
		metrics.FlushesTotal.WithLabelValues("success").Inc()
	}

	slog.Info("Flushed batch",
		"block", block,
		"records", result.Records,
		"failed", len(result.Failed),
		"duration", result.Duration,
	)
	return result, nil
}

// recordFailure reports the records of c that were not reported by an
// earlier held flush.
func (a *Accumulator) recordFailure(ctx context.Context, c Category, block uint64, cause error) {
	if a.failures == nil {
		return
	}
	records, n := a.batch.Since(c, a.held[c])
	if n == 0 {
		return
	}
	procedure := c.Procedure()
	if err := a.failures.HandleFailure(ctx, procedure, block, records, n, cause); err != nil {
		slog.Error("Failed to record rejected batch", "procedure", procedure, "error", err)
	}
}

func (a *Accumulator) refreshSnapshot(ctx context.Context) {
	names, err := accounts.LoadSnapshot(ctx, a.sink)
	if err != nil {
		slog.Warn("Failed to refresh account snapshot, keeping flushed names", "error", err)
		a.snapshot.Promote()
		return
	}
	a.snapshot.Replace(names)
}
