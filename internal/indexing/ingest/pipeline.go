// Package ingest drives the operation stream through the handlers and the batch.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/raulk/clock"

	"github.com/vietddude/steemstream/internal/core/domain"
	"github.com/vietddude/steemstream/internal/indexing/batch"
	"github.com/vietddude/steemstream/internal/indexing/handler"
	"github.com/vietddude/steemstream/internal/indexing/metrics"
	"github.com/vietddude/steemstream/internal/indexing/recovery"
)

// shutdownTimeout bounds the final flush once the stream context is done.
const shutdownTimeout = 30 * time.Second

// Source delivers the ordered operation stream.
type Source interface {
	Stream(ctx context.Context, start uint64, filter []domain.OpType, fn func(domain.Operation) error) error
}

// SeenMarker records the block of the operation about to be handled.
type SeenMarker interface {
	MarkSeen(ctx context.Context, block uint64) error
}

// Pipeline is one ingestion session: a batch, fresh reward aggregators and a
// dedup cache loaded at session start. It is discarded on restart.
type Pipeline struct {
	source    Source
	processor *handler.Processor
	acc       *batch.Accumulator
	seen      SeenMarker
	clock     clock.Clock
	retry     recovery.RetryStrategy
	filter    []domain.OpType
	logger    *slog.Logger

	lastBlock uint64
	handled   uint64
}

// Run streams from start until ctx is done or an operation fails beyond retry.
// When ctx is done the open reward groups and the batch are flushed at the
// last handled block before returning nil.
func (p *Pipeline) Run(ctx context.Context, start uint64) error {
	p.logger.Info("Starting ingestion session", "start_block", start)

	err := p.source.Stream(ctx, start, p.filter, func(op domain.Operation) error {
		return p.handle(ctx, op)
	})

	if ctx.Err() != nil {
		p.shutdown(ctx)
		return nil
	}
	if err == nil {
		return nil
	}
	return fmt.Errorf("stream stopped at block %d: %w", p.lastBlock, err)
}

func (p *Pipeline) handle(ctx context.Context, op domain.Operation) error {
	if err := p.seen.MarkSeen(ctx, op.BlockNum); err != nil {
		return err
	}
	p.lastBlock = op.BlockNum

	b := p.acc.Batch()
	err := recovery.Retry(ctx, p.clock, p.retry, "operation", func() error {
		return p.processor.Handle(ctx, op, b)
	})
	if err != nil {
		if p.retry.Classify(err) != recovery.CategoryMalformed {
			return err
		}
		metrics.OperationsSkipped.WithLabelValues(string(op.Type)).Inc()
		p.logger.Warn("Skipping malformed operation",
			"type", op.Type,
			"block", op.BlockNum,
			"trx_id", op.TrxID,
			"error", err,
		)
		return nil
	}
	metrics.OperationsProcessed.WithLabelValues(string(op.Type)).Inc()
	p.handled++

	if _, err := p.acc.MaybeFlush(ctx, op.BlockNum); err != nil {
		if errors.Is(err, batch.ErrFlushIncomplete) {
			p.logger.Warn("Holding checkpoint after rejected inserts", "block", op.BlockNum, "error", err)
			return nil
		}
		return err
	}
	return nil
}

func (p *Pipeline) shutdown(parent context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), shutdownTimeout)
	defer cancel()

	b := p.acc.Batch()
	p.processor.Close(ctx, b)
	if b.Len() == 0 || p.lastBlock == 0 {
		p.logger.Info("Ingestion session stopped", "handled", p.handled)
		return
	}

	if _, err := p.acc.Flush(ctx, p.lastBlock); err != nil {
		p.logger.Error("Final flush failed", "block", p.lastBlock, "error", err)
		return
	}
	p.logger.Info("Ingestion session stopped", "handled", p.handled, "block", p.lastBlock)
}

// LastBlock returns the block of the most recently handled operation.
func (p *Pipeline) LastBlock() uint64 {
	return p.lastBlock
}
