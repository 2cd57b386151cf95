package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/raulk/clock"

	"github.com/vietddude/steemstream/internal/core/checkpoint"
	"github.com/vietddude/steemstream/internal/core/domain"
	"github.com/vietddude/steemstream/internal/indexing/accounts"
	"github.com/vietddude/steemstream/internal/indexing/batch"
	"github.com/vietddude/steemstream/internal/indexing/handler"
	"github.com/vietddude/steemstream/internal/indexing/metrics"
	"github.com/vietddude/steemstream/internal/indexing/recovery"
)

// ErrRestartBudgetExhausted is returned when the stream keeps failing without progress.
var ErrRestartBudgetExhausted = errors.New("restart budget exhausted")

// Config controls the ingestion loop.
type Config struct {
	BatchThreshold          int
	HoldCheckpointOnFailure bool
	RewardsOnlyBelow        uint64
	MaxRestarts             int
	RestartDelay            time.Duration
	Filter                  []domain.OpType

	// OperationRetry overrides the per-operation retry strategy.
	OperationRetry recovery.RetryStrategy
}

func (c *Config) applyDefaults() {
	if c.BatchThreshold <= 0 {
		c.BatchThreshold = 1000
	}
	if c.MaxRestarts <= 0 {
		c.MaxRestarts = 100
	}
	if c.RestartDelay <= 0 {
		c.RestartDelay = time.Second
	}
	if len(c.Filter) == 0 {
		c.Filter = domain.DefaultOperationFilter
	}
	if c.OperationRetry == nil {
		c.OperationRetry = recovery.OperationBackoff()
	}
}

// Chain is the chain access a session needs besides the stream.
type Chain interface {
	Source
	handler.ChainReader
}

// Deps are the long-lived collaborators shared by every session.
type Deps struct {
	Chain      Chain
	Analyzer   handler.Analyzer
	Followers  handler.FollowerEstimator
	Sink       batch.Sink
	Checkpoint *checkpoint.Manager
	Failures   batch.FailureRecorder
	Clock      clock.Clock
}

// Runner owns the outer recovery scope. Each failed session is replaced by a
// fresh one that resumes from the stored LastProcessed.
type Runner struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger

	mu    sync.RWMutex
	cache *accounts.Cache
}

// NewRunner creates a runner. A nil clock uses the wall clock.
func NewRunner(cfg Config, deps Deps) *Runner {
	cfg.applyDefaults()
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	return &Runner{
		cfg:    cfg,
		deps:   deps,
		logger: slog.Default().With("component", "ingest"),
	}
}

// Run streams from start until ctx is done. It returns nil on shutdown and an
// error once a fatal error occurs or the restart budget is spent.
func (r *Runner) Run(ctx context.Context, start uint64) error {
	from := start
	restarts := 0
	var progressMark uint64

	for {
		err := r.runSession(ctx, from)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			return nil
		}
		if !restartable(err) {
			return fmt.Errorf("ingestion failed: %w", err)
		}

		cp, lerr := r.deps.Checkpoint.Load(ctx)
		if lerr != nil {
			r.logger.Warn("Failed to reload checkpoint, resuming from previous start", "error", lerr)
			cp.LastProcessed = progressMark
		}
		if cp.LastProcessed > progressMark {
			progressMark = cp.LastProcessed
			restarts = 0
		}

		restarts++
		if restarts > r.cfg.MaxRestarts {
			return fmt.Errorf("%w after %d attempts: %w", ErrRestartBudgetExhausted, restarts-1, err)
		}
		if cp.LastProcessed > 0 {
			from = cp.LastProcessed
		}

		metrics.RestartsTotal.WithLabelValues("stream").Inc()
		r.logger.Warn("Restarting ingestion session",
			"attempt", restarts,
			"resume_block", from,
			"error", err,
		)
		if err := r.sleep(ctx, r.cfg.RestartDelay); err != nil {
			return nil
		}
	}
}

func (r *Runner) runSession(ctx context.Context, start uint64) error {
	p, err := r.newSession(ctx)
	if err != nil {
		return err
	}
	return p.Run(ctx, start)
}

func (r *Runner) newSession(ctx context.Context) (*Pipeline, error) {
	names, err := accounts.LoadSnapshot(ctx, r.deps.Sink)
	if err != nil {
		return nil, fmt.Errorf("failed to load account snapshot: %w", err)
	}
	cache := accounts.NewCache(r.deps.Chain, names)

	r.mu.Lock()
	r.cache = cache
	r.mu.Unlock()

	proc := handler.NewProcessor(
		handler.Config{RewardsOnlyBelow: r.cfg.RewardsOnlyBelow},
		r.deps.Chain,
		r.deps.Analyzer,
		r.deps.Followers,
		cache,
	)
	acc := batch.NewAccumulator(
		batch.Config{
			Threshold:               r.cfg.BatchThreshold,
			HoldCheckpointOnFailure: r.cfg.HoldCheckpointOnFailure,
		},
		r.deps.Sink,
		r.deps.Checkpoint,
		cache,
		r.deps.Failures,
	)

	return &Pipeline{
		source:    r.deps.Chain,
		processor: proc,
		acc:       acc,
		seen:      r.deps.Checkpoint,
		clock:     r.deps.Clock,
		retry:     r.cfg.OperationRetry,
		filter:    r.cfg.Filter,
		logger:    r.logger,
	}, nil
}

// CacheSizes reports the current session's dedup cache sizes.
func (r *Runner) CacheSizes() (persisted, inFlight int) {
	r.mu.RLock()
	cache := r.cache
	r.mu.RUnlock()
	if cache == nil {
		return 0, 0
	}
	return cache.Sizes()
}

func (r *Runner) sleep(ctx context.Context, d time.Duration) error {
	timer := r.deps.Clock.Timer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// restartable reports whether a failed session should be replaced by a new one.
func restartable(err error) bool {
	if errors.Is(err, recovery.ErrRetryExhausted) {
		return true
	}
	return recovery.DefaultClassifier(err) == recovery.CategoryTransient
}
