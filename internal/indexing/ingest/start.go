package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vietddude/steemstream/internal/core/domain"
)

// DefaultBootstrapDays is how far back a fresh run starts when nothing else is configured.
const DefaultBootstrapDays = 409

// StartConfig selects the first block of a run.
type StartConfig struct {
	StartBlock    uint64
	Resume        bool
	BootstrapDays int
}

// BlockLocator finds the first block produced on a date.
type BlockLocator interface {
	FirstBlockOnDate(ctx context.Context, date time.Time) (uint64, error)
}

// ResolveStart picks the start block: an explicit block wins, then the stored
// checkpoint when resuming, then the first block of the bootstrap date.
func ResolveStart(
	ctx context.Context,
	cfg StartConfig,
	cp domain.Checkpoint,
	locator BlockLocator,
	now time.Time,
) (uint64, error) {
	if cfg.StartBlock > 0 {
		return cfg.StartBlock, nil
	}
	if cfg.Resume && cp.LastProcessed > 0 {
		return cp.LastProcessed, nil
	}

	days := cfg.BootstrapDays
	if days <= 0 {
		days = DefaultBootstrapDays
	}
	date := now.UTC().AddDate(0, 0, -days)
	block, err := locator.FirstBlockOnDate(ctx, date)
	if err != nil {
		return 0, fmt.Errorf("failed to locate first block on %s: %w", date.Format(time.DateOnly), err)
	}
	return block, nil
}

// StartTracker applies the start selection to the first run only. Every later
// run of the same process resumes from the stored LastProcessed, or from the
// first resolved block while nothing has been flushed yet.
type StartTracker struct {
	cfg     StartConfig
	locator BlockLocator

	mu       sync.Mutex
	resolved bool
	first    uint64
}

func NewStartTracker(cfg StartConfig, locator BlockLocator) *StartTracker {
	return &StartTracker{cfg: cfg, locator: locator}
}

// Next returns the block the next run starts from.
func (t *StartTracker) Next(ctx context.Context, cp domain.Checkpoint, now time.Time) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.resolved {
		if cp.LastProcessed > 0 {
			return cp.LastProcessed, nil
		}
		return t.first, nil
	}

	start, err := ResolveStart(ctx, t.cfg, cp, t.locator, now)
	if err != nil {
		return 0, err
	}
	t.first = start
	t.resolved = true
	return start, nil
}
