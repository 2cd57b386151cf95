// Package checkpoint tracks the resumable stream position on top of a swappable repository.
package checkpoint

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/steemstream/internal/core/domain"
	"github.com/vietddude/steemstream/internal/indexing/metrics"
	"github.com/vietddude/steemstream/internal/infra/storage"
)

// Manager guards checkpoint invariants: LastProcessed never moves backwards through
// Commit, and HighWater never decreases.
type Manager struct {
	repo      storage.CheckpointRepository
	mu        sync.RWMutex
	current   domain.Checkpoint
	loaded    bool
	collector *MetricsCollector
}

// NewManager creates a checkpoint manager over repo.
func NewManager(repo storage.CheckpointRepository) *Manager {
	return &Manager{
		repo:      repo,
		collector: NewMetricsCollector(100),
	}
}

// Load reads the checkpoint from the repository and caches it.
func (m *Manager) Load(ctx context.Context) (domain.Checkpoint, error) {
	cp, err := m.repo.Load(ctx)
	if err != nil {
		return domain.Checkpoint{}, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	m.mu.Lock()
	m.current = cp
	m.loaded = true
	m.mu.Unlock()

	publish(cp)
	return cp, nil
}

// MarkSeen records the block of the operation about to be handled.
// Writes happen only when the block number changes.
func (m *Manager) MarkSeen(ctx context.Context, block uint64) error {
	m.mu.RLock()
	same := m.current.LastSeen == block
	m.mu.RUnlock()
	if same {
		return nil
	}

	if err := m.repo.SaveLastSeen(ctx, block); err != nil {
		return fmt.Errorf("failed to save last seen block: %w", err)
	}

	m.mu.Lock()
	m.current.LastSeen = block
	m.mu.Unlock()
	metrics.CheckpointBlock.WithLabelValues("last_seen").Set(float64(block))
	return nil
}

// Commit records a successful flush at block.
func (m *Manager) Commit(ctx context.Context, block uint64) error {
	if err := m.ensureLoaded(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	processed := block
	if block < m.current.LastProcessed {
		slog.Debug("Checkpoint behind stored value, keeping stored value",
			"block", block,
			"stored", m.current.LastProcessed,
		)
		processed = m.current.LastProcessed
	}
	highWater := max(m.current.HighWater, block)

	if err := m.repo.SaveFlushed(ctx, processed, highWater); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	now := time.Now()
	m.current.LastProcessed = processed
	m.current.HighWater = highWater
	m.current.UpdatedAt = now
	m.collector.RecordFlush(processed, now)

	publish(m.current)
	return nil
}

// Reset moves the resumable pointer to block regardless of its current value.
// It is an operator action; HighWater is still kept monotonic.
func (m *Manager) Reset(ctx context.Context, block uint64) error {
	if err := m.ensureLoaded(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	highWater := max(m.current.HighWater, block)
	if err := m.repo.SaveFlushed(ctx, block, highWater); err != nil {
		return fmt.Errorf("failed to reset checkpoint: %w", err)
	}
	if err := m.repo.SaveLastSeen(ctx, block); err != nil {
		return fmt.Errorf("failed to reset last seen block: %w", err)
	}

	m.current.LastProcessed = block
	m.current.HighWater = highWater
	m.current.LastSeen = block
	m.current.UpdatedAt = time.Now()
	m.collector.Reset()

	publish(m.current)
	return nil
}

// Current returns the cached checkpoint.
func (m *Manager) Current() domain.Checkpoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// GetLag returns how many blocks the resumable pointer trails latestBlock.
func (m *Manager) GetLag(latestBlock uint64) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(latestBlock) - int64(m.current.LastProcessed)
}

// GetMetrics returns flush throughput.
func (m *Manager) GetMetrics() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collector.GetMetrics()
}

func (m *Manager) ensureLoaded(ctx context.Context) error {
	m.mu.RLock()
	loaded := m.loaded
	m.mu.RUnlock()
	if loaded {
		return nil
	}
	_, err := m.Load(ctx)
	return err
}

func publish(cp domain.Checkpoint) {
	metrics.CheckpointBlock.WithLabelValues("last_processed").Set(float64(cp.LastProcessed))
	metrics.CheckpointBlock.WithLabelValues("high_water").Set(float64(cp.HighWater))
	metrics.CheckpointBlock.WithLabelValues("last_seen").Set(float64(cp.LastSeen))
}
