package checkpoint

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/steemstream/internal/core/domain"
)

// =============================================================================
// Mock Repository
// =============================================================================

type mockCheckpointRepo struct {
	mu        sync.Mutex
	cp        domain.Checkpoint
	saves     int
	seenSaves int
	failSave  error
}

func (r *mockCheckpointRepo) Load(ctx context.Context) (domain.Checkpoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cp, nil
}

func (r *mockCheckpointRepo) SaveFlushed(ctx context.Context, processed, highWater uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSave != nil {
		return r.failSave
	}
	r.cp.LastProcessed = processed
	r.cp.HighWater = highWater
	r.saves++
	return nil
}

func (r *mockCheckpointRepo) SaveLastSeen(ctx context.Context, block uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cp.LastSeen = block
	r.seenSaves++
	return nil
}

// =============================================================================
// Tests
// =============================================================================

func TestManager_CommitWritesBlockAndRaisesHighWater(t *testing.T) {
	repo := &mockCheckpointRepo{}
	mgr := NewManager(repo)
	ctx := context.Background()

	if err := mgr.Commit(ctx, 100); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if repo.cp.LastProcessed != 100 {
		t.Errorf("Expected LastProcessed 100, got %d", repo.cp.LastProcessed)
	}
	if repo.cp.HighWater != 100 {
		t.Errorf("Expected HighWater 100, got %d", repo.cp.HighWater)
	}
}

func TestManager_ResumeNeverMovesBackward(t *testing.T) {
	repo := &mockCheckpointRepo{cp: domain.Checkpoint{LastProcessed: 500, HighWater: 800}}
	mgr := NewManager(repo)
	ctx := context.Background()

	if _, err := mgr.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Reprocessing the same range after a restart.
	sequence := []uint64{500, 450, 600, 550, 900, 700}
	var lastProcessed, lastHigh uint64
	for _, block := range sequence {
		if err := mgr.Commit(ctx, block); err != nil {
			t.Fatalf("Commit(%d) failed: %v", block, err)
		}
		cp := mgr.Current()
		if cp.LastProcessed < lastProcessed {
			t.Errorf("LastProcessed moved backward: %d -> %d", lastProcessed, cp.LastProcessed)
		}
		if cp.HighWater < lastHigh {
			t.Errorf("HighWater decreased: %d -> %d", lastHigh, cp.HighWater)
		}
		lastProcessed, lastHigh = cp.LastProcessed, cp.HighWater
	}

	if repo.cp.LastProcessed != 900 {
		t.Errorf("Expected LastProcessed 900, got %d", repo.cp.LastProcessed)
	}
	if repo.cp.HighWater != 900 {
		t.Errorf("Expected HighWater 900, got %d", repo.cp.HighWater)
	}
}

func TestManager_HighWaterKeptWhenBelow(t *testing.T) {
	repo := &mockCheckpointRepo{cp: domain.Checkpoint{LastProcessed: 10, HighWater: 1000}}
	mgr := NewManager(repo)

	if err := mgr.Commit(context.Background(), 20); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if repo.cp.LastProcessed != 20 {
		t.Errorf("Expected LastProcessed 20, got %d", repo.cp.LastProcessed)
	}
	if repo.cp.HighWater != 1000 {
		t.Errorf("Expected HighWater 1000, got %d", repo.cp.HighWater)
	}
}

func TestManager_MarkSeenWritesOnlyOnChange(t *testing.T) {
	repo := &mockCheckpointRepo{}
	mgr := NewManager(repo)
	ctx := context.Background()

	for _, block := range []uint64{5, 5, 5, 6, 6, 7} {
		if err := mgr.MarkSeen(ctx, block); err != nil {
			t.Fatalf("MarkSeen failed: %v", err)
		}
	}
	if repo.seenSaves != 3 {
		t.Errorf("Expected 3 writes, got %d", repo.seenSaves)
	}
	if repo.cp.LastSeen != 7 {
		t.Errorf("Expected LastSeen 7, got %d", repo.cp.LastSeen)
	}
}

func TestManager_ResetMovesBackwardButKeepsHighWater(t *testing.T) {
	repo := &mockCheckpointRepo{cp: domain.Checkpoint{LastProcessed: 900, HighWater: 900}}
	mgr := NewManager(repo)

	if err := mgr.Reset(context.Background(), 100); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if repo.cp.LastProcessed != 100 {
		t.Errorf("Expected LastProcessed 100, got %d", repo.cp.LastProcessed)
	}
	if repo.cp.HighWater != 900 {
		t.Errorf("Expected HighWater 900, got %d", repo.cp.HighWater)
	}
	if repo.cp.LastSeen != 100 {
		t.Errorf("Expected LastSeen 100, got %d", repo.cp.LastSeen)
	}
}

func TestManager_CommitErrorLeavesCache(t *testing.T) {
	repo := &mockCheckpointRepo{cp: domain.Checkpoint{LastProcessed: 50, HighWater: 50}}
	mgr := NewManager(repo)
	ctx := context.Background()
	if _, err := mgr.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	repo.failSave = errors.New("disk full")
	if err := mgr.Commit(ctx, 60); err == nil {
		t.Fatal("Expected error from Commit")
	}
	if got := mgr.Current().LastProcessed; got != 50 {
		t.Errorf("Expected cached LastProcessed 50, got %d", got)
	}
}

func TestManager_GetLag(t *testing.T) {
	repo := &mockCheckpointRepo{cp: domain.Checkpoint{LastProcessed: 100}}
	mgr := NewManager(repo)
	if _, err := mgr.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if lag := mgr.GetLag(150); lag != 50 {
		t.Errorf("Expected lag 50, got %d", lag)
	}
}

func TestMetricsCollector(t *testing.T) {
	mc := NewMetricsCollector(3)
	start := time.Unix(1_700_000_000, 0)

	mc.RecordFlush(100, start)
	mc.RecordFlush(110, start.Add(10*time.Second))
	mc.RecordFlush(120, start.Add(20*time.Second))
	mc.RecordFlush(140, start.Add(30*time.Second))

	m := mc.GetMetrics()
	if m.Flushes != 4 {
		t.Errorf("Expected 4 flushes, got %d", m.Flushes)
	}
	// Window holds 110..140 over 20s.
	if m.BlocksPerSecond != 1.5 {
		t.Errorf("Expected 1.5 blocks/s, got %f", m.BlocksPerSecond)
	}
	if m.AverageFlushInterval != 10*time.Second {
		t.Errorf("Expected 10s interval, got %v", m.AverageFlushInterval)
	}

	mc.Reset()
	if got := mc.GetMetrics(); got.Flushes != 0 || got.LastFlushAt != nil {
		t.Errorf("Expected empty metrics after reset, got %+v", got)
	}
}
