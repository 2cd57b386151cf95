package health

import (
	"context"
	"sync"
	"time"

	"github.com/raulk/clock"

	"github.com/vietddude/steemstream/internal/core/domain"
)

// HeadFetcher returns the chain head block number.
type HeadFetcher interface {
	GetCurrentBlockNumber(ctx context.Context) (uint64, error)
}

// CheckpointReader exposes the cached stream position.
type CheckpointReader interface {
	Current() domain.Checkpoint
	GetLag(latestBlock uint64) int64
}

// FailureCounter counts dead-lettered flushes.
type FailureCounter interface {
	Count(ctx context.Context) (int, error)
}

// LoopReporter lists supervised loop statuses.
type LoopReporter interface {
	Statuses() []LoopStatus
}

// CacheReporter exposes account dedup cache sizes.
type CacheReporter interface {
	CacheSizes() (persisted, inFlight int)
}

// Thresholds decide degraded and critical states. Lags are in blocks.
type Thresholds struct {
	LagDegraded   uint64
	LagCritical   uint64
	FailedFlushes int
	CacheFor      time.Duration
}

// DefaultThresholds is five minutes of blocks for degraded and one hour for critical.
func DefaultThresholds() Thresholds {
	return Thresholds{
		LagDegraded:   100,
		LagCritical:   1200,
		FailedFlushes: 50,
		CacheFor:      10 * time.Second,
	}
}

// Monitor aggregates health from the checkpoint, dead-letter store and loops.
// Any dependency may be nil when the matching loop is disabled.
type Monitor struct {
	thresholds Thresholds
	head       HeadFetcher
	checkpoint CheckpointReader
	failures   FailureCounter
	loops      LoopReporter
	cache      CacheReporter
	clock      clock.Clock

	mu         sync.Mutex
	lastCheck  time.Time
	lastReport *Report
}

// Deps groups the monitor's optional sources.
type Deps struct {
	Head       HeadFetcher
	Checkpoint CheckpointReader
	Failures   FailureCounter
	Loops      LoopReporter
	Cache      CacheReporter
	Clock      clock.Clock
}

func NewMonitor(thresholds Thresholds, deps Deps) *Monitor {
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	return &Monitor{
		thresholds: thresholds,
		head:       deps.Head,
		checkpoint: deps.Checkpoint,
		failures:   deps.Failures,
		loops:      deps.Loops,
		cache:      deps.Cache,
		clock:      deps.Clock,
	}
}

// CheckHealth builds a report. Results are reused for CacheFor to keep
// polling from hammering the chain node.
func (m *Monitor) CheckHealth(ctx context.Context) Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	if m.lastReport != nil && now.Sub(m.lastCheck) < m.thresholds.CacheFor {
		return *m.lastReport
	}

	report := Report{Status: StatusHealthy, CheckedAt: now}

	if m.checkpoint != nil {
		cp := m.checkpoint.Current()
		ch := &CheckpointHealth{
			LastProcessed: cp.LastProcessed,
			HighWater:     cp.HighWater,
			LastSeen:      cp.LastSeen,
		}
		if m.head != nil {
			head, err := m.head.GetCurrentBlockNumber(ctx)
			if err != nil {
				ch.HeadError = err.Error()
				report.Status = worse(report.Status, StatusDegraded)
			} else {
				ch.HeadBlock = head
				if lag := m.checkpoint.GetLag(head); lag > 0 {
					ch.BlockLag = uint64(lag)
				}
			}
		}
		switch {
		case ch.BlockLag > m.thresholds.LagCritical:
			report.Status = worse(report.Status, StatusCritical)
		case ch.BlockLag > m.thresholds.LagDegraded:
			report.Status = worse(report.Status, StatusDegraded)
		}
		report.Checkpoint = ch
	}

	if m.failures != nil {
		if n, err := m.failures.Count(ctx); err == nil {
			report.FailedFlushes = n
		}
		switch {
		case report.FailedFlushes > m.thresholds.FailedFlushes:
			report.Status = worse(report.Status, StatusCritical)
		case report.FailedFlushes > 0:
			report.Status = worse(report.Status, StatusDegraded)
		}
	}

	if m.cache != nil {
		report.KnownAccounts, report.PendingAccounts = m.cache.CacheSizes()
	}

	if m.loops != nil {
		report.Loops = m.loops.Statuses()
		for _, l := range report.Loops {
			switch l.State {
			case LoopFailed:
				report.Status = worse(report.Status, StatusCritical)
			case LoopRestarting:
				report.Status = worse(report.Status, StatusDegraded)
			}
		}
	}

	m.lastCheck = now
	m.lastReport = &report
	return report
}

func worse(a, b SystemStatus) SystemStatus {
	if rank(b) > rank(a) {
		return b
	}
	return a
}

func rank(s SystemStatus) int {
	switch s {
	case StatusCritical:
		return 2
	case StatusDegraded:
		return 1
	default:
		return 0
	}
}
