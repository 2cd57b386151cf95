// Package control wires the loops together and supervises them.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/raulk/clock"
	"golang.org/x/sync/errgroup"

	"github.com/vietddude/steemstream/internal/indexing/health"
	"github.com/vietddude/steemstream/internal/indexing/metrics"
	"github.com/vietddude/steemstream/internal/indexing/recovery"
)

// TaskFunc runs until ctx is done or it fails. Returning nil means the task is finished.
type TaskFunc func(ctx context.Context) error

type task struct {
	name string
	run  TaskFunc
}

// SupervisorConfig controls restarts of failed tasks.
type SupervisorConfig struct {
	Restart bool

	// Backoff decides restart delays and the restart budget.
	Backoff recovery.RetryStrategy
}

// Supervisor runs independent tasks. A failing task is restarted alone; the
// others keep running.
type Supervisor struct {
	cfg    SupervisorConfig
	clock  clock.Clock
	logger *slog.Logger

	tasks    []task
	mu       sync.RWMutex
	statuses map[string]*health.LoopStatus
}

func NewSupervisor(cfg SupervisorConfig, clk clock.Clock) *Supervisor {
	if cfg.Backoff == nil {
		cfg.Backoff = recovery.DefaultBackoff(nil)
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Supervisor{
		cfg:      cfg,
		clock:    clk,
		logger:   slog.Default().With("component", "supervisor"),
		statuses: make(map[string]*health.LoopStatus),
	}
}

// Add registers a task. Tasks added after Run has started are ignored.
func (s *Supervisor) Add(name string, run TaskFunc) {
	s.tasks = append(s.tasks, task{name: name, run: run})
	s.setStatus(name, health.LoopStopped, 0, nil)
}

// Run blocks until every task has stopped. It returns the joined errors of
// tasks that failed for good.
func (s *Supervisor) Run(ctx context.Context) error {
	var g errgroup.Group
	var mu sync.Mutex
	var errs []error

	for _, t := range s.tasks {
		g.Go(func() error {
			if err := s.supervise(ctx, t); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Statuses returns the task statuses in registration order.
func (s *Supervisor) Statuses() []health.LoopStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]health.LoopStatus, 0, len(s.tasks))
	for _, t := range s.tasks {
		if st, ok := s.statuses[t.name]; ok {
			out = append(out, *st)
		}
	}
	return out
}

func (s *Supervisor) supervise(ctx context.Context, t task) error {
	restarts := 0
	for {
		s.setStatus(t.name, health.LoopRunning, restarts, nil)
		s.logger.Info("Starting task", "task", t.name)

		err := t.run(ctx)
		if ctx.Err() != nil || err == nil {
			s.setStatus(t.name, health.LoopStopped, restarts, nil)
			s.logger.Info("Task stopped", "task", t.name)
			return nil
		}

		if !s.cfg.Restart || !s.cfg.Backoff.ShouldRetry(err, restarts) {
			s.setStatus(t.name, health.LoopFailed, restarts, err)
			s.logger.Error("Task failed", "task", t.name, "restarts", restarts, "error", err)
			return fmt.Errorf("task %s failed: %w", t.name, err)
		}

		delay := s.cfg.Backoff.GetDelay(restarts)
		restarts++
		s.setStatus(t.name, health.LoopRestarting, restarts, err)
		metrics.RestartsTotal.WithLabelValues(t.name).Inc()
		s.logger.Warn("Task failed, restarting", "task", t.name, "attempt", restarts, "delay", delay, "error", err)

		timer := s.clock.Timer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.setStatus(t.name, health.LoopStopped, restarts, err)
			return nil
		case <-timer.C:
		}
	}
}

func (s *Supervisor) setStatus(name string, state health.LoopState, restarts int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := &health.LoopStatus{
		Name:     name,
		State:    state,
		Restarts: restarts,
		Since:    s.clock.Now(),
	}
	if err != nil {
		st.LastError = err.Error()
	}
	s.statuses[name] = st
}

// RestartBackoff builds the supervisor strategy. Every failure is restartable
// until maxRestarts is reached.
func RestartBackoff(initial, maxDelay time.Duration, maxRestarts int) *recovery.ExponentialBackoff {
	return &recovery.ExponentialBackoff{
		InitialDelay: initial,
		MaxDelay:     maxDelay,
		MaxAttempts:  maxRestarts,
		Classifier: func(err error) recovery.FailureCategory {
			if errors.Is(err, context.Canceled) {
				return recovery.CategoryFatal
			}
			return recovery.CategoryTransient
		},
	}
}
