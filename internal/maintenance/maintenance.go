// Package maintenance periodically runs the database procedures that derive
// curation history and reward values from ingested rows.
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/raulk/clock"

	"github.com/vietddude/steemstream/internal/indexing/metrics"
)

const DefaultInterval = 5 * time.Minute

// DefaultProcedures run in this order every round.
var DefaultProcedures = []string{
	"populate_voter_curation_history",
	"update_value_and_steem_for_author_rewards",
	"update_value_and_steem_for_curation_rewards",
	"update_value_and_steem_for_beneficiary_rewards",
}

// Caller runs argument-less procedures.
type Caller interface {
	Call(ctx context.Context, procedure string) error
}

type Config struct {
	Interval   time.Duration
	Procedures []string
}

// Runner calls the procedures on a fixed cadence. A failed round is logged
// and the loop carries on with the next one.
type Runner struct {
	cfg    Config
	caller Caller
	clock  clock.Clock
	logger *slog.Logger
}

func NewRunner(cfg Config, caller Caller, clk clock.Clock) *Runner {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if len(cfg.Procedures) == 0 {
		cfg.Procedures = DefaultProcedures
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Runner{
		cfg:    cfg,
		caller: caller,
		clock:  clk,
		logger: slog.Default().With("component", "maintenance"),
	}
}

// Run repeats rounds until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("Starting maintenance loop", "interval", r.cfg.Interval)
	for {
		if err := r.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Error("Maintenance round failed", "error", err)
		}

		timer := r.clock.Timer(r.cfg.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// RunOnce calls every procedure in order and stops at the first failure.
func (r *Runner) RunOnce(ctx context.Context) error {
	start := r.clock.Now()
	for _, proc := range r.cfg.Procedures {
		if err := r.caller.Call(ctx, proc); err != nil {
			metrics.MaintenanceRuns.WithLabelValues("error").Inc()
			return err
		}
		r.logger.Debug("Procedure completed", "procedure", proc)
	}
	metrics.MaintenanceRuns.WithLabelValues("success").Inc()
	r.logger.Info("Maintenance round completed", "procedures", len(r.cfg.Procedures), "duration", r.clock.Since(start))
	return nil
}
