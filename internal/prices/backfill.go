// Package prices backfills the daily STEEM-USD price history.
package prices

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/raulk/clock"

	"github.com/vietddude/steemstream/internal/core/domain"
	"github.com/vietddude/steemstream/internal/indexing/metrics"
	"github.com/vietddude/steemstream/internal/indexing/recovery"
)

const (
	DefaultSymbol   = "STEEM-USD"
	DefaultInterval = 30 * time.Minute

	// DefaultSettleDelay is how long after midnight UTC a day's candle is fetched.
	DefaultSettleDelay = 30 * time.Minute
)

// Source returns one daily OHLCV row, or nil when the provider has none.
type Source interface {
	DailyOHLCV(ctx context.Context, symbol string, start, endExclusive time.Time) (*domain.PriceDay, error)
}

// Store lists missing dates and persists rows.
type Store interface {
	MissingPriceDates(ctx context.Context) ([]time.Time, error)
	InsertPrice(ctx context.Context, day domain.PriceDay) error
}

type Config struct {
	Symbol      string
	Interval    time.Duration
	SettleDelay time.Duration

	// Retry overrides the cycle retry strategy.
	Retry recovery.RetryStrategy
}

// Backfiller fills missing price days on a fixed cadence.
type Backfiller struct {
	cfg    Config
	source Source
	store  Store
	clock  clock.Clock
	logger *slog.Logger
}

// NewBackfiller creates a backfiller. A nil clock uses the wall clock.
func NewBackfiller(cfg Config, source Source, store Store, clk clock.Clock) *Backfiller {
	if cfg.Symbol == "" {
		cfg.Symbol = DefaultSymbol
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}
	if cfg.Retry == nil {
		cfg.Retry = recovery.CycleBackoff()
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Backfiller{
		cfg:    cfg,
		source: source,
		store:  store,
		clock:  clk,
		logger: slog.Default().With("component", "prices"),
	}
}

// Run repeats backfill cycles until ctx is done. A cycle that keeps failing
// past its retry budget stops the loop with an error.
func (b *Backfiller) Run(ctx context.Context) error {
	b.logger.Info("Starting price backfill", "symbol", b.cfg.Symbol, "interval", b.cfg.Interval)

	for {
		err := recovery.Retry(ctx, b.clock, b.cfg.Retry, "price_cycle", func() error {
			return b.cycle(ctx)
		})
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("price backfill failed: %w", err)
		}

		if err := b.sleep(ctx, b.cfg.Interval); err != nil {
			return nil
		}
	}
}

// cycle fetches and stores every missing date in order.
func (b *Backfiller) cycle(ctx context.Context) error {
	dates, err := b.store.MissingPriceDates(ctx)
	if err != nil {
		return err
	}
	metrics.PriceDaysMissing.Set(float64(len(dates)))
	if len(dates) > 0 {
		b.logger.Info("Backfilling price days", "missing", len(dates))
	}

	for _, date := range dates {
		day := truncateDay(date)
		next := day.AddDate(0, 0, 1)

		if wait := next.Add(b.cfg.SettleDelay).Sub(b.clock.Now()); wait > 0 {
			b.logger.Debug("Waiting for day to settle", "date", day.Format(time.DateOnly), "wait", wait)
			if err := b.sleep(ctx, wait); err != nil {
				return err
			}
		}

		row, err := b.source.DailyOHLCV(ctx, b.cfg.Symbol, day, next)
		if err != nil {
			return fmt.Errorf("failed to fetch price for %s: %w", day.Format(time.DateOnly), err)
		}
		if row == nil {
			b.logger.Warn("No price row returned", "symbol", b.cfg.Symbol, "date", day.Format(time.DateOnly))
			continue
		}

		if err := b.store.InsertPrice(ctx, *row); err != nil {
			return err
		}
		metrics.PriceRowsInserted.Inc()
		b.logger.Info("Inserted price day", "date", row.Date, "close", row.Close)
	}
	return nil
}

func (b *Backfiller) sleep(ctx context.Context, d time.Duration) error {
	timer := b.clock.Timer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
