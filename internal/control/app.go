package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/raulk/clock"

	"github.com/vietddude/steemstream/internal/bootstrap"
	"github.com/vietddude/steemstream/internal/core/checkpoint"
	"github.com/vietddude/steemstream/internal/core/config"
	"github.com/vietddude/steemstream/internal/indexing/handler"
	"github.com/vietddude/steemstream/internal/indexing/health"
	"github.com/vietddude/steemstream/internal/indexing/ingest"
	"github.com/vietddude/steemstream/internal/indexing/recovery"
	"github.com/vietddude/steemstream/internal/indexing/throttle"
	"github.com/vietddude/steemstream/internal/infra/analyzer"
	"github.com/vietddude/steemstream/internal/infra/followers"
	"github.com/vietddude/steemstream/internal/infra/pricefeed"
	redisclient "github.com/vietddude/steemstream/internal/infra/redis"
	"github.com/vietddude/steemstream/internal/infra/steem"
	"github.com/vietddude/steemstream/internal/infra/storage"
	"github.com/vietddude/steemstream/internal/infra/storage/file"
	"github.com/vietddude/steemstream/internal/infra/storage/memory"
	"github.com/vietddude/steemstream/internal/infra/storage/postgres"
	"github.com/vietddude/steemstream/internal/maintenance"
	"github.com/vietddude/steemstream/internal/prices"
)

// Task names.
const (
	TaskBlocks      = "blocks"
	TaskPrices      = "prices"
	TaskMaintenance = "maintenance"
)

// Options selects which loops run.
type Options struct {
	Blocks      bool
	Prices      bool
	Maintenance bool
}

// none reports whether no loop was selected explicitly.
func (o Options) none() bool {
	return !o.Blocks && !o.Prices && !o.Maintenance
}

// App owns every long-lived resource of a running process.
type App struct {
	cfg        *config.AppConfig
	clock      clock.Clock
	chain      *steem.Client
	supervisor *Supervisor
	monitor    *health.Monitor
	server     *health.Server
	checkpoint *checkpoint.Manager
	runner     *ingest.Runner
	locator    *bootstrap.Locator
	start      *ingest.StartTracker
	failures   storage.FailedFlushRepository

	dbs    []*postgres.DB
	sinks  []storage.Sink
	redis  *redisclient.Client
	store  *memory.MemoryStorage
	logger *slog.Logger
}

// NewApp builds the selected loops. With no loop selected, all of them run.
func NewApp(ctx context.Context, cfg *config.AppConfig, opts Options) (app *App, err error) {
	if opts.none() {
		opts = Options{Blocks: true, Prices: true, Maintenance: true}
	}

	a := &App{
		cfg:    cfg,
		clock:  clock.New(),
		logger: slog.Default().With("component", "app"),
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.chain, err = steem.NewClient(cfg.Chain.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to init steem client: %w", err)
	}

	if cfg.Checkpoint.Backend == config.BackendRedis || cfg.DeadLetter.Backend == config.BackendRedis {
		a.redis, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, err
		}
	}

	a.supervisor = NewSupervisor(SupervisorConfig{
		Restart: cfg.Supervisor.Restart,
		Backoff: RestartBackoff(cfg.Supervisor.InitialDelay, cfg.Supervisor.MaxDelay, cfg.Supervisor.MaxRestarts),
	}, a.clock)

	if opts.Blocks {
		if err := a.setupBlocks(ctx); err != nil {
			return nil, err
		}
	}
	if opts.Prices {
		if err := a.setupPrices(ctx); err != nil {
			return nil, err
		}
	}
	if opts.Maintenance {
		if err := a.setupMaintenance(ctx); err != nil {
			return nil, err
		}
	}

	deps := health.Deps{
		Head:  throttle.NewHeadCache(a.chain, 3*time.Second, a.clock),
		Loops: a.supervisor,
		Clock: a.clock,
	}
	if a.checkpoint != nil {
		deps.Checkpoint = a.checkpoint
		deps.Failures = a.failures
		deps.Cache = a.runner
	}
	a.monitor = health.NewMonitor(health.DefaultThresholds(), deps)
	a.server = health.NewServer(a.monitor, cfg.Server.Port)

	return a, nil
}

func (a *App) setupBlocks(ctx context.Context) error {
	sink, db, err := a.openSink(ctx, TaskBlocks)
	if err != nil {
		return err
	}

	cpRepo, err := a.checkpointRepo(db)
	if err != nil {
		return err
	}
	if a.failures, err = a.failedFlushRepo(db); err != nil {
		return err
	}

	an, err := analyzer.New(a.cfg.Analyzer)
	if err != nil {
		return fmt.Errorf("failed to init analyzer: %w", err)
	}
	var est handler.FollowerEstimator = followers.Disabled{}
	if !a.cfg.Followers.Disabled {
		est = followers.NewEstimator(a.cfg.Followers)
	}

	a.locator, err = bootstrap.NewLocator(a.chain, a.cfg.Chain.BlockCacheSize)
	if err != nil {
		return err
	}
	a.start = ingest.NewStartTracker(ingest.StartConfig{
		StartBlock:    a.cfg.Chain.StartBlock,
		Resume:        a.cfg.Chain.Resume,
		BootstrapDays: a.cfg.Chain.BootstrapDays,
	}, a.locator)
	a.checkpoint = checkpoint.NewManager(cpRepo)
	a.runner = ingest.NewRunner(ingest.Config{
		BatchThreshold:          a.cfg.Ingest.BatchThreshold,
		HoldCheckpointOnFailure: a.cfg.Ingest.HoldCheckpointOnFailure,
		RewardsOnlyBelow:        a.cfg.Ingest.RewardsOnlyBelow,
		MaxRestarts:             a.cfg.Ingest.MaxRestarts,
		RestartDelay:            a.cfg.Ingest.RestartDelay,
	}, ingest.Deps{
		Chain:      a.chain,
		Analyzer:   an,
		Followers:  est,
		Sink:       sink,
		Checkpoint: a.checkpoint,
		Failures:   recovery.NewHandler(a.failures),
		Clock:      a.clock,
	})

	a.supervisor.Add(TaskBlocks, a.runBlocks)
	return nil
}

func (a *App) runBlocks(ctx context.Context) error {
	cp, err := a.checkpoint.Load(ctx)
	if err != nil {
		return err
	}
	start, err := a.start.Next(ctx, cp, a.clock.Now())
	if err != nil {
		return err
	}
	a.logger.Info("Resolved start block", "block", start, "checkpoint", cp.LastProcessed)
	return a.runner.Run(ctx, start)
}

func (a *App) setupPrices(ctx context.Context) error {
	sink, _, err := a.openSink(ctx, TaskPrices)
	if err != nil {
		return err
	}
	b := prices.NewBackfiller(prices.Config{
		Symbol:      a.cfg.Prices.Symbol,
		Interval:    a.cfg.Prices.Interval,
		SettleDelay: a.cfg.Prices.SettleDelay,
	}, pricefeed.NewYahoo(a.cfg.Prices.Config), prices.NewSinkStore(sink), a.clock)
	a.supervisor.Add(TaskPrices, b.Run)
	return nil
}

func (a *App) setupMaintenance(ctx context.Context) error {
	sink, _, err := a.openSink(ctx, TaskMaintenance)
	if err != nil {
		return err
	}
	r := maintenance.NewRunner(maintenance.Config{Interval: a.cfg.Maintenance.Interval}, sink, a.clock)
	a.supervisor.Add(TaskMaintenance, r.Run)
	return nil
}

// openSink gives every loop its own connection pool. Without a database URL
// the loops share an in-memory sink, which is only useful for dry runs.
func (a *App) openSink(ctx context.Context, name string) (storage.Sink, *postgres.DB, error) {
	if a.cfg.Database.URL == "" {
		if a.store == nil {
			a.store = memory.NewMemoryStorage()
			a.logger.Warn("No database configured, using in-memory sink")
		}
		s := memory.NewSink(a.store)
		a.sinks = append(a.sinks, s)
		return s, nil, nil
	}

	db, err := postgres.NewDB(ctx, name, a.cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init db for %s: %w", name, err)
	}
	a.dbs = append(a.dbs, db)

	if a.cfg.Database.Migrate && len(a.dbs) == 1 {
		if err := postgres.Migrate(ctx, db); err != nil {
			return nil, nil, err
		}
	}

	s := postgres.NewSink(db)
	a.sinks = append(a.sinks, s)
	return s, db, nil
}

func (a *App) memoryStore() *memory.MemoryStorage {
	if a.store == nil {
		a.store = memory.NewMemoryStorage()
	}
	return a.store
}

func (a *App) checkpointRepo(db *postgres.DB) (storage.CheckpointRepository, error) {
	switch a.cfg.Checkpoint.Backend {
	case config.BackendFile:
		return file.NewCheckpointRepo(a.cfg.Checkpoint.Dir)
	case config.BackendRedis:
		return redisclient.NewCheckpointRepo(a.redis), nil
	case config.BackendPostgres:
		if db == nil {
			return nil, errors.New("postgres checkpoint backend requires database.url")
		}
		return postgres.NewCheckpointRepo(db), nil
	case config.BackendMemory:
		return memory.NewCheckpointRepo(a.memoryStore()), nil
	}
	return nil, fmt.Errorf("unknown checkpoint backend %q", a.cfg.Checkpoint.Backend)
}

func (a *App) failedFlushRepo(db *postgres.DB) (storage.FailedFlushRepository, error) {
	switch a.cfg.DeadLetter.Backend {
	case config.BackendRedis:
		return redisclient.NewFailedFlushRepo(a.redis), nil
	case config.BackendPostgres:
		if db == nil {
			a.logger.Warn("No database configured, keeping failed flushes in memory")
			return memory.NewFailedRepo(a.memoryStore()), nil
		}
		return postgres.NewFailedFlushRepo(db), nil
	case config.BackendMemory:
		return memory.NewFailedRepo(a.memoryStore()), nil
	}
	return nil, fmt.Errorf("unknown dead_letter backend %q", a.cfg.DeadLetter.Backend)
}

// Run serves health endpoints and blocks until every loop has stopped.
func (a *App) Run(ctx context.Context) error {
	go func() {
		if err := a.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Health server failed", "error", err)
		}
	}()
	for _, db := range a.dbs {
		db.StartMetricsCollector(ctx)
	}

	err := a.supervisor.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if serr := a.server.Stop(shutdownCtx); serr != nil {
		a.logger.Warn("Failed to stop health server", "error", serr)
	}
	return err
}

// Monitor exposes the health monitor.
func (a *App) Monitor() *health.Monitor {
	return a.monitor
}

// Checkpoint returns the blocks loop checkpoint manager, or nil when the loop is off.
func (a *App) Checkpoint() *checkpoint.Manager {
	return a.checkpoint
}

// Failures returns the dead-letter repository of the blocks loop.
func (a *App) Failures() storage.FailedFlushRepository {
	return a.failures
}

// Chain returns the node client.
func (a *App) Chain() *steem.Client {
	return a.chain
}

// Close releases connections. It is safe to call on a partly built App.
func (a *App) Close() error {
	var errs []error
	for _, s := range a.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.chain != nil {
		if err := a.chain.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
