package postgres

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // registers the "postgres" driver

	"github.com/vietddude/steemstream/internal/indexing/metrics"
)

const (
	DriverPgx = "pgx"
	DriverPq  = "postgres"
)

// Config holds PostgreSQL connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Driver   string `yaml:"driver"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
	Migrate  bool   `yaml:"migrate"`
}

// DB wraps the PostgreSQL connection pool.
type DB struct {
	*sqlx.DB
	name string
}

// NewDB opens a pool and pings it. name labels the pool metrics; every loop
// opens its own pool.
func NewDB(ctx context.Context, name string, cfg Config) (*DB, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverPgx
	}

	db, err := sqlx.ConnectContext(ctx, driver, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	} else {
		db.SetMaxOpenConns(10)
	}
	if cfg.MinConns > 0 {
		db.SetMaxIdleConns(cfg.MinConns)
	} else {
		db.SetMaxIdleConns(2)
	}
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	return &DB{DB: db, name: name}, nil
}

// StartMetricsCollector reports pool usage every 15 seconds until ctx is done.
func (db *DB) StartMetricsCollector(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := db.Stats()
				// MaxOpenConnections is 0 when unlimited.
				if stats.MaxOpenConnections > 0 {
					usage := float64(stats.OpenConnections) / float64(stats.MaxOpenConnections) * 100
					metrics.DBConnectionPoolUsage.WithLabelValues(db.name).Set(usage)
				}
			}
		}
	}()
}

// Health checks if the database is reachable.
func (db *DB) Health(ctx context.Context) error {
	return db.PingContext(ctx)
}
