package config

import (
	"time"

	"github.com/vietddude/steemstream/internal/infra/analyzer"
	"github.com/vietddude/steemstream/internal/infra/followers"
	"github.com/vietddude/steemstream/internal/infra/pricefeed"
	redisclient "github.com/vietddude/steemstream/internal/infra/redis"
	"github.com/vietddude/steemstream/internal/infra/steem"
	"github.com/vietddude/steemstream/internal/infra/storage/postgres"
)

// Backend names shared by the checkpoint and dead-letter sections.
const (
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server      ServerConfig       `yaml:"server"`
	Logging     LoggingConfig      `yaml:"logging"`
	Chain       ChainConfig        `yaml:"chain"`
	Ingest      IngestConfig       `yaml:"ingest"`
	Checkpoint  CheckpointConfig   `yaml:"checkpoint"`
	DeadLetter  DeadLetterConfig   `yaml:"dead_letter"`
	Followers   followers.Config   `yaml:"followers"`
	Prices      PricesConfig       `yaml:"prices"`
	Analyzer    analyzer.Config    `yaml:"analyzer"`
	Supervisor  SupervisorConfig   `yaml:"supervisor"`
	Maintenance MaintenanceConfig  `yaml:"maintenance"`
	Redis       redisclient.Config `yaml:"redis"`
	Database    postgres.Config    `yaml:"database"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// ChainConfig holds the node list and the start-block selection.
type ChainConfig struct {
	steem.Config `yaml:",inline"`

	StartBlock     uint64 `yaml:"start_block"`
	Resume         bool   `yaml:"resume"`
	BootstrapDays  int    `yaml:"bootstrap_days"`
	BlockCacheSize int    `yaml:"block_cache_size"`
}

// IngestConfig tunes batching and the outer restart scope.
type IngestConfig struct {
	BatchThreshold          int           `yaml:"batch_threshold"`
	HoldCheckpointOnFailure bool          `yaml:"hold_checkpoint_on_failure"`
	RewardsOnlyBelow        uint64        `yaml:"rewards_only_below"`
	MaxRestarts             int           `yaml:"max_restarts"`
	RestartDelay            time.Duration `yaml:"restart_delay"`
}

// CheckpointConfig selects where the stream position lives.
type CheckpointConfig struct {
	Backend string `yaml:"backend"` // file, redis, postgres, memory
	Dir     string `yaml:"dir"`
}

// DeadLetterConfig selects where rejected flushes are kept.
type DeadLetterConfig struct {
	Backend string `yaml:"backend"` // postgres, redis, memory
}

// PricesConfig holds the price source and loop cadence.
type PricesConfig struct {
	pricefeed.Config `yaml:",inline"`

	Symbol      string        `yaml:"symbol"`
	Interval    time.Duration `yaml:"interval"`
	SettleDelay time.Duration `yaml:"settle_delay"`
}

// SupervisorConfig controls per-loop restarts.
type SupervisorConfig struct {
	Restart      bool          `yaml:"restart"`
	MaxRestarts  int           `yaml:"max_restarts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

// MaintenanceConfig controls the derived-value procedures loop.
type MaintenanceConfig struct {
	Interval time.Duration `yaml:"interval"`
}
