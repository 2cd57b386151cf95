package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/steemstream/internal/infra/storage/postgres"
)

// Load reads configuration from a YAML file, expanding environment variables first.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML content and applies defaults.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	if len(c.Chain.Nodes) == 0 {
		c.Chain.Nodes = []string{"https://api.steemit.com"}
	}
	if c.Chain.Timeout == 0 {
		c.Chain.Timeout = 30 * time.Second
	}
	if c.Chain.PollInterval == 0 {
		c.Chain.PollInterval = 3 * time.Second
	}
	if c.Chain.BootstrapDays == 0 {
		c.Chain.BootstrapDays = 409
	}
	if c.Chain.BlockCacheSize == 0 {
		c.Chain.BlockCacheSize = 4096
	}

	if c.Ingest.BatchThreshold == 0 {
		c.Ingest.BatchThreshold = 1000
	}
	if c.Ingest.MaxRestarts == 0 {
		c.Ingest.MaxRestarts = 100
	}
	if c.Ingest.RestartDelay == 0 {
		c.Ingest.RestartDelay = time.Second
	}

	if c.Checkpoint.Backend == "" {
		c.Checkpoint.Backend = BackendFile
	}
	if c.Checkpoint.Dir == "" {
		c.Checkpoint.Dir = "."
	}
	if c.DeadLetter.Backend == "" {
		c.DeadLetter.Backend = BackendPostgres
	}

	if c.Prices.Symbol == "" {
		c.Prices.Symbol = "STEEM-USD"
	}
	if c.Prices.Interval == 0 {
		c.Prices.Interval = 30 * time.Minute
	}
	if c.Prices.SettleDelay == 0 {
		c.Prices.SettleDelay = 30 * time.Minute
	}

	if c.Supervisor.MaxRestarts == 0 {
		c.Supervisor.MaxRestarts = 5
	}
	if c.Supervisor.InitialDelay == 0 {
		c.Supervisor.InitialDelay = 5 * time.Second
	}
	if c.Supervisor.MaxDelay == 0 {
		c.Supervisor.MaxDelay = 5 * time.Minute
	}

	if c.Maintenance.Interval == 0 {
		c.Maintenance.Interval = 5 * time.Minute
	}

	if c.Database.Driver == "" {
		c.Database.Driver = postgres.DriverPgx
	}
}

// Validate rejects unknown backends and missing connection settings.
func (c *AppConfig) Validate() error {
	switch c.Checkpoint.Backend {
	case BackendFile, BackendRedis, BackendPostgres, BackendMemory:
	default:
		return fmt.Errorf("unknown checkpoint backend %q", c.Checkpoint.Backend)
	}
	switch c.DeadLetter.Backend {
	case BackendRedis, BackendPostgres, BackendMemory:
	default:
		return fmt.Errorf("unknown dead_letter backend %q", c.DeadLetter.Backend)
	}
	switch c.Database.Driver {
	case postgres.DriverPgx, postgres.DriverPq:
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	if (c.Checkpoint.Backend == BackendRedis || c.DeadLetter.Backend == BackendRedis) && c.Redis.URL == "" {
		return fmt.Errorf("redis.url is required for the redis backend")
	}
	if c.Ingest.BatchThreshold < 0 {
		return fmt.Errorf("ingest.batch_threshold must be positive, got %d", c.Ingest.BatchThreshold)
	}
	return nil
}
