package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/steemstream/internal/control"
	"github.com/vietddude/steemstream/internal/core/config"
)

var (
	cfgPath string
	isDebug bool

	runOpts control.Options
)

var rootCmd = &cobra.Command{
	Use:   "steemstream",
	Short: "Steem operation ingester",
	Long:  `steemstream streams irreversible Steem operations into Postgres and backfills the daily STEEM-USD price.`,
	Run:   runLoops,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the ingestion, price and maintenance loops",
	Run:   runLoops,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")

	for _, cmd := range []*cobra.Command{rootCmd, runCmd} {
		cmd.Flags().BoolVar(&runOpts.Blocks, "blocks", false, "run the block ingestion loop")
		cmd.Flags().BoolVar(&runOpts.Prices, "prices", false, "run the price backfill loop")
		cmd.Flags().BoolVar(&runOpts.Maintenance, "maintenance", false, "run the reward maintenance loop")
	}
	rootCmd.AddCommand(runCmd)
}

// setup loads .env and the config file, then installs the logger.
func setup() *config.AppConfig {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	switch {
	case isDebug || cfg.Logging.Level == "debug":
		level = slog.LevelDebug
	case cfg.Logging.Level == "warn":
		level = slog.LevelWarn
	case cfg.Logging.Level == "error":
		level = slog.LevelError
	}
	stylelog.InitDefault(&tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	})
	return cfg
}

func runLoops(cmd *cobra.Command, args []string) {
	cfg := setup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := control.NewApp(ctx, cfg, runOpts)
	if err != nil {
		slog.Error("Failed to initialize steemstream", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(); err != nil {
			slog.Warn("Failed to close resources", "error", err)
		}
	}()

	slog.Info("steemstream started", "config", cfgPath, "port", cfg.Server.Port)
	if err := app.Run(ctx); err != nil {
		slog.Error("steemstream stopped with errors", "error", err)
		os.Exit(1)
	}
	slog.Info("steemstream stopped gracefully")
}
