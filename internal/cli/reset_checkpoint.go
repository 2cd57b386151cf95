package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vietddude/steemstream/internal/control"
)

var resetCheckpointCmd = &cobra.Command{
	Use:   "reset-checkpoint [block]",
	Short: "Move the resumable checkpoint to a given block",
	Long:  `Sets last processed and last seen to block. The high-water mark only moves forward.`,
	Args:  cobra.ExactArgs(1),
	Run:   runResetCheckpoint,
}

func init() {
	rootCmd.AddCommand(resetCheckpointCmd)
}

func runResetCheckpoint(cmd *cobra.Command, args []string) {
	block, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		fmt.Printf("Invalid block number: %v\n", err)
		os.Exit(1)
	}

	cfg := setup()
	ctx := context.Background()

	app, err := control.NewApp(ctx, cfg, control.Options{Blocks: true})
	if err != nil {
		slog.Error("Failed to open state", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if err := app.Checkpoint().Reset(ctx, block); err != nil {
		slog.Error("Failed to reset checkpoint", "error", err)
		os.Exit(1)
	}
	fmt.Printf("Successfully reset checkpoint to block %d\n", block)
}
