package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/steemstream/internal/bootstrap"
	"github.com/vietddude/steemstream/internal/infra/steem"
)

var findBlockCmd = &cobra.Command{
	Use:   "find-block [YYYY-MM-DD]",
	Short: "Find the first block produced on a UTC date",
	Args:  cobra.ExactArgs(1),
	Run:   runFindBlock,
}

func init() {
	rootCmd.AddCommand(findBlockCmd)
}

func runFindBlock(cmd *cobra.Command, args []string) {
	date, err := time.Parse(time.DateOnly, args[0])
	if err != nil {
		fmt.Printf("Invalid date: %v\n", err)
		os.Exit(1)
	}

	cfg := setup()
	client, err := steem.NewClient(cfg.Chain.Config)
	if err != nil {
		slog.Error("Failed to init steem client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	locator, err := bootstrap.NewLocator(client, cfg.Chain.BlockCacheSize)
	if err != nil {
		slog.Error("Failed to init locator", "error", err)
		os.Exit(1)
	}

	block, err := locator.FirstBlockOnDate(context.Background(), date)
	if err != nil {
		slog.Error("Failed to find block", "date", args[0], "error", err)
		os.Exit(1)
	}
	fmt.Println(block)
}
