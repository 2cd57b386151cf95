package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/steemstream/internal/control"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the checkpoint, dead-letter count and lag behind the chain head",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := setup()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	app, err := control.NewApp(ctx, cfg, control.Options{Blocks: true})
	if err != nil {
		slog.Error("Failed to open state", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	cp, err := app.Checkpoint().Load(ctx)
	if err != nil {
		slog.Error("Failed to load checkpoint", "error", err)
		os.Exit(1)
	}
	failed, err := app.Failures().Count(ctx)
	if err != nil {
		slog.Warn("Failed to count failed flushes", "error", err)
	}

	head := "unavailable"
	lag := "-"
	if h, err := app.Chain().GetCurrentBlockNumber(ctx); err != nil {
		slog.Warn("Failed to fetch chain head", "error", err)
	} else {
		head = fmt.Sprintf("%d", h)
		lag = fmt.Sprintf("%d", app.Checkpoint().GetLag(h))
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BACKEND\tLAST PROCESSED\tHIGH WATER\tLAST SEEN\tHEAD\tLAG\tFAILED FLUSHES")
	fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\t%s\t%d\n",
		cfg.Checkpoint.Backend,
		cp.LastProcessed,
		cp.HighWater,
		cp.LastSeen,
		head,
		lag,
		failed,
	)
	w.Flush()
}
