// Command modelctl works with models and operation logs outside the server:
// it replays and simulates models locally, computes delta keys, manages the
// Postgres model warehouse and follows the model event stream.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "modelctl",
	Short:         "Inspect, modify and simulate metabolic models",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.AddCommand(newSimulateCmd(), newReplayCmd(), newKeyCmd(), newImportCmd(), newListCmd(), newWatchCmd())
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}
