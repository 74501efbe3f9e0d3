package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

const rootLongDesc = `boardgamer recommends games from a photo of your board-game shelf.

Run the server:
  boardgamer serve

Ask a running server for recommendations:
  boardgamer recommend --image shelf.jpg --players 4 --time "Medium (1-2 hours)"`

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "boardgamer",
		Short:         "Board-game shelf recommender",
		Long:          rootLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newRecommendCmd())
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
