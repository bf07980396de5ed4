package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mwhite/fleetsync/internal/output"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the background sync loop until interrupted",
	Long: `Keeps the synchronization engine running in the foreground.

The engine flushes the offline queue on a timer, probes the server for
connectivity, and flushes immediately when the connection comes back.
Press Ctrl+C to stop; a final flush runs before exit.`,
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		output.Info("watching for changes (flush every %s, probe every %s)",
			e.cfg.FlushInterval, e.cfg.ProbeInterval)

		e.reconciler.Run(ctx)

		fmt.Println() // clean line after ^C
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
