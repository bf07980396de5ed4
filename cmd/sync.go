package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/mwhite/fleetsync/internal/output"
	"github.com/mwhite/fleetsync/internal/remote"
	syncengine "github.com/mwhite/fleetsync/internal/sync"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	Short:   "Push the offline queue, then pull fresh snapshots",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		statusOnly, _ := cmd.Flags().GetBool("status")
		pushOnly, _ := cmd.Flags().GetBool("push-only")

		e, err := newEngine()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer e.Close()

		if statusOnly {
			return runSyncStatus(e)
		}

		stats, err := e.reconciler.Flush(context.Background())
		if err != nil {
			output.Error("flush: %v", err)
			return err
		}
		if stats.Skipped {
			output.Info("flush already in progress")
			return nil
		}

		if stats.Committed == 0 && stats.Failed == 0 {
			output.Info("offline queue empty, nothing to push")
		} else if stats.Failed == 0 {
			output.Success("pushed %d queued write(s) in %s", stats.Committed, stats.Duration.Round(timeRound))
		} else {
			output.Warning("pushed %d, %d still queued (will retry)", stats.Committed, stats.Failed)
		}

		if pushOnly {
			return nil
		}
		return runSyncPull(e)
	},
}

func runSyncPull(e *engine) error {
	refreshed, err := e.reconciler.Pull(context.Background(), e.cfg.OwnerID)
	if err != nil {
		if remote.Recoverable(err) {
			output.Warning("pull skipped, remote unreachable: %v", err)
			return nil
		}
		output.Error("pull: %v", err)
		return err
	}
	output.Success("pulled %d collection(s)", refreshed)
	return nil
}

func runSyncStatus(e *engine) error {
	status, err := e.reconciler.Status(e.cfg.OwnerID)
	if err != nil {
		output.Error("status: %v", err)
		return err
	}

	fmt.Printf("Server: %s (owner %s)\n", e.cfg.ServerURL, e.cfg.OwnerID)
	if status.FlushInProgress {
		output.Info("flush in progress")
	}
	if status.LastFlush != nil {
		fmt.Printf("Last flush: %s (%d committed, %d failed)\n",
			status.LastFlush.At.Local().Format("15:04:05"),
			status.LastFlush.Committed, status.LastFlush.Failed)
	}

	fmt.Printf("\nQueue: %d pending write(s)\n", status.QueueTotal)
	for _, st := range status.Collections {
		synced := "never"
		if st.Synced {
			synced = st.LastSynced.Local().Format("2006-01-02 15:04:05")
		}
		fmt.Printf("  %-16s %4d cached, %2d pending, last synced %s\n",
			st.Collection, st.Records, st.Pending, synced)
	}
	return nil
}

// reportWriteError prints a write failure, with the retry delay when the
// rate limiter denied admission.
func reportWriteError(err error) error {
	var rle *syncengine.RateLimitedError
	if errors.As(err, &rle) {
		output.Error("rate limited: retry in %s", rle.RetryAfter.Round(timeRound))
		return err
	}
	output.Error("%v", err)
	return err
}

func init() {
	syncCmd.Flags().Bool("status", false, "show sync status instead of syncing")
	syncCmd.Flags().Bool("push-only", false, "flush the queue without pulling snapshots")
	rootCmd.AddCommand(syncCmd)
}
