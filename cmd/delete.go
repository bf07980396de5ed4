package cmd

import (
	"context"
	"fmt"

	"github.com/mwhite/fleetsync/internal/models"
	"github.com/mwhite/fleetsync/internal/output"
	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:     "delete <collection> <id>",
	Short:   "Delete a record",
	GroupID: "core",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		collection := models.Collection(args[0])
		if !models.ValidCollection(collection) {
			return fmt.Errorf("unknown collection %q", args[0])
		}

		e, err := newEngine()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer e.Close()

		res, err := e.reconciler.Write(context.Background(), models.Operation{
			Type:       models.OpDelete,
			Collection: collection,
			OwnerID:    e.cfg.OwnerID,
			RecordID:   args[1],
		})
		if err != nil {
			return reportWriteError(err)
		}

		if res.Pending {
			output.Warning("offline: delete of %s queued", args[1])
		} else {
			output.Success("deleted %s", args[1])
		}

		autoSyncAfterMutation(e)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
