package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mwhite/fleetsync/internal/models"
	"github.com/mwhite/fleetsync/internal/output"
	"github.com/spf13/cobra"
)

var updateCmd = &cobra.Command{
	Use:     "update <collection> <id>",
	Short:   "Update a record's payload",
	GroupID: "core",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		collection := models.Collection(args[0])
		id := args[1]
		if !models.ValidCollection(collection) {
			return fmt.Errorf("unknown collection %q", args[0])
		}

		fieldsJSON, _ := cmd.Flags().GetString("fields")
		if fieldsJSON == "" || !json.Valid([]byte(fieldsJSON)) {
			return fmt.Errorf("--fields must be a JSON object")
		}

		e, err := newEngine()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer e.Close()

		existing, err := e.store.GetByID(e.cfg.OwnerID, collection, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return fmt.Errorf("record %s not in local cache", id)
		}

		rec := existing.Clone()
		rec.Fields = json.RawMessage(fieldsJSON)

		res, err := e.reconciler.Write(context.Background(), models.Operation{
			Type:       models.OpUpdate,
			Collection: collection,
			OwnerID:    e.cfg.OwnerID,
			Record:     &rec,
		})
		if err != nil {
			return reportWriteError(err)
		}

		if res.Pending {
			output.Warning("offline: update of %s queued", res.Record.ID)
		} else {
			output.Success("updated %s", res.Record.ID)
		}

		autoSyncAfterMutation(e)
		return nil
	},
}

func init() {
	updateCmd.Flags().String("fields", "", "replacement payload as a JSON object")
	rootCmd.AddCommand(updateCmd)
}
