package cmd

import (
	"context"
	"fmt"

	"github.com/mwhite/fleetsync/internal/models"
	"github.com/mwhite/fleetsync/internal/output"
	"github.com/mwhite/fleetsync/internal/store"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list <collection>",
	Short:   "List cached records (refreshes in the background)",
	GroupID: "core",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		collection := models.Collection(args[0])
		if !models.ValidCollection(collection) {
			return fmt.Errorf("unknown collection %q", args[0])
		}
		asJSON, _ := cmd.Flags().GetBool("json")

		e, err := newEngine()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer e.Close()

		records, err := e.reconciler.Read(context.Background(), e.cfg.OwnerID, collection)
		if err != nil {
			output.Error("read %s: %v", collection, err)
			return err
		}

		if asJSON {
			return output.JSON(records)
		}

		if len(records) == 0 {
			output.Info("no %s cached yet", collection)
			return nil
		}
		for _, rec := range records {
			fmt.Println(output.FormatRecordLine(rec, store.IsLocalID(rec.ID)))
		}
		return nil
	},
}

func init() {
	listCmd.Flags().Bool("json", false, "output as JSON")
	rootCmd.AddCommand(listCmd)
}
