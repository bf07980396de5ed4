package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/mwhite/fleetsync/internal/models"
	"github.com/mwhite/fleetsync/internal/output"
	"github.com/mwhite/fleetsync/internal/store"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:     "show <collection> <id>",
	Short:   "Show one record, rendering its notes as markdown",
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

		rec, err := e.store.GetByID(e.cfg.OwnerID, collection, args[1])
		if err != nil {
			return err
		}
		if rec == nil {
			return fmt.Errorf("record %s not in local cache", args[1])
		}

		fmt.Print(output.FormatRecordDetail(*rec, store.IsLocalID(rec.ID)))

		var fields struct {
			Notes string `json:"notes"`
		}
		if err := json.Unmarshal(rec.Fields, &fields); err == nil && fields.Notes != "" {
			rendered, err := output.RenderMarkdown(fields.Notes)
			if err == nil && rendered != "" {
				fmt.Println()
				fmt.Println(rendered)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}
