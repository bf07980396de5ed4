package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/mwhite/fleetsync/internal/models"
	"github.com/mwhite/fleetsync/internal/output"
	"github.com/spf13/cobra"
)

var createCmd = &cobra.Command{
	Use:     "create [collection]",
	Short:   "Create a record",
	GroupID: "core",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fieldsJSON, _ := cmd.Flags().GetString("fields")
		interactive, _ := cmd.Flags().GetBool("interactive")

		var collection string
		if len(args) > 0 {
			collection = args[0]
		}

		var fields json.RawMessage
		if interactive || (collection == "" && fieldsJSON == "") {
			var err error
			collection, fields, err = createForm(collection)
			if err != nil {
				return err
			}
		} else {
			if collection == "" {
				return fmt.Errorf("collection required (or use --interactive)")
			}
			if fieldsJSON == "" {
				fieldsJSON = "{}"
			}
			if !json.Valid([]byte(fieldsJSON)) {
				return fmt.Errorf("--fields must be a JSON object")
			}
			fields = json.RawMessage(fieldsJSON)
		}

		if !models.ValidCollection(models.Collection(collection)) {
			return fmt.Errorf("unknown collection %q", collection)
		}

		e, err := newEngine()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer e.Close()

		res, err := e.reconciler.Write(context.Background(), models.Operation{
			Type:       models.OpCreate,
			Collection: models.Collection(collection),
			OwnerID:    e.cfg.OwnerID,
			Record:     &models.Record{Fields: fields},
		})
		if err != nil {
			return reportWriteError(err)
		}

		if res.Pending {
			output.Warning("offline: queued as %s (will sync when reachable)", res.Record.ID)
		} else {
			output.Success("created %s", res.Record.ID)
		}

		autoSyncAfterMutation(e)
		return nil
	},
}

// createForm collects a new record interactively.
func createForm(collection string) (string, json.RawMessage, error) {
	var name, notes string

	groups := []*huh.Group{}
	if collection == "" {
		groups = append(groups, huh.NewGroup(
			huh.NewSelect[string]().
				Title("Collection").
				Options(collectionOptions()...).
				Value(&collection),
		))
	}
	groups = append(groups, huh.NewGroup(
		huh.NewInput().Title("Name").Value(&name),
		huh.NewText().Title("Notes (markdown)").Value(&notes),
	))

	if err := huh.NewForm(groups...).Run(); err != nil {
		return "", nil, err
	}

	fields, err := json.Marshal(map[string]string{"name": name, "notes": notes})
	if err != nil {
		return "", nil, err
	}
	return collection, fields, nil
}

func collectionOptions() []huh.Option[string] {
	opts := make([]huh.Option[string], 0, len(models.Collections))
	for _, c := range models.Collections {
		opts = append(opts, huh.NewOption(string(c), string(c)))
	}
	return opts
}

func init() {
	createCmd.Flags().String("fields", "", "record payload as a JSON object")
	createCmd.Flags().BoolP("interactive", "i", false, "fill in the record with a form")
	rootCmd.AddCommand(createCmd)
}
