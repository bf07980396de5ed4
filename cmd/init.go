package cmd

import (
	"github.com/mwhite/fleetsync/internal/output"
	"github.com/mwhite/fleetsync/internal/store"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:     "init",
	Short:   "Create the local fleetsync database",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Initialize(getBaseDir())
		if err != nil {
			output.Error("initialize database: %v", err)
			return err
		}
		defer st.Close()

		output.Success("initialized .fleetsync/fleet.db")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
