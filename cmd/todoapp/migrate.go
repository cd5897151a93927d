package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/suzukibelltree/SampleToDoApp/internal/database"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema generations and print the schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Open migrates before returning.
			db, err := database.Open(a.cfg.Database, a.log)
			if err != nil {
				return err
			}
			defer database.Close(db)

			version, err := database.CurrentVersion(db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
			return nil
		},
	}
}
