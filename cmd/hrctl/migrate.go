package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hrdesk/hr-assistant/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer store.Close(db)

		fmt.Fprintf(cmd.OutOrStdout(), "schema is up to date (%s)\n", cfg.DatabaseDriver)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
