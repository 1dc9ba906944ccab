package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lawyrs/internal/memory"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the local database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			// Opening the store applies pending migrations.
			store, err := memory.NewSQLiteStore(cfg.Database.Path, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			v, err := memory.GetSchemaVersion(store.DB())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: schema version %d\n", cfg.Database.Path, v)
			return nil
		},
	}
}
