package deskctl

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"
)

func migrateCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply embedded database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.withDB(func(db *sql.DB) error {
				if err := o.rm.RunMigrations(cmd.Context(), db); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}
}
