package deskctl

import (
	"database/sql"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/merchantdesk/internal/common"
)

func adminsCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admins",
		Short: "Manage the admin registry",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <email>",
		Short: "Grant review rights to an email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withDB(func(db *sql.DB) error {
				if err := o.rm.Admins(db).Add(cmd.Context(), args[0]); err != nil {
					return fmt.Errorf("add admin: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", args[0])
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <email>",
		Short: "Revoke review rights",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withDB(func(db *sql.DB) error {
				err := o.rm.Admins(db).Remove(cmd.Context(), args[0])
				if errors.Is(err, common.ErrorNotFound) {
					return fmt.Errorf("%s is not an admin", args[0])
				}
				if err != nil {
					return fmt.Errorf("remove admin: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered admins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.withDB(func(db *sql.DB) error {
				admins, err := o.rm.Admins(db).List(cmd.Context())
				if err != nil {
					return fmt.Errorf("list admins: %w", err)
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "EMAIL\tADDED")
				for _, a := range admins {
					fmt.Fprintf(w, "%s\t%s\n", a.Email, a.CreatedAt.UTC().Format(time.RFC3339))
				}
				return w.Flush()
			})
		},
	})

	return cmd
}
