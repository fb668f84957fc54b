// Package deskctl implements the operator CLI: schema migrations, the admin
// registry, dev tokens and document transfer through the public API.
package deskctl

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/merchantdesk/internal/server/config"
	"github.com/dmitrijs2005/merchantdesk/internal/server/repositories/repomanager"
)

// Version is stamped at build time.
var Version = "dev"

// openDB is a seam for tests.
var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

type options struct {
	dsn string
	rm  *repomanager.PostgresRepositoryManager
}

func defaultDSN() string {
	if v := os.Getenv("MERCHANTDESK_DATABASE_DSN"); v != "" {
		return v
	}
	var c config.Config
	c.LoadDefaults()
	return c.DatabaseDSN
}

func (o *options) withDB(fn func(db *sql.DB) error) error {
	db, err := openDB(o.dsn)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()
	return fn(db)
}

// NewRootCommand builds the deskctl command tree.
func NewRootCommand() *cobra.Command {
	o := &options{rm: repomanager.NewPostgresRepositoryManager()}

	root := &cobra.Command{
		Use:           "deskctl",
		Short:         "MerchantDesk operator tool",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&o.dsn, "dsn", defaultDSN(), "PostgreSQL DSN (env MERCHANTDESK_DATABASE_DSN)")

	root.AddCommand(migrateCmd(o))
	root.AddCommand(adminsCmd(o))
	root.AddCommand(tokenCmd())
	root.AddCommand(uploadCmd())
	root.AddCommand(downloadCmd())

	return root
}
