package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/merchantdesk/internal/dbx"
	"github.com/dmitrijs2005/merchantdesk/internal/server/repositories/admins"
	"github.com/dmitrijs2005/merchantdesk/internal/server/repositories/applications"
	"github.com/dmitrijs2005/merchantdesk/internal/server/repositories/documents"
)

// RepositoryManager vends repositories bound to a DBTX, so the same code
// runs against a pool or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Applications(db dbx.DBTX) applications.Repository
	Documents(db dbx.DBTX) documents.Repository
	Admins(db dbx.DBTX) admins.Repository
}
