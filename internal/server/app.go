// Package server assembles the MerchantDesk service: it opens the database,
// applies migrations, builds the identity verifier, the presigner and the
// services, and runs the HTTP server until a termination signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/merchantdesk/internal/logging"
	"github.com/dmitrijs2005/merchantdesk/internal/server/access"
	"github.com/dmitrijs2005/merchantdesk/internal/server/auth"
	"github.com/dmitrijs2005/merchantdesk/internal/server/config"
	"github.com/dmitrijs2005/merchantdesk/internal/server/httpapi"
	"github.com/dmitrijs2005/merchantdesk/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/merchantdesk/internal/server/services"
	"github.com/dmitrijs2005/merchantdesk/internal/server/storage"
)

const jwksRefreshInterval = time.Hour

// openDB is a seam for tests.
var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	server *httpapi.Server
}

// newVerifier prefers the JWKS endpoint when one is configured and falls
// back to the shared HS256 secret.
func newVerifier(c *config.Config, l logging.Logger) (auth.Verifier, error) {
	if c.JWKSURL != "" {
		v, err := auth.NewJWKSVerifier(c.JWKSURL, c.JWTIssuer, c.JWTAudience, jwksRefreshInterval, l)
		if err != nil {
			return nil, fmt.Errorf("jwks verifier: %w", err)
		}
		return v, nil
	}
	return auth.NewHMACVerifier([]byte(c.JWTSecret), c.JWTIssuer, c.JWTAudience), nil
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, c.LogLevel)

	db, err := openDB(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	verifier, err := newVerifier(c, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	presigner, err := storage.NewS3Presigner(ctx, storage.Options{
		Bucket:       c.S3Bucket,
		Region:       c.S3Region,
		AccessKey:    c.S3AccessKey,
		SecretKey:    c.S3SecretKey,
		BaseEndpoint: c.S3BaseEndpoint,
		UsePathStyle: c.S3UsePathStyle,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	decider := access.NewDecider(rm.Admins(db))

	srv := httpapi.NewServer(c.HTTPAddr, c.ShutdownTimeout, logger, httpapi.Deps{
		Uploads:        services.NewUploadService(db, rm, presigner, logger),
		Downloads:      services.NewDownloadService(db, rm, decider, presigner, logger),
		Applications:   services.NewApplicationService(db, rm, decider, logger),
		Verifier:       verifier,
		DB:             db,
		AllowedOrigins: c.AllowedOrigins,
	})

	return &App{config: c, logger: logger, db: db, server: srv}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, "http server failed", "error", err)
		cancelFunc()
	}
}

// Run blocks until ctx is cancelled, a termination signal arrives or the
// HTTP server fails. The database is closed on the way out.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "address", app.config.HTTPAddr)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
