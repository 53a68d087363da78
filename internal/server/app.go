// Package server initializes and runs the application: it opens the
// database, runs migrations, wires services to their collaborators,
// starts the purge worker pool and the HTTP endpoint, and handles
// graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"framevault/internal/logging"
	"framevault/internal/server/blob"
	"framevault/internal/server/config"
	"framevault/internal/server/httpapi"
	"framevault/internal/server/purge"
	"framevault/internal/server/repositories/repomanager"
	"framevault/internal/server/services"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	purger *purge.Purger
	api    *httpapi.Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	handler := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(handler)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	blobs, err := blob.NewS3Store(ctx, blob.S3Config{
		RootUser:     cfg.S3RootUser,
		RootPassword: cfg.S3RootPassword,
		Bucket:       cfg.S3Bucket,
		Region:       cfg.S3Region,
		BaseEndpoint: cfg.S3BaseEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("object store init error: %w", err)
	}

	purger := purge.New(db, repos, blobs, logger, purge.Options{
		Workers:      cfg.PurgeWorkers,
		QueueDepth:   cfg.PurgeQueueDepth,
		BlobAttempts: cfg.BlobDeleteAttempts,
	})

	us := services.NewUserService(db, repos, cfg)
	ws := services.NewWorkspaceService(db, repos)
	ms := services.NewMembershipService(db, repos, logger)
	as := services.NewAssetService(db, repos, blobs, purger, logger)
	is := services.NewInviteService(db, repos, ms, cfg, logger)

	api := httpapi.NewServer(cfg.EndpointAddrHTTP, logger, us, ws, as, ms, is, cfg.SecretKey)

	return &App{config: cfg, logger: logger, db: db, purger: purger, api: api}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	app.purger.Start()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.api.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Wait()

	// The HTTP server is down; no new deletions can be queued. Drain the
	// purge queue before closing the database.
	app.purger.Close()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}

	app.logger.Info(ctx, "Shutdown complete")
}
