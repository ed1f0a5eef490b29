// Package app wires the sync daemon together: configuration, logging, the
// local store, the remote gateway, the orchestrator and the scheduler.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/autoledger/internal/client/config"
	"github.com/dmitrijs2005/autoledger/internal/client/models"
	"github.com/dmitrijs2005/autoledger/internal/client/remote"
	"github.com/dmitrijs2005/autoledger/internal/client/repositories/repomanager"
	"github.com/dmitrijs2005/autoledger/internal/client/scheduler"
	"github.com/dmitrijs2005/autoledger/internal/client/services"
	"github.com/dmitrijs2005/autoledger/internal/client/store"
	"github.com/dmitrijs2005/autoledger/internal/client/syncer"
	"github.com/dmitrijs2005/autoledger/internal/logging"
)

type App struct {
	config    *config.Config
	logger    logging.Logger
	logCloser io.Closer
	db        *sql.DB

	orchestrator *syncer.Orchestrator
	scheduler    *scheduler.Scheduler

	Expenses  services.ExpenseService
	Conflicts services.ConflictService
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, closer := logging.NewJSONLogger(c.LogLevel, logging.FileOptions{Path: c.LogFile})

	db, err := store.InitDatabase(ctx, c.DBPath)
	if err != nil {
		_ = closer.Close()
		return nil, fmt.Errorf("db init error: %w", err)
	}

	creds := models.Credentials{ServerID: c.ServerID, URL: c.ServerURL, APIKey: c.APIKey}
	repos := repomanager.NewSQLiteRepositoryManager()

	orch := syncer.NewOrchestrator(db, repos, remote.NewFactory(c.HTTPTimeout), syncer.NewSyncLock(), logger,
		syncer.Options{MaxAttempts: c.OpMaxAttempts})

	sched := scheduler.New(orch, creds, logger, scheduler.Config{
		Interval:  c.SyncInterval,
		RetryBase: c.RetryBase,
		RetryCap:  c.RetryCap,
		RetryMax:  c.RetryMax,
	})

	return &App{
		config:       c,
		logger:       logger,
		logCloser:    closer,
		db:           db,
		orchestrator: orch,
		scheduler:    sched,
		Expenses:     services.NewExpenseService(db, repos, services.WithChangeHook(sched.Trigger)),
		Conflicts:    services.NewConflictService(db, repos, services.WithChangeHook(sched.Trigger)),
	}, nil
}

// initSignalHandler cancels the app on SIGINT, SIGTERM and SIGQUIT and
// triggers an immediate pass on SIGHUP.
func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)

	go func() {
		defer signal.Stop(sigs)
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-sigs:
				if sig == syscall.SIGHUP {
					app.logger.Info(ctx, "sync requested by signal")
					app.scheduler.Trigger()
					continue
				}
				cancelFunc()
				return
			}
		}
	}()
}

// Run starts the scheduler and blocks until ctx is done or a stop signal
// arrives. Resources are released before it returns.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "server", app.config.ServerID, "db", app.config.DBPath)

	if at, lastErr, err := app.orchestrator.LastPass(ctx, app.config.ServerID); err != nil {
		app.logger.Warn(ctx, "failed to read last sync status", "error", err)
	} else if !at.IsZero() {
		app.logger.Info(ctx, "last sync pass", "at", at, "error", lastErr)
	}

	app.initSignalHandler(ctx, cancelFunc)
	app.scheduler.Start(ctx)

	<-ctx.Done()

	app.scheduler.Stop()
	return app.Close()
}

// Close releases the database and the log sink.
func (app *App) Close() error {
	app.logger.Info(context.Background(), "Stopping app...")
	return errors.Join(app.db.Close(), app.logCloser.Close())
}

// Status returns the sync status shown to the UI.
func (app *App) Status() syncer.Status {
	return app.orchestrator.Status()
}

// Subscribe streams sync status changes.
func (app *App) Subscribe() (<-chan syncer.Status, func()) {
	return app.orchestrator.Subscribe()
}

// SyncNow runs a pass right away and returns its report.
func (app *App) SyncNow(ctx context.Context) (*syncer.Report, error) {
	return app.scheduler.SyncNow(ctx)
}
