// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/starford/wikisync/internal/apperr"
	"github.com/starford/wikisync/internal/journal"
	"github.com/starford/wikisync/internal/pipeline"
	"github.com/starford/wikisync/internal/watch"
)

// Run reconciles once, or keeps reconciling on change when watch mode is on.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	if app.watch && cfg.Sync.SelfFeeding() {
		return fmt.Errorf("watch mode: %w: %q contains %q",
			apperr.ErrSelfFeedingReplace, cfg.Sync.ReplaceString, cfg.Sync.FindString)
	}

	logger := newLogger(os.Stdout, cfg.App)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("target_directory", cfg.Sync.TargetDirectory),
		slog.String("index_file_path", cfg.Sync.IndexFilePath),
		slog.String("find_string", cfg.Sync.FindString),
		slog.String("replace_string", cfg.Sync.ReplaceString),
		slog.String("journal_path", cfg.Journal.Path),
		slog.Bool("watch", app.watch),
		slog.Bool("dry_run", app.dryRun),
		slog.String("log_level", cfg.App.LogLevel.String()))

	var db *journal.DB
	if cfg.Journal.Enabled() {
		var err error
		db, err = journal.Open(cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("init journal: %w", err)
		}
		defer db.Close()
	}

	popts := pipeline.Options{
		TargetDirectory: cfg.Sync.TargetDirectory,
		IndexFilePath:   cfg.Sync.IndexFilePath,
		FindString:      cfg.Sync.FindString,
		ReplaceString:   cfg.Sync.ReplaceString,
		DryRun:          app.dryRun,
	}

	if _, err := reconcile(ctx, popts, db, logger); err != nil {
		return err
	}
	if !app.watch {
		return nil
	}

	g, gCtx := errgroup.WithContext(ctx)
	runCtx, cancel := context.WithCancel(gCtx)
	defer cancel()

	g.Go(func() error {
		defer cancel()
		return watch.Run(runCtx, popts.TargetDirectory, popts.IndexFilePath, cfg.Watch.Debounce, logger,
			func(ctx context.Context) map[string]string {
				// Fatal preconditions in watch mode are logged; the watcher keeps going
				// so a restored directory or index file is picked up again.
				rep, err := reconcile(ctx, popts, db, logger)
				if err != nil {
					logger.Error("reconcile failed", slog.String("error", err.Error()))
				}
				return rep.Written()
			})
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-runCtx.Done():
		}
		cancel()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Watcher stopped successfully")
	return nil
}

// reconcile runs the pipeline once and journals the result. The report is
// returned even on error, covering whatever ran before the failure.
func reconcile(ctx context.Context, opts pipeline.Options, db *journal.DB, logger *slog.Logger) (*pipeline.Report, error) {
	rep, err := pipeline.Run(ctx, opts, logger)
	if err != nil {
		return rep, fmt.Errorf("reconcile: %w", err)
	}
	if db == nil {
		return rep, nil
	}
	id, err := db.Record(rep)
	if err != nil {
		// The files are already reconciled; a journal failure is not fatal.
		logger.Warn("journal: record failed", slog.String("error", err.Error()))
		return rep, nil
	}
	logger.Debug("journal: recorded run", slog.Int64("run_id", id))
	return rep, nil
}

func newLogger(w io.Writer, cfg ApplicationConfig) *slog.Logger {
	hopts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}
