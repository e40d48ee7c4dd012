package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/lysyi3m/feed-digest/app/api"
	"github.com/lysyi3m/feed-digest/app/cfg"
	"github.com/lysyi3m/feed-digest/app/database"
	"github.com/lysyi3m/feed-digest/app/digest"
	"github.com/lysyi3m/feed-digest/app/feed"
	"github.com/lysyi3m/feed-digest/app/pipeline"
	"github.com/lysyi3m/feed-digest/app/sink"
	"github.com/lysyi3m/feed-digest/app/tasks"
	"github.com/lysyi3m/feed-digest/app/translate"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown
		return
	}

	setupLogger(appCfg.Debug)

	slog.Info("Starting feed-digest", "version", appCfg.Version, "once", appCfg.Once, "dry_run", appCfg.DryRun)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := feed.NewRegistry(appCfg.SourcesDir)
	if err := registry.Run(); err != nil {
		slog.Error("Failed to load sources", "dir", appCfg.SourcesDir, "error", err)
		os.Exit(1)
	}
	slog.Info("Sources loaded", "count", registry.GetSourceCount(), "enabled", len(registry.GetEnabledSources(appCfg.Disable...)))

	var runLog *database.RunRepository
	if appCfg.DBPath != "" {
		db, err := database.NewConnection(appCfg.DBPath)
		if err != nil {
			slog.Error("Failed to open run log", "path", appCfg.DBPath, "error", err)
			os.Exit(1)
		}
		defer db.Close()

		version, dirty, err := database.RunMigrations(db)
		if err != nil {
			slog.Error("Failed to run migrations", "error", err)
			os.Exit(1)
		}
		slog.Debug("Run log ready", "path", appCfg.DBPath, "version", version, "dirty", dirty)

		runLog = database.NewRunRepository(db)
	}

	opts := []pipeline.Option{
		pipeline.WithExtractor(feed.NewContentExtractor()),
		pipeline.WithTranslator(newTranslator(appCfg), newTranslationStore(ctx, appCfg)),
	}
	if runLog != nil {
		opts = append(opts, pipeline.WithRunStore(runLog))

		if !appCfg.Once {
			last, err := runLog.LastSuccessfulRun()
			if err != nil {
				slog.Warn("Failed to read last successful run", "error", err)
			} else if last != nil {
				slog.Info("Resuming after last successful run", "run_id", last.ID, "started_at", last.StartedAt)
				opts = append(opts, pipeline.WithResumeFrom(last.StartedAt))
			}
		}
	}

	runner := pipeline.NewRunner(
		registry,
		tasks.NewPool(appCfg.WorkerCount),
		tasks.NewFetcher(appCfg.UserAgent),
		digest.NewBuilder(digest.Dialect(appCfg.ParseMode), appCfg.Budget, appCfg.Location()),
		newSink(appCfg),
		pipeline.Settings{
			Watermark:   appCfg.Watermark,
			Sections:    appCfg.Sections,
			Disable:     appCfg.Disable,
			Incremental: !appCfg.Once,
		},
		opts...,
	)

	if appCfg.Once {
		if _, err := runner.Run(ctx); err != nil {
			slog.Error("Run failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := runDaemon(ctx, appCfg, registry, runLog, runner); err != nil {
		slog.Error("Daemon stopped with error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func newSink(appCfg *cfg.Cfg) sink.Sink {
	if appCfg.DryRun {
		return sink.NewWriter(os.Stdout)
	}

	tg := sink.NewTelegram(appCfg.TelegramToken, appCfg.ChatID, appCfg.ThreadID, appCfg.ParseMode)
	tg.APIBase = appCfg.TelegramAPI
	return tg
}

func newTranslator(appCfg *cfg.Cfg) translate.Translator {
	return translate.Chain{
		translate.NewGoogle(appCfg.TranslateTo),
		translate.NewMyMemory(appCfg.TranslateTo),
	}
}

// newTranslationStore returns nil when Redis is not configured or unreachable.
func newTranslationStore(ctx context.Context, appCfg *cfg.Cfg) translate.Store {
	if appCfg.RedisAddr == "" {
		return nil
	}

	store, err := translate.NewRedisStore(ctx, appCfg.RedisAddr, appCfg.TranslateTo, appCfg.TranslationTTLDuration())
	if err != nil {
		slog.Warn("Translation store unavailable, using in-memory cache only", "error", err)
		return nil
	}
	return store
}

func runDaemon(ctx context.Context, appCfg *cfg.Cfg, registry *feed.Registry, runLog *database.RunRepository, runner *pipeline.Runner) error {
	c := cron.New(cron.WithLocation(appCfg.Location()))
	_, err := c.AddFunc(appCfg.Schedule, func() {
		slog.Info("Cron triggered, running digest")
		if _, err := runner.Run(ctx); err != nil {
			if errors.Is(err, pipeline.ErrRunInProgress) {
				slog.Warn("Previous run still in progress, skipping")
				return
			}
			slog.Error("Scheduled run failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to set up cron schedule %q: %w", appCfg.Schedule, err)
	}
	c.Start()
	slog.Info("Digest scheduled", "schedule", appCfg.Schedule, "timezone", appCfg.Timezone)

	var runs api.RunReader
	if runLog != nil {
		runs = runLog
	}
	handler := api.NewHandler(ctx, registry, runs, runner)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      api.NewServer(handler, appCfg.APIAccessKey),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		slog.Info("Received shutdown signal")
	case serverErr = <-serverErrChan:
		slog.Error("Server error", "error", serverErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Wait for a running job to finish.
	select {
	case <-c.Stop().Done():
	case <-shutdownCtx.Done():
		slog.Warn("Timed out waiting for the running digest")
	}

	slog.Info("Shutdown complete")
	return serverErr
}
