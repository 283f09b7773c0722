package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"initiative_syncer/internal/httpapi"
	"initiative_syncer/internal/scheduler"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the scheduler and the ops HTTP server",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger, wireOptions{publish: true})
	if err != nil {
		logger.Error("failed to start", "error", err)
		return err
	}
	defer a.Close()

	schedCfg := scheduler.Config{
		Interval:   cfg.Sync.Interval,
		RunOnStart: cfg.Sync.RunOnStart,
	}
	if cfg.Sync.Interval == 0 {
		schedCfg.Hour, schedCfg.Minute, err = cfg.Sync.DailyTime()
		if err != nil {
			return err
		}
	}
	sched := scheduler.NewScheduler(a.service, schedCfg, logger)

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      httpapi.NewServer(a.service, a.meta, logger).Router(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	logger.Info("starting initiative syncer",
		"http_addr", cfg.HTTP.Addr,
		"lock_backend", cfg.Lock.Backend,
		"run_at", cfg.Sync.RunAt,
		"interval", cfg.Sync.Interval,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := sched.Start(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("syncer stopped with error", "error", err)
		return err
	}
	return nil
}
