package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/bulkindex/internal/core"
	"github.com/JonMunkholm/bulkindex/internal/metrics"
	"github.com/JonMunkholm/bulkindex/internal/web"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve sanity checks over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	be, release, err := openBackend(ctx, a.cfg.Database)
	if err != nil {
		return err
	}
	defer release()

	server, database := be.Describe()
	slog.Info("connected to reference database", "driver", a.cfg.Database.Driver, "server", server, "database", database)

	archiver, err := openArchiver(ctx, a.cfg.Archive)
	if err != nil {
		return err
	}

	recorder := metrics.NewRecorder(true)
	limiter := core.NewRunLimiter(a.cfg.Server.MaxConcurrentRuns, a.cfg.Server.RunWaitTime)
	srv := web.NewServer(a.cfg.Server, web.Deps{
		Runner:   core.NewRunner(be, core.WithObserver(recorder)),
		Limiter:  limiter,
		Archiver: archiver,
		Pinger:   be,
		Metrics:  recorder.Handler(),
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down...", "active_runs", limiter.ActiveCount())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
		return err
	}
	slog.Info("server stopped")
	return nil
}
