package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/asksql/asksql/internal/api"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(flags *rootFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.resolveConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTP.Address = addr
			}
			a, err := openApp(cmd.Context(), cfg, cmd.ErrOrStderr(), true)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			return a.serve(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address override")
	return cmd
}

func (a *app) handler() http.Handler {
	checks := []api.ReadinessCheck{api.CheckStore(a.db)}
	if a.historyStore != nil {
		checks = append(checks, api.CheckHistory(true, a.historyStore))
	}
	deps := api.Dependencies{
		Logger:            a.logger,
		Readiness:         api.CombineReadinessChecks(checks...),
		DependencyTimeout: time.Second,
		Schema:            a.introspector,
	}
	if a.service != nil {
		deps.Asker = a.service
	}
	return api.NewHandler(a.cfg, deps)
}

// serve blocks until ctx is canceled, then drains in-flight requests.
func (a *app) serve(ctx context.Context) error {
	server := &http.Server{
		Addr:         a.cfg.HTTP.Address,
		Handler:      a.handler(),
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
	}

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("starting api server", slog.String("addr", a.cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("api server failed", slog.Any("error", err))
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	a.logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		return fmt.Errorf("shutdown api server: %w", err)
	}
	select {
	case err := <-serveErr:
		return fmt.Errorf("api server: %w", err)
	default:
		return nil
	}
}
