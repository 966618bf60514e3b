package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"taskd/internal/config"
	"taskd/internal/httpapi"
	"taskd/internal/runner"
)

func newServeCmd(g *globalFlags) *cobra.Command {
	var addr string
	var corsOrigins string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(g, cmd.Flags())
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}
			if cmd.Flags().Changed("cors-origins") {
				cfg.CORSEnabled = true
				cfg.CORSOrigins = config.SplitCSV(corsOrigins)
			}
			log := newLogger(cfg, os.Stderr)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			orch, err := buildOrchestrator(ctx, cfg, log, runner.LogPublisher{})
			if err != nil {
				return err
			}
			httpapi.SetBaseContext(ctx)
			httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSOrigins, nil, nil)
			api := httpapi.NewServer(orch)
			srv := &http.Server{Addr: cfg.Addr, Handler: api.Handler(), ReadHeaderTimeout: 10 * time.Second}

			errc := make(chan error, 1)
			go func() {
				log.Info().Str("addr", cfg.Addr).Str("backend", cfg.Backend).Msg("taskd listening")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errc <- err
				}
				close(errc)
			}()

			select {
			case <-ctx.Done():
			case err := <-errc:
				if err != nil {
					_ = orch.Close(context.Background())
					return err
				}
			}

			// Graceful shutdown: stop HTTP first, then let queued jobs drain.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("graceful shutdown error")
			}
			api.Close()
			if err := orch.Close(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("drain jobs")
			}
			log.Info().Msg("taskd stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "HTTP listen address, e.g. :8080")
	cmd.Flags().StringVar(&corsOrigins, "cors-origins", "", "Comma-separated allowed origins (enables CORS)")
	return cmd
}
