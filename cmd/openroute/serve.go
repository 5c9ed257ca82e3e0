package main

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/bjaus/openroute"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load route declarations and serve them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
			slog.SetDefault(logger)

			cfg, dir, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			engine := openroute.New(
				openroute.WithConfig(cfg),
				openroute.WithLogger(logger),
			)
			engine.Use("recovery", openroute.Recovery(logger))
			engine.Use("logging", openroute.RequestLogger(logger))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			if err := engine.LoadAll(ctx, dir); err != nil {
				// Partial failures keep the healthy routes registered.
				var aggErr *openroute.AggregateLoadError
				if !errors.As(err, &aggErr) {
					return err
				}
				logger.Warn("serving with partial route set", "failed", aggErr.Count())
			}

			engine.ServeSpec("/openapi.json")
			engine.ServeSpecYAML("/openapi.yaml")
			engine.ServeStatus("/health")

			logger.Info("starting server", "addr", cfg.Addr, "routes", engine.RouteCount())

			if err := engine.ListenAndServe(ctx, cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			logger.Info("server stopped")
			return nil
		},
	}
	return cmd
}

// loadConfig resolves the configuration file and the routes directory from
// the persistent flags. A missing config file falls back to defaults.
func loadConfig(cmd *cobra.Command) (*openroute.Config, string, error) {
	path, _ := cmd.Flags().GetString("config")
	dir, _ := cmd.Flags().GetString("routes")

	cfg, err := openroute.LoadConfig(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, "", err
		}
		cfg = openroute.DefaultConfig()
	}

	if dir == "" {
		dir = cfg.RoutesDir
	}
	return cfg, dir, nil
}
