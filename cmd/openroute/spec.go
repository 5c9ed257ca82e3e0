package main

import (
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/bjaus/openroute"
)

func specCmd() *cobra.Command {
	var (
		outFile string
		asYAML  bool
	)

	cmd := &cobra.Command{
		Use:   "spec",
		Short: "Generate the OpenAPI document from the route declarations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

			cfg, dir, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			// Document generation does not execute handlers, so unresolved
			// handler references resolve to a placeholder.
			engine := openroute.New(
				openroute.WithConfig(cfg),
				openroute.WithLogger(logger),
				openroute.WithHandlerFallback(func(w http.ResponseWriter, _ *http.Request) {
					w.WriteHeader(http.StatusNotImplemented)
				}),
			)

			if err := engine.LoadAll(cmd.Context(), dir); err != nil {
				return err
			}

			var w io.Writer = os.Stdout
			if outFile != "" {
				f, err := os.Create(outFile) //nolint:gosec // user-provided CLI flag
				if err != nil {
					return err
				}
				defer func() {
					if err := f.Close(); err != nil {
						logger.Error("failed to close output file", "err", err)
					}
				}()
				w = f
			}

			if asYAML {
				return engine.WriteSpecYAML(w)
			}
			return engine.WriteSpec(w)
		},
	}

	cmd.Flags().StringVarP(&outFile, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "emit YAML instead of JSON")
	return cmd
}
