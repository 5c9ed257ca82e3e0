// Command openroute loads route declarations from a directory tree and
// either serves them or renders the derived OpenAPI document.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "openroute",
		Short:         "Dynamic route registration and OpenAPI generation",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("config", "config.toml", "engine configuration file")
	rootCmd.PersistentFlags().String("routes", "", "routes directory (overrides config)")

	rootCmd.AddCommand(
		serveCmd(),
		specCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
