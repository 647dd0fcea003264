package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ventas.io/internal/obs"
)

func newRootCmd() *cobra.Command {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:           "ventasctl",
		Short:         "Ventas administration CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			obs.ConfigureLogger(cmd.ErrOrStderr(), logLevel, "console")
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", envOr("VENTAS_LOG_LEVEL", "info"), "Log level")

	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newTokenCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ventasctl %s (%s)\n", version, commit)
		},
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
