package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"causelist-backend/lib/telemetry"
	"causelist-backend/lib/util/serviceutil"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
	tel        telemetry.Telemetry
)

var rootCmd = &cobra.Command{
	Use:           "causelist",
	Short:         "causelist retrieves court cause lists from the eCourts portal.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		telemetry.InitSlog(verbose)
		if verbose {
			slog.DebugContext(cmd.Context(), "verbose logging enabled")
		}
		var err error
		tel, err = telemetry.SetupFromEnv(cmd.Context(), "causelist:"+cmd.Name())
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the config file (default: causelist.json5 in the cwd or a parent)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

func Execute() {
	ctx := serviceutil.SignalContext()
	err := rootCmd.ExecuteContext(ctx)

	shutdownErr := tel.Shutdown(context.Background())
	if shutdownErr != nil {
		slog.Warn("failed to flush telemetry", "err", shutdownErr)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
