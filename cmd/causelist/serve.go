package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"causelist-backend/lib/browser"
	"causelist-backend/lib/notify"
	"causelist-backend/lib/pdfarchive"
	"causelist-backend/lib/portal"
	"causelist-backend/lib/telemetry"
	"causelist-backend/lib/util/serviceutil"
	"causelist-backend/services/jobs"

	"github.com/spf13/cobra"
)

var servePort int

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "port to listen on (default from config)")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the job form and API, running lookups in the background.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		config, err := loadConfig(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if servePort != 0 {
			config.Jobs.Port = servePort
		}
		telemetry.InstrumentPerfStats(ctx, 30*time.Second)

		database, err := config.Jobs.Database.OpenDB()
		if err != nil {
			return fmt.Errorf("open job database: %w", err)
		}
		defer database.Close()

		pool, err := browser.NewPool(ctx, config.browserOptions())
		if err != nil {
			return fmt.Errorf("start browser: %w", err)
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
			defer cancel()
			if err := pool.Close(closeCtx); err != nil {
				slog.WarnContext(ctx, "failed to close browser", "err", err)
			}
		}()
		archiveOpts := config.archiveOptions()
		recordArchiveHttp(&archiveOpts)
		archiver, err := pdfarchive.NewArchiver(archiveOpts)
		if err != nil {
			return err
		}
		navigator, err := portal.NewNavigator(config.navigatorOptions(pool, archiver))
		if err != nil {
			return err
		}

		catalog := config.Catalog
		if len(catalog) == 0 {
			catalog = jobs.DefaultCatalog
		}
		service, err := jobs.NewService(ctx, database, jobs.Options{
			Runner: jobs.LookupRunner{
				Fetcher:   navigator,
				OutputDir: config.Archive.OutputDir,
			},
			MaxConcurrent: config.Jobs.MaxConcurrentJobs,
			JobTimeout:    seconds(config.Jobs.JobTimeoutSeconds),
			Mailer:        notify.NewMailer(config.Smtp, config.Notify),
			OutputDir:     config.Archive.OutputDir,
		})
		if err != nil {
			return err
		}
		defer service.Close()

		slog.InfoContext(ctx, "serving cause list jobs", "port", config.Jobs.Port, "output_dir", config.Archive.OutputDir)
		return serviceutil.StartHttpServer(ctx, config.Jobs.Port, service.Handler(jobs.HandlerOptions{
			OutputDir: config.Archive.OutputDir,
			Catalog:   catalog,
		}), 10*time.Second)
	},
}
