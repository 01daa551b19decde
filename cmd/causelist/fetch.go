package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"causelist-backend/lib/browser"
	"causelist-backend/lib/pdfarchive"
	"causelist-backend/lib/portal"
	"causelist-backend/lib/record"
	"causelist-backend/lib/timezone"

	"github.com/spf13/cobra"
)

var fetchFlags struct {
	state       string
	district    string
	complex     string
	date        string
	today       bool
	tomorrow    bool
	downloadPdf bool
	headful     bool
	output      string
	outputDir   string
}

func init() {
	flags := fetchCmd.Flags()
	flags.StringVar(&fetchFlags.state, "state", "", "state name as shown on the portal")
	flags.StringVar(&fetchFlags.district, "district", "", "district name")
	flags.StringVar(&fetchFlags.complex, "complex", "", "court complex name")
	flags.StringVar(&fetchFlags.date, "date", "", "cause list date (YYYY-MM-DD), defaults to today")
	flags.BoolVar(&fetchFlags.today, "today", false, "use today's date (IST)")
	flags.BoolVar(&fetchFlags.tomorrow, "tomorrow", false, "use tomorrow's date (IST)")
	flags.BoolVar(&fetchFlags.downloadPdf, "download-pdf", false, "archive every linked cause list PDF")
	flags.BoolVar(&fetchFlags.headful, "headful", false, "show the browser window")
	flags.StringVarP(&fetchFlags.output, "output", "o", record.DefaultBasename, "basename of the saved JSON record")
	flags.StringVar(&fetchFlags.outputDir, "output-dir", "", "directory for records and PDFs (default from config)")

	fetchCmd.MarkFlagRequired("state")
	fetchCmd.MarkFlagRequired("district")
	fetchCmd.MarkFlagRequired("complex")
	fetchCmd.MarkFlagsMutuallyExclusive("date", "today", "tomorrow")

	rootCmd.AddCommand(fetchCmd)
}

// lookupDate resolves the date flags, no flag means today.
func lookupDate(date string, tomorrow bool) (timezone.Date, error) {
	switch {
	case tomorrow:
		return timezone.Tomorrow(), nil
	case date != "":
		return timezone.ParseDate(date)
	default:
		return timezone.Today(), nil
	}
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Looks up one court complex's cause list and saves it as a JSON record.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		config, err := loadConfig(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if fetchFlags.outputDir != "" {
			config.Archive.OutputDir = fetchFlags.outputDir
		}
		if fetchFlags.headful {
			headless := false
			config.Browser.Headless = &headless
		}

		date, err := lookupDate(fetchFlags.date, fetchFlags.tomorrow)
		if err != nil {
			return err
		}
		req := portal.LookupRequest{
			State:       fetchFlags.state,
			District:    fetchFlags.district,
			Complex:     fetchFlags.complex,
			Date:        date,
			DownloadPdf: fetchFlags.downloadPdf,
		}
		if err := req.Validate(); err != nil {
			return err
		}

		invokedAt := timezone.Now()
		list, lookupErr := fetch(ctx, config, req)

		var saved *portal.CauseListResult
		if lookupErr == nil {
			saved = &list
		}
		path, err := record.Save(config.Archive.OutputDir, fetchFlags.output, record.New(invokedAt, date, saved))
		if err != nil {
			err = fmt.Errorf("save record: %w", err)
			if lookupErr != nil {
				return errors.Join(lookupFailure(ctx, lookupErr), err)
			}
			return err
		}
		slog.InfoContext(ctx, "saved record", "path", path)

		if lookupErr != nil {
			return lookupFailure(ctx, lookupErr)
		}
		renderJudges(os.Stdout, list)
		for _, downloadErr := range list.DownloadErrors() {
			slog.WarnContext(ctx, "pdf download failed", "err", downloadErr)
		}
		return nil
	},
}

// lookupFailure logs err and puts the user facing message in front of it, so
// failures before any navigation step still say what went wrong.
func lookupFailure(ctx context.Context, err error) error {
	slog.ErrorContext(ctx, "lookup failed", "err", err)
	return fmt.Errorf("%s: %w", portal.UserMessage(err), err)
}

func fetch(ctx context.Context, config Config, req portal.LookupRequest) (portal.CauseListResult, error) {
	pool, err := browser.NewPool(ctx, config.browserOptions())
	if err != nil {
		return portal.CauseListResult{}, fmt.Errorf("start browser: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		defer cancel()
		if err := pool.Close(closeCtx); err != nil {
			slog.WarnContext(ctx, "failed to close browser", "err", err)
		}
	}()

	var archive portal.Downloader
	if req.DownloadPdf {
		archiveOpts := config.archiveOptions()
		recordArchiveHttp(&archiveOpts)
		archiver, err := pdfarchive.NewArchiver(archiveOpts)
		if err != nil {
			return portal.CauseListResult{}, err
		}
		archive = archiver
	}

	navigator, err := portal.NewNavigator(config.navigatorOptions(pool, archive))
	if err != nil {
		return portal.CauseListResult{}, err
	}
	return navigator.FetchCauseList(ctx, req)
}
