package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"causelist-backend/lib/browser"
	configlibsql "causelist-backend/lib/configuration/libsql"
	"causelist-backend/lib/configutil"
	"causelist-backend/lib/notify"
	"causelist-backend/lib/pdfarchive"
	"causelist-backend/lib/portal"
	"causelist-backend/lib/restyutil"
	"causelist-backend/services/jobs"
)

type PortalConfig struct {
	EntryUrl             string           `json:"entry_url"`
	Selectors            portal.Selectors `json:"selectors"`
	StepTimeoutSeconds   int              `json:"step_timeout_seconds"`
	RenderTimeoutSeconds int              `json:"render_timeout_seconds"`
	MatchThreshold       float64          `json:"match_threshold"`
}

type BrowserConfig struct {
	// Headless is a pointer so that an explicit false survives defaults.
	Headless    *bool  `json:"headless"`
	RemoteUrl   string `json:"remote_url"`
	ExecPath    string `json:"exec_path"`
	MaxSessions int    `json:"max_sessions"`
	UserAgent   string `json:"user_agent"`
}

type ArchiveConfig struct {
	OutputDir              string `json:"output_dir"`
	MaxConcurrentDownloads int    `json:"max_concurrent_downloads"`
	TimeoutSeconds         int    `json:"timeout_seconds"`
}

type JobsConfig struct {
	Port              int                 `json:"port"`
	JobTimeoutSeconds int                 `json:"job_timeout_seconds"`
	MaxConcurrentJobs int                 `json:"max_concurrent_jobs"`
	Database          configlibsql.Struct `json:"database"`
}

type Config struct {
	Portal  PortalConfig      `json:"portal"`
	Browser BrowserConfig     `json:"browser"`
	Archive ArchiveConfig     `json:"archive"`
	Jobs    JobsConfig        `json:"jobs"`
	Smtp    notify.SmtpConfig `json:"smtp"`
	Notify  []string          `json:"notify"`
	Catalog jobs.Catalog      `json:"catalog"`
}

func defaultConfig() Config {
	headless := true
	return Config{
		Portal: PortalConfig{
			EntryUrl:             portal.DefaultEntryUrl,
			StepTimeoutSeconds:   15,
			RenderTimeoutSeconds: 45,
			MatchThreshold:       0.88,
		},
		Browser: BrowserConfig{
			Headless:    &headless,
			MaxSessions: 2,
		},
		Archive: ArchiveConfig{
			OutputDir:              "outputs",
			MaxConcurrentDownloads: 3,
			TimeoutSeconds:         60,
		},
		Jobs: JobsConfig{
			Port:              8080,
			JobTimeoutSeconds: 600,
			MaxConcurrentJobs: 2,
			Database:          configlibsql.Struct{File: "<dev_state>/jobs.db"},
		},
	}
}

// loadConfig reads path, or causelist.json5 found from the cwd upwards. A
// missing default file means defaults, a missing explicit one is an error.
func loadConfig(path string) (Config, error) {
	var loaded Config
	var err error
	if path != "" {
		loaded, err = configutil.ReadConfig[Config](path)
	} else {
		loaded, err = configutil.ReadRecursively[Config]("causelist.json5")
		if os.IsNotExist(err) {
			err = nil
		}
	}
	if err != nil {
		return Config{}, err
	}
	return configutil.WithDefaults(defaultConfig(), loaded)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func (c Config) browserOptions() browser.Options {
	return browser.Options{
		RemoteUrl:   c.Browser.RemoteUrl,
		Headless:    c.Browser.Headless == nil || *c.Browser.Headless,
		ExecPath:    c.Browser.ExecPath,
		MaxSessions: c.Browser.MaxSessions,
		UserAgent:   c.Browser.UserAgent,
	}
}

func (c Config) archiveOptions() pdfarchive.Options {
	return pdfarchive.Options{
		Dir:           filepath.Join(c.Archive.OutputDir, "pdfs"),
		MaxConcurrent: c.Archive.MaxConcurrentDownloads,
		Timeout:       seconds(c.Archive.TimeoutSeconds),
		UserAgent:     c.Browser.UserAgent,
	}
}

// recordArchiveHttp dumps archive exchanges under dev/.state while verbose.
func recordArchiveHttp(opts *pdfarchive.Options) {
	if !verbose {
		return
	}
	output, err := restyutil.NewFilesystemOutput("<dev_state>/resty/pdfarchive")
	if err != nil {
		slog.Warn("not recording archive http exchanges", "err", err)
		return
	}
	slog.Debug("recording archive http exchanges", "dir", output.Dir())
	opts.Record = output
}

func (c Config) navigatorOptions(sessions portal.SessionProvider, archive portal.Downloader) portal.NavigatorOptions {
	return portal.NavigatorOptions{
		Sessions:       sessions,
		Archive:        archive,
		EntryUrl:       c.Portal.EntryUrl,
		Selectors:      c.Portal.Selectors,
		StepTimeout:    seconds(c.Portal.StepTimeoutSeconds),
		RenderTimeout:  seconds(c.Portal.RenderTimeoutSeconds),
		MatchThreshold: c.Portal.MatchThreshold,
	}
}
