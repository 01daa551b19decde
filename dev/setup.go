package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	devenv "causelist-backend/dev/env"
	jobsdb "causelist-backend/services/jobs/db"
)

func cmd(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	fmt.Printf("$ %s %s\n", name, strings.Join(args, " "))
	return cmd.Run()
}

const browserContainer = "causelist-headless-shell"

// StartHeadlessShell runs a DevTools-enabled browser on :9222 for
// browser.remote_url, reusing the container if it already exists.
func StartHeadlessShell() error {
	err := cmd("docker", "start", browserContainer)
	if err == nil {
		return nil
	}
	return cmd(
		"docker", "run", "-d",
		"--name", browserContainer,
		"-p", "9222:9222",
		"chromedp/headless-shell:latest",
	)
}

func createDb(filename, schema string) error {
	path, err := devenv.ResolvePath(filepath.Join("<dev_state>", filename))
	if err != nil {
		return err
	}

	_, err = os.Stat(path)
	if err == nil {
		fmt.Println("database already created at", path)
		return nil
	}

	fmt.Println("creating database at", path)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()
	_, err = db.Exec(schema)
	return err
}

func CreateEmptyServiceDBs() error {
	return createDb("jobs.db", jobsdb.Schema)
}

func PrintConfigLocations() {
	slog.Info("the live portal tests read dev/.state/live_portal.json5 (state, district, complex, date, remote_url), they are skipped without it.")
}
