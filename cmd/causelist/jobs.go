package main

import (
	"fmt"
	"os"

	"causelist-backend/services/jobs"

	"github.com/spf13/cobra"
)

var jobsLimit int

func init() {
	jobsCmd.Flags().IntVarP(&jobsLimit, "limit", "n", 20, "number of recent jobs to show")
	rootCmd.AddCommand(jobsCmd)
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Prints the most recent lookup jobs of the job database.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		database, err := config.Jobs.Database.OpenDB()
		if err != nil {
			return fmt.Errorf("open job database: %w", err)
		}
		defer database.Close()

		list, err := jobs.ReadJobs(cmd.Context(), database, jobsLimit)
		if err != nil {
			return err
		}
		renderJobs(os.Stdout, list)
		return nil
	},
}
