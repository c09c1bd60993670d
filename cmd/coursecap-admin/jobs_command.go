package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/noah-isme/coursecap-api/internal/models"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and run background jobs",
	}

	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsRunCommand(ctx))

	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show registered jobs and their last run",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			infos, err := app.Services.Jobs.List(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Key", "Interval", "Last run", "Description"},
				jobRows(infos),
			))
			return nil
		},
	}
}

func newJobsRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run <job-key>",
		Short: "Run a job in the foreground",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			job, ok := app.Registered[args[0]]
			if !ok {
				keys := make([]string, 0, len(app.Registered))
				for key := range app.Registered {
					keys = append(keys, key)
				}
				sort.Strings(keys)
				return fmt.Errorf("unknown job %q (registered: %v)", args[0], keys)
			}
			if err := app.Services.Runner.Run(cmd.Context(), job); err != nil {
				return fmt.Errorf("job %s failed: %w", job.Key(), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %s finished\n", job.Key())
			return nil
		},
	}
}

func jobRows(infos []models.JobInfo) [][]string {
	rows := make([][]string, 0, len(infos))
	for _, info := range infos {
		interval := info.IntervalStr
		if interval == "" {
			interval = "manual"
		}
		last := "never"
		if info.LastRun != nil {
			last = info.LastRun.StartedAt.Format("2006-01-02 15:04")
			switch {
			case info.LastRun.Failed:
				last += " (failed)"
			case info.LastRun.FinishedAt == nil:
				last += " (running)"
			}
		}
		rows = append(rows, []string{info.Key, interval, last, info.Description})
	}
	return rows
}
