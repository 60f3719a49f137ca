// Package status implements the status command for inspecting submitted
// cluster jobs.
package status

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/emalign/emsolve/internal/config"
	"github.com/emalign/emsolve/internal/pbs"
	"github.com/emalign/emsolve/internal/registry"
)

// Flag variables for the status command.
var (
	statusAll            bool
	statusPurgeOlderThan time.Duration
)

// StatusCmd shows the state of submitted jobs.
var StatusCmd = &cobra.Command{
	Use:   "status [job-id | run-id]",
	Short: "Show the state of submitted cluster jobs",
	Long: "Show the state of submitted cluster jobs.\n\n" +
		"Without arguments, lists active jobs from the local registry. With a " +
		"job ID, or a run ID resolved to its newest submission, queries the " +
		"scheduler for the current state and records it.",
	Example: `  # List active jobs
  emsolve status

  # List all jobs, including finished ones
  emsolve status --all

  # Query the scheduler for one job
  emsolve status 12345.headnode

  # Query the newest job submitted for a run
  emsolve status 2f1c...

  # Drop registry rows for jobs finished more than a month ago
  emsolve status --purge-older-than 720h`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: validateStatus,
	RunE:    runStatus,
}

func init() {
	StatusCmd.Flags().BoolVar(&statusAll, "all", false, "Include finished jobs in the listing")
	StatusCmd.Flags().DurationVar(&statusPurgeOlderThan, "purge-older-than", 0,
		"Remove registry rows for jobs finished longer ago than this")
}

func validateStatus(cmd *cobra.Command, args []string) error {
	// All errors after this are runtime errors
	cmd.SilenceUsage = true
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.Get()

	reg, err := registry.Open(ctx, config.ExpandPath(cfg.Registry.Path))
	if err != nil {
		return err
	}
	defer reg.Close()

	if statusPurgeOlderThan > 0 {
		n, err := reg.Purge(ctx, statusPurgeOlderThan)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Purged %d finished job(s)\n", n)
		return nil
	}

	if len(args) == 1 {
		return showJob(cmd, reg, args[0])
	}
	return listJobs(cmd, reg)
}

func showJob(cmd *cobra.Command, reg *registry.Registry, id string) error {
	ctx := cmd.Context()

	// The argument may be a job ID or a run ID.
	job, err := reg.Resolve(ctx, id)
	if err != nil {
		return err
	}
	jobID := job.JobID

	client := pbs.NewClient()
	status, err := client.Status(ctx, jobID)
	if errors.Is(err, pbs.ErrUnknownJob) {
		// The scheduler retention window has passed; report what the
		// registry last saw.
		fmt.Fprintf(cmd.OutOrStdout(), "Job %s is no longer known to the scheduler\n", jobID)
		fmt.Fprintf(cmd.OutOrStdout(), "Last recorded state: %s\n", job.State)
		if job.ExitStatus != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Exit status:         %d\n", *job.ExitStatus)
		}
		return nil
	}
	if err != nil {
		return err
	}

	var exit *int
	if status.HasExit {
		n := status.ExitStatus
		exit = &n
	}
	if err := reg.UpdateState(ctx, jobID, status.State, exit); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Job:    %s (%s)\n", jobID, job.Name)
	fmt.Fprintf(cmd.OutOrStdout(), "Run:    %s\n", job.RunID)
	fmt.Fprintf(cmd.OutOrStdout(), "Queue:  %s\n", status.Queue)
	fmt.Fprintf(cmd.OutOrStdout(), "State:  %s\n", status.State)
	if status.HasExit {
		fmt.Fprintf(cmd.OutOrStdout(), "Exit:   %d\n", status.ExitStatus)
	}
	return nil
}

func listJobs(cmd *cobra.Command, reg *registry.Registry) error {
	jobs, err := reg.List(cmd.Context(), !statusAll)
	if err != nil {
		return err
	}

	if len(jobs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No jobs found.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "JOB ID\tNAME\tRUN\tQUEUE\tSTATE\tSUBMITTED")
	for _, job := range jobs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			job.JobID, job.Name, shortID(job.RunID), job.Queue, job.State,
			job.SubmittedAt.Local().Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
