// Package watch implements the watch command for blocking on submitted
// cluster jobs.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/emalign/emsolve/internal/config"
	"github.com/emalign/emsolve/internal/pbs"
	"github.com/emalign/emsolve/internal/registry"
	"github.com/emalign/emsolve/internal/watcher"
)

// Flag variables for the watch command.
var (
	watchPollInterval time.Duration
	watchTimeout      time.Duration
)

// WatchCmd blocks until a submitted job finishes.
var WatchCmd = &cobra.Command{
	Use:   "watch <job-id | run-id>",
	Short: "Wait for a submitted cluster job to finish",
	Long: "Wait for a submitted cluster job to finish.\n\n" +
		"Watches the run directory for the scheduler to deliver the job output " +
		"log and polls qstat as a fallback. A run ID resolves to its newest " +
		"submission. Exits zero when the job completes cleanly and non-zero " +
		"when it fails or the wait times out.",
	Example: `  # Wait for a job
  emsolve watch 12345.headnode

  # Wait for the newest job submitted for a run
  emsolve watch 2f1c...

  # Wait with a faster poll and a deadline
  emsolve watch 12345.headnode --poll-interval 10s --timeout 2h`,
	Args:    cobra.ExactArgs(1),
	PreRunE: validateWatch,
	RunE:    runWatch,
}

func init() {
	WatchCmd.Flags().DurationVar(&watchPollInterval, "poll-interval", 0,
		"Override the configured scheduler poll interval")
	WatchCmd.Flags().DurationVar(&watchTimeout, "timeout", 0,
		"Give up after this long (default: wait indefinitely)")
}

func validateWatch(cmd *cobra.Command, args []string) error {
	// All errors after this are runtime errors
	cmd.SilenceUsage = true
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.Get()

	reg, err := registry.Open(ctx, config.ExpandPath(cfg.Registry.Path))
	if err != nil {
		return err
	}
	defer reg.Close()

	// The argument may be a job ID or a run ID.
	job, err := reg.Resolve(ctx, args[0])
	if err != nil {
		return err
	}

	pollInterval := time.Duration(cfg.Cluster.PollInterval) * time.Second
	if watchPollInterval > 0 {
		pollInterval = watchPollInterval
	}

	if watchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, watchTimeout)
		defer cancel()
	}

	client := pbs.NewClient(pbs.WithLogger(slog.Default()))
	w := watcher.New(client, reg, pollInterval, watcher.WithLogger(slog.Default()))

	outcome, err := w.Wait(ctx, job)
	if err != nil {
		return err
	}

	if outcome.Succeeded() {
		fmt.Fprintf(cmd.OutOrStdout(), "Job %s completed after %s\n",
			outcome.JobID, outcome.Elapsed.Round(time.Second))
		fmt.Fprintf(cmd.OutOrStdout(), "Solver output: %s\n", job.OutputPath)
		fmt.Fprintf(cmd.OutOrStdout(), "Job log:       %s\n", outcome.LogPath)
		return nil
	}

	return fmt.Errorf("job %s failed with exit status %d (log: %s)",
		outcome.JobID, outcome.ExitStatus, outcome.LogPath)
}
