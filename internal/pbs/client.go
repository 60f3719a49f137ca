package pbs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/emalign/emsolve/internal/metrics"
)

// ErrUnknownJob is returned when qstat no longer knows the job. Schedulers
// forget completed jobs after a retention window, so callers treat this as
// a likely-finished signal rather than a hard failure.
var ErrUnknownJob = errors.New("job unknown to scheduler")

// JobStatus is the parsed qstat view of one job.
type JobStatus struct {
	ID         string
	Name       string
	Queue      string
	State      State
	ExitStatus int
	HasExit    bool
}

// Client talks to the scheduler through its command line tools.
type Client struct {
	qsub   string
	qstat  string
	logger *slog.Logger
}

// Option configures the client.
type Option func(*Client)

// WithCommands overrides the qsub and qstat binaries, mainly for tests.
func WithCommands(qsub, qstat string) Option {
	return func(c *Client) {
		c.qsub = qsub
		c.qstat = qstat
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a scheduler client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		qsub:   "qsub",
		qstat:  "qstat",
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit hands a job script to the scheduler and returns the job ID.
// The script runs with its own directory as working directory.
func (c *Client) Submit(ctx context.Context, scriptPath string) (string, error) {
	cmd := exec.CommandContext(ctx, c.qsub, filepath.Base(scriptPath))
	cmd.Dir = filepath.Dir(scriptPath)

	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("qsub failed: %s; %w", strings.TrimSpace(string(exitErr.Stderr)), err)
		}
		return "", fmt.Errorf("failed to run qsub; %w", err)
	}

	// qsub prints the job ID on its own line, e.g. "12345.headnode".
	jobID := strings.TrimSpace(string(out))
	if fields := strings.Fields(jobID); len(fields) > 0 {
		jobID = fields[len(fields)-1]
	}
	if jobID == "" {
		return "", fmt.Errorf("qsub returned no job ID")
	}

	metrics.JobsSubmitted.Inc()
	c.logger.Info("job submitted", "job_id", jobID, "script", scriptPath)
	return jobID, nil
}

// Status queries qstat -f for one job.
func (c *Client) Status(ctx context.Context, jobID string) (*JobStatus, error) {
	metrics.SchedulerPolls.Inc()

	cmd := exec.CommandContext(ctx, c.qstat, "-f", jobID)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			stderr := string(exitErr.Stderr)
			if strings.Contains(stderr, "Unknown Job") {
				return nil, fmt.Errorf("%s: %w", jobID, ErrUnknownJob)
			}
			return nil, fmt.Errorf("qstat failed: %s; %w", strings.TrimSpace(stderr), err)
		}
		return nil, fmt.Errorf("failed to run qstat; %w", err)
	}

	status := parseQstat(string(out))
	if status.ID == "" {
		status.ID = jobID
	}
	return status, nil
}

// parseQstat reads the "key = value" attribute block qstat -f prints.
// Continuation lines are indented with a tab and belong to the previous
// value; only the attributes used here are kept.
func parseQstat(out string) *JobStatus {
	status := &JobStatus{State: StateUnknown}

	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "\t") {
			continue
		}
		line = strings.TrimSpace(line)

		if rest, ok := strings.CutPrefix(line, "Job Id:"); ok {
			status.ID = strings.TrimSpace(rest)
			continue
		}

		key, value, ok := strings.Cut(line, " = ")
		if !ok {
			continue
		}
		switch key {
		case "Job_Name":
			status.Name = value
		case "queue":
			status.Queue = value
		case "job_state":
			status.State = ParseState(value)
		case "exit_status":
			if n, err := strconv.Atoi(value); err == nil {
				status.ExitStatus = n
				status.HasExit = true
			}
		}
	}

	return status
}
