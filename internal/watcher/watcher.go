// Package watcher waits for submitted cluster jobs to finish. It combines
// two signals: filesystem notification for the job output log, which the
// scheduler writes back when the job ends, and periodic qstat polling for
// jobs whose log never appears.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/emalign/emsolve/internal/metrics"
	"github.com/emalign/emsolve/internal/pbs"
	"github.com/emalign/emsolve/internal/registry"
)

// Outcome describes how a watched job ended.
type Outcome struct {
	JobID      string
	State      pbs.State
	ExitStatus int
	HasExit    bool
	LogPath    string
	Elapsed    time.Duration
}

// Succeeded reports whether the job exited cleanly.
func (o *Outcome) Succeeded() bool {
	return !o.HasExit || o.ExitStatus == 0
}

// Watcher waits for jobs to reach a terminal state.
type Watcher struct {
	client       *pbs.Client
	reg          *registry.Registry
	pollInterval time.Duration
	limiter      *rate.Limiter
	logger       *slog.Logger
}

// Option configures the watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithPollInterval overrides the qstat poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.pollInterval = d
			w.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// New creates a watcher. The registry may be nil; when set, observed state
// changes are written back to it.
func New(client *pbs.Client, reg *registry.Registry, pollInterval time.Duration, opts ...Option) *Watcher {
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	w := &Watcher{
		client:       client,
		reg:          reg,
		pollInterval: pollInterval,
		// One qstat per interval at most, regardless of how often the
		// log directory churns.
		limiter: rate.NewLimiter(rate.Every(pollInterval), 1),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Wait blocks until the job reaches a terminal state or ctx is done.
func (w *Watcher) Wait(ctx context.Context, job *registry.Job) (*Outcome, error) {
	start := time.Now()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem watcher; %w", err)
	}
	defer fsw.Close()

	// Watch the directory; the log file itself does not exist until the
	// scheduler copies it back.
	logDir := filepath.Dir(job.LogPath)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory; %w", err)
	}
	if err := fsw.Add(logDir); err != nil {
		return nil, fmt.Errorf("failed to watch %q; %w", logDir, err)
	}

	w.logger.Info("watching job",
		"job_id", job.JobID,
		"log", job.LogPath,
		"poll_interval", w.pollInterval)

	// The log may have landed before the watch was set up.
	if w.logExists(job.LogPath) {
		return w.finish(ctx, job, start)
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	var lastState pbs.State
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil, fmt.Errorf("filesystem watcher closed unexpectedly")
			}
			if event.Name != job.LogPath {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			w.logger.Debug("job log appeared", "job_id", job.JobID, "path", event.Name)
			return w.finish(ctx, job, start)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil, fmt.Errorf("filesystem watcher closed unexpectedly")
			}
			w.logger.Warn("filesystem watcher error", "error", err)

		case <-ticker.C:
			if !w.limiter.Allow() {
				continue
			}

			status, err := w.client.Status(ctx, job.JobID)
			if errors.Is(err, pbs.ErrUnknownJob) {
				// The scheduler already forgot the job. Trust the log if
				// it exists; otherwise report what we last saw.
				w.logger.Debug("job left scheduler view", "job_id", job.JobID)
				return w.finish(ctx, job, start)
			}
			if err != nil {
				w.logger.Warn("status poll failed", "job_id", job.JobID, "error", err)
				continue
			}

			if status.State != lastState {
				lastState = status.State
				w.logger.Info("job state changed", "job_id", job.JobID, "state", status.State)
				w.recordState(ctx, job.JobID, status)
			}
			if status.State.Terminal() {
				return w.outcome(job, status, start), nil
			}
		}
	}
}

// finish resolves the final state once the log file signals completion.
func (w *Watcher) finish(ctx context.Context, job *registry.Job, start time.Time) (*Outcome, error) {
	status, err := w.client.Status(ctx, job.JobID)
	if errors.Is(err, pbs.ErrUnknownJob) {
		status = &pbs.JobStatus{ID: job.JobID, State: pbs.StateCompleted}
	} else if err != nil {
		return nil, err
	}

	// qstat can lag the log write; the log on disk wins.
	if !status.State.Terminal() && w.logExists(job.LogPath) {
		status.State = pbs.StateCompleted
	}

	w.recordState(ctx, job.JobID, status)
	return w.outcome(job, status, start), nil
}

func (w *Watcher) outcome(job *registry.Job, status *pbs.JobStatus, start time.Time) *Outcome {
	o := &Outcome{
		JobID:      job.JobID,
		State:      status.State,
		ExitStatus: status.ExitStatus,
		HasExit:    status.HasExit,
		LogPath:    job.LogPath,
		Elapsed:    time.Since(start),
	}

	label := "succeeded"
	if !o.Succeeded() {
		label = "failed"
	}
	metrics.JobsFinished.WithLabelValues(label).Inc()

	w.logger.Info("job finished",
		"job_id", o.JobID,
		"state", o.State,
		"exit_status", o.ExitStatus,
		"elapsed", o.Elapsed)
	return o
}

func (w *Watcher) recordState(ctx context.Context, jobID string, status *pbs.JobStatus) {
	if w.reg == nil {
		return
	}

	var exit *int
	if status.HasExit {
		n := status.ExitStatus
		exit = &n
	}
	if err := w.reg.UpdateState(ctx, jobID, status.State, exit); err != nil {
		w.logger.Warn("failed to record job state", "job_id", jobID, "error", err)
	}
}

func (w *Watcher) logExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
