// Package submit implements the submit command for sending assembled
// systems to the cluster's distributed solver.
package submit

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/emalign/emsolve/internal/config"
	"github.com/emalign/emsolve/internal/export"
	"github.com/emalign/emsolve/internal/pbs"
	"github.com/emalign/emsolve/internal/registry"
	"github.com/emalign/emsolve/internal/spool"
)

// Flag variables for the submit command.
var (
	submitQueue    string
	submitNodes    int
	submitPPN      int
	submitWalltime string
	submitEmail    string
)

// SubmitCmd renders a batch job for a spooled system and hands it to the
// scheduler.
var SubmitCmd = &cobra.Command{
	Use:   "submit <run-id>",
	Short: "Submit an assembled system to the cluster solver",
	Long: "Write the distributed solver input for an assembled system, render " +
		"a PBS job script for it, and submit the job with qsub.\n\n" +
		"The job runs the MPI solver binary with a direct lu factorization " +
		"through superlu_dist and writes its solution back into the run " +
		"directory. The job is recorded in the local registry; use status to " +
		"check on it and watch to block until it finishes.",
	Example: `  # Submit with configured cluster settings
  emsolve submit 2f1c...

  # Submit to a different queue with a longer walltime
  emsolve submit 2f1c... --queue overnight --walltime 24:00:00`,
	Args:    cobra.ExactArgs(1),
	PreRunE: validateSubmit,
	RunE:    runSubmit,
}

func init() {
	SubmitCmd.Flags().StringVar(&submitQueue, "queue", "", "Override the configured queue")
	SubmitCmd.Flags().IntVar(&submitNodes, "nodes", 0, "Override the configured node count")
	SubmitCmd.Flags().IntVar(&submitPPN, "ppn", 0, "Override the configured processes per node")
	SubmitCmd.Flags().StringVar(&submitWalltime, "walltime", "", "Override the configured walltime")
	SubmitCmd.Flags().StringVar(&submitEmail, "email", "", "Override the configured abort notification address")
}

func validateSubmit(cmd *cobra.Command, args []string) error {
	// All errors after this are runtime errors
	cmd.SilenceUsage = true

	// Mirror the solver routing: a configuration the local solver accepts
	// must not be shipped to the cluster, where only the direct
	// factorization makes sense.
	cfg := config.Get()
	if cfg.Solver.KSPType == "cg" && cfg.Solver.PCType != "lu" {
		return fmt.Errorf(
			"solver config ksp_type=%s pc_type=%s solves locally; run emsolve solve, or set ksp_type: preonly and pc_type: lu to use the cluster",
			cfg.Solver.KSPType, cfg.Solver.PCType)
	}
	return nil
}

func runSubmit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.Get()
	runID := args[0]

	runDir := filepath.Join(config.ExpandPath(cfg.Spool.Dir), runID)
	meta, sys, err := spool.ReadRun(runDir)
	if err != nil {
		return err
	}

	inputPath, err := export.WriteSolverInput(runDir, sys)
	if err != nil {
		return err
	}
	outputPath := export.SolverOutputPath(runDir)

	spec := jobSpec(cfg, meta, runDir, inputPath, outputPath)
	scriptPath, err := pbs.WriteScript(runDir, spec)
	if err != nil {
		return err
	}

	client := pbs.NewClient(pbs.WithLogger(slog.Default()))
	jobID, err := client.Submit(ctx, scriptPath)
	if err != nil {
		return err
	}

	reg, err := registry.Open(ctx, config.ExpandPath(cfg.Registry.Path))
	if err != nil {
		return err
	}
	defer reg.Close()

	job := &registry.Job{
		JobID:      jobID,
		RunID:      meta.ID,
		Name:       spec.Name,
		Queue:      spec.Queue,
		ScriptPath: scriptPath,
		LogPath:    spec.LogPath,
		InputPath:  inputPath,
		OutputPath: outputPath,
		State:      pbs.StateQueued,
	}
	if err := reg.Save(ctx, job); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Job ID:  %s\n", jobID)
	fmt.Fprintf(cmd.OutOrStdout(), "Queue:   %s (%d nodes x %d ppn, walltime %s)\n",
		spec.Queue, spec.Nodes, spec.PPN, spec.Walltime)
	fmt.Fprintf(cmd.OutOrStdout(), "Log:     %s\n", spec.LogPath)
	fmt.Fprintf(cmd.OutOrStdout(), "Output:  %s\n", outputPath)
	return nil
}

// jobSpec builds the template inputs from config, flag overrides, and the
// run being submitted.
func jobSpec(cfg *config.Config, meta *spool.RunMeta, runDir, inputPath, outputPath string) *pbs.JobSpec {
	spec := &pbs.JobSpec{
		Name:       "em_" + shortID(meta.ID),
		Queue:      cfg.Cluster.Queue,
		Nodes:      cfg.Cluster.Nodes,
		PPN:        cfg.Cluster.PPN,
		Walltime:   cfg.Cluster.Walltime,
		LogPath:    filepath.Join(runDir, "job.log"),
		Email:      cfg.Cluster.Email,
		ModuleLoad: cfg.Cluster.ModuleLoad,

		MPIExec:       cfg.Cluster.MPIExec,
		SolverBinary:  cfg.Cluster.SolverBinary,
		InputPath:     inputPath,
		OutputPath:    outputPath,
		KSPType:       cfg.Solver.KSPType,
		PCType:        cfg.Solver.PCType,
		FactorPackage: cfg.Solver.FactorPackage,
		LogView:       cfg.Solver.LogView,
	}

	if submitQueue != "" {
		spec.Queue = submitQueue
	}
	if submitNodes > 0 {
		spec.Nodes = submitNodes
	}
	if submitPPN > 0 {
		spec.PPN = submitPPN
	}
	if submitWalltime != "" {
		spec.Walltime = submitWalltime
	}
	if submitEmail != "" {
		spec.Email = submitEmail
	}

	return spec
}

// shortID truncates a run ID for use in a job name; PBS job names are
// limited to 15 characters.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
