// Package solve implements the solve command for local conjugate gradient
// solves of spooled systems.
package solve

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/emalign/emsolve/internal/config"
	"github.com/emalign/emsolve/internal/export"
	"github.com/emalign/emsolve/internal/solver"
	"github.com/emalign/emsolve/internal/spool"
)

// Flag variables for the solve command.
var (
	solveKSPType string
	solvePCType  string
	solveRTol    float64
	solveMaxIter int
	solveWorkers int
)

// SolveCmd solves a spooled system locally.
var SolveCmd = &cobra.Command{
	Use:   "solve <run-id>",
	Short: "Solve an assembled system locally",
	Long: "Solve an assembled system with the built-in conjugate gradient " +
		"solver and write the solution as an HDF5 file into the run directory.\n\n" +
		"Local solves require ksp_type cg. The configured default, preonly with " +
		"a direct lu factorization, runs on the cluster; use submit for that.",
	Example: `  # Solve with a Jacobi-preconditioned conjugate gradient
  emsolve solve 2f1c... --ksp-type cg --pc-type jacobi

  # Tighten the convergence tolerance
  emsolve solve 2f1c... --ksp-type cg --pc-type jacobi --rtol 1e-10`,
	Args:    cobra.ExactArgs(1),
	PreRunE: validateSolve,
	RunE:    runSolve,
}

func init() {
	SolveCmd.Flags().StringVar(&solveKSPType, "ksp-type", "", "Override the configured ksp_type")
	SolveCmd.Flags().StringVar(&solvePCType, "pc-type", "", "Override the configured pc_type")
	SolveCmd.Flags().Float64Var(&solveRTol, "rtol", 0, "Override the configured relative tolerance")
	SolveCmd.Flags().IntVar(&solveMaxIter, "max-iter", 0, "Override the configured iteration limit")
	SolveCmd.Flags().IntVar(&solveWorkers, "workers", 0, "Override the matvec worker count")
}

func validateSolve(cmd *cobra.Command, args []string) error {
	// All errors after this are runtime errors
	cmd.SilenceUsage = true
	return nil
}

func runSolve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.Get()
	runID := args[0]

	opts := solver.Options{
		KSPType: cfg.Solver.KSPType,
		PCType:  cfg.Solver.PCType,
		RTol:    cfg.Solver.RTol,
		MaxIter: cfg.Solver.MaxIter,
		Workers: cfg.Assembly.Workers,
	}
	if solveKSPType != "" {
		opts.KSPType = solveKSPType
	}
	if solvePCType != "" {
		opts.PCType = solvePCType
	}
	if solveRTol > 0 {
		opts.RTol = solveRTol
	}
	if solveMaxIter > 0 {
		opts.MaxIter = solveMaxIter
	}
	if solveWorkers > 0 {
		opts.Workers = solveWorkers
	}

	runDir := filepath.Join(config.ExpandPath(cfg.Spool.Dir), runID)
	meta, sys, err := spool.ReadRun(runDir)
	if err != nil {
		return err
	}

	slog.Info("solving locally",
		"run_id", meta.ID,
		"rows", sys.A.Rows,
		"unknowns", sys.Unknowns(),
		"ksp_type", opts.KSPType,
		"pc_type", opts.PCType)

	x, res, err := solver.Solve(ctx, sys, opts)
	if errors.Is(err, solver.ErrClusterOnly) {
		return fmt.Errorf("%w; run: emsolve submit %s", err, runID)
	}
	if err != nil {
		return err
	}

	outPath, err := export.WriteSolution(runDir, sys, x, res)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), res.Message())
	fmt.Fprintf(cmd.OutOrStdout(), " solution written to %s\n", outPath)

	if !res.Converged {
		return fmt.Errorf("solve did not converge (residual %.3e after %d iterations)",
			res.Residual, res.Iterations)
	}
	return nil
}
