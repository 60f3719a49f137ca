// Package assemble implements the assemble command for building alignment
// systems from the point-match store.
package assemble

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/emalign/emsolve/internal/assemble"
	"github.com/emalign/emsolve/internal/config"
	"github.com/emalign/emsolve/internal/matches"
	"github.com/emalign/emsolve/internal/spool"
)

// Flag variables for the assemble command.
var (
	assembleFirstZ    float64
	assembleLastZ     float64
	assembleSolveType string
	assembleTransform string
	assembleWorkers   int
)

// AssembleCmd builds a sparse alignment system and spools it.
var AssembleCmd = &cobra.Command{
	Use:   "assemble",
	Short: "Assemble an alignment system from point matches",
	Long: "Assemble a regularized sparse least-squares system from the point " +
		"matches stored for a section range.\n\n" +
		"The assembled system is written to a run directory under the spool, " +
		"identified by a run ID. Pass that ID to solve for a local conjugate " +
		"gradient solve or to submit for a distributed cluster solve.",
	Example: `  # Assemble a montage system for one section
  emsolve assemble --first-z 1000 --last-z 1000 --solve-type montage

  # Assemble a 3d system across a section range
  emsolve assemble --first-z 1000 --last-z 1200 --solve-type 3d`,
	PreRunE: validateAssemble,
	RunE:    runAssemble,
}

func init() {
	AssembleCmd.Flags().Float64Var(&assembleFirstZ, "first-z", 0, "First section z value (required)")
	AssembleCmd.Flags().Float64Var(&assembleLastZ, "last-z", 0, "Last section z value (required)")
	AssembleCmd.Flags().StringVar(&assembleSolveType, "solve-type", string(assemble.Solve3D),
		"Solve type: montage or 3d")
	AssembleCmd.Flags().StringVar(&assembleTransform, "transform", "",
		"Override the configured transform model (affine or translation)")
	AssembleCmd.Flags().IntVar(&assembleWorkers, "workers", 0,
		"Override the configured assembly worker count")

	_ = AssembleCmd.MarkFlagRequired("first-z")
	_ = AssembleCmd.MarkFlagRequired("last-z")
}

func validateAssemble(cmd *cobra.Command, args []string) error {
	st := assemble.SolveType(assembleSolveType)
	if st != assemble.SolveMontage && st != assemble.Solve3D {
		return fmt.Errorf("invalid solve type %q; must be montage or 3d", assembleSolveType)
	}
	if assembleFirstZ > assembleLastZ {
		return fmt.Errorf("first-z %g is greater than last-z %g", assembleFirstZ, assembleLastZ)
	}

	// All errors after this are runtime errors
	cmd.SilenceUsage = true
	return nil
}

func runAssemble(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.Get()

	asmCfg := cfg.Assembly
	if assembleTransform != "" {
		asmCfg.Transform = assembleTransform
	}

	store, err := matches.Open(ctx, config.ExpandPath(cfg.Store.Path))
	if err != nil {
		return err
	}
	defer store.Close()

	var opts []assemble.Option
	opts = append(opts, assemble.WithLogger(slog.Default()))
	if assembleWorkers > 0 {
		opts = append(opts, assemble.WithWorkers(assembleWorkers))
	}

	asm, err := assemble.New(store, &asmCfg, opts...)
	if err != nil {
		return err
	}

	sys, err := asm.Run(ctx, assemble.Request{
		FirstZ:    assembleFirstZ,
		LastZ:     assembleLastZ,
		SolveType: assemble.SolveType(assembleSolveType),
	})
	if err != nil {
		return err
	}

	runID := spool.NewRunID()
	runDir, err := spool.WriteRun(config.ExpandPath(cfg.Spool.Dir), runID, assembleSolveType, sys)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Run ID:   %s\n", runID)
	fmt.Fprintf(cmd.OutOrStdout(), "Run dir:  %s\n", runDir)
	fmt.Fprintf(cmd.OutOrStdout(), "Rows:     %d\n", sys.A.Rows)
	fmt.Fprintf(cmd.OutOrStdout(), "Unknowns: %d\n", sys.Unknowns())
	fmt.Fprintf(cmd.OutOrStdout(), "Nonzeros: %d\n", sys.A.NNZ())
	fmt.Fprintf(cmd.OutOrStdout(), "Matches:  %d\n", sys.MatchesUsed)
	return nil
}
