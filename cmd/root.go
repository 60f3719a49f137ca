// Package cmd wires the emsolve command tree.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	assemblecmd "github.com/emalign/emsolve/cmd/assemble"
	configcmd "github.com/emalign/emsolve/cmd/config"
	ingestcmd "github.com/emalign/emsolve/cmd/ingest"
	solvecmd "github.com/emalign/emsolve/cmd/solve"
	statuscmd "github.com/emalign/emsolve/cmd/status"
	submitcmd "github.com/emalign/emsolve/cmd/submit"
	versioncmd "github.com/emalign/emsolve/cmd/version"
	watchcmd "github.com/emalign/emsolve/cmd/watch"
	"github.com/emalign/emsolve/internal/config"
	"github.com/emalign/emsolve/internal/logging"
)

// logManager is the global logging manager, created in init() and upgraded after config loads
var logManager *logging.Manager

var emsolveCmd = &cobra.Command{
	Use:   "emsolve",
	Short: "Assemble and solve EM image alignment systems",
	Long: "Emsolve assembles sparse least-squares systems from electron microscopy " +
		"point matches and solves them, either locally with a conjugate gradient " +
		"solver or by submitting a distributed direct solve to a PBS cluster.\n\n" +
		"A typical flow is assemble, then solve for small systems or submit plus " +
		"watch for large ones. Submitted jobs are tracked in a local registry so " +
		"status can find them later.",
	PersistentPreRunE: runInitialize,
}

func init() {
	logManager = logging.NewManager()

	emsolveCmd.AddCommand(ingestcmd.IngestCmd)
	emsolveCmd.AddCommand(assemblecmd.AssembleCmd)
	emsolveCmd.AddCommand(solvecmd.SolveCmd)
	emsolveCmd.AddCommand(submitcmd.SubmitCmd)
	emsolveCmd.AddCommand(statuscmd.StatusCmd)
	emsolveCmd.AddCommand(watchcmd.WatchCmd)
	emsolveCmd.AddCommand(configcmd.ConfigCmd)
	emsolveCmd.AddCommand(versioncmd.VersionCmd)
}

func runInitialize(cmd *cobra.Command, args []string) error {
	logger := logManager.Logger()

	if err := config.Init(); err != nil {
		return err
	}

	// Upgrade logging after config is available
	cfg := config.Get()
	logFile := config.ExpandPath(cfg.LogFile)
	level, ok := logging.ParseLevel(cfg.LogLevel)
	if !ok {
		level = logging.DefaultLevel
		if cfg.LogLevel != "" {
			logger.Warn("invalid log level configured, using default", "configured", cfg.LogLevel, "default", "info")
		}
	}

	if err := logManager.Upgrade(logFile, level); err != nil {
		logger.Warn("failed to enable file logging, continuing with stderr only", "error", err)
		// Don't return error - continue with bootstrap mode
	}

	return nil
}

// Execute runs the root command.
func Execute() error {
	emsolveCmd.SilenceErrors = true
	emsolveCmd.SilenceUsage = true

	defer func() { _ = logManager.Close() }()

	err := emsolveCmd.Execute()

	if err != nil {
		cmd, _, _ := emsolveCmd.Find(os.Args[1:])
		if cmd == nil {
			cmd = emsolveCmd
		}

		fmt.Printf("Error: %v\n", err)
		if !cmd.SilenceUsage {
			fmt.Printf("\n")
			cmd.SetOut(os.Stdout)
			_ = cmd.Usage()
		}

		return err
	}

	return nil
}
