// Package version implements the version command.
package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/emalign/emsolve/internal/version"
)

// VersionCmd prints the release version and build provenance of the binary.
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and build information",
	Long: "Show version and build information.\n\n" +
		"Prints the emsolve release version together with the git commit and " +
		"build date the binary was produced from; include this output when " +
		"reporting solver discrepancies.",
	Example: `  emsolve version`,
	PreRunE: validateVersion,
	RunE:    runVersion,
}

func validateVersion(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	return nil
}

func runVersion(cmd *cobra.Command, args []string) error {
	fmt.Fprintln(cmd.OutOrStdout(), version.Get().String())
	return nil
}
