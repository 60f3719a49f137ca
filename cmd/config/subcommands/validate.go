package subcommands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/emalign/emsolve/internal/config"
)

// ValidateCmd validates the current configuration.
var ValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the current configuration",
	Long: "Validate the current configuration.\n\n" +
		"Checks the configuration file for syntax errors and validates that all " +
		"settings have valid values. Returns exit code 0 if valid, 1 if invalid.",
	Example: `  # Validate the configuration
  emsolve config validate`,
	PreRunE: validateValidate,
	RunE:    runValidate,
}

func validateValidate(cmd *cobra.Command, args []string) error {
	// All errors after this are runtime errors
	cmd.SilenceUsage = true
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	configPath := config.ConfigFilePath()
	if configPath == "" {
		fmt.Println("No configuration file found.")
		fmt.Println("Using default configuration values.")
		return nil
	}

	// Load the configuration (this also validates it)
	if _, err := config.LoadFromPath(configPath); err != nil {
		fmt.Println("Configuration validation failed:")
		fmt.Printf("  %v\n", err)
		return fmt.Errorf("configuration is invalid")
	}

	fmt.Printf("Configuration is valid: %s\n", configPath)
	return nil
}
