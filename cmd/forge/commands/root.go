package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	telemetryConfigPath string
	verbose             bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "forge",
		Short: "ImageForge - Container Environment Provisioning Sequencer",
		Long: `ImageForge turns a declarative recipe of provisioning steps into a
fully built container environment.

Recipes are written in CUE and executed strictly in order: users,
downloaded tools, system and language packages, and image runtime
metadata such as exposed ports, volumes, and the entrypoint. The first
failing step stops the run and every later step is left untouched.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	rootCmd.PersistentFlags().StringVarP(&telemetryConfigPath, "telemetry-config", "c", "", "telemetry config file path (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newStepsCommand())
	rootCmd.AddCommand(newKindsCommand())

	return rootCmd
}
