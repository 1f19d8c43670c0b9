package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bundlekeeper",
		Short: "Bundlekeeper - bundle install orchestration",
		Long: `Bundlekeeper installs and uninstalls bundles of application components.

A bundle declares pages, widgets, fragments, content, labels, static
resources and plugins. Installs are planned against what is already
installed, run one component at a time and roll back in reverse order
when a component fails.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newBundleCommand())
	rootCmd.AddCommand(newAnalyzeCommand())
	rootCmd.AddCommand(newPlanCommand())
	rootCmd.AddCommand(newInstallCommand())
	rootCmd.AddCommand(newUninstallCommand())
	rootCmd.AddCommand(newJobCommand())
	rootCmd.AddCommand(newUsageCommand())
	rootCmd.AddCommand(newReconcileCommand())

	return rootCmd
}
