package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openfroyo/bundlekeeper/pkg/engine"
)

func newAnalyzeCommand() *cobra.Command {
	var version string

	cmd := &cobra.Command{
		Use:   "analyze <code>",
		Short: "Compare a bundle version with what is installed",
		Long: `Classify every component the bundle declares as NEW, DIFF or EQUAL.

Groups, categories, languages and labels are compared against any
installed bundle; all other components only against this bundle's own
installation.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				report, err := a.scheduler.BuildAnalysisReport(ctx, args[0], version)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(cmd.OutOrStdout(), report)
				}

				tw := newTable(cmd.OutOrStdout())
				fmt.Fprintln(tw, "TYPE\tNAME\tSTATUS")
				for _, key := range report.Keys() {
					status, _ := report.Get(key.Type, key.Name)
					fmt.Fprintf(tw, "%s\t%s\t%s\n", key.Type, key.Name, status)
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&version, "version", "", "bundle version (default latest)")

	return cmd
}

func newPlanCommand() *cobra.Command {
	var (
		version   string
		strategy  string
		overrides []string
	)

	cmd := &cobra.Command{
		Use:   "plan <code>",
		Short: "Show the install plan for a bundle",
		Long: `Build the install plan: the analysis report with an action per component.

The strategy decides the action for each diff status; --override pins the
action of a single component and wins over the strategy.`,
		Example: `  # Plan with the default CREATE strategy
  bundlekeeper plan todomvc

  # Override changed components, but keep the installed about page
  bundlekeeper plan todomvc --strategy OVERRIDE --override page/todomvc-about=SKIP`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pinned, err := parseOverrides(overrides)
			if err != nil {
				return err
			}
			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				plan, err := a.scheduler.BuildInstallPlan(ctx, args[0], version,
					engine.ConflictStrategy(strings.ToUpper(strategy)), pinned)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(cmd.OutOrStdout(), plan)
				}

				out := cmd.OutOrStdout()
				tw := newTable(out)
				fmt.Fprintln(tw, "TYPE\tNAME\tSTATUS\tACTION")
				for _, key := range plan.Keys() {
					entry, _ := plan.Get(key.Type, key.Name)
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", key.Type, key.Name, entry.DiffStatus, entry.Action)
				}
				if err := tw.Flush(); err != nil {
					return err
				}

				s := engine.Summarize(plan)
				fmt.Fprintf(out, "\n%d components: %d to create, %d to override, %d to merge, %d to skip\n",
					s.Total, s.ToCreate, s.ToOverride, s.ToMerge, s.ToSkip)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&version, "version", "", "bundle version (default latest)")
	cmd.Flags().StringVar(&strategy, "strategy", string(engine.StrategyCreate),
		"conflict strategy (CREATE, CREATE_ONLY, OVERRIDE, MERGE)")
	cmd.Flags().StringArrayVar(&overrides, "override", nil, "per-component action as type/name=ACTION")

	return cmd
}

// parseOverrides turns "type/name=ACTION" flags into plan entries.
func parseOverrides(values []string) (engine.InstallPlan, error) {
	if len(values) == 0 {
		return nil, nil
	}

	plan := make(engine.InstallPlan)
	for _, v := range values {
		keyPart, actionPart, ok := strings.Cut(v, "=")
		if !ok {
			return nil, fmt.Errorf("invalid override %q: expected type/name=ACTION", v)
		}
		typePart, name, ok := strings.Cut(keyPart, "/")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid override %q: expected type/name=ACTION", v)
		}

		componentType := engine.ComponentType(typePart)
		if err := componentType.Validate(); err != nil {
			return nil, fmt.Errorf("invalid override %q: %w", v, err)
		}
		action := engine.InstallAction(strings.ToUpper(actionPart))
		if err := action.Validate(); err != nil {
			return nil, fmt.Errorf("invalid override %q: %w", v, err)
		}

		plan.Set(componentType, name, engine.ComponentInstallPlan{Action: action})
	}
	return plan, nil
}
