package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newUsageCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "usage <code>",
		Short: "Show what references a bundle's components",
		Long: `Report, for every installed component of a bundle, the engine entities
that reference it. References from the same bundle are INTERNAL, all
others EXTERNAL. External references usually block an uninstall.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				usage, err := a.scheduler.BundleUsage(ctx, args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(cmd.OutOrStdout(), usage)
				}

				tw := newTable(cmd.OutOrStdout())
				fmt.Fprintln(tw, "COMPONENT\tREFERENCED BY\tTYPE")
				for _, u := range usage {
					if len(u.References) == 0 {
						fmt.Fprintf(tw, "%s\t-\t-\n", u.Component)
						continue
					}
					for _, ref := range u.References {
						fmt.Fprintf(tw, "%s\t%s/%s\t%s\n", u.Component, ref.ComponentType, ref.Code, ref.Type)
					}
				}
				return tw.Flush()
			})
		},
	}
}
