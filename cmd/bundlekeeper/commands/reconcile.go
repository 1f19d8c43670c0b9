package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newReconcileCommand() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Fail jobs whose worker stopped reporting",
		Long: `Move non-terminal jobs whose last heartbeat is older than the lease to
their error status with code LEASE_EXPIRED, so the bundle accepts new
jobs again. Nothing is rolled back; inspect the job's components before
retrying.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				lease := olderThan
				if lease == 0 {
					lease = a.cfg.Jobs.LeaseTimeout
				}

				expired, err := a.scheduler.ReconcileStale(ctx, lease)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(cmd.OutOrStdout(), expired)
				}

				if len(expired) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No stale jobs")
					return nil
				}
				for _, j := range expired {
					fmt.Fprintf(cmd.OutOrStdout(), "Expired job %s (%s, last heartbeat %s)\n",
						j.ID, j.BundleCode, formatTime(j.HeartbeatAt))
				}
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "lease timeout (default from jobs.lease_timeout)")

	return cmd
}
