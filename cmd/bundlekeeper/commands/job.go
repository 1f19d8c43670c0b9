package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/openfroyo/bundlekeeper/pkg/engine"
)

func newJobCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Inspect install and uninstall jobs",
	}

	cmd.AddCommand(newJobGetCommand())
	cmd.AddCommand(newJobListCommand())
	cmd.AddCommand(newJobComponentsCommand())

	return cmd
}

func newJobGetCommand() *cobra.Command {
	var events bool

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				job, err := a.scheduler.GetJob(ctx, args[0])
				if err != nil {
					return err
				}

				var timeline []*engine.Event
				if events {
					timeline, err = a.store.ListEvents(ctx, job.ID, 0)
					if err != nil {
						return err
					}
				}

				out := cmd.OutOrStdout()
				if jsonOutput {
					if !events {
						return printJSON(out, job)
					}
					return printJSON(out, struct {
						*engine.Job
						Events []*engine.Event `json:"events"`
					}{job, timeline})
				}

				printJob(out, job)
				if events {
					fmt.Fprintln(out)
					tw := newTable(out)
					fmt.Fprintln(tw, "TIME\tLEVEL\tTYPE\tMESSAGE")
					for _, e := range timeline {
						fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", formatTime(e.Timestamp), e.Level, e.Type, e.Message)
					}
					return tw.Flush()
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&events, "events", false, "include the job's event timeline")

	return cmd
}

func newJobListCommand() *cobra.Command {
	var (
		bundleCode string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				jobs, err := a.scheduler.ListJobs(ctx, bundleCode, limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(cmd.OutOrStdout(), jobs)
				}

				tw := newTable(cmd.OutOrStdout())
				fmt.Fprintln(tw, "ID\tBUNDLE\tVERSION\tTYPE\tSTATUS\tSTARTED")
				for _, j := range jobs {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
						j.ID, j.BundleCode, orDash(j.BundleVersion), j.Type, j.Status, formatTime(j.StartedAt))
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&bundleCode, "bundle", "", "only jobs of this bundle")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of jobs (0 for all)")

	return cmd
}

func newJobComponentsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "components <id>",
		Short: "List the component jobs of a job in execution order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				records, err := a.scheduler.ComponentJobs(ctx, args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(cmd.OutOrStdout(), records)
				}

				tw := newTable(cmd.OutOrStdout())
				fmt.Fprintln(tw, "SEQ\tTYPE\tNAME\tACTION\tSTATUS\tERROR")
				for _, r := range records {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
						r.Sequence, r.ComponentType, r.ComponentName, orDash(string(r.Action)), r.Status, orDash(r.Error))
				}
				return tw.Flush()
			})
		},
	}
}

func printJob(w io.Writer, job *engine.Job) {
	fmt.Fprintf(w, "Job:        %s\n", job.ID)
	fmt.Fprintf(w, "Bundle:     %s %s\n", job.BundleCode, job.BundleVersion)
	fmt.Fprintf(w, "Type:       %s\n", job.Type)
	fmt.Fprintf(w, "Status:     %s\n", job.Status)
	fmt.Fprintf(w, "Progress:   %.0f%%\n", job.Progress*100)
	fmt.Fprintf(w, "Started:    %s\n", formatTime(job.StartedAt))
	if job.FinishedAt != nil {
		fmt.Fprintf(w, "Finished:   %s (%s)\n", formatTime(*job.FinishedAt), job.Duration().Round(time.Millisecond))
	}
	if job.Error != "" {
		fmt.Fprintf(w, "Error:      %s [%s]\n", job.Error, job.ErrorCode)
	}
}
