package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/openfroyo/bundlekeeper/pkg/engine"
)

const jobPollInterval = 250 * time.Millisecond

func newInstallCommand() *cobra.Command {
	var (
		version   string
		strategy  string
		overrides []string
		noWait    bool
	)

	cmd := &cobra.Command{
		Use:   "install <code>",
		Short: "Install a bundle",
		Long: `Start an install job for a registered bundle.

Only one job per bundle runs at a time. Installing content that is already
installed returns the completed job without running again. When a
component fails, the components installed by the job are removed in
reverse order.

With --no-wait the job id is printed as soon as the job is accepted.
The process still lets the job finish before it exits.`,
		Example: `  # Install the latest version
  bundlekeeper install todomvc

  # Upgrade, replacing changed components
  bundlekeeper install todomvc --version 1.0.1 --strategy OVERRIDE`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pinned, err := parseOverrides(overrides)
			if err != nil {
				return err
			}
			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				result, err := a.scheduler.StartInstall(ctx, args[0], engine.InstallOptions{
					Version:   version,
					Strategy:  engine.ConflictStrategy(strings.ToUpper(strategy)),
					Overrides: pinned,
					User:      a.cfg.Jobs.User,
				})
				return reportStart(ctx, cmd, a, result, err, noWait)
			})
		},
	}

	cmd.Flags().StringVar(&version, "version", "", "bundle version (default latest)")
	cmd.Flags().StringVar(&strategy, "strategy", string(engine.StrategyCreate),
		"conflict strategy (CREATE, CREATE_ONLY, OVERRIDE, MERGE)")
	cmd.Flags().StringArrayVar(&overrides, "override", nil, "per-component action as type/name=ACTION")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "print the job id without following progress")

	return cmd
}

func newUninstallCommand() *cobra.Command {
	var noWait bool

	cmd := &cobra.Command{
		Use:   "uninstall <code>",
		Short: "Uninstall a bundle",
		Long: `Start an uninstall job for an installed bundle.

Components the bundle owns are removed in the reverse of install order.
The first failure stops the job; nothing is reinstalled.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				result, err := a.scheduler.StartUninstall(ctx, args[0], engine.UninstallOptions{User: a.cfg.Jobs.User})
				return reportStart(ctx, cmd, a, result, err, noWait)
			})
		},
	}

	cmd.Flags().BoolVar(&noWait, "no-wait", false, "print the job id without following progress")

	return cmd
}

// reportStart prints the outcome of a start request and, unless noWait,
// follows the job to a terminal status.
func reportStart(ctx context.Context, cmd *cobra.Command, a *app, result *engine.StartResult, err error, noWait bool) error {
	out := cmd.OutOrStdout()

	if engine.IsJobConflict(err) {
		if jsonOutput {
			_ = printJSON(out, result)
		} else {
			fmt.Fprintf(out, "Job %s is already in progress for this bundle\n", engine.ExistingJobID(err))
		}
		return err
	}
	if err != nil {
		return err
	}

	if noWait || result.Existing {
		if jsonOutput {
			return printJSON(out, result)
		}
		if result.Existing {
			fmt.Fprintf(out, "Bundle content already installed by job %s\n", result.JobID)
		} else {
			fmt.Fprintf(out, "Started job %s\n", result.JobID)
		}
		return nil
	}

	job, err := waitForJob(ctx, a.scheduler, result.JobID, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if jsonOutput {
		if err := printJSON(out, job); err != nil {
			return err
		}
	} else {
		printJob(out, job)
	}

	if job.Status != job.Type.CompletedStatus() {
		return fmt.Errorf("job %s ended with %s: %s", job.ID, job.Status, job.Error)
	}
	return nil
}

// waitForJob polls until the job reaches a terminal status, writing
// progress changes to progress.
func waitForJob(ctx context.Context, s *engine.Scheduler, jobID string, progress io.Writer) (*engine.Job, error) {
	ticker := time.NewTicker(jobPollInterval)
	defer ticker.Stop()

	var (
		lastStatus   engine.JobStatus
		lastProgress = -1.0
	)
	for {
		job, err := s.GetJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job.Status != lastStatus || job.Progress != lastProgress {
			fmt.Fprintf(progress, "%s %s %3.0f%%\n", job.ID, job.Status, job.Progress*100)
			lastStatus, lastProgress = job.Status, job.Progress
		}
		if job.Status.IsTerminal() {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("stopped following job %s: %w", jobID, ctx.Err())
		case <-ticker.C:
		}
	}
}
