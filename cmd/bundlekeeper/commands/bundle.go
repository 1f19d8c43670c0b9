package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openfroyo/bundlekeeper/pkg/engine"
)

func newBundleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Manage the bundle catalog",
		Long: `Register bundles and inspect the catalog.

A bundle directory holds one sub-directory per version, each with a
descriptor.yaml, or a single descriptor.yaml at its root.`,
	}

	cmd.AddCommand(newBundleAddCommand())
	cmd.AddCommand(newBundleListCommand())
	cmd.AddCommand(newBundleShowCommand())

	return cmd
}

func newBundleAddCommand() *cobra.Command {
	var repoURL string

	cmd := &cobra.Command{
		Use:   "add <path>",
		Short: "Register a bundle directory",
		Example: `  # Register a local bundle
  bundlekeeper bundle add ./bundles/todomvc --repo https://github.com/entando/todomvc.git`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				path, err := filepath.Abs(args[0])
				if err != nil {
					return fmt.Errorf("failed to resolve %s: %w", args[0], err)
				}
				if err := engine.ValidateRepoURL(repoURL); err != nil {
					return err
				}

				info, err := a.opener.Inspect(ctx, path)
				if err != nil {
					return fmt.Errorf("failed to read bundle at %s: %w", path, err)
				}

				b := &engine.Bundle{
					Code:           info.Descriptor.Code,
					RepoURL:        repoURL,
					BundleID:       engine.BundleIDFromURL(repoURL),
					LocalPath:      path,
					ComponentTypes: info.ComponentTypes,
					Versions:       info.Versions,
				}
				if err := engine.ValidateBundleCode(b.Code); err != nil {
					return err
				}
				if err := a.store.CreateBundle(ctx, b); err != nil {
					return err
				}

				if jsonOutput {
					return printJSON(cmd.OutOrStdout(), b)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered bundle %s (id %s, versions %s)\n",
					b.Code, b.BundleID, strings.Join(b.Versions, ", "))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&repoURL, "repo", "", "repository URL the bundle is distributed from")
	_ = cmd.MarkFlagRequired("repo")

	return cmd
}

func newBundleListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered bundles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				bundles, err := a.store.ListBundles(ctx)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(cmd.OutOrStdout(), bundles)
				}

				tw := newTable(cmd.OutOrStdout())
				fmt.Fprintln(tw, "CODE\tBUNDLE ID\tVERSIONS\tINSTALLED\tLAST JOB")
				for _, b := range bundles {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
						b.Code, b.BundleID, strings.Join(b.Versions, ","),
						orDash(b.InstalledVersion), orDash(b.LastJobID))
				}
				return tw.Flush()
			})
		},
	}
}

func newBundleShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <code>",
		Short: "Show a registered bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				b, err := a.store.GetBundle(ctx, args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(cmd.OutOrStdout(), b)
				}

				types := make([]string, 0, len(b.ComponentTypes))
				for _, t := range b.ComponentTypes {
					types = append(types, string(t))
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Code:           %s\n", b.Code)
				fmt.Fprintf(out, "Bundle ID:      %s\n", b.BundleID)
				fmt.Fprintf(out, "Repository:     %s\n", b.RepoURL)
				fmt.Fprintf(out, "Path:           %s\n", b.LocalPath)
				fmt.Fprintf(out, "Versions:       %s\n", strings.Join(b.Versions, ", "))
				fmt.Fprintf(out, "Components:     %s\n", strings.Join(types, ", "))
				fmt.Fprintf(out, "Installed:      %s\n", orDash(b.InstalledVersion))
				fmt.Fprintf(out, "Last job:       %s\n", orDash(b.LastJobID))
				fmt.Fprintf(out, "Registered:     %s\n", formatTime(b.CreatedAt))
				return nil
			})
		},
	}
}
