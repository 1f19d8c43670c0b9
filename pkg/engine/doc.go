// Package engine provides the core of the bundlekeeper install/uninstall orchestrator.
//
// # Overview
//
// A bundle is a versioned package of CMS components (pages, widgets,
// fragments, content types, plugins, static resources and so on) that must be
// applied to an application engine and a Kubernetes cluster as one logical
// unit. The engine turns a bundle into an ordered list of idempotent
// operations and drives them through a job:
//
//  1. Read - The BundleReader exposes the descriptor tree of one version
//  2. Process - Processors turn descriptors into Installable operations
//  3. Analyze - The Planner classifies each component as NEW, DIFF or EQUAL
//  4. Plan - A ConflictStrategy plus caller overrides yields an InstallPlan
//  5. Execute - The Scheduler runs the operations strictly in sequence
//  6. Rollback - On the first failure, completed operations are reversed
//
// # Core Domain Types
//
//   - Bundle: A catalog entry with its installed version and last jobs
//   - Installable: One typed, named, idempotent install/uninstall operation
//   - InstallPlan: Per-component action (CREATE/OVERRIDE/SKIP/MERGE)
//   - AnalysisReport: Per-component diff status (NEW/DIFF/EQUAL)
//   - Job: One install or uninstall run
//   - ComponentJob: The immutable outcome record of one operation
//
// # Processors
//
// Each component type is owned by exactly one Processor. Processors are held in
// a ProcessorRegistry and always iterated in rank order:
//
//	directories, resources, categories, groups, languages, labels,
//	content types, content templates, contents, fragments, page templates,
//	pages, plugins, widgets, page configurations
//
// Uninstall runs the same list in exact reverse.
//
// # Concurrency
//
// Every run executes on its own goroutine; operations within one run never
// execute in parallel. At most one non-terminal job may exist per bundle. The
// guard is a conditional insert in the JobStore, not an in-process lock, so it
// holds across several orchestrator processes sharing one store.
//
// # Error Classification
//
// Errors are classified for the transport layer:
//
//   - Validation: malformed bundle code, unknown bundle (no job created)
//   - Conflict: a non-terminal job already exists (JobConflictError)
//   - Processing: uniform "Error processing <type> components" (ProcessingError)
//   - Operation: an Installable failed; install runs roll back
//
// Use the error helper functions to classify and inspect errors:
//
//	res, err := scheduler.StartInstall(ctx, "todomvc", engine.InstallOptions{})
//	if engine.IsJobConflict(err) {
//	    // poll res.JobID instead
//	}
//
// # Example Usage
//
//	registry := processors.DefaultRegistry(engineClient, clusterClient)
//	scheduler := engine.NewScheduler(store, opener, registry)
//
//	report, err := scheduler.BuildAnalysisReport(ctx, "todomvc", "")
//	plan, err := scheduler.BuildInstallPlan(ctx, "todomvc", "", engine.StrategyOverride, nil)
//
//	res, err := scheduler.StartInstall(ctx, "todomvc", engine.InstallOptions{Overrides: plan})
//	scheduler.Wait()
//	job, err := scheduler.GetJob(ctx, res.JobID)
package engine
