package engine_test

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/openfroyo/bundlekeeper/pkg/engine"
)

// Example_strategies shows the action each strategy assigns to a changed
// component. New components are always created, unchanged ones skipped.
func Example_strategies() {
	for _, s := range []engine.ConflictStrategy{
		engine.StrategyCreate,
		engine.StrategyCreateOnly,
		engine.StrategyOverride,
		engine.StrategyMerge,
	} {
		fmt.Printf("%s: NEW=%s DIFF=%s EQUAL=%s\n", s,
			s.ActionFor(engine.DiffNew), s.ActionFor(engine.DiffDiff), s.ActionFor(engine.DiffEqual))
	}

	// Output:
	// CREATE: NEW=CREATE DIFF=SKIP EQUAL=SKIP
	// CREATE_ONLY: NEW=CREATE DIFF=SKIP EQUAL=SKIP
	// OVERRIDE: NEW=CREATE DIFF=OVERRIDE EQUAL=SKIP
	// MERGE: NEW=CREATE DIFF=MERGE EQUAL=SKIP
}

// Example_installPlan builds a plan by hand and summarizes it.
func Example_installPlan() {
	plan := engine.InstallPlan{}
	plan.Set(engine.ComponentWidget, "todomvc-list", engine.ComponentInstallPlan{
		DiffStatus: engine.DiffNew, Action: engine.ActionCreate,
	})
	plan.Set(engine.ComponentPage, "todomvc-about", engine.ComponentInstallPlan{
		DiffStatus: engine.DiffDiff, Action: engine.ActionOverride,
	})
	plan.Set(engine.ComponentPage, "todomvc", engine.ComponentInstallPlan{
		DiffStatus: engine.DiffEqual, Action: engine.ActionSkip,
	})

	for _, key := range plan.Keys() {
		entry, _ := plan.Get(key.Type, key.Name)
		fmt.Println(key, entry.DiffStatus, entry.Action)
	}

	s := engine.Summarize(plan)
	fmt.Printf("total=%d create=%d override=%d skip=%d\n", s.Total, s.ToCreate, s.ToOverride, s.ToSkip)

	// Output:
	// page/todomvc EQUAL SKIP
	// page/todomvc-about DIFF OVERRIDE
	// widget/todomvc-list NEW CREATE
	// total=3 create=1 override=1 skip=1
}

// Example_errorHandling demonstrates error classification and handling.
func Example_errorHandling() {
	throttled := engine.NewThrottledError("engine is rate limiting", nil).
		WithCode(engine.ErrCodeRateLimited).
		WithOperation("register_widget")

	notInstalled := engine.NewValidationError("bundle is not installed").
		WithCode(engine.ErrCodeNotInstalled).
		WithResource("todomvc")

	fmt.Println(engine.IsRetryable(throttled), engine.ErrorCode(throttled))
	fmt.Println(engine.IsRetryable(notInstalled), engine.ErrorCode(notInstalled))

	// Output:
	// true RATE_LIMITED
	// false NOT_INSTALLED
}

// Example_processingError shows that a processor failure names only the
// component type while the cause stays inspectable.
func Example_processingError() {
	err := engine.NewProcessingError(engine.ComponentPageTemplate, fs.ErrNotExist)

	fmt.Println(err)
	fmt.Println(errors.Is(err, fs.ErrNotExist))
	fmt.Println(engine.ErrorCode(err))

	// Output:
	// Error processing page template components
	// true
	// PROCESSING_FAILED
}

// Example_jobStateMachine walks the allowed transitions of an install job.
func Example_jobStateMachine() {
	status := engine.JobTypeInstall.CreatedStatus()
	for _, next := range []engine.JobStatus{
		engine.JobStatusInstallCompleted,
		engine.JobStatusInstallInProgress,
		engine.JobStatusInstallRollback,
	} {
		ok := status.CanTransitionTo(next)
		fmt.Printf("%s -> %s: %v\n", status, next, ok)
		if ok {
			status = next
		}
	}
	fmt.Println("terminal:", status.IsTerminal())

	// Output:
	// INSTALL_CREATED -> INSTALL_COMPLETED: false
	// INSTALL_CREATED -> INSTALL_IN_PROGRESS: true
	// INSTALL_IN_PROGRESS -> INSTALL_ROLLBACK: true
	// terminal: true
}

// Example_usage classifies references to a bundle's components.
func Example_usage() {
	owned := []engine.ComponentKey{
		{Type: engine.ComponentWidget, Name: "todomvc-list"},
		{Type: engine.ComponentPage, Name: "todomvc"},
	}
	refs := []engine.UsageReference{
		{ComponentType: engine.ComponentPage, Code: "todomvc"},
		{ComponentType: engine.ComponentPage, Code: "homepage"},
	}

	for _, ref := range engine.ClassifyUsage(refs, owned) {
		fmt.Println(ref.ComponentType, ref.Code, ref.Type)
	}

	// Output:
	// page todomvc INTERNAL
	// page homepage EXTERNAL
}
