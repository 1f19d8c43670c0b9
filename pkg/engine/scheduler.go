package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openfroyo/bundlekeeper/pkg/telemetry"
)

// Directions of a component operation, used for telemetry labels.
const (
	directionInstall   = "install"
	directionUninstall = "uninstall"
	directionRollback  = "rollback"
)

// InstallOptions configures an install run.
type InstallOptions struct {
	// Version selects the bundle version. Empty selects the latest.
	Version string

	// Strategy decides actions for components the overrides do not name.
	// Empty means StrategyCreate.
	Strategy ConflictStrategy

	// Overrides holds explicit per-component actions that win over the strategy.
	Overrides InstallPlan

	// User is recorded on the job.
	User string
}

// UninstallOptions configures an uninstall run.
type UninstallOptions struct {
	// User is recorded on the job.
	User string
}

// StartResult references the job a start request resolved to.
type StartResult struct {
	// JobID is the created job, or the existing one.
	JobID string `json:"job_id"`

	// Existing is true when no new job was created.
	Existing bool `json:"existing"`
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithUsageClient enables BundleUsage.
func WithUsageClient(client UsageClient) SchedulerOption {
	return func(s *Scheduler) {
		s.usage = client
	}
}

// Scheduler drives install and uninstall jobs. Each job runs on its own
// goroutine and applies its operations strictly in order; the store's
// conditional insert keeps at most one non-terminal job per bundle.
type Scheduler struct {
	store    JobStore
	opener   BundleOpener
	registry *ProcessorRegistry
	planner  *Planner
	rollback *RollbackEngine
	usage    UsageClient

	// wg tracks background runs for Wait
	wg sync.WaitGroup

	// mu protects running
	mu      sync.Mutex
	running map[string]struct{}
}

// NewScheduler creates a scheduler over a store, a bundle opener and a
// processor registry.
func NewScheduler(store JobStore, opener BundleOpener, registry *ProcessorRegistry, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		store:    store,
		opener:   opener,
		registry: registry,
		planner:  NewPlanner(store),
		rollback: NewRollbackEngine(store, registry),
		running:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartInstall validates the request and starts an install job in the
// background. It returns the existing completed job without running when the
// same content is already installed. When the bundle has a non-terminal job
// the result references that job and err is a *JobConflictError.
func (s *Scheduler) StartInstall(ctx context.Context, bundleCode string, opts InstallOptions) (*StartResult, error) {
	if err := opts.Strategy.Validate(); err != nil {
		return nil, NewValidationError(err.Error())
	}

	bundle, err := s.lookupBundle(ctx, bundleCode)
	if err != nil {
		return nil, err
	}

	if existing, err := s.findRunning(ctx, bundleCode); err != nil || existing != nil {
		return existing, err
	}

	reader, version, err := s.opener.Open(ctx, bundle, opts.Version)
	if err != nil {
		return nil, NewValidationError(fmt.Sprintf("failed to open bundle %s: %v", bundleCode, err)).
			WithResource(bundleCode)
	}

	if jobID, ok := s.alreadyInstalled(ctx, bundleCode, version, reader); ok {
		telemetry.FromContext(ctx).WithBundle(bundleCode).WithJobID(jobID).
			Info("Bundle content unchanged, returning completed install job")
		return &StartResult{JobID: jobID, Existing: true}, nil
	}

	job, result, err := s.createJob(ctx, bundleCode, version, JobTypeInstall, opts.User)
	if err != nil || result.Existing {
		return result, err
	}

	s.launch(ctx, job, func(runCtx context.Context) (JobStatus, error) {
		return s.executeInstall(runCtx, job, reader, opts)
	})

	return result, nil
}

// StartUninstall starts an uninstall job in the background. The bundle must
// be installed. Conflicts are reported as in StartInstall.
func (s *Scheduler) StartUninstall(ctx context.Context, bundleCode string, opts UninstallOptions) (*StartResult, error) {
	bundle, err := s.lookupBundle(ctx, bundleCode)
	if err != nil {
		return nil, err
	}

	if existing, err := s.findRunning(ctx, bundleCode); err != nil || existing != nil {
		return existing, err
	}

	installed, err := s.store.GetInstalledBundle(ctx, bundleCode)
	if err != nil {
		return nil, fmt.Errorf("failed to get installed bundle: %w", err)
	}
	if installed == nil {
		return nil, NewValidationError("bundle is not installed").
			WithCode(ErrCodeNotInstalled).
			WithResource(bundleCode)
	}

	reader, _, err := s.opener.Open(ctx, bundle, installed.Version)
	if err != nil {
		return nil, NewValidationError(fmt.Sprintf("failed to open installed version %s: %v", installed.Version, err)).
			WithResource(bundleCode)
	}

	job, result, err := s.createJob(ctx, bundleCode, installed.Version, JobTypeUninstall, opts.User)
	if err != nil || result.Existing {
		return result, err
	}

	s.launch(ctx, job, func(runCtx context.Context) (JobStatus, error) {
		return s.executeUninstall(runCtx, job, reader)
	})

	return result, nil
}

// lookupBundle validates the code and loads the catalog entry.
func (s *Scheduler) lookupBundle(ctx context.Context, bundleCode string) (*Bundle, error) {
	if err := ValidateBundleCode(bundleCode); err != nil {
		return nil, err
	}
	bundle, err := s.store.GetBundle(ctx, bundleCode)
	if err != nil {
		return nil, NewPermanentError("unknown bundle", err).
			WithCode(ErrCodeNotFound).
			WithResource(bundleCode)
	}
	return bundle, nil
}

// findRunning returns a conflict result when the bundle has a non-terminal job.
func (s *Scheduler) findRunning(ctx context.Context, bundleCode string) (*StartResult, error) {
	existing, err := s.store.FindNonTerminalJob(ctx, bundleCode)
	if err != nil {
		return nil, fmt.Errorf("failed to check running jobs: %w", err)
	}
	if existing == nil {
		return nil, nil
	}
	return &StartResult{JobID: existing.ID, Existing: true}, NewJobConflictError(bundleCode, existing.ID)
}

// alreadyInstalled reports whether the bundle's last install job completed
// with exactly this version and content. Read failures are ignored here;
// the job that runs instead reports them.
func (s *Scheduler) alreadyInstalled(ctx context.Context, bundleCode, version string, reader BundleReader) (string, bool) {
	installed, err := s.store.GetInstalledBundle(ctx, bundleCode)
	if err != nil || installed == nil || installed.Version != version {
		return "", false
	}

	jobs, err := s.store.ListJobs(ctx, bundleCode, 0)
	if err != nil {
		return "", false
	}
	for _, job := range jobs {
		if job.Type != JobTypeInstall {
			continue
		}
		// Only the most recent install counts
		if job.ID != installed.JobID || job.Status != JobStatusInstallCompleted {
			return "", false
		}
		break
	}

	declared, err := s.registry.ProcessAll(ctx, reader, nil)
	if err != nil {
		return "", false
	}
	if BundleDigest(version, declared) != installed.Digest {
		return "", false
	}
	return installed.JobID, true
}

// createJob inserts a CREATED job. A concurrent start that wins the insert
// turns into a conflict result.
func (s *Scheduler) createJob(ctx context.Context, bundleCode, version string, jobType JobType, user string) (*Job, *StartResult, error) {
	now := time.Now()
	job := &Job{
		ID:            uuid.New().String(),
		BundleCode:    bundleCode,
		BundleVersion: version,
		Type:          jobType,
		Status:        jobType.CreatedStatus(),
		User:          user,
		StartedAt:     now,
		HeartbeatAt:   now,
	}

	if err := s.store.CreateJob(ctx, job); err != nil {
		if IsJobConflict(err) {
			return nil, &StartResult{JobID: ExistingJobID(err), Existing: true}, err
		}
		return nil, nil, fmt.Errorf("failed to create job: %w", err)
	}

	s.appendEvent(ctx, job.ID, "", EventTypeJobCreated,
		fmt.Sprintf("%s job created for bundle %s", jobType, bundleCode), nil)

	return job, &StartResult{JobID: job.ID}, nil
}

// launch runs a job on its own goroutine. The run outlives the request
// context but keeps its values (logger, telemetry).
func (s *Scheduler) launch(ctx context.Context, job *Job, run func(context.Context) (JobStatus, error)) {
	s.mu.Lock()
	s.running[job.ID] = struct{}{}
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.running, job.ID)
			s.mu.Unlock()
		}()

		runCtx := telemetry.WithJobContext(context.WithoutCancel(ctx),
			job.ID, job.BundleCode, string(job.Type), job.User)
		logger := telemetry.FromContext(runCtx).NewComponentLogger("scheduler")
		runCtx = logger.WithContext(runCtx)
		logger.Info("Job started")

		status, err := run(runCtx)
		if err != nil {
			logger.WithError(err).WithField("status", string(status)).Error("Job failed")
		} else {
			logger.WithField("status", string(status)).Info("Job completed")
		}

		telemetry.EndJobContext(runCtx, job.ID, job.BundleCode, string(job.Type),
			string(status), time.Since(job.StartedAt), err)
	}()
}

// executeInstall runs the install state machine and returns the terminal status.
func (s *Scheduler) executeInstall(ctx context.Context, job *Job, reader BundleReader, opts InstallOptions) (JobStatus, error) {
	if err := s.transition(ctx, job, JobStatusInstallInProgress, nil); err != nil {
		return job.Status, err
	}

	declared, err := s.registry.ProcessAll(ctx, reader, nil)
	if err != nil {
		return s.fail(ctx, job, JobStatusInstallError, err)
	}

	report, installed, err := s.planner.Analyze(ctx, job.BundleCode, declared)
	if err != nil {
		return s.fail(ctx, job, JobStatusInstallError, err)
	}

	plan, err := s.planner.BuildPlan(report, opts.Strategy, opts.Overrides)
	if err != nil {
		return s.fail(ctx, job, JobStatusInstallError, err)
	}

	ops, err := s.registry.ProcessAll(ctx, reader, &PlanContext{
		Strategy:  opts.Strategy,
		Plan:      plan,
		Report:    report,
		Installed: installed,
	})
	if err != nil {
		return s.fail(ctx, job, JobStatusInstallError, err)
	}

	telemetry.FromContext(ctx).
		WithField("operations", len(ops)).
		WithField("declared", len(declared)).
		Info("Executing install plan")

	for i, op := range ops {
		if err := s.apply(ctx, job, op, directionInstall); err != nil {
			status, rbErr := s.rollback.Rollback(ctx, job.ID, ops, installed, err)
			if rbErr != nil {
				return s.fail(ctx, job, status, rbErr)
			}
			return s.fail(ctx, job, status, err)
		}
		s.heartbeat(ctx, job, i+1, len(ops))
	}

	now := time.Now()
	components := make([]*InstalledComponent, 0, len(ops))
	for _, op := range ops {
		components = append(components, &InstalledComponent{
			Type:           op.ComponentType(),
			Name:           op.Name(),
			BundleCode:     job.BundleCode,
			Checksum:       op.Checksum(),
			Representation: op.Representation(),
			JobID:          job.ID,
			InstalledAt:    now,
		})
	}

	record := &InstalledBundle{
		Code:        job.BundleCode,
		Version:     job.BundleVersion,
		Digest:      BundleDigest(job.BundleVersion, declared),
		JobID:       job.ID,
		InstalledAt: now,
	}
	if err := s.store.CompleteInstall(ctx, job.ID, record, components); err != nil {
		return s.fail(ctx, job, JobStatusInstallError, fmt.Errorf("failed to record installation: %w", err))
	}
	job.Status = JobStatusInstallCompleted
	s.recordOwnedCount(ctx, job.BundleCode)

	s.appendEvent(ctx, job.ID, "", EventTypeJobCompleted,
		fmt.Sprintf("Installed %d components", len(ops)), map[string]interface{}{
			"operations": len(ops),
			"digest":     record.Digest,
		})

	return job.Status, nil
}

// executeUninstall removes every component the registry records as owned
// by the bundle, in reverse install order. Operations are rebuilt from the
// stored representations, so components an earlier version declared are
// removed too. Failures stop the run without compensation.
func (s *Scheduler) executeUninstall(ctx context.Context, job *Job, reader BundleReader) (JobStatus, error) {
	if err := s.transition(ctx, job, JobStatusUninstallInProgress, nil); err != nil {
		return job.Status, err
	}

	declared, err := s.registry.ProcessAll(ctx, reader, nil)
	if err != nil {
		return s.fail(ctx, job, JobStatusUninstallError, err)
	}

	owned, err := s.store.ListInstalledComponents(ctx, job.BundleCode)
	if err != nil {
		return s.fail(ctx, job, JobStatusUninstallError, fmt.Errorf("failed to list installed components: %w", err))
	}

	ops := make([]Installable, 0, len(owned))
	for _, c := range owned {
		op, err := s.registry.Restore(c)
		if err != nil {
			return s.fail(ctx, job, JobStatusUninstallError, err)
		}
		ops = append(ops, op)
	}
	sortUninstallOrder(ops, declared)

	for i, op := range ops {
		if err := s.apply(ctx, job, op, directionUninstall); err != nil {
			return s.fail(ctx, job, JobStatusUninstallError, err)
		}
		s.heartbeat(ctx, job, i+1, len(ops))
	}

	if err := s.store.CompleteUninstall(ctx, job.ID, job.BundleCode); err != nil {
		return s.fail(ctx, job, JobStatusUninstallError, fmt.Errorf("failed to record uninstallation: %w", err))
	}
	job.Status = JobStatusUninstallCompleted
	if tel := telemetry.FromTelemetryContext(ctx); tel != nil {
		tel.Metrics.SetInstalledComponents(job.BundleCode, 0)
	}

	s.appendEvent(ctx, job.ID, "", EventTypeJobCompleted,
		fmt.Sprintf("Uninstalled %d components", len(ops)), map[string]interface{}{
			"operations": len(ops),
		})

	return job.Status, nil
}

// sortUninstallOrder sorts ops into the reverse of install order: rank, then
// declaration order in declared. Components no longer declared follow the
// declared ones of their rank, by name.
func sortUninstallOrder(ops []Installable, declared []Installable) {
	position := make(map[ComponentKey]int, len(declared))
	for i, op := range declared {
		position[KeyOf(op)] = i
	}

	sort.SliceStable(ops, func(i, j int) bool {
		a, b := KeyOf(ops[i]), KeyOf(ops[j])
		if ra, rb := a.Type.Rank(), b.Type.Rank(); ra != rb {
			return ra > rb
		}
		pa, okA := position[a]
		pb, okB := position[b]
		switch {
		case okA && okB:
			return pa > pb
		case okA != okB:
			return okB
		default:
			return a.Name > b.Name
		}
	})
}

// apply executes one operation and records its outcome as a ComponentJob.
func (s *Scheduler) apply(ctx context.Context, job *Job, op Installable, direction string) error {
	key := KeyOf(op)
	opCtx := telemetry.WithComponentContext(ctx, string(key.Type), key.Name, direction)

	var err error
	if direction == directionUninstall {
		err = op.Uninstall(opCtx)
	} else {
		err = op.Install(opCtx)
	}

	record := &ComponentJob{
		ID:             uuid.New().String(),
		JobID:          job.ID,
		ComponentType:  key.Type,
		ComponentName:  key.Name,
		Status:         ComponentJobCompleted,
		Checksum:       op.Checksum(),
		Representation: op.Representation(),
		CreatedAt:      time.Now(),
	}
	if direction == directionInstall {
		record.Action = op.Action()
	}
	if err != nil {
		record.Status = ComponentJobError
		record.Error = err.Error()
	}

	telemetry.EndComponentContext(opCtx, job.ID, string(key.Type), key.Name, direction, string(record.Status), err)

	if appendErr := s.store.AppendComponentJob(ctx, record); appendErr != nil {
		if err == nil {
			return &unrecordedError{op: op, err: appendErr}
		}
		telemetry.FromContext(opCtx).WithError(appendErr).Warn("Failed to record failed component job")
	}

	if err != nil {
		s.appendEvent(ctx, job.ID, record.ID, EventTypeComponentFailed,
			fmt.Sprintf("%s of %s failed: %v", direction, key, err), nil)
		return NewPermanentError(fmt.Sprintf("failed to %s %s", direction, key), err).
			WithCode(ErrCodeOperationFailed).
			WithResource(key.String()).
			WithOperation(direction)
	}

	s.appendEvent(ctx, job.ID, record.ID, EventTypeComponentCompleted,
		fmt.Sprintf("%s of %s completed", direction, key), nil)
	return nil
}

// transition moves the job to a non-terminal or error status.
func (s *Scheduler) transition(ctx context.Context, job *Job, status JobStatus, jobErr error) error {
	if err := s.store.UpdateJobStatus(ctx, job.ID, status, jobErr); err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}
	job.Status = status

	if status.IsActive() {
		s.appendEvent(ctx, job.ID, "", EventTypeJobStarted, "Job started", nil)
	}
	return nil
}

// fail records a terminal failure status and returns it with the cause.
func (s *Scheduler) fail(ctx context.Context, job *Job, status JobStatus, cause error) (JobStatus, error) {
	if err := s.transition(ctx, job, status, cause); err != nil {
		telemetry.FromContext(ctx).WithError(err).Error("Failed to record job failure")
	}

	if tel := telemetry.FromTelemetryContext(ctx); tel != nil {
		class := string(ErrorClassPermanent)
		var ee *EngineError
		if errors.As(cause, &ee) {
			class = string(ee.Class)
		}
		tel.Metrics.RecordError(class, ErrorCode(cause))
	}

	s.appendEvent(ctx, job.ID, "", EventTypeJobFailed, cause.Error(), map[string]interface{}{
		"status": string(status),
		"code":   ErrorCode(cause),
	})
	return status, cause
}

// heartbeat records progress; a failed heartbeat only shortens the lease.
func (s *Scheduler) heartbeat(ctx context.Context, job *Job, done, total int) {
	progress := 1.0
	if total > 0 {
		progress = float64(done) / float64(total)
	}
	if err := s.store.Heartbeat(ctx, job.ID, progress); err != nil {
		telemetry.FromContext(ctx).WithError(err).Warn("Failed to record heartbeat")
	}
}

// appendEvent persists a timeline event. Event loss is logged, not fatal.
func (s *Scheduler) appendEvent(
	ctx context.Context,
	jobID, componentJobID string,
	eventType EventType,
	message string,
	details map[string]interface{},
) {
	event := &Event{
		ID:             uuid.New().String(),
		Type:           eventType,
		Timestamp:      time.Now(),
		JobID:          jobID,
		ComponentJobID: componentJobID,
		Message:        message,
		Details:        details,
		Level:          eventType.Severity(),
	}
	telemetry.AddJobEvent(ctx, string(eventType), message)
	if err := s.store.AppendEvent(ctx, event); err != nil {
		telemetry.FromContext(ctx).WithError(err).Warn("Failed to append job event")
	}
}

// recordOwnedCount publishes how many components the bundle owns, including
// ones kept from earlier versions.
func (s *Scheduler) recordOwnedCount(ctx context.Context, bundleCode string) {
	tel := telemetry.FromTelemetryContext(ctx)
	if tel == nil {
		return
	}
	owned, err := s.store.ListInstalledComponents(ctx, bundleCode)
	if err != nil {
		telemetry.FromContext(ctx).WithError(err).Warn("Failed to count installed components")
		return
	}
	tel.Metrics.SetInstalledComponents(bundleCode, float64(len(owned)))
}

// Wait blocks until every job started by this scheduler has finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// GetJob retrieves a job by ID.
func (s *Scheduler) GetJob(ctx context.Context, jobID string) (*Job, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// ListJobs lists a bundle's jobs, newest first. An empty code lists all jobs.
func (s *Scheduler) ListJobs(ctx context.Context, bundleCode string, limit int) ([]*Job, error) {
	return s.store.ListJobs(ctx, bundleCode, limit)
}

// ComponentJobs returns a job's component records in sequence order.
func (s *Scheduler) ComponentJobs(ctx context.Context, jobID string) ([]*ComponentJob, error) {
	if _, err := s.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	return s.store.ListComponentJobs(ctx, jobID)
}

// BuildAnalysisReport diffs a bundle version against the installed registry.
func (s *Scheduler) BuildAnalysisReport(ctx context.Context, bundleCode, version string) (AnalysisReport, error) {
	report, _, err := s.analyze(ctx, bundleCode, version)
	return report, err
}

// BuildInstallPlan diffs a bundle version and decides an action per
// component with the strategy and overrides.
func (s *Scheduler) BuildInstallPlan(
	ctx context.Context,
	bundleCode, version string,
	strategy ConflictStrategy,
	overrides InstallPlan,
) (InstallPlan, error) {
	report, _, err := s.analyze(ctx, bundleCode, version)
	if err != nil {
		return nil, err
	}
	return s.planner.BuildPlan(report, strategy, overrides)
}

func (s *Scheduler) analyze(ctx context.Context, bundleCode, version string) (AnalysisReport, map[ComponentKey]*InstalledComponent, error) {
	bundle, err := s.lookupBundle(ctx, bundleCode)
	if err != nil {
		return nil, nil, err
	}

	reader, _, err := s.opener.Open(ctx, bundle, version)
	if err != nil {
		return nil, nil, NewValidationError(fmt.Sprintf("failed to open bundle %s: %v", bundleCode, err)).
			WithResource(bundleCode)
	}

	declared, err := s.registry.ProcessAll(ctx, reader, nil)
	if err != nil {
		return nil, nil, err
	}
	return s.planner.Analyze(ctx, bundleCode, declared)
}

// BundleUsage reports, for each installed component of a bundle, what
// references it, classified INTERNAL or EXTERNAL.
func (s *Scheduler) BundleUsage(ctx context.Context, bundleCode string) ([]ComponentUsage, error) {
	if s.usage == nil {
		return nil, NewPermanentError("usage lookup is not configured", nil).WithCode(ErrCodeValidation)
	}
	if _, err := s.lookupBundle(ctx, bundleCode); err != nil {
		return nil, err
	}

	installed, err := s.store.ListInstalledComponents(ctx, bundleCode)
	if err != nil {
		return nil, fmt.Errorf("failed to list installed components: %w", err)
	}

	owned := make([]ComponentKey, 0, len(installed))
	for _, c := range installed {
		owned = append(owned, c.Key())
	}
	sortKeys(owned)

	var usage []ComponentUsage
	for _, key := range owned {
		if !key.Type.IsPlanned() {
			continue
		}
		refs, err := s.usage.ComponentUsage(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to get usage of %s: %w", key, err)
		}
		usage = append(usage, ComponentUsage{
			Component:  key,
			References: ClassifyUsage(refs, owned),
		})
	}
	return usage, nil
}

// ReconcileStale fails non-terminal jobs whose heartbeat is older than
// olderThan. Jobs running in this process are left alone. It returns the
// jobs it failed.
func (s *Scheduler) ReconcileStale(ctx context.Context, olderThan time.Duration) ([]*Job, error) {
	stale, err := s.store.ListStaleJobs(ctx, time.Now().Add(-olderThan))
	if err != nil {
		return nil, fmt.Errorf("failed to list stale jobs: %w", err)
	}

	logger := telemetry.FromContext(ctx)
	tel := telemetry.FromTelemetryContext(ctx)

	var failed []*Job
	for _, job := range stale {
		s.mu.Lock()
		_, local := s.running[job.ID]
		s.mu.Unlock()
		if local {
			continue
		}

		cause := NewPermanentError("job lease expired", nil).
			WithCode(ErrCodeLeaseExpired).
			WithResource(job.ID).
			WithDetail("heartbeat_at", job.HeartbeatAt)
		if err := s.transition(ctx, job, job.Type.ErrorStatus(), cause); err != nil {
			logger.WithJobID(job.ID).WithError(err).Warn("Failed to expire stale job")
			continue
		}

		s.appendEvent(ctx, job.ID, "", EventTypeLeaseExpired,
			fmt.Sprintf("Job lease expired, last heartbeat %s", job.HeartbeatAt.Format(time.RFC3339)), nil)
		if tel != nil {
			tel.Metrics.RecordStaleJob()
			_ = tel.Events.PublishLeaseExpired(job.ID, job.BundleCode, job.HeartbeatAt)
		}
		logger.WithJobID(job.ID).WithBundle(job.BundleCode).Warn("Expired stale job")

		failed = append(failed, job)
	}
	return failed, nil
}
