package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openfroyo/bundlekeeper/pkg/telemetry"
)

// unrecordedError reports an operation that was applied but whose
// ComponentJob could not be stored.
type unrecordedError struct {
	op  Installable
	err error
}

func (e *unrecordedError) Error() string {
	return fmt.Sprintf("failed to record %s: %v", KeyOf(e.op), e.err)
}

func (e *unrecordedError) Unwrap() error { return e.err }

// RollbackEngine undoes the completed operations of a failed install run.
// Rollback order is rebuilt from the stored sequence numbers, never from the
// in-memory operation list.
type RollbackEngine struct {
	store    JobStore
	registry *ProcessorRegistry
}

// NewRollbackEngine creates a rollback engine writing to store. registry
// rebuilds the installed state of components the run replaced.
func NewRollbackEngine(store JobStore, registry *ProcessorRegistry) *RollbackEngine {
	return &RollbackEngine{store: store, registry: registry}
}

// Rollback reverts every COMPLETED component of the job in reverse sequence
// order and records one ROLLBACK or ROLLBACK_ERROR record per attempt. A
// component with a row in installed existed before the run and is put back
// to that representation; any other component is uninstalled. A failed
// attempt does not stop the remaining ones. When cause reports an applied
// but unrecorded operation, that operation is reverted first.
//
// It returns JobStatusInstallRollback when every attempt succeeded. Otherwise
// it returns JobStatusInstallRollbackError and an error wrapping cause.
func (r *RollbackEngine) Rollback(
	ctx context.Context,
	jobID string,
	ops []Installable,
	installed map[ComponentKey]*InstalledComponent,
	cause error,
) (JobStatus, error) {
	logger := telemetry.FromContext(ctx)
	tel := telemetry.FromTelemetryContext(ctx)
	if tel != nil {
		_ = tel.Events.PublishRollback(jobID, false, "")
	}
	r.appendEvent(ctx, jobID, EventTypeRollbackStarted, fmt.Sprintf("Rolling back after: %v", cause))

	completed, err := r.store.FindCompletedComponentJobs(ctx, jobID)
	if err != nil {
		return JobStatusInstallRollbackError, NewPermanentError("failed to load completed components", err).
			WithCode(ErrCodeRollbackFailed).
			WithResource(jobID)
	}

	byKey := make(map[ComponentKey]Installable, len(ops))
	for _, op := range ops {
		byKey[KeyOf(op)] = op
	}

	attempted, failed := len(completed), 0

	var unrecorded *unrecordedError
	if errors.As(cause, &unrecorded) {
		attempted++
		key := KeyOf(unrecorded.op)
		opCtx := telemetry.WithComponentContext(ctx, string(key.Type), key.Name, directionRollback)
		err := r.revert(opCtx, unrecorded.op, installed[key])
		status := ComponentJobRollback
		if err != nil {
			failed++
			status = ComponentJobRollbackError
			logger.WithComponent(string(key.Type), key.Name).
				WithError(err).Warn("Rollback of unrecorded component failed")
		}
		telemetry.EndComponentContext(opCtx, jobID, string(key.Type), key.Name, directionRollback, string(status), err)
	}

	for i := len(completed) - 1; i >= 0; i-- {
		key := completed[i].Key()
		if err := r.undo(ctx, completed[i], byKey[key], installed[key]); err != nil {
			failed++
			logger.WithComponent(string(completed[i].ComponentType), completed[i].ComponentName).
				WithError(err).Warn("Rollback of component failed")
		}
	}

	status := JobStatusInstallRollback
	var result error
	if failed > 0 {
		status = JobStatusInstallRollbackError
		result = NewPermanentError(
			fmt.Sprintf("rollback incomplete: %d of %d components could not be reverted", failed, attempted),
			cause,
		).WithCode(ErrCodeRollbackFailed).WithResource(jobID)
	}

	if tel != nil {
		tel.Metrics.RecordRollback(string(status))
		_ = tel.Events.PublishRollback(jobID, true, string(status))
	}
	r.appendEvent(ctx, jobID, EventTypeRollbackCompleted,
		fmt.Sprintf("Rolled back %d components, %d failed", attempted-failed, failed))

	return status, result
}

// undo reverses one COMPLETED record and appends its rollback record.
func (r *RollbackEngine) undo(ctx context.Context, original *ComponentJob, op Installable, prior *InstalledComponent) error {
	opCtx := telemetry.WithComponentContext(ctx, string(original.ComponentType), original.ComponentName, directionRollback)

	var err error
	if op == nil && prior == nil {
		err = fmt.Errorf("no operation available to roll back %s", original.Key())
	} else {
		err = r.revert(opCtx, op, prior)
	}

	record := &ComponentJob{
		ID:             uuid.New().String(),
		JobID:          original.JobID,
		ComponentType:  original.ComponentType,
		ComponentName:  original.ComponentName,
		Action:         original.Action,
		Status:         ComponentJobRollback,
		Checksum:       original.Checksum,
		Representation: original.Representation,
		RollbackOf:     original.ID,
		CreatedAt:      time.Now(),
	}
	if prior != nil {
		record.Checksum = prior.Checksum
		record.Representation = prior.Representation
	}
	if err != nil {
		record.Status = ComponentJobRollbackError
		record.Error = err.Error()
	}

	telemetry.EndComponentContext(opCtx, original.JobID, string(original.ComponentType),
		original.ComponentName, directionRollback, string(record.Status), err)

	if appendErr := r.store.AppendComponentJob(ctx, record); appendErr != nil {
		if err == nil {
			return fmt.Errorf("failed to record rollback of %s: %w", original.Key(), appendErr)
		}
		telemetry.FromContext(opCtx).WithError(appendErr).Warn("Failed to record rollback error")
	}
	return err
}

// revert undoes one applied operation. A component that existed before the
// run is reinstalled from its registry row; a new one is uninstalled.
func (r *RollbackEngine) revert(ctx context.Context, op Installable, prior *InstalledComponent) error {
	if prior == nil {
		return op.Uninstall(ctx)
	}
	restored, err := r.registry.Restore(prior)
	if err != nil {
		return err
	}
	return restored.WithAction(ActionOverride).Install(ctx)
}

func (r *RollbackEngine) appendEvent(ctx context.Context, jobID string, eventType EventType, message string) {
	event := &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		JobID:     jobID,
		Message:   message,
		Level:     eventType.Severity(),
	}
	telemetry.AddJobEvent(ctx, string(eventType), message)
	if err := r.store.AppendEvent(ctx, event); err != nil {
		telemetry.FromContext(ctx).WithError(err).Warn("Failed to append rollback event")
	}
}
