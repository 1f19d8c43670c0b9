package engine

import (
	"encoding/json"
	"fmt"
)

// JobType distinguishes install runs from uninstall runs.
type JobType string

const (
	// JobTypeInstall applies a bundle.
	JobTypeInstall JobType = "INSTALL"

	// JobTypeUninstall removes a bundle.
	JobTypeUninstall JobType = "UNINSTALL"
)

// Validate checks if the job type is valid.
func (t JobType) Validate() error {
	switch t {
	case JobTypeInstall, JobTypeUninstall:
		return nil
	default:
		return fmt.Errorf("invalid job type: %s", t)
	}
}

// JobStatus is the status of a job. Values are exposed verbatim to callers.
type JobStatus string

const (
	JobStatusInstallCreated       JobStatus = "INSTALL_CREATED"
	JobStatusInstallInProgress    JobStatus = "INSTALL_IN_PROGRESS"
	JobStatusInstallCompleted     JobStatus = "INSTALL_COMPLETED"
	JobStatusInstallError         JobStatus = "INSTALL_ERROR"
	JobStatusInstallRollback      JobStatus = "INSTALL_ROLLBACK"
	JobStatusInstallRollbackError JobStatus = "INSTALL_ROLLBACK_ERROR"

	JobStatusUninstallCreated    JobStatus = "UNINSTALL_CREATED"
	JobStatusUninstallInProgress JobStatus = "UNINSTALL_IN_PROGRESS"
	JobStatusUninstallCompleted  JobStatus = "UNINSTALL_COMPLETED"
	JobStatusUninstallError      JobStatus = "UNINSTALL_ERROR"
)

// NonTerminalJobStatuses lists every status a running job can be in.
var NonTerminalJobStatuses = []JobStatus{
	JobStatusInstallCreated,
	JobStatusInstallInProgress,
	JobStatusUninstallCreated,
	JobStatusUninstallInProgress,
}

// IsTerminal returns true if the job status represents a final state.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusInstallCompleted, JobStatusInstallError,
		JobStatusInstallRollback, JobStatusInstallRollbackError,
		JobStatusUninstallCompleted, JobStatusUninstallError:
		return true
	default:
		return false
	}
}

// IsActive returns true if the job is created or in progress.
func (s JobStatus) IsActive() bool {
	switch s {
	case JobStatusInstallCreated, JobStatusInstallInProgress,
		JobStatusUninstallCreated, JobStatusUninstallInProgress:
		return true
	default:
		return false
	}
}

// Type returns the job type the status belongs to.
func (s JobStatus) Type() JobType {
	switch s {
	case JobStatusUninstallCreated, JobStatusUninstallInProgress,
		JobStatusUninstallCompleted, JobStatusUninstallError:
		return JobTypeUninstall
	default:
		return JobTypeInstall
	}
}

// Validate checks if the job status is valid.
func (s JobStatus) Validate() error {
	if s.IsTerminal() || s.IsActive() {
		return nil
	}
	return fmt.Errorf("invalid job status: %s", s)
}

// CanTransitionTo reports whether the state machine allows s -> next.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusInstallCreated:
		return next == JobStatusInstallInProgress || next == JobStatusInstallError
	case JobStatusInstallInProgress:
		return next == JobStatusInstallCompleted || next == JobStatusInstallError ||
			next == JobStatusInstallRollback || next == JobStatusInstallRollbackError
	case JobStatusUninstallCreated:
		return next == JobStatusUninstallInProgress || next == JobStatusUninstallError
	case JobStatusUninstallInProgress:
		return next == JobStatusUninstallCompleted || next == JobStatusUninstallError
	default:
		return false
	}
}

// CreatedStatus returns the initial status for a job type.
func (t JobType) CreatedStatus() JobStatus {
	if t == JobTypeUninstall {
		return JobStatusUninstallCreated
	}
	return JobStatusInstallCreated
}

// InProgressStatus returns the running status for a job type.
func (t JobType) InProgressStatus() JobStatus {
	if t == JobTypeUninstall {
		return JobStatusUninstallInProgress
	}
	return JobStatusInstallInProgress
}

// CompletedStatus returns the success status for a job type.
func (t JobType) CompletedStatus() JobStatus {
	if t == JobTypeUninstall {
		return JobStatusUninstallCompleted
	}
	return JobStatusInstallCompleted
}

// ErrorStatus returns the plain failure status for a job type.
func (t JobType) ErrorStatus() JobStatus {
	if t == JobTypeUninstall {
		return JobStatusUninstallError
	}
	return JobStatusInstallError
}

// MarshalJSON implements custom JSON marshaling for type-safe enum serialization.
func (s JobStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements custom JSON unmarshaling with validation.
func (s *JobStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = JobStatus(str)
	return s.Validate()
}

// ComponentJobStatus is the outcome of one component operation.
type ComponentJobStatus string

const (
	ComponentJobCompleted     ComponentJobStatus = "COMPLETED"
	ComponentJobError         ComponentJobStatus = "ERROR"
	ComponentJobRollback      ComponentJobStatus = "ROLLBACK"
	ComponentJobRollbackError ComponentJobStatus = "ROLLBACK_ERROR"
)

// Validate checks if the component job status is valid.
func (s ComponentJobStatus) Validate() error {
	switch s {
	case ComponentJobCompleted, ComponentJobError, ComponentJobRollback, ComponentJobRollbackError:
		return nil
	default:
		return fmt.Errorf("invalid component job status: %s", s)
	}
}

// IsRollback returns true for records written by the rollback engine.
func (s ComponentJobStatus) IsRollback() bool {
	return s == ComponentJobRollback || s == ComponentJobRollbackError
}

// EventType represents the type of event in a job's timeline.
type EventType string

const (
	EventTypeJobCreated         EventType = "job_created"
	EventTypeJobStarted         EventType = "job_started"
	EventTypeJobCompleted       EventType = "job_completed"
	EventTypeJobFailed          EventType = "job_failed"
	EventTypeComponentCompleted EventType = "component_completed"
	EventTypeComponentFailed    EventType = "component_failed"
	EventTypeRollbackStarted    EventType = "rollback_started"
	EventTypeRollbackCompleted  EventType = "rollback_completed"
	EventTypeLeaseExpired       EventType = "lease_expired"
)

// Severity returns the severity level of the event type.
func (e EventType) Severity() string {
	switch e {
	case EventTypeJobFailed, EventTypeComponentFailed:
		return "error"
	case EventTypeRollbackStarted, EventTypeLeaseExpired:
		return "warning"
	default:
		return "info"
	}
}
