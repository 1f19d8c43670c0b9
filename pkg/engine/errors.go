package engine

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of an error for retry and recovery logic.
type ErrorClass string

const (
	// ErrorClassTransient indicates a temporary failure that may succeed on retry.
	// Examples: network timeouts, temporary engine unavailability.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassThrottled indicates rate limiting or quota exhaustion.
	ErrorClassThrottled ErrorClass = "throttled"

	// ErrorClassConflict indicates a state conflict, such as a second job for
	// a bundle that already has one running.
	ErrorClassConflict ErrorClass = "conflict"

	// ErrorClassPermanent indicates a non-recoverable error.
	// Examples: invalid bundle code, unknown bundle, malformed descriptor.
	ErrorClassPermanent ErrorClass = "permanent"
)

// EngineError represents a classified error with context.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	// Class is the error classification for retry logic.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Resource is the bundle, job or component that caused the error, if applicable.
	Resource string `json:"resource,omitempty"`

	// Operation is the operation being performed when the error occurred.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	msg := e.unwrapMessage()
	switch {
	case e.Resource != "" && e.Operation != "":
		return fmt.Sprintf("[%s] %s (resource=%s, operation=%s)%s",
			e.Class, e.Message, e.Resource, e.Operation, msg)
	case e.Resource != "":
		return fmt.Sprintf("[%s] %s (resource=%s)%s", e.Class, e.Message, e.Resource, msg)
	default:
		return fmt.Sprintf("[%s] %s%s", e.Class, e.Message, msg)
	}
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// unwrapMessage returns the underlying error message prefixed with ": ".
func (e *EngineError) unwrapMessage() string {
	if e.Err != nil {
		return ": " + e.Err.Error()
	}
	return ""
}

// Is implements error equality checking for errors.Is.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewTransientError creates a new transient error.
func NewTransientError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassTransient,
		Message: message,
		Err:     err,
	}
}

// NewThrottledError creates a new throttled error.
func NewThrottledError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassThrottled,
		Message: message,
		Err:     err,
	}
}

// NewConflictError creates a new conflict error.
func NewConflictError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassConflict,
		Message: message,
		Err:     err,
	}
}

// NewPermanentError creates a new permanent error.
func NewPermanentError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassPermanent,
		Message: message,
		Err:     err,
	}
}

// NewValidationError creates a permanent error with the validation code.
func NewValidationError(message string) *EngineError {
	return NewPermanentError(message, nil).WithCode(ErrCodeValidation)
}

// WithResource adds resource context to an error.
func (e *EngineError) WithResource(resourceID string) *EngineError {
	e.Resource = resourceID
	return e
}

// WithOperation adds operation context to an error.
func (e *EngineError) WithOperation(operation string) *EngineError {
	e.Operation = operation
	return e
}

// WithCode adds an error code to an error.
func (e *EngineError) WithCode(code string) *EngineError {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ProcessingError is the uniform failure of a component processor. Its
// message names only the component type; the storage-level cause stays
// reachable through errors.Unwrap.
type ProcessingError struct {
	ComponentType ComponentType
	Err           error
}

// NewProcessingError wraps a read or parse failure of the given component type.
func NewProcessingError(componentType ComponentType, err error) *ProcessingError {
	return &ProcessingError{ComponentType: componentType, Err: err}
}

// Error implements the error interface.
func (e *ProcessingError) Error() string {
	return fmt.Sprintf("Error processing %s components", e.ComponentType.DisplayName())
}

// Unwrap returns the underlying read or parse error.
func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// JobConflictError reports that a bundle already has a non-terminal job.
type JobConflictError struct {
	BundleCode    string
	ExistingJobID string
}

// NewJobConflictError creates a conflict error referencing the running job.
func NewJobConflictError(bundleCode, existingJobID string) *JobConflictError {
	return &JobConflictError{BundleCode: bundleCode, ExistingJobID: existingJobID}
}

// Error implements the error interface.
func (e *JobConflictError) Error() string {
	return fmt.Sprintf("bundle %s already has a job in progress: %s", e.BundleCode, e.ExistingJobID)
}

// IsTransient returns true if the error is classified as transient.
func IsTransient(err error) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == ErrorClassTransient
	}
	return false
}

// IsThrottled returns true if the error is classified as throttled.
func IsThrottled(err error) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == ErrorClassThrottled
	}
	return false
}

// IsConflict returns true if the error is classified as a conflict.
func IsConflict(err error) bool {
	if IsJobConflict(err) {
		return true
	}
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == ErrorClassConflict
	}
	return false
}

// IsPermanent returns true if the error is classified as permanent.
func IsPermanent(err error) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == ErrorClassPermanent
	}
	return false
}

// IsRetryable returns true if the error can be retried.
// Transient, throttled, and conflict errors are retryable.
func IsRetryable(err error) bool {
	return IsTransient(err) || IsThrottled(err) || IsConflict(err)
}

// IsJobConflict returns true if err reports an existing non-terminal job.
func IsJobConflict(err error) bool {
	var e *JobConflictError
	return errors.As(err, &e)
}

// ExistingJobID returns the id of the conflicting job, or "".
func ExistingJobID(err error) string {
	var e *JobConflictError
	if errors.As(err, &e) {
		return e.ExistingJobID
	}
	return ""
}

// IsProcessingError returns true if err is a component processor failure.
func IsProcessingError(err error) bool {
	var e *ProcessingError
	return errors.As(err, &e)
}

// IsValidation returns true if err was rejected before any job was created.
func IsValidation(err error) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Code == ErrCodeValidation || e.Code == ErrCodeNotFound || e.Code == ErrCodeNotInstalled
	}
	return false
}

// ErrorCode returns the code of an EngineError in the chain, or
// ErrCodeInternal for unclassified errors.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *EngineError
	if errors.As(err, &e) && e.Code != "" {
		return e.Code
	}
	if IsProcessingError(err) {
		return ErrCodeProcessingFailed
	}
	return ErrCodeInternal
}

// Common error codes.
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeInternal         = "INTERNAL_ERROR"
	ErrCodeProcessingFailed = "PROCESSING_FAILED"
	ErrCodeOperationFailed  = "OPERATION_FAILED"
	ErrCodeRollbackFailed   = "ROLLBACK_FAILED"
	ErrCodeLeaseExpired     = "LEASE_EXPIRED"
	ErrCodeNotInstalled     = "NOT_INSTALLED"
)
