package engine

import (
	"context"
	"time"

	"github.com/openfroyo/bundlekeeper/pkg/descriptors"
)

// BundleReader exposes the descriptor tree of one bundle version.
// Implementations must not leak storage details: processors wrap every
// failure into a ProcessingError.
type BundleReader interface {
	// ReadDescriptor returns the root descriptor.
	ReadDescriptor(ctx context.Context) (*descriptors.BundleDescriptor, error)

	// ReadSubDescriptor parses the sub-descriptor at path into out.
	ReadSubDescriptor(ctx context.Context, path string, out interface{}) error

	// ListResourceFiles lists static resource files, relative to the
	// resources root, in lexical order.
	ListResourceFiles(ctx context.Context) ([]string, error)

	// ReadResourceFile returns the content of a listed resource file.
	ReadResourceFile(ctx context.Context, path string) ([]byte, error)
}

// BundleOpener resolves a bundle version to a BundleReader.
type BundleOpener interface {
	// Open returns a reader for the given version. An empty version selects
	// the latest available one.
	Open(ctx context.Context, bundle *Bundle, version string) (BundleReader, string, error)
}

// Processor turns the descriptor tree into operations of one component type.
type Processor interface {
	// ComponentType returns the type this processor owns.
	ComponentType() ComponentType

	// Rank returns the execution rank; lower ranks install first.
	Rank() int

	// Process returns one Installable per declared component, in
	// declaration order.
	Process(ctx context.Context, reader BundleReader) ([]Installable, error)

	// ProcessWithPlan returns the Installables the plan keeps, with the
	// planned action attached.
	ProcessWithPlan(ctx context.Context, reader BundleReader, pc *PlanContext) ([]Installable, error)

	// Restore rebuilds the operation of an installed component from its
	// registry row, without reading the bundle.
	Restore(component *InstalledComponent) (Installable, error)
}

// JobStore persists jobs, component jobs, the bundle catalog and the
// installed-bundle registry.
type JobStore interface {
	// GetBundle retrieves a catalog entry by code.
	GetBundle(ctx context.Context, code string) (*Bundle, error)

	// FindNonTerminalJob returns the bundle's running job, or nil.
	FindNonTerminalJob(ctx context.Context, bundleCode string) (*Job, error)

	// CreateJob inserts a job unless the bundle already has a non-terminal
	// one, in which case it returns a *JobConflictError.
	CreateJob(ctx context.Context, job *Job) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*Job, error)

	// ListJobs lists jobs, newest first. An empty bundle code lists all.
	ListJobs(ctx context.Context, bundleCode string, limit int) ([]*Job, error)

	// UpdateJobStatus moves a job to status. jobErr is recorded for error
	// states and may be nil.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, jobErr error) error

	// Heartbeat records progress and refreshes the job's lease.
	Heartbeat(ctx context.Context, jobID string, progress float64) error

	// ListStaleJobs returns non-terminal jobs whose heartbeat is older than before.
	ListStaleJobs(ctx context.Context, before time.Time) ([]*Job, error)

	// AppendComponentJob inserts a record and assigns its sequence number.
	AppendComponentJob(ctx context.Context, cj *ComponentJob) error

	// ListComponentJobs returns every record of a job in sequence order.
	ListComponentJobs(ctx context.Context, jobID string) ([]*ComponentJob, error)

	// FindCompletedComponentJobs returns the COMPLETED records of a job in
	// sequence order.
	FindCompletedComponentJobs(ctx context.Context, jobID string) ([]*ComponentJob, error)

	// GetInstalledBundle returns the registry row of a bundle, or nil.
	GetInstalledBundle(ctx context.Context, code string) (*InstalledBundle, error)

	// ListInstalledComponents lists the components a bundle owns.
	ListInstalledComponents(ctx context.Context, bundleCode string) ([]*InstalledComponent, error)

	// FindInstalledComponent returns the registry row of a component owned
	// by any bundle, or nil.
	FindInstalledComponent(ctx context.Context, key ComponentKey) (*InstalledComponent, error)

	// CompleteInstall atomically marks the job completed and records the
	// bundle and its components as installed.
	CompleteInstall(ctx context.Context, jobID string, bundle *InstalledBundle, components []*InstalledComponent) error

	// CompleteUninstall atomically marks the job completed and removes the
	// bundle and its components from the registry.
	CompleteUninstall(ctx context.Context, jobID, bundleCode string) error

	// AppendEvent appends an event to a job's timeline.
	AppendEvent(ctx context.Context, event *Event) error
}

// UsageClient looks up what references an installed component.
type UsageClient interface {
	// ComponentUsage returns the references to a component.
	ComponentUsage(ctx context.Context, key ComponentKey) ([]UsageReference, error)
}
