package engine

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// ComponentType identifies one kind of bundle component.
type ComponentType string

const (
	ComponentDirectory         ComponentType = "directory"
	ComponentResource          ComponentType = "resource"
	ComponentCategory          ComponentType = "category"
	ComponentGroup             ComponentType = "group"
	ComponentLanguage          ComponentType = "language"
	ComponentLabel             ComponentType = "label"
	ComponentContentType       ComponentType = "contentType"
	ComponentContentTemplate   ComponentType = "contentTemplate"
	ComponentContent           ComponentType = "content"
	ComponentFragment          ComponentType = "fragment"
	ComponentPageTemplate      ComponentType = "pageTemplate"
	ComponentPage              ComponentType = "page"
	ComponentPlugin            ComponentType = "plugin"
	ComponentWidget            ComponentType = "widget"
	ComponentPageConfiguration ComponentType = "pageConfiguration"
)

// ComponentTypes lists every component type in execution rank order.
var ComponentTypes = []ComponentType{
	ComponentDirectory,
	ComponentResource,
	ComponentCategory,
	ComponentGroup,
	ComponentLanguage,
	ComponentLabel,
	ComponentContentType,
	ComponentContentTemplate,
	ComponentContent,
	ComponentFragment,
	ComponentPageTemplate,
	ComponentPage,
	ComponentPlugin,
	ComponentWidget,
	ComponentPageConfiguration,
}

var componentDisplayNames = map[ComponentType]string{
	ComponentDirectory:         "directory",
	ComponentResource:          "resource",
	ComponentCategory:          "category",
	ComponentGroup:             "group",
	ComponentLanguage:          "language",
	ComponentLabel:             "label",
	ComponentContentType:       "content type",
	ComponentContentTemplate:   "content template",
	ComponentContent:           "content",
	ComponentFragment:          "fragment",
	ComponentPageTemplate:      "page template",
	ComponentPage:              "page",
	ComponentPlugin:            "plugin",
	ComponentWidget:            "widget",
	ComponentPageConfiguration: "page configuration",
}

// Rank returns the execution rank of the type; lower runs first on install.
// Unknown types rank after every known type.
func (t ComponentType) Rank() int {
	for i, ct := range ComponentTypes {
		if ct == t {
			return i
		}
	}
	return len(ComponentTypes)
}

// DisplayName returns the human-readable name used in error messages.
func (t ComponentType) DisplayName() string {
	if name, ok := componentDisplayNames[t]; ok {
		return name
	}
	return string(t)
}

// IsSystemScoped reports whether components of this type are shared across
// bundles, so analysis matches them regardless of the owning bundle.
func (t ComponentType) IsSystemScoped() bool {
	switch t {
	case ComponentGroup, ComponentCategory, ComponentLanguage, ComponentLabel:
		return true
	default:
		return false
	}
}

// IsPlanned reports whether components of this type appear in analysis
// reports and install plans. Directories and resource files are always
// applied; their operations are idempotent uploads.
func (t ComponentType) IsPlanned() bool {
	return t != ComponentDirectory && t != ComponentResource
}

// Validate checks if the component type is known.
func (t ComponentType) Validate() error {
	if _, ok := componentDisplayNames[t]; ok {
		return nil
	}
	return fmt.Errorf("invalid component type: %s", t)
}

// ComponentKey is the natural key of a component.
type ComponentKey struct {
	Type ComponentType `json:"type"`
	Name string        `json:"name"`
}

// String returns the key as "type/name".
func (k ComponentKey) String() string {
	return string(k.Type) + "/" + k.Name
}

// InstallAction is the decision attached to one component by the planner.
type InstallAction string

const (
	ActionCreate   InstallAction = "CREATE"
	ActionOverride InstallAction = "OVERRIDE"
	ActionSkip     InstallAction = "SKIP"
	ActionMerge    InstallAction = "MERGE"
)

// Validate checks if the action is valid.
func (a InstallAction) Validate() error {
	switch a {
	case ActionCreate, ActionOverride, ActionSkip, ActionMerge:
		return nil
	default:
		return fmt.Errorf("invalid install action: %s", a)
	}
}

// Overwrites reports whether the action replaces an existing component.
func (a InstallAction) Overwrites() bool {
	return a == ActionOverride || a == ActionMerge
}

// DiffStatus classifies a declared component against what is installed.
type DiffStatus string

const (
	DiffNew   DiffStatus = "NEW"
	DiffDiff  DiffStatus = "DIFF"
	DiffEqual DiffStatus = "EQUAL"
)

// ConflictStrategy turns a DiffStatus into an InstallAction.
type ConflictStrategy string

const (
	StrategyCreate     ConflictStrategy = "CREATE"
	StrategyCreateOnly ConflictStrategy = "CREATE_ONLY"
	StrategyOverride   ConflictStrategy = "OVERRIDE"
	StrategyMerge      ConflictStrategy = "MERGE"
)

// Validate checks if the strategy is valid. The empty strategy means CREATE.
func (s ConflictStrategy) Validate() error {
	switch s {
	case "", StrategyCreate, StrategyCreateOnly, StrategyOverride, StrategyMerge:
		return nil
	default:
		return fmt.Errorf("invalid conflict strategy: %s", s)
	}
}

// ActionFor returns the action the strategy assigns to a diff status.
func (s ConflictStrategy) ActionFor(status DiffStatus) InstallAction {
	if status == DiffNew {
		return ActionCreate
	}
	if status == DiffEqual {
		return ActionSkip
	}

	switch s {
	case StrategyOverride:
		return ActionOverride
	case StrategyMerge:
		return ActionMerge
	default:
		return ActionSkip
	}
}

// ComponentInstallPlan is the plan entry for one component.
type ComponentInstallPlan struct {
	DiffStatus DiffStatus    `json:"diffStatus"`
	Action     InstallAction `json:"action"`
}

// InstallPlan maps component type -> component name -> plan entry.
type InstallPlan map[ComponentType]map[string]ComponentInstallPlan

// Get returns the plan entry for a component.
func (p InstallPlan) Get(t ComponentType, name string) (ComponentInstallPlan, bool) {
	byName, ok := p[t]
	if !ok {
		return ComponentInstallPlan{}, false
	}
	entry, ok := byName[name]
	return entry, ok
}

// Set stores the plan entry for a component.
func (p InstallPlan) Set(t ComponentType, name string, entry ComponentInstallPlan) {
	if p[t] == nil {
		p[t] = make(map[string]ComponentInstallPlan)
	}
	p[t][name] = entry
}

// Count returns the number of entries across all types.
func (p InstallPlan) Count() int {
	n := 0
	for _, byName := range p {
		n += len(byName)
	}
	return n
}

// Keys returns all component keys in rank then name order.
func (p InstallPlan) Keys() []ComponentKey {
	keys := make([]ComponentKey, 0, p.Count())
	for t, byName := range p {
		for name := range byName {
			keys = append(keys, ComponentKey{Type: t, Name: name})
		}
	}
	sortKeys(keys)
	return keys
}

// AnalysisReport maps component type -> component name -> diff status.
type AnalysisReport map[ComponentType]map[string]DiffStatus

// Get returns the diff status of a component.
func (r AnalysisReport) Get(t ComponentType, name string) (DiffStatus, bool) {
	byName, ok := r[t]
	if !ok {
		return "", false
	}
	status, ok := byName[name]
	return status, ok
}

// Set stores the diff status of a component.
func (r AnalysisReport) Set(t ComponentType, name string, status DiffStatus) {
	if r[t] == nil {
		r[t] = make(map[string]DiffStatus)
	}
	r[t][name] = status
}

// Count returns the number of entries across all types.
func (r AnalysisReport) Count() int {
	n := 0
	for _, byName := range r {
		n += len(byName)
	}
	return n
}

// Keys returns all component keys in rank then name order.
func (r AnalysisReport) Keys() []ComponentKey {
	keys := make([]ComponentKey, 0, r.Count())
	for t, byName := range r {
		for name := range byName {
			keys = append(keys, ComponentKey{Type: t, Name: name})
		}
	}
	sortKeys(keys)
	return keys
}

func sortKeys(keys []ComponentKey) {
	sort.Slice(keys, func(i, j int) bool {
		ri, rj := keys[i].Type.Rank(), keys[j].Type.Rank()
		if ri != rj {
			return ri < rj
		}
		return keys[i].Name < keys[j].Name
	})
}

// Bundle is a catalog entry for an installable bundle.
type Bundle struct {
	// Code is the unique bundle code.
	Code string `json:"code"`

	// RepoURL is the repository the bundle is distributed from.
	RepoURL string `json:"repo_url"`

	// BundleID is derived from RepoURL (see BundleIDFromURL).
	BundleID string `json:"bundle_id"`

	// LocalPath is the directory holding the bundle's versions.
	LocalPath string `json:"local_path"`

	// ComponentTypes is the declared component-type set.
	ComponentTypes []ComponentType `json:"component_types,omitempty"`

	// Versions lists the available versions.
	Versions []string `json:"versions,omitempty"`

	// InstalledVersion is the currently installed version, or "".
	InstalledVersion string `json:"installed_version,omitempty"`

	// LastJobID references the most recent job of any type.
	LastJobID string `json:"last_job_id,omitempty"`

	// LastInstallJobID references the install job that completed the
	// current installation.
	LastInstallJobID string `json:"last_install_job_id,omitempty"`

	// CreatedAt is when the bundle was registered.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the catalog entry last changed.
	UpdatedAt time.Time `json:"updated_at"`
}

// Installed reports whether the bundle is currently installed.
func (b *Bundle) Installed() bool {
	return b.InstalledVersion != ""
}

// Job is one install or uninstall run for one bundle.
type Job struct {
	// ID is the unique identifier for this job.
	ID string `json:"id"`

	// BundleCode is the bundle this job operates on.
	BundleCode string `json:"bundle_code"`

	// BundleVersion is the version being installed or removed.
	BundleVersion string `json:"bundle_version,omitempty"`

	// Type is INSTALL or UNINSTALL.
	Type JobType `json:"type"`

	// Status is the current state machine status.
	Status JobStatus `json:"status"`

	// Progress is the fraction of operations executed, in [0, 1].
	Progress float64 `json:"progress"`

	// Error is the failure message for error states.
	Error string `json:"error,omitempty"`

	// ErrorCode is the classified failure code for error states.
	ErrorCode string `json:"error_code,omitempty"`

	// User is the user that requested the run.
	User string `json:"user,omitempty"`

	// StartedAt is when the job was created.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the job reached a terminal status.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// HeartbeatAt is refreshed by the worker after every operation.
	HeartbeatAt time.Time `json:"heartbeat_at"`
}

// Duration returns how long the job ran, or ran so far.
func (j *Job) Duration() time.Duration {
	if j.FinishedAt != nil {
		return j.FinishedAt.Sub(j.StartedAt)
	}
	return time.Since(j.StartedAt)
}

// ComponentJob is the immutable outcome record of one operation.
type ComponentJob struct {
	// ID is the unique identifier for this record.
	ID string `json:"id"`

	// JobID references the parent job.
	JobID string `json:"job_id"`

	// ComponentType is the type of the component.
	ComponentType ComponentType `json:"component_type"`

	// ComponentName is the natural key of the component.
	ComponentName string `json:"component_name"`

	// Action is the plan action that was executed.
	Action InstallAction `json:"action,omitempty"`

	// Status is the outcome of the operation.
	Status ComponentJobStatus `json:"status"`

	// Checksum is the checksum of the applied representation.
	Checksum string `json:"checksum"`

	// Representation is the canonical JSON of the applied representation.
	Representation json.RawMessage `json:"representation,omitempty"`

	// Sequence is assigned by the store, strictly increasing per job.
	Sequence int64 `json:"sequence"`

	// RollbackOf references the COMPLETED record a rollback record reverses.
	RollbackOf string `json:"rollback_of,omitempty"`

	// Error is the failure message for ERROR and ROLLBACK_ERROR records.
	Error string `json:"error,omitempty"`

	// CreatedAt is when the record was written.
	CreatedAt time.Time `json:"created_at"`
}

// Key returns the component key of the record.
func (c *ComponentJob) Key() ComponentKey {
	return ComponentKey{Type: c.ComponentType, Name: c.ComponentName}
}

// InstalledBundle is the registry row of an installed bundle.
type InstalledBundle struct {
	Code        string    `json:"code"`
	Version     string    `json:"version"`
	Digest      string    `json:"digest"`
	JobID       string    `json:"job_id"`
	InstalledAt time.Time `json:"installed_at"`
}

// InstalledComponent is the registry row of an installed component.
type InstalledComponent struct {
	Type           ComponentType   `json:"type"`
	Name           string          `json:"name"`
	BundleCode     string          `json:"bundle_code"`
	Checksum       string          `json:"checksum"`
	Representation json.RawMessage `json:"representation,omitempty"`
	JobID          string          `json:"job_id"`
	InstalledAt    time.Time       `json:"installed_at"`
}

// Key returns the component key of the row.
func (c *InstalledComponent) Key() ComponentKey {
	return ComponentKey{Type: c.Type, Name: c.Name}
}

// Event represents a timeline event of a job.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Type is the type of event.
	Type EventType `json:"type"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// JobID is the ID of the job this event belongs to.
	JobID string `json:"job_id"`

	// ComponentJobID is the ID of the component job, if applicable.
	ComponentJobID string `json:"component_job_id,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Details contains additional event-specific data.
	Details map[string]interface{} `json:"details,omitempty"`

	// Level is the log level (info, warning, error).
	Level string `json:"level"`
}

// ReferenceType classifies a usage reference.
type ReferenceType string

const (
	ReferenceInternal ReferenceType = "INTERNAL"
	ReferenceExternal ReferenceType = "EXTERNAL"
)

// UsageReference is one reference returned by the engine's usage lookup.
type UsageReference struct {
	ComponentType ComponentType `json:"componentType"`
	Code          string        `json:"code"`
}

// ClassifiedReference is a usage reference tagged INTERNAL or EXTERNAL.
type ClassifiedReference struct {
	UsageReference
	Type ReferenceType `json:"type"`
}

// ComponentUsage is the classified usage of one installed component.
type ComponentUsage struct {
	Component  ComponentKey          `json:"component"`
	References []ClassifiedReference `json:"references"`
}
