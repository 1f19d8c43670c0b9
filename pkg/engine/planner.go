package engine

import (
	"context"
	"fmt"
)

// PlanContext carries the plan-directed processing inputs for one install run.
type PlanContext struct {
	// Strategy decides actions for components the plan does not name.
	Strategy ConflictStrategy

	// Plan holds the decided action per component.
	Plan InstallPlan

	// Report holds the diff status per component.
	Report AnalysisReport

	// Installed holds the registry rows of already-installed components,
	// used to reconcile MERGE actions.
	Installed map[ComponentKey]*InstalledComponent
}

// Decide returns the plan entry for an Installable. Components the plan does
// not cover fall back to the report and the strategy.
func (pc *PlanContext) Decide(op Installable) ComponentInstallPlan {
	key := PlanKeyOf(op)
	if entry, ok := pc.Plan.Get(key.Type, key.Name); ok {
		return entry
	}

	status, ok := pc.Report.Get(key.Type, key.Name)
	if !ok {
		status = DiffNew
	}
	return ComponentInstallPlan{DiffStatus: status, Action: pc.Strategy.ActionFor(status)}
}

// ApplyPlan filters and annotates operations according to the plan: SKIP
// drops the operation, CREATE and OVERRIDE attach the action, MERGE
// reconciles the representation with the installed one.
func ApplyPlan(ops []Installable, pc *PlanContext) ([]Installable, error) {
	if pc == nil {
		return ops, nil
	}

	out := make([]Installable, 0, len(ops))
	for _, op := range ops {
		if !op.PlanType().IsPlanned() {
			out = append(out, op)
			continue
		}
		entry := pc.Decide(op)

		switch entry.Action {
		case ActionSkip:
			continue
		case ActionMerge:
			installed := pc.Installed[KeyOf(op)]
			if installed == nil {
				// Nothing to reconcile with
				if entry.DiffStatus == DiffNew {
					out = append(out, op.WithAction(ActionCreate))
				} else {
					out = append(out, op.WithAction(ActionOverride))
				}
				continue
			}

			merged, err := op.Merge(installed.Representation)
			if err != nil {
				return nil, err
			}
			out = append(out, merged)
		default:
			out = append(out, op.WithAction(entry.Action))
		}
	}
	return out, nil
}

// Planner builds analysis reports and install plans against the installed
// registry.
type Planner struct {
	store JobStore
}

// NewPlanner creates a planner reading the installed registry from store.
func NewPlanner(store JobStore) *Planner {
	return &Planner{store: store}
}

// Analyze classifies every declared component as NEW, DIFF or EQUAL. Derived
// and unplanned operations are not reported. The returned map holds every
// installed row found, keyed by component key.
func (p *Planner) Analyze(
	ctx context.Context,
	bundleCode string,
	installables []Installable,
) (AnalysisReport, map[ComponentKey]*InstalledComponent, error) {
	report := make(AnalysisReport)
	installed := make(map[ComponentKey]*InstalledComponent)

	for _, op := range installables {
		key := KeyOf(op)
		row, err := p.lookupInstalled(ctx, bundleCode, key)
		if err != nil {
			return nil, nil, err
		}
		if row != nil {
			installed[key] = row
		}

		// Derived operations share their plan type's entry
		if op.PlanType() != op.ComponentType() || !key.Type.IsPlanned() {
			continue
		}

		switch {
		case row == nil:
			report.Set(key.Type, key.Name, DiffNew)
		case row.Checksum == op.Checksum():
			report.Set(key.Type, key.Name, DiffEqual)
		default:
			report.Set(key.Type, key.Name, DiffDiff)
		}
	}

	return report, installed, nil
}

// lookupInstalled returns the registry row that counts as installed for the
// bundle: system-scoped types match any owner, others only the bundle itself.
func (p *Planner) lookupInstalled(ctx context.Context, bundleCode string, key ComponentKey) (*InstalledComponent, error) {
	row, err := p.store.FindInstalledComponent(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to look up installed %s: %w", key, err)
	}
	if row == nil {
		return nil, nil
	}
	if !key.Type.IsSystemScoped() && row.BundleCode != bundleCode {
		return nil, nil
	}
	return row, nil
}

// BuildPlan turns a report into a plan. Override entries take precedence over
// the strategy; overrides naming components the report does not contain are
// rejected.
func (p *Planner) BuildPlan(report AnalysisReport, strategy ConflictStrategy, overrides InstallPlan) (InstallPlan, error) {
	if report == nil {
		return nil, NewValidationError("analysis report is nil")
	}
	if err := strategy.Validate(); err != nil {
		return nil, NewValidationError(err.Error())
	}

	plan := make(InstallPlan, len(report))
	for t, byName := range report {
		for name, status := range byName {
			plan.Set(t, name, ComponentInstallPlan{
				DiffStatus: status,
				Action:     strategy.ActionFor(status),
			})
		}
	}

	for t, byName := range overrides {
		for name, override := range byName {
			entry, ok := plan.Get(t, name)
			if !ok {
				return nil, NewValidationError("override references an undeclared component").
					WithResource(ComponentKey{Type: t, Name: name}.String())
			}
			if err := override.Action.Validate(); err != nil {
				return nil, NewValidationError(err.Error()).
					WithResource(ComponentKey{Type: t, Name: name}.String())
			}
			entry.Action = override.Action
			plan.Set(t, name, entry)
		}
	}

	return plan, nil
}

// PlanSummary provides statistics about an install plan.
type PlanSummary struct {
	// Total is the number of planned components.
	Total int `json:"total"`

	New   int `json:"new"`
	Diff  int `json:"diff"`
	Equal int `json:"equal"`

	ToCreate   int `json:"to_create"`
	ToOverride int `json:"to_override"`
	ToMerge    int `json:"to_merge"`
	ToSkip     int `json:"to_skip"`
}

// Summarize counts diff statuses and actions of a plan.
func Summarize(plan InstallPlan) PlanSummary {
	var s PlanSummary
	for _, byName := range plan {
		for _, entry := range byName {
			s.Total++

			switch entry.DiffStatus {
			case DiffNew:
				s.New++
			case DiffDiff:
				s.Diff++
			case DiffEqual:
				s.Equal++
			}

			switch entry.Action {
			case ActionCreate:
				s.ToCreate++
			case ActionOverride:
				s.ToOverride++
			case ActionMerge:
				s.ToMerge++
			case ActionSkip:
				s.ToSkip++
			}
		}
	}
	return s
}
