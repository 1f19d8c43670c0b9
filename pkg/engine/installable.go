package engine

import (
	"context"
	"encoding/json"
	"fmt"
)

// Installable is one named, typed, idempotent operation against an external
// system. Implementations are immutable; WithAction and Merge return copies.
type Installable interface {
	// ComponentType returns the type of the component.
	ComponentType() ComponentType

	// PlanType returns the type under which the component is planned. It
	// differs from ComponentType only for derived operations such as page
	// configurations, which follow their page's plan entry.
	PlanType() ComponentType

	// Name returns the natural key of the component.
	Name() string

	// Checksum returns the checksum of the canonical representation.
	Checksum() string

	// Representation returns the canonical JSON of the representation.
	Representation() json.RawMessage

	// Action returns the planned action. Unplanned operations report CREATE.
	Action() InstallAction

	// WithAction returns a copy carrying the given action.
	WithAction(action InstallAction) Installable

	// Merge returns a copy whose representation is reconciled with the
	// installed representation, carrying the MERGE action.
	Merge(installed json.RawMessage) (Installable, error)

	// Install applies the component. Repeating it is a no-op.
	Install(ctx context.Context) error

	// Uninstall removes the component. Removing a missing component succeeds.
	Uninstall(ctx context.Context) error
}

// InstallFunc applies a representation with the given action.
type InstallFunc[T any] func(ctx context.Context, rep T, action InstallAction) error

// UninstallFunc reverses a representation.
type UninstallFunc[T any] func(ctx context.Context, rep T) error

// Operation is the generic Installable over a representation type T.
type Operation[T any] struct {
	componentType ComponentType
	planType      ComponentType
	name          string
	rep           T
	canonical     json.RawMessage
	checksum      string
	action        InstallAction
	install       InstallFunc[T]
	uninstall     UninstallFunc[T]
}

// NewOperation wraps a representation. The checksum is computed once here.
func NewOperation[T any](
	componentType ComponentType,
	name string,
	rep T,
	install InstallFunc[T],
	uninstall UninstallFunc[T],
) (*Operation[T], error) {
	if name == "" {
		return nil, fmt.Errorf("%s component has no name", componentType)
	}

	canonical, err := Canonicalize(rep)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize %s %s: %w", componentType, name, err)
	}

	return &Operation[T]{
		componentType: componentType,
		planType:      componentType,
		name:          name,
		rep:           rep,
		canonical:     canonical,
		checksum:      ChecksumBytes(canonical),
		action:        ActionCreate,
		install:       install,
		uninstall:     uninstall,
	}, nil
}

// RestoreOperation rebuilds an Operation from the canonical representation
// stored in the installed registry.
func RestoreOperation[T any](
	componentType ComponentType,
	name string,
	representation json.RawMessage,
	install InstallFunc[T],
	uninstall UninstallFunc[T],
) (*Operation[T], error) {
	var rep T
	if err := json.Unmarshal(representation, &rep); err != nil {
		return nil, fmt.Errorf("failed to decode installed %s %s: %w", componentType, name, err)
	}
	return NewOperation(componentType, name, rep, install, uninstall)
}

// PlannedAs returns a copy planned under another component type.
func (o *Operation[T]) PlannedAs(planType ComponentType) *Operation[T] {
	cp := *o
	cp.planType = planType
	return &cp
}

// ComponentType implements Installable.
func (o *Operation[T]) ComponentType() ComponentType { return o.componentType }

// PlanType implements Installable.
func (o *Operation[T]) PlanType() ComponentType { return o.planType }

// Name implements Installable.
func (o *Operation[T]) Name() string { return o.name }

// Checksum implements Installable.
func (o *Operation[T]) Checksum() string { return o.checksum }

// Representation implements Installable.
func (o *Operation[T]) Representation() json.RawMessage { return o.canonical }

// Value returns the typed representation.
func (o *Operation[T]) Value() T { return o.rep }

// Action implements Installable.
func (o *Operation[T]) Action() InstallAction { return o.action }

// WithAction implements Installable.
func (o *Operation[T]) WithAction(action InstallAction) Installable {
	cp := *o
	cp.action = action
	return &cp
}

// Merge implements Installable.
func (o *Operation[T]) Merge(installed json.RawMessage) (Installable, error) {
	merged, err := MergeRepresentation(installed, o.rep)
	if err != nil {
		return nil, fmt.Errorf("failed to merge %s %s: %w", o.componentType, o.name, err)
	}

	canonical, err := Canonicalize(merged)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize %s %s: %w", o.componentType, o.name, err)
	}

	cp := *o
	cp.rep = merged
	cp.canonical = canonical
	cp.checksum = ChecksumBytes(canonical)
	cp.action = ActionMerge
	return &cp, nil
}

// Install implements Installable.
func (o *Operation[T]) Install(ctx context.Context) error {
	if o.install == nil {
		return nil
	}
	return o.install(ctx, o.rep, o.action)
}

// Uninstall implements Installable.
func (o *Operation[T]) Uninstall(ctx context.Context) error {
	if o.uninstall == nil {
		return nil
	}
	return o.uninstall(ctx, o.rep)
}

// KeyOf returns the component key of an Installable.
func KeyOf(i Installable) ComponentKey {
	return ComponentKey{Type: i.ComponentType(), Name: i.Name()}
}

// PlanKeyOf returns the key under which an Installable is planned.
func PlanKeyOf(i Installable) ComponentKey {
	return ComponentKey{Type: i.PlanType(), Name: i.Name()}
}
