package processors

import (
	"context"

	"github.com/openfroyo/bundlekeeper/pkg/descriptors"
	"github.com/openfroyo/bundlekeeper/pkg/engine"
)

// checkFunc validates one parsed representation against the rest of the
// bundle.
type checkFunc[T any] func(rep T) error

// descriptorProcessor reads one sub-descriptor per declared path and wraps
// each in an Operation.
type descriptorProcessor[T any] struct {
	componentType engine.ComponentType

	// planType, when set, plans the operations under another type.
	planType engine.ComponentType

	paths     func(c descriptors.ComponentPaths) []string
	name      func(rep T) string
	install   engine.InstallFunc[T]
	uninstall engine.UninstallFunc[T]

	// prepare, when set, builds a check over the whole bundle once per run.
	prepare func(ctx context.Context, reader engine.BundleReader, desc *descriptors.BundleDescriptor) (checkFunc[T], error)
}

// ComponentType implements engine.Processor.
func (p *descriptorProcessor[T]) ComponentType() engine.ComponentType {
	return p.componentType
}

// Rank implements engine.Processor.
func (p *descriptorProcessor[T]) Rank() int {
	return p.componentType.Rank()
}

// Process implements engine.Processor.
func (p *descriptorProcessor[T]) Process(ctx context.Context, reader engine.BundleReader) ([]engine.Installable, error) {
	desc, err := reader.ReadDescriptor(ctx)
	if err != nil {
		return nil, engine.NewProcessingError(p.componentType, err)
	}

	paths := p.paths(desc.Components)
	if len(paths) == 0 {
		return nil, nil
	}

	var check checkFunc[T]
	if p.prepare != nil {
		if check, err = p.prepare(ctx, reader, desc); err != nil {
			return nil, engine.NewProcessingError(p.componentType, err)
		}
	}

	ops := make([]engine.Installable, 0, len(paths))
	for _, path := range paths {
		var rep T
		if err := reader.ReadSubDescriptor(ctx, path, &rep); err != nil {
			return nil, engine.NewProcessingError(p.componentType, err)
		}
		if check != nil {
			if err := check(rep); err != nil {
				return nil, engine.NewProcessingError(p.componentType, err)
			}
		}

		op, err := engine.NewOperation(p.componentType, p.name(rep), rep, p.install, p.uninstall)
		if err != nil {
			return nil, engine.NewProcessingError(p.componentType, err)
		}
		if p.planType != "" {
			op = op.PlannedAs(p.planType)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// Restore implements engine.Processor.
func (p *descriptorProcessor[T]) Restore(c *engine.InstalledComponent) (engine.Installable, error) {
	op, err := engine.RestoreOperation(p.componentType, c.Name, c.Representation, p.install, p.uninstall)
	if err != nil {
		return nil, err
	}
	if p.planType != "" {
		op = op.PlannedAs(p.planType)
	}
	return op, nil
}

// ProcessWithPlan implements engine.Processor.
func (p *descriptorProcessor[T]) ProcessWithPlan(ctx context.Context, reader engine.BundleReader, pc *engine.PlanContext) ([]engine.Installable, error) {
	return withPlan(ctx, p.componentType, reader, pc, p.Process)
}

// withPlan runs process and filters its output through the plan.
func withPlan(
	ctx context.Context,
	componentType engine.ComponentType,
	reader engine.BundleReader,
	pc *engine.PlanContext,
	process func(context.Context, engine.BundleReader) ([]engine.Installable, error),
) ([]engine.Installable, error) {
	ops, err := process(ctx, reader)
	if err != nil {
		return nil, err
	}
	planned, err := engine.ApplyPlan(ops, pc)
	if err != nil {
		return nil, engine.NewProcessingError(componentType, err)
	}
	return planned, nil
}
