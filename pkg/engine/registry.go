package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// ProcessorRegistry maps component types to processors and iterates them in
// rank order.
type ProcessorRegistry struct {
	mu         sync.RWMutex
	processors map[ComponentType]Processor
}

// NewProcessorRegistry creates a registry holding the given processors.
func NewProcessorRegistry(processors ...Processor) (*ProcessorRegistry, error) {
	r := &ProcessorRegistry{
		processors: make(map[ComponentType]Processor, len(processors)),
	}
	for _, p := range processors {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a processor. Each component type may be owned once.
func (r *ProcessorRegistry) Register(p Processor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.processors[p.ComponentType()]; exists {
		return NewPermanentError("processor already registered", nil).
			WithCode(ErrCodeAlreadyExists).
			WithResource(string(p.ComponentType()))
	}
	r.processors[p.ComponentType()] = p
	return nil
}

// Get returns the processor owning a component type.
func (r *ProcessorRegistry) Get(t ComponentType) (Processor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.processors[t]
	return p, ok
}

// Ordered returns the processors sorted by rank.
func (r *ProcessorRegistry) Ordered() []Processor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Processor, 0, len(r.processors))
	for _, p := range r.processors {
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Rank() < out[j].Rank()
	})
	return out
}

// ProcessAll concatenates every processor's output in rank order. With a
// nil plan context every declared component is returned; otherwise only the
// components the plan keeps.
func (r *ProcessorRegistry) ProcessAll(ctx context.Context, reader BundleReader, pc *PlanContext) ([]Installable, error) {
	var all []Installable
	for _, p := range r.Ordered() {
		var (
			ops []Installable
			err error
		)
		if pc == nil {
			ops, err = p.Process(ctx, reader)
		} else {
			ops, err = p.ProcessWithPlan(ctx, reader, pc)
		}
		if err != nil {
			return nil, err
		}

		for _, op := range ops {
			if op.ComponentType() != p.ComponentType() {
				return nil, fmt.Errorf("processor %s returned a %s operation", p.ComponentType(), op.ComponentType())
			}
		}
		all = append(all, ops...)
	}
	return all, nil
}

// Restore rebuilds the operation of an installed component with the
// processor owning its type.
func (r *ProcessorRegistry) Restore(c *InstalledComponent) (Installable, error) {
	p, ok := r.Get(c.Type)
	if !ok {
		return nil, NewPermanentError("no processor for installed component", nil).
			WithCode(ErrCodeNotFound).
			WithResource(c.Key().String())
	}
	op, err := p.Restore(c)
	if err != nil {
		return nil, NewPermanentError(fmt.Sprintf("failed to restore %s", c.Key()), err).
			WithCode(ErrCodeInternal).
			WithResource(c.Key().String())
	}
	return op, nil
}
