// Package descriptors defines the in-memory descriptor tree of a bundle version.
//
// A bundle is declared by a root descriptor (descriptor.yaml) that lists, per
// component type, the paths of typed sub-descriptors. Each sub-descriptor
// parses into one of the representation types in this package; the
// representation is what component processors wrap into installable
// operations and what the planner hashes to detect changes.
//
// Descriptor values are read-only once parsed. Nothing in the engine mutates
// them; MERGE produces a new value instead.
package descriptors
