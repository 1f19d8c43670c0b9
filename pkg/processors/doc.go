// Package processors turns a bundle's descriptor tree into ordered
// install/uninstall operations, one processor per component type.
//
// Each processor reads the sub-descriptors its type owns, wraps every one
// in an engine.Operation bound to the EngineClient or ClusterClient call that
// applies it, and reports read or parse failures as a single
// engine.ProcessingError for its type.
//
// DefaultRegistry wires all fifteen processors:
//
//	registry, err := processors.DefaultRegistry(engineClient, clusterClient)
//	scheduler := engine.NewScheduler(store, opener, registry)
//
// Static resources are handled by two processors that do not read
// sub-descriptors. The directory processor synthesizes one folder per
// distinct ancestor of every resource file, rooted at the bundle code and
// ordered parents first; the resource processor uploads the files
// themselves.
package processors
