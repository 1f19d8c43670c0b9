// Package bundle reads bundle descriptor trees from the local filesystem.
//
// A bundle directory holds one subdirectory per version, each with a root
// descriptor.yaml, the sub-descriptors it references and an optional
// resources/ folder of static files:
//
//	todomvc/
//	  1.0.0/
//	    descriptor.yaml
//	    widgets/todomvc-widget.yaml
//	    resources/js/app.js
//	  1.1.0/
//	    ...
//
// A directory holding descriptor.yaml at its root is treated as a single,
// unversioned bundle whose version comes from the descriptor.
package bundle
