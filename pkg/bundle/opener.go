package bundle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/Masterminds/semver/v3"
	"github.com/rs/zerolog"

	"github.com/openfroyo/bundlekeeper/pkg/descriptors"
	"github.com/openfroyo/bundlekeeper/pkg/engine"
)

// DirOpener resolves catalog bundles to version directories under their
// local path.
type DirOpener struct {
	logger zerolog.Logger
}

// NewDirOpener creates a filesystem bundle opener.
func NewDirOpener(logger zerolog.Logger) *DirOpener {
	return &DirOpener{
		logger: logger.With().Str("component", "bundle-opener").Logger(),
	}
}

// Open returns a reader for version, or for the newest version when version
// is empty.
func (o *DirOpener) Open(ctx context.Context, b *engine.Bundle, version string) (engine.BundleReader, string, error) {
	reader, resolved, err := o.open(ctx, b.LocalPath, version)
	if err != nil {
		return nil, "", err
	}
	return reader, resolved, nil
}

func (o *DirOpener) open(ctx context.Context, path, version string) (*DirReader, string, error) {
	versions, unversioned, err := o.versions(ctx, path)
	if err != nil {
		return nil, "", err
	}
	if len(versions) == 0 {
		return nil, "", fmt.Errorf("no bundle versions found in %s", path)
	}

	if version == "" {
		version = versions[0]
	} else if !slices.Contains(versions, version) {
		return nil, "", fmt.Errorf("version %s not found in %s", version, path)
	}

	if unversioned {
		return NewDirReader(path), version, nil
	}
	return NewDirReader(filepath.Join(path, version)), version, nil
}

// Versions lists the versions available under path, newest first.
func (o *DirOpener) Versions(ctx context.Context, path string) ([]string, error) {
	versions, _, err := o.versions(ctx, path)
	return versions, err
}

func (o *DirOpener) versions(ctx context.Context, path string) ([]string, bool, error) {
	if _, err := os.Stat(filepath.Join(path, DescriptorFile)); err == nil {
		desc, err := NewDirReader(path).ReadDescriptor(ctx)
		if err != nil {
			return nil, false, err
		}
		version := desc.Version
		if version == "" {
			version = "latest"
		}
		return []string{version}, true, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read bundle directory: %w", err)
	}

	var versions []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(path, entry.Name(), DescriptorFile)); err != nil {
			continue
		}
		versions = append(versions, entry.Name())
	}

	o.sortVersions(versions)
	return versions, false, nil
}

// sortVersions sorts newest first. Names that are not semantic versions
// sort after all that are, in reverse lexical order.
func (o *DirOpener) sortVersions(versions []string) {
	slices.SortFunc(versions, func(a, b string) int {
		va, errA := semver.NewVersion(a)
		vb, errB := semver.NewVersion(b)
		switch {
		case errA == nil && errB == nil:
			return vb.Compare(va)
		case errA == nil:
			return -1
		case errB == nil:
			return 1
		}
		o.logger.Debug().Str("a", a).Str("b", b).Msg("Comparing non-semver bundle versions lexically")
		if a > b {
			return -1
		}
		if a < b {
			return 1
		}
		return 0
	})
}

// Info summarizes a bundle directory for the catalog.
type Info struct {
	Descriptor     *descriptors.BundleDescriptor
	Versions       []string
	ComponentTypes []engine.ComponentType
}

// Inspect reads the newest version of the bundle at path.
func (o *DirOpener) Inspect(ctx context.Context, path string) (*Info, error) {
	reader, _, err := o.open(ctx, path, "")
	if err != nil {
		return nil, err
	}
	desc, err := reader.ReadDescriptor(ctx)
	if err != nil {
		return nil, err
	}
	versions, err := o.Versions(ctx, path)
	if err != nil {
		return nil, err
	}

	return &Info{
		Descriptor:     desc,
		Versions:       versions,
		ComponentTypes: DeclaredTypes(desc, reader.HasResources()),
	}, nil
}

// DeclaredTypes returns the component types a descriptor declares, in rank
// order. Static resources imply directories and files; pages imply page
// configurations.
func DeclaredTypes(desc *descriptors.BundleDescriptor, hasResources bool) []engine.ComponentType {
	c := desc.Components
	declared := map[engine.ComponentType]bool{
		engine.ComponentDirectory:         hasResources,
		engine.ComponentResource:          hasResources,
		engine.ComponentCategory:          len(c.Categories) > 0,
		engine.ComponentGroup:             len(c.Groups) > 0,
		engine.ComponentLanguage:          len(c.Languages) > 0,
		engine.ComponentLabel:             len(c.Labels) > 0,
		engine.ComponentContentType:       len(c.ContentTypes) > 0,
		engine.ComponentContentTemplate:   len(c.ContentTemplates) > 0,
		engine.ComponentContent:           len(c.Contents) > 0,
		engine.ComponentFragment:          len(c.Fragments) > 0,
		engine.ComponentPageTemplate:      len(c.PageTemplates) > 0,
		engine.ComponentPage:              len(c.Pages) > 0,
		engine.ComponentPlugin:            len(c.Plugins) > 0,
		engine.ComponentWidget:            len(c.Widgets) > 0,
		engine.ComponentPageConfiguration: len(c.Pages) > 0,
	}

	var types []engine.ComponentType
	for _, t := range engine.ComponentTypes {
		if declared[t] {
			types = append(types, t)
		}
	}
	return types
}
