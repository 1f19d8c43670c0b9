package processors

import (
	"context"
	"encoding/base64"
	"path"
	"sort"
	"strings"

	"github.com/openfroyo/bundlekeeper/pkg/descriptors"
	"github.com/openfroyo/bundlekeeper/pkg/engine"
)

// directoryProcessor synthesizes the folders resource files live in.
type directoryProcessor struct {
	client EngineClient
}

// NewDirectoryProcessor returns the processor for resource folders.
func NewDirectoryProcessor(client EngineClient) engine.Processor {
	return &directoryProcessor{client: client}
}

func (p *directoryProcessor) ComponentType() engine.ComponentType { return engine.ComponentDirectory }

func (p *directoryProcessor) Rank() int { return engine.ComponentDirectory.Rank() }

// Process returns one folder per distinct ancestor of every resource file,
// parents before children. The bundle code is the root folder.
func (p *directoryProcessor) Process(ctx context.Context, reader engine.BundleReader) ([]engine.Installable, error) {
	desc, files, err := readResources(ctx, reader)
	if err != nil {
		return nil, engine.NewProcessingError(engine.ComponentDirectory, err)
	}
	if len(files) == 0 {
		return nil, nil
	}

	seen := map[string]bool{desc.Code: true}
	dirs := []string{desc.Code}
	for _, file := range files {
		for dir := path.Dir(resourcePath(desc.Code, file)); dir != desc.Code && dir != "."; dir = path.Dir(dir) {
			if !seen[dir] {
				seen[dir] = true
				dirs = append(dirs, dir)
			}
		}
	}

	sort.Slice(dirs, func(i, j int) bool {
		di, dj := strings.Count(dirs[i], "/"), strings.Count(dirs[j], "/")
		if di != dj {
			return di < dj
		}
		return dirs[i] < dirs[j]
	})

	ops := make([]engine.Installable, 0, len(dirs))
	for _, dir := range dirs {
		rep := descriptors.DirectoryDescriptor{Path: dir, Root: dir == desc.Code}
		op, err := engine.NewOperation(engine.ComponentDirectory, dir, rep, p.install, p.uninstall)
		if err != nil {
			return nil, engine.NewProcessingError(engine.ComponentDirectory, err)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func (p *directoryProcessor) Restore(c *engine.InstalledComponent) (engine.Installable, error) {
	op, err := engine.RestoreOperation[descriptors.DirectoryDescriptor](engine.ComponentDirectory, c.Name, c.Representation, p.install, p.uninstall)
	if err != nil {
		return nil, err
	}
	return op, nil
}

func (p *directoryProcessor) install(ctx context.Context, d descriptors.DirectoryDescriptor, _ engine.InstallAction) error {
	return p.client.CreateFolder(ctx, d)
}

func (p *directoryProcessor) uninstall(ctx context.Context, d descriptors.DirectoryDescriptor) error {
	return p.client.DeleteFolder(ctx, d.Path)
}

func (p *directoryProcessor) ProcessWithPlan(ctx context.Context, reader engine.BundleReader, pc *engine.PlanContext) ([]engine.Installable, error) {
	return withPlan(ctx, engine.ComponentDirectory, reader, pc, p.Process)
}

// resourceProcessor uploads static resource files.
type resourceProcessor struct {
	client EngineClient
}

// NewResourceProcessor returns the processor for static resource files.
func NewResourceProcessor(client EngineClient) engine.Processor {
	return &resourceProcessor{client: client}
}

func (p *resourceProcessor) ComponentType() engine.ComponentType { return engine.ComponentResource }

func (p *resourceProcessor) Rank() int { return engine.ComponentResource.Rank() }

// Process returns one upload per resource file in lexical path order.
func (p *resourceProcessor) Process(ctx context.Context, reader engine.BundleReader) ([]engine.Installable, error) {
	desc, files, err := readResources(ctx, reader)
	if err != nil {
		return nil, engine.NewProcessingError(engine.ComponentResource, err)
	}

	ops := make([]engine.Installable, 0, len(files))
	for _, file := range files {
		content, err := reader.ReadResourceFile(ctx, file)
		if err != nil {
			return nil, engine.NewProcessingError(engine.ComponentResource, err)
		}

		full := resourcePath(desc.Code, file)
		rep := descriptors.FileDescriptor{
			Path:     full,
			Folder:   path.Dir(full),
			Filename: path.Base(full),
			Base64:   base64.StdEncoding.EncodeToString(content),
		}
		op, err := engine.NewOperation(engine.ComponentResource, full, rep, p.install, p.uninstall)
		if err != nil {
			return nil, engine.NewProcessingError(engine.ComponentResource, err)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func (p *resourceProcessor) Restore(c *engine.InstalledComponent) (engine.Installable, error) {
	op, err := engine.RestoreOperation[descriptors.FileDescriptor](engine.ComponentResource, c.Name, c.Representation, p.install, p.uninstall)
	if err != nil {
		return nil, err
	}
	return op, nil
}

func (p *resourceProcessor) install(ctx context.Context, f descriptors.FileDescriptor, action engine.InstallAction) error {
	return p.client.UploadFile(ctx, f, action.Overwrites())
}

func (p *resourceProcessor) uninstall(ctx context.Context, f descriptors.FileDescriptor) error {
	return p.client.DeleteFile(ctx, f.Path)
}

func (p *resourceProcessor) ProcessWithPlan(ctx context.Context, reader engine.BundleReader, pc *engine.PlanContext) ([]engine.Installable, error) {
	return withPlan(ctx, engine.ComponentResource, reader, pc, p.Process)
}

func readResources(ctx context.Context, reader engine.BundleReader) (*descriptors.BundleDescriptor, []string, error) {
	desc, err := reader.ReadDescriptor(ctx)
	if err != nil {
		return nil, nil, err
	}
	files, err := reader.ListResourceFiles(ctx)
	if err != nil {
		return nil, nil, err
	}
	return desc, files, nil
}

// resourcePath places a resource file under the bundle's root folder.
func resourcePath(bundleCode, file string) string {
	return path.Join(bundleCode, path.Clean("/"+file)[1:])
}
