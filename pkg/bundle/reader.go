package bundle

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/bundlekeeper/pkg/descriptors"
)

const (
	// DescriptorFile is the root descriptor of a bundle version.
	DescriptorFile = "descriptor.yaml"

	// ResourcesDir holds the static resources of a bundle version.
	ResourcesDir = "resources"
)

var validate = validator.New()

// DirReader reads one bundle version from a directory.
type DirReader struct {
	root string
}

// NewDirReader creates a reader rooted at dir.
func NewDirReader(dir string) *DirReader {
	return &DirReader{root: dir}
}

// Root returns the directory the reader is rooted at.
func (r *DirReader) Root() string {
	return r.root
}

// ReadDescriptor parses and validates the root descriptor.
func (r *DirReader) ReadDescriptor(ctx context.Context) (*descriptors.BundleDescriptor, error) {
	var desc descriptors.BundleDescriptor
	if err := r.decode(ctx, DescriptorFile, &desc); err != nil {
		return nil, err
	}
	return &desc, nil
}

// ReadSubDescriptor parses the sub-descriptor at path into out and validates
// it. out must be a pointer to a descriptor struct.
func (r *DirReader) ReadSubDescriptor(ctx context.Context, path string, out interface{}) error {
	return r.decode(ctx, path, out)
}

// ListResourceFiles lists every file under resources/, relative to it, with
// forward slashes, in lexical order. A missing resources/ folder yields an
// empty list.
func (r *DirReader) ListResourceFiles(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base := filepath.Join(r.root, ResourcesDir)
	var files []string
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to walk resources: %w", err)
	}

	sort.Strings(files)
	return files, nil
}

// ReadResourceFile returns the content of a file under resources/.
func (r *DirReader) ReadResourceFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := r.resolve(filepath.Join(ResourcesDir, filepath.FromSlash(path)))
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("failed to read resource %s: %w", path, err)
	}
	return data, nil
}

// HasResources reports whether the version ships static resources.
func (r *DirReader) HasResources() bool {
	info, err := os.Stat(filepath.Join(r.root, ResourcesDir))
	return err == nil && info.IsDir()
}

func (r *DirReader) decode(ctx context.Context, path string, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	full, err := r.resolve(filepath.FromSlash(path))
	if err != nil {
		return err
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return fmt.Errorf("failed to read descriptor %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse descriptor %s: %w", path, err)
	}

	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("invalid descriptor %s: %w", path, err)
	}
	return nil
}

// resolve joins a bundle-relative path onto the root, rejecting paths that
// would leave it.
func (r *DirReader) resolve(rel string) (string, error) {
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("descriptor path escapes bundle root: %s", rel)
	}
	return filepath.Join(r.root, rel), nil
}
