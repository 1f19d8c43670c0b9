package descriptors

// BundleDescriptor is the root descriptor of one bundle version.
type BundleDescriptor struct {
	// Code is the bundle code, unique across the catalog.
	Code string `yaml:"code" json:"code" validate:"required"`

	// Name is the human-readable bundle name.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// Description is a free-form description.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Version is the declared bundle version.
	Version string `yaml:"version,omitempty" json:"version,omitempty"`

	// Components lists sub-descriptor paths per component type.
	Components ComponentPaths `yaml:"components" json:"components"`
}

// ComponentPaths holds the sub-descriptor references of a bundle, one list per
// component type, in declaration order. Paths are relative to the bundle root.
type ComponentPaths struct {
	Categories       []string `yaml:"categories,omitempty" json:"categories,omitempty"`
	Groups           []string `yaml:"groups,omitempty" json:"groups,omitempty"`
	Languages        []string `yaml:"languages,omitempty" json:"languages,omitempty"`
	Labels           []string `yaml:"labels,omitempty" json:"labels,omitempty"`
	ContentTypes     []string `yaml:"contentTypes,omitempty" json:"contentTypes,omitempty"`
	ContentTemplates []string `yaml:"contentTemplates,omitempty" json:"contentTemplates,omitempty"`
	Contents         []string `yaml:"contents,omitempty" json:"contents,omitempty"`
	Fragments        []string `yaml:"fragments,omitempty" json:"fragments,omitempty"`
	PageTemplates    []string `yaml:"pageTemplates,omitempty" json:"pageTemplates,omitempty"`
	Pages            []string `yaml:"pages,omitempty" json:"pages,omitempty"`
	Widgets          []string `yaml:"widgets,omitempty" json:"widgets,omitempty"`
	Plugins          []string `yaml:"plugins,omitempty" json:"plugins,omitempty"`
}

// Total returns the number of sub-descriptor references declared.
func (c ComponentPaths) Total() int {
	return len(c.Categories) + len(c.Groups) + len(c.Languages) + len(c.Labels) +
		len(c.ContentTypes) + len(c.ContentTemplates) + len(c.Contents) +
		len(c.Fragments) + len(c.PageTemplates) + len(c.Pages) +
		len(c.Widgets) + len(c.Plugins)
}
