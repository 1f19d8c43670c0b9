package descriptors

// DirectoryDescriptor is a folder in the engine's file browser.
type DirectoryDescriptor struct {
	Path string `json:"path" validate:"required"`

	// Root marks the bundle's top-level resource folder.
	Root bool `json:"root,omitempty"`
}

// FileDescriptor is a static resource uploaded into a folder.
type FileDescriptor struct {
	// Path is the full engine path (folder + filename).
	Path     string `json:"path" validate:"required"`
	Folder   string `json:"folder"`
	Filename string `json:"filename" validate:"required"`

	// Base64 is the base64-encoded file content.
	Base64 string `json:"base64"`
}

// CategoryDescriptor describes a content category.
type CategoryDescriptor struct {
	Code       string            `yaml:"code" json:"code" validate:"required"`
	ParentCode string            `yaml:"parentCode,omitempty" json:"parentCode,omitempty"`
	Titles     map[string]string `yaml:"titles" json:"titles" validate:"required,min=1"`
}

// GroupDescriptor describes a user/ownership group.
type GroupDescriptor struct {
	Code string `yaml:"code" json:"code" validate:"required"`
	Name string `yaml:"name" json:"name" validate:"required"`
}

// LanguageDescriptor activates a language in the engine.
type LanguageDescriptor struct {
	Code        string `yaml:"code" json:"code" validate:"required"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// LabelDescriptor is a localized i18n label.
type LabelDescriptor struct {
	Key    string            `yaml:"key" json:"key" validate:"required"`
	Titles map[string]string `yaml:"titles" json:"titles" validate:"required,min=1"`
}

// ContentTypeAttribute is one typed attribute of a content type.
type ContentTypeAttribute struct {
	Code      string            `yaml:"code" json:"code" validate:"required"`
	Type      string            `yaml:"type" json:"type" validate:"required"`
	Names     map[string]string `yaml:"names,omitempty" json:"names,omitempty"`
	Mandatory bool              `yaml:"mandatory,omitempty" json:"mandatory,omitempty"`
}

// ContentTypeDescriptor describes a CMS content type.
type ContentTypeDescriptor struct {
	Code       string                 `yaml:"code" json:"code" validate:"required"`
	Name       string                 `yaml:"name" json:"name" validate:"required"`
	Status     string                 `yaml:"status,omitempty" json:"status,omitempty"`
	Attributes []ContentTypeAttribute `yaml:"attributes,omitempty" json:"attributes,omitempty" validate:"dive"`
}

// ContentTemplateDescriptor describes a content rendering template.
type ContentTemplateDescriptor struct {
	ID           string `yaml:"id" json:"id" validate:"required"`
	ContentType  string `yaml:"contentType" json:"contentType" validate:"required"`
	Description  string `yaml:"description,omitempty" json:"description,omitempty"`
	ContentShape string `yaml:"contentShape,omitempty" json:"contentShape,omitempty"`
}

// ContentDescriptor describes a piece of CMS content.
type ContentDescriptor struct {
	ID          string                 `yaml:"id" json:"id" validate:"required"`
	TypeCode    string                 `yaml:"typeCode" json:"typeCode" validate:"required"`
	Description string                 `yaml:"description,omitempty" json:"description,omitempty"`
	MainGroup   string                 `yaml:"mainGroup,omitempty" json:"mainGroup,omitempty"`
	Status      string                 `yaml:"status,omitempty" json:"status,omitempty"`
	Categories  []string               `yaml:"categories,omitempty" json:"categories,omitempty"`
	Attributes  map[string]interface{} `yaml:"attributes,omitempty" json:"attributes,omitempty"`
}

// FragmentDescriptor describes a reusable GUI fragment.
type FragmentDescriptor struct {
	Code    string `yaml:"code" json:"code" validate:"required"`
	GuiCode string `yaml:"guiCode" json:"guiCode"`
}

// Frame is one placement slot of a page template.
type Frame struct {
	Pos         int    `yaml:"pos" json:"pos"`
	Description string `yaml:"description" json:"description"`
	MainFrame   bool   `yaml:"mainFrame,omitempty" json:"mainFrame,omitempty"`
}

// PageTemplateDescriptor describes a page template and its frames.
type PageTemplateDescriptor struct {
	Code        string  `yaml:"code" json:"code" validate:"required"`
	Description string  `yaml:"description,omitempty" json:"description,omitempty"`
	Template    string  `yaml:"template" json:"template"`
	Frames      []Frame `yaml:"frames,omitempty" json:"frames,omitempty"`
}

// WidgetPlacement puts a widget into a page frame.
type WidgetPlacement struct {
	Pos    int               `yaml:"pos" json:"pos"`
	Code   string            `yaml:"code" json:"code" validate:"required"`
	Config map[string]string `yaml:"config,omitempty" json:"config,omitempty"`
}

// PageDescriptor describes a page. The same descriptor feeds both the page
// and the page configuration processors.
type PageDescriptor struct {
	Code            string            `yaml:"code" json:"code" validate:"required"`
	ParentCode      string            `yaml:"parentCode,omitempty" json:"parentCode,omitempty"`
	Titles          map[string]string `yaml:"titles" json:"titles" validate:"required,min=1"`
	PageModel       string            `yaml:"pageModel" json:"pageModel" validate:"required"`
	OwnerGroup      string            `yaml:"ownerGroup,omitempty" json:"ownerGroup,omitempty"`
	JoinGroups      []string          `yaml:"joinGroups,omitempty" json:"joinGroups,omitempty"`
	DisplayedInMenu bool              `yaml:"displayedInMenu,omitempty" json:"displayedInMenu,omitempty"`
	Seo             bool              `yaml:"seo,omitempty" json:"seo,omitempty"`
	Status          string            `yaml:"status,omitempty" json:"status,omitempty"`
	Widgets         []WidgetPlacement `yaml:"widgets,omitempty" json:"widgets,omitempty" validate:"dive"`
}

// APIClaim binds a widget to an API exposed by a plugin.
type APIClaim struct {
	Name       string `yaml:"name" json:"name" validate:"required"`
	Type       string `yaml:"type" json:"type" validate:"oneof=internal external"`
	PluginName string `yaml:"pluginName" json:"pluginName" validate:"required"`
	BundleID   string `yaml:"bundleId,omitempty" json:"bundleId,omitempty"`
}

// WidgetDescriptor describes a widget.
type WidgetDescriptor struct {
	Code      string            `yaml:"code" json:"code" validate:"required"`
	Titles    map[string]string `yaml:"titles" json:"titles" validate:"required,min=1"`
	Group     string            `yaml:"group,omitempty" json:"group,omitempty"`
	CustomUI  string            `yaml:"customUi,omitempty" json:"customUi,omitempty"`
	ConfigUI  map[string]string `yaml:"configUi,omitempty" json:"configUi,omitempty"`
	APIClaims []APIClaim        `yaml:"apiClaims,omitempty" json:"apiClaims,omitempty" validate:"dive"`
}

// PluginDescriptor describes a microservice plugin deployed into the cluster
// and linked to the application.
type PluginDescriptor struct {
	Name               string            `yaml:"name" json:"name" validate:"required"`
	Image              string            `yaml:"image" json:"image" validate:"required"`
	DeploymentBaseName string            `yaml:"deploymentBaseName,omitempty" json:"deploymentBaseName,omitempty"`
	IngressPath        string            `yaml:"ingressPath,omitempty" json:"ingressPath,omitempty"`
	HealthCheckPath    string            `yaml:"healthCheckPath,omitempty" json:"healthCheckPath,omitempty"`
	DBMS               string            `yaml:"dbms,omitempty" json:"dbms,omitempty" validate:"omitempty,oneof=none postgresql mysql embedded"`
	Roles              []string          `yaml:"roles,omitempty" json:"roles,omitempty"`
	Environment        map[string]string `yaml:"environmentVariables,omitempty" json:"environmentVariables,omitempty"`
}

// ResourceName returns the name used for the plugin's cluster resources.
func (p PluginDescriptor) ResourceName() string {
	if p.DeploymentBaseName != "" {
		return p.DeploymentBaseName
	}
	return p.Name
}
