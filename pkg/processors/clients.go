package processors

import (
	"context"

	"github.com/openfroyo/bundlekeeper/pkg/descriptors"
)

// EngineClient applies CMS components to the application engine. Register
// methods create the component, or replace it when update is true; both must
// be idempotent. Delete methods succeed when the component is already gone.
type EngineClient interface {
	CreateFolder(ctx context.Context, dir descriptors.DirectoryDescriptor) error
	DeleteFolder(ctx context.Context, path string) error

	UploadFile(ctx context.Context, file descriptors.FileDescriptor, update bool) error
	DeleteFile(ctx context.Context, path string) error

	RegisterCategory(ctx context.Context, category descriptors.CategoryDescriptor, update bool) error
	DeleteCategory(ctx context.Context, code string) error

	RegisterGroup(ctx context.Context, group descriptors.GroupDescriptor, update bool) error
	DeleteGroup(ctx context.Context, code string) error

	EnableLanguage(ctx context.Context, language descriptors.LanguageDescriptor) error
	DisableLanguage(ctx context.Context, code string) error

	RegisterLabel(ctx context.Context, label descriptors.LabelDescriptor, update bool) error
	DeleteLabel(ctx context.Context, key string) error

	RegisterContentType(ctx context.Context, contentType descriptors.ContentTypeDescriptor, update bool) error
	DeleteContentType(ctx context.Context, code string) error

	RegisterContentTemplate(ctx context.Context, template descriptors.ContentTemplateDescriptor, update bool) error
	DeleteContentTemplate(ctx context.Context, id string) error

	RegisterContent(ctx context.Context, content descriptors.ContentDescriptor, update bool) error
	DeleteContent(ctx context.Context, id string) error

	RegisterFragment(ctx context.Context, fragment descriptors.FragmentDescriptor, update bool) error
	DeleteFragment(ctx context.Context, code string) error

	RegisterPageTemplate(ctx context.Context, template descriptors.PageTemplateDescriptor, update bool) error
	DeletePageTemplate(ctx context.Context, code string) error

	RegisterPage(ctx context.Context, page descriptors.PageDescriptor, update bool) error
	DeletePage(ctx context.Context, code string) error

	// ConfigurePage places the page's widgets into its frames.
	ConfigurePage(ctx context.Context, page descriptors.PageDescriptor) error
	// ResetPageConfiguration empties every frame of the page.
	ResetPageConfiguration(ctx context.Context, code string) error

	RegisterWidget(ctx context.Context, widget descriptors.WidgetDescriptor, update bool) error
	DeleteWidget(ctx context.Context, code string) error
}

// ClusterClient deploys plugins as cluster custom resources and links them
// to the application.
type ClusterClient interface {
	// ApplyPlugin creates or updates the plugin deployment resource.
	ApplyPlugin(ctx context.Context, plugin descriptors.PluginDescriptor) error
	// DeletePlugin removes the plugin deployment resource.
	DeletePlugin(ctx context.Context, name string) error

	// LinkPlugin creates or updates the application-plugin link.
	LinkPlugin(ctx context.Context, plugin descriptors.PluginDescriptor) error
	// UnlinkPlugin removes the application-plugin link.
	UnlinkPlugin(ctx context.Context, name string) error
}
