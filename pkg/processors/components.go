package processors

import (
	"context"

	"github.com/openfroyo/bundlekeeper/pkg/descriptors"
	"github.com/openfroyo/bundlekeeper/pkg/engine"
)

// NewCategoryProcessor returns the processor for content categories.
func NewCategoryProcessor(client EngineClient) engine.Processor {
	return &descriptorProcessor[descriptors.CategoryDescriptor]{
		componentType: engine.ComponentCategory,
		paths:         func(c descriptors.ComponentPaths) []string { return c.Categories },
		name:          func(d descriptors.CategoryDescriptor) string { return d.Code },
		install: func(ctx context.Context, d descriptors.CategoryDescriptor, action engine.InstallAction) error {
			return client.RegisterCategory(ctx, d, action.Overwrites())
		},
		uninstall: func(ctx context.Context, d descriptors.CategoryDescriptor) error {
			return client.DeleteCategory(ctx, d.Code)
		},
	}
}

// NewGroupProcessor returns the processor for groups.
func NewGroupProcessor(client EngineClient) engine.Processor {
	return &descriptorProcessor[descriptors.GroupDescriptor]{
		componentType: engine.ComponentGroup,
		paths:         func(c descriptors.ComponentPaths) []string { return c.Groups },
		name:          func(d descriptors.GroupDescriptor) string { return d.Code },
		install: func(ctx context.Context, d descriptors.GroupDescriptor, action engine.InstallAction) error {
			return client.RegisterGroup(ctx, d, action.Overwrites())
		},
		uninstall: func(ctx context.Context, d descriptors.GroupDescriptor) error {
			return client.DeleteGroup(ctx, d.Code)
		},
	}
}

// NewLanguageProcessor returns the processor for languages. Installing
// enables the language; uninstalling disables it.
func NewLanguageProcessor(client EngineClient) engine.Processor {
	return &descriptorProcessor[descriptors.LanguageDescriptor]{
		componentType: engine.ComponentLanguage,
		paths:         func(c descriptors.ComponentPaths) []string { return c.Languages },
		name:          func(d descriptors.LanguageDescriptor) string { return d.Code },
		install: func(ctx context.Context, d descriptors.LanguageDescriptor, _ engine.InstallAction) error {
			return client.EnableLanguage(ctx, d)
		},
		uninstall: func(ctx context.Context, d descriptors.LanguageDescriptor) error {
			return client.DisableLanguage(ctx, d.Code)
		},
	}
}

// NewLabelProcessor returns the processor for i18n labels.
func NewLabelProcessor(client EngineClient) engine.Processor {
	return &descriptorProcessor[descriptors.LabelDescriptor]{
		componentType: engine.ComponentLabel,
		paths:         func(c descriptors.ComponentPaths) []string { return c.Labels },
		name:          func(d descriptors.LabelDescriptor) string { return d.Key },
		install: func(ctx context.Context, d descriptors.LabelDescriptor, action engine.InstallAction) error {
			return client.RegisterLabel(ctx, d, action.Overwrites())
		},
		uninstall: func(ctx context.Context, d descriptors.LabelDescriptor) error {
			return client.DeleteLabel(ctx, d.Key)
		},
	}
}

// NewContentTypeProcessor returns the processor for CMS content types.
func NewContentTypeProcessor(client EngineClient) engine.Processor {
	return &descriptorProcessor[descriptors.ContentTypeDescriptor]{
		componentType: engine.ComponentContentType,
		paths:         func(c descriptors.ComponentPaths) []string { return c.ContentTypes },
		name:          func(d descriptors.ContentTypeDescriptor) string { return d.Code },
		install: func(ctx context.Context, d descriptors.ContentTypeDescriptor, action engine.InstallAction) error {
			return client.RegisterContentType(ctx, d, action.Overwrites())
		},
		uninstall: func(ctx context.Context, d descriptors.ContentTypeDescriptor) error {
			return client.DeleteContentType(ctx, d.Code)
		},
	}
}

// NewContentTemplateProcessor returns the processor for content templates.
func NewContentTemplateProcessor(client EngineClient) engine.Processor {
	return &descriptorProcessor[descriptors.ContentTemplateDescriptor]{
		componentType: engine.ComponentContentTemplate,
		paths:         func(c descriptors.ComponentPaths) []string { return c.ContentTemplates },
		name:          func(d descriptors.ContentTemplateDescriptor) string { return d.ID },
		install: func(ctx context.Context, d descriptors.ContentTemplateDescriptor, action engine.InstallAction) error {
			return client.RegisterContentTemplate(ctx, d, action.Overwrites())
		},
		uninstall: func(ctx context.Context, d descriptors.ContentTemplateDescriptor) error {
			return client.DeleteContentTemplate(ctx, d.ID)
		},
	}
}

// NewContentProcessor returns the processor for CMS contents.
func NewContentProcessor(client EngineClient) engine.Processor {
	return &descriptorProcessor[descriptors.ContentDescriptor]{
		componentType: engine.ComponentContent,
		paths:         func(c descriptors.ComponentPaths) []string { return c.Contents },
		name:          func(d descriptors.ContentDescriptor) string { return d.ID },
		install: func(ctx context.Context, d descriptors.ContentDescriptor, action engine.InstallAction) error {
			return client.RegisterContent(ctx, d, action.Overwrites())
		},
		uninstall: func(ctx context.Context, d descriptors.ContentDescriptor) error {
			return client.DeleteContent(ctx, d.ID)
		},
	}
}

// NewFragmentProcessor returns the processor for GUI fragments.
func NewFragmentProcessor(client EngineClient) engine.Processor {
	return &descriptorProcessor[descriptors.FragmentDescriptor]{
		componentType: engine.ComponentFragment,
		paths:         func(c descriptors.ComponentPaths) []string { return c.Fragments },
		name:          func(d descriptors.FragmentDescriptor) string { return d.Code },
		install: func(ctx context.Context, d descriptors.FragmentDescriptor, action engine.InstallAction) error {
			return client.RegisterFragment(ctx, d, action.Overwrites())
		},
		uninstall: func(ctx context.Context, d descriptors.FragmentDescriptor) error {
			return client.DeleteFragment(ctx, d.Code)
		},
	}
}

// NewPageTemplateProcessor returns the processor for page templates.
func NewPageTemplateProcessor(client EngineClient) engine.Processor {
	return &descriptorProcessor[descriptors.PageTemplateDescriptor]{
		componentType: engine.ComponentPageTemplate,
		paths:         func(c descriptors.ComponentPaths) []string { return c.PageTemplates },
		name:          func(d descriptors.PageTemplateDescriptor) string { return d.Code },
		install: func(ctx context.Context, d descriptors.PageTemplateDescriptor, action engine.InstallAction) error {
			return client.RegisterPageTemplate(ctx, d, action.Overwrites())
		},
		uninstall: func(ctx context.Context, d descriptors.PageTemplateDescriptor) error {
			return client.DeletePageTemplate(ctx, d.Code)
		},
	}
}

// NewPageProcessor returns the processor for pages. It registers the page
// itself; widget placement is left to the page configuration processor.
func NewPageProcessor(client EngineClient) engine.Processor {
	return &descriptorProcessor[descriptors.PageDescriptor]{
		componentType: engine.ComponentPage,
		paths:         func(c descriptors.ComponentPaths) []string { return c.Pages },
		name:          func(d descriptors.PageDescriptor) string { return d.Code },
		install: func(ctx context.Context, d descriptors.PageDescriptor, action engine.InstallAction) error {
			return client.RegisterPage(ctx, d, action.Overwrites())
		},
		uninstall: func(ctx context.Context, d descriptors.PageDescriptor) error {
			return client.DeletePage(ctx, d.Code)
		},
	}
}

// NewPageConfigurationProcessor returns the processor that places widgets
// into page frames. It reads the page descriptors and plans every operation
// under its page's entry.
func NewPageConfigurationProcessor(client EngineClient) engine.Processor {
	return &descriptorProcessor[descriptors.PageDescriptor]{
		componentType: engine.ComponentPageConfiguration,
		planType:      engine.ComponentPage,
		paths:         func(c descriptors.ComponentPaths) []string { return c.Pages },
		name:          func(d descriptors.PageDescriptor) string { return d.Code },
		install: func(ctx context.Context, d descriptors.PageDescriptor, _ engine.InstallAction) error {
			return client.ConfigurePage(ctx, d)
		},
		uninstall: func(ctx context.Context, d descriptors.PageDescriptor) error {
			return client.ResetPageConfiguration(ctx, d.Code)
		},
	}
}
