package processors

import (
	"github.com/openfroyo/bundlekeeper/pkg/engine"
)

// All returns one processor per component type. cluster may be nil when
// plugin support is disabled.
func All(client EngineClient, cluster ClusterClient) []engine.Processor {
	return []engine.Processor{
		NewDirectoryProcessor(client),
		NewResourceProcessor(client),
		NewCategoryProcessor(client),
		NewGroupProcessor(client),
		NewLanguageProcessor(client),
		NewLabelProcessor(client),
		NewContentTypeProcessor(client),
		NewContentTemplateProcessor(client),
		NewContentProcessor(client),
		NewFragmentProcessor(client),
		NewPageTemplateProcessor(client),
		NewPageProcessor(client),
		NewPluginProcessor(cluster),
		NewWidgetProcessor(client),
		NewPageConfigurationProcessor(client),
	}
}

// DefaultRegistry returns a registry holding every processor.
func DefaultRegistry(client EngineClient, cluster ClusterClient) (*engine.ProcessorRegistry, error) {
	return engine.NewProcessorRegistry(All(client, cluster)...)
}
