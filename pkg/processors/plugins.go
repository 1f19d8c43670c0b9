package processors

import (
	"context"
	"errors"
	"fmt"

	"github.com/openfroyo/bundlekeeper/pkg/descriptors"
	"github.com/openfroyo/bundlekeeper/pkg/engine"
)

const (
	claimInternal = "internal"
	claimExternal = "external"
)

// NewWidgetProcessor returns the processor for widgets. Internal API claims
// must name a plugin declared by the same bundle; external claims must name
// the bundle id that provides the plugin.
func NewWidgetProcessor(client EngineClient) engine.Processor {
	return &descriptorProcessor[descriptors.WidgetDescriptor]{
		componentType: engine.ComponentWidget,
		paths:         func(c descriptors.ComponentPaths) []string { return c.Widgets },
		name:          func(d descriptors.WidgetDescriptor) string { return d.Code },
		prepare:       prepareClaimCheck,
		install: func(ctx context.Context, d descriptors.WidgetDescriptor, action engine.InstallAction) error {
			return client.RegisterWidget(ctx, d, action.Overwrites())
		},
		uninstall: func(ctx context.Context, d descriptors.WidgetDescriptor) error {
			return client.DeleteWidget(ctx, d.Code)
		},
	}
}

func prepareClaimCheck(
	ctx context.Context,
	reader engine.BundleReader,
	desc *descriptors.BundleDescriptor,
) (checkFunc[descriptors.WidgetDescriptor], error) {
	plugins := make(map[string]bool, len(desc.Components.Plugins))
	for _, path := range desc.Components.Plugins {
		var plugin descriptors.PluginDescriptor
		if err := reader.ReadSubDescriptor(ctx, path, &plugin); err != nil {
			return nil, err
		}
		plugins[plugin.Name] = true
	}

	return func(w descriptors.WidgetDescriptor) error {
		for _, claim := range w.APIClaims {
			switch claim.Type {
			case claimInternal:
				if !plugins[claim.PluginName] {
					return fmt.Errorf("widget %s claims api %s of undeclared plugin %s", w.Code, claim.Name, claim.PluginName)
				}
			case claimExternal:
				if err := validateBundleID(claim.BundleID); err != nil {
					return fmt.Errorf("widget %s claims api %s: %w", w.Code, claim.Name, err)
				}
			default:
				return fmt.Errorf("widget %s has api claim of unknown type %q", w.Code, claim.Type)
			}
		}
		return nil
	}, nil
}

func validateBundleID(id string) error {
	if len(id) != 8 {
		return fmt.Errorf("invalid bundle id %q", id)
	}
	for _, r := range id {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return fmt.Errorf("invalid bundle id %q", id)
		}
	}
	return nil
}

// NewPluginProcessor returns the processor for plugins. Installing applies
// the plugin resource and then links it; uninstalling unlinks first. A nil
// client rejects every plugin operation.
func NewPluginProcessor(client ClusterClient) engine.Processor {
	return &descriptorProcessor[descriptors.PluginDescriptor]{
		componentType: engine.ComponentPlugin,
		paths:         func(c descriptors.ComponentPaths) []string { return c.Plugins },
		name:          func(d descriptors.PluginDescriptor) string { return d.Name },
		install: func(ctx context.Context, d descriptors.PluginDescriptor, _ engine.InstallAction) error {
			if client == nil {
				return errClusterDisabled
			}
			if err := client.ApplyPlugin(ctx, d); err != nil {
				return err
			}
			return client.LinkPlugin(ctx, d)
		},
		uninstall: func(ctx context.Context, d descriptors.PluginDescriptor) error {
			if client == nil {
				return errClusterDisabled
			}
			if err := client.UnlinkPlugin(ctx, d.ResourceName()); err != nil {
				return err
			}
			return client.DeletePlugin(ctx, d.ResourceName())
		},
	}
}

var errClusterDisabled = errors.New("cluster integration is disabled")
