package cluster

import (
	"context"
	"fmt"
	"sort"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/openfroyo/bundlekeeper/pkg/descriptors"
	"github.com/openfroyo/bundlekeeper/pkg/engine"
	"github.com/openfroyo/bundlekeeper/pkg/processors"
	"github.com/openfroyo/bundlekeeper/pkg/telemetry"
)

const (
	clientName = "cluster"

	// ManagedByLabel marks resources created by this client.
	ManagedByLabel = "app.kubernetes.io/managed-by"
	managedByValue = "bundlekeeper"
)

var (
	// PluginGVR is the plugin deployment resource.
	PluginGVR = schema.GroupVersionResource{Group: "entando.org", Version: "v1", Resource: "entandoplugins"}

	// LinkGVR is the application-plugin link resource.
	LinkGVR = schema.GroupVersionResource{Group: "entando.org", Version: "v1", Resource: "entandoapppluginlinks"}
)

var _ processors.ClusterClient = (*Client)(nil)

// Config selects the cluster and the application plugins are linked to.
type Config struct {
	// Kubeconfig is a kubeconfig path. Empty means in-cluster configuration.
	Kubeconfig string

	// Namespace holds the plugin and link resources.
	Namespace string

	// AppName is the application every plugin is linked to.
	AppName string
}

// Client manages plugin resources through the dynamic client.
type Client struct {
	dyn       dynamic.Interface
	namespace string
	appName   string
}

// NewClient builds a client from a kubeconfig, or from the in-cluster
// configuration when cfg.Kubeconfig is empty.
func NewClient(cfg Config) (*Client, error) {
	restConfig, err := clientcmd.BuildConfigFromFlags("", cfg.Kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to load cluster configuration: %w", err)
	}
	dyn, err := dynamic.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic client: %w", err)
	}
	return NewClientWithInterface(dyn, cfg)
}

// NewClientWithInterface wraps an existing dynamic client.
func NewClientWithInterface(dyn dynamic.Interface, cfg Config) (*Client, error) {
	if cfg.Namespace == "" {
		return nil, fmt.Errorf("cluster namespace is required")
	}
	if cfg.AppName == "" {
		return nil, fmt.Errorf("application name is required")
	}
	return &Client{dyn: dyn, namespace: cfg.Namespace, appName: cfg.AppName}, nil
}

// LinkName returns the name of the link between the application and a
// plugin resource.
func (c *Client) LinkName(pluginName string) string {
	return fmt.Sprintf("%s-%s-link", c.appName, pluginName)
}

// ApplyPlugin creates or updates the plugin resource.
func (c *Client) ApplyPlugin(ctx context.Context, plugin descriptors.PluginDescriptor) error {
	return telemetry.RecordClientOperation(ctx, clientName, "apply_plugin", func(ctx context.Context) error {
		return c.apply(ctx, PluginGVR, c.pluginObject(plugin))
	})
}

// DeletePlugin removes the plugin resource.
func (c *Client) DeletePlugin(ctx context.Context, name string) error {
	return telemetry.RecordClientOperation(ctx, clientName, "delete_plugin", func(ctx context.Context) error {
		return c.delete(ctx, PluginGVR, name)
	})
}

// LinkPlugin creates or updates the link between the application and the
// plugin.
func (c *Client) LinkPlugin(ctx context.Context, plugin descriptors.PluginDescriptor) error {
	return telemetry.RecordClientOperation(ctx, clientName, "link_plugin", func(ctx context.Context) error {
		return c.apply(ctx, LinkGVR, c.linkObject(plugin.ResourceName()))
	})
}

// UnlinkPlugin removes the link between the application and the plugin.
func (c *Client) UnlinkPlugin(ctx context.Context, name string) error {
	return telemetry.RecordClientOperation(ctx, clientName, "unlink_plugin", func(ctx context.Context) error {
		return c.delete(ctx, LinkGVR, c.LinkName(name))
	})
}

func (c *Client) pluginObject(plugin descriptors.PluginDescriptor) *unstructured.Unstructured {
	spec := map[string]interface{}{
		"image":    plugin.Image,
		"replicas": int64(1),
	}
	if plugin.DBMS != "" {
		spec["dbms"] = plugin.DBMS
	}
	if plugin.IngressPath != "" {
		spec["ingressPath"] = plugin.IngressPath
	}
	if plugin.HealthCheckPath != "" {
		spec["healthCheckPath"] = plugin.HealthCheckPath
	}
	if len(plugin.Roles) > 0 {
		roles := make([]interface{}, 0, len(plugin.Roles))
		for _, r := range plugin.Roles {
			roles = append(roles, map[string]interface{}{"code": r, "name": r})
		}
		spec["roles"] = roles
	}
	if len(plugin.Environment) > 0 {
		names := make([]string, 0, len(plugin.Environment))
		for name := range plugin.Environment {
			names = append(names, name)
		}
		sort.Strings(names)
		env := make([]interface{}, 0, len(names))
		for _, name := range names {
			env = append(env, map[string]interface{}{"name": name, "value": plugin.Environment[name]})
		}
		spec["environmentVariables"] = env
	}

	obj := c.newObject("EntandoPlugin", plugin.ResourceName())
	obj.Object["spec"] = spec
	return obj
}

func (c *Client) linkObject(pluginName string) *unstructured.Unstructured {
	obj := c.newObject("EntandoAppPluginLink", c.LinkName(pluginName))
	obj.Object["spec"] = map[string]interface{}{
		"entandoAppName":         c.appName,
		"entandoAppNamespace":    c.namespace,
		"entandoPluginName":      pluginName,
		"entandoPluginNamespace": c.namespace,
	}
	return obj
}

func (c *Client) newObject(kind, name string) *unstructured.Unstructured {
	obj := &unstructured.Unstructured{}
	obj.SetAPIVersion("entando.org/v1")
	obj.SetKind(kind)
	obj.SetName(name)
	obj.SetNamespace(c.namespace)
	obj.SetLabels(map[string]string{ManagedByLabel: managedByValue})
	return obj
}

// apply creates obj, or replaces the spec of the existing resource.
func (c *Client) apply(ctx context.Context, gvr schema.GroupVersionResource, obj *unstructured.Unstructured) error {
	resource := c.dyn.Resource(gvr).Namespace(c.namespace)

	existing, err := resource.Get(ctx, obj.GetName(), metav1.GetOptions{})
	switch {
	case apierrors.IsNotFound(err):
		if _, err := resource.Create(ctx, obj, metav1.CreateOptions{}); err != nil {
			return classify(err, gvr, obj.GetName(), "create")
		}
		telemetry.FromContext(ctx).
			WithField("resource", gvr.Resource).
			WithField("name", obj.GetName()).
			Info("Created cluster resource")
		return nil
	case err != nil:
		return classify(err, gvr, obj.GetName(), "get")
	}

	existing.Object["spec"] = obj.Object["spec"]
	labels := existing.GetLabels()
	if labels == nil {
		labels = map[string]string{}
	}
	labels[ManagedByLabel] = managedByValue
	existing.SetLabels(labels)

	if _, err := resource.Update(ctx, existing, metav1.UpdateOptions{}); err != nil {
		return classify(err, gvr, obj.GetName(), "update")
	}
	telemetry.FromContext(ctx).
		WithField("resource", gvr.Resource).
		WithField("name", obj.GetName()).
		Info("Updated cluster resource")
	return nil
}

// delete removes a resource; a missing resource is already deleted.
func (c *Client) delete(ctx context.Context, gvr schema.GroupVersionResource, name string) error {
	err := c.dyn.Resource(gvr).Namespace(c.namespace).Delete(ctx, name, metav1.DeleteOptions{})
	if err == nil || apierrors.IsNotFound(err) {
		return nil
	}
	return classify(err, gvr, name, "delete")
}

// classify maps API server errors onto engine error classes.
func classify(err error, gvr schema.GroupVersionResource, name, operation string) error {
	message := fmt.Sprintf("failed to %s %s", operation, gvr.Resource)

	var e *engine.EngineError
	switch {
	case apierrors.IsTooManyRequests(err):
		e = engine.NewThrottledError(message, err).WithCode(engine.ErrCodeRateLimited)
	case apierrors.IsConflict(err), apierrors.IsAlreadyExists(err):
		e = engine.NewConflictError(message, err).WithCode(engine.ErrCodeConflict)
	case apierrors.IsServerTimeout(err), apierrors.IsTimeout(err),
		apierrors.IsServiceUnavailable(err), apierrors.IsInternalError(err):
		e = engine.NewTransientError(message, err).WithCode(engine.ErrCodeInternal)
	case apierrors.IsInvalid(err), apierrors.IsBadRequest(err),
		apierrors.IsForbidden(err), apierrors.IsUnauthorized(err), apierrors.IsNotFound(err):
		e = engine.NewPermanentError(message, err).WithCode(engine.ErrCodeValidation)
	default:
		e = engine.NewTransientError(message, err).WithCode(engine.ErrCodeOperationFailed)
	}
	return e.WithResource(gvr.Resource + "/" + name).WithOperation(operation)
}
