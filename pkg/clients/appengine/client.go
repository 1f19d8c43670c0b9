package appengine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/openfroyo/bundlekeeper/pkg/descriptors"
	"github.com/openfroyo/bundlekeeper/pkg/engine"
	"github.com/openfroyo/bundlekeeper/pkg/processors"
	"github.com/openfroyo/bundlekeeper/pkg/telemetry"
)

const clientName = "appengine"

var (
	_ processors.EngineClient = (*Client)(nil)
	_ engine.UsageClient      = (*Client)(nil)
)

// Config configures a Client.
type Config struct {
	// BaseURL is the engine's root URL, e.g. http://engine:8080/entando-app.
	BaseURL string

	// Token is sent as a bearer token when set.
	Token string

	// Timeout bounds every request. Zero means 30s.
	Timeout time.Duration

	// MaxFailures is the number of consecutive failures that opens the
	// breaker. Zero means 5.
	MaxFailures uint32

	// OpenTimeout is how long the breaker stays open. Zero means 30s.
	OpenTimeout time.Duration
}

// Client talks to the application engine over HTTP.
type Client struct {
	baseURL string
	token   string
	cb      *gobreaker.CircuitBreaker
	httpDo  func(req *http.Request) (*http.Response, error)
}

// NewClient creates a client. No request is made at construction time.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("engine base URL is required")
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid engine base URL: %w", err)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = 30 * time.Second
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		cb:      newCircuitBreaker(cfg),
		httpDo:  httpClient.Do,
	}, nil
}

// newCircuitBreaker trips after MaxFailures consecutive failures. Permanent
// errors (rejected requests) do not count against the engine's health.
func newCircuitBreaker(cfg Config) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        clientName,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || engine.IsPermanent(err)
		},
	})
}

// State returns the breaker state, for health reporting.
func (c *Client) State() gobreaker.State {
	return c.cb.State()
}

// response is the engine's envelope for every body it returns.
type response struct {
	Payload json.RawMessage `json:"payload"`
	Errors  []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// call sends one request through the breaker and records it. okStatus lists
// extra statuses that count as success. The returned status is 0 when no
// response was received.
func (c *Client) call(ctx context.Context, operation, method, path string, body any, okStatus ...int) (int, []byte, error) {
	var (
		status  int
		payload []byte
	)
	err := telemetry.RecordClientOperation(ctx, clientName, operation, func(ctx context.Context) error {
		_, err := c.cb.Execute(func() (any, error) {
			var err error
			status, payload, err = c.do(ctx, method, path, body)
			if err != nil {
				return nil, err
			}
			if status >= 200 && status < 300 {
				return nil, nil
			}
			for _, ok := range okStatus {
				if status == ok {
					return nil, nil
				}
			}
			return nil, statusError(operation, method, path, status, payload)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return engine.NewTransientError("circuit open", err).
				WithOperation(operation).
				WithResource(c.baseURL)
		}
		return err
	})
	return status, payload, err
}

func (c *Client) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, nil, engine.NewPermanentError("failed to encode request", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, engine.NewPermanentError("failed to build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	telemetry.FromContext(ctx).
		WithField("method", method).
		WithField("path", path).
		Debug("Calling application engine")

	resp, err := c.httpDo(req)
	if err != nil {
		return 0, nil, engine.NewTransientError(fmt.Sprintf("%s %s failed", method, path), err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return resp.StatusCode, nil, engine.NewTransientError("failed to read response", err)
	}
	return resp.StatusCode, payload, nil
}

// statusError classifies a non-success status.
func statusError(operation, method, path string, status int, payload []byte) error {
	message := fmt.Sprintf("%s %s returned %d %s", method, path, status, http.StatusText(status))

	var env response
	if json.Unmarshal(payload, &env) == nil && len(env.Errors) > 0 {
		message += ": " + env.Errors[0].Message
	}

	var err *engine.EngineError
	switch {
	case status == http.StatusTooManyRequests:
		err = engine.NewThrottledError(message, nil).WithCode(engine.ErrCodeRateLimited)
	case status == http.StatusConflict:
		err = engine.NewConflictError(message, nil).WithCode(engine.ErrCodeConflict)
	case status == http.StatusNotFound:
		err = engine.NewPermanentError(message, nil).WithCode(engine.ErrCodeNotFound)
	case status >= 500:
		err = engine.NewTransientError(message, nil).WithCode(engine.ErrCodeInternal)
	default:
		err = engine.NewPermanentError(message, nil).WithCode(engine.ErrCodeValidation)
	}
	return err.WithOperation(operation).WithDetail("status", status)
}

// register creates a component with POST on collection. With update, or when
// the POST reports a conflict, the component is replaced with PUT on item.
func (c *Client) register(ctx context.Context, operation, collection, item string, body any, update bool) error {
	if !update {
		status, _, err := c.call(ctx, operation, http.MethodPost, collection, body, http.StatusConflict)
		if err != nil || status != http.StatusConflict {
			return err
		}
	}
	_, _, err := c.call(ctx, operation, http.MethodPut, item, body)
	return err
}

// remove deletes a component; a missing component is already removed.
func (c *Client) remove(ctx context.Context, operation, path string) error {
	_, _, err := c.call(ctx, operation, http.MethodDelete, path, nil, http.StatusNotFound)
	return err
}

func itemPath(collection, key string) string {
	return collection + "/" + url.PathEscape(key)
}

const (
	pathDirectory        = "/api/fileBrowser/directory"
	pathFile             = "/api/fileBrowser/file"
	pathCategories       = "/api/categories"
	pathGroups           = "/api/groups"
	pathLanguages        = "/api/languages"
	pathLabels           = "/api/labels"
	pathContentTypes     = "/api/plugins/cms/contentTypes"
	pathContentTemplates = "/api/plugins/cms/contentmodels"
	pathContents         = "/api/plugins/cms/contents"
	pathFragments        = "/api/fragments"
	pathPageTemplates    = "/api/pageModels"
	pathPages            = "/api/pages"
	pathWidgets          = "/api/widgets"
)

func fileBrowserQuery(path string) string {
	q := url.Values{}
	q.Set("currentPath", path)
	q.Set("protectedFolder", "false")
	return "?" + q.Encode()
}

// CreateFolder creates a folder in the public file browser. An existing
// folder is left as is.
func (c *Client) CreateFolder(ctx context.Context, dir descriptors.DirectoryDescriptor) error {
	body := map[string]any{"path": dir.Path, "protectedFolder": false}
	_, _, err := c.call(ctx, "create_folder", http.MethodPost, pathDirectory, body, http.StatusConflict)
	return err
}

// DeleteFolder removes a folder and its content.
func (c *Client) DeleteFolder(ctx context.Context, path string) error {
	return c.remove(ctx, "delete_folder", pathDirectory+fileBrowserQuery(path))
}

// UploadFile uploads a file; update replaces its content.
func (c *Client) UploadFile(ctx context.Context, file descriptors.FileDescriptor, update bool) error {
	body := map[string]any{
		"path":            file.Path,
		"filename":        file.Filename,
		"base64":          file.Base64,
		"protectedFolder": false,
	}
	return c.register(ctx, "upload_file", pathFile, pathFile, body, update)
}

// DeleteFile removes a file.
func (c *Client) DeleteFile(ctx context.Context, path string) error {
	return c.remove(ctx, "delete_file", pathFile+fileBrowserQuery(path))
}

func (c *Client) RegisterCategory(ctx context.Context, category descriptors.CategoryDescriptor, update bool) error {
	return c.register(ctx, "register_category", pathCategories, itemPath(pathCategories, category.Code), category, update)
}

func (c *Client) DeleteCategory(ctx context.Context, code string) error {
	return c.remove(ctx, "delete_category", itemPath(pathCategories, code))
}

func (c *Client) RegisterGroup(ctx context.Context, group descriptors.GroupDescriptor, update bool) error {
	return c.register(ctx, "register_group", pathGroups, itemPath(pathGroups, group.Code), group, update)
}

func (c *Client) DeleteGroup(ctx context.Context, code string) error {
	return c.remove(ctx, "delete_group", itemPath(pathGroups, code))
}

// EnableLanguage activates a language. Languages are never created or
// deleted, only toggled.
func (c *Client) EnableLanguage(ctx context.Context, language descriptors.LanguageDescriptor) error {
	_, _, err := c.call(ctx, "enable_language", http.MethodPut,
		itemPath(pathLanguages, language.Code), map[string]any{"isActive": true})
	return err
}

// DisableLanguage deactivates a language.
func (c *Client) DisableLanguage(ctx context.Context, code string) error {
	_, _, err := c.call(ctx, "disable_language", http.MethodPut,
		itemPath(pathLanguages, code), map[string]any{"isActive": false}, http.StatusNotFound)
	return err
}

func (c *Client) RegisterLabel(ctx context.Context, label descriptors.LabelDescriptor, update bool) error {
	return c.register(ctx, "register_label", pathLabels, itemPath(pathLabels, label.Key), label, update)
}

func (c *Client) DeleteLabel(ctx context.Context, key string) error {
	return c.remove(ctx, "delete_label", itemPath(pathLabels, key))
}

func (c *Client) RegisterContentType(ctx context.Context, contentType descriptors.ContentTypeDescriptor, update bool) error {
	return c.register(ctx, "register_content_type", pathContentTypes,
		itemPath(pathContentTypes, contentType.Code), contentType, update)
}

func (c *Client) DeleteContentType(ctx context.Context, code string) error {
	return c.remove(ctx, "delete_content_type", itemPath(pathContentTypes, code))
}

func (c *Client) RegisterContentTemplate(ctx context.Context, template descriptors.ContentTemplateDescriptor, update bool) error {
	return c.register(ctx, "register_content_template", pathContentTemplates,
		itemPath(pathContentTemplates, template.ID), template, update)
}

func (c *Client) DeleteContentTemplate(ctx context.Context, id string) error {
	return c.remove(ctx, "delete_content_template", itemPath(pathContentTemplates, id))
}

func (c *Client) RegisterContent(ctx context.Context, content descriptors.ContentDescriptor, update bool) error {
	return c.register(ctx, "register_content", pathContents, itemPath(pathContents, content.ID), content, update)
}

func (c *Client) DeleteContent(ctx context.Context, id string) error {
	return c.remove(ctx, "delete_content", itemPath(pathContents, id))
}

func (c *Client) RegisterFragment(ctx context.Context, fragment descriptors.FragmentDescriptor, update bool) error {
	return c.register(ctx, "register_fragment", pathFragments, itemPath(pathFragments, fragment.Code), fragment, update)
}

func (c *Client) DeleteFragment(ctx context.Context, code string) error {
	return c.remove(ctx, "delete_fragment", itemPath(pathFragments, code))
}

func (c *Client) RegisterPageTemplate(ctx context.Context, template descriptors.PageTemplateDescriptor, update bool) error {
	return c.register(ctx, "register_page_template", pathPageTemplates,
		itemPath(pathPageTemplates, template.Code), template, update)
}

func (c *Client) DeletePageTemplate(ctx context.Context, code string) error {
	return c.remove(ctx, "delete_page_template", itemPath(pathPageTemplates, code))
}

// RegisterPage creates the page itself; widgets are placed by ConfigurePage.
func (c *Client) RegisterPage(ctx context.Context, page descriptors.PageDescriptor, update bool) error {
	page.Widgets = nil
	return c.register(ctx, "register_page", pathPages, itemPath(pathPages, page.Code), page, update)
}

func (c *Client) DeletePage(ctx context.Context, code string) error {
	return c.remove(ctx, "delete_page", itemPath(pathPages, code))
}

// ConfigurePage places each widget into its frame.
func (c *Client) ConfigurePage(ctx context.Context, page descriptors.PageDescriptor) error {
	for _, w := range page.Widgets {
		path := itemPath(pathPages, page.Code) + "/widgets/" + strconv.Itoa(w.Pos)
		body := map[string]any{"code": w.Code, "config": w.Config}
		if _, _, err := c.call(ctx, "configure_page", http.MethodPut, path, body); err != nil {
			return err
		}
	}
	return nil
}

// ResetPageConfiguration empties every frame of the page.
func (c *Client) ResetPageConfiguration(ctx context.Context, code string) error {
	return c.remove(ctx, "reset_page_configuration", itemPath(pathPages, code)+"/widgets")
}

func (c *Client) RegisterWidget(ctx context.Context, widget descriptors.WidgetDescriptor, update bool) error {
	return c.register(ctx, "register_widget", pathWidgets, itemPath(pathWidgets, widget.Code), widget, update)
}

func (c *Client) DeleteWidget(ctx context.Context, code string) error {
	return c.remove(ctx, "delete_widget", itemPath(pathWidgets, code))
}

// usageCollections maps component types to the engine collection that
// exposes their usage details. Types missing here have no references.
var usageCollections = map[engine.ComponentType]string{
	engine.ComponentCategory:        pathCategories,
	engine.ComponentGroup:           pathGroups,
	engine.ComponentContentType:     pathContentTypes,
	engine.ComponentContentTemplate: pathContentTemplates,
	engine.ComponentContent:         pathContents,
	engine.ComponentFragment:        pathFragments,
	engine.ComponentPageTemplate:    pathPageTemplates,
	engine.ComponentPage:            pathPages,
	engine.ComponentWidget:          pathWidgets,
}

type usageDetail struct {
	Type string `json:"type"`
	Code string `json:"code"`
}

// ComponentUsage returns the engine-side references to a component. A
// component the engine no longer knows has no references.
func (c *Client) ComponentUsage(ctx context.Context, key engine.ComponentKey) ([]engine.UsageReference, error) {
	collection, ok := usageCollections[key.Type]
	if !ok {
		return nil, nil
	}

	path := itemPath(collection, key.Name) + "/usage/details"
	status, payload, err := c.call(ctx, "component_usage", http.MethodGet, path, nil, http.StatusNotFound)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}

	var env response
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, engine.NewPermanentError("failed to decode usage response", err).
			WithOperation("component_usage").
			WithResource(key.String())
	}
	if len(env.Payload) == 0 || string(env.Payload) == "null" {
		return nil, nil
	}

	var details []usageDetail
	if err := json.Unmarshal(env.Payload, &details); err != nil {
		return nil, engine.NewPermanentError("failed to decode usage payload", err).
			WithOperation("component_usage").
			WithResource(key.String())
	}

	refs := make([]engine.UsageReference, 0, len(details))
	for _, d := range details {
		refs = append(refs, engine.UsageReference{ComponentType: engine.ComponentType(d.Type), Code: d.Code})
	}
	return refs, nil
}
