package processors

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/openfroyo/bundlekeeper/pkg/descriptors"
)

// fakeEngineClient records every call as "Method key" (suffixed with
// " update" for replacing registrations) and fails calls listed in fail.
type fakeEngineClient struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
}

func newFakeEngineClient() *fakeEngineClient {
	return &fakeEngineClient{fail: make(map[string]bool)}
}

func (f *fakeEngineClient) record(method, key string, update bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	call := method + " " + key
	if update {
		f.calls = append(f.calls, call+" update")
	} else {
		f.calls = append(f.calls, call)
	}
	if f.fail[call] {
		return errors.New("simulated engine error: 500 Internal Server Error")
	}
	return nil
}

func (f *fakeEngineClient) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeEngineClient) CallsWithPrefix(prefix string) []string {
	var out []string
	for _, c := range f.Calls() {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeEngineClient) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

func (f *fakeEngineClient) CreateFolder(ctx context.Context, d descriptors.DirectoryDescriptor) error {
	return f.record("CreateFolder", d.Path, false)
}

func (f *fakeEngineClient) DeleteFolder(ctx context.Context, path string) error {
	return f.record("DeleteFolder", path, false)
}

func (f *fakeEngineClient) UploadFile(ctx context.Context, d descriptors.FileDescriptor, update bool) error {
	return f.record("UploadFile", d.Path, update)
}

func (f *fakeEngineClient) DeleteFile(ctx context.Context, path string) error {
	return f.record("DeleteFile", path, false)
}

func (f *fakeEngineClient) RegisterCategory(ctx context.Context, d descriptors.CategoryDescriptor, update bool) error {
	return f.record("RegisterCategory", d.Code, update)
}

func (f *fakeEngineClient) DeleteCategory(ctx context.Context, code string) error {
	return f.record("DeleteCategory", code, false)
}

func (f *fakeEngineClient) RegisterGroup(ctx context.Context, d descriptors.GroupDescriptor, update bool) error {
	return f.record("RegisterGroup", d.Code, update)
}

func (f *fakeEngineClient) DeleteGroup(ctx context.Context, code string) error {
	return f.record("DeleteGroup", code, false)
}

func (f *fakeEngineClient) EnableLanguage(ctx context.Context, d descriptors.LanguageDescriptor) error {
	return f.record("EnableLanguage", d.Code, false)
}

func (f *fakeEngineClient) DisableLanguage(ctx context.Context, code string) error {
	return f.record("DisableLanguage", code, false)
}

func (f *fakeEngineClient) RegisterLabel(ctx context.Context, d descriptors.LabelDescriptor, update bool) error {
	return f.record("RegisterLabel", d.Key, update)
}

func (f *fakeEngineClient) DeleteLabel(ctx context.Context, key string) error {
	return f.record("DeleteLabel", key, false)
}

func (f *fakeEngineClient) RegisterContentType(ctx context.Context, d descriptors.ContentTypeDescriptor, update bool) error {
	return f.record("RegisterContentType", d.Code, update)
}

func (f *fakeEngineClient) DeleteContentType(ctx context.Context, code string) error {
	return f.record("DeleteContentType", code, false)
}

func (f *fakeEngineClient) RegisterContentTemplate(ctx context.Context, d descriptors.ContentTemplateDescriptor, update bool) error {
	return f.record("RegisterContentTemplate", d.ID, update)
}

func (f *fakeEngineClient) DeleteContentTemplate(ctx context.Context, id string) error {
	return f.record("DeleteContentTemplate", id, false)
}

func (f *fakeEngineClient) RegisterContent(ctx context.Context, d descriptors.ContentDescriptor, update bool) error {
	return f.record("RegisterContent", d.ID, update)
}

func (f *fakeEngineClient) DeleteContent(ctx context.Context, id string) error {
	return f.record("DeleteContent", id, false)
}

func (f *fakeEngineClient) RegisterFragment(ctx context.Context, d descriptors.FragmentDescriptor, update bool) error {
	return f.record("RegisterFragment", d.Code, update)
}

func (f *fakeEngineClient) DeleteFragment(ctx context.Context, code string) error {
	return f.record("DeleteFragment", code, false)
}

func (f *fakeEngineClient) RegisterPageTemplate(ctx context.Context, d descriptors.PageTemplateDescriptor, update bool) error {
	return f.record("RegisterPageTemplate", d.Code, update)
}

func (f *fakeEngineClient) DeletePageTemplate(ctx context.Context, code string) error {
	return f.record("DeletePageTemplate", code, false)
}

func (f *fakeEngineClient) RegisterPage(ctx context.Context, d descriptors.PageDescriptor, update bool) error {
	return f.record("RegisterPage", d.Code, update)
}

func (f *fakeEngineClient) DeletePage(ctx context.Context, code string) error {
	return f.record("DeletePage", code, false)
}

func (f *fakeEngineClient) ConfigurePage(ctx context.Context, d descriptors.PageDescriptor) error {
	return f.record("ConfigurePage", d.Code, false)
}

func (f *fakeEngineClient) ResetPageConfiguration(ctx context.Context, code string) error {
	return f.record("ResetPageConfiguration", code, false)
}

func (f *fakeEngineClient) RegisterWidget(ctx context.Context, d descriptors.WidgetDescriptor, update bool) error {
	return f.record("RegisterWidget", d.Code, update)
}

func (f *fakeEngineClient) DeleteWidget(ctx context.Context, code string) error {
	return f.record("DeleteWidget", code, false)
}

// fakeClusterClient records plugin resource calls.
type fakeClusterClient struct {
	fakeEngineClient
}

func newFakeClusterClient() *fakeClusterClient {
	return &fakeClusterClient{fakeEngineClient{fail: make(map[string]bool)}}
}

func (f *fakeClusterClient) ApplyPlugin(ctx context.Context, d descriptors.PluginDescriptor) error {
	return f.record("ApplyPlugin", d.ResourceName(), false)
}

func (f *fakeClusterClient) DeletePlugin(ctx context.Context, name string) error {
	return f.record("DeletePlugin", name, false)
}

func (f *fakeClusterClient) LinkPlugin(ctx context.Context, d descriptors.PluginDescriptor) error {
	return f.record("LinkPlugin", d.ResourceName(), false)
}

func (f *fakeClusterClient) UnlinkPlugin(ctx context.Context, name string) error {
	return f.record("UnlinkPlugin", name, false)
}
