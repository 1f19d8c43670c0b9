package processors

import (
	"context"
	"encoding/base64"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/openfroyo/bundlekeeper/pkg/bundle"
	"github.com/openfroyo/bundlekeeper/pkg/descriptors"
	"github.com/openfroyo/bundlekeeper/pkg/engine"
)

func names(ops []engine.Installable) []string {
	out := make([]string, len(ops))
	for i, op := range ops {
		out[i] = op.Name()
	}
	return out
}

func assertNames(t *testing.T, label string, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: expected %v, got %v", label, want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("%s: expected %s at %d, got %s", label, want[i], i, got[i])
		}
	}
}

func TestProcessors_DeclarationOrder(t *testing.T) {
	reader := bundle.NewDirReader("testdata/todomvc/1.0.0")
	client := newFakeEngineClient()

	expected := map[engine.ComponentType][]string{
		engine.ComponentDirectory:         {"todomvc", "todomvc/css", "todomvc/js"},
		engine.ComponentResource:          {"todomvc/css/style.css", "todomvc/index.html", "todomvc/js/app.js"},
		engine.ComponentContentType:       {"TDO"},
		engine.ComponentLabel:             {"TODO_TITLE"},
		engine.ComponentFragment:          {"todo-header", "todo-footer"},
		engine.ComponentPage:              {"todomvc", "todomvc-about"},
		engine.ComponentWidget:            {"todomvc-list", "todomvc-editor"},
		engine.ComponentPageConfiguration: {"todomvc", "todomvc-about"},
	}

	for _, p := range All(client, newFakeClusterClient()) {
		ops, err := p.Process(context.Background(), reader)
		if err != nil {
			t.Fatalf("%s processor failed: %v", p.ComponentType(), err)
		}

		assertNames(t, string(p.ComponentType()), names(ops), expected[p.ComponentType()])
		for _, op := range ops {
			if op.ComponentType() != p.ComponentType() {
				t.Errorf("Expected %s operation, got %s", p.ComponentType(), op.ComponentType())
			}
			if op.Action() != engine.ActionCreate {
				t.Errorf("Expected unplanned action CREATE, got %s", op.Action())
			}
		}
	}

	if len(client.Calls()) != 0 {
		t.Errorf("Expected processing to make no client calls, got %v", client.Calls())
	}
}

func TestPageConfigurationProcessor_PlannedAsPage(t *testing.T) {
	reader := bundle.NewDirReader("testdata/todomvc/1.0.0")
	ops, err := NewPageConfigurationProcessor(newFakeEngineClient()).Process(context.Background(), reader)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	for _, op := range ops {
		if op.PlanType() != engine.ComponentPage {
			t.Errorf("Expected plan type page, got %s", op.PlanType())
		}
	}
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("failed to create dir: %v", err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", rel, err)
		}
	}
}

func TestDirectoryProcessor_SynthesizesParents(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"descriptor.yaml":         "code: assets\ncomponents: {}\n",
		"resources/a/b/c.txt":     "c",
		"resources/a/d.txt":       "d",
		"resources/e.txt":         "e",
		"resources/a/b/deep/f.js": "f",
	})
	reader := bundle.NewDirReader(root)

	ops, err := NewDirectoryProcessor(newFakeEngineClient()).Process(context.Background(), reader)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	assertNames(t, "directories", names(ops), []string{"assets", "assets/a", "assets/a/b", "assets/a/b/deep"})

	root0 := ops[0].(*engine.Operation[descriptors.DirectoryDescriptor]).Value()
	if !root0.Root {
		t.Error("Expected bundle folder to be marked as root")
	}
	if ops[1].(*engine.Operation[descriptors.DirectoryDescriptor]).Value().Root {
		t.Error("Expected nested folder not to be root")
	}
}

func TestDirectoryProcessor_NoResources(t *testing.T) {
	ops, err := NewDirectoryProcessor(newFakeEngineClient()).Process(context.Background(),
		bundle.NewDirReader("testdata/todomvc-plugin"))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(ops) != 0 {
		t.Errorf("Expected no folders without resources, got %v", names(ops))
	}
}

func TestResourceProcessor_Upload(t *testing.T) {
	client := newFakeEngineClient()
	ops, err := NewResourceProcessor(client).Process(context.Background(),
		bundle.NewDirReader("testdata/todomvc/1.0.0"))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	file := ops[2].(*engine.Operation[descriptors.FileDescriptor]).Value()
	if file.Folder != "todomvc/js" || file.Filename != "app.js" {
		t.Errorf("Unexpected file placement: %+v", file)
	}
	content, err := base64.StdEncoding.DecodeString(file.Base64)
	if err != nil {
		t.Fatalf("failed to decode content: %v", err)
	}
	raw, _ := os.ReadFile("testdata/todomvc/1.0.0/resources/js/app.js")
	if string(content) != string(raw) {
		t.Errorf("Expected uploaded content to match the resource file")
	}

	if err := ops[2].Install(context.Background()); err != nil {
		t.Fatalf("failed to install: %v", err)
	}
	if err := ops[2].WithAction(engine.ActionOverride).Install(context.Background()); err != nil {
		t.Fatalf("failed to install: %v", err)
	}
	assertNames(t, "calls", client.Calls(), []string{
		"UploadFile todomvc/js/app.js",
		"UploadFile todomvc/js/app.js update",
	})
}

func TestProcessors_ProcessingError(t *testing.T) {
	reader := bundle.NewDirReader("testdata/broken")
	client := newFakeEngineClient()

	ops, err := NewGroupProcessor(client).Process(context.Background(), reader)
	if err != nil || len(ops) != 1 {
		t.Fatalf("Expected group to process, got %d ops, err %v", len(ops), err)
	}

	_, err = NewPageProcessor(client).Process(context.Background(), reader)
	if err == nil {
		t.Fatal("Expected error for missing page descriptor")
	}
	if err.Error() != "Error processing page components" {
		t.Errorf("Unexpected message: %s", err.Error())
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Error("Expected the read failure to stay reachable")
	}
	if engine.ErrorCode(err) != engine.ErrCodeProcessingFailed {
		t.Errorf("Expected PROCESSING_FAILED, got %s", engine.ErrorCode(err))
	}

	_, err = NewWidgetProcessor(client).Process(context.Background(), reader)
	if err == nil || err.Error() != "Error processing widget components" {
		t.Errorf("Expected widget processing error for undeclared plugin, got %v", err)
	}
}

func TestProcessors_MissingBundle(t *testing.T) {
	reader := bundle.NewDirReader(filepath.Join(t.TempDir(), "nothing-here"))
	for _, p := range All(newFakeEngineClient(), nil) {
		_, err := p.Process(context.Background(), reader)
		if !engine.IsProcessingError(err) {
			t.Errorf("%s: expected processing error, got %v", p.ComponentType(), err)
		}
	}
}

func TestWidgetProcessor_InternalClaim(t *testing.T) {
	ops, err := NewWidgetProcessor(newFakeEngineClient()).Process(context.Background(),
		bundle.NewDirReader("testdata/todomvc-plugin"))
	if err != nil {
		t.Fatalf("Expected internal claim on a declared plugin to pass, got: %v", err)
	}
	assertNames(t, "widgets", names(ops), []string{"todo-app"})
}

func TestValidateBundleID(t *testing.T) {
	for _, id := range []string{"3a7f9c21", "00000000"} {
		if err := validateBundleID(id); err != nil {
			t.Errorf("Expected %q to be valid: %v", id, err)
		}
	}
	for _, id := range []string{"", "3a7f9c2", "3A7F9C21", "3a7f9c2z"} {
		if err := validateBundleID(id); err == nil {
			t.Errorf("Expected %q to be rejected", id)
		}
	}
}

func TestPluginProcessor_Operations(t *testing.T) {
	cluster := newFakeClusterClient()
	ops, err := NewPluginProcessor(cluster).Process(context.Background(),
		bundle.NewDirReader("testdata/todomvc-plugin"))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(ops) != 1 {
		t.Fatalf("Expected 1 plugin, got %d", len(ops))
	}

	if err := ops[0].Install(context.Background()); err != nil {
		t.Fatalf("failed to install plugin: %v", err)
	}
	if err := ops[0].Uninstall(context.Background()); err != nil {
		t.Fatalf("failed to uninstall plugin: %v", err)
	}
	assertNames(t, "cluster calls", cluster.Calls(), []string{
		"ApplyPlugin todomvc-api",
		"LinkPlugin todomvc-api",
		"UnlinkPlugin todomvc-api",
		"DeletePlugin todomvc-api",
	})

	cluster.fail["LinkPlugin todomvc-api"] = true
	if err := ops[0].Install(context.Background()); err == nil {
		t.Error("Expected link failure to fail the install")
	}
}

func TestPluginProcessor_Disabled(t *testing.T) {
	ops, err := NewPluginProcessor(nil).Process(context.Background(),
		bundle.NewDirReader("testdata/todomvc-plugin"))
	if err != nil {
		t.Fatalf("Expected processing to succeed without a cluster, got: %v", err)
	}
	if err := ops[0].Install(context.Background()); !errors.Is(err, errClusterDisabled) {
		t.Errorf("Expected cluster disabled error, got %v", err)
	}
}

func TestProcessWithPlan(t *testing.T) {
	reader := bundle.NewDirReader("testdata/todomvc/1.0.0")
	client := newFakeEngineClient()

	plan := engine.InstallPlan{}
	plan.Set(engine.ComponentPage, "todomvc", engine.ComponentInstallPlan{DiffStatus: engine.DiffEqual, Action: engine.ActionSkip})
	plan.Set(engine.ComponentPage, "todomvc-about", engine.ComponentInstallPlan{DiffStatus: engine.DiffDiff, Action: engine.ActionOverride})
	pc := &engine.PlanContext{Strategy: engine.StrategyOverride, Plan: plan, Report: engine.AnalysisReport{}}

	for _, p := range []engine.Processor{NewPageProcessor(client), NewPageConfigurationProcessor(client)} {
		ops, err := p.ProcessWithPlan(context.Background(), reader, pc)
		if err != nil {
			t.Fatalf("%s: expected no error, got: %v", p.ComponentType(), err)
		}
		assertNames(t, string(p.ComponentType()), names(ops), []string{"todomvc-about"})
		if ops[0].Action() != engine.ActionOverride {
			t.Errorf("%s: expected OVERRIDE, got %s", p.ComponentType(), ops[0].Action())
		}
		if err := ops[0].Install(context.Background()); err != nil {
			t.Fatalf("failed to install: %v", err)
		}
	}

	assertNames(t, "calls", client.Calls(), []string{
		"RegisterPage todomvc-about update",
		"ConfigurePage todomvc-about",
	})

	// Unplanned types pass through untouched
	dirs, err := NewDirectoryProcessor(client).ProcessWithPlan(context.Background(), reader, pc)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(dirs) != 3 {
		t.Errorf("Expected all 3 folders, got %d", len(dirs))
	}
}

func TestDefaultRegistry(t *testing.T) {
	registry, err := DefaultRegistry(newFakeEngineClient(), newFakeClusterClient())
	if err != nil {
		t.Fatalf("failed to create registry: %v", err)
	}

	ordered := registry.Ordered()
	if len(ordered) != len(engine.ComponentTypes) {
		t.Fatalf("Expected %d processors, got %d", len(engine.ComponentTypes), len(ordered))
	}
	for i, p := range ordered {
		if p.ComponentType() != engine.ComponentTypes[i] {
			t.Errorf("Expected %s at rank %d, got %s", engine.ComponentTypes[i], i, p.ComponentType())
		}
	}
}

func TestProcessors_RestoreFromRegistry(t *testing.T) {
	client := newFakeEngineClient()
	ctx := context.Background()

	var ops []engine.Installable
	for _, root := range []string{"testdata/todomvc/1.0.0", "testdata/todomvc-plugin"} {
		reader := bundle.NewDirReader(root)
		for _, p := range All(client, newFakeClusterClient()) {
			processed, err := p.Process(ctx, reader)
			if err != nil {
				t.Fatalf("%s processor failed: %v", p.ComponentType(), err)
			}
			ops = append(ops, processed...)
		}
	}

	registry, err := DefaultRegistry(client, newFakeClusterClient())
	if err != nil {
		t.Fatalf("failed to create registry: %v", err)
	}

	if len(ops) == 0 {
		t.Fatal("Expected operations to restore")
	}
	for _, op := range ops {
		restored, err := registry.Restore(&engine.InstalledComponent{
			Type:           op.ComponentType(),
			Name:           op.Name(),
			Checksum:       op.Checksum(),
			Representation: op.Representation(),
		})
		if err != nil {
			t.Fatalf("failed to restore %s: %v", engine.KeyOf(op), err)
		}
		if engine.KeyOf(restored) != engine.KeyOf(op) || engine.PlanKeyOf(restored) != engine.PlanKeyOf(op) {
			t.Errorf("Expected key %s, got %s", engine.KeyOf(op), engine.KeyOf(restored))
		}
		if restored.Checksum() != op.Checksum() {
			t.Errorf("Expected %s checksum %s, got %s", engine.KeyOf(op), op.Checksum(), restored.Checksum())
		}
	}

	if _, err := NewPageProcessor(client).Restore(&engine.InstalledComponent{
		Type:           engine.ComponentPage,
		Name:           "broken",
		Representation: []byte(`{"code":`),
	}); err == nil {
		t.Error("Expected error for a corrupt representation")
	}
}
