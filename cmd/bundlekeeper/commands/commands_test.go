package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/openfroyo/bundlekeeper/pkg/engine"
)

const todomvcRepo = "https://github.com/entando/todomvc.git"

// engineRecorder accepts every call and remembers the method and path.
type engineRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (e *engineRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_, _ = io.Copy(io.Discard, r.Body)
	e.mu.Lock()
	e.calls = append(e.calls, r.Method+" "+r.URL.Path)
	e.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, `{"payload":[],"errors":[]}`)
}

func (e *engineRecorder) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

func setupCLI(t *testing.T) *engineRecorder {
	t.Helper()

	rec := &engineRecorder{}
	srv := httptest.NewServer(rec)
	t.Cleanup(srv.Close)

	t.Setenv("BUNDLEKEEPER_STORE_PATH", filepath.Join(t.TempDir(), "bundlekeeper.db"))
	t.Setenv("BUNDLEKEEPER_ENGINE_BASE_URL", srv.URL)
	t.Setenv("BUNDLEKEEPER_TELEMETRY_LOGGING_LEVEL", "error")
	t.Setenv("BUNDLEKEEPER_TELEMETRY_EVENTS_ENABLE_ASYNC", "false")
	return rec
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	root := newRootCommand("test", "none", "today")
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	if err != nil {
		t.Fatalf("failed to run %v: %v", args, err)
	}
	return out
}

func decode[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("failed to decode output %q: %v", out, err)
	}
	return v
}

func todomvcPath(t *testing.T) string {
	t.Helper()
	path, err := filepath.Abs(filepath.Join("..", "..", "..", "pkg", "processors", "testdata", "todomvc"))
	if err != nil {
		t.Fatalf("failed to resolve fixture: %v", err)
	}
	return path
}

func TestCLI_BundleCatalog(t *testing.T) {
	setupCLI(t)

	out := mustRun(t, "bundle", "add", todomvcPath(t), "--repo", todomvcRepo)
	if !strings.Contains(out, "Registered bundle todomvc") {
		t.Errorf("Unexpected add output: %q", out)
	}

	if _, err := run(t, "bundle", "add", todomvcPath(t), "--repo", todomvcRepo); !engine.IsConflict(err) {
		t.Errorf("Expected duplicate registration to conflict, got %v", err)
	}

	bundles := decode[[]*engine.Bundle](t, mustRun(t, "bundle", "list", "--json"))
	if len(bundles) != 1 {
		t.Fatalf("Expected 1 bundle, got %d", len(bundles))
	}
	b := bundles[0]
	if b.BundleID != engine.BundleIDFromURL(todomvcRepo) {
		t.Errorf("Expected bundle id from repo URL, got %s", b.BundleID)
	}
	if len(b.Versions) != 2 {
		t.Errorf("Expected 2 versions, got %v", b.Versions)
	}

	out = mustRun(t, "bundle", "show", "todomvc")
	if !strings.Contains(out, "Installed:      -") {
		t.Errorf("Expected bundle not installed, got %q", out)
	}
}

func TestCLI_BundleAddRejectsBadRepo(t *testing.T) {
	setupCLI(t)

	_, err := run(t, "bundle", "add", todomvcPath(t), "--repo", "not-a-url")
	if !engine.IsValidation(err) {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestCLI_AnalyzeAndPlan(t *testing.T) {
	setupCLI(t)
	mustRun(t, "bundle", "add", todomvcPath(t), "--repo", todomvcRepo)

	report := decode[engine.AnalysisReport](t, mustRun(t, "analyze", "todomvc", "--version", "1.0.0", "--json"))
	if report.Count() != 8 {
		t.Errorf("Expected 8 analyzed components, got %d", report.Count())
	}
	for _, key := range report.Keys() {
		if status, _ := report.Get(key.Type, key.Name); status != engine.DiffNew {
			t.Errorf("Expected %s to be NEW, got %s", key, status)
		}
	}

	plan := decode[engine.InstallPlan](t, mustRun(t, "plan", "todomvc", "--version", "1.0.0",
		"--override", "page/todomvc-about=SKIP", "--json"))
	entry, ok := plan.Get(engine.ComponentPage, "todomvc-about")
	if !ok || entry.Action != engine.ActionSkip {
		t.Errorf("Expected override to skip the about page, got %+v", entry)
	}
	entry, _ = plan.Get(engine.ComponentWidget, "todomvc-list")
	if entry.Action != engine.ActionCreate {
		t.Errorf("Expected widget to be created, got %s", entry.Action)
	}

	out := mustRun(t, "plan", "todomvc", "--version", "1.0.0")
	if !strings.Contains(out, "8 components: 8 to create") {
		t.Errorf("Unexpected plan summary: %q", out)
	}
}

func TestCLI_InstallAndUninstall(t *testing.T) {
	rec := setupCLI(t)
	mustRun(t, "bundle", "add", todomvcPath(t), "--repo", todomvcRepo)

	job := decode[engine.Job](t, mustRun(t, "install", "todomvc", "--version", "1.0.0", "--json"))
	if job.Status != engine.JobStatusInstallCompleted {
		t.Fatalf("Expected INSTALL_COMPLETED, got %s (%s)", job.Status, job.Error)
	}
	if rec.count() < 16 {
		t.Errorf("Expected at least 16 engine calls, got %d", rec.count())
	}

	records := decode[[]*engine.ComponentJob](t, mustRun(t, "job", "components", job.ID, "--json"))
	if len(records) != 16 {
		t.Errorf("Expected 16 component jobs, got %d", len(records))
	}
	for i, r := range records {
		if r.Status != engine.ComponentJobCompleted {
			t.Errorf("Record %d: expected COMPLETED, got %s", i, r.Status)
		}
	}

	again := decode[engine.StartResult](t, mustRun(t, "install", "todomvc", "--version", "1.0.0", "--json"))
	if !again.Existing || again.JobID != job.ID {
		t.Errorf("Expected reinstall to return job %s, got %+v", job.ID, again)
	}

	usage := mustRun(t, "usage", "todomvc")
	if !strings.Contains(usage, "widget/todomvc-list") {
		t.Errorf("Expected usage to list installed widget, got %q", usage)
	}

	un := decode[engine.Job](t, mustRun(t, "uninstall", "todomvc", "--json"))
	if un.Status != engine.JobStatusUninstallCompleted {
		t.Fatalf("Expected UNINSTALL_COMPLETED, got %s (%s)", un.Status, un.Error)
	}

	jobs := decode[[]*engine.Job](t, mustRun(t, "job", "list", "--bundle", "todomvc", "--json"))
	if len(jobs) != 2 {
		t.Fatalf("Expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].ID != un.ID {
		t.Errorf("Expected newest job first, got %s", jobs[0].ID)
	}

	out := mustRun(t, "job", "get", job.ID, "--events")
	if !strings.Contains(out, "INSTALL_COMPLETED") {
		t.Errorf("Expected job status in output, got %q", out)
	}
}

func TestCLI_UninstallNotInstalled(t *testing.T) {
	setupCLI(t)
	mustRun(t, "bundle", "add", todomvcPath(t), "--repo", todomvcRepo)

	_, err := run(t, "uninstall", "todomvc")
	if engine.ErrorCode(err) != engine.ErrCodeNotInstalled {
		t.Errorf("Expected NOT_INSTALLED, got %v", err)
	}
}

func TestCLI_UnknownBundle(t *testing.T) {
	setupCLI(t)

	_, err := run(t, "install", "missing")
	if engine.ErrorCode(err) != engine.ErrCodeNotFound {
		t.Errorf("Expected NOT_FOUND, got %v", err)
	}
}

func TestCLI_ReconcileNothingStale(t *testing.T) {
	setupCLI(t)

	out := mustRun(t, "reconcile", "--older-than", "1m")
	if !strings.Contains(out, "No stale jobs") {
		t.Errorf("Unexpected reconcile output: %q", out)
	}
}

func TestParseOverrides(t *testing.T) {
	plan, err := parseOverrides([]string{"page/todomvc=override", "widget/todomvc-list=SKIP"})
	if err != nil {
		t.Fatalf("failed to parse overrides: %v", err)
	}
	if plan.Count() != 2 {
		t.Fatalf("Expected 2 entries, got %d", plan.Count())
	}
	if entry, _ := plan.Get(engine.ComponentPage, "todomvc"); entry.Action != engine.ActionOverride {
		t.Errorf("Expected OVERRIDE, got %s", entry.Action)
	}

	empty, err := parseOverrides(nil)
	if err != nil || empty != nil {
		t.Errorf("Expected nil plan for no overrides, got %v, %v", empty, err)
	}

	for _, bad := range []string{"page", "page/x", "page/=SKIP", "nope/x=SKIP", "page/x=DROP"} {
		if _, err := parseOverrides([]string{bad}); err == nil {
			t.Errorf("Expected error for %q", bad)
		}
	}
}
