package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/openfroyo/bundlekeeper/pkg/engine"
)

// setupTestStore creates an in-memory SQLite store for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	t.Cleanup(func() { _ = store.Close() })
	return store
}

func createTestBundle(t *testing.T, store *SQLiteStore, code string) *engine.Bundle {
	t.Helper()
	repo := "https://github.com/example/" + code + ".git"
	bundle := &engine.Bundle{
		Code:           code,
		RepoURL:        repo,
		BundleID:       engine.BundleIDFromURL(repo),
		LocalPath:      "/bundles/" + code,
		ComponentTypes: []engine.ComponentType{engine.ComponentPage, engine.ComponentWidget},
		Versions:       []string{"1.0.1", "1.0.0"},
	}
	if err := store.CreateBundle(context.Background(), bundle); err != nil {
		t.Fatalf("failed to create bundle: %v", err)
	}
	return bundle
}

func createTestJob(t *testing.T, store *SQLiteStore, id, code string, jobType engine.JobType) *engine.Job {
	t.Helper()
	now := time.Now()
	job := &engine.Job{
		ID:            id,
		BundleCode:    code,
		BundleVersion: "1.0.0",
		Type:          jobType,
		Status:        jobType.CreatedStatus(),
		User:          "admin",
		StartedAt:     now,
		HeartbeatAt:   now,
	}
	if err := store.CreateJob(context.Background(), job); err != nil {
		t.Fatalf("failed to create job: %v", err)
	}
	return job
}

// TestStoreLifecycle tests database initialization and closure
func TestStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

func TestNewSQLiteStore_RequiresPath(t *testing.T) {
	if _, err := NewSQLiteStore(Config{}); err == nil {
		t.Error("Expected error for empty path")
	}
}

// TestStoreMigrations tests database migrations
func TestStoreMigrations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	tables := []string{"bundles", "jobs", "component_jobs", "installed_bundles", "installed_components", "events"}
	for _, table := range tables {
		var count int
		err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count)
		if err != nil {
			t.Errorf("table %s does not exist or is not accessible: %v", table, err)
		}
	}

	// Migrating again is a no-op
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to re-run migrations: %v", err)
	}
}

func TestFileStore_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundlekeeper.db")
	ctx := context.Background()

	open := func() *SQLiteStore {
		store, err := NewSQLiteStore(Config{Path: path})
		if err != nil {
			t.Fatalf("failed to create store: %v", err)
		}
		if err := store.Init(ctx); err != nil {
			t.Fatalf("failed to initialize store: %v", err)
		}
		if err := store.Migrate(ctx); err != nil {
			t.Fatalf("failed to migrate store: %v", err)
		}
		return store
	}

	store := open()
	createTestBundle(t, store, "todomvc")
	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}

	store = open()
	defer store.Close()
	if _, err := store.GetBundle(ctx, "todomvc"); err != nil {
		t.Fatalf("Expected bundle to survive reopen: %v", err)
	}
}

func TestBundleCatalog(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	created := createTestBundle(t, store, "todomvc")
	createTestBundle(t, store, "about-page")

	got, err := store.GetBundle(ctx, "todomvc")
	if err != nil {
		t.Fatalf("failed to get bundle: %v", err)
	}
	if got.BundleID != created.BundleID || len(got.BundleID) != 8 {
		t.Errorf("Expected bundle id %s, got %s", created.BundleID, got.BundleID)
	}
	if len(got.Versions) != 2 || got.Versions[0] != "1.0.1" {
		t.Errorf("Expected versions to round-trip, got %v", got.Versions)
	}
	if len(got.ComponentTypes) != 2 || got.ComponentTypes[1] != engine.ComponentWidget {
		t.Errorf("Expected component types to round-trip, got %v", got.ComponentTypes)
	}
	if got.Installed() || got.LastJobID != "" {
		t.Errorf("Expected fresh bundle without jobs, got %+v", got)
	}

	err = store.CreateBundle(ctx, &engine.Bundle{Code: "todomvc", RepoURL: created.RepoURL, BundleID: created.BundleID, LocalPath: "/x"})
	if engine.ErrorCode(err) != engine.ErrCodeAlreadyExists {
		t.Errorf("Expected ALREADY_EXISTS for duplicate code, got %v", err)
	}

	bundles, err := store.ListBundles(ctx)
	if err != nil {
		t.Fatalf("failed to list bundles: %v", err)
	}
	if len(bundles) != 2 || bundles[0].Code != "about-page" {
		t.Errorf("Expected bundles ordered by code, got %d", len(bundles))
	}

	if _, err := store.GetBundle(ctx, "missing"); err == nil {
		t.Error("Expected error for unknown bundle")
	}
}

func TestJobCRUD(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	createTestBundle(t, store, "todomvc")

	job := createTestJob(t, store, "job-1", "todomvc", engine.JobTypeInstall)

	got, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("failed to get job: %v", err)
	}
	if got.Status != engine.JobStatusInstallCreated {
		t.Errorf("Expected status INSTALL_CREATED, got %s", got.Status)
	}
	if got.User != "admin" || got.BundleVersion != "1.0.0" {
		t.Errorf("Unexpected job fields: %+v", got)
	}
	if got.FinishedAt != nil {
		t.Error("Expected no finish time for a created job")
	}
	if !got.StartedAt.Equal(job.StartedAt) {
		t.Errorf("Expected started_at %v, got %v", job.StartedAt, got.StartedAt)
	}

	if _, err := store.GetJob(ctx, "missing"); err == nil {
		t.Error("Expected error for unknown job")
	}

	bundle, err := store.GetBundle(ctx, "todomvc")
	if err != nil {
		t.Fatalf("failed to get bundle: %v", err)
	}
	if bundle.LastJobID != job.ID {
		t.Errorf("Expected last job %s, got %s", job.ID, bundle.LastJobID)
	}
}

func TestCreateJob_UnknownBundle(t *testing.T) {
	store := setupTestStore(t)
	job := &engine.Job{ID: "job-1", BundleCode: "ghost", Type: engine.JobTypeInstall, Status: engine.JobStatusInstallCreated}
	if err := store.CreateJob(context.Background(), job); err == nil {
		t.Error("Expected foreign key violation for unregistered bundle")
	}
}

func TestCreateJob_OneNonTerminalPerBundle(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	createTestBundle(t, store, "todomvc")
	createTestBundle(t, store, "other")

	createTestJob(t, store, "job-1", "todomvc", engine.JobTypeInstall)

	err := store.CreateJob(ctx, &engine.Job{
		ID: "job-2", BundleCode: "todomvc", Type: engine.JobTypeUninstall, Status: engine.JobStatusUninstallCreated,
	})
	if !engine.IsJobConflict(err) {
		t.Fatalf("Expected job conflict, got %v", err)
	}
	if engine.ExistingJobID(err) != "job-1" {
		t.Errorf("Expected existing job job-1, got %s", engine.ExistingJobID(err))
	}

	// Other bundles are unaffected
	createTestJob(t, store, "job-3", "other", engine.JobTypeInstall)

	// A terminal job frees the bundle
	if err := store.UpdateJobStatus(ctx, "job-1", engine.JobStatusInstallError, errors.New("boom")); err != nil {
		t.Fatalf("failed to update job status: %v", err)
	}
	createTestJob(t, store, "job-4", "todomvc", engine.JobTypeInstall)

	running, err := store.FindNonTerminalJob(ctx, "todomvc")
	if err != nil {
		t.Fatalf("failed to find running job: %v", err)
	}
	if running == nil || running.ID != "job-4" {
		t.Errorf("Expected job-4 to be running, got %+v", running)
	}
}

func TestCreateJob_ConcurrentStarts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "concurrent.db")
	ctx := context.Background()
	store, err := NewSQLiteStore(Config{Path: path})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}
	createTestBundle(t, store, "todomvc")

	const starters = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)
	for i := 0; i < starters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := store.CreateJob(ctx, &engine.Job{
				ID:         fmt.Sprintf("job-%d", i),
				BundleCode: "todomvc",
				Type:       engine.JobTypeInstall,
				Status:     engine.JobStatusInstallCreated,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case engine.IsJobConflict(err):
				conflicts++
			default:
				t.Errorf("Unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if created != 1 || conflicts != starters-1 {
		t.Errorf("Expected 1 created and %d conflicts, got %d and %d", starters-1, created, conflicts)
	}
}

func TestUpdateJobStatus(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	createTestBundle(t, store, "todomvc")
	createTestJob(t, store, "job-1", "todomvc", engine.JobTypeInstall)

	if err := store.UpdateJobStatus(ctx, "job-1", engine.JobStatusInstallCompleted, nil); err == nil {
		t.Error("Expected CREATED -> COMPLETED to be rejected")
	}

	if err := store.UpdateJobStatus(ctx, "job-1", engine.JobStatusInstallInProgress, nil); err != nil {
		t.Fatalf("failed to start job: %v", err)
	}

	cause := engine.NewPermanentError("failed to install widget/todomvc-list", errors.New("500")).
		WithCode(engine.ErrCodeOperationFailed)
	if err := store.UpdateJobStatus(ctx, "job-1", engine.JobStatusInstallRollback, cause); err != nil {
		t.Fatalf("failed to roll back job: %v", err)
	}

	job, err := store.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("failed to get job: %v", err)
	}
	if job.Status != engine.JobStatusInstallRollback {
		t.Errorf("Expected INSTALL_ROLLBACK, got %s", job.Status)
	}
	if job.ErrorCode != engine.ErrCodeOperationFailed || job.Error == "" {
		t.Errorf("Expected recorded error, got %q (%s)", job.Error, job.ErrorCode)
	}
	if job.FinishedAt == nil {
		t.Error("Expected finish time on terminal status")
	}

	// Terminal statuses are final
	if err := store.UpdateJobStatus(ctx, "job-1", engine.JobStatusInstallInProgress, nil); err == nil {
		t.Error("Expected transition out of a terminal status to be rejected")
	}
	if err := store.UpdateJobStatus(ctx, "missing", engine.JobStatusInstallInProgress, nil); err == nil {
		t.Error("Expected error for unknown job")
	}
}

func TestListJobs(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	createTestBundle(t, store, "todomvc")
	createTestBundle(t, store, "other")

	createTestJob(t, store, "job-1", "todomvc", engine.JobTypeInstall)
	if err := store.UpdateJobStatus(ctx, "job-1", engine.JobStatusInstallError, nil); err != nil {
		t.Fatalf("failed to fail job: %v", err)
	}
	createTestJob(t, store, "job-2", "todomvc", engine.JobTypeInstall)
	createTestJob(t, store, "job-3", "other", engine.JobTypeInstall)

	jobs, err := store.ListJobs(ctx, "todomvc", 0)
	if err != nil {
		t.Fatalf("failed to list jobs: %v", err)
	}
	if len(jobs) != 2 || jobs[0].ID != "job-2" || jobs[1].ID != "job-1" {
		t.Errorf("Expected [job-2 job-1], got %d jobs", len(jobs))
	}

	all, err := store.ListJobs(ctx, "", 0)
	if err != nil {
		t.Fatalf("failed to list jobs: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Expected 3 jobs, got %d", len(all))
	}

	limited, err := store.ListJobs(ctx, "", 1)
	if err != nil {
		t.Fatalf("failed to list jobs: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "job-3" {
		t.Errorf("Expected newest job only, got %d", len(limited))
	}
}

func TestHeartbeatAndStaleJobs(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	createTestBundle(t, store, "todomvc")
	createTestBundle(t, store, "other")

	old := time.Now().Add(-time.Hour)
	stale := &engine.Job{
		ID: "stale", BundleCode: "todomvc", Type: engine.JobTypeInstall,
		Status: engine.JobStatusInstallCreated, StartedAt: old, HeartbeatAt: old,
	}
	if err := store.CreateJob(ctx, stale); err != nil {
		t.Fatalf("failed to create job: %v", err)
	}
	createTestJob(t, store, "fresh", "other", engine.JobTypeInstall)

	jobs, err := store.ListStaleJobs(ctx, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("failed to list stale jobs: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != "stale" {
		t.Fatalf("Expected only the stale job, got %d", len(jobs))
	}

	if err := store.Heartbeat(ctx, "stale", 0.5); err != nil {
		t.Fatalf("failed to heartbeat: %v", err)
	}
	jobs, err = store.ListStaleJobs(ctx, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("failed to list stale jobs: %v", err)
	}
	if len(jobs) != 0 {
		t.Errorf("Expected heartbeat to renew the lease, got %d stale", len(jobs))
	}

	job, _ := store.GetJob(ctx, "stale")
	if job.Progress != 0.5 {
		t.Errorf("Expected progress 0.5, got %f", job.Progress)
	}

	if err := store.Heartbeat(ctx, "missing", 1); err == nil {
		t.Error("Expected error for unknown job")
	}
}

func TestComponentJobs_Sequence(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	createTestBundle(t, store, "todomvc")
	createTestBundle(t, store, "other")
	createTestJob(t, store, "job-1", "todomvc", engine.JobTypeInstall)
	createTestJob(t, store, "job-2", "other", engine.JobTypeInstall)

	records := []*engine.ComponentJob{
		{ID: "cj-1", JobID: "job-1", ComponentType: engine.ComponentDirectory, ComponentName: "todomvc", Status: engine.ComponentJobCompleted},
		{ID: "cj-2", JobID: "job-1", ComponentType: engine.ComponentPage, ComponentName: "todomvc", Action: engine.ActionCreate,
			Status: engine.ComponentJobCompleted, Checksum: "sha256:abc", Representation: json.RawMessage(`{"code":"todomvc"}`)},
		{ID: "other-1", JobID: "job-2", ComponentType: engine.ComponentPage, ComponentName: "x", Status: engine.ComponentJobCompleted},
		{ID: "cj-3", JobID: "job-1", ComponentType: engine.ComponentWidget, ComponentName: "todomvc-list", Action: engine.ActionCreate,
			Status: engine.ComponentJobError, Error: "500"},
		{ID: "cj-4", JobID: "job-1", ComponentType: engine.ComponentPage, ComponentName: "todomvc",
			Status: engine.ComponentJobRollback, RollbackOf: "cj-2"},
	}
	for _, cj := range records {
		if err := store.AppendComponentJob(ctx, cj); err != nil {
			t.Fatalf("failed to append component job: %v", err)
		}
	}

	expectedSeq := map[string]int64{"cj-1": 1, "cj-2": 2, "other-1": 1, "cj-3": 3, "cj-4": 4}
	for _, cj := range records {
		if cj.Sequence != expectedSeq[cj.ID] {
			t.Errorf("Expected %s sequence %d, got %d", cj.ID, expectedSeq[cj.ID], cj.Sequence)
		}
	}

	all, err := store.ListComponentJobs(ctx, "job-1")
	if err != nil {
		t.Fatalf("failed to list component jobs: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("Expected 4 records, got %d", len(all))
	}
	for i, cj := range all {
		if cj.Sequence != int64(i+1) {
			t.Errorf("Expected sequence order, got %d at %d", cj.Sequence, i)
		}
	}
	if string(all[1].Representation) != `{"code":"todomvc"}` || all[1].Checksum != "sha256:abc" {
		t.Errorf("Expected representation to round-trip, got %s", all[1].Representation)
	}
	if all[3].RollbackOf != "cj-2" {
		t.Errorf("Expected rollback reference cj-2, got %s", all[3].RollbackOf)
	}

	completed, err := store.FindCompletedComponentJobs(ctx, "job-1")
	if err != nil {
		t.Fatalf("failed to find completed component jobs: %v", err)
	}
	if len(completed) != 2 || completed[0].ID != "cj-1" || completed[1].ID != "cj-2" {
		t.Errorf("Expected [cj-1 cj-2], got %d records", len(completed))
	}

	if err := store.AppendComponentJob(ctx, &engine.ComponentJob{ID: "bad", JobID: "job-1", Status: "DONE"}); err == nil {
		t.Error("Expected invalid status to be rejected")
	}
}

func TestInstalledRegistry(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	createTestBundle(t, store, "todomvc")
	createTestBundle(t, store, "other")

	createTestJob(t, store, "job-1", "todomvc", engine.JobTypeInstall)
	if err := store.UpdateJobStatus(ctx, "job-1", engine.JobStatusInstallInProgress, nil); err != nil {
		t.Fatalf("failed to start job: %v", err)
	}

	components := []*engine.InstalledComponent{
		{Type: engine.ComponentPage, Name: "todomvc", BundleCode: "todomvc", Checksum: "sha256:1", JobID: "job-1",
			Representation: json.RawMessage(`{"code":"todomvc"}`)},
		{Type: engine.ComponentLabel, Name: "TODO_TITLE", BundleCode: "todomvc", Checksum: "sha256:2", JobID: "job-1"},
	}
	record := &engine.InstalledBundle{Code: "todomvc", Version: "1.0.0", Digest: "sha256:d", JobID: "job-1"}
	if err := store.CompleteInstall(ctx, "job-1", record, components); err != nil {
		t.Fatalf("failed to complete install: %v", err)
	}

	job, _ := store.GetJob(ctx, "job-1")
	if job.Status != engine.JobStatusInstallCompleted {
		t.Errorf("Expected INSTALL_COMPLETED, got %s", job.Status)
	}

	installed, err := store.GetInstalledBundle(ctx, "todomvc")
	if err != nil || installed == nil {
		t.Fatalf("failed to get installed bundle: %v", err)
	}
	if installed.Version != "1.0.0" || installed.Digest != "sha256:d" {
		t.Errorf("Unexpected installed bundle: %+v", installed)
	}

	bundle, _ := store.GetBundle(ctx, "todomvc")
	if bundle.InstalledVersion != "1.0.0" || bundle.LastInstallJobID != "job-1" {
		t.Errorf("Expected catalog to show the installation, got %+v", bundle)
	}

	owned, err := store.ListInstalledComponents(ctx, "todomvc")
	if err != nil {
		t.Fatalf("failed to list installed components: %v", err)
	}
	if len(owned) != 2 {
		t.Fatalf("Expected 2 owned components, got %d", len(owned))
	}

	page, err := store.FindInstalledComponent(ctx, engine.ComponentKey{Type: engine.ComponentPage, Name: "todomvc"})
	if err != nil || page == nil {
		t.Fatalf("failed to find page: %v", err)
	}
	if string(page.Representation) != `{"code":"todomvc"}` {
		t.Errorf("Expected representation to round-trip, got %s", page.Representation)
	}

	missing, err := store.FindInstalledComponent(ctx, engine.ComponentKey{Type: engine.ComponentPage, Name: "nope"})
	if err != nil || missing != nil {
		t.Errorf("Expected nil for unknown component, got %v, %v", missing, err)
	}

	// A second bundle installing the same label takes ownership of it
	createTestJob(t, store, "job-2", "other", engine.JobTypeInstall)
	_ = store.UpdateJobStatus(ctx, "job-2", engine.JobStatusInstallInProgress, nil)
	err = store.CompleteInstall(ctx, "job-2",
		&engine.InstalledBundle{Code: "other", Version: "2.0.0", Digest: "sha256:e", JobID: "job-2"},
		[]*engine.InstalledComponent{{Type: engine.ComponentLabel, Name: "TODO_TITLE", BundleCode: "other", Checksum: "sha256:3", JobID: "job-2"}})
	if err != nil {
		t.Fatalf("failed to complete install: %v", err)
	}
	label, _ := store.FindInstalledComponent(ctx, engine.ComponentKey{Type: engine.ComponentLabel, Name: "TODO_TITLE"})
	if label.BundleCode != "other" || label.Checksum != "sha256:3" {
		t.Errorf("Expected label to move to bundle other, got %+v", label)
	}

	// Uninstall removes only what the bundle owns
	createTestJob(t, store, "job-3", "todomvc", engine.JobTypeUninstall)
	_ = store.UpdateJobStatus(ctx, "job-3", engine.JobStatusUninstallInProgress, nil)
	if err := store.CompleteUninstall(ctx, "job-3", "todomvc"); err != nil {
		t.Fatalf("failed to complete uninstall: %v", err)
	}

	if b, _ := store.GetInstalledBundle(ctx, "todomvc"); b != nil {
		t.Error("Expected todomvc to be removed from the registry")
	}
	if owned, _ := store.ListInstalledComponents(ctx, "todomvc"); len(owned) != 0 {
		t.Errorf("Expected no owned components, got %d", len(owned))
	}
	if label, _ := store.FindInstalledComponent(ctx, engine.ComponentKey{Type: engine.ComponentLabel, Name: "TODO_TITLE"}); label == nil {
		t.Error("Expected label owned by other to survive")
	}
}

func TestCompleteInstall_RejectsWrongStatus(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	createTestBundle(t, store, "todomvc")
	createTestJob(t, store, "job-1", "todomvc", engine.JobTypeInstall)

	// Still CREATED: the transaction must leave the registry untouched
	err := store.CompleteInstall(ctx, "job-1",
		&engine.InstalledBundle{Code: "todomvc", Version: "1.0.0", JobID: "job-1"},
		[]*engine.InstalledComponent{{Type: engine.ComponentPage, Name: "todomvc", BundleCode: "todomvc", JobID: "job-1"}})
	if err == nil {
		t.Fatal("Expected invalid transition to fail")
	}
	if b, _ := store.GetInstalledBundle(ctx, "todomvc"); b != nil {
		t.Error("Expected no installed bundle after failed transaction")
	}
	if c, _ := store.FindInstalledComponent(ctx, engine.ComponentKey{Type: engine.ComponentPage, Name: "todomvc"}); c != nil {
		t.Error("Expected no installed component after failed transaction")
	}
}

func TestEvents(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	createTestBundle(t, store, "todomvc")
	createTestJob(t, store, "job-1", "todomvc", engine.JobTypeInstall)

	base := time.Now()
	events := []*engine.Event{
		{ID: "e1", JobID: "job-1", Type: engine.EventTypeJobStarted, Level: "info", Message: "Job started", Timestamp: base},
		{ID: "e2", JobID: "job-1", Type: engine.EventTypeJobFailed, Level: "error", Message: "boom",
			Details: map[string]interface{}{"code": engine.ErrCodeOperationFailed}, Timestamp: base.Add(time.Second)},
	}
	for _, e := range events {
		if err := store.AppendEvent(ctx, e); err != nil {
			t.Fatalf("failed to append event: %v", err)
		}
	}

	got, err := store.ListEvents(ctx, "job-1", 0)
	if err != nil {
		t.Fatalf("failed to list events: %v", err)
	}
	if len(got) != 2 || got[0].ID != "e1" {
		t.Fatalf("Expected events in order, got %d", len(got))
	}
	if got[1].Details["code"] != engine.ErrCodeOperationFailed {
		t.Errorf("Expected details to round-trip, got %v", got[1].Details)
	}

	if err := store.AppendEvent(ctx, &engine.Event{ID: "e3", JobID: "job-1", Type: engine.EventTypeJobStarted, Level: "loud"}); err == nil {
		t.Error("Expected invalid level to be rejected")
	}
}
