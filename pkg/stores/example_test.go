package stores_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/openfroyo/bundlekeeper/pkg/engine"
	"github.com/openfroyo/bundlekeeper/pkg/stores"
)

// ExampleNewSQLiteStore demonstrates creating and initializing a new SQLite store.
func ExampleNewSQLiteStore() {
	store, err := stores.NewSQLiteStore(stores.Config{
		Path:            ":memory:",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	})
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		log.Fatal(err)
	}
	if err := store.Migrate(ctx); err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	fmt.Println("Store initialized successfully")
	// Output: Store initialized successfully
}

// ExampleSQLiteStore_CreateJob shows the one-running-job-per-bundle rule.
func ExampleSQLiteStore_CreateJob() {
	store, _ := stores.NewSQLiteStore(stores.Config{Path: ":memory:"})
	ctx := context.Background()
	_ = store.Init(ctx)
	_ = store.Migrate(ctx)
	defer store.Close()

	_ = store.CreateBundle(ctx, &engine.Bundle{
		Code:      "todomvc",
		RepoURL:   "https://github.com/example/todomvc-bundle.git",
		BundleID:  engine.BundleIDFromURL("https://github.com/example/todomvc-bundle.git"),
		LocalPath: "/var/lib/bundles/todomvc",
	})

	first := &engine.Job{ID: "job-1", BundleCode: "todomvc", Type: engine.JobTypeInstall, Status: engine.JobStatusInstallCreated}
	second := &engine.Job{ID: "job-2", BundleCode: "todomvc", Type: engine.JobTypeInstall, Status: engine.JobStatusInstallCreated}

	if err := store.CreateJob(ctx, first); err != nil {
		log.Fatal(err)
	}
	err := store.CreateJob(ctx, second)
	fmt.Println(engine.IsJobConflict(err), engine.ExistingJobID(err))
	// Output: true job-1
}
