// Package stores provides the SQLite persistence layer for bundlekeeper.
//
// SQLiteStore implements engine.JobStore: the bundle catalog, jobs with
// their append-only component records and event timeline, and the
// installed-bundle registry. The one-running-job-per-bundle rule is a
// partial unique index, so it holds across processes sharing a database
// file. Schema changes are embedded migrations applied by Migrate.
package stores
