package stores

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/openfroyo/bundlekeeper/pkg/engine"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements engine.JobStore and the bundle catalog on SQLite.
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

var _ engine.JobStore = (*SQLiteStore)(nil)

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

const memoryPath = ":memory:"

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	// Every connection to :memory: opens a separate database
	if cfg.Path == memoryPath {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
	}

	return &SQLiteStore{cfg: cfg}, nil
}

// Init opens the database connection.
func (s *SQLiteStore) Init(ctx context.Context) error {
	pragmas := []string{
		"_pragma=foreign_keys(1)",
		"_pragma=busy_timeout(5000)",
		"_time_format=sqlite",
	}
	if s.cfg.Path != memoryPath {
		pragmas = append(pragmas, "_pragma=journal_mode(WAL)", "_pragma=synchronous(NORMAL)", "_txlock=immediate")
	}
	dsn := s.cfg.Path + "?" + strings.Join(pragmas, "&")

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// HealthCheck verifies the database connection
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return s.db.PingContext(ctx)
}

// withTx runs fn in a transaction and commits it when fn succeeds.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func isConstraint(err error, code int) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == code
}

func utc(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

func rawOrNull(raw json.RawMessage) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}

func nullRaw(ns sql.NullString) json.RawMessage {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.RawMessage(ns.String)
}

// CreateBundle registers a bundle in the catalog.
func (s *SQLiteStore) CreateBundle(ctx context.Context, bundle *engine.Bundle) error {
	types, err := json.Marshal(bundle.ComponentTypes)
	if err != nil {
		return fmt.Errorf("failed to marshal component types: %w", err)
	}
	versions, err := json.Marshal(bundle.Versions)
	if err != nil {
		return fmt.Errorf("failed to marshal versions: %w", err)
	}

	now := time.Now().UTC()
	if bundle.CreatedAt.IsZero() {
		bundle.CreatedAt = now
	}
	bundle.UpdatedAt = now

	query := `
		INSERT INTO bundles (code, repo_url, bundle_id, local_path, component_types, versions, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		bundle.Code,
		bundle.RepoURL,
		bundle.BundleID,
		bundle.LocalPath,
		string(types),
		string(versions),
		utc(bundle.CreatedAt),
		bundle.UpdatedAt,
	)
	if isConstraint(err, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY) {
		return engine.NewConflictError("bundle already registered", err).
			WithCode(engine.ErrCodeAlreadyExists).
			WithResource(bundle.Code)
	}
	if err != nil {
		return fmt.Errorf("failed to create bundle: %w", err)
	}
	return nil
}

const bundleColumns = `
	b.code, b.repo_url, b.bundle_id, b.local_path, b.component_types, b.versions,
	b.created_at, b.updated_at,
	COALESCE(ib.version, ''), COALESCE(ib.job_id, ''),
	(SELECT j.id FROM jobs j WHERE j.bundle_code = b.code ORDER BY j.started_at DESC, j.rowid DESC LIMIT 1)
	FROM bundles b
	LEFT JOIN installed_bundles ib ON ib.code = b.code
`

func scanBundle(row rowScanner) (*engine.Bundle, error) {
	var (
		b        engine.Bundle
		types    string
		versions string
		lastJob  sql.NullString
	)
	err := row.Scan(
		&b.Code,
		&b.RepoURL,
		&b.BundleID,
		&b.LocalPath,
		&types,
		&versions,
		&b.CreatedAt,
		&b.UpdatedAt,
		&b.InstalledVersion,
		&b.LastInstallJobID,
		&lastJob,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(types), &b.ComponentTypes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal component types: %w", err)
	}
	if err := json.Unmarshal([]byte(versions), &b.Versions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal versions: %w", err)
	}
	b.LastJobID = lastJob.String
	return &b, nil
}

// GetBundle retrieves a catalog entry with its installation state.
func (s *SQLiteStore) GetBundle(ctx context.Context, code string) (*engine.Bundle, error) {
	bundle, err := scanBundle(s.db.QueryRowContext(ctx, "SELECT "+bundleColumns+" WHERE b.code = ?", code))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("bundle not found: %s", code)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bundle: %w", err)
	}
	return bundle, nil
}

// ListBundles lists the catalog ordered by code.
func (s *SQLiteStore) ListBundles(ctx context.Context) ([]*engine.Bundle, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+bundleColumns+" ORDER BY b.code")
	if err != nil {
		return nil, fmt.Errorf("failed to list bundles: %w", err)
	}
	defer rows.Close()

	bundles := []*engine.Bundle{}
	for rows.Next() {
		b, err := scanBundle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bundle: %w", err)
		}
		bundles = append(bundles, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bundles: %w", err)
	}
	return bundles, nil
}

const jobColumns = `
	id, bundle_code, bundle_version, type, status, progress, error, error_code,
	requested_by, started_at, finished_at, heartbeat_at
`

func scanJob(row rowScanner) (*engine.Job, error) {
	var (
		job      engine.Job
		finished sql.NullTime
	)
	err := row.Scan(
		&job.ID,
		&job.BundleCode,
		&job.BundleVersion,
		&job.Type,
		&job.Status,
		&job.Progress,
		&job.Error,
		&job.ErrorCode,
		&job.User,
		&job.StartedAt,
		&finished,
		&job.HeartbeatAt,
	)
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		job.FinishedAt = &finished.Time
	}
	return &job, nil
}

func (s *SQLiteStore) queryJobs(ctx context.Context, query string, args ...any) ([]*engine.Job, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []*engine.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating jobs: %w", err)
	}
	return jobs, nil
}

func activeStatusList() (string, []any) {
	marks := make([]string, len(engine.NonTerminalJobStatuses))
	args := make([]any, len(engine.NonTerminalJobStatuses))
	for i, status := range engine.NonTerminalJobStatuses {
		marks[i] = "?"
		args[i] = string(status)
	}
	return strings.Join(marks, ", "), args
}

// FindNonTerminalJob returns the bundle's running job, or nil.
func (s *SQLiteStore) FindNonTerminalJob(ctx context.Context, bundleCode string) (*engine.Job, error) {
	marks, args := activeStatusList()
	query := "SELECT " + jobColumns + " FROM jobs WHERE bundle_code = ? AND status IN (" + marks + ") LIMIT 1"

	job, err := scanJob(s.db.QueryRowContext(ctx, query, append([]any{bundleCode}, args...)...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find running job: %w", err)
	}
	return job, nil
}

// CreateJob inserts a job. The partial unique index on bundle_code turns a
// second non-terminal job into a *engine.JobConflictError.
func (s *SQLiteStore) CreateJob(ctx context.Context, job *engine.Job) error {
	if err := job.Type.Validate(); err != nil {
		return err
	}
	if err := job.Status.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO jobs (` + jobColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	var finished any
	if job.FinishedAt != nil {
		finished = job.FinishedAt.UTC()
	}
	_, err := s.db.ExecContext(ctx, query,
		job.ID,
		job.BundleCode,
		job.BundleVersion,
		string(job.Type),
		string(job.Status),
		job.Progress,
		job.Error,
		job.ErrorCode,
		job.User,
		utc(job.StartedAt),
		finished,
		utc(job.HeartbeatAt),
	)
	if isConstraint(err, sqlite3.SQLITE_CONSTRAINT_UNIQUE) {
		existing, findErr := s.FindNonTerminalJob(ctx, job.BundleCode)
		if findErr != nil || existing == nil {
			return fmt.Errorf("failed to create job: %w", err)
		}
		return engine.NewJobConflictError(job.BundleCode, existing.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID
func (s *SQLiteStore) GetJob(ctx context.Context, jobID string) (*engine.Job, error) {
	job, err := scanJob(s.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = ?", jobID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// ListJobs lists jobs newest first. An empty bundle code lists all jobs and
// a non-positive limit lists every match.
func (s *SQLiteStore) ListJobs(ctx context.Context, bundleCode string, limit int) ([]*engine.Job, error) {
	if limit <= 0 {
		limit = -1
	}
	query := "SELECT " + jobColumns + ` FROM jobs
		WHERE (? = '' OR bundle_code = ?)
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`
	return s.queryJobs(ctx, query, bundleCode, bundleCode, limit)
}

// UpdateJobStatus moves a job to status when the state machine allows it.
func (s *SQLiteStore) UpdateJobStatus(ctx context.Context, jobID string, status engine.JobStatus, jobErr error) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return updateJobStatusTx(ctx, tx, jobID, status, jobErr)
	})
}

func updateJobStatusTx(ctx context.Context, tx *sql.Tx, jobID string, status engine.JobStatus, jobErr error) error {
	var current engine.JobStatus
	err := tx.QueryRowContext(ctx, "SELECT status FROM jobs WHERE id = ?", jobID).Scan(&current)
	if err == sql.ErrNoRows {
		return fmt.Errorf("job not found: %s", jobID)
	}
	if err != nil {
		return fmt.Errorf("failed to get job status: %w", err)
	}
	if !current.CanTransitionTo(status) {
		return engine.NewConflictError(fmt.Sprintf("invalid job transition %s -> %s", current, status), nil).
			WithCode(engine.ErrCodeConflict).
			WithResource(jobID)
	}

	var errMsg, errCode string
	if jobErr != nil {
		errMsg = jobErr.Error()
		errCode = engine.ErrorCode(jobErr)
	}
	var finished any
	if status.IsTerminal() {
		finished = time.Now().UTC()
	}

	query := `
		UPDATE jobs
		SET status = ?,
			error = CASE WHEN ? = '' THEN error ELSE ? END,
			error_code = CASE WHEN ? = '' THEN error_code ELSE ? END,
			finished_at = ?
		WHERE id = ?
	`
	if _, err := tx.ExecContext(ctx, query, string(status), errMsg, errMsg, errCode, errCode, finished, jobID); err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}
	return nil
}

// Heartbeat records progress and refreshes the job's lease.
func (s *SQLiteStore) Heartbeat(ctx context.Context, jobID string, progress float64) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE jobs SET progress = ?, heartbeat_at = ? WHERE id = ?",
		progress, time.Now().UTC(), jobID)
	if err != nil {
		return fmt.Errorf("failed to record heartbeat: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("job not found: %s", jobID)
	}
	return nil
}

// ListStaleJobs returns non-terminal jobs whose heartbeat is older than before.
func (s *SQLiteStore) ListStaleJobs(ctx context.Context, before time.Time) ([]*engine.Job, error) {
	marks, args := activeStatusList()
	query := "SELECT " + jobColumns + " FROM jobs WHERE status IN (" + marks + ") AND heartbeat_at < ? ORDER BY heartbeat_at"
	return s.queryJobs(ctx, query, append(args, before.UTC())...)
}

const componentJobColumns = `
	id, job_id, seq, component_type, component_name, action, status,
	checksum, representation, rollback_of, error, created_at
`

// AppendComponentJob inserts a record with the next sequence number of its
// job and stores the number on cj.
func (s *SQLiteStore) AppendComponentJob(ctx context.Context, cj *engine.ComponentJob) error {
	if err := cj.Status.Validate(); err != nil {
		return err
	}
	if cj.CreatedAt.IsZero() {
		cj.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO component_jobs (` + componentJobColumns + `)
		SELECT ?, ?, COALESCE(MAX(seq), 0) + 1, ?, ?, ?, ?, ?, ?, ?, ?, ?
		FROM component_jobs WHERE job_id = ?
		RETURNING seq
	`
	err := s.db.QueryRowContext(ctx, query,
		cj.ID,
		cj.JobID,
		string(cj.ComponentType),
		cj.ComponentName,
		string(cj.Action),
		string(cj.Status),
		cj.Checksum,
		rawOrNull(cj.Representation),
		cj.RollbackOf,
		cj.Error,
		cj.CreatedAt.UTC(),
		cj.JobID,
	).Scan(&cj.Sequence)
	if err != nil {
		return fmt.Errorf("failed to append component job: %w", err)
	}
	return nil
}

func (s *SQLiteStore) queryComponentJobs(ctx context.Context, query string, args ...any) ([]*engine.ComponentJob, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list component jobs: %w", err)
	}
	defer rows.Close()

	records := []*engine.ComponentJob{}
	for rows.Next() {
		var (
			cj  engine.ComponentJob
			rep sql.NullString
		)
		err := rows.Scan(
			&cj.ID,
			&cj.JobID,
			&cj.Sequence,
			&cj.ComponentType,
			&cj.ComponentName,
			&cj.Action,
			&cj.Status,
			&cj.Checksum,
			&rep,
			&cj.RollbackOf,
			&cj.Error,
			&cj.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan component job: %w", err)
		}
		cj.Representation = nullRaw(rep)
		records = append(records, &cj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating component jobs: %w", err)
	}
	return records, nil
}

// ListComponentJobs returns every record of a job in sequence order.
func (s *SQLiteStore) ListComponentJobs(ctx context.Context, jobID string) ([]*engine.ComponentJob, error) {
	return s.queryComponentJobs(ctx,
		"SELECT "+componentJobColumns+" FROM component_jobs WHERE job_id = ? ORDER BY seq", jobID)
}

// FindCompletedComponentJobs returns the COMPLETED records of a job in
// sequence order.
func (s *SQLiteStore) FindCompletedComponentJobs(ctx context.Context, jobID string) ([]*engine.ComponentJob, error) {
	return s.queryComponentJobs(ctx,
		"SELECT "+componentJobColumns+" FROM component_jobs WHERE job_id = ? AND status = ? ORDER BY seq",
		jobID, string(engine.ComponentJobCompleted))
}

// GetInstalledBundle returns the registry row of a bundle, or nil.
func (s *SQLiteStore) GetInstalledBundle(ctx context.Context, code string) (*engine.InstalledBundle, error) {
	var b engine.InstalledBundle
	err := s.db.QueryRowContext(ctx,
		"SELECT code, version, digest, job_id, installed_at FROM installed_bundles WHERE code = ?", code,
	).Scan(&b.Code, &b.Version, &b.Digest, &b.JobID, &b.InstalledAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get installed bundle: %w", err)
	}
	return &b, nil
}

const installedComponentColumns = `type, name, bundle_code, checksum, representation, job_id, installed_at`

func scanInstalledComponent(row rowScanner) (*engine.InstalledComponent, error) {
	var (
		c   engine.InstalledComponent
		rep sql.NullString
	)
	if err := row.Scan(&c.Type, &c.Name, &c.BundleCode, &c.Checksum, &rep, &c.JobID, &c.InstalledAt); err != nil {
		return nil, err
	}
	c.Representation = nullRaw(rep)
	return &c, nil
}

// ListInstalledComponents lists the components a bundle owns, ordered by
// type and name.
func (s *SQLiteStore) ListInstalledComponents(ctx context.Context, bundleCode string) ([]*engine.InstalledComponent, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+installedComponentColumns+" FROM installed_components WHERE bundle_code = ? ORDER BY type, name",
		bundleCode)
	if err != nil {
		return nil, fmt.Errorf("failed to list installed components: %w", err)
	}
	defer rows.Close()

	components := []*engine.InstalledComponent{}
	for rows.Next() {
		c, err := scanInstalledComponent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan installed component: %w", err)
		}
		components = append(components, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating installed components: %w", err)
	}

	return components, nil
}

// FindInstalledComponent returns the registry row of a component owned by
// any bundle, or nil.
func (s *SQLiteStore) FindInstalledComponent(ctx context.Context, key engine.ComponentKey) (*engine.InstalledComponent, error) {
	c, err := scanInstalledComponent(s.db.QueryRowContext(ctx,
		"SELECT "+installedComponentColumns+" FROM installed_components WHERE type = ? AND name = ?",
		string(key.Type), key.Name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find installed component: %w", err)
	}
	return c, nil
}

// CompleteInstall marks the job completed and records the bundle and its
// components in one transaction. A component already owned by another
// bundle changes owner.
func (s *SQLiteStore) CompleteInstall(
	ctx context.Context,
	jobID string,
	bundle *engine.InstalledBundle,
	components []*engine.InstalledComponent,
) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := updateJobStatusTx(ctx, tx, jobID, engine.JobStatusInstallCompleted, nil); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO installed_bundles (code, version, digest, job_id, installed_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(code) DO UPDATE SET
				version = excluded.version,
				digest = excluded.digest,
				job_id = excluded.job_id,
				installed_at = excluded.installed_at
		`, bundle.Code, bundle.Version, bundle.Digest, bundle.JobID, utc(bundle.InstalledAt))
		if err != nil {
			return fmt.Errorf("failed to record installed bundle: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO installed_components (`+installedComponentColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(type, name) DO UPDATE SET
				bundle_code = excluded.bundle_code,
				checksum = excluded.checksum,
				representation = excluded.representation,
				job_id = excluded.job_id,
				installed_at = excluded.installed_at
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare component upsert: %w", err)
		}
		defer stmt.Close()

		for _, c := range components {
			_, err := stmt.ExecContext(ctx,
				string(c.Type), c.Name, c.BundleCode, c.Checksum, rawOrNull(c.Representation), c.JobID, utc(c.InstalledAt))
			if err != nil {
				return fmt.Errorf("failed to record installed component %s: %w", c.Key(), err)
			}
		}
		return nil
	})
}

// CompleteUninstall marks the job completed and removes the bundle and its
// components from the registry in one transaction.
func (s *SQLiteStore) CompleteUninstall(ctx context.Context, jobID, bundleCode string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := updateJobStatusTx(ctx, tx, jobID, engine.JobStatusUninstallCompleted, nil); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM installed_components WHERE bundle_code = ?", bundleCode); err != nil {
			return fmt.Errorf("failed to remove installed components: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM installed_bundles WHERE code = ?", bundleCode); err != nil {
			return fmt.Errorf("failed to remove installed bundle: %w", err)
		}
		return nil
	})
}

// AppendEvent appends an event to a job's timeline
func (s *SQLiteStore) AppendEvent(ctx context.Context, event *engine.Event) error {
	var details sql.NullString
	if len(event.Details) > 0 {
		raw, err := json.Marshal(event.Details)
		if err != nil {
			return fmt.Errorf("failed to marshal event details: %w", err)
		}
		details = sql.NullString{String: string(raw), Valid: true}
	}

	query := `
		INSERT INTO events (id, job_id, component_job_id, type, level, message, details, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.JobID,
		event.ComponentJobID,
		string(event.Type),
		event.Level,
		event.Message,
		details,
		utc(event.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// ListEvents returns a job's timeline in chronological order. A
// non-positive limit returns every event.
func (s *SQLiteStore) ListEvents(ctx context.Context, jobID string, limit int) ([]*engine.Event, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `
		SELECT id, job_id, component_job_id, type, level, message, details, timestamp
		FROM events
		WHERE job_id = ?
		ORDER BY timestamp, rowid
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, jobID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	events := []*engine.Event{}
	for rows.Next() {
		var (
			event   engine.Event
			details sql.NullString
		)
		err := rows.Scan(
			&event.ID,
			&event.JobID,
			&event.ComponentJobID,
			&event.Type,
			&event.Level,
			&event.Message,
			&details,
			&event.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if details.Valid {
			if err := json.Unmarshal([]byte(details.String), &event.Details); err != nil {
				return nil, fmt.Errorf("failed to unmarshal event details: %w", err)
			}
		}
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return events, nil
}
