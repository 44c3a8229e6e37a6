package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
	_ "modernc.org/sqlite"
)

//go:embed migrations/001_jobs.sql
var migrationV1 string

const timeLayout = time.RFC3339Nano

// SQLiteStore implements core.ResultStore with SQLite storage.
type SQLiteStore struct {
	path string
	db   *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	// WAL lets pollers read while a job is being written
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s := &SQLiteStore{path: path, db: db}

	if err := s.migrate(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("running migrations: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Path returns the database file.
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) migrate() error {
	var version int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version); err != nil {
		// Table doesn't exist yet
		version = 0
	}
	if version < 1 {
		if _, err := s.db.Exec(migrationV1); err != nil {
			return fmt.Errorf("applying migration v1: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put upserts rec by id.
func (s *SQLiteStore) Put(ctx context.Context, rec *core.JobRecord) error {
	if err := validate(rec); err != nil {
		return err
	}
	stamp(rec)
	result, errRec, err := encodeResult(rec)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, name, source_ref, status, stage, progress_percent, result, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			source_ref = excluded.source_ref,
			status = excluded.status,
			stage = excluded.stage,
			progress_percent = excluded.progress_percent,
			result = excluded.result,
			error = excluded.error,
			updated_at = excluded.updated_at`,
		string(rec.ID), rec.Name, rec.SourceRef, string(rec.Status), int(rec.Stage), rec.ProgressPercent,
		nullBytes(result), nullBytes(errRec),
		rec.CreatedAt.UTC().Format(timeLayout), rec.UpdatedAt.UTC().Format(timeLayout))
	if err != nil {
		return persistenceErr("saving job "+string(rec.ID), err)
	}
	return nil
}

// Get returns the record for id, or (nil, nil) when absent.
func (s *SQLiteStore) Get(ctx context.Context, id core.JobID) (*core.JobRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, source_ref, status, stage, progress_percent, result, error, created_at, updated_at
		FROM jobs WHERE id = ?`, string(id))

	var (
		rec                  core.JobRecord
		idStr, status        string
		stage                int
		result, errRec       sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&idStr, &rec.Name, &rec.SourceRef, &status, &stage, &rec.ProgressPercent,
		&result, &errRec, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, persistenceErr("loading job "+string(id), err)
	}
	rec.ID = core.JobID(idStr)
	rec.Status = core.JobStatus(status)
	rec.Stage = core.Stage(stage)
	rec.CreatedAt = parseTime(createdAt)
	rec.UpdatedAt = parseTime(updatedAt)
	if err := decodeResult(&rec, []byte(result.String), []byte(errRec.String)); err != nil {
		return nil, persistenceErr("decoding job "+string(id), err)
	}
	return &rec, nil
}

// List returns summaries, newest first.
func (s *SQLiteStore) List(ctx context.Context, opts core.ListOptions) ([]core.JobSummary, error) {
	query := `SELECT id, name, source_ref, status, progress_percent, error IS NOT NULL, created_at, updated_at FROM jobs`
	args := []any{}
	if opts.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(opts.Status))
	}
	query += ` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`
	args = append(args, listLimit(opts), opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistenceErr("listing jobs", err)
	}
	defer rows.Close()

	var out []core.JobSummary
	for rows.Next() {
		var (
			sum                  core.JobSummary
			id, status           string
			createdAt, updatedAt string
		)
		if err := rows.Scan(&id, &sum.Name, &sum.SourceRef, &status, &sum.ProgressPercent,
			&sum.HasErrors, &createdAt, &updatedAt); err != nil {
			return nil, persistenceErr("scanning job", err)
		}
		sum.ID = core.JobID(id)
		sum.Status = core.JobStatus(status)
		sum.CreatedAt = parseTime(createdAt)
		sum.UpdatedAt = parseTime(updatedAt)
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("listing jobs", err)
	}
	return out, nil
}

// Delete removes id. Deleting a missing id is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, id core.JobID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, string(id)); err != nil {
		return persistenceErr("deleting job "+string(id), err)
	}
	return nil
}

// Count returns the number of stored jobs.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs`).Scan(&n); err != nil {
		return 0, persistenceErr("counting jobs", err)
	}
	return n, nil
}

func nullBytes(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
