package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS reelsight_jobs (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    source_ref TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    stage INTEGER NOT NULL DEFAULT 0,
    progress_percent INTEGER NOT NULL DEFAULT 0,
    result TEXT,
    error TEXT,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reelsight_jobs_status ON reelsight_jobs(status);
CREATE INDEX IF NOT EXISTS idx_reelsight_jobs_created_at ON reelsight_jobs(created_at DESC);
`

const postgresTable = "reelsight_jobs"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var recordColumns = []string{
	"id", "name", "source_ref", "status", "stage", "progress_percent",
	"result", "error", "created_at", "updated_at",
}

func upsertQuery(rec *core.JobRecord) (string, []any, error) {
	result, errRec, err := encodeResult(rec)
	if err != nil {
		return "", nil, err
	}
	return psql.Insert(postgresTable).
		Columns(recordColumns...).
		Values(string(rec.ID), rec.Name, rec.SourceRef, string(rec.Status), int(rec.Stage), rec.ProgressPercent,
			nullText(result), nullText(errRec), rec.CreatedAt.UTC(), rec.UpdatedAt.UTC()).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			source_ref = EXCLUDED.source_ref,
			status = EXCLUDED.status,
			stage = EXCLUDED.stage,
			progress_percent = EXCLUDED.progress_percent,
			result = EXCLUDED.result,
			error = EXCLUDED.error,
			updated_at = EXCLUDED.updated_at`).
		ToSql()
}

func getQuery(id core.JobID) (string, []any, error) {
	return psql.Select(recordColumns...).
		From(postgresTable).
		Where(sq.Eq{"id": string(id)}).
		ToSql()
}

func listQuery(opts core.ListOptions) (string, []any, error) {
	q := psql.Select("id", "name", "source_ref", "status", "progress_percent",
		"error IS NOT NULL", "created_at", "updated_at").
		From(postgresTable).
		OrderBy("created_at DESC", "id").
		Limit(uint64(listLimit(opts))).
		Offset(uint64(max(opts.Offset, 0)))
	if opts.Status != "" {
		q = q.Where(sq.Eq{"status": string(opts.Status)})
	}
	return q.ToSql()
}

func nullText(b []byte) *string {
	if len(b) == 0 {
		return nil
	}
	s := string(b)
	return &s
}

// PostgresStore implements core.ResultStore on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects, pings and creates the table if needed.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, core.ErrValidation(core.CodeInvalidConfig, "store.dsn is required for the postgres backend")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(initCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	if _, err := pool.Exec(initCtx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Put upserts rec by id.
func (s *PostgresStore) Put(ctx context.Context, rec *core.JobRecord) error {
	if err := validate(rec); err != nil {
		return err
	}
	stamp(rec)
	query, args, err := upsertQuery(rec)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return persistenceErr("saving job "+string(rec.ID), err)
	}
	return nil
}

// Get returns the record for id, or (nil, nil) when absent.
func (s *PostgresStore) Get(ctx context.Context, id core.JobID) (*core.JobRecord, error) {
	query, args, err := getQuery(id)
	if err != nil {
		return nil, err
	}

	var (
		rec            core.JobRecord
		idStr, status  string
		stage          int
		result, errRec *string
	)
	err = s.pool.QueryRow(ctx, query, args...).Scan(&idStr, &rec.Name, &rec.SourceRef, &status, &stage,
		&rec.ProgressPercent, &result, &errRec, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, persistenceErr("loading job "+string(id), err)
	}
	rec.ID = core.JobID(idStr)
	rec.Status = core.JobStatus(status)
	rec.Stage = core.Stage(stage)
	if err := decodeResult(&rec, derefBytes(result), derefBytes(errRec)); err != nil {
		return nil, persistenceErr("decoding job "+string(id), err)
	}
	return &rec, nil
}

// List returns summaries, newest first.
func (s *PostgresStore) List(ctx context.Context, opts core.ListOptions) ([]core.JobSummary, error) {
	query, args, err := listQuery(opts)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, persistenceErr("listing jobs", err)
	}
	defer rows.Close()

	var out []core.JobSummary
	for rows.Next() {
		var (
			sum        core.JobSummary
			id, status string
		)
		if err := rows.Scan(&id, &sum.Name, &sum.SourceRef, &status, &sum.ProgressPercent,
			&sum.HasErrors, &sum.CreatedAt, &sum.UpdatedAt); err != nil {
			return nil, persistenceErr("scanning job", err)
		}
		sum.ID = core.JobID(id)
		sum.Status = core.JobStatus(status)
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("listing jobs", err)
	}
	return out, nil
}

// Delete removes id.
func (s *PostgresStore) Delete(ctx context.Context, id core.JobID) error {
	query, args, err := psql.Delete(postgresTable).Where(sq.Eq{"id": string(id)}).ToSql()
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return persistenceErr("deleting job "+string(id), err)
	}
	return nil
}

// Count returns the number of stored jobs.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	query, args, err := psql.Select("COUNT(*)").From(postgresTable).ToSql()
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, persistenceErr("counting jobs", err)
	}
	return n, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func derefBytes(s *string) []byte {
	if s == nil {
		return nil
	}
	return []byte(*s)
}
