// Package store implements core.ResultStore over SQLite, JSON files,
// MongoDB and PostgreSQL, with an optional Redis read-through cache.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/hugo-lorenzo-mato/reelsight/internal/config"
	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
	"github.com/hugo-lorenzo-mato/reelsight/internal/logging"
	"github.com/hugo-lorenzo-mato/reelsight/internal/metrics"
)

// Backend names accepted by store.backend.
const (
	BackendSQLite   = "sqlite"
	BackendJSON     = "json"
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
)

// DefaultListLimit caps List when the caller passes no limit.
const DefaultListLimit = 100

// New opens the backend selected by cfg.Store and, when enabled, wraps it
// with the Redis cache. The result reports every operation to m.
func New(ctx context.Context, cfg *config.Config, logger *logging.Logger, m *metrics.Collector) (core.ResultStore, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	backend, err := openBackend(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	var rs core.ResultStore = backend
	if cfg.Cache.Enabled {
		cache, err := NewRedisCache(rs, RedisOptions{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
			TTL:      config.Duration(cfg.Cache.TTL, DefaultCacheTTL),
		}, WithCacheMetrics(m), WithCacheLogger(logger))
		if err != nil {
			_ = backend.Close()
			return nil, err
		}
		rs = cache
	}
	logger.Info("result store ready", "backend", strings.ToLower(cfg.Store.Backend), "cache", cfg.Cache.Enabled)
	return Instrument(rs, m), nil
}

func openBackend(ctx context.Context, cfg config.StoreConfig) (core.ResultStore, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendSQLite:
		path := cfg.Path
		if !strings.HasSuffix(path, ".db") {
			path = strings.TrimSuffix(path, filepath.Ext(path)) + ".db"
		}
		return NewSQLiteStore(path)
	case BackendJSON:
		return NewJSONStore(strings.TrimSuffix(cfg.Path, filepath.Ext(cfg.Path)))
	case BackendMongo:
		return NewMongoStore(ctx, cfg.DSN, cfg.Database, cfg.Collection)
	case BackendPostgres:
		return NewPostgresStore(ctx, cfg.DSN)
	default:
		return nil, core.ErrValidation(core.CodeInvalidConfig, fmt.Sprintf("unsupported store backend %q", cfg.Backend))
	}
}

// instrumented reports each operation's outcome to the metrics collector.
type instrumented struct {
	core.ResultStore
	m *metrics.Collector
}

// Instrument wraps rs so every call is counted. A nil collector returns rs.
func Instrument(rs core.ResultStore, m *metrics.Collector) core.ResultStore {
	if m == nil {
		return rs
	}
	return &instrumented{ResultStore: rs, m: m}
}

func (s *instrumented) Put(ctx context.Context, rec *core.JobRecord) error {
	err := s.ResultStore.Put(ctx, rec)
	s.m.StoreOp("put", err)
	return err
}

func (s *instrumented) Get(ctx context.Context, id core.JobID) (*core.JobRecord, error) {
	rec, err := s.ResultStore.Get(ctx, id)
	s.m.StoreOp("get", err)
	return rec, err
}

func (s *instrumented) List(ctx context.Context, opts core.ListOptions) ([]core.JobSummary, error) {
	out, err := s.ResultStore.List(ctx, opts)
	s.m.StoreOp("list", err)
	return out, err
}

func (s *instrumented) Delete(ctx context.Context, id core.JobID) error {
	err := s.ResultStore.Delete(ctx, id)
	s.m.StoreOp("delete", err)
	return err
}

// validate rejects records no backend can key.
func validate(rec *core.JobRecord) error {
	if rec == nil {
		return core.ErrValidation(core.CodeInvalidJobID, "record is nil")
	}
	if strings.TrimSpace(string(rec.ID)) == "" {
		return core.ErrValidation(core.CodeInvalidJobID, "record id is empty")
	}
	return nil
}

// stamp fills timestamps a caller left zero.
func stamp(rec *core.JobRecord) {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}
}

func encodeResult(rec *core.JobRecord) (result, errRec []byte, err error) {
	if rec.Result != nil {
		if result, err = json.Marshal(rec.Result); err != nil {
			return nil, nil, fmt.Errorf("marshaling result: %w", err)
		}
	}
	if rec.Error != nil {
		if errRec, err = json.Marshal(rec.Error); err != nil {
			return nil, nil, fmt.Errorf("marshaling error record: %w", err)
		}
	}
	return result, errRec, nil
}

func decodeResult(rec *core.JobRecord, result, errRec []byte) error {
	if len(result) > 0 {
		rec.Result = &core.UnifiedReport{}
		if err := json.Unmarshal(result, rec.Result); err != nil {
			return fmt.Errorf("decoding result: %w", err)
		}
	}
	if len(errRec) > 0 {
		rec.Error = &core.ErrorRecord{}
		if err := json.Unmarshal(errRec, rec.Error); err != nil {
			return fmt.Errorf("decoding error record: %w", err)
		}
	}
	return nil
}

func listLimit(opts core.ListOptions) int {
	if opts.Limit <= 0 {
		return DefaultListLimit
	}
	return opts.Limit
}

func persistenceErr(op string, err error) error {
	return core.ErrPersistence(fmt.Sprintf("%s: %v", op, err)).WithCause(err)
}
