package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/reelsight/internal/config"
	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
	"github.com/hugo-lorenzo-mato/reelsight/internal/logging"
	"github.com/hugo-lorenzo-mato/reelsight/internal/metrics"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		backend  string
		path     string
		wantType string
		wantErr  bool
	}{
		{name: "empty backend defaults to sqlite", backend: "", path: "results.db", wantType: "*store.SQLiteStore"},
		{name: "sqlite adds db extension", backend: "SQLite", path: "results.json", wantType: "*store.SQLiteStore"},
		{name: "json backend", backend: "json", path: "results.json", wantType: "*store.JSONStore"},
		{name: "mongo without dsn", backend: "mongo", wantErr: true},
		{name: "postgres without dsn", backend: "postgres", wantErr: true},
		{name: "unsupported backend", backend: "dynamo", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{}
			cfg.Store.Backend = tt.backend
			cfg.Store.Path = filepath.Join(t.TempDir(), tt.path)

			s, err := New(context.Background(), cfg, logging.NewNop(), nil)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, core.IsCategory(err, core.ErrCatValidation))
				return
			}
			require.NoError(t, err)
			defer s.Close()
			assert.Equal(t, tt.wantType, typeName(s))
		})
	}
}

func TestNew_SQLitePathGetsDBExtension(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Store.Backend = "sqlite"
	cfg.Store.Path = filepath.Join(dir, "results.json")

	s, err := New(context.Background(), cfg, nil, nil)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Join(dir, "results.db"))
	assert.NoError(t, err)
}

func TestInstrument(t *testing.T) {
	backing, err := NewJSONStore(t.TempDir())
	require.NoError(t, err)

	assert.Same(t, core.ResultStore(backing), Instrument(backing, nil))

	wrapped := Instrument(backing, metrics.NewCollector("test"))
	ctx := context.Background()
	require.NoError(t, wrapped.Put(ctx, completedRecord("job_i", baseTime)))
	got, err := wrapped.Get(ctx, "job_i")
	require.NoError(t, err)
	require.NotNil(t, got)
	n, err := wrapped.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func typeName(v any) string {
	switch v.(type) {
	case *SQLiteStore:
		return "*store.SQLiteStore"
	case *JSONStore:
		return "*store.JSONStore"
	case *RedisCache:
		return "*store.RedisCache"
	default:
		return "unknown"
	}
}
