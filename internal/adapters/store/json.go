package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
	"github.com/hugo-lorenzo-mato/reelsight/internal/fsutil"
)

// JSONStore keeps one pretty-printed file per job under a directory.
type JSONStore struct {
	dir string
	mu  sync.RWMutex
}

// NewJSONStore creates the directory if needed.
func NewJSONStore(dir string) (*JSONStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, core.ErrValidation(core.CodeInvalidConfig, "json store directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	return &JSONStore{dir: dir}, nil
}

// Dir returns the storage directory.
func (s *JSONStore) Dir() string {
	return s.dir
}

func (s *JSONStore) pathFor(id core.JobID) (string, error) {
	name := string(id)
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", core.ErrValidation(core.CodeInvalidJobID, fmt.Sprintf("invalid job id %q", name))
	}
	return filepath.Join(s.dir, name+".json"), nil
}

// Put writes rec atomically, replacing any previous copy.
func (s *JSONStore) Put(_ context.Context, rec *core.JobRecord) error {
	if err := validate(rec); err != nil {
		return err
	}
	path, err := s.pathFor(rec.ID)
	if err != nil {
		return err
	}
	stamp(rec)

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, err := s.read(path); err == nil && prev != nil && !prev.CreatedAt.IsZero() {
		rec.CreatedAt = prev.CreatedAt
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling job: %w", err)
	}
	if err := fsutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return persistenceErr("writing job "+string(rec.ID), err)
	}
	return nil
}

// Get returns the record for id, or (nil, nil) when absent.
func (s *JSONStore) Get(_ context.Context, id core.JobID) (*core.JobRecord, error) {
	path, err := s.pathFor(id)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read(path)
}

func (s *JSONStore) read(path string) (*core.JobRecord, error) {
	data, err := fsutil.ReadFileScoped(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, persistenceErr("reading "+filepath.Base(path), err)
	}
	var rec core.JobRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, persistenceErr("decoding "+filepath.Base(path), err)
	}
	return &rec, nil
}

// List returns summaries, newest first.
func (s *JSONStore) List(_ context.Context, opts core.ListOptions) ([]core.JobSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, err := s.all()
	if err != nil {
		return nil, err
	}
	out := make([]core.JobSummary, 0, len(records))
	for _, rec := range records {
		if opts.Status != "" && rec.Status != opts.Status {
			continue
		}
		out = append(out, rec.Summary())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if opts.Offset >= len(out) {
		return nil, nil
	}
	out = out[max(opts.Offset, 0):]
	if limit := listLimit(opts); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *JSONStore) all() ([]*core.JobRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, persistenceErr("reading store directory", err)
	}
	var out []*core.JobRecord
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		rec, err := s.read(filepath.Join(s.dir, e.Name()))
		if err != nil || rec == nil {
			// a corrupt file must not hide the rest of the listing
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Delete removes id. Deleting a missing id is not an error.
func (s *JSONStore) Delete(_ context.Context, id core.JobID) error {
	path, err := s.pathFor(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return persistenceErr("deleting job "+string(id), err)
	}
	return nil
}

// Count returns the number of stored jobs.
func (s *JSONStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records, err := s.all()
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// Close is a no-op.
func (s *JSONStore) Close() error {
	return nil
}
