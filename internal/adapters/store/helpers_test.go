package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
)

var baseTime = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func completedRecord(id string, created time.Time) *core.JobRecord {
	report := core.NewUnifiedReport(id)
	report.Summary = &core.Summary{
		ContentOverview:         "A product demo",
		KeyStrengths:            []string{"Hook"},
		ImprovementAreas:        []string{"Pacing"},
		OverallPerformanceScore: 78,
	}
	report.AddContradiction(core.ContradictionRecord{
		Metric:         "engagement",
		Reconciliation: "weighted toward narrative",
		Confidence:     core.ConfidenceMedium,
	})
	return &core.JobRecord{
		ID:              core.JobID(id),
		Name:            "demo",
		SourceRef:       "https://cdn.example.com/" + id + ".mp4",
		Status:          core.JobStatusCompleted,
		Stage:           core.StageDone,
		ProgressPercent: 100,
		Result:          report,
		CreatedAt:       created,
		UpdatedAt:       created.Add(time.Minute),
	}
}

func failedRecord(id string, created time.Time) *core.JobRecord {
	return &core.JobRecord{
		ID:              core.JobID(id),
		Name:            "broken",
		SourceRef:       "/tmp/missing.mp4",
		Status:          core.JobStatusError,
		Stage:           core.StageDone,
		ProgressPercent: 100,
		Error: &core.ErrorRecord{
			Code:    core.CodeInvalidSource,
			Message: "source not found",
			Details: map[string]string{core.DetailPipelineError: "source not found"},
		},
		CreatedAt: created,
		UpdatedAt: created,
	}
}

// exerciseStore runs the behaviour every backend shares.
func exerciseStore(t *testing.T, s core.ResultStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("get missing returns nil", func(t *testing.T) {
		rec, err := s.Get(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("put then get", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, completedRecord("job_a", baseTime)))

		got, err := s.Get(ctx, "job_a")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, core.JobStatusCompleted, got.Status)
		assert.Equal(t, core.StageDone, got.Stage)
		assert.Equal(t, 100, got.ProgressPercent)
		require.NotNil(t, got.Result)
		assert.Equal(t, core.Score(78), got.Result.Summary.OverallPerformanceScore)
		assert.Len(t, got.Result.Contradictions, 1)
		assert.True(t, got.CreatedAt.Equal(baseTime))
		assert.Nil(t, got.Error)
	})

	t.Run("put is an idempotent upsert", func(t *testing.T) {
		rec := failedRecord("job_b", baseTime.Add(time.Hour))
		require.NoError(t, s.Put(ctx, rec))
		require.NoError(t, s.Put(ctx, rec))

		rec.Error.Message = "second write"
		require.NoError(t, s.Put(ctx, rec))

		got, err := s.Get(ctx, "job_b")
		require.NoError(t, err)
		require.NotNil(t, got.Error)
		assert.Equal(t, "second write", got.Error.Message)
		assert.Equal(t, "source not found", got.Error.Details[core.DetailPipelineError])
		assert.Nil(t, got.Result)

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("list newest first with filter and paging", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			id := fmt.Sprintf("job_c%d", i)
			require.NoError(t, s.Put(ctx, completedRecord(id, baseTime.Add(time.Duration(i+2)*time.Hour))))
		}

		all, err := s.List(ctx, core.ListOptions{})
		require.NoError(t, err)
		require.Len(t, all, 5)
		assert.Equal(t, core.JobID("job_c2"), all[0].ID)
		assert.Equal(t, core.JobID("job_a"), all[4].ID)

		failed, err := s.List(ctx, core.ListOptions{Status: core.JobStatusError})
		require.NoError(t, err)
		require.Len(t, failed, 1)
		assert.True(t, failed[0].HasErrors)

		page, err := s.List(ctx, core.ListOptions{Limit: 2, Offset: 1})
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, core.JobID("job_c1"), page[0].ID)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, "job_a"))
		require.NoError(t, s.Delete(ctx, "job_a"))

		got, err := s.Get(ctx, "job_a")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("rejects empty id", func(t *testing.T) {
		err := s.Put(ctx, &core.JobRecord{})
		assert.True(t, core.IsCategory(err, core.ErrCatValidation))
	})
}
