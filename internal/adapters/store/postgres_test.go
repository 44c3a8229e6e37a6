package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
)

func TestUpsertQuery(t *testing.T) {
	query, args, err := upsertQuery(completedRecord("job_pg", baseTime))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(query, "INSERT INTO reelsight_jobs (id,name,source_ref,status,stage,progress_percent,result,error,created_at,updated_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)"))
	assert.Contains(t, query, "ON CONFLICT (id) DO UPDATE SET")
	assert.NotContains(t, query, "created_at = EXCLUDED.created_at")
	require.Len(t, args, 10)
	assert.Equal(t, "job_pg", args[0])
	assert.Equal(t, int(core.StageDone), args[4])

	result, ok := args[6].(*string)
	require.True(t, ok)
	require.NotNil(t, result)
	assert.Contains(t, *result, `"content_overview":"A product demo"`)
	assert.Nil(t, args[7].(*string))
}

func TestGetQuery(t *testing.T) {
	query, args, err := getQuery("job_pg")
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, name, source_ref, status, stage, progress_percent, result, error, created_at, updated_at FROM reelsight_jobs WHERE id = $1", query)
	assert.Equal(t, []any{"job_pg"}, args)
}

func TestListQuery(t *testing.T) {
	tests := []struct {
		name      string
		opts      core.ListOptions
		wantWhere bool
		wantArgs  []any
		wantTail  string
	}{
		{
			name:     "defaults",
			opts:     core.ListOptions{},
			wantTail: "ORDER BY created_at DESC, id LIMIT 100 OFFSET 0",
		},
		{
			name:      "status filter and paging",
			opts:      core.ListOptions{Status: core.JobStatusError, Limit: 5, Offset: 10},
			wantWhere: true,
			wantArgs:  []any{"error"},
			wantTail:  "ORDER BY created_at DESC, id LIMIT 5 OFFSET 10",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args, err := listQuery(tt.opts)
			require.NoError(t, err)
			assert.True(t, strings.HasSuffix(query, tt.wantTail), query)
			assert.Equal(t, tt.wantWhere, strings.Contains(query, "WHERE status = $1"))
			if tt.wantArgs == nil {
				assert.Empty(t, args)
			} else {
				assert.Equal(t, tt.wantArgs, args)
			}
		})
	}
}
