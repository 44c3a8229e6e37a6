package synthesis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
	"github.com/hugo-lorenzo-mato/reelsight/internal/service/normalize"
)

func TestPrepare(t *testing.T) {
	in := fixtureInput()

	assert.Equal(t, "video_1", in.VideoID)
	require.Len(t, in.Metrics, 4)
	for _, name := range core.PerformanceMetricNames() {
		m := in.Metrics[name]
		assert.Equal(t, name, m.Name)
		assert.NotEmpty(t, m.Breakdown, name)
	}
	assert.InDelta(t, 75, float64(in.Metrics[core.MetricEngagement].Score), 0.01)

	require.Len(t, in.Contradictions, 1)
	assert.Equal(t, core.MetricEngagement, in.Contradictions[0].Metric)

	gender := in.Demographics.GenderDistribution
	assert.InDelta(t, 61, gender["male"], 0.01)
	assert.InDelta(t, 39, gender["female"], 0.01)
	assert.InDelta(t, 100, float64(in.Representation.Score), 0.01)
	assert.NotNil(t, in.Errors)
}

func TestPrepare_BothDefaulted(t *testing.T) {
	in := Prepare("v", normalize.DefaultNarrative(), normalize.DefaultVision(), exactReconciler())

	assert.Empty(t, in.Contradictions)
	for _, name := range core.PerformanceMetricNames() {
		assert.Equal(t, core.NeutralScore, in.Metrics[name].Score, name)
	}
	assert.InDelta(t, 50, in.Demographics.GenderDistribution["male"], 0.01)
	assert.True(t, in.Representation.Defaulted)
}

func TestInput_DefaultedNames(t *testing.T) {
	in := fixtureInput()
	names := in.DefaultedNames()

	assert.Contains(t, names, "vision.shareability")
	assert.Contains(t, names, "vision.conversion_potential")
	assert.NotContains(t, names, "vision.engagement")
	assert.IsIncreasing(t, names)
}

func TestOverlay_MarksErrors(t *testing.T) {
	in := fixtureInput()
	in.Errors[core.DetailVisionError] = "vision timed out"
	r := Repair(core.NewUnifiedReport(""))

	Overlay(r, in)

	assert.True(t, r.Metadata.HasErrors)
	assert.Equal(t, "vision timed out", r.Metadata.ErrorDetails[core.DetailVisionError])
	assert.Equal(t, "video_1", r.Metadata.VideoID)
}

func TestOverlay_DefaultedVisionKeepsModelPacing(t *testing.T) {
	in := Prepare("v", normalize.Narrative(narrativeFixture), normalize.DefaultVision(), exactReconciler())
	r := Repair(core.NewUnifiedReport("v"))
	r.ContentQuality.PacingAndFlow.EditingPace.TotalCutCount = 33

	Overlay(r, in)

	assert.Equal(t, core.Count(33), r.ContentQuality.PacingAndFlow.EditingPace.TotalCutCount)
	assert.Empty(t, r.Contradictions)
	// narrative alone drives the score when vision is defaulted
	assert.InDelta(t, 90, float64(r.PerformanceMetrics.Engagement.Score), 0.01)
}

func TestOverlay_FillsSummaryFromNarrative(t *testing.T) {
	in := fixtureInput()
	r := Repair(core.NewUnifiedReport("v"))
	r.Summary.KeyStrengths = nil
	r.Summary.ImprovementAreas = nil

	Overlay(r, in)

	assert.Equal(t, []string{"Strong hook", "Clear product focus"}, r.Summary.KeyStrengths)
	assert.Equal(t, []string{"Add captions"}, r.Summary.ImprovementAreas)
}

func TestMergeContradictions(t *testing.T) {
	local := []core.ContradictionRecord{{Metric: "engagement", Reconciliation: "local"}}
	generated := []core.ContradictionRecord{
		{Metric: "engagement", Reconciliation: "model"},
		{Metric: "tone"},
		{Metric: "tone"},
	}

	got := mergeContradictions(local, generated)

	require.Len(t, got, 2)
	assert.Equal(t, "local", got[0].Reconciliation)
	assert.Equal(t, "tone", got[1].Metric)
}

func TestCutFrequency(t *testing.T) {
	assert.Equal(t, "No cuts detected", cutFrequency(0, 0))
	assert.Equal(t, "1 cut every 3.0 seconds", cutFrequency(4, 3))
}
