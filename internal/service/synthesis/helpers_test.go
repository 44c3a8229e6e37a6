package synthesis

import (
	"context"
	"sync"

	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
	"github.com/hugo-lorenzo-mato/reelsight/internal/service/normalize"
	"github.com/hugo-lorenzo-mato/reelsight/internal/service/reconcile"
)

// scriptedGenerator returns canned responses in order; the last one repeats.
type scriptedGenerator struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	requests  []core.GenerateRequest
}

func (g *scriptedGenerator) Generate(_ context.Context, req core.GenerateRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := len(g.requests)
	g.requests = append(g.requests, req)
	var err error
	if i < len(g.errs) {
		err = g.errs[i]
	}
	if err != nil {
		return "", err
	}
	if len(g.responses) == 0 {
		return "", nil
	}
	if i >= len(g.responses) {
		i = len(g.responses) - 1
	}
	return g.responses[i], nil
}

func (g *scriptedGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

const narrativeFixture = `{
  "Performance Metrics": {
    "Attention Score": "85",
    "Engagement Potential": "90",
    "Watch Time Retention": "75%",
    "Key Strengths": ["Strong hook", "Clear product focus"],
    "Improvement Suggestions": ["Add captions"]
  },
  "Detailed Analysis": {"In-depth Video Analysis": {
    "Hook": "A strong opening",
    "Viral Potential": {"Shareability": "Highly shareable", "Emotion": "Moderate"}
  }},
  "Demographics": {"gender_distribution": {"male": 70, "female": 30}}
}`

// visionFixture is a non-defaulted vision payload with a low engagement
// score so that engagement is contradicted.
func visionFixture() normalize.VisionMetrics {
	v := normalize.DefaultVision()
	v.Defaulted = false
	v.TotalFrames = 20
	v.CutCount = 8
	v.AvgSecondsPerCut = 2.5
	v.DominantColors = []string{"red", "blue"}
	v.Demographics.GenderDistribution = core.Distribution{"masculine": 40, "feminine": 60}
	v.Demographics.EthnicityDistribution = core.Distribution{"white": 50, "black": 50}
	v.Demographics.TotalSubjects = 2

	m := v.Metrics[core.MetricEngagement]
	m.Score = 40
	m.Defaulted = false
	m.Insights = "Few faces on screen"
	v.Metrics[core.MetricEngagement] = m

	rep := v.Metrics[normalize.MetricRepresentation]
	rep.Score = 100
	rep.Defaulted = false
	v.Metrics[normalize.MetricRepresentation] = rep
	return v
}

func exactReconciler() *reconcile.Reconciler {
	opts := reconcile.DefaultOptions()
	opts.MaxPerturbation = 0
	return reconcile.New(opts)
}

func fixtureInput() Input {
	return Prepare("video_1", normalize.Narrative(narrativeFixture), visionFixture(), exactReconciler())
}

const generatedReport = "Here is the unified analysis:\n```json\n" + `{
  "metadata": {"video_id": "ignored", "confidence_index": 82},
  "summary": {
    "content_overview": "A product demo with a fast hook.",
    "key_strengths": ["Hook"],
    "improvement_areas": ["Captions"],
    "overall_performance_score": 71
  },
  "performance_metrics": {
    "engagement": {"score": 12, "confidence": "High", "insights": "Viewers stay for the demo", "breakdown": {"hook_effectiveness": 88, "novelty": 61}},
    "shareability": {"score": "70", "confidence": "medium", "insights": "Easy to share"}
  },
  "audience_analysis": {
    "primary_audience": {"demographic": "Young professionals", "confidence": "High", "platform_fit": {"tiktok": 80}},
    "secondary_audiences": ["Students", {"demographic": "Parents"}],
    "representation_metrics": {"demographics_breakdown": {"gender_distribution": {"male": 1, "female": 99}}}
  },
  "emotional_analysis": {"dominant_emotions": ["Joy"], "confidence": "Medium"},
  "contradiction_analysis": [
    {"metric": "engagement", "gemini_assessment": "high", "clarifai_assessment": "low", "reconciliation": "model says", "confidence_in_reconciliation": "High"},
    {"metric": "tone", "gemini_assessment": "upbeat", "clarifai_assessment": "neutral", "reconciliation": "mostly upbeat", "confidence_in_reconciliation": "Medium"}
  ]
}` + "\n```"
