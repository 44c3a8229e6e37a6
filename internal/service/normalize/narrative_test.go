package normalize

import (
	"testing"

	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
)

const cleanNarrative = `{
  "Performance Metrics": {
    "Attention Score": "85",
    "Engagement Potential": 90,
    "Watch Time Retention": "75%",
    "Key Strengths": ["Engaging presenter", "High-quality visuals", "Clear value proposition"],
    "Improvement Suggestions": ["Add subtitles or captions"]
  },
  "Detailed Analysis": {
    "In-depth Video Analysis": {
      "Hook": "The video starts with a strong hook by showcasing the product immediately.",
      "Editing": "Smooth and well-paced.",
      "Tonality": "Enthusiastic and confident.",
      "Core Strengths": {
        "Visuals": "High-quality footage",
        "Content": "Clear and informative presentation",
        "Pacing": "Well-balanced pacing",
        "Value": "Strong value proposition",
        "CTA": "Clear call-to-action"
      },
      "Viral Potential": {
        "Visuals": "Visually appealing",
        "Emotion": "Moderate emotional connection",
        "Shareability": "Content is highly shareable across platforms",
        "Relatability": "Good connection with the target demographic",
        "Uniqueness": "Offers a unique perspective"
      }
    }
  }
}`

func TestNarrative_CleanPayload(t *testing.T) {
	n := Narrative(cleanNarrative)

	if n.Defaulted || n.Recovered {
		t.Fatalf("clean payload should not be defaulted or recovered: %+v", n)
	}

	tests := []struct {
		metric string
		score  float64
		conf   core.Confidence
	}{
		{MetricAttention, 85, core.ConfidenceHigh},
		{core.MetricEngagement, 90, core.ConfidenceHigh},
		{MetricRetention, 75, core.ConfidenceHigh},
		{core.MetricShareability, 80, core.ConfidenceMedium},
		{core.MetricConversionPotential, 80, core.ConfidenceMedium},
	}
	for _, tt := range tests {
		m := n.Metric(tt.metric)
		if float64(m.Score) != tt.score {
			t.Errorf("%s score = %v, want %v", tt.metric, m.Score, tt.score)
		}
		if m.Confidence != tt.conf {
			t.Errorf("%s confidence = %s, want %s", tt.metric, m.Confidence, tt.conf)
		}
		if m.Defaulted {
			t.Errorf("%s should not be defaulted", tt.metric)
		}
	}

	engagement := n.Metric(core.MetricEngagement)
	if engagement.Breakdown["hook_effectiveness"] != 80 {
		t.Errorf("hook_effectiveness = %v, want 80 from \"strong\"", engagement.Breakdown["hook_effectiveness"])
	}
	if engagement.Breakdown["attention_score"] != 85 {
		t.Errorf("attention_score = %v, want 85", engagement.Breakdown["attention_score"])
	}
	if engagement.Breakdown["emotional_impact"] != 50 {
		t.Errorf("emotional_impact = %v, want 50 from \"moderate\"", engagement.Breakdown["emotional_impact"])
	}

	viral := n.Metric(core.MetricViralPotential)
	// appealing/unique carry no descriptor; moderate 50, highly 80, good 70
	if float64(viral.Score) < 66.6 || float64(viral.Score) > 66.7 {
		t.Errorf("viral score = %v, want mean of 50, 80, 70", viral.Score)
	}
	if len(viral.Breakdown) != 5 {
		t.Errorf("viral breakdown should carry 5 keys, got %v", viral.Breakdown)
	}

	if len(n.KeyStrengths) != 3 || n.ImprovementSuggestions[0] != "Add subtitles or captions" {
		t.Errorf("lists not carried over: %v / %v", n.KeyStrengths, n.ImprovementSuggestions)
	}
	if n.CoreStrengths[FieldCTA] != "Clear call-to-action" {
		t.Errorf("CTA = %q", n.CoreStrengths[FieldCTA])
	}
	if len(n.DefaultedNames()) != 0 {
		t.Errorf("expected no defaulted metrics, got %v", n.DefaultedNames())
	}
}

func TestNarrative_LegacyKeysAndDemographics(t *testing.T) {
	raw := "```json\n" + `{
	  "Performance Metrics": {"Attention Score": "high", "Engagement Potential": "7/10"},
	  "Detailed Analysis": {"In-depth Video Analysis": {
	    "Tonality of Voice": "Calm",
	    "Core Strengths on Social Media": {"Call to Action": "Weak call to action"}
	  }},
	  "Demographics": {"gender_distribution": {"Male": "60%", "Female": 40}}
	}` + "\n```"

	n := Narrative(raw)
	if got := n.Metric(MetricAttention).Score; got != 80 {
		t.Errorf("attention from \"high\" = %v, want 80", got)
	}
	if got := n.Metric(MetricAttention).Confidence; got != core.ConfidenceMedium {
		t.Errorf("qualitative attention confidence = %s, want Medium", got)
	}
	if got := n.Metric(core.MetricEngagement).Score; got != 70 {
		t.Errorf("engagement from 7/10 = %v, want 70", got)
	}
	if n.Tonality != "Calm" {
		t.Errorf("tonality alias not resolved: %q", n.Tonality)
	}
	if got := n.Metric(core.MetricConversionPotential).Score; got != 30 {
		t.Errorf("conversion from \"weak\" CTA = %v, want 30", got)
	}
	if n.Demographics == nil || n.Demographics.GenderDistribution["male"] != 60 {
		t.Errorf("demographics not decoded: %+v", n.Demographics)
	}
	if !n.Metric(MetricRetention).Defaulted {
		t.Error("missing retention should be defaulted")
	}
}

func TestNarrative_RegexRecovery(t *testing.T) {
	raw := `Sure! Attention Score: 80
"Engagement Potential": "65",
Watch Time Retention: 55%
"Key Strengths": ["Fast cuts", "Humor"],
"Hook": "A strong opening question",
the JSON got cut off here {`

	n := Narrative(raw)
	if !n.Recovered {
		t.Fatal("expected regex recovery")
	}
	if n.Defaulted {
		t.Error("recovered payload should not be fully defaulted")
	}
	if got := n.Metric(MetricAttention).Score; got != 80 {
		t.Errorf("attention = %v, want 80", got)
	}
	if got := n.Metric(core.MetricEngagement).Score; got != 65 {
		t.Errorf("engagement = %v, want 65", got)
	}
	if got := n.Metric(MetricRetention).Score; got != 55 {
		t.Errorf("retention = %v, want 55", got)
	}
	if len(n.KeyStrengths) != 2 || n.KeyStrengths[1] != "Humor" {
		t.Errorf("key strengths = %v", n.KeyStrengths)
	}
	if n.Hook != "A strong opening question" {
		t.Errorf("hook = %q", n.Hook)
	}
}

func TestNarrative_UnparseableReturnsDefaults(t *testing.T) {
	n := Narrative("I'm sorry, I cannot analyze this video.")

	if !n.Defaulted {
		t.Fatal("expected defaulted result")
	}
	for _, name := range NarrativeMetricNames() {
		m := n.Metric(name)
		if m.Score != core.NeutralScore || m.Confidence != core.ConfidenceMedium || !m.Defaulted {
			t.Errorf("%s = %+v, want neutral default", name, m)
		}
	}
	if len(n.DefaultedNames()) != len(NarrativeMetricNames()) {
		t.Errorf("defaulted names = %v", n.DefaultedNames())
	}
	if n.Hook != PlaceholderText {
		t.Errorf("hook = %q, want placeholder", n.Hook)
	}
	if n.KeyStrengths == nil || n.ImprovementSuggestions == nil {
		t.Error("lists should be empty, not nil")
	}
}

func TestNarrative_BreakdownKeysAlwaysPresent(t *testing.T) {
	n := Narrative(`{"Performance Metrics": {"Engagement Potential": "40"}}`)

	for _, name := range core.PerformanceMetricNames() {
		m := n.Metric(name)
		for key := range core.DefaultBreakdown(name) {
			if _, ok := m.Breakdown[key]; !ok {
				t.Errorf("%s missing breakdown key %s", name, key)
			}
		}
	}
	if got := n.Metric(core.MetricEngagement).Breakdown["audience_retention"]; got != 40 {
		t.Errorf("absent breakdown entry should take the metric score, got %v", got)
	}
}
