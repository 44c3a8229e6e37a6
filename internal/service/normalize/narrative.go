package normalize

import (
	"encoding/json"
	"sort"

	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
)

// Metric names produced by the normalizer in addition to the four
// performance blocks.
const (
	MetricAttention      = "attention"
	MetricRetention      = "retention"
	MetricRepresentation = "representation"
)

// NarrativeMetricNames lists every metric a NarrativeMetrics carries.
func NarrativeMetricNames() []string {
	return []string{
		MetricAttention,
		core.MetricEngagement,
		MetricRetention,
		core.MetricShareability,
		core.MetricConversionPotential,
		core.MetricViralPotential,
	}
}

// PlaceholderText fills prose fields the provider left out.
const PlaceholderText = "Analysis not available"

// Canonical sub-field keys of the narrative payload.
const (
	FieldVisuals      = "Visuals"
	FieldContent      = "Content"
	FieldPacing       = "Pacing"
	FieldValue        = "Value"
	FieldCTA          = "CTA"
	FieldEmotion      = "Emotion"
	FieldShareability = "Shareability"
	FieldRelatability = "Relatability"
	FieldUniqueness   = "Uniqueness"
)

var (
	coreStrengthAliases = map[string][]string{
		FieldVisuals: {"Visuals", "Visually Appealing"},
		FieldContent: {"Content", "Relatable Content"},
		FieldPacing:  {"Pacing", "Length and Pacing"},
		FieldValue:   {"Value", "Value Proposition"},
		FieldCTA:     {"CTA", "Call to Action"},
	}
	viralAliases = map[string][]string{
		FieldVisuals:      {"Visuals", "Intriguing Visuals"},
		FieldEmotion:      {"Emotion", "Emotional Connection"},
		FieldShareability: {"Shareability"},
		FieldRelatability: {"Relatability"},
		FieldUniqueness:   {"Uniqueness"},
	}
)

// NarrativeMetrics is the canonical form of the narrative provider output.
type NarrativeMetrics struct {
	Metrics                map[string]core.NormalizedMetric `json:"metrics"`
	Hook                   string                           `json:"hook"`
	Editing                string                           `json:"editing"`
	Tonality               string                           `json:"tonality"`
	CoreStrengths          map[string]string                `json:"core_strengths"`
	ViralFactors           map[string]string                `json:"viral_factors"`
	KeyStrengths           []string                         `json:"key_strengths"`
	ImprovementSuggestions []string                         `json:"improvement_suggestions"`
	Demographics           *core.DemographicsBreakdown      `json:"demographics,omitempty"`
	// Defaulted is set when nothing usable could be recovered.
	Defaulted bool `json:"defaulted"`
	// Recovered is set when fields came from the regex extractor.
	Recovered bool `json:"recovered,omitempty"`
}

// Metric returns a metric by name, or a neutral default.
func (n NarrativeMetrics) Metric(name string) core.NormalizedMetric {
	if m, ok := n.Metrics[name]; ok {
		return m
	}
	return core.NeutralMetric(name)
}

// DefaultedNames lists metrics substituted with neutral defaults.
func (n NarrativeMetrics) DefaultedNames() []string {
	return defaultedNames(n.Metrics)
}

// narrativeFields is the intermediate shape shared by the JSON path and the
// regex extractor.
type narrativeFields struct {
	Attention    string
	Engagement   string
	Retention    string
	KeyStrengths []string
	Improvements []string
	Hook         string
	Editing      string
	Tonality     string
	Core         map[string]string
	Viral        map[string]string
	Demographics *core.DemographicsBreakdown
}

func (f narrativeFields) empty() bool {
	return f.Attention == "" && f.Engagement == "" && f.Retention == "" &&
		len(f.KeyStrengths) == 0 && len(f.Improvements) == 0 &&
		f.Hook == "" && f.Editing == "" && f.Tonality == "" &&
		len(f.Core) == 0 && len(f.Viral) == 0 && f.Demographics == nil
}

// Narrative normalizes raw narrative provider text. It never fails: when
// no structured block is found the regex extractor runs, and when that
// finds nothing the full default set is returned.
func Narrative(raw string) NarrativeMetrics {
	if obj, err := ExtractObject(raw); err == nil {
		if f := fieldsFromObject(obj); !f.empty() {
			return buildNarrative(f)
		}
	}
	if f := extractNarrativeFields(raw); !f.empty() {
		n := buildNarrative(f)
		n.Recovered = true
		return n
	}
	return DefaultNarrative()
}

// DefaultNarrative is the full neutral narrative set.
func DefaultNarrative() NarrativeMetrics {
	n := buildNarrative(narrativeFields{})
	n.Defaulted = true
	return n
}

func fieldsFromObject(obj map[string]json.RawMessage) narrativeFields {
	var f narrativeFields

	perf := lookupObject(obj, "Performance Metrics", "performance_metrics")
	if perf != nil {
		f.Attention = lookupText(perf, "Attention Score", "attention_score")
		f.Engagement = lookupText(perf, "Engagement Potential", "engagement_potential", "engagement")
		f.Retention = lookupText(perf, "Watch Time Retention", "watch_time_retention", "retention")
		if raw, ok := lookup(perf, "Key Strengths", "key_strengths"); ok {
			f.KeyStrengths = textList(raw)
		}
		if raw, ok := lookup(perf, "Improvement Suggestions", "improvement_suggestions"); ok {
			f.Improvements = textList(raw)
		}
	}

	detailed := lookupObject(obj, "Detailed Analysis", "detailed_analysis")
	inDepth := lookupObject(detailed, "In-depth Video Analysis", "in_depth_video_analysis")
	if inDepth == nil {
		inDepth = detailed
	}
	if inDepth != nil {
		f.Hook = lookupText(inDepth, "Hook")
		f.Editing = lookupText(inDepth, "Editing")
		f.Tonality = lookupText(inDepth, "Tonality", "Tonality of Voice")
		f.Core = canonicalFields(lookupObject(inDepth, "Core Strengths", "Core Strengths on Social Media"), coreStrengthAliases)
		f.Viral = canonicalFields(lookupObject(inDepth, "Viral Potential", "Viral Video Criteria"), viralAliases)
	}

	if demo := lookupObject(obj, "Demographics", "demographics"); demo != nil {
		var d core.DemographicsBreakdown
		data, _ := json.Marshal(demo)
		if err := json.Unmarshal(data, &d); err == nil {
			f.Demographics = &d
		}
	}
	return f
}

func lookupText(obj map[string]json.RawMessage, keys ...string) string {
	raw, ok := lookup(obj, keys...)
	if !ok {
		return ""
	}
	return text(raw)
}

func canonicalFields(obj map[string]json.RawMessage, aliases map[string][]string) map[string]string {
	if obj == nil {
		return nil
	}
	out := make(map[string]string, len(aliases))
	for canonical, keys := range aliases {
		if v := lookupText(obj, keys...); v != "" {
			out[canonical] = v
		}
	}
	return out
}

// buildNarrative maps fields onto the canonical metrics.
func buildNarrative(f narrativeFields) NarrativeMetrics {
	n := NarrativeMetrics{
		Metrics:                make(map[string]core.NormalizedMetric, 6),
		Hook:                   orPlaceholder(f.Hook),
		Editing:                orPlaceholder(f.Editing),
		Tonality:               orPlaceholder(f.Tonality),
		CoreStrengths:          fillFields(f.Core, coreStrengthAliases),
		ViralFactors:           fillFields(f.Viral, viralAliases),
		KeyStrengths:           f.KeyStrengths,
		ImprovementSuggestions: f.Improvements,
		Demographics:           f.Demographics,
	}
	if n.KeyStrengths == nil {
		n.KeyStrengths = []string{}
	}
	if n.ImprovementSuggestions == nil {
		n.ImprovementSuggestions = []string{}
	}

	attention := scoreField(f.Attention)
	engagement := scoreField(f.Engagement)
	retention := scoreField(f.Retention)

	viral := make(map[string]scored, len(viralAliases))
	for key := range viralAliases {
		viral[key] = qualitative(f.Viral[key])
	}
	coreScores := make(map[string]scored, len(coreStrengthAliases))
	for key := range coreStrengthAliases {
		coreScores[key] = qualitative(f.Core[key])
	}

	n.Metrics[MetricAttention] = metricFrom(MetricAttention, attention, f.Hook,
		map[string]scored{"attention_score": attention})
	n.Metrics[MetricRetention] = metricFrom(MetricRetention, retention, f.Core[FieldPacing],
		map[string]scored{"watch_time_retention": retention})

	n.Metrics[core.MetricEngagement] = metricFrom(core.MetricEngagement, engagement, f.Core[FieldContent],
		map[string]scored{
			"hook_effectiveness": firstOf(qualitative(f.Hook), attention),
			"emotional_impact":   viral[FieldEmotion],
			"audience_retention": retention,
			"attention_score":    attention,
		})

	n.Metrics[core.MetricShareability] = metricFrom(core.MetricShareability, viral[FieldShareability], f.Viral[FieldShareability],
		map[string]scored{
			"uniqueness":         viral[FieldUniqueness],
			"relevance":          viral[FieldRelatability],
			"trending_potential": viral[FieldVisuals],
		})

	n.Metrics[core.MetricConversionPotential] = metricFrom(core.MetricConversionPotential,
		mean(coreScores[FieldCTA], coreScores[FieldValue]), f.Core[FieldCTA],
		map[string]scored{
			"call_to_action_clarity": coreScores[FieldCTA],
			"value_proposition":      coreScores[FieldValue],
			"persuasiveness":         qualitative(f.Tonality),
		})

	n.Metrics[core.MetricViralPotential] = metricFrom(core.MetricViralPotential,
		mean(viral[FieldVisuals], viral[FieldEmotion], viral[FieldShareability], viral[FieldRelatability], viral[FieldUniqueness]),
		f.Viral[FieldEmotion],
		map[string]scored{
			"visuals_quality":     viral[FieldVisuals],
			"emotional_resonance": viral[FieldEmotion],
			"shareability_factor": viral[FieldShareability],
			"relatability":        viral[FieldRelatability],
			"uniqueness":          viral[FieldUniqueness],
		})

	// numeric engagement/attention/retention are stated outright by the model
	for _, name := range []string{MetricAttention, core.MetricEngagement, MetricRetention} {
		m := n.Metrics[name]
		if !m.Defaulted && isNumeric(fieldFor(f, name)) {
			m.Confidence = core.ConfidenceHigh
			n.Metrics[name] = m
		}
	}
	return n
}

func fieldFor(f narrativeFields, name string) string {
	switch name {
	case MetricAttention:
		return f.Attention
	case core.MetricEngagement:
		return f.Engagement
	case MetricRetention:
		return f.Retention
	}
	return ""
}

func orPlaceholder(s string) string {
	if s == "" {
		return PlaceholderText
	}
	return s
}

func fillFields(in map[string]string, aliases map[string][]string) map[string]string {
	out := make(map[string]string, len(aliases))
	for key := range aliases {
		out[key] = orPlaceholder(in[key])
	}
	return out
}

func defaultedNames(metrics map[string]core.NormalizedMetric) []string {
	var names []string
	for name, m := range metrics {
		if m.Defaulted {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
