package core

import (
	"encoding/json"
	"time"
)

// Performance metric names carried by every report.
const (
	MetricEngagement          = "engagement"
	MetricShareability        = "shareability"
	MetricConversionPotential = "conversion_potential"
	MetricViralPotential      = "viral_potential"
)

// PerformanceMetricNames lists the fixed performance blocks in report order.
func PerformanceMetricNames() []string {
	return []string{MetricEngagement, MetricShareability, MetricConversionPotential, MetricViralPotential}
}

// defaultBreakdowns holds the neutral breakdown keys per performance block.
var defaultBreakdowns = map[string][]string{
	MetricEngagement:          {"hook_effectiveness", "emotional_impact", "audience_retention", "attention_score"},
	MetricShareability:        {"uniqueness", "relevance", "trending_potential"},
	MetricConversionPotential: {"call_to_action_clarity", "value_proposition", "persuasiveness"},
	MetricViralPotential:      {"visuals_quality", "emotional_resonance", "shareability_factor", "relatability", "uniqueness"},
}

// DefaultBreakdown returns the neutral breakdown for a performance block.
func DefaultBreakdown(metric string) map[string]float64 {
	keys := defaultBreakdowns[metric]
	b := make(map[string]float64, len(keys))
	for _, k := range keys {
		b[k] = float64(NeutralScore)
	}
	return b
}

// SourceNarrative and SourceVision are the labels written to
// metadata.analysis_sources.
const (
	SourceNarrative = "Gemini"
	SourceVision    = "ClarifAI"
)

// ReportMetadata describes how a report was produced.
type ReportMetadata struct {
	Timestamp       time.Time         `json:"timestamp"`
	VideoID         string            `json:"video_id"`
	ConfidenceIndex Score             `json:"confidence_index"`
	AnalysisSources []string          `json:"analysis_sources"`
	HasErrors       bool              `json:"has_errors,omitempty"`
	ErrorDetails    map[string]string `json:"error_details,omitempty"`
	Defaulted       []string          `json:"defaulted_metrics,omitempty"`
	Validation      string            `json:"validation,omitempty"`
}

// Summary is the headline section.
type Summary struct {
	ContentOverview         string   `json:"content_overview"`
	KeyStrengths            []string `json:"key_strengths"`
	ImprovementAreas        []string `json:"improvement_areas"`
	OverallPerformanceScore Score    `json:"overall_performance_score"`
}

// PerformanceMetrics holds the fixed set of metric blocks.
type PerformanceMetrics struct {
	Engagement          *NormalizedMetric `json:"engagement,omitempty"`
	Shareability        *NormalizedMetric `json:"shareability,omitempty"`
	ConversionPotential *NormalizedMetric `json:"conversion_potential,omitempty"`
	ViralPotential      *NormalizedMetric `json:"viral_potential,omitempty"`
}

// Get returns the block for name, or nil.
func (p *PerformanceMetrics) Get(name string) *NormalizedMetric {
	switch name {
	case MetricEngagement:
		return p.Engagement
	case MetricShareability:
		return p.Shareability
	case MetricConversionPotential:
		return p.ConversionPotential
	case MetricViralPotential:
		return p.ViralPotential
	}
	return nil
}

// Set stores m under name. Unknown names are ignored.
func (p *PerformanceMetrics) Set(name string, m NormalizedMetric) {
	m.Name = name
	switch name {
	case MetricEngagement:
		p.Engagement = &m
	case MetricShareability:
		p.Shareability = &m
	case MetricConversionPotential:
		p.ConversionPotential = &m
	case MetricViralPotential:
		p.ViralPotential = &m
	}
}

// DemographicsBreakdown is the representation block: three distributions and
// the number of subjects they were computed from.
type DemographicsBreakdown struct {
	AgeDistribution       Distribution `json:"age_distribution"`
	GenderDistribution    Distribution `json:"gender_distribution"`
	EthnicityDistribution Distribution `json:"ethnicity_distribution"`
	TotalSubjects         Count        `json:"total_subjects"`
}

// RepresentationMetrics scores demographic representation.
type RepresentationMetrics struct {
	DiversityScore        Score                 `json:"diversity_score"`
	InclusionRating       Score                 `json:"inclusion_rating"`
	AppealBreadth         Score                 `json:"appeal_breadth"`
	Insights              string                `json:"insights"`
	DemographicsBreakdown DemographicsBreakdown `json:"demographics_breakdown"`
}

// PrimaryAudience is the main target group.
type PrimaryAudience struct {
	Demographic string           `json:"demographic"`
	Confidence  Confidence       `json:"confidence"`
	PlatformFit map[string]Score `json:"platform_fit"`
}

// SecondaryAudience is an additional target group.
type SecondaryAudience struct {
	Demographic string     `json:"demographic"`
	Confidence  Confidence `json:"confidence"`
	Reasons     []string   `json:"reasons"`
}

// UnmarshalJSON accepts a bare string as the demographic.
func (s *SecondaryAudience) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*s = SecondaryAudience{Demographic: name}
		return nil
	}
	type plain SecondaryAudience
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		*s = SecondaryAudience{}
		return nil
	}
	*s = SecondaryAudience(p)
	return nil
}

// AudienceAnalysis groups audience fit and representation.
type AudienceAnalysis struct {
	PrimaryAudience       PrimaryAudience       `json:"primary_audience"`
	SecondaryAudiences    []SecondaryAudience   `json:"secondary_audiences"`
	RepresentationMetrics RepresentationMetrics `json:"representation_metrics"`
}

// QualityBlock is a scored content-quality aspect.
type QualityBlock struct {
	Score            Score      `json:"score"`
	Confidence       Confidence `json:"confidence"`
	Strengths        []string   `json:"strengths"`
	ImprovementAreas []string   `json:"improvement_areas"`
}

// ColorScheme describes the palette.
type ColorScheme struct {
	DominantColors  []string `json:"dominant_colors"`
	ColorMood       string   `json:"color_mood"`
	SaturationLevel Score    `json:"saturation_level"`
	ContrastRating  Score    `json:"contrast_rating"`
}

// VisualElements extends QualityBlock with the color scheme.
type VisualElements struct {
	QualityBlock
	ColorScheme ColorScheme `json:"color_scheme"`
}

// EditingPace summarizes cut frequency.
type EditingPace struct {
	AverageCutsPerSecond string `json:"average_cuts_per_second"`
	TotalCutCount        Count  `json:"total_cut_count"`
	PacingAnalysis       string `json:"pacing_analysis"`
}

// PacingAndFlow rates the editing rhythm.
type PacingAndFlow struct {
	Score       Score       `json:"score"`
	Confidence  Confidence  `json:"confidence"`
	Insights    string      `json:"insights"`
	EditingPace EditingPace `json:"editing_pace"`
}

// FeaturedProduct is a product visible in the video.
type FeaturedProduct struct {
	Name                string `json:"name"`
	ScreenTime          string `json:"screen_time"`
	PresentationQuality Score  `json:"presentation_quality"`
}

// ProductPresentation rates how products are shown.
type ProductPresentation struct {
	FeaturedProducts         []FeaturedProduct `json:"featured_products"`
	OverallPresentationScore Score             `json:"overall_presentation_score"`
	Confidence               Confidence        `json:"confidence"`
}

// ContentQuality is the production-quality section.
type ContentQuality struct {
	VisualElements      VisualElements      `json:"visual_elements"`
	AudioElements       QualityBlock        `json:"audio_elements"`
	NarrativeStructure  QualityBlock        `json:"narrative_structure"`
	PacingAndFlow       PacingAndFlow       `json:"pacing_and_flow"`
	ProductPresentation ProductPresentation `json:"product_presentation"`
}

// EmotionalAnalysis is the emotional section.
type EmotionalAnalysis struct {
	DominantEmotions        []string   `json:"dominant_emotions"`
	EmotionalArc            string     `json:"emotional_arc"`
	EmotionalResonanceScore Score      `json:"emotional_resonance_score"`
	Confidence              Confidence `json:"confidence"`
	Insights                string     `json:"insights"`
}

// CompetitiveAdvantage is the differentiation section.
type CompetitiveAdvantage struct {
	UniquenessFactors    []string   `json:"uniqueness_factors"`
	DifferentiationScore Score      `json:"differentiation_score"`
	MarketPositioning    string     `json:"market_positioning"`
	Confidence           Confidence `json:"confidence"`
}

// PriorityImprovement is one recommended change.
type PriorityImprovement struct {
	Area           string     `json:"area"`
	Recommendation string     `json:"recommendation"`
	ExpectedImpact Confidence `json:"expected_impact"`
	Confidence     Confidence `json:"confidence"`
}

// ABTest is a suggested experiment.
type ABTest struct {
	Element          string   `json:"element"`
	Variations       []string `json:"variations"`
	ExpectedInsights string   `json:"expected_insights"`
}

// Recommendations is the optimization section.
type Recommendations struct {
	PriorityImprovements          []PriorityImprovement `json:"priority_improvements"`
	ABTestingSuggestions          []ABTest              `json:"a_b_testing_suggestions"`
	PlatformSpecificOptimizations map[string][]string   `json:"platform_specific_optimizations"`
	ThumbnailOptimization         []string              `json:"thumbnail_optimization"`
}

// Segment is a time range.
type Segment struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// SubtitleCoverage describes caption quality.
type SubtitleCoverage struct {
	Percentage      Score     `json:"percentage"`
	MissingSegments []Segment `json:"missing_segments"`
	QualityScore    Score     `json:"quality_score"`
	Issues          []string  `json:"issues"`
}

// TranscriptionAnalysis is the speech/caption section.
type TranscriptionAnalysis struct {
	Available        bool             `json:"available"`
	SubtitleCoverage SubtitleCoverage `json:"subtitle_coverage"`
	KeyPhrases       []string         `json:"key_phrases"`
	Confidence       Confidence       `json:"confidence"`
}

// UnifiedReport is the reconciled output of a job. Sections are pointers so
// that a parsed document can distinguish "absent" from "empty"; Repair fills
// every absent section.
type UnifiedReport struct {
	Metadata              ReportMetadata         `json:"metadata"`
	Summary               *Summary               `json:"summary,omitempty"`
	PerformanceMetrics    *PerformanceMetrics    `json:"performance_metrics,omitempty"`
	AudienceAnalysis      *AudienceAnalysis      `json:"audience_analysis,omitempty"`
	ContentQuality        *ContentQuality        `json:"content_quality,omitempty"`
	EmotionalAnalysis     *EmotionalAnalysis     `json:"emotional_analysis,omitempty"`
	CompetitiveAdvantage  *CompetitiveAdvantage  `json:"competitive_advantage,omitempty"`
	Recommendations       *Recommendations       `json:"optimization_recommendations,omitempty"`
	TranscriptionAnalysis *TranscriptionAnalysis `json:"transcription_analysis,omitempty"`
	Contradictions        []ContradictionRecord  `json:"contradiction_analysis"`

	// Present only on fallback merges.
	NarrativeAnalysis json.RawMessage `json:"gemini_analysis,omitempty"`
	VisionAnalysis    json.RawMessage `json:"clarifai_analysis,omitempty"`
}

// NewUnifiedReport returns a report with metadata and an empty
// contradiction list. Content sections stay nil until filled.
func NewUnifiedReport(videoID string) *UnifiedReport {
	return &UnifiedReport{
		Metadata: ReportMetadata{
			Timestamp:       time.Now().UTC(),
			VideoID:         videoID,
			ConfidenceIndex: 70,
			AnalysisSources: []string{SourceNarrative, SourceVision},
		},
		Contradictions: []ContradictionRecord{},
	}
}

// IsFallback reports whether the report is a fallback merge.
func (r *UnifiedReport) IsFallback() bool {
	return r.NarrativeAnalysis != nil || r.VisionAnalysis != nil
}

// AddContradiction appends a record.
func (r *UnifiedReport) AddContradiction(c ContradictionRecord) {
	r.Contradictions = append(r.Contradictions, c)
}

// MarkError flags a provider or stage failure in the metadata.
func (r *UnifiedReport) MarkError(key, message string) {
	r.Metadata.HasErrors = true
	if r.Metadata.ErrorDetails == nil {
		r.Metadata.ErrorDetails = make(map[string]string)
	}
	r.Metadata.ErrorDetails[key] = message
}

// Clone returns a deep copy through JSON.
func (r *UnifiedReport) Clone() *UnifiedReport {
	if r == nil {
		return nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil
	}
	var c UnifiedReport
	if err := json.Unmarshal(data, &c); err != nil {
		return nil
	}
	return &c
}
