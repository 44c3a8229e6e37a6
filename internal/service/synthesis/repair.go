package synthesis

import (
	"time"

	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
	"github.com/hugo-lorenzo-mato/reelsight/internal/service/reconcile"
)

// Defaults written by Repair.
const (
	DefaultVideoID          = "unknown"
	DefaultConfidenceIndex  = 70
	DefaultContentOverview  = "Content overview not available"
	DefaultAudience         = "General audience"
	DefaultColorMood        = "Neutral"
	DefaultCutFrequency     = "1 cut every 3 seconds"
	DefaultCutCount         = 10
	DefaultPacingAnalysis   = "Balanced pacing that maintains viewer interest"
	DefaultPacingInsights   = "Appropriate pacing for content type"
	DefaultEmotionalArc     = "Stable emotional tone throughout content"
	DefaultEmotionInsights  = "Content maintains a consistent emotional tone"
	DefaultMarketPosition   = "Standard positioning within the content category"
	DefaultRepresentation   = "No representation data available"
	DefaultSecondaryReason  = "Content relevance"
	DefaultUnknownAudience  = "Unknown"
	DefaultDeliveryStrength = "Effective content delivery"
)

var (
	defaultColors    = []string{"#CCCCCC", "#888888"}
	defaultEmotions  = []string{"Neutral", "Interest"}
	defaultPlatforms = []string{"instagram", "tiktok", "youtube", "facebook"}
)

// Repair fills every schema-required field that is absent, collapses the
// gender distribution to male/female and lowers metric confidence labels
// that overstate agreement given the contradiction list. Present values
// are kept and the top-level shape is never changed. Repair mutates and
// returns r; a nil report yields a fully defaulted one.
func Repair(r *core.UnifiedReport) *core.UnifiedReport {
	if r == nil {
		r = core.NewUnifiedReport(DefaultVideoID)
	}
	repairMetadata(&r.Metadata)

	if r.PerformanceMetrics == nil {
		r.PerformanceMetrics = &core.PerformanceMetrics{}
	}
	repairPerformance(r.PerformanceMetrics)

	if r.Summary == nil {
		r.Summary = &core.Summary{}
	}
	repairSummary(r.Summary, r.PerformanceMetrics)

	if r.AudienceAnalysis == nil {
		r.AudienceAnalysis = defaultAudience()
	}
	repairAudience(r.AudienceAnalysis)

	if r.ContentQuality == nil {
		r.ContentQuality = defaultContentQuality()
	}
	repairContentQuality(r.ContentQuality)

	if r.EmotionalAnalysis == nil {
		r.EmotionalAnalysis = &core.EmotionalAnalysis{EmotionalResonanceScore: core.NeutralScore}
	}
	repairEmotional(r.EmotionalAnalysis)

	if r.CompetitiveAdvantage == nil {
		r.CompetitiveAdvantage = defaultCompetitive(r.Summary.KeyStrengths)
	}
	repairCompetitive(r.CompetitiveAdvantage)

	if r.Recommendations == nil {
		r.Recommendations = defaultRecommendations()
	}
	repairRecommendations(r.Recommendations)

	if r.TranscriptionAnalysis == nil {
		r.TranscriptionAnalysis = &core.TranscriptionAnalysis{Confidence: core.ConfidenceLow}
	}
	repairTranscription(r.TranscriptionAnalysis)

	if r.Contradictions == nil {
		r.Contradictions = []core.ContradictionRecord{}
	}
	relabelConfidence(r)
	return r
}

func repairMetadata(m *core.ReportMetadata) {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	if m.VideoID == "" {
		m.VideoID = DefaultVideoID
	}
	if m.ConfidenceIndex == 0 {
		m.ConfidenceIndex = DefaultConfidenceIndex
	}
	if len(m.AnalysisSources) == 0 {
		m.AnalysisSources = []string{core.SourceNarrative, core.SourceVision}
	}
}

func repairPerformance(p *core.PerformanceMetrics) {
	for _, name := range core.PerformanceMetricNames() {
		block := p.Get(name)
		if block == nil {
			m := core.NeutralMetric(name)
			m.Breakdown = core.DefaultBreakdown(name)
			p.Set(name, m)
			continue
		}
		m := *block
		if len(m.Breakdown) == 0 {
			m.Breakdown = core.DefaultBreakdown(name)
		}
		if m.Insights == "" {
			m.Insights = "No " + name + " data available"
		}
		if !m.Confidence.Valid() {
			m.Confidence = core.ConfidenceMedium
		}
		p.Set(name, m.Clamp())
	}
}

func repairSummary(s *core.Summary, p *core.PerformanceMetrics) {
	if s.ContentOverview == "" {
		s.ContentOverview = DefaultContentOverview
	}
	if s.KeyStrengths == nil {
		s.KeyStrengths = []string{}
	}
	if s.ImprovementAreas == nil {
		s.ImprovementAreas = []string{}
	}
	if s.OverallPerformanceScore == 0 {
		var total float64
		for _, name := range core.PerformanceMetricNames() {
			total += float64(p.Get(name).Score)
		}
		s.OverallPerformanceScore = core.Score(total / float64(len(core.PerformanceMetricNames())))
	}
	s.OverallPerformanceScore = core.Score(core.ClampScore(float64(s.OverallPerformanceScore)))
}

func defaultPlatformFit() map[string]core.Score {
	fit := make(map[string]core.Score, len(defaultPlatforms))
	for _, p := range defaultPlatforms {
		fit[p] = core.NeutralScore
	}
	return fit
}

func defaultAudience() *core.AudienceAnalysis {
	return &core.AudienceAnalysis{
		PrimaryAudience: core.PrimaryAudience{
			Demographic: DefaultAudience,
			Confidence:  core.ConfidenceMedium,
			PlatformFit: defaultPlatformFit(),
		},
		SecondaryAudiences: []core.SecondaryAudience{},
		RepresentationMetrics: core.RepresentationMetrics{
			DiversityScore:  core.NeutralScore,
			InclusionRating: core.NeutralScore,
			AppealBreadth:   core.NeutralScore,
			Insights:        DefaultRepresentation,
		},
	}
}

func repairAudience(a *core.AudienceAnalysis) {
	p := &a.PrimaryAudience
	if p.Demographic == "" {
		p.Demographic = DefaultAudience
	}
	if !p.Confidence.Valid() {
		p.Confidence = core.ConfidenceMedium
	}
	if len(p.PlatformFit) == 0 {
		p.PlatformFit = defaultPlatformFit()
	}

	if a.SecondaryAudiences == nil {
		a.SecondaryAudiences = []core.SecondaryAudience{}
	}
	for i := range a.SecondaryAudiences {
		s := &a.SecondaryAudiences[i]
		if s.Demographic == "" {
			s.Demographic = DefaultUnknownAudience
		}
		if !s.Confidence.Valid() {
			s.Confidence = core.ConfidenceMedium
		}
		if len(s.Reasons) == 0 {
			s.Reasons = []string{DefaultSecondaryReason}
		}
	}

	rm := &a.RepresentationMetrics
	if rm.Insights == "" {
		if rm.DiversityScore == 0 && rm.InclusionRating == 0 && rm.AppealBreadth == 0 {
			rm.DiversityScore = core.NeutralScore
			rm.InclusionRating = core.NeutralScore
			rm.AppealBreadth = core.NeutralScore
		}
		rm.Insights = DefaultRepresentation
	}
	d := &rm.DemographicsBreakdown
	d.GenderDistribution = reconcile.CollapseGender(d.GenderDistribution)
	if d.AgeDistribution == nil {
		d.AgeDistribution = core.Distribution{}
	}
	if d.EthnicityDistribution == nil {
		d.EthnicityDistribution = core.Distribution{}
	}
}

func neutralBlock(strength string) core.QualityBlock {
	return core.QualityBlock{
		Score:            core.NeutralScore,
		Confidence:       core.ConfidenceMedium,
		Strengths:        []string{strength},
		ImprovementAreas: []string{},
	}
}

func defaultContentQuality() *core.ContentQuality {
	return &core.ContentQuality{
		VisualElements: core.VisualElements{
			QualityBlock: neutralBlock("Good visuals"),
			ColorScheme: core.ColorScheme{
				DominantColors:  append([]string(nil), defaultColors...),
				ColorMood:       DefaultColorMood,
				SaturationLevel: core.NeutralScore,
				ContrastRating:  core.NeutralScore,
			},
		},
		AudioElements:      neutralBlock("Clear audio"),
		NarrativeStructure: neutralBlock("Clear narrative"),
		PacingAndFlow: core.PacingAndFlow{
			Score:      core.NeutralScore,
			Confidence: core.ConfidenceMedium,
			Insights:   DefaultPacingInsights,
			EditingPace: core.EditingPace{
				AverageCutsPerSecond: DefaultCutFrequency,
				TotalCutCount:        DefaultCutCount,
				PacingAnalysis:       DefaultPacingAnalysis,
			},
		},
		ProductPresentation: core.ProductPresentation{
			FeaturedProducts:         []core.FeaturedProduct{},
			OverallPresentationScore: core.NeutralScore,
			Confidence:               core.ConfidenceMedium,
		},
	}
}

func repairBlock(b *core.QualityBlock) {
	if !b.Confidence.Valid() {
		b.Confidence = core.ConfidenceMedium
	}
	if b.Strengths == nil {
		b.Strengths = []string{}
	}
	if b.ImprovementAreas == nil {
		b.ImprovementAreas = []string{}
	}
}

func repairContentQuality(c *core.ContentQuality) {
	repairBlock(&c.VisualElements.QualityBlock)
	repairBlock(&c.AudioElements)
	repairBlock(&c.NarrativeStructure)

	cs := &c.VisualElements.ColorScheme
	if len(cs.DominantColors) == 0 {
		cs.DominantColors = append([]string(nil), defaultColors...)
	}
	if cs.ColorMood == "" {
		cs.ColorMood = DefaultColorMood
	}

	pf := &c.PacingAndFlow
	if !pf.Confidence.Valid() {
		pf.Confidence = core.ConfidenceMedium
	}
	if pf.Insights == "" {
		pf.Insights = DefaultPacingInsights
	}
	if pf.EditingPace.AverageCutsPerSecond == "" {
		pf.EditingPace.AverageCutsPerSecond = DefaultCutFrequency
	}
	if pf.EditingPace.PacingAnalysis == "" {
		pf.EditingPace.PacingAnalysis = DefaultPacingAnalysis
	}

	pp := &c.ProductPresentation
	if pp.FeaturedProducts == nil {
		pp.FeaturedProducts = []core.FeaturedProduct{}
	}
	if !pp.Confidence.Valid() {
		pp.Confidence = core.ConfidenceMedium
	}
}

func repairEmotional(e *core.EmotionalAnalysis) {
	if len(e.DominantEmotions) == 0 {
		e.DominantEmotions = append([]string(nil), defaultEmotions...)
	}
	if e.EmotionalArc == "" {
		e.EmotionalArc = DefaultEmotionalArc
	}
	if !e.Confidence.Valid() {
		e.Confidence = core.ConfidenceMedium
	}
	if e.Insights == "" {
		e.Insights = DefaultEmotionInsights
	}
}

// defaultCompetitive derives uniqueness factors from the first two key
// strengths.
func defaultCompetitive(strengths []string) *core.CompetitiveAdvantage {
	factors := append([]string(nil), strengths...)
	if len(factors) > 2 {
		factors = factors[:2]
	} else if len(factors) > 0 && len(factors) < 2 {
		factors = append(factors, DefaultDeliveryStrength)
	}
	return &core.CompetitiveAdvantage{
		UniquenessFactors:    factors,
		DifferentiationScore: core.NeutralScore,
		MarketPositioning:    DefaultMarketPosition,
		Confidence:           core.ConfidenceMedium,
	}
}

func repairCompetitive(c *core.CompetitiveAdvantage) {
	if c.UniquenessFactors == nil {
		c.UniquenessFactors = []string{}
	}
	if c.MarketPositioning == "" {
		c.MarketPositioning = DefaultMarketPosition
	}
	if !c.Confidence.Valid() {
		c.Confidence = core.ConfidenceMedium
	}
}

func defaultRecommendations() *core.Recommendations {
	return &core.Recommendations{
		PriorityImprovements: []core.PriorityImprovement{
			{
				Area:           "Content quality",
				Recommendation: "Improve production values",
				ExpectedImpact: core.ConfidenceMedium,
				Confidence:     core.ConfidenceMedium,
			},
			{
				Area:           "Engagement",
				Recommendation: "Add a clear call to action",
				ExpectedImpact: core.ConfidenceHigh,
				Confidence:     core.ConfidenceMedium,
			},
		},
		ABTestingSuggestions: []core.ABTest{
			{
				Element:          "Thumbnail",
				Variations:       []string{"Close-up", "Wide shot"},
				ExpectedInsights: "Determine which thumbnail generates higher click-through rates",
			},
		},
		PlatformSpecificOptimizations: defaultPlatformOptimizations(),
		ThumbnailOptimization:         []string{"Use high contrast", "Include clear text overlay"},
	}
}

func defaultPlatformOptimizations() map[string][]string {
	return map[string][]string{
		"instagram": {"Use engaging captions"},
		"tiktok":    {"Use trending sounds"},
		"youtube":   {"Optimize thumbnail"},
		"facebook":  {"Target relevant demographics"},
	}
}

func repairRecommendations(r *core.Recommendations) {
	if r.PriorityImprovements == nil {
		r.PriorityImprovements = []core.PriorityImprovement{}
	}
	for i := range r.PriorityImprovements {
		p := &r.PriorityImprovements[i]
		if p.Recommendation == "" {
			p.Recommendation = p.Area
		}
		if !p.ExpectedImpact.Valid() {
			p.ExpectedImpact = core.ConfidenceMedium
		}
		if !p.Confidence.Valid() {
			p.Confidence = core.ConfidenceMedium
		}
	}
	if r.ABTestingSuggestions == nil {
		r.ABTestingSuggestions = []core.ABTest{}
	}
	for i := range r.ABTestingSuggestions {
		if r.ABTestingSuggestions[i].Variations == nil {
			r.ABTestingSuggestions[i].Variations = []string{}
		}
	}
	if len(r.PlatformSpecificOptimizations) == 0 {
		r.PlatformSpecificOptimizations = defaultPlatformOptimizations()
	}
	if r.ThumbnailOptimization == nil {
		r.ThumbnailOptimization = []string{}
	}
}

func repairTranscription(t *core.TranscriptionAnalysis) {
	sc := &t.SubtitleCoverage
	if sc.MissingSegments == nil {
		sc.MissingSegments = []core.Segment{}
	}
	if sc.Issues == nil {
		sc.Issues = []string{}
	}
	if t.KeyPhrases == nil {
		t.KeyPhrases = []string{}
	}
	if !t.Confidence.Valid() {
		t.Confidence = core.ConfidenceLow
		if t.Available {
			t.Confidence = core.ConfidenceMedium
		}
	}
}

var confidenceRank = map[core.Confidence]int{
	core.ConfidenceLow:    0,
	core.ConfidenceMedium: 1,
	core.ConfidenceHigh:   2,
}

// relabelConfidence makes every contradicted metric no more confident than
// its reconciliation.
func relabelConfidence(r *core.UnifiedReport) {
	for i := range r.Contradictions {
		c := &r.Contradictions[i]
		if !c.Confidence.Valid() {
			c.Confidence = core.ConfidenceMedium
		}
		block := r.PerformanceMetrics.Get(c.Metric)
		if block == nil {
			continue
		}
		if confidenceRank[block.Confidence] > confidenceRank[c.Confidence] {
			block.Confidence = c.Confidence
		}
	}
}
