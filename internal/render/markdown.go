// Package render turns job snapshots into Markdown for terminals and the
// clipboard.
package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
)

// Markdown renders a job snapshot. Jobs without a result render their
// status and error only.
func Markdown(view core.ProgressView) string {
	var b strings.Builder
	title := view.Name
	if title == "" {
		title = string(view.JobID)
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "- **Job:** `%s`\n", view.JobID)
	if view.SourceRef != "" {
		fmt.Fprintf(&b, "- **Source:** %s\n", view.SourceRef)
	}
	fmt.Fprintf(&b, "- **Status:** %s (%d%%, %s)\n", view.Status, view.ProgressPercent, view.StageName)
	if !view.UpdatedAt.IsZero() {
		fmt.Fprintf(&b, "- **Updated:** %s\n", view.UpdatedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	}
	b.WriteString("\n")

	if view.Error != nil {
		writeError(&b, view.Error)
	}
	if view.Result != nil {
		writeReport(&b, view.Result)
	}
	return b.String()
}

func writeError(b *strings.Builder, e *core.ErrorRecord) {
	b.WriteString("## Errors\n\n")
	if e.Message != "" {
		if e.Code != "" {
			fmt.Fprintf(b, "**%s:** %s\n\n", e.Code, e.Message)
		} else {
			fmt.Fprintf(b, "%s\n\n", e.Message)
		}
	}
	for _, k := range sortedKeys(e.Details) {
		fmt.Fprintf(b, "- `%s`: %s\n", k, e.Details[k])
	}
	if len(e.Details) > 0 {
		b.WriteString("\n")
	}
}

func writeReport(b *strings.Builder, r *core.UnifiedReport) {
	if r.IsFallback() {
		b.WriteString("> Synthesis was unavailable; this report merges the raw provider analyses.\n\n")
	}

	if s := r.Summary; s != nil {
		b.WriteString("## Summary\n\n")
		if s.ContentOverview != "" {
			fmt.Fprintf(b, "%s\n\n", s.ContentOverview)
		}
		fmt.Fprintf(b, "**Overall score:** %.0f/100\n\n", float64(s.OverallPerformanceScore))
		writeList(b, "Key strengths", s.KeyStrengths)
		writeList(b, "Improvement areas", s.ImprovementAreas)
	}

	if pm := r.PerformanceMetrics; pm != nil {
		b.WriteString("## Performance\n\n")
		b.WriteString("| Metric | Score | Confidence |\n|---|---|---|\n")
		for _, name := range []string{
			core.MetricEngagement,
			core.MetricShareability,
			core.MetricConversionPotential,
			core.MetricViralPotential,
		} {
			m := pm.Get(name)
			if m == nil {
				continue
			}
			fmt.Fprintf(b, "| %s | %.0f | %s |\n", label(name), float64(m.Score), m.Confidence)
		}
		b.WriteString("\n")
	}

	if a := r.AudienceAnalysis; a != nil {
		b.WriteString("## Audience\n\n")
		if a.PrimaryAudience.Demographic != "" {
			fmt.Fprintf(b, "**Primary:** %s (%s confidence)\n\n", a.PrimaryAudience.Demographic, a.PrimaryAudience.Confidence)
		}
		rep := a.RepresentationMetrics
		fmt.Fprintf(b, "Diversity %.0f, inclusion %.0f, appeal breadth %.0f.\n\n",
			float64(rep.DiversityScore), float64(rep.InclusionRating), float64(rep.AppealBreadth))
		demo := rep.DemographicsBreakdown
		writeDistribution(b, "Age", demo.AgeDistribution)
		writeDistribution(b, "Gender", demo.GenderDistribution)
		writeDistribution(b, "Ethnicity", demo.EthnicityDistribution)
		b.WriteString("\n")
	}

	if e := r.EmotionalAnalysis; e != nil && (len(e.DominantEmotions) > 0 || e.EmotionalArc != "") {
		b.WriteString("## Emotion\n\n")
		if len(e.DominantEmotions) > 0 {
			fmt.Fprintf(b, "**Dominant:** %s\n\n", strings.Join(e.DominantEmotions, ", "))
		}
		if e.EmotionalArc != "" {
			fmt.Fprintf(b, "%s\n\n", e.EmotionalArc)
		}
	}

	if len(r.Contradictions) > 0 {
		b.WriteString("## Contradictions\n\n")
		for _, c := range r.Contradictions {
			fmt.Fprintf(b, "- **%s:** %s\n", label(c.Metric), c.Reconciliation)
		}
		b.WriteString("\n")
	}

	if rec := r.Recommendations; rec != nil && len(rec.PriorityImprovements) > 0 {
		b.WriteString("## Recommendations\n\n")
		for i, p := range rec.PriorityImprovements {
			fmt.Fprintf(b, "%d. **%s:** %s\n", i+1, p.Area, p.Recommendation)
		}
		b.WriteString("\n")
	}

	if len(r.Metadata.Defaulted) > 0 {
		fmt.Fprintf(b, "_Defaulted metrics: %s_\n", strings.Join(r.Metadata.Defaulted, ", "))
	}
}

func writeList(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "**%s**\n\n", heading)
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
	b.WriteString("\n")
}

func writeDistribution(b *strings.Builder, heading string, d core.Distribution) {
	if len(d) == 0 {
		return
	}
	parts := make([]string, 0, len(d))
	for _, k := range d.ByValue() {
		parts = append(parts, fmt.Sprintf("%s %.0f%%", k, d[k]))
	}
	fmt.Fprintf(b, "- **%s:** %s\n", heading, strings.Join(parts, ", "))
}

func label(name string) string {
	s := strings.ReplaceAll(name, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
