package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
	"github.com/hugo-lorenzo-mato/reelsight/internal/service"
)

// Validator runs the best-effort second pass.
type Validator struct {
	generation
}

// NewValidator creates a validator.
func NewValidator(gen core.Generator, prompts *service.PromptRenderer, opts Options, options ...Option) *Validator {
	return &Validator{generation: newGeneration(gen, prompts, opts, options...)}
}

// Validate asks the model to check and complete report. When the answer
// does not parse, the pre-validation report is kept. Sections computed
// locally are carried over from the input either way, and the result is
// repaired. The input report is not modified.
func (v *Validator) Validate(ctx context.Context, report *core.UnifiedReport) (*core.UnifiedReport, Outcome) {
	start := time.Now()
	outcome := Outcome{Phase: PhaseValidation, Status: StatusParsed}
	pre := Repair(report.Clone())

	if !v.opts.ValidationEnabled {
		outcome.Status = StatusDisabled
		pre.Metadata.Validation = string(StatusDisabled)
		outcome.Duration = time.Since(start)
		return pre, outcome
	}

	validated, err := v.check(ctx, pre)
	if err != nil {
		v.logger.Warn("validation output unusable, keeping pre-validation report",
			"video_id", pre.Metadata.VideoID, "error", err)
		outcome.Status = StatusSkipped
		outcome.Err = err
		pre.Metadata.Validation = string(StatusSkipped)
		outcome.Duration = time.Since(start)
		return pre, outcome
	}

	out := Repair(preserve(pre.Clone(), validated))
	out.Metadata.Validation = string(StatusParsed)
	outcome.Duration = time.Since(start)
	return out, outcome
}

func (v *Validator) check(ctx context.Context, pre *core.UnifiedReport) (*core.UnifiedReport, error) {
	if v.prompts == nil {
		return nil, core.ErrSynthesis(core.CodeValidationSkipped, "no prompt renderer configured")
	}
	data, err := json.MarshalIndent(pre, "", "  ")
	if err != nil {
		return nil, core.ErrSynthesis(core.CodeValidationSkipped, "encoding report").WithCause(err)
	}
	prompt, err := v.prompts.RenderValidate(service.ValidateParams{ReportJSON: string(data)})
	if err != nil {
		return nil, core.ErrSynthesis(core.CodeValidationSkipped, "rendering prompt").WithCause(err)
	}
	raw, err := v.generate(ctx, prompt, v.opts.ValidatorTemperature)
	if err != nil {
		return nil, core.ErrSynthesis(core.CodeValidationSkipped, "generation failed").WithCause(err)
	}
	report, err := AttemptParse(raw)
	if err != nil {
		return nil, core.ErrSynthesis(core.CodeValidationSkipped,
			fmt.Sprintf("validator output is not a report: %v", err)).WithCause(err)
	}
	return report, nil
}

// preserve copies the locally computed parts of pre into post. Sections
// the validator dropped are taken whole from pre.
func preserve(pre, post *core.UnifiedReport) *core.UnifiedReport {
	post.Metadata = pre.Metadata
	post.NarrativeAnalysis = pre.NarrativeAnalysis
	post.VisionAnalysis = pre.VisionAnalysis
	post.Contradictions = mergeContradictions(pre.Contradictions, post.Contradictions)

	if post.Summary == nil {
		post.Summary = pre.Summary
	}
	if post.PerformanceMetrics == nil {
		post.PerformanceMetrics = pre.PerformanceMetrics
	} else {
		for _, name := range core.PerformanceMetricNames() {
			kept := *pre.PerformanceMetrics.Get(name)
			if block := post.PerformanceMetrics.Get(name); block != nil && block.Insights != "" {
				kept.Insights = block.Insights
			}
			post.PerformanceMetrics.Set(name, kept)
		}
	}
	if post.AudienceAnalysis == nil {
		post.AudienceAnalysis = pre.AudienceAnalysis
	} else {
		post.AudienceAnalysis.RepresentationMetrics.DemographicsBreakdown =
			pre.AudienceAnalysis.RepresentationMetrics.DemographicsBreakdown
	}
	if post.ContentQuality == nil {
		post.ContentQuality = pre.ContentQuality
	} else {
		post.ContentQuality.PacingAndFlow.EditingPace = pre.ContentQuality.PacingAndFlow.EditingPace
	}
	if post.EmotionalAnalysis == nil {
		post.EmotionalAnalysis = pre.EmotionalAnalysis
	}
	if post.CompetitiveAdvantage == nil {
		post.CompetitiveAdvantage = pre.CompetitiveAdvantage
	}
	if post.Recommendations == nil {
		post.Recommendations = pre.Recommendations
	}
	if post.TranscriptionAnalysis == nil {
		post.TranscriptionAnalysis = pre.TranscriptionAnalysis
	}
	return post
}
