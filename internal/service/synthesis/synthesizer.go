package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hugo-lorenzo-mato/reelsight/internal/config"
	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
	"github.com/hugo-lorenzo-mato/reelsight/internal/logging"
	"github.com/hugo-lorenzo-mato/reelsight/internal/service"
)

// Options configure both generation passes.
type Options struct {
	Model                string
	MaxTokens            int
	Temperature          float64
	ValidatorTemperature float64
	Timeout              time.Duration
	ValidationEnabled    bool
}

// DefaultOptions returns the production settings.
func DefaultOptions() Options {
	return Options{
		Model:                "gemini-2.0-flash",
		MaxTokens:            8192,
		Temperature:          0.2,
		ValidatorTemperature: 0.1,
		Timeout:              2 * time.Minute,
		ValidationEnabled:    true,
	}
}

// OptionsFromConfig converts the synthesis config section.
func OptionsFromConfig(cfg config.SynthesisConfig) Options {
	opts := DefaultOptions()
	if cfg.Model != "" {
		opts.Model = cfg.Model
	}
	if cfg.MaxTokens > 0 {
		opts.MaxTokens = cfg.MaxTokens
	}
	opts.Temperature = cfg.Temperature
	opts.ValidatorTemperature = cfg.ValidatorTemperature
	opts.Timeout = config.Duration(cfg.Timeout, opts.Timeout)
	opts.ValidationEnabled = cfg.ValidationEnabled
	return opts
}

// generation is shared by the synthesizer and the validator.
type generation struct {
	gen     core.Generator
	prompts *service.PromptRenderer
	limiter *service.RateLimiter
	retry   *service.RetryPolicy
	opts    Options
	logger  *logging.Logger
}

// Option configures a Synthesizer or Validator.
type Option func(*generation)

// WithRateLimiter throttles generation calls.
func WithRateLimiter(l *service.RateLimiter) Option {
	return func(g *generation) { g.limiter = l }
}

// WithRetryPolicy retries transient generation failures.
func WithRetryPolicy(p *service.RetryPolicy) Option {
	return func(g *generation) { g.retry = p }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(g *generation) { g.logger = l }
}

func newGeneration(gen core.Generator, prompts *service.PromptRenderer, opts Options, options ...Option) generation {
	g := generation{
		gen:     gen,
		prompts: prompts,
		opts:    opts,
		logger:  logging.NewNop(),
	}
	for _, o := range options {
		o(&g)
	}
	return g
}

func (g *generation) generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	if g.gen == nil {
		return "", core.ErrSynthesis(core.CodeSynthesisFailed, "no generator configured")
	}
	req := core.GenerateRequest{
		Prompt:      prompt,
		Model:       g.opts.Model,
		MaxTokens:   g.opts.MaxTokens,
		Temperature: temperature,
		Timeout:     g.opts.Timeout,
	}

	var out string
	call := func(ctx context.Context) error {
		if err := g.limiter.Acquire(ctx); err != nil {
			return err
		}
		text, err := g.gen.Generate(ctx, req)
		if err != nil {
			return err
		}
		out = text
		return nil
	}
	if g.retry == nil {
		return out, call(ctx)
	}
	err := g.retry.ExecuteWithNotify(ctx, call, func(attempt int, err error, delay time.Duration) {
		g.logger.Warn("generation attempt failed", "attempt", attempt, "error", err, "retry_in", delay)
	})
	return out, err
}

// Synthesizer runs the first generation pass.
type Synthesizer struct {
	generation
}

// NewSynthesizer creates a synthesizer.
func NewSynthesizer(gen core.Generator, prompts *service.PromptRenderer, opts Options, options ...Option) *Synthesizer {
	return &Synthesizer{generation: newGeneration(gen, prompts, opts, options...)}
}

// Synthesize drafts the unified report. It never fails: unusable model
// output yields the fallback merge, reported through the Outcome. The
// returned report is repaired and carries the locally computed sections.
func (s *Synthesizer) Synthesize(ctx context.Context, in Input) (*core.UnifiedReport, Outcome) {
	start := time.Now()
	outcome := Outcome{Phase: PhaseSynthesis, Status: StatusParsed}

	report, err := s.draft(ctx, in)
	if err != nil {
		s.logger.Warn("synthesis output unusable, using fallback merge", "video_id", in.VideoID, "error", err)
		report = FallbackMerge(in)
		outcome.Status = StatusFallback
		outcome.Err = err
	}

	Repair(report)
	Overlay(report, in)
	Repair(report)
	outcome.Duration = time.Since(start)
	return report, outcome
}

func (s *Synthesizer) draft(ctx context.Context, in Input) (*core.UnifiedReport, error) {
	prompt, err := s.renderUnify(in)
	if err != nil {
		return nil, core.ErrSynthesis(core.CodeSynthesisFailed, "rendering prompt").WithCause(err)
	}
	raw, err := s.generate(ctx, prompt, s.opts.Temperature)
	if err != nil {
		return nil, core.ErrSynthesis(core.CodeSynthesisFailed, "generation failed").WithCause(err)
	}
	report, err := AttemptParse(raw)
	if err != nil {
		return nil, core.ErrSynthesis(core.CodeSynthesisUnparseable, "synthesis output is not a report").WithCause(err)
	}
	return report, nil
}

func (s *Synthesizer) renderUnify(in Input) (string, error) {
	if s.prompts == nil {
		return "", fmt.Errorf("no prompt renderer configured")
	}
	narrative, err := json.MarshalIndent(in.Narrative, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding narrative: %w", err)
	}
	vision, err := json.MarshalIndent(in.Vision, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding vision: %w", err)
	}
	reconciled, err := json.MarshalIndent(in.reconciled(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding reconciled data: %w", err)
	}
	contradictions := make([]string, 0, len(in.Contradictions))
	for _, c := range in.Contradictions {
		contradictions = append(contradictions, fmt.Sprintf("%s: %s vs %s", c.Metric, c.NarrativeAssessment, c.VisionAssessment))
	}
	return s.prompts.RenderUnify(service.UnifyParams{
		VideoID:        in.VideoID,
		NarrativeJSON:  string(narrative),
		VisionJSON:     string(vision),
		ReconciledJSON: string(reconciled),
		Contradictions: contradictions,
	})
}
