package pipeline

import (
	"fmt"
	"strings"

	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
	"github.com/hugo-lorenzo-mato/reelsight/internal/service/normalize"
)

// FailurePolicy decides what a provider failure does to the job.
type FailurePolicy string

const (
	// PolicyBestEffort substitutes fallback payloads and completes the job.
	PolicyBestEffort FailurePolicy = "best_effort"
	// PolicyStrict fails the job when any provider fails.
	PolicyStrict FailurePolicy = "strict"
)

// ParseFailurePolicy maps a config value onto a policy. Empty means
// best effort.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyBestEffort:
		return PolicyBestEffort, nil
	case PolicyStrict:
		return PolicyStrict, nil
	}
	return "", core.ErrValidation(core.CodeInvalidConfig, fmt.Sprintf("unknown failure policy %q", s))
}

// FallbackNarrative is the normalized narrative used after a failure:
// every metric neutral and marked defaulted, so reconciliation takes the
// vision side alone and records no contradiction against it.
func FallbackNarrative() normalize.NarrativeMetrics {
	n := normalize.DefaultNarrative()
	n.ImprovementSuggestions = []string{"Try again with a different video"}
	return n
}

// FallbackVision is the normalized vision payload used after a failure:
// neutral scores, Medium virality and empty distributions.
func FallbackVision() normalize.VisionMetrics {
	return normalize.DefaultVision()
}
