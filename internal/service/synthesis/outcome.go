// Package synthesis turns normalized and reconciled provider data into a
// UnifiedReport. A generation pass drafts the report, a second pass
// validates it, and Repair guarantees the schema either way.
package synthesis

import "time"

// Phase names the two generation passes.
type Phase string

const (
	PhaseSynthesis  Phase = "synthesis"
	PhaseValidation Phase = "validation"
)

// Status is how a pass ended.
type Status string

const (
	// StatusParsed means the generated text parsed into a report.
	StatusParsed Status = "parsed"
	// StatusFallback means synthesis output was unusable and the minimal
	// merge structure was used instead.
	StatusFallback Status = "fallback"
	// StatusSkipped means validator output was unusable and the
	// pre-validation report was kept.
	StatusSkipped Status = "skipped"
	// StatusDisabled means the pass was turned off by configuration.
	StatusDisabled Status = "disabled"
)

// Outcome describes one pass. Err is set for fallback and skipped passes;
// neither is fatal to the job.
type Outcome struct {
	Phase    Phase
	Status   Status
	Err      error
	Duration time.Duration
}

// Degraded reports whether the pass fell back to a substitute.
func (o Outcome) Degraded() bool {
	return o.Status == StatusFallback || o.Status == StatusSkipped
}
