package core

import (
	"fmt"
	"time"
)

// JobID uniquely identifies an analysis job.
type JobID string

// JobStatus represents the lifecycle state of a job.
type JobStatus string

const (
	JobStatusInitializing      JobStatus = "initializing"
	JobStatusAnalyzing         JobStatus = "analyzing"
	JobStatusProvidersComplete JobStatus = "providers_complete"
	JobStatusSynthesizing      JobStatus = "synthesizing"
	JobStatusValidating        JobStatus = "validating"
	JobStatusCompleted         JobStatus = "completed"
	JobStatusError             JobStatus = "error"
)

// jobStatusOrder is the linear order of the non-error states.
var jobStatusOrder = map[JobStatus]int{
	JobStatusInitializing:      0,
	JobStatusAnalyzing:         1,
	JobStatusProvidersComplete: 2,
	JobStatusSynthesizing:      3,
	JobStatusValidating:        4,
	JobStatusCompleted:         5,
}

// IsTerminal reports whether no further transitions are allowed.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusError
}

// Valid reports whether s is a known status.
func (s JobStatus) Valid() bool {
	if s == JobStatusError {
		return true
	}
	_, ok := jobStatusOrder[s]
	return ok
}

// CanTransitionTo reports whether the state machine allows s -> next.
// Statuses only move forward one step at a time, except that every
// non-terminal status may jump to error.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	if s.IsTerminal() || !next.Valid() {
		return false
	}
	if next == JobStatusError {
		return true
	}
	return jobStatusOrder[next] == jobStatusOrder[s]+1
}

// ProviderState tracks one provider inside the parallel analyzing state.
type ProviderState string

const (
	ProviderStatePending  ProviderState = "pending"
	ProviderStateRunning  ProviderState = "running"
	ProviderStateComplete ProviderState = "complete"
	ProviderStateFailed   ProviderState = "failed"
)

// Stage is the ordinal used by progress bars.
type Stage int

const (
	StageQueued Stage = iota
	StageAcquiring
	StageStaging
	StageAnalyzing
	StageJoined
	StageSynthesizing
	StageValidating
	StagePersisting
	StageDone
)

var stageNames = [...]string{
	"queued",
	"acquiring",
	"staging",
	"analyzing",
	"joined",
	"synthesizing",
	"validating",
	"persisting",
	"done",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// Keys used in ErrorRecord.Details.
const (
	DetailNarrativeError   = "narrativeError"
	DetailVisionError      = "visionError"
	DetailSynthesisError   = "synthesisError"
	DetailValidationError  = "validationError"
	DetailPersistenceError = "persistenceError"
	DetailPipelineError    = "pipelineError"
)

// ErrorRecord is attached to a job when anything failed, even when the job
// itself completes.
type ErrorRecord struct {
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// Clone returns a deep copy.
func (e *ErrorRecord) Clone() *ErrorRecord {
	if e == nil {
		return nil
	}
	c := &ErrorRecord{Code: e.Code, Message: e.Message}
	if e.Details != nil {
		c.Details = make(map[string]string, len(e.Details))
		for k, v := range e.Details {
			c.Details[k] = v
		}
	}
	return c
}

// Job is one end-to-end analysis request at submission. Once started, its
// state lives in the progress tracker.
type Job struct {
	ID              JobID
	Name            string
	SourceRef       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Stage           Stage
	Status          JobStatus
	ProgressPercent int
	Message         string
	Providers       map[ProviderName]ProviderState
	Result          *UnifiedReport
	Error           *ErrorRecord
}

// NewJob creates a job in the initializing state.
func NewJob(id JobID, name, sourceRef string) *Job {
	now := time.Now()
	return &Job{
		ID:        id,
		Name:      name,
		SourceRef: sourceRef,
		CreatedAt: now,
		UpdatedAt: now,
		Stage:     StageQueued,
		Status:    JobStatusInitializing,
		Providers: map[ProviderName]ProviderState{
			ProviderNarrative: ProviderStatePending,
			ProviderVision:    ProviderStatePending,
		},
	}
}

// View returns an immutable snapshot for pollers.
func (j *Job) View() ProgressView {
	providers := make(map[ProviderName]ProviderState, len(j.Providers))
	for k, v := range j.Providers {
		providers[k] = v
	}
	return ProgressView{
		JobID:           j.ID,
		Name:            j.Name,
		SourceRef:       j.SourceRef,
		Stage:           j.Stage,
		StageName:       j.Stage.String(),
		Status:          j.Status,
		ProgressPercent: j.ProgressPercent,
		Message:         j.Message,
		Providers:       providers,
		Result:          j.Result,
		Error:           j.Error.Clone(),
		CreatedAt:       j.CreatedAt,
		UpdatedAt:       j.UpdatedAt,
	}
}

// ProgressView is what poll returns. It is always well formed.
type ProgressView struct {
	JobID           JobID                          `json:"job_id"`
	Name            string                         `json:"name"`
	SourceRef       string                         `json:"source_ref,omitempty"`
	Stage           Stage                          `json:"stage"`
	StageName       string                         `json:"stage_name"`
	Status          JobStatus                      `json:"status"`
	ProgressPercent int                            `json:"progress_percent"`
	Message         string                         `json:"message,omitempty"`
	Providers       map[ProviderName]ProviderState `json:"providers,omitempty"`
	Result          *UnifiedReport                 `json:"result,omitempty"`
	Error           *ErrorRecord                   `json:"error,omitempty"`
	CreatedAt       time.Time                      `json:"created_at"`
	UpdatedAt       time.Time                      `json:"updated_at"`
}

// Record converts the view into its durable form.
func (v ProgressView) Record() *JobRecord {
	return &JobRecord{
		ID:              v.JobID,
		Name:            v.Name,
		SourceRef:       v.SourceRef,
		Status:          v.Status,
		Stage:           v.Stage,
		ProgressPercent: v.ProgressPercent,
		Result:          v.Result,
		Error:           v.Error.Clone(),
		CreatedAt:       v.CreatedAt,
		UpdatedAt:       v.UpdatedAt,
	}
}

// JobRecord is the durable copy kept by a ResultStore.
type JobRecord struct {
	ID              JobID          `json:"id"`
	Name            string         `json:"name"`
	SourceRef       string         `json:"source_ref"`
	Status          JobStatus      `json:"status"`
	Stage           Stage          `json:"stage"`
	ProgressPercent int            `json:"progress_percent"`
	Result          *UnifiedReport `json:"result,omitempty"`
	Error           *ErrorRecord   `json:"error,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// View converts a durable record back into a poll response.
func (r *JobRecord) View() ProgressView {
	return ProgressView{
		JobID:           r.ID,
		Name:            r.Name,
		SourceRef:       r.SourceRef,
		Stage:           r.Stage,
		StageName:       r.Stage.String(),
		Status:          r.Status,
		ProgressPercent: r.ProgressPercent,
		Result:          r.Result,
		Error:           r.Error.Clone(),
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

// JobSummary is a lightweight listing entry.
type JobSummary struct {
	ID              JobID     `json:"id"`
	Name            string    `json:"name"`
	SourceRef       string    `json:"source_ref"`
	Status          JobStatus `json:"status"`
	ProgressPercent int       `json:"progress_percent"`
	HasErrors       bool      `json:"has_errors"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Summary returns the listing entry for a record.
func (r *JobRecord) Summary() JobSummary {
	return JobSummary{
		ID:              r.ID,
		Name:            r.Name,
		SourceRef:       r.SourceRef,
		Status:          r.Status,
		ProgressPercent: r.ProgressPercent,
		HasErrors:       r.Error != nil,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}
