// Package progress tracks the live state of analysis jobs. Snapshots are
// kept in memory while a job runs and fall back to the durable store once
// they have been evicted.
package progress

import "github.com/hugo-lorenzo-mato/reelsight/internal/core"

// Milestone is a named point in a job's life.
type Milestone string

const (
	MilestoneCreated           Milestone = "created"
	MilestoneDownloadStarted   Milestone = "download_started"
	MilestoneDownloadComplete  Milestone = "download_complete"
	MilestoneUploadComplete    Milestone = "upload_complete"
	MilestoneProviderStarted   Milestone = "provider_started"
	MilestoneProviderComplete  Milestone = "provider_complete"
	MilestoneProvidersJoined   Milestone = "providers_joined"
	MilestoneSynthesisStarted  Milestone = "synthesis_started"
	MilestoneValidationStarted Milestone = "validation_started"
	MilestonePersisting        Milestone = "persisting"
	MilestoneCompleted         Milestone = "completed"
	MilestoneError             Milestone = "error"
)

// Step is where a milestone puts a job. An empty Status leaves the
// current status alone.
type Step struct {
	Stage   core.Stage
	Percent int
	Status  core.JobStatus
	Message string
}

var steps = map[Milestone]Step{
	MilestoneCreated:           {core.StageQueued, 0, core.JobStatusInitializing, "Job created"},
	MilestoneDownloadStarted:   {core.StageAcquiring, 5, "", "Downloading video"},
	MilestoneDownloadComplete:  {core.StageAcquiring, 15, "", "Video downloaded"},
	MilestoneUploadComplete:    {core.StageStaging, 25, "", "Video staged for analysis"},
	MilestoneProviderStarted:   {core.StageAnalyzing, 30, core.JobStatusAnalyzing, "Analyzing video"},
	MilestoneProviderComplete:  {core.StageAnalyzing, 50, core.JobStatusAnalyzing, "Provider analysis complete"},
	MilestoneProvidersJoined:   {core.StageJoined, 60, core.JobStatusProvidersComplete, "Provider analyses complete"},
	MilestoneSynthesisStarted:  {core.StageSynthesizing, 70, core.JobStatusSynthesizing, "Synthesizing report"},
	MilestoneValidationStarted: {core.StageValidating, 85, core.JobStatusValidating, "Validating report"},
	MilestonePersisting:        {core.StagePersisting, 95, "", "Saving results"},
	MilestoneCompleted:         {core.StageDone, 100, core.JobStatusCompleted, "Analysis complete"},
	MilestoneError:             {core.StageDone, 100, core.JobStatusError, "Analysis failed"},
}

// StepFor returns the table entry for m.
func StepFor(m Milestone) (Step, bool) {
	s, ok := steps[m]
	return s, ok
}

// Milestones lists every known milestone in table order.
func Milestones() []Milestone {
	return []Milestone{
		MilestoneCreated,
		MilestoneDownloadStarted,
		MilestoneDownloadComplete,
		MilestoneUploadComplete,
		MilestoneProviderStarted,
		MilestoneProviderComplete,
		MilestoneProvidersJoined,
		MilestoneSynthesisStarted,
		MilestoneValidationStarted,
		MilestonePersisting,
		MilestoneCompleted,
		MilestoneError,
	}
}
