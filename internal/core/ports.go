package core

import (
	"context"
	"time"
)

// =============================================================================
// Source Ports
// =============================================================================

// LocalHandle is an opaque reference to a locally available copy of a video.
type LocalHandle struct {
	// Origin is the source reference the copy was made from.
	Origin      string
	Path        string
	ContentType string
	Size        int64
	// Cleanup releases the local copy. It may be nil.
	Cleanup func() error
}

// SourceFetcher acquires a local copy of a source reference.
type SourceFetcher interface {
	Fetch(ctx context.Context, sourceRef string) (*LocalHandle, error)
}

// BlobStager publishes a local copy at a URL reachable by the vision provider.
type BlobStager interface {
	Stage(ctx context.Context, handle *LocalHandle) (string, error)
}

// =============================================================================
// Provider Ports
// =============================================================================

// CallOptions configures one provider call.
type CallOptions struct {
	// SampleIntervalMs is the frame sampling interval for the vision provider.
	SampleIntervalMs int
	// Prompt is the rendered narrative prompt.
	Prompt string
	// Models restricts the vision sub-models to call. Empty means all.
	Models []VisionModel
}

// NarrativeCaller returns free text with an embedded structured block.
type NarrativeCaller interface {
	Name() ProviderName
	Call(ctx context.Context, ref string, opts CallOptions) (string, error)
}

// VisionCaller returns frame-indexed detections per sub-model.
type VisionCaller interface {
	Name() ProviderName
	Call(ctx context.Context, url string, opts CallOptions) (*VisionFrames, error)
}

// GenerateRequest is a single generation call used by synthesis and validation.
type GenerateRequest struct {
	Prompt      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// Generator produces text from a prompt.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// =============================================================================
// Persistence Ports
// =============================================================================

// ListOptions filters and pages a listing.
type ListOptions struct {
	Status JobStatus
	Limit  int
	Offset int
}

// ResultStore is the durable result/error store. Put is an idempotent upsert
// by id; Get returns (nil, nil) when absent.
type ResultStore interface {
	Put(ctx context.Context, rec *JobRecord) error
	Get(ctx context.Context, id JobID) (*JobRecord, error)
	List(ctx context.Context, opts ListOptions) ([]JobSummary, error)
	Delete(ctx context.Context, id JobID) error
	Count(ctx context.Context) (int, error)
	Close() error
}

// =============================================================================
// Event Port
// =============================================================================

// EventPublisher receives job progress changes.
type EventPublisher interface {
	PublishProgress(view ProgressView)
}

// ProviderStatePublisher is implemented by publishers that also carry
// per-provider lifecycle changes.
type ProviderStatePublisher interface {
	PublishProviderState(jobID JobID, provider ProviderName, state ProviderState, attempt int, message string)
}
