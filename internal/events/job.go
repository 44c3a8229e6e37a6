package events

import (
	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
)

// Event type constants for job events.
const (
	TypeJobCreated    = "job_created"
	TypeJobProgress   = "job_progress"
	TypeProviderState = "provider_state"
	TypeJobCompleted  = "job_completed"
	TypeJobFailed     = "job_failed"
)

// JobProgressEvent carries a progress snapshot. It is used for every
// progress change, including creation and the terminal transition.
type JobProgressEvent struct {
	BaseEvent
	View core.ProgressView `json:"view"`
}

// NewJobProgressEvent picks the event type from the view's status.
func NewJobProgressEvent(view core.ProgressView) JobProgressEvent {
	eventType := TypeJobProgress
	switch {
	case view.Status == core.JobStatusCompleted:
		eventType = TypeJobCompleted
	case view.Status == core.JobStatusError:
		eventType = TypeJobFailed
	case view.Status == core.JobStatusInitializing && view.ProgressPercent == 0:
		eventType = TypeJobCreated
	}
	return JobProgressEvent{
		BaseEvent: NewBaseEvent(eventType, string(view.JobID)),
		View:      view,
	}
}

// IsTerminal reports whether the event ends the job.
func (e JobProgressEvent) IsTerminal() bool {
	return e.Type == TypeJobCompleted || e.Type == TypeJobFailed
}

// ProviderStateEvent records a provider lifecycle change.
type ProviderStateEvent struct {
	BaseEvent
	Provider core.ProviderName  `json:"provider"`
	State    core.ProviderState `json:"state"`
	Attempt  int                `json:"attempt,omitempty"`
	Message  string             `json:"message,omitempty"`
}

// NewProviderStateEvent creates a provider state event.
func NewProviderStateEvent(jobID core.JobID, provider core.ProviderName, state core.ProviderState, attempt int, message string) ProviderStateEvent {
	return ProviderStateEvent{
		BaseEvent: NewBaseEvent(TypeProviderState, string(jobID)),
		Provider:  provider,
		State:     state,
		Attempt:   attempt,
		Message:   message,
	}
}

// Publisher adapts the bus to core.EventPublisher.
type Publisher struct {
	bus *EventBus
}

// NewPublisher wraps bus. A nil bus discards events.
func NewPublisher(bus *EventBus) *Publisher {
	return &Publisher{bus: bus}
}

// PublishProgress publishes a snapshot; terminal snapshots use the priority path.
func (p *Publisher) PublishProgress(view core.ProgressView) {
	if p == nil || p.bus == nil {
		return
	}
	ev := NewJobProgressEvent(view)
	if ev.IsTerminal() {
		p.bus.PublishPriority(ev)
		return
	}
	p.bus.Publish(ev)
}

// PublishProviderState publishes a provider lifecycle change.
func (p *Publisher) PublishProviderState(jobID core.JobID, provider core.ProviderName, state core.ProviderState, attempt int, message string) {
	if p == nil || p.bus == nil {
		return
	}
	p.bus.Publish(NewProviderStateEvent(jobID, provider, state, attempt, message))
}

// Fanout forwards every event to each publisher in order.
type Fanout []core.EventPublisher

// PublishProgress implements core.EventPublisher.
func (f Fanout) PublishProgress(view core.ProgressView) {
	for _, p := range f {
		if p != nil {
			p.PublishProgress(view)
		}
	}
}

// PublishProviderState forwards to the publishers that support it.
func (f Fanout) PublishProviderState(jobID core.JobID, provider core.ProviderName, state core.ProviderState, attempt int, message string) {
	for _, p := range f {
		if sp, ok := p.(core.ProviderStatePublisher); ok {
			sp.PublishProviderState(jobID, provider, state, attempt, message)
		}
	}
}
