// Package events provides the in-process event bus for job progress.
// It implements pub/sub with backpressure control and priority channels.
package events

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	Timestamp() time.Time
	JobID() string
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	Type string    `json:"type"`
	Time time.Time `json:"timestamp"`
	Job  string    `json:"job_id"`
}

func (e BaseEvent) EventType() string    { return e.Type }
func (e BaseEvent) Timestamp() time.Time { return e.Time }
func (e BaseEvent) JobID() string        { return e.Job }

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType, jobID string) BaseEvent {
	return BaseEvent{
		Type: eventType,
		Time: time.Now(),
		Job:  jobID,
	}
}

// Subscriber represents an event subscription.
type Subscriber struct {
	ch       chan Event
	types    map[string]bool // Empty means all types
	job      string          // Empty means all jobs
	priority bool
}

func (s *Subscriber) matches(e Event) bool {
	if len(s.types) > 0 && !s.types[e.EventType()] {
		return false
	}
	return s.job == "" || s.job == e.JobID()
}

// EventBus provides pub/sub with backpressure control.
type EventBus struct {
	mu              sync.RWMutex
	subscribers     []*Subscriber
	prioritySubs    []*Subscriber
	bufferSize      int
	priorityTimeout time.Duration
	droppedCount    int64
	closed          bool
}

// New creates a new EventBus with the specified buffer size.
func New(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &EventBus{
		subscribers:     make([]*Subscriber, 0),
		prioritySubs:    make([]*Subscriber, 0),
		bufferSize:      bufferSize,
		priorityTimeout: 2 * time.Second,
	}
}

// Subscribe creates a subscription for specific event types.
// If no types are specified, subscribes to all events.
func (eb *EventBus) Subscribe(types ...string) <-chan Event {
	return eb.add(&Subscriber{
		ch:    make(chan Event, eb.bufferSize),
		types: typeSet(types),
	})
}

// SubscribeJob creates a subscription limited to one job.
func (eb *EventBus) SubscribeJob(jobID string, types ...string) <-chan Event {
	return eb.add(&Subscriber{
		ch:    make(chan Event, eb.bufferSize),
		types: typeSet(types),
		job:   jobID,
	})
}

// SubscribePriority creates a subscription that receives terminal events
// even when its buffer is full, waiting up to the priority timeout.
func (eb *EventBus) SubscribePriority(types ...string) <-chan Event {
	return eb.add(&Subscriber{
		ch:       make(chan Event, 50),
		types:    typeSet(types),
		priority: true,
	})
}

func typeSet(types []string) map[string]bool {
	set := make(map[string]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return set
}

func (eb *EventBus) add(sub *Subscriber) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		close(sub.ch)
		return sub.ch
	}
	if sub.priority {
		eb.prioritySubs = append(eb.prioritySubs, sub)
	} else {
		eb.subscribers = append(eb.subscribers, sub)
	}
	return sub.ch
}

// Unsubscribe removes a subscription and closes its channel.
func (eb *EventBus) Unsubscribe(ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers = removeSubscriber(eb.subscribers, ch)
	eb.prioritySubs = removeSubscriber(eb.prioritySubs, ch)
}

func removeSubscriber(subs []*Subscriber, ch <-chan Event) []*Subscriber {
	result := make([]*Subscriber, 0, len(subs))
	for _, sub := range subs {
		if sub.ch != ch {
			result = append(result, sub)
		} else {
			close(sub.ch)
		}
	}
	return result
}

// Publish sends an event to all matching subscribers.
// Subscribers may drop events if their buffer is full (ring buffer behavior).
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}
	eb.publish(event, eb.subscribers)
	eb.publish(event, eb.prioritySubs)
}

// PublishPriority sends an event to regular subscribers with ring buffer
// behavior and to priority subscribers with a bounded wait.
func (eb *EventBus) PublishPriority(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}
	eb.publish(event, eb.subscribers)

	for _, sub := range eb.prioritySubs {
		if !sub.matches(event) {
			continue
		}
		timer := time.NewTimer(eb.priorityTimeout)
		select {
		case sub.ch <- event:
		case <-timer.C:
			atomic.AddInt64(&eb.droppedCount, 1)
		}
		timer.Stop()
	}
}

// publish must be called with the read lock held.
func (eb *EventBus) publish(event Event, subs []*Subscriber) {
	for _, sub := range subs {
		if !sub.matches(event) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			// Buffer full, drop oldest and try again (ring buffer)
			select {
			case <-sub.ch:
				atomic.AddInt64(&eb.droppedCount, 1)
			default:
			}
			select {
			case sub.ch <- event:
			default:
				atomic.AddInt64(&eb.droppedCount, 1)
			}
		}
	}
}

// DroppedCount returns the total number of dropped events.
func (eb *EventBus) DroppedCount() int64 {
	return atomic.LoadInt64(&eb.droppedCount)
}

// SubscriberCount returns the number of active subscriptions.
func (eb *EventBus) SubscriberCount() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers) + len(eb.prioritySubs)
}

// Close closes the event bus and all subscriber channels.
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}
	eb.closed = true

	for _, sub := range eb.subscribers {
		close(sub.ch)
	}
	for _, sub := range eb.prioritySubs {
		close(sub.ch)
	}
	eb.subscribers = nil
	eb.prioritySubs = nil
}
