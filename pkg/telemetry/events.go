package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event represents a telemetry event published by the scheduler.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Source identifies where the event originated.
	Source string `json:"source"`

	// JobID is the associated job ID, if applicable.
	JobID string `json:"job_id,omitempty"`

	// BundleCode is the associated bundle, if applicable.
	BundleCode string `json:"bundle_code,omitempty"`

	// Component is the associated component key ("type/name"), if applicable.
	Component string `json:"component,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// EventType constants for common event types.
const (
	EventTypeJobStarted         = "job.started"
	EventTypeJobCompleted       = "job.completed"
	EventTypeJobFailed          = "job.failed"
	EventTypeComponentStarted   = "component.started"
	EventTypeComponentCompleted = "component.completed"
	EventTypeComponentFailed    = "component.failed"
	EventTypeRollbackStarted    = "rollback.started"
	EventTypeRollbackCompleted  = "rollback.completed"
	EventTypeLeaseExpired       = "job.lease_expired"
	EventTypeError              = "error"
)

// EventLevel constants for event severity.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher manages event publishing and subscriptions.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())

	ep := &EventPublisher{
		config:      cfg,
		buffer:      make(chan Event, cfg.BufferSize),
		subscribers: make([]subscriberEntry, 0),
		ctx:         ctx,
		cancel:      cancel,
	}

	// Start the event processing goroutine
	if cfg.EnableAsync {
		ep.wg.Add(1)
		go ep.processEvents()
	}

	// Start the periodic flush goroutine
	if cfg.FlushInterval > 0 {
		ep.wg.Add(1)
		go ep.periodicFlush()
	}

	return ep, nil
}

// Publish publishes an event to all subscribers.
func (ep *EventPublisher) Publish(event Event) error {
	if ep == nil || !ep.config.Enabled {
		return nil
	}

	// Set ID and timestamp if not already set
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Send to buffer if async, otherwise process immediately
	if ep.config.EnableAsync {
		select {
		case ep.buffer <- event:
			return nil
		case <-ep.ctx.Done():
			return fmt.Errorf("event publisher stopped")
		default:
			// Buffer full, drop event or log warning
			return fmt.Errorf("event buffer full, event dropped")
		}
	}

	// Synchronous publishing
	ep.deliverEvent(event)
	return nil
}

// PublishJobStarted publishes a job started event.
func (ep *EventPublisher) PublishJobStarted(jobID, bundleCode, jobType, user string) error {
	return ep.Publish(Event{
		Type:       EventTypeJobStarted,
		Source:     "scheduler",
		JobID:      jobID,
		BundleCode: bundleCode,
		Message:    fmt.Sprintf("%s job %s started for bundle %s", jobType, jobID, bundleCode),
		Level:      EventLevelInfo,
		Data: map[string]interface{}{
			"type": jobType,
			"user": user,
		},
	})
}

// PublishJobCompleted publishes a job completed event.
func (ep *EventPublisher) PublishJobCompleted(jobID, bundleCode, status string, duration time.Duration) error {
	return ep.Publish(Event{
		Type:       EventTypeJobCompleted,
		Source:     "scheduler",
		JobID:      jobID,
		BundleCode: bundleCode,
		Message:    fmt.Sprintf("Job %s finished with status: %s", jobID, status),
		Level:      EventLevelInfo,
		Data: map[string]interface{}{
			"status":   status,
			"duration": duration.Seconds(),
		},
	})
}

// PublishJobFailed publishes a job failed event.
func (ep *EventPublisher) PublishJobFailed(jobID, bundleCode, status, reason string) error {
	return ep.Publish(Event{
		Type:       EventTypeJobFailed,
		Source:     "scheduler",
		JobID:      jobID,
		BundleCode: bundleCode,
		Message:    fmt.Sprintf("Job %s failed with status %s: %s", jobID, status, reason),
		Level:      EventLevelError,
		Data: map[string]interface{}{
			"status": status,
			"reason": reason,
		},
	})
}

// PublishComponentCompleted publishes a component operation completed event.
func (ep *EventPublisher) PublishComponentCompleted(jobID, component, direction string, duration time.Duration) error {
	return ep.Publish(Event{
		Type:      EventTypeComponentCompleted,
		Source:    "scheduler",
		JobID:     jobID,
		Component: component,
		Message:   fmt.Sprintf("%s of %s completed", direction, component),
		Level:     EventLevelInfo,
		Data: map[string]interface{}{
			"direction": direction,
			"duration":  duration.Seconds(),
		},
	})
}

// PublishComponentFailed publishes a component operation failed event.
func (ep *EventPublisher) PublishComponentFailed(jobID, component, direction, reason string) error {
	return ep.Publish(Event{
		Type:      EventTypeComponentFailed,
		Source:    "scheduler",
		JobID:     jobID,
		Component: component,
		Message:   fmt.Sprintf("%s of %s failed: %s", direction, component, reason),
		Level:     EventLevelError,
		Data: map[string]interface{}{
			"direction": direction,
			"reason":    reason,
		},
	})
}

// PublishRollback publishes a rollback started or completed event.
func (ep *EventPublisher) PublishRollback(jobID string, completed bool, status string) error {
	evType, msg := EventTypeRollbackStarted, fmt.Sprintf("Rollback of job %s started", jobID)
	if completed {
		evType, msg = EventTypeRollbackCompleted, fmt.Sprintf("Rollback of job %s finished: %s", jobID, status)
	}
	return ep.Publish(Event{
		Type:    evType,
		Source:  "rollback",
		JobID:   jobID,
		Message: msg,
		Level:   EventLevelWarning,
		Data: map[string]interface{}{
			"status": status,
		},
	})
}

// PublishLeaseExpired publishes a stale job event.
func (ep *EventPublisher) PublishLeaseExpired(jobID, bundleCode string, heartbeat time.Time) error {
	return ep.Publish(Event{
		Type:       EventTypeLeaseExpired,
		Source:     "reconciler",
		JobID:      jobID,
		BundleCode: bundleCode,
		Message:    fmt.Sprintf("Job %s lost its lease (last heartbeat %s)", jobID, heartbeat.Format(time.RFC3339)),
		Level:      EventLevelWarning,
	})
}

// Subscribe adds a new event subscriber.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// processEvents processes events from the buffer asynchronously.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	batch := make([]Event, 0, ep.config.MaxBatchSize)

	for {
		select {
		case event := <-ep.buffer:
			batch = append(batch, event)

			// Flush batch if it reaches max size
			if len(batch) >= ep.config.MaxBatchSize {
				ep.flushBatch(batch)
				batch = make([]Event, 0, ep.config.MaxBatchSize)
			}

		case <-ep.ctx.Done():
			// Flush remaining events before shutting down
			if len(batch) > 0 {
				ep.flushBatch(batch)
			}
			return
		}
	}
}

// periodicFlush flushes events periodically.
func (ep *EventPublisher) periodicFlush() {
	defer ep.wg.Done()

	ticker := time.NewTicker(ep.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// Trigger flush by draining buffer
			// This is handled by the processEvents goroutine
		case <-ep.ctx.Done():
			return
		}
	}
}

// flushBatch delivers a batch of events to subscribers.
func (ep *EventPublisher) flushBatch(events []Event) {
	for _, event := range events {
		ep.deliverEvent(event)
	}
}

// deliverEvent delivers an event to all subscribers.
func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		// Apply subscriber-specific filter
		if entry.filter != nil && !entry.filter(event) {
			continue
		}

		// Call subscriber in a goroutine to avoid blocking
		go entry.subscriber(event)
	}
}

// Shutdown gracefully shuts down the event publisher.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if ep == nil || !ep.config.Enabled {
		return nil
	}

	// Signal shutdown
	ep.cancel()

	// Wait for processing to complete with timeout
	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// Common event filters.

// FilterByLevel creates a filter that only allows events of a specific level or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}

	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByBundle creates a filter that only allows events for a specific bundle.
func FilterByBundle(bundleCode string) EventFilter {
	return func(event Event) bool {
		return event.BundleCode == bundleCode
	}
}
