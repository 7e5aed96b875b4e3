package manager

// Event names published by the manager.
const (
	EventGenerationStart  = "generation_start"
	EventGenerationDone   = "generation_done"
	EventGenerationFailed = "generation_failed"
	EventBusyRejected     = "busy_rejected"
	EventSessionReset     = "session_reset"
	EventResetRejected    = "reset_rejected"
)

// LifecycleEvent represents a manager lifecycle event.
// Minimal and stable: name + request ID and optional fields via key/values.
type LifecycleEvent struct {
	Name      string
	RequestID string
	Fields    map[string]any
}

// EventPublisher receives events from the manager. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(LifecycleEvent)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(LifecycleEvent) {}

// MultiPublisher fans events out to several publishers.
type MultiPublisher []EventPublisher

func (mp MultiPublisher) Publish(e LifecycleEvent) {
	for _, p := range mp {
		if p != nil {
			p.Publish(e)
		}
	}
}
