package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventReservationCreated = "reservation_created"
	EventReservationClosed  = "reservation_closed"
	EventExportRequested    = "export_requested"
	EventExportCompleted    = "export_completed"
	EventExportFailed       = "export_failed"
	EventExportCancelled    = "export_cancelled"
)

// ReservationEventPayload describes the minimal reservation snapshot for event consumers.
type ReservationEventPayload struct {
	ReservationID int64     `json:"reservation_id"`
	UserID        int64     `json:"user_id"`
	LotID         int64     `json:"lot_id"`
	LotName       string    `json:"lot_name"`
	SpotNumber    int64     `json:"spot_number"`
	VehicleNumber string    `json:"vehicle_number"`
	Status        string    `json:"status"`
	StartedAt     time.Time `json:"started_at"`
	Cost          float64   `json:"cost,omitempty"`
}

// ExportEventPayload describes an export job status change.
type ExportEventPayload struct {
	JobID  string `json:"job_id"`
	UserID int64  `json:"user_id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Event represents a lightweight domain event.
type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
	Processed bool
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
