package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. The admin channel and the support ledger subscribe to them.
const (
	// Profile events
	EventProfileRegistered EventType = "profile.registered"
	EventProfileUpdated    EventType = "profile.updated"

	// Support events
	EventSupportMessageReceived   EventType = "support.message_received"
	EventAccountDeletionRequested EventType = "support.deletion_requested"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	if at.IsZero() {
		at = time.Now()
	}
	return BaseEvent{
		Type:        eventType,
		Timestamp:   at,
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Profile Events
// ═══════════════════════════════════════════════════════════════════════════

// ProfileRegisteredEvent is emitted after the profile store accepted a new registration.
type ProfileRegisteredEvent struct {
	BaseEvent
	TelegramID int64  `json:"telegram_id"`
	PlatformID string `json:"platform_id"`
	UserName   string `json:"user_name"`
	Nickname   string `json:"nickname"`
	SchoolCode string `json:"school_code"`
	SchoolName string `json:"school_name"`
	Role       string `json:"role"`
}

// Payload implements Event interface.
func (e ProfileRegisteredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"telegram_id": e.TelegramID,
		"platform_id": e.PlatformID,
		"user_name":   e.UserName,
		"nickname":    e.Nickname,
		"school_code": e.SchoolCode,
		"school_name": e.SchoolName,
		"role":        e.Role,
	}
}

// NewProfileRegisteredEvent creates a new ProfileRegisteredEvent.
func NewProfileRegisteredEvent(telegramID int64, platformID, userName, nickname, schoolCode, schoolName, role string, at time.Time) ProfileRegisteredEvent {
	return ProfileRegisteredEvent{
		BaseEvent:  NewBaseEvent(EventProfileRegistered, platformID, at),
		TelegramID: telegramID,
		PlatformID: platformID,
		UserName:   userName,
		Nickname:   nickname,
		SchoolCode: schoolCode,
		SchoolName: schoolName,
		Role:       role,
	}
}

// ProfileUpdatedEvent is emitted after an edit or an additional school was synced.
type ProfileUpdatedEvent struct {
	BaseEvent
	TelegramID int64  `json:"telegram_id"`
	PlatformID string `json:"platform_id"`
	Field      string `json:"field"`
}

// Payload implements Event interface.
func (e ProfileUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"telegram_id": e.TelegramID,
		"platform_id": e.PlatformID,
		"field":       e.Field,
	}
}

// NewProfileUpdatedEvent creates a new ProfileUpdatedEvent.
func NewProfileUpdatedEvent(telegramID int64, platformID, field string, at time.Time) ProfileUpdatedEvent {
	return ProfileUpdatedEvent{
		BaseEvent:  NewBaseEvent(EventProfileUpdated, platformID, at),
		TelegramID: telegramID,
		PlatformID: platformID,
		Field:      field,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Support Events
// ═══════════════════════════════════════════════════════════════════════════

// SupportMessageReceivedEvent is emitted when a user writes free text outside a dialogue.
type SupportMessageReceivedEvent struct {
	BaseEvent
	TelegramID int64  `json:"telegram_id"`
	UserName   string `json:"user_name"`
	Text       string `json:"text"`
}

// Payload implements Event interface.
func (e SupportMessageReceivedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"telegram_id": e.TelegramID,
		"user_name":   e.UserName,
		"text":        e.Text,
	}
}

// NewSupportMessageReceivedEvent creates a new SupportMessageReceivedEvent.
func NewSupportMessageReceivedEvent(telegramID int64, userName, text string, at time.Time) SupportMessageReceivedEvent {
	return SupportMessageReceivedEvent{
		BaseEvent:  NewBaseEvent(EventSupportMessageReceived, TelegramID(telegramID).String(), at),
		TelegramID: telegramID,
		UserName:   userName,
		Text:       text,
	}
}

// AccountDeletionRequestedEvent is emitted when a user confirms a deletion request.
type AccountDeletionRequestedEvent struct {
	BaseEvent
	TelegramID int64  `json:"telegram_id"`
	UserName   string `json:"user_name"`
	PlatformID string `json:"platform_id"`
}

// Payload implements Event interface.
func (e AccountDeletionRequestedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"telegram_id": e.TelegramID,
		"user_name":   e.UserName,
		"platform_id": e.PlatformID,
		"requested":   e.Timestamp.Format(time.RFC3339),
	}
}

// NewAccountDeletionRequestedEvent creates a new AccountDeletionRequestedEvent.
func NewAccountDeletionRequestedEvent(telegramID int64, userName, platformID string, at time.Time) AccountDeletionRequestedEvent {
	return AccountDeletionRequestedEvent{
		BaseEvent:  NewBaseEvent(EventAccountDeletionRequested, TelegramID(telegramID).String(), at),
		TelegramID: telegramID,
		UserName:   userName,
		PlatformID: platformID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Publishing ports
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NopPublisher drops every event. Used when the admin channel is not configured.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) error { return nil }
