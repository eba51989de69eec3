package websocket

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType is the action half of an event name
type EventType string

const (
	EventTypeRecorded          EventType = "recorded"
	EventTypeUpdated           EventType = "updated"
	EventTypeDeleted           EventType = "deleted"
	EventTypeCompleted         EventType = "completed"
	EventTypeAggregatesChanged EventType = "aggregates_changed"
	EventTypeRegistered        EventType = "registered"
)

// EntityType is the subject half of an event name
type EntityType string

const (
	EntityTypeLoan    EntityType = "loan"
	EntityTypePayment EntityType = "payment"
	EntityTypeChain   EntityType = "chain"
)

// Event is one message of the ledger change feed.
// Format: { type, entity, loanId, payload, timestamp }
type Event struct {
	Type      string      `json:"type"` // e.g. "payment.recorded"
	Entity    EntityType  `json:"entity"`
	LoanID    int32       `json:"loanId"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewEvent creates an event about one loan
func NewEvent(eventType EventType, entityType EntityType, loanID int32, payload interface{}) Event {
	return Event{
		Type:      fmt.Sprintf("%s.%s", entityType, eventType),
		Entity:    entityType,
		LoanID:    loanID,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON serializes the event to JSON bytes
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// PaymentRecorded creates a payment.recorded event
func PaymentRecorded(loanID int32, payload interface{}) Event {
	return NewEvent(EventTypeRecorded, EntityTypePayment, loanID, payload)
}

// PaymentUpdated creates a payment.updated event
func PaymentUpdated(loanID int32, payload interface{}) Event {
	return NewEvent(EventTypeUpdated, EntityTypePayment, loanID, payload)
}

// PaymentDeleted creates a payment.deleted event
func PaymentDeleted(loanID int32, payload interface{}) Event {
	return NewEvent(EventTypeDeleted, EntityTypePayment, loanID, payload)
}

// ChainCompleted creates a chain.completed event
func ChainCompleted(loanID int32, payload interface{}) Event {
	return NewEvent(EventTypeCompleted, EntityTypeChain, loanID, payload)
}

// LoanRegistered creates a loan.registered event
func LoanRegistered(loanID int32, payload interface{}) Event {
	return NewEvent(EventTypeRegistered, EntityTypeLoan, loanID, payload)
}

// LoanAggregatesChanged creates a loan.aggregates_changed event
func LoanAggregatesChanged(loanID int32, payload interface{}) Event {
	return NewEvent(EventTypeAggregatesChanged, EntityTypeLoan, loanID, payload)
}
