// internal/events/types.go
package events

import (
	"time"

	"github.com/rovshanmuradov/cpmm-sniper/internal/domain"
)

// EventType represents the type of event.
type EventType string

const (
	PoolDetected    EventType = "pool.detected"
	AttemptFinished EventType = "attempt.finished"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// PoolDetectedEvent is emitted when an eligible pool passed the gate and a buy is dispatched.
type PoolDetectedEvent struct {
	BaseEvent
	Token domain.EligibleToken
}

// NewPoolDetected builds a PoolDetectedEvent stamped with the current time.
func NewPoolDetected(token domain.EligibleToken) PoolDetectedEvent {
	return PoolDetectedEvent{
		BaseEvent: BaseEvent{EventType: PoolDetected, EventTime: time.Now()},
		Token:     token,
	}
}

// AttemptFinishedEvent carries a terminal buy attempt. Handlers must treat Attempt as read-only.
type AttemptFinishedEvent struct {
	BaseEvent
	Attempt domain.BuyAttempt
}

// NewAttemptFinished copies the attempt into a new event.
func NewAttemptFinished(a *domain.BuyAttempt) AttemptFinishedEvent {
	snapshot := *a
	snapshot.TxIDs = append(snapshot.TxIDs[:0:0], a.TxIDs...)
	return AttemptFinishedEvent{
		BaseEvent: BaseEvent{EventType: AttemptFinished, EventTime: time.Now()},
		Attempt:   snapshot,
	}
}
