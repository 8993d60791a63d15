// internal/models/types.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Condition grades the physical state of a listed book.
type Condition string

const (
	ConditionNew      Condition = "new"
	ConditionLikeNew  Condition = "like_new"
	ConditionVeryGood Condition = "very_good"
	ConditionGood     Condition = "good"
	ConditionFair     Condition = "fair"
	ConditionPoor     Condition = "poor"
)

// Valid reports whether c is one of the known condition grades.
func (c Condition) Valid() bool {
	switch c {
	case ConditionNew, ConditionLikeNew, ConditionVeryGood, ConditionGood, ConditionFair, ConditionPoor:
		return true
	}
	return false
}

// Book represents a listed book owned by a user. Available is false only
// while the book is locked by an accepted trade.
type Book struct {
	ID            uuid.UUID `json:"id"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	Condition     Condition `json:"condition"`
	Genres        []string  `json:"genres,omitempty"`
	ISBN          string    `json:"isbn,omitempty"`
	PublishedYear int       `json:"published_year,omitempty"`
	ImageURL      string    `json:"image_url,omitempty"`
	OwnerID       uuid.UUID `json:"owner_id"`
	Available     bool      `json:"available"`
	Version       int       `json:"version"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Status is the lifecycle state of a trade.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// Terminal reports whether no transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusCancelled || s == StatusCompleted
}

// Trade is a proposed or executed swap of two books between two users.
type Trade struct {
	ID              uuid.UUID `json:"id" db:"id"`
	InitiatorID     uuid.UUID `json:"initiator_id" db:"initiator_id"`
	ReceiverID      uuid.UUID `json:"receiver_id" db:"receiver_id"`
	BookOfferedID   uuid.UUID `json:"book_offered_id" db:"book_offered_id"`
	BookRequestedID uuid.UUID `json:"book_requested_id" db:"book_requested_id"`
	Status          Status    `json:"status" db:"status"`
	Message         string    `json:"message,omitempty" db:"message"`
	Seen            bool      `json:"seen" db:"seen"`
	Version         int       `json:"version" db:"version"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// TradeView is a Trade with its referenced books resolved once at the API
// boundary. The ID fields are always present; the pointers are optional
// projections and may be nil if a record could not be loaded.
type TradeView struct {
	Trade
	BookOffered   *Book `json:"book_offered,omitempty"`
	BookRequested *Book `json:"book_requested,omitempty"`
}

// EventType identifies the kind of notification pushed to a user.
type EventType string

const (
	EventTradeRequest   EventType = "trade_request"
	EventTradeAccepted  EventType = "trade_accepted"
	EventTradeRejected  EventType = "trade_rejected"
	EventTradeCompleted EventType = "trade_completed"
	EventSystem         EventType = "system"
)

// NotificationEvent is produced by the trade engine on a state transition
// and consumed exactly once by the dispatcher. It is never persisted.
type NotificationEvent struct {
	Type           EventType `json:"type"`
	TargetUserID   uuid.UUID `json:"target_user_id"`
	Message        string    `json:"message"`
	RelatedTradeID uuid.UUID `json:"related_trade_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Envelope is the wire message pushed over a live connection.
type Envelope struct {
	Type    EventType    `json:"type"`
	Payload EventPayload `json:"payload"`
}

// EventPayload carries the user-facing content of an Envelope.
type EventPayload struct {
	Message string    `json:"message"`
	TradeID string    `json:"trade_id,omitempty"`
	SentAt  time.Time `json:"sent_at"`
}
