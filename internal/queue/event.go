// Package queue defines the domain events exchanged over the message broker
// and the consumer that records them.
package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types published by the service.
const (
	TypeReservationCreated   = "reservation.created"
	TypeReservationCancelled = "reservation.cancelled"
	TypeReservationDeleted   = "reservation.deleted"
	TypeSessionStarted       = "session.started"
	TypeSessionEnded         = "session.ended"
	TypeMaintenanceSweep     = "maintenance.sweep"
)

// Event is the envelope put on the queue.  Payload holds one of the typed
// payloads below, selected by Type.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// NewEvent wraps payload in an envelope with a fresh id.
func NewEvent(typ string, at time.Time, payload any) (Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:         uuid.NewString(),
		Type:       typ,
		OccurredAt: at.UTC(),
		Payload:    body,
	}, nil
}

// Publisher delivers events to the broker.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// ReservationCreated is published after a reservation and its client links commit.
type ReservationCreated struct {
	ReservationID   uint64    `json:"id_reservation"`
	StationID       uint64    `json:"id_station"`
	DateReservation time.Time `json:"date_reservation"`
	ClientIDs       []uint64  `json:"client_ids"`
}

// ReservationCancelled is published when a client drops out of a
// reservation.  Deleted is true when no client remained and the
// reservation itself was removed.
type ReservationCancelled struct {
	ReservationID uint64 `json:"id_reservation"`
	ClientID      uint64 `json:"id_client"`
	Deleted       bool   `json:"deleted"`
}

// ReservationDeleted is published when an admin removes a reservation.
type ReservationDeleted struct {
	ReservationID uint64 `json:"id_reservation"`
}

// SessionChanged is the payload of session.started and session.ended.
type SessionChanged struct {
	SessionID     uint64 `json:"id_session"`
	ReservationID uint64 `json:"id_reservation,omitempty"`
}

// SweepCompleted reports the rows touched by a maintenance sweep.
type SweepCompleted struct {
	TerminatedSessions  int64 `json:"terminated_sessions"`
	DeletedReservations int64 `json:"deleted_reservations"`
}
