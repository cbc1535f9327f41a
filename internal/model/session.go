package model

import "time"

// SessionState is derived from fin_session.
type SessionState string

const (
	SessionRunning SessionState = "running"
	SessionEnded   SessionState = "ended"
)

// Session is a `sessiondejeu` row joined with its reservation and station.
type Session struct {
	ID              uint64       `json:"id_session"`
	Debut           time.Time    `json:"debut_session"`
	Fin             *time.Time   `json:"fin_session"`
	ReservationID   uint64       `json:"id_reservation"`
	DateReservation time.Time    `json:"date_reservation"`
	StationID       uint64       `json:"id_station"`
	Plateforme      Platform     `json:"plateforme"`
	Clients         string       `json:"clients"`
	Status          SessionState `json:"status"`
}

// State returns running while fin_session is unset.
func (s Session) State() SessionState {
	if s.Fin == nil {
		return SessionRunning
	}
	return SessionEnded
}
