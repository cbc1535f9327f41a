package model

import "time"

// SlotDuration is the length of one bookable slot.  A station holds at most
// one reservation per slot.
const SlotDuration = time.Hour

// SlotStart returns the start of the UTC hour containing t.
func SlotStart(t time.Time) time.Time {
	return t.UTC().Truncate(SlotDuration)
}

// Reservation is a `reservation` row joined with its station, clients and
// (optional) session.
//
// Fields:
//  ID            – id_reservation.
//  Date          – date_reservation, the booked instant (UTC).
//  StationID     – id_station.
//  Plateforme    – platform of the station.
//  Clients       – "Prenom Nom" of every linked client, comma separated.
//  NombreClients – number of linked clients.
//  SessionID     – linked session, nil when none was started.
//  DebutSession  – session start.
//  FinSession    – session end, nil while the session runs.
type Reservation struct {
	ID            uint64     `json:"id_reservation"`
	Date          time.Time  `json:"date_reservation"`
	StationID     uint64     `json:"id_station"`
	Plateforme    Platform   `json:"plateforme"`
	ConfigPC      *string    `json:"config_pc,omitempty"`
	Clients       string     `json:"clients"`
	NombreClients int        `json:"nombre_clients"`
	SessionID     *uint64    `json:"id_session"`
	DebutSession  *time.Time `json:"debut_session"`
	FinSession    *time.Time `json:"fin_session"`
}

// Resolved reports whether the reservation's session has ended.  Resolved
// reservations never block availability.
func (r Reservation) Resolved() bool {
	return r.SessionID != nil && r.FinSession != nil
}

// ReservationClient is a client linked to a reservation.
type ReservationClient struct {
	ID     uint64 `json:"id_client"`
	Nom    string `json:"nom"`
	Prenom string `json:"prenom"`
	Email  string `json:"email"`
}

// ReservationDetail is a single reservation with its client list.
type ReservationDetail struct {
	Reservation
	ClientList []ReservationClient `json:"client_list"`
}

// ReservationFilter narrows the admin listing.  Zero values disable a filter.
type ReservationFilter struct {
	StationID uint64
	ClientID  uint64
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
}
