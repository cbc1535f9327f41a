// Package availability decides whether a gaming station can be used now or
// at a given instant.
//
// A station is blocked by a running session (a session with no end) at any
// time, and by an unresolved reservation in the window being asked about.  A
// reservation is resolved once its session has ended.  For a "now" query the
// window is the current slot hour and everything after it; for a query at T
// it is the slot hour containing T.  When both apply, the running session
// wins.
package availability

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/gamezone-reservation/internal/model"
)

// ErrStationNotFound is returned for an unknown station id.
var ErrStationNotFound = errors.New("station not found")

// Window bounds the reservations that can block a station.  A nil To means
// the window is open ended.
type Window struct {
	From time.Time
	To   *time.Time
}

// NowWindow covers the slot holding now and every later slot.
func NowWindow(now time.Time) Window {
	return Window{From: model.SlotStart(now)}
}

// SlotWindow covers exactly the slot hour holding t.
func SlotWindow(t time.Time) Window {
	from := model.SlotStart(t)
	to := from.Add(model.SlotDuration)
	return Window{From: from, To: &to}
}

// Conflict is an unresolved reservation inside a window.
type Conflict struct {
	ReservationID uint64    `json:"id_reservation"`
	Date          time.Time `json:"date_reservation"`
	HasSession    bool      `json:"has_session"`
}

// ActiveSession is a session that has started and not ended.
type ActiveSession struct {
	SessionID     uint64    `json:"id_session"`
	ReservationID uint64    `json:"id_reservation"`
	Debut         time.Time `json:"debut_session"`
}

// Store is the read model the resolver needs.  The SQL implementation is
// repository.AvailabilityRepo.
type Store interface {
	StationExists(ctx context.Context, id uint64) (bool, error)
	ActiveSessions(ctx context.Context, stationID uint64) ([]ActiveSession, error)
	Conflicts(ctx context.Context, stationID uint64, w Window) ([]Conflict, error)
	// Stations returns every station with TotalReservations, ActiveSessions
	// and Conflicts filled in for w.  Status and Available are left to the
	// resolver.
	Stations(ctx context.Context, w Window) ([]model.StationView, error)
	// Station is Stations for a single id.  ok is false for an unknown id.
	Station(ctx context.Context, id uint64, w Window) (v model.StationView, ok bool, err error)
}
