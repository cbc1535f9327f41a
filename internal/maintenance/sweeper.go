// Package maintenance closes stale sessions and drops reservations that
// expired without ever being used.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/iliyamo/gamezone-reservation/internal/queue"
	"github.com/iliyamo/gamezone-reservation/internal/repository"
	"github.com/iliyamo/gamezone-reservation/internal/service"
)

// Result counts the rows each statement touched.
type Result struct {
	TerminatedSessions  int64 `json:"terminatedSessions"`
	DeletedReservations int64 `json:"deletedReservations"`
}

// Sweeper runs the two maintenance statements.  Each one autocommits on
// its own, so a failure in the second leaves the first applied.  Running
// the sweep again right away touches nothing.
type Sweeper struct {
	Sessions          *repository.SessionRepo
	Reservations      *repository.ReservationRepo
	SessionMaxAge     time.Duration
	ReservationMaxAge time.Duration
	Now               func() time.Time
	Events            *service.Emitter
	Logger            *slog.Logger
}

// Run force-ends sessions running longer than SessionMaxAge and deletes
// reservations dated more than ReservationMaxAge ago that have no session.
func (s *Sweeper) Run(ctx context.Context) (Result, error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	at := now().UTC()

	var res Result
	n, err := s.Sessions.TerminateStale(ctx, at.Add(-s.SessionMaxAge), at)
	if err != nil {
		return res, fmt.Errorf("terminate stale sessions: %w", err)
	}
	res.TerminatedSessions = n

	n, err = s.Reservations.DeleteExpiredUnused(ctx, at.Add(-s.ReservationMaxAge))
	if err != nil {
		return res, fmt.Errorf("delete expired reservations: %w", err)
	}
	res.DeletedReservations = n

	if s.Logger != nil {
		s.Logger.Info("maintenance sweep",
			"terminated_sessions", res.TerminatedSessions,
			"deleted_reservations", res.DeletedReservations)
	}
	s.Events.Emit(queue.TypeMaintenanceSweep, queue.SweepCompleted{
		TerminatedSessions:  res.TerminatedSessions,
		DeletedReservations: res.DeletedReservations,
	})
	return res, nil
}
