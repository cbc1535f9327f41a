// Package booking creates and cancels station reservations.
package booking

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/gamezone-reservation/internal/queue"
	"github.com/iliyamo/gamezone-reservation/internal/repository"
	"github.com/iliyamo/gamezone-reservation/internal/service"
)

var (
	ErrStationNotFound     = errors.New("station not found")
	ErrNotFuture           = errors.New("reservation date must be in the future")
	ErrSlotTaken           = errors.New("station already reserved for this hour")
	ErrClientNotFound      = errors.New("client not found")
	ErrNoClients           = errors.New("at least one client is required")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrAlreadyStarted      = errors.New("cannot cancel a reservation whose session has started")
	ErrTooLate             = errors.New("cannot cancel less than one hour before the reservation")
)

// CancelNotice is the minimum lead time for a client cancellation.
const CancelNotice = time.Hour

// Service owns the transactional reservation workflows.
type Service struct {
	db           *sql.DB
	stations     *repository.StationRepo
	reservations *repository.ReservationRepo
	now          func() time.Time
	events       *service.Emitter
}

// New returns a Service.  A nil clock uses time.Now.
func New(db *sql.DB, now func() time.Time, events *service.Emitter) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		db:           db,
		stations:     repository.NewStationRepo(db),
		reservations: repository.NewReservationRepo(db),
		now:          now,
		events:       events,
	}
}

// Create books the slot holding at on a station for the given clients.
// The reservation and every client link are written in one transaction.
// Two concurrent requests for the same slot cannot both commit: the loser
// either sees the row in the pre-check or hits the unique slot key (or an
// InnoDB deadlock on it), and gets ErrSlotTaken in every case.  at is
// truncated to whole seconds, the precision the reservation column stores.
func (s *Service) Create(ctx context.Context, stationID uint64, at time.Time, clientIDs []uint64) (uint64, error) {
	if len(clientIDs) == 0 {
		return 0, ErrNoClients
	}
	at = at.UTC().Truncate(time.Second)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := s.stations.LockTx(ctx, tx, stationID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, ErrStationNotFound
		}
		return 0, err
	}
	if !at.After(s.now()) {
		return 0, ErrNotFuture
	}
	taken, err := s.reservations.SlotTakenTx(ctx, tx, stationID, at)
	if err != nil {
		return 0, err
	}
	if taken {
		return 0, ErrSlotTaken
	}

	id, err := s.reservations.CreateTx(ctx, tx, stationID, at)
	switch {
	case errors.Is(err, repository.ErrSlotTaken):
		return 0, ErrSlotTaken
	case errors.Is(err, repository.ErrForeignKey):
		return 0, ErrStationNotFound
	case err != nil:
		return 0, err
	}

	if err := s.reservations.LinkClientsTx(ctx, tx, id, clientIDs); err != nil {
		if errors.Is(err, repository.ErrForeignKey) {
			return 0, ErrClientNotFound
		}
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true

	s.events.Emit(queue.TypeReservationCreated, queue.ReservationCreated{
		ReservationID:   id,
		StationID:       stationID,
		DateReservation: at,
		ClientIDs:       clientIDs,
	})
	return id, nil
}

// Cancel removes clientID from a reservation it belongs to.  The
// reservation must not have a session and must start more than
// CancelNotice from now.  When the last client leaves, the reservation is
// deleted and deleted is true.
func (s *Service) Cancel(ctx context.Context, reservationID, clientID uint64) (deleted bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	at, hasSession, err := s.reservations.OwnedTx(ctx, tx, reservationID, clientID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, ErrReservationNotFound
	}
	if err != nil {
		return false, err
	}
	if hasSession {
		return false, ErrAlreadyStarted
	}
	if !at.After(s.now().Add(CancelNotice)) {
		return false, ErrTooLate
	}

	remaining, err := s.reservations.UnlinkClientTx(ctx, tx, reservationID, clientID)
	if err != nil {
		return false, err
	}
	if remaining == 0 {
		if err := s.reservations.DeleteTx(ctx, tx, reservationID); err != nil {
			return false, err
		}
		deleted = true
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	committed = true

	s.events.Emit(queue.TypeReservationCancelled, queue.ReservationCancelled{
		ReservationID: reservationID,
		ClientID:      clientID,
		Deleted:       deleted,
	})
	return deleted, nil
}

// Delete removes a reservation unconditionally.  Client links and
// sessions go with it.
func (s *Service) Delete(ctx context.Context, reservationID uint64) error {
	if err := s.reservations.Delete(ctx, reservationID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrReservationNotFound
		}
		return err
	}
	s.events.Emit(queue.TypeReservationDeleted, queue.ReservationDeleted{ReservationID: reservationID})
	return nil
}
