package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/gamezone-reservation/internal/model"
)

// ErrSessionActive is returned when a reservation already has a running session.
var ErrSessionActive = errors.New("session already active for this reservation")

// SessionRepo persists play sessions (`sessiondejeu`).
type SessionRepo struct{ db *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{db: db} }

const sessionSelect = `SELECT sd.id_session, sd.debut_session, sd.fin_session, sd.id_reservation,
           r.date_reservation, st.id_station, st.plateforme,
           COALESCE(GROUP_CONCAT(CONCAT(c.prenom, ' ', c.nom) ORDER BY c.nom, c.prenom SEPARATOR ', '), '')
    FROM sessiondejeu sd
    JOIN reservation r ON r.id_reservation = sd.id_reservation
    JOIN stationjeu st ON st.id_station = r.id_station
    LEFT JOIN client_reservation cr ON cr.id_reservation = r.id_reservation
    LEFT JOIN client c ON c.id_client = cr.id_client`

const sessionGroup = ` GROUP BY sd.id_session, sd.debut_session, sd.fin_session, sd.id_reservation,
           r.date_reservation, st.id_station, st.plateforme`

func scanSession(row rowScanner) (model.Session, error) {
	var (
		s   model.Session
		fin sql.NullTime
	)
	if err := row.Scan(&s.ID, &s.Debut, &fin, &s.ReservationID,
		&s.DateReservation, &s.StationID, &s.Plateforme, &s.Clients); err != nil {
		return s, err
	}
	if fin.Valid {
		v := fin.Time
		s.Fin = &v
	}
	s.Status = s.State()
	return s, nil
}

func (r *SessionRepo) querySessions(ctx context.Context, q string, args ...any) ([]model.Session, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// List returns every session, most recently started first.
func (r *SessionRepo) List(ctx context.Context) ([]model.Session, error) {
	return r.querySessions(ctx, sessionSelect+sessionGroup+` ORDER BY sd.debut_session DESC`)
}

// Recent returns the n most recently started sessions.
func (r *SessionRepo) Recent(ctx context.Context, n int) ([]model.Session, error) {
	return r.querySessions(ctx, sessionSelect+sessionGroup+` ORDER BY sd.debut_session DESC LIMIT ?`, n)
}

// GetByID returns one session.
func (r *SessionRepo) GetByID(ctx context.Context, id uint64) (model.Session, error) {
	s, err := scanSession(r.db.QueryRowContext(ctx, sessionSelect+` WHERE sd.id_session = ?`+sessionGroup, id))
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrNotFound
	}
	return s, err
}

// Start opens a session for a reservation at the given instant.  The
// reservation row is locked so two concurrent starts cannot both pass the
// running-session check.
func (r *SessionRepo) Start(ctx context.Context, reservationID uint64, at time.Time) (uint64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var got uint64
	err = tx.QueryRowContext(ctx,
		`SELECT id_reservation FROM reservation WHERE id_reservation = ? FOR UPDATE`, reservationID).Scan(&got)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}

	var running int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessiondejeu WHERE id_reservation = ? AND fin_session IS NULL`,
		reservationID).Scan(&running); err != nil {
		return 0, err
	}
	if running > 0 {
		return 0, ErrSessionActive
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO sessiondejeu (debut_session, id_reservation) VALUES (?, ?)`, at.UTC(), reservationID)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return uint64(id), nil
}

// End closes a running session.  ErrNotFound when the session does not
// exist or has already ended.
func (r *SessionRepo) End(ctx context.Context, id uint64, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessiondejeu SET fin_session = ? WHERE id_session = ? AND fin_session IS NULL`, at.UTC(), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// Delete removes a session row.
func (r *SessionRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessiondejeu WHERE id_session = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// TerminateStale ends every session still running that started before
// cutoff, stamping it with at.
func (r *SessionRepo) TerminateStale(ctx context.Context, cutoff, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessiondejeu SET fin_session = ? WHERE fin_session IS NULL AND debut_session < ?`,
		at.UTC(), cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
