package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/gamezone-reservation/internal/model"
)

// ReservationRepo provides persistence for reservations and their client
// links.  A reservation occupies one slot hour on one station; the
// generated `slot_start` column and the unique key on
// (id_station, slot_start) make a second reservation in the same slot fail
// with a duplicate-key error.  All timestamps are UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// SlotTakenTx reports whether any reservation already holds the slot that
// contains at.  This is a plain read; concurrent inserts into the same slot
// are settled by the unique slot key.
func (r *ReservationRepo) SlotTakenTx(ctx context.Context, tx *sql.Tx, stationID uint64, at time.Time) (bool, error) {
	var id uint64
	err := tx.QueryRowContext(ctx,
		`SELECT id_reservation FROM reservation WHERE id_station = ? AND slot_start = ? LIMIT 1`,
		stationID, model.SlotStart(at)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateTx inserts a reservation inside the caller's transaction.  A
// duplicate slot maps to ErrSlotTaken and a missing station to ErrForeignKey.
// A deadlock or lock wait timeout on insert means another transaction is
// writing the same slot, so it is reported as ErrSlotTaken as well.  at is
// truncated to the second because DATETIME(0) rounds fractions, which could
// carry 10:59:59.6 into the next slot.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, stationID uint64, at time.Time) (uint64, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO reservation (date_reservation, id_station) VALUES (?, ?)`,
		at.UTC().Truncate(time.Second), stationID)
	if err != nil {
		switch {
		case IsDuplicate(err), IsLockConflict(err):
			return 0, ErrSlotTaken
		case IsForeignKey(err):
			return 0, ErrForeignKey
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// LinkClientsTx attaches clients to a reservation in a single statement.
// Duplicates in clientIDs are collapsed.  An unknown client id fails the
// whole insert with ErrForeignKey.
func (r *ReservationRepo) LinkClientsTx(ctx context.Context, tx *sql.Tx, reservationID uint64, clientIDs []uint64) error {
	if len(clientIDs) == 0 {
		return nil
	}
	seen := make(map[uint64]bool, len(clientIDs))
	query := `INSERT INTO client_reservation (id_client, id_reservation) VALUES `
	args := make([]any, 0, len(clientIDs)*2)
	for _, id := range clientIDs {
		if seen[id] {
			continue
		}
		if len(seen) > 0 {
			query += ","
		}
		seen[id] = true
		query += "(?, ?)"
		args = append(args, id, reservationID)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	if IsForeignKey(err) {
		return ErrForeignKey
	}
	return err
}

// OwnedTx loads the booked time and session flag of a reservation linked to
// clientID, locking the row.  ErrNotFound covers both a missing reservation
// and one that belongs to someone else.
func (r *ReservationRepo) OwnedTx(ctx context.Context, tx *sql.Tx, reservationID, clientID uint64) (time.Time, bool, error) {
	const q = `SELECT r.date_reservation,
                      EXISTS (SELECT 1 FROM sessiondejeu sd WHERE sd.id_reservation = r.id_reservation)
               FROM reservation r
               JOIN client_reservation cr ON cr.id_reservation = r.id_reservation
               WHERE r.id_reservation = ? AND cr.id_client = ?
               FOR UPDATE`
	var (
		at         time.Time
		hasSession bool
	)
	err := tx.QueryRowContext(ctx, q, reservationID, clientID).Scan(&at, &hasSession)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, ErrNotFound
	}
	return at, hasSession, err
}

// UnlinkClientTx removes one client from a reservation and returns how many
// clients remain linked.
func (r *ReservationRepo) UnlinkClientTx(ctx context.Context, tx *sql.Tx, reservationID, clientID uint64) (int, error) {
	res, err := tx.ExecContext(ctx,
		`DELETE FROM client_reservation WHERE id_reservation = ? AND id_client = ?`, reservationID, clientID)
	if err != nil {
		return 0, err
	}
	if err := requireAffected(res); err != nil {
		return 0, err
	}
	var n int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM client_reservation WHERE id_reservation = ?`, reservationID).Scan(&n)
	return n, err
}

// DeleteTx removes a reservation inside tx.
func (r *ReservationRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM reservation WHERE id_reservation = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// Delete removes a reservation; client links and sessions cascade.
func (r *ReservationRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reservation WHERE id_reservation = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// reservationSelect joins station, clients and the latest session.  The
// WHERE clause only ever references `r`, so the same condition drives the
// count query.
const reservationSelect = `SELECT r.id_reservation, r.date_reservation, r.id_station, s.plateforme, b.config_pc,
           COALESCE(GROUP_CONCAT(DISTINCT CONCAT(c.prenom, ' ', c.nom) ORDER BY c.nom, c.prenom SEPARATOR ', '), ''),
           COUNT(DISTINCT cr.id_client),
           sd.id_session, sd.debut_session, sd.fin_session
    FROM reservation r
    JOIN stationjeu s ON s.id_station = r.id_station
    LEFT JOIN bureau b ON b.id_station = r.id_station
    LEFT JOIN client_reservation cr ON cr.id_reservation = r.id_reservation
    LEFT JOIN client c ON c.id_client = cr.id_client
    LEFT JOIN sessiondejeu sd ON sd.id_session =
        (SELECT MAX(s2.id_session) FROM sessiondejeu s2 WHERE s2.id_reservation = r.id_reservation)`

const reservationGroup = ` GROUP BY r.id_reservation, r.date_reservation, r.id_station, s.plateforme, b.config_pc,
           sd.id_session, sd.debut_session, sd.fin_session`

func scanReservation(row rowScanner) (model.Reservation, error) {
	var (
		m         model.Reservation
		cfg       sql.NullString
		sessionID sql.NullInt64
		debut     sql.NullTime
		fin       sql.NullTime
	)
	if err := row.Scan(&m.ID, &m.Date, &m.StationID, &m.Plateforme, &cfg,
		&m.Clients, &m.NombreClients, &sessionID, &debut, &fin); err != nil {
		return m, err
	}
	if cfg.Valid {
		v := cfg.String
		m.ConfigPC = &v
	}
	if sessionID.Valid {
		v := uint64(sessionID.Int64)
		m.SessionID = &v
	}
	if debut.Valid {
		v := debut.Time
		m.DebutSession = &v
	}
	if fin.Valid {
		v := fin.Time
		m.FinSession = &v
	}
	return m, nil
}

// List returns reservations matching f, newest first, and the total
// number of matches ignoring pagination.
func (r *ReservationRepo) List(ctx context.Context, f model.ReservationFilter) ([]model.Reservation, int64, error) {
	where := []string{}
	args := []any{}
	if f.StationID != 0 {
		where = append(where, "r.id_station = ?")
		args = append(args, f.StationID)
	}
	if f.ClientID != 0 {
		where = append(where, "r.id_reservation IN (SELECT id_reservation FROM client_reservation WHERE id_client = ?)")
		args = append(args, f.ClientID)
	}
	if f.From != nil {
		where = append(where, "r.date_reservation >= ?")
		args = append(args, f.From.UTC())
	}
	if f.To != nil {
		where = append(where, "r.date_reservation < ?")
		args = append(args, f.To.UTC())
	}
	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reservation r WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dataSQL := reservationSelect + ` WHERE ` + cond + reservationGroup + ` ORDER BY r.date_reservation DESC`
	dataArgs := append([]any{}, args...)
	if f.PageSize > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		dataSQL += ` LIMIT ? OFFSET ?`
		dataArgs = append(dataArgs, f.PageSize, (page-1)*f.PageSize)
	}
	rows, err := r.db.QueryContext(ctx, dataSQL, dataArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := []model.Reservation{}
	for rows.Next() {
		m, err := scanReservation(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// GetByID returns one reservation with its client list.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (model.ReservationDetail, error) {
	var det model.ReservationDetail
	res, err := scanReservation(r.db.QueryRowContext(ctx,
		reservationSelect+` WHERE r.id_reservation = ?`+reservationGroup, id))
	if errors.Is(err, sql.ErrNoRows) {
		return det, ErrNotFound
	}
	if err != nil {
		return det, err
	}
	det.Reservation = res

	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id_client, c.nom, c.prenom, c.email
         FROM client_reservation cr
         JOIN client c ON c.id_client = cr.id_client
         WHERE cr.id_reservation = ?
         ORDER BY c.nom, c.prenom`, id)
	if err != nil {
		return det, err
	}
	defer rows.Close()
	det.ClientList = []model.ReservationClient{}
	for rows.Next() {
		var c model.ReservationClient
		if err := rows.Scan(&c.ID, &c.Nom, &c.Prenom, &c.Email); err != nil {
			return det, err
		}
		det.ClientList = append(det.ClientList, c)
	}
	return det, rows.Err()
}

// IsLinked reports whether clientID is one of the reservation's clients.
func (r *ReservationRepo) IsLinked(ctx context.Context, reservationID, clientID uint64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM client_reservation WHERE id_reservation = ? AND id_client = ?`,
		reservationID, clientID).Scan(&n)
	return n > 0, err
}

// DeleteExpiredUnused removes reservations booked before cutoff that never
// had a session.
func (r *ReservationRepo) DeleteExpiredUnused(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM reservation
         WHERE date_reservation < ?
           AND id_reservation NOT IN (SELECT id_reservation FROM sessiondejeu)`,
		cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
