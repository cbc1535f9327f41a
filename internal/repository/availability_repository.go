package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/gamezone-reservation/internal/availability"
	"github.com/iliyamo/gamezone-reservation/internal/model"
)

// AvailabilityRepo is the SQL implementation of availability.Store.  Window
// bounds come from the caller's clock; no statement reads NOW().
type AvailabilityRepo struct {
	db *sql.DB
}

func NewAvailabilityRepo(db *sql.DB) *AvailabilityRepo { return &AvailabilityRepo{db: db} }

var _ availability.Store = (*AvailabilityRepo)(nil)

// unresolved matches a reservation `r` that has no ended session.
const unresolved = `NOT EXISTS (SELECT 1 FROM sessiondejeu sx
                     WHERE sx.id_reservation = r.id_reservation AND sx.fin_session IS NOT NULL)`

// windowCond returns the date predicate on `r` for w and its arguments.
func windowCond(w availability.Window) (string, []any) {
	if w.To == nil {
		return "r.date_reservation >= ?", []any{w.From.UTC()}
	}
	return "r.date_reservation >= ? AND r.date_reservation < ?", []any{w.From.UTC(), w.To.UTC()}
}

func (r *AvailabilityRepo) StationExists(ctx context.Context, id uint64) (bool, error) {
	var got uint64
	err := r.db.QueryRowContext(ctx, `SELECT id_station FROM stationjeu WHERE id_station = ?`, id).Scan(&got)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *AvailabilityRepo) ActiveSessions(ctx context.Context, stationID uint64) ([]availability.ActiveSession, error) {
	const q = `SELECT sd.id_session, sd.id_reservation, sd.debut_session
               FROM sessiondejeu sd
               JOIN reservation r ON r.id_reservation = sd.id_reservation
               WHERE r.id_station = ? AND sd.fin_session IS NULL
               ORDER BY sd.debut_session`
	rows, err := r.db.QueryContext(ctx, q, stationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []availability.ActiveSession{}
	for rows.Next() {
		var a availability.ActiveSession
		if err := rows.Scan(&a.SessionID, &a.ReservationID, &a.Debut); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *AvailabilityRepo) Conflicts(ctx context.Context, stationID uint64, w availability.Window) ([]availability.Conflict, error) {
	cond, args := windowCond(w)
	q := `SELECT r.id_reservation, r.date_reservation,
                 EXISTS (SELECT 1 FROM sessiondejeu s2 WHERE s2.id_reservation = r.id_reservation)
          FROM reservation r
          WHERE r.id_station = ? AND ` + cond + ` AND ` + unresolved + `
          ORDER BY r.date_reservation`
	rows, err := r.db.QueryContext(ctx, q, append([]any{stationID}, args...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []availability.Conflict{}
	for rows.Next() {
		var c availability.Conflict
		if err := rows.Scan(&c.ReservationID, &c.Date, &c.HasSession); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// stationViewSelect is the station listing with its counters for one
// window.  Window placeholders come first in the argument list.
func stationViewSelect(cond string) string {
	return `SELECT s.id_station, s.plateforme, b.config_pc, e.nombre_manettes,
                 (SELECT COUNT(*) FROM reservation r WHERE r.id_station = s.id_station),
                 (SELECT COUNT(*) FROM sessiondejeu sd
                    JOIN reservation r ON r.id_reservation = sd.id_reservation
                   WHERE r.id_station = s.id_station AND sd.fin_session IS NULL),
                 (SELECT COUNT(*) FROM reservation r
                   WHERE r.id_station = s.id_station AND ` + cond + ` AND ` + unresolved + `)
          FROM stationjeu s
          LEFT JOIN bureau b ON b.id_station = s.id_station
          LEFT JOIN espaceconsole e ON e.id_station = s.id_station`
}

func scanStationView(row rowScanner) (model.StationView, error) {
	var (
		v        model.StationView
		cfg      sql.NullString
		manettes sql.NullInt64
	)
	if err := row.Scan(&v.ID, &v.Plateforme, &cfg, &manettes,
		&v.TotalReservations, &v.ActiveSessions, &v.Conflicts); err != nil {
		return model.StationView{}, err
	}
	if cfg.Valid {
		c := cfg.String
		v.ConfigPC = &c
	}
	if manettes.Valid {
		n := int(manettes.Int64)
		v.NombreManettes = &n
	}
	return v, nil
}

// Stations returns every station with its counters for w in one query.
func (r *AvailabilityRepo) Stations(ctx context.Context, w availability.Window) ([]model.StationView, error) {
	cond, args := windowCond(w)
	rows, err := r.db.QueryContext(ctx, stationViewSelect(cond)+` ORDER BY s.id_station`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.StationView{}
	for rows.Next() {
		v, err := scanStationView(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Station returns one station with its counters for w.  ok is false when
// the station does not exist.
func (r *AvailabilityRepo) Station(ctx context.Context, id uint64, w availability.Window) (model.StationView, bool, error) {
	cond, args := windowCond(w)
	args = append(args, id)
	v, err := scanStationView(r.db.QueryRowContext(ctx, stationViewSelect(cond)+` WHERE s.id_station = ?`, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return model.StationView{}, false, nil
	}
	if err != nil {
		return model.StationView{}, false, err
	}
	return v, true, nil
}
