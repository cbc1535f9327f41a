package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/gamezone-reservation/internal/model"
)

// StationRepo persists gaming stations.  A station is one `stationjeu` row
// plus exactly one payload row: `bureau` for PCs, `espaceconsole` for
// consoles.  Payload rows are removed by the foreign key cascade when the
// station is deleted.
type StationRepo struct {
	db *sql.DB
}

// NewStationRepo returns a StationRepo bound to the given database.
func NewStationRepo(db *sql.DB) *StationRepo { return &StationRepo{db: db} }

// StationInput carries the fields accepted on create and update.  ConfigPC
// is only used for PCs and NombreManettes only for consoles.
type StationInput struct {
	Plateforme     model.Platform
	ConfigPC       string
	NombreManettes int
}

const stationSelect = `SELECT s.id_station, s.plateforme, b.config_pc, e.nombre_manettes
               FROM stationjeu s
               LEFT JOIN bureau b ON b.id_station = s.id_station
               LEFT JOIN espaceconsole e ON e.id_station = s.id_station`

type rowScanner interface{ Scan(...any) error }

func scanStation(row rowScanner) (model.Station, error) {
	var (
		s        model.Station
		cfg      sql.NullString
		manettes sql.NullInt64
	)
	if err := row.Scan(&s.ID, &s.Plateforme, &cfg, &manettes); err != nil {
		return s, err
	}
	if cfg.Valid {
		v := cfg.String
		s.ConfigPC = &v
	}
	if manettes.Valid {
		v := int(manettes.Int64)
		s.NombreManettes = &v
	}
	return s, nil
}

// List returns every station ordered by id.
func (r *StationRepo) List(ctx context.Context) ([]model.Station, error) {
	rows, err := r.db.QueryContext(ctx, stationSelect+` ORDER BY s.id_station`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Station{}
	for rows.Next() {
		s, err := scanStation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetByID returns a station or ErrNotFound.
func (r *StationRepo) GetByID(ctx context.Context, id uint64) (model.Station, error) {
	s, err := scanStation(r.db.QueryRowContext(ctx, stationSelect+` WHERE s.id_station = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrNotFound
	}
	return s, err
}

// Count returns the number of stations.
func (r *StationRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM stationjeu`).Scan(&n)
	return n, err
}

// LockTx takes a shared lock on the station row inside tx and reports
// ErrNotFound when it does not exist.  Holding the lock keeps the station
// from being deleted while a reservation for it is being inserted.
func (r *StationRepo) LockTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	var got uint64
	err := tx.QueryRowContext(ctx, `SELECT id_station FROM stationjeu WHERE id_station = ? LOCK IN SHARE MODE`, id).Scan(&got)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// Create inserts the station row and its payload in one transaction.
func (r *StationRepo) Create(ctx context.Context, in StationInput) (uint64, error) {
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

	res, err := tx.ExecContext(ctx, `INSERT INTO stationjeu (plateforme) VALUES (?)`, string(in.Plateforme))
	if err != nil {
		return 0, err
	}
	id64, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	id := uint64(id64)
	if err := insertPayloadTx(ctx, tx, id, in); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return id, nil
}

// Update replaces the platform and payload of an existing station.  Both
// payload rows are deleted and the one matching the new platform is
// inserted, so switching platform never leaves a stale payload behind.
func (r *StationRepo) Update(ctx context.Context, id uint64, in StationInput) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `UPDATE stationjeu SET plateforme = ? WHERE id_station = ?`, string(in.Plateforme), id)
	if err != nil {
		return err
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM bureau WHERE id_station = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM espaceconsole WHERE id_station = ?`, id); err != nil {
		return err
	}
	if err := insertPayloadTx(ctx, tx, id, in); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func insertPayloadTx(ctx context.Context, tx *sql.Tx, id uint64, in StationInput) error {
	var err error
	switch in.Plateforme {
	case model.PlatformPC:
		cfg := in.ConfigPC
		if cfg == "" {
			cfg = model.DefaultPCConfig
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO bureau (id_station, config_pc) VALUES (?, ?)`, id, cfg)
	case model.PlatformConsole:
		n := in.NombreManettes
		if n == 0 {
			n = model.DefaultControllers
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO espaceconsole (id_station, nombre_manettes) VALUES (?, ?)`, id, n)
	default:
		return errors.New("unknown platform")
	}
	return err
}

// Delete removes a station.  Payload rows, reservations, client links and
// sessions go with it through ON DELETE CASCADE.
func (r *StationRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM stationjeu WHERE id_station = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}
