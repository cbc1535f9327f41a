package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/gamezone-reservation/internal/model"
)

// ClientRepo manages rows of the `client` table.  Clients created by an
// admin have no password and cannot log in until one is set.
type ClientRepo struct{ db *sql.DB }

func NewClientRepo(db *sql.DB) *ClientRepo { return &ClientRepo{db: db} }

func (r *ClientRepo) Kind() model.AccountKind { return model.KindClient }

func scanClient(row rowScanner) (model.Account, error) {
	a := model.Account{Kind: model.KindClient}
	var hash sql.NullString
	err := row.Scan(&a.ID, &a.Nom, &a.Prenom, &a.Email, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return a, ErrNotFound
	}
	a.PasswordHash = hash.String
	return a, err
}

// Create inserts a client.  An empty hash stores NULL.
func (r *ClientRepo) Create(ctx context.Context, nom, prenom, email, hash string) (uint64, error) {
	var pw sql.NullString
	if hash != "" {
		pw = sql.NullString{String: hash, Valid: true}
	}
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO client (nom, prenom, email, password) VALUES (?,?,?,?)",
		nom, prenom, NormalizeEmail(email), pw)
	if err != nil {
		if IsDuplicate(err) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

func (r *ClientRepo) GetByID(ctx context.Context, id uint64) (model.Account, error) {
	return scanClient(r.db.QueryRowContext(ctx,
		"SELECT id_client, nom, prenom, email, password FROM client WHERE id_client=? LIMIT 1", id))
}

func (r *ClientRepo) GetByEmail(ctx context.Context, email string) (model.Account, error) {
	return scanClient(r.db.QueryRowContext(ctx,
		"SELECT id_client, nom, prenom, email, password FROM client WHERE email=? LIMIT 1", NormalizeEmail(email)))
}

// List returns every client with its reservation count, newest first.
func (r *ClientRepo) List(ctx context.Context) ([]model.ClientSummary, error) {
	const q = `SELECT c.id_client, c.nom, c.prenom, c.email, COUNT(cr.id_reservation)
               FROM client c
               LEFT JOIN client_reservation cr ON cr.id_client = c.id_client
               GROUP BY c.id_client, c.nom, c.prenom, c.email
               ORDER BY c.id_client DESC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.ClientSummary{}
	for rows.Next() {
		var c model.ClientSummary
		if err := rows.Scan(&c.ID, &c.Nom, &c.Prenom, &c.Email, &c.TotalReservations); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateProfile replaces name and email.  A taken email yields ErrEmailExists.
func (r *ClientRepo) UpdateProfile(ctx context.Context, id uint64, nom, prenom, email string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE client SET nom=?, prenom=?, email=? WHERE id_client=?",
		nom, prenom, NormalizeEmail(email), id)
	if err != nil {
		if IsDuplicate(err) {
			return ErrEmailExists
		}
		return err
	}
	return requireAffected(res)
}

func (r *ClientRepo) UpdatePassword(ctx context.Context, id uint64, hash string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE client SET password=? WHERE id_client=?", hash, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// Delete removes a client; its reservation links cascade.
func (r *ClientRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM client WHERE id_client=?", id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}
