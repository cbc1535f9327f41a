package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/gamezone-reservation/internal/model"
)

// AdminRepo manages rows of the `admin` table.
type AdminRepo struct{ db *sql.DB }

func NewAdminRepo(db *sql.DB) *AdminRepo { return &AdminRepo{db: db} }

func (r *AdminRepo) Kind() model.AccountKind { return model.KindAdmin }

const adminColumns = `id_admin, nom, prenom, email, password`

func scanAdmin(row rowScanner) (model.Account, error) {
	a := model.Account{Kind: model.KindAdmin}
	err := row.Scan(&a.ID, &a.Nom, &a.Prenom, &a.Email, &a.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return a, ErrNotFound
	}
	return a, err
}

// Create inserts an admin with an already hashed password.
func (r *AdminRepo) Create(ctx context.Context, nom, prenom, email, hash string) (uint64, error) {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO admin (nom, prenom, email, password) VALUES (?,?,?,?)",
		nom, prenom, NormalizeEmail(email), hash)
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

// GetByID fetches an admin by id.
func (r *AdminRepo) GetByID(ctx context.Context, id uint64) (model.Account, error) {
	return scanAdmin(r.db.QueryRowContext(ctx,
		"SELECT "+adminColumns+" FROM admin WHERE id_admin=? LIMIT 1", id))
}

// GetByEmail fetches an admin by normalized email.
func (r *AdminRepo) GetByEmail(ctx context.Context, email string) (model.Account, error) {
	return scanAdmin(r.db.QueryRowContext(ctx,
		"SELECT "+adminColumns+" FROM admin WHERE email=? LIMIT 1", NormalizeEmail(email)))
}

func (r *AdminRepo) UpdatePassword(ctx context.Context, id uint64, hash string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE admin SET password=? WHERE id_admin=?", hash, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// Delete removes an admin.  The last remaining admin cannot be deleted;
// the count and the delete run in one transaction so two concurrent
// deletions cannot both pass the check.
func (r *AdminRepo) Delete(ctx context.Context, id uint64) error {
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

	var n int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM admin FOR UPDATE").Scan(&n); err != nil {
		return err
	}
	if n <= 1 {
		return ErrConflict
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM admin WHERE id_admin=?", id)
	if err != nil {
		return err
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// requireAffected turns a zero-row UPDATE or DELETE into ErrNotFound.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
