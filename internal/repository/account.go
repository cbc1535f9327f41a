package repository

import (
	"context"
	"strings"

	"github.com/iliyamo/gamezone-reservation/internal/model"
)

// AccountStore is the behaviour auth needs from either account table.
// AdminRepo and ClientRepo each implement it against their own table.
type AccountStore interface {
	Kind() model.AccountKind
	GetByID(ctx context.Context, id uint64) (model.Account, error)
	GetByEmail(ctx context.Context, email string) (model.Account, error)
	UpdatePassword(ctx context.Context, id uint64, hash string) error
	Delete(ctx context.Context, id uint64) error
}

// NormalizeEmail lower-cases and trims an address before it touches SQL.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var (
	_ AccountStore = (*AdminRepo)(nil)
	_ AccountStore = (*ClientRepo)(nil)
)
