package middleware

// identity.go holds the context keys JWTAuth fills in and the accessors
// handlers and other middleware use to read them back.

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gamezone-reservation/internal/model"
	"github.com/iliyamo/gamezone-reservation/internal/utils"
)

const (
	ctxAccount = "account"
	ctxKind    = "account_kind"
)

// SetPrincipal stores the authenticated account on the context.
func SetPrincipal(c echo.Context, a model.Account) {
	c.Set(ctxAccount, a)
	c.Set(ctxKind, a.Kind)
}

// Principal returns the authenticated account, if any.
func Principal(c echo.Context) (model.Account, bool) {
	a, ok := c.Get(ctxAccount).(model.Account)
	return a, ok
}

// Kind returns the authenticated account kind, or "" for anonymous requests.
func Kind(c echo.Context) model.AccountKind {
	k, _ := c.Get(ctxKind).(model.AccountKind)
	return k
}

// AccountID returns the authenticated account id, or 0.
func AccountID(c echo.Context) uint64 {
	a, _ := Principal(c)
	return a.ID
}

// userID renders the caller for rate-limit keys.  The limiter runs before
// JWTAuth, so when no principal is set yet the bearer token is verified
// here and its subject used.  Anonymous callers and bad tokens are "guest".
func userID(c echo.Context, secret string) string {
	if a, ok := Principal(c); ok {
		return string(a.Kind) + "-" + strconv.FormatUint(a.ID, 10)
	}
	raw, ok := bearerToken(c)
	if !ok || secret == "" {
		return "guest"
	}
	kind, id, _, err := utils.ParseAccessToken(secret, raw)
	if err != nil {
		return "guest"
	}
	return string(kind) + "-" + strconv.FormatUint(id, 10)
}
