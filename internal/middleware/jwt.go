package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"errors"   // errors matches repository sentinels
	"net/http" // HTTP status codes for responses
	"strings"  // string utilities for prefix checking and trimming

	"github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

	"github.com/iliyamo/gamezone-reservation/internal/model"
	"github.com/iliyamo/gamezone-reservation/internal/repository"
	"github.com/iliyamo/gamezone-reservation/internal/utils"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token,
// loads the account it was issued for from the store matching the token's
// kind, and stores that account on the context.  A token whose account has
// since been deleted is rejected.  Handlers read the principal back with
// Principal, Kind and AccountID.
func JWTAuth(secret string, stores ...repository.AccountStore) echo.MiddlewareFunc {
	byKind := make(map[model.AccountKind]repository.AccountStore, len(stores))
	for _, s := range stores {
		byKind[s.Kind()] = s
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Access token required"})
			}

			// Signature, algorithm (HS256 only) and expiry are checked here.
			kind, id, _, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Invalid or expired token"})
			}

			store, ok := byKind[kind]
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Invalid or expired token"})
			}
			acct, err := store.GetByID(c.Request().Context(), id)
			if errors.Is(err, repository.ErrNotFound) {
				return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Account no longer exists"})
			}
			if err != nil {
				return err
			}

			SetPrincipal(c, acct)
			return next(c)
		}
	}
}

// bearerToken extracts the JWT from an "Authorization: Bearer <jwt>" header.
func bearerToken(c echo.Context) (string, bool) {
	auth := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	return raw, raw != ""
}
