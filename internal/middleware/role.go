package middleware // middleware provides shared request processing for handlers

import (
	"net/http" // http package defines standard HTTP status codes

	"github.com/labstack/echo/v4" // echo provides middleware chaining and context

	"github.com/iliyamo/gamezone-reservation/internal/model"
)

// RequireKind returns a middleware that only lets through principals of
// the given account kinds.  It must run after JWTAuth; anything else is
// answered with 403 Forbidden.
func RequireKind(kinds ...model.AccountKind) echo.MiddlewareFunc {
	allowed := make(map[model.AccountKind]bool, len(kinds))
	for _, k := range kinds {
		allowed[k] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !allowed[Kind(c)] {
				return c.JSON(http.StatusForbidden, echo.Map{"message": "Access denied"})
			}
			return next(c)
		}
	}
}
