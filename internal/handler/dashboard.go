package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gamezone-reservation/internal/repository"
)

// DashboardHandler serves the admin overview.
type DashboardHandler struct {
	Dashboard *repository.DashboardRepo
	Now       func() time.Time
}

func (h *DashboardHandler) Stats(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	st, err := h.Dashboard.Stats(ctx, now())
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, st)
}
