package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gamezone-reservation/internal/middleware"
	"github.com/iliyamo/gamezone-reservation/internal/queue"
	"github.com/iliyamo/gamezone-reservation/internal/repository"
	"github.com/iliyamo/gamezone-reservation/internal/service"
)

// SessionHandler lets admins start, end and remove gaming sessions.
type SessionHandler struct {
	Sessions *repository.SessionRepo
	Events   *service.Emitter
	Cache    *middleware.ResponseCache
	Now      func() time.Time
}

type startSessionReq struct {
	ReservationID uint64 `json:"id_reservation"`
}

func (h *SessionHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

// List returns every session, newest first.
func (h *SessionHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Sessions.List(ctx)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

// Start opens a session for a reservation.
func (h *SessionHandler) Start(c echo.Context) error {
	var req startSessionReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.ReservationID == 0 {
		var v validation
		v.add("id_reservation", "must be a positive integer")
		return v.respond(c)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id, err := h.Sessions.Start(ctx, req.ReservationID, h.now())
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return notFound(c, "Reservation not found")
	case errors.Is(err, repository.ErrSessionActive):
		return badRequest(c, "Session already active for this reservation")
	case err != nil:
		return internalError(c, err)
	}
	purge(c, h.Cache)
	h.Events.Emit(queue.TypeSessionStarted, queue.SessionChanged{SessionID: id, ReservationID: req.ReservationID})

	s, err := h.Sessions.GetByID(ctx, id)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusCreated, s)
}

// End stamps the end of a running session.
func (h *SessionHandler) End(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid session id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Sessions.End(ctx, id, h.now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(c, "Active session not found")
		}
		return internalError(c, err)
	}
	purge(c, h.Cache)

	s, err := h.Sessions.GetByID(ctx, id)
	if err != nil {
		return internalError(c, err)
	}
	h.Events.Emit(queue.TypeSessionEnded, queue.SessionChanged{SessionID: id, ReservationID: s.ReservationID})
	return c.JSON(http.StatusOK, s)
}

// Delete removes a session row.
func (h *SessionHandler) Delete(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid session id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Sessions.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(c, "Session not found")
		}
		return internalError(c, err)
	}
	purge(c, h.Cache)
	return c.JSON(http.StatusOK, echo.Map{"message": "Session deleted successfully"})
}
