package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gamezone-reservation/internal/booking"
	"github.com/iliyamo/gamezone-reservation/internal/middleware"
	"github.com/iliyamo/gamezone-reservation/internal/model"
	"github.com/iliyamo/gamezone-reservation/internal/repository"
)

// ReservationHandler serves the reservation endpoints for both admins and
// clients.  Admins see and manage every reservation; clients only their own.
type ReservationHandler struct {
	Reservations *repository.ReservationRepo
	Booking      *booking.Service
	Cache        *middleware.ResponseCache
}

type createReservationReq struct {
	DateReservation string   `json:"date_reservation"`
	StationID       uint64   `json:"id_station"`
	ClientIDs       []uint64 `json:"client_ids"`
}

// bookingError maps booking failures to responses.
func bookingError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, booking.ErrStationNotFound):
		return notFound(c, "Station not found")
	case errors.Is(err, booking.ErrClientNotFound):
		return notFound(c, "Client not found")
	case errors.Is(err, booking.ErrReservationNotFound):
		return notFound(c, "Reservation not found")
	case errors.Is(err, booking.ErrNotFuture):
		return badRequest(c, "Reservation date must be in the future")
	case errors.Is(err, booking.ErrNoClients):
		return badRequest(c, "At least one client is required")
	case errors.Is(err, booking.ErrAlreadyStarted):
		return badRequest(c, "Cannot cancel a reservation whose session has started")
	case errors.Is(err, booking.ErrTooLate):
		return badRequest(c, "Cannot cancel less than one hour before the reservation")
	case errors.Is(err, booking.ErrSlotTaken):
		return conflict(c, "Station already reserved for this hour")
	}
	return internalError(c, err)
}

// filter reads the admin listing filters from the query string.
func filter(c echo.Context) (model.ReservationFilter, validation) {
	var (
		f model.ReservationFilter
		v validation
	)
	uintParam := func(name string, dst *uint64) {
		if raw := c.QueryParam(name); raw != "" {
			n, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				v.add(name, "must be a positive integer")
				return
			}
			*dst = n
		}
	}
	intParam := func(name string, dst *int) {
		if raw := c.QueryParam(name); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				v.add(name, "must be a positive integer")
				return
			}
			*dst = n
		}
	}
	timeParam := func(name string, dst **time.Time) {
		if raw := c.QueryParam(name); raw != "" {
			t, err := parseTime(raw)
			if err != nil {
				v.add(name, "must be an ISO 8601 timestamp")
				return
			}
			*dst = &t
		}
	}
	uintParam("station", &f.StationID)
	uintParam("client", &f.ClientID)
	timeParam("from", &f.From)
	timeParam("to", &f.To)
	intParam("page", &f.Page)
	intParam("page_size", &f.PageSize)
	if f.PageSize > 100 {
		f.PageSize = 100
	}
	return f, v
}

func (h *ReservationHandler) list(c echo.Context, f model.ReservationFilter) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, total, err := h.Reservations.List(ctx, f)
	if err != nil {
		return internalError(c, err)
	}
	c.Response().Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	return c.JSON(http.StatusOK, items)
}

// List returns every reservation to admins, honoring the query filters,
// and the caller's own reservations to clients.
func (h *ReservationHandler) List(c echo.Context) error {
	f, v := filter(c)
	if len(v) > 0 {
		return v.respond(c)
	}
	if middleware.Kind(c) == model.KindClient {
		f.ClientID = middleware.AccountID(c)
	}
	return h.list(c, f)
}

// My returns the calling client's reservations.
func (h *ReservationHandler) My(c echo.Context) error {
	if middleware.Kind(c) != model.KindClient {
		return message(c, http.StatusForbidden, "Access denied. Client access only.")
	}
	return h.list(c, model.ReservationFilter{ClientID: middleware.AccountID(c)})
}

// Get returns one reservation with its clients.  A client asking for a
// reservation it is not part of gets 404.
func (h *ReservationHandler) Get(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid reservation id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if middleware.Kind(c) == model.KindClient {
		linked, err := h.Reservations.IsLinked(ctx, id, middleware.AccountID(c))
		if err != nil {
			return internalError(c, err)
		}
		if !linked {
			return notFound(c, "Reservation not found")
		}
	}
	det, err := h.Reservations.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return notFound(c, "Reservation not found")
	}
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, det)
}

// Create books a slot.  Admins name the clients in client_ids; a client
// always books for itself and client_ids is ignored.
func (h *ReservationHandler) Create(c echo.Context) error {
	var req createReservationReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	var v validation
	at, err := parseTime(req.DateReservation)
	if err != nil {
		v.add("date_reservation", "must be an ISO 8601 timestamp")
	}
	if req.StationID == 0 {
		v.add("id_station", "must be a positive integer")
	}
	clients := req.ClientIDs
	if middleware.Kind(c) == model.KindClient {
		clients = []uint64{middleware.AccountID(c)}
	} else if len(clients) == 0 {
		v.add("client_ids", "at least one client is required")
	}
	if len(v) > 0 {
		return v.respond(c)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id, err := h.Booking.Create(ctx, req.StationID, at, clients)
	if err != nil {
		return bookingError(c, err)
	}
	purge(c, h.Cache)

	det, err := h.Reservations.GetByID(ctx, id)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusCreated, det)
}

// Cancel removes the calling client from a reservation.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid reservation id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	deleted, err := h.Booking.Cancel(ctx, id, middleware.AccountID(c))
	if err != nil {
		return bookingError(c, err)
	}
	purge(c, h.Cache)
	return c.JSON(http.StatusOK, echo.Map{"message": "Reservation cancelled successfully", "deleted": deleted})
}

// Delete removes a reservation outright (admin).
func (h *ReservationHandler) Delete(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid reservation id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Booking.Delete(ctx, id); err != nil {
		return bookingError(c, err)
	}
	purge(c, h.Cache)
	return c.JSON(http.StatusOK, echo.Map{"message": "Reservation deleted successfully"})
}
