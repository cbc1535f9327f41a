package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gamezone-reservation/internal/availability"
	"github.com/iliyamo/gamezone-reservation/internal/maintenance"
	"github.com/iliyamo/gamezone-reservation/internal/middleware"
	"github.com/iliyamo/gamezone-reservation/internal/model"
	"github.com/iliyamo/gamezone-reservation/internal/repository"
)

// StationHandler serves public station browsing and admin station
// management.
type StationHandler struct {
	Stations *repository.StationRepo
	Resolver *availability.Resolver
	Sweeper  *maintenance.Sweeper
	Cache    *middleware.ResponseCache
}

type stationReq struct {
	Plateforme     string `json:"plateforme"`
	ConfigPC       string `json:"config_pc"`
	NombreManettes *int   `json:"nombre_manettes"`
}

// input validates the body and converts it for the repository.
func (r stationReq) input() (repository.StationInput, validation) {
	var v validation
	p, err := model.ParsePlatform(strings.TrimSpace(r.Plateforme))
	if err != nil {
		v.add("plateforme", "must be PC or Console")
	}
	in := repository.StationInput{Plateforme: p, ConfigPC: strings.TrimSpace(r.ConfigPC)}
	if r.NombreManettes != nil {
		n := *r.NombreManettes
		if n < model.MinControllers || n > model.MaxControllers {
			v.add("nombre_manettes", "must be between 1 and 8")
		}
		in.NombreManettes = n
	}
	return in, v
}

// purge drops cached browse pages after a change that can alter
// availability.  A failed purge only delays freshness until the TTL.
func purge(c echo.Context, rc *middleware.ResponseCache) {
	if err := rc.Purge(c.Request().Context()); err != nil {
		c.Logger().Warnf("cache purge: %v", err)
	}
}


// List returns every station with its current availability.
func (h *StationHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	views, err := h.Resolver.Snapshot(ctx)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, views)
}

// Get returns one station with its current availability and counters.
func (h *StationHandler) Get(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid station id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	v, err := h.Resolver.View(ctx, id)
	if errors.Is(err, availability.ErrStationNotFound) {
		return notFound(c, "Station not found")
	}
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

// Availability checks one station for the slot holding ?date=.
func (h *StationHandler) Availability(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid station id")
	}
	raw := c.QueryParam("date")
	if raw == "" {
		return badRequest(c, "Date parameter is required")
	}
	at, err := parseTime(raw)
	if err != nil {
		return badRequest(c, "Invalid date parameter")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rep, err := h.Resolver.Check(ctx, id, &at)
	if errors.Is(err, availability.ErrStationNotFound) {
		return notFound(c, "Station not found")
	}
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, rep)
}

// Available lists the stations free in the slot given by ?date=&time=.
// date may also carry the full timestamp on its own.  With neither, every
// station is listed with its current state.
func (h *StationHandler) Available(c echo.Context) error {
	date, clock := strings.TrimSpace(c.QueryParam("date")), strings.TrimSpace(c.QueryParam("time"))
	var at *time.Time
	if date != "" {
		raw := date
		if clock != "" {
			raw = date + " " + clock
		}
		t, err := parseTime(raw)
		if err != nil {
			return badRequest(c, "Invalid date or time parameter")
		}
		at = &t
	} else if clock != "" {
		return badRequest(c, "Date parameter is required with time")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	views, err := h.Resolver.AvailableAt(ctx, at)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, views)
}

// Create adds a station and its platform payload.
func (h *StationHandler) Create(c echo.Context) error {
	var req stationReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	in, v := req.input()
	if len(v) > 0 {
		return v.respond(c)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id, err := h.Stations.Create(ctx, in)
	if err != nil {
		return internalError(c, err)
	}
	st, err := h.Stations.GetByID(ctx, id)
	if err != nil {
		return internalError(c, err)
	}
	purge(c, h.Cache)
	return c.JSON(http.StatusCreated, st)
}

// Update replaces a station's platform and payload.
func (h *StationHandler) Update(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid station id")
	}
	var req stationReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	in, v := req.input()
	if len(v) > 0 {
		return v.respond(c)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Stations.Update(ctx, id, in); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(c, "Station not found")
		}
		return internalError(c, err)
	}
	st, err := h.Stations.GetByID(ctx, id)
	if err != nil {
		return internalError(c, err)
	}
	purge(c, h.Cache)
	return c.JSON(http.StatusOK, st)
}

// Delete removes a station with everything that references it.
func (h *StationHandler) Delete(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid station id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Stations.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(c, "Station not found")
		}
		return internalError(c, err)
	}
	purge(c, h.Cache)
	return c.JSON(http.StatusOK, echo.Map{"message": "Station deleted successfully"})
}

type refreshedStation struct {
	model.StationView
	LastUpdated time.Time `json:"last_updated"`
}

// Refresh runs the maintenance sweep and returns the stations as they
// stand afterwards.
func (h *StationHandler) Refresh(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	res, err := h.Sweeper.Run(ctx)
	if err != nil {
		return internalError(c, err)
	}
	purge(c, h.Cache)

	views, err := h.Resolver.Snapshot(ctx)
	if err != nil {
		return internalError(c, err)
	}
	now := h.Resolver.Now()
	out := make([]refreshedStation, 0, len(views))
	free := 0
	for _, v := range views {
		if v.Available {
			free++
		}
		out = append(out, refreshedStation{StationView: v, LastUpdated: now})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Refresh completed",
		"stats": echo.Map{
			"terminatedSessions":  res.TerminatedSessions,
			"deletedReservations": res.DeletedReservations,
			"availableStations":   free,
			"totalStations":       len(views),
		},
		"stations": out,
	})
}
