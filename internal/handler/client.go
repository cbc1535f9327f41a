package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gamezone-reservation/internal/model"
	"github.com/iliyamo/gamezone-reservation/internal/repository"
)

// ClientHandler is the admin CRUD over client accounts.  Clients created
// here have no password and cannot log in until one is set.
type ClientHandler struct {
	Clients *repository.ClientRepo
}

func (r *profileReq) validate() validation {
	r.Nom, r.Prenom = strings.TrimSpace(r.Nom), strings.TrimSpace(r.Prenom)
	r.Email = repository.NormalizeEmail(r.Email)
	var v validation
	v.minLen("nom", r.Nom, 2)
	v.minLen("prenom", r.Prenom, 2)
	v.email("email", r.Email)
	return v
}

func (h *ClientHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Clients.List(ctx)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *ClientHandler) Get(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid client id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	a, err := h.Clients.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return notFound(c, "Client not found")
	}
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, userView(a))
}

func (h *ClientHandler) Create(c echo.Context) error {
	var req profileReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if v := req.validate(); len(v) > 0 {
		return v.respond(c)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id, err := h.Clients.Create(ctx, req.Nom, req.Prenom, req.Email, "")
	if errors.Is(err, repository.ErrEmailExists) {
		return conflict(c, "Email already exists")
	}
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusCreated, userView(model.Account{
		ID: id, Kind: model.KindClient, Nom: req.Nom, Prenom: req.Prenom, Email: req.Email,
	}))
}

func (h *ClientHandler) Update(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid client id")
	}
	var req profileReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if v := req.validate(); len(v) > 0 {
		return v.respond(c)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	err := h.Clients.UpdateProfile(ctx, id, req.Nom, req.Prenom, req.Email)
	switch {
	case errors.Is(err, repository.ErrEmailExists):
		return conflict(c, "Email already exists")
	case errors.Is(err, repository.ErrNotFound):
		return notFound(c, "Client not found")
	case err != nil:
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, userView(model.Account{
		ID: id, Kind: model.KindClient, Nom: req.Nom, Prenom: req.Prenom, Email: req.Email,
	}))
}

func (h *ClientHandler) Delete(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid client id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Clients.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(c, "Client not found")
		}
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Client deleted successfully"})
}
