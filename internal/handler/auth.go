package handler

import (
	"context"  // provides context with cancellation for DB calls
	"errors"   // errors matches repository sentinels
	"net/http" // HTTP status codes and primitives
	"strings"  // string manipulation utilities
	"time"     // timeouts for DB calls

	"github.com/labstack/echo/v4" // Echo framework for HTTP routing

	"github.com/iliyamo/gamezone-reservation/internal/config"     // app configuration
	"github.com/iliyamo/gamezone-reservation/internal/middleware" // authenticated principal accessors
	"github.com/iliyamo/gamezone-reservation/internal/model"      // account kinds
	"github.com/iliyamo/gamezone-reservation/internal/repository" // DB repositories
	"github.com/iliyamo/gamezone-reservation/internal/utils"      // hashing and token issuing
)

// AuthHandler bundles dependencies for auth and profile endpoints.
type AuthHandler struct {
	Cfg     config.Config
	Admins  *repository.AdminRepo
	Clients *repository.ClientRepo
}

func NewAuthHandler(cfg config.Config, admins *repository.AdminRepo, clients *repository.ClientRepo) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Admins: admins, Clients: clients}
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerReq struct {
	Nom      string `json:"nom"`
	Prenom   string `json:"prenom"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordReq struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type deleteAccountReq struct {
	Password string `json:"password"`
}

type profileReq struct {
	Nom    string `json:"nom"`
	Prenom string `json:"prenom"`
	Email  string `json:"email"`
}

// userView renders an account the way each login flow has always returned
// it: admins carry "id", clients "id_client".
func userView(a model.Account) echo.Map {
	m := echo.Map{"email": a.Email, "nom": a.Nom, "prenom": a.Prenom}
	if a.Kind == model.KindAdmin {
		m["id"] = a.ID
	} else {
		m["id_client"] = a.ID
	}
	return m
}

func (r *loginReq) validate() validation {
	r.Email = repository.NormalizeEmail(r.Email)
	var v validation
	v.email("email", r.Email)
	if len(r.Password) < utils.MinPasswordLength {
		v.add("password", utils.ErrPasswordTooShort.Error())
	}
	return v
}

func (h *AuthHandler) store(kind model.AccountKind) repository.AccountStore {
	if kind == model.KindAdmin {
		return h.Admins
	}
	return h.Clients
}

func (h *AuthHandler) issue(c echo.Context, status int, a model.Account, extra echo.Map) error {
	tok, err := utils.NewAccessToken(h.Cfg.JWTSecret, a.Kind, a.ID, a.Email, h.Cfg.JWTExpiry)
	if err != nil {
		return internalError(c, err)
	}
	body := echo.Map{"token": tok.Token, "expires": tok.Exp, "userType": a.Kind, "user": userView(a)}
	for k, v := range extra {
		body[k] = v
	}
	return c.JSON(status, body)
}

// authenticate looks email up in store and checks the password.  A missing
// account, an account without a password and a wrong password all yield
// ok == false.
func authenticate(ctx context.Context, store repository.AccountStore, email, password string) (model.Account, bool, error) {
	a, err := store.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Account{}, false, nil
	}
	if err != nil {
		return model.Account{}, false, err
	}
	if !a.HasPassword() || !utils.VerifyPassword(a.PasswordHash, password) {
		return model.Account{}, false, nil
	}
	return a, true, nil
}

// Login is the unified login: admins are tried first, then clients.  The
// response's userType tells the caller which one matched.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if v := req.validate(); len(v) > 0 {
		return v.respond(c)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	a, ok, err := authenticate(ctx, h.Admins, req.Email, req.Password)
	if err != nil {
		return internalError(c, err)
	}
	if ok {
		return h.issue(c, http.StatusOK, a, echo.Map{"admin": userView(a)})
	}
	a, ok, err = authenticate(ctx, h.Clients, req.Email, req.Password)
	if err != nil {
		return internalError(c, err)
	}
	if !ok {
		return message(c, http.StatusUnauthorized, "Invalid credentials")
	}
	return h.issue(c, http.StatusOK, a, nil)
}

// ClientLogin authenticates against clients only.
func (h *AuthHandler) ClientLogin(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if v := req.validate(); len(v) > 0 {
		return v.respond(c)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	a, ok, err := authenticate(ctx, h.Clients, req.Email, req.Password)
	if err != nil {
		return internalError(c, err)
	}
	if !ok {
		return message(c, http.StatusUnauthorized, "Invalid credentials")
	}
	return h.issue(c, http.StatusOK, a, nil)
}

// Register creates a client account and logs it in.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	req.Nom, req.Prenom = strings.TrimSpace(req.Nom), strings.TrimSpace(req.Prenom)
	req.Email = repository.NormalizeEmail(req.Email)

	var v validation
	v.minLen("nom", req.Nom, 2)
	v.minLen("prenom", req.Prenom, 2)
	v.email("email", req.Email)
	if err := utils.CheckPasswordPolicy(req.Password); err != nil {
		v.add("password", err.Error())
	}
	if len(v) > 0 {
		return v.respond(c)
	}

	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return internalError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id, err := h.Clients.Create(ctx, req.Nom, req.Prenom, req.Email, hash)
	if errors.Is(err, repository.ErrEmailExists) {
		return conflict(c, "Email already exists")
	}
	if err != nil {
		return internalError(c, err)
	}
	a := model.Account{ID: id, Kind: model.KindClient, Nom: req.Nom, Prenom: req.Prenom, Email: req.Email}
	return h.issue(c, http.StatusCreated, a, nil)
}

// Verify answers for a valid admin token.
func (h *AuthHandler) Verify(c echo.Context) error {
	a, _ := middleware.Principal(c)
	return c.JSON(http.StatusOK, echo.Map{"admin": userView(a)})
}

// ClientVerify answers for a valid client token.
func (h *AuthHandler) ClientVerify(c echo.Context) error {
	a, _ := middleware.Principal(c)
	return c.JSON(http.StatusOK, echo.Map{"user": userView(a)})
}

// Profile returns the caller, admin or client.
func (h *AuthHandler) Profile(c echo.Context) error {
	a, _ := middleware.Principal(c)
	return c.JSON(http.StatusOK, echo.Map{"userType": a.Kind, "user": userView(a)})
}

// ChangePassword replaces the caller's password after checking the
// current one.  It serves both the admin and the client route.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	var req changePasswordReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.CurrentPassword == "" {
		return badRequest(c, "Current password is required")
	}
	if err := utils.CheckPasswordPolicy(req.NewPassword); err != nil {
		return badRequest(c, "New password must be at least 6 characters")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	// The principal was loaded by JWTAuth, hash included.
	a, _ := middleware.Principal(c)
	if !a.HasPassword() || !utils.VerifyPassword(a.PasswordHash, req.CurrentPassword) {
		return badRequest(c, "Current password is incorrect")
	}
	hash, err := utils.HashPassword(req.NewPassword, h.Cfg.BcryptCost)
	if err != nil {
		return internalError(c, err)
	}
	if err := h.store(a.Kind).UpdatePassword(ctx, a.ID, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(c, "Account not found")
		}
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Password updated successfully"})
}

// DeleteAccount removes the caller's account after a password check.
// Reservation links cascade.  The last admin cannot delete itself.
func (h *AuthHandler) DeleteAccount(c echo.Context) error {
	var req deleteAccountReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Password == "" {
		return badRequest(c, "Password is required to delete the account")
	}

	a, _ := middleware.Principal(c)
	if !a.HasPassword() || !utils.VerifyPassword(a.PasswordHash, req.Password) {
		return badRequest(c, "Incorrect password")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	err := h.store(a.Kind).Delete(ctx, a.ID)
	switch {
	case errors.Is(err, repository.ErrConflict):
		return conflict(c, "Cannot delete the last admin account")
	case errors.Is(err, repository.ErrNotFound):
		return notFound(c, "Account not found")
	case err != nil:
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Account deleted successfully"})
}

// GetClientProfile returns the calling client's profile.
func (h *AuthHandler) GetClientProfile(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	a, err := h.Clients.GetByID(ctx, middleware.AccountID(c))
	if errors.Is(err, repository.ErrNotFound) {
		return notFound(c, "Client not found")
	}
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, userView(a))
}

// UpdateClientProfile replaces the calling client's name and email.
func (h *AuthHandler) UpdateClientProfile(c echo.Context) error {
	var req profileReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if v := req.validate(); len(v) > 0 {
		return v.respond(c)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id := middleware.AccountID(c)
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
